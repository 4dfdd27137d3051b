package crypto

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

// Domain separators keep batch commitments and proof digests from colliding
// with each other or with signatures from other deployments.
const (
	commitmentDomain = "gol-fhe/v1/batch-commitment"
	proofDomain      = "gol-fhe/v1/decryption-proof"
)

// Commitment is a collision-resistant digest over a batch's ordered
// ciphertext handles, scoped to one system instance. It is computed when a
// decryption request is issued and recomputed when the oracle calls back;
// any change to the batch in between is detected as a mismatch.
type Commitment [sha256.Size]byte

// BatchCommitment computes the commitment for a batch: SHA-256 over the
// domain separator, the instance identity, the batch id, and the handle
// sequence in slot order. Uninitialized slots contribute the zero handle, so
// two boards differing only in which slots were explicitly written to the
// same value still commit identically.
func BatchCommitment(instanceID string, batchID uint64, handles []Handle) Commitment {
	h := sha256.New()
	h.Write([]byte(commitmentDomain))
	h.Write([]byte{0})
	h.Write([]byte(instanceID))
	h.Write([]byte{0})
	var idBuf [8]byte
	binary.BigEndian.PutUint64(idBuf[:], batchID)
	h.Write(idBuf[:])
	for _, handle := range handles {
		h.Write(handle[:])
	}
	var c Commitment
	copy(c[:], h.Sum(nil))
	return c
}

// String returns the hex encoding of the commitment.
func (c Commitment) String() string {
	return hex.EncodeToString(c[:])
}

// MarshalText implements encoding.TextMarshaler.
func (c Commitment) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Commitment) UnmarshalText(text []byte) error {
	raw, err := hex.DecodeString(string(text))
	if err != nil {
		return err
	}
	copy(c[:], raw)
	return nil
}

// ProofDigest is the message a decryption oracle signs: SHA-256 over the
// proof domain separator, the request identifier, and the revealed plaintext
// sequence. Binding the request id into the digest stops a valid proof for
// one request from being replayed against another.
func ProofDigest(requestID string, plaintexts []byte) []byte {
	h := sha256.New()
	h.Write([]byte(proofDomain))
	h.Write([]byte{0})
	h.Write([]byte(requestID))
	h.Write([]byte{0})
	h.Write(plaintexts)
	return h.Sum(nil)
}

// SignDecryptionProof produces the oracle's proof over a fulfilled request.
func SignDecryptionProof(sk PrivateKey, requestID string, plaintexts []byte) (Signature, error) {
	return Sign(sk, ProofDigest(requestID, plaintexts))
}

// VerifyDecryptionProof checks an oracle proof against the oracle's
// verification key.
func VerifyDecryptionProof(pk PublicKey, requestID string, plaintexts []byte, proof Signature) bool {
	return proof.Verify(pk, ProofDigest(requestID, plaintexts))
}
