package oracle

import (
	"fmt"

	"github.com/rhuffman-92808/Game-Of-Life-Fhe/crypto"
	"github.com/rhuffman-92808/Game-Of-Life-Fhe/protocol"
)

// Ed25519Verifier checks decryption proofs against a fixed oracle
// verification key.
type Ed25519Verifier struct {
	Key crypto.PublicKey
}

// NewEd25519Verifier creates a verifier for the given oracle key.
func NewEd25519Verifier(key crypto.PublicKey) *Ed25519Verifier {
	return &Ed25519Verifier{Key: key}
}

// Verify implements protocol.ProofVerifier.
func (v *Ed25519Verifier) Verify(requestID protocol.RequestID, plaintexts []byte, proof crypto.Signature) error {
	if !crypto.VerifyDecryptionProof(v.Key, string(requestID), plaintexts, proof) {
		return fmt.Errorf("%w: signature check failed for request %q", protocol.ErrInvalidProof, requestID)
	}
	return nil
}
