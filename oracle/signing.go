package oracle

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/rhuffman-92808/Game-Of-Life-Fhe/crypto"
	"github.com/rhuffman-92808/Game-Of-Life-Fhe/protocol"
)

// SigningOracle is an in-process decryption oracle. It doubles as the
// encryption capability for demos and tests: Encrypt mints a fresh opaque
// handle for a plaintext value, and fulfillment looks the values back up.
// Handles it has never seen (including the zero handle of unsubmitted
// slots) decrypt to zero, the dead-cell value.
type SigningOracle struct {
	proofKey  crypto.PrivateKey
	verifyKey crypto.PublicKey

	mu      sync.Mutex
	values  map[crypto.Handle]byte
	pending map[protocol.RequestID][]crypto.Handle
}

// NewSigningOracle creates an oracle with a freshly generated proof key.
func NewSigningOracle() (*SigningOracle, error) {
	_, proofKey, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	return NewSigningOracleWithKey(proofKey)
}

// NewSigningOracleWithKey creates an oracle with the given proof key.
func NewSigningOracleWithKey(proofKey crypto.PrivateKey) (*SigningOracle, error) {
	verifyKey, err := proofKey.PublicKey()
	if err != nil {
		return nil, fmt.Errorf("deriving verification key: %w", err)
	}
	return &SigningOracle{
		proofKey:  proofKey,
		verifyKey: verifyKey,
		values:    make(map[crypto.Handle]byte),
		pending:   make(map[protocol.RequestID][]crypto.Handle),
	}, nil
}

// VerificationKey returns the public key callbacks are verified against.
func (o *SigningOracle) VerificationKey() crypto.PublicKey {
	return o.verifyKey
}

// Encrypt mints a random non-zero handle for a plaintext cell value. The
// zero handle stays reserved for unsubmitted slots.
func (o *SigningOracle) Encrypt(value byte) (crypto.Handle, error) {
	var handle crypto.Handle
	for {
		if _, err := rand.Read(handle[:]); err != nil {
			return crypto.ZeroHandle, err
		}
		if !handle.IsZero() {
			break
		}
	}

	o.mu.Lock()
	o.values[handle] = value
	o.mu.Unlock()
	return handle, nil
}

// RequestDecryption records the ordered handle sequence under a fresh,
// previously-unused request identifier.
func (o *SigningOracle) RequestDecryption(_ context.Context, handles []crypto.Handle) (protocol.RequestID, error) {
	snapshot := make([]crypto.Handle, len(handles))
	copy(snapshot, handles)

	o.mu.Lock()
	defer o.mu.Unlock()

	for {
		var raw [16]byte
		if _, err := rand.Read(raw[:]); err != nil {
			return "", err
		}
		requestID := protocol.RequestID(hex.EncodeToString(raw[:]))
		if _, used := o.pending[requestID]; used {
			continue
		}
		o.pending[requestID] = snapshot
		return requestID, nil
	}
}

// Fulfill decrypts a recorded request and signs the proof. The request stays
// recorded, so a callback rejected by the coordinator can be fulfilled and
// retried again.
func (o *SigningOracle) Fulfill(requestID protocol.RequestID) ([]byte, crypto.Signature, error) {
	o.mu.Lock()
	handles, ok := o.pending[requestID]
	if !ok {
		o.mu.Unlock()
		return nil, nil, fmt.Errorf("no pending request %q", requestID)
	}

	plaintexts := make([]byte, len(handles))
	for i, handle := range handles {
		plaintexts[i] = o.values[handle]
	}
	o.mu.Unlock()

	proof, err := crypto.SignDecryptionProof(o.proofKey, string(requestID), plaintexts)
	if err != nil {
		return nil, nil, err
	}
	return plaintexts, proof, nil
}

// SignProof signs arbitrary plaintexts for a request id with the oracle's
// proof key. Exposed so protocol tests can construct validly-proven but
// adversarial callbacks (wrong length, stale content) without access to the
// key material.
func (o *SigningOracle) SignProof(requestID protocol.RequestID, plaintexts []byte) (crypto.Signature, error) {
	return crypto.SignDecryptionProof(o.proofKey, string(requestID), plaintexts)
}

// Deliver fulfills a request and invokes the coordinator's callback entry
// point, returning whatever the coordinator decided.
func (o *SigningOracle) Deliver(requestID protocol.RequestID, handler protocol.CallbackHandler) (*protocol.DecryptionOutcome, error) {
	plaintexts, proof, err := o.Fulfill(requestID)
	if err != nil {
		return nil, err
	}
	return handler.HandleDecryptionCallback(requestID, plaintexts, proof)
}
