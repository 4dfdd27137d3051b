package protocol

import (
	"context"
	"time"

	"github.com/rhuffman-92808/Game-Of-Life-Fhe/crypto"
)

// RequestID correlates a decryption request with its eventual callback. It
// is opaque to the coordinator and chosen by the oracle capability, which
// must never return a previously-used identifier.
type RequestID string

// ActionKind distinguishes the independently rate-limited operations. Each
// actor has its own cooldown timestamp per kind.
type ActionKind string

const (
	// ActionSubmit covers cell submissions.
	ActionSubmit ActionKind = "submit"
	// ActionDecrypt covers decryption-request issuance.
	ActionDecrypt ActionKind = "decrypt"
)

// Valid returns true if the action kind is recognized.
func (k ActionKind) Valid() bool {
	switch k {
	case ActionSubmit, ActionDecrypt:
		return true
	}
	return false
}

// DecryptionOracle is the external capability that decrypts a batch off the
// coordinator's control. RequestDecryption dispatches the ordered handle
// sequence and returns a fresh request identifier; the plaintexts arrive
// later through the coordinator's callback entry point, in the same count
// and order, together with a proof over (request id, plaintexts).
//
// The coordinator never decrypts or inspects a handle itself.
type DecryptionOracle interface {
	RequestDecryption(ctx context.Context, handles []crypto.Handle) (RequestID, error)
}

// ProofVerifier checks the oracle's cryptographic proof before revealed
// plaintexts are trusted. Returns ErrInvalidProof (possibly wrapped) when
// verification fails.
type ProofVerifier interface {
	Verify(requestID RequestID, plaintexts []byte, proof crypto.Signature) error
}

// CallbackHandler is the coordinator-side entry point the oracle capability
// invokes to fulfill a request. Split out as an interface so oracle
// implementations and transports can be tested against fakes.
type CallbackHandler interface {
	HandleDecryptionCallback(requestID RequestID, plaintexts []byte, proof crypto.Signature) (*DecryptionOutcome, error)
}

// DecryptionOutcome is the finalized result of a fulfilled request.
type DecryptionOutcome struct {
	RequestID  RequestID `json:"request_id"`
	BatchID    uint64    `json:"batch_id"`
	LiveCells  int       `json:"live_cells"`
	Plaintexts []byte    `json:"plaintexts"`
}

// Clock supplies the current time to cooldown checks. Injectable so tests
// control time deterministically.
type Clock func() time.Time
