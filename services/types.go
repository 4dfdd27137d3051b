package services

import (
	"time"

	"github.com/rhuffman-92808/Game-Of-Life-Fhe/batch"
	"github.com/rhuffman-92808/Game-Of-Life-Fhe/crypto"
	"github.com/rhuffman-92808/Game-Of-Life-Fhe/protocol"
)

// SubmitCellRequest is the signed body of POST /cells. The acting provider
// address is derived from the envelope's signer key.
type SubmitCellRequest struct {
	X      int           `json:"x"`
	Y      int           `json:"y"`
	Handle crypto.Handle `json:"handle"`
}

// ProviderRequest is the signed body of the provider admin endpoints.
type ProviderRequest struct {
	Provider crypto.Address `json:"provider"`
}

// PauseRequest is the signed body of POST /admin/pause.
type PauseRequest struct {
	Paused bool `json:"paused"`
}

// CooldownRequest is the signed body of POST /admin/cooldown.
type CooldownRequest struct {
	Action   protocol.ActionKind `json:"action"`
	Cooldown time.Duration       `json:"cooldown,string"`
}

// BatchCommand is the signed body of the batch admin endpoints. Op must
// match the endpoint ("open" or "close") so a signed open command cannot be
// replayed against the close route.
type BatchCommand struct {
	Op string `json:"op"`
}

// BatchResponse reports a batch transition or the current batch status.
type BatchResponse struct {
	BatchID uint64      `json:"batch_id"`
	Phase   batch.Phase `json:"phase"`
}

// StatusResponse is the coordinator's public status.
type StatusResponse struct {
	BatchID   uint64      `json:"batch_id"`
	Phase     batch.Phase `json:"phase"`
	Paused    bool        `json:"paused"`
	Providers int         `json:"providers"`
}

// DecryptionRequestBody is the signed body of POST /decryption/request.
type DecryptionRequestBody struct {
	BatchID uint64 `json:"batch_id"`
}

// DecryptionRequestResponse returns the oracle's request identifier.
type DecryptionRequestResponse struct {
	RequestID protocol.RequestID `json:"request_id"`
}

// CallbackRequest is the body of POST /decryption/callback, sent by the
// oracle service. It is not wrapped in a Signed envelope; the proof over
// (request id, plaintexts) is its authentication.
type CallbackRequest struct {
	RequestID  protocol.RequestID `json:"request_id"`
	Plaintexts []byte             `json:"plaintexts"`
	Proof      crypto.Signature   `json:"proof"`
}

// CallbackResponse reports the finalized result of an accepted callback.
type CallbackResponse struct {
	Outcome *protocol.DecryptionOutcome `json:"outcome"`
}

// ResultResponse is the read-only view of a decryption request's state.
type ResultResponse struct {
	RequestID protocol.RequestID          `json:"request_id"`
	BatchID   uint64                      `json:"batch_id"`
	StateHash crypto.Commitment           `json:"state_hash"`
	Processed bool                        `json:"processed"`
	Outcome   *protocol.DecryptionOutcome `json:"outcome,omitempty"`
}

// BoardResponse is a batch's full ordered handle sequence.
type BoardResponse struct {
	BatchID uint64          `json:"batch_id"`
	Width   int             `json:"width"`
	Height  int             `json:"height"`
	Handles []crypto.Handle `json:"handles"`
}
