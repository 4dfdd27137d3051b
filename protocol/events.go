package protocol

import (
	"encoding/json"
	"time"

	"github.com/rhuffman-92808/Game-Of-Life-Fhe/crypto"
)

// EventKind names an auditable state change.
type EventKind string

const (
	EventProviderAdded       EventKind = "provider_added"
	EventProviderRemoved     EventKind = "provider_removed"
	EventPausedSet           EventKind = "paused_set"
	EventCooldownSet         EventKind = "cooldown_set"
	EventBatchOpened         EventKind = "batch_opened"
	EventBatchClosed         EventKind = "batch_closed"
	EventCellSubmitted       EventKind = "cell_submitted"
	EventDecryptionRequested EventKind = "decryption_requested"
	EventDecryptionCompleted EventKind = "decryption_completed"
)

// Event is an auditable record of a successful state change. Every mutating
// operation emits exactly one event after its gates have passed.
type Event struct {
	Kind    EventKind       `json:"kind"`
	Time    time.Time       `json:"time"`
	Payload json.RawMessage `json:"payload"`
}

// NewEvent builds an event with a JSON-encoded payload. The payload types
// below are all marshalable, so encoding failures are not expected; if one
// occurs the payload is recorded as null rather than dropping the event.
func NewEvent(kind EventKind, at time.Time, payload any) Event {
	raw, err := json.Marshal(payload)
	if err != nil {
		raw = []byte("null")
	}
	return Event{Kind: kind, Time: at, Payload: raw}
}

// DecodePayload unmarshals an event payload into its typed form.
func DecodePayload[T any](e Event) (*T, error) {
	var payload T
	err := json.Unmarshal(e.Payload, &payload)
	return &payload, err
}

// EventSink receives audit events. Implementations must not block the
// emitting operation for long; durable sinks handle their own failures.
type EventSink interface {
	Emit(Event)
}

// ProviderChange is the payload of provider_added and provider_removed.
type ProviderChange struct {
	Provider crypto.Address `json:"provider"`
}

// PausedChange is the payload of paused_set.
type PausedChange struct {
	Paused bool `json:"paused"`
}

// CooldownChange is the payload of cooldown_set.
type CooldownChange struct {
	Action   ActionKind    `json:"action"`
	Cooldown time.Duration `json:"cooldown,string"`
}

// BatchChange is the payload of batch_opened and batch_closed.
type BatchChange struct {
	BatchID uint64 `json:"batch_id"`
}

// CellSubmission is the payload of cell_submitted.
type CellSubmission struct {
	BatchID  uint64         `json:"batch_id"`
	Provider crypto.Address `json:"provider"`
	X        int            `json:"x"`
	Y        int            `json:"y"`
	Handle   crypto.Handle  `json:"handle"`
}

// DecryptionRequest is the payload of decryption_requested.
type DecryptionRequest struct {
	RequestID RequestID         `json:"request_id"`
	BatchID   uint64            `json:"batch_id"`
	StateHash crypto.Commitment `json:"state_hash"`
}

// DecryptionCompletion is the payload of decryption_completed.
type DecryptionCompletion struct {
	RequestID RequestID `json:"request_id"`
	BatchID   uint64    `json:"batch_id"`
	LiveCells int       `json:"live_cells"`
}
