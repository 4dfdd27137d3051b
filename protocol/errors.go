package protocol

import "errors"

// Error taxonomy of the coordination protocol. Gated operations fail with
// exactly one of these sentinels (possibly wrapped with context); callers
// dispatch on them with errors.Is.
var (
	// Authorization failures. Never retried automatically.
	ErrUnauthorized = errors.New("unauthorized")
	ErrSystemPaused = errors.New("system paused")

	// Rate limiting. Retryable by the caller once the cooldown elapses.
	ErrCooldownActive = errors.New("cooldown active")

	// Input validation. Caller error, no partial state change.
	ErrInvalidCoordinates = errors.New("invalid coordinates")
	ErrInvalidBatch       = errors.New("invalid batch")
	ErrBatchStillOpen     = errors.New("batch still open")
	ErrInvalidBatchState  = errors.New("invalid batch state")

	// Protocol integrity. Fatal to the offending callback, not to the
	// system; the coordinator stays usable for other requests.
	ErrUnknownRequest = errors.New("unknown decryption request")
	ErrReplayDetected = errors.New("replay detected")
	ErrStateMismatch  = errors.New("batch state mismatch")
	ErrInvalidProof   = errors.New("invalid decryption proof")
)
