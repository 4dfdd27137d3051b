// Package batch owns the batch identity and its open/closed lifecycle.
//
// Batch transitions are an explicit tagged state: the system starts with no
// batch, Open advances to a fresh id, Close seals it. Opening while a batch
// is still open is rejected instead of implicitly rolling the previous batch
// over, so a batch is always either cleanly open for submissions or cleanly
// closed and decryptable.
package batch

import (
	"fmt"
	"sync"

	"github.com/rhuffman-92808/Game-Of-Life-Fhe/protocol"
)

// Phase is the lifecycle state of the current batch.
type Phase int

const (
	// PhaseNone: no batch has been opened yet; nothing accepts submissions
	// and nothing is decryptable.
	PhaseNone Phase = iota
	// PhaseOpen: the current batch accepts submissions.
	PhaseOpen
	// PhaseClosed: the current batch is sealed and decryptable.
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhaseNone:
		return "none"
	case PhaseOpen:
		return "open"
	case PhaseClosed:
		return "closed"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// MarshalText implements encoding.TextMarshaler for status responses.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Phase) UnmarshalText(text []byte) error {
	switch string(text) {
	case "none":
		*p = PhaseNone
	case "open":
		*p = PhaseOpen
	case "closed":
		*p = PhaseClosed
	default:
		return fmt.Errorf("unknown phase %q", string(text))
	}
	return nil
}

// Controller is the batch state machine: None -> Open(0) -> Closed(0) ->
// Open(1) -> ... Exactly one batch is current at any time; ids are strictly
// increasing across reopens.
type Controller struct {
	clock protocol.Clock
	sink  protocol.EventSink

	mu    sync.RWMutex
	phase Phase
	id    uint64
}

// NewController creates a controller in the initial no-batch state.
func NewController(clock protocol.Clock, sink protocol.EventSink) *Controller {
	return &Controller{clock: clock, sink: sink, phase: PhaseNone}
}

// Current returns the current batch id and phase. The id is meaningful only
// once the phase is not PhaseNone.
func (c *Controller) Current() (uint64, Phase) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.id, c.phase
}

// Open starts the next batch and returns its id: 0 from the initial state,
// otherwise the previous id plus one. Fails with ErrInvalidBatchState while
// a batch is still open; an explicit Close is required first.
func (c *Controller) Open() (uint64, error) {
	c.mu.Lock()
	switch c.phase {
	case PhaseNone:
		c.id = 0
	case PhaseClosed:
		c.id++
	case PhaseOpen:
		c.mu.Unlock()
		return 0, fmt.Errorf("%w: batch %d still open", protocol.ErrInvalidBatchState, c.id)
	}
	c.phase = PhaseOpen
	id := c.id
	c.mu.Unlock()

	c.sink.Emit(protocol.NewEvent(protocol.EventBatchOpened, c.clock(), protocol.BatchChange{BatchID: id}))
	return id, nil
}

// Close seals the current batch. Fails with ErrInvalidBatchState unless a
// batch is open.
func (c *Controller) Close() (uint64, error) {
	c.mu.Lock()
	if c.phase != PhaseOpen {
		phase := c.phase
		c.mu.Unlock()
		return 0, fmt.Errorf("%w: cannot close in phase %s", protocol.ErrInvalidBatchState, phase)
	}
	c.phase = PhaseClosed
	id := c.id
	c.mu.Unlock()

	c.sink.Emit(protocol.NewEvent(protocol.EventBatchClosed, c.clock(), protocol.BatchChange{BatchID: id}))
	return id, nil
}

// RequireAcceptingSubmissions checks that the current batch is open. The
// returned batch id is the only one accepting writes.
func (c *Controller) RequireAcceptingSubmissions() (uint64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.phase != PhaseOpen {
		return 0, fmt.Errorf("%w: no open batch", protocol.ErrInvalidBatchState)
	}
	return c.id, nil
}

// RequireDecryptable checks that id names the current batch and that it is
// closed. Older batches are not decryptable through this interface, and an
// open batch must be closed first.
func (c *Controller) RequireDecryptable(id uint64) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.phase == PhaseNone || id != c.id {
		return fmt.Errorf("%w: batch %d is not current", protocol.ErrInvalidBatch, id)
	}
	if c.phase == PhaseOpen {
		return fmt.Errorf("%w: batch %d", protocol.ErrBatchStillOpen, id)
	}
	return nil
}
