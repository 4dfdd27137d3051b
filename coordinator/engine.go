// Package coordinator wires the access registry, rate limiter, batch
// controller, and board behind a single gated façade, and implements the
// decryption request/callback protocol: commitment snapshots on request,
// replay and consistency and proof gates on callback, exactly-once
// finalization per request id.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rhuffman-92808/Game-Of-Life-Fhe/access"
	"github.com/rhuffman-92808/Game-Of-Life-Fhe/batch"
	"github.com/rhuffman-92808/Game-Of-Life-Fhe/board"
	"github.com/rhuffman-92808/Game-Of-Life-Fhe/crypto"
	"github.com/rhuffman-92808/Game-Of-Life-Fhe/protocol"
)

// DecryptionContext is the stored bridge between a decryption request and
// its callback. StateHash is immutable once created; Processed flips to true
// exactly once. Contexts are never deleted, which is what makes the replay
// guard permanent.
type DecryptionContext struct {
	BatchID   uint64            `json:"batch_id"`
	StateHash crypto.Commitment `json:"state_hash"`
	Processed bool              `json:"processed"`
}

// EngineConfig collects the engine's injected collaborators.
type EngineConfig struct {
	Protocol *protocol.Config
	Owner    crypto.Address
	Oracle   protocol.DecryptionOracle
	Verifier protocol.ProofVerifier
	Sink     protocol.EventSink
	Clock    protocol.Clock // defaults to time.Now
	Log      *slog.Logger   // defaults to slog.Default
}

// Engine executes the coordination protocol. External calls run to
// completion one at a time under a single lock, so every gate sequence is
// atomic; the decryption protocol's asynchrony lives entirely in the stored
// contexts, never in a suspended call.
type Engine struct {
	cfg      *protocol.Config
	oracle   protocol.DecryptionOracle
	verifier protocol.ProofVerifier
	sink     protocol.EventSink
	clock    protocol.Clock
	log      *slog.Logger

	registry *access.Registry
	limiter  *access.RateLimiter
	batches  *batch.Controller
	board    *board.Board

	mu              sync.Mutex
	submitCooldown  time.Duration
	decryptCooldown time.Duration
	contexts        map[protocol.RequestID]*DecryptionContext
	outcomes        map[protocol.RequestID]*protocol.DecryptionOutcome
}

// New creates an engine from the given configuration.
func New(cfg EngineConfig) (*Engine, error) {
	if cfg.Protocol == nil {
		cfg.Protocol = protocol.DefaultConfig()
	}
	if err := cfg.Protocol.Validate(); err != nil {
		return nil, fmt.Errorf("invalid protocol config: %w", err)
	}
	if cfg.Oracle == nil {
		return nil, fmt.Errorf("decryption oracle is required")
	}
	if cfg.Verifier == nil {
		return nil, fmt.Errorf("proof verifier is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	if cfg.Sink == nil {
		cfg.Sink = noopSink{}
	}

	return &Engine{
		cfg:             cfg.Protocol,
		oracle:          cfg.Oracle,
		verifier:        cfg.Verifier,
		sink:            cfg.Sink,
		clock:           cfg.Clock,
		log:             cfg.Log,
		registry:        access.NewRegistry(cfg.Owner, cfg.Clock, cfg.Sink),
		limiter:         access.NewRateLimiter(),
		batches:         batch.NewController(cfg.Clock, cfg.Sink),
		board:           board.New(cfg.Protocol.Width, cfg.Protocol.Height),
		submitCooldown:  cfg.Protocol.SubmitCooldown,
		decryptCooldown: cfg.Protocol.DecryptCooldown,
		contexts:        make(map[protocol.RequestID]*DecryptionContext),
		outcomes:        make(map[protocol.RequestID]*protocol.DecryptionOutcome),
	}, nil
}

type noopSink struct{}

func (noopSink) Emit(protocol.Event) {}

// Config returns the protocol configuration served to clients.
func (e *Engine) Config() *protocol.Config {
	return e.cfg
}

// Owner returns the administrative address.
func (e *Engine) Owner() crypto.Address {
	return e.registry.Owner()
}

// --- administration (owner-only, available while paused) ---

// AddProvider allowlists a submission address.
func (e *Engine) AddProvider(caller, addr crypto.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registry.AddProvider(caller, addr)
}

// RemoveProvider revokes a submission address.
func (e *Engine) RemoveProvider(caller, addr crypto.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registry.RemoveProvider(caller, addr)
}

// SetPaused flips the global pause flag.
func (e *Engine) SetPaused(caller crypto.Address, paused bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registry.SetPaused(caller, paused)
}

// SetCooldown changes the cooldown for one action kind. Not retroactive:
// already-recorded timestamps keep their meaning, only future checks use the
// new duration.
func (e *Engine) SetCooldown(caller crypto.Address, kind protocol.ActionKind, cooldown time.Duration) error {
	if err := e.registry.RequireOwner(caller); err != nil {
		return err
	}
	if !kind.Valid() || cooldown < 0 {
		return fmt.Errorf("invalid cooldown setting: action %q, duration %s", kind, cooldown)
	}

	e.mu.Lock()
	switch kind {
	case protocol.ActionSubmit:
		e.submitCooldown = cooldown
	case protocol.ActionDecrypt:
		e.decryptCooldown = cooldown
	}
	e.mu.Unlock()

	e.sink.Emit(protocol.NewEvent(protocol.EventCooldownSet, e.clock(), protocol.CooldownChange{Action: kind, Cooldown: cooldown}))
	return nil
}

// OpenBatch starts the next batch. Owner-only, requires not paused.
func (e *Engine) OpenBatch(caller crypto.Address) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.registry.RequireOwner(caller); err != nil {
		return 0, err
	}
	if err := e.registry.RequireActive(); err != nil {
		return 0, err
	}
	return e.batches.Open()
}

// CloseBatch seals the current batch. Owner-only, requires not paused.
func (e *Engine) CloseBatch(caller crypto.Address) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.registry.RequireOwner(caller); err != nil {
		return 0, err
	}
	if err := e.registry.RequireActive(); err != nil {
		return 0, err
	}
	return e.batches.Close()
}

// --- submissions ---

// SubmitCell writes an encrypted cell into the current open batch. Gates, in
// order: system not paused, caller is a provider, a batch is open, the
// coordinates are in bounds, and the submission cooldown has elapsed. The
// cooldown timestamp is recorded only after every other gate has passed, so
// a rejected call leaves no state behind.
func (e *Engine) SubmitCell(actor crypto.Address, x, y int, handle crypto.Handle) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.registry.RequireActive(); err != nil {
		return err
	}
	if err := e.registry.RequireProvider(actor); err != nil {
		return err
	}

	batchID, err := e.batches.RequireAcceptingSubmissions()
	if err != nil {
		return err
	}
	if err := e.board.CheckBounds(x, y); err != nil {
		return err
	}

	now := e.clock()
	if err := e.limiter.Check(actor, protocol.ActionSubmit, e.submitCooldown, now); err != nil {
		return err
	}

	if err := e.board.Set(batchID, x, y, handle); err != nil {
		return err
	}
	e.limiter.Record(actor, protocol.ActionSubmit, now)

	e.sink.Emit(protocol.NewEvent(protocol.EventCellSubmitted, now, protocol.CellSubmission{
		BatchID:  batchID,
		Provider: actor,
		X:        x,
		Y:        y,
		Handle:   handle,
	}))
	e.log.Debug("cell submitted", "batch", batchID, "provider", actor.Hex(), "x", x, "y", y)
	return nil
}

// --- decryption protocol ---

// RequestDecryption asks the oracle to reveal a closed batch. Callable by
// anyone, subject to the decryption cooldown and the pause flag. The batch
// must be the current one and closed. On success the commitment over the
// batch's ordered handles is stored alongside the oracle's request id; the
// cooldown is recorded only after the oracle accepted the dispatch.
func (e *Engine) RequestDecryption(ctx context.Context, actor crypto.Address, batchID uint64) (protocol.RequestID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.registry.RequireActive(); err != nil {
		return "", err
	}
	if err := e.batches.RequireDecryptable(batchID); err != nil {
		return "", err
	}

	now := e.clock()
	if err := e.limiter.Check(actor, protocol.ActionDecrypt, e.decryptCooldown, now); err != nil {
		return "", err
	}

	handles := e.board.Snapshot(batchID)
	stateHash := crypto.BatchCommitment(e.cfg.InstanceID, batchID, handles)

	requestID, err := e.oracle.RequestDecryption(ctx, handles)
	if err != nil {
		return "", fmt.Errorf("oracle dispatch: %w", err)
	}
	if _, exists := e.contexts[requestID]; exists {
		// The oracle contract requires previously-unused identifiers.
		return "", fmt.Errorf("oracle returned duplicate request id %q", requestID)
	}

	e.contexts[requestID] = &DecryptionContext{
		BatchID:   batchID,
		StateHash: stateHash,
	}
	e.limiter.Record(actor, protocol.ActionDecrypt, now)

	e.sink.Emit(protocol.NewEvent(protocol.EventDecryptionRequested, now, protocol.DecryptionRequest{
		RequestID: requestID,
		BatchID:   batchID,
		StateHash: stateHash,
	}))
	e.log.Info("decryption requested", "request", requestID, "batch", batchID, "state_hash", stateHash.String())
	return requestID, nil
}

// HandleDecryptionCallback fulfills a pending request. Hard gates, each
// aborting with no state change: pause flag, unknown request id, replay of a
// processed context, commitment mismatch against the batch's current
// handles, proof verification, and plaintext length. Only after all gates
// pass is the context marked processed, so a failed callback can be retried
// by the oracle.
func (e *Engine) HandleDecryptionCallback(requestID protocol.RequestID, plaintexts []byte, proof crypto.Signature) (*protocol.DecryptionOutcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.registry.RequireActive(); err != nil {
		return nil, err
	}

	pending, ok := e.contexts[requestID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", protocol.ErrUnknownRequest, requestID)
	}
	if pending.Processed {
		return nil, fmt.Errorf("%w: request %q already processed", protocol.ErrReplayDetected, requestID)
	}

	handles := e.board.Snapshot(pending.BatchID)
	currentHash := crypto.BatchCommitment(e.cfg.InstanceID, pending.BatchID, handles)
	if currentHash != pending.StateHash {
		return nil, fmt.Errorf("%w: batch %d changed since request %q", protocol.ErrStateMismatch, pending.BatchID, requestID)
	}

	if err := e.verifier.Verify(requestID, plaintexts, proof); err != nil {
		return nil, err
	}

	if len(plaintexts) != e.cfg.NumCells() {
		return nil, fmt.Errorf("%w: got %d plaintexts, want %d", protocol.ErrInvalidProof, len(plaintexts), e.cfg.NumCells())
	}

	liveCells := 0
	for _, value := range plaintexts {
		if value == e.cfg.AliveValue {
			liveCells++
		}
	}

	// Terminal transition; the replay gate above makes it exactly-once.
	pending.Processed = true

	outcome := &protocol.DecryptionOutcome{
		RequestID:  requestID,
		BatchID:    pending.BatchID,
		LiveCells:  liveCells,
		Plaintexts: plaintexts,
	}
	e.outcomes[requestID] = outcome

	e.sink.Emit(protocol.NewEvent(protocol.EventDecryptionCompleted, e.clock(), protocol.DecryptionCompletion{
		RequestID: requestID,
		BatchID:   pending.BatchID,
		LiveCells: liveCells,
	}))
	e.log.Info("decryption completed", "request", requestID, "batch", pending.BatchID, "live_cells", liveCells)
	return outcome, nil
}

// --- read-only queries ---

// IsProvider reports allowlist membership.
func (e *Engine) IsProvider(addr crypto.Address) bool {
	return e.registry.IsProvider(addr)
}

// IsPaused reports the pause flag.
func (e *Engine) IsPaused() bool {
	return e.registry.IsPaused()
}

// Providers returns the current allowlist.
func (e *Engine) Providers() []crypto.Address {
	return e.registry.Providers()
}

// CurrentBatch returns the current batch id and phase.
func (e *Engine) CurrentBatch() (uint64, batch.Phase) {
	return e.batches.Current()
}

// BoardSnapshot returns a batch's ordered handle sequence.
func (e *Engine) BoardSnapshot(batchID uint64) []crypto.Handle {
	return e.board.Snapshot(batchID)
}

// Cell reads a single board slot.
func (e *Engine) Cell(batchID uint64, x, y int) (crypto.Handle, error) {
	return e.board.Get(batchID, x, y)
}

// Cooldown returns the configured cooldown for an action kind.
func (e *Engine) Cooldown(kind protocol.ActionKind) time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	if kind == protocol.ActionSubmit {
		return e.submitCooldown
	}
	return e.decryptCooldown
}

// Context returns a copy of a stored decryption context.
func (e *Engine) Context(requestID protocol.RequestID) (DecryptionContext, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	context, ok := e.contexts[requestID]
	if !ok {
		return DecryptionContext{}, false
	}
	return *context, true
}

// Outcome returns the finalized result of a processed request.
func (e *Engine) Outcome(requestID protocol.RequestID) (*protocol.DecryptionOutcome, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	outcome, ok := e.outcomes[requestID]
	return outcome, ok
}
