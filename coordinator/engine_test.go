package coordinator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhuffman-92808/Game-Of-Life-Fhe/batch"
	"github.com/rhuffman-92808/Game-Of-Life-Fhe/crypto"
	"github.com/rhuffman-92808/Game-Of-Life-Fhe/oracle"
	"github.com/rhuffman-92808/Game-Of-Life-Fhe/protocol"
)

// manualClock lets tests advance time deterministically.
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recordingSink struct {
	mu     sync.Mutex
	events []protocol.Event
}

func (s *recordingSink) Emit(ev protocol.Event) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
}

func (s *recordingSink) kinds() []protocol.EventKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	kinds := make([]protocol.EventKind, len(s.events))
	for i, ev := range s.events {
		kinds[i] = ev.Kind
	}
	return kinds
}

type fixture struct {
	engine   *Engine
	oracle   *oracle.SigningOracle
	clock    *manualClock
	sink     *recordingSink
	owner    crypto.Address
	provider crypto.Address
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	signingOracle, err := oracle.NewSigningOracle()
	require.NoError(t, err)

	ownerPub, _, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	providerPub, _, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	clock := &manualClock{now: time.Unix(1_700_000_000, 0)}
	sink := &recordingSink{}
	owner := crypto.AddressFromPublicKey(ownerPub)

	engine, err := New(EngineConfig{
		Protocol: protocol.DefaultConfig(),
		Owner:    owner,
		Oracle:   signingOracle,
		Verifier: oracle.NewEd25519Verifier(signingOracle.VerificationKey()),
		Sink:     sink,
		Clock:    clock.Now,
	})
	require.NoError(t, err)

	provider := crypto.AddressFromPublicKey(providerPub)
	require.NoError(t, engine.AddProvider(owner, provider))

	return &fixture{
		engine:   engine,
		oracle:   signingOracle,
		clock:    clock,
		sink:     sink,
		owner:    owner,
		provider: provider,
	}
}

func (f *fixture) encrypt(t *testing.T, value byte) crypto.Handle {
	t.Helper()
	handle, err := f.oracle.Encrypt(value)
	require.NoError(t, err)
	return handle
}

func (f *fixture) submit(t *testing.T, x, y int, value byte) {
	t.Helper()
	require.NoError(t, f.engine.SubmitCell(f.provider, x, y, f.encrypt(t, value)))
	f.clock.Advance(f.engine.Cooldown(protocol.ActionSubmit))
}

func TestSubmitRejectsOutOfBounds(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.OpenBatch(f.owner)
	require.NoError(t, err)

	handle := f.encrypt(t, 1)
	for _, coords := range [][2]int{{-1, 0}, {0, -1}, {10, 0}, {0, 10}} {
		err := f.engine.SubmitCell(f.provider, coords[0], coords[1], handle)
		assert.ErrorIs(t, err, protocol.ErrInvalidCoordinates, "coords %v", coords)
	}

	// Board untouched by the rejected writes.
	for _, slot := range f.engine.BoardSnapshot(0) {
		assert.True(t, slot.IsZero())
	}
}

func TestSubmitRequiresProvider(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.OpenBatch(f.owner)
	require.NoError(t, err)

	outsiderPub, _, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	outsider := crypto.AddressFromPublicKey(outsiderPub)

	handle := f.encrypt(t, 1)
	assert.ErrorIs(t, f.engine.SubmitCell(outsider, 0, 0, handle), protocol.ErrUnauthorized)

	// Granting provider status makes the identical call succeed.
	require.NoError(t, f.engine.AddProvider(f.owner, outsider))
	assert.NoError(t, f.engine.SubmitCell(outsider, 0, 0, handle))
}

func TestSubmitCooldown(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.OpenBatch(f.owner)
	require.NoError(t, err)

	require.NoError(t, f.engine.SubmitCell(f.provider, 0, 0, f.encrypt(t, 1)))

	err = f.engine.SubmitCell(f.provider, 0, 1, f.encrypt(t, 1))
	assert.ErrorIs(t, err, protocol.ErrCooldownActive)

	f.clock.Advance(f.engine.Cooldown(protocol.ActionSubmit))
	assert.NoError(t, f.engine.SubmitCell(f.provider, 0, 1, f.encrypt(t, 1)))
}

func TestSubmitGates(t *testing.T) {
	f := newFixture(t)

	// No open batch yet.
	err := f.engine.SubmitCell(f.provider, 0, 0, f.encrypt(t, 1))
	assert.ErrorIs(t, err, protocol.ErrInvalidBatchState)

	_, err = f.engine.OpenBatch(f.owner)
	require.NoError(t, err)

	// Paused blocks submission but not administration.
	require.NoError(t, f.engine.SetPaused(f.owner, true))
	err = f.engine.SubmitCell(f.provider, 0, 0, f.encrypt(t, 1))
	assert.ErrorIs(t, err, protocol.ErrSystemPaused)
	require.NoError(t, f.engine.AddProvider(f.owner, f.provider))
	require.NoError(t, f.engine.SetPaused(f.owner, false))

	assert.NoError(t, f.engine.SubmitCell(f.provider, 0, 0, f.encrypt(t, 1)))
}

func TestResubmissionOverwritesSlot(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.OpenBatch(f.owner)
	require.NoError(t, err)

	first := f.encrypt(t, 0)
	second := f.encrypt(t, 1)

	require.NoError(t, f.engine.SubmitCell(f.provider, 4, 4, first))
	f.clock.Advance(f.engine.Cooldown(protocol.ActionSubmit))
	require.NoError(t, f.engine.SubmitCell(f.provider, 4, 4, second))

	got, err := f.engine.Cell(0, 4, 4)
	require.NoError(t, err)
	assert.Equal(t, second, got)
}

func TestRequestDecryptionGates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Nothing decryptable before the first batch.
	_, err := f.engine.RequestDecryption(ctx, f.provider, 0)
	assert.ErrorIs(t, err, protocol.ErrInvalidBatch)

	_, err = f.engine.OpenBatch(f.owner)
	require.NoError(t, err)

	_, err = f.engine.RequestDecryption(ctx, f.provider, 0)
	assert.ErrorIs(t, err, protocol.ErrBatchStillOpen)

	// Only the current batch id is accepted.
	_, err = f.engine.RequestDecryption(ctx, f.provider, 5)
	assert.ErrorIs(t, err, protocol.ErrInvalidBatch)

	_, err = f.engine.CloseBatch(f.owner)
	require.NoError(t, err)

	requestID, err := f.engine.RequestDecryption(ctx, f.provider, 0)
	require.NoError(t, err)
	assert.NotEmpty(t, requestID)

	pending, ok := f.engine.Context(requestID)
	require.True(t, ok)
	assert.Equal(t, uint64(0), pending.BatchID)
	assert.False(t, pending.Processed)
}

func TestRequestDecryptionCooldown(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.OpenBatch(f.owner)
	require.NoError(t, err)
	_, err = f.engine.CloseBatch(f.owner)
	require.NoError(t, err)

	first, err := f.engine.RequestDecryption(ctx, f.provider, 0)
	require.NoError(t, err)

	_, err = f.engine.RequestDecryption(ctx, f.provider, 0)
	assert.ErrorIs(t, err, protocol.ErrCooldownActive)

	f.clock.Advance(f.engine.Cooldown(protocol.ActionDecrypt))
	second, err := f.engine.RequestDecryption(ctx, f.provider, 0)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestCallbackUnknownRequest(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.HandleDecryptionCallback("never-issued", nil, nil)
	assert.ErrorIs(t, err, protocol.ErrUnknownRequest)
}

func TestCallbackReplayRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.OpenBatch(f.owner)
	require.NoError(t, err)
	f.submit(t, 0, 0, 1)
	_, err = f.engine.CloseBatch(f.owner)
	require.NoError(t, err)

	requestID, err := f.engine.RequestDecryption(ctx, f.provider, 0)
	require.NoError(t, err)

	plaintexts, proof, err := f.oracle.Fulfill(requestID)
	require.NoError(t, err)

	_, err = f.engine.HandleDecryptionCallback(requestID, plaintexts, proof)
	require.NoError(t, err)

	// The identical, validly-proven callback is rejected as a replay.
	_, err = f.engine.HandleDecryptionCallback(requestID, plaintexts, proof)
	assert.ErrorIs(t, err, protocol.ErrReplayDetected)
}

func TestCallbackStateMismatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.OpenBatch(f.owner)
	require.NoError(t, err)
	f.submit(t, 0, 0, 1)
	_, err = f.engine.CloseBatch(f.owner)
	require.NoError(t, err)

	requestID, err := f.engine.RequestDecryption(ctx, f.provider, 0)
	require.NoError(t, err)

	plaintexts, proof, err := f.oracle.Fulfill(requestID)
	require.NoError(t, err)

	// Force a mutation behind the batch controller's back. Normal operation
	// prevents this (the batch is closed), so reach into the board directly.
	require.NoError(t, f.engine.board.Set(0, 9, 9, f.encrypt(t, 1)))

	_, err = f.engine.HandleDecryptionCallback(requestID, plaintexts, proof)
	assert.ErrorIs(t, err, protocol.ErrStateMismatch)

	// Context must still be pending after the failed gate.
	pending, ok := f.engine.Context(requestID)
	require.True(t, ok)
	assert.False(t, pending.Processed)
}

func TestCallbackInvalidProof(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.OpenBatch(f.owner)
	require.NoError(t, err)
	f.submit(t, 0, 0, 1)
	_, err = f.engine.CloseBatch(f.owner)
	require.NoError(t, err)

	requestID, err := f.engine.RequestDecryption(ctx, f.provider, 0)
	require.NoError(t, err)

	plaintexts, _, err := f.oracle.Fulfill(requestID)
	require.NoError(t, err)

	// Proof from a different oracle key.
	imposter, err := oracle.NewSigningOracle()
	require.NoError(t, err)
	imposterID, err := imposter.RequestDecryption(ctx, f.engine.BoardSnapshot(0))
	require.NoError(t, err)
	_, forgedProof, err := imposter.Fulfill(imposterID)
	require.NoError(t, err)

	_, err = f.engine.HandleDecryptionCallback(requestID, plaintexts, forgedProof)
	assert.ErrorIs(t, err, protocol.ErrInvalidProof)

	pending, ok := f.engine.Context(requestID)
	require.True(t, ok)
	assert.False(t, pending.Processed)

	// Valid retry after the rejected callback succeeds: failed gates leave
	// the context reusable.
	plaintexts, proof, err := f.oracle.Fulfill(requestID)
	require.NoError(t, err)
	outcome, err := f.engine.HandleDecryptionCallback(requestID, plaintexts, proof)
	require.NoError(t, err)
	assert.Equal(t, 1, outcome.LiveCells)
}

func TestCallbackPlaintextLength(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.OpenBatch(f.owner)
	require.NoError(t, err)
	_, err = f.engine.CloseBatch(f.owner)
	require.NoError(t, err)

	requestID, err := f.engine.RequestDecryption(ctx, f.provider, 0)
	require.NoError(t, err)

	// Correctly signed but truncated plaintext sequence.
	short := []byte{1, 0, 1}
	proof, err := f.oracle.SignProof(requestID, short)
	require.NoError(t, err)

	_, err = f.engine.HandleDecryptionCallback(requestID, short, proof)
	assert.ErrorIs(t, err, protocol.ErrInvalidProof)
}

func TestEndToEndLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.engine.OpenBatch(f.owner)
	require.NoError(t, err)
	require.Equal(t, uint64(0), id)

	// One live cell at (0,0), one dead at (0,1), 98 slots never submitted.
	f.submit(t, 0, 0, 1)
	f.submit(t, 0, 1, 0)

	_, err = f.engine.CloseBatch(f.owner)
	require.NoError(t, err)

	requestID, err := f.engine.RequestDecryption(ctx, f.provider, 0)
	require.NoError(t, err)

	plaintexts, proof, err := f.oracle.Fulfill(requestID)
	require.NoError(t, err)
	require.Len(t, plaintexts, 100)

	outcome, err := f.engine.HandleDecryptionCallback(requestID, plaintexts, proof)
	require.NoError(t, err)
	assert.Equal(t, 1, outcome.LiveCells)
	assert.Equal(t, uint64(0), outcome.BatchID)

	pending, ok := f.engine.Context(requestID)
	require.True(t, ok)
	assert.True(t, pending.Processed)

	stored, ok := f.engine.Outcome(requestID)
	require.True(t, ok)
	assert.Equal(t, outcome, stored)

	// Second identical callback fails closed.
	_, err = f.engine.HandleDecryptionCallback(requestID, plaintexts, proof)
	assert.ErrorIs(t, err, protocol.ErrReplayDetected)

	kinds := f.sink.kinds()
	assert.Contains(t, kinds, protocol.EventBatchOpened)
	assert.Contains(t, kinds, protocol.EventCellSubmitted)
	assert.Contains(t, kinds, protocol.EventBatchClosed)
	assert.Contains(t, kinds, protocol.EventDecryptionRequested)
	assert.Contains(t, kinds, protocol.EventDecryptionCompleted)
}

func TestCallbacksArriveInAnyOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Batch 0: two live cells.
	_, err := f.engine.OpenBatch(f.owner)
	require.NoError(t, err)
	f.submit(t, 0, 0, 1)
	f.submit(t, 1, 0, 1)
	_, err = f.engine.CloseBatch(f.owner)
	require.NoError(t, err)
	request0, err := f.engine.RequestDecryption(ctx, f.provider, 0)
	require.NoError(t, err)

	// Batch 1: one live cell.
	_, err = f.engine.OpenBatch(f.owner)
	require.NoError(t, err)
	f.submit(t, 5, 5, 1)
	_, err = f.engine.CloseBatch(f.owner)
	require.NoError(t, err)
	f.clock.Advance(f.engine.Cooldown(protocol.ActionDecrypt))
	request1, err := f.engine.RequestDecryption(ctx, f.provider, 1)
	require.NoError(t, err)

	// Fulfill in reverse order; correlation is by request id alone.
	outcome1, err := f.oracle.Deliver(request1, f.engine)
	require.NoError(t, err)
	assert.Equal(t, 1, outcome1.LiveCells)

	outcome0, err := f.oracle.Deliver(request0, f.engine)
	require.NoError(t, err)
	assert.Equal(t, 2, outcome0.LiveCells)
}

func TestBatchRolloverKeepsHistoryReadable(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.OpenBatch(f.owner)
	require.NoError(t, err)
	handle := f.encrypt(t, 1)
	require.NoError(t, f.engine.SubmitCell(f.provider, 2, 2, handle))
	_, err = f.engine.CloseBatch(f.owner)
	require.NoError(t, err)

	_, err = f.engine.OpenBatch(f.owner)
	require.NoError(t, err)

	// The old batch's board is still readable after rollover.
	got, err := f.engine.Cell(0, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, handle, got)

	// But no longer decryptable through the current-batch interface.
	_, err = f.engine.RequestDecryption(context.Background(), f.provider, 0)
	assert.ErrorIs(t, err, protocol.ErrInvalidBatch)

	id, phase := f.engine.CurrentBatch()
	assert.Equal(t, uint64(1), id)
	assert.Equal(t, batch.PhaseOpen, phase)
}

func TestPausedBlocksCallbackButStaysRetryable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.OpenBatch(f.owner)
	require.NoError(t, err)
	f.submit(t, 0, 0, 1)
	_, err = f.engine.CloseBatch(f.owner)
	require.NoError(t, err)

	requestID, err := f.engine.RequestDecryption(ctx, f.provider, 0)
	require.NoError(t, err)

	plaintexts, proof, err := f.oracle.Fulfill(requestID)
	require.NoError(t, err)

	require.NoError(t, f.engine.SetPaused(f.owner, true))
	_, err = f.engine.HandleDecryptionCallback(requestID, plaintexts, proof)
	assert.ErrorIs(t, err, protocol.ErrSystemPaused)

	require.NoError(t, f.engine.SetPaused(f.owner, false))
	outcome, err := f.engine.HandleDecryptionCallback(requestID, plaintexts, proof)
	require.NoError(t, err)
	assert.Equal(t, 1, outcome.LiveCells)
}

func TestSetCooldown(t *testing.T) {
	f := newFixture(t)

	assert.ErrorIs(t, f.engine.SetCooldown(f.provider, protocol.ActionSubmit, time.Second), protocol.ErrUnauthorized)

	require.NoError(t, f.engine.SetCooldown(f.owner, protocol.ActionSubmit, time.Minute))
	assert.Equal(t, time.Minute, f.engine.Cooldown(protocol.ActionSubmit))

	assert.Error(t, f.engine.SetCooldown(f.owner, "bogus", time.Second))
	assert.Error(t, f.engine.SetCooldown(f.owner, protocol.ActionSubmit, -time.Second))
}

func TestAsyncOracleDelivery(t *testing.T) {
	signingOracle, err := oracle.NewSigningOracle()
	require.NoError(t, err)

	ownerPub, _, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	owner := crypto.AddressFromPublicKey(ownerPub)

	clock := &manualClock{now: time.Unix(1_700_000_000, 0)}
	async := &oracle.AsyncOracle{Inner: signingOracle, Delay: 10 * time.Millisecond}

	engine, err := New(EngineConfig{
		Owner:    owner,
		Oracle:   async,
		Verifier: oracle.NewEd25519Verifier(signingOracle.VerificationKey()),
		Clock:    clock.Now,
	})
	require.NoError(t, err)
	async.Handler = engine

	provPub, _, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	provider := crypto.AddressFromPublicKey(provPub)
	require.NoError(t, engine.AddProvider(owner, provider))

	_, err = engine.OpenBatch(owner)
	require.NoError(t, err)
	handle, err := signingOracle.Encrypt(1)
	require.NoError(t, err)
	require.NoError(t, engine.SubmitCell(provider, 0, 0, handle))
	_, err = engine.CloseBatch(owner)
	require.NoError(t, err)

	requestID, err := engine.RequestDecryption(context.Background(), provider, 0)
	require.NoError(t, err)

	async.Wait()

	outcome, ok := engine.Outcome(requestID)
	require.True(t, ok)
	assert.Equal(t, 1, outcome.LiveCells)
}
