package access

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhuffman-92808/Game-Of-Life-Fhe/crypto"
	"github.com/rhuffman-92808/Game-Of-Life-Fhe/protocol"
)

type recordingSink struct {
	events []protocol.Event
}

func (s *recordingSink) Emit(ev protocol.Event) {
	s.events = append(s.events, ev)
}

func newTestRegistry(t *testing.T) (*Registry, crypto.Address, *recordingSink) {
	t.Helper()
	pub, _, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	owner := crypto.AddressFromPublicKey(pub)
	sink := &recordingSink{}
	return NewRegistry(owner, time.Now, sink), owner, sink
}

func randomAddress(t *testing.T) crypto.Address {
	t.Helper()
	pub, _, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	return crypto.AddressFromPublicKey(pub)
}

func TestProviderLifecycle(t *testing.T) {
	registry, owner, sink := newTestRegistry(t)
	provider := randomAddress(t)

	assert.False(t, registry.IsProvider(provider))

	require.NoError(t, registry.AddProvider(owner, provider))
	assert.True(t, registry.IsProvider(provider))

	require.NoError(t, registry.RemoveProvider(owner, provider))
	assert.False(t, registry.IsProvider(provider))

	require.Len(t, sink.events, 2)
	assert.Equal(t, protocol.EventProviderAdded, sink.events[0].Kind)
	assert.Equal(t, protocol.EventProviderRemoved, sink.events[1].Kind)
}

func TestNonOwnerAdministrationRejected(t *testing.T) {
	registry, _, _ := newTestRegistry(t)
	intruder := randomAddress(t)

	assert.ErrorIs(t, registry.AddProvider(intruder, randomAddress(t)), protocol.ErrUnauthorized)
	assert.ErrorIs(t, registry.RemoveProvider(intruder, randomAddress(t)), protocol.ErrUnauthorized)
	assert.ErrorIs(t, registry.SetPaused(intruder, true), protocol.ErrUnauthorized)
}

func TestPauseGateAndOwnerBypass(t *testing.T) {
	registry, owner, _ := newTestRegistry(t)

	require.NoError(t, registry.SetPaused(owner, true))
	assert.True(t, registry.IsPaused())
	assert.ErrorIs(t, registry.RequireActive(), protocol.ErrSystemPaused)

	// Owner administration remains available while paused.
	require.NoError(t, registry.AddProvider(owner, randomAddress(t)))
	require.NoError(t, registry.SetPaused(owner, false))
	assert.NoError(t, registry.RequireActive())
}

func TestRateLimiterCooldown(t *testing.T) {
	limiter := NewRateLimiter()
	actor := randomAddress(t)
	start := time.Unix(1000, 0)
	cooldown := 10 * time.Second

	require.NoError(t, limiter.CheckAndRecord(actor, protocol.ActionSubmit, cooldown, start))

	err := limiter.CheckAndRecord(actor, protocol.ActionSubmit, cooldown, start.Add(5*time.Second))
	assert.ErrorIs(t, err, protocol.ErrCooldownActive)

	// A rejected attempt must not refresh the timestamp.
	require.NoError(t, limiter.CheckAndRecord(actor, protocol.ActionSubmit, cooldown, start.Add(10*time.Second)))
}

func TestRateLimiterKindsIndependent(t *testing.T) {
	limiter := NewRateLimiter()
	actor := randomAddress(t)
	now := time.Unix(1000, 0)

	require.NoError(t, limiter.CheckAndRecord(actor, protocol.ActionSubmit, time.Minute, now))
	// Decryption cooldown is tracked separately from submission.
	assert.NoError(t, limiter.CheckAndRecord(actor, protocol.ActionDecrypt, time.Minute, now))
}

func TestRateLimiterActorsIndependent(t *testing.T) {
	limiter := NewRateLimiter()
	now := time.Unix(1000, 0)

	require.NoError(t, limiter.CheckAndRecord(randomAddress(t), protocol.ActionSubmit, time.Minute, now))
	assert.NoError(t, limiter.CheckAndRecord(randomAddress(t), protocol.ActionSubmit, time.Minute, now))
}

func TestRateLimiterCooldownChangeNotRetroactive(t *testing.T) {
	limiter := NewRateLimiter()
	actor := randomAddress(t)
	start := time.Unix(1000, 0)

	require.NoError(t, limiter.CheckAndRecord(actor, protocol.ActionSubmit, 10*time.Second, start))

	// Shortening the cooldown applies to the next check against the same
	// recorded timestamp.
	assert.NoError(t, limiter.Check(actor, protocol.ActionSubmit, 2*time.Second, start.Add(3*time.Second)))
	assert.ErrorIs(t, limiter.Check(actor, protocol.ActionSubmit, 30*time.Second, start.Add(3*time.Second)), protocol.ErrCooldownActive)
}
