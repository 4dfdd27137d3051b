package access

import (
	"fmt"
	"sync"
	"time"

	"github.com/rhuffman-92808/Game-Of-Life-Fhe/crypto"
	"github.com/rhuffman-92808/Game-Of-Life-Fhe/protocol"
)

type limitKey struct {
	actor crypto.Address
	kind  protocol.ActionKind
}

// RateLimiter tracks the last successful action timestamp per (actor, action
// kind) and rejects actions arriving before the cooldown has elapsed.
// Cooldown duration is supplied by the caller on each check, so an owner
// changing the configured cooldown never rewrites already-recorded
// timestamps.
type RateLimiter struct {
	mu   sync.Mutex
	last map[limitKey]time.Time
}

// NewRateLimiter creates an empty limiter.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{last: make(map[limitKey]time.Time)}
}

// Check fails with ErrCooldownActive if now is earlier than the actor's last
// recorded action of this kind plus cooldown. It does not record anything,
// so callers can order it before validations that must leave no state
// behind on failure.
func (l *RateLimiter) Check(actor crypto.Address, kind protocol.ActionKind, cooldown time.Duration, now time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	last, ok := l.last[limitKey{actor, kind}]
	if !ok {
		return nil
	}
	if now.Before(last.Add(cooldown)) {
		return fmt.Errorf("%w: %s retry after %s", protocol.ErrCooldownActive, kind, last.Add(cooldown).Sub(now))
	}
	return nil
}

// Record stores now as the actor's last action timestamp of this kind.
func (l *RateLimiter) Record(actor crypto.Address, kind protocol.ActionKind, now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.last[limitKey{actor, kind}] = now
}

// CheckAndRecord admits and records the action in one step.
func (l *RateLimiter) CheckAndRecord(actor crypto.Address, kind protocol.ActionKind, cooldown time.Duration, now time.Time) error {
	if err := l.Check(actor, kind, cooldown, now); err != nil {
		return err
	}
	l.Record(actor, kind, now)
	return nil
}
