// Package access gates every mutating operation of the coordinator: owner
// administration, the provider allowlist, the global pause flag, and
// per-actor cooldowns.
package access

import (
	"sync"

	"github.com/rhuffman-92808/Game-Of-Life-Fhe/crypto"
	"github.com/rhuffman-92808/Game-Of-Life-Fhe/protocol"
)

// Registry owns the provider allowlist and the pause flag. All mutations are
// owner-only; queries are open. Membership has no expiry, a provider stays
// authorized until explicitly removed.
type Registry struct {
	owner crypto.Address
	clock protocol.Clock
	sink  protocol.EventSink

	mu        sync.RWMutex
	providers map[crypto.Address]struct{}
	paused    bool
}

// NewRegistry creates a registry owned by the given address.
func NewRegistry(owner crypto.Address, clock protocol.Clock, sink protocol.EventSink) *Registry {
	return &Registry{
		owner:     owner,
		clock:     clock,
		sink:      sink,
		providers: make(map[crypto.Address]struct{}),
	}
}

// Owner returns the administrative address.
func (r *Registry) Owner() crypto.Address {
	return r.owner
}

// RequireOwner fails with ErrUnauthorized unless caller is the owner.
// Owner administration stays available while the system is paused.
func (r *Registry) RequireOwner(caller crypto.Address) error {
	if caller != r.owner {
		return protocol.ErrUnauthorized
	}
	return nil
}

// RequireActive fails with ErrSystemPaused while the pause flag is set.
func (r *Registry) RequireActive() error {
	if r.IsPaused() {
		return protocol.ErrSystemPaused
	}
	return nil
}

// RequireProvider fails with ErrUnauthorized unless addr is allowlisted.
func (r *Registry) RequireProvider(addr crypto.Address) error {
	if !r.IsProvider(addr) {
		return protocol.ErrUnauthorized
	}
	return nil
}

// AddProvider allowlists an address. Owner-only. Adding an existing provider
// is a no-op that still emits the audit event.
func (r *Registry) AddProvider(caller, addr crypto.Address) error {
	if err := r.RequireOwner(caller); err != nil {
		return err
	}

	r.mu.Lock()
	r.providers[addr] = struct{}{}
	r.mu.Unlock()

	r.sink.Emit(protocol.NewEvent(protocol.EventProviderAdded, r.clock(), protocol.ProviderChange{Provider: addr}))
	return nil
}

// RemoveProvider revokes an address. Owner-only.
func (r *Registry) RemoveProvider(caller, addr crypto.Address) error {
	if err := r.RequireOwner(caller); err != nil {
		return err
	}

	r.mu.Lock()
	delete(r.providers, addr)
	r.mu.Unlock()

	r.sink.Emit(protocol.NewEvent(protocol.EventProviderRemoved, r.clock(), protocol.ProviderChange{Provider: addr}))
	return nil
}

// SetPaused flips the global pause flag. Owner-only and, deliberately, not
// itself gated on the flag so a paused system can be unpaused.
func (r *Registry) SetPaused(caller crypto.Address, paused bool) error {
	if err := r.RequireOwner(caller); err != nil {
		return err
	}

	r.mu.Lock()
	r.paused = paused
	r.mu.Unlock()

	r.sink.Emit(protocol.NewEvent(protocol.EventPausedSet, r.clock(), protocol.PausedChange{Paused: paused}))
	return nil
}

// IsProvider reports whether addr is allowlisted.
func (r *Registry) IsProvider(addr crypto.Address) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.providers[addr]
	return ok
}

// IsPaused reports the pause flag.
func (r *Registry) IsPaused() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.paused
}

// Providers returns a snapshot of the allowlist, for read-only queries.
func (r *Registry) Providers() []crypto.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]crypto.Address, 0, len(r.providers))
	for addr := range r.providers {
		out = append(out, addr)
	}
	return out
}
