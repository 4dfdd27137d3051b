package services

import (
	"log/slog"
	"sync"

	"github.com/rhuffman-92808/Game-Of-Life-Fhe/protocol"
)

// MemorySink keeps events in memory. Used by tests and the read-only event
// query endpoint of single-node deployments.
type MemorySink struct {
	mu     sync.RWMutex
	events []protocol.Event
}

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Emit implements protocol.EventSink.
func (s *MemorySink) Emit(ev protocol.Event) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
}

// Events returns a snapshot of all recorded events in emission order.
func (s *MemorySink) Events() []protocol.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]protocol.Event, len(s.events))
	copy(out, s.events)
	return out
}

// SlogSink writes every event to a structured logger.
type SlogSink struct {
	Log *slog.Logger
}

// Emit implements protocol.EventSink.
func (s *SlogSink) Emit(ev protocol.Event) {
	s.Log.Info("event", "kind", ev.Kind, "payload", string(ev.Payload))
}

// MultiSink fans one event out to several sinks.
type MultiSink []protocol.EventSink

// Emit implements protocol.EventSink.
func (s MultiSink) Emit(ev protocol.Event) {
	for _, sink := range s {
		sink.Emit(ev)
	}
}
