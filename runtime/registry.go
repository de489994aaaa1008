package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain/chat"
	"sync"
)

var _ contract.IConnectionRegistry = (*Registry)(nil)

// Registry maps a user to the sink of its authoritative session.
// A second connection of the same user replaces the first one (last connected wins)
// without closing the older transport; the older session simply stops receiving pushes.
type Registry struct {
	mu       sync.RWMutex
	sessions map[chat.UserID]contract.EventSink
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[chat.UserID]contract.EventSink),
	}
}

// Register stores sink as the session of userID and returns the sink it replaced, if any.
func (r *Registry) Register(userID chat.UserID, sink contract.EventSink) (contract.EventSink, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	previous, replaced := r.sessions[userID]
	r.sessions[userID] = sink
	return previous, replaced
}

func (r *Registry) Lookup(userID chat.UserID) (contract.EventSink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sink, ok := r.sessions[userID]
	return sink, ok
}

// Remove deletes the mapping only while it still points to sink.
// A stale disconnect of a replaced session must not evict the newer one.
func (r *Registry) Remove(userID chat.UserID, sink contract.EventSink) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.sessions[userID]
	if !ok || current != sink {
		return false
	}
	delete(r.sessions, userID)
	return true
}

// Snapshot copies the current entries so callers can fan out without holding the lock.
func (r *Registry) Snapshot() []contract.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	connections := make([]contract.Connection, 0, len(r.sessions))
	for userID, sink := range r.sessions {
		connections = append(connections, contract.Connection{UserID: userID, Sink: sink})
	}
	return connections
}

// Clear empties the registry and returns what it held.
func (r *Registry) Clear() []contract.Connection {
	r.mu.Lock()
	defer r.mu.Unlock()

	connections := make([]contract.Connection, 0, len(r.sessions))
	for userID, sink := range r.sessions {
		connections = append(connections, contract.Connection{UserID: userID, Sink: sink})
	}
	r.sessions = make(map[chat.UserID]contract.EventSink)
	return connections
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
