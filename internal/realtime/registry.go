package realtime

import "sync"

// Sink accepts outbound frames for one connection. Send must not block; it reports
// false when the frame was dropped.
type Sink interface {
	Send(msg WSMessage) bool
}

// Registry tracks live connections and which room each one is bound to.
// It implements room.Bindings.
type Registry struct {
	mu      sync.RWMutex
	sinks   map[string]Sink
	rooms   map[string]string   // connID -> room code
	members map[string][]string // room code -> connIDs in bind order
}

// NewRegistry creates an empty connection registry.
func NewRegistry() *Registry {
	return &Registry{
		sinks:   make(map[string]Sink),
		rooms:   make(map[string]string),
		members: make(map[string][]string),
	}
}

// Register adds a live connection.
func (r *Registry) Register(connID string, sink Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks[connID] = sink
}

// Sinks returns a snapshot of every registered connection.
func (r *Registry) Sinks() []Sink {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Sink, 0, len(r.sinks))
	for _, s := range r.sinks {
		out = append(out, s)
	}
	return out
}

// Unregister removes a connection and any room binding it still holds.
func (r *Registry) Unregister(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sinks, connID)
	r.unbindLocked(connID)
}

// Bind associates connID with code, replacing any previous binding.
func (r *Registry) Bind(connID, code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unbindLocked(connID)
	r.rooms[connID] = code
	r.members[code] = append(r.members[code], connID)
}

// Unbind clears the room binding of connID and returns the room it was bound to.
func (r *Registry) Unbind(connID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.unbindLocked(connID)
}

func (r *Registry) unbindLocked(connID string) string {
	code, ok := r.rooms[connID]
	if !ok {
		return ""
	}
	delete(r.rooms, connID)
	ids := r.members[code]
	for i, id := range ids {
		if id == connID {
			ids = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	if len(ids) == 0 {
		delete(r.members, code)
	} else {
		r.members[code] = ids
	}
	return code
}

// SessionOf returns the room connID is bound to.
func (r *Registry) SessionOf(connID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	code, ok := r.rooms[connID]
	return code, ok
}

// Members returns the connections bound to code, in bind order.
func (r *Registry) Members(code string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := r.members[code]
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}

// Sink returns the outbound sink of connID.
func (r *Registry) Sink(connID string) (Sink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sinks[connID]
	return s, ok
}

// Count returns the number of live connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sinks)
}
