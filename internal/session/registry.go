// ABOUTME: Registry tracks the session id bound to each conversation instance
// ABOUTME: Clearing is a single-slot soft delete so the last session can be restored

package session

import "sync"

// Registry maps instance ids to their current server-assigned session id.
//
// A session is assigned on the first successful turn and reused on
// subsequent turns unless the caller forces a new one. Clear does not
// destroy the binding outright: the most recently cleared id per instance is
// kept in a single slot so a "restore last session" operation can re-attach
// to the server-held history. Only the most recent cleared id is remembered.
type Registry struct {
	mu      sync.Mutex
	active  map[string]string
	cleared map[string]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		active:  make(map[string]string),
		cleared: make(map[string]string),
	}
}

// Get returns the session currently bound to the instance.
func (r *Registry) Get(instanceID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.active[instanceID]
	return id, ok
}

// Set binds a session to the instance, replacing any previous binding. The
// server is the source of truth for session identity.
func (r *Registry) Set(instanceID, sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active[instanceID] = sessionID
}

// Clear unbinds the instance's session, moving it into the restore slot.
// Clearing an instance with no active session leaves the slot untouched.
func (r *Registry) Clear(instanceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.active[instanceID]; ok && id != "" {
		r.cleared[instanceID] = id
	}
	delete(r.active, instanceID)
}

// RecentlyCleared returns the session id occupying the instance's restore
// slot, if any.
func (r *Registry) RecentlyCleared(instanceID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.cleared[instanceID]
	return id, ok
}

// DropCleared empties the instance's restore slot, called once a restore
// has re-bound the session.
func (r *Registry) DropCleared(instanceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cleared, instanceID)
}

// Forget removes both the active binding and the restore slot. Used when
// the session is deleted on the server and nothing remains to re-attach to.
func (r *Registry) Forget(instanceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, instanceID)
	delete(r.cleared, instanceID)
}
