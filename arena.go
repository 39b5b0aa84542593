package observer

import "sync"

// Arena owns observer handles and indexes them by ID. Publishers only hold
// IDs; the client decides when a handle is released.
type Arena struct {
	mu    sync.RWMutex
	slots map[ID]Observer
}

// NewArena creates an empty Arena.
func NewArena() *Arena {
	return &Arena{slots: make(map[ID]Observer)}
}

// Add stores obs under its ID and returns that ID. Adding a handle whose ID
// is already present replaces the stored handle.
func (a *Arena) Add(obs Observer) ID {
	a.mu.Lock()
	defer a.mu.Unlock()

	id := obs.ID()
	a.slots[id] = obs
	return id
}

// Get returns the handle stored under id.
func (a *Arena) Get(id ID) (Observer, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	obs, ok := a.slots[id]
	return obs, ok
}

// Release drops the handle stored under id. Publishers that still hold id
// skip it on their next tick. Releasing an unknown id does nothing.
func (a *Arena) Release(id ID) {
	a.mu.Lock()
	defer a.mu.Unlock()

	delete(a.slots, id)
}

// Len returns the number of handles in the arena.
func (a *Arena) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.slots)
}
