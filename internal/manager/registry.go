package manager

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	manager  *Manager
	lastSeen time.Time
}

// Registry keeps one Manager per admin session and closes idle ones.
type Registry struct {
	newManager func() *Manager
	maxIdle    time.Duration
	now        func() time.Time

	mu       sync.Mutex
	managers map[string]*entry
}

// NewRegistry creates a registry that builds managers with newManager.
// Managers unused for maxIdle are closed by Run; a zero maxIdle keeps them
// until logout.
func NewRegistry(newManager func() *Manager, maxIdle time.Duration) *Registry {
	return &Registry{
		newManager: newManager,
		maxIdle:    maxIdle,
		now:        time.Now,
		managers:   make(map[string]*entry),
	}
}

// Get returns the manager of sessionID, creating it on first use.
func (r *Registry) Get(sessionID string) *Manager {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.managers[sessionID]
	if !ok {
		e = &entry{manager: r.newManager()}
		r.managers[sessionID] = e
	}
	e.lastSeen = r.now()
	return e.manager
}

// Enter returns the manager of sessionID with its catalog loaded. Only the
// first entry of a session fetches the list.
func (r *Registry) Enter(ctx context.Context, sessionID string) *Manager {
	m := r.Get(sessionID)
	_ = m.EnsureLoaded(ctx)
	return m
}

// Drop closes and forgets the manager of sessionID. It is registered as a
// logout listener so the next admin entry starts from a fresh load.
func (r *Registry) Drop(sessionID string) {
	r.mu.Lock()
	e, ok := r.managers[sessionID]
	delete(r.managers, sessionID)
	r.mu.Unlock()

	if ok {
		e.manager.Close()
	}
}

// Len returns the number of live managers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.managers)
}

// Sweep closes managers idle for longer than maxIdle.
func (r *Registry) Sweep() {
	if r.maxIdle <= 0 {
		return
	}
	var idle []*Manager

	r.mu.Lock()
	cutoff := r.now().Add(-r.maxIdle)
	for id, e := range r.managers {
		if e.lastSeen.Before(cutoff) {
			idle = append(idle, e.manager)
			delete(r.managers, id)
		}
	}
	r.mu.Unlock()

	for _, m := range idle {
		m.Close()
	}
}

// Run sweeps every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}
