package browser

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	browser  *Browser
	lastSeen time.Time
}

// Registry keeps one Browser per visitor profile and forgets idle ones.
type Registry struct {
	newBrowser func(profileID string) *Browser
	maxIdle    time.Duration
	now        func() time.Time

	mu       sync.Mutex
	browsers map[string]*entry
}

// NewRegistry creates a registry. Browsers unused for maxIdle are evicted
// by Run; their preferences stay in the store.
func NewRegistry(newBrowser func(profileID string) *Browser, maxIdle time.Duration) *Registry {
	return &Registry{
		newBrowser: newBrowser,
		maxIdle:    maxIdle,
		now:        time.Now,
		browsers:   make(map[string]*entry),
	}
}

// Get returns the browser of profileID. A new browser restores the
// visitor's stored preferences first.
func (r *Registry) Get(ctx context.Context, profileID string) *Browser {
	r.mu.Lock()
	e, ok := r.browsers[profileID]
	if ok {
		e.lastSeen = r.now()
		r.mu.Unlock()
		return e.browser
	}
	r.mu.Unlock()

	b := r.newBrowser(profileID)
	b.Restore(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.browsers[profileID]; ok {
		e.lastSeen = r.now()
		return e.browser
	}
	r.browsers[profileID] = &entry{browser: b, lastSeen: r.now()}
	return b
}

// Len returns the number of cached browsers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.browsers)
}

// Sweep evicts browsers idle for longer than maxIdle.
func (r *Registry) Sweep() {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := r.now().Add(-r.maxIdle)
	for id, e := range r.browsers {
		if e.lastSeen.Before(cutoff) {
			delete(r.browsers, id)
		}
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
