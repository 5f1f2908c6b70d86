package epoch

import "sync"

// Registry hands out one WriteLock per resource path, creating it
// lazily on first use (§4.7 "per-resource path -> semaphore with permit
// count 1").
type Registry struct {
	mu    sync.Mutex
	locks map[string]*WriteLock
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{locks: make(map[string]*WriteLock)}
}

// LockFor returns the WriteLock for path, creating one if this is the
// first request for that path.
func (r *Registry) LockFor(path string) *WriteLock {
	r.mu.Lock()
	defer r.mu.Unlock()
	wl, ok := r.locks[path]
	if !ok {
		wl = NewWriteLock()
		r.locks[path] = wl
	}
	return wl
}
