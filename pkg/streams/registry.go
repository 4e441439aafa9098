// Package streams manages the registry of valid output stream names and the
// publishers that deliver committed reports to them.
package streams

import (
	"sort"
	"sync"
)

// Registry holds the set of valid stream destinations. A stream name a
// filter requests must be present here; an unrecognized name is a usage
// error, never silently dropped. The set can be swapped atomically at
// runtime by the config watcher.
type Registry struct {
	mu    sync.RWMutex
	names map[string]struct{}
}

// NewRegistry creates a registry over the given stream names.
func NewRegistry(names ...string) *Registry {
	r := &Registry{}
	r.Replace(names)
	return r
}

// Has reports whether the stream name is a valid destination.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.names[name]
	return ok
}

// Names returns the valid stream names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.names))
	for name := range r.names {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of registered streams.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.names)
}

// Replace atomically swaps the valid stream set. In-flight lookups see
// either the old set or the new one, never a mix.
func (r *Registry) Replace(names []string) {
	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		set[name] = struct{}{}
	}

	r.mu.Lock()
	r.names = set
	r.mu.Unlock()
}
