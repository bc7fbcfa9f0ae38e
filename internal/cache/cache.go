package cache

import (
	"log/slog"
	"sync"
)

// Cache holds whole-collection snapshots keyed by collection name.
//
// Entries have no expiry. They live until Invalidate is called for the key,
// which every writer to the collection must do before returning.
//
// A reader filling the cache records Generation before reading the
// collection and stores with SetIfUnchanged, so a snapshot read before a
// concurrent write is never put back after that write invalidated the key.
type Cache interface {
	// Get returns the snapshot for key, or false on a miss.
	Get(key string) (any, bool)
	// Set stores a snapshot for key, replacing any previous one.
	Set(key string, value any)
	// Invalidate drops the snapshot for key and advances its generation.
	Invalidate(key string)
	// Generation returns the number of invalidations of key so far.
	Generation(key string) uint64
	// SetIfUnchanged stores value only if key is still at generation gen.
	SetIfUnchanged(key string, gen uint64, value any) bool
}

// MemoryCache is a process-wide Cache protected by a RWMutex.
type MemoryCache struct {
	mu          sync.RWMutex
	entries     map[string]any
	generations map[string]uint64
	logger      *slog.Logger
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries:     make(map[string]any),
		generations: make(map[string]uint64),
		logger:      slog.With("component", "cache"),
	}
}

func (m *MemoryCache) Get(key string) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.entries[key]
	return v, ok
}

func (m *MemoryCache) Set(key string, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = value
}

func (m *MemoryCache) Invalidate(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[key]; ok {
		m.logger.Debug("Invalidating cached collection", "key", key)
	}
	delete(m.entries, key)
	m.generations[key]++
}

func (m *MemoryCache) Generation(key string) uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.generations[key]
}

func (m *MemoryCache) SetIfUnchanged(key string, gen uint64, value any) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.generations[key] != gen {
		m.logger.Debug("Dropping stale snapshot", "key", key)
		return false
	}
	m.entries[key] = value
	return true
}

// Len returns the number of cached collections.
func (m *MemoryCache) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Nop never stores anything. Every Get is a miss.
type Nop struct{}

func (Nop) Get(string) (any, bool)                  { return nil, false }
func (Nop) Set(string, any)                         {}
func (Nop) Invalidate(string)                       {}
func (Nop) Generation(string) uint64                { return 0 }
func (Nop) SetIfUnchanged(string, uint64, any) bool { return false }
