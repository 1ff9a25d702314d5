package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/thebtf/ticketsim/pkg/models"
)

const (
	// DefaultTTL is the default lifetime of a cached run.
	DefaultTTL = 10 * time.Minute
	// DefaultMaxSize is the default number of cached runs.
	DefaultMaxSize = 200

	cacheEvictionPercent   = 10 // Evict 10% when cache is full
	cacheEvictionThreshold = 80 // Start eviction scan at 80% capacity
	cacheCleanupInterval   = time.Minute
)

// cachedRun stores a cached analysis run with expiry.
type cachedRun struct {
	run       *models.AnalysisRun
	expiresAt time.Time
}

// Memory is a bounded in-process TTL cache.
type Memory struct {
	ctx     context.Context
	cancel  context.CancelFunc
	entries map[string]*cachedRun
	now     func() time.Time
	ttl     time.Duration
	maxSize int
	hits    int64
	misses  int64
	mu      sync.RWMutex
}

// NewMemory creates a memory cache and starts its cleanup loop.
func NewMemory(ttl time.Duration, maxSize int) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &Memory{
		ctx:     ctx,
		cancel:  cancel,
		entries: make(map[string]*cachedRun),
		now:     time.Now,
		ttl:     ttl,
		maxSize: maxSize,
	}
	go m.cleanupLoop()
	return m
}

// Close stops the cleanup goroutine.
func (m *Memory) Close() error {
	m.cancel()
	return nil
}

// cleanupLoop periodically removes expired entries.
func (m *Memory) cleanupLoop() {
	ticker := time.NewTicker(cacheCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.cleanupExpired()
		}
	}
}

func (m *Memory) cleanupExpired() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for key, cached := range m.entries {
		if now.After(cached.expiresAt) {
			delete(m.entries, key)
		}
	}
}

// Get implements Cache.
func (m *Memory) Get(_ context.Context, key string) (*models.AnalysisRun, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if cached, ok := m.entries[key]; ok {
		if m.now().Before(cached.expiresAt) {
			atomic.AddInt64(&m.hits, 1)
			return cached.run, true, nil
		}
	}
	atomic.AddInt64(&m.misses, 1)
	return nil, false, nil
}

// Set implements Cache.
// Skips the expiry scan while the cache is below the eviction threshold.
func (m *Memory) Set(_ context.Context, key string, run *models.AnalysisRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	size := len(m.entries)

	evictionThreshold := (m.maxSize * cacheEvictionThreshold) / 100
	if size >= evictionThreshold {
		for k, v := range m.entries {
			if now.After(v.expiresAt) {
				delete(m.entries, k)
			}
		}
		size = len(m.entries)
	}

	// Still full: evict a percentage in map iteration order
	if _, exists := m.entries[key]; !exists && size >= m.maxSize {
		evictCount := max(m.maxSize*cacheEvictionPercent/100, 1)
		evicted := 0
		for k := range m.entries {
			delete(m.entries, k)
			evicted++
			if evicted >= evictCount {
				break
			}
		}
	}

	m.entries[key] = &cachedRun{run: run, expiresAt: now.Add(m.ttl)}
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Stats implements Cache.
func (m *Memory) Stats() map[string]any {
	return map[string]any{
		"type":     "memory",
		"size":     m.Len(),
		"max_size": m.maxSize,
		"ttl_sec":  m.ttl.Seconds(),
		"hits":     atomic.LoadInt64(&m.hits),
		"misses":   atomic.LoadInt64(&m.misses),
	}
}
