// Package cache provides the transient analysis result cache.
package cache

import (
	"context"
	"hash/fnv"
	"strconv"
	"strings"

	"github.com/thebtf/ticketsim/pkg/models"
)

// Cache stores analysis runs for a bounded time. Entries expire and are
// recomputed; nothing invalidates them early.
type Cache interface {
	// Get returns the cached run for key, or ok=false on a miss.
	Get(ctx context.Context, key string) (run *models.AnalysisRun, ok bool, err error)
	// Set stores run under key with the cache's TTL.
	Set(ctx context.Context, key string, run *models.AnalysisRun) error
	// Stats returns implementation-specific counters.
	Stats() map[string]any
	// Close releases background resources.
	Close() error
}

// Key builds a cache key from the reference ticket key and the option fields
// that influence the result. The options are hashed with FNV-64a.
func Key(referenceKey string, options ...string) string {
	h := fnv.New64a()
	for i, o := range options {
		if i > 0 {
			h.Write([]byte{'|'})
		}
		h.Write([]byte(o))
	}
	// Base36 for compact representation
	return strings.ToUpper(strings.TrimSpace(referenceKey)) + ":" + strconv.FormatUint(h.Sum64(), 36)
}

// Nop is a cache that never stores anything.
type Nop struct{}

func (Nop) Get(context.Context, string) (*models.AnalysisRun, bool, error) { return nil, false, nil }
func (Nop) Set(context.Context, string, *models.AnalysisRun) error        { return nil }
func (Nop) Stats() map[string]any                                          { return map[string]any{"type": "none"} }
func (Nop) Close() error                                                   { return nil }
