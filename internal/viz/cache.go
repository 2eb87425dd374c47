package viz

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"matrixchat/internal/llm"
)

// DefaultCacheTTL bounds how long an orchestrator decision is reused for
// an identical column.
const DefaultCacheTTL = 5 * time.Minute

type cacheEntry struct {
	spec     llm.ChartSpec
	storedAt time.Time
}

// specCache is a TTL cache for chart orchestrator decisions, keyed by the
// metric label and the sorted column values. Expired entries are dropped
// lazily on read.
type specCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]cacheEntry
	now     func() time.Time
}

func newSpecCache(ttl time.Duration) *specCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &specCache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

// cacheKey hashes the metric label together with the sorted values, so the
// same column produces the same key regardless of cell ordering.
func cacheKey(metricLabel string, values []float64) string {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	var b strings.Builder
	b.WriteString(metricLabel)
	b.WriteByte(':')
	for i, v := range sorted {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])[:16]
}

func (c *specCache) get(metricLabel string, values []float64) (llm.ChartSpec, bool) {
	key := cacheKey(metricLabel, values)

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return llm.ChartSpec{}, false
	}
	if c.now().Sub(entry.storedAt) >= c.ttl {
		delete(c.entries, key)
		return llm.ChartSpec{}, false
	}
	return entry.spec, true
}

func (c *specCache) set(metricLabel string, values []float64, spec llm.ChartSpec) {
	key := cacheKey(metricLabel, values)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{spec: spec, storedAt: c.now()}
}

func (c *specCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}
