package search

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ViperJuice/codeindex/internal/index"
)

// cacheEntry is a cached fused result set. Entries expire by TTL and
// are lazily invalidated when the index version moves past the one
// they were computed against.
type cacheEntry struct {
	results   []*FusedResult
	degraded  []string
	createdAt time.Time
	ttl       time.Duration
	version   uint64
}

// resultCache is an LRU over fused search responses. Invalidation is
// lazy: nothing is evicted on index writes, stale entries are detected
// on read by comparing the stored index version.
type resultCache struct {
	lru *lru.Cache[string, *cacheEntry]
}

func newResultCache(size int) (*resultCache, error) {
	if size <= 0 {
		size = 512
	}
	c, err := lru.New[string, *cacheEntry](size)
	if err != nil {
		return nil, fmt.Errorf("create result cache: %w", err)
	}
	return &resultCache{lru: c}, nil
}

// get returns the cached response for fp if it is still fresh against
// version. Stale entries are removed on the spot. The returned entry
// holds its own result copies: callers may mutate them freely.
func (c *resultCache) get(fp string, version uint64) (*cacheEntry, bool) {
	e, ok := c.lru.Get(fp)
	if !ok {
		return nil, false
	}
	if e.version != version || time.Since(e.createdAt) > e.ttl {
		c.lru.Remove(fp)
		return nil, false
	}
	return &cacheEntry{
		results:   cloneResults(e.results),
		degraded:  e.degraded,
		createdAt: e.createdAt,
		ttl:       e.ttl,
		version:   e.version,
	}, true
}

// put stores a deep copy so later caller mutations of the returned
// results cannot corrupt the cached entry.
func (c *resultCache) put(fp string, results []*FusedResult, degraded []string, ttl time.Duration, version uint64) {
	c.lru.Add(fp, &cacheEntry{
		results:   cloneResults(results),
		degraded:  degraded,
		createdAt: time.Now(),
		ttl:       ttl,
		version:   version,
	})
}

func cloneResults(results []*FusedResult) []*FusedResult {
	if results == nil {
		return nil
	}
	out := make([]*FusedResult, len(results))
	for i, r := range results {
		cp := *r
		cp.Sources = append([]string(nil), r.Sources...)
		cp.Highlights = append([]index.Range(nil), r.Highlights...)
		if r.Ranks != nil {
			cp.Ranks = make(map[string]int, len(r.Ranks))
			for k, v := range r.Ranks {
				cp.Ranks[k] = v
			}
		}
		out[i] = &cp
	}
	return out
}

func (c *resultCache) purge() {
	c.lru.Purge()
}

// fingerprint derives a stable cache key from everything that affects
// the response: the normalized query, the filters and limit, and the
// enabled sources with their weights. Two calls that would compute the
// same fused list share a key.
func fingerprint(query string, opts Options, limit int, cfg *HybridConfig, enabled []string) string {
	h := sha256.New()
	fmt.Fprintf(h, "q=%s\n", strings.Join(strings.Fields(query), " "))
	fmt.Fprintf(h, "lang=%s\nglob=%s\nlimit=%d\n", opts.Language, opts.PathGlob, limit)

	names := make([]string, len(enabled))
	copy(names, enabled)
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(h, "src=%s:%.6f\n", name, cfg.Weights[name])
	}
	fmt.Fprintf(h, "k=%d\n", cfg.RRFK)

	return hex.EncodeToString(h.Sum(nil))
}
