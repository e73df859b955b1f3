// Package search implements hybrid search: a query fans out to the
// local BM25 engine and optional semantic/fuzzy backends, and the
// independently ranked lists merge via Reciprocal Rank Fusion (RRF).
package search

import (
	"context"
	"time"

	"github.com/ViperJuice/codeindex/internal/index"
)

// Source names. The orchestrator treats sources uniformly; names only
// matter for weights, metrics and response metadata.
const (
	SourceBM25     = "bm25"
	SourceSemantic = "semantic"
	SourceFuzzy    = "fuzzy"
)

// Source is a ranked-search backend. Implementations return their own
// ranking; the orchestrator never reinterprets backend scores, only
// ranks.
type Source interface {
	// Name identifies the source (bm25, semantic, fuzzy).
	Name() string

	// Search returns up to limit results ordered best-first, with
	// ties broken by document id ascending for determinism.
	Search(ctx context.Context, query string, limit int) ([]*RankedResult, error)
}

// RankedResult is one hit from a single source.
type RankedResult struct {
	DocID  string
	Score  float64
	Source string
	// Rank is the 1-based position in the source's own ordering.
	Rank int
	// Positions are matched token positions (BM25 only), kept for
	// snippet extraction and highlighting.
	Positions []int
}

// FusedResult is one hit after RRF fusion, enriched with document
// metadata for filtering and display.
type FusedResult struct {
	DocID string
	// Score is the fused RRF score.
	Score float64
	// Sources lists the sources this document appeared in.
	Sources []string
	// Per-source 1-based ranks, 0 if absent from that source.
	Ranks map[string]int

	Path     string
	Language string
	Snippet  string
	// Highlights are byte ranges within Snippet.
	Highlights []index.Range
}

// contributedBy reports whether src contributed to this result.
func (r *FusedResult) contributedBy(src string) bool {
	for _, s := range r.Sources {
		if s == src {
			return true
		}
	}
	return false
}

// Mode selects the resolution path for a query.
type Mode string

const (
	// ModeAuto short-circuits exact symbol matches, otherwise hybrid.
	ModeAuto Mode = "auto"
	// ModeSymbol resolves only by exact symbol name.
	ModeSymbol Mode = "symbol"
	// ModeFulltext uses the local BM25 engine only.
	ModeFulltext Mode = "fulltext"
	// ModeHybrid fans out to all enabled sources.
	ModeHybrid Mode = "hybrid"
	// Direct single-source modes, mostly for debugging.
	ModeBM25     Mode = "bm25"
	ModeSemantic Mode = "semantic"
	ModeFuzzy    Mode = "fuzzy"
)

// Options configures a single search call.
type Options struct {
	// Limit is the maximum number of fused results (0 = default).
	Limit int
	// Language keeps only documents in this language.
	Language string
	// PathGlob keeps only documents whose path matches the glob.
	PathGlob string
}

// Response carries the fused results plus per-call metadata.
type Response struct {
	Results []*FusedResult
	// Degraded lists sources that errored or timed out and
	// contributed an empty list.
	Degraded []string
	// CacheHit is true when the response came from the result cache.
	CacheHit bool
	// Elapsed is the total search duration.
	Elapsed time.Duration
}

// HybridConfig is the immutable runtime configuration snapshot used by
// a single search call. Configure* calls build a new snapshot and swap
// it atomically; a snapshot is never mutated in place.
type HybridConfig struct {
	// Weights are normalized per-source fusion weights (sum = 1 over
	// enabled sources at fusion time).
	Weights map[string]float64
	// Enabled per-source flags.
	Enabled map[string]bool
	// RRFK is the RRF smoothing constant.
	RRFK int
	// SourceTimeout bounds each remote-style source call.
	SourceTimeout time.Duration
	// TTLs are per-source cache TTLs; the effective TTL of a cache
	// entry is their weight-normalized mix.
	TTLs map[string]time.Duration

	DefaultLimit   int
	MaxLimit       int
	CandidateLimit int
}

// EffectiveTTL returns the weighted mix of per-source TTLs over the
// sources that actually ran. Config-enabled sources with no attached
// backend never run and must not skew the mix.
func (c *HybridConfig) EffectiveTTL(active []string) time.Duration {
	var total float64
	var mixed float64
	for _, name := range active {
		w := c.Weights[name]
		total += w
		mixed += w * float64(c.TTLs[name])
	}
	if total == 0 {
		return 300 * time.Second
	}
	return time.Duration(mixed / total)
}
