// Package telemetry collects query-level metrics for the search
// service: cache behavior, per-source latency, and degradation counts.
package telemetry

import (
	"sync"
	"time"
)

// SearchMetrics aggregates search telemetry. Safe for concurrent use.
type SearchMetrics struct {
	mu            sync.Mutex
	totalSearches int64
	cacheHits     int64
	zeroResults   int64
	sources       map[string]*sourceStats
}

type sourceStats struct {
	calls        int64
	degraded     int64
	totalLatency time.Duration
}

// NewSearchMetrics creates an empty metrics collector.
func NewSearchMetrics() *SearchMetrics {
	return &SearchMetrics{sources: make(map[string]*sourceStats)}
}

// RecordSearch records one completed search call.
func (m *SearchMetrics) RecordSearch(cacheHit bool, resultCount int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalSearches++
	if cacheHit {
		m.cacheHits++
	}
	if resultCount == 0 {
		m.zeroResults++
	}
}

// RecordSource records one fan-out call to a source.
// degraded marks calls that errored or timed out and contributed an
// empty list instead of failing the search.
func (m *SearchMetrics) RecordSource(name string, latency time.Duration, degraded bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sources[name]
	if !ok {
		s = &sourceStats{}
		m.sources[name] = s
	}
	s.calls++
	s.totalLatency += latency
	if degraded {
		s.degraded++
	}
}

// SourceSnapshot is the aggregated view of one source.
type SourceSnapshot struct {
	Calls      int64
	Degraded   int64
	AvgLatency time.Duration
}

// Snapshot is a point-in-time view of all metrics.
type Snapshot struct {
	TotalSearches int64
	CacheHits     int64
	CacheHitRate  float64
	ZeroResults   int64
	Sources       map[string]SourceSnapshot
}

// Snapshot returns the current aggregates.
func (m *SearchMetrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := Snapshot{
		TotalSearches: m.totalSearches,
		CacheHits:     m.cacheHits,
		ZeroResults:   m.zeroResults,
		Sources:       make(map[string]SourceSnapshot, len(m.sources)),
	}
	if m.totalSearches > 0 {
		snap.CacheHitRate = float64(m.cacheHits) / float64(m.totalSearches)
	}
	for name, s := range m.sources {
		avg := time.Duration(0)
		if s.calls > 0 {
			avg = s.totalLatency / time.Duration(s.calls)
		}
		snap.Sources[name] = SourceSnapshot{Calls: s.calls, Degraded: s.degraded, AvgLatency: avg}
	}
	return snap
}

// Reset clears all aggregates.
func (m *SearchMetrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalSearches = 0
	m.cacheHits = 0
	m.zeroResults = 0
	m.sources = make(map[string]*sourceStats)
}
