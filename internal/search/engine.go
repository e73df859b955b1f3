package search

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ViperJuice/codeindex/internal/config"
	"github.com/ViperJuice/codeindex/internal/embed"
	cierrors "github.com/ViperJuice/codeindex/internal/errors"
	"github.com/ViperJuice/codeindex/internal/index"
	"github.com/ViperJuice/codeindex/internal/query"
	"github.com/ViperJuice/codeindex/internal/store"
	"github.com/ViperJuice/codeindex/internal/telemetry"
)

// Engine owns the local inverted index, the document store, and the
// optional remote-style backends, and runs hybrid searches across
// them. All index mutations go through the engine so the backends
// stay consistent with each other.
type Engine struct {
	idx    *index.Inverted
	scorer *index.Scorer
	docs   store.DocumentStore

	fuzzy    *store.BleveFuzzyIndex
	vectors  *store.HNSWStore
	embedder embed.Embedder

	sources map[string]Source
	cfg     atomic.Pointer[HybridConfig]
	cache   *resultCache
	metrics *telemetry.SearchMetrics
	log     *slog.Logger

	// mu serializes writes (Index, Delete, Rebuild) across backends.
	// Reads only take the inverted index's own lock.
	mu sync.Mutex
}

// EngineOption configures optional engine backends.
type EngineOption func(*Engine)

// WithFuzzy attaches a bleve index as the fuzzy source.
func WithFuzzy(idx *store.BleveFuzzyIndex) EngineOption {
	return func(e *Engine) { e.fuzzy = idx }
}

// WithSemantic attaches an embedder and vector store as the semantic
// source.
func WithSemantic(embedder embed.Embedder, vectors *store.HNSWStore) EngineOption {
	return func(e *Engine) {
		e.embedder = embedder
		e.vectors = vectors
	}
}

// WithLogger sets the engine logger.
func WithLogger(log *slog.Logger) EngineOption {
	return func(e *Engine) { e.log = log }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *telemetry.SearchMetrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine builds an engine from configuration. The BM25 source is
// always present; semantic and fuzzy exist only when their backends
// are attached, and a source that is configured on but not attached
// silently narrows to the ones that are.
func NewEngine(cfg *config.SearchConfig, docs store.DocumentStore, opts ...EngineOption) (*Engine, error) {
	idx := index.NewInverted()
	e := &Engine{
		idx:     idx,
		scorer:  index.NewScorer(idx, index.BM25Params{K1: cfg.K1, B: cfg.B}),
		docs:    docs,
		sources: make(map[string]Source),
		metrics: telemetry.NewSearchMetrics(),
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.sources[SourceBM25] = newBM25Source(e.scorer)
	if e.fuzzy != nil {
		e.sources[SourceFuzzy] = newFuzzySource(e.fuzzy)
	}
	if e.embedder != nil && e.vectors != nil {
		e.sources[SourceSemantic] = newSemanticSource(e.embedder, e.vectors)
	}

	cache, err := newResultCache(cfg.CacheSize)
	if err != nil {
		return nil, err
	}
	e.cache = cache

	e.cfg.Store(hybridConfigFrom(cfg))
	return e, nil
}

func hybridConfigFrom(cfg *config.SearchConfig) *HybridConfig {
	return &HybridConfig{
		Weights: map[string]float64{
			SourceBM25:     cfg.Weights.BM25,
			SourceSemantic: cfg.Weights.Semantic,
			SourceFuzzy:    cfg.Weights.Fuzzy,
		},
		Enabled: map[string]bool{
			SourceBM25:     cfg.EnableBM25,
			SourceSemantic: cfg.EnableSemantic,
			SourceFuzzy:    cfg.EnableFuzzy,
		},
		RRFK:          cfg.RRFConstant,
		SourceTimeout: cfg.SourceTimeout,
		TTLs: map[string]time.Duration{
			SourceBM25:     cfg.TTLBM25,
			SourceSemantic: cfg.TTLSemantic,
			SourceFuzzy:    cfg.TTLFuzzy,
		},
		DefaultLimit:   cfg.DefaultLimit,
		MaxLimit:       cfg.MaxLimit,
		CandidateLimit: cfg.CandidateLimit,
	}
}

// Config returns the current runtime configuration snapshot.
func (e *Engine) Config() *HybridConfig {
	return e.cfg.Load()
}

// ConfigureWeights replaces the fusion weights. Negative weights and
// an all-zero set are rejected; weights are stored as given and
// normalized over the enabled sources at fusion time.
func (e *Engine) ConfigureWeights(w config.Weights) error {
	if w.BM25 < 0 || w.Semantic < 0 || w.Fuzzy < 0 {
		return cierrors.New(cierrors.ErrCodeConfigInvalid, "fusion weights must be non-negative", nil)
	}
	if w.BM25+w.Semantic+w.Fuzzy == 0 {
		return cierrors.New(cierrors.ErrCodeConfigInvalid, "at least one fusion weight must be positive", nil)
	}
	old := e.cfg.Load()
	next := *old
	next.Weights = map[string]float64{
		SourceBM25:     w.BM25,
		SourceSemantic: w.Semantic,
		SourceFuzzy:    w.Fuzzy,
	}
	e.cfg.Store(&next)
	return nil
}

// ConfigureSources enables or disables sources by name. Names of
// sources that have no attached backend are accepted but have no
// effect; unknown names are rejected.
func (e *Engine) ConfigureSources(enabled map[string]bool) error {
	old := e.cfg.Load()
	next := *old
	next.Enabled = make(map[string]bool, len(old.Enabled))
	for name, on := range old.Enabled {
		next.Enabled[name] = on
	}
	for name, on := range enabled {
		if _, known := next.Enabled[name]; !known {
			return cierrors.New(cierrors.ErrCodeConfigInvalid, "unknown search source: "+name, nil)
		}
		next.Enabled[name] = on
	}
	anyOn := false
	for name, on := range next.Enabled {
		if on && e.sources[name] != nil {
			anyOn = true
		}
	}
	if !anyOn {
		return cierrors.New(cierrors.ErrCodeConfigInvalid, "all search sources disabled", nil)
	}
	e.cfg.Store(&next)
	return nil
}

// activeSources resolves the sources that participate in a call:
// registered, enabled, and (if restrict is non-empty) requested.
func (e *Engine) activeSources(cfg *HybridConfig, restrict []string) []string {
	var names []string
	for _, name := range []string{SourceBM25, SourceSemantic, SourceFuzzy} {
		if e.sources[name] == nil || !cfg.Enabled[name] {
			continue
		}
		if len(restrict) > 0 && !containsString(restrict, name) {
			continue
		}
		names = append(names, name)
	}
	return names
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Search runs the query against every active source, fuses the
// results, and enriches the survivors with document metadata and
// snippets. A failing or slow source degrades to an empty list; only
// caller cancellation or a malformed query fails the call.
func (e *Engine) Search(ctx context.Context, q string, opts Options) (*Response, error) {
	return e.searchSources(ctx, q, opts, nil)
}

// searchSources is Search restricted to a subset of sources; the
// dispatcher uses it for single-source and fulltext modes.
func (e *Engine) searchSources(ctx context.Context, q string, opts Options, restrict []string) (*Response, error) {
	start := time.Now()
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, cierrors.New(cierrors.ErrCodeQueryEmpty, "empty query", nil)
	}
	// Validate syntax up front so a malformed query fails the call
	// instead of degrading the BM25 source.
	if _, err := query.Parse(q); err != nil {
		return nil, err
	}

	cfg := e.cfg.Load()
	limit := opts.Limit
	if limit <= 0 {
		limit = cfg.DefaultLimit
	}
	if limit > cfg.MaxLimit {
		limit = cfg.MaxLimit
	}

	active := e.activeSources(cfg, restrict)
	if len(active) == 0 {
		if len(restrict) == 1 {
			return nil, cierrors.SourceUnavailable(restrict[0])
		}
		return nil, cierrors.New(cierrors.ErrCodeSourceUnavailable, "no search sources available", nil)
	}

	version := e.idx.Version()
	fp := fingerprint(q, opts, limit, cfg, active)
	if entry, ok := e.cache.get(fp, version); ok {
		e.metrics.RecordSearch(true, len(entry.results))
		return &Response{
			Results:  entry.results,
			Degraded: entry.degraded,
			CacheHit: true,
			Elapsed:  time.Since(start),
		}, nil
	}

	lists, degraded, err := e.fanOut(ctx, q, cfg, active)
	if err != nil {
		return nil, err
	}

	weights := normalizeWeights(cfg.Weights, enabledSet(active))
	fused := fuse(lists, weights, cfg.RRFK)

	// Filters apply before truncation so the limit counts surviving
	// documents, not raw fused ones.
	results, err := e.enrich(ctx, fused, lists[SourceBM25], opts)
	if err != nil {
		return nil, err
	}
	if len(results) > limit {
		results = results[:limit]
	}

	e.cache.put(fp, results, degraded, cfg.EffectiveTTL(active), version)
	e.metrics.RecordSearch(false, len(results))

	return &Response{
		Results:  append([]*FusedResult(nil), results...),
		Degraded: degraded,
		Elapsed:  time.Since(start),
	}, nil
}

func enabledSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, name := range names {
		set[name] = true
	}
	return set
}

// fanOut queries the active sources in parallel. Remote-style sources
// run under the configured per-source timeout; the local BM25 source
// runs unbounded. A source error or timeout is recorded and its list
// left empty. Caller cancellation aborts the whole call and discards
// partial lists.
func (e *Engine) fanOut(ctx context.Context, q string, cfg *HybridConfig, active []string) (map[string][]*RankedResult, []string, error) {
	var mu sync.Mutex
	lists := make(map[string][]*RankedResult, len(active))
	var degraded []string

	g, gctx := errgroup.WithContext(ctx)
	for _, name := range active {
		src := e.sources[name]
		g.Go(func() error {
			sctx := gctx
			if name != SourceBM25 && cfg.SourceTimeout > 0 {
				var cancel context.CancelFunc
				sctx, cancel = context.WithTimeout(gctx, cfg.SourceTimeout)
				defer cancel()
			}

			t0 := time.Now()
			results, err := src.Search(sctx, q, cfg.CandidateLimit)
			latency := time.Since(t0)

			if err != nil {
				// The caller going away is the only error that
				// propagates; everything else degrades.
				if ctx.Err() != nil {
					return ctx.Err()
				}
				wrapped := err
				if errors.Is(err, context.DeadlineExceeded) {
					wrapped = cierrors.SourceTimeout(name, err)
				}
				e.log.Warn("search source degraded",
					slog.String("source", name),
					slog.Duration("latency", latency),
					slog.String("error", wrapped.Error()))
				e.metrics.RecordSource(name, latency, true)

				mu.Lock()
				lists[name] = nil
				degraded = append(degraded, name)
				mu.Unlock()
				return nil
			}

			e.metrics.RecordSource(name, latency, false)
			mu.Lock()
			lists[name] = results
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	sort.Strings(degraded)
	return lists, degraded, nil
}

// enrich attaches document metadata and snippets to the fused results
// and applies the language and path filters. Documents missing from
// the store (deleted under a stale list) are dropped.
func (e *Engine) enrich(ctx context.Context, fused []*FusedResult, bm25List []*RankedResult, opts Options) ([]*FusedResult, error) {
	if len(fused) == 0 {
		return nil, nil
	}
	ids := make([]string, len(fused))
	for i, f := range fused {
		ids[i] = f.DocID
	}
	docs, err := e.docs.GetDocuments(ctx, ids)
	if err != nil {
		return nil, cierrors.Wrap(cierrors.ErrCodeStoreRead, err)
	}
	byID := make(map[string]*store.Document, len(docs))
	for _, d := range docs {
		byID[d.ID] = d
	}

	positions := make(map[string][]int, len(bm25List))
	for _, r := range bm25List {
		positions[r.DocID] = r.Positions
	}

	out := make([]*FusedResult, 0, len(fused))
	for _, f := range fused {
		doc, ok := byID[f.DocID]
		if !ok {
			continue
		}
		if opts.Language != "" && !strings.EqualFold(doc.Language, opts.Language) {
			continue
		}
		if opts.PathGlob != "" {
			matched, gerr := filepath.Match(opts.PathGlob, doc.Path)
			if gerr != nil {
				return nil, cierrors.New(cierrors.ErrCodeQuerySyntax, "invalid path glob: "+opts.PathGlob, gerr)
			}
			if !matched {
				continue
			}
		}
		f.Path = doc.Path
		f.Language = doc.Language
		if pos := positions[f.DocID]; len(pos) > 0 {
			snip := index.ExtractSnippet(doc.Content, pos, index.DefaultSnippetWindow)
			f.Snippet = snip.Text
			f.Highlights = snip.Highlights
		} else {
			f.Snippet = leadingSnippet(doc.Content)
		}
		out = append(out, f)
	}
	return out, nil
}

// leadingSnippet is the fallback when no match positions exist (pure
// semantic or fuzzy hits): the first line of the document, clipped.
func leadingSnippet(content string) string {
	if i := strings.IndexByte(content, '\n'); i >= 0 {
		content = content[:i]
	}
	if len(content) > 2*index.DefaultSnippetWindow {
		content = content[:2*index.DefaultSnippetWindow] + "..."
	}
	return strings.TrimSpace(content)
}

// Index stores a document and pushes it into every attached backend.
// Re-indexing an existing id replaces it everywhere.
func (e *Engine) Index(ctx context.Context, doc *store.Document, symbols []*store.Symbol) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.docs.SaveDocument(ctx, doc, symbols); err != nil {
		return err
	}
	e.idx.Add(doc.ID, doc.Content, doc.Fields)

	if e.fuzzy != nil {
		if err := e.fuzzy.Index(ctx, []*store.Document{doc}); err != nil {
			return cierrors.Wrap(cierrors.ErrCodeStoreWrite, err)
		}
	}
	if e.embedder != nil && e.vectors != nil {
		vec, err := e.embedder.Embed(ctx, doc.Content)
		if err != nil {
			return cierrors.New(cierrors.ErrCodeEmbeddingFailed, "embed document "+doc.ID, err)
		}
		if err := e.vectors.Add(ctx, []string{doc.ID}, [][]float32{vec}); err != nil {
			return cierrors.Wrap(cierrors.ErrCodeStoreWrite, err)
		}
	}
	return nil
}

// Delete removes a document from every backend. Deleting an unknown
// id is a no-op.
func (e *Engine) Delete(ctx context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.docs.DeleteDocument(ctx, id); err != nil {
		return err
	}
	e.idx.Remove(id)
	if e.fuzzy != nil {
		if err := e.fuzzy.Delete(ctx, []string{id}); err != nil {
			return cierrors.Wrap(cierrors.ErrCodeStoreWrite, err)
		}
	}
	if e.vectors != nil {
		if err := e.vectors.Delete(ctx, []string{id}); err != nil {
			return cierrors.Wrap(cierrors.ErrCodeStoreWrite, err)
		}
	}
	return nil
}

// Warm populates the in-memory inverted index from the document
// store. Called once at startup: the BM25 index is derived state and
// never persisted, while the fuzzy and vector backends load their own
// on-disk data.
func (e *Engine) Warm(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.idx.Reset()
	return e.docs.IterateDocuments(ctx, func(doc *store.Document) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		e.idx.Add(doc.ID, doc.Content, doc.Fields)
		return nil
	})
}

// Rebuild drops the derived indexes and reconstructs them from the
// document store, which is the source of truth. Used after corruption
// or a format change.
func (e *Engine) Rebuild(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.idx.Reset()
	if e.fuzzy != nil {
		if err := e.fuzzy.Reset(ctx); err != nil {
			return cierrors.Wrap(cierrors.ErrCodeStoreWrite, err)
		}
	}
	if e.vectors != nil {
		if err := e.vectors.Reset(); err != nil {
			return cierrors.Wrap(cierrors.ErrCodeStoreWrite, err)
		}
	}
	e.cache.purge()

	return e.docs.IterateDocuments(ctx, func(doc *store.Document) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		e.idx.Add(doc.ID, doc.Content, doc.Fields)
		if e.fuzzy != nil {
			if err := e.fuzzy.Index(ctx, []*store.Document{doc}); err != nil {
				return err
			}
		}
		if e.embedder != nil && e.vectors != nil {
			vec, err := e.embedder.Embed(ctx, doc.Content)
			if err != nil {
				return err
			}
			if err := e.vectors.Add(ctx, []string{doc.ID}, [][]float32{vec}); err != nil {
				return err
			}
		}
		return nil
	})
}

// Stats describes the engine's current index state.
type Stats struct {
	Documents    int                `json:"documents"`
	Terms        int                `json:"terms"`
	IndexVersion uint64             `json:"index_version"`
	AvgDocLength float64            `json:"avg_doc_length"`
	Vectors      int                `json:"vectors,omitempty"`
	Sources      []string           `json:"sources"`
	Search       telemetry.Snapshot `json:"search"`
}

// Stats snapshots index sizes and search telemetry.
func (e *Engine) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{
		Documents:    e.idx.TotalDocuments(),
		Terms:        e.idx.TermCount(),
		IndexVersion: e.idx.Version(),
		AvgDocLength: e.idx.AverageDocumentLength(),
		Sources:      e.activeSources(e.cfg.Load(), nil),
		Search:       e.metrics.Snapshot(),
	}
	if e.vectors != nil {
		st.Vectors = e.vectors.Count()
	}
	return st, nil
}

// Lookup returns symbols whose name matches exactly.
func (e *Engine) Lookup(ctx context.Context, name string) ([]*store.Symbol, error) {
	return e.docs.LookupSymbol(ctx, name)
}

// Close releases every backend.
func (e *Engine) Close() error {
	var errs []error
	if e.fuzzy != nil {
		errs = append(errs, e.fuzzy.Close())
	}
	if e.vectors != nil {
		errs = append(errs, e.vectors.Close())
	}
	errs = append(errs, e.docs.Close())
	return errors.Join(errs...)
}
