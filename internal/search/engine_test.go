package search

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ViperJuice/codeindex/internal/config"
	cierrors "github.com/ViperJuice/codeindex/internal/errors"
	"github.com/ViperJuice/codeindex/internal/store"
)

// memStore is an in-memory DocumentStore for engine tests.
type memStore struct {
	docs    map[string]*store.Document
	symbols map[string][]*store.Symbol
}

var _ store.DocumentStore = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{
		docs:    make(map[string]*store.Document),
		symbols: make(map[string][]*store.Symbol),
	}
}

func (m *memStore) SaveDocument(_ context.Context, doc *store.Document, symbols []*store.Symbol) error {
	m.docs[doc.ID] = doc
	m.symbols[doc.ID] = symbols
	return nil
}

func (m *memStore) GetDocument(_ context.Context, id string) (*store.Document, error) {
	return m.docs[id], nil
}

func (m *memStore) GetDocuments(_ context.Context, ids []string) ([]*store.Document, error) {
	var out []*store.Document
	for _, id := range ids {
		if d, ok := m.docs[id]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *memStore) DeleteDocument(_ context.Context, id string) error {
	delete(m.docs, id)
	delete(m.symbols, id)
	return nil
}

func (m *memStore) IterateDocuments(_ context.Context, fn func(*store.Document) error) error {
	ids := make([]string, 0, len(m.docs))
	for id := range m.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if err := fn(m.docs[id]); err != nil {
			return err
		}
	}
	return nil
}

func (m *memStore) LookupSymbol(_ context.Context, name string) ([]*store.Symbol, error) {
	var out []*store.Symbol
	for _, syms := range m.symbols {
		for _, s := range syms {
			if s.Name == name {
				out = append(out, s)
			}
		}
	}
	return out, nil
}

func (m *memStore) CountDocuments(_ context.Context) (int, error) {
	return len(m.docs), nil
}

func (m *memStore) Close() error { return nil }

// stubSource is an injectable search source.
type stubSource struct {
	name    string
	results []*RankedResult
	err     error
	delay   time.Duration
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Search(ctx context.Context, _ string, _ int) ([]*RankedResult, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.results, nil
}

func newTestEngine(t *testing.T, mutate func(*config.SearchConfig)) (*Engine, *memStore) {
	t.Helper()
	cfg := config.NewConfig().Search
	if mutate != nil {
		mutate(&cfg)
	}
	docs := newMemStore()
	e, err := NewEngine(&cfg, docs)
	require.NoError(t, err)
	return e, docs
}

func indexDoc(t *testing.T, e *Engine, id, path, lang, content string) {
	t.Helper()
	err := e.Index(context.Background(), &store.Document{
		ID:       id,
		Path:     path,
		Language: lang,
		Content:  content,
	}, nil)
	require.NoError(t, err)
}

func TestEngine_BasicSearch(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	indexDoc(t, e, "d1", "pool.go", "go", "connection pool timeout handling")
	indexDoc(t, e, "d2", "other.go", "go", "unrelated helper code")

	resp, err := e.Search(context.Background(), "connection pool", Options{})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "d1", resp.Results[0].DocID)
	assert.Equal(t, "pool.go", resp.Results[0].Path)
	assert.Contains(t, resp.Results[0].Snippet, "connection pool")
	assert.Empty(t, resp.Degraded)
	assert.False(t, resp.CacheHit)
}

func TestEngine_EmptyAndInvalidQuery(t *testing.T) {
	e, _ := newTestEngine(t, nil)

	_, err := e.Search(context.Background(), "   ", Options{})
	require.Error(t, err)
	assert.Equal(t, cierrors.ErrCodeQueryEmpty, cierrors.GetCode(err))

	_, err = e.Search(context.Background(), `"unterminated`, Options{})
	require.Error(t, err)
	assert.Equal(t, cierrors.ErrCodeQuerySyntax, cierrors.GetCode(err))
}

func TestEngine_LanguageAndPathFilters(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	indexDoc(t, e, "d1", "api/server.go", "go", "shared handler term")
	indexDoc(t, e, "d2", "scripts/run.py", "python", "shared handler term")

	resp, err := e.Search(context.Background(), "handler", Options{Language: "go"})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "d1", resp.Results[0].DocID)

	resp, err = e.Search(context.Background(), "handler", Options{PathGlob: "scripts/*.py"})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "d2", resp.Results[0].DocID)
}

func TestEngine_LimitClamped(t *testing.T) {
	e, _ := newTestEngine(t, func(c *config.SearchConfig) {
		c.DefaultLimit = 2
		c.MaxLimit = 3
	})
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		indexDoc(t, e, id, id+".go", "go", "common term in every document")
	}

	resp, err := e.Search(context.Background(), "common", Options{})
	require.NoError(t, err)
	assert.Len(t, resp.Results, 2, "default limit applies")

	resp, err = e.Search(context.Background(), "common", Options{Limit: 100})
	require.NoError(t, err)
	assert.Len(t, resp.Results, 3, "requested limit clamps to max")
}

func TestEngine_CacheHitAndInvalidation(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	indexDoc(t, e, "d1", "a.go", "go", "cached search target")

	first, err := e.Search(context.Background(), "target", Options{})
	require.NoError(t, err)
	assert.False(t, first.CacheHit)

	second, err := e.Search(context.Background(), "target", Options{})
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, fusedIDs(first.Results), fusedIDs(second.Results))

	// Any index mutation makes cached entries stale.
	indexDoc(t, e, "d2", "b.go", "go", "another target appears")
	third, err := e.Search(context.Background(), "target", Options{})
	require.NoError(t, err)
	assert.False(t, third.CacheHit)
	assert.Len(t, third.Results, 2)
}

func TestEngine_DegradedSourceStillAnswers(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	indexDoc(t, e, "d1", "a.go", "go", "resilient search term")
	e.sources[SourceSemantic] = &stubSource{name: SourceSemantic, err: errors.New("backend down")}

	resp, err := e.Search(context.Background(), "resilient", Options{})
	require.NoError(t, err, "a failing source must not fail the search")
	require.Len(t, resp.Results, 1)
	assert.Equal(t, []string{SourceSemantic}, resp.Degraded)
}

func TestEngine_SlowSourceTimesOut(t *testing.T) {
	e, _ := newTestEngine(t, func(c *config.SearchConfig) {
		c.SourceTimeout = 20 * time.Millisecond
	})
	indexDoc(t, e, "d1", "a.go", "go", "prompt answer here")
	e.sources[SourceSemantic] = &stubSource{name: SourceSemantic, delay: time.Second}

	start := time.Now()
	resp, err := e.Search(context.Background(), "prompt", Options{})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 500*time.Millisecond, "timeout must cut the slow source off")
	require.Len(t, resp.Results, 1)
	assert.Equal(t, []string{SourceSemantic}, resp.Degraded)
}

func TestEngine_CancellationPropagates(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	indexDoc(t, e, "d1", "a.go", "go", "some text")
	e.sources[SourceSemantic] = &stubSource{name: SourceSemantic, delay: time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Search(ctx, "text", Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEngine_SourceContribution(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	indexDoc(t, e, "d1", "a.go", "go", "fusion target document")
	indexDoc(t, e, "d2", "b.go", "go", "only semantic likes this")
	e.sources[SourceSemantic] = &stubSource{
		name: SourceSemantic,
		results: []*RankedResult{
			{DocID: "d1", Score: 0.9, Source: SourceSemantic, Rank: 1},
			{DocID: "d2", Score: 0.8, Source: SourceSemantic, Rank: 2},
		},
	}

	resp, err := e.Search(context.Background(), "target", Options{})
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "d1", resp.Results[0].DocID, "agreement across sources wins")
	assert.True(t, resp.Results[0].contributedBy(SourceBM25))
	assert.True(t, resp.Results[0].contributedBy(SourceSemantic))
	assert.Equal(t, []string{SourceSemantic}, resp.Results[1].Sources)
	assert.NotEmpty(t, resp.Results[1].Snippet, "semantic-only hits fall back to a leading snippet")
}

func TestEngine_ConfigureWeights(t *testing.T) {
	e, _ := newTestEngine(t, nil)

	err := e.ConfigureWeights(config.Weights{BM25: -1, Semantic: 1, Fuzzy: 0})
	require.Error(t, err)
	assert.Equal(t, cierrors.ErrCodeConfigInvalid, cierrors.GetCode(err))

	err = e.ConfigureWeights(config.Weights{})
	require.Error(t, err)

	require.NoError(t, e.ConfigureWeights(config.Weights{BM25: 2, Semantic: 1, Fuzzy: 1}))
	assert.Equal(t, 2.0, e.Config().Weights[SourceBM25])
}

func TestEngine_ConfigureSources(t *testing.T) {
	e, _ := newTestEngine(t, nil)

	err := e.ConfigureSources(map[string]bool{"bogus": true})
	require.Error(t, err)

	err = e.ConfigureSources(map[string]bool{SourceBM25: false})
	require.Error(t, err, "disabling every attached source is rejected")

	require.NoError(t, e.ConfigureSources(map[string]bool{SourceFuzzy: false}))
	assert.False(t, e.Config().Enabled[SourceFuzzy])
}

func TestEngine_DeleteRemovesFromResults(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	indexDoc(t, e, "d1", "a.go", "go", "ephemeral content")

	require.NoError(t, e.Delete(context.Background(), "d1"))
	resp, err := e.Search(context.Background(), "ephemeral", Options{})
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
}

func TestEngine_WarmAndRebuild(t *testing.T) {
	e, docs := newTestEngine(t, nil)
	// Simulate documents persisted by a previous run.
	require.NoError(t, docs.SaveDocument(context.Background(), &store.Document{
		ID: "d1", Path: "a.go", Language: "go", Content: "persisted content",
	}, nil))

	require.NoError(t, e.Warm(context.Background()))
	resp, err := e.Search(context.Background(), "persisted", Options{})
	require.NoError(t, err)
	assert.Len(t, resp.Results, 1)

	require.NoError(t, e.Rebuild(context.Background()))
	resp, err = e.Search(context.Background(), "persisted", Options{})
	require.NoError(t, err)
	assert.Len(t, resp.Results, 1, "rebuild reconstructs from the document store")
}

func TestEngine_WarmRestoresFieldPostings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "metadata.db")
	cfg := config.NewConfig().Search
	ctx := context.Background()

	docs, err := store.NewSQLiteStore(path)
	require.NoError(t, err)
	e, err := NewEngine(&cfg, docs)
	require.NoError(t, err)
	require.NoError(t, e.Index(ctx, &store.Document{
		ID:       "routes.go",
		Path:     "routes.go",
		Language: "go",
		Content:  "package api",
		Fields:   map[string]string{"symbols": "RegisterRoutes"},
	}, nil))

	resp, err := e.Search(ctx, "registerroutes", Options{})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1, "field token matches while the indexing engine is live")
	require.NoError(t, e.Close())

	// A fresh process warms from the store and must see the same index.
	reopened, err := store.NewSQLiteStore(path)
	require.NoError(t, err)
	e2, err := NewEngine(&cfg, reopened)
	require.NoError(t, err)
	defer e2.Close()
	require.NoError(t, e2.Warm(ctx))

	resp, err = e2.Search(ctx, "registerroutes", Options{})
	require.NoError(t, err)
	assert.Len(t, resp.Results, 1, "field postings survive a restart")
}

func TestEngine_Stats(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	indexDoc(t, e, "d1", "a.go", "go", "one two three")

	_, err := e.Search(context.Background(), "one", Options{})
	require.NoError(t, err)

	st, err := e.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, st.Documents)
	assert.Greater(t, st.Terms, 0)
	assert.Equal(t, []string{SourceBM25}, st.Sources)
	assert.Equal(t, int64(1), st.Search.TotalSearches)
}
