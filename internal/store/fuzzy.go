package store

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	_ "github.com/blevesearch/bleve/v2/analysis/analyzer/simple"
	bquery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/ViperJuice/codeindex/internal/index"
)

// fuzzyDocument is the document shape indexed into Bleve.
type fuzzyDocument struct {
	Content string `json:"content"`
	Path    string `json:"path"`
}

// BleveFuzzyIndex is the fuzzy text search backend, built on Bleve.
// Queries match with edit distance so typos and near-miss identifiers
// still hit ("tokenzier" finds "tokenizer").
type BleveFuzzyIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	closed bool
}

// NewBleveFuzzyIndex creates a fuzzy index at path.
// An empty path creates an in-memory index for testing.
func NewBleveFuzzyIndex(path string) (*BleveFuzzyIndex, error) {
	mapping := bleve.NewIndexMapping()
	mapping.DefaultAnalyzer = "simple"

	var idx bleve.Index
	var err error
	if path == "" {
		idx, err = bleve.NewMemOnly(mapping)
	} else {
		idx, err = bleve.Open(path)
		if err != nil {
			idx, err = bleve.New(path, mapping)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create/open fuzzy index: %w", err)
	}
	return &BleveFuzzyIndex{index: idx, path: path}, nil
}

// Index adds or replaces documents in a single batch.
func (b *BleveFuzzyIndex) Index(ctx context.Context, docs []*Document) error {
	if len(docs) == 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return fmt.Errorf("index is closed")
	}

	batch := b.index.NewBatch()
	for _, doc := range docs {
		if err := batch.Index(doc.ID, fuzzyDocument{Content: doc.Content, Path: doc.Path}); err != nil {
			return fmt.Errorf("failed to index document %s: %w", doc.ID, err)
		}
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to execute batch: %w", err)
	}
	return nil
}

// Delete removes documents by id.
func (b *BleveFuzzyIndex) Delete(ctx context.Context, ids []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return fmt.Errorf("index is closed")
	}
	batch := b.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}
	return b.index.Batch(batch)
}

// Search runs a fuzzy match over the query terms and returns hits
// ordered by Bleve score descending, id ascending on equal scores.
func (b *BleveFuzzyIndex) Search(ctx context.Context, queryStr string, limit int) ([]*FuzzyResult, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, fmt.Errorf("index is closed")
	}
	if strings.TrimSpace(queryStr) == "" {
		return []*FuzzyResult{}, nil
	}

	terms := index.Terms(queryStr)
	if len(terms) == 0 {
		return []*FuzzyResult{}, nil
	}

	// One fuzzy sub-query per term, OR-ed. Short terms get a tighter
	// edit distance so two-letter terms don't match everything.
	subs := make([]bquery.Query, 0, len(terms))
	for _, term := range terms {
		fq := bleve.NewFuzzyQuery(term)
		fq.SetField("content")
		if len(term) <= 4 {
			fq.SetFuzziness(1)
		} else {
			fq.SetFuzziness(2)
		}
		subs = append(subs, fq)
	}
	disjunction := bleve.NewDisjunctionQuery(subs...)

	req := bleve.NewSearchRequest(disjunction)
	req.Size = limit
	req.SortBy([]string{"-_score", "_id"})

	result, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("fuzzy search failed: %w", err)
	}

	results := make([]*FuzzyResult, 0, len(result.Hits))
	for _, hit := range result.Hits {
		results = append(results, &FuzzyResult{DocID: hit.ID, Score: hit.Score})
	}
	return results, nil
}

// Count returns the number of indexed documents.
func (b *BleveFuzzyIndex) Count() (uint64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return 0, fmt.Errorf("index is closed")
	}
	return b.index.DocCount()
}

// Reset drops all documents. Used by rebuild.
func (b *BleveFuzzyIndex) Reset(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return fmt.Errorf("index is closed")
	}

	// Bleve has no truncate; delete ids via a match-all walk.
	all := bleve.NewMatchAllQuery()
	req := bleve.NewSearchRequest(all)
	req.Size = 1000
	for {
		result, err := b.index.SearchInContext(ctx, req)
		if err != nil {
			return err
		}
		if len(result.Hits) == 0 {
			return nil
		}
		batch := b.index.NewBatch()
		for _, hit := range result.Hits {
			batch.Delete(hit.ID)
		}
		if err := b.index.Batch(batch); err != nil {
			return err
		}
	}
}

// Close releases the index.
func (b *BleveFuzzyIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.index.Close()
}
