package search

import (
	"context"
	"fmt"

	"github.com/ViperJuice/codeindex/internal/embed"
	"github.com/ViperJuice/codeindex/internal/index"
	"github.com/ViperJuice/codeindex/internal/query"
	"github.com/ViperJuice/codeindex/internal/store"
)

// bm25Source adapts the local inverted-index scorer to the Source
// interface. It is in-process and never times out.
type bm25Source struct {
	scorer *index.Scorer
}

var _ Source = (*bm25Source)(nil)

func newBM25Source(scorer *index.Scorer) *bm25Source {
	return &bm25Source{scorer: scorer}
}

func (s *bm25Source) Name() string { return SourceBM25 }

func (s *bm25Source) Search(ctx context.Context, q string, limit int) ([]*RankedResult, error) {
	node, err := query.Parse(q)
	if err != nil {
		return nil, err
	}
	if node == nil {
		return nil, nil
	}
	scored := s.scorer.Score(node)
	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	out := make([]*RankedResult, len(scored))
	for i, sc := range scored {
		out[i] = &RankedResult{
			DocID:     sc.DocID,
			Score:     sc.Score,
			Source:    SourceBM25,
			Rank:      i + 1,
			Positions: sc.Positions,
		}
	}
	return out, nil
}

// semanticSource embeds the query and searches the HNSW vector store.
type semanticSource struct {
	embedder embed.Embedder
	vectors  *store.HNSWStore
}

var _ Source = (*semanticSource)(nil)

func newSemanticSource(embedder embed.Embedder, vectors *store.HNSWStore) *semanticSource {
	return &semanticSource{embedder: embedder, vectors: vectors}
}

func (s *semanticSource) Name() string { return SourceSemantic }

func (s *semanticSource) Search(ctx context.Context, q string, limit int) ([]*RankedResult, error) {
	vec, err := s.embedder.Embed(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	hits, err := s.vectors.Search(ctx, vec, limit)
	if err != nil {
		return nil, err
	}
	out := make([]*RankedResult, len(hits))
	for i, h := range hits {
		out[i] = &RankedResult{
			DocID:  h.ID,
			Score:  float64(h.Score),
			Source: SourceSemantic,
			Rank:   i + 1,
		}
	}
	return out, nil
}

// fuzzySource wraps the bleve index for typo-tolerant matching.
type fuzzySource struct {
	idx *store.BleveFuzzyIndex
}

var _ Source = (*fuzzySource)(nil)

func newFuzzySource(idx *store.BleveFuzzyIndex) *fuzzySource {
	return &fuzzySource{idx: idx}
}

func (s *fuzzySource) Name() string { return SourceFuzzy }

func (s *fuzzySource) Search(ctx context.Context, q string, limit int) ([]*RankedResult, error) {
	hits, err := s.idx.Search(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	out := make([]*RankedResult, len(hits))
	for i, h := range hits {
		out[i] = &RankedResult{
			DocID:  h.DocID,
			Score:  h.Score,
			Source: SourceFuzzy,
			Rank:   i + 1,
		}
	}
	return out, nil
}
