package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rankedList(source string, ids ...string) []*RankedResult {
	out := make([]*RankedResult, len(ids))
	for i, id := range ids {
		out[i] = &RankedResult{
			DocID:  id,
			Score:  float64(len(ids) - i),
			Source: source,
			Rank:   i + 1,
		}
	}
	return out
}

func fusedIDs(results []*FusedResult) []string {
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.DocID
	}
	return ids
}

var defaultWeights = map[string]float64{
	SourceBM25:     0.5,
	SourceSemantic: 0.3,
	SourceFuzzy:    0.2,
}

func TestFuse_AgreementWins(t *testing.T) {
	lists := map[string][]*RankedResult{
		SourceBM25:     rankedList(SourceBM25, "A", "B", "C"),
		SourceSemantic: rankedList(SourceSemantic, "C", "A", "D"),
	}
	fused := fuse(lists, defaultWeights, DefaultRRFK)
	require.Len(t, fused, 4)

	// A appears near the top of both lists so it must beat B and D,
	// which each appear in only one.
	assert.Equal(t, "A", fused[0].DocID)
	assert.ElementsMatch(t, []string{SourceBM25, SourceSemantic}, fused[0].Sources)
	assert.Equal(t, 1, fused[0].Ranks[SourceBM25])
	assert.Equal(t, 2, fused[0].Ranks[SourceSemantic])
}

func TestFuse_ScoresAreRRF(t *testing.T) {
	lists := map[string][]*RankedResult{
		SourceBM25:     rankedList(SourceBM25, "A"),
		SourceSemantic: rankedList(SourceSemantic, "A"),
	}
	fused := fuse(lists, map[string]float64{SourceBM25: 0.5, SourceSemantic: 0.5}, 60)
	require.Len(t, fused, 1)
	assert.InDelta(t, 0.5/61+0.5/61, fused[0].Score, 1e-12)
}

func TestFuse_AbsentContributesNothing(t *testing.T) {
	lists := map[string][]*RankedResult{
		SourceBM25:     rankedList(SourceBM25, "A", "B"),
		SourceSemantic: rankedList(SourceSemantic, "A"),
	}
	fused := fuse(lists, map[string]float64{SourceBM25: 0.5, SourceSemantic: 0.5}, 60)
	require.Len(t, fused, 2)

	var b *FusedResult
	for _, f := range fused {
		if f.DocID == "B" {
			b = f
		}
	}
	require.NotNil(t, b)
	assert.InDelta(t, 0.5/62, b.Score, 1e-12, "B gets only its BM25 contribution")
	assert.Equal(t, []string{SourceBM25}, b.Sources)
}

func TestFuse_Deterministic(t *testing.T) {
	lists := map[string][]*RankedResult{
		SourceBM25:     rankedList(SourceBM25, "A", "B", "C", "D"),
		SourceSemantic: rankedList(SourceSemantic, "D", "C", "B", "A"),
		SourceFuzzy:    rankedList(SourceFuzzy, "B", "D", "A", "C"),
	}
	first := fusedIDs(fuse(lists, defaultWeights, DefaultRRFK))
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, fusedIDs(fuse(lists, defaultWeights, DefaultRRFK)))
	}
}

func TestFuse_TieBreakByDocID(t *testing.T) {
	// Symmetric ranks with equal weights produce identical scores; the
	// tie must resolve by document id ascending.
	lists := map[string][]*RankedResult{
		SourceBM25:     rankedList(SourceBM25, "zzz", "aaa"),
		SourceSemantic: rankedList(SourceSemantic, "aaa", "zzz"),
	}
	fused := fuse(lists, map[string]float64{SourceBM25: 0.5, SourceSemantic: 0.5}, 60)
	require.Len(t, fused, 2)
	assert.InDelta(t, fused[0].Score, fused[1].Score, 1e-12)
	assert.Equal(t, []string{"aaa", "zzz"}, fusedIDs(fused))
}

func TestFuse_EmptyListEquivalentToMissingSource(t *testing.T) {
	// A degraded source hands fusion an empty list; the ordering must
	// match fusing without that source entirely.
	with := map[string][]*RankedResult{
		SourceBM25:     rankedList(SourceBM25, "A", "B", "C"),
		SourceSemantic: nil,
	}
	without := map[string][]*RankedResult{
		SourceBM25: rankedList(SourceBM25, "A", "B", "C"),
	}
	assert.Equal(t,
		fusedIDs(fuse(without, defaultWeights, DefaultRRFK)),
		fusedIDs(fuse(with, defaultWeights, DefaultRRFK)))
}

func TestFuse_ZeroWeightSourceIgnored(t *testing.T) {
	lists := map[string][]*RankedResult{
		SourceBM25:  rankedList(SourceBM25, "A"),
		SourceFuzzy: rankedList(SourceFuzzy, "B"),
	}
	fused := fuse(lists, map[string]float64{SourceBM25: 1.0, SourceFuzzy: 0}, 60)
	assert.Equal(t, []string{"A"}, fusedIDs(fused))
}

func TestNormalizeWeights(t *testing.T) {
	weights := map[string]float64{SourceBM25: 2, SourceSemantic: 1, SourceFuzzy: 1}
	enabled := map[string]bool{SourceBM25: true, SourceSemantic: true}

	norm := normalizeWeights(weights, enabled)
	assert.InDelta(t, 2.0/3, norm[SourceBM25], 1e-12)
	assert.InDelta(t, 1.0/3, norm[SourceSemantic], 1e-12)
	_, hasFuzzy := norm[SourceFuzzy]
	assert.False(t, hasFuzzy, "disabled sources get no weight")
}
