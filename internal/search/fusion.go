package search

import "sort"

// DefaultRRFK is the standard RRF smoothing constant.
const DefaultRRFK = 60

// fuse merges per-source ranked lists with weighted Reciprocal Rank
// Fusion:
//
//	score(d) = sum over sources s of weight(s) / (k + rank_s(d))
//
// A document absent from a source simply contributes nothing for that
// source, so a degraded source (empty list) changes scores but never
// fails the fusion. Output is ordered by fused score descending, ties
// broken by document id ascending, which makes the result fully
// deterministic for a fixed set of inputs.
func fuse(lists map[string][]*RankedResult, weights map[string]float64, k int) []*FusedResult {
	if k <= 0 {
		k = DefaultRRFK
	}

	byID := make(map[string]*FusedResult)
	// Iterate sources in a fixed order so Sources slices come out
	// stable across calls.
	names := make([]string, 0, len(lists))
	for name := range lists {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		w := weights[name]
		if w <= 0 {
			continue
		}
		for _, r := range lists[name] {
			f, ok := byID[r.DocID]
			if !ok {
				f = &FusedResult{
					DocID: r.DocID,
					Ranks: make(map[string]int),
				}
				byID[r.DocID] = f
			}
			f.Score += w / float64(k+r.Rank)
			f.Sources = append(f.Sources, name)
			f.Ranks[name] = r.Rank
		}
	}

	fused := make([]*FusedResult, 0, len(byID))
	for _, f := range byID {
		fused = append(fused, f)
	}
	sort.Slice(fused, func(i, j int) bool {
		if fused[i].Score != fused[j].Score {
			return fused[i].Score > fused[j].Score
		}
		return fused[i].DocID < fused[j].DocID
	})
	return fused
}

// normalizeWeights scales weights so the enabled ones sum to 1.
// Weights must be non-negative with a positive sum; callers validate
// before storing, so a zero sum here only happens when every enabled
// source has weight 0 and the weights are returned unchanged.
func normalizeWeights(weights map[string]float64, enabled map[string]bool) map[string]float64 {
	var sum float64
	for name, w := range weights {
		if enabled[name] {
			sum += w
		}
	}
	out := make(map[string]float64, len(weights))
	if sum == 0 {
		for name, w := range weights {
			out[name] = w
		}
		return out
	}
	for name, w := range weights {
		if enabled[name] {
			out[name] = w / sum
		}
	}
	return out
}
