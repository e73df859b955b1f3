package index

import (
	"sort"
	"strings"
)

// DefaultSnippetWindow is the number of raw characters kept on each
// side of the matched cluster.
const DefaultSnippetWindow = 80

const ellipsis = "..."

// Range is a half-open byte range used for highlight markers.
type Range struct {
	Start int
	End   int
}

// Snippet is a bounded excerpt of a document with match markers.
// Highlight offsets are relative to Text, not the source document.
type Snippet struct {
	Text       string
	Highlights []Range
}

// ExtractSnippet produces an excerpt of docText around the matched
// token positions. The window centers on the first matched-term
// cluster with the smallest byte span; each side is truncated to
// window characters with ellipsis markers when cut.
func ExtractSnippet(docText string, matchedPositions []int, window int) Snippet {
	if window <= 0 {
		window = DefaultSnippetWindow
	}
	if docText == "" || len(matchedPositions) == 0 {
		return truncatePlain(docText, window)
	}

	toks := Tokenize(docText)
	byPos := make(map[int][]Range)
	for _, t := range toks {
		byPos[t.Position] = append(byPos[t.Position], Range{Start: t.Start, End: t.End})
	}

	positions := dedupeSorted(matchedPositions)
	var ranges []Range
	for _, pos := range positions {
		ranges = append(ranges, byPos[pos]...)
	}
	if len(ranges) == 0 {
		return truncatePlain(docText, window)
	}
	sort.Slice(ranges, func(i, j int) bool { return ranges[i].Start < ranges[j].Start })

	cluster := tightestCluster(ranges)

	// Expand the window around the cluster.
	start := cluster.Start - window
	leftCut := start > 0
	if !leftCut {
		start = 0
	}
	end := cluster.End + window
	rightCut := end < len(docText)
	if !rightCut {
		end = len(docText)
	}

	var b strings.Builder
	base := start
	prefix := 0
	if leftCut {
		b.WriteString(ellipsis)
		prefix = len(ellipsis)
	}
	b.WriteString(docText[start:end])
	if rightCut {
		b.WriteString(ellipsis)
	}

	// Re-base highlight offsets into snippet coordinates.
	var highlights []Range
	for _, r := range ranges {
		if r.Start < start || r.End > end {
			continue
		}
		highlights = append(highlights, Range{
			Start: r.Start - base + prefix,
			End:   r.End - base + prefix,
		})
	}

	return Snippet{Text: b.String(), Highlights: highlights}
}

// tightestCluster finds the contiguous run of match ranges with the
// smallest byte span. Runs split where the gap between successive
// matches exceeds the cluster gap. Among runs of the maximum match
// count the smallest span wins, earliest on ties, so a dense cluster
// beats a lone match further along.
func tightestCluster(ranges []Range) Range {
	const clusterGap = 64

	type run struct {
		bounds Range
		count  int
	}
	runs := []run{{bounds: ranges[0], count: 1}}
	for _, r := range ranges[1:] {
		cur := &runs[len(runs)-1]
		if r.Start-cur.bounds.End > clusterGap {
			runs = append(runs, run{bounds: r, count: 1})
			continue
		}
		if r.End > cur.bounds.End {
			cur.bounds.End = r.End
		}
		cur.count++
	}

	best := runs[0]
	for _, candidate := range runs[1:] {
		if candidate.count > best.count {
			best = candidate
			continue
		}
		if candidate.count == best.count &&
			candidate.bounds.End-candidate.bounds.Start < best.bounds.End-best.bounds.Start {
			best = candidate
		}
	}
	return best.bounds
}

func truncatePlain(text string, window int) Snippet {
	limit := 2 * window
	if len(text) <= limit {
		return Snippet{Text: text, Highlights: []Range{}}
	}
	return Snippet{Text: text[:limit] + ellipsis, Highlights: []Range{}}
}

func dedupeSorted(positions []int) []int {
	sorted := append([]int(nil), positions...)
	sort.Ints(sorted)
	out := sorted[:0]
	for i, p := range sorted {
		if i == 0 || p != sorted[i-1] {
			out = append(out, p)
		}
	}
	return out
}
