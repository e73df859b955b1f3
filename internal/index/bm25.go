package index

import (
	"math"
	"sort"

	"github.com/ViperJuice/codeindex/internal/query"
)

// BM25Params holds the BM25 tuning constants.
type BM25Params struct {
	// K1 controls term-frequency saturation (default: 1.2).
	K1 float64
	// B controls document-length normalization (default: 0.75).
	B float64
}

// DefaultBM25Params returns the standard constants.
func DefaultBM25Params() BM25Params {
	return BM25Params{K1: 1.2, B: 0.75}
}

// Scored is one ranked document with the token positions that matched,
// kept for snippet extraction and highlighting.
type Scored struct {
	DocID     string
	Score     float64
	Positions []int
}

// Scorer ranks documents from an inverted index against a parsed query.
type Scorer struct {
	idx    *Inverted
	params BM25Params
}

// NewScorer creates a BM25 scorer over the given index.
func NewScorer(idx *Inverted, params BM25Params) *Scorer {
	if params.K1 <= 0 {
		params.K1 = 1.2
	}
	if params.B < 0 || params.B > 1 {
		params.B = 0.75
	}
	return &Scorer{idx: idx, params: params}
}

// Score evaluates a query tree and returns matching documents sorted by
// BM25 score descending, document id ascending on ties. Documents with
// no matching terms are never scored, so ranking is O(matching docs).
func (s *Scorer) Score(node *query.Node) []Scored {
	cands := s.eval(node)
	out := make([]Scored, 0, len(cands))
	for id, c := range cands {
		sort.Ints(c.positions)
		out = append(out, Scored{DocID: id, Score: c.score, Positions: c.positions})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].DocID < out[j].DocID
	})
	return out
}

type candidate struct {
	score     float64
	positions []int
}

func (s *Scorer) eval(node *query.Node) map[string]*candidate {
	if node == nil {
		return nil
	}
	switch node.Kind {
	case query.KindTerm:
		return s.evalTerm(node.Term)
	case query.KindPrefix:
		return s.evalPrefix(node.Term)
	case query.KindPhrase:
		return s.evalPositional(node.Terms, 0)
	case query.KindNear:
		return s.evalPositional(node.Terms, node.Distance)
	case query.KindAnd:
		return s.evalAnd(node.Children)
	case query.KindOr:
		return s.evalOr(node.Children)
	case query.KindNot:
		// A bare NOT matches nothing; exclusion only applies inside AND.
		return map[string]*candidate{}
	default:
		return map[string]*candidate{}
	}
}

// idf computes ln(1 + (N - df + 0.5) / (df + 0.5)).
func (s *Scorer) idf(df int) float64 {
	n := float64(s.idx.TotalDocuments())
	return math.Log(1 + (n-float64(df)+0.5)/(float64(df)+0.5))
}

// contribution computes the per-document BM25 term contribution.
func (s *Scorer) contribution(idf float64, tf, docLen int, avgLen float64) float64 {
	if avgLen == 0 {
		return 0
	}
	k1, b := s.params.K1, s.params.B
	norm := 1 - b + b*(float64(docLen)/avgLen)
	return idf * (float64(tf) * (k1 + 1)) / (float64(tf) + k1*norm)
}

func (s *Scorer) evalTerm(term string) map[string]*candidate {
	postings := s.idx.Postings(term)
	if len(postings) == 0 {
		return map[string]*candidate{}
	}
	idf := s.idf(len(postings))
	avgLen := s.idx.AverageDocumentLength()
	out := make(map[string]*candidate, len(postings))
	for _, p := range postings {
		out[p.DocID] = &candidate{
			score:     s.contribution(idf, p.Frequency, s.idx.DocumentLength(p.DocID), avgLen),
			positions: append([]int(nil), p.Positions...),
		}
	}
	return out
}

func (s *Scorer) evalPrefix(stem string) map[string]*candidate {
	out := make(map[string]*candidate)
	for _, term := range s.idx.PrefixTerms(stem) {
		merge(out, s.evalTerm(term))
	}
	return out
}

// evalPositional handles Phrase (maxDist 0: consecutive, in order) and
// NEAR (maxDist > 0: all terms within the distance, any order). The
// candidate set is the intersection of the terms' postings; position
// lists decide which candidates structurally match, and only those get
// the sum of the constituent terms' BM25 contributions.
func (s *Scorer) evalPositional(terms []string, maxDist int) map[string]*candidate {
	if len(terms) == 0 {
		return map[string]*candidate{}
	}
	lists := make([]map[string]Posting, len(terms))
	dfs := make([]int, len(terms))
	for i, term := range terms {
		postings := s.idx.Postings(term)
		if len(postings) == 0 {
			return map[string]*candidate{}
		}
		byDoc := make(map[string]Posting, len(postings))
		for _, p := range postings {
			byDoc[p.DocID] = p
		}
		lists[i] = byDoc
		dfs[i] = len(postings)
	}

	avgLen := s.idx.AverageDocumentLength()
	out := make(map[string]*candidate)
	for id, first := range lists[0] {
		docPostings := make([]Posting, len(terms))
		docPostings[0] = first
		inAll := true
		for i := 1; i < len(terms); i++ {
			p, ok := lists[i][id]
			if !ok {
				inAll = false
				break
			}
			docPostings[i] = p
		}
		if !inAll {
			continue
		}

		var matched []int
		if maxDist == 0 {
			matched = phrasePositions(docPostings)
		} else {
			matched = nearPositions(docPostings, maxDist)
		}
		if matched == nil {
			continue
		}

		docLen := s.idx.DocumentLength(id)
		score := 0.0
		for i, p := range docPostings {
			score += s.contribution(s.idf(dfs[i]), p.Frequency, docLen, avgLen)
		}
		out[id] = &candidate{score: score, positions: matched}
	}
	return out
}

// phrasePositions returns the matched window for the first occurrence
// of the terms at strictly consecutive positions, or nil if none.
func phrasePositions(postings []Posting) []int {
	sets := make([]map[int]bool, len(postings))
	for i, p := range postings {
		set := make(map[int]bool, len(p.Positions))
		for _, pos := range p.Positions {
			set[pos] = true
		}
		sets[i] = set
	}
	for _, start := range postings[0].Positions {
		ok := true
		for i := 1; i < len(postings); i++ {
			if !sets[i][start+i] {
				ok = false
				break
			}
		}
		if ok {
			window := make([]int, len(postings))
			for i := range postings {
				window[i] = start + i
			}
			return window
		}
	}
	return nil
}

// nearPositions returns a window where occurrences of every term fall
// within maxDist positions of each other, or nil if none. Implemented
// as a sliding window over the merged occurrence stream.
func nearPositions(postings []Posting, maxDist int) []int {
	type occ struct {
		pos  int
		term int
	}
	var occs []occ
	for i, p := range postings {
		for _, pos := range p.Positions {
			occs = append(occs, occ{pos: pos, term: i})
		}
	}
	sort.Slice(occs, func(i, j int) bool { return occs[i].pos < occs[j].pos })

	counts := make([]int, len(postings))
	covered := 0
	lo := 0
	for hi := 0; hi < len(occs); hi++ {
		if counts[occs[hi].term] == 0 {
			covered++
		}
		counts[occs[hi].term]++
		for covered == len(postings) {
			if occs[hi].pos-occs[lo].pos <= maxDist {
				window := make([]int, 0, hi-lo+1)
				for k := lo; k <= hi; k++ {
					window = append(window, occs[k].pos)
				}
				return window
			}
			counts[occs[lo].term]--
			if counts[occs[lo].term] == 0 {
				covered--
			}
			lo++
		}
	}
	return nil
}

func (s *Scorer) evalAnd(children []*query.Node) map[string]*candidate {
	var positives []*query.Node
	var negatives []*query.Node
	for _, c := range children {
		if c.Kind == query.KindNot {
			negatives = append(negatives, c.Children[0])
		} else {
			positives = append(positives, c)
		}
	}
	if len(positives) == 0 {
		// Pure exclusion has no candidate set to subtract from.
		return map[string]*candidate{}
	}

	out := s.eval(positives[0])
	for _, p := range positives[1:] {
		next := s.eval(p)
		for id, c := range out {
			n, ok := next[id]
			if !ok {
				delete(out, id)
				continue
			}
			c.score += n.score
			c.positions = append(c.positions, n.positions...)
		}
	}
	for _, n := range negatives {
		for id := range s.eval(n) {
			delete(out, id)
		}
	}
	return out
}

func (s *Scorer) evalOr(children []*query.Node) map[string]*candidate {
	out := make(map[string]*candidate)
	for _, c := range children {
		merge(out, s.eval(c))
	}
	return out
}

// merge folds src into dst, summing scores and unioning positions.
func merge(dst, src map[string]*candidate) {
	for id, c := range src {
		if existing, ok := dst[id]; ok {
			existing.score += c.score
			existing.positions = append(existing.positions, c.positions...)
		} else {
			dst[id] = c
		}
	}
}
