package index

import (
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	cierrors "github.com/ViperJuice/codeindex/internal/errors"
)

// Posting records one (term, document) pair: how often the term occurs
// in the document and at which token positions. Positions are ascending.
type Posting struct {
	DocID     string
	Frequency int
	Positions []int
}

// docEntry holds per-document statistics owned by the index.
type docEntry struct {
	length       int
	fieldLengths map[string]int
	terms        []string // distinct terms, for O(terms) removal
}

// Inverted is a positional inverted index over code documents.
//
// Single-writer/multiple-reader: mutations take the exclusive lock,
// reads take the shared lock only long enough to snapshot a postings
// slice, so long searches never block indexing beyond that critical
// section. Total document count and summed length are maintained
// incrementally so average document length is O(1) at score time.
type Inverted struct {
	mu       sync.RWMutex
	postings map[string]map[string]*Posting
	docs     map[string]*docEntry
	totalLen int
	version  atomic.Uint64
}

// NewInverted creates an empty inverted index.
func NewInverted() *Inverted {
	return &Inverted{
		postings: make(map[string]map[string]*Posting),
		docs:     make(map[string]*docEntry),
	}
}

// Add indexes a document, replacing any previous content under the
// same id. Replace-before-add guarantees a re-indexed file never
// double-counts term frequencies. Field values are indexed after the
// body with positions continuing, and per-field lengths are tracked.
func (ix *Inverted) Add(id, text string, fields map[string]string) {
	toks := Tokenize(text)
	length := 0
	if len(toks) > 0 {
		length = toks[len(toks)-1].Position + 1
	}

	fieldLengths := make(map[string]int, len(fields))
	// Deterministic field order keeps positions stable across re-adds.
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		ftoks := Tokenize(fields[name])
		flen := 0
		if len(ftoks) > 0 {
			flen = ftoks[len(ftoks)-1].Position + 1
		}
		for _, t := range ftoks {
			t.Position += length
			toks = append(toks, t)
		}
		fieldLengths[name] = flen
		length += flen
	}

	perTerm := make(map[string]*Posting)
	for _, t := range toks {
		p, ok := perTerm[t.Term]
		if !ok {
			p = &Posting{DocID: id}
			perTerm[t.Term] = p
		}
		p.Frequency++
		p.Positions = append(p.Positions, t.Position)
	}

	terms := make([]string, 0, len(perTerm))
	for term := range perTerm {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.removeLocked(id)

	for term, p := range perTerm {
		bucket, ok := ix.postings[term]
		if !ok {
			bucket = make(map[string]*Posting)
			ix.postings[term] = bucket
		}
		bucket[id] = p
	}
	ix.docs[id] = &docEntry{length: length, fieldLengths: fieldLengths, terms: terms}
	ix.totalLen += length
	ix.version.Add(1)
}

// Remove deletes a document and all its postings.
// Removing an unknown id is a no-op.
func (ix *Inverted) Remove(id string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.removeLocked(id) {
		ix.version.Add(1)
	}
}

func (ix *Inverted) removeLocked(id string) bool {
	entry, ok := ix.docs[id]
	if !ok {
		return false
	}
	for _, term := range entry.terms {
		bucket := ix.postings[term]
		delete(bucket, id)
		if len(bucket) == 0 {
			delete(ix.postings, term)
		}
	}
	ix.totalLen -= entry.length
	delete(ix.docs, id)
	return true
}

// Postings returns a snapshot of the postings list for a term, sorted
// by document id ascending. Documents whose length statistics violate
// the index invariant are dropped from the index and skipped.
func (ix *Inverted) Postings(term string) []Posting {
	ix.mu.RLock()
	bucket := ix.postings[term]
	out := make([]Posting, 0, len(bucket))
	var corrupt []string
	for id, p := range bucket {
		entry := ix.docs[id]
		if entry == nil || entry.length < 0 || p.Frequency <= 0 {
			corrupt = append(corrupt, id)
			continue
		}
		out = append(out, *p)
	}
	ix.mu.RUnlock()

	if len(corrupt) > 0 {
		ix.dropCorrupt(corrupt)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].DocID < out[j].DocID })
	return out
}

// dropCorrupt removes documents that violate the postings/length
// invariant. Only the affected documents are dropped; the rest of the
// index keeps serving.
func (ix *Inverted) dropCorrupt(ids []string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	for _, id := range ids {
		err := cierrors.CorruptionError(id, "document length invariant violated, dropping document")
		slog.Warn("index corruption detected",
			slog.String("doc_id", id),
			slog.String("code", err.Code))
		if ix.removeLocked(id) {
			ix.version.Add(1)
		}
	}
}

// PrefixTerms returns every indexed term starting with stem, sorted.
func (ix *Inverted) PrefixTerms(stem string) []string {
	ix.mu.RLock()
	var terms []string
	for term := range ix.postings {
		if len(term) >= len(stem) && term[:len(stem)] == stem {
			terms = append(terms, term)
		}
	}
	ix.mu.RUnlock()
	sort.Strings(terms)
	return terms
}

// DocumentFrequency returns the number of documents containing term.
func (ix *Inverted) DocumentFrequency(term string) int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.postings[term])
}

// DocumentLength returns the token length of a document, 0 if unknown.
func (ix *Inverted) DocumentLength(id string) int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if entry, ok := ix.docs[id]; ok {
		return entry.length
	}
	return 0
}

// FieldLength returns the token length of one field of a document.
func (ix *Inverted) FieldLength(id, field string) int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if entry, ok := ix.docs[id]; ok {
		return entry.fieldLengths[field]
	}
	return 0
}

// Contains reports whether a document id is indexed.
func (ix *Inverted) Contains(id string) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	_, ok := ix.docs[id]
	return ok
}

// TotalDocuments returns the number of indexed documents.
func (ix *Inverted) TotalDocuments() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.docs)
}

// AverageDocumentLength returns the mean token length across documents.
func (ix *Inverted) AverageDocumentLength() float64 {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if len(ix.docs) == 0 {
		return 0
	}
	return float64(ix.totalLen) / float64(len(ix.docs))
}

// TermCount returns the number of distinct indexed terms.
func (ix *Inverted) TermCount() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.postings)
}

// Version returns the index mutation counter. Every successful Add or
// Remove bumps it; result caches store the version they were computed
// against so stale entries are detectable without an active sweep.
func (ix *Inverted) Version() uint64 {
	return ix.version.Load()
}

// Reset drops all documents and postings. Used by rebuild.
func (ix *Inverted) Reset() {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.postings = make(map[string]map[string]*Posting)
	ix.docs = make(map[string]*docEntry)
	ix.totalLen = 0
	ix.version.Add(1)
}
