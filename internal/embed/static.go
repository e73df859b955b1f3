package embed

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"unicode"

	"github.com/ViperJuice/codeindex/internal/index"
)

// Feature weights: tokens carry most of the signal, character trigrams
// add spelling-level similarity so near-miss identifiers still land
// close together.
const (
	tokenWeight   = 0.7
	trigramWeight = 0.3
)

// StaticEmbedder produces deterministic hash-based embeddings. It runs
// fully offline (no model, no network) at reduced semantic quality,
// which keeps the semantic source usable out of the box. Token features
// come from the same tokenizer the inverted index uses, so a query and
// the document it matches agree on term boundaries.
type StaticEmbedder struct {
	mu     sync.RWMutex
	closed bool
}

var _ Embedder = (*StaticEmbedder)(nil)

// NewStaticEmbedder creates a new static embedder.
func NewStaticEmbedder() *StaticEmbedder {
	return &StaticEmbedder{}
}

// Embed generates an embedding for a single text. Empty or blank text
// embeds to the zero vector.
func (e *StaticEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return nil, fmt.Errorf("embedder is closed")
	}
	e.mu.RUnlock()

	vec := make([]float32, StaticDimensions)
	if strings.TrimSpace(text) == "" {
		return vec, nil
	}

	for _, term := range index.Terms(text) {
		if len(term) < 2 {
			continue
		}
		addFeature(vec, term, tokenWeight)
	}
	for _, tri := range trigrams(text) {
		addFeature(vec, tri, trigramWeight)
	}

	normalize(vec)
	return vec, nil
}

// Dimensions returns the embedding dimension.
func (e *StaticEmbedder) Dimensions() int {
	return StaticDimensions
}

// Close releases resources.
func (e *StaticEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

// addFeature folds one hashed feature into the vector.
func addFeature(vec []float32, feature string, weight float32) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	vec[h.Sum64()%uint64(len(vec))] += weight
}

// trigrams returns 3-rune sliding windows over the text with
// everything but letters and digits removed and case folded.
func trigrams(text string) []string {
	var stream []rune
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			stream = append(stream, r)
		}
	}
	if len(stream) < 3 {
		return nil
	}
	out := make([]string, 0, len(stream)-2)
	for i := 0; i+3 <= len(stream); i++ {
		out = append(out, string(stream[i:i+3]))
	}
	return out
}

// normalize scales the vector to unit length in place.
func normalize(vec []float32) {
	var sum float64
	for _, x := range vec {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}
}
