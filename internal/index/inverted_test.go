package index

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInverted_AddAndQuery(t *testing.T) {
	ix := NewInverted()
	ix.Add("doc1", "the quick brown fox", nil)
	ix.Add("doc2", "the lazy dog", nil)

	assert.Equal(t, 2, ix.TotalDocuments())
	assert.Equal(t, 2, ix.DocumentFrequency("the"))
	assert.Equal(t, 1, ix.DocumentFrequency("fox"))
	assert.Equal(t, 0, ix.DocumentFrequency("cat"))
	assert.Equal(t, 4, ix.DocumentLength("doc1"))
	assert.Equal(t, 3, ix.DocumentLength("doc2"))
	assert.InDelta(t, 3.5, ix.AverageDocumentLength(), 1e-9)
	assert.True(t, ix.Contains("doc1"))
	assert.False(t, ix.Contains("doc3"))
}

func TestInverted_Positions(t *testing.T) {
	ix := NewInverted()
	ix.Add("d", "a b a c a", nil)

	postings := ix.Postings("a")
	require.Len(t, postings, 1)
	assert.Equal(t, 3, postings[0].Frequency)
	assert.Equal(t, []int{0, 2, 4}, postings[0].Positions)
}

func TestInverted_PostingsSortedByDocID(t *testing.T) {
	ix := NewInverted()
	ix.Add("zeta", "shared term", nil)
	ix.Add("alpha", "shared term", nil)
	ix.Add("mid", "shared term", nil)

	postings := ix.Postings("shared")
	require.Len(t, postings, 3)
	assert.Equal(t, "alpha", postings[0].DocID)
	assert.Equal(t, "mid", postings[1].DocID)
	assert.Equal(t, "zeta", postings[2].DocID)
}

func TestInverted_ReAddReplaces(t *testing.T) {
	ix := NewInverted()
	ix.Add("doc", "old content here", nil)
	ix.Add("doc", "new words", nil)

	assert.Equal(t, 1, ix.TotalDocuments())
	assert.Equal(t, 0, ix.DocumentFrequency("old"))
	assert.Equal(t, 1, ix.DocumentFrequency("new"))
	assert.Equal(t, 2, ix.DocumentLength("doc"))
	assert.InDelta(t, 2.0, ix.AverageDocumentLength(), 1e-9)
}

func TestInverted_ReAddIdempotentStats(t *testing.T) {
	ix := NewInverted()
	ix.Add("a", "one two three", nil)
	ix.Add("b", "four five", nil)

	avg := ix.AverageDocumentLength()
	for i := 0; i < 3; i++ {
		ix.Add("a", "one two three", nil)
	}
	assert.Equal(t, 2, ix.TotalDocuments())
	assert.InDelta(t, avg, ix.AverageDocumentLength(), 1e-9,
		"re-indexing identical content must not drift totals")

	postings := ix.Postings("one")
	require.Len(t, postings, 1)
	assert.Equal(t, 1, postings[0].Frequency)
}

func TestInverted_Remove(t *testing.T) {
	ix := NewInverted()
	ix.Add("doc1", "alpha beta", nil)
	ix.Add("doc2", "beta gamma", nil)

	ix.Remove("doc1")
	assert.Equal(t, 1, ix.TotalDocuments())
	assert.Equal(t, 0, ix.DocumentFrequency("alpha"))
	assert.Equal(t, 1, ix.DocumentFrequency("beta"))

	// Unknown id is a no-op.
	v := ix.Version()
	ix.Remove("nope")
	assert.Equal(t, v, ix.Version())
}

func TestInverted_Fields(t *testing.T) {
	ix := NewInverted()
	ix.Add("doc", "body text", map[string]string{
		"path":    "internal/server/handler.go",
		"symbols": "NewHandler ServeHTTP",
	})

	assert.Equal(t, 1, ix.DocumentFrequency("newhandler"))
	assert.Equal(t, 1, ix.DocumentFrequency("handler.go"))
	assert.Equal(t, 2, ix.FieldLength("doc", "symbols"))
	// Document length includes field tokens.
	assert.Greater(t, ix.DocumentLength("doc"), 2)
}

func TestInverted_CorruptPostingDropsOnlyThatDocument(t *testing.T) {
	ix := NewInverted()
	ix.Add("good", "shared term here", nil)
	ix.Add("bad", "shared term there", nil)

	// Plant an impossible frequency on one document's posting.
	ix.mu.Lock()
	ix.postings["shared"]["bad"].Frequency = 0
	ix.mu.Unlock()

	v := ix.Version()
	postings := ix.Postings("shared")
	require.Len(t, postings, 1, "corrupt document is skipped")
	assert.Equal(t, "good", postings[0].DocID)

	// The corrupt document was dropped entirely, not just skipped,
	// and the mutation bumped the version.
	assert.False(t, ix.Contains("bad"))
	assert.True(t, ix.Contains("good"))
	assert.Equal(t, 1, ix.TotalDocuments())
	assert.Greater(t, ix.Version(), v)

	// Untouched terms keep serving.
	assert.Equal(t, 1, ix.DocumentFrequency("here"))
	assert.Len(t, ix.Postings("shared"), 1)
}

func TestInverted_PrefixTerms(t *testing.T) {
	ix := NewInverted()
	ix.Add("d", "handle handler handling other", nil)

	assert.Equal(t, []string{"handle", "handler", "handling"}, ix.PrefixTerms("hand"))
	assert.Empty(t, ix.PrefixTerms("zzz"))
}

func TestInverted_VersionAdvances(t *testing.T) {
	ix := NewInverted()
	v0 := ix.Version()
	ix.Add("a", "text", nil)
	v1 := ix.Version()
	assert.Greater(t, v1, v0)
	ix.Remove("a")
	assert.Greater(t, ix.Version(), v1)
}

func TestInverted_Reset(t *testing.T) {
	ix := NewInverted()
	ix.Add("a", "some text", nil)
	ix.Reset()
	assert.Equal(t, 0, ix.TotalDocuments())
	assert.Equal(t, 0, ix.TermCount())
	assert.Zero(t, ix.AverageDocumentLength())
}

func TestInverted_ConcurrentReadsAndWrites(t *testing.T) {
	ix := NewInverted()
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				ix.Add(fmt.Sprintf("doc-%d-%d", w, i), "shared term payload", nil)
			}
		}(w)
	}
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				ix.Postings("shared")
				ix.AverageDocumentLength()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 200, ix.TotalDocuments())
}
