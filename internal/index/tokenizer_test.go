package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize_Basic(t *testing.T) {
	terms := Terms("Hello, World!")
	assert.Equal(t, []string{"hello", "world"}, terms)
}

func TestTokenize_Identifiers(t *testing.T) {
	terms := Terms("snake_case_name stays whole")
	assert.Equal(t, []string{"snake_case_name", "stays", "whole"}, terms)
}

func TestTokenize_DottedIdentifier(t *testing.T) {
	// Parts and compound share one position so phrase adjacency is
	// unaffected and both "config" and "config.load" match.
	toks := Tokenize("config.Load called")
	require.Len(t, toks, 4)
	assert.Equal(t, "config", toks[0].Term)
	assert.Equal(t, "load", toks[1].Term)
	assert.Equal(t, "config.load", toks[2].Term)
	assert.Equal(t, toks[0].Position, toks[2].Position)
	assert.Equal(t, "called", toks[3].Term)
	assert.Equal(t, toks[0].Position+1, toks[3].Position)
}

func TestTokenize_SentencePunctuation(t *testing.T) {
	// A trailing dot is punctuation, not part of the identifier.
	terms := Terms("restart the server.")
	assert.Equal(t, []string{"restart", "the", "server"}, terms)
}

func TestTokenize_ByteRanges(t *testing.T) {
	text := "foo bar"
	toks := Tokenize(text)
	require.Len(t, toks, 2)
	assert.Equal(t, "foo", text[toks[0].Start:toks[0].End])
	assert.Equal(t, "bar", text[toks[1].Start:toks[1].End])
}

func TestTokenize_Empty(t *testing.T) {
	assert.Empty(t, Tokenize(""))
	assert.Empty(t, Tokenize("!!! ??? ..."))
}

func TestWordCount(t *testing.T) {
	// Dotted identifiers count as one word position.
	assert.Equal(t, 3, WordCount("call config.Load now"))
	assert.Equal(t, 0, WordCount(""))
}
