// Package index implements the full-text core: a positional inverted
// index with BM25 ranking and snippet extraction over code documents.
package index

import (
	"strings"
)

// Token is a single normalized term with its position and the byte
// range of the source word it came from.
type Token struct {
	Term     string
	Position int // token offset within the document (word-level)
	Start    int // byte offset of the source word
	End      int // byte offset past the source word
}

// Tokenize splits raw text into normalized tokens.
//
// Rules: lower-case, split on non-alphanumeric boundaries, retain
// underscores and dots inside identifiers. A dotted identifier like
// "foo.bar_baz" yields "foo", "bar_baz", and the compound itself, all
// at the same position, so both part and compound queries match and
// phrase adjacency stays word-based. No stemming: code identifiers
// must match literally.
func Tokenize(text string) []Token {
	var tokens []Token
	pos := 0
	i := 0
	for i < len(text) {
		r := rune(text[i])
		if !isTokenByte(r) {
			i++
			continue
		}
		start := i
		for i < len(text) && isTokenByte(rune(text[i])) {
			i++
		}
		word, wordStart, wordEnd := trimDots(text[start:i], start, i)
		if word == "" {
			continue
		}
		lower := strings.ToLower(word)
		if strings.Contains(lower, ".") {
			for _, part := range strings.Split(lower, ".") {
				if part == "" {
					continue
				}
				tokens = append(tokens, Token{Term: part, Position: pos, Start: wordStart, End: wordEnd})
			}
			// Compound token for prefix matching on dotted paths.
			tokens = append(tokens, Token{Term: lower, Position: pos, Start: wordStart, End: wordEnd})
		} else {
			tokens = append(tokens, Token{Term: lower, Position: pos, Start: wordStart, End: wordEnd})
		}
		pos++
	}
	return tokens
}

// Terms returns just the normalized terms of a text, in token order.
func Terms(text string) []string {
	toks := Tokenize(text)
	terms := make([]string, len(toks))
	for i, t := range toks {
		terms[i] = t.Term
	}
	return terms
}

// WordCount returns the number of word positions in a text.
// This is the document-length unit used by BM25 normalization.
func WordCount(text string) int {
	toks := Tokenize(text)
	if len(toks) == 0 {
		return 0
	}
	return toks[len(toks)-1].Position + 1
}

// isTokenByte reports whether a byte belongs inside a token.
// ASCII-oriented: code identifiers and paths are ASCII in practice,
// and non-ASCII bytes act as boundaries.
func isTokenByte(r rune) bool {
	return r == '_' || r == '.' ||
		(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9')
}

// trimDots strips leading and trailing dots (sentence punctuation),
// returning the adjusted word and byte range.
func trimDots(word string, start, end int) (string, int, int) {
	for len(word) > 0 && word[0] == '.' {
		word = word[1:]
		start++
	}
	for len(word) > 0 && word[len(word)-1] == '.' {
		word = word[:len(word)-1]
		end--
	}
	return word, start, end
}
