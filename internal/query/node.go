// Package query parses search query strings into a structured tree.
// The grammar supports bare terms (implicit AND), quoted phrases,
// AND/OR/NOT combinators, trailing-star prefix terms, and NEAR(a b, k)
// proximity groups.
package query

import (
	"fmt"
	"strings"
)

// Kind discriminates node variants in a parsed query tree.
type Kind int

const (
	// KindTerm is a single literal term.
	KindTerm Kind = iota
	// KindPhrase is an ordered sequence of terms that must be adjacent.
	KindPhrase
	// KindAnd requires all children to match.
	KindAnd
	// KindOr requires at least one child to match.
	KindOr
	// KindNot excludes documents matching its single child.
	KindNot
	// KindPrefix matches any term starting with the stem.
	KindPrefix
	// KindNear requires terms within Distance token positions, any order.
	KindNear
)

// String returns a human-readable name for the kind.
func (k Kind) String() string {
	switch k {
	case KindTerm:
		return "term"
	case KindPhrase:
		return "phrase"
	case KindAnd:
		return "and"
	case KindOr:
		return "or"
	case KindNot:
		return "not"
	case KindPrefix:
		return "prefix"
	case KindNear:
		return "near"
	default:
		return "unknown"
	}
}

// Node is a single node in a parsed query tree.
// Nodes are immutable once returned by Parse.
type Node struct {
	Kind Kind

	// Term holds the literal for KindTerm and the stem for KindPrefix.
	Term string

	// Terms holds the ordered terms of KindPhrase and KindNear.
	Terms []string

	// Distance is the maximum token distance for KindNear.
	Distance int

	// Children holds sub-nodes for KindAnd, KindOr (2+) and KindNot (1).
	Children []*Node
}

// Leaves returns every Term/Phrase/Prefix/Near leaf term in the tree,
// excluding terms under a NOT (they match nothing, so they never need
// postings for highlighting).
func (n *Node) Leaves() []string {
	if n == nil {
		return nil
	}
	var out []string
	n.collectLeaves(&out)
	return out
}

func (n *Node) collectLeaves(out *[]string) {
	switch n.Kind {
	case KindTerm, KindPrefix:
		*out = append(*out, n.Term)
	case KindPhrase, KindNear:
		*out = append(*out, n.Terms...)
	case KindNot:
		// Excluded terms do not contribute matches.
	default:
		for _, c := range n.Children {
			c.collectLeaves(out)
		}
	}
}

// String renders the tree back into a canonical query-like form.
// Used for debugging and cache fingerprinting.
func (n *Node) String() string {
	if n == nil {
		return ""
	}
	switch n.Kind {
	case KindTerm:
		return n.Term
	case KindPrefix:
		return n.Term + "*"
	case KindPhrase:
		return `"` + strings.Join(n.Terms, " ") + `"`
	case KindNear:
		return fmt.Sprintf("NEAR(%s, %d)", strings.Join(n.Terms, " "), n.Distance)
	case KindNot:
		return "NOT " + n.Children[0].String()
	case KindAnd, KindOr:
		op := " AND "
		if n.Kind == KindOr {
			op = " OR "
		}
		parts := make([]string, len(n.Children))
		for i, c := range n.Children {
			parts[i] = c.String()
		}
		return "(" + strings.Join(parts, op) + ")"
	default:
		return ""
	}
}
