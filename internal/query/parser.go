package query

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	cierrors "github.com/ViperJuice/codeindex/internal/errors"
)

// Parse turns a query string into a query tree.
//
// Grammar (informal):
//
//	bare terms separated by whitespace combine with implicit AND
//	"a b c"          phrase (terms must be adjacent, in order)
//	a AND b, a OR b  explicit combinators, case-sensitive, left-associative;
//	                 explicit operators bind tighter than implicit AND
//	NOT a            exclusion
//	term*            prefix match
//	NEAR(a b, k)     terms within k positions of each other, any order
//	( ... )          grouping
//
// Returns a query-syntax error on unbalanced quotes or parentheses and
// on malformed NEAR groups.
func Parse(input string) (*Node, error) {
	toks, err := lex(input)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	node, err := p.parseQuery(false)
	if err != nil {
		return nil, err
	}
	if !p.done() {
		return nil, syntaxError(fmt.Sprintf("unexpected %q", p.peek().text))
	}
	if node == nil {
		return nil, syntaxError("empty query")
	}
	return node, nil
}

func syntaxError(msg string) error {
	return cierrors.QueryError("invalid query: "+msg, nil)
}

// IsSyntaxError reports whether err is a query-syntax error.
func IsSyntaxError(err error) bool {
	return cierrors.GetCode(err) == cierrors.ErrCodeQuerySyntax
}

type tokenType int

const (
	tokTerm tokenType = iota
	tokPhrase
	tokAnd
	tokOr
	tokNot
	tokNear
	tokLParen
	tokRParen
)

type token struct {
	typ   tokenType
	text  string   // raw text for terms
	terms []string // phrase / NEAR terms
	dist  int      // NEAR distance
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) done() bool { return p.pos >= len(p.toks) }

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	p.pos++
	return t
}

// parseQuery parses a whole (sub-)query: clauses joined by implicit AND.
// When sub is true, parsing stops at a closing parenthesis.
func (p *parser) parseQuery(sub bool) (*Node, error) {
	var clauses []*Node
	for !p.done() {
		if p.peek().typ == tokRParen {
			if sub {
				break
			}
			return nil, syntaxError("unbalanced parenthesis")
		}
		clause, err := p.parseClause(sub)
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, clause)
	}
	switch len(clauses) {
	case 0:
		return nil, nil
	case 1:
		return clauses[0], nil
	default:
		return &Node{Kind: KindAnd, Children: clauses}, nil
	}
}

// parseClause parses a primary followed by any chain of explicit
// AND/OR operators. Left-associative; the chain binds tighter than the
// implicit AND between clauses.
func (p *parser) parseClause(sub bool) (*Node, error) {
	left, err := p.parsePrimary(sub)
	if err != nil {
		return nil, err
	}
	for !p.done() {
		var kind Kind
		switch p.peek().typ {
		case tokAnd:
			kind = KindAnd
		case tokOr:
			kind = KindOr
		default:
			return left, nil
		}
		p.next()
		if p.done() || p.peek().typ == tokRParen {
			return nil, syntaxError("operator missing right operand")
		}
		right, err := p.parsePrimary(sub)
		if err != nil {
			return nil, err
		}
		// Merge into an existing node of the same kind to keep the
		// tree flat for left-associative chains.
		if left.Kind == kind {
			left.Children = append(left.Children, right)
		} else {
			left = &Node{Kind: kind, Children: []*Node{left, right}}
		}
	}
	return left, nil
}

func (p *parser) parsePrimary(sub bool) (*Node, error) {
	if p.done() {
		return nil, syntaxError("unexpected end of query")
	}
	t := p.next()
	switch t.typ {
	case tokNot:
		child, err := p.parsePrimary(sub)
		if err != nil {
			return nil, err
		}
		return &Node{Kind: KindNot, Children: []*Node{child}}, nil
	case tokLParen:
		node, err := p.parseQuery(true)
		if err != nil {
			return nil, err
		}
		if p.done() || p.peek().typ != tokRParen {
			return nil, syntaxError("unbalanced parenthesis")
		}
		p.next()
		if node == nil {
			return nil, syntaxError("empty group")
		}
		return node, nil
	case tokPhrase:
		if len(t.terms) == 1 {
			return &Node{Kind: KindTerm, Term: t.terms[0]}, nil
		}
		return &Node{Kind: KindPhrase, Terms: t.terms}, nil
	case tokNear:
		return &Node{Kind: KindNear, Terms: t.terms, Distance: t.dist}, nil
	case tokTerm:
		if strings.HasSuffix(t.text, "*") {
			stem := strings.TrimRight(t.text, "*")
			if stem == "" {
				return nil, syntaxError("prefix wildcard requires a stem")
			}
			return &Node{Kind: KindPrefix, Term: strings.ToLower(stem)}, nil
		}
		return &Node{Kind: KindTerm, Term: strings.ToLower(t.text)}, nil
	default:
		return nil, syntaxError(fmt.Sprintf("unexpected %q", t.text))
	}
}

// lex splits the query string into tokens in a single left-to-right pass.
func lex(input string) ([]token, error) {
	var toks []token
	runes := []rune(input)
	i := 0
	for i < len(runes) {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '(':
			toks = append(toks, token{typ: tokLParen, text: "("})
			i++
		case r == ')':
			toks = append(toks, token{typ: tokRParen, text: ")"})
			i++
		case r == '"':
			end := -1
			for j := i + 1; j < len(runes); j++ {
				if runes[j] == '"' {
					end = j
					break
				}
			}
			if end < 0 {
				return nil, syntaxError("unbalanced quote")
			}
			terms := strings.Fields(strings.ToLower(string(runes[i+1 : end])))
			if len(terms) == 0 {
				return nil, syntaxError("empty phrase")
			}
			toks = append(toks, token{typ: tokPhrase, terms: terms})
			i = end + 1
		default:
			start := i
			for i < len(runes) && !unicode.IsSpace(runes[i]) && runes[i] != '(' && runes[i] != ')' && runes[i] != '"' {
				i++
			}
			word := string(runes[start:i])
			// Keywords are case-sensitive; lowercase "and" is a term.
			switch word {
			case "AND":
				toks = append(toks, token{typ: tokAnd, text: word})
			case "OR":
				toks = append(toks, token{typ: tokOr, text: word})
			case "NOT":
				toks = append(toks, token{typ: tokNot, text: word})
			case "NEAR":
				if i >= len(runes) || runes[i] != '(' {
					return nil, syntaxError("NEAR requires a parenthesized group")
				}
				tok, consumed, err := lexNear(runes, i)
				if err != nil {
					return nil, err
				}
				toks = append(toks, tok)
				i = consumed
			default:
				toks = append(toks, token{typ: tokTerm, text: word})
			}
		}
	}
	return toks, nil
}

// lexNear consumes a NEAR(...) body starting at the opening parenthesis.
// Returns the token and the index just past the closing parenthesis.
func lexNear(runes []rune, open int) (token, int, error) {
	end := -1
	for j := open + 1; j < len(runes); j++ {
		if runes[j] == ')' {
			end = j
			break
		}
	}
	if end < 0 {
		return token{}, 0, syntaxError("unbalanced parenthesis in NEAR")
	}
	body := string(runes[open+1 : end])
	comma := strings.LastIndex(body, ",")
	if comma < 0 {
		return token{}, 0, syntaxError("NEAR requires a distance: NEAR(a b, k)")
	}
	terms := strings.Fields(strings.ToLower(body[:comma]))
	if len(terms) < 2 {
		return token{}, 0, syntaxError("NEAR requires at least two terms")
	}
	dist, err := strconv.Atoi(strings.TrimSpace(body[comma+1:]))
	if err != nil || dist < 1 {
		return token{}, 0, syntaxError("NEAR distance must be a positive integer")
	}
	return token{typ: tokNear, terms: terms, dist: dist}, end + 1, nil
}
