package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_SingleTerm(t *testing.T) {
	node, err := Parse("Foo")
	require.NoError(t, err)
	assert.Equal(t, KindTerm, node.Kind)
	assert.Equal(t, "foo", node.Term, "terms are lower-cased")
}

func TestParse_ImplicitAnd(t *testing.T) {
	node, err := Parse("foo bar baz")
	require.NoError(t, err)
	require.Equal(t, KindAnd, node.Kind)
	require.Len(t, node.Children, 3)
	assert.Equal(t, "foo", node.Children[0].Term)
	assert.Equal(t, "bar", node.Children[1].Term)
	assert.Equal(t, "baz", node.Children[2].Term)
}

func TestParse_Phrase(t *testing.T) {
	node, err := Parse(`"connection Pool timeout"`)
	require.NoError(t, err)
	assert.Equal(t, KindPhrase, node.Kind)
	assert.Equal(t, []string{"connection", "pool", "timeout"}, node.Terms)
}

func TestParse_SingleWordPhraseIsTerm(t *testing.T) {
	node, err := Parse(`"foo"`)
	require.NoError(t, err)
	assert.Equal(t, KindTerm, node.Kind)
	assert.Equal(t, "foo", node.Term)
}

func TestParse_ExplicitOperators(t *testing.T) {
	node, err := Parse("foo OR bar")
	require.NoError(t, err)
	require.Equal(t, KindOr, node.Kind)
	require.Len(t, node.Children, 2)

	node, err = Parse("foo AND bar")
	require.NoError(t, err)
	assert.Equal(t, KindAnd, node.Kind)
}

func TestParse_KeywordsAreCaseSensitive(t *testing.T) {
	// lowercase "or" is an ordinary term, so this is implicit AND.
	node, err := Parse("foo or bar")
	require.NoError(t, err)
	require.Equal(t, KindAnd, node.Kind)
	require.Len(t, node.Children, 3)
	assert.Equal(t, "or", node.Children[1].Term)
}

func TestParse_ExplicitBindsTighterThanImplicit(t *testing.T) {
	// "a b OR c" groups as a AND (b OR c).
	node, err := Parse("a b OR c")
	require.NoError(t, err)
	require.Equal(t, KindAnd, node.Kind)
	require.Len(t, node.Children, 2)
	assert.Equal(t, KindTerm, node.Children[0].Kind)
	assert.Equal(t, "a", node.Children[0].Term)
	require.Equal(t, KindOr, node.Children[1].Kind)
	assert.Equal(t, "b", node.Children[1].Children[0].Term)
	assert.Equal(t, "c", node.Children[1].Children[1].Term)
}

func TestParse_Not(t *testing.T) {
	node, err := Parse("foo NOT bar")
	require.NoError(t, err)
	require.Equal(t, KindAnd, node.Kind)
	require.Len(t, node.Children, 2)
	require.Equal(t, KindNot, node.Children[1].Kind)
	assert.Equal(t, "bar", node.Children[1].Children[0].Term)
}

func TestParse_Prefix(t *testing.T) {
	node, err := Parse("Hand*")
	require.NoError(t, err)
	assert.Equal(t, KindPrefix, node.Kind)
	assert.Equal(t, "hand", node.Term)
}

func TestParse_Near(t *testing.T) {
	node, err := Parse("NEAR(open file, 5)")
	require.NoError(t, err)
	assert.Equal(t, KindNear, node.Kind)
	assert.Equal(t, []string{"open", "file"}, node.Terms)
	assert.Equal(t, 5, node.Distance)
}

func TestParse_Grouping(t *testing.T) {
	node, err := Parse("(foo OR bar) baz")
	require.NoError(t, err)
	require.Equal(t, KindAnd, node.Kind)
	require.Len(t, node.Children, 2)
	assert.Equal(t, KindOr, node.Children[0].Kind)
	assert.Equal(t, "baz", node.Children[1].Term)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"whitespace only", "   "},
		{"unbalanced quote", `"foo bar`},
		{"empty phrase", `""`},
		{"unbalanced open paren", "(foo bar"},
		{"unbalanced close paren", "foo bar)"},
		{"empty group", "()"},
		{"dangling operator", "foo AND"},
		{"bare wildcard", "*"},
		{"near without distance", "NEAR(a b)"},
		{"near one term", "NEAR(a, 3)"},
		{"near zero distance", "NEAR(a b, 0)"},
		{"near without parens", "NEAR a b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input)
			require.Error(t, err)
			assert.True(t, IsSyntaxError(err), "expected a query-syntax error, got %v", err)
		})
	}
}

func TestParse_LeavesAndString(t *testing.T) {
	node, err := Parse(`security NEAR(alloc free, 10) "use after"`)
	require.NoError(t, err)
	leaves := node.Leaves()
	assert.Contains(t, leaves, "security")
	assert.Contains(t, leaves, "alloc")
	assert.Contains(t, leaves, "use")
	assert.NotEmpty(t, node.String())
}
