package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/reshape/internal/condition/ast"
)

func TestParse_Structure(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{"simple comparison", "path(score) >= 90", "path(score) gte 90"},
		{"word operator", "path(status) eq 'active'", "path(status) eq 'active'"},
		{"and binds tighter than or", "path(a) == 1 or path(b) == 2 and path(c) == 3", "(path(a) eq 1 or (path(b) eq 2 and path(c) eq 3))"},
		{"grouping", "(path(a) == 1 or path(b) == 2) and path(c) == 3", "((path(a) eq 1 or path(b) eq 2) and path(c) eq 3)"},
		{"not", "not exists(email)", "not exists(email)"},
		{"double not", "not not true", "not not true"},
		{"bare boolean", "true", "true"},
		{"boolean operand", "true == path(flag)", "true eq path(flag)"},
		{"in array", "path(tier) in ['gold', 'silver']", "path(tier) in ['gold', 'silver']"},
		{"empty array", "path(tier) in []", "path(tier) in []"},
		{"includes", "path(tags) includes 'vip'", "path(tags) includes 'vip'"},
		{"null literal", "path(x) != null", "path(x) ne null"},
		{"quoted path", "exists('a b')", "exists(a b)"},
		{"exists with path call", "exists(path(banned))", "exists(banned)"},
		{"not exists with path call", "not exists(path(banned))", "not exists(banned)"},
		{"exists with quoted path call", "exists(path('a b'))", "exists(a b)"},
		{"rooted path", "path($.meta.kind) == 'x'", "path($.meta.kind) eq 'x'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node, err := Parse(tt.source)
			require.NoError(t, err)
			assert.Equal(t, tt.want, node.String())
		})
	}
}

func TestParse_CompareOperands(t *testing.T) {
	node, err := Parse("path(items[0].price) < 10.5")
	require.NoError(t, err)

	cmp, ok := node.(*ast.CompareExpr)
	require.True(t, ok)
	assert.Equal(t, ast.OpLt, cmp.Op)

	ref, ok := cmp.Left.(*ast.PathRef)
	require.True(t, ok)
	assert.Equal(t, "items[0].price", ref.Path.Raw)
	assert.Len(t, ref.Path.Steps, 3)

	lit, ok := cmp.Right.(*ast.Literal)
	require.True(t, ok)
	assert.Equal(t, 10.5, lit.Value)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{"empty", "", "Expression is empty"},
		{"whitespace only", "   ", "Expression is empty"},
		{"is operator", "path(a) is 'x'", "Unknown operator 'is'. Did you mean 'eq' or '=='?"},
		{"single equals", "path(a) = 'x'", "Unknown operator '='. Did you mean 'eq' or '=='?"},
		{"empty path", "path() == 1", "path() requires a path reference"},
		{"empty exists", "exists()", "exists() requires a path reference"},
		{"empty path inside exists", "exists(path())", "path() requires a path reference"},
		{"unclosed exists", "exists(path(a)", "Expected ')' at position 14"},
		{"in without array", "path(a) in 'x'", "Right operand of 'in' must be an array literal"},
		{"missing operator", "path(a) 'x'", "Expected comparison operator after operand at position 8"},
		{"missing operand", "path(a) ==", "Expected operand at position 10"},
		{"unclosed group", "(path(a) == 1", "Expected ')' at position 13"},
		{"trailing token", "true false", "Unexpected token 'false' at position 5"},
		{"bare identifier", "status == 'x'", "Unknown identifier 'status' at position 0; use path(status) to reference input fields"},
		{"lex error wins", "path(a) == 'x", "Unterminated string literal at position 11"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node, err := Parse(tt.source)
			require.Error(t, err)
			assert.Nil(t, node)
			assert.Equal(t, tt.want, err.Error())
		})
	}
}

func TestParse_InvalidPathInsideCall(t *testing.T) {
	_, err := Parse("path(a..b) == 1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid path 'a..b'")
}
