// Package condition compiles and evaluates condition expressions such as
// "path(score) >= 90 and not exists(path(banned))" against a value scope.
package condition

import (
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/conduit-lang/reshape/internal/condition/ast"
	"github.com/conduit-lang/reshape/internal/condition/parser"
	"github.com/conduit-lang/reshape/internal/valuepath"
)

// Expression is a parsed condition, immutable and safe for concurrent use
type Expression struct {
	Source string
	Root   ast.Node
}

// Parse compiles source into an Expression. The error is a lexer or parser
// error carrying the offending position.
func Parse(source string) (*Expression, error) {
	root, err := parser.Parse(source)
	if err != nil {
		return nil, err
	}
	return &Expression{Source: source, Root: root}, nil
}

// Evaluate parses and evaluates in one call
func Evaluate(source string, scope valuepath.Scope) (bool, error) {
	expr, err := Parse(source)
	if err != nil {
		return false, err
	}
	return expr.Eval(scope), nil
}

// Eval evaluates the expression in scope. Evaluation of a parsed expression
// cannot fail: type mismatches compare false.
func (e *Expression) Eval(scope valuepath.Scope) bool {
	return evalNode(e.Root, scope)
}

// String returns the normalized form of the expression
func (e *Expression) String() string {
	return e.Root.String()
}

func evalNode(n ast.Node, scope valuepath.Scope) bool {
	switch t := n.(type) {
	case *ast.LogicalExpr:
		if t.Op == "and" {
			return evalNode(t.Left, scope) && evalNode(t.Right, scope)
		}
		return evalNode(t.Left, scope) || evalNode(t.Right, scope)
	case *ast.NotExpr:
		return !evalNode(t.Operand, scope)
	case *ast.ExistsExpr:
		v, ok := valuepath.Resolve(scope, t.Path)
		return ok && v != nil
	case *ast.BoolLiteral:
		return t.Value
	case *ast.CompareExpr:
		return compare(t, scope)
	}
	return false
}

func operandValue(o ast.Operand, scope valuepath.Scope) any {
	switch t := o.(type) {
	case *ast.PathRef:
		// missing reads as null
		v, _ := valuepath.Resolve(scope, t.Path)
		return v
	case *ast.Literal:
		return t.Value
	case *ast.ArrayLiteral:
		items := make([]any, len(t.Items))
		for i, item := range t.Items {
			items[i] = operandValue(item, scope)
		}
		return items
	}
	return nil
}

func compare(c *ast.CompareExpr, scope valuepath.Scope) bool {
	left := operandValue(c.Left, scope)
	right := operandValue(c.Right, scope)

	switch c.Op {
	case ast.OpEq:
		return equal(left, right)
	case ast.OpNe:
		return !equal(left, right)
	case ast.OpGt, ast.OpGte, ast.OpLt, ast.OpLte:
		cmp, ok := order(left, right)
		if !ok {
			return false
		}
		switch c.Op {
		case ast.OpGt:
			return cmp > 0
		case ast.OpGte:
			return cmp >= 0
		case ast.OpLt:
			return cmp < 0
		default:
			return cmp <= 0
		}
	case ast.OpIn:
		items, ok := right.([]any)
		if !ok {
			return false
		}
		return contains(items, left)
	case ast.OpIncludes:
		switch l := left.(type) {
		case []any:
			return contains(l, right)
		case string:
			r, ok := right.(string)
			return ok && strings.Contains(l, r)
		}
	}
	return false
}

func contains(items []any, v any) bool {
	for _, item := range items {
		if equal(item, v) {
			return true
		}
	}
	return false
}

// equal compares numerically when one side is a number and the other is a
// number or numeric string, and structurally otherwise
func equal(a, b any) bool {
	_, aNum := a.(float64)
	_, bNum := b.(float64)
	if aNum || bNum {
		x, okA := toNumber(a)
		y, okB := toNumber(b)
		if okA && okB {
			return x == y
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}

// order returns the sign of a-b, numerically when both sides coerce to
// numbers and lexicographically when both are strings
func order(a, b any) (int, bool) {
	x, okA := toNumber(a)
	y, okB := toNumber(b)
	if okA && okB {
		switch {
		case x < y:
			return -1, true
		case x > y:
			return 1, true
		}
		return 0, true
	}
	sa, okA := a.(string)
	sb, okB := b.(string)
	if okA && okB {
		return strings.Compare(sa, sb), true
	}
	return 0, false
}

func toNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}
