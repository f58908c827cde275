// Package ast defines the syntax tree of condition expressions.
package ast

import (
	"fmt"
	"strings"

	"github.com/conduit-lang/reshape/internal/payload"
	"github.com/conduit-lang/reshape/internal/valuepath"
)

// Node is a boolean-valued expression node
type Node interface {
	node()
	String() string
}

// Operand is a value-producing node used on either side of a comparison
type Operand interface {
	operand()
	String() string
}

// CompareOp is the canonical name of a comparison operator
type CompareOp string

// Canonical comparison operators
const (
	OpEq       CompareOp = "eq"
	OpNe       CompareOp = "ne"
	OpGt       CompareOp = "gt"
	OpGte      CompareOp = "gte"
	OpLt       CompareOp = "lt"
	OpLte      CompareOp = "lte"
	OpIn       CompareOp = "in"
	OpIncludes CompareOp = "includes"
)

// LogicalExpr joins two nodes with "and" / "or"
type LogicalExpr struct {
	Op    string
	Left  Node
	Right Node
}

// NotExpr negates a node
type NotExpr struct {
	Operand Node
}

// CompareExpr compares two operands
type CompareExpr struct {
	Op    CompareOp
	Left  Operand
	Right Operand
}

// ExistsExpr is true when the path resolves to a non-null value
type ExistsExpr struct {
	Path valuepath.Path
}

// BoolLiteral is a bare true/false expression
type BoolLiteral struct {
	Value bool
}

// PathRef is a path(...) operand
type PathRef struct {
	Path valuepath.Path
}

// Literal is a number, string, boolean or null operand
type Literal struct {
	Value any
}

// ArrayLiteral is a [a, b, ...] operand
type ArrayLiteral struct {
	Items []Operand
}

func (*LogicalExpr) node() {}
func (*NotExpr) node()     {}
func (*CompareExpr) node() {}
func (*ExistsExpr) node()  {}
func (*BoolLiteral) node() {}

func (*PathRef) operand()      {}
func (*Literal) operand()      {}
func (*ArrayLiteral) operand() {}

func (e *LogicalExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", e.Left, e.Op, e.Right)
}

func (e *NotExpr) String() string {
	return "not " + e.Operand.String()
}

func (e *CompareExpr) String() string {
	return fmt.Sprintf("%s %s %s", e.Left, e.Op, e.Right)
}

func (e *ExistsExpr) String() string {
	return "exists(" + e.Path.Raw + ")"
}

func (e *BoolLiteral) String() string {
	if e.Value {
		return "true"
	}
	return "false"
}

func (o *PathRef) String() string {
	return "path(" + o.Path.Raw + ")"
}

func (o *Literal) String() string {
	switch v := o.Value.(type) {
	case nil:
		return "null"
	case string:
		return "'" + strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(v) + "'"
	default:
		return payload.Stringify(v)
	}
}

func (o *ArrayLiteral) String() string {
	parts := make([]string, len(o.Items))
	for i, item := range o.Items {
		parts[i] = item.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// IsLiteral reports whether n is a bare boolean literal, and its value
func IsLiteral(n Node) (value bool, ok bool) {
	if b, isBool := n.(*BoolLiteral); isBool {
		return b.Value, true
	}
	return false, false
}

// Walk calls fn for every node in pre-order
func Walk(n Node, fn func(Node)) {
	if n == nil {
		return
	}
	fn(n)
	switch t := n.(type) {
	case *LogicalExpr:
		Walk(t.Left, fn)
		Walk(t.Right, fn)
	case *NotExpr:
		Walk(t.Operand, fn)
	}
}
