// Package rules defines the canonical, normalized rule model. Values of
// these types are produced by the normalizer and are immutable afterwards,
// so they may be shared between goroutines.
package rules

import (
	"github.com/conduit-lang/reshape/internal/payload"
)

// Kind is the canonical rule kind token
type Kind string

// Rule kinds. KindMap is authoring sugar and never appears in normalized rules.
const (
	KindField  Kind = "field"
	KindArray  Kind = "array"
	KindBranch Kind = "branch"
	KindMap    Kind = "map"
	KindUse    Kind = "use"
)

// SourceType is the canonical value source token
type SourceType string

// Source types
const (
	SourcePath      SourceType = "path"
	SourceConstant  SourceType = "constant"
	SourceTransform SourceType = "transform"
	SourceCondition SourceType = "condition"
	SourceMerge     SourceType = "merge"
)

// MergeMode selects how a merge source combines its paths
type MergeMode string

// Merge modes
const (
	MergeFirstNonEmpty MergeMode = "firstNonEmpty"
	MergeArray         MergeMode = "array"
	MergeConcat        MergeMode = "concat"
)

// DefaultMergeSeparator joins values in concat merge mode
const DefaultMergeSeparator = " "

// ConditionOutput selects what a condition source yields
type ConditionOutput string

// Condition outputs
const (
	OutputValue   ConditionOutput = "value"
	OutputBoolean ConditionOutput = "boolean"
)

// ConversionRules is a normalized rule document
type ConversionRules struct {
	SchemaVersion string
	InputFormat   payload.Format
	OutputFormat  payload.Format
	Fragments     map[string][]Rule
	Rules         []Rule
}

// Rule is one of *FieldRule, *ArrayRule, *BranchRule or *UseRule.
//
// Each rule type carries an Origin: its authored address relative to the
// list it sits in, such as "[3]" or "[1].map[0]". Origin is empty when the
// rule sits at its authored index, and it is never part of the canonical
// form.
type Rule interface {
	Kind() Kind
	ToValue() map[string]any
}

// FieldRule writes one resolved value to every output path
type FieldRule struct {
	OutputPaths  []string
	Source       Source
	DefaultValue any
	HasDefault   bool
	Origin       string
}

// ArrayRule maps each element of InputPath through ItemRules
type ArrayRule struct {
	InputPath    string
	OutputPaths  []string
	ItemRules    []Rule
	CoerceSingle bool
	Origin       string
}

// ElseIfArm is one elseIf entry of a branch rule
type ElseIfArm struct {
	Expression string
	Then       []Rule
}

// BranchRule evaluates the first arm whose expression holds
type BranchRule struct {
	Expression string
	Then       []Rule
	ElseIf     []ElseIfArm
	Else       []Rule
	Origin     string
}

// UseRule evaluates a named fragment in place
type UseRule struct {
	Use    string
	Origin string
}

func (*FieldRule) Kind() Kind  { return KindField }
func (*ArrayRule) Kind() Kind  { return KindArray }
func (*BranchRule) Kind() Kind { return KindBranch }
func (*UseRule) Kind() Kind    { return KindUse }

// Source is one of the value source types
type Source interface {
	Type() SourceType
	ToValue() map[string]any
}

// PathSource reads a path from the input
type PathSource struct {
	Path string
}

// ConstantSource yields a fixed value
type ConstantSource struct {
	Value any
}

// TransformSource applies a builtin or custom transform to a path.
// Exactly one of Transform and CustomTransform is set.
type TransformSource struct {
	Path            string
	Transform       string
	CustomTransform string
	Options         map[string]any
}

// ConditionArm is one elseIf entry of a condition source
type ConditionArm struct {
	Expression string
	Value      any
}

// ConditionSource picks a value by evaluating expressions
type ConditionSource struct {
	Expression string
	TrueValue  any
	FalseValue any
	ElseIf     []ConditionArm
	Output     ConditionOutput
}

// MergeSource combines several paths
type MergeSource struct {
	Paths     []string
	Mode      MergeMode
	Separator string
}

func (*PathSource) Type() SourceType      { return SourcePath }
func (*ConstantSource) Type() SourceType  { return SourceConstant }
func (*TransformSource) Type() SourceType { return SourceTransform }
func (*ConditionSource) Type() SourceType { return SourceCondition }
func (*MergeSource) Type() SourceType     { return SourceMerge }

// IsCustom reports whether the transform is caller-supplied
func (s *TransformSource) IsCustom() bool {
	return s.CustomTransform != ""
}

// Name returns the builtin or custom transform name
func (s *TransformSource) Name() string {
	if s.CustomTransform != "" {
		return s.CustomTransform
	}
	return s.Transform
}

// Walk visits every rule in rs depth-first, including nested arms and item
// rules, with its rule path. Fragment bodies are not entered.
func Walk(rs []Rule, prefix string, fn func(rulePath string, r Rule)) {
	for i, r := range rs {
		p := Address(prefix, i, r)
		fn(p, r)
		switch t := r.(type) {
		case *ArrayRule:
			Walk(t.ItemRules, p+".itemRules", fn)
		case *BranchRule:
			Walk(t.Then, p+".then", fn)
			for k, arm := range t.ElseIf {
				Walk(arm.Then, ElseIfPath(p, k)+".then", fn)
			}
			Walk(t.Else, p+".else", fn)
		}
	}
}
