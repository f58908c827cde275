// Package plan compiles rule documents into reusable, immutable plans and
// caches them. A plan normalizes once, pre-parses every expression, and may
// be applied to any number of records from any number of goroutines.
package plan

import (
	"fmt"

	"github.com/conduit-lang/reshape/internal/diagnostics"
	"github.com/conduit-lang/reshape/internal/evaluator"
	"github.com/conduit-lang/reshape/internal/normalize"
	"github.com/conduit-lang/reshape/internal/rules"
)

// Plan is a compiled rule document
type Plan struct {
	cacheKey   string
	rules      *rules.ConversionRules
	validation diagnostics.List
	eval       *evaluator.Evaluator
}

// Compile normalizes raw and prepares it for evaluation. Validation problems
// do not stop compilation; they are reported by Validation and prepended to
// every result.
func Compile(raw any) *Plan {
	res := normalize.Normalize(raw)
	return &Plan{
		cacheKey:   CacheKey(res.Rules),
		rules:      res.Rules,
		validation: res.Diagnostics,
		eval:       evaluator.New(res.Rules),
	}
}

// CompileStrict is Compile, failing when the document has validation errors
func CompileStrict(raw any) (*Plan, error) {
	p := Compile(raw)
	if p.validation.HasErrors() {
		return p, fmt.Errorf("compile conversion plan: %w", (&normalize.Result{Rules: p.rules, Diagnostics: p.validation}).Err())
	}
	return p, nil
}

// CacheKey is the hex SHA-256 of the compact canonical text of r, so
// documents that normalize alike share a key
func CacheKey(r *rules.ConversionRules) string {
	return NewHasher().HashString(r.CanonicalText(false))
}

// CacheKey returns the plan's normalized-content key
func (p *Plan) CacheKey() string {
	return p.cacheKey
}

// Rules returns the normalized rules
func (p *Plan) Rules() *rules.ConversionRules {
	return p.rules
}

// Validation returns the normalizer's findings
func (p *Plan) Validation() diagnostics.List {
	return p.validation
}

// ExpressionErrors maps each malformed expression to its parse error
func (p *Plan) ExpressionErrors() map[string]error {
	out := map[string]error{}
	for src, err := range p.eval.Expressions() {
		if err != nil {
			out[src] = err
		}
	}
	return out
}

// Apply evaluates the plan against one input record
func (p *Plan) Apply(input any, opts evaluator.Options) *evaluator.Result {
	res := p.eval.Apply(input, opts)
	if len(p.validation) == 0 {
		return res
	}
	diags := make(diagnostics.List, 0, len(p.validation)+len(res.Diagnostics))
	diags = append(diags, p.validation.WithStage(diagnostics.StageValidate)...)
	diags = append(diags, res.Diagnostics...)
	merged := evaluator.NewResult(res.Output, diags, nil)
	merged.Trace = res.Trace
	return merged
}
