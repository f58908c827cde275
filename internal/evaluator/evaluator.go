// Package evaluator applies normalized conversion rules to an input value.
// An Evaluator is built once per rule set, pre-parses every expression and
// path, and is read-only afterwards: Apply may be called concurrently.
package evaluator

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/conduit-lang/reshape/internal/condition"
	"github.com/conduit-lang/reshape/internal/diagnostics"
	"github.com/conduit-lang/reshape/internal/payload"
	"github.com/conduit-lang/reshape/internal/rules"
	"github.com/conduit-lang/reshape/internal/valuepath"
)

// Evaluator holds a rule set and its pre-parsed expressions and paths
type Evaluator struct {
	rules *rules.ConversionRules
	exprs map[string]compiledExpr
	paths map[string]compiledPath
}

type compiledExpr struct {
	expr *condition.Expression
	err  error
}

type compiledPath struct {
	path valuepath.Path
	err  error
}

// New compiles r. Malformed expressions are kept as errors and reported each
// time they are evaluated.
func New(r *rules.ConversionRules) *Evaluator {
	e := &Evaluator{
		rules: r,
		exprs: map[string]compiledExpr{},
		paths: map[string]compiledPath{},
	}
	e.compileList(r.Rules)
	for _, body := range r.Fragments {
		e.compileList(body)
	}
	return e
}

// Rules returns the rule set the evaluator was built for
func (e *Evaluator) Rules() *rules.ConversionRules {
	return e.rules
}

// Expressions returns every distinct expression with its parse error, if any
func (e *Evaluator) Expressions() map[string]error {
	out := make(map[string]error, len(e.exprs))
	for src, c := range e.exprs {
		out[src] = c.err
	}
	return out
}

func (e *Evaluator) compileList(rs []rules.Rule) {
	rules.Walk(rs, "", func(_ string, r rules.Rule) {
		switch t := r.(type) {
		case *rules.FieldRule:
			e.compileSource(t.Source)
			for _, p := range t.OutputPaths {
				e.compilePath(p)
			}
		case *rules.ArrayRule:
			e.compilePath(t.InputPath)
			for _, p := range t.OutputPaths {
				e.compilePath(p)
			}
		case *rules.BranchRule:
			e.compileExpr(t.Expression)
			for _, arm := range t.ElseIf {
				e.compileExpr(arm.Expression)
			}
		}
	})
}

func (e *Evaluator) compileSource(src rules.Source) {
	switch s := src.(type) {
	case *rules.PathSource:
		e.compilePath(s.Path)
	case *rules.TransformSource:
		e.compilePath(s.Path)
	case *rules.ConditionSource:
		e.compileExpr(s.Expression)
		for _, arm := range s.ElseIf {
			e.compileExpr(arm.Expression)
		}
	case *rules.MergeSource:
		for _, p := range s.Paths {
			e.compilePath(p)
		}
	}
}

func (e *Evaluator) compileExpr(src string) {
	if _, ok := e.exprs[src]; ok {
		return
	}
	expr, err := condition.Parse(src)
	e.exprs[src] = compiledExpr{expr: expr, err: err}
}

func (e *Evaluator) compilePath(raw string) {
	if _, ok := e.paths[raw]; ok {
		return
	}
	p, err := valuepath.Parse(raw)
	e.paths[raw] = compiledPath{path: p, err: err}
}

func (e *Evaluator) expression(src string) (*condition.Expression, error) {
	if c, ok := e.exprs[src]; ok {
		return c.expr, c.err
	}
	return condition.Parse(src)
}

func (e *Evaluator) path(raw string) (valuepath.Path, error) {
	if c, ok := e.paths[raw]; ok {
		return c.path, c.err
	}
	return valuepath.Parse(raw)
}

// Apply evaluates the rules against input. It never panics on malformed
// rules or input; every problem is reported in the result.
func (e *Evaluator) Apply(input any, opts Options) *Result {
	run := &run{
		eval:  e,
		opts:  opts,
		root:  payload.Canonicalize(input),
		trace: []TraceEntry{},
	}
	out := newTarget()
	run.list(e.rules.Rules, rules.TopLevel, out, valuepath.Scope{Root: run.root}, 0)

	res := NewResult(out.obj, run.diags, nil)
	if opts.Trace {
		res.Trace = run.trace
	}
	opts.logger().Debug("conversion applied",
		zap.Int("rules", len(e.rules.Rules)),
		zap.Int("errors", len(res.Errors)),
		zap.Int("warnings", len(res.Warnings)),
	)
	return res
}

// run is the mutable state of one Apply call
type run struct {
	eval  *Evaluator
	opts  Options
	root  any
	diags diagnostics.List
	trace []TraceEntry
}

// target is an output object with the writer of each output path
type target struct {
	obj     map[string]any
	writers map[string]string
}

func newTarget() *target {
	return &target{obj: map[string]any{}, writers: map[string]string{}}
}

func (r *run) report(d *diagnostics.Diagnostic) {
	r.diags = append(r.diags, d)
}

// visit appends a trace entry and returns its index for later completion
func (r *run) visit(rulePath string, kind rules.Kind) int {
	r.trace = append(r.trace, TraceEntry{RulePath: rulePath, RuleKind: string(kind)})
	return len(r.trace) - 1
}

func (r *run) decide(idx int, decision string, outputPaths []string) {
	r.trace[idx].Decision = decision
	if len(outputPaths) > 0 {
		r.trace[idx].OutputPaths = append([]string(nil), outputPaths...)
	}
}

func (r *run) list(rs []rules.Rule, prefix string, out *target, scope valuepath.Scope, depth int) {
	for i, rule := range rs {
		r.rule(rule, rules.Address(prefix, i, rule), out, scope, depth)
	}
}

func (r *run) rule(rule rules.Rule, rulePath string, out *target, scope valuepath.Scope, depth int) {
	idx := r.visit(rulePath, rule.Kind())
	if depth > MaxDepth {
		r.report(diagnostics.NewRecursionLimit(rulePath, MaxDepth))
		r.decide(idx, DecisionDepthExceeded, nil)
		return
	}

	switch t := rule.(type) {
	case *rules.FieldRule:
		r.field(t, rulePath, idx, out, scope)
	case *rules.ArrayRule:
		r.array(t, rulePath, idx, out, scope, depth)
	case *rules.BranchRule:
		r.branch(t, rulePath, idx, out, scope, depth)
	case *rules.UseRule:
		r.decide(idx, DecisionExpanded, nil)
		body := r.eval.rules.Fragments[t.Use]
		r.list(body, rulePath+".use", out, scope, depth+1)
	}
}

func (r *run) field(f *rules.FieldRule, rulePath string, idx int, out *target, scope valuepath.Scope) {
	value, found := r.resolve(f.Source, rulePath, scope)

	decision := DecisionWritten
	if !found || payload.IsEmpty(value) {
		if f.HasDefault {
			value, found = payload.DeepCopy(f.DefaultValue), true
			decision = DecisionDefaulted
		}
	}
	if !found {
		r.decide(idx, DecisionSkipped, nil)
		return
	}

	for _, p := range f.OutputPaths {
		r.write(out, p, payload.DeepCopy(value), rulePath)
	}
	r.decide(idx, decision, f.OutputPaths)
}

func (r *run) array(a *rules.ArrayRule, rulePath string, idx int, out *target, scope valuepath.Scope, depth int) {
	value, found := r.lookup(a.InputPath, scope)
	if !found {
		r.report(diagnostics.NewArrayInputMissing(rulePath, a.InputPath))
		r.decide(idx, DecisionMissing, nil)
		return
	}

	elements, isArray := value.([]any)
	if !isArray {
		if !a.CoerceSingle {
			r.report(diagnostics.NewArrayInputNotArray(rulePath, a.InputPath))
			r.decide(idx, DecisionInvalid, nil)
			return
		}
		elements = []any{}
		if value != nil {
			elements = []any{value}
		}
	}

	r.decide(idx, DecisionMapped, a.OutputPaths)
	items := make([]any, 0, len(elements))
	for _, el := range elements {
		item := newTarget()
		itemScope := valuepath.Scope{Root: scope.Root, Item: el, HasItem: true}
		r.list(a.ItemRules, rulePath+".itemRules", item, itemScope, depth+1)
		items = append(items, item.obj)
	}

	for i, p := range a.OutputPaths {
		v := any(items)
		if i > 0 {
			v = payload.DeepCopy(items)
		}
		r.write(out, p, v, rulePath)
	}
}

func (r *run) branch(b *rules.BranchRule, rulePath string, idx int, out *target, scope valuepath.Scope, depth int) {
	matched, err := r.test(b.Expression, scope)
	if err != nil {
		r.report(diagnostics.NewExpressionFailed(rulePath, "Branch", err))
		r.decide(idx, DecisionError, nil)
		r.list(b.Else, rulePath+".else", out, scope, depth+1)
		return
	}
	if matched {
		r.decide(idx, DecisionThen, nil)
		r.list(b.Then, rulePath+".then", out, scope, depth+1)
		return
	}

	for k, arm := range b.ElseIf {
		armPath := rules.ElseIfPath(rulePath, k)
		ok, err := r.test(arm.Expression, scope)
		if err != nil {
			r.report(diagnostics.NewExpressionFailed(armPath, "Branch", err))
			continue
		}
		if ok {
			r.decide(idx, fmt.Sprintf("elseIf[%d]", k), nil)
			r.list(arm.Then, armPath+".then", out, scope, depth+1)
			return
		}
	}

	if len(b.Else) == 0 {
		r.decide(idx, DecisionNone, nil)
		return
	}
	r.decide(idx, DecisionElse, nil)
	r.list(b.Else, rulePath+".else", out, scope, depth+1)
}

func (r *run) test(src string, scope valuepath.Scope) (bool, error) {
	expr, err := r.eval.expression(src)
	if err != nil {
		return false, err
	}
	return expr.Eval(scope), nil
}

// lookup reads a raw path in scope; a malformed path reads as not found
func (r *run) lookup(raw string, scope valuepath.Scope) (any, bool) {
	p, err := r.eval.path(raw)
	if err != nil {
		return nil, false
	}
	return valuepath.Resolve(scope, p)
}

// write stores value at outputPath under the collision policy
func (r *run) write(out *target, raw string, value any, rulePath string) {
	p, err := r.eval.path(raw)
	if err == nil {
		err = checkWritable(p)
	}
	if err != nil {
		r.report(diagnostics.NewWriteFailed(rulePath, raw, err))
		return
	}

	tracked := !appends(p)
	if tracked {
		if first, written := out.writers[raw]; written {
			switch r.opts.policy() {
			case FirstWriteWins:
				return
			case ErrorOnCollision:
				r.report(diagnostics.NewOutputCollision(raw, first, rulePath))
				return
			}
		}
	}

	if err := valuepath.Set(out.obj, p, value); err != nil {
		r.report(diagnostics.NewWriteFailed(rulePath, raw, err))
		return
	}
	if tracked {
		if _, written := out.writers[raw]; !written {
			out.writers[raw] = rulePath
		}
	}
}

func checkWritable(p valuepath.Path) error {
	if p.Self || len(p.Steps) == 0 {
		return fmt.Errorf("cannot write to the whole output")
	}
	return nil
}

// appends reports whether every write to p adds a new element
func appends(p valuepath.Path) bool {
	for _, st := range p.Steps {
		if st.Kind == valuepath.StepAppend {
			return true
		}
	}
	return false
}
