package evaluator

import (
	"strings"

	"github.com/conduit-lang/reshape/internal/diagnostics"
	"github.com/conduit-lang/reshape/internal/payload"
	"github.com/conduit-lang/reshape/internal/rules"
	"github.com/conduit-lang/reshape/internal/transform"
	"github.com/conduit-lang/reshape/internal/valuepath"
)

// resolve produces a source's value. found is false only when the value is
// missing, which is distinct from null.
func (r *run) resolve(src rules.Source, rulePath string, scope valuepath.Scope) (any, bool) {
	switch s := src.(type) {
	case *rules.PathSource:
		v, ok := r.lookup(s.Path, scope)
		return payload.DeepCopy(v), ok
	case *rules.ConstantSource:
		return payload.DeepCopy(s.Value), true
	case *rules.TransformSource:
		return r.transform(s, rulePath, scope)
	case *rules.ConditionSource:
		return r.condition(s, rulePath, scope), true
	case *rules.MergeSource:
		return r.merge(s, scope)
	}
	return nil, false
}

func (r *run) transform(s *rules.TransformSource, rulePath string, scope valuepath.Scope) (any, bool) {
	if s.IsCustom() {
		fn, registered := r.opts.CustomTransforms[s.CustomTransform]
		if !registered || fn == nil {
			r.report(diagnostics.NewCustomTransformMissing(rulePath, s.CustomTransform))
			return nil, true
		}
		value, found := r.lookup(s.Path, scope)
		if !found {
			return nil, false
		}
		opts, _ := payload.DeepCopy(s.Options).(map[string]any)
		out, err := transform.Call(fn, payload.DeepCopy(value), transform.Context{
			Root:     scope.Root,
			Item:     scope.Item,
			HasItem:  scope.HasItem,
			Path:     s.Path,
			Options:  opts,
			RulePath: rulePath,
		})
		if err != nil {
			r.report(diagnostics.NewCustomTransformFailed(rulePath, s.CustomTransform, err))
			return nil, true
		}
		return payload.Canonicalize(out), true
	}

	fn, ok := transform.Lookup(s.Transform)
	if !ok {
		return nil, false
	}
	in := transform.Input{Path: s.Path, Options: s.Options, Scope: scope}
	if !transform.ResolvesOwnPath(s.Transform) {
		value, found := r.lookup(s.Path, scope)
		if !found {
			return nil, false
		}
		in.Value, in.Found = value, true
	}
	return fn(in), true
}

// condition picks trueValue, the first matching elseIf value, or falseValue.
// A failing expression counts as not matching.
func (r *run) condition(s *rules.ConditionSource, rulePath string, scope valuepath.Scope) any {
	matched, err := r.test(s.Expression, scope)
	if err != nil {
		r.report(diagnostics.NewExpressionFailed(rulePath, "Condition", err))
		matched = false
	}
	if s.Output == rules.OutputBoolean {
		return matched
	}
	if matched {
		return payload.DeepCopy(s.TrueValue)
	}
	for _, arm := range s.ElseIf {
		ok, err := r.test(arm.Expression, scope)
		if err != nil {
			r.report(diagnostics.NewExpressionFailed(rulePath, "Condition", err))
			continue
		}
		if ok {
			return payload.DeepCopy(arm.Value)
		}
	}
	return payload.DeepCopy(s.FalseValue)
}

func (r *run) merge(s *rules.MergeSource, scope valuepath.Scope) (any, bool) {
	switch s.Mode {
	case rules.MergeArray:
		values := make([]any, 0, len(s.Paths))
		for _, p := range s.Paths {
			if v, ok := r.lookup(p, scope); ok && v != nil {
				values = append(values, payload.DeepCopy(v))
			}
		}
		return values, true
	case rules.MergeConcat:
		parts := make([]string, 0, len(s.Paths))
		for _, p := range s.Paths {
			if v, ok := r.lookup(p, scope); ok && !payload.IsEmpty(v) {
				parts = append(parts, payload.Stringify(v))
			}
		}
		return strings.Join(parts, s.Separator), true
	default:
		for _, p := range s.Paths {
			if v, ok := r.lookup(p, scope); ok && !payload.IsEmpty(v) {
				return payload.DeepCopy(v), true
			}
		}
		return nil, false
	}
}
