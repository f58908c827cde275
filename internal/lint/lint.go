// Package lint reports static smells in normalized rules. It needs no input
// and never changes the rules.
package lint

import (
	"fmt"

	"github.com/conduit-lang/reshape/internal/condition"
	"github.com/conduit-lang/reshape/internal/condition/ast"
	"github.com/conduit-lang/reshape/internal/diagnostics"
	"github.com/conduit-lang/reshape/internal/payload"
	"github.com/conduit-lang/reshape/internal/rules"
)

// Lint checks the document's rules and every fragment body
func Lint(r *rules.ConversionRules) diagnostics.List {
	l := &linter{diags: diagnostics.List{}}
	l.list(r.Rules, rules.TopLevel)

	names := make(map[string]any, len(r.Fragments))
	for name := range r.Fragments {
		names[name] = nil
	}
	for _, name := range payload.SortedKeys(names) {
		l.list(r.Fragments[name], rules.FragmentPath(name))
	}

	used := usedFragments(r)
	for _, name := range payload.SortedKeys(names) {
		if !used[name] {
			l.diags = append(l.diags, diagnostics.NewUnusedFragment(name))
		}
	}
	return l.diags
}

type linter struct {
	diags diagnostics.List
}

func (l *linter) report(d *diagnostics.Diagnostic) {
	l.diags = append(l.diags, d)
}

// list checks one sibling list, then recurses
func (l *linter) list(rs []rules.Rule, prefix string) {
	l.duplicates(rs, prefix)
	for i, r := range rs {
		p := rules.Address(prefix, i, r)
		switch t := r.(type) {
		case *rules.FieldRule:
			l.field(t, p)
		case *rules.ArrayRule:
			if len(t.ItemRules) == 0 {
				l.report(diagnostics.NewEmptyItemRules(p, t.InputPath))
			}
			l.list(t.ItemRules, p+".itemRules")
		case *rules.BranchRule:
			l.branch(t, p)
		}
	}
}

// duplicates reports output paths written by more than one sibling field rule
func (l *linter) duplicates(rs []rules.Rule, prefix string) {
	writers := map[string][]string{}
	var order []string
	for i, r := range rs {
		f, ok := r.(*rules.FieldRule)
		if !ok {
			continue
		}
		p := rules.Address(prefix, i, r)
		for _, out := range f.OutputPaths {
			if _, seen := writers[out]; !seen {
				order = append(order, out)
			}
			if w := writers[out]; len(w) == 0 || w[len(w)-1] != p {
				writers[out] = append(w, p)
			}
		}
	}
	for _, out := range order {
		if w := writers[out]; len(w) > 1 {
			l.report(diagnostics.NewDuplicateOutputPath(w[1], out, w))
		}
	}
}

func (l *linter) field(f *rules.FieldRule, p string) {
	switch s := f.Source.(type) {
	case *rules.ConstantSource:
		if f.HasDefault && !payload.IsEmpty(s.Value) {
			l.report(diagnostics.NewDefaultNeverApplies(p))
		}
	case *rules.ConditionSource:
		l.parse(s.Expression, p)
		for _, arm := range s.ElseIf {
			l.parse(arm.Expression, p)
		}
	}
}

func (l *linter) branch(b *rules.BranchRule, p string) {
	empty := len(b.Then) == 0 && len(b.Else) == 0
	for _, arm := range b.ElseIf {
		empty = empty && len(arm.Then) == 0
	}
	if empty {
		l.report(diagnostics.NewEmptyBranch(p))
	}

	shadowed := false
	check := func(expr, armPath, arm string, later bool) {
		node := l.parse(expr, armPath)
		if node == nil || shadowed {
			return
		}
		value, literal := ast.IsLiteral(node)
		switch {
		case literal && !value:
			l.report(diagnostics.NewUnreachableArm(armPath, arm))
		case literal && value && later:
			l.report(diagnostics.NewShadowedArms(armPath, arm))
			shadowed = true
		}
	}

	hasLater := func(k int) bool {
		return len(b.ElseIf) > k || len(b.Else) > 0
	}
	check(b.Expression, p, "then", hasLater(0))
	for k, arm := range b.ElseIf {
		check(arm.Expression, rules.ElseIfPath(p, k), fmt.Sprintf("elseIf[%d]", k), hasLater(k+1))
	}

	l.list(b.Then, p+".then")
	for k, arm := range b.ElseIf {
		l.list(arm.Then, rules.ElseIfPath(p, k)+".then")
	}
	l.list(b.Else, p+".else")
}

// parse reports an expression that does not parse and returns its tree
func (l *linter) parse(src, p string) ast.Node {
	expr, err := condition.Parse(src)
	if err != nil {
		l.report(diagnostics.NewInvalidExpression(p, src, err))
		return nil
	}
	return expr.Root
}

func usedFragments(r *rules.ConversionRules) map[string]bool {
	used := map[string]bool{}
	mark := func(_ string, rule rules.Rule) {
		if u, ok := rule.(*rules.UseRule); ok {
			used[u.Use] = true
		}
	}
	rules.Walk(r.Rules, rules.TopLevel, mark)
	for _, body := range r.Fragments {
		rules.Walk(body, "", mark)
	}
	return used
}
