package rules

import (
	"fmt"
	"sort"
	"strings"
)

// TopLevel is the rule path prefix of the document's own rules
const TopLevel = "rules"

// Child returns the address of element i in the rule list at prefix,
// e.g. Child("rules[0].then", 2) == "rules[0].then[2]"
func Child(prefix string, i int) string {
	return fmt.Sprintf("%s[%d]", prefix, i)
}

// ElseIfPath returns the address of arm k of the branch at rulePath
func ElseIfPath(rulePath string, k int) string {
	return fmt.Sprintf("%s.elseIf[%d]", rulePath, k)
}

// FragmentPath returns the static address of a fragment body
func FragmentPath(name string) string {
	return "fragments." + name
}

// Address returns the authored address of r, found at index i of the list
// at prefix. Rules moved by normalization keep the address they were
// written at.
func Address(prefix string, i int, r Rule) string {
	if o := origin(r); o != "" {
		return prefix + o
	}
	return Child(prefix, i)
}

func origin(r Rule) string {
	switch t := r.(type) {
	case *FieldRule:
		return t.Origin
	case *ArrayRule:
		return t.Origin
	case *BranchRule:
		return t.Origin
	case *UseRule:
		return t.Origin
	}
	return ""
}

// SetOrigin records the authored address segment of r
func SetOrigin(r Rule, segment string) {
	switch t := r.(type) {
	case *FieldRule:
		t.Origin = segment
	case *ArrayRule:
		t.Origin = segment
	case *BranchRule:
		t.Origin = segment
	case *UseRule:
		t.Origin = segment
	}
}

// Layout lists the addresses of every rule that normalization moved, in
// walk order. Empty when every rule sits where it was written.
func Layout(r *ConversionRules) string {
	var sb strings.Builder
	mark := func(p string, rule Rule) {
		if origin(rule) != "" {
			sb.WriteString(p)
			sb.WriteByte(';')
		}
	}
	Walk(r.Rules, TopLevel, mark)
	names := make([]string, 0, len(r.Fragments))
	for name := range r.Fragments {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		Walk(r.Fragments[name], FragmentPath(name), mark)
	}
	return sb.String()
}
