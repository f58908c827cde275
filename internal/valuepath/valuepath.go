// Package valuepath reads and writes generic values by dotted/bracketed path.
//
// Syntax: "a.b", "items[0].name", "matrix[1][2]", "tags[]" (append, write only),
// "$" (the whole root), "$.a.b" (rooted), and "." (the current scope value).
// Reads never fail: a missing key, an out-of-range index or a non-container
// intermediate reports not-found.
package valuepath

import (
	"fmt"
	"strconv"
	"strings"
)

// MaxIndex is the largest array index a path may name. Writes pad arrays up
// to the index, so it bounds the memory a single write can claim.
const MaxIndex = 1<<16 - 1

// StepKind distinguishes path steps
type StepKind int

const (
	// StepKey selects an object member (or, for numeric keys, an array element)
	StepKey StepKind = iota
	// StepIndex selects an array element by position
	StepIndex
	// StepAppend appends to an array (write only)
	StepAppend
)

// Step is a single path component
type Step struct {
	Kind  StepKind
	Key   string
	Index int
}

// Path is a parsed path expression
type Path struct {
	Raw    string
	Rooted bool // "$" or "$."-prefixed
	Self   bool // "."
	Steps  []Step
}

// String returns the trimmed source form
func (p Path) String() string {
	return p.Raw
}

// FirstKey returns the first step's key, if the path starts with a key
func (p Path) FirstKey() (string, bool) {
	if len(p.Steps) == 0 || p.Steps[0].Kind != StepKey {
		return "", false
	}
	return p.Steps[0].Key, true
}

// Parse parses a path expression
func Parse(raw string) (Path, error) {
	s := strings.TrimSpace(raw)
	p := Path{Raw: s}
	if s == "" {
		return p, fmt.Errorf("empty path")
	}
	if s == "." {
		p.Self = true
		return p, nil
	}
	if s == "$" {
		p.Rooted = true
		return p, nil
	}
	switch {
	case strings.HasPrefix(s, "$."):
		p.Rooted = true
		s = s[2:]
	case strings.HasPrefix(s, "$["):
		p.Rooted = true
		s = s[1:]
	}
	if s == "" {
		return p, fmt.Errorf("empty path after root marker in %q", raw)
	}

	for _, part := range strings.Split(s, ".") {
		steps, err := parseSegment(part, raw)
		if err != nil {
			return p, err
		}
		p.Steps = append(p.Steps, steps...)
	}
	return p, nil
}

// MustParse is like Parse but panics on error; for tests and constants
func MustParse(raw string) Path {
	p, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return p
}

func parseSegment(part, raw string) ([]Step, error) {
	if part == "" {
		return nil, fmt.Errorf("empty segment in path %q", raw)
	}

	name := part
	rest := ""
	if i := strings.IndexByte(part, '['); i >= 0 {
		name, rest = part[:i], part[i:]
	}
	if strings.ContainsAny(name, "]") {
		return nil, fmt.Errorf("unexpected ']' in path %q", raw)
	}

	var steps []Step
	if name != "" {
		steps = append(steps, Step{Kind: StepKey, Key: name})
	}

	for rest != "" {
		if rest[0] != '[' {
			return nil, fmt.Errorf("unexpected %q after index in path %q", rest[0], raw)
		}
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			return nil, fmt.Errorf("unterminated index in path %q", raw)
		}
		body := strings.TrimSpace(rest[1:end])
		rest = rest[end+1:]

		if body == "" {
			steps = append(steps, Step{Kind: StepAppend})
			continue
		}
		idx, err := strconv.Atoi(body)
		if err != nil || idx < 0 {
			return nil, fmt.Errorf("invalid index %q in path %q", body, raw)
		}
		if idx > MaxIndex {
			return nil, fmt.Errorf("index %d exceeds limit %d", idx, MaxIndex)
		}
		steps = append(steps, Step{Kind: StepIndex, Index: idx})
	}
	return steps, nil
}

// Lookup reads p against v. Rooted and Self paths are read against v as-is;
// choosing between root and item scope is the caller's job (see Resolve).
func Lookup(v any, p Path) (any, bool) {
	cur := v
	for _, st := range p.Steps {
		next, ok := step(cur, st)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

func step(cur any, st Step) (any, bool) {
	switch st.Kind {
	case StepKey:
		switch c := cur.(type) {
		case map[string]any:
			v, ok := c[st.Key]
			return v, ok
		case []any:
			if idx, err := strconv.Atoi(st.Key); err == nil && idx >= 0 && idx < len(c) {
				return c[idx], true
			}
		}
	case StepIndex:
		if c, ok := cur.([]any); ok && st.Index < len(c) {
			return c[st.Index], true
		}
	}
	return nil, false
}

// Get parses and reads in one call; a malformed path reads as not-found
func Get(v any, raw string) (any, bool) {
	p, err := Parse(raw)
	if err != nil {
		return nil, false
	}
	if p.Self {
		return v, true
	}
	return Lookup(v, p)
}

// Scope is the pair of values a path can be resolved against
type Scope struct {
	Root    any
	Item    any
	HasItem bool
}

// Resolve reads p in scope. Inside an array item, the item is consulted
// first; the root is used when the path is rooted, when there is no item, or
// when the path's first key is not a member of the item.
func Resolve(scope Scope, p Path) (any, bool) {
	if p.Self {
		if scope.HasItem {
			return scope.Item, true
		}
		return scope.Root, true
	}
	if p.Rooted || !scope.HasItem {
		return Lookup(scope.Root, p)
	}
	if key, ok := p.FirstKey(); ok {
		if m, isMap := scope.Item.(map[string]any); isMap {
			if _, has := m[key]; has {
				return Lookup(scope.Item, p)
			}
		}
		return Lookup(scope.Root, p)
	}
	return Lookup(scope.Item, p)
}

// Set writes value at p inside target, creating intermediate objects as
// needed. Rooted paths are written relative to target. Index steps pad arrays
// with nulls, append steps append, numeric keys index into existing arrays, a
// plain key whose existing value is an array appends a new object holding the
// rest of the path, and scalar intermediates are replaced by objects.
func Set(target map[string]any, p Path, value any) error {
	if p.Self || len(p.Steps) == 0 {
		return fmt.Errorf("cannot write to the whole output with path %q", p.Raw)
	}
	if p.Steps[0].Kind != StepKey {
		return fmt.Errorf("output path %q must start with a key", p.Raw)
	}
	_, err := set(target, p.Steps, value)
	if err != nil {
		return fmt.Errorf("write %q: %w", p.Raw, err)
	}
	return nil
}

func set(cur any, steps []Step, value any) (any, error) {
	if len(steps) == 0 {
		return value, nil
	}
	st := steps[0]

	switch st.Kind {
	case StepKey:
		if arr, ok := cur.([]any); ok {
			if idx, err := strconv.Atoi(st.Key); err == nil && idx >= 0 {
				return setIndex(arr, idx, steps[1:], value)
			}
			v, err := set(map[string]any{}, steps, value)
			if err != nil {
				return nil, err
			}
			return append(arr, v), nil
		}
		m, ok := cur.(map[string]any)
		if !ok {
			m = make(map[string]any)
		}
		v, err := set(m[st.Key], steps[1:], value)
		if err != nil {
			return nil, err
		}
		m[st.Key] = v
		return m, nil
	case StepIndex:
		arr, _ := cur.([]any)
		return setIndex(arr, st.Index, steps[1:], value)
	default:
		arr, _ := cur.([]any)
		v, err := set(nil, steps[1:], value)
		if err != nil {
			return nil, err
		}
		return append(arr, v), nil
	}
}

func setIndex(arr []any, idx int, rest []Step, value any) ([]any, error) {
	if idx > MaxIndex {
		return nil, fmt.Errorf("index %d exceeds limit %d", idx, MaxIndex)
	}
	for len(arr) <= idx {
		arr = append(arr, nil)
	}
	v, err := set(arr[idx], rest, value)
	if err != nil {
		return nil, err
	}
	arr[idx] = v
	return arr, nil
}
