// Package transform implements the built-in value transforms and the
// calling convention for caller-supplied custom transforms.
package transform

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/conduit-lang/reshape/internal/payload"
	"github.com/conduit-lang/reshape/internal/valuepath"
)

// Built-in transform names
const (
	ToLowerCase = "toLowerCase"
	ToUpperCase = "toUpperCase"
	Number      = "number"
	Boolean     = "boolean"
	Concat      = "concat"
	Split       = "split"
	Trim        = "trim"
	String      = "string"
)

// ConstPrefix marks a literal token in a concat path list
const ConstPrefix = "const:"

// Input is everything a transform can see
type Input struct {
	Value   any // resolved value of Path (nil when not found)
	Found   bool
	Path    string
	Options map[string]any
	Scope   valuepath.Scope
}

// Builtin is a built-in transform. Built-ins never fail; inputs they cannot
// handle produce null.
type Builtin func(in Input) any

var builtins = map[string]Builtin{
	ToLowerCase: func(in Input) any { return mapString(in.Value, strings.ToLower) },
	ToUpperCase: func(in Input) any { return mapString(in.Value, strings.ToUpper) },
	Trim:        func(in Input) any { return mapString(in.Value, strings.TrimSpace) },
	String: func(in Input) any {
		if in.Value == nil {
			return nil
		}
		return payload.Stringify(in.Value)
	},
	Number:  func(in Input) any { return toNumber(in.Value) },
	Boolean: func(in Input) any { return toBoolean(in.Value) },
	Concat:  concat,
	Split:   split,
}

// Lookup returns the named built-in
func Lookup(name string) (Builtin, bool) {
	fn, ok := builtins[name]
	return fn, ok
}

// IsBuiltin reports whether name is a built-in transform
func IsBuiltin(name string) bool {
	_, ok := builtins[name]
	return ok
}

// Names returns the built-in names in a stable order
func Names() []string {
	return []string{ToLowerCase, ToUpperCase, Number, Boolean, Concat, Split, Trim, String}
}

// ResolvesOwnPath reports whether the built-in reads its path list itself
// rather than receiving a single resolved value
func ResolvesOwnPath(name string) bool {
	return name == Concat
}

func mapString(v any, fn func(string) string) any {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		return fn(t)
	default:
		return fn(payload.Stringify(t))
	}
}

func toNumber(v any) any {
	switch t := v.(type) {
	case float64:
		return t
	case bool:
		if t {
			return float64(1)
		}
		return float64(0)
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil
		}
		return f
	}
	return nil
}

func toBoolean(v any) any {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "1", "yes", "y", "on":
			return true
		case "false", "0", "no", "n", "off", "":
			return false
		}
	}
	return nil
}

// concat joins comma-separated path tokens; "const:x" tokens are literals
func concat(in Input) any {
	sep := stringOption(in.Options, "separator", "")
	tokens := strings.Split(in.Path, ",")
	parts := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		// literal text after "const:" is kept verbatim, spaces included
		if lit, ok := strings.CutPrefix(strings.TrimLeft(tok, " \t"), ConstPrefix); ok {
			parts = append(parts, lit)
			continue
		}
		tok = strings.TrimSpace(tok)
		if tok == "" {
			parts = append(parts, "")
			continue
		}
		p, err := valuepath.Parse(tok)
		if err != nil {
			parts = append(parts, "")
			continue
		}
		v, _ := valuepath.Resolve(in.Scope, p)
		parts = append(parts, payload.Stringify(v))
	}
	return strings.Join(parts, sep)
}

// split picks options.index from the value split on options.separator
func split(in Input) any {
	sep, ok := in.Options["separator"].(string)
	if !ok || sep == "" {
		return nil
	}
	s, ok := in.Value.(string)
	if !ok {
		return nil
	}
	parts := strings.Split(s, sep)

	idx := 0
	if raw, has := in.Options["index"]; has {
		f, isNum := toNumber(raw).(float64)
		if !isNum || f != math.Trunc(f) {
			return nil
		}
		idx = int(f)
	}
	if idx < 0 {
		idx += len(parts)
	}
	if idx < 0 || idx >= len(parts) {
		return nil
	}
	return parts[idx]
}

func stringOption(opts map[string]any, key, fallback string) string {
	if v, ok := opts[key]; ok && v != nil {
		if s, isString := v.(string); isString {
			return s
		}
		return payload.Stringify(v)
	}
	return fallback
}

// Context is passed to custom transforms alongside the resolved value
type Context struct {
	Root     any
	Item     any
	HasItem  bool
	Path     string
	Options  map[string]any
	RulePath string
}

// Func is a caller-supplied custom transform
type Func func(value any, ctx Context) (any, error)

// Table maps custom transform names to implementations. It is supplied per
// call and never retained.
type Table map[string]Func

// Call invokes fn, converting a panic into an error
func Call(fn Func, value any, ctx Context) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(value, ctx)
}
