// Package bundle resolves "include" lists across rule files into a single
// rule document. Unlike the rest of the engine it returns hard errors: it
// runs at authoring time and a broken include graph has no useful partial
// result.
package bundle

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/conduit-lang/reshape/internal/payload"
)

var (
	// ErrCircularInclude is matched by errors for include cycles
	ErrCircularInclude = errors.New("circular include")
	// ErrIncludeNotFound is matched by errors for missing files
	ErrIncludeNotFound = errors.New("include not found")
	// ErrInvalidInclude is matched by errors for malformed files or include lists
	ErrInvalidInclude = errors.New("invalid include")
)

// Error is a bundling failure; errors.Is matches its sentinel
type Error struct {
	kind error
	msg  string
}

func (e *Error) Error() string { return e.msg }

// Unwrap returns the sentinel
func (e *Error) Unwrap() error { return e.kind }

func newError(kind error, format string, args ...any) *Error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...)}
}

// Options configure bundling
type Options struct {
	Logger *zap.Logger
}

// Bundle loads entryPath and every file it includes, depth-first. Included
// rules come before the including file's own rules, in include order; a file
// reached twice contributes once, at its first occurrence. Fragments merge
// with the including file winning. schemaVersion and formats come from the
// entry document.
func Bundle(entryPath string, opts Options) (map[string]any, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	entry, err := filepath.Abs(entryPath)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", entryPath, err)
	}
	b := &bundler{
		base: filepath.Dir(entry),
		seen: map[string]bool{entry: true},
		log:  log,
	}

	doc, err := b.load(entry, "rules file")
	if err != nil {
		return nil, err
	}
	ruleList, fragments, err := b.collect(entry, doc)
	if err != nil {
		return nil, err
	}

	out := make(map[string]any, len(doc))
	for k, v := range doc {
		if k != "include" {
			out[k] = v
		}
	}
	out["rules"] = ruleList
	if len(fragments) > 0 || doc["fragments"] != nil {
		out["fragments"] = fragments
	}
	log.Debug("bundle complete", zap.String("entry", entry), zap.Int("files", len(b.seen)), zap.Int("rules", len(ruleList)))
	return out, nil
}

type bundler struct {
	base  string
	seen  map[string]bool
	stack []string
	log   *zap.Logger
}

// display names a file relative to the entry directory
func (b *bundler) display(abs string) string {
	if rel, err := filepath.Rel(b.base, abs); err == nil && !strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(rel)
	}
	return abs
}

func (b *bundler) load(abs, what string) (map[string]any, error) {
	data, err := os.ReadFile(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, newError(ErrIncludeNotFound, "%s not found: %s", what, b.display(abs))
		}
		return nil, fmt.Errorf("read %s: %w", b.display(abs), err)
	}

	v, err := decode(abs, data)
	if err != nil {
		return nil, newError(ErrInvalidInclude, "%s is not valid structured text: %s: %v", what, b.display(abs), err)
	}
	doc, ok := v.(map[string]any)
	if !ok {
		return nil, newError(ErrInvalidInclude, "%s must contain an object at the top level: %s", what, b.display(abs))
	}
	return doc, nil
}

func decode(path string, data []byte) (any, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var v any
		if err := yaml.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		return payload.Canonicalize(v), nil
	default:
		return payload.DecodeJSON(data)
	}
}

func (b *bundler) collect(abs string, doc map[string]any) ([]any, map[string]any, error) {
	b.stack = append(b.stack, abs)
	defer func() { b.stack = b.stack[:len(b.stack)-1] }()

	ruleList := []any{}
	fragments := map[string]any{}

	if raw, ok := doc["include"]; ok && raw != nil {
		includes, isList := raw.([]any)
		if !isList {
			return nil, nil, newError(ErrInvalidInclude, "include must be an array (%s)", b.display(abs))
		}
		for _, item := range includes {
			rel, isString := item.(string)
			if !isString || strings.TrimSpace(rel) == "" {
				return nil, nil, newError(ErrInvalidInclude, "include entries must be non-empty paths (%s)", b.display(abs))
			}
			target := filepath.Clean(filepath.Join(filepath.Dir(abs), rel))

			if i := indexOf(b.stack, target); i >= 0 {
				chain := make([]string, 0, len(b.stack)-i+1)
				for _, p := range b.stack[i:] {
					chain = append(chain, b.display(p))
				}
				chain = append(chain, b.display(target))
				return nil, nil, newError(ErrCircularInclude, "Circular include detected: %s", strings.Join(chain, " -> "))
			}
			if b.seen[target] {
				b.log.Debug("include already bundled", zap.String("file", b.display(target)))
				continue
			}
			b.seen[target] = true

			included, err := b.load(target, "included file")
			if err != nil {
				return nil, nil, err
			}
			b.log.Debug("include resolved", zap.String("file", b.display(target)), zap.String("from", b.display(abs)))

			r, f, err := b.collect(target, included)
			if err != nil {
				return nil, nil, err
			}
			ruleList = append(ruleList, r...)
			for name, body := range f {
				fragments[name] = body
			}
		}
	}

	if raw, ok := doc["rules"]; ok && raw != nil {
		own, isList := raw.([]any)
		if !isList {
			return nil, nil, newError(ErrInvalidInclude, "rules must be an array (%s)", b.display(abs))
		}
		ruleList = append(ruleList, own...)
	}
	if raw, ok := doc["fragments"]; ok && raw != nil {
		own, isMap := raw.(map[string]any)
		if !isMap {
			return nil, nil, newError(ErrInvalidInclude, "fragments must be an object (%s)", b.display(abs))
		}
		for name, body := range own {
			fragments[name] = body
		}
	}
	return ruleList, fragments, nil
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}
