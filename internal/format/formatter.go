// Package format renders conversion rule documents in their canonical form:
// every shorthand expanded, keys sorted, stable indentation.
package format

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/conduit-lang/reshape/internal/normalize"
	"github.com/conduit-lang/reshape/internal/payload"
	"github.com/conduit-lang/reshape/internal/rules"
)

// ErrHasIncludes is returned for documents that include other documents;
// their canonical form only exists after bundling
var ErrHasIncludes = errors.New("documents with include cannot be formatted in place")

// Style is the output encoding of a formatted document
type Style string

const (
	StyleJSON Style = "json"
	StyleYAML Style = "yaml"
)

// StyleForPath picks YAML for .yaml/.yml files and JSON for everything else
func StyleForPath(path string) Style {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return StyleYAML
	default:
		return StyleJSON
	}
}

// Formatter formats conversion rule documents
type Formatter struct {
	config *Config
}

// New creates a new Formatter with the given configuration
func New(config *Config) *Formatter {
	if config == nil {
		config = DefaultConfig()
	}
	return &Formatter{config: config}
}

// Format normalizes raw and renders it in the configured style (JSON unless
// the config says otherwise). Documents with validation errors are refused.
func (f *Formatter) Format(raw any) (string, error) {
	style := f.config.Style
	if style == "" {
		style = StyleJSON
	}
	return f.FormatAs(raw, style)
}

// FormatAs is Format with an explicit style
func (f *Formatter) FormatAs(raw any, style Style) (string, error) {
	r, err := normalize.Strict(raw)
	if err != nil {
		return "", fmt.Errorf("cannot format: %w", err)
	}
	return f.Render(r, style)
}

// Render writes already-normalized rules
func (f *Formatter) Render(r *rules.ConversionRules, style Style) (string, error) {
	switch style {
	case StyleJSON:
		return payload.EncodeJSONIndent(r.ToValue(), !f.config.Compact, f.config.IndentSize)
	case StyleYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(f.indent())
		if err := enc.Encode(r.ToValue()); err != nil {
			return "", err
		}
		if err := enc.Close(); err != nil {
			return "", err
		}
		return strings.TrimRight(buf.String(), "\n"), nil
	default:
		return "", fmt.Errorf("unsupported format style %q", style)
	}
}

func (f *Formatter) indent() int {
	if f.config.IndentSize <= 0 {
		return 2
	}
	return f.config.IndentSize
}

// FormatFile formats a rules file. The result ends with a newline so it can
// be written back as is.
func FormatFile(path string, config *Config) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	doc, err := normalize.DecodeDocument(content)
	if err != nil {
		return "", fmt.Errorf("%s: cannot format: %w", path, err)
	}
	if m, ok := doc.(map[string]any); ok {
		if _, has := m["include"]; has {
			return "", fmt.Errorf("%s: %w", path, ErrHasIncludes)
		}
	}

	formatter := New(config)
	style := formatter.config.Style
	if style == "" {
		style = StyleForPath(path)
	}
	out, err := formatter.FormatAs(doc, style)
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	return out + "\n", nil
}

// Check formats a rules file and reports how it differs from what is on disk
func Check(path string, config *Config) (*DiffResult, error) {
	original, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	formatted, err := FormatFile(path, config)
	if err != nil {
		return nil, err
	}
	return Diff(string(original), formatted), nil
}

// WriteFile formats a rules file in place, returning whether it changed
func WriteFile(path string, config *Config) (bool, error) {
	diff, err := Check(path, config)
	if err != nil {
		return false, err
	}
	if !diff.Changed {
		return false, nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	return true, os.WriteFile(path, []byte(diff.Formatted), info.Mode().Perm())
}
