package watch

import (
	"errors"
	"os"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/conduit-lang/reshape/internal/bundle"
	"github.com/conduit-lang/reshape/internal/diagnostics"
	"github.com/conduit-lang/reshape/internal/lint"
	"github.com/conduit-lang/reshape/internal/normalize"
	"github.com/conduit-lang/reshape/internal/payload"
	"github.com/conduit-lang/reshape/internal/plan"
)

// FileReport is the outcome of checking one rules file
type FileReport struct {
	Path        string
	Diagnostics diagnostics.List
	// Err is set when the file could not be bundled
	Err error
	// Unchanged means the bundled document matches the last check
	Unchanged bool
}

// CheckResult holds the reports of one check pass, sorted by path
type CheckResult struct {
	Files    []FileReport
	Duration time.Duration
}

// HasErrors reports whether any file failed to bundle or has error findings
func (r *CheckResult) HasErrors() bool {
	for _, f := range r.Files {
		if f.Err != nil || f.Diagnostics.HasErrors() {
			return true
		}
	}
	return false
}

// IncrementalChecker validates and lints rule files, skipping documents whose
// bundled content has not changed since the previous pass. Every file ever
// checked is re-bundled on each pass, so an edit to an included file is
// picked up through the files that include it.
type IncrementalChecker struct {
	mu     sync.Mutex
	hasher *plan.Hasher
	hashes map[string]string
	known  map[string]bool
	log    *zap.Logger
}

// NewIncrementalChecker creates a checker with an empty cache
func NewIncrementalChecker(log *zap.Logger) *IncrementalChecker {
	if log == nil {
		log = zap.NewNop()
	}
	return &IncrementalChecker{
		hasher: plan.NewHasher(),
		hashes: make(map[string]string),
		known:  make(map[string]bool),
		log:    log,
	}
}

// Check re-checks changed together with every file seen before. Files that
// no longer exist are forgotten.
func (c *IncrementalChecker) Check(changed []string) *CheckResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	for _, f := range changed {
		c.known[f] = true
	}
	paths := make([]string, 0, len(c.known))
	for f := range c.known {
		paths = append(paths, f)
	}
	sort.Strings(paths)

	result := &CheckResult{}
	for _, path := range paths {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			delete(c.known, path)
			delete(c.hashes, path)
			c.log.Debug("rules file removed", zap.String("file", path))
			continue
		}
		result.Files = append(result.Files, c.checkFile(path))
	}
	result.Duration = time.Since(start)
	return result
}

func (c *IncrementalChecker) checkFile(path string) FileReport {
	doc, err := bundle.Bundle(path, bundle.Options{Logger: c.log})
	if err != nil {
		delete(c.hashes, path)
		return FileReport{Path: path, Err: err}
	}

	// Bundled documents hold only generic values, which always encode
	text, _ := payload.EncodeJSON(doc, false)
	hash := c.hasher.HashString(text)
	if prev, ok := c.hashes[path]; ok && prev == hash {
		return FileReport{Path: path, Unchanged: true}
	}
	c.hashes[path] = hash

	res := normalize.Normalize(doc)
	diags := append(diagnostics.List{}, res.Diagnostics...)
	diags = append(diags, lint.Lint(res.Rules)...)
	c.log.Debug("rules file checked", zap.String("file", path), zap.Int("findings", len(diags)))
	return FileReport{Path: path, Diagnostics: diags}
}

// ClearCache forgets every file and hash
func (c *IncrementalChecker) ClearCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hashes = make(map[string]string)
	c.known = make(map[string]bool)
}
