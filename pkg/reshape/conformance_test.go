package reshape

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/reshape/internal/payload"
)

const conformanceDir = "testdata/conformance"

type conformanceExpectation struct {
	Output         map[string]any
	Errors         []string
	Warnings       []string
	TraceDecisions []string
	TracePaths     []string
	checkTrace     bool
}

func readJSON(t *testing.T, path string) any {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	v, err := payload.DecodeJSON(data)
	require.NoError(t, err, path)
	return v
}

func stringList(t *testing.T, v any) []string {
	t.Helper()
	items, ok := v.([]any)
	require.True(t, ok, "expected a list, got %T", v)
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		require.True(t, ok, "expected a string, got %T", item)
		out = append(out, s)
	}
	return out
}

func loadExpectation(t *testing.T, dir string) conformanceExpectation {
	t.Helper()
	raw, ok := readJSON(t, filepath.Join(dir, "expected.json")).(map[string]any)
	require.True(t, ok, "expected.json must be an object")

	exp := conformanceExpectation{
		Output:   raw["output"].(map[string]any),
		Errors:   stringList(t, raw["errors"]),
		Warnings: stringList(t, raw["warnings"]),
	}
	if decisions, ok := raw["traceDecisions"]; ok {
		exp.TraceDecisions = stringList(t, decisions)
		exp.checkTrace = true
	}
	if paths, ok := raw["tracePaths"]; ok {
		exp.TracePaths = stringList(t, paths)
	}
	return exp
}

func loadOptions(t *testing.T, dir string) *Options {
	t.Helper()
	path := filepath.Join(dir, "options.json")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	raw, ok := readJSON(t, path).(map[string]any)
	require.True(t, ok, "options.json must be an object")

	opts := &Options{}
	if policy, ok := raw["collisionPolicy"].(string); ok {
		opts.CollisionPolicy = CollisionPolicy(policy)
	}
	if trace, ok := raw["trace"].(bool); ok {
		opts.Trace = trace
	}
	return opts
}

func TestConformance(t *testing.T) {
	entries, err := os.ReadDir(conformanceDir)
	require.NoError(t, err)

	cases := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		cases++
		dir := filepath.Join(conformanceDir, entry.Name())

		t.Run(entry.Name(), func(t *testing.T) {
			rulesText, err := os.ReadFile(filepath.Join(dir, "rules.json"))
			require.NoError(t, err)
			input := readJSON(t, filepath.Join(dir, "input.json"))
			opts := loadOptions(t, dir)
			exp := loadExpectation(t, dir)

			res := ApplyConversion(input, string(rulesText), opts)

			assert.Equal(t, exp.Output, res.Output)
			assert.Equal(t, exp.Errors, res.Errors)
			assert.Equal(t, exp.Warnings, res.Warnings)
			if exp.checkTrace {
				decisions := make([]string, len(res.Trace))
				for i, entry := range res.Trace {
					decisions[i] = entry.Decision
				}
				assert.Equal(t, exp.TraceDecisions, decisions)
			}
			if exp.TracePaths != nil {
				paths := make([]string, len(res.Trace))
				for i, entry := range res.Trace {
					paths[i] = entry.RulePath
				}
				assert.Equal(t, exp.TracePaths, paths)
			}

			// Applying twice must not change the outcome
			again := ApplyConversion(input, string(rulesText), opts)
			assert.Equal(t, res.Output, again.Output)
		})
	}
	assert.NotZero(t, cases, "no conformance cases found")
}
