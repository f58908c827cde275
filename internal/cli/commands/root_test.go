package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/reshape/internal/compat"
	"github.com/conduit-lang/reshape/internal/payload"
	"github.com/conduit-lang/reshape/pkg/reshape"
	"github.com/conduit-lang/reshape/schemas"
)

const personRules = `{"schemaVersion":"1.1.0","rules":[{"from":"name","to":"person.name"}]}`

// runCLI executes the root command inside dir and returns stdout and stderr
func runCLI(t *testing.T, dir, stdin string, args ...string) (string, string, error) {
	t.Helper()

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	var stdout, stderr bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetArgs(append([]string{"--no-color"}, args...))
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	err = cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestNewRootCommand(t *testing.T) {
	cmd := NewRootCommand()

	assert.Equal(t, "reshape", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	assert.NotEmpty(t, cmd.Long)

	expected := []string{
		"version", "convert", "validate", "lint", "doctor", "compat", "bundle",
		"format", "stream", "profile", "cache-key", "schema", "init", "watch", "completion",
	}
	registered := make(map[string]bool)
	for _, sub := range cmd.Commands() {
		registered[sub.Name()] = true
	}
	for _, name := range expected {
		assert.True(t, registered[name], "expected command %s to be registered", name)
	}
}

func TestVersionCommand(t *testing.T) {
	Version = "1.0.0-test"
	GitCommit = "abc123"
	BuildDate = "2025-01-01"
	GoVersion = "go1.23"

	out, _, err := runCLI(t, t.TempDir(), "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "1.0.0-test")
	assert.Contains(t, out, "abc123")
	assert.Contains(t, out, compat.EngineVersion)
}

func TestConvertCommand(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "rules.json", personRules)
	writeFile(t, dir, "in.json", `{"name":"Ada"}`)

	out, stderr, err := runCLI(t, dir, "", "convert", "rules.json", "in.json")
	require.NoError(t, err, stderr)
	assert.Equal(t, "{\n  \"person\": {\n    \"name\": \"Ada\"\n  }\n}\n", out)

	out, _, err = runCLI(t, dir, `{"name":"Ada"}`, "convert", "rules.json", "--pretty=false")
	require.NoError(t, err)
	assert.Equal(t, "{\"person\":{\"name\":\"Ada\"}}\n", out)
}

func TestConvertCommand_WritesFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "rules.json", personRules)

	_, _, err := runCLI(t, dir, `{"name":"Ada"}`, "convert", "rules.json", "-", "-o", "out.json", "--pretty=false")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "out.json"))
	require.NoError(t, err)
	assert.Equal(t, "{\"person\":{\"name\":\"Ada\"}}\n", string(data))
}

func TestConvertCommand_Errors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "rules.json", personRules)

	_, stderr, err := runCLI(t, dir, "{broken", "convert", "rules.json")
	require.Error(t, err)
	assert.Equal(t, "conversion finished with 1 error(s)", err.Error())
	assert.Contains(t, stderr, "Input could not be decoded as json")

	_, _, err = runCLI(t, dir, `{}`, "convert", "rules.json", "--collision-policy", "newest")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "newest")

	_, _, err = runCLI(t, dir, `{}`, "convert", "missing.json")
	assert.Error(t, err)
}

func TestConvertCommand_Report(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "rules.json", personRules)

	out, _, err := runCLI(t, dir, `{"name":"Ada"}`, "convert", "rules.json", "--report", "--trace")
	require.NoError(t, err)

	var report map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Contains(t, report, "output")
	assert.Contains(t, report, "trace")
}

func TestValidateCommand(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "good.json", personRules)
	writeFile(t, dir, "bad.yaml", "rules:\n  - kind: weird\n")

	out, _, err := runCLI(t, dir, "", "validate", "good.json")
	require.NoError(t, err)
	assert.Contains(t, out, "good.json is valid")

	_, _, err = runCLI(t, dir, "", "validate", "good.json", "bad.yaml")
	require.Error(t, err)
	assert.Equal(t, "1 of 2 rules file(s) invalid", err.Error())

	out, _, err = runCLI(t, dir, "", "validate", "--json", "good.json", "bad.yaml")
	require.Error(t, err)
	var results map[string]reshape.ValidationResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	assert.True(t, results["good.json"].IsValid)
	assert.False(t, results["bad.yaml"].IsValid)
	assert.NotEmpty(t, results["bad.yaml"].Errors)
}

func TestLintCommand(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "rules.json", personRules)

	out, _, err := runCLI(t, dir, "", "lint", "--json", "rules.json")
	require.NoError(t, err)

	var results map[string]map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	assert.Equal(t, false, results["rules.json"]["hasErrors"])
}

func TestDoctorCommand(t *testing.T) {
	dir := t.TempDir()
	original := `{"rules":[{"from":"name","to":"person.name"}]}`
	path := writeFile(t, dir, "rules.json", original)
	writeFile(t, dir, "sample.json", `{"name":"Ada"}`)

	_, _, err := runCLI(t, dir, "", "doctor", "rules.json", "--sample", "sample.json")
	require.NoError(t, err)

	_, _, err = runCLI(t, dir, "", "doctor", "rules.json", "--fix")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	doc, err := payload.DecodeJSON(data)
	require.NoError(t, err)
	assert.True(t, reshape.ValidateConversionRules(doc).IsValid)
	assert.NotEqual(t, original, string(data))

	writeFile(t, dir, "broken.json", `{"rules":[{"kind":"weird"}]}`)
	_, _, err = runCLI(t, dir, "", "doctor", "broken.json")
	require.Error(t, err)
	assert.Equal(t, "doctor found errors", err.Error())
}

func TestCompatCommand(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "rules.json", personRules)

	out, _, err := runCLI(t, dir, "", "compat", "rules.json")
	require.NoError(t, err)
	assert.Contains(t, out, "compatible with engine "+compat.EngineVersion)

	_, _, err = runCLI(t, dir, "", "compat", "rules.json", "--target", "1.0.0")
	assert.Error(t, err, "a 1.1.0 document is too new for a 1.0.0 engine")

	writeFile(t, dir, "future.json", `{"schemaVersion":"9.0.0","rules":[]}`)
	_, _, err = runCLI(t, dir, "", "compat", "future.json")
	assert.Error(t, err)
}

func TestCacheKeyCommand(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "rules.json", personRules)
	writeFile(t, dir, "rules.yaml", "schemaVersion: \"1.1.0\"\nrules:\n  - from: name\n    to: person.name\n")

	fromJSON, _, err := runCLI(t, dir, "", "cache-key", "rules.json")
	require.NoError(t, err)
	fromYAML, _, err := runCLI(t, dir, "", "cache-key", "rules.yaml")
	require.NoError(t, err)

	assert.Equal(t, fromJSON, fromYAML)
	assert.Len(t, strings.TrimSpace(fromJSON), 64)
}

func TestBundleCommand(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.json", `{"rules":[{"from":"id","to":"person.id"}]}`)
	writeFile(t, dir, "main.yaml", "include:\n  - base.json\nrules:\n  - from: name\n    to: person.name\n")

	out, _, err := runCLI(t, dir, "", "bundle", "main.yaml")
	require.NoError(t, err)

	doc, err := payload.DecodeJSON([]byte(out))
	require.NoError(t, err)
	rules := doc.(map[string]any)["rules"].([]any)
	require.Len(t, rules, 2)
	assert.Equal(t, []any{"person.id"}, rules[0].(map[string]any)["outputPaths"])
	assert.NotContains(t, doc, "include")

	_, _, err = runCLI(t, dir, "", "bundle", "main.yaml", "-o", "dist/bundle.yaml")
	require.Error(t, err, "output directory does not exist")

	_, _, err = runCLI(t, dir, "", "bundle", "main.yaml", "-o", "bundle.yaml")
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(dir, "bundle.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "rules:")
}

func TestFormatCommand(t *testing.T) {
	dir := t.TempDir()
	original := `{"rules":[{"from":"name","to":"person.name"}]}`
	path := writeFile(t, dir, "rules.json", original)
	writeFile(t, dir, "main.json", `{"include":["rules.json"],"rules":[]}`)
	writeFile(t, dir, "reshape.yml", "trace: false\n")

	out, _, err := runCLI(t, dir, "", "format")
	require.NoError(t, err)
	assert.Contains(t, out, "Run 'reshape format --write' to apply changes")
	assert.Contains(t, out, "main.json skipped (has includes)")
	assert.NotContains(t, out, "reshape.yml")

	_, stderr, err := runCLI(t, dir, "", "format", "--check")
	require.Error(t, err)
	assert.Contains(t, stderr, "rules.json needs formatting")

	out, _, err = runCLI(t, dir, "", "format", "--write")
	require.NoError(t, err)
	assert.Contains(t, out, "rules.json formatted")

	_, _, err = runCLI(t, dir, "", "format", "--check")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotEqual(t, original, string(data))
	assert.True(t, reshape.ValidateConversionRules(string(data)).IsValid)

	_, _, err = runCLI(t, dir, "", "format", "--style", "toml")
	assert.Error(t, err)
}

func TestStreamCommand(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "rules.json", personRules)
	input := "{\"name\":\"Ada\"}\n{broken\n{\"name\":\"Grace\"}\n"

	out, stderr, err := runCLI(t, dir, input, "stream", "rules.json")
	require.Error(t, err)
	assert.Equal(t, "1 of 3 record(s) had errors", err.Error())
	assert.Equal(t, "{\"person\":{\"name\":\"Ada\"}}\n{\"person\":{\"name\":\"Grace\"}}\n", out)
	assert.Contains(t, stderr, "record 2: error")

	_, _, err = runCLI(t, dir, "{\"name\":\"Ada\"}\n", "stream", "rules.json", "--kind", "csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "csv")
}

func TestStreamCommand_QueryLines(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "rules.json", `{"inputFormat":"query","rules":[{"from":"name","to":"person.name"}]}`)

	out, _, err := runCLI(t, dir, "name=Ada\nname=Grace\n", "stream", "rules.json", "--kind", "query-lines")
	require.NoError(t, err)
	assert.Equal(t, "{\"person\":{\"name\":\"Ada\"}}\n{\"person\":{\"name\":\"Grace\"}}\n", out)
}

func TestProfileCommand(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "rules.json", personRules)
	writeFile(t, dir, "samples.json", `[{"name":"Ada"},{"name":"Grace"}]`)

	out, _, err := runCLI(t, dir, "", "profile", "rules.json", "samples.json", "--iterations", "3", "--warmup", "1", "--json")
	require.NoError(t, err)

	var report map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, float64(2), report["samples"])
	assert.Equal(t, float64(3), report["iterations"])
	assert.Equal(t, float64(0), report["errorCount"])

	_, _, err = runCLI(t, dir, "", "profile", "rules.json", "samples.json", "--iterations", "0")
	assert.Error(t, err)
}

func TestSchemaCommand(t *testing.T) {
	dir := t.TempDir()

	out, _, err := runCLI(t, dir, "", "schema", "--list")
	require.NoError(t, err)
	assert.Contains(t, out, schemas.Latest()+" (current)")
	assert.Contains(t, out, "1.0.0")

	out, _, err = runCLI(t, dir, "", "schema", "1.0.0")
	require.NoError(t, err)
	assert.True(t, json.Valid([]byte(out)))

	_, _, err = runCLI(t, dir, "", "schema", "0.1.0")
	assert.Error(t, err)
}

func TestInitCommand(t *testing.T) {
	dir := t.TempDir()

	out, _, err := runCLI(t, dir, "", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "Next: reshape doctor rules.yaml")

	data, err := os.ReadFile(filepath.Join(dir, DefaultRulesFile))
	require.NoError(t, err)
	res := reshape.ValidateConversionRules(string(data))
	assert.True(t, res.IsValid, res.Errors)

	_, _, err = runCLI(t, dir, "", "init")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, _, err = runCLI(t, dir, "", "init", "nested/rules.json", "--input-format", "xml")
	require.NoError(t, err)
	data, err = os.ReadFile(filepath.Join(dir, "nested", "rules.json"))
	require.NoError(t, err)
	assert.True(t, json.Valid(data))
	assert.True(t, reshape.ValidateConversionRules(string(data)).IsValid)

	_, _, err = runCLI(t, dir, "", "init", "other.yaml", "--output-format", "csv")
	assert.Error(t, err)
}

func TestStarterRules(t *testing.T) {
	yamlText := StarterRules("rules.yaml", payload.FormatJSON, payload.FormatXML)
	assert.Contains(t, yamlText, "outputFormat: xml")

	jsonText := StarterRules("rules.json", payload.FormatQuery, payload.FormatJSON)
	assert.True(t, json.Valid([]byte(jsonText)))
	assert.Equal(t,
		reshape.ComputeRulesCacheKey(StarterRules("a.json", payload.FormatJSON, payload.FormatJSON)),
		reshape.ComputeRulesCacheKey(StarterRules("a.yaml", payload.FormatJSON, payload.FormatJSON)),
		"both starter styles describe the same document")
}

func TestCompletionCommand(t *testing.T) {
	out, _, err := runCLI(t, t.TempDir(), "", "completion", "bash")
	require.NoError(t, err)
	assert.Contains(t, out, "reshape")

	_, _, err = runCLI(t, t.TempDir(), "", "completion", "tcsh")
	assert.Error(t, err)
}

func TestConfigFileIsHonored(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "rules.json", personRules)
	writeFile(t, dir, "reshape.yml", "format:\n  pretty: false\n")

	out, _, err := runCLI(t, dir, `{"name":"Ada"}`, "convert", "rules.json")
	require.NoError(t, err)
	assert.Equal(t, "{\"person\":{\"name\":\"Ada\"}}\n", out)

	writeFile(t, dir, "broken.yml", "collision_policy: newest\n")
	_, _, err = runCLI(t, dir, `{}`, "--config", "broken.yml", "convert", "rules.json")
	assert.Error(t, err)
}
