package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/reshape/internal/diagnostics"
	"github.com/conduit-lang/reshape/internal/payload"
	"github.com/conduit-lang/reshape/internal/rules"
)

func TestNormalize_Shorthands(t *testing.T) {
	res := Normalize(`{
		"rules": [
			{"from": "name", "as": "n"},
			{"const": 5, "target": ["a", "b"], "default": 1},
			{"from": "name", "to": "upper", "transform": "toUpperCase"},
			{"from": "items", "to": "out", "rules": [{"from": "sku", "to": "id"}]},
			{"when": "path(x) == 1", "then": [{"const": "one", "to": "x"}], "elif": [{"if": "path(x) == 2", "then": []}], "otherwise": []},
			{"to": "m", "source": {"type": "merge", "paths": ["a", "b"], "mode": "concat"}},
			{"to": "c", "source": {"type": "const", "value": true}}
		]
	}`)
	require.True(t, res.Valid(), res.Errors())
	rs := res.Rules.Rules
	require.Len(t, rs, 7)

	assert.Equal(t, &rules.FieldRule{
		OutputPaths: []string{"n"},
		Source:      &rules.PathSource{Path: "name"},
	}, rs[0])

	assert.Equal(t, &rules.FieldRule{
		OutputPaths:  []string{"a", "b"},
		Source:       &rules.ConstantSource{Value: float64(5)},
		DefaultValue: float64(1),
		HasDefault:   true,
	}, rs[1])

	assert.Equal(t, &rules.TransformSource{
		Path:      "name",
		Transform: "toUpperCase",
		Options:   map[string]any{},
	}, rs[2].(*rules.FieldRule).Source)

	arr, ok := rs[3].(*rules.ArrayRule)
	require.True(t, ok)
	assert.Equal(t, "items", arr.InputPath)
	assert.Equal(t, []string{"out"}, arr.OutputPaths)
	require.Len(t, arr.ItemRules, 1)

	br, ok := rs[4].(*rules.BranchRule)
	require.True(t, ok)
	assert.Equal(t, "path(x) == 1", br.Expression)
	require.Len(t, br.ElseIf, 1)
	assert.Equal(t, "path(x) == 2", br.ElseIf[0].Expression)
	assert.Empty(t, br.Else)

	assert.Equal(t, &rules.MergeSource{
		Paths:     []string{"a", "b"},
		Mode:      rules.MergeConcat,
		Separator: " ",
	}, rs[5].(*rules.FieldRule).Source)

	assert.Equal(t, &rules.ConstantSource{Value: true}, rs[6].(*rules.FieldRule).Source)
	assert.Equal(t, payload.FormatJSON, res.Rules.InputFormat)
	assert.Equal(t, payload.FormatJSON, res.Rules.OutputFormat)
}

func TestNormalize_MapExpansion(t *testing.T) {
	res := Normalize(map[string]any{
		"rules": []any{
			map[string]any{"map": map[string]any{"b": "y", "a": "x"}},
			map[string]any{"map": []any{map[string]any{"from": "c", "to": []any{"z1", "z2"}}}},
		},
	})
	require.True(t, res.Valid(), res.Errors())
	require.Len(t, res.Rules.Rules, 3)

	var got []string
	for _, r := range res.Rules.Rules {
		f := r.(*rules.FieldRule)
		got = append(got, f.Source.(*rules.PathSource).Path+"->"+f.OutputPaths[0])
	}
	assert.Equal(t, []string{"a->x", "b->y", "c->z1"}, got)
	assert.Equal(t, []string{"z1", "z2"}, res.Rules.Rules[2].(*rules.FieldRule).OutputPaths)
}

func TestNormalize_AuthoredAddresses(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want []string
	}{
		{"in place", `{"rules":[{"from":"a","to":"x"},{"from":"b","to":"y"}]}`, []string{"rules[0]", "rules[1]"}},
		{"after dropped rule", `{"rules":[{"kind":"weird"},{"from":"a","to":"x"}]}`, []string{"rules[1]"}},
		{"map entries", `{"rules":[{"map":[{"from":"a","to":"x"},{"from":"b","to":"y"}]},{"from":"c","to":"z"}]}`, []string{"rules[0].map[0]", "rules[0].map[1]", "rules[1]"}},
		{"nested list", `{"rules":[{"from":"items","to":"out","rules":[5,{"from":"v","to":"v"}]}]}`, []string{"rules[0]", "rules[0].itemRules[1]"}},
		{"fragment", `{"fragments":{"f":[{"kind":"weird"},{"from":"a","to":"x"}]},"rules":[{"use":"f"}]}`, []string{"rules[0]"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Normalize(tt.doc)
			var got []string
			rules.Walk(res.Rules.Rules, rules.TopLevel, func(p string, _ rules.Rule) {
				got = append(got, p)
			})
			assert.Equal(t, tt.want, got)
		})
	}

	res := Normalize(`{"fragments":{"f":[{"kind":"weird"},{"from":"a","to":"x"}]},"rules":[{"use":"f"}]}`)
	assert.Equal(t, "fragments.f[1];", rules.Layout(res.Rules))
}

func TestNormalize_ValidationMessages(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
		code diagnostics.Code
	}{
		{"not an object", `{"rules":[5]}`, "rules[0]: rule must be an object", diagnostics.ErrInvalidRule},
		{"unsupported kind", `{"rules":[{"kind":"weird"}]}`, `rules[0]: unsupported rule kind "weird"`, diagnostics.ErrUnsupportedKind},
		{"no output paths", `{"rules":[{"kind":"field","source":{"type":"path","path":"a"}}]}`, "rules[0]: outputPaths must contain at least one non-empty path", diagnostics.ErrInvalidRule},
		{"empty output path", `{"rules":[{"to":["", " "],"from":"a"}]}`, "rules[0]: outputPaths must contain at least one non-empty path", diagnostics.ErrInvalidRule},
		{"missing source", `{"rules":[{"to":"a"}]}`, `rules[0]: missing source (expected "source", "from" or "const")`, diagnostics.ErrInvalidRule},
		{"unsupported source", `{"rules":[{"to":"a","source":{"type":"bogus"}}]}`, `rules[0].source: unsupported source type "bogus"`, diagnostics.ErrUnsupportedSource},
		{"unsupported transform", `{"rules":[{"to":"a","from":"b","transform":"reverse"}]}`, `rules[0].source: unsupported transform "reverse"`, diagnostics.ErrUnsupportedTransform},
		{"unsupported merge mode", `{"rules":[{"to":"a","source":{"type":"merge","paths":["x"],"mergeMode":"zip"}}]}`, `rules[0].source: unsupported merge mode "zip"`, diagnostics.ErrUnsupportedMergeMode},
		{"empty path", `{"rules":[{"to":"a","source":{"type":"path","path":""}}]}`, "rules[0].source: path must be a non-empty string", diagnostics.ErrInvalidRule},
		{"merge without paths", `{"rules":[{"to":"a","source":{"type":"merge","paths":[]}}]}`, "rules[0].source: merge requires at least one path", diagnostics.ErrInvalidRule},
		{"condition without expression", `{"rules":[{"to":"a","source":{"type":"condition","trueValue":1}}]}`, "rules[0].source: condition requires an expression", diagnostics.ErrInvalidRule},
		{"bad condition output", `{"rules":[{"to":"a","source":{"type":"condition","expression":"true","conditionOutput":"text"}}]}`, `rules[0].source: unsupported conditionOutput "text"`, diagnostics.ErrInvalidRule},
		{"array without input", `{"rules":[{"kind":"array","to":"x"}]}`, "rules[0]: array rule requires an inputPath", diagnostics.ErrInvalidRule},
		{"item rules not array", `{"rules":[{"inputPath":"items","to":"x","itemRules":5}]}`, "rules[0].itemRules: itemRules must be an array", diagnostics.ErrInvalidRule},
		{"branch without expression", `{"rules":[{"kind":"branch","then":[]}]}`, "rules[0]: branch rule requires an expression", diagnostics.ErrInvalidRule},
		{"then not array", `{"rules":[{"if":"true","then":5}]}`, "rules[0].then: then must be an array", diagnostics.ErrInvalidRule},
		{"else not array", `{"rules":[{"if":"true","else":"x"}]}`, "rules[0].else: else must be an array", diagnostics.ErrInvalidRule},
		{"elseIf not array", `{"rules":[{"if":"true","then":[],"elseIf":{}}]}`, "rules[0].elseIf: elseIf must be an array", diagnostics.ErrInvalidRule},
		{"output path index too large", `{"rules":[{"kind":"field","outputPaths":["a[2000000000000]"],"source":{"type":"constant","value":1}}]}`, `rules[0]: invalid output path "a[2000000000000]": index 2000000000000 exceeds limit 65535`, diagnostics.ErrInvalidRule},
		{"bad map", `{"rules":[{"map":5}]}`, "rules[0]: map entries must be an array or object", diagnostics.ErrInvalidRule},
		{"unknown fragment", `{"rules":[{"use":"nope"}]}`, `rules[0]: unknown fragment "nope"`, diagnostics.ErrUnknownFragment},
		{"legacy property", `{"fieldMappings":[]}`, `legacy property "fieldMappings" is not supported; use "rules"`, diagnostics.ErrLegacyProperty},
		{"rules not array", `{"rules":{}}`, "rules must be an array", diagnostics.ErrInvalidDocument},
		{"fragments not object", `{"fragments":[]}`, "fragments must be an object", diagnostics.ErrInvalidDocument},
		{"bad input format", `{"inputFormat":"csv"}`, `unsupported inputFormat "csv"`, diagnostics.ErrUnsupportedFormat},
		{"bad output format", `{"outputFormat":"csv"}`, `unsupported outputFormat "csv"`, diagnostics.ErrUnsupportedFormat},
		{"top level array", `[]`, "invalid rules document: top-level value must be an object, got array", diagnostics.ErrInvalidDocument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Normalize(tt.doc)
			require.Len(t, res.Diagnostics, 1, res.Errors())
			assert.Equal(t, []string{tt.want}, res.Errors())
			assert.Equal(t, tt.code, res.Diagnostics[0].Code)
			assert.Equal(t, diagnostics.StageValidate, res.Diagnostics[0].Stage)
			assert.NotEmpty(t, res.Diagnostics[0].Suggestion)
		})
	}
}

func TestNormalize_InvalidRulesAreDropped(t *testing.T) {
	res := Normalize(`{"rules":[{"kind":"weird"},{"from":"a","to":"b"}],"outputFormat":"csv"}`)
	assert.Len(t, res.Errors(), 2)
	require.Len(t, res.Rules.Rules, 1)
	assert.Equal(t, payload.FormatJSON, res.Rules.OutputFormat)
}

func TestNormalize_UndecodableText(t *testing.T) {
	res := Normalize("{")
	require.Len(t, res.Errors(), 1)
	assert.Contains(t, res.Errors()[0], "invalid rules document: ")
	assert.Empty(t, res.Rules.Rules)
}

func TestNormalize_FragmentCycle(t *testing.T) {
	res := Normalize(`{
		"fragments": {
			"a": [{"use": "b"}],
			"b": [{"if": "true", "then": [{"use": "a"}]}],
			"c": [{"use": "a"}],
			"self": [{"use": "self"}]
		},
		"rules": [{"use": "c"}]
	}`)

	assert.Equal(t, []string{
		`fragments.a: fragment "a" introduces a cycle (a -> b -> a)`,
		`fragments.b: fragment "b" introduces a cycle (b -> a -> b)`,
		`fragments.self: fragment "self" introduces a cycle (self -> self)`,
	}, res.Errors())
	assert.Empty(t, res.Rules.Fragments["a"])
	assert.Empty(t, res.Rules.Fragments["b"])
	assert.Empty(t, res.Rules.Fragments["self"])
	assert.Len(t, res.Rules.Fragments["c"], 1)
	assert.Len(t, res.Rules.Rules, 1)
}

func TestNormalize_YAML(t *testing.T) {
	res := Normalize(`
schemaVersion: 1.1.0
outputFormat: xml
rules:
  - from: name
    to: user.name
  - from: age
    to: user.age
    transform: number
    default: 0
`)
	require.True(t, res.Valid(), res.Errors())
	assert.Equal(t, "1.1.0", res.Rules.SchemaVersion)
	assert.Equal(t, payload.FormatXML, res.Rules.OutputFormat)
	require.Len(t, res.Rules.Rules, 2)
	assert.Equal(t, float64(0), res.Rules.Rules[1].(*rules.FieldRule).DefaultValue)
}

func TestNormalize_Idempotent(t *testing.T) {
	docs := []string{
		`{"rules":[{"from":"name","as":"n"}]}`,
		`{
			"schemaVersion": "1.0.0",
			"inputFormat": "query",
			"outputFormat": "xml",
			"fragments": {"addr": [{"from": "city", "to": "address.city", "default": "?"}]},
			"rules": [
				{"map": {"a": "x"}},
				{"from": "items", "to": "out", "coerceSingle": true, "rules": [{"use": "addr"}]},
				{"if": "path(score) >= 90", "then": [{"const": "A", "to": "grade"}], "elif": [{"if": "path(score) >= 80", "then": [{"const": "B", "to": "grade"}]}], "else": [{"const": "F", "to": "grade"}]},
				{"to": "label", "source": {"type": "condition", "expression": "exists(vip)", "trueValue": "VIP", "falseValue": null, "elseIf": [{"expression": "path(a) == 1", "value": 1}]}},
				{"to": "full", "source": {"type": "transform", "transform": "concat", "path": "first,last", "options": {"separator": " "}}},
				{"to": "custom", "source": {"type": "transform", "customTransform": "slug", "path": "title"}},
				{"to": "m", "source": {"type": "merge", "paths": ["a", "b"], "mergeMode": "array"}}
			]
		}`,
	}

	for _, doc := range docs {
		first := Normalize(doc)
		require.True(t, first.Valid(), first.Errors())
		second := Normalize(first.Rules)
		require.True(t, second.Valid(), second.Errors())

		assert.Equal(t, first.Rules.ToValue(), second.Rules.ToValue())
		assert.Equal(t, first.Rules.CanonicalText(true), second.Rules.CanonicalText(true))

		third := Normalize(first.Rules.CanonicalText(false))
		assert.Equal(t, first.Rules.ToValue(), third.Rules.ToValue())
		assert.Equal(t, second.Rules, third.Rules)
	}
}

func TestStrict(t *testing.T) {
	r, err := Strict(`{"rules":[{"kind":"weird"},{"to":"a"},{"from":"a","to":"b"}]}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unsupported rule kind "weird"`)
	assert.Contains(t, err.Error(), "missing source")
	require.NotNil(t, r)
	assert.Len(t, r.Rules, 1)

	_, err = Strict(`{"rules":[{"from":"a","to":"b"}]}`)
	assert.NoError(t, err)
}
