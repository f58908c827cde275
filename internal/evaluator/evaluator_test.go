package evaluator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/reshape/internal/diagnostics"
	"github.com/conduit-lang/reshape/internal/normalize"
	"github.com/conduit-lang/reshape/internal/payload"
	"github.com/conduit-lang/reshape/internal/rules"
	"github.com/conduit-lang/reshape/internal/transform"
)

func compile(t *testing.T, doc string) *Evaluator {
	t.Helper()
	res := normalize.Normalize(doc)
	require.True(t, res.Valid(), res.Errors())
	return New(res.Rules)
}

func decode(t *testing.T, text string) any {
	t.Helper()
	v, err := payload.DecodeJSON([]byte(text))
	require.NoError(t, err)
	return v
}

func TestApply_FieldToNestedPath(t *testing.T) {
	e := compile(t, `{"rules":[{"kind":"field","outputPaths":["user.name"],"source":{"type":"path","path":"name"}}]}`)
	res := e.Apply(decode(t, `{"name":"Ada"}`), Options{})

	assert.Equal(t, map[string]any{"user": map[string]any{"name": "Ada"}}, res.Output)
	assert.Equal(t, []string{}, res.Errors)
	assert.Equal(t, []string{}, res.Warnings)
	assert.Equal(t, []TraceEntry{}, res.Trace)
}

func TestApply_GradeThresholds(t *testing.T) {
	e := compile(t, `{"rules":[{
		"if": "path(score) >= 90", "then": [{"const": "A", "to": "grade"}],
		"elseIf": [
			{"if": "path(score) >= 80", "then": [{"const": "B", "to": "grade"}]},
			{"if": "path(score) >= 70", "then": [{"const": "C", "to": "grade"}]}
		],
		"else": [{"const": "F", "to": "grade"}]
	}]}`)

	tests := []struct {
		score float64
		want  string
	}{
		{95, "A"}, {85, "B"}, {72, "C"}, {12, "F"},
	}
	for _, tt := range tests {
		res := e.Apply(map[string]any{"score": tt.score}, Options{})
		assert.Equal(t, tt.want, res.Output["grade"], "score %v", tt.score)
	}
}

func TestApply_DefaultValue(t *testing.T) {
	e := compile(t, `{"rules":[
		{"from": "zero", "to": "zero", "default": 9},
		{"from": "no", "to": "no", "default": true},
		{"from": "nil", "to": "nil", "default": "d"},
		{"from": "blank", "to": "blank", "default": "d"},
		{"from": "missing", "to": "missing", "default": "d"},
		{"from": "missing", "to": "absent"},
		{"from": "nil", "to": "null"}
	]}`)
	res := e.Apply(decode(t, `{"zero":0,"no":false,"nil":null,"blank":""}`), Options{Trace: true})

	assert.Equal(t, map[string]any{
		"zero":    float64(0),
		"no":      false,
		"nil":     "d",
		"blank":   "d",
		"missing": "d",
		"null":    nil,
	}, res.Output)

	decisions := make([]string, len(res.Trace))
	for i, entry := range res.Trace {
		decisions[i] = entry.Decision
	}
	assert.Equal(t, []string{"written", "written", "defaulted", "defaulted", "defaulted", "skipped", "written"}, decisions)
}

func TestApply_ArrayMissingInput(t *testing.T) {
	e := compile(t, `{"rules":[{"inputPath":"items","to":"lines","itemRules":[{"from":"sku","to":"id"}]}]}`)
	res := e.Apply(decode(t, `{"name":"Ada"}`), Options{})

	assert.Equal(t, []string{`Array mapping skipped: inputPath "items" not found (rules[0])`}, res.Warnings)
	assert.Empty(t, res.Errors)
	assert.NotContains(t, res.Output, "lines")
	assert.Equal(t, diagnostics.WarnArrayInputMissing, res.Diagnostics[0].Code)
}

func TestApply_ArrayNotArray(t *testing.T) {
	e := compile(t, `{"rules":[
		{"inputPath":"items","to":"strict","itemRules":[{"from":"sku","to":"id"}]},
		{"inputPath":"items","to":"loose","coerceSingle":true,"itemRules":[{"from":"sku","to":"id"}]}
	]}`)
	res := e.Apply(decode(t, `{"items":{"sku":"A1"}}`), Options{})

	assert.Equal(t, []string{`Array mapping failed: inputPath "items" is not an array (rules[0])`}, res.Errors)
	assert.NotContains(t, res.Output, "strict")
	assert.Equal(t, []any{map[string]any{"id": "A1"}}, res.Output["loose"])
}

func TestApply_ArrayItemScope(t *testing.T) {
	e := compile(t, `{"rules":[{
		"inputPath": "order.items",
		"to": "lines",
		"itemRules": [
			{"from": "sku", "to": "sku"},
			{"from": "currency", "to": "currency"},
			{"from": "$.sku", "to": "rootSku"},
			{"if": "path(qty) > 1", "then": [{"const": true, "to": "bulk"}]}
		]
	}]}`)
	res := e.Apply(decode(t, `{"sku":"ROOT","currency":"EUR","order":{"items":[{"sku":"A","qty":2},{"sku":"B","qty":1}]}}`), Options{})

	require.Empty(t, res.Errors)
	assert.Equal(t, []any{
		map[string]any{"sku": "A", "currency": "EUR", "rootSku": "ROOT", "bulk": true},
		map[string]any{"sku": "B", "currency": "EUR", "rootSku": "ROOT"},
	}, res.Output["lines"])
}

func TestApply_CollisionPolicies(t *testing.T) {
	e := compile(t, `{"rules":[
		{"const": "first", "to": "name"},
		{"const": "second", "to": "name"},
		{"const": "third", "to": "name"}
	]}`)

	res := e.Apply(map[string]any{}, Options{CollisionPolicy: ErrorOnCollision})
	assert.Equal(t, map[string]any{"name": "first"}, res.Output)
	assert.Equal(t, []string{
		`Output path "name" already written by rules[0]; ignoring value from rules[1]`,
		`Output path "name" already written by rules[0]; ignoring value from rules[2]`,
	}, res.Errors)
	assert.Equal(t, []diagnostics.Code{diagnostics.ErrOutputCollision, diagnostics.ErrOutputCollision}, res.Diagnostics.Codes())

	res = e.Apply(map[string]any{}, Options{CollisionPolicy: FirstWriteWins})
	assert.Equal(t, map[string]any{"name": "first"}, res.Output)
	assert.Empty(t, res.Errors)

	res = e.Apply(map[string]any{}, Options{})
	assert.Equal(t, map[string]any{"name": "third"}, res.Output)
	assert.Empty(t, res.Errors)
}

func TestApply_PolicyIrrelevantWithoutCollisions(t *testing.T) {
	e := compile(t, `{"rules":[
		{"from": "a", "to": "x.a"},
		{"from": "b", "to": "x.b"},
		{"from": "items", "to": "list", "rules": [{"from": "v", "to": "v"}]},
		{"const": 1, "to": "tags[]"},
		{"const": 2, "to": "tags[]"}
	]}`)
	input := decode(t, `{"a":1,"b":2,"items":[{"v":1},{"v":2}]}`)

	base := e.Apply(input, Options{CollisionPolicy: LastWriteWins})
	for _, policy := range []CollisionPolicy{FirstWriteWins, ErrorOnCollision} {
		res := e.Apply(input, Options{CollisionPolicy: policy})
		assert.Equal(t, base.Output, res.Output, string(policy))
		assert.Empty(t, res.Errors, string(policy))
	}
	assert.Equal(t, []any{float64(1), float64(2)}, base.Output["tags"])
}

func TestApply_MalformedBranchTakesElse(t *testing.T) {
	e := compile(t, `{"rules":[{"if":"path(a) is 'x'","then":[{"const":1,"to":"r"}],"else":[{"const":2,"to":"r"}]}]}`)
	res := e.Apply(map[string]any{"a": "x"}, Options{Trace: true})

	assert.Equal(t, map[string]any{"r": float64(2)}, res.Output)
	assert.Equal(t, []string{"Branch expression failed (rules[0]): Unknown operator 'is'. Did you mean 'eq' or '=='?"}, res.Errors)
	assert.Equal(t, diagnostics.ErrExpressionFailed, res.Diagnostics[0].Code)
	assert.Equal(t, "error", res.Trace[0].Decision)
	assert.Equal(t, "rules[0].else[0]", res.Trace[1].RulePath)
}

func TestApply_CustomTransforms(t *testing.T) {
	e := compile(t, `{"rules":[
		{"to":"slug","source":{"type":"transform","customTransform":"slug","path":"title"}},
		{"to":"boom","source":{"type":"transform","customTransform":"boom","path":"title"}},
		{"to":"panics","source":{"type":"transform","customTransform":"panics","path":"title"}},
		{"to":"absent","source":{"type":"transform","customTransform":"absent","path":"title"}}
	]}`)

	table := transform.Table{
		"slug": func(v any, ctx transform.Context) (any, error) {
			return v.(string) + "-" + ctx.RulePath, nil
		},
		"boom":   func(any, transform.Context) (any, error) { return nil, errors.New("boom") },
		"panics": func(any, transform.Context) (any, error) { panic("kaput") },
	}
	res := e.Apply(map[string]any{"title": "hello"}, Options{CustomTransforms: table})

	assert.Equal(t, map[string]any{
		"slug":   "hello-rules[0]",
		"boom":   nil,
		"panics": nil,
		"absent": nil,
	}, res.Output)
	assert.Equal(t, []diagnostics.Code{
		diagnostics.ErrCustomTransformFailed,
		diagnostics.ErrCustomTransformFailed,
		diagnostics.ErrCustomTransformMissing,
	}, res.Diagnostics.Codes())
	assert.Equal(t, `Custom transform "boom" failed (rules[1]): boom`, res.Errors[0])
	assert.Equal(t, `Custom transform "panics" failed (rules[2]): panic: kaput`, res.Errors[1])
	assert.Equal(t, `Custom transform "absent" is not registered (rules[3])`, res.Errors[2])
}

func TestApply_BuiltinTransforms(t *testing.T) {
	e := compile(t, `{"rules":[
		{"from":"name","to":"upper","transform":"toUpperCase"},
		{"from":"age","to":"age","transform":"number"},
		{"from":"vip","to":"vip","transform":"boolean"},
		{"to":"full","source":{"type":"transform","transform":"concat","path":"first,const: ,last"}},
		{"to":"domain","source":{"type":"transform","transform":"split","path":"email","options":{"separator":"@","index":-1}}},
		{"from":"missing","to":"gone","transform":"toLowerCase"}
	]}`)
	res := e.Apply(decode(t, `{"name":"ada","age":"36","vip":"yes","first":"Ada","last":"Lovelace","email":"ada@example.com"}`), Options{})

	assert.Equal(t, map[string]any{
		"upper":  "ADA",
		"age":    float64(36),
		"vip":    true,
		"full":   "Ada Lovelace",
		"domain": "example.com",
	}, res.Output)
}

func TestApply_ConditionAndMergeSources(t *testing.T) {
	e := compile(t, `{"rules":[
		{"to":"tier","source":{"type":"condition","expression":"path(spend) > 1000","trueValue":"gold","elseIf":[{"expression":"path(spend) > 100","value":"silver"}],"falseValue":"bronze"}},
		{"to":"isBig","source":{"type":"condition","expression":"path(spend) > 1000","conditionOutput":"boolean"}},
		{"to":"broken","source":{"type":"condition","expression":"path(spend) = 1","trueValue":1,"falseValue":0}},
		{"to":"contact","source":{"type":"merge","paths":["email","phone"]}},
		{"to":"all","source":{"type":"merge","paths":["email","phone","fax"],"mergeMode":"array"}},
		{"to":"joined","source":{"type":"merge","paths":["first","last"],"mergeMode":"concat"}},
		{"to":"none","source":{"type":"merge","paths":["fax"]}}
	]}`)
	res := e.Apply(decode(t, `{"spend":500,"email":"","phone":"555","first":"Ada","last":"L"}`), Options{})

	assert.Equal(t, map[string]any{
		"tier":    "silver",
		"isBig":   false,
		"broken":  float64(0),
		"contact": "555",
		"all":     []any{"", "555"},
		"joined":  "Ada L",
	}, res.Output)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "Condition expression failed (rules[2]): Unknown operator '='. Did you mean 'eq' or '=='?", res.Errors[0])
}

func TestApply_FragmentsAndTrace(t *testing.T) {
	e := compile(t, `{
		"fragments": {"person": [{"from": "name", "to": "person.name"}]},
		"rules": [
			{"use": "person"},
			{"inputPath": "kids", "to": "kids", "itemRules": [{"use": "person"}]},
			{"if": "false", "then": [{"const": 1, "to": "x"}]}
		]
	}`)
	res := e.Apply(decode(t, `{"name":"Ada","kids":[{"name":"Byron"}]}`), Options{Trace: true})

	assert.Equal(t, map[string]any{
		"person": map[string]any{"name": "Ada"},
		"kids":   []any{map[string]any{"person": map[string]any{"name": "Byron"}}},
	}, res.Output)
	assert.Equal(t, []TraceEntry{
		{RulePath: "rules[0]", RuleKind: "use", Decision: "expanded"},
		{RulePath: "rules[0].use[0]", RuleKind: "field", Decision: "written", OutputPaths: []string{"person.name"}},
		{RulePath: "rules[1]", RuleKind: "array", Decision: "mapped", OutputPaths: []string{"kids"}},
		{RulePath: "rules[1].itemRules[0]", RuleKind: "use", Decision: "expanded"},
		{RulePath: "rules[1].itemRules[0].use[0]", RuleKind: "field", Decision: "written", OutputPaths: []string{"person.name"}},
		{RulePath: "rules[2]", RuleKind: "branch", Decision: "none"},
	}, res.Trace)
}

func TestApply_AuthoredRulePaths(t *testing.T) {
	tests := []struct {
		name     string
		doc      string
		warning  string
		rulePath []string
	}{
		{
			name:     "after dropped rule",
			doc:      `{"rules":[{"kind":"weird"},{"kind":"array","inputPath":"items","outputPaths":["out"],"itemRules":[{"from":"v","to":"v"}]}]}`,
			warning:  `Array mapping skipped: inputPath "items" not found (rules[1])`,
			rulePath: []string{"rules[1]"},
		},
		{
			name:     "after map expansion",
			doc:      `{"rules":[{"map":[{"from":"name","to":"a"},{"from":"name","to":"b"}]},{"kind":"array","inputPath":"items","outputPaths":["out"],"itemRules":[{"from":"v","to":"v"}]}]}`,
			warning:  `Array mapping skipped: inputPath "items" not found (rules[1])`,
			rulePath: []string{"rules[0].map[0]", "rules[0].map[1]", "rules[1]"},
		},
		{
			name:     "inside branch",
			doc:      `{"rules":[{"if":"true","then":[5,{"kind":"array","inputPath":"items","outputPaths":["out"],"itemRules":[]}]}]}`,
			warning:  `Array mapping skipped: inputPath "items" not found (rules[0].then[1])`,
			rulePath: []string{"rules[0]", "rules[0].then[1]"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := New(normalize.Normalize(tt.doc).Rules).Apply(decode(t, `{"name":"Ada"}`), Options{Trace: true})
			assert.Equal(t, []string{tt.warning}, res.Warnings)

			var paths []string
			for _, entry := range res.Trace {
				paths = append(paths, entry.RulePath)
			}
			assert.Equal(t, tt.rulePath, paths)
		})
	}
}

func TestApply_OutputIndexLimit(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{"bracket index", "a[2000000000000]"},
		{"numeric key into array", "list.2000000000000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New(&rules.ConversionRules{Rules: []rules.Rule{
				&rules.FieldRule{OutputPaths: []string{"list[]"}, Source: &rules.ConstantSource{Value: "x"}},
				&rules.FieldRule{OutputPaths: []string{tt.path}, Source: &rules.ConstantSource{Value: float64(1)}},
			}})
			res := e.Apply(map[string]any{}, Options{})

			require.Len(t, res.Diagnostics, 1)
			assert.Equal(t, diagnostics.ErrWriteFailed, res.Diagnostics[0].Code)
			assert.Equal(t, "rules[1]", res.Diagnostics[0].RulePath)
			assert.Contains(t, res.Errors[0], "exceeds limit 65535")
			assert.Equal(t, map[string]any{"list": []any{"x"}}, res.Output)
		})
	}
}

func TestApply_RecursionLimit(t *testing.T) {
	var nested rules.Rule = &rules.FieldRule{
		OutputPaths: []string{"deep"},
		Source:      &rules.ConstantSource{Value: "bottom"},
	}
	for i := 0; i < MaxDepth+5; i++ {
		nested = &rules.BranchRule{Expression: "true", Then: []rules.Rule{nested}}
	}
	e := New(&rules.ConversionRules{
		Rules: []rules.Rule{
			nested,
			&rules.FieldRule{OutputPaths: []string{"sibling"}, Source: &rules.ConstantSource{Value: "ok"}},
		},
	})

	res := e.Apply(map[string]any{}, Options{Trace: true})
	assert.Equal(t, map[string]any{"sibling": "ok"}, res.Output)
	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, diagnostics.ErrRecursionLimit, res.Diagnostics[0].Code)
	assert.Contains(t, res.Errors[0], "Recursion limit of 32 exceeded at rules[0].then[0]")

	var exceeded int
	for _, entry := range res.Trace {
		if entry.Decision == DecisionDepthExceeded {
			exceeded++
		}
	}
	assert.Equal(t, 1, exceeded)
}

func TestApply_DoesNotMutateInputOrRules(t *testing.T) {
	e := compile(t, `{"rules":[{"from":"tags","to":"tags"},{"const":{"k":"v"},"to":"obj"}]}`)
	input := decode(t, `{"tags":["a"]}`)

	first := e.Apply(input, Options{})
	first.Output["tags"].([]any)[0] = "changed"
	first.Output["obj"].(map[string]any)["k"] = "changed"

	second := e.Apply(input, Options{})
	assert.Equal(t, []any{"a"}, second.Output["tags"])
	assert.Equal(t, map[string]any{"k": "v"}, second.Output["obj"])
	assert.Equal(t, []any{"a"}, input.(map[string]any)["tags"])
}

func TestParseCollisionPolicy(t *testing.T) {
	p, err := ParseCollisionPolicy("")
	require.NoError(t, err)
	assert.Equal(t, LastWriteWins, p)

	p, err = ParseCollisionPolicy("error")
	require.NoError(t, err)
	assert.Equal(t, ErrorOnCollision, p)

	_, err = ParseCollisionPolicy("random")
	assert.Error(t, err)
}
