// Package normalize turns loosely-authored rule documents into the canonical
// rule model. Normalization never fails: every problem becomes a validation
// diagnostic, the offending rule is dropped, and the rest of the document is
// still usable.
package normalize

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/conduit-lang/reshape/internal/diagnostics"
	"github.com/conduit-lang/reshape/internal/payload"
	"github.com/conduit-lang/reshape/internal/rules"
	"github.com/conduit-lang/reshape/internal/transform"
	"github.com/conduit-lang/reshape/internal/valuepath"
)

// Result is the outcome of normalizing a document
type Result struct {
	Rules       *rules.ConversionRules
	Diagnostics diagnostics.List
}

// Errors returns the validation messages in emission order
func (r *Result) Errors() []string {
	return r.Diagnostics.Messages(diagnostics.SeverityError)
}

// Valid reports whether normalization produced no errors
func (r *Result) Valid() bool {
	return !r.Diagnostics.HasErrors()
}

// Err aggregates every validation error, or returns nil
func (r *Result) Err() error {
	var err error
	for _, d := range r.Diagnostics {
		if d.Severity == diagnostics.SeverityError {
			err = multierr.Append(err, d)
		}
	}
	return err
}

// Normalize accepts raw JSON or YAML text (string or []byte), a decoded
// document (map[string]any), or an already-normalized *rules.ConversionRules.
func Normalize(raw any) *Result {
	n := &normalizer{}
	doc, ok := n.decode(raw)
	if !ok {
		return &Result{Rules: empty(), Diagnostics: n.diags}
	}
	return &Result{Rules: n.document(doc), Diagnostics: n.diags}
}

// Strict normalizes and returns every validation problem as one aggregated
// error. The rules are returned either way.
func Strict(raw any) (*rules.ConversionRules, error) {
	res := Normalize(raw)
	if err := res.Err(); err != nil {
		return res.Rules, fmt.Errorf("invalid conversion rules: %w", err)
	}
	return res.Rules, nil
}

// DecodeDocument decodes raw rule text into a generic document. Text that
// starts with '{' or '[' is JSON; anything else is read as YAML.
func DecodeDocument(data []byte) (any, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		return payload.DecodeJSON(trimmed)
	}
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty document")
	}
	var v any
	if err := yaml.Unmarshal(trimmed, &v); err != nil {
		return nil, err
	}
	return payload.Canonicalize(v), nil
}

func empty() *rules.ConversionRules {
	return &rules.ConversionRules{
		InputFormat:  payload.FormatJSON,
		OutputFormat: payload.FormatJSON,
		Fragments:    map[string][]rules.Rule{},
		Rules:        []rules.Rule{},
	}
}

type normalizer struct {
	diags     diagnostics.List
	fragments map[string]bool
}

func (n *normalizer) fail(code diagnostics.Code, rulePath, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if rulePath != "" {
		msg = rulePath + ": " + msg
	}
	n.diags = append(n.diags, diagnostics.NewValidation(code, rulePath, msg))
}

func (n *normalizer) decode(raw any) (map[string]any, bool) {
	var v any
	switch t := raw.(type) {
	case *rules.ConversionRules:
		if t == nil {
			break
		}
		v = t.ToValue()
	case rules.ConversionRules:
		v = t.ToValue()
	case string:
		decoded, err := DecodeDocument([]byte(t))
		if err != nil {
			n.fail(diagnostics.ErrInvalidDocument, "", "invalid rules document: %v", err)
			return nil, false
		}
		v = decoded
	case []byte:
		decoded, err := DecodeDocument(t)
		if err != nil {
			n.fail(diagnostics.ErrInvalidDocument, "", "invalid rules document: %v", err)
			return nil, false
		}
		v = decoded
	default:
		v = payload.Canonicalize(raw)
	}

	doc, ok := v.(map[string]any)
	if !ok {
		n.fail(diagnostics.ErrInvalidDocument, "", "invalid rules document: top-level value must be an object, got %s", payload.TypeName(v))
		return nil, false
	}
	return doc, true
}

func (n *normalizer) document(doc map[string]any) *rules.ConversionRules {
	out := empty()

	for _, prop := range legacyProperties {
		if _, ok := doc[prop]; ok {
			n.fail(diagnostics.ErrLegacyProperty, "", "legacy property %q is not supported; use \"rules\"", prop)
		}
	}

	if v, ok := doc["schemaVersion"]; ok && v != nil {
		out.SchemaVersion = payload.Stringify(v)
	}
	out.InputFormat = n.format(doc, "inputFormat")
	out.OutputFormat = n.format(doc, "outputFormat")

	rawFragments := map[string]any{}
	if v, ok := doc["fragments"]; ok && v != nil {
		if m, isMap := v.(map[string]any); isMap {
			rawFragments = m
		} else {
			n.fail(diagnostics.ErrInvalidDocument, "", "fragments must be an object")
		}
	}
	n.fragments = make(map[string]bool, len(rawFragments))
	for name := range rawFragments {
		n.fragments[name] = true
	}

	if v, ok := doc["rules"]; ok && v != nil {
		if list, isList := v.([]any); isList {
			out.Rules = n.ruleList(list, rules.TopLevel)
		} else {
			n.fail(diagnostics.ErrInvalidDocument, "", "rules must be an array")
		}
	}

	for _, name := range payload.SortedKeys(rawFragments) {
		prefix := rules.FragmentPath(name)
		list, isList := rawFragments[name].([]any)
		if !isList {
			n.fail(diagnostics.ErrInvalidRule, prefix, "fragment body must be an array")
			out.Fragments[name] = []rules.Rule{}
			continue
		}
		out.Fragments[name] = n.ruleList(list, prefix)
	}

	n.breakCycles(out.Fragments)
	return out
}

func (n *normalizer) format(doc map[string]any, key string) payload.Format {
	v, ok := doc[key]
	if !ok || v == nil {
		return payload.FormatJSON
	}
	s := payload.Stringify(v)
	if f, valid := payload.ParseFormat(s); valid {
		return f
	}
	n.fail(diagnostics.ErrUnsupportedFormat, "", "unsupported %s %q", key, s)
	return payload.FormatJSON
}

func (n *normalizer) ruleList(list []any, prefix string) []rules.Rule {
	out := make([]rules.Rule, 0, len(list))
	for i, item := range list {
		m, _ := item.(map[string]any)
		expanded := m != nil && ruleKind(m) == rules.KindMap
		for j, r := range n.rule(item, rules.Child(prefix, i)) {
			segment := rules.Child("", i)
			if expanded {
				segment = fmt.Sprintf("%s.map[%d]", segment, j)
			}
			if segment != rules.Child("", len(out)) {
				rules.SetOrigin(r, segment)
			}
			out = append(out, r)
		}
	}
	return out
}

// rule normalizes one authored rule. Map rules expand to several field
// rules; invalid rules normalize to none.
func (n *normalizer) rule(v any, p string) []rules.Rule {
	m, ok := v.(map[string]any)
	if !ok {
		n.fail(diagnostics.ErrInvalidRule, p, "rule must be an object")
		return nil
	}

	var r rules.Rule
	switch kind := ruleKind(m); kind {
	case rules.KindField:
		r = n.field(m, p)
	case rules.KindArray:
		r = n.array(m, p)
	case rules.KindBranch:
		r = n.branch(m, p)
	case rules.KindUse:
		r = n.use(m, p)
	case rules.KindMap:
		return n.mapEntries(m, p)
	default:
		n.fail(diagnostics.ErrUnsupportedKind, p, "unsupported rule kind %q", string(kind))
		return nil
	}
	if r == nil {
		return nil
	}
	return []rules.Rule{r}
}

func ruleKind(m map[string]any) rules.Kind {
	if raw, present := m["kind"]; present {
		return rules.Kind(payload.Stringify(raw))
	}
	return inferKind(m)
}

func inferKind(m map[string]any) rules.Kind {
	switch {
	case has(m, "use"):
		return rules.KindUse
	case has(m, "map"):
		return rules.KindMap
	case has(m, "itemRules"), hasKey(m, "inputPath"):
		return rules.KindArray
	case has(m, "expression") && (has(m, "then") || has(m, "else")):
		return rules.KindBranch
	}
	return rules.KindField
}

func (n *normalizer) outputPaths(m map[string]any, p string) ([]string, bool) {
	v, _ := pick(m, "outputPaths")
	var candidates []any
	switch t := v.(type) {
	case string:
		candidates = []any{t}
	case []any:
		candidates = t
	}

	paths := make([]string, 0, len(candidates))
	for _, c := range candidates {
		s, isString := c.(string)
		s = strings.TrimSpace(s)
		if !isString || s == "" {
			continue
		}
		parsed, err := valuepath.Parse(s)
		if err == nil && (parsed.Self || len(parsed.Steps) == 0 || parsed.Steps[0].Kind != valuepath.StepKey) {
			err = fmt.Errorf("output paths must start with a key")
		}
		if err != nil {
			n.fail(diagnostics.ErrInvalidRule, p, "invalid output path %q: %v", s, err)
			return nil, false
		}
		paths = append(paths, s)
	}
	if len(paths) == 0 {
		n.fail(diagnostics.ErrInvalidRule, p, "outputPaths must contain at least one non-empty path")
		return nil, false
	}
	return paths, true
}

func (n *normalizer) field(m map[string]any, p string) rules.Rule {
	paths, ok := n.outputPaths(m, p)
	if !ok {
		return nil
	}

	var src rules.Source
	switch {
	case m["source"] != nil:
		switch t := m["source"].(type) {
		case map[string]any:
			src = n.source(t, p+".source")
		case string:
			src = n.pathSource(t, p+".source")
		default:
			n.fail(diagnostics.ErrInvalidRule, p+".source", "source must be an object")
		}
	case hasKey(m, "const"):
		src = &rules.ConstantSource{Value: payload.DeepCopy(m["const"])}
	case m["from"] != nil:
		src = n.shorthandSource(m, p)
	default:
		n.fail(diagnostics.ErrInvalidRule, p, "missing source (expected \"source\", \"from\" or \"const\")")
		return nil
	}
	if src == nil {
		return nil
	}

	r := &rules.FieldRule{OutputPaths: paths, Source: src}
	if v, present := pick(m, "defaultValue"); present {
		r.DefaultValue = payload.DeepCopy(v)
		r.HasDefault = true
	}
	return r
}

// shorthandSource handles {from: path} and {from: path, transform: name}
func (n *normalizer) shorthandSource(m map[string]any, p string) rules.Source {
	sp := p + ".source"
	_, hasTransform := pick(m, "transform")
	if !hasTransform && !hasKey(m, "customTransform") {
		return n.pathSource(m["from"], sp)
	}
	src := map[string]any{
		"type": string(rules.SourceTransform),
		"path": m["from"],
	}
	for _, key := range []string{"transform", "builtin", "customTransform", "options"} {
		if v, ok := m[key]; ok {
			src[key] = v
		}
	}
	return n.source(src, sp)
}

func (n *normalizer) pathSource(v any, sp string) rules.Source {
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		n.fail(diagnostics.ErrInvalidRule, sp, "path must be a non-empty string")
		return nil
	}
	return &rules.PathSource{Path: strings.TrimSpace(s)}
}

func (n *normalizer) source(m map[string]any, sp string) rules.Source {
	typ := ""
	if raw, ok := m["type"]; ok && raw != nil {
		typ = payload.Stringify(raw)
	} else {
		typ = inferSourceType(m)
	}
	canonical, ok := sourceTypeAliases[typ]
	if !ok {
		n.fail(diagnostics.ErrUnsupportedSource, sp, "unsupported source type %q", typ)
		return nil
	}

	switch rules.SourceType(canonical) {
	case rules.SourcePath:
		return n.pathSource(m["path"], sp)
	case rules.SourceConstant:
		return &rules.ConstantSource{Value: payload.DeepCopy(m["value"])}
	case rules.SourceTransform:
		return n.transformSource(m, sp)
	case rules.SourceCondition:
		return n.conditionSource(m, sp)
	default:
		return n.mergeSource(m, sp)
	}
}

func inferSourceType(m map[string]any) string {
	switch {
	case has(m, "transform"), hasKey(m, "customTransform"):
		return string(rules.SourceTransform)
	case has(m, "expression"):
		return string(rules.SourceCondition)
	case hasKey(m, "paths"):
		return string(rules.SourceMerge)
	case hasKey(m, "value"):
		return string(rules.SourceConstant)
	case hasKey(m, "path"):
		return string(rules.SourcePath)
	}
	return ""
}

func (n *normalizer) transformSource(m map[string]any, sp string) rules.Source {
	src := &rules.TransformSource{}
	if custom, ok := m["customTransform"].(string); ok && custom != "" {
		src.CustomTransform = custom
	} else {
		raw, _ := pick(m, "transform")
		name := payload.Stringify(raw)
		if !transform.IsBuiltin(name) {
			n.fail(diagnostics.ErrUnsupportedTransform, sp, "unsupported transform %q", name)
			return nil
		}
		src.Transform = name
	}

	path, ok := m["path"].(string)
	if !ok || strings.TrimSpace(path) == "" {
		n.fail(diagnostics.ErrInvalidRule, sp, "path must be a non-empty string")
		return nil
	}
	src.Path = strings.TrimSpace(path)

	switch opts := m["options"].(type) {
	case nil:
		src.Options = map[string]any{}
	case map[string]any:
		src.Options, _ = payload.DeepCopy(opts).(map[string]any)
	default:
		n.fail(diagnostics.ErrInvalidRule, sp, "options must be an object")
		return nil
	}
	return src
}

func (n *normalizer) conditionSource(m map[string]any, sp string) rules.Source {
	expr, ok := expression(m)
	if !ok {
		n.fail(diagnostics.ErrInvalidRule, sp, "condition requires an expression")
		return nil
	}
	src := &rules.ConditionSource{
		Expression: expr,
		TrueValue:  payload.DeepCopy(m["trueValue"]),
		FalseValue: payload.DeepCopy(m["falseValue"]),
		ElseIf:     []rules.ConditionArm{},
		Output:     rules.OutputValue,
	}

	if raw, present := pick(m, "conditionOutput"); present && raw != nil {
		switch out := rules.ConditionOutput(payload.Stringify(raw)); out {
		case rules.OutputValue, rules.OutputBoolean:
			src.Output = out
		default:
			n.fail(diagnostics.ErrInvalidRule, sp, "unsupported conditionOutput %q", string(out))
			return nil
		}
	}

	if raw, present := pick(m, "elseIf"); present && raw != nil {
		arms, isList := raw.([]any)
		if !isList {
			n.fail(diagnostics.ErrInvalidRule, sp, "elseIf must be an array")
			return nil
		}
		for k, item := range arms {
			arm, isMap := item.(map[string]any)
			armExpr, hasExpr := expression(arm)
			if !isMap || !hasExpr {
				n.fail(diagnostics.ErrInvalidRule, fmt.Sprintf("%s.elseIf[%d]", sp, k), "elseIf entry requires an expression")
				return nil
			}
			src.ElseIf = append(src.ElseIf, rules.ConditionArm{
				Expression: armExpr,
				Value:      payload.DeepCopy(arm["value"]),
			})
		}
	}
	return src
}

func (n *normalizer) mergeSource(m map[string]any, sp string) rules.Source {
	list, _ := m["paths"].([]any)
	paths := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
			paths = append(paths, strings.TrimSpace(s))
		}
	}
	if len(paths) == 0 {
		n.fail(diagnostics.ErrInvalidRule, sp, "merge requires at least one path")
		return nil
	}

	src := &rules.MergeSource{
		Paths:     paths,
		Mode:      rules.MergeFirstNonEmpty,
		Separator: rules.DefaultMergeSeparator,
	}
	if raw, present := pick(m, "mergeMode"); present && raw != nil {
		switch mode := rules.MergeMode(payload.Stringify(raw)); mode {
		case rules.MergeFirstNonEmpty, rules.MergeArray, rules.MergeConcat:
			src.Mode = mode
		default:
			n.fail(diagnostics.ErrUnsupportedMergeMode, sp, "unsupported merge mode %q", string(mode))
			return nil
		}
	}
	if sep, ok := m["separator"].(string); ok {
		src.Separator = sep
	}
	return src
}

func (n *normalizer) array(m map[string]any, p string) rules.Rule {
	raw, _ := pick(m, "inputPath")
	input, ok := raw.(string)
	if !ok || strings.TrimSpace(input) == "" {
		n.fail(diagnostics.ErrInvalidRule, p, "array rule requires an inputPath")
		return nil
	}
	paths, ok := n.outputPaths(m, p)
	if !ok {
		return nil
	}

	r := &rules.ArrayRule{
		InputPath:   strings.TrimSpace(input),
		OutputPaths: paths,
		ItemRules:   []rules.Rule{},
	}
	if coerce, isBool := m["coerceSingle"].(bool); isBool {
		r.CoerceSingle = coerce
	}

	if items, present := pick(m, "itemRules"); present && items != nil {
		list, isList := items.([]any)
		if !isList {
			n.fail(diagnostics.ErrInvalidRule, p+".itemRules", "itemRules must be an array")
			return nil
		}
		r.ItemRules = n.ruleList(list, p+".itemRules")
	}
	return r
}

func (n *normalizer) branch(m map[string]any, p string) rules.Rule {
	expr, ok := expression(m)
	if !ok {
		n.fail(diagnostics.ErrInvalidRule, p, "branch rule requires an expression")
		return nil
	}
	r := &rules.BranchRule{Expression: expr, ElseIf: []rules.ElseIfArm{}}

	var valid bool
	if r.Then, valid = n.arm(m, "then", p); !valid {
		return nil
	}
	if r.Else, valid = n.arm(m, "else", p); !valid {
		return nil
	}

	if raw, present := pick(m, "elseIf"); present && raw != nil {
		list, isList := raw.([]any)
		if !isList {
			n.fail(diagnostics.ErrInvalidRule, p+".elseIf", "elseIf must be an array")
			return nil
		}
		for k, item := range list {
			ap := rules.ElseIfPath(p, k)
			entry, isMap := item.(map[string]any)
			armExpr, hasExpr := expression(entry)
			if !isMap || !hasExpr {
				n.fail(diagnostics.ErrInvalidRule, ap, "elseIf entry requires an expression")
				return nil
			}
			then, valid := n.arm(entry, "then", ap)
			if !valid {
				return nil
			}
			r.ElseIf = append(r.ElseIf, rules.ElseIfArm{Expression: armExpr, Then: then})
		}
	}
	return r
}

// arm normalizes a then/else rule list; absent means empty
func (n *normalizer) arm(m map[string]any, canonical, p string) ([]rules.Rule, bool) {
	raw, present := pick(m, canonical)
	if !present || raw == nil {
		return []rules.Rule{}, true
	}
	list, ok := raw.([]any)
	if !ok {
		n.fail(diagnostics.ErrInvalidRule, p+"."+canonical, "%s must be an array", canonical)
		return nil, false
	}
	return n.ruleList(list, p+"."+canonical), true
}

func (n *normalizer) use(m map[string]any, p string) rules.Rule {
	name, ok := m["use"].(string)
	if !ok || strings.TrimSpace(name) == "" {
		n.fail(diagnostics.ErrInvalidRule, p, "use requires a fragment name")
		return nil
	}
	if !n.fragments[name] {
		n.fail(diagnostics.ErrUnknownFragment, p, "unknown fragment %q", name)
		return nil
	}
	return &rules.UseRule{Use: name}
}

// mapEntries expands {map: [{from, to}]} or {map: {from: to}} into field rules
func (n *normalizer) mapEntries(m map[string]any, p string) []rules.Rule {
	var entries []map[string]any
	switch t := m["map"].(type) {
	case []any:
		for j, item := range t {
			entry, ok := item.(map[string]any)
			if !ok {
				n.fail(diagnostics.ErrInvalidRule, fmt.Sprintf("%s.map[%d]", p, j), "map entry must be an object")
				return nil
			}
			entries = append(entries, entry)
		}
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, from := range keys {
			entries = append(entries, map[string]any{"from": from, "to": t[from]})
		}
	default:
		n.fail(diagnostics.ErrInvalidRule, p, "map entries must be an array or object")
		return nil
	}

	out := make([]rules.Rule, 0, len(entries))
	for j, entry := range entries {
		ep := fmt.Sprintf("%s.map[%d]", p, j)
		if !hasKey(entry, "kind") && entry["source"] == nil && entry["from"] == nil && !hasKey(entry, "const") {
			n.fail(diagnostics.ErrInvalidRule, ep, "map entry requires \"from\" and \"to\"")
			return nil
		}
		r := n.field(entry, ep)
		if r == nil {
			return nil
		}
		out = append(out, r)
	}
	return out
}

func expression(m map[string]any) (string, bool) {
	if m == nil {
		return "", false
	}
	raw, _ := pick(m, "expression")
	s, ok := raw.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", false
	}
	return strings.TrimSpace(s), true
}

func hasKey(m map[string]any, key string) bool {
	_, ok := m[key]
	return ok
}

// Decode turns raw into a generic document without normalizing it. The
// returned list holds the VAL101 finding when raw is not a usable document.
func Decode(raw any) (map[string]any, diagnostics.List) {
	n := &normalizer{}
	doc, _ := n.decode(raw)
	return doc, n.diags
}
