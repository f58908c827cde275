package rules

import (
	"github.com/conduit-lang/reshape/internal/payload"
)

// ToValue returns the canonical generic form of the document. Every member
// is spelled canonically, so normalizing the result again yields the same
// rules.
func (c *ConversionRules) ToValue() map[string]any {
	fragments := make(map[string]any, len(c.Fragments))
	for name, body := range c.Fragments {
		fragments[name] = ListToValue(body)
	}

	v := map[string]any{
		"inputFormat":  string(c.InputFormat),
		"outputFormat": string(c.OutputFormat),
		"fragments":    fragments,
		"rules":        ListToValue(c.Rules),
	}
	if c.SchemaVersion != "" {
		v["schemaVersion"] = c.SchemaVersion
	}
	return v
}

// CanonicalText renders the canonical form with sorted keys
func (c *ConversionRules) CanonicalText(pretty bool) string {
	// Only generic values are encoded, which cannot fail.
	text, _ := payload.EncodeJSON(c.ToValue(), pretty)
	return text
}

// ListToValue converts a rule list to generic values
func ListToValue(rs []Rule) []any {
	out := make([]any, len(rs))
	for i, r := range rs {
		out[i] = r.ToValue()
	}
	return out
}

func stringsToValue(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func (r *FieldRule) ToValue() map[string]any {
	v := map[string]any{
		"kind":        string(KindField),
		"outputPaths": stringsToValue(r.OutputPaths),
		"source":      r.Source.ToValue(),
	}
	if r.HasDefault {
		v["defaultValue"] = payload.DeepCopy(r.DefaultValue)
	}
	return v
}

func (r *ArrayRule) ToValue() map[string]any {
	return map[string]any{
		"kind":         string(KindArray),
		"inputPath":    r.InputPath,
		"outputPaths":  stringsToValue(r.OutputPaths),
		"itemRules":    ListToValue(r.ItemRules),
		"coerceSingle": r.CoerceSingle,
	}
}

func (r *BranchRule) ToValue() map[string]any {
	arms := make([]any, len(r.ElseIf))
	for i, arm := range r.ElseIf {
		arms[i] = map[string]any{
			"expression": arm.Expression,
			"then":       ListToValue(arm.Then),
		}
	}
	return map[string]any{
		"kind":       string(KindBranch),
		"expression": r.Expression,
		"then":       ListToValue(r.Then),
		"elseIf":     arms,
		"else":       ListToValue(r.Else),
	}
}

func (r *UseRule) ToValue() map[string]any {
	return map[string]any{
		"kind": string(KindUse),
		"use":  r.Use,
	}
}

func (s *PathSource) ToValue() map[string]any {
	return map[string]any{"type": string(SourcePath), "path": s.Path}
}

func (s *ConstantSource) ToValue() map[string]any {
	return map[string]any{"type": string(SourceConstant), "value": payload.DeepCopy(s.Value)}
}

func (s *TransformSource) ToValue() map[string]any {
	v := map[string]any{
		"type": string(SourceTransform),
		"path": s.Path,
		// a nil map copies to an empty object
		"options": payload.DeepCopy(s.Options),
	}
	if s.CustomTransform != "" {
		v["customTransform"] = s.CustomTransform
	} else {
		v["transform"] = s.Transform
	}
	return v
}

func (s *ConditionSource) ToValue() map[string]any {
	arms := make([]any, len(s.ElseIf))
	for i, arm := range s.ElseIf {
		arms[i] = map[string]any{
			"expression": arm.Expression,
			"value":      payload.DeepCopy(arm.Value),
		}
	}
	return map[string]any{
		"type":            string(SourceCondition),
		"expression":      s.Expression,
		"trueValue":       payload.DeepCopy(s.TrueValue),
		"falseValue":      payload.DeepCopy(s.FalseValue),
		"elseIf":          arms,
		"conditionOutput": string(s.Output),
	}
}

func (s *MergeSource) ToValue() map[string]any {
	return map[string]any{
		"type":      string(SourceMerge),
		"paths":     stringsToValue(s.Paths),
		"mergeMode": string(s.Mode),
		"separator": s.Separator,
	}
}
