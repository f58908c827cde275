// Package doctor runs every check the engine has over a rule document:
// validation, lint and, given a sample, one runtime pass.
package doctor

import (
	"strings"

	"github.com/conduit-lang/reshape/internal/diagnostics"
	"github.com/conduit-lang/reshape/internal/evaluator"
	"github.com/conduit-lang/reshape/internal/lint"
	"github.com/conduit-lang/reshape/internal/normalize"
	"github.com/conduit-lang/reshape/internal/payload"
)

// Options configure a doctor run
type Options struct {
	// SampleInputText enables the runtime stage when non-empty
	SampleInputText string
	// InputFormat decodes the sample; empty means the rules' inputFormat
	InputFormat string
	// Evaluation is passed to the runtime pass
	Evaluation evaluator.Options
}

// Report is the combined outcome
type Report struct {
	HasErrors      bool             `json:"hasErrors"`
	Findings       diagnostics.List `json:"findings"`
	SafeFixPreview string           `json:"safeFixPreview"`
}

// Run checks raw in a fixed order: validation, lint, runtime
func Run(raw any, opts Options) *Report {
	norm := normalize.Normalize(raw)
	findings := diagnostics.List{}
	findings = append(findings, norm.Diagnostics.WithStage(diagnostics.StageValidate)...)
	findings = append(findings, lint.Lint(norm.Rules)...)

	if strings.TrimSpace(opts.SampleInputText) == "" {
		findings = append(findings, diagnostics.NewRuntimeSkipped())
	} else {
		findings = append(findings, runtimePass(norm, opts)...)
	}

	report := &Report{Findings: findings, HasErrors: findings.HasErrors()}
	if text, ok := sourceText(raw); ok && norm.Valid() {
		canonical := norm.Rules.CanonicalText(true)
		if strings.TrimSpace(text) != canonical {
			report.SafeFixPreview = canonical
			report.Findings = append(report.Findings, diagnostics.NewSafeFixAvailable())
		}
	}
	return report
}

func runtimePass(norm *normalize.Result, opts Options) diagnostics.List {
	format := norm.Rules.InputFormat
	if opts.InputFormat != "" {
		f, ok := payload.ParseFormat(opts.InputFormat)
		if !ok {
			return diagnostics.List{diagnostics.NewUnsupportedSampleFormat(opts.InputFormat)}
		}
		format = f
	}

	input, err := payload.Decode(format, []byte(opts.SampleInputText))
	if err != nil {
		return diagnostics.List{diagnostics.NewSampleUnreadable(string(format), err)}
	}
	res := evaluator.New(norm.Rules).Apply(input, opts.Evaluation)
	return res.Diagnostics
}

func sourceText(raw any) (string, bool) {
	switch t := raw.(type) {
	case string:
		return t, true
	case []byte:
		return string(t), true
	}
	return "", false
}
