// Package diagnostics provides structured findings for the conversion rule engine.
// It defines diagnostic codes, severities, and stages, and formats findings for both
// human-readable terminal output and machine-parseable JSON for the parity harness.
package diagnostics

import (
	"encoding/json"
)

// Code represents a unique diagnostic code
type Code string

// Severity indicates the severity level of a diagnostic
type Severity string

const (
	// SeverityError marks a finding that blocks or degrades conversion
	SeverityError Severity = "error"
	// SeverityWarning marks a finding that suggests a potential issue
	SeverityWarning Severity = "warning"
	// SeverityInfo marks an informational finding
	SeverityInfo Severity = "info"
)

// Stage identifies the engine stage that produced a diagnostic
type Stage string

const (
	// StageValidate covers normalization and structural validation (VAL100-199)
	StageValidate Stage = "validate"
	// StageLint covers static rule smells (LNT200-299)
	StageLint Stage = "lint"
	// StageRuntime covers evaluation against an input record (RUN300-399)
	StageRuntime Stage = "runtime"
	// StageCompat covers schema and target version checks (CMP400-499)
	StageCompat Stage = "compat"
	// StageDoctor covers rule doctor bookkeeping (DOC500-599)
	StageDoctor Stage = "doctor"
)

// Diagnostic is a single finding with a stable rule address
type Diagnostic struct {
	// Code is the stable diagnostic code (e.g. "RUN301")
	Code Code `json:"code"`
	// Severity is the severity level
	Severity Severity `json:"severity"`
	// Stage is the engine stage that produced the finding
	Stage Stage `json:"stage"`
	// RulePath is the deterministic rule address (e.g. "rules[0].then[1]")
	RulePath string `json:"rulePath"`
	// Message is the primary, user-visible message
	Message string `json:"message"`
	// Suggestion is a remediation hint (may be empty for runtime findings)
	Suggestion string `json:"suggestion"`
}

// Error implements the error interface
func (d *Diagnostic) Error() string {
	return d.Message
}

// Format returns a human-readable rendering for terminal output
func (d *Diagnostic) Format() string {
	return FormatDiagnostic(d)
}

// WithSuggestion sets a remediation hint
func (d *Diagnostic) WithSuggestion(suggestion string) *Diagnostic {
	d.Suggestion = suggestion
	return d
}

// WithRulePath sets the rule address
func (d *Diagnostic) WithRulePath(rulePath string) *Diagnostic {
	d.RulePath = rulePath
	return d
}

// WithStage overrides the stage, used when one stage re-reports another's findings
func (d *Diagnostic) WithStage(stage Stage) *Diagnostic {
	d.Stage = stage
	return d
}

// Clone returns a shallow copy
func (d *Diagnostic) Clone() *Diagnostic {
	c := *d
	return &c
}

// newDiagnostic is the shared constructor used by every code family
func newDiagnostic(code Code, severity Severity, stage Stage, rulePath, message string) *Diagnostic {
	return &Diagnostic{
		Code:     code,
		Severity: severity,
		Stage:    stage,
		RulePath: rulePath,
		Message:  message,
	}
}

// List is an ordered collection of diagnostics
type List []*Diagnostic

// HasErrors returns true if the list contains any error-severity diagnostic
func (l List) HasErrors() bool {
	for _, d := range l {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// HasWarnings returns true if the list contains any warnings
func (l List) HasWarnings() bool {
	for _, d := range l {
		if d.Severity == SeverityWarning {
			return true
		}
	}
	return false
}

// Count returns the number of diagnostics by severity
func (l List) Count() (errors, warnings, info int) {
	for _, d := range l {
		switch d.Severity {
		case SeverityError:
			errors++
		case SeverityWarning:
			warnings++
		case SeverityInfo:
			info++
		}
	}
	return
}

// Messages returns the messages of every diagnostic with the given severity, in order
func (l List) Messages(severity Severity) []string {
	out := make([]string, 0)
	for _, d := range l {
		if d.Severity == severity {
			out = append(out, d.Message)
		}
	}
	return out
}

// Codes returns the codes in order; handy for assertions and parity diffs
func (l List) Codes() []Code {
	out := make([]Code, len(l))
	for i, d := range l {
		out[i] = d.Code
	}
	return out
}

// WithStage returns copies of every diagnostic re-tagged with stage
func (l List) WithStage(stage Stage) List {
	out := make(List, len(l))
	for i, d := range l {
		out[i] = d.Clone().WithStage(stage)
	}
	return out
}

// ToJSON returns all diagnostics as an indented JSON array
func (l List) ToJSON() (string, error) {
	if l == nil {
		l = List{}
	}
	bytes, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}
