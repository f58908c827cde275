package evaluator

import (
	"github.com/conduit-lang/reshape/internal/diagnostics"
)

// Trace decisions
const (
	DecisionWritten       = "written"
	DecisionDefaulted     = "defaulted"
	DecisionSkipped       = "skipped"
	DecisionMapped        = "mapped"
	DecisionMissing       = "missing"
	DecisionInvalid       = "invalid"
	DecisionThen          = "then"
	DecisionElse          = "else"
	DecisionNone          = "none"
	DecisionError         = "error"
	DecisionExpanded      = "expanded"
	DecisionDepthExceeded = "depth-exceeded"
)

// TraceEntry records how one rule was handled
type TraceEntry struct {
	RulePath    string   `json:"rulePath"`
	RuleKind    string   `json:"ruleKind"`
	Decision    string   `json:"decision"`
	OutputPaths []string `json:"outputPaths,omitempty"`
}

// Result is the outcome of one evaluation. It shares nothing with the rules
// or the input.
type Result struct {
	Output      map[string]any   `json:"output"`
	Errors      []string         `json:"errors"`
	Warnings    []string         `json:"warnings"`
	Diagnostics diagnostics.List `json:"diagnostics"`
	Trace       []TraceEntry     `json:"trace"`
}

// NewResult builds a result around output and diagnostics
func NewResult(output map[string]any, diags diagnostics.List, trace []TraceEntry) *Result {
	if output == nil {
		output = map[string]any{}
	}
	if diags == nil {
		diags = diagnostics.List{}
	}
	if trace == nil {
		trace = []TraceEntry{}
	}
	return &Result{
		Output:      output,
		Errors:      diags.Messages(diagnostics.SeverityError),
		Warnings:    diags.Messages(diagnostics.SeverityWarning),
		Diagnostics: diags,
		Trace:       trace,
	}
}

// HasErrors reports whether any error diagnostic was produced
func (r *Result) HasErrors() bool {
	return len(r.Errors) > 0
}
