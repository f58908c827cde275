package diagnostics

import (
	"fmt"
	"strings"
)

// Lint codes (LNT200-299)
const (
	// WarnDuplicateOutputPath indicates sibling field rules writing the same output path
	WarnDuplicateOutputPath Code = "LNT201"
	// WarnUnreachableArm indicates a branch arm guarded by a literal false expression
	WarnUnreachableArm Code = "LNT202"
	// WarnShadowedArms indicates arms after a literal true expression
	WarnShadowedArms Code = "LNT203"
	// ErrInvalidExpression indicates an expression that does not parse
	ErrInvalidExpression Code = "LNT204"
	// WarnEmptyBranch indicates a branch with no rules in any arm
	WarnEmptyBranch Code = "LNT205"
	// WarnEmptyItemRules indicates an array rule with no item rules
	WarnEmptyItemRules Code = "LNT206"
	// InfoUnusedFragment indicates a fragment that no rule uses
	InfoUnusedFragment Code = "LNT207"
	// InfoDefaultNeverApplies indicates a defaultValue on a non-null constant source
	InfoDefaultNeverApplies Code = "LNT208"
)

// NewDuplicateOutputPath creates an LNT201 warning
func NewDuplicateOutputPath(rulePath, outputPath string, writers []string) *Diagnostic {
	return newDiagnostic(
		WarnDuplicateOutputPath,
		SeverityWarning,
		StageLint,
		rulePath,
		fmt.Sprintf("Output path %q is written by multiple field rules (%s)", outputPath, strings.Join(writers, ", ")),
	).WithSuggestion("Remove the duplicate rule or write to a distinct output path")
}

// NewUnreachableArm creates an LNT202 warning
func NewUnreachableArm(rulePath, arm string) *Diagnostic {
	return newDiagnostic(
		WarnUnreachableArm,
		SeverityWarning,
		StageLint,
		rulePath,
		fmt.Sprintf("Branch arm %q is unreachable: its expression is always false", arm),
	).WithSuggestion("Remove the arm or replace the literal false with a real condition")
}

// NewShadowedArms creates an LNT203 warning
func NewShadowedArms(rulePath, arm string) *Diagnostic {
	return newDiagnostic(
		WarnShadowedArms,
		SeverityWarning,
		StageLint,
		rulePath,
		fmt.Sprintf("Arms after %q are unreachable: its expression is always true", arm),
	).WithSuggestion("Replace the branch with its first arm's rules")
}

// NewInvalidExpression creates an LNT204 error
func NewInvalidExpression(rulePath, expression string, cause error) *Diagnostic {
	return newDiagnostic(
		ErrInvalidExpression,
		SeverityError,
		StageLint,
		rulePath,
		fmt.Sprintf("Expression %q does not parse: %v", expression, cause),
	).WithSuggestion("Use path(...) operands with eq, ne, gt, gte, lt, lte, in or includes")
}

// NewEmptyBranch creates an LNT205 warning
func NewEmptyBranch(rulePath string) *Diagnostic {
	return newDiagnostic(
		WarnEmptyBranch,
		SeverityWarning,
		StageLint,
		rulePath,
		"Branch has no rules in any arm",
	).WithSuggestion("Add rules to then/else or remove the branch")
}

// NewEmptyItemRules creates an LNT206 warning
func NewEmptyItemRules(rulePath, inputPath string) *Diagnostic {
	return newDiagnostic(
		WarnEmptyItemRules,
		SeverityWarning,
		StageLint,
		rulePath,
		fmt.Sprintf("Array rule over %q has no itemRules; every item maps to an empty object", inputPath),
	).WithSuggestion("Add itemRules or use a field rule to copy the array as-is")
}

// NewUnusedFragment creates an LNT207 info
func NewUnusedFragment(name string) *Diagnostic {
	return newDiagnostic(
		InfoUnusedFragment,
		SeverityInfo,
		StageLint,
		"fragments."+name,
		fmt.Sprintf("Fragment %q is never used", name),
	).WithSuggestion("Remove the fragment or reference it with {\"use\": \"" + name + "\"}")
}

// NewDefaultNeverApplies creates an LNT208 info
func NewDefaultNeverApplies(rulePath string) *Diagnostic {
	return newDiagnostic(
		InfoDefaultNeverApplies,
		SeverityInfo,
		StageLint,
		rulePath,
		"defaultValue never applies: the source is a non-empty constant",
	).WithSuggestion("Remove the defaultValue")
}
