package diagnostics

import (
	"fmt"
	"strings"
)

// FormatDiagnostic returns a human-readable rendering for terminal output
func FormatDiagnostic(d *Diagnostic) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s %s[%s]", severityIcon(d.Severity), d.Severity, d.Code)
	if d.RulePath != "" {
		fmt.Fprintf(&b, " %s", d.RulePath)
	}
	fmt.Fprintf(&b, ": %s\n", d.Message)

	if d.Suggestion != "" {
		fmt.Fprintf(&b, "  💡 %s\n", d.Suggestion)
	}

	return b.String()
}

// FormatList returns a formatted string of all diagnostics followed by a summary
func FormatList(l List) string {
	if len(l) == 0 {
		return "no findings"
	}

	var b strings.Builder
	for _, d := range l {
		b.WriteString(FormatDiagnostic(d))
	}

	errors, warnings, info := l.Count()
	fmt.Fprintf(&b, "\n%s\n", summary(errors, warnings, info))
	return b.String()
}

func summary(errors, warnings, info int) string {
	parts := make([]string, 0, 3)
	parts = append(parts, plural(errors, "error"))
	parts = append(parts, plural(warnings, "warning"))
	parts = append(parts, fmt.Sprintf("%d info", info))
	return strings.Join(parts, ", ")
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}

// severityIcon returns the icon for a severity level
func severityIcon(s Severity) string {
	switch s {
	case SeverityError:
		return "✗"
	case SeverityWarning:
		return "⚠"
	case SeverityInfo:
		return "ℹ"
	default:
		return "?"
	}
}
