package diagnostics

import "fmt"

// Doctor codes (DOC500-599)
const (
	// InfoRuntimeSkipped indicates that no sample input was supplied
	InfoRuntimeSkipped Code = "DOC501"
	// ErrSampleUnreadable indicates a sample input that could not be decoded
	ErrSampleUnreadable Code = "DOC502"
	// InfoSafeFixAvailable indicates a canonical reformatting is available
	InfoSafeFixAvailable Code = "DOC503"
)

// NewRuntimeSkipped creates a DOC501 info
func NewRuntimeSkipped() *Diagnostic {
	return newDiagnostic(
		InfoRuntimeSkipped,
		SeverityInfo,
		StageDoctor,
		"",
		"Runtime checks skipped: no sample input provided",
	).WithSuggestion("Pass a sample input to run the rules once")
}

// NewSampleUnreadable creates a DOC502 error
func NewSampleUnreadable(format string, cause error) *Diagnostic {
	return newDiagnostic(
		ErrSampleUnreadable,
		SeverityError,
		StageDoctor,
		"",
		fmt.Sprintf("Sample input is not valid %s: %v", format, cause),
	).WithSuggestion("Check the sample input and its inputFormat")
}

// NewSafeFixAvailable creates a DOC503 info
func NewSafeFixAvailable() *Diagnostic {
	return newDiagnostic(
		InfoSafeFixAvailable,
		SeverityInfo,
		StageDoctor,
		"",
		"Document is not in canonical form; a safe reformatting is available",
	).WithSuggestion("Apply the safe fix preview or run 'reshape format --write'")
}

// NewUnsupportedSampleFormat creates a DOC502 error for an unknown sample format
func NewUnsupportedSampleFormat(format string) *Diagnostic {
	return newDiagnostic(
		ErrSampleUnreadable,
		SeverityError,
		StageDoctor,
		"",
		fmt.Sprintf("Sample input format %q is not supported", format),
	).WithSuggestion("Use one of: json, xml, query")
}
