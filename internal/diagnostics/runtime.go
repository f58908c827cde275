package diagnostics

import "fmt"

// Runtime codes (RUN300-399)
const (
	// WarnArrayInputMissing indicates an array rule whose inputPath was not found
	WarnArrayInputMissing Code = "RUN301"
	// ErrArrayInputNotArray indicates an array rule whose input is not an array
	ErrArrayInputNotArray Code = "RUN302"
	// ErrOutputCollision indicates a second writer to an output path under the Error policy
	ErrOutputCollision Code = "RUN303"
	// ErrExpressionFailed indicates a branch or condition expression that failed to parse or evaluate
	ErrExpressionFailed Code = "RUN304"
	// ErrCustomTransformMissing indicates a custom transform absent from the caller's table
	ErrCustomTransformMissing Code = "RUN305"
	// ErrCustomTransformFailed indicates a custom transform that returned an error or panicked
	ErrCustomTransformFailed Code = "RUN306"
	// ErrRecursionLimit indicates nesting deeper than the evaluator's depth limit
	ErrRecursionLimit Code = "RUN307"
	// ErrWriteFailed indicates a value that could not be written to its output path
	ErrWriteFailed Code = "RUN308"
	// ErrRecordUnreadable indicates a stream record that could not be decoded
	ErrRecordUnreadable Code = "RUN309"
	// ErrInputUnreadable indicates a payload that could not be decoded with the rules' inputFormat
	ErrInputUnreadable Code = "RUN310"
	// ErrOutputUnencodable indicates an output that could not be encoded with the rules' outputFormat
	ErrOutputUnencodable Code = "RUN311"
)

// NewArrayInputMissing creates a RUN301 warning
func NewArrayInputMissing(rulePath, inputPath string) *Diagnostic {
	return newDiagnostic(
		WarnArrayInputMissing,
		SeverityWarning,
		StageRuntime,
		rulePath,
		fmt.Sprintf("Array mapping skipped: inputPath %q not found (%s)", inputPath, rulePath),
	).WithSuggestion("Check the inputPath or add a branch guarding on exists(...)")
}

// NewArrayInputNotArray creates a RUN302 error
func NewArrayInputNotArray(rulePath, inputPath string) *Diagnostic {
	return newDiagnostic(
		ErrArrayInputNotArray,
		SeverityError,
		StageRuntime,
		rulePath,
		fmt.Sprintf("Array mapping failed: inputPath %q is not an array (%s)", inputPath, rulePath),
	).WithSuggestion("Set coerceSingle to true to wrap single values")
}

// NewOutputCollision creates a RUN303 error naming the original writer
func NewOutputCollision(outputPath, firstWriter, rulePath string) *Diagnostic {
	return newDiagnostic(
		ErrOutputCollision,
		SeverityError,
		StageRuntime,
		rulePath,
		fmt.Sprintf("Output path %q already written by %s; ignoring value from %s", outputPath, firstWriter, rulePath),
	).WithSuggestion("Write to a distinct output path or change the collision policy")
}

// NewExpressionFailed creates a RUN304 error
func NewExpressionFailed(rulePath, what string, cause error) *Diagnostic {
	return newDiagnostic(
		ErrExpressionFailed,
		SeverityError,
		StageRuntime,
		rulePath,
		fmt.Sprintf("%s expression failed (%s): %v", what, rulePath, cause),
	).WithSuggestion("Fix the expression syntax; run lint to see all expression errors")
}

// NewCustomTransformMissing creates a RUN305 error
func NewCustomTransformMissing(rulePath, name string) *Diagnostic {
	return newDiagnostic(
		ErrCustomTransformMissing,
		SeverityError,
		StageRuntime,
		rulePath,
		fmt.Sprintf("Custom transform %q is not registered (%s)", name, rulePath),
	).WithSuggestion("Pass the transform in the custom transform table")
}

// NewCustomTransformFailed creates a RUN306 error
func NewCustomTransformFailed(rulePath, name string, cause any) *Diagnostic {
	return newDiagnostic(
		ErrCustomTransformFailed,
		SeverityError,
		StageRuntime,
		rulePath,
		fmt.Sprintf("Custom transform %q failed (%s): %v", name, rulePath, cause),
	)
}

// NewRecursionLimit creates a RUN307 error
func NewRecursionLimit(rulePath string, limit int) *Diagnostic {
	return newDiagnostic(
		ErrRecursionLimit,
		SeverityError,
		StageRuntime,
		rulePath,
		fmt.Sprintf("Recursion limit of %d exceeded at %s", limit, rulePath),
	).WithSuggestion("Flatten nested branches or fragment uses")
}

// NewWriteFailed creates a RUN308 error
func NewWriteFailed(rulePath, outputPath string, cause error) *Diagnostic {
	return newDiagnostic(
		ErrWriteFailed,
		SeverityError,
		StageRuntime,
		rulePath,
		fmt.Sprintf("Output path %q could not be written (%s): %v", outputPath, rulePath, cause),
	).WithSuggestion("Output paths must start with a key and cannot address the whole output")
}

// NewRecordUnreadable creates a RUN309 error for the 1-based stream record n
func NewRecordUnreadable(n int, format string, cause error) *Diagnostic {
	return newDiagnostic(
		ErrRecordUnreadable,
		SeverityError,
		StageRuntime,
		"",
		fmt.Sprintf("Record %d: invalid %s: %v", n, format, cause),
	)
}

// NewInputUnreadable creates a RUN310 error
func NewInputUnreadable(format string, cause error) *Diagnostic {
	return newDiagnostic(
		ErrInputUnreadable,
		SeverityError,
		StageRuntime,
		"",
		fmt.Sprintf("Input could not be decoded as %s: %v", format, cause),
	).WithSuggestion("Check the payload or the rules' inputFormat")
}

// NewOutputUnencodable creates a RUN311 error
func NewOutputUnencodable(format string, cause error) *Diagnostic {
	return newDiagnostic(
		ErrOutputUnencodable,
		SeverityError,
		StageRuntime,
		"",
		fmt.Sprintf("Output could not be encoded as %s: %v", format, cause),
	)
}
