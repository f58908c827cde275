package diagnostics

import "fmt"

// Compatibility codes (CMP400-499)
const (
	// WarnMissingSchemaVersion indicates a document without schemaVersion
	WarnMissingSchemaVersion Code = "CMP401"
	// ErrInvalidSchemaVersion indicates a schemaVersion that is not X.Y.Z
	ErrInvalidSchemaVersion Code = "CMP402"
	// ErrInvalidTargetVersion indicates a target version that is not X.Y.Z
	ErrInvalidTargetVersion Code = "CMP403"
	// ErrSchemaTooNew indicates a schemaVersion newer than the target engine
	ErrSchemaTooNew Code = "CMP404"
	// ErrUnsupportedInputFormat indicates an unknown inputFormat token
	ErrUnsupportedInputFormat Code = "CMP405"
	// ErrUnsupportedOutputFormat indicates an unknown outputFormat token
	ErrUnsupportedOutputFormat Code = "CMP406"
)

// NewMissingSchemaVersion creates a CMP401 warning
func NewMissingSchemaVersion(assumed string) *Diagnostic {
	return newDiagnostic(
		WarnMissingSchemaVersion,
		SeverityWarning,
		StageCompat,
		"schemaVersion",
		fmt.Sprintf("schemaVersion is missing; assuming %s", assumed),
	).WithSuggestion(fmt.Sprintf("Add \"schemaVersion\": %q to the document", assumed))
}

// NewInvalidSchemaVersion creates a CMP402 error
func NewInvalidSchemaVersion(value string) *Diagnostic {
	return newDiagnostic(
		ErrInvalidSchemaVersion,
		SeverityError,
		StageCompat,
		"schemaVersion",
		fmt.Sprintf("schemaVersion %q is not a valid semantic version", value),
	).WithSuggestion("Use the form MAJOR.MINOR.PATCH, e.g. 1.1.0")
}

// NewInvalidTargetVersion creates a CMP403 error
func NewInvalidTargetVersion(value string) *Diagnostic {
	return newDiagnostic(
		ErrInvalidTargetVersion,
		SeverityError,
		StageCompat,
		"",
		fmt.Sprintf("target version %q is not a valid semantic version", value),
	).WithSuggestion("Use the form MAJOR.MINOR.PATCH, e.g. 1.1.0")
}

// NewSchemaTooNew creates a CMP404 error
func NewSchemaTooNew(schemaVersion, target string) *Diagnostic {
	return newDiagnostic(
		ErrSchemaTooNew,
		SeverityError,
		StageCompat,
		"schemaVersion",
		fmt.Sprintf("schemaVersion %s is newer than target engine %s", schemaVersion, target),
	).WithSuggestion("Upgrade the target engine or lower schemaVersion")
}

// NewUnsupportedFormat creates a CMP405 or CMP406 error
func NewUnsupportedFormat(field, value string) *Diagnostic {
	code := ErrUnsupportedInputFormat
	if field == "outputFormat" {
		code = ErrUnsupportedOutputFormat
	}
	return newDiagnostic(
		code,
		SeverityError,
		StageCompat,
		field,
		fmt.Sprintf("%s %q is not supported", field, value),
	).WithSuggestion("Use one of: json, xml, query")
}
