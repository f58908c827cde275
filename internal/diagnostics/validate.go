package diagnostics

// Validation codes (VAL100-199)
const (
	// ErrInvalidDocument indicates the rule document could not be decoded or has the wrong shape
	ErrInvalidDocument Code = "VAL101"
	// ErrUnsupportedKind indicates an unknown rule kind
	ErrUnsupportedKind Code = "VAL102"
	// ErrUnsupportedSource indicates an unknown source type
	ErrUnsupportedSource Code = "VAL103"
	// ErrUnsupportedTransform indicates an unknown builtin transform
	ErrUnsupportedTransform Code = "VAL104"
	// ErrUnsupportedMergeMode indicates an unknown merge mode
	ErrUnsupportedMergeMode Code = "VAL105"
	// ErrUnknownFragment indicates a use of an undefined fragment
	ErrUnknownFragment Code = "VAL106"
	// ErrFragmentCycle indicates a fragment that transitively references itself
	ErrFragmentCycle Code = "VAL107"
	// ErrLegacyProperty indicates an unsupported legacy top-level property
	ErrLegacyProperty Code = "VAL108"
	// ErrInvalidRule indicates a structurally invalid rule (missing or mistyped members)
	ErrInvalidRule Code = "VAL109"
	// ErrUnsupportedFormat indicates an unknown inputFormat/outputFormat
	ErrUnsupportedFormat Code = "VAL110"
)

var validationSuggestions = map[Code]string{
	ErrInvalidDocument:      "Provide a JSON or YAML object with a \"rules\" array",
	ErrUnsupportedKind:      "Use one of: field, array, branch, map, use",
	ErrUnsupportedSource:    "Use one of: path, constant, transform, condition, merge",
	ErrUnsupportedTransform: "Use a builtin transform or register it as a customTransform",
	ErrUnsupportedMergeMode: "Use one of: firstNonEmpty, array, concat",
	ErrUnknownFragment:      "Define the fragment under \"fragments\" or fix the name",
	ErrFragmentCycle:        "Break the cycle so no fragment uses itself, directly or indirectly",
	ErrLegacyProperty:       "Move the mappings into the \"rules\" array",
	ErrInvalidRule:          "Check the rule against the rules schema",
	ErrUnsupportedFormat:    "Use one of: json, xml, query",
}

// NewValidation creates a validation-stage error for the given code.
// The message is used verbatim as the validation error string.
func NewValidation(code Code, rulePath, message string) *Diagnostic {
	return newDiagnostic(code, SeverityError, StageValidate, rulePath, message).
		WithSuggestion(validationSuggestions[code])
}
