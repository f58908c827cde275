package normalize

// aliases is the single table of accepted spellings, keyed by canonical
// member name. Spellings are tried in order; the first present wins.
// Nothing past the normalizer ever sees a non-canonical spelling.
var aliases = map[string][]string{
	"outputPaths":     {"outputPaths", "outputPath", "to", "as", "target"},
	"defaultValue":    {"defaultValue", "default"},
	"inputPath":       {"inputPath", "from"},
	"itemRules":       {"itemRules", "rules"},
	"expression":      {"expression", "if", "when", "condition"},
	"elseIf":          {"elseIf", "elif"},
	"else":            {"else", "otherwise"},
	"transform":       {"transform", "builtin"},
	"mergeMode":       {"mergeMode", "mode"},
	"conditionOutput": {"conditionOutput", "output"},
}

// sourceTypeAliases maps accepted source type spellings to canonical tokens
var sourceTypeAliases = map[string]string{
	"path":      "path",
	"constant":  "constant",
	"const":     "constant",
	"transform": "transform",
	"condition": "condition",
	"merge":     "merge",
}

// legacyProperties are pre-"rules" top-level members, reported in this order
var legacyProperties = []string{"fieldMappings", "arrayMappings", "conditionalMappings", "mappings"}

// pick returns the value of the first present spelling of canonical
func pick(m map[string]any, canonical string) (any, bool) {
	spellings, ok := aliases[canonical]
	if !ok {
		spellings = []string{canonical}
	}
	for _, key := range spellings {
		if v, has := m[key]; has {
			return v, true
		}
	}
	return nil, false
}

// has reports whether any spelling of canonical is present
func has(m map[string]any, canonical string) bool {
	_, ok := pick(m, canonical)
	return ok
}
