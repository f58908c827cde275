// Package payload converts JSON, XML and query-string payloads to and from the
// generic value model used by the rule engine: map[string]any, []any, string,
// float64, bool and nil.
package payload

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Format identifies a payload encoding
type Format string

const (
	// FormatJSON is a JSON document
	FormatJSON Format = "json"
	// FormatXML is an XML document
	FormatXML Format = "xml"
	// FormatQuery is an application/x-www-form-urlencoded query string
	FormatQuery Format = "query"
)

// Formats lists every supported format token
var Formats = []Format{FormatJSON, FormatXML, FormatQuery}

// ParseFormat resolves a format token. Matching is exact.
func ParseFormat(s string) (Format, bool) {
	switch Format(s) {
	case FormatJSON, FormatXML, FormatQuery:
		return Format(s), true
	}
	return "", false
}

// Decode parses data in the given format into a generic value
func Decode(format Format, data []byte) (any, error) {
	switch format {
	case FormatJSON:
		return DecodeJSON(data)
	case FormatXML:
		return DecodeXML(data)
	case FormatQuery:
		return DecodeQuery(string(data))
	default:
		return nil, fmt.Errorf("unsupported payload format %q", format)
	}
}

// Encode renders a generic value in the given format
func Encode(format Format, v any, pretty bool) (string, error) {
	switch format {
	case FormatJSON:
		return EncodeJSON(v, pretty)
	case FormatXML:
		return EncodeXML(v)
	case FormatQuery:
		return EncodeQuery(v)
	default:
		return "", fmt.Errorf("unsupported payload format %q", format)
	}
}

// Canonicalize converts values produced by other decoders (YAML, Go callers)
// into the engine's value model. Integer kinds become float64 and maps with
// non-string keys are re-keyed by their string form.
func Canonicalize(v any) any {
	switch t := v.(type) {
	case nil, string, bool, float64:
		return t
	case int:
		return float64(t)
	case int8:
		return float64(t)
	case int16:
		return float64(t)
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case uint:
		return float64(t)
	case uint8:
		return float64(t)
	case uint16:
		return float64(t)
	case uint32:
		return float64(t)
	case uint64:
		return float64(t)
	case float32:
		return float64(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = Canonicalize(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = Canonicalize(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = Canonicalize(val)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = val
		}
		return out
	case []map[string]any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = Canonicalize(val)
		}
		return out
	default:
		return fmt.Sprint(t)
	}
}

// Stringify renders a value as text the way transforms and query output see it.
// nil renders as the empty string; containers render as compact canonical JSON.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	case float64:
		return FormatNumber(t)
	case map[string]any, []any:
		s, err := EncodeJSON(t, false)
		if err != nil {
			return ""
		}
		return s
	default:
		return Stringify(Canonicalize(t))
	}
}

// FormatNumber renders a float64 using the shortest representation, switching
// to exponent form below 1e-6 and at or above 1e21 (the same cutoffs JSON
// encoders use), with exponents written without leading zeros.
func FormatNumber(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "null"
	}
	if f == 0 {
		return "0"
	}
	abs := math.Abs(f)
	fmtByte := byte('f')
	if abs < 1e-6 || abs >= 1e21 {
		fmtByte = 'e'
	}
	s := strconv.FormatFloat(f, fmtByte, -1, 64)
	if fmtByte == 'e' {
		// clean up e-09 to e-9
		n := len(s)
		if n >= 4 && s[n-4] == 'e' && s[n-3] == '-' && s[n-2] == '0' {
			s = s[:n-2] + s[n-1:]
		}
	}
	return s
}

// IsEmpty reports whether a value counts as empty for default-value and
// firstNonEmpty purposes: nil or the empty string. 0 and false are not empty.
func IsEmpty(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok && s == "" {
		return true
	}
	return false
}

// SortedKeys returns the keys of m in ascending byte order
func SortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DeepCopy returns a structural copy of a generic value
func DeepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = DeepCopy(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = DeepCopy(val)
		}
		return out
	default:
		return t
	}
}

// TypeName names a value's JSON type for messages
func TypeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return strings.ToLower(fmt.Sprintf("%T", v))
	}
}
