package payload

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// DecodeJSON parses a single JSON value. Trailing non-whitespace is an error.
func DecodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	var v any
	if err := dec.Decode(&v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty JSON document")
		}
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("unexpected data after top-level JSON value")
	}
	return v, nil
}

// EncodeJSON renders a value as canonical JSON: object keys sorted, no HTML
// escaping, no trailing newline. pretty indents with two spaces.
func EncodeJSON(v any, pretty bool) (string, error) {
	return EncodeJSONIndent(v, pretty, 2)
}

// EncodeJSONIndent is EncodeJSON with a configurable indent width
func EncodeJSONIndent(v any, pretty bool, indent int) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if pretty {
		if indent <= 0 {
			indent = 2
		}
		enc.SetIndent("", string(bytes.Repeat([]byte(" "), indent)))
	}
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}
