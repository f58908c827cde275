package stream

import (
	"bufio"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/conduit-lang/reshape/internal/payload"
)

// InputKind selects how a stream is split into records
type InputKind string

const (
	JSONArray  InputKind = "json-array"
	NDJSON     InputKind = "ndjson"
	QueryLines InputKind = "query-lines"
	XML        InputKind = "xml"
)

// ParseInputKind parses a kind name as written in configs and flags
func ParseInputKind(s string) (InputKind, bool) {
	switch k := InputKind(strings.ToLower(strings.TrimSpace(s))); k {
	case JSONArray, NDJSON, QueryLines, XML:
		return k, true
	}
	return "", false
}

// label names the record encoding in error messages
func (k InputKind) label() string {
	switch k {
	case QueryLines:
		return "query string"
	case XML:
		return "XML"
	default:
		return "JSON"
	}
}

// maxLineSize bounds one ndjson or query-lines record
const maxLineSize = 16 * 1024 * 1024

// recordError is a record that could not be decoded. A fatal one leaves the
// underlying reader in a state where no further record can be found.
type recordError struct {
	err   error
	fatal bool
}

func (e *recordError) Error() string { return e.err.Error() }
func (e *recordError) Unwrap() error { return e.err }

// source enumerates raw records. next returns io.EOF after the last record.
type source interface {
	next() (any, error)
}

func newSource(kind InputKind, r io.Reader, xmlItemPath string) (source, error) {
	switch kind {
	case JSONArray:
		return &jsonArraySource{dec: json.NewDecoder(r)}, nil
	case NDJSON:
		return newLineSource(r, payload.DecodeJSON), nil
	case QueryLines:
		return newLineSource(r, func(line []byte) (any, error) {
			return payload.DecodeQuery(string(line))
		}), nil
	case XML:
		path := splitItemPath(xmlItemPath)
		if len(path) == 0 {
			return nil, fmt.Errorf("xml streams require an item path such as orders.order")
		}
		return &xmlSource{dec: xml.NewDecoder(r), path: path}, nil
	default:
		return nil, fmt.Errorf("unsupported stream input kind %q", kind)
	}
}

// jsonArraySource walks the elements of one top-level JSON array without
// loading the whole array
type jsonArraySource struct {
	dec     *json.Decoder
	started bool
	done    bool
}

func (s *jsonArraySource) next() (any, error) {
	if s.done {
		return nil, io.EOF
	}
	if !s.started {
		s.started = true
		tok, err := s.dec.Token()
		if err != nil {
			s.done = true
			if errors.Is(err, io.EOF) {
				return nil, &recordError{err: fmt.Errorf("expected a JSON array, got empty input"), fatal: true}
			}
			return nil, &recordError{err: err, fatal: true}
		}
		if delim, ok := tok.(json.Delim); !ok || delim != '[' {
			s.done = true
			return nil, &recordError{err: fmt.Errorf("expected a JSON array, got %v", tok), fatal: true}
		}
	}
	if !s.dec.More() {
		s.done = true
		if _, err := s.dec.Token(); err != nil {
			return nil, &recordError{err: err, fatal: true}
		}
		return nil, io.EOF
	}
	var raw json.RawMessage
	if err := s.dec.Decode(&raw); err != nil {
		s.done = true
		return nil, &recordError{err: err, fatal: true}
	}
	v, err := payload.DecodeJSON(raw)
	if err != nil {
		return nil, &recordError{err: err}
	}
	return v, nil
}

// lineSource treats every non-blank line as one record
type lineSource struct {
	scanner *bufio.Scanner
	decode  func([]byte) (any, error)
}

func newLineSource(r io.Reader, decode func([]byte) (any, error)) *lineSource {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &lineSource{scanner: scanner, decode: decode}
}

func (s *lineSource) next() (any, error) {
	for s.scanner.Scan() {
		line := strings.TrimSpace(s.scanner.Text())
		if line == "" {
			continue
		}
		v, err := s.decode([]byte(line))
		if err != nil {
			return nil, &recordError{err: err}
		}
		return v, nil
	}
	if err := s.scanner.Err(); err != nil {
		return nil, &recordError{err: err, fatal: true}
	}
	return nil, io.EOF
}

// xmlSource yields every element whose ancestry ends with path
type xmlSource struct {
	dec   *xml.Decoder
	path  []string
	stack []string
}

func (s *xmlSource) next() (any, error) {
	for {
		tok, err := s.dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				if len(s.stack) > 0 {
					return nil, &recordError{err: fmt.Errorf("unexpected end of XML inside <%s>", s.stack[len(s.stack)-1]), fatal: true}
				}
				return nil, io.EOF
			}
			return nil, &recordError{err: err, fatal: true}
		}
		switch t := tok.(type) {
		case xml.StartElement:
			s.stack = append(s.stack, t.Name.Local)
			if !s.matches() {
				continue
			}
			v, err := payload.DecodeXMLElement(s.dec, t)
			s.stack = s.stack[:len(s.stack)-1]
			if err != nil {
				return nil, &recordError{err: err, fatal: true}
			}
			return v, nil
		case xml.EndElement:
			if len(s.stack) > 0 {
				s.stack = s.stack[:len(s.stack)-1]
			}
		}
	}
}

func (s *xmlSource) matches() bool {
	if len(s.stack) < len(s.path) {
		return false
	}
	tail := s.stack[len(s.stack)-len(s.path):]
	for i, name := range s.path {
		if tail[i] != name {
			return false
		}
	}
	return true
}

func splitItemPath(p string) []string {
	var out []string
	for _, seg := range strings.Split(p, ".") {
		if seg = strings.TrimSpace(seg); seg != "" {
			out = append(out, seg)
		}
	}
	return out
}
