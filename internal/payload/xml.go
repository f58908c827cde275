package payload

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Attribute keys are prefixed with '@'; mixed text content is stored under TextKey.
const (
	AttrPrefix = "@"
	TextKey    = "#text"
	// DefaultXMLRoot wraps output values that do not have a single root key
	DefaultXMLRoot = "root"
)

// DecodeXML parses an XML document into {rootName: value}
func DecodeXML(data []byte) (any, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("XML document has no root element")
			}
			return nil, err
		}
		if start, ok := tok.(xml.StartElement); ok {
			value, err := DecodeXMLElement(dec, start)
			if err != nil {
				return nil, err
			}
			return map[string]any{start.Name.Local: value}, nil
		}
	}
}

// DecodeXMLElement decodes the element opened by start, consuming tokens up to
// and including its end element. Elements with only text become strings;
// everything else becomes an object of attributes, children and text.
func DecodeXMLElement(dec *xml.Decoder, start xml.StartElement) (any, error) {
	obj := make(map[string]any)
	var text strings.Builder
	hasChildren := false

	for _, attr := range start.Attr {
		obj[AttrPrefix+attr.Name.Local] = attr.Value
	}

	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("unexpected end of XML inside <%s>", start.Name.Local)
			}
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			child, err := DecodeXMLElement(dec, t)
			if err != nil {
				return nil, err
			}
			hasChildren = true
			name := t.Name.Local
			existing, seen := obj[name]
			switch {
			case !seen:
				obj[name] = child
			case isArray(existing):
				obj[name] = append(existing.([]any), child)
			default:
				obj[name] = []any{existing, child}
			}
		case xml.CharData:
			text.Write(t)
		case xml.EndElement:
			trimmed := strings.TrimSpace(text.String())
			if !hasChildren && len(start.Attr) == 0 {
				return trimmed, nil
			}
			if trimmed != "" {
				obj[TextKey] = trimmed
			}
			return obj, nil
		}
	}
}

// isArray reports whether a decoded child slot was already promoted to an
// array. Decoded elements are never arrays themselves.
func isArray(v any) bool {
	_, ok := v.([]any)
	return ok
}

// EncodeXML renders a value as compact XML without a declaration. A value that
// is an object with a single non-array key uses that key as the root element;
// anything else is wrapped in <root>.
func EncodeXML(v any) (string, error) {
	var b strings.Builder
	if m, ok := v.(map[string]any); ok && len(m) == 1 {
		for k, child := range m {
			if _, isArr := child.([]any); !isArr {
				writeXMLElement(&b, k, child)
				return b.String(), nil
			}
		}
	}
	writeXMLElement(&b, DefaultXMLRoot, v)
	return b.String(), nil
}

func writeXMLElement(b *strings.Builder, name string, v any) {
	name = xmlName(name)
	switch t := v.(type) {
	case nil:
		fmt.Fprintf(b, "<%s/>", name)
	case []any:
		for _, item := range t {
			writeXMLElement(b, name, item)
		}
	case map[string]any:
		b.WriteString("<" + name)
		for _, k := range SortedKeys(t) {
			if strings.HasPrefix(k, AttrPrefix) {
				fmt.Fprintf(b, " %s=\"%s\"", xmlName(k[len(AttrPrefix):]), attrEscaper.Replace(Stringify(t[k])))
			}
		}
		b.WriteString(">")
		if text, ok := t[TextKey]; ok {
			b.WriteString(textEscaper.Replace(Stringify(text)))
		}
		for _, k := range SortedKeys(t) {
			if strings.HasPrefix(k, AttrPrefix) || k == TextKey {
				continue
			}
			writeXMLElement(b, k, t[k])
		}
		fmt.Fprintf(b, "</%s>", name)
	default:
		fmt.Fprintf(b, "<%s>%s</%s>", name, textEscaper.Replace(Stringify(t)), name)
	}
}

var (
	textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	attrEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
)

// xmlName replaces characters that cannot appear in an element name with '_'
func xmlName(name string) string {
	if name == "" {
		return "_"
	}
	var b strings.Builder
	for i, r := range name {
		valid := r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(i > 0 && (r == '-' || r == '.' || (r >= '0' && r <= '9')))
		if !valid {
			if i == 0 && ((r >= '0' && r <= '9') || r == '-' || r == '.') {
				b.WriteByte('_')
				b.WriteRune(r)
				continue
			}
			b.WriteByte('_')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
