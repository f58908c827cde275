package payload

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// DecodeQuery parses a query string. A leading '?' is ignored, repeated keys
// collect into an array in order, and keys ending in "[]" always produce an
// array. Values are strings; keys are not split on dots.
func DecodeQuery(s string) (any, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "?")
	out := make(map[string]any)
	if s == "" {
		return out, nil
	}

	for _, pair := range strings.Split(s, "&") {
		if pair == "" {
			continue
		}
		rawKey, rawValue, _ := strings.Cut(pair, "=")
		key, err := url.QueryUnescape(rawKey)
		if err != nil {
			return nil, fmt.Errorf("invalid query string key %q: %w", rawKey, err)
		}
		value, err := url.QueryUnescape(rawValue)
		if err != nil {
			return nil, fmt.Errorf("invalid query string value for %q: %w", key, err)
		}

		forceArray := strings.HasSuffix(key, "[]")
		key = strings.TrimSuffix(key, "[]")

		existing, seen := out[key]
		switch {
		case !seen && forceArray:
			out[key] = []any{value}
		case !seen:
			out[key] = value
		default:
			if arr, ok := existing.([]any); ok {
				out[key] = append(arr, value)
			} else {
				out[key] = []any{existing, value}
			}
		}
	}
	return out, nil
}

type queryPair struct {
	key   string
	value string
}

// EncodeQuery renders an object as a query string. Nested objects flatten to
// dotted keys, arrays repeat their key once per element, containers inside
// arrays render as compact JSON, and null renders as an empty value. Pairs are
// sorted by key (stable, so array order is kept) and percent-encoded with
// form encoding, where a space becomes '+'.
func EncodeQuery(v any) (string, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return "", fmt.Errorf("query output requires an object at the top level, got %s", TypeName(v))
	}

	pairs := make([]queryPair, 0, len(obj))
	flattenQuery("", obj, &pairs)
	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].key < pairs[j].key })

	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = url.QueryEscape(p.key) + "=" + url.QueryEscape(p.value)
	}
	return strings.Join(parts, "&"), nil
}

func flattenQuery(prefix string, obj map[string]any, pairs *[]queryPair) {
	for _, k := range SortedKeys(obj) {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch t := obj[k].(type) {
		case map[string]any:
			flattenQuery(key, t, pairs)
		case []any:
			for _, item := range t {
				*pairs = append(*pairs, queryPair{key: key, value: Stringify(item)})
			}
		default:
			*pairs = append(*pairs, queryPair{key: key, value: Stringify(t)})
		}
	}
}
