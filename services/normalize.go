package services

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// NormalizeText cleans a provider string: non-breaking spaces become regular
// spaces, runs of whitespace collapse to one, leading/trailing space is
// trimmed. Product names from the provider routinely carry U+00A0 padding.
func NormalizeText(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = whitespaceRun.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// NormalizeTree walks a decoded JSON value and applies NormalizeText to every
// string leaf. Arrays and objects are rebuilt; all other types pass through
// unchanged.
func NormalizeTree(v interface{}) interface{} {
	switch node := v.(type) {
	case []interface{}:
		out := make([]interface{}, len(node))
		for i, item := range node {
			out[i] = NormalizeTree(item)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(node))
		for k, item := range node {
			out[k] = NormalizeTree(item)
		}
		return out
	case string:
		return NormalizeText(node)
	}
	return v
}

// SafeFloat coerces a heterogeneous provider value to *float64. nil input and
// unparseable values both come back nil, never NaN and never 0 — downstream
// selection must skip absent values, not treat them as zero.
func SafeFloat(v interface{}) *float64 {
	switch n := v.(type) {
	case nil:
		return nil
	case float64:
		return &n
	case float32:
		f := float64(n)
		return &f
	case int:
		f := float64(n)
		return &f
	case int64:
		f := float64(n)
		return &f
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return nil
		}
		return &f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return nil
		}
		return &f
	case bool:
		// The provider never encodes numbers as booleans; treat as no data.
		return nil
	}
	return nil
}
