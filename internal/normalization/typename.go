package normalization

import "strings"

// unwrapTypeName flattens a Move TypeName value to its string form.
// Supported shapes: a plain string, {"name": "..."} and any nesting of
// {"fields": {...}} around those.
func unwrapTypeName(v any) (string, bool) {
	return unwrapTypeNameDepth(v, 0)
}

func unwrapTypeNameDepth(v any, depth int) (string, bool) {
	if depth > maxWrapDepth {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t), true
	case map[string]any:
		if name, ok := t["name"].(string); ok {
			return strings.TrimSpace(name), true
		}
		if inner, ok := t["fields"]; ok {
			return unwrapTypeNameDepth(inner, depth+1)
		}
	}
	return "", false
}
