package broadcast

import (
	"html"
)

// Sanitize walks decoded JSON and HTML-escapes every string, map keys included.
// Escaping is injective, so no text is dropped and distinct keys stay distinct.
func Sanitize(v any) any {
	switch t := v.(type) {
	case string:
		return html.EscapeString(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[html.EscapeString(k)] = Sanitize(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = Sanitize(val)
		}
		return out
	default:
		return v
	}
}
