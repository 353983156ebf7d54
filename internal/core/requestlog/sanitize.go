package requestlog

import (
	"net/http"
	"strings"
)

// RedactionMarker replaces sensitive values. Values are replaced, never
// omitted, so the snapshot keeps the original shape.
const RedactionMarker = "[REDACTED]"

func defaultRedactedHeaders() []string {
	return []string{"authorization", "cookie", "set-cookie", "x-api-key", "proxy-authorization"}
}

func defaultRedactedFields() []string {
	return []string{"password", "secret", "token", "api_key", "apikey", "access_token", "refresh_token"}
}

type denylist map[string]struct{}

func newDenylist(names []string) denylist {
	d := make(denylist, len(names))
	for _, name := range names {
		d[strings.ToLower(name)] = struct{}{}
	}
	return d
}

func (d denylist) matches(name string) bool {
	_, ok := d[strings.ToLower(name)]
	return ok
}

// sanitizeHeaders flattens headers into a map, redacting denylisted names.
func sanitizeHeaders(headers http.Header, deny denylist) map[string]string {
	out := make(map[string]string, len(headers))
	for name, values := range headers {
		if deny.matches(name) {
			out[name] = RedactionMarker
			continue
		}
		out[name] = strings.Join(values, ", ")
	}
	return out
}

// sanitizeBody walks a decoded JSON document and redacts denylisted field
// names at any nesting depth.
func sanitizeBody(value any, deny denylist) any {
	switch typed := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, val := range typed {
			if deny.matches(key) {
				out[key] = RedactionMarker
				continue
			}
			out[key] = sanitizeBody(val, deny)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i, val := range typed {
			out[i] = sanitizeBody(val, deny)
		}
		return out
	default:
		return value
	}
}
