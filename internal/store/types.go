package store

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// JSONMap binds a Go map to a JSON(B) column and back. A nil map scans from
// and values as SQL NULL -- the spec is explicit that NULL-valued columns
// must emit true SQL NULL, never the literal string "NULL" the original
// Python implementation sometimes wrote (scheduler/helpers/db.py's
// handle_null patchwork).
type JSONMap map[string]any

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(map[string]any(m))
	if err != nil {
		return nil, fmt.Errorf("jsonmap: marshal: %w", err)
	}
	return string(b), nil
}

func (m *JSONMap) Scan(src any) error {
	if src == nil {
		*m = nil
		return nil
	}
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("jsonmap: unsupported scan type %T", src)
	}
	if len(raw) == 0 {
		*m = nil
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("jsonmap: unmarshal: %w", err)
	}
	*m = out
	return nil
}

// TagSet binds an ordered sequence of strings to a Postgres TEXT[] column
// (or, on the SQLite test backend, a TEXT column holding the same literal),
// round-tripping through Postgres's own array-literal syntax -- the same
// "{a,b,c}" format scheduler/models/job.py builds by hand, just produced and
// parsed through database/sql's Valuer/Scanner hooks instead of being glued
// into the query string.
type TagSet []string

func (t TagSet) Value() (driver.Value, error) {
	if t == nil {
		return nil, nil
	}
	elems := make([]string, len(t))
	for i, tag := range t {
		elems[i] = quoteArrayElement(tag)
	}
	return "{" + strings.Join(elems, ",") + "}", nil
}

func (t *TagSet) Scan(src any) error {
	if src == nil {
		*t = nil
		return nil
	}
	var raw string
	switch v := src.(type) {
	case []byte:
		raw = string(v)
	case string:
		raw = v
	default:
		return fmt.Errorf("tagset: unsupported scan type %T", src)
	}
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "{}" {
		*t = TagSet{}
		return nil
	}
	if len(raw) < 2 || raw[0] != '{' || raw[len(raw)-1] != '}' {
		return fmt.Errorf("tagset: malformed array literal %q", raw)
	}
	body := raw[1 : len(raw)-1]
	if body == "" {
		*t = TagSet{}
		return nil
	}
	// Split on commas outside double quotes, skipping backslash-escaped
	// bytes inside a quoted element.
	var parts []string
	start, inQuote := 0, false
	for i := 0; i < len(body); i++ {
		switch {
		case inQuote && body[i] == '\\':
			i++
		case body[i] == '"':
			inQuote = !inQuote
		case body[i] == ',' && !inQuote:
			parts = append(parts, body[start:i])
			start = i + 1
		}
	}
	parts = append(parts, body[start:])
	out := make(TagSet, len(parts))
	for i, p := range parts {
		out[i] = unquoteArrayElement(p)
	}
	*t = out
	return nil
}

func quoteArrayElement(s string) string {
	if s == "" {
		return `""`
	}
	needsQuote := strings.ContainsAny(s, `,{}"\ `)
	if !needsQuote {
		return s
	}
	escaped := strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
	return `"` + escaped + `"`
}

func unquoteArrayElement(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		inner := s[1 : len(s)-1]
		return strings.NewReplacer(`\"`, `"`, `\\`, `\`).Replace(inner)
	}
	return s
}
