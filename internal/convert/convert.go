// Package convert translates between the storage layer's snake_case key
// convention and the application's camelCase one. The transform is applied
// exactly once, at the storage adapter boundary.
package convert

import (
	"encoding/json"
	"strings"
	"unicode"
)

// SnakeToCamel recursively rewrites the keys of decoded JSON values
// (map[string]any, []any) from snake_case to camelCase. Non-container
// values are returned unchanged.
func SnakeToCamel(v any) any {
	return mapKeys(v, CamelKey)
}

// CamelToSnake recursively rewrites the keys of decoded JSON values from
// camelCase to snake_case.
func CamelToSnake(v any) any {
	return mapKeys(v, SnakeKey)
}

// opaqueKeys name columns whose contents are caller-defined JSON. Their
// nested keys are carried verbatim in both directions.
var opaqueKeys = map[string]bool{"metadata": true}

func mapKeys(v any, transform func(string) string) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			if opaqueKeys[k] {
				out[transform(k)] = inner
				continue
			}
			out[transform(k)] = mapKeys(inner, transform)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = mapKeys(inner, transform)
		}
		return out
	default:
		return v
	}
}

// CamelKey converts a single snake_case key to camelCase.
func CamelKey(key string) string {
	parts := strings.Split(key, "_")
	if len(parts) == 1 {
		return key
	}
	var b strings.Builder
	b.Grow(len(key))
	wrote := false
	for _, part := range parts {
		if part == "" {
			continue
		}
		if !wrote {
			b.WriteString(part)
			wrote = true
			continue
		}
		b.WriteString(strings.ToUpper(part[:1]))
		b.WriteString(part[1:])
	}
	if !wrote {
		return key
	}
	return b.String()
}

// SnakeKey converts a single camelCase key to snake_case.
func SnakeKey(key string) string {
	var b strings.Builder
	b.Grow(len(key) + 4)
	for i, r := range key {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// MarshalSnake marshals v and rewrites all keys to snake_case, producing the
// wire form the storage layer expects.
func MarshalSnake(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, err
	}
	return json.Marshal(CamelToSnake(decoded))
}

// UnmarshalCamel rewrites the keys of a snake_case payload to camelCase and
// unmarshals the result into dst.
func UnmarshalCamel(data []byte, dst any) error {
	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	converted, err := json.Marshal(SnakeToCamel(decoded))
	if err != nil {
		return err
	}
	return json.Unmarshal(converted, dst)
}
