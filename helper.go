// File: lixenwraith/registry/helper.go
package registry

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
)

// flattenMap converts a nested map[string]any to a flat map with dot-notation keys.
// Leaf values are rendered with stringifyValue.
func flattenMap(nested map[string]any, prefix string) map[string]string {
	flat := make(map[string]string)

	for key, value := range nested {
		newPath := key
		if prefix != "" {
			newPath = prefix + "." + key
		}

		switch v := value.(type) {
		case map[string]any:
			for subPath, subValue := range flattenMap(v, newPath) {
				flat[subPath] = subValue
			}
		case map[any]any:
			// yaml.v3 decodes non-string keys into map[any]any
			converted := make(map[string]any, len(v))
			for k, val := range v {
				converted[fmt.Sprint(k)] = val
			}
			for subPath, subValue := range flattenMap(converted, newPath) {
				flat[subPath] = subValue
			}
		default:
			flat[newPath] = stringifyValue(value)
		}
	}

	return flat
}

// stringifyValue renders a decoded file value as the raw string a source serves.
// Arrays become comma separated lists.
func stringifyValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, stringifyValue(item))
		}
		return strings.Join(parts, ",")
	case []string:
		return strings.Join(v, ",")
	default:
		return fmt.Sprint(v)
	}
}

// setNestedValue sets a value in a nested map using a dot-notation path.
// It creates intermediate maps if they don't exist.
// If a segment exists but is not a map, it will be overwritten by a new map.
func setNestedValue(nested map[string]any, path string, value any) {
	segments := strings.Split(path, ".")
	current := nested

	for i := 0; i < len(segments)-1; i++ {
		segment := segments[i]

		next, exists := current[segment]
		if nextMap, isMap := next.(map[string]any); exists && isMap {
			current = nextMap
			continue
		}
		newMap := make(map[string]any)
		current[segment] = newMap
		current = newMap
	}

	current[segments[len(segments)-1]] = value
}

// cloneDocument deep-copies the tables of a decoded document. Tables decoded as
// map[any]any are normalized to map[string]any.
func cloneDocument(doc map[string]any) map[string]any {
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		out[k] = cloneDocumentValue(v)
	}
	return out
}

func cloneDocumentValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		return cloneDocument(v)
	case map[any]any:
		converted := make(map[string]any, len(v))
		for k, val := range v {
			converted[fmt.Sprint(k)] = cloneDocumentValue(val)
		}
		return converted
	case []any:
		items := make([]any, len(v))
		for i, item := range v {
			items[i] = cloneDocumentValue(item)
		}
		return items
	default:
		return value
	}
}

// setDocumentValue replaces the leaf at a dotted path. Intermediate tables are
// created as needed; a path running through a leaf, or ending on a table, is
// rejected so no existing value is lost.
func setDocumentValue(doc map[string]any, path, value string) error {
	segments := strings.Split(path, ".")
	current := doc

	for i, segment := range segments[:len(segments)-1] {
		next, exists := current[segment]
		if !exists {
			table := make(map[string]any)
			current[segment] = table
			current = table
			continue
		}
		table, isTable := next.(map[string]any)
		if !isTable {
			return fmt.Errorf("%q holds a value, not a table", strings.Join(segments[:i+1], "."))
		}
		current = table
	}

	leaf := segments[len(segments)-1]
	old, exists := current[leaf]
	if _, isTable := old.(map[string]any); exists && isTable {
		return fmt.Errorf("%q is a table", path)
	}
	current[leaf] = coerceLike(old, value)
	return nil
}

// coerceLike converts value to the type of the leaf it replaces when the
// result still reads back as value; otherwise the string is kept.
func coerceLike(old any, value string) any {
	var typed any
	switch o := old.(type) {
	case bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return value
		}
		typed = b
	case int:
		n, err := strconv.Atoi(value)
		if err != nil {
			return value
		}
		typed = n
	case int64:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return value
		}
		typed = n
	case uint64:
		n, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return value
		}
		typed = n
	case float64:
		n, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return value
		}
		typed = n
	case json.Number:
		var n float64
		if err := json.Unmarshal([]byte(value), &n); err != nil {
			return value
		}
		typed = json.Number(value)
	case []any:
		parts := strings.Split(value, ",")
		items := make([]any, len(parts))
		for i, part := range parts {
			if len(o) > 0 {
				items[i] = coerceLike(o[0], part)
			} else {
				items[i] = part
			}
		}
		typed = items
	default:
		return value
	}
	if stringifyValue(typed) != value {
		return value
	}
	return typed
}

// nestFlat rebuilds a nested map from dotted keys. When a key is both a leaf
// and a table prefix ("a" and "a.b"), the table wins and the leaf is dropped.
func nestFlat(flat map[string]string) map[string]any {
	nested := make(map[string]any)
	keys := sortedKeys(flat)
	for _, k := range keys {
		setNestedValue(nested, k, flat[k])
	}
	return nested
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}

// validateKey checks that every dot-separated segment is a valid bare key
func validateKey(key string) error {
	if key == "" {
		return fmt.Errorf("key cannot be empty")
	}
	for _, segment := range strings.Split(key, ".") {
		if !isValidKeySegment(segment) {
			return fmt.Errorf("invalid key segment %q", segment)
		}
	}
	return nil
}

// isValidKeySegment checks if a single path segment is a valid TOML key part.
func isValidKeySegment(s string) bool {
	if len(s) == 0 {
		return false
	}
	// TOML bare keys are sequences of ASCII letters, ASCII digits, underscores, and dashes (A-Za-z0-9_-).
	for _, r := range s {
		isLetter := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		isDigit := r >= '0' && r <= '9'
		if !(isLetter || isDigit || r == '_' || r == '-') {
			return false
		}
	}
	return true
}
