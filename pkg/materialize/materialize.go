// Package materialize reshapes flat result rows into nested entities.
//
// A row goes through three steps:
//
//  1. DecodeJSON parses columns aliased "JSON:<name>" and stores the decoded
//     value under <name>.
//  2. Nest expands dotted column names ("author.name") into nested maps.
//  3. Collapse replaces nested maps that carry no data with nil, so a LEFT
//     JOIN that matched nothing yields author: nil instead of a map of nils.
package materialize

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/goccy/go-json"
)

// Column naming conventions.
const (
	// JSONPrefix marks a column whose value is JSON text.
	JSONPrefix = "JSON:"
	// PathSeparator separates the segments of a nested column name.
	PathSeparator = "."
	// IDField is the field whose falsy value marks an entity as absent.
	IDField = "id"
)

// Entity is a materialized row or nested object.
type Entity = map[string]any

// ErrJSONDecode is wrapped by every DecodeError.
var ErrJSONDecode = errors.New("materialize: could not parse value")

// DecodeError reports a JSON column that failed to parse.
type DecodeError struct {
	Key   string
	Value string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("materialize: could not parse value of %q:\n%s\n%v", e.Key, e.Value, e.Err)
}

// Unwrap returns ErrJSONDecode and the parser error.
func (e *DecodeError) Unwrap() []error {
	return []error{ErrJSONDecode, e.Err}
}

// IsDecodeErr reports whether err is or wraps a JSON decode failure.
func IsDecodeErr(err error) bool {
	return errors.Is(err, ErrJSONDecode)
}

// DecodeJSON returns a copy of row in which every JSONPrefix column is
// replaced by its decoded value under the unprefixed name. NULL columns decode
// to nil.
func DecodeJSON(row Entity) (Entity, error) {
	out := make(Entity, len(row))
	for k, v := range row {
		if !strings.HasPrefix(k, JSONPrefix) {
			if _, taken := out[k]; !taken {
				out[k] = v
			}
			continue
		}
		decoded, err := decodeValue(k, v)
		if err != nil {
			return nil, err
		}
		out[strings.TrimPrefix(k, JSONPrefix)] = decoded
	}
	return out, nil
}

func decodeValue(key string, v any) (any, error) {
	var data []byte
	switch v := v.(type) {
	case nil:
		return nil, nil
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		// Already decoded by the driver.
		return v, nil
	}
	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, &DecodeError{Key: key, Value: string(data), Err: err}
	}
	return decoded, nil
}

// Nest expands dotted keys into nested maps:
//
//	{"a.b": 1, "a.c": 2, "d": 3} -> {"a": {"b": 1, "c": 2}, "d": 3}
//
// Keys are applied in sorted order. When a key is both a value and a path
// prefix ("a" and "a.b"), the nested map wins.
func Nest(row Entity) Entity {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(Entity, len(row))
	for _, k := range keys {
		setPath(out, strings.Split(k, PathSeparator), row[k])
	}
	return out
}

func setPath(m map[string]any, path []string, value any) {
	for _, segment := range path[:len(path)-1] {
		next, ok := m[segment].(map[string]any)
		if !ok {
			next = make(map[string]any)
			m[segment] = next
		}
		m = next
	}
	last := path[len(path)-1]
	if _, isMap := m[last].(map[string]any); isMap {
		return
	}
	m[last] = value
}

// Collapse nullifies every nested map of row. The row itself is never
// replaced.
func Collapse(row Entity) Entity {
	for k, v := range row {
		if m, ok := v.(map[string]any); ok {
			row[k] = Nullify(m)
		}
	}
	return row
}

// Nullify returns nil for a map that carries no data and the map otherwise.
//
// A map carries no data when it has an id field with a falsy value, or when
// every field is nil once nested maps have been nullified. An empty map
// carries no data.
func Nullify(m map[string]any) any {
	if id, ok := m[IDField]; ok && isFalsy(id) {
		return nil
	}
	empty := true
	for k, v := range m {
		if nested, ok := v.(map[string]any); ok {
			v = Nullify(nested)
			m[k] = v
		}
		if v != nil {
			empty = false
		}
	}
	if empty {
		return nil
	}
	return m
}

func isFalsy(v any) bool {
	switch v := v.(type) {
	case nil:
		return true
	case bool:
		return !v
	case string:
		return v == ""
	case []byte:
		return len(v) == 0
	case int:
		return v == 0
	case int8:
		return v == 0
	case int16:
		return v == 0
	case int32:
		return v == 0
	case int64:
		return v == 0
	case uint:
		return v == 0
	case uint8:
		return v == 0
	case uint16:
		return v == 0
	case uint32:
		return v == 0
	case uint64:
		return v == 0
	case float32:
		return v == 0 || v != v
	case float64:
		return v == 0 || v != v
	}
	return false
}

// Row runs the full pipeline on one flat row.
func Row(row Entity) (Entity, error) {
	decoded, err := DecodeJSON(row)
	if err != nil {
		return nil, err
	}
	return Collapse(Nest(decoded)), nil
}

// All materializes every row. The first failure aborts the whole batch.
func All(rows []Entity) ([]Entity, error) {
	out := make([]Entity, 0, len(rows))
	for i, row := range rows {
		m, err := Row(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out = append(out, m)
	}
	return out, nil
}
