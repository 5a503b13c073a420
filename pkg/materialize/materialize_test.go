package materialize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeJSON(t *testing.T) {
	row := Entity{
		"foo":      "bar",
		"baz":      "buzz",
		"JSON:meh": `{"x":"a","y":"b","z":"c"}`,
		"JSON:raw": []byte(`[1,2]`),
		"JSON:nil": nil,
	}

	got, err := DecodeJSON(row)
	require.NoError(t, err)

	assert.Equal(t, Entity{
		"foo": "bar",
		"baz": "buzz",
		"meh": map[string]any{"x": "a", "y": "b", "z": "c"},
		"raw": []any{float64(1), float64(2)},
		"nil": nil,
	}, got)
	assert.Contains(t, row, "JSON:meh", "input must not be modified")
}

func TestDecodeJSON_PrefixedColumnWins(t *testing.T) {
	got, err := DecodeJSON(Entity{"meh": "plain", "JSON:meh": `true`})
	require.NoError(t, err)
	assert.Equal(t, Entity{"meh": true}, got)
}

func TestDecodeJSON_Error(t *testing.T) {
	_, err := DecodeJSON(Entity{"JSON:meh": `{"x":`})
	require.Error(t, err)

	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, "JSON:meh", decodeErr.Key)
	assert.Equal(t, `{"x":`, decodeErr.Value)
	assert.True(t, IsDecodeErr(err))
	assert.Contains(t, err.Error(), "could not parse value")
	assert.Contains(t, err.Error(), `{"x":`)
}

func TestNest(t *testing.T) {
	row := Entity{
		"foo.bar.baz":  "blah",
		"foo.bar.buzz": "blahblah",
		"foo.bar.meh":  "blahblahblah",
		"bar":          "bleh",
		"moo.foo":      "blehbleh",
		"moo.boo":      "blehblehbleh",
	}

	assert.Equal(t, Entity{
		"foo": map[string]any{
			"bar": map[string]any{
				"baz":  "blah",
				"buzz": "blahblah",
				"meh":  "blahblahblah",
			},
		},
		"bar": "bleh",
		"moo": map[string]any{
			"foo": "blehbleh",
			"boo": "blehblehbleh",
		},
	}, Nest(row))
}

func TestNest_PathReplacesScalar(t *testing.T) {
	got := Nest(Entity{"a": 1, "a.b": 2})
	assert.Equal(t, Entity{"a": map[string]any{"b": 2}}, got)
}

func TestCollapse(t *testing.T) {
	row := Entity{
		"foo": map[string]any{
			"bar": map[string]any{
				"baz": map[string]any{},
			},
		},
		"bar": "bleh",
		"moo": map[string]any{
			"foo": map[string]any{},
			"boo": map[string]any{"blah": "bleh"},
		},
		"boo": map[string]any{},
	}

	assert.Equal(t, Entity{
		"foo": nil,
		"bar": "bleh",
		"moo": map[string]any{
			"foo": nil,
			"boo": map[string]any{"blah": "bleh"},
		},
		"boo": nil,
	}, Collapse(row))
}

func TestCollapse_FalsyID(t *testing.T) {
	row := Entity{
		"x": map[string]any{"y": nil},
		"z": map[string]any{"id": 0, "name": "n"},
		"w": map[string]any{"id": int64(3), "name": nil},
	}

	assert.Equal(t, Entity{
		"x": nil,
		"z": nil,
		"w": map[string]any{"id": int64(3), "name": nil},
	}, Collapse(row))
}

func TestCollapse_KeepsTopLevelRow(t *testing.T) {
	assert.Equal(t, Entity{"id": nil, "name": nil}, Collapse(Entity{"id": nil, "name": nil}))
	assert.Equal(t, Entity{}, Collapse(Entity{}))
}

func TestNullify(t *testing.T) {
	tests := []struct {
		name  string
		input map[string]any
		null  bool
	}{
		{"empty", map[string]any{}, true},
		{"all nil", map[string]any{"a": nil, "b": nil}, true},
		{"nil id", map[string]any{"id": nil, "a": 1}, true},
		{"zero id", map[string]any{"id": 0, "a": 1}, true},
		{"zero float id", map[string]any{"id": 0.0}, true},
		{"empty string id", map[string]any{"id": "", "a": 1}, true},
		{"false id", map[string]any{"id": false}, true},
		{"string id", map[string]any{"id": "0"}, false},
		{"value", map[string]any{"a": 0}, false},
		{"nested empty", map[string]any{"a": map[string]any{"b": nil}}, true},
		{"slice", map[string]any{"a": []any{}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Nullify(tt.input)
			if tt.null {
				assert.Nil(t, got)
			} else {
				assert.NotNil(t, got)
			}
		})
	}
}

func TestRow(t *testing.T) {
	row := Entity{
		"id":             int64(1),
		"title":          "Hello",
		"author.id":      int64(7),
		"author.name":    "Ann",
		"editor.id":      nil,
		"editor.name":    nil,
		"JSON:tags":      `["go","sql"]`,
		"JSON:meta.seen": `{"count":2}`,
	}

	got, err := Row(row)
	require.NoError(t, err)

	assert.Equal(t, Entity{
		"id":     int64(1),
		"title":  "Hello",
		"author": map[string]any{"id": int64(7), "name": "Ann"},
		"editor": nil,
		"tags":   []any{"go", "sql"},
		"meta":   map[string]any{"seen": map[string]any{"count": float64(2)}},
	}, got)
}

func TestAll_AbortsOnFailure(t *testing.T) {
	rows := []Entity{{"a": 1}, {"JSON:b": "nope"}}

	got, err := All(rows)
	require.Error(t, err)
	assert.Nil(t, got)
	assert.Contains(t, err.Error(), "row 1")
	assert.True(t, IsDecodeErr(err))

	got, err = All(nil)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}
