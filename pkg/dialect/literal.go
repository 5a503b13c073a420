package dialect

import (
	"database/sql/driver"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// ErrUnsupportedValue is returned when a value has no SQL literal form.
var ErrUnsupportedValue = errors.New("dialect: unsupported value")

// literals holds the per-database pieces of literal rendering.
type literals struct {
	str   func(string) string
	bytes func([]byte) string
	time  string
}

// render converts v to a SQL literal. Slices and arrays other than []byte
// become comma separated lists, so they can be used inside IN (...).
func (l literals) render(v any) (string, error) {
	switch v := v.(type) {
	case nil:
		return "NULL", nil
	case string:
		return l.str(v), nil
	case []byte:
		if v == nil {
			return "NULL", nil
		}
		return l.bytes(v), nil
	case bool:
		if v {
			return "TRUE", nil
		}
		return "FALSE", nil
	case int:
		return strconv.FormatInt(int64(v), 10), nil
	case int8:
		return strconv.FormatInt(int64(v), 10), nil
	case int16:
		return strconv.FormatInt(int64(v), 10), nil
	case int32:
		return strconv.FormatInt(int64(v), 10), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case uint:
		return strconv.FormatUint(uint64(v), 10), nil
	case uint8:
		return strconv.FormatUint(uint64(v), 10), nil
	case uint16:
		return strconv.FormatUint(uint64(v), 10), nil
	case uint32:
		return strconv.FormatUint(uint64(v), 10), nil
	case uint64:
		return strconv.FormatUint(v, 10), nil
	case float32:
		return formatFloat(float64(v), 32)
	case float64:
		return formatFloat(v, 64)
	case time.Time:
		return l.str(v.Format(l.time)), nil
	case driver.Valuer:
		if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer && rv.IsNil() {
			return "NULL", nil
		}
		value, err := v.Value()
		if err != nil {
			return "", fmt.Errorf("dialect: value of %T: %w", v, err)
		}
		return l.render(value)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return "NULL", nil
		}
		return l.render(rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return "NULL", nil
		}
		items := make([]string, rv.Len())
		for i := range items {
			item, err := l.render(rv.Index(i).Interface())
			if err != nil {
				return "", err
			}
			items[i] = item
		}
		return strings.Join(items, ", "), nil
	case reflect.String:
		return l.str(rv.String()), nil
	case reflect.Bool:
		return l.render(rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return l.render(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return l.render(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return l.render(rv.Float())
	}
	return "", fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
}

func formatFloat(f float64, bits int) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", fmt.Errorf("%w: %v", ErrUnsupportedValue, f)
	}
	return strconv.FormatFloat(f, 'g', -1, bits), nil
}

// backslashString quotes s for MySQL, escaping with backslashes.
func backslashString(s string) string {
	var sb strings.Builder
	sb.Grow(len(s) + 2)
	sb.WriteByte('\'')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case 0:
			sb.WriteString(`\0`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\x1a':
			sb.WriteString(`\Z`)
		case '\'':
			sb.WriteString(`\'`)
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		default:
			sb.WriteByte(c)
		}
	}
	sb.WriteByte('\'')
	return sb.String()
}

// doubledString quotes s in standard SQL, doubling single quotes.
func doubledString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func hexBytes(b []byte) string {
	return "X'" + hexString(b) + "'"
}

func hexString(b []byte) string {
	return hex.EncodeToString(b)
}
