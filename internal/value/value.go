package value

import (
	"fmt"
	"math"
	"slices"
	"time"
	"unicode/utf16"
)

// Value is a sealed interface over the scalar types a column can hold.
// Only Null, String, Int, Float and Bool implement it.
type Value interface {
	value()
}

// Null is an explicit SQL NULL.
type Null struct{}

func (Null) value() {}

// String is a TEXT column value.
type String string

func (String) value() {}

// Int is an INTEGER column value.
type Int int64

func (Int) value() {}

// Float is a REAL column value. NaN and infinities are rejected on encode.
type Float float64

func (Float) value() {}

// Bool is a BOOLEAN column value.
type Bool bool

func (Bool) value() {}

// Object is one row (or a partial row) keyed by column name.
// Use SortedKeys for deterministic iteration.
type Object map[string]Value

// SortedKeys returns keys in RFC 8785 order (UTF-16 code units).
func (o Object) SortedKeys() []string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeys)
	return keys
}

// Has reports whether the column was supplied, even as Null.
func (o Object) Has(key string) bool {
	_, ok := o[key]
	return ok
}

// Clone returns a shallow copy. Values are immutable so that is enough.
func (o Object) Clone() Object {
	out := make(Object, len(o))
	for k, v := range o {
		out[k] = v
	}
	return out
}

// Without returns a copy with the given keys removed.
func (o Object) Without(keys ...string) Object {
	out := o.Clone()
	for _, k := range keys {
		delete(out, k)
	}
	return out
}

// Pick returns a copy holding only the given keys that are present.
func (o Object) Pick(keys ...string) Object {
	out := make(Object, len(keys))
	for _, k := range keys {
		if v, ok := o[k]; ok {
			out[k] = v
		}
	}
	return out
}

// Int returns the integer stored under key.
func (o Object) Int(key string) (int64, bool) {
	switch v := o[key].(type) {
	case Int:
		return int64(v), true
	case Float:
		f := float64(v)
		if f == math.Trunc(f) {
			return int64(f), true
		}
	}
	return 0, false
}

// Float returns the number stored under key as float64.
func (o Object) Float(key string) (float64, bool) {
	switch v := o[key].(type) {
	case Float:
		return float64(v), true
	case Int:
		return float64(v), true
	}
	return 0, false
}

// String returns the text stored under key. Null and absent both report false.
func (o Object) String(key string) (string, bool) {
	if v, ok := o[key].(String); ok {
		return string(v), true
	}
	return "", false
}

// Bool returns the boolean stored under key. Integers 0/1 are accepted
// because SQLite has no native boolean storage class.
func (o Object) Bool(key string) (bool, bool) {
	switch v := o[key].(type) {
	case Bool:
		return bool(v), true
	case Int:
		return v != 0, true
	}
	return false, false
}

// IsNull reports whether key is present and explicitly Null.
func (o Object) IsNull(key string) bool {
	_, ok := o[key].(Null)
	return ok
}

// Equal compares two objects column by column.
func (o Object) Equal(other Object) bool {
	if len(o) != len(other) {
		return false
	}
	for k, v := range o {
		w, ok := other[k]
		if !ok || !Equal(v, w) {
			return false
		}
	}
	return true
}

// Equal compares two values. Int and Float compare numerically so a REAL
// column read back as 1.0 still equals Int(1).
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case Int:
		switch bv := b.(type) {
		case Int:
			return av == bv
		case Float:
			return float64(av) == float64(bv)
		}
		return false
	case Float:
		switch bv := b.(type) {
		case Float:
			return av == bv
		case Int:
			return float64(av) == float64(bv)
		}
		return false
	case Bool:
		switch bv := b.(type) {
		case Bool:
			return av == bv
		case Int:
			return (bv != 0) == bool(av)
		}
		return false
	default:
		return a == b
	}
}

// Of converts a Go value into a Value.
func Of(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case string:
		return String(val), nil
	case *string:
		if val == nil {
			return Null{}, nil
		}
		return String(*val), nil
	case int:
		return Int(val), nil
	case int32:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case float32:
		return Float(val), nil
	case float64:
		return Float(val), nil
	case bool:
		return Bool(val), nil
	case time.Time:
		return String(FormatTime(val)), nil
	default:
		return nil, fmt.Errorf("unsupported value type: %T", v)
	}
}

// FromDriver converts a value scanned by database/sql into a Value.
func FromDriver(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case int64:
		return Int(val), nil
	case float64:
		return Float(val), nil
	case bool:
		return Bool(val), nil
	case string:
		return String(val), nil
	case []byte:
		return String(string(val)), nil
	case time.Time:
		return String(FormatTime(val)), nil
	default:
		return nil, fmt.Errorf("unsupported driver value: %T", v)
	}
}

// ToDriver converts a Value into an argument for database/sql.
func ToDriver(v Value) any {
	switch val := v.(type) {
	case String:
		return string(val)
	case Int:
		return int64(val)
	case Float:
		return float64(val)
	case Bool:
		return bool(val)
	default:
		return nil
	}
}

// TimeLayout is the text form used for created_at/updated_at columns.
const TimeLayout = time.RFC3339Nano

// FormatTime renders t in UTC using TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime parses a timestamp written by FormatTime.
func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(TimeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}

// compareKeys orders strings by UTF-16 code units as RFC 8785 requires.
// Go's native string comparison is by UTF-8 bytes and differs above U+FFFF.
func compareKeys(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))
	return slices.Compare(a16, b16)
}
