package gateway

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Scalar is the set of value types a gateway field can carry.
type Scalar interface {
	int64 | float64 | bool | string
}

// Optional holds a value that a gateway may or may not report. The zero value
// is absent. Decoding never fails: JSON strings are parsed permissively into
// the target type and anything unparsable leaves the field absent.
type Optional[T Scalar] struct {
	value T
	set   bool
}

// Some returns a present Optional holding v.
func Some[T Scalar](v T) Optional[T] {
	return Optional[T]{value: v, set: true}
}

// Get returns the value and whether it is present.
func (o Optional[T]) Get() (T, bool) {
	return o.value, o.set
}

// Valid reports whether the value is present.
func (o Optional[T]) Valid() bool {
	return o.set
}

// Or returns the value, or def when absent.
func (o Optional[T]) Or(def T) T {
	if !o.set {
		return def
	}
	return o.value
}

// IsZero lets encoding/json omit absent values via omitzero.
func (o Optional[T]) IsZero() bool {
	return !o.set
}

// MarshalJSON implements json.Marshaler.
func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.set {
		return []byte("null"), nil
	}
	return json.Marshal(o.value)
}

// UnmarshalJSON implements json.Unmarshaler.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	*o = Optional[T]{}

	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	var v T
	if err := json.Unmarshal(data, &v); err == nil {
		*o = Some(v)
		return nil
	}

	// Objects and arrays never map onto a scalar.
	if data[0] == '{' || data[0] == '[' {
		return nil
	}

	raw := string(data)
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		raw = s
	}
	if v, ok := parseScalar[T](raw); ok {
		*o = Some(v)
	}
	return nil
}

// parseScalar converts raw gateway text into T.
func parseScalar[T Scalar](raw string) (T, bool) {
	var zero T
	var out any
	var ok bool

	switch any(zero).(type) {
	case int64:
		out, ok = parseInt(raw)
	case float64:
		out, ok = parseFloat(raw)
	case bool:
		out, ok = parseBool(raw)
	case string:
		out, ok = raw, true
	}
	if !ok {
		return zero, false
	}
	return out.(T), true
}

// formatInt renders an optional integer as a decimal string.
func formatInt(o Optional[int64]) Optional[string] {
	v, ok := o.Get()
	if !ok {
		return Optional[string]{}
	}
	return Some(strconv.FormatInt(v, 10))
}
