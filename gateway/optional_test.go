package gateway

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeOptional[T Scalar](t *testing.T, raw string) Optional[T] {
	t.Helper()
	var out struct {
		V Optional[T] `json:"v"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"v":`+raw+`}`), &out))
	return out.V
}

func TestOptionalInt(t *testing.T) {
	tests := []struct {
		raw   string
		want  int64
		valid bool
	}{
		{`12`, 12, true},
		{`"12"`, 12, true},
		{`" 42 "`, 42, true},
		{`"0x1F"`, 31, true},
		{`"12.0"`, 12, true},
		{`"-101 dBm"`, -101, true},
		{`12.5`, 0, false},
		{`"N/A"`, 0, false},
		{`""`, 0, false},
		{`null`, 0, false},
		{`{}`, 0, false},
		{`[1]`, 0, false},
		{`true`, 0, false},
	}
	for _, tt := range tests {
		got := decodeOptional[int64](t, tt.raw)
		v, ok := got.Get()
		assert.Equal(t, tt.valid, ok, tt.raw)
		assert.Equal(t, tt.want, v, tt.raw)
	}
}

func TestOptionalFloat(t *testing.T) {
	tests := []struct {
		raw   string
		want  float64
		valid bool
	}{
		{`-95.5`, -95.5, true},
		{`"-95.5"`, -95.5, true},
		{`"8 dB"`, 8, true},
		{`"NaN"`, 0, false},
		{`"Inf"`, 0, false},
		{`"null"`, 0, false},
		{`false`, 0, false},
	}
	for _, tt := range tests {
		got := decodeOptional[float64](t, tt.raw)
		v, ok := got.Get()
		assert.Equal(t, tt.valid, ok, tt.raw)
		assert.Equal(t, tt.want, v, tt.raw)
	}
}

func TestOptionalBool(t *testing.T) {
	tests := []struct {
		raw   string
		want  bool
		valid bool
	}{
		{`true`, true, true},
		{`"true"`, true, true},
		{`1`, true, true},
		{`"0"`, false, true},
		{`"Yes"`, true, true},
		{`"off"`, false, true},
		{`"enabled"`, true, true},
		{`"maybe"`, false, false},
		{`2`, false, false},
	}
	for _, tt := range tests {
		got := decodeOptional[bool](t, tt.raw)
		v, ok := got.Get()
		assert.Equal(t, tt.valid, ok, tt.raw)
		assert.Equal(t, tt.want, v, tt.raw)
	}
}

func TestOptionalString(t *testing.T) {
	assert.Equal(t, "123", decodeOptional[string](t, `123`).Or(""))
	assert.Equal(t, "true", decodeOptional[string](t, `true`).Or(""))
	assert.Equal(t, "", decodeOptional[string](t, `""`).Or("x"))
	assert.False(t, decodeOptional[string](t, `null`).Valid())
	assert.False(t, decodeOptional[string](t, `{"a":1}`).Valid())
}

func TestOptionalMarshal(t *testing.T) {
	type payload struct {
		A Optional[int64]  `json:"a,omitzero"`
		B Optional[string] `json:"b,omitzero"`
		C Optional[bool]   `json:"c,omitzero"`
		D Optional[bool]   `json:"d"`
	}
	data, err := json.Marshal(payload{A: Some[int64](0), C: Some(false)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":0,"c":false,"d":null}`, string(data))

	var o Optional[float64]
	assert.True(t, o.IsZero())
	assert.Equal(t, 1.5, o.Or(1.5))
	assert.False(t, Some(2.0).IsZero())
}

func TestFormatInt(t *testing.T) {
	assert.Equal(t, "520110", formatInt(Some[int64](520110)).Or(""))
	assert.False(t, formatInt(Optional[int64]{}).Valid())
}

func TestNormalizeBand(t *testing.T) {
	tests := map[string]string{
		"B66":   "b66",
		"b 66":  "b66",
		"N41":   "n41",
		"71":    "b71",
		" ":     "",
		"LTE":   "lte",
		"n 258": "n258",
	}
	for in, want := range tests {
		assert.Equal(t, want, normalizeBand(in), in)
	}
}

func TestStripTrailingCommas(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{`{"a":1,}`, `{"a":1}`},
		{`[1, 2, ]`, `[1, 2 ]`},
		{`{"a":[1,2,],"b":{"c":3,},}`, `{"a":[1,2],"b":{"c":3}}`},
		{`{"a":"x,}",}`, `{"a":"x,}"}`},
		{`{"a":"\",]",}`, `{"a":"\",]"}`},
		{`{"a":",","b":2}`, `{"a":",","b":2}`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, string(stripTrailingCommas([]byte(tt.in))), tt.in)
	}
}
