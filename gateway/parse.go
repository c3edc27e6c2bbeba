package gateway

import (
	"bytes"
	"math"
	"strconv"
	"strings"
)

// cleanNumeric trims whitespace and drops unit suffixes such as "dBm".
func cleanNumeric(v string) (string, bool) {
	v = strings.TrimSpace(v)
	if v == "" || strings.EqualFold(v, "N/A") || strings.EqualFold(v, "null") {
		return "", false
	}
	// Remove any units or suffixes
	v = strings.Fields(v)[0]
	return v, true
}

func parseFloat(v string) (float64, bool) {
	v, ok := cleanNumeric(v)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func parseInt(v string) (int64, bool) {
	v, ok := cleanNumeric(v)
	if !ok {
		return 0, false
	}
	// Handle hex values
	if strings.HasPrefix(v, "0x") || strings.HasPrefix(v, "0X") {
		if i, err := strconv.ParseInt(v[2:], 16, 64); err == nil {
			return i, true
		}
		return 0, false
	}
	if i, err := strconv.ParseInt(v, 10, 64); err == nil {
		return i, true
	}
	// Whole numbers sometimes arrive as "12.0".
	if f, err := strconv.ParseFloat(v, 64); err == nil && f == math.Trunc(f) && math.Abs(f) < math.MaxInt64 {
		return int64(f), true
	}
	return 0, false
}

func parseBool(v string) (bool, bool) {
	v = strings.TrimSpace(v)
	switch strings.ToLower(v) {
	case "yes", "on", "enabled":
		return true, true
	case "no", "off", "disabled":
		return false, true
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}

// normalizeBand turns gateway band labels like "B66", "b 66" or "N41" into
// the "b66" / "n41" form used by the unified API.
func normalizeBand(value string) string {
	value = strings.ToLower(strings.Join(strings.Fields(value), ""))
	if value == "" {
		return ""
	}
	if value[0] == 'b' || value[0] == 'n' {
		return value
	}
	if _, err := strconv.Atoi(value); err == nil {
		return "b" + value
	}
	return value
}

// stripTrailingCommas removes commas that directly precede a closing brace or
// bracket outside of string literals. Some gateway firmware emits them.
func stripTrailingCommas(data []byte) []byte {
	if !bytes.Contains(data, []byte(",")) {
		return data
	}

	out := make([]byte, 0, len(data))
	inString := false
	escaped := false
	pending := -1

	for _, c := range data {
		if inString {
			out = append(out, c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			pending = -1
			inString = true
		case ',':
			pending = len(out)
		case '}', ']':
			if pending >= 0 {
				out = append(out[:pending], out[pending+1:]...)
			}
			pending = -1
		case ' ', '\t', '\n', '\r':
		default:
			pending = -1
		}
		out = append(out, c)
	}
	return out
}
