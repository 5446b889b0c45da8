package translator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ExtractJSON returns the part of line starting at the first '{'.
// Lines may carry a non-JSON prefix such as a timestamp.
func ExtractJSON(line []byte) ([]byte, error) {
	i := bytes.IndexByte(line, '{')
	if i < 0 {
		return nil, fmt.Errorf("no JSON object in line")
	}
	return line[i:], nil
}

// Decode parses the JSON object embedded in line. Numbers are kept as
// json.Number so values are emitted exactly as written. Content after the
// object is ignored.
func Decode(line []byte) (map[string]any, error) {
	js, err := ExtractJSON(line)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(js))
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if obj == nil {
		return nil, fmt.Errorf("invalid JSON: not an object")
	}
	return obj, nil
}

// ParseTimestamp converts a numeric or numeric-string value to unix seconds,
// dropping any fractional part
func ParseTimestamp(v any) (int64, error) {
	var s string
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i, nil
		}
		s = val.String()
	case string:
		s = strings.TrimSpace(val)
	case float64:
		return int64(val), nil
	default:
		return 0, fmt.Errorf("invalid timestamp type %T", v)
	}

	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return int64(f), nil
}

// formatValue renders a decoded JSON value as protocol text
func formatValue(v any) string {
	switch val := v.(type) {
	case json.Number:
		return val.String()
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	}
}
