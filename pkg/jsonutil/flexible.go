// Package jsonutil reads loosely typed values: model output where numbers arrive
// as strings, and stored configuration where ports arrive as strings or floats.
package jsonutil

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FlexibleStringValue converts a json.RawMessage to a string, handling cases where
// LLMs return numbers or booleans instead of strings. Returns empty string for null/empty.
func FlexibleStringValue(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	var strVal string
	if err := json.Unmarshal(raw, &strVal); err == nil {
		return strVal
	}

	var numVal float64
	if err := json.Unmarshal(raw, &numVal); err == nil {
		return formatFloat(numVal)
	}

	var boolVal bool
	if err := json.Unmarshal(raw, &boolVal); err == nil {
		return strconv.FormatBool(boolVal)
	}

	return string(raw)
}

// FlexibleFloatValue reads a number that may be encoded as a JSON number or a
// numeric string ("0.85"). ok is false for null, empty, or non-numeric input.
func FlexibleFloatValue(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false
	}

	var numVal float64
	if err := json.Unmarshal(raw, &numVal); err == nil {
		return numVal, !math.IsNaN(numVal)
	}

	var strVal string
	if err := json.Unmarshal(raw, &strVal); err == nil {
		f, err := strconv.ParseFloat(strings.TrimSpace(strVal), 64)
		if err != nil || math.IsNaN(f) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// StringFromAny renders a decoded JSON value (or a plain Go scalar) as a string.
// nil yields "". Integral floats render without a fractional part, so a port
// decoded as float64(5432) becomes "5432".
func StringFromAny(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return formatFloat(val)
	case float32:
		return formatFloat(float64(val))
	case int:
		return strconv.Itoa(val)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	case json.Number:
		return val.String()
	case json.RawMessage:
		return FlexibleStringValue(val)
	case []byte:
		return string(val)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	}
}

// IntFromAny reads an integer from a number or numeric string.
func IntFromAny(v any) (int, bool) {
	switch val := v.(type) {
	case int:
		return val, true
	case int32:
		return int(val), true
	case int64:
		return int(val), true
	case float64:
		if val != math.Trunc(val) {
			return 0, false
		}
		return int(val), true
	case json.Number:
		n, err := val.Int64()
		return int(n), err == nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(val))
		return n, err == nil
	}
	return 0, false
}

// BoolFromAny reads a boolean from a bool or a string such as "true", "1", "yes".
func BoolFromAny(v any) (bool, bool) {
	switch val := v.(type) {
	case bool:
		return val, true
	case string:
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "true", "1", "yes", "on":
			return true, true
		case "false", "0", "no", "off":
			return false, true
		}
	case float64:
		return val != 0, true
	}
	return false, false
}

func formatFloat(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e18 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
