package model

import (
	"encoding/json"
	"strconv"
	"strings"
)

// An unparseable numeric field from model output becomes zero instead of
// failing the turn.

// CoerceFloat converts a loosely-typed value to float64, defaulting to 0.0
func CoerceFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case float32:
		return float64(t)
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0
		}
		return f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

// CoerceInt converts a loosely-typed value to int64, defaulting to 0
func CoerceInt(v any) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case json.Number:
		i, err := t.Int64()
		if err != nil {
			return int64(CoerceFloat(v))
		}
		return i
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil {
			return int64(CoerceFloat(t))
		}
		return i
	default:
		return 0
	}
}
