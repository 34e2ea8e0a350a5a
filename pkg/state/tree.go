package state

import (
	"maps"
	"math"
	"slices"
	"strconv"

	"github.com/goccy/go-json"
)

// AsRecord reports whether v is a record node.
func AsRecord(v any) (map[string]any, bool) {
	switch r := v.(type) {
	case map[string]any:
		return r, r != nil
	case GameState:
		return map[string]any(r), r != nil
	}
	return nil, false
}

// AsList reports whether v is an ordered list node.
func AsList(v any) ([]any, bool) {
	l, ok := v.([]any)
	return l, ok
}

// CloneNode copies a single record or list without descending into it.
// Scalars are returned as is.
func CloneNode(v any) any {
	if rec, ok := AsRecord(v); ok {
		return maps.Clone(rec)
	}
	if list, ok := AsList(v); ok {
		return slices.Clone(list)
	}
	return v
}

// DeepClone copies every record and list reachable from v.
func DeepClone(v any) any {
	if rec, ok := AsRecord(v); ok {
		out := make(map[string]any, len(rec))
		for k, child := range rec {
			out[k] = DeepClone(child)
		}
		return out
	}
	if list, ok := AsList(v); ok {
		if list == nil {
			return []any(nil)
		}
		out := make([]any, len(list))
		for i, child := range list {
			out[i] = DeepClone(child)
		}
		return out
	}
	return v
}

// NormalizeNumbers replaces json.Number leaves with int64 when the literal is
// integral, float64 otherwise. Plain int leaves, as YAML decodes them, become
// int64 too.
func NormalizeNumbers(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			t[k] = NormalizeNumbers(child)
		}
		return t
	case []any:
		for i, child := range t {
			t[i] = NormalizeNumbers(child)
		}
		return t
	case int:
		return int64(t)
	case json.Number:
		if i, err := strconv.ParseInt(string(t), 10, 64); err == nil {
			return i
		}
		if f, err := strconv.ParseFloat(string(t), 64); err == nil {
			return f
		}
		return string(t)
	}
	return v
}

// IsNumber reports whether v is a numeric leaf.
func IsNumber(v any) bool {
	_, ok := ToFloat(v)
	return ok
}

// ToFloat converts any numeric leaf to float64.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// toInt converts integral leaves to int64.
func toInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	}
	return 0, false
}

// AddNumbers returns a+b. Two integers stay an int64 unless the sum would
// overflow, in which case it is widened to float64 like any other mix.
// ok is false if either side is not numeric.
func AddNumbers(a, b any) (any, bool) {
	ai, aInt := toInt(a)
	bi, bInt := toInt(b)
	if aInt && bInt {
		if (bi > 0 && ai > math.MaxInt64-bi) || (bi < 0 && ai < math.MinInt64-bi) {
			return float64(ai) + float64(bi), true
		}
		return ai + bi, true
	}
	af, ok := ToFloat(a)
	if !ok {
		return nil, false
	}
	bf, ok := ToFloat(b)
	if !ok {
		return nil, false
	}
	return af + bf, true
}
