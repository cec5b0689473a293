package evalrecord

import (
	"encoding/json"
	"math"
	"strings"
)

// CoerceMetricValue normalizes the shapes a metric value appears in across
// record vintages: a raw number, {value}, {score}, or {value:{score}}.
// Returns false for anything that does not yield a finite number, so callers
// can distinguish "no data" from a legitimate zero.
func CoerceMetricValue(raw any) (float64, bool) {
	return coerceMetricValue(raw, 0)
}

func coerceMetricValue(raw any, depth int) (float64, bool) {
	if depth > 4 {
		return 0, false
	}

	switch v := raw.(type) {
	case float64:
		return finite(v)
	case float32:
		return finite(float64(v))
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		return finite(f)
	case map[string]any:
		for _, key := range []string{"value", "score"} {
			if inner, ok := v[key]; ok {
				if f, ok := coerceMetricValue(inner, depth+1); ok {
					return f, true
				}
			}
		}
	}
	return 0, false
}

func finite(v float64) (float64, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// lookupPath walks a dotted path through nested maps. The bool result is
// false when any segment is missing or not a map.
func lookupPath(tree map[string]any, path string) (any, bool) {
	if tree == nil || path == "" {
		return nil, false
	}

	segments := strings.Split(path, ".")
	var current any = tree
	for _, segment := range segments {
		node, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = node[segment]
		if !ok {
			return nil, false
		}
	}
	return current, true
}
