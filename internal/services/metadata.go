package services

// SanitizeMetadata keeps metadata to primitives plus one level of nested
// object, per spec.md §4.2's tie-break: arrays and functions are dropped.
func SanitizeMetadata(in map[string]interface{}) map[string]interface{} {
	if in == nil {
		return nil
	}
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		if sv, ok := sanitizeValue(v, 1); ok {
			out[k] = sv
		}
	}
	return out
}

func sanitizeValue(v interface{}, depthRemaining int) (interface{}, bool) {
	switch val := v.(type) {
	case string, bool, nil:
		return val, true
	case float64, int, int64, float32:
		return val, true
	case map[string]interface{}:
		if depthRemaining <= 0 {
			return nil, false
		}
		nested := make(map[string]interface{}, len(val))
		for k, v2 := range val {
			if sv, ok := sanitizeValue(v2, depthRemaining-1); ok {
				nested[k] = sv
			}
		}
		return nested, true
	default:
		// arrays, functions, and anything else are dropped
		return nil, false
	}
}
