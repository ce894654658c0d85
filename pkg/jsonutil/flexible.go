package jsonutil

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// CoerceString converts an arbitrary decoded JSON value to the string form
// used when substituting control values into prompt templates. Control values
// arrive as interface{} from request bodies and may be strings, numbers,
// booleans, arrays or objects.
func CoerceString(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'g', -1, 64)
	case json.Number:
		return val.String()
	default:
		// Arrays and objects keep their JSON text representation.
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(b)
	}
}

// FlexibleStringValue converts a json.RawMessage to a string, handling values
// stored as numbers or booleans instead of strings. Returns empty string for
// null/empty input.
func FlexibleStringValue(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	return CoerceString(v)
}
