package sink

import (
	"fmt"
	"strconv"
)

// Stringify renders a row value for text output. Backends must not assume a
// particular underlying type for field values; this helper keeps rendering
// consistent across backends.
//
// JSON numbers decode as float64; integral ones render without a trailing
// ".0" so identifiers and counts round-trip cleanly.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(v)
	}
}
