package pipeline

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Normalize converts a raw cell value to trimmed text. Absent values, NaN and
// the tokens "nan"/"none" (any case) become the empty string.
func Normalize(v any) string {
	var s string
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		s = x
	case *string:
		if x == nil {
			return ""
		}
		s = *x
	case float64:
		if math.IsNaN(x) {
			return ""
		}
		s = strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		if math.IsNaN(float64(x)) {
			return ""
		}
		s = strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		s = strconv.Itoa(x)
	case int64:
		s = strconv.FormatInt(x, 10)
	case fmt.Stringer:
		s = x.String()
	default:
		s = fmt.Sprint(x)
	}

	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "nan", "none":
		return ""
	}
	return s
}
