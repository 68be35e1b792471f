package query

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/asaidimu/go-ftquery/core"
)

// GeoLoc is a longitude/latitude pair.
type GeoLoc struct {
	Longitude float64
	Latitude  float64
}

// String renders the pair the way the server expects it in commands.
func (g GeoLoc) String() string {
	return FormatFloat(g.Longitude) + "," + FormatFloat(g.Latitude)
}

// GeoUnit is a distance unit for radius filters.
type GeoUnit string

const (
	Meters     GeoUnit = "m"
	Kilometers GeoUnit = "km"
	Miles      GeoUnit = "mi"
	Feet       GeoUnit = "ft"
)

// FormatFloat renders a float with a dot decimal separator and the shortest
// representation that round-trips.
func FormatFloat(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// FormatNumber renders a numeric literal. Times are converted to Unix epoch
// milliseconds.
func FormatNumber(v any) (string, error) {
	switch n := v.(type) {
	case int:
		return strconv.Itoa(n), nil
	case int8, int16, int32, int64:
		i, _ := core.ToInt64(n)
		return strconv.FormatInt(i, 10), nil
	case uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(n), nil
	case float32:
		return FormatFloat(float64(n)), nil
	case float64:
		return FormatFloat(n), nil
	case bool:
		if n {
			return "1", nil
		}
		return "0", nil
	case time.Time:
		return strconv.FormatInt(n.UnixMilli(), 10), nil
	case *time.Time:
		if n == nil {
			return "", core.NewCompileError("Constant", "", "nil time literal")
		}
		return strconv.FormatInt(n.UnixMilli(), 10), nil
	case time.Duration:
		return strconv.FormatInt(n.Milliseconds(), 10), nil
	}
	return "", core.NewCompileError("Constant", "", fmt.Sprintf("literal of type %T is not numeric", v))
}

// FormatText renders a literal as bare text. Numbers use the invariant
// format; booleans render as true/false.
func FormatText(v any) (string, error) {
	switch s := v.(type) {
	case nil:
		return "", core.NewCompileError("Constant", "", "nil literal")
	case string:
		return s, nil
	case []byte:
		return string(s), nil
	case fmt.Stringer:
		if _, isTime := v.(time.Time); !isTime {
			return s.String(), nil
		}
	case bool:
		return strconv.FormatBool(s), nil
	}
	return FormatNumber(v)
}

// tagReserved holds the characters that must be escaped inside a tag
// value.
const tagReserved = ",.<>{}[]\"':;!@#$%^&*()-+=~|/\\ "

// EscapeTag backslash-escapes reserved punctuation in a tag value.
func EscapeTag(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		if strings.ContainsRune(tagReserved, r) {
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// quote wraps s in q, escaping q and backslashes inside.
func quote(s string, q byte) string {
	var sb strings.Builder
	sb.Grow(len(s) + 2)
	sb.WriteByte(q)
	for i := 0; i < len(s); i++ {
		if s[i] == q || s[i] == '\\' {
			sb.WriteByte('\\')
		}
		sb.WriteByte(s[i])
	}
	sb.WriteByte(q)
	return sb.String()
}
