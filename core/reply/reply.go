// Package reply defines the self-describing value returned by a transport for
// every command. A Reply is one of nil, integer, string, double or an array of
// replies, and offers narrowing conversions that fail instead of guessing.
package reply

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// ErrConversion is returned when a reply cannot be narrowed to the requested type.
var ErrConversion = errors.New("reply: invalid conversion")

// Kind identifies the variant held by a Reply.
type Kind int

const (
	KindNil Kind = iota
	KindInteger
	KindString
	KindDouble
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindNil:
		return "nil"
	case KindInteger:
		return "integer"
	case KindString:
		return "string"
	case KindDouble:
		return "double"
	case KindArray:
		return "array"
	default:
		return "unknown"
	}
}

// Reply is an immutable reply value.
type Reply struct {
	kind Kind
	i    int64
	s    string
	f    float64
	arr  []Reply
}

// Nil returns the nil reply.
func Nil() Reply { return Reply{} }

// Int returns an integer reply.
func Int(v int64) Reply { return Reply{kind: KindInteger, i: v} }

// Str returns a string reply.
func Str(v string) Reply { return Reply{kind: KindString, s: v} }

// Double returns a double reply.
func Double(v float64) Reply { return Reply{kind: KindDouble, f: v} }

// Array returns an array reply holding items.
func Array(items ...Reply) Reply {
	cp := make([]Reply, len(items))
	copy(cp, items)
	return Reply{kind: KindArray, arr: cp}
}

// FromValue converts a decoded Go value into a Reply. Maps are flattened into
// alternating key/value arrays ordered by key.
func FromValue(v any) (Reply, error) {
	switch val := v.(type) {
	case nil:
		return Nil(), nil
	case Reply:
		return val, nil
	case int:
		return Int(int64(val)), nil
	case int32:
		return Int(int64(val)), nil
	case int64:
		return Int(val), nil
	case uint64:
		if val > math.MaxInt64 {
			return Double(float64(val)), nil
		}
		return Int(int64(val)), nil
	case bool:
		if val {
			return Int(1), nil
		}
		return Int(0), nil
	case float32:
		return Double(float64(val)), nil
	case float64:
		return Double(val), nil
	case string:
		return Str(val), nil
	case []byte:
		return Str(string(val)), nil
	case []string:
		items := make([]Reply, len(val))
		for i, s := range val {
			items[i] = Str(s)
		}
		return Reply{kind: KindArray, arr: items}, nil
	case []any:
		items := make([]Reply, len(val))
		for i, item := range val {
			r, err := FromValue(item)
			if err != nil {
				return Nil(), fmt.Errorf("array element %d: %w", i, err)
			}
			items[i] = r
		}
		return Reply{kind: KindArray, arr: items}, nil
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		items := make([]Reply, 0, len(keys)*2)
		for _, k := range keys {
			r, err := FromValue(val[k])
			if err != nil {
				return Nil(), fmt.Errorf("map value %q: %w", k, err)
			}
			items = append(items, Str(k), r)
		}
		return Reply{kind: KindArray, arr: items}, nil
	case map[any]any:
		flat := make(map[string]any, len(val))
		for k, item := range val {
			flat[fmt.Sprint(k)] = item
		}
		return FromValue(flat)
	default:
		return Nil(), fmt.Errorf("%w: unsupported value type %T", ErrConversion, v)
	}
}

// Kind returns the variant held by r.
func (r Reply) Kind() Kind { return r.kind }

// IsNil reports whether r is the nil reply.
func (r Reply) IsNil() bool { return r.kind == KindNil }

// Len returns the number of elements of an array reply, or 0.
func (r Reply) Len() int { return len(r.arr) }

// Index returns the i-th element of an array reply.
func (r Reply) Index(i int) (Reply, error) {
	if r.kind != KindArray {
		return Nil(), fmt.Errorf("%w: index into %s", ErrConversion, r.kind)
	}
	if i < 0 || i >= len(r.arr) {
		return Nil(), fmt.Errorf("%w: index %d out of range [0,%d)", ErrConversion, i, len(r.arr))
	}
	return r.arr[i], nil
}

// AsArray returns the elements of an array reply.
func (r Reply) AsArray() ([]Reply, error) {
	if r.kind != KindArray {
		return nil, fmt.Errorf("%w: %s is not an array", ErrConversion, r.kind)
	}
	cp := make([]Reply, len(r.arr))
	copy(cp, r.arr)
	return cp, nil
}

// AsInt64 narrows r to an int64. Strings holding integers and integral
// doubles are accepted.
func (r Reply) AsInt64() (int64, error) {
	switch r.kind {
	case KindInteger:
		return r.i, nil
	case KindDouble:
		if r.f == math.Trunc(r.f) && !math.IsInf(r.f, 0) {
			return int64(r.f), nil
		}
	case KindString:
		if i, err := strconv.ParseInt(strings.TrimSpace(r.s), 10, 64); err == nil {
			return i, nil
		}
		if f, err := strconv.ParseFloat(strings.TrimSpace(r.s), 64); err == nil && f == math.Trunc(f) && !math.IsInf(f, 0) {
			return int64(f), nil
		}
	}
	return 0, fmt.Errorf("%w: %s %q is not an integer", ErrConversion, r.kind, r.String())
}

// AsFloat64 narrows r to a float64. Numeric strings, including the server's
// "inf"/"-inf" spellings, are accepted.
func (r Reply) AsFloat64() (float64, error) {
	switch r.kind {
	case KindInteger:
		return float64(r.i), nil
	case KindDouble:
		return r.f, nil
	case KindString:
		s := strings.TrimSpace(r.s)
		switch strings.ToLower(s) {
		case "inf", "+inf":
			return math.Inf(1), nil
		case "-inf":
			return math.Inf(-1), nil
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f, nil
		}
	}
	return 0, fmt.Errorf("%w: %s %q is not a number", ErrConversion, r.kind, r.String())
}

// AsString narrows r to a string. Integers and doubles are rendered with the
// invariant decimal format; arrays are rejected.
func (r Reply) AsString() (string, error) {
	switch r.kind {
	case KindString:
		return r.s, nil
	case KindInteger:
		return strconv.FormatInt(r.i, 10), nil
	case KindDouble:
		return strconv.FormatFloat(r.f, 'f', -1, 64), nil
	}
	return "", fmt.Errorf("%w: %s is not a string", ErrConversion, r.kind)
}

// Value returns r as a plain Go value: nil, int64, string, float64 or []any.
func (r Reply) Value() any {
	switch r.kind {
	case KindInteger:
		return r.i
	case KindString:
		return r.s
	case KindDouble:
		return r.f
	case KindArray:
		out := make([]any, len(r.arr))
		for i, item := range r.arr {
			out[i] = item.Value()
		}
		return out
	default:
		return nil
	}
}

// String renders r for display and logging.
func (r Reply) String() string {
	switch r.kind {
	case KindNil:
		return "(nil)"
	case KindArray:
		parts := make([]string, len(r.arr))
		for i, item := range r.arr {
			parts[i] = item.String()
		}
		return "[" + strings.Join(parts, " ") + "]"
	default:
		s, _ := r.AsString()
		return s
	}
}
