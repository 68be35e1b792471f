package query

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/asaidimu/go-ftquery/core"
	"github.com/asaidimu/go-ftquery/core/expr"
)

// variadic marks a table entry that accepts any number of arguments.
const variadic = -1

type funcKey struct {
	recv  expr.Receiver
	name  string
	arity int
}

type renderFunc func(r *Renderer, call expr.MethodCall) (string, error)

// functions maps recognized call shapes to their aggregation-language form.
// Instance methods receive their target as the first argument. It is filled
// in init because the renderers it holds look calls up in it.
var functions map[funcKey]renderFunc

func init() {
	functions = map[funcKey]renderFunc{
		{expr.ReceiverInstance, "ToLower", 0}:      fn("lower"),
		{expr.ReceiverInstance, "ToUpper", 0}:      fn("upper"),
		{expr.ReceiverInstance, "StartsWith", 1}:   fn("startswith"),
		{expr.ReceiverInstance, "Contains", 1}:     fn("contains"),
		{expr.ReceiverInstance, "Substring", 1}:    substring,
		{expr.ReceiverInstance, "Substring", 2}:    fn("substr"),
		{expr.ReceiverInstance, "Split", variadic}: split,

		// log and log10 are swapped on purpose; the server names them this way.
		{expr.ReceiverMath, "Log", 1}:     fn("log2"),
		{expr.ReceiverMath, "Log10", 1}:   fn("log"),
		{expr.ReceiverMath, "Ceiling", 1}: fn("ceil"),
		{expr.ReceiverMath, "Floor", 1}:   fn("floor"),
		{expr.ReceiverMath, "Exp", 1}:     fn("exp"),
		{expr.ReceiverMath, "Abs", 1}:     fn("abs"),
		{expr.ReceiverMath, "Sqrt", 1}:    fn("sqrt"),

		{expr.ReceiverString, "Format", variadic}: format,

		{expr.ReceiverApply, "Day", 1}:             fn("day"),
		{expr.ReceiverApply, "Hour", 1}:            fn("hour"),
		{expr.ReceiverApply, "Minute", 1}:          fn("minute"),
		{expr.ReceiverApply, "Month", 1}:           fn("month"),
		{expr.ReceiverApply, "DayOfWeek", 1}:       fn("dayofweek"),
		{expr.ReceiverApply, "DayOfMonth", 1}:      fn("dayofmonth"),
		{expr.ReceiverApply, "DayOfYear", 1}:       fn("dayofyear"),
		{expr.ReceiverApply, "Year", 1}:            fn("year"),
		{expr.ReceiverApply, "MonthOfYear", 1}:     fn("monthofyear"),
		{expr.ReceiverApply, "FormatTimestamp", 1}: fn("timefmt"),
		{expr.ReceiverApply, "FormatTimestamp", 2}: fn("timefmt"),
		{expr.ReceiverApply, "ParseTime", 2}:       fn("parsetime"),
		{expr.ReceiverApply, "GeoDistance", 2}:     fn("geodistance"),
		{expr.ReceiverApply, "GeoDistance", 3}:     fn("geodistance"),
		{expr.ReceiverApply, "GeoDistance", 4}:     fn("geodistance"),
		{expr.ReceiverApply, "Exists", 1}:          fn("exists"),
	}
}

func lookupFunction(call expr.MethodCall) (renderFunc, bool) {
	if f, ok := functions[funcKey{call.Receiver, call.Name, len(call.Args)}]; ok {
		return f, true
	}
	f, ok := functions[funcKey{call.Receiver, call.Name, variadic}]
	return f, ok
}

// fn renders a plain call: name(target,arg1,arg2...).
func fn(name string) renderFunc {
	return func(r *Renderer, call expr.MethodCall) (string, error) {
		args, err := r.callArgs(call)
		if err != nil {
			return "", err
		}
		return name + "(" + strings.Join(args, ",") + ")", nil
	}
}

func substring(r *Renderer, call expr.MethodCall) (string, error) {
	args, err := r.callArgs(call)
	if err != nil {
		return "", err
	}
	return "substr(" + strings.Join(args, ",") + ",-1)", nil
}

// split accepts separators as individual arguments or as a single constant
// collection, and joins them into one quoted argument.
func split(r *Renderer, call expr.MethodCall) (string, error) {
	target, err := r.render(call.Target)
	if err != nil {
		return "", err
	}
	var seps []string
	for _, a := range call.Args {
		c, ok := a.(expr.Constant)
		if !ok {
			return "", core.NewCompileError("MethodCall", call.Name, "separators must be constants")
		}
		s, err := separators(c.Value)
		if err != nil {
			return "", core.WrapCompileError("MethodCall", call.Name, "invalid separator", err)
		}
		seps = append(seps, s...)
	}
	if len(seps) == 0 {
		return "split(" + target + ")", nil
	}
	return "split(" + target + "," + quote(strings.Join(seps, ","), '"') + ")", nil
}

func separators(v any) ([]string, error) {
	switch s := v.(type) {
	case string:
		return []string{s}, nil
	case rune:
		return []string{string(s)}, nil
	case byte:
		return []string{string(rune(s))}, nil
	case []rune:
		out := make([]string, len(s))
		for i, c := range s {
			out[i] = string(c)
		}
		return out, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("unsupported separator type %T", v)
	}
	var out []string
	for i := 0; i < rv.Len(); i++ {
		s, err := separators(rv.Index(i).Interface())
		if err != nil {
			return nil, err
		}
		out = append(out, s...)
	}
	return out, nil
}

// format converts a composite format string ({0}, {1:N2}) into the server's
// positional %s form. Placeholders may appear in any order or repeat; the
// arguments are emitted in placeholder order. A format string that is not a
// literal is passed through with the arguments as given.
func format(r *Renderer, call expr.MethodCall) (string, error) {
	if len(call.Args) == 0 {
		return "", core.NewCompileError("MethodCall", call.Name, "missing format string")
	}
	args := call.Args[1:]
	c, ok := call.Args[0].(expr.Constant)
	if !ok {
		rendered, err := r.renderAll(call.Args)
		if err != nil {
			return "", err
		}
		return "format(" + strings.Join(rendered, ",") + ")", nil
	}
	layout, ok := c.Value.(string)
	if !ok {
		return "", core.NewCompileError("MethodCall", call.Name, fmt.Sprintf("format string of type %T", c.Value))
	}

	converted, order, err := convertLayout(layout)
	if err != nil {
		return "", core.WrapCompileError("MethodCall", call.Name, "invalid format string", err)
	}
	parts := []string{quote(converted, '"')}
	for _, n := range order {
		if n >= len(args) {
			return "", core.NewCompileError("MethodCall", call.Name, fmt.Sprintf("placeholder {%d} has no argument", n))
		}
		s, err := r.render(args[n])
		if err != nil {
			return "", err
		}
		parts = append(parts, s)
	}
	return "format(" + strings.Join(parts, ",") + ")", nil
}

func convertLayout(layout string) (string, []int, error) {
	var sb strings.Builder
	var order []int
	for i := 0; i < len(layout); i++ {
		ch := layout[i]
		switch {
		case ch == '{' && i+1 < len(layout) && layout[i+1] == '{':
			sb.WriteByte('{')
			i++
		case ch == '}' && i+1 < len(layout) && layout[i+1] == '}':
			sb.WriteByte('}')
			i++
		case ch == '{':
			end := strings.IndexByte(layout[i:], '}')
			if end < 0 {
				return "", nil, fmt.Errorf("unterminated placeholder at offset %d", i)
			}
			spec := layout[i+1 : i+end]
			if cut := strings.IndexAny(spec, ",:"); cut >= 0 {
				spec = spec[:cut]
			}
			n, err := strconv.Atoi(strings.TrimSpace(spec))
			if err != nil || n < 0 {
				return "", nil, fmt.Errorf("invalid placeholder %q", layout[i:i+end+1])
			}
			order = append(order, n)
			sb.WriteString("%s")
			i += end
		case ch == '}':
			return "", nil, fmt.Errorf("unmatched '}' at offset %d", i)
		case ch == '%':
			sb.WriteString("%%")
		default:
			sb.WriteByte(ch)
		}
	}
	return sb.String(), order, nil
}
