package expr

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/asaidimu/go-ftquery/core"
)

// Fold replaces every closed-over subtree with the constant it evaluates to.
// A subtree is closed over when it reads nothing from the query parameter and
// holds at least one ClosureRef; subtrees built purely from literals are left
// as written so they render the way the caller spelled them.
func Fold(e Expr) (Expr, error) {
	if e == nil {
		return nil, nil
	}
	if _, isProjection := e.(Projection); !isProjection && holdsClosure(e) && !ReferencesParameter(e) {
		v, err := Evaluate(e)
		if err != nil {
			return nil, err
		}
		return Constant{Value: v}, nil
	}

	switch n := e.(type) {
	case BinaryBool:
		l, r, err := foldPair(n.Left, n.Right)
		if err != nil {
			return nil, err
		}
		return BinaryBool{Op: n.Op, Left: l, Right: r}, nil
	case UnaryNot:
		inner, err := Fold(n.Inner)
		if err != nil {
			return nil, err
		}
		return UnaryNot{Inner: inner}, nil
	case Compare:
		l, r, err := foldPair(n.Left, n.Right)
		if err != nil {
			return nil, err
		}
		return Compare{Op: n.Op, Left: l, Right: r}, nil
	case Arith:
		l, r, err := foldPair(n.Left, n.Right)
		if err != nil {
			return nil, err
		}
		return Arith{Op: n.Op, Left: l, Right: r}, nil
	case MethodCall:
		target, err := Fold(n.Target)
		if err != nil {
			return nil, err
		}
		args := make([]Expr, len(n.Args))
		for i, a := range n.Args {
			if args[i], err = Fold(a); err != nil {
				return nil, err
			}
		}
		return MethodCall{Receiver: n.Receiver, Target: target, Name: n.Name, Args: args}, nil
	case Projection:
		items := make([]Expr, len(n.Items))
		for i, item := range n.Items {
			folded, err := Fold(item)
			if err != nil {
				return nil, err
			}
			items[i] = folded
		}
		return Projection{Items: items}, nil
	default:
		return e, nil
	}
}

func foldPair(l, r Expr) (Expr, Expr, error) {
	fl, err := Fold(l)
	if err != nil {
		return nil, nil, err
	}
	fr, err := Fold(r)
	if err != nil {
		return nil, nil, err
	}
	return fl, fr, nil
}

func holdsClosure(e Expr) bool {
	found := false
	Walk(e, func(n Expr) bool {
		if _, ok := n.(ClosureRef); ok {
			found = true
		}
		return !found
	})
	return found
}

// Evaluate computes the value of an expression that does not read from the
// query parameter.
func Evaluate(e Expr) (any, error) {
	switch n := e.(type) {
	case Constant:
		return n.Value, nil
	case ClosureRef:
		if n.Eval == nil {
			return nil, core.NewCompileError("ClosureRef", n.Name, "closure has no evaluator")
		}
		v, err := n.Eval()
		if err != nil {
			return nil, core.WrapCompileError("ClosureRef", n.Name, "closure evaluation failed", err)
		}
		return v, nil
	case UnaryNot:
		v, err := evaluateBool(n.Inner)
		if err != nil {
			return nil, err
		}
		return !v, nil
	case BinaryBool:
		l, err := evaluateBool(n.Left)
		if err != nil {
			return nil, err
		}
		if n.Op == And && !l {
			return false, nil
		}
		if n.Op == Or && l {
			return true, nil
		}
		return evaluateBool(n.Right)
	case Compare:
		l, r, err := evaluatePair(n.Left, n.Right)
		if err != nil {
			return nil, err
		}
		return compareValues(n.Op, l, r)
	case Arith:
		l, r, err := evaluatePair(n.Left, n.Right)
		if err != nil {
			return nil, err
		}
		return arith(n.Op, l, r)
	case MethodCall:
		return evaluateCall(n)
	case MemberAccess:
		return nil, core.NewCompileError("MemberAccess", n.Key(), "field access cannot be evaluated at compile time")
	case Reference:
		return nil, core.NewCompileError("Reference", n.Name, "pipeline reference cannot be evaluated at compile time")
	default:
		return nil, core.NewCompileError(fmt.Sprintf("%T", e), "", "expression cannot be evaluated at compile time")
	}
}

func evaluatePair(l, r Expr) (any, any, error) {
	lv, err := Evaluate(l)
	if err != nil {
		return nil, nil, err
	}
	rv, err := Evaluate(r)
	if err != nil {
		return nil, nil, err
	}
	return lv, rv, nil
}

func evaluateBool(e Expr) (bool, error) {
	v, err := Evaluate(e)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, core.NewCompileError("BinaryBool", "", fmt.Sprintf("operand of type %T is not boolean", v))
	}
	return b, nil
}

func compareValues(op CompareOp, l, r any) (bool, error) {
	if lt, ok := l.(time.Time); ok {
		if rt, ok := r.(time.Time); ok {
			return compareOrdered(op, lt.UnixNano(), rt.UnixNano()), nil
		}
	}
	if lf, ok := core.ToFloat64(l); ok {
		if _, isStr := l.(string); !isStr {
			if rf, ok := core.ToFloat64(r); ok {
				return compareOrdered(op, lf, rf), nil
			}
		}
	}
	if ls, ok := l.(string); ok {
		if rs, ok := r.(string); ok {
			return compareOrdered(op, ls, rs), nil
		}
	}
	switch op {
	case Eq:
		return l == r, nil
	case Ne:
		return l != r, nil
	}
	return false, core.NewCompileError("Compare", "", fmt.Sprintf("cannot order %T and %T", l, r))
}

func compareOrdered[T int64 | float64 | string](op CompareOp, l, r T) bool {
	switch op {
	case Eq:
		return l == r
	case Ne:
		return l != r
	case Lt:
		return l < r
	case Le:
		return l <= r
	case Gt:
		return l > r
	default:
		return l >= r
	}
}

func arith(op ArithOp, l, r any) (any, error) {
	if op == Add {
		if ls, ok := l.(string); ok {
			return ls + fmt.Sprint(r), nil
		}
		if rs, ok := r.(string); ok {
			return fmt.Sprint(l) + rs, nil
		}
	}

	li, lInt := integral(l)
	ri, rInt := integral(r)
	if lInt && rInt {
		switch op {
		case Add:
			return li + ri, nil
		case Sub:
			return li - ri, nil
		case Mul:
			return li * ri, nil
		case Div, Mod:
			if ri == 0 {
				return nil, core.NewCompileError("Arith", "", "integer division by zero")
			}
			if op == Div {
				return li / ri, nil
			}
			return li % ri, nil
		case Xor:
			if ri >= 0 {
				return intPow(li, ri), nil
			}
		}
	}

	lf, lok := core.ToFloat64(l)
	rf, rok := core.ToFloat64(r)
	if !lok || !rok {
		return nil, core.NewCompileError("Arith", "", fmt.Sprintf("operator %s is not defined on %T and %T", op, l, r))
	}
	switch op {
	case Add:
		return lf + rf, nil
	case Sub:
		return lf - rf, nil
	case Mul:
		return lf * rf, nil
	case Div:
		return lf / rf, nil
	case Mod:
		return math.Mod(lf, rf), nil
	case Xor:
		return math.Pow(lf, rf), nil
	}
	return nil, core.NewCompileError("Arith", "", fmt.Sprintf("operator %s is not defined on %T and %T", op, l, r))
}

// intPow raises base to a non-negative exponent.
func intPow(base, exp int64) int64 {
	result := int64(1)
	for exp > 0 {
		if exp&1 == 1 {
			result *= base
		}
		base *= base
		exp >>= 1
	}
	return result
}

func integral(v any) (int64, bool) {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return core.ToInt64(v)
	}
	return 0, false
}

// foldable lists the calls that can run on the client during folding.
var foldable = map[Receiver]map[string]func(target any, args []any) (any, error){
	ReceiverInstance: {
		"ToLower":  stringCall(strings.ToLower),
		"ToUpper":  stringCall(strings.ToUpper),
		"Trim":     stringCall(strings.TrimSpace),
		"ToString": func(target any, _ []any) (any, error) { return fmt.Sprint(target), nil },
	},
	ReceiverMath: {
		"Abs":     mathCall(math.Abs),
		"Sqrt":    mathCall(math.Sqrt),
		"Floor":   mathCall(math.Floor),
		"Ceiling": mathCall(math.Ceil),
		"Exp":     mathCall(math.Exp),
		"Log":     mathCall(math.Log),
		"Log10":   mathCall(math.Log10),
	},
}

func stringCall(fn func(string) string) func(any, []any) (any, error) {
	return func(target any, _ []any) (any, error) {
		s, ok := target.(string)
		if !ok {
			return nil, fmt.Errorf("receiver of type %T is not a string", target)
		}
		return fn(s), nil
	}
}

func mathCall(fn func(float64) float64) func(any, []any) (any, error) {
	return func(_ any, args []any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("expected 1 argument, got %d", len(args))
		}
		f, ok := core.ToFloat64(args[0])
		if !ok {
			return nil, fmt.Errorf("argument of type %T is not numeric", args[0])
		}
		return fn(f), nil
	}
}

func evaluateCall(n MethodCall) (any, error) {
	fn, ok := foldable[n.Receiver][n.Name]
	if !ok {
		return nil, core.NewCompileError("MethodCall", n.Name, "closed-over call cannot be evaluated at compile time")
	}
	var target any
	if n.Target != nil {
		v, err := Evaluate(n.Target)
		if err != nil {
			return nil, err
		}
		target = v
	}
	args := make([]any, len(n.Args))
	for i, a := range n.Args {
		v, err := Evaluate(a)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	v, err := fn(target, args)
	if err != nil {
		return nil, core.WrapCompileError("MethodCall", n.Name, "closed-over call failed", err)
	}
	return v, nil
}
