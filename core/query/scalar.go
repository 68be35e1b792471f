package query

import (
	"fmt"

	"github.com/asaidimu/go-ftquery/core"
	"github.com/asaidimu/go-ftquery/core/expr"
)

// Renderer turns scalar expressions into the aggregation expression
// language used by APPLY and FILTER.
type Renderer struct {
	scope Scope
	quote byte
}

// NewRenderer creates a renderer for APPLY expressions. String literals are
// double-quoted.
func NewRenderer(scope Scope) *Renderer {
	return &Renderer{scope: scope, quote: '"'}
}

// Apply renders e as the expression of an APPLY stage.
func (r *Renderer) Apply(e expr.Expr) (string, error) {
	folded, err := expr.Fold(e)
	if err != nil {
		return "", err
	}
	return r.render(folded)
}

// Filter renders e as the expression of a FILTER stage. Comparisons render
// relationally with single-quoted strings; boolean combinations use the
// search-query form of their operands.
func (r *Renderer) Filter(e expr.Expr) (string, error) {
	folded, err := expr.Fold(e)
	if err != nil {
		return "", err
	}
	if _, ok := folded.(expr.BinaryBool); ok {
		c := &Compiler{scope: r.scope, bare: true}
		return c.compileText(folded)
	}
	fr := &Renderer{scope: r.scope, quote: '\''}
	return fr.render(folded)
}

func (r *Renderer) render(e expr.Expr) (string, error) {
	switch n := e.(type) {
	case expr.Constant:
		return r.literal(n.Value)
	case expr.ClosureRef:
		v, err := expr.Evaluate(n)
		if err != nil {
			return "", err
		}
		return r.literal(v)
	case expr.MemberAccess, expr.Reference:
		name, err := r.scope.Name(n)
		if err != nil {
			return "", err
		}
		return "@" + name, nil
	case expr.Arith:
		l, err := r.operand(n.Left)
		if err != nil {
			return "", err
		}
		rt, err := r.operand(n.Right)
		if err != nil {
			return "", err
		}
		return l + " " + n.Op.String() + " " + rt, nil
	case expr.Compare:
		l, err := r.operand(n.Left)
		if err != nil {
			return "", err
		}
		rt, err := r.operand(n.Right)
		if err != nil {
			return "", err
		}
		return l + " " + n.Op.String() + " " + rt, nil
	case expr.BinaryBool:
		l, err := r.operand(n.Left)
		if err != nil {
			return "", err
		}
		rt, err := r.operand(n.Right)
		if err != nil {
			return "", err
		}
		return "(" + l + " " + n.Op.String() + " " + rt + ")", nil
	case expr.UnaryNot:
		inner, err := r.operand(n.Inner)
		if err != nil {
			return "", err
		}
		return "!" + inner, nil
	case expr.MethodCall:
		f, ok := lookupFunction(n)
		if !ok {
			return "", core.NewCompileError("MethodCall", qualified(n), fmt.Sprintf("no function takes %d argument(s)", len(n.Args)))
		}
		return f(r, n)
	case nil:
		return "", core.NewCompileError("Expr", "", "missing expression")
	default:
		return "", core.NewCompileError(construct(e), "", "not a scalar expression")
	}
}

// operand renders a nested operand, parenthesizing composite ones.
func (r *Renderer) operand(e expr.Expr) (string, error) {
	s, err := r.render(e)
	if err != nil {
		return "", err
	}
	switch e.(type) {
	case expr.Arith, expr.Compare:
		return "(" + s + ")", nil
	}
	return s, nil
}

func (r *Renderer) literal(v any) (string, error) {
	switch s := v.(type) {
	case nil:
		return "", core.NewCompileError("Constant", "", "nil literal")
	case string:
		return quote(s, r.quote), nil
	case GeoLoc:
		return s.String(), nil
	}
	return FormatNumber(v)
}

func (r *Renderer) renderAll(args []expr.Expr) ([]string, error) {
	out := make([]string, len(args))
	for i, a := range args {
		s, err := r.render(a)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

// callArgs renders the target of an instance call followed by its
// arguments.
func (r *Renderer) callArgs(call expr.MethodCall) ([]string, error) {
	args, err := r.renderAll(call.Args)
	if err != nil {
		return nil, err
	}
	if call.Receiver != expr.ReceiverInstance {
		return args, nil
	}
	target, err := r.render(call.Target)
	if err != nil {
		return nil, err
	}
	return append([]string{target}, args...), nil
}

func qualified(call expr.MethodCall) string {
	if call.Receiver == expr.ReceiverInstance {
		return call.Name
	}
	return string(call.Receiver) + "." + call.Name
}
