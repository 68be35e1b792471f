// Package expr defines the expression tree the compilers consume. It is a
// closed set of node types: predicates, scalar arithmetic, method calls,
// field accesses, literals and closed-over values evaluated at compile time.
package expr

import (
	"strings"
)

// Expr is a node of an expression tree. The set of implementations is closed.
type Expr interface {
	node()
}

// BoolOp combines two boolean operands.
type BoolOp int

const (
	And BoolOp = iota
	Or
)

func (op BoolOp) String() string {
	if op == Or {
		return "||"
	}
	return "&&"
}

// CompareOp is a relational operator.
type CompareOp int

const (
	Eq CompareOp = iota
	Ne
	Lt
	Le
	Gt
	Ge
)

func (op CompareOp) String() string {
	switch op {
	case Eq:
		return "=="
	case Ne:
		return "!="
	case Lt:
		return "<"
	case Le:
		return "<="
	case Gt:
		return ">"
	case Ge:
		return ">="
	}
	return "?"
}

// Mirror returns the operator that keeps the comparison true when its
// operands are swapped.
func (op CompareOp) Mirror() CompareOp {
	switch op {
	case Lt:
		return Gt
	case Le:
		return Ge
	case Gt:
		return Lt
	case Ge:
		return Le
	}
	return op
}

// ArithOp is a binary scalar operator.
type ArithOp int

const (
	Add ArithOp = iota
	Sub
	Mul
	Div
	Mod
	// Xor is the power operator: the aggregation language spells it ^.
	Xor
)

func (op ArithOp) String() string {
	switch op {
	case Add:
		return "+"
	case Sub:
		return "-"
	case Mul:
		return "*"
	case Div:
		return "/"
	case Mod:
		return "%"
	case Xor:
		return "^"
	}
	return "?"
}

// Receiver names the owner of a method. Instance methods are invoked on their
// Target; the other receivers are static function groups.
type Receiver string

const (
	ReceiverInstance Receiver = ""
	ReceiverMath     Receiver = "Math"
	ReceiverString   Receiver = "String"
	// ReceiverApply groups the aggregation helper functions (date parts,
	// timestamp formatting, geo distance, existence checks).
	ReceiverApply Receiver = "Apply"
)

type (
	// BinaryBool is a logical conjunction or disjunction.
	BinaryBool struct {
		Op          BoolOp
		Left, Right Expr
	}

	// UnaryNot negates a boolean operand.
	UnaryNot struct {
		Inner Expr
	}

	// Compare is a relational comparison. Either side may hold the field.
	Compare struct {
		Op          CompareOp
		Left, Right Expr
	}

	// Arith is a binary arithmetic expression.
	Arith struct {
		Op          ArithOp
		Left, Right Expr
	}

	// MethodCall invokes a method on Target, or a static function of
	// Receiver when Target is nil.
	MethodCall struct {
		Receiver Receiver
		Target   Expr
		Name     string
		Args     []Expr
	}

	// MemberAccess is a property chain rooted at the query parameter.
	MemberAccess struct {
		Path []string
	}

	// Reference names a value produced by an earlier pipeline stage.
	Reference struct {
		Name string
	}

	// Constant is a literal value.
	Constant struct {
		Value any
	}

	// ClosureRef is a value captured from the caller's scope. It is
	// evaluated exactly once, when the expression is compiled.
	ClosureRef struct {
		Name string
		Eval func() (any, error)
	}

	// Projection is an anonymous record of fields or references.
	Projection struct {
		Items []Expr
	}
)

func (BinaryBool) node()   {}
func (UnaryNot) node()     {}
func (Compare) node()      {}
func (Arith) node()        {}
func (MethodCall) node()   {}
func (MemberAccess) node() {}
func (Reference) node()    {}
func (Constant) node()     {}
func (ClosureRef) node()   {}
func (Projection) node()   {}

// Key returns the dotted property path.
func (m MemberAccess) Key() string { return strings.Join(m.Path, ".") }

// Field accesses a property of the query parameter by dotted path.
func Field(path string) MemberAccess {
	return MemberAccess{Path: strings.Split(path, ".")}
}

// Ref refers to a pipeline output by name.
func Ref(name string) Reference { return Reference{Name: name} }

// Lit wraps a literal value.
func Lit(v any) Constant { return Constant{Value: v} }

// Closure captures a value computed by fn when the expression is compiled.
func Closure(fn func() any) ClosureRef {
	return ClosureRef{Eval: func() (any, error) { return fn(), nil }}
}

// Var captures a variable of the caller. The pointer is dereferenced at
// compile time, so later writes are observed by later compilations.
func Var[T any](name string, p *T) ClosureRef {
	return ClosureRef{Name: name, Eval: func() (any, error) { return *p, nil }}
}

func AndAlso(l, r Expr) BinaryBool { return BinaryBool{Op: And, Left: l, Right: r} }
func OrElse(l, r Expr) BinaryBool  { return BinaryBool{Op: Or, Left: l, Right: r} }
func Not(e Expr) UnaryNot          { return UnaryNot{Inner: e} }

func Equal(l, r Expr) Compare          { return Compare{Op: Eq, Left: l, Right: r} }
func NotEqual(l, r Expr) Compare       { return Compare{Op: Ne, Left: l, Right: r} }
func LessThan(l, r Expr) Compare       { return Compare{Op: Lt, Left: l, Right: r} }
func LessOrEqual(l, r Expr) Compare    { return Compare{Op: Le, Left: l, Right: r} }
func GreaterThan(l, r Expr) Compare    { return Compare{Op: Gt, Left: l, Right: r} }
func GreaterOrEqual(l, r Expr) Compare { return Compare{Op: Ge, Left: l, Right: r} }

func Plus(l, r Expr) Arith   { return Arith{Op: Add, Left: l, Right: r} }
func Minus(l, r Expr) Arith  { return Arith{Op: Sub, Left: l, Right: r} }
func Times(l, r Expr) Arith  { return Arith{Op: Mul, Left: l, Right: r} }
func Divide(l, r Expr) Arith { return Arith{Op: Div, Left: l, Right: r} }
func Modulo(l, r Expr) Arith { return Arith{Op: Mod, Left: l, Right: r} }
func Power(l, r Expr) Arith  { return Arith{Op: Xor, Left: l, Right: r} }

// Call invokes an instance method on target.
func Call(target Expr, name string, args ...Expr) MethodCall {
	return MethodCall{Receiver: ReceiverInstance, Target: target, Name: name, Args: args}
}

// Static invokes a function of a static receiver.
func Static(recv Receiver, name string, args ...Expr) MethodCall {
	return MethodCall{Receiver: recv, Name: name, Args: args}
}

// New builds an anonymous projection.
func New(items ...Expr) Projection { return Projection{Items: items} }

// ReferencesParameter reports whether e reads anything from the query
// parameter or from pipeline outputs.
func ReferencesParameter(e Expr) bool {
	found := false
	Walk(e, func(n Expr) bool {
		switch n.(type) {
		case MemberAccess, Reference:
			found = true
		}
		return !found
	})
	return found
}

// Walk visits e and its children depth first until visit returns false.
func Walk(e Expr, visit func(Expr) bool) bool {
	if e == nil {
		return true
	}
	if !visit(e) {
		return false
	}
	switch n := e.(type) {
	case BinaryBool:
		return Walk(n.Left, visit) && Walk(n.Right, visit)
	case UnaryNot:
		return Walk(n.Inner, visit)
	case Compare:
		return Walk(n.Left, visit) && Walk(n.Right, visit)
	case Arith:
		return Walk(n.Left, visit) && Walk(n.Right, visit)
	case MethodCall:
		if !Walk(n.Target, visit) {
			return false
		}
		for _, a := range n.Args {
			if !Walk(a, visit) {
				return false
			}
		}
	case Projection:
		for _, item := range n.Items {
			if !Walk(item, visit) {
				return false
			}
		}
	}
	return true
}
