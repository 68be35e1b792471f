package query

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/asaidimu/go-ftquery/core"
	"github.com/asaidimu/go-ftquery/core/expr"
	"github.com/asaidimu/go-ftquery/core/schema"
)

// ClauseKind is the kind of a compiled query fragment.
type ClauseKind int

const (
	ClauseTag ClauseKind = iota
	ClauseText
	ClauseNumeric
	ClauseGeo
	ClauseBoolean
)

// Clause is a compiled fragment of a search query.
type Clause struct {
	Text string
	Kind ClauseKind
	// leaf clauses are field matches; they are parenthesized when emitted
	// unless the compiler runs bare.
	leaf bool
}

// Compiler turns boolean expressions into search-query strings.
type Compiler struct {
	scope Scope
	bare  bool
}

// NewCompiler creates a predicate compiler for the fields of scope.
func NewCompiler(scope Scope) *Compiler {
	return &Compiler{scope: scope}
}

// Compile folds closed-over values in e and compiles it to a query string.
func (c *Compiler) Compile(e expr.Expr) (string, error) {
	folded, err := expr.Fold(e)
	if err != nil {
		return "", err
	}
	return c.compileText(folded)
}

// CompileClause is like Compile but also reports the fragment kind.
func (c *Compiler) CompileClause(e expr.Expr) (Clause, error) {
	folded, err := expr.Fold(e)
	if err != nil {
		return Clause{}, err
	}
	cl, err := c.compile(folded)
	if err != nil {
		return Clause{}, err
	}
	return Clause{Text: c.emit(cl), Kind: cl.Kind}, nil
}

func (c *Compiler) compileText(e expr.Expr) (string, error) {
	cl, err := c.compile(e)
	if err != nil {
		return "", err
	}
	return c.emit(cl), nil
}

func (c *Compiler) emit(cl Clause) string {
	if cl.leaf && !c.bare {
		return "(" + cl.Text + ")"
	}
	return cl.Text
}

func (c *Compiler) compile(e expr.Expr) (Clause, error) {
	switch n := e.(type) {
	case expr.BinaryBool:
		l, err := c.compile(n.Left)
		if err != nil {
			return Clause{}, err
		}
		r, err := c.compile(n.Right)
		if err != nil {
			return Clause{}, err
		}
		sep := " "
		if n.Op == expr.Or {
			sep = " | "
		}
		return Clause{Text: "(" + c.emit(l) + sep + c.emit(r) + ")", Kind: ClauseBoolean}, nil
	case expr.UnaryNot:
		inner, err := c.compile(n.Inner)
		if err != nil {
			return Clause{}, err
		}
		if inner.leaf {
			if negated, ok := strings.CutPrefix(inner.Text, "-"); ok {
				inner.Text = negated
				return inner, nil
			}
			inner.Text = "-" + inner.Text
			return inner, nil
		}
		if strings.HasPrefix(inner.Text, "(") {
			return Clause{Text: "-" + inner.Text, Kind: inner.Kind}, nil
		}
		return Clause{Text: "-(" + inner.Text + ")", Kind: inner.Kind}, nil
	case expr.Compare:
		return c.compare(n)
	case expr.MethodCall:
		return c.method(n)
	case expr.MemberAccess:
		return c.flag(n)
	case nil:
		return Clause{}, core.NewCompileError("Expr", "", "missing predicate")
	default:
		return Clause{}, core.NewCompileError(construct(e), "", "not a supported predicate")
	}
}

// flag compiles a boolean field used directly as a predicate.
func (c *Compiler) flag(m expr.MemberAccess) (Clause, error) {
	f, err := c.scope.Field(m)
	if err != nil {
		return Clause{}, err
	}
	switch f.Kind {
	case schema.KindTag:
		return leaf("@"+f.ResolvedName()+":{true}", ClauseTag), nil
	case schema.KindNumeric:
		return leaf("@"+f.ResolvedName()+":[1 1]", ClauseNumeric), nil
	}
	return Clause{}, core.NewCompileError("MemberAccess", m.Key(), fmt.Sprintf("%s field cannot be used as a boolean", f.Kind))
}

func (c *Compiler) compare(n expr.Compare) (Clause, error) {
	op := n.Op
	field, ok := n.Left.(expr.MemberAccess)
	value := n.Right
	if !ok {
		if field, ok = n.Right.(expr.MemberAccess); !ok {
			return Clause{}, core.NewCompileError("Compare", "", "one side of a comparison must be an indexed field")
		}
		value = n.Left
		op = op.Mirror()
	}

	f, err := c.scope.Field(field)
	if err != nil {
		return Clause{}, err
	}
	v, err := c.literal(value)
	if err != nil {
		return Clause{}, err
	}
	if v == nil {
		return Clause{}, core.NewCompileError("Compare", field.Key(), "nil cannot be matched by the index")
	}

	name := "@" + f.ResolvedName()
	switch f.Kind {
	case schema.KindNumeric:
		num, err := FormatNumber(v)
		if err != nil {
			return Clause{}, core.WrapCompileError("Compare", field.Key(), "bad literal for numeric field", err)
		}
		return leaf(numericRange(name, op, num), ClauseNumeric), nil

	case schema.KindTag:
		if op != expr.Eq && op != expr.Ne {
			return Clause{}, core.NewCompileError("Compare", field.Key(), fmt.Sprintf("operator %s is not supported on tag fields", op))
		}
		s, err := FormatText(v)
		if err != nil {
			return Clause{}, core.WrapCompileError("Compare", field.Key(), "bad literal for tag field", err)
		}
		return leaf(negate(op, name+":{"+EscapeTag(s)+"}"), ClauseTag), nil

	case schema.KindText:
		if op != expr.Eq && op != expr.Ne {
			return Clause{}, core.NewCompileError("Compare", field.Key(), fmt.Sprintf("operator %s is not supported on text fields", op))
		}
		s, err := FormatText(v)
		if err != nil {
			return Clause{}, core.WrapCompileError("Compare", field.Key(), "bad literal for text field", err)
		}
		return leaf(negate(op, name+":"+quote(s, '"')), ClauseText), nil
	}
	return Clause{}, core.NewCompileError("Compare", field.Key(), fmt.Sprintf("comparisons are not supported on %s fields", f.Kind))
}

// numericRange renders a comparison as a range query; parentheses mark
// exclusive bounds. Gt is exclusive, [(N inf], and Ge is inclusive, [N inf],
// so each operator keeps its own meaning on the server.
func numericRange(name string, op expr.CompareOp, n string) string {
	switch op {
	case expr.Lt:
		return name + ":[-inf (" + n + "]"
	case expr.Le:
		return name + ":[-inf " + n + "]"
	case expr.Gt:
		return name + ":[(" + n + " inf]"
	case expr.Ge:
		return name + ":[" + n + " inf]"
	case expr.Ne:
		return "-" + name + ":[" + n + " " + n + "]"
	default:
		return name + ":[" + n + " " + n + "]"
	}
}

func negate(op expr.CompareOp, s string) string {
	if op == expr.Ne {
		return "-" + s
	}
	return s
}

func (c *Compiler) method(n expr.MethodCall) (Clause, error) {
	if n.Receiver != expr.ReceiverInstance {
		return Clause{}, core.NewCompileError("MethodCall", qualified(n), "not a supported predicate")
	}
	if len(n.Args) != 1 {
		return Clause{}, core.NewCompileError("MethodCall", n.Name, fmt.Sprintf("unsupported arity %d", len(n.Args)))
	}

	field, ok := n.Target.(expr.MemberAccess)
	if !ok {
		if n.Name == "Contains" {
			return c.membership(n)
		}
		return Clause{}, core.NewCompileError("MethodCall", n.Name, "target must be an indexed field")
	}
	f, err := c.scope.Field(field)
	if err != nil {
		return Clause{}, err
	}
	v, err := c.literal(n.Args[0])
	if err != nil {
		return Clause{}, err
	}
	s, err := FormatText(v)
	if err != nil {
		return Clause{}, core.WrapCompileError("MethodCall", n.Name, "bad argument", err)
	}

	name := "@" + f.ResolvedName()
	switch f.Kind {
	case schema.KindText:
		switch n.Name {
		case "Contains":
			return leaf(name+":"+s, ClauseText), nil
		case "StartsWith":
			return leaf(name+":"+s+"*", ClauseText), nil
		case "EndsWith":
			return leaf(name+":*"+s, ClauseText), nil
		}
	case schema.KindTag:
		switch n.Name {
		case "Contains":
			return leaf(name+":{"+EscapeTag(s)+"}", ClauseTag), nil
		case "StartsWith":
			return leaf(name+":{"+EscapeTag(s)+"*}", ClauseTag), nil
		case "EndsWith":
			return leaf(name+":{*"+EscapeTag(s)+"}", ClauseTag), nil
		}
	}
	return Clause{}, core.NewCompileError("MethodCall", n.Name, fmt.Sprintf("not supported on %s field %s", f.Kind, field.Key()))
}

// membership compiles values.Contains(x.Field) for a constant collection.
func (c *Compiler) membership(n expr.MethodCall) (Clause, error) {
	field, ok := n.Args[0].(expr.MemberAccess)
	if !ok {
		return Clause{}, core.NewCompileError("MethodCall", n.Name, "argument must be an indexed field")
	}
	f, err := c.scope.Field(field)
	if err != nil {
		return Clause{}, err
	}
	coll, err := c.literal(n.Target)
	if err != nil {
		return Clause{}, err
	}
	rv := reflect.ValueOf(coll)
	if coll == nil || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return Clause{}, core.NewCompileError("MethodCall", n.Name, fmt.Sprintf("target of type %T is not a collection", coll))
	}
	if rv.Len() == 0 {
		return Clause{}, core.NewCompileError("MethodCall", n.Name, "collection is empty")
	}

	values := make([]string, rv.Len())
	for i := range values {
		s, err := FormatText(rv.Index(i).Interface())
		if err != nil {
			return Clause{}, core.WrapCompileError("MethodCall", n.Name, "bad collection element", err)
		}
		values[i] = s
	}

	name := "@" + f.ResolvedName()
	switch f.Kind {
	case schema.KindTag:
		for i, v := range values {
			values[i] = EscapeTag(v)
		}
		return leaf(name+":{"+strings.Join(values, "|")+"}", ClauseTag), nil
	case schema.KindText:
		return leaf(name+":("+strings.Join(values, "|")+")", ClauseText), nil
	}
	return Clause{}, core.NewCompileError("MethodCall", n.Name, fmt.Sprintf("membership is not supported on %s field %s", f.Kind, field.Key()))
}

// literal evaluates the value side of a predicate. Anything that does not
// read the query parameter is computed here.
func (c *Compiler) literal(e expr.Expr) (any, error) {
	if k, ok := e.(expr.Constant); ok {
		return k.Value, nil
	}
	if expr.ReferencesParameter(e) {
		return nil, core.NewCompileError(construct(e), "", "value side of a predicate must not read the record")
	}
	return expr.Evaluate(e)
}

func leaf(text string, kind ClauseKind) Clause {
	return Clause{Text: text, Kind: kind, leaf: true}
}
