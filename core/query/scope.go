package query

import (
	"slices"

	"github.com/asaidimu/go-ftquery/core"
	"github.com/asaidimu/go-ftquery/core/expr"
	"github.com/asaidimu/go-ftquery/core/schema"
)

// Scope resolves field accesses against an index, plus the names produced
// by earlier pipeline stages. It is immutable; With returns an extended copy.
type Scope struct {
	index   *schema.Index
	outputs []string
}

// NewScope creates a scope over the fields of index.
func NewScope(index *schema.Index) Scope {
	return Scope{index: index}
}

// Index returns the index the scope resolves against.
func (s Scope) Index() *schema.Index { return s.index }

// With returns a scope that also knows the given pipeline output names.
func (s Scope) With(names ...string) Scope {
	if len(names) == 0 {
		return s
	}
	out := make([]string, 0, len(s.outputs)+len(names))
	out = append(out, s.outputs...)
	out = append(out, names...)
	return Scope{index: s.index, outputs: out}
}

// Field returns the descriptor behind a member access.
func (s Scope) Field(m expr.MemberAccess) (schema.FieldDescriptor, error) {
	if s.index == nil {
		return schema.FieldDescriptor{}, core.NewCompileError("MemberAccess", m.Key(), "no index to resolve against")
	}
	f, err := s.index.Resolve(m.Path...)
	if err != nil {
		return schema.FieldDescriptor{}, core.WrapCompileError("MemberAccess", m.Key(), "field is not indexed", err)
	}
	return f, nil
}

// Name returns the wire name of a field access or pipeline reference.
func (s Scope) Name(e expr.Expr) (string, error) {
	switch n := e.(type) {
	case expr.MemberAccess:
		f, err := s.Field(n)
		if err != nil {
			return "", err
		}
		return f.ResolvedName(), nil
	case expr.Reference:
		if slices.Contains(s.outputs, n.Name) {
			return n.Name, nil
		}
		if s.index != nil {
			if _, ok := s.index.Lookup(n.Name); ok {
				return n.Name, nil
			}
		}
		return "", core.NewCompileError("Reference", n.Name, "name is not produced by an earlier stage")
	case nil:
		return "", core.NewCompileError("Expr", "", "missing field expression")
	default:
		return "", core.NewCompileError(construct(e), "", "expected a field or pipeline reference")
	}
}

// Names flattens a selector (a single field, a reference, or a projection of
// them) into wire names. An empty projection selects nothing.
func (s Scope) Names(e expr.Expr) ([]string, error) {
	p, ok := e.(expr.Projection)
	if !ok {
		name, err := s.Name(e)
		if err != nil {
			return nil, err
		}
		return []string{name}, nil
	}
	names := make([]string, 0, len(p.Items))
	for _, item := range p.Items {
		name, err := s.Name(item)
		if err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, nil
}

// construct names the node type of e for error reports.
func construct(e expr.Expr) string {
	switch e.(type) {
	case expr.BinaryBool:
		return "BinaryBool"
	case expr.UnaryNot:
		return "UnaryNot"
	case expr.Compare:
		return "Compare"
	case expr.Arith:
		return "Arith"
	case expr.MethodCall:
		return "MethodCall"
	case expr.MemberAccess:
		return "MemberAccess"
	case expr.Reference:
		return "Reference"
	case expr.Constant:
		return "Constant"
	case expr.ClosureRef:
		return "ClosureRef"
	case expr.Projection:
		return "Projection"
	}
	return "Expr"
}
