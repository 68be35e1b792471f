package query

import (
	"encoding/json"
	"fmt"

	"github.com/asaidimu/go-ftquery/core"
	"github.com/asaidimu/go-ftquery/core/expr"
)

// LogicalOperator combines the members of a FilterGroup.
type LogicalOperator string

// Logical operators for combining filter conditions.
const (
	LogicalOperatorAnd LogicalOperator = "and"
	LogicalOperatorOr  LogicalOperator = "or"
	LogicalOperatorNot LogicalOperator = "not"
)

// ComparisonOperator defines the set of operators that can be used in a filter condition.
type ComparisonOperator string

// Supported comparison operators.
const (
	ComparisonOperatorEq          ComparisonOperator = "eq"
	ComparisonOperatorNeq         ComparisonOperator = "neq"
	ComparisonOperatorLt          ComparisonOperator = "lt"
	ComparisonOperatorLte         ComparisonOperator = "lte"
	ComparisonOperatorGt          ComparisonOperator = "gt"
	ComparisonOperatorGte         ComparisonOperator = "gte"
	ComparisonOperatorIn          ComparisonOperator = "in"
	ComparisonOperatorNin         ComparisonOperator = "nin"
	ComparisonOperatorContains    ComparisonOperator = "contains"
	ComparisonOperatorNotContains ComparisonOperator = "ncontains"
	ComparisonOperatorStartsWith  ComparisonOperator = "startswith"
	ComparisonOperatorEndsWith    ComparisonOperator = "endswith"
)

// FilterCondition defines a single condition on a dotted field path.
type FilterCondition struct {
	Field    string             `json:"field"`
	Operator ComparisonOperator `json:"operator"`
	Value    any                `json:"value"`
}

// FilterGroup combines multiple filters using a logical operator. A "not"
// group negates the conjunction of its members.
type FilterGroup struct {
	Operator   LogicalOperator `json:"operator"`
	Conditions []QueryFilter   `json:"conditions"`
}

// QueryFilter is a union type that can represent either a single filter condition
// or a group of conditions.
type QueryFilter struct {
	Condition *FilterCondition `json:"condition,omitempty"`
	Group     *FilterGroup     `json:"group,omitempty"`
}

// SortConfiguration defines the sorting order for a specific field.
type SortConfiguration struct {
	Field     string        `json:"field"`
	Direction SortDirection `json:"direction"`
}

// PaginationOptions defines how search results are paged.
type PaginationOptions struct {
	Limit  *int `json:"limit,omitempty"`
	Offset *int `json:"offset,omitempty"`
}

// QueryDSL is a search described as data, for callers that receive queries
// as JSON rather than building expressions in code.
type QueryDSL struct {
	Filters    *QueryFilter       `json:"filters,omitempty"`
	Sort       *SortConfiguration `json:"sort,omitempty"`
	Pagination *PaginationOptions `json:"pagination,omitempty"`
	Projection []string           `json:"projection,omitempty"`
	Count      bool               `json:"count,omitempty"`
}

// ParseDSL reads a QueryDSL from JSON.
func ParseDSL(data []byte) (QueryDSL, error) {
	var dsl QueryDSL
	if err := json.Unmarshal(data, &dsl); err != nil {
		return QueryDSL{}, fmt.Errorf("failed to parse query: %w", err)
	}
	return dsl, nil
}

// Apply extends q with everything the document describes.
func (d QueryDSL) Apply(q *SearchQuery) (*SearchQuery, error) {
	if d.Filters != nil {
		e, err := d.Filters.Expr()
		if err != nil {
			return nil, err
		}
		q = q.Where(e)
	}
	if d.Sort != nil {
		switch d.Sort.Direction {
		case "", Ascending, "asc":
			q = q.OrderBy(expr.Field(d.Sort.Field))
		case Descending, "desc":
			q = q.OrderByDescending(expr.Field(d.Sort.Field))
		default:
			return nil, core.NewCompileError("SortConfiguration", d.Sort.Field, fmt.Sprintf("unknown direction %q", d.Sort.Direction))
		}
	}
	if p := d.Pagination; p != nil {
		if p.Offset != nil {
			q = q.Skip(*p.Offset)
		}
		if p.Limit != nil {
			q = q.Take(*p.Limit)
		}
	}
	if len(d.Projection) > 0 {
		items := make([]expr.Expr, len(d.Projection))
		for i, f := range d.Projection {
			items[i] = expr.Field(f)
		}
		q = q.Select(expr.New(items...))
	}
	if d.Count {
		q = q.Count()
	}
	return q, nil
}

// Expr converts the filter into an expression tree. Groups fold left, so
// [a, b, c] under "and" becomes (a && b) && c.
func (f QueryFilter) Expr() (expr.Expr, error) {
	switch {
	case f.Condition != nil && f.Group != nil:
		return nil, core.NewCompileError("QueryFilter", "", "filter holds both a condition and a group")
	case f.Condition != nil:
		return f.Condition.Expr()
	case f.Group != nil:
		return f.Group.Expr()
	}
	return nil, core.NewCompileError("QueryFilter", "", "empty filter")
}

// Expr converts the group into an expression tree.
func (g FilterGroup) Expr() (expr.Expr, error) {
	if len(g.Conditions) == 0 {
		return nil, core.NewCompileError("FilterGroup", string(g.Operator), "group has no conditions")
	}
	var out expr.Expr
	for _, c := range g.Conditions {
		e, err := c.Expr()
		if err != nil {
			return nil, err
		}
		switch {
		case out == nil:
			out = e
		case g.Operator == LogicalOperatorOr:
			out = expr.OrElse(out, e)
		default:
			out = expr.AndAlso(out, e)
		}
	}
	switch g.Operator {
	case LogicalOperatorAnd, LogicalOperatorOr:
		return out, nil
	case LogicalOperatorNot:
		return expr.Not(out), nil
	}
	return nil, core.NewCompileError("FilterGroup", string(g.Operator), "unknown logical operator")
}

// Expr converts the condition into an expression tree.
func (c FilterCondition) Expr() (expr.Expr, error) {
	if c.Field == "" {
		return nil, core.NewCompileError("FilterCondition", "", "field is required")
	}
	field := expr.Field(c.Field)
	value := expr.Lit(c.Value)

	switch c.Operator {
	case ComparisonOperatorEq:
		return expr.Equal(field, value), nil
	case ComparisonOperatorNeq:
		return expr.NotEqual(field, value), nil
	case ComparisonOperatorLt:
		return expr.LessThan(field, value), nil
	case ComparisonOperatorLte:
		return expr.LessOrEqual(field, value), nil
	case ComparisonOperatorGt:
		return expr.GreaterThan(field, value), nil
	case ComparisonOperatorGte:
		return expr.GreaterOrEqual(field, value), nil
	case ComparisonOperatorIn:
		return expr.Call(value, "Contains", field), nil
	case ComparisonOperatorNin:
		return expr.Not(expr.Call(value, "Contains", field)), nil
	case ComparisonOperatorContains:
		return expr.Call(field, "Contains", value), nil
	case ComparisonOperatorNotContains:
		return expr.Not(expr.Call(field, "Contains", value)), nil
	case ComparisonOperatorStartsWith:
		return expr.Call(field, "StartsWith", value), nil
	case ComparisonOperatorEndsWith:
		return expr.Call(field, "EndsWith", value), nil
	}
	return nil, core.NewCompileError("FilterCondition", c.Field, fmt.Sprintf("unknown operator %q", c.Operator))
}
