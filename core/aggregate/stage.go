// Package aggregate builds FT.AGGREGATE pipelines. A Pipeline is an
// append-only list of stages; the fluent sets wrap it and render it against
// an index.
package aggregate

import (
	"github.com/asaidimu/go-ftquery/core/expr"
	"github.com/asaidimu/go-ftquery/core/query"
)

// Stage is one unit of an aggregation pipeline. The set of implementations
// is closed.
type Stage interface {
	stage()
}

type (
	// Apply computes Expr and stores it under Alias.
	Apply struct {
		Expr  expr.Expr
		Alias string
	}

	// Filter drops records for which Expr is false.
	Filter struct {
		Expr expr.Expr
	}

	// GroupBy groups records by the selected fields. An empty projection
	// groups everything into one group.
	GroupBy struct {
		Fields expr.Expr
	}

	// Reduce collapses each group with a reducer function.
	Reduce struct {
		Reducer Reducer
	}

	// OrderBy sorts by one key. Consecutive OrderBy stages render as a
	// single SORTBY.
	OrderBy struct {
		Field     expr.Expr
		Direction query.SortDirection
	}

	// Load loads document fields that are not part of the index. All loads
	// every field.
	Load struct {
		Fields expr.Expr
		All    bool
	}

	// Limit sets the offset or the count of the output window. Every Limit
	// stage of a pipeline renders as one LIMIT.
	Limit struct {
		Offset *int
		Count  *int
	}
)

func (Apply) stage()   {}
func (Filter) stage()  {}
func (GroupBy) stage() {}
func (Reduce) stage()  {}
func (OrderBy) stage() {}
func (Load) stage()    {}
func (Limit) stage()   {}

// Pipeline is an immutable sequence of stages. Append returns a new
// pipeline; the receiver stays valid and unchanged.
type Pipeline struct {
	stages []Stage
}

// Append returns the pipeline extended with s.
func (p Pipeline) Append(s Stage) Pipeline {
	stages := make([]Stage, len(p.stages), len(p.stages)+1)
	copy(stages, p.stages)
	return Pipeline{stages: append(stages, s)}
}

// Len returns the number of stages.
func (p Pipeline) Len() int { return len(p.stages) }

// Stages returns a copy of the stages in order.
func (p Pipeline) Stages() []Stage {
	out := make([]Stage, len(p.stages))
	copy(out, p.stages)
	return out
}
