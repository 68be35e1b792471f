package aggregate

import (
	"slices"

	"github.com/asaidimu/go-ftquery/core"
	"github.com/asaidimu/go-ftquery/core/expr"
	"github.com/asaidimu/go-ftquery/core/query"
	"github.com/asaidimu/go-ftquery/core/schema"
)

// AggregationSet builds an aggregation over an index whose records map onto
// T. It is persistent: every method returns a new set and leaves the
// receiver valid, so a base set can be shared and extended independently.
//
// Builder methods never fail. The first error is recorded and returned by
// Err, Build and Explain; later calls on a failed set keep the error.
type AggregationSet[T any] struct {
	scope    query.Scope
	where    []expr.Expr
	pipeline Pipeline
	chunk    int
	err      error
}

// New starts an aggregation over index.
func New[T any](index *schema.Index) *AggregationSet[T] {
	s := &AggregationSet[T]{scope: query.NewScope(index)}
	if index == nil {
		s.err = core.NewCompileError("AggregationSet", "", "no index")
	}
	return s
}

func (s *AggregationSet[T]) clone() *AggregationSet[T] {
	c := *s
	c.where = slices.Clone(s.where)
	return &c
}

// extend appends a stage and checks that the pipeline still renders.
func (s *AggregationSet[T]) extend(st Stage) *AggregationSet[T] {
	c := s.clone()
	if c.err != nil {
		return c
	}
	c.pipeline = s.pipeline.Append(st)
	if _, err := c.render(false, 0); err != nil {
		c.err = err
	}
	return c
}

// Where restricts the records entering the pipeline with a search
// predicate. Like search queries, the most recent predicate is leftmost.
func (s *AggregationSet[T]) Where(predicate expr.Expr) *AggregationSet[T] {
	c := s.clone()
	if c.err != nil {
		return c
	}
	c.where = append(c.where, predicate)
	if _, err := query.CompileWhere(c.scope, c.where); err != nil {
		c.err = err
	}
	return c
}

// Filter drops records for which predicate is false.
func (s *AggregationSet[T]) Filter(predicate expr.Expr) *AggregationSet[T] {
	return s.extend(Filter{Expr: predicate})
}

// Apply computes e for every record and stores it as alias.
func (s *AggregationSet[T]) Apply(e expr.Expr, alias string) *AggregationSet[T] {
	return s.extend(Apply{Expr: e, Alias: alias})
}

// GroupBy groups records by a field, a reference or a projection of them.
// An empty projection groups all records together.
func (s *AggregationSet[T]) GroupBy(fields expr.Expr) *GroupedAggregationSet[T] {
	return &GroupedAggregationSet[T]{set: s.extend(GroupBy{Fields: fields})}
}

// Reduce reduces all records as one group.
func (s *AggregationSet[T]) Reduce(reducers ...Reducer) *GroupedAggregationSet[T] {
	return (&GroupedAggregationSet[T]{set: s}).Reduce(reducers...)
}

// OrderBy sorts ascending by field. Consecutive sort calls add keys to the
// same SORTBY.
func (s *AggregationSet[T]) OrderBy(field expr.Expr) *AggregationSet[T] {
	return s.extend(OrderBy{Field: field, Direction: query.Ascending})
}

// OrderByDescending sorts descending by field.
func (s *AggregationSet[T]) OrderByDescending(field expr.Expr) *AggregationSet[T] {
	return s.extend(OrderBy{Field: field, Direction: query.Descending})
}

// Skip sets the offset of the output window.
func (s *AggregationSet[T]) Skip(n int) *AggregationSet[T] {
	return s.extend(Limit{Offset: &n})
}

// Take sets the size of the output window.
func (s *AggregationSet[T]) Take(n int) *AggregationSet[T] {
	return s.extend(Limit{Count: &n})
}

// Load loads a field or projection of fields from the stored documents.
func (s *AggregationSet[T]) Load(fields expr.Expr) *AggregationSet[T] {
	return s.extend(Load{Fields: fields})
}

// LoadAll loads every field of the stored documents.
func (s *AggregationSet[T]) LoadAll() *AggregationSet[T] {
	return s.extend(Load{All: true})
}

// WithCursor makes the command open a cursor returning chunk records per
// read.
func (s *AggregationSet[T]) WithCursor(chunk int) *AggregationSet[T] {
	c := s.clone()
	if chunk <= 0 && c.err == nil {
		c.err = core.NewCompileError("WithCursor", "", "chunk size must be positive")
	}
	c.chunk = chunk
	return c
}

// Index returns the index the set aggregates.
func (s *AggregationSet[T]) Index() *schema.Index { return s.scope.Index() }

// Pipeline returns the accumulated stages.
func (s *AggregationSet[T]) Pipeline() Pipeline { return s.pipeline }

// ChunkSize returns the cursor chunk size, or 0 when no cursor was requested.
func (s *AggregationSet[T]) ChunkSize() int { return s.chunk }

// Err returns the first error recorded while building the set.
func (s *AggregationSet[T]) Err() error { return s.err }

// Build renders the FT.AGGREGATE command.
func (s *AggregationSet[T]) Build() (core.Command, error) {
	if s.err != nil {
		return core.Command{}, s.err
	}
	return s.render(s.chunk > 0, s.chunk)
}

// CursorCommand renders the command with a cursor. The chunk size set with
// WithCursor takes precedence over fallback.
func (s *AggregationSet[T]) CursorCommand(fallback int) (core.Command, int, error) {
	if s.err != nil {
		return core.Command{}, 0, s.err
	}
	chunk := s.chunk
	if chunk <= 0 {
		chunk = fallback
	}
	if chunk <= 0 {
		return core.Command{}, 0, core.NewCompileError("WithCursor", "", "chunk size must be positive")
	}
	cmd, err := s.render(true, chunk)
	return cmd, chunk, err
}

// Explain renders the command as a single line.
func (s *AggregationSet[T]) Explain() (string, error) {
	cmd, err := s.Build()
	if err != nil {
		return "", err
	}
	return cmd.String(), nil
}

// GroupedAggregationSet is an AggregationSet whose last stage groups
// records, so reducers can be added.
type GroupedAggregationSet[T any] struct {
	set *AggregationSet[T]
}

// Reduce adds reducers to the current group. Without a preceding GroupBy,
// all records form one group.
func (g *GroupedAggregationSet[T]) Reduce(reducers ...Reducer) *GroupedAggregationSet[T] {
	s := g.set
	for _, r := range reducers {
		s = s.extend(Reduce{Reducer: r})
	}
	return &GroupedAggregationSet[T]{set: s}
}

// GroupBy starts another grouping on the output of the current one.
func (g *GroupedAggregationSet[T]) GroupBy(fields expr.Expr) *GroupedAggregationSet[T] {
	return g.set.GroupBy(fields)
}

func (g *GroupedAggregationSet[T]) Sum(field expr.Expr) *GroupedAggregationSet[T] {
	return g.Reduce(Sum(field))
}

func (g *GroupedAggregationSet[T]) Average(field expr.Expr) *GroupedAggregationSet[T] {
	return g.Reduce(Average(field))
}

func (g *GroupedAggregationSet[T]) Min(field expr.Expr) *GroupedAggregationSet[T] {
	return g.Reduce(Min(field))
}

func (g *GroupedAggregationSet[T]) Max(field expr.Expr) *GroupedAggregationSet[T] {
	return g.Reduce(Max(field))
}

func (g *GroupedAggregationSet[T]) StandardDeviation(field expr.Expr) *GroupedAggregationSet[T] {
	return g.Reduce(StandardDeviation(field))
}

func (g *GroupedAggregationSet[T]) CountDistinct(field expr.Expr) *GroupedAggregationSet[T] {
	return g.Reduce(CountDistinct(field))
}

func (g *GroupedAggregationSet[T]) CountDistinctish(field expr.Expr) *GroupedAggregationSet[T] {
	return g.Reduce(CountDistinctish(field))
}

func (g *GroupedAggregationSet[T]) Distinct(field expr.Expr) *GroupedAggregationSet[T] {
	return g.Reduce(Distinct(field))
}

func (g *GroupedAggregationSet[T]) Count() *GroupedAggregationSet[T] {
	return g.Reduce(Count())
}

// CloseGroup returns to the ungrouped set. No stage is added.
func (g *GroupedAggregationSet[T]) CloseGroup() *AggregationSet[T] { return g.set }

// Build renders the FT.AGGREGATE command.
func (g *GroupedAggregationSet[T]) Build() (core.Command, error) { return g.set.Build() }

// Explain renders the command as a single line.
func (g *GroupedAggregationSet[T]) Explain() (string, error) { return g.set.Explain() }

// Err returns the first error recorded while building the set.
func (g *GroupedAggregationSet[T]) Err() error { return g.set.Err() }
