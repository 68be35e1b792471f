package persistence

import (
	"context"
	"fmt"

	"github.com/asaidimu/go-ftquery/core/aggregate"
	"github.com/asaidimu/go-ftquery/core/query"
	"github.com/asaidimu/go-ftquery/core/schema"
	"go.uber.org/zap"
)

// Collection is the typed entry point for querying one index. It starts
// search and aggregation builders and runs them through the executor,
// materializing records as T.
type Collection[T any] struct {
	index    *schema.Index
	executor *Executor
	mat      *Materializer[T]
	logger   *zap.Logger
}

// NewCollection creates a collection over index.
func NewCollection[T any](index *schema.Index, executor *Executor, logger *zap.Logger) (*Collection[T], error) {
	if index == nil {
		return nil, fmt.Errorf("collection: index cannot be nil")
	}
	if executor == nil {
		return nil, fmt.Errorf("collection %s: executor cannot be nil", index.Name())
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collection[T]{
		index:    index,
		executor: executor,
		mat:      NewMaterializer[T](index),
		logger:   logger.With(zap.String("index", index.Name())),
	}, nil
}

// Index returns the collection's index.
func (c *Collection[T]) Index() *schema.Index { return c.index }

// Search starts a search over the collection.
func (c *Collection[T]) Search() *query.SearchQuery { return query.NewSearch(c.index) }

// Aggregate starts an aggregation over the collection.
func (c *Collection[T]) Aggregate() *aggregate.AggregationSet[T] { return aggregate.New[T](c.index) }

// Find runs q and returns the total number of matches with the hits of the
// requested page.
func (c *Collection[T]) Find(ctx context.Context, q *query.SearchQuery) (int64, []SearchResult[T], error) {
	cmd, err := q.Build()
	if err != nil {
		return 0, nil, err
	}
	total, records, err := c.executor.Search(ctx, c.index.Name(), cmd)
	if err != nil {
		return 0, nil, err
	}
	out := make([]SearchResult[T], len(records))
	for i, rec := range records {
		out[i] = c.mat.Search(rec)
	}
	c.logger.Debug("Search completed", zap.Int64("total", total), zap.Int("returned", len(out)))
	return total, out, nil
}

// Count returns the number of documents matching q.
func (c *Collection[T]) Count(ctx context.Context, q *query.SearchQuery) (int64, error) {
	cmd, err := q.Count().Build()
	if err != nil {
		return 0, err
	}
	total, _, err := c.executor.Search(ctx, c.index.Name(), cmd)
	return total, err
}

// Run executes set with a cursor and returns its results. The first batch
// is requested before Run returns; later batches are read as the results
// are consumed. Callers must Close the results unless they are drained.
func (c *Collection[T]) Run(ctx context.Context, set *aggregate.AggregationSet[T]) (*Results[T], error) {
	cmd, chunk, err := set.CursorCommand(c.executor.ChunkSize())
	if err != nil {
		return nil, err
	}
	cursor, err := c.executor.Open(ctx, c.index.Name(), cmd, chunk)
	if err != nil {
		return nil, err
	}
	return NewResults(cursor, c.mat), nil
}

// Collect executes set and drains every result.
func (c *Collection[T]) Collect(ctx context.Context, set *aggregate.AggregationSet[T]) ([]AggregationResult[T], error) {
	results, err := c.Run(ctx, set)
	if err != nil {
		return nil, err
	}
	return results.Collect(ctx)
}
