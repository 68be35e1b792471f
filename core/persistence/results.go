package persistence

import (
	"context"
	"iter"
	"sync"
)

// Results is a typed view over a Cursor. Next/Result, All and Stream share
// the same cursor, so records consumed by one are not seen by another.
type Results[T any] struct {
	cursor *Cursor
	mat    *Materializer[T]
	cur    AggregationResult[T]

	stop     chan struct{}
	stopOnce sync.Once
}

// NewResults wraps cursor, hydrating records with mat.
func NewResults[T any](cursor *Cursor, mat *Materializer[T]) *Results[T] {
	return &Results[T]{cursor: cursor, mat: mat, stop: make(chan struct{})}
}

// Next advances to the next result.
func (r *Results[T]) Next(ctx context.Context) bool {
	if !r.cursor.Next(ctx) {
		return false
	}
	r.cur = r.mat.Aggregation(r.cursor.Record())
	return true
}

// Result returns the result Next advanced to.
func (r *Results[T]) Result() AggregationResult[T] { return r.cur }

// Err returns the error that stopped iteration, if any.
func (r *Results[T]) Err() error { return r.cursor.Err() }

// Close releases the server cursor if it was not exhausted.
func (r *Results[T]) Close(ctx context.Context) error { return r.cursor.Close(ctx) }

// All returns an iterator over the remaining results. Iteration stops at the
// first error, which is yielded once with a zero result. The cursor is
// closed when the loop ends, including on break.
func (r *Results[T]) All(ctx context.Context) iter.Seq2[AggregationResult[T], error] {
	return func(yield func(AggregationResult[T], error) bool) {
		defer r.Close(context.WithoutCancel(ctx))
		for r.Next(ctx) {
			if !yield(r.cur, nil) {
				return
			}
		}
		if err := r.Err(); err != nil {
			yield(AggregationResult[T]{}, err)
		}
	}
}

// Collect drains the remaining results into a slice.
func (r *Results[T]) Collect(ctx context.Context) ([]AggregationResult[T], error) {
	var out []AggregationResult[T]
	for res, err := range r.All(ctx) {
		if err != nil {
			return out, err
		}
		out = append(out, res)
	}
	return out, nil
}

// Stream delivers the remaining results on a channel from a separate
// goroutine. Like Next, it checks ctx only before a new batch is requested,
// so every record of a batch already received is delivered. The channel is
// closed once the results are exhausted, an error occurs, or Stop is called;
// check Err afterwards. The cursor is closed before the channel is.
func (r *Results[T]) Stream(ctx context.Context) <-chan AggregationResult[T] {
	ch := make(chan AggregationResult[T])
	go func() {
		defer close(ch)
		defer r.Close(context.WithoutCancel(ctx))
		for r.Next(ctx) {
			select {
			case ch <- r.cur:
			case <-r.stop:
				return
			}
		}
	}()
	return ch
}

// Stop ends a Stream whose consumer no longer reads from the channel. It is
// safe to call more than once and from any goroutine.
func (r *Results[T]) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
}
