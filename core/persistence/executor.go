package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/asaidimu/go-events"
	"github.com/asaidimu/go-ftquery/core"
	"github.com/asaidimu/go-ftquery/core/reply"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultChunkSize is the number of records requested per cursor read when
// the aggregation does not set one.
const DefaultChunkSize = 1000

// Executor runs compiled commands over a transport and reports their
// lifecycle on an event bus.
type Executor struct {
	transport core.Transport
	logger    *zap.Logger
	bus       *events.TypedEventBus[QueryEvent]
	chunk     int
}

// NewExecutor creates an executor over transport.
func NewExecutor(transport core.Transport, logger *zap.Logger) (*Executor, error) {
	if transport == nil {
		return nil, fmt.Errorf("executor: transport cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	bus, err := events.NewTypedEventBus[QueryEvent](events.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("could not initialize event bus: %w", err)
	}
	return &Executor{
		transport: transport,
		logger:    logger,
		bus:       bus,
		chunk:     DefaultChunkSize,
	}, nil
}

// WithChunkSize sets the cursor chunk size used when an aggregation does not
// set its own. Non-positive values are ignored.
func (e *Executor) WithChunkSize(n int) *Executor {
	if n > 0 {
		e.chunk = n
	}
	return e
}

// ChunkSize returns the default cursor chunk size.
func (e *Executor) ChunkSize() int { return e.chunk }

// Subscribe registers callback for events of the given type and returns a
// function that removes it.
func (e *Executor) Subscribe(event QueryEventType, callback func(ctx context.Context, ev QueryEvent) error) func() {
	return e.bus.Subscribe(string(event), callback)
}

func (e *Executor) emit(ev QueryEvent) {
	if e.bus != nil {
		e.bus.Emit(string(ev.Type), ev)
	}
}

// Execute sends cmd and returns the raw reply. Transport errors are
// returned unchanged.
func (e *Executor) Execute(ctx context.Context, cmd core.Command) (reply.Reply, error) {
	e.logger.Debug("Executing command", zap.String("command", cmd.String()))
	r, err := e.transport.Execute(ctx, cmd.Name, cmd.Any()...)
	if err != nil {
		e.logger.Error("Command failed", zap.String("command", cmd.Name), zap.Error(err))
		return reply.Reply{}, err
	}
	return r, nil
}

// Search runs an FT.SEARCH command and returns the total match count and
// the hits of the requested page.
func (e *Executor) Search(ctx context.Context, index string, cmd core.Command) (int64, []RawRecord, error) {
	started := time.Now()
	id := uuid.New().String()
	line := cmd.String()
	e.emit(newEvent(QueryStart, id, index, line))

	r, err := e.Execute(ctx, cmd)
	if err == nil {
		var total int64
		var records []RawRecord
		if total, records, err = ParseSearch(r); err == nil {
			ev := newEvent(QuerySuccess, id, index, line)
			ev.Records = len(records)
			e.emit(ev.finished(started))
			return total, records, nil
		}
	}
	e.emit(newEvent(QueryFailed, id, index, line).failed(started, err))
	return 0, nil, err
}

// Open issues an FT.AGGREGATE command built with a cursor and returns a
// cursor positioned before the first record. The initial call is made
// before Open returns.
func (e *Executor) Open(ctx context.Context, index string, cmd core.Command, chunk int) (*Cursor, error) {
	if chunk <= 0 {
		chunk = e.chunk
	}
	c := &Cursor{
		executor: e,
		index:    index,
		chunk:    chunk,
		queryID:  uuid.New().String(),
		command:  cmd.String(),
		started:  time.Now(),
		pos:      -1,
	}
	e.emit(newEvent(QueryStart, c.queryID, index, c.command))

	r, err := e.Execute(ctx, cmd)
	if err != nil {
		c.fail(err)
		return nil, err
	}
	if err := c.load(r); err != nil {
		c.fail(err)
		return nil, err
	}
	return c, nil
}

// Aggregate runs an FT.AGGREGATE command without a cursor and returns every
// record of the single reply.
func (e *Executor) Aggregate(ctx context.Context, index string, cmd core.Command) ([]RawRecord, error) {
	started := time.Now()
	id := uuid.New().String()
	line := cmd.String()
	e.emit(newEvent(QueryStart, id, index, line))

	r, err := e.Execute(ctx, cmd)
	if err == nil {
		var records []RawRecord
		if records, _, err = ParseAggregateBatch(r, false); err == nil {
			ev := newEvent(QuerySuccess, id, index, line)
			ev.Records = len(records)
			e.emit(ev.finished(started))
			return records, nil
		}
	}
	e.emit(newEvent(QueryFailed, id, index, line).failed(started, err))
	return nil, err
}
