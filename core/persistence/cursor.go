package persistence

import (
	"context"
	"strconv"
	"time"

	"github.com/asaidimu/go-ftquery/core"
	"github.com/asaidimu/go-ftquery/core/reply"
	"go.uber.org/zap"
)

// Cursor walks the records of a server-side aggregation cursor one at a
// time, reading a new batch whenever the current one is exhausted.
//
// A Cursor is not safe for concurrent use.
type Cursor struct {
	executor *Executor
	index    string
	chunk    int
	queryID  string
	command  string
	started  time.Time

	id      int64
	batch   []RawRecord
	pos     int
	total   int
	err     error
	done    bool
	closed  bool
	current RawRecord
}

// ID returns the server cursor id, 0 once the server has exhausted it.
func (c *Cursor) ID() int64 { return c.id }

// Next advances to the next record. It returns false when the records are
// exhausted, the cursor was closed, or an error occurred; Err tells which.
// The context is checked only before a new batch is requested.
func (c *Cursor) Next(ctx context.Context) bool {
	if c.closed || c.err != nil {
		return false
	}
	for {
		if c.pos+1 < len(c.batch) {
			c.pos++
			c.current = c.batch[c.pos]
			return true
		}
		if c.id == 0 {
			c.finish()
			return false
		}
		if err := ctx.Err(); err != nil {
			c.fail(err)
			return false
		}
		if err := c.read(ctx); err != nil {
			c.fail(err)
			return false
		}
	}
}

// Record returns the record Next advanced to.
func (c *Cursor) Record() RawRecord { return c.current }

// Err returns the error that stopped iteration, if any.
func (c *Cursor) Err() error { return c.err }

// Close releases the server cursor when it was not exhausted. Failures to
// delete it are logged and not returned.
func (c *Cursor) Close(ctx context.Context) error {
	if c.closed {
		return nil
	}
	c.closed = true
	if c.id == 0 {
		return nil
	}

	cmd := core.Command{Name: "FT.CURSOR", Args: []string{"DEL", c.index, strconv.FormatInt(c.id, 10)}}
	ev := newEvent(CursorDelete, c.queryID, c.index, cmd.String())
	ev.CursorID = c.id
	if _, err := c.executor.Execute(ctx, cmd); err != nil {
		c.executor.logger.Warn("Failed to delete cursor",
			zap.String("index", c.index),
			zap.Int64("cursor", c.id),
			zap.Error(err))
	}
	c.id = 0
	c.executor.emit(ev)
	return nil
}

func (c *Cursor) read(ctx context.Context) error {
	cmd := core.Command{
		Name: "FT.CURSOR",
		Args: []string{"READ", c.index, strconv.FormatInt(c.id, 10), "COUNT", strconv.Itoa(c.chunk)},
	}
	r, err := c.executor.Execute(ctx, cmd)
	if err != nil {
		return err
	}
	if err := c.load(r); err != nil {
		return err
	}
	ev := newEvent(CursorRead, c.queryID, c.index, cmd.String())
	ev.CursorID = c.id
	ev.Records = len(c.batch)
	c.executor.emit(ev)
	return nil
}

func (c *Cursor) load(r reply.Reply) error {
	records, id, err := ParseAggregateBatch(r, true)
	if err != nil {
		return err
	}
	c.batch = records
	c.pos = -1
	c.id = id
	c.total += len(records)
	return nil
}

func (c *Cursor) finish() {
	if c.done {
		return
	}
	c.done = true
	ev := newEvent(QuerySuccess, c.queryID, c.index, c.command)
	ev.Records = c.total
	c.executor.emit(ev.finished(c.started))
}

func (c *Cursor) fail(err error) {
	c.err = err
	if c.done {
		return
	}
	c.done = true
	c.executor.emit(newEvent(QueryFailed, c.queryID, c.index, c.command).failed(c.started, err))
}
