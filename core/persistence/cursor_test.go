package persistence

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/asaidimu/go-ftquery/core"
	"github.com/asaidimu/go-ftquery/core/reply"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var initial = core.Command{
	Name: "FT.AGGREGATE",
	Args: []string{"people-idx", "*", "LOAD", "1", "@Name", "WITHCURSOR", "COUNT", "2"},
}

func names(t *testing.T, c *Cursor) []string {
	t.Helper()
	var out []string
	ctx := context.Background()
	for c.Next(ctx) {
		v, err := c.Record().Values["Name"].AsString()
		require.NoError(t, err)
		out = append(out, v)
	}
	require.NoError(t, c.Err())
	return out
}

func TestCursor_ReadsEveryBatch(t *testing.T) {
	ex, tr := newTestExecutor(t,
		ok(batch(9, record("Name", "a"), record("Name", "b"))),
		ok(batch(9, record("Name", "c"), record("Name", "d"))),
		ok(batch(0, record("Name", "e"))),
	)

	c, err := ex.Open(context.Background(), "people-idx", initial, 2)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, names(t, c))
	assert.Equal(t, []string{
		"FT.AGGREGATE people-idx * LOAD 1 @Name WITHCURSOR COUNT 2",
		"FT.CURSOR READ people-idx 9 COUNT 2",
		"FT.CURSOR READ people-idx 9 COUNT 2",
	}, tr.Calls())

	// Exhausted cursors make no further calls, and Close has nothing to delete.
	assert.False(t, c.Next(context.Background()))
	require.NoError(t, c.Close(context.Background()))
	assert.Len(t, tr.Calls(), 3)
}

func TestCursor_EmptyBatchKeepsPolling(t *testing.T) {
	ex, tr := newTestExecutor(t,
		ok(batch(5)),
		ok(batch(5)),
		ok(batch(5, record("Name", "a"))),
		ok(batch(0)),
	)

	c, err := ex.Open(context.Background(), "people-idx", initial, 2)
	require.NoError(t, err)

	assert.Equal(t, []string{"a"}, names(t, c))
	assert.Len(t, tr.Calls(), 4)
}

func TestCursor_SingleBatch(t *testing.T) {
	ex, tr := newTestExecutor(t, ok(batch(0, record("Name", "a"))))

	c, err := ex.Open(context.Background(), "people-idx", initial, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, names(t, c))
	assert.Len(t, tr.Calls(), 1)
}

func TestCursor_CancellationBeforeRead(t *testing.T) {
	ex, tr := newTestExecutor(t,
		ok(batch(3, record("Name", "a"), record("Name", "b"))),
		ok(batch(0, record("Name", "c"))),
		ok(reply.Str("OK")),
	)
	ctx, cancel := context.WithCancel(context.Background())

	c, err := ex.Open(ctx, "people-idx", initial, 2)
	require.NoError(t, err)

	require.True(t, c.Next(ctx))
	cancel()
	// The current batch is still delivered after cancellation.
	require.True(t, c.Next(ctx))
	assert.Equal(t, "b", c.Record().Values["Name"].String())

	assert.False(t, c.Next(ctx))
	assert.ErrorIs(t, c.Err(), context.Canceled)
	assert.Len(t, tr.Calls(), 1)

	require.NoError(t, c.Close(context.Background()))
	assert.Equal(t, "FT.CURSOR DEL people-idx 3", tr.Calls()[1])
}

func TestCursor_CloseDeletesOpenCursor(t *testing.T) {
	ex, tr := newTestExecutor(t,
		ok(batch(11, record("Name", "a"))),
		ok(reply.Str("OK")),
	)
	c, err := ex.Open(context.Background(), "people-idx", initial, 2)
	require.NoError(t, err)
	require.True(t, c.Next(context.Background()))

	require.NoError(t, c.Close(context.Background()))
	require.NoError(t, c.Close(context.Background()))
	assert.False(t, c.Next(context.Background()))
	assert.Equal(t, []string{
		"FT.AGGREGATE people-idx * LOAD 1 @Name WITHCURSOR COUNT 2",
		"FT.CURSOR DEL people-idx 11",
	}, tr.Calls())
}

func TestCursor_CloseIgnoresDeleteFailure(t *testing.T) {
	ex, _ := newTestExecutor(t,
		ok(batch(11, record("Name", "a"))),
		fail(errors.New("Cursor not found")),
	)
	c, err := ex.Open(context.Background(), "people-idx", initial, 2)
	require.NoError(t, err)
	assert.NoError(t, c.Close(context.Background()))
	assert.Zero(t, c.ID())
}

func TestCursor_Errors(t *testing.T) {
	t.Run("server error on open passes through", func(t *testing.T) {
		serverErr := core.NewServerError("FT.AGGREGATE", errors.New("Unknown Index name"))
		ex, _ := newTestExecutor(t, fail(serverErr))
		_, err := ex.Open(context.Background(), "people-idx", initial, 2)
		assert.Same(t, serverErr, err)
	})

	t.Run("server error on read passes through", func(t *testing.T) {
		readErr := errors.New("connection reset")
		ex, _ := newTestExecutor(t, ok(batch(4, record("Name", "a"))), fail(readErr))
		c, err := ex.Open(context.Background(), "people-idx", initial, 2)
		require.NoError(t, err)
		require.True(t, c.Next(context.Background()))
		assert.False(t, c.Next(context.Background()))
		assert.Same(t, readErr, c.Err())
	})

	t.Run("malformed reply", func(t *testing.T) {
		ex, _ := newTestExecutor(t, ok(reply.Array(reply.Int(1), record("Name", "a"))))
		_, err := ex.Open(context.Background(), "people-idx", initial, 2)
		assert.True(t, core.IsProtocolError(err))
	})
}

func TestExecutor_Events(t *testing.T) {
	ex, _ := newTestExecutor(t,
		ok(batch(8, record("Name", "a"))),
		ok(batch(0, record("Name", "b"))),
	)

	var mu sync.Mutex
	seen := map[QueryEventType][]QueryEvent{}
	collect := func(_ context.Context, ev QueryEvent) error {
		mu.Lock()
		defer mu.Unlock()
		seen[ev.Type] = append(seen[ev.Type], ev)
		return nil
	}
	for _, typ := range []QueryEventType{QueryStart, CursorRead, QuerySuccess} {
		unsubscribe := ex.Subscribe(typ, collect)
		defer unsubscribe()
	}

	c, err := ex.Open(context.Background(), "people-idx", initial, 2)
	require.NoError(t, err)
	for c.Next(context.Background()) {
	}
	require.NoError(t, c.Err())

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen[QuerySuccess]) == 1 && len(seen[CursorRead]) == 1 && len(seen[QueryStart]) == 1
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	start, read, done := seen[QueryStart][0], seen[CursorRead][0], seen[QuerySuccess][0]
	assert.NotEmpty(t, start.QueryID)
	assert.Equal(t, start.QueryID, read.QueryID)
	assert.Equal(t, start.QueryID, done.QueryID)
	assert.Equal(t, "people-idx", start.Index)
	assert.Equal(t, 1, read.Records)
	assert.Equal(t, 2, done.Records)
	require.NotNil(t, done.Duration)
	assert.Nil(t, done.Error)
}

func TestExecutor_FailedEvent(t *testing.T) {
	ex, _ := newTestExecutor(t, fail(errors.New("boom")))

	got := make(chan QueryEvent, 1)
	unsubscribe := ex.Subscribe(QueryFailed, func(_ context.Context, ev QueryEvent) error {
		got <- ev
		return nil
	})
	defer unsubscribe()

	_, err := ex.Open(context.Background(), "people-idx", initial, 2)
	require.Error(t, err)

	select {
	case ev := <-got:
		require.NotNil(t, ev.Error)
		assert.Equal(t, "boom", *ev.Error)
	case <-time.After(time.Second):
		t.Fatal("no failure event")
	}
}

func TestNewExecutor(t *testing.T) {
	_, err := NewExecutor(nil, nil)
	assert.Error(t, err)

	ex, _ := newTestExecutor(t)
	assert.Equal(t, DefaultChunkSize, ex.ChunkSize())
	assert.Equal(t, 50, ex.WithChunkSize(50).ChunkSize())
	assert.Equal(t, 50, ex.WithChunkSize(0).ChunkSize())
}

func TestExecutor_LogsFailuresAtError(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"transport error", errors.New("connection reset")},
		{"server error", &core.ServerError{Command: "FT.SEARCH", Message: "Unknown index name"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs, logs := observer.New(zapcore.DebugLevel)
			ex, err := NewExecutor(newScript(fail(tt.err)), zap.New(obs))
			require.NoError(t, err)

			_, err = ex.Execute(context.Background(), core.Command{Name: "FT.SEARCH", Args: []string{"people-idx", "*"}})
			require.ErrorIs(t, err, tt.err)

			failed := logs.FilterMessage("Command failed").All()
			require.Len(t, failed, 1)
			assert.Equal(t, zapcore.ErrorLevel, failed[0].Level)
			assert.Equal(t, "FT.SEARCH", failed[0].ContextMap()["command"])
			assert.Equal(t, tt.err.Error(), failed[0].ContextMap()["error"])
		})
	}
}
