package persistence

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/asaidimu/go-ftquery/core/reply"
	"github.com/asaidimu/go-ftquery/core/schema"
	"github.com/stretchr/testify/require"
)

type person struct {
	Name    string
	Age     int
	Address struct {
		State string
	}
}

var people = schema.MustIndex("people-idx",
	schema.Field("Name", schema.KindText),
	schema.Field("Age", schema.KindNumeric).AsSortable(),
	schema.Field("Address.State", schema.KindTag),
)

type step struct {
	reply reply.Reply
	err   error
}

// scriptedTransport replays canned replies in order and records every
// command it receives.
type scriptedTransport struct {
	mu    sync.Mutex
	steps []step
	calls []string
}

func newScript(steps ...step) *scriptedTransport {
	return &scriptedTransport{steps: steps}
}

func (s *scriptedTransport) Execute(_ context.Context, command string, args ...any) (reply.Reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	parts := []string{command}
	for _, a := range args {
		parts = append(parts, fmt.Sprint(a))
	}
	s.calls = append(s.calls, strings.Join(parts, " "))
	if len(s.steps) == 0 {
		return reply.Reply{}, fmt.Errorf("unexpected command %q", parts[0])
	}
	next := s.steps[0]
	s.steps = s.steps[1:]
	return next.reply, next.err
}

func (s *scriptedTransport) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func ok(r reply.Reply) step { return step{reply: r} }

func fail(err error) step { return step{err: err} }

// record builds a name/value pair array.
func record(pairs ...string) reply.Reply {
	items := make([]reply.Reply, len(pairs))
	for i, p := range pairs {
		items[i] = reply.Str(p)
	}
	return reply.Array(items...)
}

// batch builds a cursor reply: [[count, records...], cursor].
func batch(cursor int64, records ...reply.Reply) reply.Reply {
	inner := append([]reply.Reply{reply.Int(int64(len(records)))}, records...)
	return reply.Array(reply.Array(inner...), reply.Int(cursor))
}

func newTestExecutor(t *testing.T, steps ...step) (*Executor, *scriptedTransport) {
	t.Helper()
	tr := newScript(steps...)
	ex, err := NewExecutor(tr, nil)
	require.NoError(t, err)
	return ex, tr
}
