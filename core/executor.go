package core

import (
	"context"

	"github.com/asaidimu/go-ftquery/core/reply"
)

// Document is a single record keyed by wire field name.
type Document map[string]any

// Transport executes a single command against the server and returns its
// self-describing reply. Framing, pooling and retries are the transport's
// concern; callers receive server failures unchanged.
type Transport interface {
	Execute(ctx context.Context, command string, args ...any) (reply.Reply, error)
}

// TransportFunc adapts a plain function to the Transport interface.
type TransportFunc func(ctx context.Context, command string, args ...any) (reply.Reply, error)

// Execute calls f.
func (f TransportFunc) Execute(ctx context.Context, command string, args ...any) (reply.Reply, error) {
	return f(ctx, command, args...)
}
