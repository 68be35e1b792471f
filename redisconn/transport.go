// Package redisconn provides a core.Transport that sends commands to a
// Redis server with the search module loaded, using go-redis.
package redisconn

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/asaidimu/go-ftquery/core"
	"github.com/asaidimu/go-ftquery/core/reply"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Options configures the client created by Dial.
type Options struct {
	Addrs    []string // A single address, or several for a cluster.
	Username string
	Password string
	DB       int
	// Protocol selects RESP2 or RESP3. Search replies are framed for RESP2,
	// which is the default.
	Protocol    int
	DialTimeout time.Duration
}

// DefaultOptions returns options for a local server.
func DefaultOptions() *Options {
	return &Options{
		Addrs:       []string{"localhost:6379"},
		Protocol:    2,
		DialTimeout: 5 * time.Second,
	}
}

// Transport sends commands over a go-redis client.
type Transport struct {
	client redis.UniversalClient
	logger *zap.Logger
	owned  bool
}

// Ensure Transport implements the core.Transport interface.
var _ core.Transport = (*Transport)(nil)

// New wraps an existing client. Closing the transport leaves the client
// open.
func New(client redis.UniversalClient, logger *zap.Logger) *Transport {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transport{client: client, logger: logger}
}

// Dial creates a client from opts and checks that the server answers.
func Dial(ctx context.Context, opts *Options, logger *zap.Logger) (*Transport, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	protocol := opts.Protocol
	if protocol == 0 {
		protocol = 2
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:       opts.Addrs,
		Username:    opts.Username,
		Password:    opts.Password,
		DB:          opts.DB,
		Protocol:    protocol,
		DialTimeout: opts.DialTimeout,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to %v: %w", opts.Addrs, err)
	}
	t := New(client, logger)
	t.owned = true
	t.logger.Info("Connected to server", zap.Strings("addrs", opts.Addrs), zap.Int("protocol", protocol))
	return t, nil
}

// Execute implements core.Transport.
func (t *Transport) Execute(ctx context.Context, command string, args ...any) (reply.Reply, error) {
	t.logger.Debug("Sending command", zap.String("command", command), zap.Any("args", args))
	v, err := t.client.Do(ctx, append([]any{command}, args...)...).Result()
	r, err := convert(command, v, err)
	if err != nil {
		t.logger.Error("Command failed", zap.String("command", command), zap.Error(err))
	}
	return r, err
}

// Close closes the client if the transport created it.
func (t *Transport) Close() error {
	if !t.owned {
		return nil
	}
	return t.client.Close()
}

// convert maps a go-redis result onto a reply. Error replies from the
// server become *core.ServerError; connection failures are returned as is.
func convert(command string, v any, err error) (reply.Reply, error) {
	if errors.Is(err, redis.Nil) {
		return reply.Nil(), nil
	}
	var rerr redis.Error
	if errors.As(err, &rerr) {
		return reply.Reply{}, core.NewServerError(command, err)
	}
	if err != nil {
		return reply.Reply{}, err
	}
	r, err := reply.FromValue(v)
	if err != nil {
		return reply.Reply{}, &core.ProtocolError{Context: command, Expected: "RESP value", Got: fmt.Sprintf("%T", v)}
	}
	return r, nil
}
