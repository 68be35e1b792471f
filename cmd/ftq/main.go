// Command ftq compiles and runs search and aggregation queries against a
// Redis index described by a JSON index definition.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/asaidimu/go-ftquery/config"
	"github.com/asaidimu/go-ftquery/core/persistence"
	"github.com/asaidimu/go-ftquery/core/schema"
	"github.com/asaidimu/go-ftquery/redisconn"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type globals struct {
	configFile string
	schemaFile string
	addr       string

	cfg    config.Config
	index  *schema.Index
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:           "ftq",
		Short:         "Compile and run full-text search queries",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return g.load()
		},
	}
	root.PersistentFlags().StringVar(&g.configFile, "config", "", "config file (default .env)")
	root.PersistentFlags().StringVarP(&g.schemaFile, "schema", "s", "", "index definition JSON file")
	root.PersistentFlags().StringVar(&g.addr, "addr", "", "server address, overrides redis.addr")
	_ = root.MarkPersistentFlagRequired("schema")

	root.AddCommand(newExplainCmd(g), newSearchCmd(g), newAggregateCmd(g))
	return root
}

func (g *globals) load() error {
	if err := config.Load(config.DefaultPrefix, g.configFile, &g.cfg); err != nil {
		return err
	}
	if g.addr != "" {
		g.cfg.Redis.Addr = g.addr
	}
	logger, err := g.cfg.Logger()
	if err != nil {
		return err
	}
	g.logger = logger

	data, err := os.ReadFile(g.schemaFile)
	if err != nil {
		return fmt.Errorf("failed to read index definition: %w", err)
	}
	g.index, err = schema.ParseIndex(data)
	return err
}

// connect dials the server and returns an executor over it.
func (g *globals) connect(ctx context.Context) (*persistence.Executor, func(), error) {
	tr, err := redisconn.Dial(ctx, &redisconn.Options{
		Addrs:    []string{g.cfg.Redis.Addr},
		Username: g.cfg.Redis.Username,
		Password: g.cfg.Redis.Password,
		DB:       g.cfg.Redis.DB,
		Protocol: g.cfg.Redis.Protocol,
	}, g.logger)
	if err != nil {
		return nil, nil, err
	}
	ex, err := persistence.NewExecutor(tr, g.logger)
	if err != nil {
		tr.Close()
		return nil, nil, err
	}
	ex.WithChunkSize(g.cfg.Cursor.Count)
	return ex, func() { tr.Close() }, nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
