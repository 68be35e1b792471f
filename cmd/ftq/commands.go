package main

import (
	"encoding/json"
	"fmt"

	"github.com/asaidimu/go-ftquery/core"
	"github.com/asaidimu/go-ftquery/core/persistence"
	"github.com/spf13/cobra"
)

func addSearchFlags(cmd *cobra.Command, f *searchFlags) {
	cmd.Flags().StringVarP(&f.query, "query", "q", "", `query document, e.g. {"filters":{"condition":{"field":"Age","operator":"gt","value":30}}}`)
}

func addAggregateFlags(cmd *cobra.Command, f *aggregateFlags) {
	cmd.Flags().StringVarP(&f.where, "where", "w", "", "filter restricting the records entering the pipeline (JSON)")
	cmd.Flags().StringSliceVar(&f.load, "load", nil, "fields to load")
	cmd.Flags().StringSliceVarP(&f.groupBy, "group-by", "g", nil, "fields to group by")
	cmd.Flags().StringArrayVarP(&f.reduce, "reduce", "r", nil, "reducer as function[:field[:arg]][=alias]")
	cmd.Flags().StringSliceVar(&f.sortBy, "sort", nil, "sort keys as name[:asc|desc]")
	cmd.Flags().IntVar(&f.skip, "skip", 0, "records to skip")
	cmd.Flags().IntVar(&f.take, "take", 0, "records to return")
	cmd.Flags().IntVar(&f.chunk, "chunk", 0, "records per cursor read (default cursor.count)")
}

func newExplainCmd(g *globals) *cobra.Command {
	explain := &cobra.Command{
		Use:   "explain",
		Short: "Print the command a query compiles to",
	}

	sf := &searchFlags{}
	search := &cobra.Command{
		Use:   "search",
		Short: "Print an FT.SEARCH command",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q, err := sf.build(g.index, g.cfg.Search.Limit)
			if err != nil {
				return err
			}
			c, err := q.Build()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), c.String())
			return nil
		},
	}
	addSearchFlags(search, sf)

	af := &aggregateFlags{}
	agg := &cobra.Command{
		Use:   "aggregate",
		Short: "Print an FT.AGGREGATE command",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			set, err := af.build(g.index)
			if err != nil {
				return err
			}
			line, err := set.Explain()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), line)
			return nil
		},
	}
	addAggregateFlags(agg, af)

	explain.AddCommand(search, agg)
	return explain
}

func newSearchCmd(g *globals) *cobra.Command {
	f := &searchFlags{}
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Run a search and print one page of hits as JSON lines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			q, err := f.build(g.index, g.cfg.Search.Limit)
			if err != nil {
				return err
			}
			ex, closeFn, err := g.connect(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			coll, err := persistence.NewCollection[core.Document](g.index, ex, g.logger)
			if err != nil {
				return err
			}
			total, hits, err := coll.Find(ctx, q)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, h := range hits {
				if err := enc.Encode(map[string]any{"key": h.Key, "fields": h.Fields}); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%d of %d\n", len(hits), total)
			return nil
		},
	}
	addSearchFlags(cmd, f)
	return cmd
}

func newAggregateCmd(g *globals) *cobra.Command {
	f := &aggregateFlags{}
	cmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Run an aggregation through a cursor and print records as JSON lines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			set, err := f.build(g.index)
			if err != nil {
				return err
			}
			ex, closeFn, err := g.connect(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			coll, err := persistence.NewCollection[core.Document](g.index, ex, g.logger)
			if err != nil {
				return err
			}
			results, err := coll.Run(ctx, set)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			for r, err := range results.All(ctx) {
				if err != nil {
					return err
				}
				if err := enc.Encode(r.Document()); err != nil {
					return err
				}
			}
			return nil
		},
	}
	addAggregateFlags(cmd, f)
	return cmd
}
