package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yourname/meilikit/pkg/meili"
)

func (a *app) newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the server health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			health, err := a.client.Health(cmd.Context())
			if err != nil {
				return err
			}
			return a.print(cmd, health)
		},
	}
}

func (a *app) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "server-version",
		Short: "Show the server version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := a.client.Version(cmd.Context())
			if err != nil {
				return err
			}
			return a.print(cmd, v)
		},
	}
}

func (a *app) newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show database and index stats",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := a.client.Stats(cmd.Context())
			if err != nil {
				return err
			}
			return a.print(cmd, stats)
		},
	}
}

func (a *app) newDumpCmd() *cobra.Command {
	var wait bool

	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Trigger a dump",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := a.client.CreateDump(cmd.Context())
			if err != nil {
				return err
			}
			a.logger.Info().Int64("task", info.TaskUID).Msg("Dump enqueued")
			return a.printTasks(cmd, []meili.TaskInfo{*info}, wait)
		},
	}
	cmd.Flags().BoolVar(&wait, "wait", false, "wait for the dump task to finish")
	return cmd
}

func (a *app) newSearchCmd() *cobra.Command {
	var (
		limit  int
		offset int
		filter string
		fields []string
		sort   []string
	)

	cmd := &cobra.Command{
		Use:   "search <index> [query]",
		Short: "Search an index",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := ""
			if len(args) == 2 {
				query = args[1]
			}

			req := &meili.SearchRequest{
				Limit:                limit,
				Offset:               offset,
				AttributesToRetrieve: fields,
				Sort:                 sort,
			}
			if filter != "" {
				req.Filter = filter
			}

			results, err := a.client.Index(args[0]).Search(cmd.Context(), query, req)
			if err != nil {
				return err
			}
			return a.print(cmd, results)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of hits")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of hits to skip")
	cmd.Flags().StringVar(&filter, "filter", "", "filter expression")
	cmd.Flags().StringSliceVar(&fields, "fields", nil, "attributes to retrieve")
	cmd.Flags().StringSliceVar(&sort, "sort", nil, "sort expressions, e.g. year:desc")
	return cmd
}

// parseJSONArg decodes a JSON command argument.
func parseJSONArg(name, value string, v any) error {
	if err := json.Unmarshal([]byte(value), v); err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	return nil
}
