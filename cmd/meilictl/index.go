package main

import (
	"github.com/spf13/cobra"

	"github.com/yourname/meilikit/pkg/meili"
)

func (a *app) newIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Manage indexes",
	}

	var primaryKey string
	create := &cobra.Command{
		Use:   "create <uid>",
		Short: "Create an index and wait for it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := a.client.CreateIndex(cmd.Context(), args[0], primaryKey)
			if err != nil {
				return err
			}
			return a.print(cmd, indexInfo(index))
		},
	}
	create.Flags().StringVar(&primaryKey, "primary-key", "", "primary key of the index")

	var getOrCreate bool
	get := &cobra.Command{
		Use:   "get <uid>",
		Short: "Show an index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				index *meili.Index
				err   error
			)
			if getOrCreate {
				index, err = a.client.GetOrCreateIndex(cmd.Context(), args[0], primaryKey)
			} else {
				index, err = a.client.GetIndex(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}
			return a.print(cmd, indexInfo(index))
		},
	}
	get.Flags().BoolVar(&getOrCreate, "create", false, "create the index when it does not exist")
	get.Flags().StringVar(&primaryKey, "primary-key", "", "primary key used when creating")

	list := &cobra.Command{
		Use:   "list",
		Short: "List every index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			infos, err := a.client.GetRawIndexes(cmd.Context())
			if err != nil {
				return err
			}
			if infos == nil {
				infos = []meili.IndexInfo{}
			}
			return a.print(cmd, infos)
		},
	}

	del := &cobra.Command{
		Use:   "delete <uid>",
		Short: "Delete an index if it exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deleted, err := a.client.DeleteIndexIfExists(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			a.logger.Info().Str("index", args[0]).Bool("deleted", deleted).Msg("Index delete finished")
			return a.print(cmd, map[string]any{"uid": args[0], "deleted": deleted})
		},
	}

	setPrimaryKey := &cobra.Command{
		Use:   "primary-key <uid> <primary-key>",
		Short: "Set the primary key of an index",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := a.client.Index(args[0]).Update(cmd.Context(), args[1])
			if err != nil {
				return err
			}
			return a.print(cmd, indexInfo(index))
		},
	}

	stats := &cobra.Command{
		Use:   "stats <uid>",
		Short: "Show index stats",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := a.client.Index(args[0]).Stats(cmd.Context())
			if err != nil {
				return err
			}
			return a.print(cmd, stats)
		},
	}

	cmd.AddCommand(create, get, list, del, setPrimaryKey, stats)
	return cmd
}

func indexInfo(index *meili.Index) meili.IndexInfo {
	return meili.IndexInfo{
		UID:        index.UID,
		PrimaryKey: index.PrimaryKey,
		CreatedAt:  index.CreatedAt,
		UpdatedAt:  index.UpdatedAt,
	}
}
