package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yourname/meilikit/pkg/meili"
)

// uploadFlags are shared by documents add and documents update.
type uploadFlags struct {
	primaryKey   string
	batchSize    int
	batched      bool
	autoBatch    bool
	maxPayload   int
	raw          bool
	separate     bool
	documentType string
	wait         bool
}

func (a *app) newDocumentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "documents",
		Short: "Manage documents",
	}

	cmd.AddCommand(
		a.newUploadCmd("add", "Add or replace documents from a file or directory", false),
		a.newUploadCmd("update", "Add or partially update documents from a file or directory", true),
		a.newDocumentGetCmd(),
		a.newDocumentListCmd(),
		a.newDocumentDeleteCmd(),
	)
	return cmd
}

func (a *app) newUploadCmd(use, short string, update bool) *cobra.Command {
	var f uploadFlags

	cmd := &cobra.Command{
		Use:   use + " <index> <path>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			index := a.client.Index(args[0])
			tasks, err := a.upload(cmd.Context(), index, args[1], f, update)
			if err != nil {
				return err
			}
			a.logger.Info().
				Str("index", index.UID).
				Int("tasks", len(tasks)).
				Msg("Documents enqueued")
			return a.printTasks(cmd, tasks, f.wait)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.primaryKey, "primary-key", "", "primary key of the documents")
	flags.IntVar(&f.batchSize, "batch-size", 0, "split the upload in batches of this many documents")
	flags.BoolVar(&f.batched, "batched", false, "split the upload in batches of the configured batch size")
	flags.BoolVar(&f.autoBatch, "auto-batch", false, "split the upload in batches bounded by the payload size")
	flags.IntVar(&f.maxPayload, "max-payload-size", 0, "maximum payload size in bytes for --auto-batch (default from config)")
	flags.BoolVar(&f.raw, "raw", false, "send a csv or ndjson file without parsing it")
	flags.BoolVar(&f.separate, "separate", false, "send each file of a directory separately")
	flags.StringVar(&f.documentType, "type", "json", "document type to read from a directory (json, ndjson, csv)")
	flags.BoolVar(&f.wait, "wait", false, "wait for the tasks to finish")
	cmd.MarkFlagsMutuallyExclusive("batch-size", "batched", "auto-batch", "raw")
	return cmd
}

// upload dispatches to the matching document write for a file or directory.
func (a *app) upload(ctx context.Context, index *meili.Index, path string, f uploadFlags, update bool) ([]meili.TaskInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", meili.ErrFileNotFound, path)
	}

	if f.batched {
		f.batchSize = a.cfg.Batching.BatchSize
	}
	maxPayload := f.maxPayload
	if maxPayload == 0 {
		maxPayload = a.cfg.Batching.MaxPayloadSize
	}

	if info.IsDir() {
		if f.raw {
			return nil, fmt.Errorf("--raw only applies to single files")
		}
		docType, err := meili.ParseDocumentType(f.documentType)
		if err != nil {
			return nil, err
		}
		opts := meili.DirectoryOptions{PrimaryKey: f.primaryKey, DocumentType: docType, SeparateFiles: f.separate}

		switch {
		case f.batchSize > 0 && update:
			return index.UpdateDocumentsFromDirectoryInBatches(ctx, path, f.batchSize, opts)
		case f.batchSize > 0:
			return index.AddDocumentsFromDirectoryInBatches(ctx, path, f.batchSize, opts)
		case f.autoBatch && update:
			return index.UpdateDocumentsFromDirectoryAutoBatch(ctx, path, maxPayload, opts)
		case f.autoBatch:
			return index.AddDocumentsFromDirectoryAutoBatch(ctx, path, maxPayload, opts)
		case update:
			return index.UpdateDocumentsFromDirectory(ctx, path, opts)
		default:
			return index.AddDocumentsFromDirectory(ctx, path, opts)
		}
	}

	single := func(task *meili.TaskInfo, err error) ([]meili.TaskInfo, error) {
		if err != nil {
			return nil, err
		}
		return []meili.TaskInfo{*task}, nil
	}

	switch {
	case f.raw && update:
		return single(index.UpdateDocumentsFromRawFile(ctx, path, f.primaryKey))
	case f.raw:
		return single(index.AddDocumentsFromRawFile(ctx, path, f.primaryKey))
	case f.batchSize > 0 && update:
		return index.UpdateDocumentsFromFileInBatches(ctx, path, f.batchSize, f.primaryKey)
	case f.batchSize > 0:
		return index.AddDocumentsFromFileInBatches(ctx, path, f.batchSize, f.primaryKey)
	case f.autoBatch && update:
		return index.UpdateDocumentsFromFileAutoBatch(ctx, path, maxPayload, f.primaryKey)
	case f.autoBatch:
		return index.AddDocumentsFromFileAutoBatch(ctx, path, maxPayload, f.primaryKey)
	case update:
		return single(index.UpdateDocumentsFromFile(ctx, path, f.primaryKey))
	default:
		return single(index.AddDocumentsFromFile(ctx, path, f.primaryKey))
	}
}

func (a *app) newDocumentGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <index> <id>",
		Short: "Show one document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := a.client.Index(args[0]).GetDocument(cmd.Context(), args[1])
			if err != nil {
				return err
			}
			return a.print(cmd, doc)
		},
	}
}

func (a *app) newDocumentListCmd() *cobra.Command {
	var query meili.DocumentsQuery

	cmd := &cobra.Command{
		Use:   "list <index>",
		Short: "List a page of documents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			page, err := a.client.Index(args[0]).GetDocuments(cmd.Context(), &query)
			if err != nil {
				return err
			}
			return a.print(cmd, page)
		},
	}
	cmd.Flags().IntVar(&query.Offset, "offset", 0, "number of documents to skip")
	cmd.Flags().IntVar(&query.Limit, "limit", 0, "maximum number of documents")
	cmd.Flags().StringSliceVar(&query.Fields, "fields", nil, "fields to return")
	return cmd
}

func (a *app) newDocumentDeleteCmd() *cobra.Command {
	var (
		all  bool
		wait bool
	)

	cmd := &cobra.Command{
		Use:   "delete <index> [id...]",
		Short: "Delete documents by id, or every document with --all",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			index := a.client.Index(args[0])
			ids := args[1:]

			var (
				task *meili.TaskInfo
				err  error
			)
			switch {
			case all && len(ids) > 0:
				return fmt.Errorf("--all cannot be combined with document ids")
			case all:
				task, err = index.DeleteAllDocuments(cmd.Context())
			case len(ids) == 1:
				task, err = index.DeleteDocument(cmd.Context(), ids[0])
			case len(ids) > 1:
				task, err = index.DeleteDocuments(cmd.Context(), ids)
			default:
				return fmt.Errorf("no document ids given")
			}
			if err != nil {
				return err
			}
			return a.printTasks(cmd, []meili.TaskInfo{*task}, wait)
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "delete every document of the index")
	cmd.Flags().BoolVar(&wait, "wait", false, "wait for the task to finish")
	return cmd
}
