package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/yourname/meilikit/pkg/meili"
)

func (a *app) newTaskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Inspect and wait for tasks",
	}

	get := &cobra.Command{
		Use:   "get <uid>",
		Short: "Show one task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uid, err := parseTaskUID(args[0])
			if err != nil {
				return err
			}
			task, err := a.client.GetTask(cmd.Context(), uid)
			if err != nil {
				return err
			}
			return a.print(cmd, task)
		},
	}

	var (
		filter   meili.TasksFilter
		statuses []string
		from     int64
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List tasks, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, s := range statuses {
				filter.Statuses = append(filter.Statuses, meili.TaskStatus(s))
			}
			if cmd.Flags().Changed("from") {
				filter.From = &from
			}
			results, err := a.client.GetTasks(cmd.Context(), &filter)
			if err != nil {
				return err
			}
			return a.print(cmd, results)
		},
	}
	list.Flags().StringSliceVar(&filter.IndexUIDs, "index", nil, "only tasks of these indexes")
	list.Flags().StringSliceVar(&statuses, "status", nil, "only tasks with these statuses")
	list.Flags().StringSliceVar(&filter.Types, "type", nil, "only tasks of these types")
	list.Flags().IntVar(&filter.Limit, "limit", 0, "maximum number of tasks")
	list.Flags().Int64Var(&from, "from", 0, "uid of the first task to return")

	var (
		timeout  time.Duration
		interval time.Duration
	)
	wait := &cobra.Command{
		Use:   "wait <uid>...",
		Short: "Wait until tasks reach a final status",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			infos := make([]meili.TaskInfo, 0, len(args))
			for _, arg := range args {
				uid, err := parseTaskUID(arg)
				if err != nil {
					return err
				}
				infos = append(infos, meili.TaskInfo{TaskUID: uid})
			}

			opts := a.cfg.WaitOptions()
			if cmd.Flags().Changed("timeout") {
				opts.Timeout = timeout
			}
			if cmd.Flags().Changed("interval") {
				opts.Interval = interval
			}

			tasks, err := a.client.WaitForTasks(cmd.Context(), infos, opts)
			if printErr := a.print(cmd, tasks); printErr != nil {
				return printErr
			}
			return err
		},
	}
	wait.Flags().DurationVar(&timeout, "timeout", meili.DefaultTaskTimeout, "maximum time to wait for each task")
	wait.Flags().DurationVar(&interval, "interval", meili.DefaultPollInterval, "delay between polls")

	cmd.AddCommand(get, list, wait)
	return cmd
}

func parseTaskUID(s string) (int64, error) {
	uid, err := strconv.ParseInt(s, 10, 64)
	if err != nil || uid < 0 {
		return 0, fmt.Errorf("invalid task uid %q", s)
	}
	return uid, nil
}
