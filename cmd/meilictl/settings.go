package main

import (
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/yourname/meilikit/pkg/meili"
)

func (a *app) newSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Manage index settings",
	}

	get := &cobra.Command{
		Use:   "get <index>",
		Short: "Show the settings of an index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := a.client.Index(args[0]).GetSettings(cmd.Context())
			if err != nil {
				return err
			}
			return a.print(cmd, settings)
		},
	}

	var updateWait bool
	update := &cobra.Command{
		Use:   "update <index> <file>",
		Short: "Update settings from a yaml or json file",
		Long:  "Update settings from a yaml or json file. Fields missing from the file are left untouched.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}
			// JSON is valid yaml, so one decoder covers both formats.
			var settings meili.Settings
			if err := yaml.Unmarshal(data, &settings); err != nil {
				return err
			}

			task, err := a.client.Index(args[0]).UpdateSettings(cmd.Context(), &settings)
			if err != nil {
				return err
			}
			return a.printTasks(cmd, []meili.TaskInfo{*task}, updateWait)
		},
	}
	update.Flags().BoolVar(&updateWait, "wait", false, "wait for the task to finish")

	var resetWait bool
	reset := &cobra.Command{
		Use:   "reset <index>",
		Short: "Reset every setting of an index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			task, err := a.client.Index(args[0]).ResetSettings(cmd.Context())
			if err != nil {
				return err
			}
			return a.printTasks(cmd, []meili.TaskInfo{*task}, resetWait)
		},
	}
	reset.Flags().BoolVar(&resetWait, "wait", false, "wait for the task to finish")

	cmd.AddCommand(get, update, reset)
	return cmd
}
