package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/yourname/meilikit/pkg/meili"
)

// print writes v to the command output in the selected format.
func (a *app) print(cmd *cobra.Command, v any) error {
	out := cmd.OutOrStdout()

	switch a.output {
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to encode yaml output: %w", err)
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to encode json output: %w", err)
		}
		return nil
	}
}

// printTasks waits for the tasks when wait is set and prints either the final
// tasks or the enqueued summaries.
func (a *app) printTasks(cmd *cobra.Command, infos []meili.TaskInfo, wait bool) error {
	if !wait {
		return a.print(cmd, infos)
	}

	tasks, err := a.client.WaitForTasks(cmd.Context(), infos, a.cfg.WaitOptions())
	if printErr := a.print(cmd, tasks); printErr != nil {
		return printErr
	}
	return err
}
