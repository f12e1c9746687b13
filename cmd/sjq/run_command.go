package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mrexodia/sjq/runner"
)

func newRunCommand(a *app) *cobra.Command {
	var indexFlag int64

	cmd := &cobra.Command{
		Use:   "run <topic>",
		Short: "Run one job without chaining, for local debugging",
		Long: "Run the job at the given position of the topic's incoming queue " +
			"through the normal protocol, but create no chained jobs and leave " +
			"every queue untouched. The execution metadata is printed; the exit " +
			"code reflects the handler's outcome.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			topicSet, err := a.registry.Resolve(args[:1])
			if err != nil {
				return err
			}
			topic := topicSet[0]

			r := runner.New(a.jobs, a.queues, a.registry, a.cfg.Workspace.DataDir,
				runner.WithLogger(a.logger))
			meta, runErr := r.Debug(cmd.Context(), topic, indexFlag)
			if meta != nil {
				out, err := json.MarshalIndent(meta, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(out))
			}
			return runErr
		},
	}

	cmd.Flags().Int64Var(&indexFlag, "index", 0, "Queue position of the job to run")
	return cmd
}
