package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRetryCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [topics...]",
		Short: "Retry failed jobs",
		Long: "Move every job from the failed queues of the given topics " +
			"(defaults to all in this workspace) back to the head of their " +
			"incoming queues. Fatal entries are never touched.",
		RunE: func(cmd *cobra.Command, args []string) error {
			topicSet, err := a.registry.Resolve(args)
			if err != nil {
				return err
			}
			for _, topic := range topicSet {
				moved, err := a.queues.Retry(cmd.Context(), topic)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Retrying %d job(s) from topic: %s\n", len(moved), topic)
				for _, jobID := range moved {
					fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", jobID)
				}
			}
			return nil
		},
	}
}
