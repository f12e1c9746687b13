package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newUnlockCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "unlock [topics...]",
		Short: "Force-unlock topics",
		Long: "Delete the lock keys of the given topics (defaults to all in this " +
			"workspace). Use after a hard-crashed worker left its locks behind.",
		RunE: func(cmd *cobra.Command, args []string) error {
			topicSet, err := a.registry.Resolve(args)
			if err != nil {
				return err
			}
			if err := a.locks.Release(cmd.Context(), topicSet); err != nil {
				return err
			}
			for _, topic := range topicSet {
				fmt.Fprintf(cmd.OutOrStdout(), "Unlocked topic: %s\n", topic)
			}
			return nil
		},
	}
}
