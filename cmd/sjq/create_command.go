package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

func newCreateCommand(a *app) *cobra.Command {
	var parentFlag string

	cmd := &cobra.Command{
		Use:   "create <topic> <input> [attachment]",
		Short: "Create a new job",
		Long: "Create a job for a topic. The input argument is tried as a .json " +
			"file, then as any other existing file (which becomes the attachment " +
			"with an empty payload), then as a JSON literal.",
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			topic := args[0]
			attachment := ""
			if len(args) == 3 {
				attachment = args[2]
			}

			payload, attachment, err := resolveCreateInput(args[1], attachment)
			if err != nil {
				return err
			}

			jobID, err := a.jobs.Create(cmd.Context(), topic, payload, attachment, parentFlag)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created job: %s\n", jobID)
			return nil
		},
	}

	cmd.Flags().StringVar(&parentFlag, "parent-job-id", "", "Parent job ID if this is a child job")
	return cmd
}

// resolveCreateInput interprets the input argument: an existing .json file
// is the payload, any other existing file becomes the attachment with an
// empty payload, and anything else must be a JSON literal.
func resolveCreateInput(input, attachment string) (json.RawMessage, string, error) {
	if _, err := os.Stat(input); err == nil {
		if filepath.Ext(input) == ".json" {
			data, err := os.ReadFile(input)
			if err != nil {
				return nil, "", fmt.Errorf("read input file %s: %w", input, err)
			}
			if !json.Valid(data) {
				return nil, "", fmt.Errorf("input file %s is not valid JSON", input)
			}
			return data, attachment, nil
		}
		return json.RawMessage("{}"), input, nil
	}

	if json.Valid([]byte(input)) {
		return json.RawMessage(input), attachment, nil
	}
	return nil, "", fmt.Errorf("input is not a valid JSON string or file path: %s", input)
}
