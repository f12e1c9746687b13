package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mrexodia/sjq/runner"
	"github.com/mrexodia/sjq/worker"
)

func newWorkerCommand(a *app) *cobra.Command {
	var topicsFlag []string
	var maxJobsFlag int

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Start a worker over a topic set",
		Long: "Start a worker process: lock the topics, requeue work orphaned by a " +
			"prior crash, then claim and run jobs round-robin until interrupted " +
			"or the job limit is reached.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			topicSet, err := a.registry.Resolve(topicsFlag)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			r := runner.New(a.jobs, a.queues, a.registry, a.cfg.Workspace.DataDir,
				runner.WithLogger(a.logger))
			w := worker.New(topicSet, a.locks, a.queues, r,
				worker.WithLogger(a.logger),
				worker.WithClaimTimeout(a.cfg.Worker.ClaimTimeout()),
				worker.WithMaxJobs(maxJobsFlag))
			return w.Run(ctx)
		},
	}

	cmd.Flags().StringSliceVar(&topicsFlag, "topics", nil, "Topics to monitor (defaults to all in this workspace)")
	cmd.Flags().IntVar(&maxJobsFlag, "max-jobs", 0, "Stop after this many processed jobs (0 = no limit)")
	return cmd
}
