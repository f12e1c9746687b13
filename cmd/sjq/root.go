package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/mrexodia/sjq"
	"github.com/mrexodia/sjq/job"
	"github.com/mrexodia/sjq/lock"
	"github.com/mrexodia/sjq/queue"
	redisstore "github.com/mrexodia/sjq/store/redis"
	"github.com/mrexodia/sjq/topics"
)

// app holds the per-invocation environment shared by every subcommand:
// configuration, the store connection, and the engine components built on
// it. It is set up once in the root command's PersistentPreRunE.
type app struct {
	cfg      sjq.Config
	logger   *slog.Logger
	client   *goredis.Client
	jobs     *job.Store
	queues   *queue.Manager
	locks    *lock.Manager
	registry *topics.Registry
}

// setup loads configuration, bootstraps the workspace, and verifies the
// store is reachable. Any failure here is a configuration failure: the
// process exits before touching any queue.
func (a *app) setup(ctx context.Context, configPath string, verbose bool) error {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(a.logger)

	cfg, err := sjq.LoadConfig(configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	if err := os.MkdirAll(cfg.Workspace.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir %s: %w", cfg.Workspace.DataDir, err)
	}

	a.client = goredis.NewClient(&goredis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	conn := redisstore.New(a.client, redisstore.WithLogger(a.logger))
	if err := conn.Ping(ctx); err != nil {
		return fmt.Errorf("redis connection failed (%s): %w", cfg.Redis.Addr, err)
	}

	a.jobs = job.NewStore(conn, job.WithLogger(a.logger))
	a.queues = queue.NewManager(conn, queue.WithLogger(a.logger))
	a.locks = lock.NewManager(conn, lock.WithLogger(a.logger))
	a.registry = topics.NewRegistry(cfg.Workspace.HandlersDir)
	return nil
}

func (a *app) close() {
	if a.client != nil {
		_ = a.client.Close()
	}
}

func newRootCommand() *cobra.Command {
	var configFlag string
	var verboseFlag bool
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "sjq",
		Short:         "Simple topic-based job queue",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.Context(), configFlag, verboseFlag)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			a.close()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "sjq.toml", "Configuration file path")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(newWorkerCommand(a))
	rootCmd.AddCommand(newCreateCommand(a))
	rootCmd.AddCommand(newUnlockCommand(a))
	rootCmd.AddCommand(newRetryCommand(a))
	rootCmd.AddCommand(newRunCommand(a))

	return rootCmd
}
