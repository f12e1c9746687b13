// Package worker runs the processing loop for a set of topics: acquire the
// topic locks, recover orphaned work, then claim and run jobs round-robin
// until cancelled or a job-count limit is reached.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mrexodia/sjq/id"
	"github.com/mrexodia/sjq/lock"
	"github.com/mrexodia/sjq/queue"
	"github.com/mrexodia/sjq/runner"
)

// Worker processes jobs for its topic set. One worker runs per process
// invocation; concurrency across the fleet is safe because every
// cross-process step is a single atomic store operation.
type Worker struct {
	topics       []string
	locks        *lock.Manager
	queues       *queue.Manager
	runner       *runner.Runner
	claimTimeout time.Duration
	maxJobs      int
	workerID     id.WorkerID
	logger       *slog.Logger
}

// Option configures a Worker.
type Option func(*Worker)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Worker) { w.logger = l }
}

// WithClaimTimeout sets how long a blocking claim waits per topic before
// the loop re-checks for cancellation.
func WithClaimTimeout(d time.Duration) Option {
	return func(w *Worker) { w.claimTimeout = d }
}

// WithMaxJobs stops the loop after n processed jobs. Zero means no limit.
func WithMaxJobs(n int) Option {
	return func(w *Worker) { w.maxJobs = n }
}

// New creates a worker over the given topic set.
func New(topics []string, locks *lock.Manager, queues *queue.Manager, r *runner.Runner, opts ...Option) *Worker {
	w := &Worker{
		topics:       topics,
		locks:        locks,
		queues:       queues,
		runner:       r,
		claimTimeout: time.Second,
		workerID:     id.NewWorkerID(),
		logger:       slog.Default(),
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// WorkerID returns this worker run's unique identifier.
func (w *Worker) WorkerID() id.WorkerID { return w.workerID }

// Run locks the topic set, requeues work orphaned by a prior crash, then
// claims and processes jobs in strict round-robin across the topics until
// ctx is cancelled, the job-count limit is reached, or the store becomes
// unreachable. The locks are released on every exit path; a job left
// mid-flight by a store fault is reclaimed by the next worker's recovery
// pass.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.locks.Acquire(ctx, w.topics, w.workerID.Holder()); err != nil {
		return err
	}
	defer func() {
		// The parent ctx may already be cancelled; the locks must go
		// regardless.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := w.locks.Release(releaseCtx, w.topics); err != nil {
			w.logger.Error("failed to release topic locks", slog.Any("error", err))
		}
	}()

	for _, topic := range w.topics {
		w.logger.Info("recovering topic", slog.String("topic", topic))
		if _, err := w.queues.Recover(ctx, topic); err != nil {
			return err
		}
	}

	w.logger.Info("processing topics",
		slog.Any("topics", w.topics),
		slog.String("worker_id", w.workerID.String()))

	processed := 0
	for {
		for _, topic := range w.topics {
			if err := ctx.Err(); err != nil {
				w.logger.Info("worker interrupted")
				return nil
			}

			jobID, ok, err := w.queues.ClaimNext(ctx, topic, w.claimTimeout)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					w.logger.Info("worker interrupted")
					return nil
				}
				return err
			}
			if !ok {
				continue
			}

			outcome, err := w.runner.Process(ctx, topic, jobID)
			if err != nil {
				return err
			}
			w.logger.Debug("job finalized",
				slog.String("job_id", jobID.String()),
				slog.String("outcome", string(outcome)))

			processed++
			if w.maxJobs > 0 && processed >= w.maxJobs {
				w.logger.Info("job limit reached", slog.Int("processed", processed))
				return nil
			}
		}
	}
}
