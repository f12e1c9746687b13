// Package runner orchestrates one job's lifecycle: materialize the job to
// files, invoke the topic's handler as an external process, persist
// execution metadata, classify the outcome, and enqueue chained jobs.
package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/mrexodia/sjq"
	"github.com/mrexodia/sjq/id"
	"github.com/mrexodia/sjq/job"
	"github.com/mrexodia/sjq/queue"
	"github.com/mrexodia/sjq/topics"
)

// Outcome classifies one processed job.
type Outcome string

const (
	// OutcomeSuccess: handler exited zero and its output was honored.
	OutcomeSuccess Outcome = "success"
	// OutcomeFailed: the handler reported failure (non-zero exit or a
	// broken output contract). Recoverable via operator retry.
	OutcomeFailed Outcome = "failed"
	// OutcomeFatal: the job's own state is broken (record, attachment,
	// or handler artifact missing). Never auto-retried.
	OutcomeFatal Outcome = "fatal"
)

// Runner executes jobs. It owns no queue or record state; it drives the
// job store and queue manager through their public operations only.
type Runner struct {
	jobs     *job.Store
	queues   *queue.Manager
	registry *topics.Registry
	dataDir  string
	logger   *slog.Logger
}

// Option configures the Runner.
type Option func(*Runner)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// New creates a runner writing per-job artifacts under dataDir.
func New(jobs *job.Store, queues *queue.Manager, registry *topics.Registry, dataDir string, opts ...Option) *Runner {
	r := &Runner{
		jobs:     jobs,
		queues:   queues,
		registry: registry,
		dataDir:  dataDir,
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Process runs one claimed job end to end and finalizes it with the queue
// manager: ack and record discard on success, fail routing otherwise. The
// returned error is non-nil only for store communication faults — handler
// and data-integrity failures are classified, routed, and reported through
// the Outcome.
func (r *Runner) Process(ctx context.Context, topic string, jobID id.JobID) (Outcome, error) {
	execution, runErr := r.run(ctx, topic, jobID, true)

	if runErr == nil {
		if err := r.queues.Ack(ctx, topic, jobID); err != nil {
			return OutcomeSuccess, err
		}
		if err := r.jobs.Discard(ctx, jobID); err != nil {
			return OutcomeSuccess, err
		}
		if err := r.jobs.DiscardAttachment(ctx, jobID); err != nil {
			return OutcomeSuccess, err
		}
		r.logger.Info("job succeeded",
			slog.String("job_id", jobID.String()),
			slog.String("topic", topic),
			slog.Float64("elapsed_seconds", execution.ElapsedSeconds))
		return OutcomeSuccess, nil
	}

	var storeErr *StoreError
	if errors.As(runErr, &storeErr) {
		return "", storeErr.Err
	}

	outcome := OutcomeFailed
	if fatal(runErr) {
		outcome = OutcomeFatal
	}
	// The record is retained either way so the raw state stays available
	// for retry or postmortem.
	if err := r.queues.Fail(ctx, topic, jobID, outcome == OutcomeFatal); err != nil {
		return outcome, err
	}
	if outcome == OutcomeFatal {
		r.logger.Error("job integrity error",
			slog.String("job_id", jobID.String()),
			slog.String("topic", topic),
			slog.Any("error", runErr))
	} else {
		r.logger.Error("job failed",
			slog.String("job_id", jobID.String()),
			slog.String("topic", topic),
			slog.Any("error", runErr))
	}
	return outcome, nil
}

// Debug runs the job at the given position of the topic's incoming queue
// through the same protocol, but creates no chained jobs and performs no
// queue transition or record discard: live queues are unaffected. The
// metadata of the attempt is returned alongside the handler error, if any.
func (r *Runner) Debug(ctx context.Context, topic string, index int64) (*job.Metadata, error) {
	jobID, ok, err := r.queues.Peek(ctx, topic, index)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: no job at position %d of incoming:%s", sjq.ErrJobNotFound, index, topic)
	}

	execution, runErr := r.run(ctx, topic, jobID, false)
	var meta *job.Metadata
	if execution != nil {
		meta = execution.Metadata
	}
	var storeErr *StoreError
	if errors.As(runErr, &storeErr) {
		return meta, storeErr.Err
	}
	return meta, runErr
}

// StoreError marks a store communication fault, which must terminate the
// worker loop rather than be classified against the job.
type StoreError struct {
	Err error
}

func (e *StoreError) Error() string { return e.Err.Error() }
func (e *StoreError) Unwrap() error { return e.Err }

// fatal reports whether err is a data-integrity failure: the job record,
// a claimed attachment, or the handler artifact is missing.
func fatal(err error) bool {
	return errors.Is(err, sjq.ErrJobNotFound) ||
		errors.Is(err, sjq.ErrAttachmentNotFound) ||
		errors.Is(err, sjq.ErrHandlerNotFound)
}

// execution carries what run produced for the caller's logging.
type execution struct {
	Metadata       *job.Metadata
	ElapsedSeconds float64
}

// run performs the per-job protocol. With chain unset the handler output
// is still parsed and validated, but no follow-up jobs are created.
func (r *Runner) run(ctx context.Context, topic string, jobID id.JobID, chain bool) (*execution, error) {
	j, err := r.jobs.Load(ctx, jobID)
	if err != nil {
		if errors.Is(err, sjq.ErrJobNotFound) {
			return nil, err
		}
		return nil, &StoreError{Err: err}
	}

	handlerPath, err := r.registry.HandlerPath(topic)
	if err != nil {
		return nil, err
	}

	safe := jobID.Safe()
	inputPath := filepath.Join(r.dataDir, safe+"-input.json")
	outputPath := filepath.Join(r.dataDir, safe+"-output.json")

	if err := os.WriteFile(inputPath, j.Data, 0o644); err != nil {
		return nil, fmt.Errorf("runner: write input artifact: %w", err)
	}

	attachmentPath := ""
	if j.HasAttachment {
		blob, err := r.jobs.LoadAttachment(ctx, jobID)
		if err != nil {
			if errors.Is(err, sjq.ErrAttachmentNotFound) {
				return nil, err
			}
			return nil, &StoreError{Err: err}
		}
		attachmentPath = filepath.Join(r.dataDir, safe+"-attachment.bin")
		if err := os.WriteFile(attachmentPath, blob, 0o644); err != nil {
			return nil, fmt.Errorf("runner: write attachment artifact: %w", err)
		}
	}

	args := []string{"--input", inputPath, "--output", outputPath}
	if attachmentPath != "" {
		args = append(args, "--attachment", attachmentPath)
	}

	r.logger.Info("running job",
		slog.String("job_id", jobID.String()),
		slog.String("topic", topic))

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, handlerPath, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	cmdErr := cmd.Run()
	end := time.Now()

	exitCode := 0
	if cmdErr != nil {
		var exitErr *exec.ExitError
		if errors.As(cmdErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			// The handler could not be started at all.
			exitCode = -1
		}
	}

	meta := &job.Metadata{
		JobID:          jobID.String(),
		ParentJobID:    j.ParentJobID,
		Topic:          topic,
		StartTime:      start.UTC(),
		EndTime:        end.UTC(),
		ElapsedSeconds: end.Sub(start).Seconds(),
		ExitCode:       exitCode,
		Stdout:         stdout.String(),
		Stderr:         stderr.String(),
		Command:        append([]string{handlerPath}, args...),
	}
	exe := &execution{Metadata: meta, ElapsedSeconds: meta.ElapsedSeconds}

	// Metadata is persisted unconditionally, failure or not.
	if err := r.writeMetadata(safe, meta); err != nil {
		return exe, err
	}

	if cmdErr != nil {
		return exe, fmt.Errorf("%w: %s exited with code %d: %v",
			sjq.ErrHandlerFailed, topic, exitCode, cmdErr)
	}

	outputData, err := os.ReadFile(outputPath)
	if err != nil {
		return exe, fmt.Errorf("%w: %s wrote no output artifact: %v",
			sjq.ErrHandlerFailed, topic, err)
	}
	result, err := job.ParseResult(outputData)
	if err != nil {
		return exe, fmt.Errorf("%w: %v", sjq.ErrBadNextTopics, err)
	}
	// An absent data field is distinct from an explicit null; chained jobs
	// must carry the value the handler actually produced.
	if len(result.NextTopics) > 0 && result.Data == nil {
		return exe, fmt.Errorf("%w: %s declared next topics without a data value",
			sjq.ErrHandlerFailed, topic)
	}

	if chain {
		for _, next := range result.NextTopics {
			nextID, err := r.jobs.Create(ctx, next, result.Data, "", jobID.String())
			if err != nil {
				return exe, &StoreError{Err: err}
			}
			r.logger.Info("created next job",
				slog.String("job_id", jobID.String()),
				slog.String("next_job_id", nextID.String()),
				slog.String("topic", next))
		}
	}
	return exe, nil
}

func (r *Runner) writeMetadata(safe string, meta *job.Metadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("runner: marshal metadata: %w", err)
	}
	path := filepath.Join(r.dataDir, safe+"-metadata.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("runner: write metadata artifact: %w", err)
	}
	return nil
}
