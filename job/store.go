package job

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/mrexodia/sjq"
	"github.com/mrexodia/sjq/id"
	"github.com/mrexodia/sjq/store"
)

// Store owns job record and attachment persistence. It generates
// collision-free identifiers with an atomic conditional set and publishes
// new jobs to their topic's incoming queue.
type Store struct {
	conn   store.Conn
	logger *slog.Logger
	now    func() time.Time
}

// Option configures the Store.
type Option func(*Store)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithNow overrides the clock used for identifier generation. Tests use
// this to force timestamp collisions.
func WithNow(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates a job store on the given connection.
func NewStore(conn store.Conn, opts ...Option) *Store {
	s := &Store{conn: conn, logger: slog.Default(), now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Create persists a new job for topic and publishes it to the topic's
// incoming queue. attachmentPath may be empty; a non-empty path that does
// not exist on disk is treated as no attachment, matching the operator
// surface where the argument is optional. parentJobID may be empty.
//
// The identifier is derived from the current UTC time; uniqueness comes
// from the conditional set, not the clock. On a collision both the
// attachment reservation and the record set are retried under a fresh
// identifier, so an existing job's keys are never overwritten. The blob is
// stored before the record becomes visible, and the queue append is the
// publish point: before it, no worker can observe the job.
func (s *Store) Create(ctx context.Context, topic string, payload json.RawMessage, attachmentPath, parentJobID string) (id.JobID, error) {
	var attachment []byte
	if attachmentPath != "" {
		data, err := os.ReadFile(attachmentPath)
		if err == nil {
			attachment = data
		} else if !os.IsNotExist(err) {
			return "", fmt.Errorf("job: read attachment %s: %w", attachmentPath, err)
		}
	}
	if payload == nil {
		payload = json.RawMessage("{}")
	}

	for {
		jobID := id.NewJobID(s.now(), topic)
		record := &Job{
			ID:            jobID,
			ParentJobID:   parentJobID,
			Data:          payload,
			HasAttachment: attachment != nil,
		}
		data, err := record.Marshal()
		if err != nil {
			return "", err
		}

		won, err := s.createOnce(ctx, jobID, data, attachment)
		if err != nil {
			return "", err
		}
		if won {
			if err := s.conn.RPush(ctx, store.QueueKey(store.StateIncoming, topic), jobID.String()); err != nil {
				return "", err
			}
			s.logger.Debug("job created",
				slog.String("job_id", jobID.String()),
				slog.String("topic", topic),
				slog.Bool("attachment", record.HasAttachment))
			return jobID, nil
		}

		// Timestamp collision. Back off below clock resolution and
		// regenerate.
		time.Sleep(time.Microsecond)
	}
}

// createOnce attempts to claim jobID with conditional sets. The attachment
// blob is stored first so a record can never be visible with its blob
// missing; losing either conditional set is a collision and any blob this
// attempt reserved is removed before reporting it.
func (s *Store) createOnce(ctx context.Context, jobID id.JobID, record, attachment []byte) (bool, error) {
	if attachment != nil {
		won, err := s.conn.SetNX(ctx, store.AttachmentKey(jobID.String()), attachment)
		if err != nil {
			return false, err
		}
		if !won {
			return false, nil
		}
	}

	won, err := s.conn.SetNX(ctx, store.JobKey(jobID.String()), record)
	if err != nil {
		return false, err
	}
	if !won {
		if attachment != nil {
			if err := s.conn.Del(ctx, store.AttachmentKey(jobID.String())); err != nil {
				return false, err
			}
		}
		return false, nil
	}
	return true, nil
}

// Load fetches and deserializes the record for jobID.
func (s *Store) Load(ctx context.Context, jobID id.JobID) (*Job, error) {
	data, ok, err := s.conn.Get(ctx, store.JobKey(jobID.String()))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", sjq.ErrJobNotFound, jobID)
	}
	return Unmarshal(data)
}

// LoadAttachment fetches the attachment blob for jobID. A record that
// claims an attachment whose blob is missing is a data-integrity
// violation, reported as ErrAttachmentNotFound.
func (s *Store) LoadAttachment(ctx context.Context, jobID id.JobID) ([]byte, error) {
	data, ok, err := s.conn.Get(ctx, store.AttachmentKey(jobID.String()))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", sjq.ErrAttachmentNotFound, jobID)
	}
	return data, nil
}

// Discard deletes the stored record. Call only after a queue transition
// confirms no queue references the job.
func (s *Store) Discard(ctx context.Context, jobID id.JobID) error {
	return s.conn.Del(ctx, store.JobKey(jobID.String()))
}

// DiscardAttachment deletes the stored attachment blob, if any.
func (s *Store) DiscardAttachment(ctx context.Context, jobID id.JobID) error {
	return s.conn.Del(ctx, store.AttachmentKey(jobID.String()))
}
