// Package queue owns the four-queue-per-topic state machine — incoming,
// processing, failed, fatal — and the atomic transitions between them.
//
// Every transition is one atomic store operation, so a job identifier is
// present in at most one queue at any observable instant: a claim is a
// single blocking head-to-tail move, a failure routing is a single
// remove-and-append transfer, and recovery/retry are sequences of
// single-element moves.
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mrexodia/sjq/id"
	"github.com/mrexodia/sjq/store"
)

// Manager performs queue transitions for jobs. It holds no state of its
// own; the store is the single source of truth.
type Manager struct {
	conn   store.Conn
	logger *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager creates a queue manager on the given connection.
func NewManager(conn store.Conn, opts ...Option) *Manager {
	m := &Manager{conn: conn, logger: slog.Default()}
	for _, o := range opts {
		o(m)
	}
	return m
}

// ClaimNext atomically moves one identifier from the head of the topic's
// incoming queue to the tail of its processing queue, blocking up to
// timeout for work. ok is false on timeout so the caller can re-check for
// cancellation. This single move is what prevents dual delivery: no
// external reader ever observes the job in zero or two queues.
//
// A claimed entry that is not a well-formed job identifier means the queue
// holds foreign data; it is reported as an error, parked in processing
// where a later recovery pass surfaces it.
func (m *Manager) ClaimNext(ctx context.Context, topic string, timeout time.Duration) (id.JobID, bool, error) {
	val, ok, err := m.conn.BLMoveHeadTail(ctx,
		store.QueueKey(store.StateIncoming, topic),
		store.QueueKey(store.StateProcessing, topic),
		timeout)
	if err != nil || !ok {
		return "", false, err
	}
	jobID, err := id.ParseJobID(val)
	if err != nil {
		return "", false, fmt.Errorf("queue: claimed malformed entry from incoming:%s: %w", topic, err)
	}
	return jobID, true, nil
}

// Ack removes the identifier from the topic's processing queue. The search
// runs from the tail, where a freshly claimed job sits.
func (m *Manager) Ack(ctx context.Context, topic string, jobID id.JobID) error {
	_, err := m.conn.LRemTail(ctx, store.QueueKey(store.StateProcessing, topic), jobID.String())
	return err
}

// Fail removes the identifier from the topic's processing queue and
// appends it to the fatal queue when fatal is set, the failed queue
// otherwise. The transfer is atomic.
func (m *Manager) Fail(ctx context.Context, topic string, jobID id.JobID, fatal bool) error {
	dst := store.StateFailed
	if fatal {
		dst = store.StateFatal
	}
	return m.conn.LRemTailPush(ctx,
		store.QueueKey(store.StateProcessing, topic),
		store.QueueKey(dst, topic),
		jobID.String())
}

// Peek returns the identifier at position index of the topic's incoming
// queue without removing it. ok is false when the index is out of range.
// Used by the debug runner to inspect live queues without mutating them.
func (m *Manager) Peek(ctx context.Context, topic string, index int64) (id.JobID, bool, error) {
	val, ok, err := m.conn.LIndex(ctx, store.QueueKey(store.StateIncoming, topic), index)
	if err != nil || !ok {
		return "", false, err
	}
	return id.JobID(val), true, nil
}

// Recover drains the topic's processing queue, moving each identifier from
// its tail to the head of the incoming queue. Recovered jobs keep their
// relative order and land ahead of jobs already waiting. Run once per
// topic at worker startup, before any claim, to requeue work orphaned by a
// crashed worker.
func (m *Manager) Recover(ctx context.Context, topic string) ([]id.JobID, error) {
	return m.drain(ctx, store.StateProcessing, topic)
}

// Retry applies the same transfer to the topic's failed queue — an
// explicit operator action, never automatic. Fatal entries are never
// retried by this engine; they signal record corruption, not handler
// failure.
func (m *Manager) Retry(ctx context.Context, topic string) ([]id.JobID, error) {
	return m.drain(ctx, store.StateFailed, topic)
}

// drain computes the source length once, then performs exactly that many
// single-element moves. A move finding the source empty ends the drain
// early; the queue may shrink concurrently and that is fine.
func (m *Manager) drain(ctx context.Context, src store.State, topic string) ([]id.JobID, error) {
	srcKey := store.QueueKey(src, topic)
	dstKey := store.QueueKey(store.StateIncoming, topic)

	count, err := m.conn.LLen(ctx, srcKey)
	if err != nil {
		return nil, err
	}

	var moved []id.JobID
	for i := int64(0); i < count; i++ {
		val, ok, err := m.conn.LMoveTailHead(ctx, srcKey, dstKey)
		if err != nil {
			return moved, err
		}
		if !ok {
			break
		}
		m.logger.Info("requeued job",
			slog.String("job_id", val),
			slog.String("topic", topic),
			slog.String("from", string(src)))
		moved = append(moved, id.JobID(val))
	}
	return moved, nil
}
