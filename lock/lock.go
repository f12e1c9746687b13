// Package lock provides one exclusive lock per topic, identifying the
// holder by worker identity.
//
// Locks are not leases: there is no TTL, so a hard-crashed worker leaves
// its lock behind until an operator force-unlocks the topic or a relaunch
// reports the stale holder.
package lock

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mrexodia/sjq"
	"github.com/mrexodia/sjq/store"
)

// Contention describes one topic that could not be locked.
type Contention struct {
	Topic  string
	Holder string
}

// ContentionError reports every contended topic with its holder.
type ContentionError struct {
	Contended []Contention
}

func (e *ContentionError) Error() string {
	msg := "lock: topics already held:"
	for _, c := range e.Contended {
		msg += fmt.Sprintf(" %s (holder %s)", c.Topic, c.Holder)
	}
	return msg
}

func (e *ContentionError) Unwrap() error { return sjq.ErrTopicLocked }

// Manager acquires and releases per-topic locks.
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

// NewManager creates a lock manager on the given connection.
func NewManager(conn store.Conn, opts ...Option) *Manager {
	m := &Manager{conn: conn, logger: slog.Default()}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Acquire locks every topic with holder as the lock value, each via one
// atomic set-if-absent. If any topic is already held, the locks taken
// earlier in the same call are released again and a *ContentionError
// naming every held topic and its holder is returned; the store is left
// as it was found.
func (m *Manager) Acquire(ctx context.Context, topics []string, holder string) error {
	var acquired []string
	var contended []Contention

	for _, topic := range topics {
		prev, ok, err := m.conn.SetNXGet(ctx, store.LockKey(topic), holder)
		if err != nil {
			m.release(ctx, acquired)
			return err
		}
		if !ok {
			contended = append(contended, Contention{Topic: topic, Holder: prev})
			continue
		}
		acquired = append(acquired, topic)
	}

	if len(contended) > 0 {
		m.release(ctx, acquired)
		return &ContentionError{Contended: contended}
	}
	return nil
}

// Release unconditionally deletes each topic's lock key. Safe to call for
// topics that are not locked.
func (m *Manager) Release(ctx context.Context, topics []string) error {
	m.logger.Info("releasing topic locks", slog.Any("topics", topics))
	var firstErr error
	for _, topic := range topics {
		if err := m.conn.Del(ctx, store.LockKey(topic)); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m *Manager) release(ctx context.Context, topics []string) {
	for _, topic := range topics {
		if err := m.conn.Del(ctx, store.LockKey(topic)); err != nil {
			m.logger.Error("failed to roll back lock",
				slog.String("topic", topic), slog.Any("error", err))
		}
	}
}
