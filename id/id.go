// Package id defines the identity types used across sjq.
//
// Job identifiers encode their creation time and topic as
// "<UTC-timestamp-with-microseconds>:<topic>", e.g.
// "20260831T120000.000001Z:ingest". The timestamp alone does not guarantee
// uniqueness — the job store enforces that with an atomic conditional set
// and regenerates on collision.
//
// Worker identity uses TypeID (prefix "wkr"): globally unique, K-sortable,
// URL-safe. It names the holder of a topic lock so an operator can tell
// which worker run owns a contended topic.
package id

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"go.jetify.com/typeid/v2"
)

// timestampLayout matches the original wire format: UTC with microsecond
// precision and a literal trailing Z.
const timestampLayout = "20060102T150405.000000"

// JobID identifies one job. The zero value is invalid.
type JobID string

// NewJobID builds a candidate identifier for a job on the given topic from
// the supplied wall-clock time. Callers must verify uniqueness with a
// conditional set; two calls within the same microsecond collide.
func NewJobID(now time.Time, topic string) JobID {
	return JobID(now.UTC().Format(timestampLayout) + "Z:" + topic)
}

// ParseJobID validates the "<timestamp>:<topic>" shape of s.
func ParseJobID(s string) (JobID, error) {
	ts, topic, ok := strings.Cut(s, ":")
	if !ok || topic == "" {
		return "", fmt.Errorf("id: parse job id %q: missing topic", s)
	}
	if _, err := time.Parse(timestampLayout+"Z", ts); err != nil {
		return "", fmt.Errorf("id: parse job id %q: %w", s, err)
	}
	return JobID(s), nil
}

// String returns the raw identifier.
func (j JobID) String() string { return string(j) }

// Topic returns the topic component of the identifier.
func (j JobID) Topic() string {
	_, topic, _ := strings.Cut(string(j), ":")
	return topic
}

var unsafeChars = regexp.MustCompile(`[^0-9a-zA-Z\-_.]`)

// Safe returns a filesystem-safe form of the identifier: every character
// outside [0-9a-zA-Z-_.] is replaced with "-".
func (j JobID) Safe() string {
	return unsafeChars.ReplaceAllString(string(j), "-")
}

// WorkerID identifies one worker run (TypeID, prefix "wkr").
type WorkerID struct {
	inner typeid.TypeID
	valid bool
}

// NewWorkerID generates a new globally unique worker identifier.
func NewWorkerID() WorkerID {
	tid, err := typeid.Generate("wkr")
	if err != nil {
		panic(fmt.Sprintf("id: generate worker id: %v", err))
	}
	return WorkerID{inner: tid, valid: true}
}

// String returns the TypeID string ("wkr_..."), or "" for the zero value.
func (w WorkerID) String() string {
	if !w.valid {
		return ""
	}
	return w.inner.String()
}

// IsNil reports whether this WorkerID is the zero value.
func (w WorkerID) IsNil() bool { return !w.valid }

// Holder returns the lock-holder value for this worker: the worker id
// qualified with hostname and pid so an operator can locate the process.
func (w WorkerID) Holder() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return fmt.Sprintf("%s host=%s pid=%d", w.String(), host, os.Getpid())
}
