package job

import "time"

// Metadata records one execution attempt of a job: what ran, when, how it
// exited, and what it printed. It is persisted unconditionally after every
// attempt, never mutated afterward, and plays no part in control flow —
// it exists for audit and postmortem.
type Metadata struct {
	JobID          string    `json:"job_id"`
	ParentJobID    string    `json:"parent_job_id,omitempty"`
	Topic          string    `json:"topic"`
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time"`
	ElapsedSeconds float64   `json:"elapsed_seconds"`
	ExitCode       int       `json:"exit_code"`
	Stdout         string    `json:"stdout"`
	Stderr         string    `json:"stderr"`

	// Command is the exact handler invocation, argv style.
	Command []string `json:"command"`
}
