// Package job owns the job record, the handler result contract, and the
// persistence of records and attachment blobs.
//
// A record is only a payload with lineage; which queue a job sits in is the
// queue manager's business, and the job identifier is the sole
// cross-reference between the two.
package job

import (
	"encoding/json"
	"fmt"

	"github.com/mrexodia/sjq/id"
)

// Job is one unit of work: a JSON payload plus an optional binary
// attachment, flowing through exactly one topic at a time.
type Job struct {
	// ID is the globally unique identifier, "<timestamp>:<topic>".
	ID id.JobID `json:"job_id"`

	// ParentJobID is set iff this job was created from another job's
	// output.
	ParentJobID string `json:"parent_job_id,omitempty"`

	// Data is the handler's input payload, arbitrary JSON.
	Data json.RawMessage `json:"data"`

	// HasAttachment reports whether an attachment blob is stored
	// alongside the record.
	HasAttachment bool `json:"attachment,omitempty"`
}

// Topic returns the topic component of the job's identifier.
func (j *Job) Topic() string { return j.ID.Topic() }

// Marshal serializes the record for storage.
func (j *Job) Marshal() ([]byte, error) {
	data, err := json.Marshal(j)
	if err != nil {
		return nil, fmt.Errorf("job: marshal record %s: %w", j.ID, err)
	}
	return data, nil
}

// Unmarshal deserializes a stored record.
func Unmarshal(data []byte) (*Job, error) {
	var j Job
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("job: unmarshal record: %w", err)
	}
	return &j, nil
}
