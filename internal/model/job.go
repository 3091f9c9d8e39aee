package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// JobStatusType is the lifecycle state of an analysis job.
type JobStatusType string

const (
	JobStatusQueued     JobStatusType = "queued"
	JobStatusProcessing JobStatusType = "processing"
	JobStatusCompleted  JobStatusType = "completed"
	JobStatusFailed     JobStatusType = "failed"
	JobStatusCancelled  JobStatusType = "cancelled"
)

// Terminal reports whether no further transitions are allowed out of s.
func (s JobStatusType) Terminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// JobStatus is the pollable record stored under job:<id>. The worker owns
// transitions out of queued/processing; the gateway only creates the record
// and performs the cancel transition. Result, error and progress are
// always present on the wire, as explicit nulls until populated.
type JobStatus struct {
	JobID     uuid.UUID       `json:"job_id"`
	Status    JobStatusType   `json:"status"`
	Result    json.RawMessage `json:"result"`
	Error     *string         `json:"error"`
	Progress  json.RawMessage `json:"progress"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// NewQueuedJob builds the initial record for a freshly submitted job.
func NewQueuedJob(jobID uuid.UUID) *JobStatus {
	now := time.Now().UTC()
	return &JobStatus{
		JobID:     jobID,
		Status:    JobStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
