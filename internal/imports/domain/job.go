package domain

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus is the lifecycle state of an import job.
// Transitions: started → processing → {completed | failed}, terminal states
// never revert.
type JobStatus string

const (
	JobStatusStarted    JobStatus = "started"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether no further status transitions are allowed.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// FeatureError is one per-feature diagnostic entry, ordered by input index.
type FeatureError struct {
	Index   int    `json:"index"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// ImportJob is the aggregate for one pipeline invocation. Counters and
// diagnostics are carried explicitly through each processing call rather
// than through shared mutable state.
type ImportJob struct {
	ID            uuid.UUID
	LayerID       *uuid.UUID
	TotalFeatures int
	ImportedCount int
	FailedCount   int
	SkippedCount  int
	Status        JobStatus
	Error         *string
	Notices       []string
	FeatureErrors []FeatureError
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Attempted is the number of features accounted for so far.
func (j *ImportJob) Attempted() int {
	return j.ImportedCount + j.FailedCount + j.SkippedCount
}

// CountersConsistent checks the job invariant: the counter sum never exceeds
// the total, and equals it once the job is terminal.
func (j *ImportJob) CountersConsistent() bool {
	if j.Attempted() > j.TotalFeatures {
		return false
	}
	if j.Status.Terminal() {
		return j.Attempted() == j.TotalFeatures
	}
	return true
}

// AddNotice appends an informational diagnostic.
func (j *ImportJob) AddNotice(msg string) {
	j.Notices = append(j.Notices, msg)
}

// AddFeatureError appends a per-feature diagnostic entry.
func (j *ImportJob) AddFeatureError(index int, message, detail string) {
	j.FeatureErrors = append(j.FeatureErrors, FeatureError{
		Index:   index,
		Message: message,
		Detail:  detail,
	})
}
