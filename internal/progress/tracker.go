// Package progress records import job state transitions and feature counts
// for external observability and resumability.
package progress

import (
	"context"

	"geoimport_backend/internal/imports/domain"
	"geoimport_backend/platform/logger"

	"github.com/google/uuid"
)

// JobStore is the persistence slice the tracker needs.
type JobStore interface {
	CreateJob(ctx context.Context, job *domain.ImportJob) (uuid.UUID, error)
	UpdateJob(ctx context.Context, job *domain.ImportJob) error
	GetJob(ctx context.Context, id uuid.UUID) (*domain.ImportJob, error)
}

// Metadata carries optional update context beyond the counters.
type Metadata struct {
	// Unrecoverable marks the job failed regardless of counters.
	Unrecoverable bool
	// Error is the job-level error message, recorded when set.
	Error string
	// LayerID attaches the output layer once it exists.
	LayerID *uuid.UUID
	// Notices and FeatureErrors replace the job's diagnostic lists.
	Notices       []string
	FeatureErrors []domain.FeatureError
}

// Tracker updates job records with monotonic status transitions: once a job
// is completed or failed, later updates never pull it back to processing.
// That guards against out-of-order batch-completion signals from concurrent
// callers.
type Tracker struct {
	store JobStore
	log   *logger.Logger
}

func NewTracker(store JobStore, log *logger.Logger) *Tracker {
	return &Tracker{store: store, log: log}
}

// Create persists a new job in the started state and returns its id.
func (t *Tracker) Create(ctx context.Context, job *domain.ImportJob) (uuid.UUID, error) {
	job.Status = domain.JobStatusStarted
	return t.store.CreateJob(ctx, job)
}

// Update applies counters and metadata and recomputes the job status:
// completed once imported+failed covers every non-skipped feature, failed on
// unrecoverable metadata, processing otherwise.
func (t *Tracker) Update(ctx context.Context, id uuid.UUID, imported, failed, skipped int, meta Metadata) (*domain.ImportJob, error) {
	job, err := t.store.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}

	if job.Status.Terminal() {
		t.log.Warn("ignoring update for terminal job",
			"job_id", id.String(),
			"status", string(job.Status),
		)
		return job, nil
	}

	job.ImportedCount = imported
	job.FailedCount = failed
	job.SkippedCount = skipped
	if meta.LayerID != nil {
		job.LayerID = meta.LayerID
	}
	if meta.Notices != nil {
		job.Notices = meta.Notices
	}
	if meta.FeatureErrors != nil {
		job.FeatureErrors = meta.FeatureErrors
	}
	if meta.Error != "" {
		msg := meta.Error
		job.Error = &msg
	}

	switch {
	case meta.Unrecoverable:
		job.Status = domain.JobStatusFailed
	case job.Attempted() >= job.TotalFeatures:
		job.Status = domain.JobStatusCompleted
	default:
		job.Status = domain.JobStatusProcessing
	}

	if err := t.store.UpdateJob(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// Get loads the current job record.
func (t *Tracker) Get(ctx context.Context, id uuid.UUID) (*domain.ImportJob, error) {
	return t.store.GetJob(ctx, id)
}
