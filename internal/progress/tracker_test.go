package progress

import (
	"context"
	"errors"
	"testing"

	"geoimport_backend/internal/imports/domain"
	"geoimport_backend/platform/logger"

	"github.com/google/uuid"
)

type memJobStore struct {
	jobs map[uuid.UUID]*domain.ImportJob
}

func newMemJobStore() *memJobStore {
	return &memJobStore{jobs: make(map[uuid.UUID]*domain.ImportJob)}
}

func (s *memJobStore) CreateJob(ctx context.Context, job *domain.ImportJob) (uuid.UUID, error) {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	stored := *job
	s.jobs[job.ID] = &stored
	return job.ID, nil
}

func (s *memJobStore) UpdateJob(ctx context.Context, job *domain.ImportJob) error {
	stored := *job
	s.jobs[job.ID] = &stored
	return nil
}

func (s *memJobStore) GetJob(ctx context.Context, id uuid.UUID) (*domain.ImportJob, error) {
	job, ok := s.jobs[id]
	if !ok {
		return nil, errors.New("job not found")
	}
	clone := *job
	return &clone, nil
}

func newTestTracker() (*Tracker, *memJobStore) {
	store := newMemJobStore()
	return NewTracker(store, logger.New("development")), store
}

func TestTrackerCreateStartsJob(t *testing.T) {
	tracker, store := newTestTracker()

	id, err := tracker.Create(context.Background(), &domain.ImportJob{TotalFeatures: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	job := store.jobs[id]
	if job.Status != domain.JobStatusStarted {
		t.Errorf("status = %q, want %q", job.Status, domain.JobStatusStarted)
	}
	if job.TotalFeatures != 10 {
		t.Errorf("total = %d, want 10", job.TotalFeatures)
	}
}

func TestTrackerStatusProgression(t *testing.T) {
	tracker, _ := newTestTracker()
	ctx := context.Background()

	id, err := tracker.Create(ctx, &domain.ImportJob{TotalFeatures: 4})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	job, err := tracker.Update(ctx, id, 1, 0, 0, Metadata{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job.Status != domain.JobStatusProcessing {
		t.Errorf("after partial progress status = %q, want processing", job.Status)
	}

	job, err = tracker.Update(ctx, id, 2, 1, 1, Metadata{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job.Status != domain.JobStatusCompleted {
		t.Errorf("after full coverage status = %q, want completed", job.Status)
	}
	if job.ImportedCount+job.FailedCount+job.SkippedCount != job.TotalFeatures {
		t.Errorf("counters %d+%d+%d do not cover total %d",
			job.ImportedCount, job.FailedCount, job.SkippedCount, job.TotalFeatures)
	}
}

func TestTrackerUnrecoverableFailsJob(t *testing.T) {
	tracker, _ := newTestTracker()
	ctx := context.Background()

	id, _ := tracker.Create(ctx, &domain.ImportJob{TotalFeatures: 3})

	job, err := tracker.Update(ctx, id, 0, 1, 0, Metadata{Unrecoverable: true, Error: "no features could be imported"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job.Status != domain.JobStatusFailed {
		t.Errorf("status = %q, want failed", job.Status)
	}
	if job.Error == nil || *job.Error != "no features could be imported" {
		t.Errorf("error = %v, want recorded message", job.Error)
	}
}

func TestTrackerIgnoresUpdatesAfterTerminalState(t *testing.T) {
	tracker, store := newTestTracker()
	ctx := context.Background()

	id, _ := tracker.Create(ctx, &domain.ImportJob{TotalFeatures: 2})
	if _, err := tracker.Update(ctx, id, 2, 0, 0, Metadata{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A late, out-of-order signal must not pull the job back to processing.
	job, err := tracker.Update(ctx, id, 1, 0, 0, Metadata{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job.Status != domain.JobStatusCompleted {
		t.Errorf("status = %q, want completed to stick", job.Status)
	}
	if store.jobs[id].ImportedCount != 2 {
		t.Errorf("imported = %d, late update must not overwrite", store.jobs[id].ImportedCount)
	}
}

func TestTrackerAttachesLayerAndDiagnostics(t *testing.T) {
	tracker, _ := newTestTracker()
	ctx := context.Background()

	id, _ := tracker.Create(ctx, &domain.ImportJob{TotalFeatures: 2})
	layerID := uuid.New()

	job, err := tracker.Update(ctx, id, 1, 0, 0, Metadata{
		LayerID: &layerID,
		Notices: []string{"batch 1 processed"},
		FeatureErrors: []domain.FeatureError{
			{Index: 1, Message: "invalid geometry"},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job.LayerID == nil || *job.LayerID != layerID {
		t.Errorf("layer id = %v, want %v", job.LayerID, layerID)
	}
	if len(job.Notices) != 1 || len(job.FeatureErrors) != 1 {
		t.Errorf("diagnostics not applied: %v %v", job.Notices, job.FeatureErrors)
	}
}
