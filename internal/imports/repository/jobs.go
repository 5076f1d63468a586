package repository

import (
	"context"
	"encoding/json"
	"errors"

	"geoimport_backend/internal/imports/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CreateJob persists a new import job in its initial state.
func (r *Repository) CreateJob(ctx context.Context, job *domain.ImportJob) (uuid.UUID, error) {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}

	notices, featureErrors, err := marshalDiagnostics(job)
	if err != nil {
		return uuid.Nil, err
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO import_jobs (
			id, layer_id, total_features,
			imported_count, failed_count, skipped_count,
			status, error, notices, feature_errors
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		job.ID, job.LayerID, job.TotalFeatures,
		job.ImportedCount, job.FailedCount, job.SkippedCount,
		job.Status, job.Error, notices, featureErrors,
	)
	if err != nil {
		return uuid.Nil, err
	}
	return job.ID, nil
}

// UpdateJob rewrites the mutable fields of an import job.
func (r *Repository) UpdateJob(ctx context.Context, job *domain.ImportJob) error {
	notices, featureErrors, err := marshalDiagnostics(job)
	if err != nil {
		return err
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE import_jobs
		SET layer_id = $2,
		    imported_count = $3,
		    failed_count = $4,
		    skipped_count = $5,
		    status = $6,
		    error = $7,
		    notices = $8,
		    feature_errors = $9,
		    updated_at = now()
		WHERE id = $1
	`,
		job.ID, job.LayerID,
		job.ImportedCount, job.FailedCount, job.SkippedCount,
		job.Status, job.Error, notices, featureErrors,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetJob loads an import job by id.
func (r *Repository) GetJob(ctx context.Context, id uuid.UUID) (*domain.ImportJob, error) {
	var (
		job           domain.ImportJob
		notices       []byte
		featureErrors []byte
	)

	err := r.pool.QueryRow(ctx, `
		SELECT id, layer_id, total_features,
		       imported_count, failed_count, skipped_count,
		       status, error, notices, feature_errors,
		       created_at, updated_at
		FROM import_jobs
		WHERE id = $1
	`, id).Scan(
		&job.ID, &job.LayerID, &job.TotalFeatures,
		&job.ImportedCount, &job.FailedCount, &job.SkippedCount,
		&job.Status, &job.Error, &notices, &featureErrors,
		&job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if err := json.Unmarshal(notices, &job.Notices); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(featureErrors, &job.FeatureErrors); err != nil {
		return nil, err
	}

	return &job, nil
}

func marshalDiagnostics(job *domain.ImportJob) ([]byte, []byte, error) {
	noticeList := job.Notices
	if noticeList == nil {
		noticeList = []string{}
	}
	errorList := job.FeatureErrors
	if errorList == nil {
		errorList = []domain.FeatureError{}
	}

	notices, err := json.Marshal(noticeList)
	if err != nil {
		return nil, nil, err
	}
	featureErrors, err := json.Marshal(errorList)
	if err != nil {
		return nil, nil, err
	}
	return notices, featureErrors, nil
}
