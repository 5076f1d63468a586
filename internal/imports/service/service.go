// Package service drives the feature import pipeline: validation, repair,
// reprojection, height resolution and persistence, batch by batch.
package service

import (
	"context"
	"fmt"

	"geoimport_backend/internal/crs"
	"geoimport_backend/internal/events"
	"geoimport_backend/internal/geodesy"
	"geoimport_backend/internal/geometry"
	"geoimport_backend/internal/heights"
	"geoimport_backend/internal/imports/domain"
	"geoimport_backend/internal/progress"
	"geoimport_backend/platform/apperr"
	"geoimport_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"golang.org/x/sync/errgroup"
)

// FeatureStore is the persistence slice the orchestrator needs.
type FeatureStore interface {
	CreateCollection(ctx context.Context, name string) (uuid.UUID, error)
	CreateLayer(ctx context.Context, collectionID uuid.UUID, name string, srid int) (uuid.UUID, error)
	DeleteCollection(ctx context.Context, collectionID uuid.UUID) error
	InsertFeature(ctx context.Context, f *domain.StoredFeature) error
}

// HeightTransformer converts a resolved height into the canonical
// ellipsoidal height.
type HeightTransformer interface {
	ToEllipsoidal(ctx context.Context, point orb.Point, height float64, srid int) (geodesy.Result, error)
}

// ImportRequest is one pipeline invocation, handed over by the upload layer.
type ImportRequest struct {
	TargetLayerName       string
	Features              []domain.RawFeature
	SourceSRID            int
	TargetSRID            int
	BatchSize             int
	HeightAttribute       string
	ObjectHeightAttribute string
}

// ImportResult is the job summary returned to the caller.
type ImportResult struct {
	JobID         uuid.UUID
	CollectionID  uuid.UUID
	LayerID       uuid.UUID
	Status        domain.JobStatus
	ImportedCount int
	FailedCount   int
	SkippedCount  int
	Notices       []string
	FeatureErrors []domain.FeatureError
}

// Service is the batch orchestrator.
type Service struct {
	store       FeatureStore
	tracker     *progress.Tracker
	cleaner     *geometry.Cleaner
	transformer HeightTransformer
	bus         events.Bus
	log         *logger.Logger

	defaultBatchSize int
	maxBatchSize     int
	concurrency      int
}

type Options struct {
	DefaultBatchSize int
	MaxBatchSize     int
	// Concurrency bounds the outstanding geodesy calls per batch.
	Concurrency int
}

func New(store FeatureStore, tracker *progress.Tracker, transformer HeightTransformer, bus events.Bus, log *logger.Logger, opts Options) *Service {
	if opts.DefaultBatchSize <= 0 {
		opts.DefaultBatchSize = 100
	}
	if opts.MaxBatchSize <= 0 {
		opts.MaxBatchSize = 1000
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	return &Service{
		store:            store,
		tracker:          tracker,
		cleaner:          geometry.NewCleaner(),
		transformer:      transformer,
		bus:              bus,
		log:              log,
		defaultBatchSize: opts.DefaultBatchSize,
		maxBatchSize:     opts.MaxBatchSize,
		concurrency:      opts.Concurrency,
	}
}

// Import runs the full pipeline for one job request. Per-feature failures
// are aggregated into diagnostics and never abort the run; the job only
// fails as a whole when nothing could be imported, in which case the created
// collection and layer are discarded again.
func (s *Service) Import(ctx context.Context, req ImportRequest) (*ImportResult, error) {
	if req.TargetLayerName == "" {
		return nil, apperr.Validation("target layer name is required")
	}
	if _, err := crs.ResolveFrame(req.SourceSRID); err != nil {
		return nil, apperr.Validation(err.Error())
	}
	if _, err := crs.ResolveFrame(req.TargetSRID); err != nil {
		return nil, apperr.Validation(err.Error())
	}

	batchSize := req.BatchSize
	if batchSize <= 0 {
		batchSize = s.defaultBatchSize
	}
	if batchSize > s.maxBatchSize {
		batchSize = s.maxBatchSize
	}

	job := &domain.ImportJob{TotalFeatures: len(req.Features)}
	jobID, err := s.tracker.Create(ctx, job)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to create import job", err)
	}
	log := s.log.WithJobID(jobID.String())

	collectionID, err := s.store.CreateCollection(ctx, req.TargetLayerName)
	if err != nil {
		return nil, s.failJob(ctx, job, "failed to create collection", err)
	}
	layerID, err := s.store.CreateLayer(ctx, collectionID, req.TargetLayerName, req.TargetSRID)
	if err != nil {
		_ = s.store.DeleteCollection(ctx, collectionID)
		return nil, s.failJob(ctx, job, "failed to create layer", err)
	}

	resolver := heights.NewResolver(job.AddNotice)
	heightFailed := 0

	for batchStart := 0; batchStart < len(req.Features); batchStart += batchSize {
		batchEnd := min(batchStart+batchSize, len(req.Features))
		batchNo := batchStart/batchSize + 1

		if ctx.Err() != nil {
			s.markRemainingFailed(job, batchStart, len(req.Features))
			break
		}

		prepared := s.prepareBatch(req, resolver, job, layerID, batchStart, batchEnd)
		s.transformBatch(ctx, prepared, req.SourceSRID, req.TargetSRID)

		// Result writes and counter updates are serialized after the
		// concurrent geodesy fan-out.
		for _, p := range prepared {
			if p.feature.HeightStatus == domain.HeightStatusFailed {
				heightFailed++
			}
			if err := s.store.InsertFeature(ctx, p.feature); err != nil {
				job.FailedCount++
				job.AddFeatureError(p.index, "failed to persist feature", err.Error())
				continue
			}
			job.ImportedCount++
		}

		job.AddNotice(fmt.Sprintf("batch %d processed (features %d-%d)", batchNo, batchStart, batchEnd-1))
		log.ImportBatch(jobID.String(), batchNo, job.ImportedCount, job.FailedCount, job.SkippedCount)

		// Intermediate progress only; the final batch settles through the
		// terminal update below, after the rollback decision.
		if batchEnd < len(req.Features) {
			if _, err := s.tracker.Update(ctx, jobID, job.ImportedCount, job.FailedCount, job.SkippedCount, progress.Metadata{
				LayerID:       &layerID,
				Notices:       job.Notices,
				FeatureErrors: job.FeatureErrors,
			}); err != nil {
				log.DatabaseError("update import job", err)
			}
		}
	}

	// A job that attempted features but imported none leaves no partial
	// artifacts behind.
	if job.ImportedCount == 0 && job.FailedCount > 0 {
		// Rollback must run even when the job context was canceled.
		cleanupCtx := context.WithoutCancel(ctx)
		if err := s.store.DeleteCollection(cleanupCtx, collectionID); err != nil {
			log.DatabaseError("rollback collection", err)
		}
		job.AddNotice("no features imported; collection and layer discarded")
		updated, err := s.tracker.Update(cleanupCtx, jobID, job.ImportedCount, job.FailedCount, job.SkippedCount, progress.Metadata{
			Unrecoverable: true,
			Error:         "no features could be imported",
			Notices:       job.Notices,
			FeatureErrors: job.FeatureErrors,
		})
		if err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, "failed to finalize import job", err)
		}
		return resultFrom(updated, uuid.Nil, uuid.Nil), nil
	}

	if ctx.Err() != nil {
		updated, err := s.tracker.Update(context.WithoutCancel(ctx), jobID, job.ImportedCount, job.FailedCount, job.SkippedCount, progress.Metadata{
			Unrecoverable: true,
			Error:         "import canceled",
			LayerID:       &layerID,
			Notices:       job.Notices,
			FeatureErrors: job.FeatureErrors,
		})
		if err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, "failed to finalize import job", err)
		}
		return resultFrom(updated, collectionID, layerID), nil
	}

	updated, err := s.tracker.Update(ctx, jobID, job.ImportedCount, job.FailedCount, job.SkippedCount, progress.Metadata{
		LayerID:       &layerID,
		Notices:       job.Notices,
		FeatureErrors: job.FeatureErrors,
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to finalize import job", err)
	}

	if s.bus != nil {
		s.bus.Publish(ctx, events.ImportCompleted{
			BaseEvent:         events.NewBaseEvent(),
			JobID:             jobID,
			LayerID:           layerID,
			ImportedCount:     updated.ImportedCount,
			FailedCount:       updated.FailedCount,
			FailedHeightCount: heightFailed,
		})
	}

	return resultFrom(updated, collectionID, layerID), nil
}

// preparedFeature is a feature that survived geometry processing and awaits
// its height transformation and persistence.
type preparedFeature struct {
	index   int
	feature *domain.StoredFeature

	needsTransform bool
	point          orb.Point
	height         float64
}

// prepareBatch runs the sequential, CPU-bound part of the pipeline for one
// batch: skip detection, validation/repair, reprojection and height
// resolution. Failures become counters plus diagnostics on the job.
func (s *Service) prepareBatch(req ImportRequest, resolver *heights.Resolver, job *domain.ImportJob, layerID uuid.UUID, start, end int) []*preparedFeature {
	prepared := make([]*preparedFeature, 0, end-start)

	for i := start; i < end; i++ {
		raw := req.Features[i]

		// Missing or unparsable geometry is skipped before any processing.
		if raw.Geometry == nil {
			job.SkippedCount++
			detail := raw.ParseError
			job.AddFeatureError(i, "feature skipped: missing or unparsable geometry", detail)
			continue
		}

		validated, err := s.cleaner.Clean(raw.Geometry)
		if err != nil {
			job.FailedCount++
			job.AddFeatureError(i, "invalid geometry", err.Error())
			continue
		}
		if validated.Provenance != geometry.ProvenanceUnchanged {
			job.AddNotice(fmt.Sprintf("feature %d geometry %s", i, validated.Provenance))
		}

		footprint, err := crs.Reproject(validated.Geometry, req.SourceSRID, req.TargetSRID)
		if err != nil {
			job.FailedCount++
			job.AddFeatureError(i, "reprojection failed", err.Error())
			continue
		}

		attrs := cloneAttributes(raw.Properties)
		srcPoint := representativePoint(validated.Geometry)
		if req.SourceSRID != req.TargetSRID {
			attrs[domain.AttrSourceSRID] = req.SourceSRID
			attrs[domain.AttrSourceEasting] = srcPoint[0]
			attrs[domain.AttrSourceNorthing] = srcPoint[1]
		}

		feature := &domain.StoredFeature{
			ID:           uuid.New(),
			LayerID:      layerID,
			Geometry:     footprint,
			GeometryType: geometryType(footprint),
			Attributes:   attrs,
			HeightMode:   domain.HeightModeClampToGround,
			HeightStatus: domain.HeightStatusNotRequired,
		}

		if objH, ok := resolver.ObjectHeight(raw.Properties, req.ObjectHeightAttribute); ok {
			feature.ObjectHeight = &objH
			feature.HeightMode = domain.HeightModeRelativeToGround
		}

		p := &preparedFeature{index: i, feature: feature, point: srcPoint}

		if h, ok := resolver.Resolve(raw.GeometryType, raw.Coordinates, raw.Properties, req.HeightAttribute); ok {
			p.needsTransform = true
			p.height = h.Value
			source := h.Source
			feature.HeightSource = &source
			feature.HeightStatus = domain.HeightStatusPending
			// Preserved so a later re-transformation pass can redo the
			// vertical correction from the original inputs.
			attrs[domain.AttrSourceHeight] = h.Value
			if req.SourceSRID == req.TargetSRID {
				attrs[domain.AttrSourceSRID] = req.SourceSRID
				attrs[domain.AttrSourceEasting] = srcPoint[0]
				attrs[domain.AttrSourceNorthing] = srcPoint[1]
			}
		}

		prepared = append(prepared, p)
	}

	return prepared
}

// transformBatch fans the geodesy-bound features of a batch out over a
// bounded worker pool. Every goroutine owns exactly one slot, so there are
// no concurrent writes; a single timed-out call never affects its siblings.
func (s *Service) transformBatch(ctx context.Context, prepared []*preparedFeature, sourceSRID, targetSRID int) {
	// Heights stay in the local frame when the target frame is the Swiss
	// plane grid; only the canonical global frame needs the external
	// transformation.
	target, _ := crs.ResolveFrame(targetSRID)
	if target.SRID != crs.SRIDWGS84 {
		for _, p := range prepared {
			if !p.needsTransform {
				continue
			}
			h := p.height
			p.feature.BaseElevation = &h
			p.feature.HeightMode = domain.HeightModeLV95Stored
			p.feature.HeightStatus = domain.HeightStatusComplete
		}
		return
	}

	g := &errgroup.Group{}
	g.SetLimit(s.concurrency)

	for _, p := range prepared {
		if !p.needsTransform {
			continue
		}
		g.Go(func() error {
			result, err := s.transformer.ToEllipsoidal(ctx, p.point, p.height, sourceSRID)
			if err != nil {
				msg := err.Error()
				p.feature.HeightError = &msg
				p.feature.HeightStatus = domain.HeightStatusFailed
				p.feature.HeightMode = domain.HeightModeUnknown
				p.feature.BaseElevation = nil
				return nil
			}
			h := result.Ellipsoidal
			p.feature.BaseElevation = &h
			p.feature.HeightMode = domain.HeightModeAbsoluteEllipsoidal
			p.feature.HeightStatus = domain.HeightStatusComplete
			datum := result.DatumSource
			p.feature.VerticalDatumSource = &datum
			return nil
		})
	}

	_ = g.Wait()
}

// markRemainingFailed accounts for features never processed because the job
// context was canceled, keeping the counter invariant intact.
func (s *Service) markRemainingFailed(job *domain.ImportJob, from, total int) {
	for i := from; i < total; i++ {
		job.FailedCount++
		job.AddFeatureError(i, "import canceled before feature was processed", "")
	}
	job.AddNotice("import canceled; remaining features marked failed")
}

func (s *Service) failJob(ctx context.Context, job *domain.ImportJob, msg string, cause error) error {
	if _, err := s.tracker.Update(ctx, job.ID, job.ImportedCount, job.FailedCount, job.SkippedCount, progress.Metadata{
		Unrecoverable: true,
		Error:         msg,
	}); err != nil {
		s.log.DatabaseError("fail import job", err)
	}
	return apperr.Wrap(apperr.KindInternal, msg, cause)
}

func resultFrom(job *domain.ImportJob, collectionID, layerID uuid.UUID) *ImportResult {
	return &ImportResult{
		JobID:         job.ID,
		CollectionID:  collectionID,
		LayerID:       layerID,
		Status:        job.Status,
		ImportedCount: job.ImportedCount,
		FailedCount:   job.FailedCount,
		SkippedCount:  job.SkippedCount,
		Notices:       job.Notices,
		FeatureErrors: job.FeatureErrors,
	}
}

func cloneAttributes(attrs map[string]any) map[string]any {
	out := make(map[string]any, len(attrs)+3)
	for k, v := range attrs {
		out[k] = v
	}
	return out
}

// representativePoint picks the vertex used for height transformation: the
// point itself, a line's first vertex, or the first vertex of a polygon's
// exterior ring.
func representativePoint(g orb.Geometry) orb.Point {
	switch geom := g.(type) {
	case orb.Point:
		return geom
	case orb.MultiPoint:
		if len(geom) > 0 {
			return geom[0]
		}
	case orb.LineString:
		if len(geom) > 0 {
			return geom[0]
		}
	case orb.MultiLineString:
		if len(geom) > 0 && len(geom[0]) > 0 {
			return geom[0][0]
		}
	case orb.Polygon:
		if len(geom) > 0 && len(geom[0]) > 0 {
			return geom[0][0]
		}
	case orb.MultiPolygon:
		if len(geom) > 0 && len(geom[0]) > 0 && len(geom[0][0]) > 0 {
			return geom[0][0][0]
		}
	}
	return orb.Point{}
}

func geometryType(g orb.Geometry) string {
	if g == nil {
		return ""
	}
	return g.GeoJSONType()
}
