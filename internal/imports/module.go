// Package imports wires the feature import pipeline: repository, progress
// tracking, geodesy transformation and the HTTP surface.
package imports

import (
	"context"

	"geoimport_backend/internal/crs"
	"geoimport_backend/internal/events"
	"geoimport_backend/internal/geodesy"
	apphttp "geoimport_backend/internal/http"
	"geoimport_backend/internal/imports/handler"
	"geoimport_backend/internal/imports/repository"
	"geoimport_backend/internal/imports/service"
	"geoimport_backend/internal/progress"
	"geoimport_backend/internal/scheduler"
	"geoimport_backend/platform/config"
	"geoimport_backend/platform/logger"
	"geoimport_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ModuleConfig combines the config interfaces the module depends on.
type ModuleConfig interface {
	config.GeodesyConfig
	config.ImportConfig
}

type Module struct {
	handler *handler.Handler
	service *service.Service
	repo    *repository.Repository
}

// NewModule assembles the import pipeline. The vertical datum registry is
// loaded from the database; when that fails the built-in Swiss defaults
// keep the pipeline usable.
func NewModule(ctx context.Context, pool *pgxpool.Pool, cfg ModuleConfig, bus events.Bus, sched scheduler.RetransformScheduler, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	tracker := progress.NewTracker(repo, log)

	datumRefs, err := repo.LoadVerticalDatums(ctx)
	if err != nil || len(datumRefs) == 0 {
		if err != nil {
			log.Warn("failed to load vertical datum refs, using defaults", "error", err)
		}
		datumRefs = crs.DefaultVerticalDatums()
	}
	datums := crs.NewVerticalDatumRegistry(datumRefs)

	client := geodesy.NewClient(cfg, log)
	transformer := geodesy.NewTransformer(client, datums)

	svc := service.New(repo, tracker, transformer, bus, log, service.Options{
		DefaultBatchSize: cfg.GetImportDefaultBatchSize(),
		MaxBatchSize:     cfg.GetImportMaxBatchSize(),
		Concurrency:      cfg.GetGeodesyConcurrency(),
	})

	h := handler.New(svc, repo, sched, val, cfg.GetImportMaxFeatures())

	return &Module{handler: h, service: svc, repo: repo}
}

func (m *Module) Name() string {
	return "imports"
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.V1)
}

// Service exposes the import service for the worker composition root.
func (m *Module) Service() *service.Service {
	return m.service
}

// Repository exposes the persistence layer for the worker composition root.
func (m *Module) Repository() *repository.Repository {
	return m.repo
}

var _ apphttp.Module = (*Module)(nil)
