package scheduler

import (
	"context"
	"fmt"

	"geoimport_backend/internal/imports/repository"
	"geoimport_backend/internal/imports/service"
	"geoimport_backend/platform/config"
	"geoimport_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Worker struct {
	server  *asynq.Server
	mux     *asynq.ServeMux
	repo    *repository.Repository
	imports *service.Service
	log     *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, pool *pgxpool.Pool, imports *service.Service, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:  server,
		mux:     mux,
		repo:    repository.New(pool),
		imports: imports,
		log:     log,
	}

	mux.HandleFunc(TaskHeightRetransform, w.handleHeightRetransform)

	return w, nil
}

func (w *Worker) handleHeightRetransform(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseHeightRetransformPayload(task)
	if err != nil {
		return err
	}

	layerID, err := uuid.Parse(payload.LayerID)
	if err != nil {
		return err
	}

	_, err = w.imports.RetransformLayerHeights(ctx, w.repo, layerID)
	return err
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
