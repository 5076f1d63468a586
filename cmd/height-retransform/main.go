// Command height-retransform re-runs the vertical datum transformation for
// every layer that still has pending or failed feature heights. Intended as
// a manual backfill after geodesy service outages.
package main

import (
	"context"

	"geoimport_backend/internal/events"
	"geoimport_backend/internal/imports"
	"geoimport_backend/platform/config"
	"geoimport_backend/platform/db"
	"geoimport_backend/platform/logger"
	"geoimport_backend/platform/validator"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting height re-transformation backfill")

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	eventBus := events.NewInMemoryBus(log)
	importsModule := imports.NewModule(ctx, pool, cfg, eventBus, nil, validator.New(), log)
	svc := importsModule.Service()
	repo := importsModule.Repository()

	layers, err := listLayersNeedingHeight(ctx, pool)
	if err != nil {
		log.Error("failed to list layers", "error", err)
		return
	}
	if len(layers) == 0 {
		log.Info("no layers with outstanding heights")
		return
	}

	for _, layerID := range layers {
		result, err := svc.RetransformLayerHeights(ctx, repo, layerID)
		if err != nil {
			log.Error("re-transformation failed", "layerId", layerID, "error", err)
			continue
		}
		log.Info("layer re-transformed",
			"layerId", layerID,
			"processed", result.Processed,
			"succeeded", result.Succeeded,
			"failed", result.Failed,
			"remaining", result.Remaining,
		)
	}
}

func listLayersNeedingHeight(ctx context.Context, pool *pgxpool.Pool) ([]uuid.UUID, error) {
	rows, err := pool.Query(ctx, `
		SELECT DISTINCT layer_id
		FROM features
		WHERE height_transformation_status IN ('pending', 'failed')
		ORDER BY layer_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var layers []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		layers = append(layers, id)
	}
	return layers, rows.Err()
}
