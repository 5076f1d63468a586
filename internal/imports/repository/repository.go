// Package repository persists collections, layers, features and import jobs.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"geoimport_backend/internal/imports/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/paulmach/orb/geojson"
)

var ErrNotFound = errors.New("not found")

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Ping exposes pool health for readiness checks.
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// CreateCollection creates the output collection container for one import.
func (r *Repository) CreateCollection(ctx context.Context, name string) (uuid.UUID, error) {
	id := uuid.New()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO collections (id, name)
		VALUES ($1, $2)
	`, id, name)
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// CreateLayer creates the output layer inside a collection.
func (r *Repository) CreateLayer(ctx context.Context, collectionID uuid.UUID, name string, srid int) (uuid.UUID, error) {
	id := uuid.New()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO layers (id, collection_id, name, srid)
		VALUES ($1, $2, $3, $4)
	`, id, collectionID, name, srid)
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// DeleteCollection removes a collection with its layers and features. Used
// for the atomic rollback of totally failed jobs.
func (r *Repository) DeleteCollection(ctx context.Context, collectionID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM collections WHERE id = $1`, collectionID)
	return err
}

// InsertFeature persists one stored feature.
func (r *Repository) InsertFeature(ctx context.Context, f *domain.StoredFeature) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}

	geomJSON, err := json.Marshal(geojson.NewGeometry(f.Geometry))
	if err != nil {
		return err
	}
	attrsJSON, err := json.Marshal(f.Attributes)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO features (
			id, layer_id, geometry, geometry_type,
			base_elevation_ellipsoidal, object_height,
			height_mode, height_source, vertical_datum_source,
			height_transformation_status, height_error, attributes
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		f.ID, f.LayerID, geomJSON, f.GeometryType,
		f.BaseElevation, f.ObjectHeight,
		f.HeightMode, f.HeightSource, f.VerticalDatumSource,
		f.HeightStatus, f.HeightError, attrsJSON,
	)
	return err
}

// ListFeaturesByLayer returns the stored features of a layer ordered by
// insertion time.
func (r *Repository) ListFeaturesByLayer(ctx context.Context, layerID uuid.UUID) ([]domain.StoredFeature, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, layer_id, geometry, geometry_type,
		       base_elevation_ellipsoidal, object_height,
		       height_mode, height_source, vertical_datum_source,
		       height_transformation_status, height_error, attributes,
		       created_at, updated_at
		FROM features
		WHERE layer_id = $1
		ORDER BY created_at ASC, id ASC
	`, layerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanFeatures(rows)
}

// ListFeaturesNeedingHeight returns a layer's features whose height
// transformation is pending or failed, for the re-transformation pass.
// Pagination is keyset on the feature id: only rows past afterID are
// returned, so a caller advancing the cursor never sees a row twice even
// when attempted rows stay in a failed state.
func (r *Repository) ListFeaturesNeedingHeight(ctx context.Context, layerID uuid.UUID, afterID uuid.UUID, limit int) ([]domain.StoredFeature, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, layer_id, geometry, geometry_type,
		       base_elevation_ellipsoidal, object_height,
		       height_mode, height_source, vertical_datum_source,
		       height_transformation_status, height_error, attributes,
		       created_at, updated_at
		FROM features
		WHERE layer_id = $1
		  AND height_transformation_status IN ('pending', 'failed')
		  AND id > $2
		ORDER BY id ASC
		LIMIT $3
	`, layerID, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanFeatures(rows)
}

// UpdateFeatureHeight rewrites the mutable height fields of a feature.
// Geometry stays untouched.
func (r *Repository) UpdateFeatureHeight(ctx context.Context, f *domain.StoredFeature) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE features
		SET base_elevation_ellipsoidal = $2,
		    height_mode = $3,
		    vertical_datum_source = $4,
		    height_transformation_status = $5,
		    height_error = $6,
		    updated_at = now()
		WHERE id = $1
	`, f.ID, f.BaseElevation, f.HeightMode, f.VerticalDatumSource, f.HeightStatus, f.HeightError)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CountFeaturesNeedingHeight counts a layer's features still awaiting a
// successful height transformation.
func (r *Repository) CountFeaturesNeedingHeight(ctx context.Context, layerID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM features
		WHERE layer_id = $1
		  AND height_transformation_status IN ('pending', 'failed')
	`, layerID).Scan(&n)
	return n, err
}

func scanFeatures(rows pgx.Rows) ([]domain.StoredFeature, error) {
	features := make([]domain.StoredFeature, 0)
	for rows.Next() {
		f, err := scanFeature(rows)
		if err != nil {
			return nil, err
		}
		features = append(features, f)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return features, nil
}

func scanFeature(row pgx.Row) (domain.StoredFeature, error) {
	var (
		f         domain.StoredFeature
		geomJSON  []byte
		attrsJSON []byte
		createdAt time.Time
		updatedAt time.Time
	)

	err := row.Scan(
		&f.ID, &f.LayerID, &geomJSON, &f.GeometryType,
		&f.BaseElevation, &f.ObjectHeight,
		&f.HeightMode, &f.HeightSource, &f.VerticalDatumSource,
		&f.HeightStatus, &f.HeightError, &attrsJSON,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return domain.StoredFeature{}, err
	}

	geom, err := geojson.UnmarshalGeometry(geomJSON)
	if err != nil {
		return domain.StoredFeature{}, err
	}
	f.Geometry = geom.Geometry()

	if len(attrsJSON) > 0 {
		if err := json.Unmarshal(attrsJSON, &f.Attributes); err != nil {
			return domain.StoredFeature{}, err
		}
	}

	f.CreatedAt = createdAt
	f.UpdatedAt = updatedAt
	return f, nil
}
