package service

import (
	"context"
	"encoding/json"

	"geoimport_backend/internal/crs"
	"geoimport_backend/internal/imports/domain"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"golang.org/x/sync/errgroup"
)

// HeightStore is the persistence slice of the re-transformation pass. It
// only ever touches height columns; footprints stay untouched.
// ListFeaturesNeedingHeight must keyset-paginate: only rows whose id sorts
// after afterID come back, even when earlier rows still need a height.
type HeightStore interface {
	ListFeaturesNeedingHeight(ctx context.Context, layerID uuid.UUID, afterID uuid.UUID, limit int) ([]domain.StoredFeature, error)
	UpdateFeatureHeight(ctx context.Context, f *domain.StoredFeature) error
	CountFeaturesNeedingHeight(ctx context.Context, layerID uuid.UUID) (int, error)
}

// RetransformResult summarizes one re-transformation run over a layer.
type RetransformResult struct {
	Processed int
	Succeeded int
	Failed    int
	Remaining int
}

const retransformPageSize = 200

// RetransformLayerHeights re-runs the vertical datum transformation for
// every feature of a layer whose height is still pending or previously
// failed. The cursor advances past every listed row, so each feature is
// attempted exactly once per run and a feature failing again does not loop
// the pass forever.
func (s *Service) RetransformLayerHeights(ctx context.Context, store HeightStore, layerID uuid.UUID) (*RetransformResult, error) {
	log := s.log.WithLayerID(layerID.String())
	result := &RetransformResult{}
	cursor := uuid.Nil

	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		pending, err := store.ListFeaturesNeedingHeight(ctx, layerID, cursor, retransformPageSize)
		if err != nil {
			return result, err
		}
		if len(pending) == 0 {
			break
		}
		cursor = pending[len(pending)-1].ID

		g := &errgroup.Group{}
		g.SetLimit(s.concurrency)
		for i := range pending {
			f := &pending[i]
			g.Go(func() error {
				s.retransformOne(ctx, f)
				return nil
			})
		}
		_ = g.Wait()

		for i := range pending {
			f := &pending[i]
			result.Processed++
			if f.HeightStatus == domain.HeightStatusComplete {
				result.Succeeded++
			} else {
				result.Failed++
			}
			if err := store.UpdateFeatureHeight(ctx, f); err != nil {
				log.DatabaseError("update feature height", err)
			}
		}
	}

	remaining, err := store.CountFeaturesNeedingHeight(ctx, layerID)
	if err != nil {
		return result, err
	}
	result.Remaining = remaining

	log.Info("height re-transformation finished",
		"processed", result.Processed,
		"succeeded", result.Succeeded,
		"failed", result.Failed,
		"remaining", result.Remaining,
	)
	return result, nil
}

// retransformOne mutates the height fields of a single feature in place.
func (s *Service) retransformOne(ctx context.Context, f *domain.StoredFeature) {
	point, height, srid, ok := retrySource(f)
	if !ok {
		msg := "no source height preserved for re-transformation"
		f.HeightError = &msg
		f.HeightStatus = domain.HeightStatusFailed
		f.HeightMode = domain.HeightModeUnknown
		return
	}

	result, err := s.transformer.ToEllipsoidal(ctx, point, height, srid)
	if err != nil {
		msg := err.Error()
		f.HeightError = &msg
		f.HeightStatus = domain.HeightStatusFailed
		f.HeightMode = domain.HeightModeUnknown
		f.BaseElevation = nil
		return
	}

	h := result.Ellipsoidal
	f.BaseElevation = &h
	f.HeightMode = domain.HeightModeAbsoluteEllipsoidal
	f.HeightStatus = domain.HeightStatusComplete
	datum := result.DatumSource
	f.VerticalDatumSource = &datum
	f.HeightError = nil
}

// retrySource recovers the original transformation inputs: the preserved
// source coordinates and height if the import stored them, or the feature's
// own footprint and base elevation for heights stored in the local frame.
func retrySource(f *domain.StoredFeature) (orb.Point, float64, int, bool) {
	srid, okSRID := attrInt(f.Attributes[domain.AttrSourceSRID])
	easting, okE := attrFloat(f.Attributes[domain.AttrSourceEasting])
	northing, okN := attrFloat(f.Attributes[domain.AttrSourceNorthing])
	height, okH := attrFloat(f.Attributes[domain.AttrSourceHeight])
	if okSRID && okE && okN && okH {
		return orb.Point{easting, northing}, height, srid, true
	}

	if f.HeightMode == domain.HeightModeLV95Stored && f.BaseElevation != nil {
		return representativePoint(f.Geometry), *f.BaseElevation, crs.SRIDLV95, true
	}

	return orb.Point{}, 0, 0, false
}

// Attribute maps round-trip through jsonb, so numbers come back as float64
// or json.Number depending on the decoder.
func attrFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func attrInt(v any) (int, bool) {
	f, ok := attrFloat(v)
	if !ok {
		return 0, false
	}
	return int(f), true
}
