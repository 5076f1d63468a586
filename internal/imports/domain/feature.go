// Package domain holds the core types of the feature import pipeline.
package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
)

// HeightMode describes how a stored base elevation is to be interpreted.
type HeightMode string

const (
	HeightModeAbsoluteEllipsoidal HeightMode = "absolute_ellipsoidal"
	HeightModeClampToGround       HeightMode = "clamp_to_ground"
	HeightModeRelativeToGround    HeightMode = "relative_to_ground"
	HeightModeLV95Stored          HeightMode = "lv95_stored"
	HeightModeUnknown             HeightMode = "unknown"
)

// HeightStatus tracks the vertical datum transformation of one feature.
type HeightStatus string

const (
	HeightStatusPending     HeightStatus = "pending"
	HeightStatusProcessing  HeightStatus = "processing"
	HeightStatusComplete    HeightStatus = "complete"
	HeightStatusFailed      HeightStatus = "failed"
	HeightStatusNotRequired HeightStatus = "not_required"
)

// RawFeature is the immutable input unit supplied by the caller: decoded
// geometry, the raw GeoJSON coordinates (which may carry Z values the 2D
// geometry model drops), and the attribute map.
type RawFeature struct {
	Geometry     orb.Geometry
	GeometryType string
	Coordinates  json.RawMessage
	Properties   map[string]any

	// ParseError records why the geometry could not be decoded; such
	// features are skipped rather than failed.
	ParseError string
}

// StoredFeature is the persisted output: a footprint in the canonical
// horizontal frame plus resolved height fields and provenance. Geometry is
// immutable after creation; only the height fields may be rewritten by the
// out-of-band re-transformation pass.
type StoredFeature struct {
	ID           uuid.UUID
	LayerID      uuid.UUID
	Geometry     orb.Geometry
	GeometryType string

	BaseElevation       *float64
	ObjectHeight        *float64
	HeightMode          HeightMode
	HeightSource        *string
	VerticalDatumSource *string
	HeightStatus        HeightStatus
	HeightError         *string

	Attributes map[string]any

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Attribute keys under which the pipeline preserves source coordinates when
// the footprint is reprojected away from its original frame.
const (
	AttrSourceSRID     = "_source_srid"
	AttrSourceEasting  = "_source_easting"
	AttrSourceNorthing = "_source_northing"
	AttrSourceHeight   = "_source_height"
)
