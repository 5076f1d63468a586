package transport

import (
	"encoding/json"
	"time"

	"geoimport_backend/internal/imports/domain"

	"github.com/google/uuid"
	"github.com/paulmach/orb/geojson"
)

// Request DTOs

// GeoJSONFeature is one feature of an import payload. Geometry stays raw
// until decode so a malformed geometry poisons only its own feature.
type GeoJSONFeature struct {
	Type       string          `json:"type"`
	Geometry   json.RawMessage `json:"geometry"`
	Properties map[string]any  `json:"properties"`
}

type ImportLayerRequest struct {
	LayerName             string           `json:"layerName" validate:"required,min=1,max=200"`
	SourceSRID            int              `json:"sourceSrid" validate:"required,min=1"`
	TargetSRID            int              `json:"targetSrid" validate:"omitempty,min=1"`
	BatchSize             int              `json:"batchSize" validate:"omitempty,min=1"`
	HeightAttribute       string           `json:"heightAttribute" validate:"omitempty,max=100"`
	ObjectHeightAttribute string           `json:"objectHeightAttribute" validate:"omitempty,max=100"`
	Features              []GeoJSONFeature `json:"features" validate:"required,min=1"`
}

// ToRaw decodes the feature's geometry. A missing or null geometry yields a
// nil-geometry feature; a malformed one additionally carries the parse error.
func (f GeoJSONFeature) ToRaw() domain.RawFeature {
	raw := domain.RawFeature{Properties: f.Properties}

	if len(f.Geometry) == 0 || string(f.Geometry) == "null" {
		return raw
	}

	var envelope struct {
		Type        string          `json:"type"`
		Coordinates json.RawMessage `json:"coordinates"`
	}
	if err := json.Unmarshal(f.Geometry, &envelope); err != nil {
		raw.ParseError = err.Error()
		return raw
	}

	var g geojson.Geometry
	if err := json.Unmarshal(f.Geometry, &g); err != nil {
		raw.ParseError = err.Error()
		return raw
	}
	geom := g.Geometry()
	if geom == nil {
		raw.ParseError = "unsupported geometry type: " + envelope.Type
		return raw
	}

	raw.Geometry = geom
	raw.GeometryType = envelope.Type
	raw.Coordinates = envelope.Coordinates
	return raw
}

func ToRawFeatures(features []GeoJSONFeature) []domain.RawFeature {
	out := make([]domain.RawFeature, len(features))
	for i, f := range features {
		out[i] = f.ToRaw()
	}
	return out
}

// Response DTOs

type FeatureErrorResponse struct {
	Index   int    `json:"index"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

type ImportJobResponse struct {
	JobID         uuid.UUID              `json:"jobId"`
	LayerID       *uuid.UUID             `json:"layerId,omitempty"`
	Status        string                 `json:"status"`
	TotalFeatures int                    `json:"totalFeatures"`
	ImportedCount int                    `json:"importedCount"`
	FailedCount   int                    `json:"failedCount"`
	SkippedCount  int                    `json:"skippedCount"`
	Error         *string                `json:"error,omitempty"`
	Notices       []string               `json:"notices"`
	FeatureErrors []FeatureErrorResponse `json:"featureErrors"`
	CreatedAt     time.Time              `json:"createdAt"`
	UpdatedAt     time.Time              `json:"updatedAt"`
}

func JobResponseFrom(job *domain.ImportJob) ImportJobResponse {
	resp := ImportJobResponse{
		JobID:         job.ID,
		LayerID:       job.LayerID,
		Status:        string(job.Status),
		TotalFeatures: job.TotalFeatures,
		ImportedCount: job.ImportedCount,
		FailedCount:   job.FailedCount,
		SkippedCount:  job.SkippedCount,
		Error:         job.Error,
		Notices:       job.Notices,
		FeatureErrors: make([]FeatureErrorResponse, 0, len(job.FeatureErrors)),
		CreatedAt:     job.CreatedAt,
		UpdatedAt:     job.UpdatedAt,
	}
	if resp.Notices == nil {
		resp.Notices = []string{}
	}
	for _, fe := range job.FeatureErrors {
		resp.FeatureErrors = append(resp.FeatureErrors, FeatureErrorResponse{
			Index:   fe.Index,
			Message: fe.Message,
			Detail:  fe.Detail,
		})
	}
	return resp
}

type FeatureResponse struct {
	ID       uuid.UUID         `json:"id"`
	LayerID  uuid.UUID         `json:"layerId"`
	Geometry *geojson.Geometry `json:"geometry"`

	BaseElevation       *float64 `json:"baseElevation,omitempty"`
	ObjectHeight        *float64 `json:"objectHeight,omitempty"`
	HeightMode          string   `json:"heightMode"`
	HeightSource        *string  `json:"heightSource,omitempty"`
	VerticalDatumSource *string  `json:"verticalDatumSource,omitempty"`
	HeightStatus        string   `json:"heightStatus"`
	HeightError         *string  `json:"heightError,omitempty"`

	Attributes map[string]any `json:"attributes"`
	CreatedAt  time.Time      `json:"createdAt"`
}

func FeatureResponseFrom(f *domain.StoredFeature) FeatureResponse {
	resp := FeatureResponse{
		ID:                  f.ID,
		LayerID:             f.LayerID,
		BaseElevation:       f.BaseElevation,
		ObjectHeight:        f.ObjectHeight,
		HeightMode:          string(f.HeightMode),
		HeightSource:        f.HeightSource,
		VerticalDatumSource: f.VerticalDatumSource,
		HeightStatus:        string(f.HeightStatus),
		HeightError:         f.HeightError,
		Attributes:          f.Attributes,
		CreatedAt:           f.CreatedAt,
	}
	if f.Geometry != nil {
		resp.Geometry = geojson.NewGeometry(f.Geometry)
	}
	if resp.Attributes == nil {
		resp.Attributes = map[string]any{}
	}
	return resp
}

type RetransformResponse struct {
	LayerID   uuid.UUID `json:"layerId"`
	Enqueued  bool      `json:"enqueued"`
	Processed int       `json:"processed,omitempty"`
	Succeeded int       `json:"succeeded,omitempty"`
	Failed    int       `json:"failed,omitempty"`
	Remaining int       `json:"remaining,omitempty"`
}
