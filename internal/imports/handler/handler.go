package handler

import (
	"errors"
	"fmt"
	"net/http"

	"geoimport_backend/internal/imports/repository"
	"geoimport_backend/internal/imports/service"
	"geoimport_backend/internal/imports/transport"
	"geoimport_backend/internal/scheduler"
	"geoimport_backend/platform/httpkit"
	"geoimport_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request body"
	msgValidationFailed = "validation failed"
)

// Handler exposes the import pipeline over HTTP.
type Handler struct {
	svc         *service.Service
	repo        *repository.Repository
	sched       scheduler.RetransformScheduler
	val         *validator.Validator
	maxFeatures int
}

func New(svc *service.Service, repo *repository.Repository, sched scheduler.RetransformScheduler, val *validator.Validator, maxFeatures int) *Handler {
	return &Handler{
		svc:         svc,
		repo:        repo,
		sched:       sched,
		val:         val,
		maxFeatures: maxFeatures,
	}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	layers := rg.Group("/layers")
	layers.POST("/import", h.Import)
	layers.GET("/:layerId/features", h.ListFeatures)

	jobs := rg.Group("/import-jobs")
	jobs.GET("/:jobId", h.GetJob)
	jobs.POST("/:jobId/retransform", h.Retransform)
}

// Import handles POST /api/v1/layers/import.
func (h *Handler) Import(c *gin.Context) {
	var req transport.ImportLayerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}
	if h.maxFeatures > 0 && len(req.Features) > h.maxFeatures {
		httpkit.Error(c, http.StatusBadRequest,
			fmt.Sprintf("payload exceeds the limit of %d features", h.maxFeatures), nil)
		return
	}

	result, err := h.svc.Import(c.Request.Context(), service.ImportRequest{
		TargetLayerName:       req.LayerName,
		Features:              transport.ToRawFeatures(req.Features),
		SourceSRID:            req.SourceSRID,
		TargetSRID:            req.TargetSRID,
		BatchSize:             req.BatchSize,
		HeightAttribute:       req.HeightAttribute,
		ObjectHeightAttribute: req.ObjectHeightAttribute,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	job, err := h.repo.GetJob(c.Request.Context(), result.JobID)
	if err != nil {
		httpkit.Error(c, http.StatusInternalServerError, "failed to load import job", nil)
		return
	}

	httpkit.JSON(c, http.StatusCreated, transport.JobResponseFrom(job))
}

// GetJob handles GET /api/v1/import-jobs/:jobId.
func (h *Handler) GetJob(c *gin.Context) {
	id, err := uuid.Parse(c.Param("jobId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid job id", nil)
		return
	}

	job, err := h.repo.GetJob(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			httpkit.Error(c, http.StatusNotFound, "import job not found", nil)
			return
		}
		httpkit.Error(c, http.StatusInternalServerError, "failed to load import job", nil)
		return
	}

	httpkit.OK(c, transport.JobResponseFrom(job))
}

// ListFeatures handles GET /api/v1/layers/:layerId/features.
func (h *Handler) ListFeatures(c *gin.Context) {
	layerID, err := uuid.Parse(c.Param("layerId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid layer id", nil)
		return
	}

	features, err := h.repo.ListFeaturesByLayer(c.Request.Context(), layerID)
	if err != nil {
		httpkit.Error(c, http.StatusInternalServerError, "failed to list features", nil)
		return
	}

	out := make([]transport.FeatureResponse, 0, len(features))
	for i := range features {
		out = append(out, transport.FeatureResponseFrom(&features[i]))
	}
	httpkit.OK(c, out)
}

// Retransform handles POST /api/v1/import-jobs/:jobId/retransform. With a
// scheduler configured the run happens out of band on the worker; without
// one it runs inline and the response carries the per-feature outcome.
func (h *Handler) Retransform(c *gin.Context) {
	id, err := uuid.Parse(c.Param("jobId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid job id", nil)
		return
	}

	job, err := h.repo.GetJob(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			httpkit.Error(c, http.StatusNotFound, "import job not found", nil)
			return
		}
		httpkit.Error(c, http.StatusInternalServerError, "failed to load import job", nil)
		return
	}
	if job.LayerID == nil {
		httpkit.Error(c, http.StatusConflict, "import job has no output layer", nil)
		return
	}
	layerID := *job.LayerID

	if h.sched != nil {
		err := h.sched.EnqueueHeightRetransform(c.Request.Context(), scheduler.HeightRetransformPayload{
			LayerID: layerID.String(),
			JobID:   job.ID.String(),
		})
		if err != nil {
			httpkit.Error(c, http.StatusInternalServerError, "failed to enqueue height re-transformation", nil)
			return
		}
		httpkit.JSON(c, http.StatusAccepted, transport.RetransformResponse{LayerID: layerID, Enqueued: true})
		return
	}

	result, err := h.svc.RetransformLayerHeights(c.Request.Context(), h.repo, layerID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.RetransformResponse{
		LayerID:   layerID,
		Processed: result.Processed,
		Succeeded: result.Succeeded,
		Failed:    result.Failed,
		Remaining: result.Remaining,
	})
}
