package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dpnam2112/codemate-backend/internal/domain/learning"
	"github.com/dpnam2112/codemate-backend/internal/http/response"
	"github.com/dpnam2112/codemate-backend/internal/modules/learning/ingestion"
	"github.com/dpnam2112/codemate-backend/internal/temporalx/ingestrun"
)

type ContentPipeline interface {
	Ingest(ctx context.Context, resourceID string, ex learning.ResourceExtraction) error
	IngestContent(ctx context.Context, resourceID string, raw ingestion.RawResource) (learning.ResourceExtraction, error)
}

// WorkflowStarter submits ingestion to a durable worker. Optional.
type WorkflowStarter interface {
	Start(ctx context.Context, in ingestrun.Input) (workflowID string, runID string, err error)
}

type ResourceHandler struct {
	pipeline ContentPipeline
	starter  WorkflowStarter
}

func NewResourceHandler(pipeline ContentPipeline, starter WorkflowStarter) *ResourceHandler {
	return &ResourceHandler{pipeline: pipeline, starter: starter}
}

// POST /api/learning-resources/:id
func (h *ResourceHandler) Ingest(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	var ex learning.ResourceExtraction
	if err := c.ShouldBindJSON(&ex); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if h.async(c) {
		h.startWorkflow(c, ingestrun.Input{ResourceID: id, Extraction: &ex})
		return
	}
	if err := h.pipeline.Ingest(c.Request.Context(), id, ex); err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{
		"resource_id": id,
		"concepts":    len(ex.Concepts),
		"outcomes":    len(ex.LearningOutcomes),
	})
}

// POST /api/learning-resources/:id/extract
func (h *ResourceHandler) Extract(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	var raw ingestion.RawResource
	if err := c.ShouldBindJSON(&raw); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if h.async(c) {
		h.startWorkflow(c, ingestrun.Input{ResourceID: id, Raw: &raw})
		return
	}
	ex, err := h.pipeline.IngestContent(c.Request.Context(), id, raw)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"resource_id": id, "extraction": ex})
}

func (h *ResourceHandler) async(c *gin.Context) bool {
	if h.starter == nil {
		return false
	}
	v, _ := strconv.ParseBool(c.Query("async"))
	return v
}

func (h *ResourceHandler) startWorkflow(c *gin.Context, in ingestrun.Input) {
	if in.ResourceID == "" {
		response.RespondError(c, http.StatusBadRequest, "invalid_resource_id", nil)
		return
	}
	wfID, runID, err := h.starter.Start(c.Request.Context(), in)
	if err != nil {
		response.RespondError(c, http.StatusServiceUnavailable, "workflow_start_failed", err)
		return
	}
	response.RespondAccepted(c, gin.H{"resource_id": in.ResourceID, "workflow_id": wfID, "run_id": runID})
}
