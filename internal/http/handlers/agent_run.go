package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dpnam2112/codemate-backend/internal/http/response"
	"github.com/dpnam2112/codemate-backend/internal/modules/recommend/agent"
)

type TranscriptReader interface {
	Get(ctx context.Context, runID string) (agent.Transcript, error)
	Recent(ctx context.Context, loop string, limit int64) ([]string, error)
}

const maxRecentRuns = 100

type AgentRunHandler struct {
	transcripts TranscriptReader
}

func NewAgentRunHandler(transcripts TranscriptReader) *AgentRunHandler {
	return &AgentRunHandler{transcripts: transcripts}
}

// GET /api/agent-runs/:id
func (h *AgentRunHandler) GetRun(c *gin.Context) {
	t, err := h.transcripts.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, agent.ErrTranscriptNotFound) {
		response.RespondError(c, http.StatusNotFound, "run_not_found", err)
		return
	}
	if err != nil {
		response.RespondError(c, http.StatusServiceUnavailable, "transcript_store", err)
		return
	}
	response.RespondOK(c, gin.H{"run": t})
}

// GET /api/agent-runs?loop=recommendation&limit=20
func (h *AgentRunHandler) ListRuns(c *gin.Context) {
	loop := strings.TrimSpace(c.Query("loop"))
	if loop == "" {
		response.RespondError(c, http.StatusBadRequest, "invalid_argument", errors.New("loop is required"))
		return
	}
	limit := int64(20)
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n <= 0 {
			response.RespondError(c, http.StatusBadRequest, "invalid_argument", errors.New("limit must be a positive integer"))
			return
		}
		limit = min(n, maxRecentRuns)
	}
	ids, err := h.transcripts.Recent(c.Request.Context(), loop, limit)
	if err != nil {
		response.RespondError(c, http.StatusServiceUnavailable, "transcript_store", err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	response.RespondOK(c, gin.H{"loop": loop, "run_ids": ids})
}
