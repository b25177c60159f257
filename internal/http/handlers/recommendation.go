package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/dpnam2112/codemate-backend/internal/domain/learning"
	"github.com/dpnam2112/codemate-backend/internal/http/response"
	"github.com/dpnam2112/codemate-backend/internal/modules/recommend"
	"github.com/dpnam2112/codemate-backend/internal/modules/recommend/agent"
)

type Recommender interface {
	Recommend(ctx context.Context, req recommend.Request) (learning.RecommendationResult, error)
}

type Planner interface {
	Plan(ctx context.Context, req recommend.Request) (learning.LearningPlan, error)
}

type RecommendationHandler struct {
	recommender Recommender
	planner     Planner
}

func NewRecommendationHandler(recommender Recommender, planner Planner) *RecommendationHandler {
	return &RecommendationHandler{recommender: recommender, planner: planner}
}

// POST /api/recommendations
func (h *RecommendationHandler) Recommend(c *gin.Context) {
	var req recommend.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	result, err := h.recommender.Recommend(withRunID(c), req)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, result)
}

// POST /api/learning-plans
func (h *RecommendationHandler) PlanPath(c *gin.Context) {
	if h.planner == nil {
		response.RespondError(c, http.StatusNotImplemented, "planning_disabled", errors.New("planning is not configured"))
		return
	}
	var req recommend.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	plan, err := h.planner.Plan(withRunID(c), req)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"plan": plan})
}

const headerAgentRunID = "X-Agent-Run-Id"

// withRunID assigns the agent run id up front so callers can fetch the
// transcript even when the run fails.
func withRunID(c *gin.Context) context.Context {
	id := uuid.NewString()
	c.Header(headerAgentRunID, id)
	return agent.WithRunID(c.Request.Context(), id)
}
