package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dpnam2112/codemate-backend/internal/http/response"
	apperr "github.com/dpnam2112/codemate-backend/internal/pkg/errors"
)

type ProficiencyWriter interface {
	UpsertLearnerProficiency(ctx context.Context, learnerID string, values map[string]float64) error
}

type LearnerHandler struct {
	store ProficiencyWriter
}

func NewLearnerHandler(store ProficiencyWriter) *LearnerHandler {
	return &LearnerHandler{store: store}
}

type proficiencyRequest struct {
	Proficiency map[string]float64 `json:"proficiency"`
}

// PUT /api/learners/:id/proficiency
func (h *LearnerHandler) PutProficiency(c *gin.Context) {
	learnerID := strings.TrimSpace(c.Param("id"))
	var req proficiencyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if err := validateProficiency(learnerID, req.Proficiency); err != nil {
		response.RespondServiceError(c, err)
		return
	}
	if err := h.store.UpsertLearnerProficiency(c.Request.Context(), learnerID, req.Proficiency); err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"learner_id": learnerID, "updated": len(req.Proficiency)})
}

func validateProficiency(learnerID string, values map[string]float64) error {
	if learnerID == "" {
		return fmt.Errorf("%w: learner id is required", apperr.ErrInvalidArgument)
	}
	if len(values) == 0 {
		return fmt.Errorf("%w: proficiency is empty", apperr.ErrInvalidArgument)
	}
	for name, p := range values {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("%w: empty concept name", apperr.ErrInvalidArgument)
		}
		if p < 0 || p > 1 {
			return fmt.Errorf("%w: proficiency for %q must be in [0,1], got %v", apperr.ErrInvalidArgument, name, p)
		}
	}
	return nil
}
