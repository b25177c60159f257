package recommend

import (
	"context"
	"fmt"

	"github.com/dpnam2112/codemate-backend/internal/domain/learning"
	"github.com/dpnam2112/codemate-backend/internal/modules/recommend/agent"
	apperr "github.com/dpnam2112/codemate-backend/internal/pkg/errors"
	"github.com/dpnam2112/codemate-backend/internal/platform/validation"
)

// Request is the human turn of both loops.
type Request struct {
	CourseID string `json:"course_id" validate:"required"`
	UserID   string `json:"user_id" validate:"required"`
	Goal     string `json:"goal_text" validate:"required"`
}

// Recommender picks and explains learning resources for a learner goal.
type Recommender struct {
	model     agent.ChatModel
	retriever Retriever
	cfg       agent.Config
	deps      agent.Deps
}

func NewRecommender(model agent.ChatModel, retriever Retriever, cfg agent.Config, deps agent.Deps) *Recommender {
	return &Recommender{model: model, retriever: retriever, cfg: cfg, deps: deps}
}

func (r *Recommender) Recommend(ctx context.Context, req Request) (learning.RecommendationResult, error) {
	var zero learning.RecommendationResult
	if err := validation.Struct(req); err != nil {
		return zero, fmt.Errorf("%w: %w", apperr.ErrInvalidArgument, err)
	}
	system, user, err := renderPrompt(promptRecommendation, req)
	if err != nil {
		return zero, err
	}

	tool, err := profileAndResourcesTool(r.retriever, req.UserID)
	if err != nil {
		return zero, err
	}
	loop, err := agent.NewLoop[learning.RecommendationResult](r.model, agent.Spec{
		Name:             "recommendation",
		Tools:            []agent.Tool{tool},
		Final:            ToolRecommenderResponse,
		FinalDescription: "Submit the ordered recommendations. This ends the conversation.",
		Required:         []agent.ToolName{ToolProfileAndResources},
	}, r.cfg, r.deps)
	if err != nil {
		return zero, err
	}

	res, err := loop.Run(ctx, system, user)
	if err != nil {
		return zero, err
	}
	if res.Outcome != agent.OutcomeFinalResponse {
		return zero, fmt.Errorf("%w: run %s ended with %s after %d turns", apperr.ErrNoActionableOutput, res.RunID, res.Outcome, res.Turns)
	}
	return res.Final, nil
}
