package recommend

import (
	"context"
	"fmt"

	"github.com/dpnam2112/codemate-backend/internal/domain/learning"
	"github.com/dpnam2112/codemate-backend/internal/modules/recommend/agent"
	apperr "github.com/dpnam2112/codemate-backend/internal/pkg/errors"
	"github.com/dpnam2112/codemate-backend/internal/platform/envutil"
	"github.com/dpnam2112/codemate-backend/internal/platform/validation"
)

type PlannerConfig struct {
	Agent            agent.Config
	RelatedThreshold float64
	RelatedLimit     int
}

func LoadPlannerConfig() PlannerConfig {
	return PlannerConfig{
		Agent:            agent.LoadConfig(),
		RelatedThreshold: envutil.Float("RECOMMEND_RELATED_THRESHOLD", 0.5),
		RelatedLimit:     envutil.PositiveInt("RECOMMEND_RELATED_LIMIT", 10),
	}
}

// Planner builds a module-by-module study plan toward a learner goal.
type Planner struct {
	model     agent.ChatModel
	retriever Retriever
	embedder  GoalEmbedder
	finder    LessonFinder
	cfg       PlannerConfig
	deps      agent.Deps
}

func NewPlanner(model agent.ChatModel, retriever Retriever, embedder GoalEmbedder, finder LessonFinder, cfg PlannerConfig, deps agent.Deps) *Planner {
	if cfg.RelatedLimit <= 0 {
		cfg.RelatedLimit = 10
	}
	return &Planner{model: model, retriever: retriever, embedder: embedder, finder: finder, cfg: cfg, deps: deps}
}

func (p *Planner) Plan(ctx context.Context, req Request) (learning.LearningPlan, error) {
	var zero learning.LearningPlan
	if err := validation.Struct(req); err != nil {
		return zero, fmt.Errorf("%w: %w", apperr.ErrInvalidArgument, err)
	}
	system, user, err := renderPrompt(promptPlanning, req)
	if err != nil {
		return zero, err
	}

	profile, err := learnerProfileTool(p.retriever, req.UserID)
	if err != nil {
		return zero, err
	}
	related, err := relatedLessonsTool(p.embedder, p.finder, p.retriever, req.UserID, p.cfg.RelatedThreshold, p.cfg.RelatedLimit)
	if err != nil {
		return zero, err
	}
	loop, err := agent.NewLoop[learning.LearningPlan](p.model, agent.Spec{
		Name:             "planning",
		Tools:            []agent.Tool{profile, related},
		Final:            ToolPlanningResponse,
		FinalDescription: "Submit the learning plan. This ends the conversation.",
		Required:         []agent.ToolName{ToolLearnerProfile, ToolRelatedLessons},
	}, p.cfg.Agent, p.deps)
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
