package recommend

import (
	"context"
	"strings"

	"github.com/dpnam2112/codemate-backend/internal/domain/learning"
	"github.com/dpnam2112/codemate-backend/internal/modules/learning/retrieval"
	"github.com/dpnam2112/codemate-backend/internal/modules/recommend/agent"
)

const (
	ToolProfileAndResources agent.ToolName = "get_learner_profile_and_resources"
	ToolRecommenderResponse agent.ToolName = "lp_recommender_response"

	ToolLearnerProfile   agent.ToolName = "get_learner_profile"
	ToolRelatedLessons   agent.ToolName = "get_related_lessons"
	ToolPlanningResponse agent.ToolName = "lp_planning_response"
)

type conceptsArgs struct {
	Concepts []string `json:"concepts" jsonschema:"description=Programming concepts the learner goal depends on"`
}

type relatedLessonsArgs struct {
	Goal     string   `json:"goal" jsonschema:"description=The learner goal in their own words"`
	Concepts []string `json:"concepts" jsonschema:"description=Programming concepts the goal depends on"`
}

type profileAndResourcesResult struct {
	LearnerProfile map[string]float64        `json:"learner_profile"`
	TopResources   []learning.ScoredResource `json:"top_resources"`
	Note           string                    `json:"note,omitempty"`
}

type learnerProfileResult struct {
	LearnerProfile map[string]float64 `json:"learner_profile"`
	Note           string             `json:"note,omitempty"`
}

type relatedLessonsResult struct {
	GoalMatches   []learning.Resource       `json:"goal_matches"`
	RankedLessons []learning.ScoredResource `json:"ranked_lessons"`
}

type Retriever interface {
	Retrieve(ctx context.Context, learnerID string, concepts []string, opts retrieval.Options) (learning.ProfileResources, error)
}

const emptyMatchNote = "no stored concepts matched; try broader or more canonical concept names, or respond with an empty result"

// profileAndResourcesTool binds learnerID so the model can never query
// another learner.
func profileAndResourcesTool(r Retriever, learnerID string) (agent.Tool, error) {
	return agent.NewTool(ToolProfileAndResources,
		"Return the learner's proficiency on the matched concepts and the best fitting resources for them.",
		func(ctx context.Context, in conceptsArgs) (any, error) {
			res, err := r.Retrieve(ctx, learnerID, in.Concepts, retrieval.Options{})
			if err != nil {
				return nil, err
			}
			out := profileAndResourcesResult{LearnerProfile: res.ProficiencyMap(), TopResources: res.Resources}
			if res.Empty() {
				out.Note = emptyMatchNote
			}
			return out, nil
		})
}

func learnerProfileTool(r Retriever, learnerID string) (agent.Tool, error) {
	return agent.NewTool(ToolLearnerProfile,
		"Return the learner's proficiency (0 to 1) on the stored concepts matching the given concepts.",
		func(ctx context.Context, in conceptsArgs) (any, error) {
			res, err := r.Retrieve(ctx, learnerID, in.Concepts, retrieval.Options{})
			if err != nil {
				return nil, err
			}
			out := learnerProfileResult{LearnerProfile: res.ProficiencyMap()}
			if res.Empty() {
				out.Note = emptyMatchNote
			}
			return out, nil
		})
}

type GoalEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type LessonFinder interface {
	RelatedResources(ctx context.Context, embedding []float32, threshold float64, limit int) ([]learning.Resource, error)
}

func relatedLessonsTool(emb GoalEmbedder, finder LessonFinder, r Retriever, learnerID string, threshold float64, limit int) (agent.Tool, error) {
	return agent.NewTool(ToolRelatedLessons,
		"Return lessons whose learning outcomes match the goal, and lessons ranked by difficulty fit for the given concepts.",
		func(ctx context.Context, in relatedLessonsArgs) (any, error) {
			out := relatedLessonsResult{GoalMatches: []learning.Resource{}, RankedLessons: []learning.ScoredResource{}}
			if goal := strings.TrimSpace(in.Goal); goal != "" {
				vec, err := emb.Embed(ctx, goal)
				if err != nil {
					return nil, err
				}
				matches, err := finder.RelatedResources(ctx, vec, threshold, limit)
				if err != nil {
					return nil, err
				}
				out.GoalMatches = matches
			}
			if len(in.Concepts) > 0 {
				res, err := r.Retrieve(ctx, learnerID, in.Concepts, retrieval.Options{TopN: limit})
				if err != nil {
					return nil, err
				}
				out.RankedLessons = res.Resources
			}
			return out, nil
		})
}
