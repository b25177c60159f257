package recommend

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/dpnam2112/codemate-backend/internal/data/graph"
	"github.com/dpnam2112/codemate-backend/internal/domain/learning"
	"github.com/dpnam2112/codemate-backend/internal/modules/learning/embedding"
	"github.com/dpnam2112/codemate-backend/internal/modules/learning/embedding/embeddingtest"
	"github.com/dpnam2112/codemate-backend/internal/modules/learning/retrieval"
	"github.com/dpnam2112/codemate-backend/internal/modules/recommend/agent"
	"github.com/dpnam2112/codemate-backend/internal/modules/recommend/agent/agenttest"
	apperr "github.com/dpnam2112/codemate-backend/internal/pkg/errors"
)

type fixture struct {
	store    *graph.MemoryStore
	embedder *embedding.Client
	ret      *retrieval.Retriever
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	store := graph.NewMemoryStore()
	vectors := map[string][]float32{
		"Linked List":                   {1, 0, 0},
		"Recursion":                     {0, 1, 0},
		"Implement a linked list":       {0.9, 0.1, 0},
		"I want to master linked lists": {0.95, 0.05, 0},
	}
	for _, g := range []learning.ResourceGraph{
		{
			Resource: learning.Resource{ID: "r-easy", Code: "DSA-01", Title: "Lists 101"},
			Concepts: []learning.WeightedConcept{{Concept: learning.Concept{Name: "Linked List", Embedding: vectors["Linked List"]}, Difficulty: 0.2, Relevance: 1}},
			Outcomes: []learning.LearningOutcome{{Name: "Implement a linked list", Embedding: vectors["Implement a linked list"]}},
		},
		{
			Resource: learning.Resource{ID: "r-hard", Code: "DSA-09", Title: "Lock-free lists"},
			Concepts: []learning.WeightedConcept{{Concept: learning.Concept{Name: "Linked List", Embedding: vectors["Linked List"]}, Difficulty: 0.95, Relevance: 1}},
		},
	} {
		if err := store.ApplyResource(ctx, g); err != nil {
			t.Fatalf("ApplyResource: %v", err)
		}
	}
	if err := store.UpsertLearnerProficiency(ctx, "learner-1", map[string]float64{"Linked List": 0.1}); err != nil {
		t.Fatal(err)
	}
	if err := store.UpsertLearnerProficiency(ctx, "intruder", map[string]float64{"Linked List": 0.9}); err != nil {
		t.Fatal(err)
	}
	emb := embedding.New(&embeddingtest.Static{Vectors: vectors}, nil, embedding.Config{})
	return fixture{store: store, embedder: emb, ret: retrieval.New(emb, store, nil, retrieval.Config{SimilarityThreshold: 0.9, TopN: 10})}
}

var request = Request{CourseID: "course-1", UserID: "learner-1", Goal: "I want to master linked lists"}

func TestRecommendHappyPath(t *testing.T) {
	f := newFixture(t)
	var seen profileAndResourcesResult
	script := &agenttest.Script{Steps: []agenttest.Step{
		agenttest.Call(ToolProfileAndResources, map[string]any{"concepts": []string{"Linked List"}, "learner_id": "intruder"}),
		func(req agent.ModelRequest) (agent.Message, error) {
			raw, _ := agenttest.LastToolResult(req)
			if err := json.Unmarshal([]byte(raw), &seen); err != nil {
				return agent.Message{}, err
			}
			top := seen.TopResources[0]
			return agenttest.Call(ToolRecommenderResponse, learning.RecommendationResult{
				Recommendations: []learning.RecommendedResource{{
					ResourceID:       top.ResourceID,
					ResourceCode:     top.ResourceCode,
					ShortDescription: top.Title,
					Explanation:      "Matches your current level on linked lists.",
				}},
			})(req)
		},
	}}

	rec := NewRecommender(script, f.ret, agent.Config{MaxTurns: 10, MaxToolCalls: 1}, agent.Deps{})
	got, err := rec.Recommend(context.Background(), request)
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if seen.LearnerProfile["Linked List"] != 0.1 {
		t.Fatalf("tool used the wrong learner: %v", seen.LearnerProfile)
	}
	if len(got.Recommendations) != 1 || got.Recommendations[0].ResourceID != "r-easy" {
		t.Fatalf("got %+v", got)
	}
	if script.Calls() != 2 {
		t.Fatalf("model calls = %d, want 2", script.Calls())
	}
	first := script.Requests()[0]
	if first.Messages[0].Role != agent.RoleSystem || !strings.Contains(first.Messages[1].Content, request.Goal) {
		t.Fatalf("initial messages = %+v", first.Messages[:2])
	}
	names := map[agent.ToolName]bool{}
	for _, spec := range first.Tools {
		names[spec.Name] = true
	}
	if len(names) != 2 || !names[ToolProfileAndResources] || !names[ToolRecommenderResponse] {
		t.Fatalf("tools = %v", names)
	}
}

func TestRecommendNoActionableOutput(t *testing.T) {
	f := newFixture(t)
	script := &agenttest.Script{Steps: []agenttest.Step{agenttest.Text("Study harder.")}}
	_, err := NewRecommender(script, f.ret, agent.Config{}, agent.Deps{}).Recommend(context.Background(), request)
	if !errors.Is(err, apperr.ErrNoActionableOutput) {
		t.Fatalf("err = %v, want ErrNoActionableOutput", err)
	}
}

func TestRecommendRejectsInvalidRequest(t *testing.T) {
	f := newFixture(t)
	script := &agenttest.Script{Steps: []agenttest.Step{agenttest.Text("x")}}
	_, err := NewRecommender(script, f.ret, agent.Config{}, agent.Deps{}).Recommend(context.Background(), Request{CourseID: "c"})
	if !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Fatalf("err = %v", err)
	}
	if script.Calls() != 0 {
		t.Fatalf("model called for invalid request")
	}
}

func TestRecommendEmptyMatchStillResponds(t *testing.T) {
	f := newFixture(t)
	var note string
	script := &agenttest.Script{Steps: []agenttest.Step{
		agenttest.Call(ToolProfileAndResources, conceptsArgs{Concepts: []string{"Quantum Chromodynamics"}}),
		func(req agent.ModelRequest) (agent.Message, error) {
			note, _ = agenttest.LastToolResult(req)
			return agenttest.RawCall(ToolRecommenderResponse, `{"recommendations":[]}`)(req)
		},
	}}
	emb := embedding.New(&embeddingtest.Static{Default: []float32{0, 0, 1}}, nil, embedding.Config{})
	ret := retrieval.New(emb, f.store, nil, retrieval.Config{})

	got, err := NewRecommender(script, ret, agent.Config{}, agent.Deps{}).Recommend(context.Background(), request)
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if len(got.Recommendations) != 0 {
		t.Fatalf("got %+v", got)
	}
	if !strings.Contains(note, "no stored concepts matched") {
		t.Fatalf("tool result = %q", note)
	}
}

func TestPlanCallsBothToolsThenResponds(t *testing.T) {
	f := newFixture(t)
	var related relatedLessonsResult
	script := &agenttest.Script{Steps: []agenttest.Step{
		agenttest.CallMany(
			agenttest.Pair{Name: ToolRelatedLessons, Args: relatedLessonsArgs{Goal: request.Goal, Concepts: []string{"Linked List"}}},
			agenttest.Pair{Name: ToolLearnerProfile, Args: conceptsArgs{Concepts: []string{"Linked List"}}},
		),
		func(req agent.ModelRequest) (agent.Message, error) {
			for _, m := range req.Messages {
				if m.Role == agent.RoleTool && m.ToolName == ToolRelatedLessons {
					_ = json.Unmarshal([]byte(m.Content), &related)
				}
			}
			return agenttest.Call(ToolPlanningResponse, learning.LearningPlan{
				Summary: "Start with list basics.",
				Modules: []learning.PlanModule{{
					Title:            "Lists",
					Objectives:       []string{"Build a singly linked list"},
					EstimatedMinutes: 45,
					Lessons:          []learning.PlanLesson{{ResourceID: "r-easy", Title: "Lists 101"}},
				}},
			})(req)
		},
	}}

	planner := NewPlanner(script, f.ret, f.embedder, f.store, PlannerConfig{
		Agent:            agent.Config{MaxTurns: 10, MaxToolCalls: 1},
		RelatedThreshold: 0.5,
		RelatedLimit:     5,
	}, agent.Deps{})
	plan, err := planner.Plan(context.Background(), request)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(plan.Modules) != 1 || plan.Modules[0].EstimatedMinutes != 45 {
		t.Fatalf("plan = %+v", plan)
	}
	if len(related.GoalMatches) != 1 || related.GoalMatches[0].ID != "r-easy" {
		t.Fatalf("goal matches = %+v", related.GoalMatches)
	}
	if len(related.RankedLessons) != 2 || related.RankedLessons[0].ResourceID != "r-easy" {
		t.Fatalf("ranked = %+v", related.RankedLessons)
	}
	if got := script.Requests()[1].ToolChoice; got != string(ToolPlanningResponse) {
		t.Fatalf("second turn tool choice = %q, want forced final", got)
	}
}

func TestPlanRejectsEmptyModules(t *testing.T) {
	f := newFixture(t)
	script := &agenttest.Script{Steps: []agenttest.Step{
		agenttest.RawCall(ToolPlanningResponse, `{"summary":"x","modules":[]}`),
	}}
	planner := NewPlanner(script, f.ret, f.embedder, f.store, PlannerConfig{}, agent.Deps{})
	if _, err := planner.Plan(context.Background(), request); !errors.Is(err, apperr.ErrRecommendationGeneration) {
		t.Fatalf("err = %v, want ErrRecommendationGeneration", err)
	}
}

func TestRenderPromptSubstitutesRequest(t *testing.T) {
	system, user, err := renderPrompt(promptPlanning, request)
	if err != nil {
		t.Fatalf("renderPrompt: %v", err)
	}
	if !strings.Contains(system, string(ToolPlanningResponse)) {
		t.Fatalf("system prompt does not mention the final tool")
	}
	if !strings.Contains(user, "course-1") || !strings.Contains(user, request.Goal) {
		t.Fatalf("user prompt = %q", user)
	}
}
