package graph

import (
	"context"
	"testing"

	"github.com/dpnam2112/codemate-backend/internal/domain/learning"
)

func sampleGraph(difficulty float64) learning.ResourceGraph {
	return learning.ResourceGraph{
		Resource: learning.Resource{ID: "r1", Code: "CS101-L1", Description: "Intro to lists"},
		Concepts: []learning.WeightedConcept{
			{Concept: learning.Concept{Name: "Linked List", Embedding: []float32{1, 0, 0}}, Difficulty: difficulty, Relevance: 0.8},
			{Concept: learning.Concept{Name: "Recursion", Embedding: []float32{0, 1, 0}}, Difficulty: 0.3, Relevance: 0.5},
		},
		Outcomes: []learning.LearningOutcome{
			{Name: "Implement a singly linked list", Embedding: []float32{0.9, 0.1, 0}},
		},
	}
}

func TestMemoryStoreApplyResourceIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if err := s.ApplyResource(ctx, sampleGraph(0.5)); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	c1, o1, r1, e1, h1 := s.Counts()
	if err := s.ApplyResource(ctx, sampleGraph(0.7)); err != nil {
		t.Fatalf("second apply: %v", err)
	}
	c2, o2, r2, e2, h2 := s.Counts()

	if c1 != c2 || o1 != o2 || r1 != r2 || e1 != e2 || h1 != h2 {
		t.Fatalf("counts changed: (%d,%d,%d,%d,%d) -> (%d,%d,%d,%d,%d)", c1, o1, r1, e1, h1, c2, o2, r2, e2, h2)
	}
	if c2 != 2 || e2 != 2 || h2 != 1 {
		t.Fatalf("unexpected counts concepts=%d relate=%d outcome=%d", c2, e2, h2)
	}
	d, _, ok := s.RelateWeights("r1", "Linked List")
	if !ok || d != 0.7 {
		t.Fatalf("difficulty = %v (ok=%v), want overwritten 0.7", d, ok)
	}
}

func TestMemoryStoreConceptEmbeddingIsWriteOnce(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	if err := s.ApplyResource(ctx, sampleGraph(0.5)); err != nil {
		t.Fatalf("apply: %v", err)
	}
	g := sampleGraph(0.5)
	g.Resource.ID = "r2"
	g.Concepts[0].Embedding = []float32{0, 0, 1}
	if err := s.ApplyResource(ctx, g); err != nil {
		t.Fatalf("apply r2: %v", err)
	}
	emb, _ := s.ConceptEmbedding("Linked List")
	if len(emb) != 3 || emb[0] != 1 || emb[2] != 0 {
		t.Fatalf("embedding overwritten: %v", emb)
	}
}

func TestMemoryStoreProficiencyDefaultsToZero(t *testing.T) {
	s := NewMemoryStore()
	got, err := s.LearnerProficiency(context.Background(), "learner-1", []string{"Recursion"})
	if err != nil {
		t.Fatalf("LearnerProficiency: %v", err)
	}
	v, ok := got["Recursion"]
	if !ok || v != 0 {
		t.Fatalf("got %v (present=%v), want 0 present", v, ok)
	}
}

func TestMemoryStoreFindMatchingConcepts(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	if err := s.ApplyResource(ctx, sampleGraph(0.5)); err != nil {
		t.Fatalf("apply: %v", err)
	}

	got, err := s.FindMatchingConcepts(ctx, [][]float32{{0.99, 0.05, 0}, {0.98, 0.02, 0}}, 0.9)
	if err != nil {
		t.Fatalf("FindMatchingConcepts: %v", err)
	}
	if len(got) != 1 || got[0].Name != "Linked List" {
		t.Fatalf("got %+v, want only Linked List once", got)
	}

	none, err := s.FindMatchingConcepts(ctx, [][]float32{{0, 0, 1}}, 0.99)
	if err != nil {
		t.Fatalf("FindMatchingConcepts: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected no matches, got %+v", none)
	}
}

func TestMemoryStoreResourcesCoveringRestrictsConcepts(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	if err := s.ApplyResource(ctx, sampleGraph(0.5)); err != nil {
		t.Fatalf("apply: %v", err)
	}
	got, err := s.ResourcesCovering(ctx, []string{"Recursion"})
	if err != nil {
		t.Fatalf("ResourcesCovering: %v", err)
	}
	if len(got) != 1 || len(got[0].Difficulty) != 1 || got[0].Difficulty["Recursion"] != 0.3 {
		t.Fatalf("unexpected: %+v", got)
	}
}

func TestMemoryStoreRelatedResources(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	if err := s.ApplyResource(ctx, sampleGraph(0.5)); err != nil {
		t.Fatalf("apply: %v", err)
	}
	got, err := s.RelatedResources(ctx, []float32{1, 0, 0}, 0.5, 5)
	if err != nil {
		t.Fatalf("RelatedResources: %v", err)
	}
	if len(got) != 1 || got[0].ID != "r1" {
		t.Fatalf("got %+v", got)
	}
}

func TestMemoryStoreCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewMemoryStore().ResourcesCovering(ctx, []string{"x"}); err == nil {
		t.Fatalf("expected error on canceled context")
	}
}
