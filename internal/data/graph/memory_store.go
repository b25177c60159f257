package graph

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/samber/lo"

	"github.com/dpnam2112/codemate-backend/internal/domain/learning"
	apperr "github.com/dpnam2112/codemate-backend/internal/pkg/errors"
)

// MemoryStore is a process-local Store used in development when Neo4j is not
// configured, and by tests. It follows the same merge semantics as the Neo4j
// store.
type MemoryStore struct {
	mu        sync.RWMutex
	concepts  map[string][]float64
	outcomes  map[string][]float64
	resources map[string]learning.Resource
	relate    map[string]map[string]relateEdge // resource id -> concept -> weights
	hasOut    map[string]map[string]struct{}   // resource id -> outcome names
	learn     map[string]map[string]float64    // learner id -> concept -> proficiency
}

type relateEdge struct {
	difficulty float64
	relevance  float64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		concepts:  map[string][]float64{},
		outcomes:  map[string][]float64{},
		resources: map[string]learning.Resource{},
		relate:    map[string]map[string]relateEdge{},
		hasOut:    map[string]map[string]struct{}{},
		learn:     map[string]map[string]float64{},
	}
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) FindMatchingConcepts(ctx context.Context, embeddings [][]float32, threshold float64) ([]learning.Concept, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrGraphQuery, err)
	}
	queries := lo.Map(embeddings, func(e []float32, _ int) []float64 { return toFloat64(e) })

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]learning.Concept, 0)
	for name, emb := range s.concepts {
		score := bestCosine(emb, queries)
		if score > threshold {
			out = append(out, learning.Concept{Name: name, Score: score})
		}
	}
	sortConcepts(out)
	return out, nil
}

func (s *MemoryStore) LearnerProficiency(ctx context.Context, learnerID string, concepts []string) (map[string]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrGraphQuery, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	edges := s.learn[learnerID]
	out := make(map[string]float64, len(concepts))
	for _, c := range concepts {
		out[c] = edges[c]
	}
	return out, nil
}

func (s *MemoryStore) ResourcesCovering(ctx context.Context, concepts []string) ([]learning.CoveringResource, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrGraphQuery, err)
	}
	want := lo.SliceToMap(concepts, func(c string) (string, struct{}) { return c, struct{}{} })

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]learning.CoveringResource, 0)
	for rid, edges := range s.relate {
		diff := map[string]float64{}
		for c, e := range edges {
			if _, ok := want[c]; ok {
				diff[c] = e.difficulty
			}
		}
		if len(diff) == 0 {
			continue
		}
		out = append(out, learning.CoveringResource{Resource: s.resources[rid], Difficulty: diff})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) ApplyResource(ctx context.Context, g learning.ResourceGraph) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrGraphQuery, err)
	}
	if strings.TrimSpace(g.Resource.ID) == "" {
		return fmt.Errorf("%w: missing resource id", apperr.ErrGraphQuery)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rid := g.Resource.ID
	s.resources[rid] = g.Resource
	if s.relate[rid] == nil {
		s.relate[rid] = map[string]relateEdge{}
	}
	for _, c := range g.Concepts {
		if len(s.concepts[c.Name]) == 0 {
			s.concepts[c.Name] = toFloat64(c.Embedding)
		}
		s.relate[rid][c.Name] = relateEdge{difficulty: c.Difficulty, relevance: c.Relevance}
	}
	if s.hasOut[rid] == nil {
		s.hasOut[rid] = map[string]struct{}{}
	}
	for _, o := range g.Outcomes {
		if _, ok := s.outcomes[o.Name]; !ok {
			s.outcomes[o.Name] = toFloat64(o.Embedding)
		}
		s.hasOut[rid][o.Name] = struct{}{}
	}
	return nil
}

func (s *MemoryStore) RelatedResources(ctx context.Context, embedding []float32, threshold float64, limit int) ([]learning.Resource, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrGraphQuery, err)
	}
	q := [][]float64{toFloat64(embedding)}

	s.mu.RLock()
	defer s.mu.RUnlock()

	type scored struct {
		res   learning.Resource
		score float64
	}
	hits := make([]scored, 0)
	for rid, outs := range s.hasOut {
		best := -1.0
		for name := range outs {
			if sc := bestCosine(s.outcomes[name], q); sc > best {
				best = sc
			}
		}
		if best > threshold {
			hits = append(hits, scored{res: s.resources[rid], score: best})
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].res.ID < hits[j].res.ID
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return lo.Map(hits, func(h scored, _ int) learning.Resource { return h.res }), nil
}

func (s *MemoryStore) UpsertLearnerProficiency(ctx context.Context, learnerID string, values map[string]float64) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrGraphQuery, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.learn[learnerID] == nil {
		s.learn[learnerID] = map[string]float64{}
	}
	for c, p := range values {
		s.learn[learnerID][c] = p
		// LEARN edges create concepts lazily; the embedding stays unset until a
		// resource references the concept.
		if _, ok := s.concepts[c]; !ok {
			s.concepts[c] = nil
		}
	}
	return nil
}

// Counts reports node and edge totals. Tests use it to check idempotency.
func (s *MemoryStore) Counts() (concepts, outcomes, resources, relateEdges, outcomeEdges int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.relate {
		relateEdges += len(m)
	}
	for _, m := range s.hasOut {
		outcomeEdges += len(m)
	}
	return len(s.concepts), len(s.outcomes), len(s.resources), relateEdges, outcomeEdges
}

// ConceptEmbedding returns the stored embedding for a concept.
func (s *MemoryStore) ConceptEmbedding(name string) ([]float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.concepts[name]
	return e, ok
}

// RelateWeights returns the RELATE_TO weights between a resource and a concept.
func (s *MemoryStore) RelateWeights(resourceID, concept string) (difficulty, relevance float64, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.relate[resourceID][concept]
	return e.difficulty, e.relevance, ok
}

func sortConcepts(cs []learning.Concept) {
	sort.Slice(cs, func(i, j int) bool {
		if cs[i].Score != cs[j].Score {
			return cs[i].Score > cs[j].Score
		}
		return cs[i].Name < cs[j].Name
	})
}
