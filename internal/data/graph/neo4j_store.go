package graph

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/dpnam2112/codemate-backend/internal/domain/learning"
	"github.com/dpnam2112/codemate-backend/internal/observability"
	apperr "github.com/dpnam2112/codemate-backend/internal/pkg/errors"
	"github.com/dpnam2112/codemate-backend/internal/platform/logger"
	"github.com/dpnam2112/codemate-backend/internal/platform/neo4jdb"
)

// Neo4jStore implements Store over the shared driver pool.
//
// Graph model:
//
//	(:LearningResource {id, code, title, description, type})
//	(:Concept {name, embedding})
//	(:LearningOutcome {name, embedding})
//	(:Learner {id})
//	(r)-[:RELATE_TO {difficulty, relevance}]->(c)
//	(r)-[:HAS_OUTCOME]->(o)
//	(l)-[:LEARN {proficiency}]->(c)
type Neo4jStore struct {
	client  *neo4jdb.Client
	log     *logger.Logger
	metrics *observability.Metrics
	mode    SimilarityMode

	schemaOnce sync.Once
}

func NewNeo4jStore(client *neo4jdb.Client, log *logger.Logger, metrics *observability.Metrics, mode SimilarityMode) (*Neo4jStore, error) {
	if client == nil || client.Driver == nil {
		return nil, fmt.Errorf("graph: neo4j client required")
	}
	if log == nil {
		log = logger.NewNop()
	}
	if mode == "" {
		mode = SimilarityNative
	}
	return &Neo4jStore{
		client:  client,
		log:     log.With("service", "Neo4jGraphStore"),
		metrics: metrics,
		mode:    mode,
	}, nil
}

var _ Store = (*Neo4jStore)(nil)

// EnsureSchema creates uniqueness constraints. Failures are logged and
// ignored since restricted users may not be allowed to run DDL.
func (s *Neo4jStore) EnsureSchema(ctx context.Context) {
	s.schemaOnce.Do(func() {
		session := s.client.WriteSession(ctx)
		defer session.Close(ctx)
		for _, stmt := range []string{
			`CREATE CONSTRAINT concept_name_unique IF NOT EXISTS FOR (c:Concept) REQUIRE c.name IS UNIQUE`,
			`CREATE CONSTRAINT outcome_name_unique IF NOT EXISTS FOR (o:LearningOutcome) REQUIRE o.name IS UNIQUE`,
			`CREATE CONSTRAINT resource_id_unique IF NOT EXISTS FOR (r:LearningResource) REQUIRE r.id IS UNIQUE`,
			`CREATE CONSTRAINT learner_id_unique IF NOT EXISTS FOR (l:Learner) REQUIRE l.id IS UNIQUE`,
		} {
			if res, err := session.Run(ctx, stmt, nil); err != nil {
				s.log.Warn("neo4j schema init failed (continuing)", "error", err)
			} else {
				_, _ = res.Consume(ctx)
			}
		}
	})
}

func (s *Neo4jStore) observe(ctx context.Context, op string) (context.Context, func(error)) {
	ctx, span := observability.Tracer().Start(ctx, "graph."+op)
	span.SetAttributes(attribute.String("db.system", "neo4j"), attribute.String("graph.similarity_mode", string(s.mode)))
	start := time.Now()
	return ctx, func(err error) {
		s.metrics.ObserveGraphQuery(op, time.Since(start), err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

func (s *Neo4jStore) read(ctx context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error) {
	session := s.client.ReadSession(ctx)
	defer session.Close(ctx)
	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, err
	}
	records, _ := out.([]*neo4j.Record)
	return records, nil
}

func (s *Neo4jStore) FindMatchingConcepts(ctx context.Context, embeddings [][]float32, threshold float64) (out []learning.Concept, err error) {
	ctx, done := s.observe(ctx, "find_matching_concepts")
	defer func() { done(err) }()

	if len(embeddings) == 0 {
		return []learning.Concept{}, nil
	}
	if s.mode == SimilarityClient {
		return s.findMatchingClient(ctx, embeddings, threshold)
	}

	queries := make([][]float64, 0, len(embeddings))
	for _, e := range embeddings {
		queries = append(queries, toFloat64(e))
	}
	records, err := s.read(ctx, `
UNWIND $queries AS q
MATCH (c:Concept)
WHERE c.embedding IS NOT NULL AND size(c.embedding) = size(q)
WITH c, vector.similarity.cosine(c.embedding, q) AS score
WHERE score > $native_threshold
RETURN c.name AS name, max(score) AS score
ORDER BY score DESC, name ASC
`, map[string]any{"queries": queries, "native_threshold": (threshold + 1) / 2})
	if err != nil {
		return nil, fmt.Errorf("%w: find matching concepts: %v", apperr.ErrGraphQuery, err)
	}

	out = make([]learning.Concept, 0, len(records))
	for _, rec := range records {
		name, _, _ := neo4j.GetRecordValue[string](rec, "name")
		score, _, _ := neo4j.GetRecordValue[float64](rec, "score")
		out = append(out, learning.Concept{Name: name, Score: nativeToCosine(score)})
	}
	return out, nil
}

func (s *Neo4jStore) findMatchingClient(ctx context.Context, embeddings [][]float32, threshold float64) ([]learning.Concept, error) {
	records, err := s.read(ctx, `
MATCH (c:Concept)
WHERE c.embedding IS NOT NULL
RETURN c.name AS name, c.embedding AS embedding
`, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: load concept embeddings: %v", apperr.ErrGraphQuery, err)
	}
	queries := make([][]float64, 0, len(embeddings))
	for _, e := range embeddings {
		queries = append(queries, toFloat64(e))
	}

	out := make([]learning.Concept, 0)
	for _, rec := range records {
		name, _, _ := neo4j.GetRecordValue[string](rec, "name")
		rawEmb, _ := rec.Get("embedding")
		score := bestCosine(anyToFloat64s(rawEmb), queries)
		if score > threshold {
			out = append(out, learning.Concept{Name: name, Score: score})
		}
	}
	sortConcepts(out)
	return out, nil
}

func (s *Neo4jStore) LearnerProficiency(ctx context.Context, learnerID string, concepts []string) (out map[string]float64, err error) {
	ctx, done := s.observe(ctx, "learner_proficiency")
	defer func() { done(err) }()

	out = make(map[string]float64, len(concepts))
	for _, c := range concepts {
		out[c] = 0
	}
	if len(concepts) == 0 {
		return out, nil
	}

	records, err := s.read(ctx, `
MATCH (l:Learner {id: $learner_id})-[e:LEARN]->(c:Concept)
WHERE c.name IN $concepts
RETURN c.name AS name, e.proficiency AS proficiency
`, map[string]any{"learner_id": learnerID, "concepts": concepts})
	if err != nil {
		return nil, fmt.Errorf("%w: learner proficiency: %v", apperr.ErrGraphQuery, err)
	}
	for _, rec := range records {
		name, _, _ := neo4j.GetRecordValue[string](rec, "name")
		raw, _ := rec.Get("proficiency")
		out[name] = anyToFloat64(raw)
	}
	return out, nil
}

func (s *Neo4jStore) ResourcesCovering(ctx context.Context, concepts []string) (out []learning.CoveringResource, err error) {
	ctx, done := s.observe(ctx, "resources_covering")
	defer func() { done(err) }()

	if len(concepts) == 0 {
		return []learning.CoveringResource{}, nil
	}
	records, err := s.read(ctx, `
MATCH (r:LearningResource)-[e:RELATE_TO]->(c:Concept)
WHERE c.name IN $concepts
RETURN r.id AS id, r.code AS code, r.title AS title, r.description AS description, r.type AS type,
       collect({name: c.name, difficulty: e.difficulty}) AS edges
ORDER BY id
`, map[string]any{"concepts": concepts})
	if err != nil {
		return nil, fmt.Errorf("%w: resources covering: %v", apperr.ErrGraphQuery, err)
	}

	out = make([]learning.CoveringResource, 0, len(records))
	for _, rec := range records {
		cr := learning.CoveringResource{Resource: resourceFromRecord(rec), Difficulty: map[string]float64{}}
		rawEdges, _ := rec.Get("edges")
		edges, _ := rawEdges.([]any)
		for _, e := range edges {
			m, ok := e.(map[string]any)
			if !ok {
				continue
			}
			name, _ := m["name"].(string)
			cr.Difficulty[name] = anyToFloat64(m["difficulty"])
		}
		out = append(out, cr)
	}
	return out, nil
}

func (s *Neo4jStore) ApplyResource(ctx context.Context, g learning.ResourceGraph) (err error) {
	ctx, done := s.observe(ctx, "apply_resource")
	defer func() { done(err) }()

	if strings.TrimSpace(g.Resource.ID) == "" {
		return fmt.Errorf("%w: missing resource id", apperr.ErrGraphQuery)
	}
	s.EnsureSchema(ctx)

	now := time.Now().UTC().Format(time.RFC3339Nano)
	resource := map[string]any{
		"id":          g.Resource.ID,
		"code":        g.Resource.Code,
		"title":       g.Resource.Title,
		"description": g.Resource.Description,
		"type":        string(g.Resource.Type),
		"synced_at":   now,
	}
	conceptRows := make([]map[string]any, 0, len(g.Concepts))
	for _, c := range g.Concepts {
		conceptRows = append(conceptRows, map[string]any{
			"name":       c.Name,
			"embedding":  toFloat64(c.Embedding),
			"difficulty": c.Difficulty,
			"relevance":  c.Relevance,
		})
	}
	outcomeRows := make([]map[string]any, 0, len(g.Outcomes))
	for _, o := range g.Outcomes {
		outcomeRows = append(outcomeRows, map[string]any{
			"name":      o.Name,
			"embedding": toFloat64(o.Embedding),
		})
	}

	session := s.client.WriteSession(ctx)
	defer session.Close(ctx)

	_, err = session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if res, err := tx.Run(ctx, `
MERGE (r:LearningResource {id: $resource.id})
SET r += $resource
`, map[string]any{"resource": resource}); err != nil {
			return nil, err
		} else if _, err := res.Consume(ctx); err != nil {
			return nil, err
		}

		if len(conceptRows) > 0 {
			res, err := tx.Run(ctx, `
MATCH (r:LearningResource {id: $resource_id})
UNWIND $rows AS row
MERGE (c:Concept {name: row.name})
SET c.embedding = coalesce(c.embedding, row.embedding)
MERGE (r)-[e:RELATE_TO]->(c)
SET e.difficulty = row.difficulty,
    e.relevance = row.relevance
`, map[string]any{"resource_id": g.Resource.ID, "rows": conceptRows})
			if err != nil {
				return nil, err
			}
			if _, err := res.Consume(ctx); err != nil {
				return nil, err
			}
		}

		if len(outcomeRows) > 0 {
			res, err := tx.Run(ctx, `
MATCH (r:LearningResource {id: $resource_id})
UNWIND $rows AS row
MERGE (o:LearningOutcome {name: row.name})
ON CREATE SET o.embedding = row.embedding
MERGE (r)-[:HAS_OUTCOME]->(o)
`, map[string]any{"resource_id": g.Resource.ID, "rows": outcomeRows})
			if err != nil {
				return nil, err
			}
			if _, err := res.Consume(ctx); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("%w: apply resource %s: %v", apperr.ErrGraphQuery, g.Resource.ID, err)
	}
	return nil
}

func (s *Neo4jStore) RelatedResources(ctx context.Context, embedding []float32, threshold float64, limit int) (out []learning.Resource, err error) {
	ctx, done := s.observe(ctx, "related_resources")
	defer func() { done(err) }()

	if limit <= 0 {
		limit = 10
	}
	q := toFloat64(embedding)

	if s.mode == SimilarityClient {
		return s.relatedClient(ctx, q, threshold, limit)
	}

	records, err := s.read(ctx, `
MATCH (r:LearningResource)-[:HAS_OUTCOME]->(o:LearningOutcome)
WHERE o.embedding IS NOT NULL AND size(o.embedding) = size($q)
WITH r, max(vector.similarity.cosine(o.embedding, $q)) AS score
WHERE score > $native_threshold
RETURN r.id AS id, r.code AS code, r.title AS title, r.description AS description, r.type AS type, score
ORDER BY score DESC, id ASC
LIMIT $limit
`, map[string]any{"q": q, "native_threshold": (threshold + 1) / 2, "limit": int64(limit)})
	if err != nil {
		return nil, fmt.Errorf("%w: related resources: %v", apperr.ErrGraphQuery, err)
	}
	out = make([]learning.Resource, 0, len(records))
	for _, rec := range records {
		out = append(out, resourceFromRecord(rec))
	}
	return out, nil
}

func (s *Neo4jStore) relatedClient(ctx context.Context, q []float64, threshold float64, limit int) ([]learning.Resource, error) {
	records, err := s.read(ctx, `
MATCH (r:LearningResource)-[:HAS_OUTCOME]->(o:LearningOutcome)
WHERE o.embedding IS NOT NULL
RETURN r.id AS id, r.code AS code, r.title AS title, r.description AS description, r.type AS type,
       collect(o.embedding) AS embeddings
`, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: load outcome embeddings: %v", apperr.ErrGraphQuery, err)
	}
	type scored struct {
		res   learning.Resource
		score float64
	}
	hits := make([]scored, 0)
	queries := [][]float64{q}
	for _, rec := range records {
		raw, _ := rec.Get("embeddings")
		list, _ := raw.([]any)
		best := -1.0
		for _, e := range list {
			if sc := bestCosine(anyToFloat64s(e), queries); sc > best {
				best = sc
			}
		}
		if best > threshold {
			hits = append(hits, scored{res: resourceFromRecord(rec), score: best})
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].res.ID < hits[j].res.ID
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	out := make([]learning.Resource, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.res)
	}
	return out, nil
}

func (s *Neo4jStore) UpsertLearnerProficiency(ctx context.Context, learnerID string, values map[string]float64) (err error) {
	ctx, done := s.observe(ctx, "upsert_learner_proficiency")
	defer func() { done(err) }()

	if strings.TrimSpace(learnerID) == "" {
		return fmt.Errorf("%w: missing learner id", apperr.ErrGraphQuery)
	}
	if len(values) == 0 {
		return nil
	}
	s.EnsureSchema(ctx)

	now := time.Now().UTC().Format(time.RFC3339Nano)
	rows := make([]map[string]any, 0, len(values))
	for c, p := range values {
		rows = append(rows, map[string]any{"concept": c, "proficiency": p})
	}

	session := s.client.WriteSession(ctx)
	defer session.Close(ctx)
	_, err = session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MERGE (l:Learner {id: $learner_id})
WITH l
UNWIND $rows AS row
MERGE (c:Concept {name: row.concept})
MERGE (l)-[e:LEARN]->(c)
SET e.proficiency = row.proficiency,
    e.updated_at = $now
`, map[string]any{"learner_id": learnerID, "rows": rows, "now": now})
		if err != nil {
			return nil, err
		}
		_, err = res.Consume(ctx)
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("%w: upsert learner proficiency: %v", apperr.ErrGraphQuery, err)
	}
	return nil
}

func resourceFromRecord(rec *neo4j.Record) learning.Resource {
	str := func(key string) string {
		v, _ := rec.Get(key)
		s, _ := v.(string)
		return s
	}
	return learning.Resource{
		ID:          str("id"),
		Code:        str("code"),
		Title:       str("title"),
		Description: str("description"),
		Type:        learning.ResourceType(str("type")),
	}
}

func anyToFloat64(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case float32:
		return float64(x)
	case int64:
		return float64(x)
	case int:
		return float64(x)
	default:
		return 0
	}
}

func anyToFloat64s(v any) []float64 {
	switch x := v.(type) {
	case []float64:
		return x
	case []any:
		out := make([]float64, len(x))
		for i, f := range x {
			out[i] = anyToFloat64(f)
		}
		return out
	default:
		return nil
	}
}
