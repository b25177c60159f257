package ingestion

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dpnam2112/codemate-backend/internal/data/graph"
	"github.com/dpnam2112/codemate-backend/internal/domain/learning"
	"github.com/dpnam2112/codemate-backend/internal/observability"
	apperr "github.com/dpnam2112/codemate-backend/internal/pkg/errors"
	"github.com/dpnam2112/codemate-backend/internal/platform/logger"
	"github.com/dpnam2112/codemate-backend/internal/platform/validation"
)

type Embedder interface {
	EmbedUnique(ctx context.Context, texts []string) (map[string][]float32, error)
}

// Ingestor writes one extracted resource into the knowledge graph.
type Ingestor struct {
	embedder Embedder
	store    graph.Store
	log      *logger.Logger
	metrics  *observability.Metrics
}

func NewIngestor(embedder Embedder, store graph.Store, log *logger.Logger, metrics *observability.Metrics) *Ingestor {
	if log == nil {
		log = logger.NewNop()
	}
	return &Ingestor{
		embedder: embedder,
		store:    store,
		log:      log.With("service", "KnowledgeGraphIngestor"),
		metrics:  metrics,
	}
}

// Ingest embeds every distinct concept and outcome once and then applies the
// whole resource in a single graph write. Nothing is written if any embedding
// fails. Re-ingesting the same payload leaves the graph unchanged.
func (i *Ingestor) Ingest(ctx context.Context, resourceID string, in learning.ResourceExtraction) (err error) {
	ctx, span := observability.Tracer().Start(ctx, "ingestion.ingest")
	defer span.End()
	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
			span.RecordError(err)
		}
		i.metrics.IncIngestion(status)
	}()

	resourceID = strings.TrimSpace(resourceID)
	if in.ID == "" {
		in.ID = resourceID
	}
	if resourceID == "" || in.ID != resourceID {
		return fmt.Errorf("%w: resource id %q does not match payload id %q", apperr.ErrInvalidArgument, resourceID, in.ID)
	}
	if err := validation.Struct(in); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrInvalidArgument, err)
	}

	concepts := collapseConcepts(in.Concepts)
	outcomes := dedupeStrings(in.LearningOutcomes)

	texts := make([]string, 0, len(concepts)+len(outcomes))
	for _, c := range concepts {
		texts = append(texts, c.Name)
	}
	texts = append(texts, outcomes...)

	vecs, err := i.embedder.EmbedUnique(ctx, texts)
	if err != nil {
		if !errors.Is(err, apperr.ErrEmbeddingService) {
			err = fmt.Errorf("%w: %v", apperr.ErrEmbeddingService, err)
		}
		i.log.Warn("ingestion embedding failed", "resource_id", resourceID, "error", err)
		return err
	}

	g := learning.ResourceGraph{
		Resource: learning.Resource{
			ID:          in.ID,
			Code:        in.Code,
			Title:       in.Title,
			Description: in.Description,
			Type:        in.Type,
		},
		Concepts: make([]learning.WeightedConcept, 0, len(concepts)),
		Outcomes: make([]learning.LearningOutcome, 0, len(outcomes)),
	}
	for _, c := range concepts {
		g.Concepts = append(g.Concepts, learning.WeightedConcept{
			Concept:    learning.Concept{Name: c.Name, Embedding: vecs[c.Name]},
			Difficulty: c.Difficulty,
			Relevance:  c.Relevance,
		})
	}
	for _, o := range outcomes {
		g.Outcomes = append(g.Outcomes, learning.LearningOutcome{Name: o, Embedding: vecs[o]})
	}

	if err := i.store.ApplyResource(ctx, g); err != nil {
		i.log.Error("ingestion write failed", "resource_id", resourceID, "error", err)
		return err
	}
	i.log.Info("resource ingested",
		"resource_id", resourceID,
		"code", in.Code,
		"concepts", len(g.Concepts),
		"outcomes", len(g.Outcomes),
	)
	return nil
}

// collapseConcepts keeps first-seen order; a repeated name takes the weights
// of its last occurrence.
func collapseConcepts(in []learning.ResourceConcept) []learning.ResourceConcept {
	idx := map[string]int{}
	out := make([]learning.ResourceConcept, 0, len(in))
	for _, c := range in {
		c.Name = strings.TrimSpace(c.Name)
		if c.Name == "" {
			continue
		}
		if j, ok := idx[c.Name]; ok {
			out[j] = c
			continue
		}
		idx[c.Name] = len(out)
		out = append(out, c)
	}
	return out
}

func dedupeStrings(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
