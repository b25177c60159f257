package graph

import (
	"context"

	"github.com/dpnam2112/codemate-backend/internal/domain/learning"
)

// Store is the graph backend used by retrieval and ingestion.
//
// Reads never return partial results: any backend failure is reported as an
// error wrapping errors.ErrGraphQuery. ApplyResource is a single atomic write.
type Store interface {
	// FindMatchingConcepts returns stored concepts whose cosine similarity to
	// any of the embeddings is strictly greater than threshold, deduplicated
	// and ordered by best score descending.
	FindMatchingConcepts(ctx context.Context, embeddings [][]float32, threshold float64) ([]learning.Concept, error)

	// LearnerProficiency returns one entry per requested concept. A concept the
	// learner has no LEARN edge to maps to 0.
	LearnerProficiency(ctx context.Context, learnerID string, concepts []string) (map[string]float64, error)

	// ResourcesCovering returns every resource related to at least one of the
	// concepts, with its difficulty map restricted to those concepts.
	ResourcesCovering(ctx context.Context, concepts []string) ([]learning.CoveringResource, error)

	// ApplyResource upserts the resource, merges its concepts (embedding is
	// write-once), overwrites RELATE_TO weights and merges HAS_OUTCOME edges.
	ApplyResource(ctx context.Context, g learning.ResourceGraph) error

	// RelatedResources returns resources whose learning outcomes are similar to
	// a goal embedding, best match first.
	RelatedResources(ctx context.Context, embedding []float32, threshold float64, limit int) ([]learning.Resource, error)

	// UpsertLearnerProficiency writes LEARN edges. Only the activity tracker
	// path calls this.
	UpsertLearnerProficiency(ctx context.Context, learnerID string, values map[string]float64) error
}

type SimilarityMode string

const (
	// SimilarityNative scores with vector.similarity.cosine inside Cypher.
	SimilarityNative SimilarityMode = "native"
	// SimilarityClient loads embeddings and scores them in process.
	SimilarityClient SimilarityMode = "client"
)

func ParseSimilarityMode(s string) SimilarityMode {
	if SimilarityMode(s) == SimilarityClient {
		return SimilarityClient
	}
	return SimilarityNative
}
