package retrieval

import (
	"context"
	"sort"
	"strings"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/floats"

	"github.com/dpnam2112/codemate-backend/internal/data/graph"
	"github.com/dpnam2112/codemate-backend/internal/domain/learning"
	apperr "github.com/dpnam2112/codemate-backend/internal/pkg/errors"
	"github.com/dpnam2112/codemate-backend/internal/platform/envutil"
	"github.com/dpnam2112/codemate-backend/internal/platform/logger"
)

type Embedder interface {
	EmbedUnique(ctx context.Context, texts []string) (map[string][]float32, error)
}

const (
	DefaultSimilarityThreshold = 0.9
	DefaultTopN                = 10
)

// Config holds process-wide defaults. Zero fields take the package defaults;
// a per-call zero threshold goes through Options.
type Config struct {
	SimilarityThreshold float64
	TopN                int
}

func LoadConfig() Config {
	return Config{
		SimilarityThreshold: envutil.Float("RECOMMEND_SIMILARITY_THRESHOLD", DefaultSimilarityThreshold),
		TopN:                envutil.PositiveInt("RECOMMEND_TOP_N", DefaultTopN),
	}
}

type Options struct {
	// TopN <= 0 uses the configured default.
	TopN int
	// SimilarityThreshold nil uses the configured default. Any other value,
	// including 0, is applied as is.
	SimilarityThreshold *float64
}

type Retriever struct {
	embedder Embedder
	store    graph.Store
	log      *logger.Logger
	cfg      Config
}

func New(embedder Embedder, store graph.Store, log *logger.Logger, cfg Config) *Retriever {
	if log == nil {
		log = logger.NewNop()
	}
	if cfg.TopN <= 0 {
		cfg.TopN = DefaultTopN
	}
	if cfg.SimilarityThreshold == 0 {
		cfg.SimilarityThreshold = DefaultSimilarityThreshold
	}
	return &Retriever{embedder: embedder, store: store, log: log.With("service", "ProfileResourceRetriever"), cfg: cfg}
}

// Retrieve builds the learner's proficiency vector over the stored concepts
// semantically matching the input concepts, and ranks covering resources by
// Euclidean distance between that vector and each resource's difficulty
// vector, closest first.
func (r *Retriever) Retrieve(ctx context.Context, learnerID string, concepts []string, opts Options) (learning.ProfileResources, error) {
	empty := learning.ProfileResources{Concepts: []string{}, Proficiency: []float64{}, Resources: []learning.ScoredResource{}}

	inputs := lo.Uniq(lo.FilterMap(concepts, func(c string, _ int) (string, bool) {
		c = strings.TrimSpace(c)
		return c, c != ""
	}))
	if len(inputs) == 0 {
		return empty, apperr.ErrInvalidConceptSet
	}
	topN := opts.TopN
	if topN <= 0 {
		topN = r.cfg.TopN
	}
	threshold := r.cfg.SimilarityThreshold
	if opts.SimilarityThreshold != nil {
		threshold = *opts.SimilarityThreshold
	}

	vecs, err := r.embedder.EmbedUnique(ctx, inputs)
	if err != nil {
		return empty, err
	}
	queries := make([][]float32, 0, len(inputs))
	for _, c := range inputs {
		queries = append(queries, vecs[c])
	}

	matched, err := r.store.FindMatchingConcepts(ctx, queries, threshold)
	if err != nil {
		return empty, err
	}
	if len(matched) == 0 {
		r.log.Debug("no concepts matched", "inputs", len(inputs), "threshold", threshold)
		return empty, nil
	}
	names := lo.Map(matched, func(c learning.Concept, _ int) string { return c.Name })

	prof, err := r.store.LearnerProficiency(ctx, learnerID, names)
	if err != nil {
		return empty, err
	}
	covering, err := r.store.ResourcesCovering(ctx, names)
	if err != nil {
		return empty, err
	}

	out := learning.ProfileResources{
		Concepts:    names,
		Proficiency: alignVector(names, prof),
		Resources:   make([]learning.ScoredResource, 0, len(covering)),
	}
	for _, cr := range covering {
		d := alignVector(names, cr.Difficulty)
		out.Resources = append(out.Resources, learning.ScoredResource{
			ResourceID:   cr.ID,
			ResourceCode: cr.Code,
			Title:        cr.Title,
			Description:  cr.Description,
			Difficulty:   d,
			Distance:     floats.Distance(out.Proficiency, d, 2),
		})
	}
	Rank(out.Resources)
	if len(out.Resources) > topN {
		out.Resources = out.Resources[:topN]
	}

	r.log.Debug("retrieved profile resources",
		"learner_id", learnerID,
		"matched_concepts", len(names),
		"candidates", len(covering),
		"returned", len(out.Resources),
	)
	return out, nil
}

func alignVector(order []string, values map[string]float64) []float64 {
	out := make([]float64, len(order))
	for i, c := range order {
		out[i] = values[c]
	}
	return out
}

// Rank sorts by distance ascending, then resource code, then id.
func Rank(rs []learning.ScoredResource) {
	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].Distance != rs[j].Distance {
			return rs[i].Distance < rs[j].Distance
		}
		if rs[i].ResourceCode != rs[j].ResourceCode {
			return rs[i].ResourceCode < rs[j].ResourceCode
		}
		return rs[i].ResourceID < rs[j].ResourceID
	})
}
