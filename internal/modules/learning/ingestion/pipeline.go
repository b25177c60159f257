package ingestion

import (
	"context"
	"fmt"

	"github.com/dpnam2112/codemate-backend/internal/domain/learning"
	apperr "github.com/dpnam2112/codemate-backend/internal/pkg/errors"
	"github.com/dpnam2112/codemate-backend/internal/platform/envutil"
)

type PipelineConfig struct {
	MinConcepts int
}

func LoadPipelineConfig() PipelineConfig {
	return PipelineConfig{MinConcepts: envutil.PositiveInt("INGEST_MIN_CONCEPTS", 5)}
}

// Pipeline runs extraction followed by ingestion for raw content.
type Pipeline struct {
	extractor *Extractor
	ingestor  *Ingestor
	cfg       PipelineConfig
}

func NewPipeline(extractor *Extractor, ingestor *Ingestor, cfg PipelineConfig) *Pipeline {
	if cfg.MinConcepts <= 0 {
		cfg.MinConcepts = 5
	}
	return &Pipeline{extractor: extractor, ingestor: ingestor, cfg: cfg}
}

func (p *Pipeline) Extract(ctx context.Context, resourceID string, raw RawResource) (learning.ResourceExtraction, error) {
	ex, err := p.extractor.Extract(ctx, resourceID, raw)
	if err != nil {
		return ex, err
	}
	if len(ex.Concepts) < p.cfg.MinConcepts {
		return ex, fmt.Errorf("%w: got %d, need at least %d", apperr.ErrTooFewConcepts, len(ex.Concepts), p.cfg.MinConcepts)
	}
	return ex, nil
}

func (p *Pipeline) IngestContent(ctx context.Context, resourceID string, raw RawResource) (learning.ResourceExtraction, error) {
	ex, err := p.Extract(ctx, resourceID, raw)
	if err != nil {
		return ex, err
	}
	return ex, p.Ingest(ctx, resourceID, ex)
}

func (p *Pipeline) Ingest(ctx context.Context, resourceID string, ex learning.ResourceExtraction) error {
	return p.ingestor.Ingest(ctx, resourceID, ex)
}
