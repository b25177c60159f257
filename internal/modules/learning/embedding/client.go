package embedding

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	apperr "github.com/dpnam2112/codemate-backend/internal/pkg/errors"
	"github.com/dpnam2112/codemate-backend/internal/platform/envutil"
	"github.com/dpnam2112/codemate-backend/internal/platform/logger"
)

// Backend is the batch embeddings API. openai.Client satisfies it.
type Backend interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

type Config struct {
	Concurrency int
}

func LoadConfig() Config {
	return Config{Concurrency: envutil.PositiveInt("EMBED_CONCURRENCY", 4)}
}

// Client maps text to fixed-length vectors. The dimensionality is pinned by
// the first successful call; a later vector of another length is an error.
type Client struct {
	backend     Backend
	log         *logger.Logger
	concurrency int
	dim         atomic.Int64
}

func New(backend Backend, log *logger.Logger, cfg Config) *Client {
	if log == nil {
		log = logger.NewNop()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &Client{
		backend:     backend,
		log:         log.With("service", "EmbeddingClient"),
		concurrency: cfg.Concurrency,
	}
}

// Dimension is 0 until the first vector has been returned.
func (c *Client) Dimension() int { return int(c.dim.Load()) }

func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if c == nil || c.backend == nil {
		return nil, fmt.Errorf("%w: no embedding backend configured", apperr.ErrEmbeddingService)
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty input", apperr.ErrEmbeddingService)
	}
	vecs, err := c.backend.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrEmbeddingService, err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("%w: expected 1 vector, got %d", apperr.ErrEmbeddingService, len(vecs))
	}
	if err := c.checkDim(vecs[0]); err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (c *Client) checkDim(v []float32) error {
	if len(v) == 0 {
		return fmt.Errorf("%w: empty vector", apperr.ErrEmbeddingService)
	}
	n := int64(len(v))
	if c.dim.CompareAndSwap(0, n) {
		return nil
	}
	if d := c.dim.Load(); d != n {
		return fmt.Errorf("%w: dimension %d does not match %d", apperr.ErrEmbeddingService, n, d)
	}
	return nil
}

// EmbedUnique embeds each distinct non-empty text once, with at most
// Concurrency calls in flight. It returns only after every call has finished;
// the first failure cancels the rest.
func (c *Client) EmbedUnique(ctx context.Context, texts []string) (map[string][]float32, error) {
	uniq := lo.Uniq(lo.Filter(texts, func(s string, _ int) bool { return strings.TrimSpace(s) != "" }))
	out := make(map[string][]float32, len(uniq))
	if len(uniq) == 0 {
		return out, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for _, text := range uniq {
		g.Go(func() error {
			vec, err := c.Embed(gctx, text)
			if err != nil {
				return err
			}
			mu.Lock()
			out[text] = vec
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		c.log.Warn("embedding batch failed", "count", len(uniq), "error", err)
		return nil, err
	}
	return out, nil
}
