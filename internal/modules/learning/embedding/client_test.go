package embedding

import (
	"context"
	"errors"
	"testing"

	"github.com/dpnam2112/codemate-backend/internal/modules/learning/embedding/embeddingtest"
	apperr "github.com/dpnam2112/codemate-backend/internal/pkg/errors"
)

func TestEmbedUniqueDeduplicates(t *testing.T) {
	backend := &embeddingtest.Static{Default: []float32{1, 0}}
	c := New(backend, nil, Config{Concurrency: 2})

	got, err := c.EmbedUnique(context.Background(), []string{"a", "b", "a", "", "b", "c"})
	if err != nil {
		t.Fatalf("EmbedUnique: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	for _, s := range []string{"a", "b", "c"} {
		if n := backend.Calls(s); n != 1 {
			t.Fatalf("calls(%q) = %d, want 1", s, n)
		}
	}
}

func TestEmbedDimensionMismatch(t *testing.T) {
	backend := &embeddingtest.Static{Vectors: map[string][]float32{
		"short": {1, 0},
		"long":  {1, 0, 0},
	}}
	c := New(backend, nil, Config{})
	if _, err := c.Embed(context.Background(), "short"); err != nil {
		t.Fatalf("Embed short: %v", err)
	}
	_, err := c.Embed(context.Background(), "long")
	if !errors.Is(err, apperr.ErrEmbeddingService) {
		t.Fatalf("err = %v, want ErrEmbeddingService", err)
	}
	if c.Dimension() != 2 {
		t.Fatalf("dimension = %d", c.Dimension())
	}
}

func TestEmbedBackendErrorWraps(t *testing.T) {
	c := New(&embeddingtest.Static{Err: errors.New("quota")}, nil, Config{})
	_, err := c.EmbedUnique(context.Background(), []string{"x", "y"})
	if !errors.Is(err, apperr.ErrEmbeddingService) {
		t.Fatalf("err = %v, want ErrEmbeddingService", err)
	}
}
