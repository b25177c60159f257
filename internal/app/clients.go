package app

import (
	"context"
	"fmt"

	temporalsdkclient "go.temporal.io/sdk/client"

	"github.com/dpnam2112/codemate-backend/internal/clients/redis"
	"github.com/dpnam2112/codemate-backend/internal/observability"
	"github.com/dpnam2112/codemate-backend/internal/platform/logger"
	"github.com/dpnam2112/codemate-backend/internal/platform/neo4jdb"
	"github.com/dpnam2112/codemate-backend/internal/platform/openai"
	"github.com/dpnam2112/codemate-backend/internal/temporalx"
)

// Clients are the process-wide connections. Neo4j, Redis and Temporal are
// optional and nil when unconfigured.
type Clients struct {
	Neo4j       *neo4jdb.Client
	OpenAI      openai.Client
	Transcripts *redis.TranscriptStore
	Temporal    temporalsdkclient.Client
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config, metrics *observability.Metrics) (Clients, error) {
	log.Info("Wiring clients...")
	var c Clients

	ai, err := openai.NewClient(cfg.OpenAI, log, metrics)
	if err != nil {
		return Clients{}, fmt.Errorf("init openai client: %w", err)
	}
	c.OpenAI = ai

	if c.Neo4j, err = neo4jdb.New(ctx, cfg.Neo4j, log); err != nil {
		return Clients{}, fmt.Errorf("init neo4j: %w", err)
	}

	if c.Transcripts, err = redis.NewTranscriptStore(ctx, cfg.Redis, log); err != nil {
		c.Close(ctx)
		return Clients{}, fmt.Errorf("init redis transcript store: %w", err)
	}

	if c.Temporal, err = temporalx.NewClient(ctx, cfg.Temporal, log); err != nil {
		c.Close(ctx)
		return Clients{}, fmt.Errorf("init temporal: %w", err)
	}
	return c, nil
}

func (c *Clients) Close(ctx context.Context) {
	if c == nil {
		return
	}
	if c.Temporal != nil {
		c.Temporal.Close()
	}
	if c.Transcripts != nil {
		_ = c.Transcripts.Close()
	}
	if c.Neo4j != nil {
		_ = c.Neo4j.Close(ctx)
	}
}
