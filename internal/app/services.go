package app

import (
	"context"
	"fmt"

	"github.com/dpnam2112/codemate-backend/internal/data/graph"
	"github.com/dpnam2112/codemate-backend/internal/modules/learning/embedding"
	"github.com/dpnam2112/codemate-backend/internal/modules/learning/ingestion"
	"github.com/dpnam2112/codemate-backend/internal/modules/learning/retrieval"
	"github.com/dpnam2112/codemate-backend/internal/modules/recommend"
	"github.com/dpnam2112/codemate-backend/internal/modules/recommend/agent"
	"github.com/dpnam2112/codemate-backend/internal/observability"
	"github.com/dpnam2112/codemate-backend/internal/platform/logger"
	"github.com/dpnam2112/codemate-backend/internal/temporalx/ingestrun"
	"github.com/dpnam2112/codemate-backend/internal/temporalx/temporalworker"
)

type Services struct {
	Graph       graph.Store
	Embedder    *embedding.Client
	Retriever   *retrieval.Retriever
	Pipeline    *ingestion.Pipeline
	Recommender *recommend.Recommender
	Planner     *recommend.Planner

	// Set only when Temporal is configured.
	IngestStarter *ingestrun.Starter
	IngestWorker  *temporalworker.Runner
}

func wireServices(ctx context.Context, log *logger.Logger, cfg Config, clients Clients, metrics *observability.Metrics) (Services, error) {
	log.Info("Wiring services...")

	store, err := wireGraphStore(ctx, log, cfg, clients, metrics)
	if err != nil {
		return Services{}, err
	}

	emb := embedding.New(clients.OpenAI, log, cfg.Embedding)
	retriever := retrieval.New(emb, store, log, cfg.Retrieval)
	ingestor := ingestion.NewIngestor(emb, store, log, metrics)
	pipeline := ingestion.NewPipeline(ingestion.NewExtractor(clients.OpenAI, log), ingestor, cfg.Pipeline)

	var checkpointer agent.Checkpointer = agent.LogCheckpointer{Log: log}
	if clients.Transcripts != nil {
		checkpointer = clients.Transcripts
	}
	deps := agent.Deps{Log: log, Metrics: metrics, Checkpointer: checkpointer}
	model := agent.NewOpenAIModel(clients.OpenAI)

	svc := Services{
		Graph:       store,
		Embedder:    emb,
		Retriever:   retriever,
		Pipeline:    pipeline,
		Recommender: recommend.NewRecommender(model, retriever, cfg.Agent, deps),
		Planner:     recommend.NewPlanner(model, retriever, emb, store, cfg.Planner, deps),
	}

	if clients.Temporal != nil {
		svc.IngestStarter = ingestrun.NewStarter(clients.Temporal, cfg.Temporal.TaskQueue)
		if cfg.RunWorker {
			runner, err := temporalworker.NewRunner(log, clients.Temporal, cfg.Temporal, pipeline)
			if err != nil {
				return Services{}, fmt.Errorf("init ingest worker: %w", err)
			}
			svc.IngestWorker = runner
		}
	}
	return svc, nil
}

func wireGraphStore(ctx context.Context, log *logger.Logger, cfg Config, clients Clients, metrics *observability.Metrics) (graph.Store, error) {
	if clients.Neo4j == nil {
		log.Warn("NEO4J_URI not set; using in-memory graph store")
		return graph.NewMemoryStore(), nil
	}
	store, err := graph.NewNeo4jStore(clients.Neo4j, log, metrics, cfg.GraphMode)
	if err != nil {
		return nil, fmt.Errorf("init graph store: %w", err)
	}
	store.EnsureSchema(ctx)
	log.Info("Graph store ready", "backend", "neo4j", "similarity_mode", string(cfg.GraphMode))
	return store, nil
}
