package app

import (
	"strings"

	"github.com/dpnam2112/codemate-backend/internal/clients/redis"
	"github.com/dpnam2112/codemate-backend/internal/data/graph"
	"github.com/dpnam2112/codemate-backend/internal/modules/learning/embedding"
	"github.com/dpnam2112/codemate-backend/internal/modules/learning/ingestion"
	"github.com/dpnam2112/codemate-backend/internal/modules/learning/retrieval"
	"github.com/dpnam2112/codemate-backend/internal/modules/recommend"
	"github.com/dpnam2112/codemate-backend/internal/modules/recommend/agent"
	"github.com/dpnam2112/codemate-backend/internal/observability"
	"github.com/dpnam2112/codemate-backend/internal/platform/envutil"
	"github.com/dpnam2112/codemate-backend/internal/platform/logger"
	"github.com/dpnam2112/codemate-backend/internal/platform/neo4jdb"
	"github.com/dpnam2112/codemate-backend/internal/platform/openai"
	"github.com/dpnam2112/codemate-backend/internal/temporalx"
)

// Config is every env-derived setting, loaded once at startup.
type Config struct {
	Port        string
	CORSOrigins []string
	RunWorker   bool
	GraphMode   graph.SimilarityMode

	Logger    logger.Config
	Otel      observability.OtelConfig
	Neo4j     neo4jdb.Config
	OpenAI    openai.Config
	Embedding embedding.Config
	Retrieval retrieval.Config
	Pipeline  ingestion.PipelineConfig
	Agent     agent.Config
	Planner   recommend.PlannerConfig
	Redis     redis.Config
	Temporal  temporalx.Config
}

func LoadConfig() Config {
	return Config{
		Port:        envutil.String("PORT", "8080"),
		CORSOrigins: splitList(envutil.String("CORS_ALLOWED_ORIGINS", "")),
		RunWorker:   envutil.Bool("RUN_INGEST_WORKER", true),
		GraphMode:   graph.ParseSimilarityMode(envutil.String("GRAPH_SIMILARITY_MODE", string(graph.SimilarityNative))),

		Logger:    logger.LoadConfig(),
		Otel:      observability.LoadOtelConfig(),
		Neo4j:     neo4jdb.LoadConfig(),
		OpenAI:    openai.LoadConfig(),
		Embedding: embedding.LoadConfig(),
		Retrieval: retrieval.LoadConfig(),
		Pipeline:  ingestion.LoadPipelineConfig(),
		Agent:     agent.LoadConfig(),
		Planner:   recommend.LoadPlannerConfig(),
		Redis:     redis.LoadConfig(),
		Temporal:  temporalx.LoadConfig(),
	}
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	out := []string{}
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
