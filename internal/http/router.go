package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/dpnam2112/codemate-backend/internal/http/handlers"
	httpMW "github.com/dpnam2112/codemate-backend/internal/http/middleware"
	"github.com/dpnam2112/codemate-backend/internal/observability"
	"github.com/dpnam2112/codemate-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	Metrics     *observability.Metrics
	ServiceName string
	CORSOrigins []string

	HealthHandler         *httpH.HealthHandler
	RecommendationHandler *httpH.RecommendationHandler
	ResourceHandler       *httpH.ResourceHandler
	LearnerHandler        *httpH.LearnerHandler
	AgentRunHandler       *httpH.AgentRunHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	api := r.Group("/api")
	{
		if cfg.RecommendationHandler != nil {
			api.POST("/recommendations", cfg.RecommendationHandler.Recommend)
			api.POST("/learning-plans", cfg.RecommendationHandler.PlanPath)
		}

		if cfg.ResourceHandler != nil {
			api.POST("/learning-resources/:id", cfg.ResourceHandler.Ingest)
			api.POST("/learning-resources/:id/extract", cfg.ResourceHandler.Extract)
		}

		if cfg.LearnerHandler != nil {
			api.PUT("/learners/:id/proficiency", cfg.LearnerHandler.PutProficiency)
		}

		if cfg.AgentRunHandler != nil {
			api.GET("/agent-runs", cfg.AgentRunHandler.ListRuns)
			api.GET("/agent-runs/:id", cfg.AgentRunHandler.GetRun)
		}
	}

	return r
}
