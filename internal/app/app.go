package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	apphttp "github.com/dpnam2112/codemate-backend/internal/http"
	"github.com/dpnam2112/codemate-backend/internal/observability"
	"github.com/dpnam2112/codemate-backend/internal/platform/logger"
)

type App struct {
	Log      *logger.Logger
	Cfg      Config
	Metrics  *observability.Metrics
	Clients  Clients
	Services Services
	Server   *apphttp.Server

	shutdownOtel func(context.Context) error
	cancel       context.CancelFunc
}

func New(ctx context.Context) (*App, error) {
	cfg := LoadConfig()
	log, err := logger.New(cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	log.Info("Configuration loaded", "port", cfg.Port, "graph_mode", string(cfg.GraphMode))

	shutdownOtel := observability.InitOTel(ctx, log, cfg.Otel)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(reg)

	clients, err := wireClients(ctx, log, cfg, metrics)
	if err != nil {
		_ = shutdownOtel(ctx)
		log.Sync()
		return nil, err
	}
	services, err := wireServices(ctx, log, cfg, clients, metrics)
	if err != nil {
		clients.Close(ctx)
		_ = shutdownOtel(ctx)
		log.Sync()
		return nil, err
	}
	handlers := wireHandlers(clients, services)

	serviceName := ""
	if cfg.Otel.Enabled {
		serviceName = cfg.Otel.ServiceName
	}
	server := apphttp.NewServer(apphttp.RouterConfig{
		Log:                   log.With("component", "http"),
		Metrics:               metrics,
		ServiceName:           serviceName,
		CORSOrigins:           cfg.CORSOrigins,
		HealthHandler:         handlers.Health,
		RecommendationHandler: handlers.Recommendation,
		ResourceHandler:       handlers.Resource,
		LearnerHandler:        handlers.Learner,
		AgentRunHandler:       handlers.AgentRun,
	})

	return &App{
		Log:          log,
		Cfg:          cfg,
		Metrics:      metrics,
		Clients:      clients,
		Services:     services,
		Server:       server,
		shutdownOtel: shutdownOtel,
	}, nil
}

// Start launches background workers. It is a no-op when called twice.
func (a *App) Start(ctx context.Context) error {
	if a == nil || a.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if a.Services.IngestWorker != nil {
		if err := a.Services.IngestWorker.Start(ctx); err != nil {
			return fmt.Errorf("start ingest worker: %w", err)
		}
	}
	return nil
}

func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	addr := ":" + a.Cfg.Port
	a.Log.Info("HTTP server listening", "addr", addr)
	return a.Server.Run(ctx, addr)
}

func (a *App) Close(ctx context.Context) {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.Clients.Close(ctx)
	if a.shutdownOtel != nil {
		if err := a.shutdownOtel(ctx); err != nil && a.Log != nil {
			a.Log.Warn("otel shutdown failed", "error", err)
		}
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
