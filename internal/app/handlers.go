package app

import (
	httpH "github.com/dpnam2112/codemate-backend/internal/http/handlers"
)

type Handlers struct {
	Health         *httpH.HealthHandler
	Recommendation *httpH.RecommendationHandler
	Resource       *httpH.ResourceHandler
	Learner        *httpH.LearnerHandler
	AgentRun       *httpH.AgentRunHandler
}

func wireHandlers(clients Clients, svc Services) Handlers {
	// A nil *Starter must not become a non-nil interface.
	var starter httpH.WorkflowStarter
	if svc.IngestStarter != nil {
		starter = svc.IngestStarter
	}
	h := Handlers{
		Health:         httpH.NewHealthHandler(),
		Recommendation: httpH.NewRecommendationHandler(svc.Recommender, svc.Planner),
		Resource:       httpH.NewResourceHandler(svc.Pipeline, starter),
		Learner:        httpH.NewLearnerHandler(svc.Graph),
	}
	if clients.Transcripts != nil {
		h.AgentRun = httpH.NewAgentRunHandler(clients.Transcripts)
	}
	return h
}
