package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/dpnam2112/codemate-backend/internal/data/graph"
	"github.com/dpnam2112/codemate-backend/internal/domain/learning"
	"github.com/dpnam2112/codemate-backend/internal/modules/learning/ingestion"
	"github.com/dpnam2112/codemate-backend/internal/modules/recommend"
	"github.com/dpnam2112/codemate-backend/internal/modules/recommend/agent"
	apperr "github.com/dpnam2112/codemate-backend/internal/pkg/errors"
	"github.com/dpnam2112/codemate-backend/internal/temporalx/ingestrun"
)

type fakeRecommender struct {
	got    recommend.Request
	result learning.RecommendationResult
	err    error
}

func (f *fakeRecommender) Recommend(_ context.Context, req recommend.Request) (learning.RecommendationResult, error) {
	f.got = req
	return f.result, f.err
}

type fakePipeline struct {
	ingested   []string
	ingestErr  error
	contentErr error
}

func (f *fakePipeline) Ingest(_ context.Context, id string, _ learning.ResourceExtraction) error {
	if f.ingestErr != nil {
		return f.ingestErr
	}
	f.ingested = append(f.ingested, id)
	return nil
}

func (f *fakePipeline) IngestContent(_ context.Context, id string, raw ingestion.RawResource) (learning.ResourceExtraction, error) {
	if f.contentErr != nil {
		return learning.ResourceExtraction{}, f.contentErr
	}
	f.ingested = append(f.ingested, id)
	return learning.ResourceExtraction{ID: id, Code: raw.Code, Concepts: []learning.ResourceConcept{{Name: "Heap"}}}, nil
}

type fakeStarter struct{ in ingestrun.Input }

func (f *fakeStarter) Start(_ context.Context, in ingestrun.Input) (string, string, error) {
	f.in = in
	return ingestrun.WorkflowID(in.ResourceID), "run-1", nil
}

type fakeTranscripts map[string]agent.Transcript

func (f fakeTranscripts) Recent(_ context.Context, loop string, limit int64) ([]string, error) {
	ids := make([]string, 0, len(f))
	for id, t := range f {
		if t.Loop == loop {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if int64(len(ids)) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (f fakeTranscripts) Get(_ context.Context, id string) (agent.Transcript, error) {
	t, ok := f[id]
	if !ok {
		return t, agent.ErrTranscriptNotFound
	}
	return t, nil
}

func do(t *testing.T, r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var env struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode error envelope: %v (%s)", err, rec.Body.String())
	}
	return env.Error.Code
}

func TestRecommendMapsErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		name   string
		err    error
		body   string
		status int
		code   string
	}{
		{"ok", nil, `{"course_id":"c1","user_id":"u1","goal_text":"graphs"}`, http.StatusOK, ""},
		{"bad json", nil, `{"course_id":`, http.StatusBadRequest, "invalid_request"},
		{"invalid", fmt.Errorf("%w: user_id", apperr.ErrInvalidArgument), `{}`, http.StatusBadRequest, "invalid_argument"},
		{"timeout", &agent.TimeoutError{Loop: "recommendation", Turns: 10}, `{}`, http.StatusGatewayTimeout, "recommendation_timeout"},
		{"generation", apperr.ErrRecommendationGeneration, `{}`, http.StatusBadGateway, "recommendation_generation"},
		{"graph", apperr.ErrGraphQuery, `{}`, http.StatusServiceUnavailable, "graph_query"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := &fakeRecommender{
				err: tc.err,
				result: learning.RecommendationResult{Recommendations: []learning.RecommendedResource{
					{ResourceID: "r1", ResourceCode: "DSA-1", ShortDescription: "Graphs", Explanation: "covers BFS"},
				}},
			}
			r := gin.New()
			r.POST("/api/recommendations", NewRecommendationHandler(rec, nil).Recommend)

			res := do(t, r, http.MethodPost, "/api/recommendations", tc.body)
			if res.Code != tc.status {
				t.Fatalf("status = %d, want %d (%s)", res.Code, tc.status, res.Body.String())
			}
			if tc.code != "" {
				if got := errorCode(t, res); got != tc.code {
					t.Fatalf("code = %q, want %q", got, tc.code)
				}
				return
			}
			if res.Header().Get(headerAgentRunID) == "" {
				t.Fatalf("missing %s header", headerAgentRunID)
			}
			if rec.got.UserID != "u1" || rec.got.Goal != "graphs" {
				t.Fatalf("request not bound: %+v", rec.got)
			}
			var out learning.RecommendationResult
			if err := json.Unmarshal(res.Body.Bytes(), &out); err != nil || len(out.Recommendations) != 1 {
				t.Fatalf("body = %s (%v)", res.Body.String(), err)
			}
		})
	}
}

func TestPlanDisabledWithoutPlanner(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/learning-plans", NewRecommendationHandler(&fakeRecommender{}, nil).PlanPath)
	res := do(t, r, http.MethodPost, "/api/learning-plans", `{}`)
	if res.Code != http.StatusNotImplemented {
		t.Fatalf("status = %d", res.Code)
	}
}

func TestResourceIngestSyncAndAsync(t *testing.T) {
	gin.SetMode(gin.TestMode)
	p := &fakePipeline{}
	st := &fakeStarter{}
	h := NewResourceHandler(p, st)
	r := gin.New()
	r.POST("/api/learning-resources/:id", h.Ingest)
	r.POST("/api/learning-resources/:id/extract", h.Extract)

	body := `{"id":"r1","code":"DSA-1","description":"d","concepts":[{"concept":"Heap","difficulty":0.2,"relevance":0.9}],"learning_outcomes":[]}`
	if res := do(t, r, http.MethodPost, "/api/learning-resources/r1", body); res.Code != http.StatusOK {
		t.Fatalf("sync ingest status = %d (%s)", res.Code, res.Body.String())
	}
	if len(p.ingested) != 1 || p.ingested[0] != "r1" {
		t.Fatalf("ingested = %v", p.ingested)
	}

	res := do(t, r, http.MethodPost, "/api/learning-resources/r2/extract?async=true", `{"code":"DSA-2","content":"heaps"}`)
	if res.Code != http.StatusAccepted {
		t.Fatalf("async status = %d (%s)", res.Code, res.Body.String())
	}
	if st.in.ResourceID != "r2" || st.in.Raw == nil || st.in.Raw.Content != "heaps" {
		t.Fatalf("workflow input = %+v", st.in)
	}
	if len(p.ingested) != 1 {
		t.Fatalf("async path ran pipeline inline")
	}
}

func TestResourceExtractTooFewConcepts(t *testing.T) {
	gin.SetMode(gin.TestMode)
	p := &fakePipeline{contentErr: fmt.Errorf("%w: got 1", apperr.ErrTooFewConcepts)}
	r := gin.New()
	r.POST("/api/learning-resources/:id/extract", NewResourceHandler(p, nil).Extract)

	// async is ignored without a starter
	res := do(t, r, http.MethodPost, "/api/learning-resources/r1/extract?async=true", `{"content":"x"}`)
	if res.Code != http.StatusUnprocessableEntity || errorCode(t, res) != "too_few_concepts" {
		t.Fatalf("status = %d body = %s", res.Code, res.Body.String())
	}
}

func TestResourceExtractModelOutage(t *testing.T) {
	gin.SetMode(gin.TestMode)
	p := &fakePipeline{contentErr: fmt.Errorf("%w: resource r1: status 503", apperr.ErrExtraction)}
	r := gin.New()
	r.POST("/api/learning-resources/:id/extract", NewResourceHandler(p, nil).Extract)

	res := do(t, r, http.MethodPost, "/api/learning-resources/r1/extract", `{"content":"x"}`)
	if res.Code != http.StatusBadGateway || errorCode(t, res) != "extraction_generation" {
		t.Fatalf("status = %d body = %s", res.Code, res.Body.String())
	}
}

func TestPutProficiency(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := graph.NewMemoryStore()
	r := gin.New()
	r.PUT("/api/learners/:id/proficiency", NewLearnerHandler(store).PutProficiency)

	cases := []struct {
		name   string
		body   string
		status int
	}{
		{"ok", `{"proficiency":{"Recursion":0.7}}`, http.StatusOK},
		{"out of range", `{"proficiency":{"Recursion":1.5}}`, http.StatusBadRequest},
		{"empty", `{"proficiency":{}}`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if res := do(t, r, http.MethodPut, "/api/learners/u1/proficiency", tc.body); res.Code != tc.status {
				t.Fatalf("status = %d, want %d (%s)", res.Code, tc.status, res.Body.String())
			}
		})
	}
	got, err := store.LearnerProficiency(context.Background(), "u1", []string{"Recursion"})
	if err != nil || got["Recursion"] != 0.7 {
		t.Fatalf("proficiency = %v (%v)", got, err)
	}
}

func TestGetAgentRun(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/api/agent-runs/:id", NewAgentRunHandler(fakeTranscripts{"run-1": {RunID: "run-1", Loop: "recommendation"}}).GetRun)

	if res := do(t, r, http.MethodGet, "/api/agent-runs/run-1", ""); res.Code != http.StatusOK {
		t.Fatalf("status = %d", res.Code)
	}
	if res := do(t, r, http.MethodGet, "/api/agent-runs/nope", ""); res.Code != http.StatusNotFound {
		t.Fatalf("status = %d", res.Code)
	}
}

func TestListAgentRuns(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := fakeTranscripts{
		"run-1": {RunID: "run-1", Loop: "recommendation"},
		"run-2": {RunID: "run-2", Loop: "recommendation"},
		"run-3": {RunID: "run-3", Loop: "planning"},
	}
	r := gin.New()
	r.GET("/api/agent-runs", NewAgentRunHandler(store).ListRuns)

	res := do(t, r, http.MethodGet, "/api/agent-runs?loop=recommendation&limit=1", "")
	if res.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", res.Code, res.Body.String())
	}
	var body struct {
		RunIDs []string `json:"run_ids"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.RunIDs) != 1 || body.RunIDs[0] != "run-1" {
		t.Fatalf("run_ids = %v", body.RunIDs)
	}

	for _, path := range []string{"/api/agent-runs", "/api/agent-runs?loop=planning&limit=0", "/api/agent-runs?loop=planning&limit=x"} {
		if res := do(t, r, http.MethodGet, path, ""); res.Code != http.StatusBadRequest {
			t.Fatalf("%s status = %d", path, res.Code)
		}
	}
}
