package ingestrun

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"
	"go.temporal.io/sdk/workflow"

	"github.com/dpnam2112/codemate-backend/internal/domain/learning"
	"github.com/dpnam2112/codemate-backend/internal/modules/learning/ingestion"
	apperr "github.com/dpnam2112/codemate-backend/internal/pkg/errors"
)

type fakePipeline struct {
	mu         sync.Mutex
	extractErr []error
	ingestErr  []error
	extracts   int
	ingests    int
	applied    []string
}

func (f *fakePipeline) Extract(_ context.Context, resourceID string, raw ingestion.RawResource) (learning.ResourceExtraction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.extracts++
	if len(f.extractErr) > 0 {
		err := f.extractErr[0]
		f.extractErr = f.extractErr[1:]
		if err != nil {
			return learning.ResourceExtraction{}, err
		}
	}
	return learning.ResourceExtraction{
		ID:               resourceID,
		Code:             raw.Code,
		Concepts:         []learning.ResourceConcept{{Name: "Recursion", Difficulty: 0.5, Relevance: 1}},
		LearningOutcomes: []string{"Write a recursive function"},
	}, nil
}

func (f *fakePipeline) Ingest(_ context.Context, resourceID string, _ learning.ResourceExtraction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ingests++
	if len(f.ingestErr) > 0 {
		err := f.ingestErr[0]
		f.ingestErr = f.ingestErr[1:]
		if err != nil {
			return err
		}
	}
	f.applied = append(f.applied, resourceID)
	return nil
}

func newEnv(t *testing.T, p *fakePipeline) *testsuite.TestWorkflowEnvironment {
	t.Helper()
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	acts := &Activities{Pipeline: p}
	env.RegisterWorkflowWithOptions(Workflow, workflow.RegisterOptions{Name: WorkflowName})
	env.RegisterActivityWithOptions(acts.Extract, activity.RegisterOptions{Name: ExtractActivityName})
	env.RegisterActivityWithOptions(acts.Apply, activity.RegisterOptions{Name: ApplyActivityName})
	return env
}

func TestWorkflowExtractsThenApplies(t *testing.T) {
	p := &fakePipeline{}
	env := newEnv(t, p)
	env.ExecuteWorkflow(WorkflowName, Input{ResourceID: "res-1", Raw: &ingestion.RawResource{Code: "ALG-1", Content: "recursion basics"}})

	if !env.IsWorkflowCompleted() {
		t.Fatalf("workflow did not complete")
	}
	if err := env.GetWorkflowError(); err != nil {
		t.Fatalf("workflow error: %v", err)
	}
	var res Result
	if err := env.GetWorkflowResult(&res); err != nil {
		t.Fatalf("result: %v", err)
	}
	if res.ResourceID != "res-1" || res.Concepts != 1 || res.Outcomes != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if p.extracts != 1 || p.ingests != 1 {
		t.Fatalf("extracts=%d ingests=%d", p.extracts, p.ingests)
	}
}

func TestWorkflowSkipsExtractionForStructuredInput(t *testing.T) {
	p := &fakePipeline{}
	env := newEnv(t, p)
	ex := learning.ResourceExtraction{ID: "res-2", Code: "ALG-2", Concepts: []learning.ResourceConcept{{Name: "Graph"}}}
	env.ExecuteWorkflow(WorkflowName, Input{ResourceID: "res-2", Extraction: &ex})

	if err := env.GetWorkflowError(); err != nil {
		t.Fatalf("workflow error: %v", err)
	}
	if p.extracts != 0 || p.ingests != 1 {
		t.Fatalf("extracts=%d ingests=%d", p.extracts, p.ingests)
	}
}

func TestWorkflowRetriesServiceErrors(t *testing.T) {
	p := &fakePipeline{ingestErr: []error{fmt.Errorf("%w: timeout", apperr.ErrEmbeddingService)}}
	env := newEnv(t, p)
	env.ExecuteWorkflow(WorkflowName, Input{ResourceID: "res-3", Raw: &ingestion.RawResource{Content: "x"}})

	if err := env.GetWorkflowError(); err != nil {
		t.Fatalf("workflow error: %v", err)
	}
	if p.ingests != 2 {
		t.Fatalf("ingests = %d, want 2", p.ingests)
	}
}

func TestWorkflowDoesNotRetryPayloadErrors(t *testing.T) {
	p := &fakePipeline{extractErr: []error{fmt.Errorf("%w: got 1, need at least 5", apperr.ErrTooFewConcepts)}}
	env := newEnv(t, p)
	env.ExecuteWorkflow(WorkflowName, Input{ResourceID: "res-4", Raw: &ingestion.RawResource{Content: "short"}})

	err := env.GetWorkflowError()
	if err == nil {
		t.Fatalf("expected workflow error")
	}
	var actErr *temporal.ActivityError
	if !errors.As(err, &actErr) {
		t.Fatalf("err = %v, want activity error", err)
	}
	var appErr *temporal.ApplicationError
	if !errors.As(actErr.Unwrap(), &appErr) || appErr.Type() != ErrTypeTooFewConcepts {
		t.Fatalf("err = %v, want application error %s", err, ErrTypeTooFewConcepts)
	}
	if !appErr.NonRetryable() {
		t.Fatalf("activity error should be non-retryable")
	}
	if p.extracts != 1 || p.ingests != 0 {
		t.Fatalf("extracts=%d ingests=%d", p.extracts, p.ingests)
	}
}

func TestWorkflowRejectsMissingInput(t *testing.T) {
	cases := []struct {
		name string
		in   Input
	}{
		{"no resource id", Input{Raw: &ingestion.RawResource{Content: "x"}}},
		{"no payload", Input{ResourceID: "res-5"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := &fakePipeline{}
			env := newEnv(t, p)
			env.ExecuteWorkflow(WorkflowName, tc.in)
			if env.GetWorkflowError() == nil {
				t.Fatalf("expected error")
			}
			if p.extracts != 0 || p.ingests != 0 {
				t.Fatalf("activities ran: extracts=%d ingests=%d", p.extracts, p.ingests)
			}
		})
	}
}

func TestWorkflowID(t *testing.T) {
	if got := WorkflowID("abc"); got != "kg-ingest:abc" {
		t.Fatalf("WorkflowID = %q", got)
	}
}
