package ingestrun

import (
	"context"
	"fmt"

	enumspb "go.temporal.io/api/enums/v1"
	temporalsdkclient "go.temporal.io/sdk/client"
)

// Starter submits ingestion workflows.
type Starter struct {
	tc        temporalsdkclient.Client
	taskQueue string
}

func NewStarter(tc temporalsdkclient.Client, taskQueue string) *Starter {
	return &Starter{tc: tc, taskQueue: taskQueue}
}

// Start returns the workflow and run ids. A running workflow for the same
// resource is reused.
func (s *Starter) Start(ctx context.Context, in Input) (string, string, error) {
	if s == nil || s.tc == nil {
		return "", "", fmt.Errorf("temporal client is not configured")
	}
	run, err := s.tc.ExecuteWorkflow(ctx, temporalsdkclient.StartWorkflowOptions{
		ID:                       WorkflowID(in.ResourceID),
		TaskQueue:                s.taskQueue,
		WorkflowIDConflictPolicy: enumspb.WORKFLOW_ID_CONFLICT_POLICY_USE_EXISTING,
	}, WorkflowName, in)
	if err != nil {
		return "", "", fmt.Errorf("start ingest workflow: %w", err)
	}
	return run.GetID(), run.GetRunID(), nil
}
