package ingestrun

import (
	"fmt"
	"strings"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/dpnam2112/codemate-backend/internal/domain/learning"
)

// Workflow extracts a knowledge graph from raw content when needed and
// applies it. Each step is a separate activity so a failed write does not
// re-run the model call.
func Workflow(ctx workflow.Context, in Input) (Result, error) {
	if strings.TrimSpace(in.ResourceID) == "" {
		return Result{}, temporal.NewNonRetryableApplicationError("resource_id is required", ErrTypeInvalidArgument, nil)
	}
	logger := workflow.GetLogger(ctx)

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		HeartbeatTimeout:    0,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        2 * time.Second,
			BackoffCoefficient:     2.0,
			MaximumInterval:        time.Minute,
			MaximumAttempts:        5,
			NonRetryableErrorTypes: []string{ErrTypeInvalidArgument, ErrTypeTooFewConcepts},
		},
	})

	var ex learning.ResourceExtraction
	switch {
	case in.Extraction != nil:
		ex = *in.Extraction
	case in.Raw != nil:
		if err := workflow.ExecuteActivity(ctx, ExtractActivityName, in).Get(ctx, &ex); err != nil {
			return Result{}, fmt.Errorf("extract: %w", err)
		}
	default:
		return Result{}, temporal.NewNonRetryableApplicationError("raw content or extraction is required", ErrTypeInvalidArgument, nil)
	}

	var res Result
	if err := workflow.ExecuteActivity(ctx, ApplyActivityName, in.ResourceID, ex).Get(ctx, &res); err != nil {
		return Result{}, fmt.Errorf("apply: %w", err)
	}
	logger.Info("kg ingest workflow finished", "resource_id", in.ResourceID, "concepts", res.Concepts)
	return res, nil
}
