package ingestrun

import (
	"context"
	"errors"
	"fmt"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/dpnam2112/codemate-backend/internal/domain/learning"
	"github.com/dpnam2112/codemate-backend/internal/modules/learning/ingestion"
	apperr "github.com/dpnam2112/codemate-backend/internal/pkg/errors"
	"github.com/dpnam2112/codemate-backend/internal/platform/logger"
)

// Pipeline is the slice of ingestion.Pipeline the activities need.
type Pipeline interface {
	Extract(ctx context.Context, resourceID string, raw ingestion.RawResource) (learning.ResourceExtraction, error)
	Ingest(ctx context.Context, resourceID string, ex learning.ResourceExtraction) error
}

type Activities struct {
	Log      *logger.Logger
	Pipeline Pipeline
}

func (a *Activities) Extract(ctx context.Context, in Input) (learning.ResourceExtraction, error) {
	if a == nil || a.Pipeline == nil {
		return learning.ResourceExtraction{}, fmt.Errorf("ingest activities not configured")
	}
	if in.Raw == nil {
		return learning.ResourceExtraction{}, temporal.NewNonRetryableApplicationError("raw content is required", ErrTypeInvalidArgument, nil)
	}
	info := activity.GetInfo(ctx)
	if a.Log != nil {
		a.Log.Info("kg extract started", "resource_id", in.ResourceID, "attempt", info.Attempt)
	}
	ex, err := a.Pipeline.Extract(ctx, in.ResourceID, *in.Raw)
	if err != nil {
		return learning.ResourceExtraction{}, classify(err)
	}
	return ex, nil
}

func (a *Activities) Apply(ctx context.Context, resourceID string, ex learning.ResourceExtraction) (Result, error) {
	if a == nil || a.Pipeline == nil {
		return Result{}, fmt.Errorf("ingest activities not configured")
	}
	if err := a.Pipeline.Ingest(ctx, resourceID, ex); err != nil {
		return Result{}, classify(err)
	}
	if a.Log != nil {
		a.Log.Info("kg apply finished", "resource_id", resourceID, "concepts", len(ex.Concepts), "outcomes", len(ex.LearningOutcomes))
	}
	return Result{ResourceID: resourceID, Concepts: len(ex.Concepts), Outcomes: len(ex.LearningOutcomes)}, nil
}

// classify marks payload errors non-retryable. Service errors stay retryable.
func classify(err error) error {
	switch {
	case errors.Is(err, apperr.ErrInvalidArgument):
		return temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeInvalidArgument, err)
	case errors.Is(err, apperr.ErrTooFewConcepts):
		return temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeTooFewConcepts, err)
	default:
		return err
	}
}
