package temporalworker

import (
	"context"
	"fmt"
	"time"

	"go.temporal.io/sdk/activity"
	temporalsdkclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/dpnam2112/codemate-backend/internal/platform/logger"
	"github.com/dpnam2112/codemate-backend/internal/temporalx"
	"github.com/dpnam2112/codemate-backend/internal/temporalx/ingestrun"
)

// Runner polls the ingestion task queue.
type Runner struct {
	log  *logger.Logger
	tc   temporalsdkclient.Client
	cfg  temporalx.Config
	acts *ingestrun.Activities
}

func NewRunner(log *logger.Logger, tc temporalsdkclient.Client, cfg temporalx.Config, pipeline ingestrun.Pipeline) (*Runner, error) {
	if tc == nil {
		return nil, fmt.Errorf("temporal client is not configured")
	}
	if pipeline == nil {
		return nil, fmt.Errorf("temporal worker missing ingestion pipeline")
	}
	return &Runner{
		log:  log,
		tc:   tc,
		cfg:  cfg,
		acts: &ingestrun.Activities{Log: log, Pipeline: pipeline},
	}, nil
}

// Start retries worker startup until WorkerStartWait elapses, then stops the
// worker when ctx is done.
func (r *Runner) Start(ctx context.Context) error {
	if r == nil || r.tc == nil {
		return fmt.Errorf("temporal worker not initialized")
	}
	if r.log != nil {
		r.log.Info("Starting Temporal worker", "address", r.cfg.Address, "namespace", r.cfg.Namespace, "task_queue", r.cfg.TaskQueue)
	}

	deadline := time.Now().Add(r.cfg.WorkerStartWait)
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		w := r.newWorker()
		startErr := w.Start()
		if startErr == nil {
			go func() {
				<-ctx.Done()
				w.Stop()
			}()
			if r.log != nil {
				r.log.Info("Temporal worker started", "namespace", r.cfg.Namespace, "task_queue", r.cfg.TaskQueue, "attempts", attempt)
			}
			return nil
		}
		w.Stop()

		if r.cfg.WorkerStartWait <= 0 || time.Now().After(deadline) {
			return fmt.Errorf("temporal worker start (namespace=%s task_queue=%s): %w", r.cfg.Namespace, r.cfg.TaskQueue, startErr)
		}
		if r.log != nil {
			r.log.Warn("Temporal worker failed to start; retrying", "namespace", r.cfg.Namespace, "task_queue", r.cfg.TaskQueue, "attempt", attempt, "error", startErr)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(temporalx.ClampBackoff(250*time.Millisecond, 5*time.Second, attempt)):
		}
	}
}

func (r *Runner) newWorker() worker.Worker {
	w := worker.New(r.tc, r.cfg.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     r.cfg.WorkerConcurrency,
		MaxConcurrentWorkflowTaskExecutionSize: r.cfg.WorkerConcurrency,
	})
	Register(w, r.acts)
	return w
}

// Register wires the ingestion workflow and activities under their stable names.
func Register(reg worker.Registry, acts *ingestrun.Activities) {
	reg.RegisterWorkflowWithOptions(ingestrun.Workflow, workflow.RegisterOptions{Name: ingestrun.WorkflowName})
	reg.RegisterActivityWithOptions(acts.Extract, activity.RegisterOptions{Name: ingestrun.ExtractActivityName})
	reg.RegisterActivityWithOptions(acts.Apply, activity.RegisterOptions{Name: ingestrun.ApplyActivityName})
}
