package agent

import (
	"context"
	"errors"
	"time"

	"github.com/dpnam2112/codemate-backend/internal/platform/logger"
)

// Transcript is the persisted record of one finished run.
type Transcript struct {
	RunID     string    `json:"run_id"`
	Loop      string    `json:"loop"`
	Outcome   Outcome   `json:"outcome"`
	Turns     int       `json:"turns"`
	Error     string    `json:"error,omitempty"`
	Messages  []Message `json:"messages"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
}

type Checkpointer interface {
	Save(ctx context.Context, t Transcript) error
}

// ErrTranscriptNotFound is returned by transcript readers for unknown run ids.
var ErrTranscriptNotFound = errors.New("transcript not found")

// LogCheckpointer writes a summary of each transcript to the logger.
type LogCheckpointer struct {
	Log *logger.Logger
}

func (c LogCheckpointer) Save(ctx context.Context, t Transcript) error {
	if c.Log == nil {
		return nil
	}
	c.Log.Info("agent transcript",
		"run_id", t.RunID,
		"loop", t.Loop,
		"outcome", string(t.Outcome),
		"turns", t.Turns,
		"messages", len(t.Messages),
		"error", t.Error,
		"duration_ms", t.EndedAt.Sub(t.StartedAt).Milliseconds(),
	)
	return nil
}
