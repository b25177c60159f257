package redis

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/dpnam2112/codemate-backend/internal/modules/recommend/agent"
	"github.com/dpnam2112/codemate-backend/internal/platform/logger"
)

func TestTranscriptStoreKeys(t *testing.T) {
	s := newTranscriptStore(nil, Config{}, logger.NewNop())
	if got := s.key("run-1"); got != "codemate:agent:transcript:run-1" {
		t.Fatalf("key = %q", got)
	}
	if got := s.indexKey("planning"); got != "codemate:agent:runs:planning" {
		t.Fatalf("index key = %q", got)
	}
}

func TestNewTranscriptStoreDisabledWithoutAddr(t *testing.T) {
	s, err := NewTranscriptStore(context.Background(), Config{}, logger.NewNop())
	if err != nil || s != nil {
		t.Fatalf("got (%v, %v), want (nil, nil)", s, err)
	}
}

func TestTranscriptStoreRoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	ctx := context.Background()
	s, err := NewTranscriptStore(ctx, Config{Addr: addr, KeyPrefix: "codemate-test", TTL: time.Minute}, logger.NewNop())
	if err != nil {
		t.Fatalf("NewTranscriptStore: %v", err)
	}
	defer s.Close()

	tr := agent.Transcript{
		RunID:    uuid.NewString(),
		Loop:     "recommendation",
		Outcome:  agent.OutcomeTimeout,
		Turns:    10,
		Messages: []agent.Message{agent.UserMessage("hi")},
		EndedAt:  time.Now(),
	}
	if err := s.Save(ctx, tr); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Get(ctx, tr.RunID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Outcome != agent.OutcomeTimeout || len(got.Messages) != 1 {
		t.Fatalf("got %+v", got)
	}
	if _, err := s.Get(ctx, "missing-"+tr.RunID); !errors.Is(err, agent.ErrTranscriptNotFound) {
		t.Fatalf("err = %v", err)
	}
	ids, err := s.Recent(ctx, "recommendation", 5)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(ids) == 0 || ids[0] != tr.RunID {
		t.Fatalf("recent = %v, want %s first", ids, tr.RunID)
	}
}
