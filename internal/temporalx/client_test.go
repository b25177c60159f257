package temporalx

import (
	"context"
	"testing"
	"time"

	"github.com/dpnam2112/codemate-backend/internal/platform/logger"
)

func TestClampBackoff(t *testing.T) {
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 250 * time.Millisecond},
		{2, 500 * time.Millisecond},
		{3, time.Second},
		{10, 5 * time.Second},
	}
	for _, tc := range cases {
		if got := ClampBackoff(250*time.Millisecond, 5*time.Second, tc.attempt); got != tc.want {
			t.Fatalf("attempt %d: got %v want %v", tc.attempt, got, tc.want)
		}
	}
}

func TestNewClientDisabledWithoutAddress(t *testing.T) {
	c, err := NewClient(context.Background(), Config{}, logger.NewNop())
	if err != nil || c != nil {
		t.Fatalf("got (%v, %v), want (nil, nil)", c, err)
	}
}
