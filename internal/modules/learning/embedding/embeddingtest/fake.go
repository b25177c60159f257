// Package embeddingtest provides deterministic embedding backends for tests.
package embeddingtest

import (
	"context"
	"fmt"
	"sync"
)

// Static returns fixed vectors per input. Unknown inputs get Default, or an
// error when Default is nil.
type Static struct {
	Vectors map[string][]float32
	Default []float32
	Err     error

	mu    sync.Mutex
	calls map[string]int
}

func (s *Static) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	if s.calls == nil {
		s.calls = map[string]int{}
	}
	for _, in := range inputs {
		s.calls[in]++
	}
	s.mu.Unlock()

	if s.Err != nil {
		return nil, s.Err
	}
	out := make([][]float32, len(inputs))
	for i, in := range inputs {
		v, ok := s.Vectors[in]
		if !ok {
			if s.Default == nil {
				return nil, fmt.Errorf("no vector for %q", in)
			}
			v = s.Default
		}
		out[i] = v
	}
	return out, nil
}

// Calls reports how many times text was sent to the backend.
func (s *Static) Calls(text string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[text]
}

// TotalCalls is the number of inputs sent across all calls.
func (s *Static) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}
