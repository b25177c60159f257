package agent

import (
	"fmt"

	apperr "github.com/dpnam2112/codemate-backend/internal/pkg/errors"
)

// TimeoutError is returned when the turn cap is reached without a final
// response. It keeps the transcript for diagnostics.
type TimeoutError struct {
	Loop     string
	Turns    int
	Messages []Message
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: agent loop %q reached %d turns without a final response", apperr.ErrRecommendationTimeout, e.Loop, e.Turns)
}

func (e *TimeoutError) Unwrap() error { return apperr.ErrRecommendationTimeout }
