package response

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/dpnam2112/codemate-backend/internal/modules/recommend/agent"
	apperr "github.com/dpnam2112/codemate-backend/internal/pkg/errors"
	"github.com/dpnam2112/codemate-backend/internal/platform/validation"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", &validation.RequestValidationError{}, http.StatusBadRequest, "invalid_argument"},
		{"invalid", fmt.Errorf("x: %w", apperr.ErrInvalidArgument), http.StatusBadRequest, "invalid_argument"},
		{"empty concepts", apperr.ErrInvalidConceptSet, http.StatusBadRequest, "invalid_argument"},
		{"too few", apperr.ErrTooFewConcepts, http.StatusUnprocessableEntity, "too_few_concepts"},
		{"timeout", &agent.TimeoutError{Loop: "recommendation", Turns: 10}, http.StatusGatewayTimeout, "recommendation_timeout"},
		{"no action", apperr.ErrNoActionableOutput, http.StatusBadGateway, "no_actionable_output"},
		{"generation", fmt.Errorf("final: %w", apperr.ErrRecommendationGeneration), http.StatusBadGateway, "recommendation_generation"},
		{"extraction", fmt.Errorf("extract: %w", apperr.ErrExtraction), http.StatusBadGateway, "extraction_generation"},
		{"embedding", apperr.ErrEmbeddingService, http.StatusServiceUnavailable, "embedding_service"},
		{"graph", apperr.ErrGraphQuery, http.StatusServiceUnavailable, "graph_query"},
		{"other", fmt.Errorf("boom"), http.StatusInternalServerError, "internal"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, code := Classify(tc.err)
			if status != tc.status || code != tc.code {
				t.Fatalf("got (%d, %s) want (%d, %s)", status, code, tc.status, tc.code)
			}
		})
	}
}
