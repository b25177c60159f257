package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperr "github.com/dpnam2112/codemate-backend/internal/pkg/errors"
	"github.com/dpnam2112/codemate-backend/internal/platform/validation"
)

type APIError struct {
	Message string                  `json:"message"`
	Code    string                  `json:"code,omitempty"`
	Fields  []validation.FieldError `json:"fields,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	body := APIError{Message: msg, Code: code}
	var ve *validation.RequestValidationError
	if errors.As(err, &ve) {
		body.Fields = ve.Fields
	}
	c.JSON(status, ErrorEnvelope{Error: body})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondAccepted(c *gin.Context, payload any) {
	c.JSON(http.StatusAccepted, payload)
}

// RespondServiceError maps core sentinels to a status and a stable code.
func RespondServiceError(c *gin.Context, err error) {
	status, code := Classify(err)
	_ = c.Error(err)
	RespondError(c, status, code, err)
}

func Classify(err error) (int, string) {
	var ve *validation.RequestValidationError
	switch {
	case errors.As(err, &ve), errors.Is(err, apperr.ErrInvalidArgument), errors.Is(err, apperr.ErrInvalidConceptSet):
		return http.StatusBadRequest, "invalid_argument"
	case errors.Is(err, apperr.ErrTooFewConcepts):
		return http.StatusUnprocessableEntity, "too_few_concepts"
	case errors.Is(err, apperr.ErrRecommendationTimeout):
		return http.StatusGatewayTimeout, "recommendation_timeout"
	case errors.Is(err, apperr.ErrNoActionableOutput):
		return http.StatusBadGateway, "no_actionable_output"
	case errors.Is(err, apperr.ErrRecommendationGeneration):
		return http.StatusBadGateway, "recommendation_generation"
	case errors.Is(err, apperr.ErrExtraction):
		return http.StatusBadGateway, "extraction_generation"
	case errors.Is(err, apperr.ErrEmbeddingService):
		return http.StatusServiceUnavailable, "embedding_service"
	case errors.Is(err, apperr.ErrGraphQuery):
		return http.StatusServiceUnavailable, "graph_query"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
