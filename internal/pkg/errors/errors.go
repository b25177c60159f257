package errors

import "errors"

var (
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrEmbeddingService means the embedding backend was unavailable or rejected
	// the input. It is never retried inside the core.
	ErrEmbeddingService = errors.New("embedding service error")
	// ErrGraphQuery wraps any read or write failure against the graph backend.
	ErrGraphQuery = errors.New("graph query error")
	// ErrInvalidConceptSet is returned when retrieval is asked for zero concepts.
	ErrInvalidConceptSet = errors.New("invalid concept set")
	// ErrTooFewConcepts is the extraction policy floor for a learning resource.
	ErrTooFewConcepts = errors.New("too few concepts extracted")
	// ErrExtraction means the model call or its output for resource extraction failed.
	ErrExtraction = errors.New("resource extraction error")

	// ErrRecommendationGeneration means the final structured output failed validation.
	ErrRecommendationGeneration = errors.New("recommendation generation error")
	// ErrRecommendationTimeout means the agent loop hit its turn cap.
	ErrRecommendationTimeout = errors.New("recommendation timeout")
	// ErrNoActionableOutput means the model stopped without calling any tool.
	ErrNoActionableOutput = errors.New("no actionable output")
)
