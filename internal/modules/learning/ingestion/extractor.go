package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dpnam2112/codemate-backend/internal/domain/learning"
	apperr "github.com/dpnam2112/codemate-backend/internal/pkg/errors"
	"github.com/dpnam2112/codemate-backend/internal/platform/logger"
)

// JSONGenerator is the structured-output half of openai.Client.
type JSONGenerator interface {
	GenerateJSON(ctx context.Context, system string, user string, schemaName string, schema map[string]any) (map[string]any, error)
}

// Extractor asks the model for the concepts and outcomes of raw resource
// content.
type Extractor struct {
	ai  JSONGenerator
	log *logger.Logger
}

func NewExtractor(ai JSONGenerator, log *logger.Logger) *Extractor {
	if log == nil {
		log = logger.NewNop()
	}
	return &Extractor{ai: ai, log: log.With("service", "ResourceExtractor")}
}

type RawResource struct {
	Code    string                `json:"code"`
	Title   string                `json:"title"`
	Type    learning.ResourceType `json:"type"`
	Content string                `json:"content"`
}

const extractSystemPrompt = `You analyse programming course material.
List the distinct technical concepts a learner must understand to work through it.
For each concept give difficulty (0 = trivial, 1 = very advanced, relative to this material) and relevance
(0 = mentioned in passing, 1 = central). Use short canonical concept names such as "Linked List" or "Recursion".
Also list the learning outcomes: what a learner can do after finishing the material.
Write a one or two sentence description of the material.`

func (e *Extractor) Extract(ctx context.Context, resourceID string, raw RawResource) (learning.ResourceExtraction, error) {
	var out learning.ResourceExtraction
	content := strings.TrimSpace(raw.Content)
	if content == "" {
		return out, fmt.Errorf("%w: empty content", apperr.ErrInvalidArgument)
	}
	user := fmt.Sprintf("RESOURCE CODE: %s\nTITLE: %s\nTYPE: %s\n\nCONTENT:\n%s", raw.Code, raw.Title, raw.Type, content)

	obj, err := e.ai.GenerateJSON(ctx, extractSystemPrompt, user, "resource_extraction_v1", extractionSchema())
	if err != nil {
		return out, fmt.Errorf("%w: resource %s: %v", apperr.ErrExtraction, resourceID, err)
	}
	b, err := json.Marshal(obj)
	if err != nil {
		return out, fmt.Errorf("%w: resource %s: %v", apperr.ErrExtraction, resourceID, err)
	}
	var parsed struct {
		Description      string                     `json:"description"`
		Concepts         []learning.ResourceConcept `json:"concepts"`
		LearningOutcomes []string                   `json:"learning_outcomes"`
	}
	if err := json.Unmarshal(b, &parsed); err != nil {
		return out, fmt.Errorf("%w: resource %s: decode: %v", apperr.ErrExtraction, resourceID, err)
	}

	out = learning.ResourceExtraction{
		ID:               resourceID,
		Code:             raw.Code,
		Title:            raw.Title,
		Type:             raw.Type,
		Description:      parsed.Description,
		Concepts:         collapseConcepts(parsed.Concepts),
		LearningOutcomes: dedupeStrings(parsed.LearningOutcomes),
	}
	for i := range out.Concepts {
		out.Concepts[i].Difficulty = clamp01(out.Concepts[i].Difficulty)
		out.Concepts[i].Relevance = clamp01(out.Concepts[i].Relevance)
	}
	e.log.Debug("resource extracted", "resource_id", resourceID, "concepts", len(out.Concepts), "outcomes", len(out.LearningOutcomes))
	return out, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func extractionSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"description": map[string]any{"type": "string"},
			"concepts": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"concept":    map[string]any{"type": "string"},
						"difficulty": map[string]any{"type": "number"},
						"relevance":  map[string]any{"type": "number"},
					},
					"required":             []string{"concept", "difficulty", "relevance"},
					"additionalProperties": false,
				},
			},
			"learning_outcomes": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
		},
		"required":             []string{"description", "concepts", "learning_outcomes"},
		"additionalProperties": false,
	}
}
