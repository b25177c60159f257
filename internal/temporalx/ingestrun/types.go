package ingestrun

import (
	"github.com/dpnam2112/codemate-backend/internal/domain/learning"
	"github.com/dpnam2112/codemate-backend/internal/modules/learning/ingestion"
)

const (
	WorkflowName = "codemate.kg_ingest"

	ExtractActivityName = "codemate.kg_extract"
	ApplyActivityName   = "codemate.kg_apply"

	// Error types surfaced by activities that retrying cannot fix.
	ErrTypeInvalidArgument = "InvalidArgument"
	ErrTypeTooFewConcepts  = "TooFewConcepts"
)

// Input carries either raw content to extract or an extraction to apply
// directly. Extraction wins when both are set.
type Input struct {
	ResourceID string                       `json:"resource_id"`
	Raw        *ingestion.RawResource       `json:"raw,omitempty"`
	Extraction *learning.ResourceExtraction `json:"extraction,omitempty"`
}

type Result struct {
	ResourceID string `json:"resource_id"`
	Concepts   int    `json:"concepts"`
	Outcomes   int    `json:"outcomes"`
}

// WorkflowID is stable per resource so concurrent submissions collapse.
func WorkflowID(resourceID string) string {
	return "kg-ingest:" + resourceID
}
