package learning

// ResourceType is a free-text category such as "lesson" or "exercise".
type ResourceType string

// Resource is a learning resource node as stored in the graph.
type Resource struct {
	ID          string       `json:"id"`
	Code        string       `json:"code"`
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Type        ResourceType `json:"type,omitempty"`
}

// ResourceConcept is one extracted concept with its weights for a resource.
type ResourceConcept struct {
	Name       string  `json:"concept" validate:"required"`
	Difficulty float64 `json:"difficulty" validate:"gte=0,lte=1"`
	Relevance  float64 `json:"relevance" validate:"gte=0,lte=1"`
}

// ResourceExtraction is the structured payload produced by the upstream
// extraction step for one resource.
type ResourceExtraction struct {
	ID               string            `json:"id" validate:"required"`
	Code             string            `json:"code" validate:"required"`
	Title            string            `json:"title,omitempty"`
	Description      string            `json:"description"`
	Type             ResourceType      `json:"type,omitempty"`
	Concepts         []ResourceConcept `json:"concepts" validate:"required,dive"`
	LearningOutcomes []string          `json:"learning_outcomes" validate:"dive,required"`
}

// ResourceGraph is the fully embedded write unit applied atomically by a graph
// store: the resource node, its concept edges and its outcome edges.
type ResourceGraph struct {
	Resource Resource
	Concepts []WeightedConcept
	Outcomes []LearningOutcome
}

type WeightedConcept struct {
	Concept
	Difficulty float64
	Relevance  float64
}

// CoveringResource is a resource with the difficulty of each concept it
// relates to, restricted to the queried concept set.
type CoveringResource struct {
	Resource
	Difficulty map[string]float64 `json:"difficulty"`
}
