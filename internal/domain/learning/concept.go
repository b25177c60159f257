package learning

// Concept is a named unit of knowledge. Name is the identity; the embedding is
// set once on first creation and never overwritten by later ingestions.
type Concept struct {
	Name      string    `json:"name"`
	Embedding []float32 `json:"-"`
	// Score is the best cosine similarity against the query embeddings when the
	// concept was returned by a similarity match. Zero otherwise.
	Score float64 `json:"score,omitempty"`
}

type LearningOutcome struct {
	Name      string    `json:"name"`
	Embedding []float32 `json:"-"`
}
