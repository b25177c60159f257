package learning

// ScoredResource is a candidate resource with its difficulty vector aligned to
// the ordered concept set of a retrieval, and its distance to the learner.
type ScoredResource struct {
	ResourceID   string    `json:"resource_id"`
	ResourceCode string    `json:"resource_code"`
	Title        string    `json:"title,omitempty"`
	Description  string    `json:"description,omitempty"`
	Difficulty   []float64 `json:"difficulty"`
	Distance     float64   `json:"distance"`
}

// ProfileResources is a retrieval result. Concepts fixes the order of both
// Proficiency and every resource's Difficulty vector.
type ProfileResources struct {
	Concepts    []string         `json:"concepts"`
	Proficiency []float64        `json:"proficiency"`
	Resources   []ScoredResource `json:"resources"`
}

func (p ProfileResources) Empty() bool { return len(p.Concepts) == 0 }

// ProficiencyMap pairs the ordered concepts with the learner's values.
func (p ProfileResources) ProficiencyMap() map[string]float64 {
	out := make(map[string]float64, len(p.Concepts))
	for i, c := range p.Concepts {
		if i < len(p.Proficiency) {
			out[c] = p.Proficiency[i]
		}
	}
	return out
}

type RecommendedResource struct {
	ResourceID       string `json:"resource_id" validate:"required"`
	ResourceCode     string `json:"resource_code" validate:"required"`
	ShortDescription string `json:"short_description" validate:"required"`
	Explanation      string `json:"explanation" validate:"required"`
}

// RecommendationResult is the ordered list returned to the API layer.
type RecommendationResult struct {
	Recommendations []RecommendedResource `json:"recommendations" validate:"required,dive"`
}

type PlanLesson struct {
	ResourceID string `json:"resource_id,omitempty"`
	Title      string `json:"title" validate:"required"`
	Reason     string `json:"reason,omitempty"`
}

type PlanModule struct {
	Title            string       `json:"title" validate:"required"`
	Objectives       []string     `json:"objectives" validate:"required,min=1,dive,required"`
	EstimatedMinutes int          `json:"estimated_minutes" validate:"gt=0"`
	Lessons          []PlanLesson `json:"lessons" validate:"required,dive"`
}

type LearningPlan struct {
	Summary string       `json:"summary" validate:"required"`
	Modules []PlanModule `json:"modules" validate:"required,min=1,dive"`
}
