package domain

import (
	"fmt"
	"strings"
)

// MaxTopK bounds the number of results a single request may ask for.
const MaxTopK = 50

// ValidateCredential checks a MicroCredential before it reaches the engine.
func ValidateCredential(c MicroCredential) error {
	if strings.TrimSpace(c.ID) == "" {
		return NewValidationError("id", c.ID, ErrMissingID)
	}
	if strings.TrimSpace(c.Title) == "" {
		return NewValidationError("title", c.Title, ErrMissingTitle)
	}
	if strings.TrimSpace(c.Description) == "" {
		return NewValidationError("description", c.Description, ErrMissingDescription)
	}
	if c.DurationHours < 0 {
		return NewValidationError("duration_hours", fmt.Sprintf("%g", c.DurationHours), ErrNegativeDuration)
	}
	return nil
}

// ValidateProgram checks a target Program before assessment.
func ValidateProgram(p Program) error {
	if strings.TrimSpace(p.ID) == "" {
		return NewValidationError("id", p.ID, ErrMissingID)
	}
	if strings.TrimSpace(p.Title) == "" {
		return NewValidationError("title", p.Title, ErrMissingTitle)
	}
	if strings.TrimSpace(p.Description) == "" {
		return NewValidationError("description", p.Description, ErrMissingDescription)
	}
	if len(p.LearningOutcomes) == 0 {
		return NewValidationError("learning_outcomes", "", ErrNoOutcomes)
	}
	return nil
}

// ValidateSearchParams checks shared top-k / threshold request parameters.
// topK must be in [1, MaxTopK]; minSimilarity in [0, 1].
func ValidateSearchParams(topK int, minSimilarity float64) error {
	if topK < 1 || topK > MaxTopK {
		return NewValidationError("top_k", fmt.Sprintf("%d", topK), ErrBadTopK)
	}
	if minSimilarity < 0 || minSimilarity > 1 {
		return NewValidationError("min_similarity", fmt.Sprintf("%g", minSimilarity), ErrBadSimilarity)
	}
	return nil
}

// ValidateExample checks a TrainingExample before indexing.
func ValidateExample(e TrainingExample) error {
	if strings.TrimSpace(e.Title) == "" {
		return NewValidationError("title", e.Title, ErrMissingTitle)
	}
	if strings.TrimSpace(e.ProgramID) == "" {
		return NewValidationError("program_id", e.ProgramID, ErrMissingID)
	}
	return nil
}
