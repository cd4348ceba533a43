// Package domain defines core domain types, constants, and validation for
// the pathways engine. It acts as the validation gate at API entry points.
package domain

// MicroCredential is a short-form credential being evaluated for transfer
// credit or pathway mapping.
type MicroCredential struct {
	ID                string   `json:"id"`
	Title             string   `json:"title"`
	Description       string   `json:"description"`
	LearningOutcomes  []string `json:"learning_outcomes"`
	DurationHours     float64  `json:"duration_hours,omitempty"`
	Level             string   `json:"level,omitempty"`
	Subject           string   `json:"subject,omitempty"`
	AssessmentMethods []string `json:"assessment_methods,omitempty"`
}

// Program is a formal program that may grant transfer credit.
// Credits <= 0 means the program declares no credit ceiling.
type Program struct {
	ID               string   `json:"id"`
	Title            string   `json:"title"`
	Description      string   `json:"description"`
	LearningOutcomes []string `json:"learning_outcomes"`
	Credits          float64  `json:"credits,omitempty"`
	Level            string   `json:"level,omitempty"`
	Subject          string   `json:"subject,omitempty"`
}

// InstitutionRequirements carries per-institution overrides applied on top
// of the engine's default rule table. Zero values mean "no override".
type InstitutionRequirements struct {
	MinDurationHours  float64  `json:"min_duration_hours,omitempty"`
	MinOutcomeOverlap float64  `json:"min_outcome_overlap,omitempty"`
	RequiredMethods   []string `json:"required_assessment_types,omitempty"`
}

// StudentProfile is optional learner context attached to a recommendation
// request.
type StudentProfile struct {
	ID                   string   `json:"id,omitempty"`
	CompletedCredentials []string `json:"completed_credentials,omitempty"`
	Interests            []string `json:"interests,omitempty"`
	TargetLevel          string   `json:"target_level,omitempty"`
}

// TrainingExample is one indexed pathway record used to (re)build the
// recommendation corpus.
type TrainingExample struct {
	PathwayID        string   `json:"pathway_id,omitempty"`
	ProgramID        string   `json:"program_id"`
	InstitutionID    string   `json:"institution_id,omitempty"`
	InstitutionName  string   `json:"institution_name,omitempty"`
	Title            string   `json:"title"`
	Description      string   `json:"description,omitempty"`
	LearningOutcomes []string `json:"learning_outcomes,omitempty"`
	Level            string   `json:"level,omitempty"`
	Subject          string   `json:"subject,omitempty"`
	Credits          float64  `json:"credits,omitempty"`
}
