package assess

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/PathwaysAI/pathways-mvp/engine/domain"
)

// Rules is the assessment rule table. Institutions can ship their own as a
// YAML file; fields left unset fall back to the defaults.
type Rules struct {
	MinDurationHours     float64        `yaml:"min_duration_hours"`
	MinOutcomeOverlap    float64        `yaml:"min_outcome_overlap"`
	MinContentSimilarity float64        `yaml:"min_content_similarity"`
	RigorousMethods      []string       `yaml:"rigorous_methods"`
	LevelOrder           map[string]int `yaml:"level_order"`
}

// DefaultRules returns the stock rule table.
func DefaultRules() Rules {
	return Rules{
		MinDurationHours:     12,
		MinOutcomeOverlap:    0.6,
		MinContentSimilarity: 0.5,
		RigorousMethods:      []string{"exam", "project", "assignment"},
		LevelOrder: map[string]int{
			"certificate":      1,
			"diploma":          2,
			"advanced_diploma": 3,
			"degree":           4,
		},
	}
}

// LoadRules reads a rule table from a YAML file, layered over the defaults.
func LoadRules(path string) (Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("assess: read rules %s: %w", path, err)
	}
	r := DefaultRules()
	if err := yaml.Unmarshal(data, &r); err != nil {
		return Rules{}, fmt.Errorf("assess: parse rules %s: %w", path, err)
	}
	if err := r.validate(); err != nil {
		return Rules{}, fmt.Errorf("assess: rules %s: %w", path, err)
	}
	return r, nil
}

func (r Rules) validate() error {
	if r.MinDurationHours <= 0 {
		return fmt.Errorf("min_duration_hours must be positive, got %g", r.MinDurationHours)
	}
	if r.MinOutcomeOverlap < 0 || r.MinOutcomeOverlap > 1 {
		return fmt.Errorf("min_outcome_overlap must be in [0,1], got %g", r.MinOutcomeOverlap)
	}
	if r.MinContentSimilarity < 0 || r.MinContentSimilarity > 1 {
		return fmt.Errorf("min_content_similarity must be in [0,1], got %g", r.MinContentSimilarity)
	}
	if len(r.RigorousMethods) == 0 {
		return fmt.Errorf("rigorous_methods must not be empty")
	}
	return nil
}

// withOverrides layers per-institution requirements over the base table.
func (r Rules) withOverrides(req *domain.InstitutionRequirements) Rules {
	if req == nil {
		return r
	}
	if req.MinDurationHours > 0 {
		r.MinDurationHours = req.MinDurationHours
	}
	if req.MinOutcomeOverlap > 0 {
		r.MinOutcomeOverlap = req.MinOutcomeOverlap
	}
	if len(req.RequiredMethods) > 0 {
		r.RigorousMethods = req.RequiredMethods
	}
	return r
}
