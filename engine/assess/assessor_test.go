package assess

import (
	"math"
	"strings"
	"testing"

	"github.com/PathwaysAI/pathways-mvp/engine/domain"
)

func newTestAssessor() *Assessor {
	return New(DefaultRules(), nil)
}

func TestAssess_Approved(t *testing.T) {
	cred := domain.MicroCredential{
		ID:                "mc-1",
		Title:             "Network Fundamentals",
		Description:       "routing switching and network design",
		LearningOutcomes:  []string{"configure routers", "design networks"},
		DurationHours:     40,
		Level:             "certificate",
		AssessmentMethods: []string{"Final Exam"},
	}
	prog := domain.Program{
		ID:               "prog-1",
		Title:            "Diploma of Networking",
		Description:      "routing switching and network design",
		LearningOutcomes: []string{"configure routers", "design networks"},
		Level:            "diploma",
		Credits:          24,
	}

	got := newTestAssessor().Assess(cred, prog, nil)

	if got.Decision != Approved {
		t.Fatalf("Decision = %s, want approved", got.Decision)
	}
	if got.Confidence != 1.0 {
		t.Errorf("Confidence = %v, want 1.0", got.Confidence)
	}
	if len(got.RequirementsMissing) != 0 {
		t.Errorf("missing = %v", got.RequirementsMissing)
	}
	if len(got.RequirementsMet) != 5 {
		t.Errorf("met count = %d, want 5", len(got.RequirementsMet))
	}
	// 40h / 15 h-per-credit * 1.0 confidence, rounded to nearest 0.5.
	if got.RecommendedCredits != 2.5 {
		t.Errorf("RecommendedCredits = %v, want 2.5", got.RecommendedCredits)
	}
	if !strings.HasPrefix(got.Reasoning, "Assessment approved with 1.00 confidence.") {
		t.Errorf("Reasoning = %q", got.Reasoning)
	}
	if !strings.Contains(got.Reasoning, "Met: ") {
		t.Errorf("Reasoning lacks met details: %q", got.Reasoning)
	}
}

func TestAssess_Denied(t *testing.T) {
	cred := domain.MicroCredential{
		ID:               "mc-2",
		Title:            "Intro Session",
		Description:      "alpha beta",
		LearningOutcomes: []string{"watch videos"},
		DurationHours:    2,
	}
	prog := domain.Program{
		ID:               "prog-1",
		Title:            "Diploma of Networking",
		Description:      "gamma delta",
		LearningOutcomes: []string{"configure routers"},
	}

	got := newTestAssessor().Assess(cred, prog, nil)

	if got.Decision != Denied {
		t.Fatalf("Decision = %s, want denied", got.Decision)
	}
	if got.Confidence >= 0.4 {
		t.Errorf("Confidence = %v, want < 0.4", got.Confidence)
	}
	// Duration, outcomes and content all fail; the empty methods list is a
	// condition, not a missing requirement.
	if len(got.RequirementsMissing) != 3 {
		t.Errorf("missing = %v", got.RequirementsMissing)
	}
	if len(got.Conditions) != 1 || got.Conditions[0] != "No assessment methods specified" {
		t.Errorf("conditions = %v", got.Conditions)
	}
	if !strings.HasPrefix(got.Reasoning, "Assessment denied") {
		t.Errorf("Reasoning = %q", got.Reasoning)
	}
	if !strings.Contains(got.Reasoning, "Missing: ") {
		t.Errorf("Reasoning lacks missing details: %q", got.Reasoning)
	}
}

func TestAssess_Conditional(t *testing.T) {
	cred := domain.MicroCredential{
		ID:                "mc-3",
		Title:             "Data Analysis Basics",
		Description:       "data analysis basics",
		LearningOutcomes:  []string{"analyze data"},
		DurationHours:     40,
		Level:             "certificate",
		AssessmentMethods: []string{"attendance"},
	}
	prog := domain.Program{
		ID:               "prog-2",
		Title:            "Certificate in Analytics",
		Description:      "data analysis advanced statistics",
		LearningOutcomes: []string{"analyze data"},
		Level:            "certificate",
	}

	got := newTestAssessor().Assess(cred, prog, nil)

	// Scores: duration 1.0, outcomes 1.0, content 0.4 (2 shared of 5 words),
	// rigor 0.5, level 1.0 -> confidence 0.78 with one missing requirement
	// and one open condition.
	if got.Decision != Conditional {
		t.Fatalf("Decision = %s, want conditional", got.Decision)
	}
	if math.Abs(got.Confidence-0.78) > 1e-9 {
		t.Errorf("Confidence = %v, want 0.78", got.Confidence)
	}
	if len(got.RequirementsMissing) != 1 {
		t.Errorf("missing = %v", got.RequirementsMissing)
	}
	if len(got.Conditions) != 1 {
		t.Errorf("conditions = %v", got.Conditions)
	}
	if got.RecommendedCredits != 2.0 {
		t.Errorf("RecommendedCredits = %v, want 2.0", got.RecommendedCredits)
	}
}

func TestAssess_ReviewRequired(t *testing.T) {
	cred := domain.MicroCredential{
		ID:                "mc-4",
		Title:             "Short Course",
		Description:       "industrial safety procedures",
		DurationHours:     6,
		Level:             "bootcamp", // unmapped
		AssessmentMethods: []string{"exam"},
	}
	prog := domain.Program{
		ID:               "prog-3",
		Title:            "Safety Diploma",
		Description:      "industrial safety procedures",
		LearningOutcomes: []string{"apply safety procedures"},
		Level:            "diploma",
	}

	got := newTestAssessor().Assess(cred, prog, nil)

	// Two missing requirements rule out approval even though confidence
	// reaches 0.6; unmapped level gets the benefit of the doubt.
	if got.Decision != ReviewRequired {
		t.Fatalf("Decision = %s, want review_required", got.Decision)
	}
	if len(got.RequirementsMissing) != 2 {
		t.Errorf("missing = %v", got.RequirementsMissing)
	}
	for _, m := range got.RequirementsMet {
		if m == "Level information not available" {
			return
		}
	}
	t.Errorf("unmapped level should count as met: %v", got.RequirementsMet)
}

func TestAssess_LevelIncompatible(t *testing.T) {
	cred := domain.MicroCredential{
		ID: "mc-5", Title: "t", Description: "same words here",
		LearningOutcomes: []string{"same outcome"},
		DurationHours:    40, Level: "degree",
		AssessmentMethods: []string{"exam"},
	}
	prog := domain.Program{
		ID: "prog-4", Title: "t", Description: "same words here",
		LearningOutcomes: []string{"same outcome"},
		Level:            "certificate",
	}

	got := newTestAssessor().Assess(cred, prog, nil)
	found := false
	for _, m := range got.RequirementsMissing {
		if strings.Contains(m, "Level compatibility") {
			found = true
		}
	}
	if !found {
		t.Errorf("degree -> certificate should be a missing requirement: %v", got.RequirementsMissing)
	}
}

func TestAssess_RigorKeywordSubstring(t *testing.T) {
	cred := domain.MicroCredential{
		ID: "mc-6", Title: "t", Description: "d",
		DurationHours:     20,
		AssessmentMethods: []string{"Capstone Project"},
	}
	got := newTestAssessor().Assess(cred, domain.Program{ID: "p", Title: "t", Description: "d"}, nil)
	if len(got.Conditions) != 0 {
		t.Errorf("capstone project should match the project keyword: %v", got.Conditions)
	}
}

func TestAssess_InstitutionOverrides(t *testing.T) {
	cred := domain.MicroCredential{
		ID: "mc-7", Title: "t", Description: "d",
		DurationHours:     20,
		AssessmentMethods: []string{"exam"},
	}
	prog := domain.Program{ID: "p", Title: "t", Description: "d"}

	base := newTestAssessor().Assess(cred, prog, nil)
	if strings.Contains(base.RequirementsMissing[0], "Duration") {
		t.Fatalf("20h should meet the default 12h minimum: %v", base.RequirementsMissing)
	}

	req := &domain.InstitutionRequirements{MinDurationHours: 30}
	strict := newTestAssessor().Assess(cred, prog, req)
	found := false
	for _, m := range strict.RequirementsMissing {
		if strings.Contains(m, "Duration") {
			found = true
		}
	}
	if !found {
		t.Errorf("institution minimum of 30h should fail a 20h credential: %v", strict.RequirementsMissing)
	}
}

func TestRecommendCredits(t *testing.T) {
	cases := []struct {
		name       string
		duration   float64
		programCap float64
		confidence float64
		want       float64
	}{
		{"rounds to half", 40, 0, 1.0, 2.5},
		{"rounds down", 20, 24, 0.9, 1.0},
		{"capped by program", 600, 10, 1.0, 10},
		{"zero cap means uncapped", 600, 0, 1.0, 40},
		{"zero confidence", 40, 24, 0, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := recommendCredits(tc.duration, tc.programCap, tc.confidence); got != tc.want {
				t.Errorf("recommendCredits(%g, %g, %g) = %g, want %g",
					tc.duration, tc.programCap, tc.confidence, got, tc.want)
			}
		})
	}
}

func TestDecide_PriorityOrder(t *testing.T) {
	missing := []string{"m"}
	conditions := []string{"c"}

	cases := []struct {
		name       string
		confidence float64
		missing    []string
		conditions []string
		want       Decision
	}{
		{"high confidence clean", 0.85, nil, nil, Approved},
		{"high confidence with conditions", 0.85, nil, conditions, Approved},
		{"high confidence but missing", 0.85, missing, conditions, Conditional},
		{"mid confidence clean", 0.65, nil, nil, Approved},
		{"mid confidence with conditions", 0.65, missing, conditions, Conditional},
		{"mid confidence too many missing", 0.65, []string{"a", "b"}, nil, ReviewRequired},
		{"low confidence", 0.45, missing, nil, ReviewRequired},
		{"floor", 0.2, missing, nil, Denied},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := decide(tc.confidence, tc.missing, tc.conditions); got != tc.want {
				t.Errorf("decide(%g, %d missing, %d conditions) = %s, want %s",
					tc.confidence, len(tc.missing), len(tc.conditions), got, tc.want)
			}
		})
	}
}
