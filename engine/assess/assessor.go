// Package assess implements the credit-assessment rules engine: five
// independent checks over a (credential, program) pair rolled up into a
// confidence score, a decision, and a recommended credit value.
package assess

import (
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/PathwaysAI/pathways-mvp/engine/domain"
	"github.com/PathwaysAI/pathways-mvp/engine/textnorm"
)

// Decision is the assessment outcome category.
type Decision string

const (
	Approved       Decision = "approved"
	Conditional    Decision = "conditional"
	Denied         Decision = "denied"
	ReviewRequired Decision = "review_required"
)

// Assessment is the full result of one credit assessment.
type Assessment struct {
	Decision            Decision `json:"result"`
	Confidence          float64  `json:"confidence_score"`
	RecommendedCredits  float64  `json:"recommended_credits"`
	Reasoning           string   `json:"reasoning"`
	RequirementsMet     []string `json:"requirements_met"`
	RequirementsMissing []string `json:"requirements_missing"`
	Conditions          []string `json:"conditions,omitempty"`
}

// checkResult is one check's contribution: whether the requirement is met,
// a score in [0,1], and a human-readable message.
type checkResult struct {
	met     bool
	score   float64
	message string
}

// Assessor runs the rule table. It is stateless and safe for concurrent use.
type Assessor struct {
	rules  Rules
	logger *slog.Logger
}

// New creates an Assessor over the given rule table.
func New(rules Rules, logger *slog.Logger) *Assessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assessor{rules: rules, logger: logger}
}

// Assess evaluates credit eligibility for a micro-credential against a
// target program. Institution requirements, when given, override the
// corresponding rule thresholds for this call only.
func (a *Assessor) Assess(cred domain.MicroCredential, prog domain.Program, req *domain.InstitutionRequirements) Assessment {
	rules := a.rules.withOverrides(req)

	a.logger.Info("assessing credit",
		slog.String("credential_id", cred.ID),
		slog.String("program_id", prog.ID))

	duration := checkDuration(cred, rules)
	outcomes := checkOutcomes(cred, prog, rules)
	content := checkContent(cred, prog, rules)
	rigor := checkRigor(cred, rules)
	level := checkLevel(cred, prog, rules)

	var met, missing, conditions []string
	for _, c := range []checkResult{duration, outcomes, content} {
		if c.met {
			met = append(met, c.message)
		} else {
			missing = append(missing, c.message)
		}
	}
	// Rigor gaps are conditionally waivable, never blocking.
	if rigor.met {
		met = append(met, rigor.message)
	} else {
		conditions = append(conditions, rigor.message)
	}
	if level.met {
		met = append(met, level.message)
	} else {
		missing = append(missing, level.message)
	}

	confidence := (duration.score + outcomes.score + content.score + rigor.score + level.score) / 5

	decision := decide(confidence, missing, conditions)
	credits := recommendCredits(cred.DurationHours, prog.Credits, confidence)

	return Assessment{
		Decision:            decision,
		Confidence:          confidence,
		RecommendedCredits:  credits,
		Reasoning:           reasoning(decision, confidence, met, missing),
		RequirementsMet:     met,
		RequirementsMissing: missing,
		Conditions:          conditions,
	}
}

func checkDuration(cred domain.MicroCredential, rules Rules) checkResult {
	met := cred.DurationHours >= rules.MinDurationHours
	qualifier := "below"
	if met {
		qualifier = "meets"
	}
	return checkResult{
		met:   met,
		score: math.Min(cred.DurationHours/rules.MinDurationHours, 1.0),
		message: fmt.Sprintf("Duration: %g hours (%s minimum %g hours)",
			cred.DurationHours, qualifier, rules.MinDurationHours),
	}
}

func checkOutcomes(cred domain.MicroCredential, prog domain.Program, rules Rules) checkResult {
	if len(cred.LearningOutcomes) == 0 || len(prog.LearningOutcomes) == 0 {
		return checkResult{message: "Insufficient learning outcomes data for comparison"}
	}
	sim := textnorm.LexicalSimilarity(
		strings.Join(cred.LearningOutcomes, " "),
		strings.Join(prog.LearningOutcomes, " "),
	)
	met := sim >= rules.MinOutcomeOverlap
	qualifier := "insufficient"
	if met {
		qualifier = "sufficient"
	}
	return checkResult{
		met:     met,
		score:   sim,
		message: fmt.Sprintf("Learning outcomes overlap: %.2f (%s)", sim, qualifier),
	}
}

func checkContent(cred domain.MicroCredential, prog domain.Program, rules Rules) checkResult {
	credDesc := textnorm.Clean(cred.Description)
	progDesc := textnorm.Clean(prog.Description)
	if credDesc == "" || progDesc == "" {
		return checkResult{message: "Insufficient content for comparison"}
	}
	sim := textnorm.LexicalSimilarity(credDesc, progDesc)
	met := sim >= rules.MinContentSimilarity
	qualifier := "insufficient"
	if met {
		qualifier = "adequate"
	}
	return checkResult{
		met:     met,
		score:   sim,
		message: fmt.Sprintf("Content similarity: %.2f (%s)", sim, qualifier),
	}
}

func checkRigor(cred domain.MicroCredential, rules Rules) checkResult {
	if len(cred.AssessmentMethods) == 0 {
		return checkResult{message: "No assessment methods specified"}
	}
	joined := strings.ToLower(strings.Join(cred.AssessmentMethods, " "))
	rigorous := false
	for _, kw := range rules.RigorousMethods {
		if strings.Contains(joined, strings.ToLower(kw)) {
			rigorous = true
			break
		}
	}
	score := 0.5
	qualifier := "may require additional validation"
	if rigorous {
		score = 1.0
		qualifier = "rigorous"
	}
	return checkResult{
		met:     rigorous,
		score:   score,
		message: fmt.Sprintf("Assessment methods: %s (%s)", strings.Join(cred.AssessmentMethods, ", "), qualifier),
	}
}

func checkLevel(cred domain.MicroCredential, prog domain.Program, rules Rules) checkResult {
	credLevel, credOK := rules.LevelOrder[strings.ToLower(cred.Level)]
	progLevel, progOK := rules.LevelOrder[strings.ToLower(prog.Level)]
	// Absent or unmapped levels get the benefit of the doubt.
	if !credOK || !progOK {
		return checkResult{met: true, score: 0.5, message: "Level information not available"}
	}

	compatible := credLevel <= progLevel
	score := 0.5
	qualifier := "may require review"
	if compatible {
		score = 1.0
		qualifier = "compatible"
	}
	return checkResult{
		met:   compatible,
		score: score,
		message: fmt.Sprintf("Level compatibility: %s -> %s (%s)",
			strings.ToLower(cred.Level), strings.ToLower(prog.Level), qualifier),
	}
}

// decide picks the outcome; branches are evaluated in priority order and
// the first match wins.
func decide(confidence float64, missing, conditions []string) Decision {
	switch {
	case confidence >= 0.8 && len(missing) == 0:
		return Approved
	case confidence >= 0.6 && len(missing) <= 1:
		if len(conditions) > 0 {
			return Conditional
		}
		return Approved
	case confidence >= 0.4:
		return ReviewRequired
	default:
		return Denied
	}
}

// recommendCredits converts duration to credits at 15 hours per credit,
// scales by confidence, rounds to the nearest 0.5, and caps at the
// program's declared ceiling when one is set.
func recommendCredits(durationHours, programCredits, confidence float64) float64 {
	credits := math.Round(durationHours/15.0*confidence*2) / 2
	if programCredits > 0 {
		credits = math.Min(credits, programCredits)
	}
	return credits
}

func reasoning(decision Decision, confidence float64, met, missing []string) string {
	var parts []string
	switch decision {
	case Approved:
		parts = append(parts, fmt.Sprintf(
			"Assessment approved with %.2f confidence. All key requirements are satisfied.", confidence))
	case Conditional:
		parts = append(parts, fmt.Sprintf(
			"Conditional approval with %.2f confidence. Additional validation may be required.", confidence))
	case ReviewRequired:
		parts = append(parts, fmt.Sprintf(
			"Manual review recommended (%.2f confidence). Some requirements need further evaluation.", confidence))
	default:
		parts = append(parts, fmt.Sprintf(
			"Assessment denied (%.2f confidence). Insufficient alignment with target program requirements.", confidence))
	}
	if len(met) > 0 {
		parts = append(parts, "Met: "+strings.Join(firstN(met, 2), ", "))
	}
	if len(missing) > 0 {
		parts = append(parts, "Missing: "+strings.Join(firstN(missing, 2), ", "))
	}
	return strings.Join(parts, " ")
}

func firstN(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	return items[:n]
}
