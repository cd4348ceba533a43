package pathway

import (
	"fmt"
	"strings"

	"github.com/PathwaysAI/pathways-mvp/engine/domain"
)

const placeholderReasoning = "Mock recommendation based on general subject alignment and credential level compatibility."

// reasoning renders the fixed explanation template: a similarity band
// sentence plus optional level and subject match clauses.
func reasoning(similarity float64, cred domain.MicroCredential, level, subject string) string {
	var reasons []string

	switch {
	case similarity > 0.8:
		reasons = append(reasons, "High semantic similarity in program content and learning outcomes")
	case similarity > 0.6:
		reasons = append(reasons, "Moderate alignment in program objectives and outcomes")
	default:
		reasons = append(reasons, "Some overlap in subject matter and skills")
	}

	if levelsMatch(cred.Level, level) {
		reasons = append(reasons, fmt.Sprintf("Matching credential level (%s)", cred.Level))
	}
	if subjectsAligned(cred.Subject, subject) {
		reasons = append(reasons, "Aligned subject areas")
	}

	return strings.Join(reasons, ". ") + "."
}

// placeholders is the deterministic degraded-mode result set used when the
// index holds no records: at most three synthetic entries with descending
// confidence.
func placeholders(topK int) []Recommendation {
	n := min(topK, 3)
	recs := make([]Recommendation, n)
	for i := 0; i < n; i++ {
		conf := 0.85 - float64(i)*0.1
		credits := 2.0
		if i == 0 {
			credits = 3.0
		}
		recs[i] = Recommendation{
			PathwayID:       fmt.Sprintf("pathway_%d", i+1),
			TargetProgramID: fmt.Sprintf("program_%d", i+1),
			Confidence:      conf,
			Reasoning:       placeholderReasoning,
			Similarity:      conf,
			TransferCredits: credits,
			InstitutionName: fmt.Sprintf("Institution %d", i+1),
		}
	}
	return recs
}
