// Package pathway implements the content-based pathway scorer: it embeds a
// credential's text, searches the vector index for candidate articulation
// pathways, and ranks them by a boosted confidence score.
package pathway

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/PathwaysAI/pathways-mvp/engine/domain"
	"github.com/PathwaysAI/pathways-mvp/engine/embedding"
	"github.com/PathwaysAI/pathways-mvp/engine/textnorm"
	"github.com/PathwaysAI/pathways-mvp/engine/vecindex"
)

// Index is the slice of the vector index the recommender depends on.
type Index interface {
	Search(query []float64, topK int, opts vecindex.SearchOpts) ([]vecindex.Hit, error)
	InsertBatch(vectors [][]float64, metas []vecindex.Metadata, ids []string) ([]string, error)
	Clear()
	Size() int
}

// Enricher resolves institution display names, typically from the
// articulation graph. Lookups are best-effort.
type Enricher interface {
	InstitutionName(ctx context.Context, institutionID string) (string, error)
}

// Recommendation is one ranked pathway suggestion.
type Recommendation struct {
	PathwayID       string  `json:"pathway_id"`
	TargetProgramID string  `json:"target_program_id"`
	Confidence      float64 `json:"confidence_score"`
	Reasoning       string  `json:"reasoning"`
	Similarity      float64 `json:"similarity_score"`
	TransferCredits float64 `json:"transfer_credits,omitempty"`
	InstitutionName string  `json:"institution_name,omitempty"`
}

// Result carries the ranked recommendations. Placeholder marks the degraded
// mode used when the index is empty: the entries are synthetic and callers
// must not present them as authoritative.
type Result struct {
	Recommendations []Recommendation `json:"recommendations"`
	Placeholder     bool             `json:"placeholder"`
}

// RecommendOpts are the per-request knobs for Recommend.
type RecommendOpts struct {
	TargetInstitutionID string
	Profile             *domain.StudentProfile
	TopK                int
	MinSimilarity       float64
}

// Recommender scores articulation pathways for a credential.
type Recommender struct {
	provider embedding.Provider
	index    Index
	enricher Enricher
	logger   *slog.Logger
}

// New creates a Recommender. enricher may be nil.
func New(provider embedding.Provider, index Index, enricher Enricher, logger *slog.Logger) *Recommender {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recommender{provider: provider, index: index, enricher: enricher, logger: logger}
}

// Recommend returns up to TopK pathway recommendations for a credential,
// ordered by confidence descending. An empty index yields a small
// deterministic placeholder set instead of failing.
func (r *Recommender) Recommend(ctx context.Context, cred domain.MicroCredential, opts RecommendOpts) (Result, error) {
	if err := domain.ValidateSearchParams(opts.TopK, opts.MinSimilarity); err != nil {
		return Result{}, err
	}

	r.logger.Info("generating recommendations",
		slog.String("credential_id", cred.ID),
		slog.String("institution_id", opts.TargetInstitutionID),
		slog.Int("top_k", opts.TopK))

	if r.index.Size() == 0 {
		r.logger.Warn("vector index is empty, returning placeholder recommendations")
		return Result{Recommendations: placeholders(opts.TopK), Placeholder: true}, nil
	}

	queryText := textnorm.Clean(credentialText(cred.Title, cred.Description, cred.LearningOutcomes))
	vecs, err := r.provider.Embed(ctx, []string{queryText}, embedding.DefaultBatchSize)
	if err != nil {
		return Result{}, fmt.Errorf("pathway: embed query: %w", err)
	}

	// Over-fetch 2x to leave headroom for the institution filter.
	threshold := opts.MinSimilarity
	hits, err := r.index.Search(vecs[0], opts.TopK*2, vecindex.SearchOpts{Threshold: &threshold})
	if err != nil {
		return Result{}, fmt.Errorf("pathway: search: %w", err)
	}

	recs := make([]Recommendation, 0, opts.TopK)
	for _, h := range hits {
		if opts.TargetInstitutionID != "" {
			if instID, _ := h.Meta.Str("institution_id"); instID != opts.TargetInstitutionID {
				continue
			}
		}

		level, _ := h.Meta.Str("level")
		subject, _ := h.Meta.Str("subject")
		rec := Recommendation{
			PathwayID:       h.ID,
			TargetProgramID: "unknown",
			Confidence:      confidence(h.Similarity, cred, level, subject),
			Reasoning:       reasoning(h.Similarity, cred, level, subject),
			Similarity:      h.Similarity,
		}
		if pathwayID, ok := h.Meta.Str("pathway_id"); ok && pathwayID != "" {
			rec.PathwayID = pathwayID
		}
		if programID, ok := h.Meta.Str("program_id"); ok && programID != "" {
			rec.TargetProgramID = programID
		}
		if credits, ok := h.Meta.Float("credits"); ok {
			rec.TransferCredits = credits
		}
		if name, ok := h.Meta.Str("institution_name"); ok {
			rec.InstitutionName = name
		}
		r.enrichInstitution(ctx, &rec, h.Meta)

		recs = append(recs, rec)
		if len(recs) >= opts.TopK {
			break
		}
	}

	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].Confidence > recs[j].Confidence
	})
	return Result{Recommendations: recs}, nil
}

// enrichInstitution fills a missing institution name from the articulation
// graph. Failures only log; a recommendation never dies on display data.
func (r *Recommender) enrichInstitution(ctx context.Context, rec *Recommendation, meta vecindex.Metadata) {
	if r.enricher == nil || rec.InstitutionName != "" {
		return
	}
	instID, ok := meta.Str("institution_id")
	if !ok || instID == "" {
		return
	}
	name, err := r.enricher.InstitutionName(ctx, instID)
	if err != nil {
		r.logger.Debug("institution lookup failed",
			slog.String("institution_id", instID),
			slog.String("error", err.Error()))
		return
	}
	rec.InstitutionName = name
}

// Train replaces the recommendation corpus: it clears the index, embeds one
// record per example, and batch-inserts them. Zero examples leaves an
// empty index without error.
func (r *Recommender) Train(ctx context.Context, examples []domain.TrainingExample) error {
	r.logger.Info("training recommender", slog.Int("examples", len(examples)))

	r.index.Clear()
	if len(examples) == 0 {
		return nil
	}

	texts := make([]string, len(examples))
	metas := make([]vecindex.Metadata, len(examples))
	ids := make([]string, len(examples))
	for i, ex := range examples {
		texts[i] = textnorm.Clean(credentialText(ex.Title, ex.Description, ex.LearningOutcomes))

		pathwayID := ex.PathwayID
		if pathwayID == "" {
			pathwayID = fmt.Sprintf("pathway_%d", i)
		}
		metas[i] = vecindex.Metadata{
			"pathway_id":       pathwayID,
			"program_id":       ex.ProgramID,
			"institution_id":   ex.InstitutionID,
			"institution_name": ex.InstitutionName,
			"title":            ex.Title,
			"level":            ex.Level,
			"subject":          ex.Subject,
			"credits":          ex.Credits,
		}
		ids[i] = pathwayID
	}

	vecs, err := r.provider.Embed(ctx, texts, embedding.DefaultBatchSize)
	if err != nil {
		return fmt.Errorf("pathway: embed training corpus: %w", err)
	}
	if _, err := r.index.InsertBatch(vecs, metas, ids); err != nil {
		return fmt.Errorf("pathway: index training corpus: %w", err)
	}

	r.logger.Info("training complete", slog.Int("index_size", r.index.Size()))
	return nil
}

// confidence starts at semantic similarity, boosted for matching levels and
// closely aligned subjects, clamped to 1.0.
func confidence(similarity float64, cred domain.MicroCredential, level, subject string) float64 {
	c := similarity
	if levelsMatch(cred.Level, level) {
		c *= 1.10
	}
	if subjectsAligned(cred.Subject, subject) {
		c *= 1.15
	}
	if c > 1.0 {
		c = 1.0
	}
	return c
}

func levelsMatch(a, b string) bool {
	return a != "" && b != "" && strings.EqualFold(a, b)
}

func subjectsAligned(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return textnorm.LexicalSimilarity(strings.ToLower(a), strings.ToLower(b)) > 0.7
}

// credentialText concatenates the text fields used for embedding, skipping
// absent ones.
func credentialText(title, description string, outcomes []string) string {
	parts := make([]string, 0, 2+len(outcomes))
	if title != "" {
		parts = append(parts, title)
	}
	if description != "" {
		parts = append(parts, description)
	}
	for _, o := range outcomes {
		if o != "" {
			parts = append(parts, o)
		}
	}
	return strings.Join(parts, " ")
}
