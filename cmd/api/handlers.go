package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PathwaysAI/pathways-mvp/engine/assess"
	"github.com/PathwaysAI/pathways-mvp/engine/domain"
	"github.com/PathwaysAI/pathways-mvp/engine/embedding"
	"github.com/PathwaysAI/pathways-mvp/engine/graph"
	"github.com/PathwaysAI/pathways-mvp/engine/pathway"
	"github.com/PathwaysAI/pathways-mvp/engine/textnorm"
	"github.com/PathwaysAI/pathways-mvp/engine/vecindex"
	"github.com/PathwaysAI/pathways-mvp/pkg/fn"
	"github.com/PathwaysAI/pathways-mvp/pkg/metrics"
)

const (
	defaultTopK     = 5
	batchWorkers    = 8
	maxBatchSize    = 100
	maxEmbedBatch   = 256
	defaultMinScore = 0.0
)

// vectorBackend is the index surface the handlers need; satisfied by both
// the in-memory vecindex.Index and the qdrant adapter.
type vectorBackend interface {
	pathway.Index
	Insert(vector []float64, meta vecindex.Metadata, id string) (string, error)
}

// api bundles the wired services behind the HTTP handlers. mem is non-nil
// only when the in-memory backend is selected; file persistence is bound
// to it.
type api struct {
	assessor    *assess.Assessor
	recommender *pathway.Recommender
	index       vectorBackend
	mem         *vecindex.Index
	provider    embedding.Provider
	graph       *graph.Store
	metrics     *metrics.Registry
	storePath   string
	logger      *slog.Logger
}

func (a *api) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"index_size": a.index.Size(),
	})
}

// AssessRequest is the JSON body for POST /api/v1/assessment/assess.
type AssessRequest struct {
	Credential   domain.MicroCredential          `json:"credential"`
	Program      domain.Program                  `json:"program"`
	Requirements *domain.InstitutionRequirements `json:"institution_requirements,omitempty"`
}

func (a *api) handleAssess(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req AssessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}
	if err := domain.ValidateCredential(req.Credential); err != nil {
		a.respondError(w, err)
		return
	}
	if err := domain.ValidateProgram(req.Program); err != nil {
		a.respondError(w, err)
		return
	}

	result := a.assessor.Assess(req.Credential, req.Program, req.Requirements)

	a.metrics.Counter(metrics.WithLabels("assessments_total", "result", string(result.Decision)), "Completed assessments by decision.").Inc()
	a.metrics.Histogram("assessment_duration_seconds", "Assessment latency.", nil).Since(start)
	respondJSON(w, http.StatusOK, result)
}

// BatchAssessRequest is the JSON body for POST /api/v1/assessment/assess-batch.
type BatchAssessRequest struct {
	Items []AssessRequest `json:"items"`
}

// BatchAssessItem is one entry of the batch response; exactly one of
// Assessment or Error is set.
type BatchAssessItem struct {
	Assessment *assess.Assessment `json:"assessment,omitempty"`
	Error      string             `json:"error,omitempty"`
}

func (a *api) handleAssessBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchAssessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}
	if len(req.Items) == 0 {
		http.Error(w, `{"error":"items is required"}`, http.StatusBadRequest)
		return
	}
	if len(req.Items) > maxBatchSize {
		http.Error(w, `{"error":"too many items in one batch"}`, http.StatusBadRequest)
		return
	}

	results := fn.ParMap(req.Items, batchWorkers, func(item AssessRequest) BatchAssessItem {
		if err := domain.ValidateCredential(item.Credential); err != nil {
			return BatchAssessItem{Error: err.Error()}
		}
		if err := domain.ValidateProgram(item.Program); err != nil {
			return BatchAssessItem{Error: err.Error()}
		}
		result := a.assessor.Assess(item.Credential, item.Program, item.Requirements)
		return BatchAssessItem{Assessment: &result}
	})

	respondJSON(w, http.StatusOK, map[string]any{
		"results": results,
		"count":   len(results),
	})
}

// RecommendRequest is the JSON body for POST /api/v1/recommendations/recommend.
type RecommendRequest struct {
	Credential          domain.MicroCredential `json:"credential"`
	TargetInstitutionID string                 `json:"target_institution_id,omitempty"`
	Profile             *domain.StudentProfile `json:"student_profile,omitempty"`
	TopK                int                    `json:"top_k,omitempty"`
	MinSimilarity       float64                `json:"min_similarity,omitempty"`
}

func (a *api) handleRecommend(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req RecommendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}
	if err := domain.ValidateCredential(req.Credential); err != nil {
		a.respondError(w, err)
		return
	}
	if req.TopK == 0 {
		req.TopK = defaultTopK
	}

	result, err := a.recommender.Recommend(r.Context(), req.Credential, pathway.RecommendOpts{
		TargetInstitutionID: req.TargetInstitutionID,
		Profile:             req.Profile,
		TopK:                req.TopK,
		MinSimilarity:       req.MinSimilarity,
	})
	if err != nil {
		a.respondError(w, err)
		return
	}

	a.metrics.Counter("recommendations_total", "Completed recommendation requests.").Inc()
	a.metrics.Histogram("recommendation_duration_seconds", "Recommendation latency.", nil).Since(start)
	respondJSON(w, http.StatusOK, map[string]any{
		"recommendations": result.Recommendations,
		"placeholder":     result.Placeholder,
		"count":           len(result.Recommendations),
	})
}

// TrainRequest is the JSON body for POST /api/v1/recommendations/train.
type TrainRequest struct {
	Examples []domain.TrainingExample `json:"examples"`
}

func (a *api) handleTrain(w http.ResponseWriter, r *http.Request) {
	var req TrainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}
	for _, ex := range req.Examples {
		if err := domain.ValidateExample(ex); err != nil {
			a.respondError(w, err)
			return
		}
	}

	if err := a.recommender.Train(r.Context(), req.Examples); err != nil {
		a.respondError(w, err)
		return
	}
	if a.graph != nil {
		if err := a.graph.ImportExamples(r.Context(), req.Examples); err != nil {
			a.logger.Error("graph import failed", "err", err)
		}
	}
	if a.mem != nil && a.storePath != "" {
		if err := a.mem.SaveFile(a.storePath); err != nil {
			a.logger.Error("persist index after train", "err", err)
		}
	}

	a.metrics.Gauge("index_size", "Records in the vector index.").Set(int64(a.index.Size()))
	respondJSON(w, http.StatusOK, map[string]any{
		"status":  "trained",
		"indexed": a.index.Size(),
	})
}

// EmbedRequest is the JSON body for POST /api/v1/similarity/embed.
type EmbedRequest struct {
	Texts []string `json:"texts"`
}

func (a *api) handleEmbed(w http.ResponseWriter, r *http.Request) {
	var req EmbedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}
	if len(req.Texts) == 0 {
		http.Error(w, `{"error":"texts is required"}`, http.StatusBadRequest)
		return
	}
	if len(req.Texts) > maxEmbedBatch {
		http.Error(w, `{"error":"too many texts in one request"}`, http.StatusBadRequest)
		return
	}

	vecs, err := a.provider.Embed(r.Context(), req.Texts, embedding.DefaultBatchSize)
	if err != nil {
		a.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"embeddings": vecs,
		"dimension":  a.provider.Dimension(),
		"count":      len(vecs),
	})
}

// SearchRequest is the JSON body for POST /api/v1/similarity/search.
type SearchRequest struct {
	Text          string         `json:"text"`
	TopK          int            `json:"top_k,omitempty"`
	MinSimilarity float64        `json:"min_similarity,omitempty"`
	Filters       map[string]any `json:"filters,omitempty"`
}

func (a *api) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}
	if req.Text == "" {
		http.Error(w, `{"error":"text is required"}`, http.StatusBadRequest)
		return
	}
	if req.TopK == 0 {
		req.TopK = defaultTopK
	}
	if err := domain.ValidateSearchParams(req.TopK, req.MinSimilarity); err != nil {
		a.respondError(w, err)
		return
	}

	vecs, err := a.provider.Embed(r.Context(), []string{req.Text}, embedding.DefaultBatchSize)
	if err != nil {
		a.respondError(w, err)
		return
	}

	opts := vecindex.SearchOpts{Filter: req.Filters}
	if req.MinSimilarity > defaultMinScore {
		opts.Threshold = &req.MinSimilarity
	}
	hits, err := a.index.Search(vecs[0], req.TopK, opts)
	if err != nil {
		a.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"results": hits,
		"count":   len(hits),
	})
}

// IndexRequest is the JSON body for POST /api/v1/similarity/index.
type IndexRequest struct {
	ID       string         `json:"id,omitempty"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func (a *api) handleIndex(w http.ResponseWriter, r *http.Request) {
	var req IndexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}
	if req.Text == "" {
		http.Error(w, `{"error":"text is required"}`, http.StatusBadRequest)
		return
	}

	vecs, err := a.provider.Embed(r.Context(), []string{req.Text}, embedding.DefaultBatchSize)
	if err != nil {
		a.respondError(w, err)
		return
	}
	meta := vecindex.Metadata(req.Metadata)
	if _, ok := meta["keywords"]; !ok {
		if kws := textnorm.Keywords(req.Text, 8); len(kws) > 0 {
			if meta == nil {
				meta = vecindex.Metadata{}
			}
			terms := fn.Map(kws, func(k textnorm.Keyword) string { return k.Term })
			meta["keywords"] = strings.Join(terms, " ")
		}
	}
	id, err := a.index.Insert(vecs[0], meta, req.ID)
	if err != nil {
		a.respondError(w, err)
		return
	}

	a.metrics.Gauge("index_size", "Records in the vector index.").Set(int64(a.index.Size()))
	respondJSON(w, http.StatusOK, map[string]any{
		"id":         id,
		"index_size": a.index.Size(),
	})
}

// handleSave persists the current index to the configured store path. Only
// the in-memory backend has file persistence; the qdrant backend is durable
// on its own.
func (a *api) handleSave(w http.ResponseWriter, _ *http.Request) {
	if a.mem == nil || a.storePath == "" {
		respondJSON(w, http.StatusConflict, map[string]string{"error": "no file-backed index configured"})
		return
	}
	if err := a.mem.SaveFile(a.storePath); err != nil {
		a.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":     "saved",
		"index_size": a.index.Size(),
	})
}

// handleLoad restores the index from the configured store path, replacing
// the in-memory contents.
func (a *api) handleLoad(w http.ResponseWriter, _ *http.Request) {
	if a.mem == nil || a.storePath == "" {
		respondJSON(w, http.StatusConflict, map[string]string{"error": "no file-backed index configured"})
		return
	}
	if err := a.mem.LoadFile(a.storePath); err != nil {
		a.respondError(w, err)
		return
	}
	a.metrics.Gauge("index_size", "Records in the vector index.").Set(int64(a.index.Size()))
	respondJSON(w, http.StatusOK, map[string]any{
		"status":     "loaded",
		"index_size": a.index.Size(),
	})
}

// RelatedRequest is the JSON body for POST /api/v1/recommendations/related.
type RelatedRequest struct {
	ProgramID string `json:"program_id"`
	Depth     int    `json:"depth,omitempty"`
}

// handleRelated walks the articulation graph for programs reachable from the
// given one. Requires a configured Neo4j connection.
func (a *api) handleRelated(w http.ResponseWriter, r *http.Request) {
	if a.graph == nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "articulation graph not configured"})
		return
	}
	var req RelatedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}
	if req.ProgramID == "" {
		http.Error(w, `{"error":"program_id is required"}`, http.StatusBadRequest)
		return
	}

	programs, err := a.graph.RelatedPrograms(r.Context(), req.ProgramID, req.Depth)
	if err != nil {
		a.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"programs": programs,
		"count":    len(programs),
	})
}

// --- Response helpers ---

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// respondError maps engine errors to HTTP statuses: validation failures are
// the caller's fault, provider outages are 503, everything else is 500.
func (a *api) respondError(w http.ResponseWriter, err error) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": ve.Error()})
	case errors.Is(err, embedding.ErrProviderUnavailable):
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "embedding provider unavailable"})
	default:
		a.logger.Error("request failed", "err", err)
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}
