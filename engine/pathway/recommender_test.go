package pathway

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/PathwaysAI/pathways-mvp/engine/domain"
	"github.com/PathwaysAI/pathways-mvp/engine/vecindex"
)

// --- Mocks ---

// keywordProvider maps texts onto a 2-d space by keyword so tests can
// predict similarities exactly.
type keywordProvider struct{}

func (keywordProvider) Embed(_ context.Context, texts []string, _ int) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, t := range texts {
		switch {
		case strings.Contains(t, "networking"):
			out[i] = []float64{1, 0}
		case strings.Contains(t, "cooking"):
			out[i] = []float64{0, 1}
		default:
			out[i] = []float64{1, 1}
		}
	}
	return out, nil
}
func (keywordProvider) Dimension() int { return 2 }

type failingProvider struct{}

func (failingProvider) Embed(context.Context, []string, int) ([][]float64, error) {
	return nil, errors.New("backend down")
}
func (failingProvider) Dimension() int { return 2 }

// stubIndex serves canned hits so ranking behavior can be tested directly.
type stubIndex struct {
	hits     []vecindex.Hit
	size     int
	lastTopK int
	cleared  bool
}

func (s *stubIndex) Search(_ []float64, topK int, _ vecindex.SearchOpts) ([]vecindex.Hit, error) {
	s.lastTopK = topK
	return s.hits, nil
}
func (s *stubIndex) InsertBatch([][]float64, []vecindex.Metadata, []string) ([]string, error) {
	return nil, nil
}
func (s *stubIndex) Clear()    { s.cleared = true }
func (s *stubIndex) Size() int { return s.size }

type stubEnricher struct {
	names map[string]string
	err   error
}

func (s *stubEnricher) InstitutionName(_ context.Context, id string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.names[id], nil
}

func hit(id string, sim float64, meta vecindex.Metadata) vecindex.Hit {
	return vecindex.Hit{ID: id, Similarity: sim, Meta: meta}
}

// --- Tests ---

func trainedRecommender(t *testing.T) (*Recommender, *vecindex.Index) {
	t.Helper()
	idx, err := vecindex.NewIndex(2)
	if err != nil {
		t.Fatalf("NewIndex: %v", err)
	}
	r := New(keywordProvider{}, idx, nil, nil)

	examples := []domain.TrainingExample{
		{
			PathwayID: "pw-net", ProgramID: "prog-net",
			InstitutionID: "inst-a", InstitutionName: "Alpha Institute",
			Title: "networking diploma pathway", Level: "diploma",
			Subject: "networking", Credits: 24,
		},
		{
			PathwayID: "pw-cook", ProgramID: "prog-cook",
			InstitutionID: "inst-a", Title: "cooking certificate",
		},
		{
			PathwayID: "pw-mixed", ProgramID: "prog-mixed",
			InstitutionID: "inst-b", Title: "general studies",
		},
	}
	if err := r.Train(context.Background(), examples); err != nil {
		t.Fatalf("Train: %v", err)
	}
	return r, idx
}

func TestRecommend_EmptyIndexPlaceholders(t *testing.T) {
	idx, _ := vecindex.NewIndex(2)
	r := New(keywordProvider{}, idx, nil, nil)

	res, err := r.Recommend(context.Background(), domain.MicroCredential{ID: "mc-1"}, RecommendOpts{TopK: 5, MinSimilarity: 0.5})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if !res.Placeholder {
		t.Error("Placeholder flag not set")
	}
	if len(res.Recommendations) != 3 {
		t.Fatalf("expected 3 placeholders, got %d", len(res.Recommendations))
	}
	wantConf := []float64{0.85, 0.75, 0.65}
	wantCredits := []float64{3, 2, 2}
	for i, rec := range res.Recommendations {
		if math.Abs(rec.Confidence-wantConf[i]) > 1e-9 {
			t.Errorf("placeholder %d confidence = %v, want %v", i, rec.Confidence, wantConf[i])
		}
		if rec.Similarity != rec.Confidence {
			t.Errorf("placeholder %d similarity = %v", i, rec.Similarity)
		}
		if rec.TransferCredits != wantCredits[i] {
			t.Errorf("placeholder %d credits = %v", i, rec.TransferCredits)
		}
		if rec.PathwayID != fmt.Sprintf("pathway_%d", i+1) || rec.TargetProgramID != fmt.Sprintf("program_%d", i+1) {
			t.Errorf("placeholder %d ids = %s/%s", i, rec.PathwayID, rec.TargetProgramID)
		}
		if rec.InstitutionName != fmt.Sprintf("Institution %d", i+1) {
			t.Errorf("placeholder %d institution = %s", i, rec.InstitutionName)
		}
	}

	// A smaller topK bounds the placeholder set too.
	res, _ = r.Recommend(context.Background(), domain.MicroCredential{}, RecommendOpts{TopK: 2, MinSimilarity: 0.5})
	if len(res.Recommendations) != 2 {
		t.Errorf("topK=2 placeholders = %d", len(res.Recommendations))
	}

	// Placeholders still come back when the provider is down.
	r = New(failingProvider{}, idx, nil, nil)
	if _, err := r.Recommend(context.Background(), domain.MicroCredential{}, RecommendOpts{TopK: 3, MinSimilarity: 0.5}); err != nil {
		t.Errorf("empty-index path should not embed: %v", err)
	}
}

func TestRecommend_InvalidParams(t *testing.T) {
	idx, _ := vecindex.NewIndex(2)
	r := New(keywordProvider{}, idx, nil, nil)

	if _, err := r.Recommend(context.Background(), domain.MicroCredential{}, RecommendOpts{TopK: 0, MinSimilarity: 0.5}); !errors.Is(err, domain.ErrBadTopK) {
		t.Errorf("expected ErrBadTopK, got %v", err)
	}
	if _, err := r.Recommend(context.Background(), domain.MicroCredential{}, RecommendOpts{TopK: 5, MinSimilarity: 1.5}); !errors.Is(err, domain.ErrBadSimilarity) {
		t.Errorf("expected ErrBadSimilarity, got %v", err)
	}
}

func TestRecommend_InstitutionFilter(t *testing.T) {
	r, _ := trainedRecommender(t)
	cred := domain.MicroCredential{
		ID: "mc-1", Title: "networking fundamentals",
		Level: "diploma", Subject: "networking",
	}

	res, err := r.Recommend(context.Background(), cred, RecommendOpts{
		TargetInstitutionID: "inst-a",
		TopK:                5,
		MinSimilarity:       0.5,
	})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if res.Placeholder {
		t.Error("trained index should not be in placeholder mode")
	}
	// Only pw-net survives: pw-cook is orthogonal to the query, pw-mixed
	// belongs to inst-b.
	if len(res.Recommendations) != 1 {
		t.Fatalf("expected 1 recommendation, got %d: %+v", len(res.Recommendations), res.Recommendations)
	}
	rec := res.Recommendations[0]
	if rec.PathwayID != "pw-net" || rec.TargetProgramID != "prog-net" {
		t.Errorf("ids = %s/%s", rec.PathwayID, rec.TargetProgramID)
	}
	if rec.Similarity < 0.999 {
		t.Errorf("similarity = %v", rec.Similarity)
	}
	if rec.Confidence != 1.0 {
		t.Errorf("boosted confidence should clamp to 1.0, got %v", rec.Confidence)
	}
	if rec.TransferCredits != 24 {
		t.Errorf("credits = %v", rec.TransferCredits)
	}
	if rec.InstitutionName != "Alpha Institute" {
		t.Errorf("institution = %s", rec.InstitutionName)
	}
}

func TestRecommend_SortedByConfidence(t *testing.T) {
	// rec-boosted has lower similarity but level+subject boosts push its
	// confidence past rec-plain.
	idx := &stubIndex{
		size: 2,
		hits: []vecindex.Hit{
			hit("rec-plain", 0.70, vecindex.Metadata{"program_id": "p1"}),
			hit("rec-boosted", 0.68, vecindex.Metadata{
				"program_id": "p2", "level": "diploma", "subject": "networking",
			}),
		},
	}
	r := New(keywordProvider{}, idx, nil, nil)
	cred := domain.MicroCredential{ID: "mc", Title: "networking", Level: "diploma", Subject: "networking"}

	res, err := r.Recommend(context.Background(), cred, RecommendOpts{TopK: 5, MinSimilarity: 0.5})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if len(res.Recommendations) != 2 {
		t.Fatalf("got %d recommendations", len(res.Recommendations))
	}
	if res.Recommendations[0].PathwayID != "rec-boosted" {
		t.Errorf("order = %s, %s; want rec-boosted first",
			res.Recommendations[0].PathwayID, res.Recommendations[1].PathwayID)
	}
	if idx.lastTopK != 10 {
		t.Errorf("search should over-fetch 2x, asked for %d", idx.lastTopK)
	}
}

func TestRecommend_EarlyStop(t *testing.T) {
	idx := &stubIndex{
		size: 3,
		hits: []vecindex.Hit{
			hit("first", 0.9, vecindex.Metadata{"program_id": "p1"}),
			hit("second", 0.8, vecindex.Metadata{"program_id": "p2"}),
			hit("third", 0.7, vecindex.Metadata{"program_id": "p3"}),
		},
	}
	r := New(keywordProvider{}, idx, nil, nil)

	res, err := r.Recommend(context.Background(), domain.MicroCredential{Title: "networking"}, RecommendOpts{TopK: 1, MinSimilarity: 0.5})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if len(res.Recommendations) != 1 || res.Recommendations[0].PathwayID != "first" {
		t.Errorf("recommendations = %+v", res.Recommendations)
	}
}

func TestRecommend_EmbedFailureSurfaces(t *testing.T) {
	idx := &stubIndex{size: 1}
	r := New(failingProvider{}, idx, nil, nil)
	if _, err := r.Recommend(context.Background(), domain.MicroCredential{Title: "x"}, RecommendOpts{TopK: 5, MinSimilarity: 0.5}); err == nil {
		t.Fatal("expected embed error")
	}
}

func TestRecommend_EnricherFillsMissingNames(t *testing.T) {
	idx := &stubIndex{
		size: 2,
		hits: []vecindex.Hit{
			hit("a", 0.9, vecindex.Metadata{"program_id": "p1", "institution_id": "inst-a", "institution_name": ""}),
			hit("b", 0.8, vecindex.Metadata{"program_id": "p2", "institution_id": "inst-b", "institution_name": "Already Set"}),
		},
	}
	enricher := &stubEnricher{names: map[string]string{"inst-a": "Alpha Institute"}}
	r := New(keywordProvider{}, idx, enricher, nil)

	res, err := r.Recommend(context.Background(), domain.MicroCredential{Title: "networking"}, RecommendOpts{TopK: 5, MinSimilarity: 0.5})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if res.Recommendations[0].InstitutionName != "Alpha Institute" {
		t.Errorf("enriched name = %q", res.Recommendations[0].InstitutionName)
	}
	if res.Recommendations[1].InstitutionName != "Already Set" {
		t.Errorf("existing name overwritten: %q", res.Recommendations[1].InstitutionName)
	}

	// Lookup failures leave the name empty instead of failing the request.
	r = New(keywordProvider{}, idx, &stubEnricher{err: errors.New("graph down")}, nil)
	res, err = r.Recommend(context.Background(), domain.MicroCredential{Title: "networking"}, RecommendOpts{TopK: 5, MinSimilarity: 0.5})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if res.Recommendations[0].InstitutionName != "" {
		t.Errorf("failed lookup should leave name empty, got %q", res.Recommendations[0].InstitutionName)
	}
}

func TestTrain_ZeroExamples(t *testing.T) {
	idx, _ := vecindex.NewIndex(2)
	idx.Insert([]float64{1, 0}, nil, "stale")
	r := New(keywordProvider{}, idx, nil, nil)

	if err := r.Train(context.Background(), nil); err != nil {
		t.Fatalf("Train: %v", err)
	}
	if idx.Size() != 0 {
		t.Errorf("train should clear stale records, size = %d", idx.Size())
	}
}

func TestTrain_DefaultsAndMetadata(t *testing.T) {
	idx, _ := vecindex.NewIndex(2)
	r := New(keywordProvider{}, idx, nil, nil)

	examples := []domain.TrainingExample{
		{ProgramID: "prog-1", Title: "networking diploma", Credits: 12},
		{PathwayID: "custom", ProgramID: "prog-2", Title: "cooking"},
	}
	if err := r.Train(context.Background(), examples); err != nil {
		t.Fatalf("Train: %v", err)
	}
	if idx.Size() != 2 {
		t.Fatalf("size = %d", idx.Size())
	}

	// Absent pathway ids default to their example position.
	_, meta, ok := idx.Get("pathway_0")
	if !ok {
		t.Fatal("pathway_0 missing")
	}
	if pid, _ := meta.Str("program_id"); pid != "prog-1" {
		t.Errorf("program_id = %s", pid)
	}
	if credits, _ := meta.Float("credits"); credits != 12 {
		t.Errorf("credits = %v", credits)
	}
	if _, _, ok := idx.Get("custom"); !ok {
		t.Error("explicit pathway id not used")
	}
}

func TestTrain_EmbedFailure(t *testing.T) {
	idx, _ := vecindex.NewIndex(2)
	r := New(failingProvider{}, idx, nil, nil)
	err := r.Train(context.Background(), []domain.TrainingExample{{ProgramID: "p", Title: "t"}})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestConfidence_Boosts(t *testing.T) {
	cred := domain.MicroCredential{Level: "diploma", Subject: "data science"}

	if got := confidence(0.6, cred, "diploma", "data science"); math.Abs(got-0.759) > 1e-9 {
		t.Errorf("both boosts: %v, want 0.759", got)
	}
	if got := confidence(0.6, cred, "degree", "data science"); math.Abs(got-0.69) > 1e-9 {
		t.Errorf("subject boost only: %v, want 0.69", got)
	}
	if got := confidence(0.6, cred, "diploma", ""); math.Abs(got-0.66) > 1e-9 {
		t.Errorf("level boost only: %v, want 0.66", got)
	}
	if got := confidence(0.6, domain.MicroCredential{}, "diploma", "data science"); got != 0.6 {
		t.Errorf("no boost when credential fields absent: %v", got)
	}
	if got := confidence(0.95, cred, "diploma", "data science"); got != 1.0 {
		t.Errorf("clamp: %v", got)
	}
	if got := confidence(0.6, cred, "DIPLOMA", "data science"); math.Abs(got-0.759) > 1e-9 {
		t.Errorf("level match should be case-insensitive: %v", got)
	}
}

func TestReasoning_Bands(t *testing.T) {
	cred := domain.MicroCredential{Level: "diploma", Subject: "networking"}

	high := reasoning(0.85, cred, "diploma", "networking")
	if !strings.HasPrefix(high, "High semantic similarity") {
		t.Errorf("high band: %q", high)
	}
	if !strings.Contains(high, "Matching credential level (diploma)") {
		t.Errorf("missing level clause: %q", high)
	}
	if !strings.Contains(high, "Aligned subject areas") {
		t.Errorf("missing subject clause: %q", high)
	}
	if !strings.HasSuffix(high, ".") {
		t.Errorf("missing terminal period: %q", high)
	}

	mid := reasoning(0.7, domain.MicroCredential{}, "", "")
	if mid != "Moderate alignment in program objectives and outcomes." {
		t.Errorf("mid band: %q", mid)
	}
	low := reasoning(0.5, domain.MicroCredential{}, "", "")
	if low != "Some overlap in subject matter and skills." {
		t.Errorf("low band: %q", low)
	}
}
