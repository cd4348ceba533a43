package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOllamaClient_Embed(t *testing.T) {
	var prompts []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req ollamaEmbedReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		prompts = append(prompts, req.Prompt)
		// Vector encodes the request index so order can be asserted.
		vec := []float64{float64(len(prompts)), 0, 0}
		json.NewEncoder(w).Encode(ollamaEmbedResp{Embedding: vec})
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL, "nomic-embed-text", 3, 0)
	vecs, err := c.Embed(context.Background(), []string{"first", "second"}, 10)
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vecs) != 2 {
		t.Fatalf("expected 2 vectors, got %d", len(vecs))
	}
	if vecs[0][0] != 1 || vecs[1][0] != 2 {
		t.Errorf("order not preserved: %v", vecs)
	}
	if prompts[0] != "first" || prompts[1] != "second" {
		t.Errorf("prompts = %v", prompts)
	}
}

func TestOllamaClient_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL, "missing", 3, 0)
	if _, err := c.Embed(context.Background(), []string{"x"}, 0); err == nil {
		t.Fatal("expected error on non-200 status")
	}
}

func TestOllamaClient_DimensionMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(ollamaEmbedResp{Embedding: []float64{1, 2}})
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL, "m", 3, 0)
	if _, err := c.Embed(context.Background(), []string{"x"}, 0); err == nil {
		t.Fatal("expected error when model dimension disagrees with configuration")
	}
}

func TestOllamaClient_Unreachable(t *testing.T) {
	c := NewOllamaClient("http://127.0.0.1:1", "m", 3, 0)
	if _, err := c.Embed(context.Background(), []string{"x"}, 0); err == nil {
		t.Fatal("expected transport error")
	}
}
