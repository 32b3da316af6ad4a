package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

func TestEmbedSendsModelAndPrompt(t *testing.T) {
	var gotPath string
	var gotReq embedRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		json.NewEncoder(w).Encode(embedResponse{Embedding: []float64{0.1, 0.2, 0.3}})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "all-minilm", 3, zap.NewNop())
	vec, err := client.Embed(context.Background(), "Subject: hi\n\nbody")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}

	if gotPath != "/api/embeddings" {
		t.Errorf("path = %q", gotPath)
	}
	if gotReq.Model != "all-minilm" || gotReq.Prompt != "Subject: hi\n\nbody" {
		t.Errorf("request = %+v", gotReq)
	}
	if len(vec) != 3 || vec[1] != float32(0.2) {
		t.Errorf("vector = %v", vec)
	}
}

func TestEmbedNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "all-minilm", 3, zap.NewNop())
	if _, err := client.Embed(context.Background(), "text"); err == nil {
		t.Error("expected error for 500 response")
	}
}

func TestEmbedEmptyEmbedding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(embedResponse{})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "all-minilm", 3, zap.NewNop())
	if _, err := client.Embed(context.Background(), "text"); err == nil {
		t.Error("expected error for empty embedding")
	}
}

func TestEmbedServerUnreachable(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", "all-minilm", 3, zap.NewNop())
	if _, err := client.Embed(context.Background(), "text"); err == nil {
		t.Error("expected error for unreachable server")
	}
}
