package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func ollamaTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			w.WriteHeader(http.StatusOK)
		case "/api/embeddings":
			var req embedRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("decoding embed request: %v", err)
			}
			if req.Model != "nomic-embed-text" {
				t.Errorf("embed model = %q", req.Model)
			}
			json.NewEncoder(w).Encode(embedResponse{Embedding: []float32{0.1, 0.2, 0.3}})
		case "/api/chat":
			var req chatRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("decoding chat request: %v", err)
			}
			if req.Stream {
				t.Error("chat request has streaming enabled")
			}
			if len(req.Messages) != 1 || req.Messages[0].Role != "user" {
				t.Errorf("messages = %+v", req.Messages)
			}
			json.NewEncoder(w).Encode(chatResponse{Message: chatMessage{Role: "assistant", Content: "the answer"}})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOllamaEmbed(t *testing.T) {
	srv := ollamaTestServer(t)
	c := NewOllamaClient(srv.URL, "mistral-nemo", "nomic-embed-text", 3)

	vec, err := c.Embed(context.Background(), "some text")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 3 {
		t.Errorf("got %d-dim vector, want 3", len(vec))
	}
	if c.Dimension() != 3 {
		t.Errorf("Dimension = %d, want 3", c.Dimension())
	}
}

func TestOllamaComplete(t *testing.T) {
	srv := ollamaTestServer(t)
	c := NewOllamaClient(srv.URL, "mistral-nemo", "nomic-embed-text", 3)

	text, err := c.Complete(context.Background(), "prompt", 100)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if text != "the answer" {
		t.Errorf("Complete = %q", text)
	}
}

func TestOllamaIsRunning(t *testing.T) {
	srv := ollamaTestServer(t)
	c := NewOllamaClient(srv.URL, "m", "e", 3)
	if !c.IsRunning(context.Background()) {
		t.Error("IsRunning = false against a live server")
	}

	down := NewOllamaClient("http://127.0.0.1:1", "m", "e", 3)
	if down.IsRunning(context.Background()) {
		t.Error("IsRunning = true against a dead endpoint")
	}
}

func TestOllamaEmbed_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL, "m", "e", 3)
	if _, err := c.Embed(context.Background(), "text"); err == nil {
		t.Error("expected error for non-200 response")
	}
}

func TestOllamaEmbed_EmptyVector(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(embedResponse{})
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL, "m", "e", 3)
	if _, err := c.Embed(context.Background(), "text"); err == nil {
		t.Error("expected error for empty embedding")
	}
}
