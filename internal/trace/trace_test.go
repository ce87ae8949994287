package trace

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func TestHTTPEmit(t *testing.T) {
	var mu sync.Mutex
	var got event
	var gotAuth string
	received := make(chan struct{}, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/events" {
			t.Errorf("path = %q, want /events", r.URL.Path)
		}
		mu.Lock()
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&got)
		mu.Unlock()
		received <- struct{}{}
	}))
	defer srv.Close()

	tr := NewHTTP(srv.URL, "key123")
	tr.Emit("semantic_search", map[string]any{"results_count": 3})

	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("collector never received the event")
	}

	mu.Lock()
	defer mu.Unlock()
	if got.Name != "semantic_search" {
		t.Errorf("event name = %q", got.Name)
	}
	if got.Fields["results_count"] != float64(3) {
		t.Errorf("fields = %v", got.Fields)
	}
	if got.Timestamp == "" {
		t.Error("timestamp missing")
	}
	if gotAuth != "Bearer key123" {
		t.Errorf("auth = %q", gotAuth)
	}
}

func TestHTTPEmit_CollectorDownDoesNotBlock(t *testing.T) {
	tr := NewHTTP("http://127.0.0.1:1", "")

	done := make(chan struct{})
	go func() {
		tr.Emit("rag_pipeline", map[string]any{"ok": true})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Emit blocked on an unreachable collector")
	}
}

func TestHTTPEmit_TrailingSlashNormalized(t *testing.T) {
	received := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received <- r.URL.Path
	}))
	defer srv.Close()

	tr := NewHTTP(srv.URL+"/", "")
	tr.Emit("e", nil)

	select {
	case path := <-received:
		if path != "/events" {
			t.Errorf("path = %q, want /events", path)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("collector never received the event")
	}
}

func TestNopEmit(t *testing.T) {
	// Must be safe with any input, including nil fields.
	Nop{}.Emit("anything", nil)
}
