package trace

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Tracer receives structured events for retrieval and generation steps.
// Emit is fire-and-forget: it never blocks the pipeline and failures are
// silently dropped. Tracing is a side channel, never on the critical path.
type Tracer interface {
	Emit(event string, fields map[string]any)
}

// Nop discards all events. Used when no tracing endpoint is configured;
// its absence must not affect correctness, only observability.
type Nop struct{}

func (Nop) Emit(string, map[string]any) {}

// HTTP posts each event as a JSON document to a collector endpoint.
type HTTP struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewHTTP creates an HTTP tracer. apiKey may be empty if the collector
// does not require authentication.
func NewHTTP(endpoint, apiKey string) *HTTP {
	return &HTTP{
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

type event struct {
	Name      string         `json:"name"`
	Timestamp string         `json:"timestamp"`
	Fields    map[string]any `json:"fields"`
}

// Emit sends the event in a goroutine and returns immediately. Delivery
// errors are logged at debug level and otherwise dropped.
func (t *HTTP) Emit(name string, fields map[string]any) {
	payload, err := json.Marshal(event{
		Name:      name,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Fields:    fields,
	})
	if err != nil {
		slog.Debug("trace: marshal failed", "event", name, "error", err)
		return
	}

	go func() {
		req, err := http.NewRequest(http.MethodPost, t.endpoint+"/events", bytes.NewReader(payload))
		if err != nil {
			return
		}
		req.Header.Set("Content-Type", "application/json")
		if t.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+t.apiKey)
		}

		resp, err := t.client.Do(req)
		if err != nil {
			slog.Debug("trace: emit failed", "event", name, "error", err)
			return
		}
		resp.Body.Close()
	}()
}
