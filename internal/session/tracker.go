package session

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/vasanth/minuteman/internal/retrieval"
	"github.com/vasanth/minuteman/internal/synthesis"
)

// ErrSession indicates a turn could not be recorded (e.g. the per-session
// turn cap was reached).
var ErrSession = errors.New("session error")

// maxTurns caps a single session's history. Sessions live for the process
// lifetime, so an unbounded runaway caller would otherwise exhaust memory.
const maxTurns = 4096

// Turn is one completed query/answer exchange within a session.
type Turn struct {
	Query   string                     `json:"query"`
	Mode    string                     `json:"mode"`
	Filter  retrieval.Filter           `json:"filter,omitempty"`
	Results []retrieval.SearchResult   `json:"results,omitempty"`
	Answer  *synthesis.GeneratedAnswer `json:"answer,omitempty"`
	At      time.Time                  `json:"at"`
}

// Summary describes one tracked session.
type Summary struct {
	ID         string    `json:"id"`
	Turns      int       `json:"turns"`
	StartedAt  time.Time `json:"started_at"`
	LastActive time.Time `json:"last_active"`
}

type record struct {
	startedAt time.Time
	turns     []Turn
}

// Tracker groups queries and answers under a conversation identity. Turns
// are append-only: once recorded they are never modified or removed, so the
// history is safe to hand to downstream analysis. The tracker is a passive
// observer; it never alters retrieval or generation behavior.
//
// Safe for concurrent use. Appends from independent sessions may interleave
// freely, but ordering within one session's sequence is preserved.
type Tracker struct {
	mu       sync.Mutex
	sessions map[string]*record
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{sessions: make(map[string]*record)}
}

// RecordTurn appends a turn to the session's history, creating the session
// lazily on first use. The session ID is an opaque caller-supplied value.
func (t *Tracker) RecordTurn(sessionID string, turn Turn) error {
	if sessionID == "" {
		return fmt.Errorf("%w: empty session ID", ErrSession)
	}
	if turn.At.IsZero() {
		turn.At = time.Now().UTC()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.sessions[sessionID]
	if !ok {
		rec = &record{startedAt: turn.At}
		t.sessions[sessionID] = rec
	}
	if len(rec.turns) >= maxTurns {
		return fmt.Errorf("%w: session %s reached %d turns", ErrSession, sessionID, maxTurns)
	}
	rec.turns = append(rec.turns, turn)
	return nil
}

// History returns the session's turns in recording order. An unknown
// session yields an empty history. The returned slice is a copy; the
// tracker's internal state cannot be mutated through it.
func (t *Tracker) History(sessionID string) []Turn {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.sessions[sessionID]
	if !ok {
		return nil
	}
	out := make([]Turn, len(rec.turns))
	copy(out, rec.turns)
	return out
}

// Sessions returns summaries of all tracked sessions, oldest first.
func (t *Tracker) Sessions() []Summary {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Summary, 0, len(t.sessions))
	for id, rec := range t.sessions {
		s := Summary{ID: id, Turns: len(rec.turns), StartedAt: rec.startedAt}
		if n := len(rec.turns); n > 0 {
			s.LastActive = rec.turns[n-1].At
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.Before(out[j].StartedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
