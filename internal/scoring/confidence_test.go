package scoring

import (
	"fmt"
	"math"
	"testing"

	"github.com/vasanth/minuteman/internal/retrieval"
)

func result(id, meetingID, speaker, text string, score float32) retrieval.SearchResult {
	return retrieval.SearchResult{
		Chunk: retrieval.Chunk{
			ID:        id,
			MeetingID: meetingID,
			Speaker:   speaker,
			Text:      text,
		},
		Score: score,
	}
}

func TestScore_EmptyResults(t *testing.T) {
	if got := Score(nil, "some answer"); got != 0 {
		t.Errorf("Score(nil) = %f, want 0", got)
	}
}

func TestScore_Bounds(t *testing.T) {
	tests := []struct {
		name    string
		results []retrieval.SearchResult
		text    string
	}{
		{
			"perfect scores, diverse sources",
			[]retrieval.SearchResult{
				result("c1", "MTG_001", "Sarah Chen", "revenue grew strongly", 1.0),
				result("c2", "MTG_002", "Lisa Park", "migration timeline agreed", 1.0),
				result("c3", "MTG_003", "Mike Ross", "budget approved unanimously", 1.0),
			},
			"revenue grew strongly and the migration timeline was agreed",
		},
		{
			"negative similarity scores",
			[]retrieval.SearchResult{
				result("c1", "MTG_001", "Sarah Chen", "unrelated topic entirely", -0.4),
			},
			"completely different answer text here",
		},
		{
			"raw mode",
			[]retrieval.SearchResult{
				result("c1", "MTG_001", "Sarah Chen", "revenue grew", 0.8),
			},
			"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(tt.results, tt.text)
			if got < 0 || got > 1 {
				t.Errorf("Score = %f, want within [0,1]", got)
			}
		})
	}
}

func TestScore_RawModeRedistributesWeights(t *testing.T) {
	// One strong result from one meeting/speaker: retrieval factor 0.9,
	// coverage factor (1/3 + 1/3)/2 = 1/3. Raw mode renormalizes over the
	// retrieval and coverage weights only.
	results := []retrieval.SearchResult{
		result("c1", "MTG_001", "Sarah Chen", "revenue grew", 0.9),
	}

	want := (0.50*0.9 + 0.25*(1.0/3.0)) / 0.75
	got := Score(results, "")
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("Score = %f, want %f", got, want)
	}
}

func TestScore_ConsistencyLowersUngroundedAnswers(t *testing.T) {
	results := []retrieval.SearchResult{
		result("c1", "MTG_001", "Sarah Chen", "quarterly revenue increased fifteen percent", 0.8),
		result("c2", "MTG_002", "Lisa Park", "quarterly revenue projections revised", 0.8),
	}

	grounded := Score(results, "quarterly revenue increased per the projections")
	ungrounded := Score(results, "penguins migrate annually across antarctica")
	if grounded <= ungrounded {
		t.Errorf("grounded answer scored %f, ungrounded %f; want grounded higher", grounded, ungrounded)
	}
}

func TestCoverageFactor(t *testing.T) {
	mk := func(n int, sameMeeting bool) []retrieval.SearchResult {
		var rs []retrieval.SearchResult
		for i := 0; i < n; i++ {
			meeting := fmt.Sprintf("MTG_%03d", i)
			if sameMeeting {
				meeting = "MTG_001"
			}
			rs = append(rs, result(fmt.Sprintf("c%d", i), meeting, fmt.Sprintf("Speaker %d", i), "text", 0.5))
		}
		return rs
	}

	one := coverageFactor(mk(1, true))
	three := coverageFactor(mk(3, false))
	five := coverageFactor(mk(5, false))

	if one >= three {
		t.Errorf("coverage: 1 source %f >= 3 sources %f", one, three)
	}
	if three != 1 {
		t.Errorf("coverage at saturation = %f, want 1", three)
	}
	if five != 1 {
		t.Errorf("coverage beyond saturation = %f, want 1", five)
	}
}

func TestCoverageFactor_NoSpeakers(t *testing.T) {
	// Key insights carry no speaker; coverage then depends on meetings only.
	results := []retrieval.SearchResult{
		result("c1", "MTG_001", "", "insight one", 0.5),
		result("c2", "MTG_002", "", "insight two", 0.5),
		result("c3", "MTG_003", "", "insight three", 0.5),
	}
	if got := coverageFactor(results); got != 1 {
		t.Errorf("coverageFactor = %f, want 1", got)
	}
}

func TestRetrievalFactor_TopKOnly(t *testing.T) {
	// Six results; the sixth has a terrible score but must not affect the
	// factor, which averages only the top five.
	var results []retrieval.SearchResult
	for i := 0; i < 5; i++ {
		results = append(results, result(fmt.Sprintf("c%d", i), "MTG_001", "S", "text", 0.8))
	}
	withoutTail := retrievalFactor(results)
	results = append(results, result("c5", "MTG_001", "S", "text", -1.0))
	withTail := retrievalFactor(results)

	if withoutTail != withTail {
		t.Errorf("factor changed from %f to %f when a sixth result was added", withoutTail, withTail)
	}
}

func TestConsistencyFactor(t *testing.T) {
	results := []retrieval.SearchResult{
		result("c1", "MTG_001", "S", "database migration scheduled next quarter", 0.8),
	}

	tests := []struct {
		name string
		text string
		want float64
	}{
		{"full overlap", "database migration scheduled", 1},
		{"no overlap", "penguins swim quickly", 0},
		{"stopwords only", "the and with from", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := consistencyFactor(results, tt.text); got != tt.want {
				t.Errorf("consistencyFactor = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestContentTerms(t *testing.T) {
	terms := contentTerms("The Q3 revenue was UP, and margins improved!")
	want := map[string]bool{"revenue": true, "margins": true, "improved": true}
	for _, term := range terms {
		if !want[term] {
			t.Errorf("unexpected term %q", term)
		}
		delete(want, term)
	}
	for term := range want {
		t.Errorf("missing term %q", term)
	}
}
