package scoring

import (
	"strings"
	"unicode"

	"github.com/vasanth/minuteman/internal/retrieval"
)

// Factor weights for the combined confidence score. The formula is a policy
// calibrated against held-out evaluation queries, not a fixed truth: retrieval
// strength dominates, with coverage and generation consistency preventing a
// lone strong hit from producing an overconfident answer.
const (
	weightRetrieval   = 0.50
	weightCoverage    = 0.25
	weightConsistency = 0.25

	// topK is how many leading results contribute to the retrieval factor,
	// matching the number of sources the synthesizer cites.
	topK = 5

	// saturation is the number of distinct meetings (and speakers) at which
	// the coverage factor reaches 1.
	saturation = 3
)

// Score computes a bounded [0,1] confidence for a result set and, optionally,
// a generated answer. It never fails: any missing input lowers the score
// rather than producing an error, and an empty result list scores exactly 0.
//
// Pass generatedText == "" in raw mode; the consistency factor's weight is
// then redistributed over the remaining factors.
func Score(results []retrieval.SearchResult, generatedText string) float64 {
	if len(results) == 0 {
		return 0
	}

	ret := retrievalFactor(results)
	cov := coverageFactor(results)

	if generatedText == "" {
		return clamp01((weightRetrieval*ret + weightCoverage*cov) / (weightRetrieval + weightCoverage))
	}

	cons := consistencyFactor(results, generatedText)
	return clamp01(weightRetrieval*ret + weightCoverage*cov + weightConsistency*cons)
}

// retrievalFactor is the mean similarity of the top-K results, clamped to
// [0,1]. Cosine similarity can be negative for dissimilar vectors.
func retrievalFactor(results []retrieval.SearchResult) float64 {
	n := len(results)
	if n > topK {
		n = topK
	}
	var sum float64
	for _, r := range results[:n] {
		sum += float64(r.Score)
	}
	return clamp01(sum / float64(n))
}

// coverageFactor rewards diversity of sources: the fraction of distinct
// meetings and distinct speakers represented, each saturating at three.
// Chunks without a speaker (key insights) only count toward meetings.
func coverageFactor(results []retrieval.SearchResult) float64 {
	meetings := make(map[string]struct{})
	speakers := make(map[string]struct{})
	for _, r := range results {
		meetings[r.Chunk.MeetingID] = struct{}{}
		if r.Chunk.Speaker != "" {
			speakers[r.Chunk.Speaker] = struct{}{}
		}
	}

	meetingFrac := saturate(len(meetings))
	if len(speakers) == 0 {
		return meetingFrac
	}
	return (meetingFrac + saturate(len(speakers))) / 2
}

// consistencyFactor estimates how much of the generated text is attributable
// to the retrieved sources: the fraction of the answer's content terms that
// appear in any source text. A topic-coverage heuristic, computed without a
// second model call.
func consistencyFactor(results []retrieval.SearchResult, generatedText string) float64 {
	sourceTerms := make(map[string]struct{})
	for _, r := range results {
		for _, term := range contentTerms(r.Chunk.Text) {
			sourceTerms[term] = struct{}{}
		}
	}
	if len(sourceTerms) == 0 {
		return 0
	}

	answerTerms := contentTerms(generatedText)
	if len(answerTerms) == 0 {
		return 0
	}

	seen := make(map[string]struct{}, len(answerTerms))
	matched := 0
	total := 0
	for _, term := range answerTerms {
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}
		total++
		if _, ok := sourceTerms[term]; ok {
			matched++
		}
	}
	return float64(matched) / float64(total)
}

func saturate(n int) float64 {
	if n >= saturation {
		return 1
	}
	return float64(n) / saturation
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// stopwords excluded from term matching. Short function words would inflate
// the consistency factor without indicating topical overlap.
var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "are": {}, "but": {}, "not": {},
	"you": {}, "all": {}, "can": {}, "had": {}, "has": {}, "have": {},
	"was": {}, "were": {}, "will": {}, "with": {}, "this": {}, "that": {},
	"from": {}, "they": {}, "been": {}, "their": {}, "there": {},
	"what": {}, "when": {}, "which": {}, "would": {}, "about": {},
	"into": {}, "more": {}, "some": {}, "also": {}, "than": {},
	"them": {}, "then": {}, "these": {}, "those": {}, "because": {},
	"based": {}, "during": {}, "should": {}, "could": {}, "while": {},
}

// contentTerms lowercases text and returns its words of three or more
// letters, minus stopwords.
func contentTerms(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < 3 {
			continue
		}
		if _, ok := stopwords[f]; ok {
			continue
		}
		terms = append(terms, f)
	}
	return terms
}
