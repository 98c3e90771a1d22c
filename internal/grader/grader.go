package grader

import (
	"context"
	"strings"
)

// Result holds the graded quality of one answer.
type Result struct {
	Quality       int    `json:"quality"` // 0-100
	SemanticMatch int    `json:"semantic_match"`
	WordCount     int    `json:"word_count"`
	Feedback      string `json:"feedback,omitempty"`
}

// Grader evaluates a finalized answer transcript against its question.
// Implementations may block on I/O; callers must never hold a session lock
// across a Grade call.
type Grader interface {
	Grade(ctx context.Context, question, answer string) (*Result, error)
}

// Heuristic is the local fallback grader. It scores purely on transcript
// shape (length and coverage), which keeps grading deterministic when no
// remote grader is configured or the remote call fails.
type Heuristic struct{}

// Grade implements Grader.
func (Heuristic) Grade(_ context.Context, question, answer string) (*Result, error) {
	words := strings.Fields(answer)
	wc := len(words)

	semantic := overlapScore(question, words)
	length := min100(wc * 3)

	quality := (semantic*40 + length*60) / 100

	// Floor logic: a substantive transcript never grades to near-zero on
	// shape alone.
	switch {
	case wc > 20 && quality < 45:
		quality = 45
	case wc > 5 && quality < 20:
		quality = 20
	}

	return &Result{
		Quality:       quality,
		SemanticMatch: semantic,
		WordCount:     wc,
	}, nil
}

// overlapScore approximates semantic match as the share of question terms
// echoed in the answer, scaled to 0-100.
func overlapScore(question string, answerWords []string) int {
	qTerms := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(question)) {
		if len(w) > 3 {
			qTerms[strings.Trim(w, ".,?!")] = struct{}{}
		}
	}
	if len(qTerms) == 0 {
		return min100(len(answerWords) * 2)
	}

	hits := 0
	for _, w := range answerWords {
		if _, ok := qTerms[strings.Trim(strings.ToLower(w), ".,?!")]; ok {
			hits++
		}
	}
	return min100(hits * 100 / len(qTerms))
}

func min100(v int) int {
	if v > 100 {
		return 100
	}
	return v
}
