package session

import (
	"time"

	"github.com/resumeintel/interview-backend/internal/model"
)

// Past this many anomaly points the session is considered fully compromised
// and the integrity index collapses to zero regardless of answer quality.
const hardCompromisePoints = 30

// buildSummary freezes a finalized ledger into its durable summary record.
// forced distinguishes a system-initiated termination from a user-initiated
// end so downstream reporting can tell policy violation from normal finish.
func buildSummary(ledger *model.CandidateSession, forced bool) *model.SessionSummary {
	endedAt := time.Now()
	if ledger.EndedAt != nil {
		endedAt = *ledger.EndedAt
	}

	avgQuality := 0
	if n := len(ledger.Answers); n > 0 {
		total := 0
		for _, a := range ledger.Answers {
			total += a.Quality
		}
		avgQuality = total / n
	}

	flags := make([]model.EventType, 0, len(ledger.CheatingEvents))
	for _, e := range ledger.CheatingEvents {
		flags = append(flags, e.Type)
	}

	risk := model.RiskCompleted
	text := "Stable behavior with strong answer reliability."
	switch {
	case forced:
		risk = model.RiskIntegrity
		text = "Session terminated early due to high unusual activity."
	case ledger.WarningIssued:
		risk = model.RiskFlagged
		text = "Minor anomalies observed during session."
	}

	return &model.SessionSummary{
		CandidateID:     ledger.CandidateID,
		State:           ledger.State,
		Forced:          forced,
		RiskLevel:       risk,
		AnomalyPoints:   ledger.AnomalyPoints,
		ConfidenceScore: ledger.ConfidenceScore,
		IntegrityIndex:  integrityIndex(ledger.ConfidenceScore, avgQuality, ledger.AnomalyPoints),
		AnswerQuality:   avgQuality,
		AnswersLogged:   len(ledger.Answers),
		CheatingFlags:   flags,
		CheatingEvents:  append([]model.CheatingEvent(nil), ledger.CheatingEvents...),
		Answers:         append([]model.Answer(nil), ledger.Answers...),
		StartedAt:       ledger.CreatedAt,
		EndedAt:         endedAt,
		DurationSeconds: int(endedAt.Sub(ledger.CreatedAt).Seconds()),
		Summary:         text,
	}
}

// integrityIndex blends behavioral integrity (the confidence score, already
// an inverse function of anomaly points) with answer reliability: 60/40.
// The result keeps a floor of 25 unless the session is fully compromised.
func integrityIndex(confidence, answerQuality, points int) int {
	if points > hardCompromisePoints {
		return 0
	}
	idx := (confidence*60 + answerQuality*40) / 100
	if idx < 25 {
		idx = 25
	}
	if idx > 100 {
		idx = 100
	}
	return idx
}
