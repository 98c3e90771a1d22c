package model

import "time"

// RiskLevel is the coarse verdict attached to a finalized session.
type RiskLevel string

const (
	RiskCompleted RiskLevel = "SESSION_COMPLETED"
	RiskFlagged   RiskLevel = "FLAGGED_FOR_REVIEW"
	RiskIntegrity RiskLevel = "INTEGRITY_CONCERN"
)

// SessionSummary is the durable record written for a finalized session.
// The field layout is stable: the report renderer and the archive worker
// both consume it by key.
type SessionSummary struct {
	CandidateID     string          `json:"candidate_id"`
	State           SessionState    `json:"state"`
	Forced          bool            `json:"forced"` // system-terminated vs user-ended
	RiskLevel       RiskLevel       `json:"risk_level"`
	AnomalyPoints   int             `json:"anomaly_points"`
	ConfidenceScore int             `json:"confidence_score"`
	IntegrityIndex  int             `json:"integrity_index"`
	AnswerQuality   int             `json:"answer_quality"` // average across graded answers
	AnswersLogged   int             `json:"answers_logged"`
	CheatingFlags   []EventType     `json:"cheating_flags"`
	CheatingEvents  []CheatingEvent `json:"cheating_events"`
	Answers         []Answer        `json:"answers"`
	StartedAt       time.Time       `json:"started_at"`
	EndedAt         time.Time       `json:"ended_at"`
	DurationSeconds int             `json:"duration_seconds"`
	Summary         string          `json:"interview_summary"`
}

// Question is one entry of the interview question catalog.
type Question struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	Category string `json:"category,omitempty"`
}
