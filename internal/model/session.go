package model

import "time"

// SessionState enumerates candidate session lifecycle states.
type SessionState string

const (
	SessionStateNotStarted SessionState = "NOT_STARTED"
	SessionStateActive     SessionState = "ACTIVE"
	SessionStateWarned     SessionState = "WARNED"
	SessionStateTerminated SessionState = "TERMINATED"
	SessionStateEnded      SessionState = "ENDED"
)

// Terminal reports whether the state accepts no further transitions.
func (s SessionState) Terminal() bool {
	return s == SessionStateTerminated || s == SessionStateEnded
}

// Accepting reports whether a session in this state still accepts signals.
func (s SessionState) Accepting() bool {
	return s == SessionStateActive || s == SessionStateWarned
}

// EventType identifies a detected anomaly. The set is extensible: unknown
// types are accepted and scored with the default weight.
type EventType string

const (
	EventTabSwitch     EventType = "TAB_SWITCH"
	EventWindowUnfocus EventType = "WINDOW_UNFOCUS"
	EventNoFace        EventType = "NO_FACE"
	EventMultipleFaces EventType = "MULTIPLE_FACES"
	EventGazeDeviation EventType = "GAZE_DEVIATION"
	EventDevTools      EventType = "DEV_TOOLS"
)

// Severity classifies an anomaly event. It is derived from the event type,
// never supplied by the client.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
)

// SeverityOf maps an event type to its severity. Tab switches and face
// anomalies indicate deliberate evasion or a second person; everything else
// is treated as a transient distraction.
func SeverityOf(t EventType) Severity {
	switch t {
	case EventTabSwitch, EventMultipleFaces, EventNoFace, EventDevTools:
		return SeverityHigh
	default:
		return SeverityMedium
	}
}

// CheatingEvent is one point-bearing anomaly recorded against a session.
// Time is assigned server-side when the event is accepted.
type CheatingEvent struct {
	Type       EventType `json:"type"`
	Severity   Severity  `json:"severity"`
	Points     int       `json:"points"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Answer is one finalized question/answer pair with its graded quality.
type Answer struct {
	Question    string    `json:"question"`
	Answer      string    `json:"answer"`
	Quality     int       `json:"quality"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// FrameMetrics carries the already-derived face/gaze signals for one capture
// tick. The face-mesh geometry itself is computed by the client-side tracker;
// this service only reacts to the derived values.
type FrameMetrics struct {
	FacePresent bool `json:"face_present"`
	FaceCount   int  `json:"face_count"`
	GazeScore   int  `json:"gaze_score" binding:"min=0,max=100"`
	HeadScore   int  `json:"head_score" binding:"min=0,max=100"`
}

// CandidateSession is the per-candidate ledger. Mutation is serialized by the
// session registry; this struct itself carries no lock.
type CandidateSession struct {
	CandidateID     string          `json:"candidate_id"`
	State           SessionState    `json:"state"`
	AnomalyPoints   int             `json:"anomaly_points"`
	ConfidenceScore int             `json:"confidence_score"`
	WarningIssued   bool            `json:"warning_issued"`
	CheatingEvents  []CheatingEvent `json:"cheating_events"`
	Answers         []Answer        `json:"answers"`
	QuestionIndex   int             `json:"question_index"`
	CreatedAt       time.Time       `json:"created_at"`
	LastActivityAt  time.Time       `json:"last_activity_at"`
	EndedAt         *time.Time      `json:"ended_at,omitempty"`
}

// Snapshot is the read-side view returned after every accepted signal.
// CheatingEvents are presented newest-first; the underlying ledger keeps
// insertion order.
type Snapshot struct {
	CandidateID     string          `json:"candidate_id"`
	State           SessionState    `json:"state"`
	AnomalyPoints   int             `json:"anomaly_points"`
	ConfidenceScore int             `json:"confidence_score"`
	WarningIssued   bool            `json:"warning_issued"`
	CheatingEvents  []CheatingEvent `json:"cheating_events"`
	LastActivityAt  time.Time       `json:"last_activity_at"`
}
