package websocket

import "github.com/resumeintel/interview-backend/internal/model"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionFrame  Action = "frame"
	ActionCheat  Action = "cheat"
	ActionAnswer Action = "answer"
	ActionEnd    Action = "end"
	ActionPing   Action = "ping"
)

// RequestPayload is the single inbound message shape; the action selects
// which fields matter. Client-supplied timestamps are deliberately absent —
// the server stamps everything it accepts.
type RequestPayload struct {
	Action    Action             `json:"action"`
	EventType model.EventType    `json:"event_type,omitempty"`
	Metrics   model.FrameMetrics `json:"metrics,omitempty"`
	Question  string             `json:"question,omitempty"`
	Answer    string             `json:"answer,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError    Event = "error"
	EventMetrics  Event = "metrics"
	EventGraded   Event = "graded"
	EventWarning  Event = "warning"
	EventFinished Event = "finished"
	EventPong     Event = "pong"
)

// MetricsResponse carries the post-signal snapshot back to the client.
type MetricsResponse struct {
	Event    Event           `json:"event"`
	Snapshot *model.Snapshot `json:"snapshot"`
}

// GradedResponse acknowledges a graded answer.
type GradedResponse struct {
	Event   Event `json:"event"`
	Quality int   `json:"quality"`
}

// FinishedResponse is sent when the session reaches a terminal state,
// whether user-ended or force-terminated.
type FinishedResponse struct {
	Event   Event                 `json:"event"`
	Forced  bool                  `json:"forced"`
	Summary *model.SessionSummary `json:"summary"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
