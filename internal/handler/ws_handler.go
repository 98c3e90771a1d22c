package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/resumeintel/interview-backend/internal/model"
	"github.com/resumeintel/interview-backend/internal/service"
	ws "github.com/resumeintel/interview-backend/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowedOrigins slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams interview signals over a persistent connection. Frame
// ticks arrive every few seconds per candidate, which is too chatty for
// request-per-signal REST.
type WSHandler struct {
	interviews *service.InterviewService
	log        zerolog.Logger
	upgrader   websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(interviews *service.InterviewService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		interviews: interviews,
		log:        log.With().Str("component", "ws_handler").Logger(),
		upgrader:   buildUpgrader(allowedOrigins),
	}
}

// InterviewStream godoc
// WS /ws/v1/interview/:candidate_id/stream
// Upgrades to WebSocket for live signal ingest and metric feedback.
func (h *WSHandler) InterviewStream(c *gin.Context) {
	candidateID := c.Param("candidate_id")
	if candidateID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "candidate_id required"})
		return
	}

	// The server-side state machine is the authority: a stream for a
	// candidate with no accepting session is refused regardless of what the
	// client believes its state is.
	if _, err := h.interviews.GetMetrics(candidateID); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "no active session for this candidate"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().Str("candidate_id", candidateID).Logger()
	wsLog.Info().Msg("Candidate connected")

	for {
		var msg ws.RequestPayload
		if err := ws.ReadJSON(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			break
		}

		switch msg.Action {
		case ws.ActionFrame:
			h.handleFrame(conn, wsLog, candidateID, &msg)
		case ws.ActionCheat:
			h.handleCheat(conn, wsLog, candidateID, &msg)
		case ws.ActionAnswer:
			h.handleAnswer(conn, wsLog, candidateID, &msg)
		case ws.ActionEnd:
			h.handleEnd(conn, wsLog, candidateID)
			return
		case ws.ActionPing:
			ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong})
		default:
			wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			ws.WriteError(conn, "unknown action: "+string(msg.Action))
		}
	}
}

func (h *WSHandler) handleFrame(conn *websocket.Conn, wsLog zerolog.Logger, candidateID string, msg *ws.RequestPayload) {
	snap, err := h.interviews.SubmitFrameSignal(context.Background(), candidateID, msg.Metrics)
	if err != nil {
		h.writeSignalError(conn, wsLog, candidateID, err)
		return
	}
	h.writeSnapshot(conn, snap)
}

func (h *WSHandler) handleCheat(conn *websocket.Conn, wsLog zerolog.Logger, candidateID string, msg *ws.RequestPayload) {
	if msg.EventType == "" {
		ws.WriteError(conn, "event_type is required")
		return
	}

	snap, err := h.interviews.SubmitCheatingEvent(context.Background(), candidateID, msg.EventType)
	if err != nil {
		h.writeSignalError(conn, wsLog, candidateID, err)
		return
	}
	h.writeSnapshot(conn, snap)
}

func (h *WSHandler) handleAnswer(conn *websocket.Conn, wsLog zerolog.Logger, candidateID string, msg *ws.RequestPayload) {
	if msg.Question == "" || msg.Answer == "" {
		ws.WriteError(conn, "question and answer are required")
		return
	}

	result, err := h.interviews.SubmitAnswer(context.Background(), candidateID, msg.Question, msg.Answer)
	if err != nil {
		h.writeSignalError(conn, wsLog, candidateID, err)
		return
	}
	ws.WriteTyped(conn, ws.GradedResponse{Event: ws.EventGraded, Quality: result.Quality})
}

func (h *WSHandler) handleEnd(conn *websocket.Conn, wsLog zerolog.Logger, candidateID string) {
	summary, err := h.interviews.EndSession(context.Background(), candidateID)
	if err != nil {
		wsLog.Error().Err(err).Msg("End session failed")
		ws.WriteError(conn, "end failed")
		return
	}

	wsLog.Info().Bool("forced", summary.Forced).Msg("Session ended by client")
	ws.WriteTyped(conn, ws.FinishedResponse{Event: ws.EventFinished, Forced: summary.Forced, Summary: summary})
}

// writeSnapshot sends the post-signal snapshot. A snapshot that just
// crossed into a terminal state also carries the finished event so the
// client stops its capture loop.
func (h *WSHandler) writeSnapshot(conn *websocket.Conn, snap *model.Snapshot) {
	ws.WriteTyped(conn, ws.MetricsResponse{Event: ws.EventMetrics, Snapshot: snap})
	if snap.State == model.SessionStateTerminated {
		ws.WriteTyped(conn, ws.FinishedResponse{Event: ws.EventFinished, Forced: true})
	}
}

func (h *WSHandler) writeSignalError(conn *websocket.Conn, wsLog zerolog.Logger, candidateID string, err error) {
	if errors.Is(err, service.ErrSessionNotActive) {
		ws.WriteError(conn, "session not active")
		return
	}
	wsLog.Error().Err(err).Str("candidate_id", candidateID).Msg("Signal failed")
	ws.WriteError(conn, "signal failed")
}
