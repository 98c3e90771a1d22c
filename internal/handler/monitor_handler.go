package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/resumeintel/interview-backend/internal/config"
	"github.com/resumeintel/interview-backend/internal/repository"
	"github.com/resumeintel/interview-backend/internal/response"
	"github.com/resumeintel/interview-backend/internal/service"
)

const (
	keepAliveInterval = 30 * time.Second
	archiveTimeout    = 5 * time.Second // prevent slow queries from blocking the SSE loop
)

// MonitorHandler lets a recruiter watch one candidate's interview live over
// SSE. Updates arrive through the per-candidate Redis Pub/Sub channel the
// interview service publishes to on every accepted signal.
type MonitorHandler struct {
	rdb        *redis.Client
	interviews *service.InterviewService
	archive    *repository.ArchiveRepository
	log        zerolog.Logger
}

// NewMonitorHandler creates a new MonitorHandler.
func NewMonitorHandler(
	rdb *redis.Client,
	interviews *service.InterviewService,
	archive *repository.ArchiveRepository,
	log zerolog.Logger,
) *MonitorHandler {
	return &MonitorHandler{
		rdb:        rdb,
		interviews: interviews,
		archive:    archive,
		log:        log.With().Str("component", "monitor_handler").Logger(),
	}
}

// MonitorSessionSSE godoc
// GET /api/v1/interview/sessions/:candidate_id/monitor
func (h *MonitorHandler) MonitorSessionSSE(c *gin.Context) {
	candidateID := c.Param("candidate_id")

	snap, err := h.interviews.GetMetrics(candidateID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	reqCtx := c.Request.Context()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	// Initial snapshot before subscribing so the recruiter never stares at
	// an empty panel waiting for the next signal.
	if payload, err := json.Marshal(snap); err == nil {
		writeSSE(c, payload)
	}

	pubsub := h.rdb.Subscribe(reqCtx, config.CacheKey.CandidateMonitorChannel(candidateID))
	defer pubsub.Close()
	ch := pubsub.Channel()

	keepAliveTicker := time.NewTicker(keepAliveInterval)
	defer keepAliveTicker.Stop()

	h.log.Info().Str("candidate_id", candidateID).Msg("Recruiter attached to live monitor SSE")

	pingPayload, _ := json.Marshal(map[string]string{"type": "ping"})

	for {
		select {
		case <-reqCtx.Done():
			h.log.Info().Str("candidate_id", candidateID).Msg("Recruiter disconnected from live monitor SSE")
			return

		case msg := <-ch:
			// Forward raw JSON directly — no deserialization needed.
			writeSSE(c, []byte(msg.Payload))

		case <-keepAliveTicker.C:
			writeSSE(c, pingPayload)
		}
	}
}

// GetArchivedEvents godoc
// GET /api/v1/interview/sessions/:candidate_id/events
// Reads the Postgres archive, not the live ledger, so it also serves
// candidates whose sessions closed long ago.
func (h *MonitorHandler) GetArchivedEvents(c *gin.Context) {
	candidateID := c.Param("candidate_id")

	fetchCtx, cancel := context.WithTimeout(c.Request.Context(), archiveTimeout)
	defer cancel()

	events, err := h.archive.ListEventsByCandidate(fetchCtx, candidateID)
	if err != nil {
		h.log.Error().Err(err).Str("candidate_id", candidateID).Msg("Archive read failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if events == nil {
		events = []repository.ArchivedEvent{}
	}

	counts, err := h.archive.CountEventsByType(fetchCtx, candidateID)
	if err != nil {
		// Counts are a convenience; the event list alone is still useful.
		h.log.Warn().Err(err).Msg("Event count query failed")
	}

	response.Success(c, http.StatusOK, gin.H{"events": events, "counts": counts})
}

func writeSSE(c *gin.Context, payload []byte) {
	c.Writer.Write([]byte("data: "))
	c.Writer.Write(payload)
	c.Writer.Write([]byte("\n\n"))
	c.Writer.Flush()
}
