package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/resumeintel/interview-backend/internal/config"
	"github.com/resumeintel/interview-backend/internal/model"
	"github.com/resumeintel/interview-backend/internal/repository"
)

const (
	SummaryPollTimeout = 1 * time.Second
)

// SummaryWorker archives finalized session summaries from the Redis queue
// into Postgres. Summaries are rare (one per interview) so there is no
// batching; each item is upserted individually and requeued on failure.
type SummaryWorker struct {
	repo *repository.ArchiveRepository
	rdb  *redis.Client
	log  zerolog.Logger
}

// NewSummaryWorker creates a SummaryWorker.
func NewSummaryWorker(repo *repository.ArchiveRepository, rdb *redis.Client, log zerolog.Logger) *SummaryWorker {
	return &SummaryWorker{
		repo: repo,
		rdb:  rdb,
		log:  log.With().Str("component", "summary_worker").Logger(),
	}
}

// summaryPayload is the wire form pushed onto the archive queue.
type summaryPayload struct {
	Summary    model.SessionSummary `json:"summary"`
	ReportHash string               `json:"report_hash"`
}

// Start runs the drain loop until ctx is cancelled.
func (w *SummaryWorker) Start(ctx context.Context) {
	w.log.Info().Msg("SummaryWorker started")

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		result, err := w.rdb.BLPop(ctx, SummaryPollTimeout, config.WorkerKey.ArchiveSummariesQueue).Result()
		if err != nil {
			if err == redis.Nil {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			w.log.Error().Err(err).Msg("Redis connection error, sleeping 3s")
			time.Sleep(3 * time.Second)
			continue
		}

		if len(result) < 2 {
			continue
		}

		var payload summaryPayload
		if err := json.Unmarshal([]byte(result[1]), &payload); err != nil {
			w.log.Error().Err(err).Str("data", result[1]).Msg("Discarding malformed JSON")
			continue
		}

		raw, _ := json.Marshal(payload.Summary)
		if err := w.repo.UpsertSummary(ctx, &payload.Summary, payload.ReportHash, raw); err != nil {
			w.log.Error().Err(err).Str("candidate_id", payload.Summary.CandidateID).Msg("Archive failed, requeueing")
			data, _ := json.Marshal(payload)
			if pushErr := w.rdb.RPush(ctx, config.WorkerKey.ArchiveSummariesQueue, data).Err(); pushErr != nil {
				w.log.Error().Err(pushErr).Msg("CRITICAL: Failed to requeue summary. Data loss occurred.")
			}
			time.Sleep(2 * time.Second)
			continue
		}

		w.log.Info().Str("candidate_id", payload.Summary.CandidateID).Msg("Summary archived")
	}
}
