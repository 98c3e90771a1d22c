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
	EventBatchSize    = 50
	EventBatchTimeout = 2 * time.Second
	EventPollTimeout  = 1 * time.Second // Must be >= 1s to satisfy Redis
)

// EventWorker drains accepted cheating events from the Redis queue into the
// Postgres archive. The live scoring path never waits on this worker.
type EventWorker struct {
	repo *repository.ArchiveRepository
	rdb  *redis.Client
	log  zerolog.Logger
}

// NewEventWorker creates an EventWorker.
func NewEventWorker(repo *repository.ArchiveRepository, rdb *redis.Client, log zerolog.Logger) *EventWorker {
	return &EventWorker{
		repo: repo,
		rdb:  rdb,
		log:  log.With().Str("component", "event_worker").Logger(),
	}
}

// eventPayload is the wire form pushed onto the archive queue.
type eventPayload struct {
	CandidateID string `json:"candidate_id"`
	EventType   string `json:"event_type"`
	Severity    string `json:"severity"`
	Points      int    `json:"points"`
	RecordedAt  int64  `json:"recorded_at"`
}

// Start runs the drain loop until ctx is cancelled, then flushes the
// remaining buffer with a short grace window.
func (w *EventWorker) Start(ctx context.Context) {
	w.log.Info().Msg("EventWorker started")

	buffer := make([]*eventPayload, 0, EventBatchSize)
	lastFlush := time.Now()

	for {
		if len(buffer) > 0 &&
			(len(buffer) >= EventBatchSize || time.Since(lastFlush) >= EventBatchTimeout) {
			w.flushSafe(ctx, buffer)
			buffer = buffer[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.shutdown(buffer)
			return
		default:
		}

		result, err := w.rdb.BLPop(ctx, EventPollTimeout, config.WorkerKey.ArchiveEventsQueue).Result()
		if err != nil {
			if err == redis.Nil {
				continue // Queue empty, loop back to check the flush timer
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

		var payload eventPayload
		if err := json.Unmarshal([]byte(result[1]), &payload); err != nil {
			// Malformed JSON cannot be retried. Log and discard.
			w.log.Error().Err(err).Str("data", result[1]).Msg("Discarding malformed JSON")
			continue
		}

		buffer = append(buffer, &payload)
	}
}

// flushSafe attempts bulk insert, then row-by-row fallback, then requeue.
func (w *EventWorker) flushSafe(ctx context.Context, batch []*eventPayload) {
	events := make([]repository.ArchivedEvent, 0, len(batch))
	for _, p := range batch {
		events = append(events, toArchived(p))
	}

	if err := w.repo.BulkInsertEvents(ctx, events); err != nil {
		w.log.Warn().Err(err).Int("count", len(batch)).Msg("Bulk insert failed, attempting row-by-row recovery")
		w.fallbackInsert(ctx, batch)
	}
}

func (w *EventWorker) fallbackInsert(ctx context.Context, batch []*eventPayload) {
	requeueList := make([]*eventPayload, 0)

	for _, p := range batch {
		if err := w.repo.InsertEvent(ctx, toArchived(p)); err != nil {
			w.log.Error().Err(err).Str("candidate_id", p.CandidateID).Msg("Insert failed, requeueing")
			requeueList = append(requeueList, p)
		}
	}

	if len(requeueList) > 0 {
		w.requeue(ctx, requeueList)
	}
}

func (w *EventWorker) requeue(ctx context.Context, items []*eventPayload) {
	pipe := w.rdb.Pipeline()
	for _, p := range items {
		data, _ := json.Marshal(p)
		pipe.RPush(ctx, config.WorkerKey.ArchiveEventsQueue, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		w.log.Error().Err(err).Msg("CRITICAL: Failed to requeue items to Redis. Data loss occurred.")
		return
	}
	w.log.Info().Int("count", len(items)).Msg("Requeued failed items back to Redis")
	// Avoid thrashing if the database is down hard.
	time.Sleep(2 * time.Second)
}

func (w *EventWorker) shutdown(buffer []*eventPayload) {
	w.log.Info().Msg("Worker stopping, flushing remaining buffer...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if len(buffer) > 0 {
		w.flushSafe(shutdownCtx, buffer)
	}
}

func toArchived(p *eventPayload) repository.ArchivedEvent {
	return repository.ArchivedEvent{
		CandidateID: p.CandidateID,
		EventType:   model.EventType(p.EventType),
		Severity:    model.Severity(p.Severity),
		Points:      p.Points,
		RecordedAt:  time.Unix(p.RecordedAt, 0),
	}
}
