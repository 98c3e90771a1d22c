package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/resumeintel/interview-backend/internal/model"
)

// ArchivedEvent is one cheating event as stored in the archive.
type ArchivedEvent struct {
	ID          int64           `json:"id"`
	CandidateID string          `json:"candidate_id"`
	EventType   model.EventType `json:"event_type"`
	Severity    model.Severity  `json:"severity"`
	Points      int             `json:"points"`
	RecordedAt  time.Time       `json:"recorded_at"`
}

// ArchiveRepository handles durable archive access for cheating events and
// finalized summaries.
type ArchiveRepository struct {
	pool *pgxpool.Pool
}

// NewArchiveRepository creates a new ArchiveRepository.
func NewArchiveRepository(pool *pgxpool.Pool) *ArchiveRepository {
	return &ArchiveRepository{pool: pool}
}

// BulkInsertEvents copies a batch of events into the archive in one round
// trip. Used by the archive worker's fast path.
func (r *ArchiveRepository) BulkInsertEvents(ctx context.Context, events []ArchivedEvent) error {
	rows := make([][]interface{}, 0, len(events))
	for _, e := range events {
		rows = append(rows, []interface{}{
			e.CandidateID, string(e.EventType), string(e.Severity), e.Points, e.RecordedAt,
		})
	}

	_, err := r.pool.CopyFrom(
		ctx,
		pgx.Identifier{"interview_events"},
		[]string{"candidate_id", "event_type", "severity", "points", "recorded_at"},
		pgx.CopyFromRows(rows),
	)
	return err
}

// InsertEvent inserts a single event. Fallback path when a bulk copy fails.
func (r *ArchiveRepository) InsertEvent(ctx context.Context, e ArchivedEvent) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO interview_events (candidate_id, event_type, severity, points, recorded_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		e.CandidateID, string(e.EventType), string(e.Severity), e.Points, e.RecordedAt,
	)
	return err
}

// ListEventsByCandidate returns the archived events for a candidate,
// newest first.
func (r *ArchiveRepository) ListEventsByCandidate(ctx context.Context, candidateID string) ([]ArchivedEvent, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, candidate_id, event_type, severity, points, recorded_at
		 FROM interview_events
		 WHERE candidate_id = $1
		 ORDER BY recorded_at DESC, id DESC`, candidateID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []ArchivedEvent
	for rows.Next() {
		var e ArchivedEvent
		if err := rows.Scan(&e.ID, &e.CandidateID, &e.EventType, &e.Severity, &e.Points, &e.RecordedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// UpsertSummary archives a finalized summary. A candidate who interviews
// again replaces their previous archive row; the file sink keeps the same
// last-write-wins contract.
func (r *ArchiveRepository) UpsertSummary(ctx context.Context, s *model.SessionSummary, reportHash string, payload []byte) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO interview_summaries
		   (candidate_id, state, forced, risk_level, anomaly_points, confidence_score,
		    integrity_index, report_hash, started_at, ended_at, payload)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11::jsonb)
		 ON CONFLICT (candidate_id) DO UPDATE SET
		   state = EXCLUDED.state,
		   forced = EXCLUDED.forced,
		   risk_level = EXCLUDED.risk_level,
		   anomaly_points = EXCLUDED.anomaly_points,
		   confidence_score = EXCLUDED.confidence_score,
		   integrity_index = EXCLUDED.integrity_index,
		   report_hash = EXCLUDED.report_hash,
		   started_at = EXCLUDED.started_at,
		   ended_at = EXCLUDED.ended_at,
		   payload = EXCLUDED.payload`,
		s.CandidateID, string(s.State), s.Forced, string(s.RiskLevel), s.AnomalyPoints,
		s.ConfidenceScore, s.IntegrityIndex, reportHash, s.StartedAt, s.EndedAt, payload,
	)
	return err
}

// CountEventsByType returns per-type totals for one candidate. Used by the
// reporting read side.
func (r *ArchiveRepository) CountEventsByType(ctx context.Context, candidateID string) (map[model.EventType]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT event_type, COUNT(*)
		 FROM interview_events
		 WHERE candidate_id = $1
		 GROUP BY event_type`, candidateID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[model.EventType]int64)
	for rows.Next() {
		var t string
		var n int64
		if err := rows.Scan(&t, &n); err != nil {
			return nil, err
		}
		counts[model.EventType(t)] = n
	}
	return counts, rows.Err()
}
