package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/resumeintel/interview-backend/internal/chain"
	"github.com/resumeintel/interview-backend/internal/config"
	"github.com/resumeintel/interview-backend/internal/grader"
	"github.com/resumeintel/interview-backend/internal/model"
	"github.com/resumeintel/interview-backend/internal/session"
	"github.com/resumeintel/interview-backend/internal/store"
)

// Re-exported conditions so handlers depend on one package for the taxonomy.
var (
	ErrAlreadyStarted   = session.ErrAlreadyStarted
	ErrSessionNotActive = session.ErrSessionNotActive
	ErrNotFound         = session.ErrNotFound
)

// InterviewService orchestrates the proctoring protocol: signal ingest,
// scoring, lifecycle and the persistence fan-out on finalization. All
// ledger mutation goes through the registry; this layer owns the I/O the
// registry must not do.
type InterviewService struct {
	registry *session.Registry
	sink     *store.FileStore
	chain    *chain.Chain
	grader   grader.Grader
	rdb      *redis.Client
	log      zerolog.Logger
}

// NewInterviewService creates an InterviewService.
func NewInterviewService(
	registry *session.Registry,
	sink *store.FileStore,
	auditChain *chain.Chain,
	g grader.Grader,
	rdb *redis.Client,
	log zerolog.Logger,
) *InterviewService {
	return &InterviewService{
		registry: registry,
		sink:     sink,
		chain:    auditChain,
		grader:   g,
		rdb:      rdb,
		log:      log.With().Str("component", "interview_service").Logger(),
	}
}

// StartSession creates a fresh session for the candidate.
func (s *InterviewService) StartSession(ctx context.Context, candidateID string) error {
	if err := s.registry.Start(candidateID); err != nil {
		return err
	}
	s.log.Info().Str("candidate_id", candidateID).Msg("Session started")
	s.cacheSnapshot(ctx, candidateID)
	return nil
}

// SubmitCheatingEvent records a client-detected anomaly. Any client-supplied
// timestamp was already discarded at the boundary; the event is stamped
// server-side inside the registry.
func (s *InterviewService) SubmitCheatingEvent(ctx context.Context, candidateID string, t model.EventType) (*model.Snapshot, error) {
	snap, finalized, err := s.registry.ApplyEvent(candidateID, t)
	if err != nil {
		return nil, err
	}

	s.enqueueNewEvents(ctx, candidateID, snap)
	s.cacheSnapshot(ctx, candidateID)

	if finalized != nil {
		s.persistFinalized(ctx, finalized)
	}
	return snap, nil
}

// SubmitFrameSignal folds one tick of derived face/gaze metrics into the
// session. Zero or more point-bearing events may result.
func (s *InterviewService) SubmitFrameSignal(ctx context.Context, candidateID string, m model.FrameMetrics) (*model.Snapshot, error) {
	snap, finalized, err := s.registry.ApplyFrame(candidateID, m)
	if err != nil {
		return nil, err
	}

	s.enqueueNewEvents(ctx, candidateID, snap)
	s.cacheSnapshot(ctx, candidateID)

	if finalized != nil {
		s.persistFinalized(ctx, finalized)
	}
	return snap, nil
}

// SubmitAnswer grades the finalized transcript through the collaborator and
// appends it to the ledger. Grading runs before the ledger lock is taken, so
// a slow upstream never serializes other candidates' signals.
func (s *InterviewService) SubmitAnswer(ctx context.Context, candidateID, question, answer string) (*grader.Result, error) {
	// Reject early so an unknown candidate doesn't cost a grader call.
	if _, err := s.registry.Snapshot(candidateID); err != nil {
		return nil, ErrSessionNotActive
	}

	result, err := s.grader.Grade(ctx, question, answer)
	if err != nil {
		// The grader's own fallback should make this unreachable; degrade to
		// an ungraded append rather than dropping the transcript.
		s.log.Error().Err(err).Msg("Grader failed, appending ungraded answer")
		result = &grader.Result{}
	}

	if err := s.registry.AppendAnswer(candidateID, question, answer, result.Quality); err != nil {
		return nil, err
	}
	return result, nil
}

// EndSession finalizes on explicit client request. Idempotent: a repeat call
// returns the already-built summary without re-persisting.
func (s *InterviewService) EndSession(ctx context.Context, candidateID string) (*model.SessionSummary, error) {
	summary, newly, err := s.registry.End(candidateID)
	if err != nil {
		// The registry no longer knows the candidate (e.g. process restart):
		// fall back to the durable record.
		summary, readErr := s.sink.Read(candidateID)
		if readErr != nil {
			if errors.Is(readErr, store.ErrNotFound) {
				return nil, ErrNotFound
			}
			return nil, fmt.Errorf("read summary: %w", readErr)
		}
		return summary, nil
	}
	if newly {
		s.persistFinalized(ctx, summary)
	}
	return summary, nil
}

// GetSummary returns the finalized summary from the live registry or, for
// sessions closed before a restart, from the durable record.
func (s *InterviewService) GetSummary(candidateID string) (*model.SessionSummary, error) {
	if summary, err := s.registry.Summary(candidateID); err == nil {
		return summary, nil
	}
	summary, err := s.sink.Read(candidateID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read summary: %w", err)
	}
	return summary, nil
}

// GetMetrics returns the live snapshot for a session in any state.
func (s *InterviewService) GetMetrics(candidateID string) (*model.Snapshot, error) {
	return s.registry.Snapshot(candidateID)
}

// ActiveSessions returns the number of live sessions for ops gauges.
func (s *InterviewService) ActiveSessions() int {
	return s.registry.ActiveCount()
}

// IdleSessions exposes candidates idle beyond the given age so a surrounding
// collaborator can decide to reap them.
func (s *InterviewService) IdleSessions(age time.Duration) []string {
	return s.registry.Idle(age)
}

// persistFinalized fans a freshly finalized summary out to the durable
// stores: atomic file record, hash chain stamp, and the Postgres archive
// queue. Each leg is independent; a failed leg is logged, never escalated
// into a session fault.
func (s *InterviewService) persistFinalized(ctx context.Context, summary *model.SessionSummary) {
	log := s.log.With().Str("candidate_id", summary.CandidateID).Logger()

	if err := s.sink.Write(summary); err != nil {
		log.Error().Err(err).Msg("Summary sink write failed")
	}

	payload, err := json.Marshal(summary)
	if err != nil {
		log.Error().Err(err).Msg("Summary encode failed")
		return
	}

	reportHash := chain.HashReport(payload)
	if _, err := s.chain.Append(summary.CandidateID, reportHash); err != nil {
		log.Error().Err(err).Msg("Hash chain append failed")
	}

	archived, _ := json.Marshal(struct {
		Summary    *model.SessionSummary `json:"summary"`
		ReportHash string                `json:"report_hash"`
	}{summary, reportHash})
	if err := s.rdb.RPush(ctx, config.WorkerKey.ArchiveSummariesQueue, archived).Err(); err != nil {
		log.Error().Err(err).Msg("Summary archive enqueue failed")
	}

	log.Info().
		Bool("forced", summary.Forced).
		Int("anomaly_points", summary.AnomalyPoints).
		Str("risk_level", string(summary.RiskLevel)).
		Msg("Session finalized")
}

// enqueueNewEvents pushes any events stamped at the snapshot's last-activity
// instant onto the archive queue. The snapshot is newest-first, so the new
// batch is a prefix.
func (s *InterviewService) enqueueNewEvents(ctx context.Context, candidateID string, snap *model.Snapshot) {
	for _, e := range snap.CheatingEvents {
		if !e.RecordedAt.Equal(snap.LastActivityAt) {
			break
		}
		data, _ := json.Marshal(map[string]interface{}{
			"candidate_id": candidateID,
			"event_type":   e.Type,
			"severity":     e.Severity,
			"points":       e.Points,
			"recorded_at":  e.RecordedAt.Unix(),
		})
		if err := s.rdb.RPush(ctx, config.WorkerKey.ArchiveEventsQueue, data).Err(); err != nil {
			s.log.Error().Err(err).Str("candidate_id", candidateID).Msg("Event archive enqueue failed")
		}
	}
}

// cacheSnapshot publishes the live snapshot to Redis for monitors and
// external reapers. Best effort.
func (s *InterviewService) cacheSnapshot(ctx context.Context, candidateID string) {
	snap, err := s.registry.Snapshot(candidateID)
	if err != nil {
		return
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return
	}
	if err := s.rdb.Set(ctx, config.CacheKey.CandidateSnapshotKey(candidateID), data, 0).Err(); err != nil {
		s.log.Debug().Err(err).Msg("Snapshot cache write failed")
		return
	}
	_ = s.rdb.Set(ctx, config.CacheKey.CandidateLastActivityKey(candidateID), snap.LastActivityAt.Unix(), 0)
	_ = s.rdb.Publish(ctx, config.CacheKey.CandidateMonitorChannel(candidateID), data)
}
