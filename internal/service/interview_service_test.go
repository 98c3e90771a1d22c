package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/resumeintel/interview-backend/internal/chain"
	"github.com/resumeintel/interview-backend/internal/grader"
	"github.com/resumeintel/interview-backend/internal/model"
	"github.com/resumeintel/interview-backend/internal/scoring"
	"github.com/resumeintel/interview-backend/internal/session"
	"github.com/resumeintel/interview-backend/internal/store"
)

func newTestService(t *testing.T) (*InterviewService, *store.FileStore, *chain.Chain) {
	t.Helper()

	dir := t.TempDir()
	sink, err := store.NewFileStore(filepath.Join(dir, "sessions"))
	require.NoError(t, err)
	auditChain, err := chain.Open(filepath.Join(dir, "chain.json"))
	require.NoError(t, err)

	// Archive and cache legs are best effort; the tests run without Redis.
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 10 * time.Millisecond,
		MaxRetries:  -1,
	})

	registry := session.NewRegistry(scoring.NewEngine(scoring.DefaultConfig()))
	svc := NewInterviewService(registry, sink, auditChain, grader.Heuristic{}, rdb, zerolog.Nop())
	return svc, sink, auditChain
}

func TestEndSession_PersistsDurableRecord(t *testing.T) {
	svc, sink, auditChain := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.StartSession(ctx, "cand-001"))
	_, err := svc.SubmitCheatingEvent(ctx, "cand-001", model.EventWindowUnfocus)
	require.NoError(t, err)

	summary, err := svc.EndSession(ctx, "cand-001")
	require.NoError(t, err)
	assert.Equal(t, model.SessionStateEnded, summary.State)

	// The file record exists and matches the returned verdict.
	stored, err := sink.Read("cand-001")
	require.NoError(t, err)
	assert.Equal(t, summary.AnomalyPoints, stored.AnomalyPoints)
	assert.Equal(t, summary.RiskLevel, stored.RiskLevel)

	// The report hash was stamped into the audit chain.
	assert.Equal(t, 2, auditChain.Length())
	assert.NoError(t, auditChain.Verify())
}

func TestEndSession_RepeatDoesNotRestamp(t *testing.T) {
	svc, _, auditChain := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.StartSession(ctx, "cand-001"))
	_, err := svc.EndSession(ctx, "cand-001")
	require.NoError(t, err)
	_, err = svc.EndSession(ctx, "cand-001")
	require.NoError(t, err)

	// One finalization, one chain block.
	assert.Equal(t, 2, auditChain.Length())
}

func TestEndSession_FallsBackToDurableRecord(t *testing.T) {
	svc, sink, _ := newTestService(t)
	ctx := context.Background()

	// Simulate a session finalized before a process restart: the record is
	// on disk but the live registry has never heard of the candidate.
	require.NoError(t, sink.Write(&model.SessionSummary{
		CandidateID: "cand-restart",
		State:       model.SessionStateEnded,
		RiskLevel:   model.RiskCompleted,
	}))

	summary, err := svc.EndSession(ctx, "cand-restart")
	require.NoError(t, err)
	assert.Equal(t, model.SessionStateEnded, summary.State)

	_, err = svc.EndSession(ctx, "cand-never-existed")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetSummary_FallsBackToDurableRecord(t *testing.T) {
	svc, sink, _ := newTestService(t)

	require.NoError(t, sink.Write(&model.SessionSummary{
		CandidateID: "cand-restart",
		State:       model.SessionStateTerminated,
		Forced:      true,
		RiskLevel:   model.RiskIntegrity,
	}))

	summary, err := svc.GetSummary("cand-restart")
	require.NoError(t, err)
	assert.True(t, summary.Forced)

	_, err = svc.GetSummary("cand-never-existed")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSubmitAnswer_GradesAndAppends(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.StartSession(ctx, "cand-001"))

	result, err := svc.SubmitAnswer(ctx, "cand-001",
		"Explain how goroutines differ from OS threads",
		"Goroutines are multiplexed onto OS threads by the runtime scheduler so they are far cheaper to create and switch")
	require.NoError(t, err)
	assert.Greater(t, result.Quality, 0)

	summary, err := svc.EndSession(ctx, "cand-001")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.AnswersLogged)
	assert.Equal(t, result.Quality, summary.AnswerQuality)
}

func TestSubmitAnswer_UnknownCandidate(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.SubmitAnswer(context.Background(), "ghost", "q", "a")
	assert.ErrorIs(t, err, ErrSessionNotActive)
}

func TestActiveSessions(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	assert.Equal(t, 0, svc.ActiveSessions())

	require.NoError(t, svc.StartSession(ctx, "cand-001"))
	require.NoError(t, svc.StartSession(ctx, "cand-002"))
	assert.Equal(t, 2, svc.ActiveSessions())

	_, err := svc.EndSession(ctx, "cand-001")
	require.NoError(t, err)
	assert.Equal(t, 1, svc.ActiveSessions())
}
