package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/resumeintel/interview-backend/internal/model"
	"github.com/resumeintel/interview-backend/internal/scoring"
)

// testClock gives each test deterministic control over signal timing.
type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time          { return c.now }
func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestRegistry(t *testing.T) (*Registry, *testClock) {
	t.Helper()
	clock := &testClock{now: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
	r := NewRegistry(scoring.NewEngine(scoring.DefaultConfig()))
	r.SetClock(clock.Now)
	return r, clock
}

func TestRegistry_StartSession(t *testing.T) {
	r, _ := newTestRegistry(t)

	require.NoError(t, r.Start("cand-001"))

	snap, err := r.Snapshot("cand-001")
	require.NoError(t, err)
	assert.Equal(t, model.SessionStateActive, snap.State)
	assert.Equal(t, 0, snap.AnomalyPoints)
	assert.Equal(t, 100, snap.ConfidenceScore)
	assert.False(t, snap.WarningIssued)
	assert.Empty(t, snap.CheatingEvents)
}

func TestRegistry_StartTwiceRejected(t *testing.T) {
	r, _ := newTestRegistry(t)

	require.NoError(t, r.Start("cand-001"))
	assert.ErrorIs(t, r.Start("cand-001"), ErrAlreadyStarted)
}

func TestRegistry_RestartAfterTerminalIsFresh(t *testing.T) {
	r, clock := newTestRegistry(t)

	require.NoError(t, r.Start("cand-001"))
	_, _, err := r.ApplyEvent("cand-001", model.EventTabSwitch)
	require.NoError(t, err)
	_, newly, err := r.End("cand-001")
	require.NoError(t, err)
	require.True(t, newly)

	// A new interview round replaces the finalized session entirely.
	clock.Advance(time.Hour)
	require.NoError(t, r.Start("cand-001"))

	snap, err := r.Snapshot("cand-001")
	require.NoError(t, err)
	assert.Equal(t, model.SessionStateActive, snap.State)
	assert.Equal(t, 0, snap.AnomalyPoints)
	assert.Empty(t, snap.CheatingEvents)

	// The previous round's summary is gone from the live registry.
	_, err = r.Summary("cand-001")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistry_EventForUnknownCandidate(t *testing.T) {
	r, _ := newTestRegistry(t)

	_, _, err := r.ApplyEvent("ghost", model.EventTabSwitch)
	assert.ErrorIs(t, err, ErrSessionNotActive)
}

func TestRegistry_EventAccumulatesPoints(t *testing.T) {
	r, clock := newTestRegistry(t)
	require.NoError(t, r.Start("cand-001"))

	snap, summary, err := r.ApplyEvent("cand-001", model.EventWindowUnfocus)
	require.NoError(t, err)
	assert.Nil(t, summary)
	assert.Equal(t, 2, snap.AnomalyPoints)
	assert.Equal(t, 90, snap.ConfidenceScore)
	assert.Equal(t, model.SessionStateActive, snap.State)

	clock.Advance(time.Minute)
	snap, _, err = r.ApplyEvent("cand-001", model.EventDevTools)
	require.NoError(t, err)
	assert.Equal(t, 6, snap.AnomalyPoints)
	assert.Equal(t, 70, snap.ConfidenceScore)
}

func TestRegistry_WarningIssuedOnceAboveThreshold(t *testing.T) {
	r, clock := newTestRegistry(t)
	require.NoError(t, r.Start("cand-001"))

	// Two tab switches spaced past the cooldown: 5 + 5 = 10 points,
	// strictly above the warning threshold of 8.
	_, _, err := r.ApplyEvent("cand-001", model.EventTabSwitch)
	require.NoError(t, err)

	clock.Advance(15 * time.Second)
	snap, summary, err := r.ApplyEvent("cand-001", model.EventTabSwitch)
	require.NoError(t, err)
	assert.Nil(t, summary)
	assert.Equal(t, 10, snap.AnomalyPoints)
	assert.Equal(t, model.SessionStateWarned, snap.State)
	assert.True(t, snap.WarningIssued)

	// Further low-weight events keep the session in WARNED, no second warning.
	clock.Advance(time.Minute)
	snap, _, err = r.ApplyEvent("cand-001", model.EventWindowUnfocus)
	require.NoError(t, err)
	assert.Equal(t, model.SessionStateWarned, snap.State)
	assert.True(t, snap.WarningIssued)
}

func TestRegistry_ExactWarnThresholdDoesNotWarn(t *testing.T) {
	r, clock := newTestRegistry(t)
	require.NoError(t, r.Start("cand-001"))

	// 4 + 2 + 2 = 8 points: sitting exactly on the threshold is not a crossing.
	_, _, err := r.ApplyEvent("cand-001", model.EventDevTools)
	require.NoError(t, err)
	clock.Advance(time.Minute)
	_, _, err = r.ApplyEvent("cand-001", model.EventWindowUnfocus)
	require.NoError(t, err)
	clock.Advance(time.Minute)
	snap, _, err := r.ApplyEvent("cand-001", model.EventGazeDeviation)
	require.NoError(t, err)

	assert.Equal(t, 8, snap.AnomalyPoints)
	assert.Equal(t, model.SessionStateActive, snap.State)
	assert.False(t, snap.WarningIssued)
}

func TestRegistry_ForcedTermination(t *testing.T) {
	r, clock := newTestRegistry(t)
	require.NoError(t, r.Start("cand-001"))

	// Four tab switches past their cooldowns: 20 points >= 18.
	var summary *model.SessionSummary
	for i := 0; i < 4; i++ {
		var err error
		_, summary, err = r.ApplyEvent("cand-001", model.EventTabSwitch)
		require.NoError(t, err)
		clock.Advance(15 * time.Second)
	}

	require.NotNil(t, summary, "the terminating signal must hand back the summary")
	assert.True(t, summary.Forced)
	assert.Equal(t, model.SessionStateTerminated, summary.State)
	assert.Equal(t, 20, summary.AnomalyPoints)
	assert.Equal(t, model.RiskIntegrity, summary.RiskLevel)
	assert.Equal(t, 0, summary.ConfidenceScore)

	// Terminal sessions reject further signals.
	_, _, err := r.ApplyEvent("cand-001", model.EventTabSwitch)
	assert.ErrorIs(t, err, ErrSessionNotActive)
	assert.ErrorIs(t, r.AppendAnswer("cand-001", "q", "a", 50), ErrSessionNotActive)
}

func TestRegistry_TerminationWinsOverWarning(t *testing.T) {
	r, clock := newTestRegistry(t)
	require.NoError(t, r.Start("cand-001"))

	// A high-severity burst escalates through WARNED straight into
	// TERMINATED; the final verdict is always termination.
	events := []model.EventType{
		model.EventTabSwitch, model.EventNoFace, model.EventMultipleFaces, model.EventDevTools,
	}
	var summary *model.SessionSummary
	for _, ev := range events {
		var err error
		_, summary, err = r.ApplyEvent("cand-001", ev)
		require.NoError(t, err)
		clock.Advance(30 * time.Second)
		if summary != nil {
			break
		}
	}

	require.NotNil(t, summary)
	assert.Equal(t, model.SessionStateTerminated, summary.State)
}

func TestRegistry_CooldownSuppressesRepeats(t *testing.T) {
	r, clock := newTestRegistry(t)
	require.NoError(t, r.Start("cand-001"))

	_, _, err := r.ApplyEvent("cand-001", model.EventTabSwitch)
	require.NoError(t, err)

	// Hammering the same type inside the window records nothing new.
	clock.Advance(2 * time.Second)
	snap, _, err := r.ApplyEvent("cand-001", model.EventTabSwitch)
	require.NoError(t, err)
	assert.Equal(t, 5, snap.AnomalyPoints)
	assert.Len(t, snap.CheatingEvents, 1)

	// Past the window it scores again.
	clock.Advance(10 * time.Second)
	snap, _, err = r.ApplyEvent("cand-001", model.EventTabSwitch)
	require.NoError(t, err)
	assert.Equal(t, 10, snap.AnomalyPoints)
	assert.Len(t, snap.CheatingEvents, 2)
}

func TestRegistry_SnapshotNewestFirst(t *testing.T) {
	r, clock := newTestRegistry(t)
	require.NoError(t, r.Start("cand-001"))

	_, _, err := r.ApplyEvent("cand-001", model.EventWindowUnfocus)
	require.NoError(t, err)
	clock.Advance(time.Minute)
	_, _, err = r.ApplyEvent("cand-001", model.EventDevTools)
	require.NoError(t, err)
	clock.Advance(time.Minute)
	snap, _, err := r.ApplyEvent("cand-001", model.EventGazeDeviation)
	require.NoError(t, err)

	require.Len(t, snap.CheatingEvents, 3)
	assert.Equal(t, model.EventGazeDeviation, snap.CheatingEvents[0].Type)
	assert.Equal(t, model.EventDevTools, snap.CheatingEvents[1].Type)
	assert.Equal(t, model.EventWindowUnfocus, snap.CheatingEvents[2].Type)
	assert.True(t, snap.CheatingEvents[0].RecordedAt.After(snap.CheatingEvents[2].RecordedAt))
}

func TestRegistry_ApplyFrameEscalation(t *testing.T) {
	r, clock := newTestRegistry(t)
	require.NoError(t, r.Start("cand-001"))

	absent := model.FrameMetrics{FacePresent: false}

	// Ticks inside the grace window score nothing.
	for i := 0; i < 8; i++ {
		snap, _, err := r.ApplyFrame("cand-001", absent)
		require.NoError(t, err)
		assert.Equal(t, 0, snap.AnomalyPoints)
		clock.Advance(time.Second)
	}

	// Grace exhausted: the next tick implies NO_FACE, worth 5 points.
	snap, _, err := r.ApplyFrame("cand-001", absent)
	require.NoError(t, err)
	assert.Equal(t, 5, snap.AnomalyPoints)
	require.Len(t, snap.CheatingEvents, 1)
	assert.Equal(t, model.EventNoFace, snap.CheatingEvents[0].Type)
}

func TestRegistry_EndIsIdempotent(t *testing.T) {
	r, clock := newTestRegistry(t)
	require.NoError(t, r.Start("cand-001"))

	_, _, err := r.ApplyEvent("cand-001", model.EventWindowUnfocus)
	require.NoError(t, err)
	clock.Advance(10 * time.Minute)

	first, newly, err := r.End("cand-001")
	require.NoError(t, err)
	assert.True(t, newly)
	assert.False(t, first.Forced)
	assert.Equal(t, model.SessionStateEnded, first.State)
	assert.Equal(t, 600, first.DurationSeconds)

	// Second call is a no-op returning the same summary.
	clock.Advance(time.Hour)
	second, newly, err := r.End("cand-001")
	require.NoError(t, err)
	assert.False(t, newly)
	assert.Same(t, first, second)
}

func TestRegistry_EndAfterForcedTerminationReturnsForcedSummary(t *testing.T) {
	r, clock := newTestRegistry(t)
	require.NoError(t, r.Start("cand-001"))

	var summary *model.SessionSummary
	for summary == nil {
		var err error
		_, summary, err = r.ApplyEvent("cand-001", model.EventTabSwitch)
		require.NoError(t, err)
		clock.Advance(15 * time.Second)
	}

	// An explicit end arriving after the forced termination must not
	// overwrite the verdict.
	got, newly, err := r.End("cand-001")
	require.NoError(t, err)
	assert.False(t, newly)
	assert.True(t, got.Forced)
	assert.Equal(t, model.SessionStateTerminated, got.State)
}

func TestRegistry_EndUnknownCandidate(t *testing.T) {
	r, _ := newTestRegistry(t)

	_, _, err := r.End("ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistry_AnswersFeedSummaryQuality(t *testing.T) {
	r, clock := newTestRegistry(t)
	require.NoError(t, r.Start("cand-001"))

	require.NoError(t, r.AppendAnswer("cand-001", "Tell me about Go channels", "They synchronize goroutines...", 80))
	clock.Advance(time.Minute)
	require.NoError(t, r.AppendAnswer("cand-001", "What is a race condition", "Unsynchronized shared access...", 60))

	summary, newly, err := r.End("cand-001")
	require.NoError(t, err)
	require.True(t, newly)

	assert.Equal(t, 2, summary.AnswersLogged)
	assert.Equal(t, 70, summary.AnswerQuality)
	// Clean session: integrity blends full confidence with answer quality.
	assert.Equal(t, (100*60+70*40)/100, summary.IntegrityIndex)
	assert.Equal(t, model.RiskCompleted, summary.RiskLevel)
}

func TestRegistry_SummaryRiskLevels(t *testing.T) {
	t.Run("warned session is flagged for review", func(t *testing.T) {
		r, clock := newTestRegistry(t)
		require.NoError(t, r.Start("cand-001"))

		_, _, err := r.ApplyEvent("cand-001", model.EventTabSwitch)
		require.NoError(t, err)
		clock.Advance(15 * time.Second)
		_, _, err = r.ApplyEvent("cand-001", model.EventTabSwitch)
		require.NoError(t, err)

		summary, _, err := r.End("cand-001")
		require.NoError(t, err)
		assert.Equal(t, model.RiskFlagged, summary.RiskLevel)
		assert.False(t, summary.Forced)
	})

	t.Run("clean session completes", func(t *testing.T) {
		r, _ := newTestRegistry(t)
		require.NoError(t, r.Start("cand-001"))

		summary, _, err := r.End("cand-001")
		require.NoError(t, err)
		assert.Equal(t, model.RiskCompleted, summary.RiskLevel)
		assert.Equal(t, 100, summary.ConfidenceScore)
	})
}

func TestRegistry_SummaryWhileLiveIsNotFound(t *testing.T) {
	r, _ := newTestRegistry(t)
	require.NoError(t, r.Start("cand-001"))

	_, err := r.Summary("cand-001")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistry_IdleReportsStaleActiveSessions(t *testing.T) {
	r, clock := newTestRegistry(t)

	require.NoError(t, r.Start("stale"))
	clock.Advance(45 * time.Minute)
	require.NoError(t, r.Start("fresh"))

	// An ended session is never reported, no matter how old.
	require.NoError(t, r.Start("closed"))
	_, _, err := r.End("closed")
	require.NoError(t, err)

	ids := r.Idle(30 * time.Minute)
	assert.Equal(t, []string{"stale"}, ids)
}

func TestIntegrityIndex(t *testing.T) {
	tests := []struct {
		name       string
		confidence int
		quality    int
		points     int
		expected   int
	}{
		{"perfect session", 100, 100, 0, 100},
		{"clean with weak answers", 100, 0, 0, 60},
		{"floor applies", 0, 0, 20, 25},
		{"hard compromise collapses to zero", 0, 100, 31, 0},
		{"at compromise boundary the floor still holds", 0, 0, 30, 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, integrityIndex(tt.confidence, tt.quality, tt.points))
		})
	}
}
