package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/resumeintel/interview-backend/internal/model"
)

func testSummary(candidateID string) *model.SessionSummary {
	started := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	return &model.SessionSummary{
		CandidateID:     candidateID,
		State:           model.SessionStateEnded,
		RiskLevel:       model.RiskCompleted,
		AnomalyPoints:   2,
		ConfidenceScore: 90,
		IntegrityIndex:  82,
		AnswerQuality:   70,
		AnswersLogged:   3,
		CheatingFlags:   []model.EventType{model.EventWindowUnfocus},
		StartedAt:       started,
		EndedAt:         started.Add(20 * time.Minute),
		DurationSeconds: 1200,
		Summary:         "Stable behavior with strong answer reliability.",
	}
}

func TestFileStore_WriteRead(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	want := testSummary("cand-001")
	require.NoError(t, s.Write(want))

	got, err := s.Read("cand-001")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestFileStore_ReadMissing(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, err = s.Read("ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStore_OverwriteKeepsLatest(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	first := testSummary("cand-001")
	require.NoError(t, s.Write(first))

	// The same candidate interviews again; the new record replaces the old.
	second := testSummary("cand-001")
	second.AnomalyPoints = 12
	second.RiskLevel = model.RiskFlagged
	require.NoError(t, s.Write(second))

	got, err := s.Read("cand-001")
	require.NoError(t, err)
	assert.Equal(t, 12, got.AnomalyPoints)
	assert.Equal(t, model.RiskFlagged, got.RiskLevel)
}

func TestFileStore_NoTempFilesLeftBehind(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, s.Write(testSummary("cand-001")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "cand-001_session.json", entries[0].Name())
}

func TestNewFileStore_CreatesNestedDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	_, err := NewFileStore(dir)
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
