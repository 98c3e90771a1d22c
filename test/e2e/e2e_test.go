//go:build e2e
// +build e2e

package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/resumeintel/interview-backend/internal/model"
)

// These tests exercise the full protocol against a running server with its
// Redis and Postgres attached. Run with: go test -tags e2e ./test/e2e/...

const defaultBaseURL = "http://localhost:8080/api/v1/interview"

var baseURL string

func TestMain(m *testing.M) {
	_ = godotenv.Load("../../.env")

	baseURL = os.Getenv("BASE_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	os.Exit(m.Run())
}

type apiResponse struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code string `json:"code"`
	} `json:"error"`
}

func call(t *testing.T, method, path string, body interface{}) (int, *apiResponse) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, baseURL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out apiResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, &out
}

// uniqueCandidate avoids collisions with earlier runs against the same server.
func uniqueCandidate(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

func TestFullInterviewFlow(t *testing.T) {
	candidate := uniqueCandidate("e2e-clean")

	code, _ := call(t, http.MethodPost, "/sessions", map[string]string{"candidate_id": candidate})
	require.Equal(t, http.StatusCreated, code)

	// Duplicate start is refused while the session is live.
	code, out := call(t, http.MethodPost, "/sessions", map[string]string{"candidate_id": candidate})
	require.Equal(t, http.StatusConflict, code)
	require.NotNil(t, out.Error)
	assert.Equal(t, "ALREADY_STARTED", out.Error.Code)

	// One minor anomaly.
	code, out = call(t, http.MethodPost, "/sessions/"+candidate+"/events",
		map[string]string{"event_type": "WINDOW_UNFOCUS"})
	require.Equal(t, http.StatusOK, code)
	var snap model.Snapshot
	require.NoError(t, json.Unmarshal(out.Data, &snap))
	assert.Equal(t, 2, snap.AnomalyPoints)
	assert.Equal(t, model.SessionStateActive, snap.State)

	// A normal frame tick scores nothing.
	code, out = call(t, http.MethodPost, "/sessions/"+candidate+"/frames",
		map[string]interface{}{"face_present": true, "face_count": 1, "gaze_score": 85, "head_score": 90})
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(out.Data, &snap))
	assert.Equal(t, 2, snap.AnomalyPoints)

	// Answer a question.
	code, _ = call(t, http.MethodPost, "/sessions/"+candidate+"/answers", map[string]string{
		"question": "Describe a project where you used message queues",
		"answer":   "I built a pipeline where producers pushed jobs onto message queues and a worker pool drained them with retry and dead letter handling",
	})
	require.Equal(t, http.StatusOK, code)

	// End and inspect the summary.
	code, out = call(t, http.MethodPost, "/sessions/"+candidate+"/end", nil)
	require.Equal(t, http.StatusOK, code)
	var payload struct {
		Summary model.SessionSummary `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(out.Data, &payload))
	assert.Equal(t, model.SessionStateEnded, payload.Summary.State)
	assert.False(t, payload.Summary.Forced)
	assert.Equal(t, 1, payload.Summary.AnswersLogged)

	// Idempotent: a second end returns the same summary.
	code, out = call(t, http.MethodPost, "/sessions/"+candidate+"/end", nil)
	require.Equal(t, http.StatusOK, code)
	var repeat struct {
		Summary model.SessionSummary `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(out.Data, &repeat))
	assert.Equal(t, payload.Summary.EndedAt.Unix(), repeat.Summary.EndedAt.Unix())
}

func TestForcedTermination(t *testing.T) {
	candidate := uniqueCandidate("e2e-cheater")

	code, _ := call(t, http.MethodPost, "/sessions", map[string]string{"candidate_id": candidate})
	require.Equal(t, http.StatusCreated, code)

	// Distinct high-severity types dodge the per-type cooldowns.
	var snap model.Snapshot
	for _, ev := range []string{"TAB_SWITCH", "NO_FACE", "MULTIPLE_FACES", "DEV_TOOLS"} {
		code, out := call(t, http.MethodPost, "/sessions/"+candidate+"/events",
			map[string]string{"event_type": ev})
		require.Equal(t, http.StatusOK, code)
		require.NoError(t, json.Unmarshal(out.Data, &snap))
	}
	assert.Equal(t, model.SessionStateTerminated, snap.State)

	// The terminated session refuses further signals.
	code, out := call(t, http.MethodPost, "/sessions/"+candidate+"/events",
		map[string]string{"event_type": "TAB_SWITCH"})
	require.Equal(t, http.StatusConflict, code)
	require.NotNil(t, out.Error)
	assert.Equal(t, "SESSION_NOT_ACTIVE", out.Error.Code)

	// Summary reflects the forced termination.
	code, out = call(t, http.MethodGet, "/sessions/"+candidate+"/summary", nil)
	require.Equal(t, http.StatusOK, code)
	var payload struct {
		Summary model.SessionSummary `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(out.Data, &payload))
	assert.True(t, payload.Summary.Forced)
	assert.Equal(t, model.RiskIntegrity, payload.Summary.RiskLevel)
}

func TestUnknownCandidate(t *testing.T) {
	code, out := call(t, http.MethodGet, "/sessions/e2e-ghost/summary", nil)
	require.Equal(t, http.StatusNotFound, code)
	require.NotNil(t, out.Error)
	assert.Equal(t, "NOT_FOUND", out.Error.Code)
}
