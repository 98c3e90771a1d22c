package session

import (
	"errors"
	"sync"
	"time"

	"github.com/resumeintel/interview-backend/internal/model"
	"github.com/resumeintel/interview-backend/internal/scoring"
)

// Typed conditions returned by the registry. All of them are recoverable at
// the boundary; none should ever surface as a crash.
var (
	ErrAlreadyStarted   = errors.New("session already started")
	ErrSessionNotActive = errors.New("session not active")
	ErrNotFound         = errors.New("session not found")
)

// entry pairs the ledger with its serialization lock and the scoring state
// that is per-session but owned by the engine's policy.
type entry struct {
	mu       sync.Mutex
	ledger   model.CandidateSession
	cooldown *scoring.CooldownState
	tracker  *scoring.FrameTracker
	summary  *model.SessionSummary // set exactly once at finalization
}

// Registry is the in-memory ledger store. Signals for one candidate are
// serialized by the entry mutex; distinct candidates proceed in parallel.
// The registry itself never performs I/O: scoring and lifecycle transitions
// are synchronous, and persistence is the caller's job once a finalized
// summary is handed back.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	engine  *scoring.Engine
	now     func() time.Time
}

// NewRegistry creates a Registry backed by the given scoring engine.
func NewRegistry(engine *scoring.Engine) *Registry {
	return &Registry{
		entries: make(map[string]*entry),
		engine:  engine,
		now:     time.Now,
	}
}

// SetClock overrides the time source. Test hook.
func (r *Registry) SetClock(now func() time.Time) {
	r.now = now
}

// Start creates a fresh Active session for the candidate. A candidate with
// an existing non-terminal session gets ErrAlreadyStarted; a finalized
// session is replaced by a fresh one (a new start is never a resume).
func (r *Registry) Start(candidateID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ent, ok := r.entries[candidateID]; ok {
		ent.mu.Lock()
		terminal := ent.ledger.State.Terminal()
		ent.mu.Unlock()
		if !terminal {
			return ErrAlreadyStarted
		}
	}

	now := r.now()
	r.entries[candidateID] = &entry{
		ledger: model.CandidateSession{
			CandidateID:     candidateID,
			State:           model.SessionStateActive,
			ConfidenceScore: r.engine.Confidence(0),
			CreatedAt:       now,
			LastActivityAt:  now,
		},
		cooldown: scoring.NewCooldownState(),
		tracker:  scoring.NewFrameTracker(),
	}
	return nil
}

// lookup fetches the entry for a candidate or ErrNotFound.
func (r *Registry) lookup(candidateID string) (*entry, error) {
	r.mu.RLock()
	ent, ok := r.entries[candidateID]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return ent, nil
}

// ApplyEvent records an explicit client-detected anomaly. The event time is
// assigned here, server-side; any client-supplied timestamp has already been
// discarded upstream. Returns the post-signal snapshot and, when this signal
// forced termination, the freshly built summary (exactly once).
func (r *Registry) ApplyEvent(candidateID string, t model.EventType) (*model.Snapshot, *model.SessionSummary, error) {
	ent, err := r.lookup(candidateID)
	if err != nil {
		return nil, nil, ErrSessionNotActive
	}

	ent.mu.Lock()
	defer ent.mu.Unlock()

	if !ent.ledger.State.Accepting() {
		return nil, nil, ErrSessionNotActive
	}

	now := r.now()
	summary := r.applyEventsLocked(ent, []model.EventType{t}, now)
	ent.ledger.LastActivityAt = now
	return snapshotLocked(ent), summary, nil
}

// ApplyFrame folds one tick of derived face/gaze metrics into the session.
// A single call may imply zero or more point-bearing events; the run-length
// escalation lives in the scoring engine, not here.
func (r *Registry) ApplyFrame(candidateID string, m model.FrameMetrics) (*model.Snapshot, *model.SessionSummary, error) {
	ent, err := r.lookup(candidateID)
	if err != nil {
		return nil, nil, ErrSessionNotActive
	}

	ent.mu.Lock()
	defer ent.mu.Unlock()

	if !ent.ledger.State.Accepting() {
		return nil, nil, ErrSessionNotActive
	}

	now := r.now()
	implied := r.engine.EvaluateFrame(ent.tracker, m, now)
	summary := r.applyEventsLocked(ent, implied, now)
	ent.ledger.LastActivityAt = now
	return snapshotLocked(ent), summary, nil
}

// AppendAnswer appends a graded question/answer pair and advances the
// question pointer. Answers never carry a scoring side effect here; grading
// quality comes from the external collaborator.
func (r *Registry) AppendAnswer(candidateID, question, answer string, quality int) error {
	ent, err := r.lookup(candidateID)
	if err != nil {
		return ErrSessionNotActive
	}

	ent.mu.Lock()
	defer ent.mu.Unlock()

	if !ent.ledger.State.Accepting() {
		return ErrSessionNotActive
	}

	now := r.now()
	ent.ledger.Answers = append(ent.ledger.Answers, model.Answer{
		Question:    question,
		Answer:      answer,
		Quality:     quality,
		SubmittedAt: now,
	})
	ent.ledger.QuestionIndex++
	ent.ledger.LastActivityAt = now
	return nil
}

// End finalizes the session on explicit client request. The first caller to
// reach a terminal state wins: a repeat call (or a call racing a forced
// termination) is a no-op returning the already-built summary.
func (r *Registry) End(candidateID string) (*model.SessionSummary, bool, error) {
	ent, err := r.lookup(candidateID)
	if err != nil {
		return nil, false, ErrNotFound
	}

	ent.mu.Lock()
	defer ent.mu.Unlock()

	if ent.ledger.State.Terminal() {
		return ent.summary, false, nil
	}

	summary := r.finalizeLocked(ent, model.SessionStateEnded)
	return summary, true, nil
}

// Snapshot returns the current read-side view of a session.
func (r *Registry) Snapshot(candidateID string) (*model.Snapshot, error) {
	ent, err := r.lookup(candidateID)
	if err != nil {
		return nil, err
	}
	ent.mu.Lock()
	defer ent.mu.Unlock()
	return snapshotLocked(ent), nil
}

// Summary returns the finalized summary, or ErrNotFound while the session is
// still live or unknown.
func (r *Registry) Summary(candidateID string) (*model.SessionSummary, error) {
	ent, err := r.lookup(candidateID)
	if err != nil {
		return nil, err
	}
	ent.mu.Lock()
	defer ent.mu.Unlock()
	if ent.summary == nil {
		return nil, ErrNotFound
	}
	return ent.summary, nil
}

// ActiveCount returns the number of sessions still accepting signals.
func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, ent := range r.entries {
		ent.mu.Lock()
		if ent.ledger.State.Accepting() {
			n++
		}
		ent.mu.Unlock()
	}
	return n
}

// Idle returns candidate IDs whose last activity is older than age. The
// registry only reports; reaping is an external collaborator's decision.
func (r *Registry) Idle(age time.Duration) []string {
	cutoff := r.now().Add(-age)

	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []string
	for id, ent := range r.entries {
		ent.mu.Lock()
		if ent.ledger.State.Accepting() && ent.ledger.LastActivityAt.Before(cutoff) {
			ids = append(ids, id)
		}
		ent.mu.Unlock()
	}
	return ids
}

// applyEventsLocked runs each implied event through the cooldown gate,
// appends accepted events, recomputes the derived score, and drives the
// warn/terminate transitions. Caller holds ent.mu. Returns a summary when
// this batch forced termination.
func (r *Registry) applyEventsLocked(ent *entry, events []model.EventType, now time.Time) *model.SessionSummary {
	for _, t := range events {
		if !r.engine.Accept(ent.cooldown, t, now) {
			continue
		}
		w := r.engine.Weight(t)
		ent.ledger.CheatingEvents = append(ent.ledger.CheatingEvents, model.CheatingEvent{
			Type:       t,
			Severity:   model.SeverityOf(t),
			Points:     w,
			RecordedAt: now,
		})
		ent.ledger.AnomalyPoints += w
	}

	// Derived, never mutated directly.
	ent.ledger.ConfidenceScore = r.engine.Confidence(ent.ledger.AnomalyPoints)

	if r.engine.ShouldTerminate(ent.ledger.AnomalyPoints) {
		return r.finalizeLocked(ent, model.SessionStateTerminated)
	}

	if !ent.ledger.WarningIssued && r.engine.ShouldWarn(ent.ledger.AnomalyPoints) {
		ent.ledger.WarningIssued = true
		ent.ledger.State = model.SessionStateWarned
	}

	return nil
}

// finalizeLocked moves the ledger into a terminal state and builds the
// summary exactly once. Caller holds ent.mu and has checked the state is
// non-terminal.
func (r *Registry) finalizeLocked(ent *entry, terminal model.SessionState) *model.SessionSummary {
	now := r.now()
	ent.ledger.State = terminal
	ent.ledger.EndedAt = &now

	ent.summary = buildSummary(&ent.ledger, terminal == model.SessionStateTerminated)
	return ent.summary
}

// snapshotLocked builds the newest-first read view. Caller holds ent.mu.
func snapshotLocked(ent *entry) *model.Snapshot {
	return &model.Snapshot{
		CandidateID:     ent.ledger.CandidateID,
		State:           ent.ledger.State,
		AnomalyPoints:   ent.ledger.AnomalyPoints,
		ConfidenceScore: ent.ledger.ConfidenceScore,
		WarningIssued:   ent.ledger.WarningIssued,
		CheatingEvents:  newestFirst(ent.ledger.CheatingEvents),
		LastActivityAt:  ent.ledger.LastActivityAt,
	}
}

// newestFirst copies events in reverse chronological order. Presentation
// only — the stored ledger keeps insertion order.
func newestFirst(events []model.CheatingEvent) []model.CheatingEvent {
	out := make([]model.CheatingEvent, len(events))
	for i, e := range events {
		out[len(events)-1-i] = e
	}
	return out
}
