package scoring

import (
	"time"

	"github.com/resumeintel/interview-backend/internal/model"
)

// Config carries the tunable scoring policy. Thresholds and the confidence
// curve are deliberately configuration, not constants baked into the state
// machine.
type Config struct {
	// WarnThreshold triggers the one-time warning when anomaly points
	// strictly exceed it. TerminateThreshold forces termination when points
	// reach or exceed it; it must be greater than WarnThreshold.
	WarnThreshold      int
	TerminateThreshold int

	// ConfidenceSlope is the linear penalty per anomaly point:
	// confidence = clamp(100 - slope*points, 0, 100).
	ConfidenceSlope int

	// Weights maps event types to anomaly points. Unknown types fall back
	// to DefaultWeight.
	Weights       map[model.EventType]int
	DefaultWeight int

	// Cooldowns is the minimum spacing between point-bearing events of the
	// same type. Unknown types fall back to DefaultCooldown.
	Cooldowns       map[model.EventType]time.Duration
	DefaultCooldown time.Duration

	// NoFaceGrace is how long the face must be continuously absent before a
	// NO_FACE event is emitted. GazeGrace/GazeFloor govern GAZE_DEVIATION
	// escalation the same way.
	NoFaceGrace time.Duration
	GazeGrace   time.Duration
	GazeFloor   int
}

// DefaultConfig returns the production scoring policy.
func DefaultConfig() Config {
	return Config{
		WarnThreshold:      8,
		TerminateThreshold: 18,
		ConfidenceSlope:    5,
		Weights: map[model.EventType]int{
			model.EventTabSwitch:     5,
			model.EventMultipleFaces: 5,
			model.EventNoFace:        5,
			model.EventDevTools:      4,
			model.EventWindowUnfocus: 2,
			model.EventGazeDeviation: 2,
		},
		DefaultWeight: 1,
		Cooldowns: map[model.EventType]time.Duration{
			model.EventNoFace:        20 * time.Second,
			model.EventWindowUnfocus: 30 * time.Second,
			model.EventTabSwitch:     10 * time.Second,
			model.EventMultipleFaces: 5 * time.Second,
			model.EventDevTools:      10 * time.Second,
		},
		DefaultCooldown: 10 * time.Second,
		NoFaceGrace:     8 * time.Second,
		GazeGrace:       5 * time.Second,
		GazeFloor:       40,
	}
}

// Engine evaluates signals against the scoring policy. It is stateless:
// per-session run-length and cooldown state lives in FrameTracker and
// CooldownState, owned by the caller and passed in explicitly.
type Engine struct {
	cfg Config
}

// NewEngine creates an Engine with the given policy. A policy whose
// termination threshold does not exceed its warning threshold is miswired
// and is replaced by the default thresholds.
func NewEngine(cfg Config) *Engine {
	if cfg.TerminateThreshold <= cfg.WarnThreshold {
		d := DefaultConfig()
		cfg.WarnThreshold = d.WarnThreshold
		cfg.TerminateThreshold = d.TerminateThreshold
	}
	if cfg.DefaultWeight == 0 {
		cfg.DefaultWeight = 1
	}
	if cfg.DefaultCooldown == 0 {
		cfg.DefaultCooldown = 10 * time.Second
	}
	return &Engine{cfg: cfg}
}

// Weight returns the anomaly points carried by one event of the given type.
func (e *Engine) Weight(t model.EventType) int {
	if w, ok := e.cfg.Weights[t]; ok {
		return w
	}
	return e.cfg.DefaultWeight
}

// Confidence recomputes the confidence score from accumulated anomaly
// points. The curve is linear and monotonically non-increasing; the result
// is always clamped to [0,100].
func (e *Engine) Confidence(points int) int {
	c := 100 - e.cfg.ConfidenceSlope*points
	if c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	return c
}

// ShouldWarn reports whether points have strictly crossed the warning
// threshold.
func (e *Engine) ShouldWarn(points int) bool {
	return points > e.cfg.WarnThreshold
}

// ShouldTerminate reports whether points have reached the termination
// threshold.
func (e *Engine) ShouldTerminate(points int) bool {
	return points >= e.cfg.TerminateThreshold
}

// CooldownState tracks the last accepted time per event type for one
// session.
type CooldownState struct {
	lastAccepted map[model.EventType]time.Time
}

// NewCooldownState creates an empty CooldownState.
func NewCooldownState() *CooldownState {
	return &CooldownState{lastAccepted: make(map[model.EventType]time.Time)}
}

// Accept decides whether an event of the given type is point-bearing at
// `now`. At most one event per type is accepted within its cooldown window;
// a rejected event leaves the window untouched so a continuous anomaly
// cannot extend its own suppression forever.
func (e *Engine) Accept(cd *CooldownState, t model.EventType, now time.Time) bool {
	interval, ok := e.cfg.Cooldowns[t]
	if !ok {
		interval = e.cfg.DefaultCooldown
	}
	if last, seen := cd.lastAccepted[t]; seen && now.Sub(last) < interval {
		return false
	}
	cd.lastAccepted[t] = now
	return true
}

// FrameTracker holds the run-length state for frame-derived signals. A
// single anomalous tick never scores; only a sustained run does.
type FrameTracker struct {
	noFaceSince  time.Time
	gazeLowSince time.Time
}

// NewFrameTracker creates an empty FrameTracker.
func NewFrameTracker() *FrameTracker {
	return &FrameTracker{}
}

// EvaluateFrame folds one tick of derived metrics into the tracker and
// returns the event types the tick implies: zero or more of NO_FACE,
// MULTIPLE_FACES, GAZE_DEVIATION. Cooldown filtering happens downstream.
func (e *Engine) EvaluateFrame(ft *FrameTracker, m model.FrameMetrics, now time.Time) []model.EventType {
	var events []model.EventType

	if m.FacePresent {
		ft.noFaceSince = time.Time{}
		if m.FaceCount > 1 {
			events = append(events, model.EventMultipleFaces)
		}
		// Gaze only evaluated while a face is tracked.
		if m.GazeScore < e.cfg.GazeFloor {
			if ft.gazeLowSince.IsZero() {
				ft.gazeLowSince = now
			} else if now.Sub(ft.gazeLowSince) >= e.cfg.GazeGrace {
				events = append(events, model.EventGazeDeviation)
				ft.gazeLowSince = now // restart the run
			}
		} else {
			ft.gazeLowSince = time.Time{}
		}
	} else {
		ft.gazeLowSince = time.Time{}
		if ft.noFaceSince.IsZero() {
			ft.noFaceSince = now
		} else if now.Sub(ft.noFaceSince) >= e.cfg.NoFaceGrace {
			events = append(events, model.EventNoFace)
			ft.noFaceSince = now // restart the absence window
		}
	}

	return events
}
