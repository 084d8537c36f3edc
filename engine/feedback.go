package formsense

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	Ft "github.com/maroda/formsense/types"
)

// StateGuidanceChance is the probability that a clean frame gets a
// phase-appropriate coaching line instead of silence.
const StateGuidanceChance = 0.30

// Cue colors and durations for the visual overlay contract.
const (
	ColorGood   = "#4CAF50"
	ColorWarn   = "#FF9800"
	ColorDanger = "#F44336"
	ColorInfo   = "#2196F3"
	CueShortMS  = 1000
	CueMediumMS = 2000
	CueLongMS   = 3000
)

// FeedbackInput is everything one pipeline cycle hands the engine.
type FeedbackInput struct {
	Violations []Ft.FormViolation
	State      Ft.ExerciseState
	Angles     *Ft.ExerciseAngles
	View       Ft.ViewType
	Rep        Ft.RepCountResult
	RepCount   int
}

// FeedbackEngine converts analysis output into prioritized audio
// and visual feedback. Audio is throttled on a wall-clock budget
// derived from the active mode; visual cues are emitted every cycle
// regardless of the throttle. It registers as a mode-change listener
// so a switch retunes frequency, floor and sensitivity immediately.
type FeedbackEngine struct {
	MU    sync.Mutex
	cfg   *ModeConfigService
	Clock func() time.Time

	freq        time.Duration
	floor       Ft.FeedbackPriority
	sensitivity float64
	mode        Ft.ExerciseMode

	lastSpoken time.Time
	rng        *rand.Rand
}

// NewFeedbackEngine wires itself into the configuration service's
// listener list under a stable ID.
func NewFeedbackEngine(cfg *ModeConfigService) *FeedbackEngine {
	active := cfg.Active()
	fe := &FeedbackEngine{
		cfg:         cfg,
		Clock:       time.Now,
		freq:        active.Feedback.Frequency,
		floor:       active.Feedback.PriorityFloor,
		sensitivity: active.Thresholds.FeedbackSensitivity,
		mode:        active.Mode,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	cfg.AddModeChangeListener("feedback-engine", fe)
	return fe
}

// SetRand replaces the guidance RNG, for deterministic tests.
func (fe *FeedbackEngine) SetRand(r *rand.Rand) {
	fe.MU.Lock()
	defer fe.MU.Unlock()
	fe.rng = r
}

// OnModeChange retunes the delivery settings from the new config.
func (fe *FeedbackEngine) OnModeChange(ev Ft.ModeChangeEvent) {
	active := fe.cfg.Active()
	fe.MU.Lock()
	defer fe.MU.Unlock()
	fe.freq = active.Feedback.Frequency
	fe.floor = active.Feedback.PriorityFloor
	fe.sensitivity = active.Thresholds.FeedbackSensitivity
	fe.mode = active.Mode
}

// Generate produces the feedback for one cycle.
//
// A frontal or unknown camera view is a hard gate: exactly one
// repositioning instruction goes out and nothing else, because no
// form analysis from a bad angle can be trusted. Otherwise the
// precedence is rep completion, then high-severity safety issues
// (which bypass the throttle), then occasional phase guidance, then
// general corrections.
func (fe *FeedbackEngine) Generate(in FeedbackInput, at time.Time) Ft.FeedbackResponse {
	fe.MU.Lock()
	defer fe.MU.Unlock()

	if in.View != Ft.ViewSide {
		resp := Ft.FeedbackResponse{
			AudioMessages: []string{"Please turn to your side so I can see your form"},
			VisualCues: []Ft.VisualCue{{
				Type:     Ft.CuePositioningGuide,
				Position: Ft.CuePosition{X: 50, Y: 50},
				Color:    ColorInfo,
				Message:  "Turn sideways to the camera",
				Duration: CueLongMS,
			}},
			Priority: Ft.PriorityHigh,
		}
		resp.ShouldSpeak = fe.throttle(resp.Priority, at)
		if resp.ShouldSpeak {
			fe.lastSpoken = at
		}
		return resp
	}

	resp := Ft.FeedbackResponse{Priority: Ft.PriorityLow}

	switch {
	case in.Rep.RepCompleted:
		resp.AudioMessages = append(resp.AudioMessages, in.Rep.Feedback)
		resp.Priority = Ft.PriorityHigh

	case hasHighSeverity(in.Violations):
		for _, v := range in.Violations {
			if v.Severity == Ft.SeverityHigh {
				resp.AudioMessages = append(resp.AudioMessages, v.CorrectionHint)
			}
		}
		resp.Priority = Ft.PriorityCritical

	case len(in.Violations) == 0:
		if fe.rng.Float64() < StateGuidanceChance {
			resp.AudioMessages = append(resp.AudioMessages, stateGuidance(in.State))
			resp.Priority = Ft.PriorityLow
		}

	default:
		for _, v := range in.Violations {
			if v.Severity == Ft.SeverityLow && fe.mode == Ft.Beginner {
				continue // one thing at a time for beginners
			}
			resp.AudioMessages = append(resp.AudioMessages, v.CorrectionHint)
		}
		resp.Priority = Ft.PriorityMedium
	}

	resp.VisualCues = fe.visualCues(in)

	resp.ShouldSpeak = len(resp.AudioMessages) > 0 && fe.throttle(resp.Priority, at)
	if resp.ShouldSpeak {
		fe.lastSpoken = at
	}

	return resp
}

// throttle decides whether audio goes out now. HIGH and CRITICAL
// always speak; everything else needs the frequency budget elapsed
// and the priority at or above the mode's floor. Caller holds the
// lock.
func (fe *FeedbackEngine) throttle(p Ft.FeedbackPriority, at time.Time) bool {
	if p >= Ft.PriorityHigh {
		return true
	}
	if p < fe.floor {
		return false
	}
	return fe.lastSpoken.IsZero() || at.Sub(fe.lastSpoken) >= fe.freq
}

// visualCues builds the overlay set for one cycle. These are never
// throttled: the screen always reflects the current truth.
// Caller holds the lock.
func (fe *FeedbackEngine) visualCues(in FeedbackInput) []Ft.VisualCue {
	cues := []Ft.VisualCue{
		{
			Type:     Ft.CueRepCounter,
			Position: Ft.CuePosition{X: 5, Y: 5},
			Color:    ColorGood,
			Message:  fmt.Sprintf("Reps: %d", in.RepCount),
			Duration: CueShortMS,
		},
		{
			Type:     Ft.CueStateBadge,
			Position: Ft.CuePosition{X: 5, Y: 25},
			Color:    ColorInfo,
			Message:  in.State.String(),
			Duration: CueShortMS,
		},
	}

	if in.Angles != nil {
		cues = append(cues, Ft.VisualCue{
			Type:     Ft.CueAngleReadout,
			Position: Ft.CuePosition{X: 5, Y: 15},
			Color:    ColorInfo,
			Message:  fmt.Sprintf("Knee: %.0f°  Hip: %.0f°", in.Angles.Knee, in.Angles.Hip),
			Duration: CueShortMS,
		})
	}

	for _, v := range in.Violations {
		if v.Severity < Ft.SeverityMedium {
			continue
		}
		color := ColorWarn
		if v.Severity == Ft.SeverityHigh {
			color = ColorDanger
		}
		cues = append(cues, Ft.VisualCue{
			Type:     Ft.CueWarningMarker,
			Position: Ft.CuePosition{X: 50, Y: 10},
			Color:    color,
			Message:  v.Description,
			Duration: CueMediumMS,
		})
	}

	return cues
}

func hasHighSeverity(violations []Ft.FormViolation) bool {
	for _, v := range violations {
		if v.Severity == Ft.SeverityHigh {
			return true
		}
	}
	return false
}

// stateGuidance is the phase-appropriate coaching line.
func stateGuidance(s Ft.ExerciseState) string {
	switch s {
	case Ft.Standing:
		return "Looking good! Ready when you are"
	case Ft.Transition:
		return "Smooth and controlled, keep moving"
	case Ft.DeepSquat:
		return "Great depth! Drive up through your heels"
	default:
		return "Keep going!"
	}
}
