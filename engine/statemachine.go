package formsense

import (
	"log/slog"
	"sync"
	"time"

	Fp "github.com/maroda/formsense/plugin"
	Ft "github.com/maroda/formsense/types"
)

const (
	// SignificantChangeDeg is the overshoot past the opposite
	// threshold that bypasses the dwell-time guard, so a fast
	// rep is never missed.
	SignificantChangeDeg = 20

	// TransitionHistoryCap bounds the accepted-transition ring.
	TransitionHistoryCap = 50

	// RawSequenceMax/Trim bound the raw-state sequence used for
	// repetition pattern matching: past Max it keeps the last Trim.
	RawSequenceMax  = 20
	RawSequenceTrim = 10
)

// repPattern is the canonical definition of one repetition.
var repPattern = []Ft.ExerciseState{
	Ft.Standing, Ft.Transition, Ft.DeepSquat, Ft.Transition, Ft.Standing,
}

// StateMachine tracks the discrete exercise phase from smoothed
// knee angles. One instance belongs to one active session and is
// never shared across sessions.
type StateMachine struct {
	MU       sync.Mutex
	cfg      *ModeConfigService
	smoother Fp.AngleSmoother
	Clock    func() time.Time

	current  Ft.ExerciseState
	previous Ft.ExerciseState

	lastChange   time.Time
	samples      []float64
	lastSmoothed float64
	lastAngles   Ft.ExerciseAngles

	transitions []Ft.StateTransition
	rawSeq      []Ft.ExerciseState
	rejected    int
}

// NewStateMachine starts in STANDING. The starting state seeds the
// raw sequence so the first full descent/ascent cycle matches the
// repetition pattern. The smoother may be nil, which means the
// newest raw sample wins (degraded mode).
func NewStateMachine(cfg *ModeConfigService, smoother Fp.AngleSmoother) *StateMachine {
	sm := &StateMachine{
		cfg:      cfg,
		smoother: smoother,
		Clock:    time.Now,
		current:  Ft.Standing,
		previous: Ft.Standing,
	}
	sm.rawSeq = append(sm.rawSeq, Ft.Standing)
	return sm
}

// SetSmoother swaps the smoothing filter. Passing nil disables
// smoothing, which the performance monitor recommends under
// latency pressure.
func (sm *StateMachine) SetSmoother(s Fp.AngleSmoother) {
	sm.MU.Lock()
	defer sm.MU.Unlock()
	sm.smoother = s
	sm.samples = sm.samples[:0]
}

// classify maps a smoothed knee angle onto a phase.
func classify(angle float64, th AngleThresholds) Ft.ExerciseState {
	switch {
	case angle > th.S1Threshold:
		return Ft.Standing
	case angle < th.S3Threshold:
		return Ft.DeepSquat
	default:
		return Ft.Transition
	}
}

// Update feeds one angle sample at a given instant and returns the
// accepted transition, or nil when the state is unchanged or the
// candidate change was rejected by the dwell guard. Rejected
// candidates are not recorded anywhere except a noise counter.
func (sm *StateMachine) Update(angles Ft.ExerciseAngles, at time.Time) *Ft.StateTransition {
	sm.MU.Lock()
	defer sm.MU.Unlock()

	sm.lastAngles = angles
	sm.pushSample(angles.Knee)
	sm.lastSmoothed = sm.smooth()

	active := sm.cfg.Active()
	th := active.Thresholds.Knee

	target := classify(sm.lastSmoothed, th)
	if target == sm.current {
		return nil
	}

	// A zero lastChange means the machine has sat in its initial
	// state since construction, so the dwell guard cannot reject.
	dwell := at.Sub(sm.lastChange)
	if !sm.lastChange.IsZero() && dwell < active.Analysis.MinStateDuration && !sm.significant(th) {
		sm.rejected++
		return nil
	}

	tr := sm.accept(target, angles, at)
	return &tr
}

// significant reports whether the smoothed angle jumped far enough
// past the opposite threshold to bypass the dwell guard: more than
// SignificantChangeDeg from STANDING directly toward DEEP_SQUAT,
// or vice versa.
func (sm *StateMachine) significant(th AngleThresholds) bool {
	switch sm.current {
	case Ft.Standing:
		return sm.lastSmoothed < th.S3Threshold-SignificantChangeDeg
	case Ft.DeepSquat:
		return sm.lastSmoothed > th.S1Threshold+SignificantChangeDeg
	default:
		return false
	}
}

// accept records the transition. Caller holds the lock.
func (sm *StateMachine) accept(target Ft.ExerciseState, angles Ft.ExerciseAngles, at time.Time) Ft.StateTransition {
	tr := Ft.StateTransition{
		Previous:      sm.current,
		Current:       target,
		Timestamp:     at,
		TriggerAngles: angles,
	}

	sm.previous = sm.current
	sm.current = target
	sm.lastChange = at

	sm.transitions = append(sm.transitions, tr)
	if len(sm.transitions) > TransitionHistoryCap {
		sm.transitions = sm.transitions[len(sm.transitions)-TransitionHistoryCap:]
	}

	sm.rawSeq = append(sm.rawSeq, target)
	if len(sm.rawSeq) > RawSequenceMax {
		sm.rawSeq = sm.rawSeq[len(sm.rawSeq)-RawSequenceTrim:]
	}

	return tr
}

func (sm *StateMachine) pushSample(v float64) {
	window := Fp.WMAWindow
	if sm.smoother != nil && sm.smoother.WindowReq() > 0 {
		window = sm.smoother.WindowReq()
	}
	sm.samples = append(sm.samples, v)
	if len(sm.samples) > window {
		sm.samples = sm.samples[len(sm.samples)-window:]
	}
}

func (sm *StateMachine) smooth() float64 {
	if sm.smoother == nil {
		return sm.samples[len(sm.samples)-1]
	}
	return sm.smoother.Smooth(sm.samples)
}

// OnModeChange re-evaluates the current sample against the new
// thresholds immediately, so a mode switch mid-movement never
// leaves a stale state. The dwell guard does not apply here.
func (sm *StateMachine) OnModeChange(ev Ft.ModeChangeEvent) {
	sm.MU.Lock()
	defer sm.MU.Unlock()

	if len(sm.samples) == 0 {
		return
	}

	th := sm.cfg.Active().Thresholds.Knee
	target := classify(sm.lastSmoothed, th)
	if target == sm.current {
		return
	}

	slog.Info("Reclassifying state after mode change",
		slog.String("from", sm.current.String()),
		slog.String("to", target.String()),
		slog.String("mode", ev.NewMode.String()))
	sm.accept(target, sm.lastAngles, sm.Clock())
}

// matchAt reports whether the rep pattern starts at index i.
// Caller holds the lock.
func (sm *StateMachine) matchAt(i int) bool {
	if i+len(repPattern) > len(sm.rawSeq) {
		return false
	}
	for j, want := range repPattern {
		if sm.rawSeq[i+j] != want {
			return false
		}
	}
	return true
}

// IsValidRepetition reports whether the literal subsequence
// [STANDING, TRANSITION, DEEP_SQUAT, TRANSITION, STANDING] occurs
// anywhere within the raw-state sequence, not only at the tail.
func (sm *StateMachine) IsValidRepetition() bool {
	sm.MU.Lock()
	defer sm.MU.Unlock()
	for i := range sm.rawSeq {
		if sm.matchAt(i) {
			return true
		}
	}
	return false
}

// ConsumeRepetition trims the raw sequence past the first full
// pattern match so the same physical rep is never counted twice.
// The closing STANDING stays, it is the opening state of the next
// rep. Returns false when no full pattern is present.
func (sm *StateMachine) ConsumeRepetition() bool {
	sm.MU.Lock()
	defer sm.MU.Unlock()
	for i := range sm.rawSeq {
		if sm.matchAt(i) {
			sm.rawSeq = sm.rawSeq[i+len(repPattern)-1:]
			sm.rejected = 0
			return true
		}
	}
	return false
}

// HasValidPartialSequence recognizes a pure descent or pure ascent
// at the tail of the sequence, for progress feedback before the
// rep fully closes.
func (sm *StateMachine) HasValidPartialSequence() bool {
	sm.MU.Lock()
	defer sm.MU.Unlock()
	n := len(sm.rawSeq)
	if n < 3 {
		return false
	}
	tail := sm.rawSeq[n-3:]
	descent := tail[0] == Ft.Standing && tail[1] == Ft.Transition && tail[2] == Ft.DeepSquat
	ascent := tail[0] == Ft.DeepSquat && tail[1] == Ft.Transition && tail[2] == Ft.Standing
	return descent || ascent
}

// IsInactive compares elapsed time since the last accepted
// transition to the given timeout, or to the mode's inactivity
// timeout when zero.
func (sm *StateMachine) IsInactive(timeout time.Duration) bool {
	sm.MU.Lock()
	defer sm.MU.Unlock()

	if timeout <= 0 {
		secs := sm.cfg.Active().Thresholds.InactivityTimeout
		timeout = time.Duration(secs * float64(time.Second))
	}
	if sm.lastChange.IsZero() {
		return false
	}
	return sm.Clock().Sub(sm.lastChange) > timeout
}

func (sm *StateMachine) CurrentState() Ft.ExerciseState {
	sm.MU.Lock()
	defer sm.MU.Unlock()
	return sm.current
}

func (sm *StateMachine) PreviousState() Ft.ExerciseState {
	sm.MU.Lock()
	defer sm.MU.Unlock()
	return sm.previous
}

// LastSmoothed is the most recent filtered knee angle.
func (sm *StateMachine) LastSmoothed() float64 {
	sm.MU.Lock()
	defer sm.MU.Unlock()
	return sm.lastSmoothed
}

// RejectedCount is the number of candidate transitions the dwell
// guard rejected since the last consumed repetition. The counter
// feeds the rep-quality smoothness grade.
func (sm *StateMachine) RejectedCount() int {
	sm.MU.Lock()
	defer sm.MU.Unlock()
	return sm.rejected
}

// Transitions returns a copy of the bounded transition history.
func (sm *StateMachine) Transitions() []Ft.StateTransition {
	sm.MU.Lock()
	defer sm.MU.Unlock()
	out := make([]Ft.StateTransition, len(sm.transitions))
	copy(out, sm.transitions)
	return out
}

// RawSequence returns a copy of the raw-state sequence.
func (sm *StateMachine) RawSequence() []Ft.ExerciseState {
	sm.MU.Lock()
	defer sm.MU.Unlock()
	out := make([]Ft.ExerciseState, len(sm.rawSeq))
	copy(out, sm.rawSeq)
	return out
}
