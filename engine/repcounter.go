package formsense

import (
	"fmt"
	"math"
	"sync"
	"time"

	Ft "github.com/maroda/formsense/types"
)

// RepCounter turns state-machine phase cycles into counted,
// quality-graded repetitions. It accumulates the violations and
// depth observed during the current rep window and grades the rep
// when the full phase pattern closes.
type RepCounter struct {
	MU sync.Mutex

	count          int
	minDepth       float64
	highViolations int
	windowStart    time.Time
}

func NewRepCounter() *RepCounter {
	return &RepCounter{minDepth: math.Inf(1)}
}

// Observe feeds one frame's worth of pipeline output. When the
// state machine's raw sequence holds a full repetition pattern the
// counter grades it, consumes the match (so overlapping matches of
// the same physical rep are never double-counted) and emits a
// completed RepCountResult. Otherwise the zero result is returned.
func (rc *RepCounter) Observe(sm *StateMachine, angles *Ft.ExerciseAngles, violations []Ft.FormViolation, at time.Time, cfg ActiveConfig) Ft.RepCountResult {
	rc.MU.Lock()
	defer rc.MU.Unlock()

	if rc.windowStart.IsZero() {
		rc.windowStart = at
	}

	if angles != nil && angles.Knee < rc.minDepth {
		rc.minDepth = angles.Knee
	}
	for _, v := range violations {
		if v.Severity == Ft.SeverityHigh {
			rc.highViolations++
		}
	}

	if !sm.IsValidRepetition() {
		return Ft.RepCountResult{}
	}

	quality := gradeRep(rc.highViolations, rc.minDepth, sm.RejectedCount(), cfg)
	sm.ConsumeRepetition()
	rc.count++

	result := Ft.RepCountResult{
		RepCompleted: true,
		Quality:      quality,
		Feedback:     repFeedback(quality, rc.count, cfg.Exercise),
		ShouldReset:  true,
		StartTime:    rc.windowStart,
		Duration:     at.Sub(rc.windowStart),
	}

	// The next window opens on the next observed frame, so idle
	// time between reps never counts into a rep's duration.
	rc.minDepth = math.Inf(1)
	rc.highViolations = 0
	rc.windowStart = time.Time{}

	return result
}

// gradeRep is deterministic: the same violation/angle inputs always
// produce the same quality.
func gradeRep(highViolations int, minDepth float64, rejected int, cfg ActiveConfig) Ft.RepQuality {
	score := 100

	if highViolations > 0 {
		score -= 40
	}

	depthErr := math.Abs(minDepth - cfg.Analysis.OptimalDepth)
	switch {
	case depthErr <= 5:
		// on target
	case depthErr <= 15:
		score -= 10
	case depthErr <= 30:
		score -= 25
	default:
		score -= 40
	}

	switch {
	case rejected > 3:
		score -= 15
	case rejected > 1:
		score -= 5
	}

	switch {
	case score >= 90:
		return Ft.RepExcellent
	case score >= 75:
		return Ft.RepGood
	case score >= 55:
		return Ft.RepNeedsImprovement
	default:
		return Ft.RepPoor
	}
}

// repFeedback picks the spoken line for a completed rep.
// Milestone counts get their own praise.
func repFeedback(q Ft.RepQuality, count int, exercise Ft.ExerciseType) string {
	if q == Ft.RepExcellent {
		switch {
		case count == 1:
			return fmt.Sprintf("Perfect %s! One quality rep!", exercise)
		case count == 5:
			return fmt.Sprintf("Excellent! Five perfect %ss!", exercise)
		case count == 10:
			return "Outstanding! Ten perfect reps! You're crushing it!"
		case count%5 == 0:
			return fmt.Sprintf("Amazing! %d perfect reps completed!", count)
		default:
			return fmt.Sprintf("Perfect rep %d! Great form!", count)
		}
	}

	switch q {
	case Ft.RepGood:
		return fmt.Sprintf("Rep %d counted. Great form, keep it up!", count)
	case Ft.RepNeedsImprovement:
		return fmt.Sprintf("Rep %d counted. Almost there, adjust your depth!", count)
	default:
		return fmt.Sprintf("Rep %d counted, but slow down and control the movement!", count)
	}
}

// Count is the total completed repetitions this session.
func (rc *RepCounter) Count() int {
	rc.MU.Lock()
	defer rc.MU.Unlock()
	return rc.count
}

// Reset clears the counter and the in-progress rep window.
func (rc *RepCounter) Reset() {
	rc.MU.Lock()
	defer rc.MU.Unlock()
	rc.count = 0
	rc.minDepth = math.Inf(1)
	rc.highViolations = 0
	rc.windowStart = time.Time{}
}
