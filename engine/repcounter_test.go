package formsense_test

import (
	"strings"
	"testing"
	"time"

	Fe "github.com/maroda/formsense/engine"
	Ft "github.com/maroda/formsense/types"
)

// driveRep walks the machine through one clean repetition while
// observing with the counter, returning the final result.
func driveRep(sm *Fe.StateMachine, rc *Fe.RepCounter, cfg *Fe.ModeConfigService, start time.Time, violations []Ft.FormViolation) Ft.RepCountResult {
	var result Ft.RepCountResult
	at := start
	for _, k := range []float64{170, 110, 70, 110, 170} {
		angles := Ft.ExerciseAngles{Knee: k}
		sm.Update(angles, at)
		result = rc.Observe(sm, &angles, violations, at, cfg.Active())
		at = at.Add(300 * time.Millisecond)
	}
	return result
}

func TestRepCounterObserve(t *testing.T) {
	start := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	t.Run("no result until the pattern closes", func(t *testing.T) {
		sm, cfg := newSquatMachine(t, "passthrough")
		rc := Fe.NewRepCounter()

		at := start
		for _, k := range []float64{170, 110, 70} {
			angles := Ft.ExerciseAngles{Knee: k}
			sm.Update(angles, at)
			res := rc.Observe(sm, &angles, nil, at, cfg.Active())
			if res.RepCompleted {
				t.Fatal("rep completed before the ascent")
			}
			at = at.Add(300 * time.Millisecond)
		}
		if rc.Count() != 0 {
			t.Errorf("got count %d, want 0", rc.Count())
		}
	})

	t.Run("a clean rep at optimal depth grades excellent", func(t *testing.T) {
		sm, cfg := newSquatMachine(t, "passthrough")
		rc := Fe.NewRepCounter()

		res := driveRep(sm, rc, cfg, start, nil)
		if !res.RepCompleted {
			t.Fatal("rep never completed")
		}
		if res.Quality != Ft.RepExcellent {
			t.Errorf("got %s, want %s", res.Quality, Ft.RepExcellent)
		}
		if !res.ShouldReset {
			t.Error("ShouldReset not set on completion")
		}
		if rc.Count() != 1 {
			t.Errorf("got count %d, want 1", rc.Count())
		}
	})

	t.Run("first rep feedback names the exercise", func(t *testing.T) {
		sm, cfg := newSquatMachine(t, "passthrough")
		rc := Fe.NewRepCounter()

		res := driveRep(sm, rc, cfg, start, nil)
		if !strings.Contains(res.Feedback, "squat") {
			t.Errorf("feedback %q does not name the exercise", res.Feedback)
		}
	})

	t.Run("high severity violations tank the grade", func(t *testing.T) {
		sm, cfg := newSquatMachine(t, "passthrough")
		rc := Fe.NewRepCounter()

		bad := []Ft.FormViolation{{
			Type:     Ft.ViolationKneeValgus,
			Severity: Ft.SeverityHigh,
		}}
		res := driveRep(sm, rc, cfg, start, bad)
		if !res.RepCompleted {
			t.Fatal("rep never completed")
		}
		if res.Quality != Ft.RepPoor {
			t.Errorf("got %s, want %s", res.Quality, Ft.RepPoor)
		}
	})

	t.Run("the result spans the rep window", func(t *testing.T) {
		sm, cfg := newSquatMachine(t, "passthrough")
		rc := Fe.NewRepCounter()

		res := driveRep(sm, rc, cfg, start, nil)
		if !res.StartTime.Equal(start) {
			t.Errorf("got start %v, want %v", res.StartTime, start)
		}
		if want := 1200 * time.Millisecond; res.Duration != want {
			t.Errorf("got duration %v, want %v", res.Duration, want)
		}
	})

	t.Run("idle time between reps stays out of the duration", func(t *testing.T) {
		sm, cfg := newSquatMachine(t, "passthrough")
		rc := Fe.NewRepCounter()

		driveRep(sm, rc, cfg, start, nil)
		second := driveRep(sm, rc, cfg, start.Add(time.Minute), nil)

		if want := 1200 * time.Millisecond; second.Duration != want {
			t.Errorf("got duration %v, want %v", second.Duration, want)
		}
	})

	t.Run("identical reps grade identically", func(t *testing.T) {
		sm, cfg := newSquatMachine(t, "passthrough")
		rc := Fe.NewRepCounter()

		first := driveRep(sm, rc, cfg, start, nil)
		second := driveRep(sm, rc, cfg, start.Add(time.Minute), nil)

		if first.Quality != second.Quality {
			t.Errorf("grades differ: %s vs %s", first.Quality, second.Quality)
		}
		if rc.Count() != 2 {
			t.Errorf("got count %d, want 2", rc.Count())
		}
	})

	t.Run("reset zeros the session count", func(t *testing.T) {
		sm, cfg := newSquatMachine(t, "passthrough")
		rc := Fe.NewRepCounter()

		driveRep(sm, rc, cfg, start, nil)
		rc.Reset()
		if rc.Count() != 0 {
			t.Errorf("got count %d, want 0", rc.Count())
		}
	})
}
