package formsense_test

import (
	"strings"
	"testing"
	"time"

	Fe "github.com/maroda/formsense/engine"
	Ft "github.com/maroda/formsense/types"
)

func TestFeedbackViewGate(t *testing.T) {
	start := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	cfg := Fe.NewModeConfigService(Ft.Beginner, Ft.Squat)
	fe := Fe.NewFeedbackEngine(cfg)

	for _, view := range []Ft.ViewType{Ft.ViewFrontal, Ft.ViewUnknown} {
		t.Run("gates a "+view.String()+" view", func(t *testing.T) {
			in := Fe.FeedbackInput{
				View:  view,
				State: Ft.Standing,
				// Violations present, but the gate must win
				Violations: []Ft.FormViolation{{
					Type:     Ft.ViolationKneeValgus,
					Severity: Ft.SeverityHigh,
				}},
			}
			resp := fe.Generate(in, start)

			if len(resp.AudioMessages) != 1 {
				t.Fatalf("got %d audio messages, want exactly 1", len(resp.AudioMessages))
			}
			if !strings.Contains(resp.AudioMessages[0], "side") {
				t.Errorf("message %q does not reposition", resp.AudioMessages[0])
			}
			if len(resp.VisualCues) != 1 || resp.VisualCues[0].Type != Ft.CuePositioningGuide {
				t.Errorf("got cues %+v, want one positioning guide", resp.VisualCues)
			}
			if resp.Priority != Ft.PriorityHigh {
				t.Errorf("got %s, want %s", resp.Priority, Ft.PriorityHigh)
			}
			if !resp.ShouldSpeak {
				t.Error("repositioning should bypass the throttle")
			}
		})
	}
}

func TestFeedbackThrottle(t *testing.T) {
	start := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	mediumIn := Fe.FeedbackInput{
		View:  Ft.ViewSide,
		State: Ft.Transition,
		Violations: []Ft.FormViolation{{
			Type:           Ft.ViolationForwardLean,
			Severity:       Ft.SeverityMedium,
			CorrectionHint: "Keep your torso more upright",
		}},
	}

	t.Run("medium corrections respect the frequency budget", func(t *testing.T) {
		cfg := Fe.NewModeConfigService(Ft.Beginner, Ft.Squat)
		fe := Fe.NewFeedbackEngine(cfg)

		first := fe.Generate(mediumIn, start)
		if !first.ShouldSpeak {
			t.Fatal("first correction silenced")
		}

		second := fe.Generate(mediumIn, start.Add(100*time.Millisecond))
		if second.ShouldSpeak {
			t.Error("second correction spoke inside the budget")
		}

		third := fe.Generate(mediumIn, start.Add(3*time.Second))
		if !third.ShouldSpeak {
			t.Error("correction silenced after the budget elapsed")
		}
	})

	t.Run("high severity always speaks", func(t *testing.T) {
		cfg := Fe.NewModeConfigService(Ft.Beginner, Ft.Squat)
		fe := Fe.NewFeedbackEngine(cfg)

		highIn := Fe.FeedbackInput{
			View:  Ft.ViewSide,
			State: Ft.DeepSquat,
			Violations: []Ft.FormViolation{{
				Type:           Ft.ViolationKneeValgus,
				Severity:       Ft.SeverityHigh,
				CorrectionHint: "Push your knees out over your toes",
			}},
		}

		first := fe.Generate(highIn, start)
		second := fe.Generate(highIn, start.Add(50*time.Millisecond))

		if !first.ShouldSpeak || !second.ShouldSpeak {
			t.Error("high severity was throttled")
		}
		if first.Priority != Ft.PriorityCritical {
			t.Errorf("got %s, want %s", first.Priority, Ft.PriorityCritical)
		}
	})

	t.Run("visual cues flow even when audio is throttled", func(t *testing.T) {
		cfg := Fe.NewModeConfigService(Ft.Beginner, Ft.Squat)
		fe := Fe.NewFeedbackEngine(cfg)

		fe.Generate(mediumIn, start)
		second := fe.Generate(mediumIn, start.Add(100*time.Millisecond))

		if second.ShouldSpeak {
			t.Fatal("audio not throttled")
		}
		if len(second.VisualCues) == 0 {
			t.Error("visual cues dropped with the audio")
		}
	})
}

func TestFeedbackRepCompletion(t *testing.T) {
	start := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	cfg := Fe.NewModeConfigService(Ft.Beginner, Ft.Squat)
	fe := Fe.NewFeedbackEngine(cfg)

	in := Fe.FeedbackInput{
		View:  Ft.ViewSide,
		State: Ft.Standing,
		Rep: Ft.RepCountResult{
			RepCompleted: true,
			Quality:      Ft.RepExcellent,
			Feedback:     "Perfect squat! One quality rep!",
		},
		RepCount: 1,
	}
	resp := fe.Generate(in, start)

	if len(resp.AudioMessages) != 1 || resp.AudioMessages[0] != in.Rep.Feedback {
		t.Errorf("got %v, want the rep feedback line", resp.AudioMessages)
	}
	if resp.Priority != Ft.PriorityHigh {
		t.Errorf("got %s, want %s", resp.Priority, Ft.PriorityHigh)
	}
	if !resp.ShouldSpeak {
		t.Error("rep completion was throttled")
	}
}

func TestFeedbackBeginnerSuppressesLow(t *testing.T) {
	start := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	lowIn := Fe.FeedbackInput{
		View:  Ft.ViewSide,
		State: Ft.Transition,
		Violations: []Ft.FormViolation{{
			Type:           Ft.ViolationAlignment,
			Severity:       Ft.SeverityLow,
			CorrectionHint: "Level your shoulders",
		}},
	}

	t.Run("beginner hears nothing for low severity", func(t *testing.T) {
		cfg := Fe.NewModeConfigService(Ft.Beginner, Ft.Squat)
		fe := Fe.NewFeedbackEngine(cfg)

		resp := fe.Generate(lowIn, start)
		if len(resp.AudioMessages) != 0 {
			t.Errorf("got %v, want no audio", resp.AudioMessages)
		}
	})

	t.Run("pro hears the precision correction", func(t *testing.T) {
		cfg := Fe.NewModeConfigService(Ft.Pro, Ft.Squat)
		fe := Fe.NewFeedbackEngine(cfg)

		resp := fe.Generate(lowIn, start)
		if len(resp.AudioMessages) != 1 {
			t.Errorf("got %v, want the correction hint", resp.AudioMessages)
		}
	})
}

func TestFeedbackStateGuidance(t *testing.T) {
	start := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	cfg := Fe.NewModeConfigService(Ft.Beginner, Ft.Squat)
	fe := Fe.NewFeedbackEngine(cfg)

	cleanIn := Fe.FeedbackInput{View: Ft.ViewSide, State: Ft.Standing}

	// Guidance is probabilistic per cycle; over enough clean cycles
	// some guidance must appear, and every line must match the phase.
	spoke := 0
	for i := 0; i < 200; i++ {
		resp := fe.Generate(cleanIn, start.Add(time.Duration(i)*50*time.Millisecond))
		if len(resp.AudioMessages) > 0 {
			spoke++
			if !strings.Contains(resp.AudioMessages[0], "Ready") {
				t.Fatalf("guidance %q does not match the standing phase", resp.AudioMessages[0])
			}
		}
	}
	if spoke == 0 {
		t.Error("no guidance over 200 clean cycles")
	}
	if spoke == 200 {
		t.Error("guidance on every cycle, chance gate not applied")
	}
}

func TestFeedbackModeChangeRetunes(t *testing.T) {
	start := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	cfg := Fe.NewModeConfigService(Ft.Beginner, Ft.Squat)
	fe := Fe.NewFeedbackEngine(cfg)

	mediumIn := Fe.FeedbackInput{
		View:  Ft.ViewSide,
		State: Ft.Transition,
		Violations: []Ft.FormViolation{{
			Type:           Ft.ViolationForwardLean,
			Severity:       Ft.SeverityMedium,
			CorrectionHint: "Keep your torso more upright",
		}},
	}

	// Beginner budget is 2s, pro is 3s. A correction at 2.5s after
	// the last spoken one passes the beginner budget but not pro.
	first := fe.Generate(mediumIn, start)
	if !first.ShouldSpeak {
		t.Fatal("first correction silenced")
	}

	cfg.SwitchMode(Ft.Pro)

	second := fe.Generate(mediumIn, start.Add(2500*time.Millisecond))
	if second.ShouldSpeak {
		t.Error("pro budget not applied after the mode switch")
	}
}

func TestFeedbackVisualCues(t *testing.T) {
	start := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	cfg := Fe.NewModeConfigService(Ft.Beginner, Ft.Squat)
	fe := Fe.NewFeedbackEngine(cfg)

	in := Fe.FeedbackInput{
		View:     Ft.ViewSide,
		State:    Ft.DeepSquat,
		Angles:   &Ft.ExerciseAngles{Knee: 82, Hip: 95},
		RepCount: 3,
		Violations: []Ft.FormViolation{{
			Type:        Ft.ViolationForwardLean,
			Severity:    Ft.SeverityMedium,
			Description: "Leaning forward",
		}},
	}
	resp := fe.Generate(in, start)

	types := map[Ft.CueType]bool{}
	for _, c := range resp.VisualCues {
		types[c.Type] = true
	}
	for _, want := range []Ft.CueType{Ft.CueRepCounter, Ft.CueStateBadge, Ft.CueAngleReadout, Ft.CueWarningMarker} {
		if !types[want] {
			t.Errorf("cue %s missing from %+v", want, resp.VisualCues)
		}
	}
}
