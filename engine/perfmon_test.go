package formsense_test

import (
	"strings"
	"testing"
	"time"

	Fe "github.com/maroda/formsense/engine"
)

// driveFrames feeds the monitor evenly spaced frames with a fixed
// per-frame latency, using an injected clock so timing is exact.
func driveFrames(pm *Fe.PerformanceMonitor, start time.Time, n int, spacing, latency time.Duration, confidence float64) {
	now := start
	pm.Clock = func() time.Time { return now }
	for i := 0; i < n; i++ {
		now = start.Add(time.Duration(i) * spacing)
		pm.StartFrame()
		now = now.Add(latency)
		pm.EndFrameWithConfidence(confidence)
	}
}

func TestPerformanceMetrics(t *testing.T) {
	start := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	t.Run("steady frames near the target rate", func(t *testing.T) {
		pm := Fe.NewPerformanceMonitor()
		driveFrames(pm, start, 10, 33*time.Millisecond, 5*time.Millisecond, 0.9)

		m := pm.Metrics()
		if m.TotalFrames != 10 {
			t.Errorf("got %d total frames, want 10", m.TotalFrames)
		}
		if m.DroppedFrames != 0 {
			t.Errorf("got %d dropped frames, want 0", m.DroppedFrames)
		}
		assertFloatNear(t, m.FrameRate, 30.3, 0.1)
		assertFloatNear(t, m.ProcessingLatency, 5.0, 0.01)
		assertFloatNear(t, m.LandmarkConfidence, 0.9, 0.001)
	})

	t.Run("accuracy blends confidence with frame rate health", func(t *testing.T) {
		pm := Fe.NewPerformanceMonitor()
		driveFrames(pm, start, 10, 33*time.Millisecond, 5*time.Millisecond, 0.9)

		// Rate health saturates at 1.0, so 0.9*70 + 30 = 93
		m := pm.Metrics()
		assertFloatNear(t, m.AnalysisAccuracy, 93.0, 0.01)
	})

	t.Run("a long gap counts the missing frames as dropped", func(t *testing.T) {
		pm := Fe.NewPerformanceMonitor()
		driveFrames(pm, start, 5, 33*time.Millisecond, 5*time.Millisecond, 0.9)

		now := start.Add(4*33*time.Millisecond + 200*time.Millisecond)
		pm.Clock = func() time.Time { return now }
		pm.StartFrame()
		pm.EndFrame()

		m := pm.Metrics()
		if m.DroppedFrames == 0 {
			t.Error("gap produced no dropped frames")
		}
		if m.TotalFrames != 6 {
			t.Errorf("got %d total frames, want 6", m.TotalFrames)
		}
	})
}

func TestCheckAcceptability(t *testing.T) {
	start := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	t.Run("healthy pipeline is acceptable", func(t *testing.T) {
		pm := Fe.NewPerformanceMonitor()
		driveFrames(pm, start, 10, 33*time.Millisecond, 5*time.Millisecond, 0.9)

		a := pm.CheckAcceptability()
		if !a.Acceptable {
			t.Errorf("got %+v, want acceptable", a)
		}
	})

	t.Run("half the target rate is flagged", func(t *testing.T) {
		pm := Fe.NewPerformanceMonitor()
		driveFrames(pm, start, 10, 250*time.Millisecond, 5*time.Millisecond, 0.9)

		a := pm.CheckAcceptability()
		if !a.LowFrameRate {
			t.Error("4 fps not flagged as a low frame rate")
		}
		if a.Acceptable {
			t.Error("low frame rate still acceptable")
		}
	})

	t.Run("latency over the budget is flagged", func(t *testing.T) {
		pm := Fe.NewPerformanceMonitor()
		driveFrames(pm, start, 10, 200*time.Millisecond, 100*time.Millisecond, 0.9)

		a := pm.CheckAcceptability()
		if !a.HighLatency {
			t.Error("100ms latency not flagged")
		}
	})

	t.Run("drop rate over ten percent is flagged", func(t *testing.T) {
		pm := Fe.NewPerformanceMonitor()
		driveFrames(pm, start, 5, 33*time.Millisecond, 5*time.Millisecond, 0.9)

		now := start.Add(4*33*time.Millisecond + 200*time.Millisecond)
		pm.Clock = func() time.Time { return now }
		pm.StartFrame()
		pm.EndFrame()

		a := pm.CheckAcceptability()
		if !a.HighDropRate {
			t.Error("drop rate not flagged")
		}
	})
}

func TestPerformanceRecommendations(t *testing.T) {
	start := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	t.Run("nothing to say about a healthy pipeline", func(t *testing.T) {
		pm := Fe.NewPerformanceMonitor()
		driveFrames(pm, start, 10, 33*time.Millisecond, 5*time.Millisecond, 0.9)

		if recs := pm.Recommendations(); len(recs) != 0 {
			t.Errorf("got %v, want none", recs)
		}
	})

	t.Run("low confidence earns lighting advice", func(t *testing.T) {
		pm := Fe.NewPerformanceMonitor()
		driveFrames(pm, start, 10, 33*time.Millisecond, 5*time.Millisecond, 0.3)

		found := false
		for _, r := range pm.Recommendations() {
			if strings.Contains(r, "lighting") {
				found = true
			}
		}
		if !found {
			t.Error("no lighting advice at 0.3 confidence")
		}
	})

	t.Run("each failing target gets its own line", func(t *testing.T) {
		pm := Fe.NewPerformanceMonitor()
		driveFrames(pm, start, 10, 250*time.Millisecond, 100*time.Millisecond, 0.9)

		recs := strings.Join(pm.Recommendations(), "\n")
		if !strings.Contains(recs, "Frame rate") {
			t.Error("low frame rate advice missing")
		}
		if !strings.Contains(recs, "latency") {
			t.Error("latency advice missing")
		}
	})
}

func TestPerformanceReset(t *testing.T) {
	start := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	pm := Fe.NewPerformanceMonitor()

	driveFrames(pm, start, 5, 33*time.Millisecond, 5*time.Millisecond, 0.9)

	now := start.Add(4*33*time.Millisecond + 200*time.Millisecond)
	pm.Clock = func() time.Time { return now }
	pm.StartFrame()
	pm.EndFrame()

	pm.Reset()

	m := pm.Metrics()
	if m.TotalFrames != 0 || m.DroppedFrames != 0 {
		t.Errorf("counters survived reset: %+v", m)
	}
	if m.FrameRate != 0 || m.ProcessingLatency != 0 || m.LandmarkConfidence != 0 {
		t.Errorf("windows survived reset: %+v", m)
	}
}
