package formsense_test

import (
	"testing"
	"time"

	Fe "github.com/maroda/formsense/engine"
	Ft "github.com/maroda/formsense/types"
)

func TestDemoSource(t *testing.T) {
	start := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	t.Run("Type names the source", func(t *testing.T) {
		ds := Fe.NewDemoSource(0)
		assertStringT(t, ds.Type(), "demo")
	})

	t.Run("frames read as a side view", func(t *testing.T) {
		ds := Fe.NewDemoSource(0)
		frame, err := ds.Next()
		assertNoError(t, err)

		if got := Fe.EstimateView(frame); got != Ft.ViewSide {
			t.Errorf("got %s, want %s", got, Ft.ViewSide)
		}
	})

	t.Run("knee angle sweeps the squat range over one period", func(t *testing.T) {
		ds := Fe.NewDemoSource(4 * time.Second)
		ds.Clock = func() time.Time { return start }

		for _, q := range []struct {
			offset time.Duration
			want   float64
		}{
			{0, 170},                 // standing at the period start
			{2 * time.Second, 65},    // full depth at the half period
			{4 * time.Second, 170},   // back to standing
			{1 * time.Second, 117.5}, // midway down
		} {
			at := start.Add(q.offset)
			ds.Clock = func() time.Time { return at }

			frame, err := ds.Next()
			assertNoError(t, err)

			angles := Fe.ExtractAngles(frame)
			if angles == nil {
				t.Fatal("demo frame not extractable")
			}
			assertFloatNear(t, angles.Knee, q.want, 0.5)
		}
	})

	t.Run("FrameAt recovers the requested angle", func(t *testing.T) {
		ds := Fe.NewDemoSource(0)
		for _, knee := range []float64{65, 90, 135, 170} {
			frame := ds.FrameAt(knee, start)
			angles := Fe.ExtractAngles(frame)
			if angles == nil {
				t.Fatalf("frame at %.0f not extractable", knee)
			}
			assertFloatNear(t, angles.Knee, knee, 0.5)
		}
	})
}
