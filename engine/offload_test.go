package formsense_test

import (
	"errors"
	"testing"
	"time"

	Fe "github.com/maroda/formsense/engine"
	Ft "github.com/maroda/formsense/types"
)

func TestAngleWorkerSubmit(t *testing.T) {
	ds := Fe.NewDemoSource(0)
	frame := ds.FrameAt(100, time.Now())

	t.Run("offloaded extraction matches inline extraction", func(t *testing.T) {
		w := Fe.NewAngleWorker(4)
		defer w.Close()

		got, err := w.Submit(frame, 0)
		assertNoError(t, err)
		if got == nil {
			t.Fatal("no angles returned")
		}

		want := Fe.ExtractAngles(frame)
		assertFloatNear(t, got.Knee, want.Knee, 0.001)
		assertFloatNear(t, got.Hip, want.Hip, 0.001)
	})

	t.Run("a slow extractor times out", func(t *testing.T) {
		w := Fe.NewAngleWorkerFunc(1, func(f *Ft.Frame) *Ft.ExerciseAngles {
			time.Sleep(200 * time.Millisecond)
			return Fe.ExtractAngles(f)
		})
		defer w.Close()

		_, err := w.Submit(frame, 5*time.Millisecond)
		if !errors.Is(err, Fe.ErrOffloadTimeout) {
			t.Errorf("got %v, want %v", err, Fe.ErrOffloadTimeout)
		}
	})

	t.Run("submit after close fails fast", func(t *testing.T) {
		w := Fe.NewAngleWorker(1)
		w.Close()

		_, err := w.Submit(frame, 0)
		if !errors.Is(err, Fe.ErrWorkerClosed) {
			t.Errorf("got %v, want %v", err, Fe.ErrWorkerClosed)
		}
	})

	t.Run("close fails a waiting caller", func(t *testing.T) {
		release := make(chan struct{})
		w := Fe.NewAngleWorkerFunc(1, func(f *Ft.Frame) *Ft.ExerciseAngles {
			<-release
			return nil
		})
		defer close(release)

		errc := make(chan error, 1)
		go func() {
			_, err := w.Submit(frame, time.Second)
			errc <- err
		}()

		time.Sleep(20 * time.Millisecond)
		w.Close()

		select {
		case err := <-errc:
			if !errors.Is(err, Fe.ErrWorkerClosed) {
				t.Errorf("got %v, want %v", err, Fe.ErrWorkerClosed)
			}
		case <-time.After(time.Second):
			t.Fatal("waiting caller never unblocked")
		}
	})
}
