package plugin_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	Fp "github.com/maroda/formsense/plugin"
	Ft "github.com/maroda/formsense/types"
)

func TestNewBadgerOutput(t *testing.T) {
	adapter, closedb := makeTestBadgerOutput(t)
	defer closedb()

	t.Run("Creates new struct for output", func(t *testing.T) {
		path := t.TempDir()
		got, err := Fp.NewBadgerOutput(path, 10)
		assertError(t, err, nil)
		assertInt(t, got.BatchSize, 10)
		got.Close()
	})

	t.Run("Returns Type", func(t *testing.T) {
		want := "BadgerDB"
		got := adapter.Type()
		assertStringContains(t, got, want)
	})
}

func TestBadgerOutput_WriteRep(t *testing.T) {
	adapter, closedb := makeTestBadgerOutput(t)
	defer closedb()

	rep := &Ft.RepEvent{
		SessionID:  "test-session",
		Exercise:   Ft.Squat,
		Mode:       Ft.Beginner,
		Quality:    Ft.RepExcellent,
		DepthAngle: 78.5,
		StartTime:  time.Now(),
		Duration:   3 * time.Second,
	}

	t.Run("Writes rep without error", func(t *testing.T) {
		err := adapter.WriteRep(rep)
		assertError(t, err, nil)
	})

	t.Run("Flushes reps for writing", func(t *testing.T) {
		start := time.Now()
		// the test adapter buffer size is 5
		reps := []*Ft.RepEvent{
			{Exercise: Ft.Squat, Quality: Ft.RepExcellent, StartTime: start},
			{Exercise: Ft.Squat, Quality: Ft.RepGood, StartTime: start.Add(3 * time.Second)},
			{Exercise: Ft.Squat, Quality: Ft.RepExcellent, StartTime: start.Add(6 * time.Second)},
			{Exercise: Ft.Squat, Quality: Ft.RepPoor, StartTime: start.Add(9 * time.Second)},
			{Exercise: Ft.Squat, Quality: Ft.RepGood, StartTime: start.Add(12 * time.Second)},
		}

		for _, r := range reps {
			err := adapter.WriteRep(r)
			assertError(t, err, nil)
		}

		readReps, err := adapter.QueryRange(start.Add(-1*time.Second), start.Add(13*time.Second))
		assertError(t, err, nil)

		if len(readReps) != len(reps) {
			t.Errorf("Expected %d reps, got %d", len(reps), len(readReps))
		}

		if len(readReps) > 0 {
			if readReps[0].Exercise != reps[0].Exercise {
				t.Errorf("Exercise mismatch: got %v, want %v", readReps[0].Exercise, reps[0].Exercise)
			}
			if readReps[0].Quality != reps[0].Quality {
				t.Errorf("Quality mismatch: got %v, want %v", readReps[0].Quality, reps[0].Quality)
			}
		}
	})
}

func TestBadgerOutput_RepKeyValue(t *testing.T) {
	start := time.Now()
	rep := &Ft.RepEvent{
		SessionID:  "test-session",
		Exercise:   Ft.Squat,
		Quality:    Ft.RepExcellent,
		DepthAngle: 80,
		StartTime:  start,
		Duration:   3 * time.Second,
	}

	t.Run("Makes a Rep Key", func(t *testing.T) {
		// The last five bytes name the exercise
		want := []byte("squat")

		get := Fp.RepKey(rep)
		got := get[9:]

		if !bytes.Equal(want, got) {
			t.Errorf("RepKey = %v, want %v", got, want)
		}
	})

	t.Run("Earlier reps sort first", func(t *testing.T) {
		later := &Ft.RepEvent{
			Exercise:  Ft.Squat,
			Quality:   Ft.RepExcellent,
			StartTime: start.Add(time.Minute),
		}

		first := Fp.RepKey(rep)
		second := Fp.RepKey(later)

		if bytes.Compare(first, second) >= 0 {
			t.Errorf("keys not chronological: %v >= %v", first, second)
		}
	})

	t.Run("Round trips through encode and decode", func(t *testing.T) {
		data := Fp.RepEncode(rep)
		got, err := Fp.RepDecode(data)
		assertError(t, err, nil)

		if got.Quality != rep.Quality {
			t.Errorf("Quality mismatch: got %v, want %v", got.Quality, rep.Quality)
		}
		assertFloat(t, got.DepthAngle, rep.DepthAngle)
		assertStringContains(t, got.SessionID, rep.SessionID)
	})
}

func TestBadgerOutput_WriteBatch(t *testing.T) {
	tests := []struct {
		name    string
		reps    []*Ft.RepEvent
		wantErr bool
	}{
		{
			name:    "empty batch",
			reps:    []*Ft.RepEvent{},
			wantErr: false,
		},
		{
			name: "single rep",
			reps: []*Ft.RepEvent{
				{Exercise: Ft.Squat, Quality: Ft.RepGood, StartTime: time.Now()},
			},
			wantErr: false,
		},
		{
			name: "multiple reps",
			reps: []*Ft.RepEvent{
				{Exercise: Ft.Squat, Quality: Ft.RepGood, StartTime: time.Now()},
				{Exercise: Ft.Pushup, Quality: Ft.RepExcellent, StartTime: time.Now().Add(1 * time.Second)},
				{Exercise: Ft.Squat, Quality: Ft.RepPoor, StartTime: time.Now().Add(2 * time.Second)},
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter, closedb := makeTestBadgerOutput(t)
			defer closedb()

			err := adapter.WriteBatch(tt.reps)
			if (err != nil) != tt.wantErr {
				t.Errorf("WriteBatch() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestBadgerOutput_QueryRange(t *testing.T) {
	adapter, closedb := makeTestBadgerOutput(t)
	defer closedb()

	t.Run("QueryRange filters by time", func(t *testing.T) {
		start := time.Now()
		reps := []*Ft.RepEvent{
			{Exercise: Ft.Squat, Quality: Ft.RepGood, StartTime: start},
			{Exercise: Ft.Squat, Quality: Ft.RepGood, StartTime: start.Add(1 * time.Minute)},
			{Exercise: Ft.Squat, Quality: Ft.RepGood, StartTime: start.Add(2 * time.Minute)},
		}

		err := adapter.WriteBatch(reps)
		assertError(t, err, nil)

		got, err := adapter.QueryRange(start.Add(30*time.Second), start.Add(90*time.Second))
		assertError(t, err, nil)

		if len(got) != 1 {
			t.Errorf("Expected 1 result, got %d", len(got))
		}
	})
}

// Helpers //

func makeTestBadgerOutput(t *testing.T) (*Fp.BadgerOutput, func()) {
	t.Helper()

	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	assertError(t, err, nil)

	adapter := &Fp.BadgerOutput{
		DB:        db,
		BatchSize: 5,
		Buffer:    make([]*Ft.RepEvent, 0, 5),
	}

	cleanup := func() {
		adapter.Close()
	}

	return adapter, cleanup
}
