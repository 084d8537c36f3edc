package formsense_test

import (
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"

	Fe "github.com/maroda/formsense/engine"
)

func TestScreen(t *testing.T) {
	s := mkTestScreen(t, "")
	defer s.Fini()
	s.Clear()

	t.Run("Check test screen", func(t *testing.T) {
		b, x, y := s.GetContents()
		if len(b) != x*y || x != 80 || y != 25 {
			t.Fatalf("Contents (%v, %v, %v) wrong", len(b), x, y)
		}
		for i := 0; i < x*y; i++ {
			if len(b[i].Runes) == 1 && b[i].Runes[0] != ' ' {
				t.Errorf("Incorrect contents at %v: %v", i, b[i].Runes)
			}
			if b[i].Style != tcell.StyleDefault {
				t.Errorf("Incorrect style at %v: %v", i, b[i].Style)
			}
		}
	})
}

func TestView_DrawText(t *testing.T) {
	s := mkTestScreen(t, "")
	defer s.Fini()

	view := makeTestView(t)
	defer view.Session.Close()
	view.Screen = s

	view.DrawText(2, 1, 20, 1, "hello")
	s.Show()

	b, x, _ := s.GetContents()
	got := b[1*x+2].Runes[0]
	if got != 'h' {
		t.Errorf("got %q at (2,1), want 'h'", got)
	}
}

func TestView_DrawTrainerView(t *testing.T) {
	s := mkTestScreen(t, "")
	defer s.Fini()

	view := makeTestView(t)
	defer view.Session.Close()
	view.Screen = s

	// Push a few frames through so the dashboard has data
	ds := Fe.NewDemoSource(0)
	at := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	for _, k := range []float64{170, 110, 70} {
		view.Session.ProcessFrame(ds.FrameAt(k, at))
		at = at.Add(300 * time.Millisecond)
	}

	view.DrawTrainerView()
	s.Show()

	// The dashboard must have drawn something beyond the border
	b, x, _ := s.GetContents()
	got := b[1*x+2].Runes[0]
	if got == ' ' {
		t.Errorf("header cell still blank after draw")
	}
}

func mkTestScreen(t *testing.T, charset string) tcell.SimulationScreen {
	s := tcell.NewSimulationScreen(charset)
	if s == nil {
		t.Fatalf("Failed to get SimulationScreen")
	}
	if err := s.Init(); err != nil {
		t.Fatalf("Failed to init screen: %v", err)
	}
	return s
}
