package formsense

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	Fe "github.com/maroda/formsense/engine"
	Mo "github.com/maroda/formsense/obvy"
	Fp "github.com/maroda/formsense/plugin"
	Ft "github.com/maroda/formsense/types"
)

const (
	screenGutter = 4
)

// View is updated by the live session pipeline
type View struct {
	MU         sync.Mutex         // State locks to read data
	Session    *Fe.Session        // The exercise pipeline
	Source     Fe.FrameSource     // Where frames come from
	Decoder    Fp.FrameDecoder    // For the websocket ingest path
	Supervisor *FeedSupervisor    // Manages the feed goroutine
	Screen     tcell.Screen       // the screen itself
	Stats      *Mo.StatsInternal  // Internal status for prometheus
	server     *http.Server       // Prometheus metrics server
	exercises  []Ft.ExerciseType  // cycle order for the 'e' key
	exerciseIx int
}

// NewView creates the tcell screen that displays TrainerView
func NewView(session *Fe.Session) (*View, error) {
	if session == nil {
		slog.Error("Could not get a session for display")
		return nil, errors.New("session not found")
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		slog.Error("Could not get new screen", slog.Any("Error", err))
		return nil, err
	}
	if err := screen.Init(); err != nil {
		slog.Error("Could not initialize screen", slog.Any("Error", err))
		return nil, err
	}

	// Define and configure the default screen
	defStyle := tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorPink)
	screen.SetStyle(defStyle)
	screen.EnableMouse()

	// create an attached prometheus registry
	stats := Mo.NewStatsInternal()
	session.Stats = stats

	view := &View{
		Session: session,
		Screen:  screen,
		Stats:   stats,
		exercises: []Ft.ExerciseType{
			Ft.Squat, Ft.Pushup, Ft.Plank, Ft.Deadlift, Ft.BicepCurl,
		},
	}

	view.UpdateScreen()

	return view, err
}

// GetScreenSize provides the terminal size for drawing
func (v *View) GetScreenSize() (int, int) {
	width, height := v.Screen.Size()
	return width, height
}

// ResizeScreen resizes TrainerView after terminal changes
func (v *View) ResizeScreen() {
	v.Screen.Sync()
	v.UpdateScreen()
}

func (v *View) UpdateScreen() {
	v.Screen.Clear()
	v.DrawTrainerView()
	v.Screen.Show()
}

// DrawText displays the text string at the given (x1, y1) with box size (x2, y2)
func (v *View) DrawText(x1, y1, x2, y2 int, text string) {
	row := y1
	col := x1
	style := tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorLightSteelBlue)
	for _, r := range text {
		v.Screen.SetContent(col, row, r, nil, style)
		col++
		if col >= x2 {
			row++
			col = x1
		}
		if row > y2 {
			break
		}
	}
}

// DrawViewBorder displays the outline of the View
func (v *View) DrawViewBorder(width, height int) {
	tvStyle := tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorPink)
	v.Screen.SetContent(0, 0, tcell.RuneULCorner, nil, tvStyle)
	for i := 1; i < width; i++ {
		v.Screen.SetContent(i, 0, tcell.RuneHLine, nil, tvStyle)
	}
	v.Screen.SetContent(width, 0, tcell.RuneURCorner, nil, tvStyle)

	for i := 1; i < height; i++ {
		v.Screen.SetContent(0, i, tcell.RuneVLine, nil, tvStyle)
	}

	v.Screen.SetContent(0, height, tcell.RuneLLCorner, nil, tvStyle)

	for i := 1; i < height; i++ {
		v.Screen.SetContent(width, i, tcell.RuneVLine, nil, tvStyle)
	}

	v.Screen.SetContent(width, height, tcell.RuneLRCorner, nil, tvStyle)

	for i := 1; i < width; i++ {
		v.Screen.SetContent(i, height, tcell.RuneHLine, nil, tvStyle)
	}
}

// DrawTimeseries displays the knee-angle depth timeline
func (v *View) DrawTimeseries(x, y int, runes []rune) {
	for runeIndex, r := range runes {
		if r == 0 {
			r = ' '
		}

		// Choose color based on the rune (depth)
		var style tcell.Style
		switch r {
		case '▁':
			style = tcell.StyleDefault.Foreground(tcell.ColorSeaGreen)
		case '▂':
			style = tcell.StyleDefault.Foreground(tcell.ColorMediumSeaGreen)
		case '▃':
			style = tcell.StyleDefault.Foreground(tcell.ColorLightSeaGreen)
		case '▄':
			style = tcell.StyleDefault.Foreground(tcell.ColorDarkTurquoise)
		case '▅':
			style = tcell.StyleDefault.Foreground(tcell.ColorMediumTurquoise)
		case '▆':
			style = tcell.StyleDefault.Foreground(tcell.ColorTurquoise)
		case '█':
			style = tcell.StyleDefault.Foreground(tcell.ColorAquaMarine)
		default:
			style = tcell.StyleDefault
		}

		v.Screen.SetContent(x+runeIndex, y, r, nil, style)
	}
}

// DrawTrainerView draws the live exercise dashboard with tcell
func (v *View) DrawTrainerView() {
	width, height := v.GetScreenSize()
	width -= 2
	height -= 2

	v.DrawViewBorder(width, height)

	snap := v.Session.Snapshot()
	cycle := v.Session.LastCycle()

	v.DrawText(2, 1, width, 1, fmt.Sprintf("%s | %s mode", snap.Exercise, snap.Mode))
	v.DrawText(2, 2, width, 2, fmt.Sprintf("State: %-11s Reps: %d", snap.State, snap.RepCount))
	v.DrawText(2, 3, width, 3, fmt.Sprintf("Knee: %5.1f°  Form: %3d  Risk: %s", snap.KneeAngle, snap.FormScore, snap.Risk))

	// Depth timeline
	yTS := screenGutter + 1
	v.DrawText(2, screenGutter, width, screenGutter, "Depth:")
	v.DrawTimeseries(2, yTS, []rune(snap.Timeline))

	// Form score bar under the timeline
	barW := snap.FormScore * (width - 4) / 100
	barStyle := tcell.StyleDefault.Background(tcell.ColorSeaGreen)
	if snap.FormScore < 60 {
		barStyle = tcell.StyleDefault.Background(tcell.ColorOrange)
	}
	WriteBar(v.Screen, 2, yTS+2, 2+barW, yTS+3, barStyle)

	// Violations, most recent cycle only
	vy := yTS + 4
	for i, viol := range cycle.Analysis.Violations {
		if vy+i >= height-2 {
			break
		}
		v.DrawText(2, vy+i, width, vy+i, fmt.Sprintf("[%s] %s", viol.Severity, viol.Description))
	}

	// Spoken feedback line
	if len(cycle.Feedback.AudioMessages) > 0 {
		v.DrawText(2, height-2, width, height-2, "» "+cycle.Feedback.AudioMessages[0])
	}

	v.DrawText(1, height-1, width, height+10, "/m/ mode | /e/ exercise | /r/ reset | /ESC/ to quit")
	v.DrawText(width-11, height-1, width, height+10, "FORMSENSE")
}

// Exit cleanly
func (v *View) exit() {
	v.MU.Lock()
	defer v.MU.Unlock()
	if v.Supervisor != nil {
		v.Supervisor.Stop()
	}
	v.Screen.Fini()
	if err := v.Session.Close(); err != nil {
		slog.Error("Session close failed", slog.Any("Error", err))
	}
}

// Running Loop to handle events
func (v *View) handleKeyBoardEvent() {
	for {
		ev := v.Screen.PollEvent()
		switch ev := ev.(type) {
		case *tcell.EventResize:
			v.ResizeScreen()
		case *tcell.EventKey:
			// Catch quit and exit
			if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC || ev.Rune() == 'q' {
				v.exit()
				return
			}

			// Toggle skill mode with 'm'
			if ev.Rune() == 'm' {
				cur := v.Session.Config.Active().Mode
				next := Ft.Pro
				if cur == Ft.Pro {
					next = Ft.Beginner
				}
				v.Session.Config.SwitchMode(next)
			}

			// Cycle exercise with 'e'
			if ev.Rune() == 'e' {
				v.MU.Lock()
				v.exerciseIx = (v.exerciseIx + 1) % len(v.exercises)
				next := v.exercises[v.exerciseIx]
				v.MU.Unlock()
				v.Session.Config.SwitchExerciseType(next)
			}

			// Reset counters with 'r'
			if ev.Rune() == 'r' {
				v.Session.Counter.Reset()
				v.Session.Monitor.Reset()
			}
		}
	}
}

// run runs a loop and updates the screen periodically,
// reading whatever the feed supervisor has pushed through
// the pipeline since the last frame.
func (v *View) run() {
	// Panic recovery and logging
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Panic in run loop", slog.Any("panic", r))
			slog.Error("Recovered from panic", slog.String("stack", string(debug.Stack())))
			debug.PrintStack()
		}
	}()

	slog.Info("Starting TrainerView")
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for range ticker.C {
		v.UpdateScreen()
	}
}

// StartTrainerView is called by main to run the program with a TUI.
// This also starts up the /metrics endpoint that is populated by prometheus.
func StartTrainerView(session *Fe.Session, source Fe.FrameSource, addr string) error {
	view, err := NewView(session)
	if err != nil {
		slog.Error("Could not start TrainerView", slog.Any("Error", err))
		return err
	}
	view.Source = source
	view.Decoder = Fp.NewJSONFrameDecoder()

	// Server for stats endpoint
	view.server = &http.Server{
		Addr:    addr,
		Handler: view.SetupMux(),
	}

	// Run the frame feed
	view.NewFeedSupervisor()
	view.Supervisor.Start()

	// Run the display
	go view.run()

	// Run stats endpoint
	go func() {
		slog.Info("Starting Formsense stats endpoint...", slog.String("Port", addr))
		if err := view.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Could not start stats endpoint", slog.Any("Error", err))
		}
	}()

	view.handleKeyBoardEvent()

	return err
}

// StartWebNoTUI serves the pipeline headless: the web endpoints and
// the ingest websocket run, no terminal is touched.
func StartWebNoTUI(session *Fe.Session, source Fe.FrameSource, addr string) error {
	stats := Mo.NewStatsInternal()
	session.Stats = stats

	view := &View{
		Session: session,
		Source:  source,
		Decoder: Fp.NewJSONFrameDecoder(),
		Stats:   stats,
	}

	// Server for stats endpoint
	view.server = &http.Server{
		Addr:    addr,
		Handler: view.SetupMux(),
	}

	// Start the frame feed when a source is wired;
	// otherwise frames arrive over /ws/ingest.
	if source != nil {
		view.NewFeedSupervisor()
		view.Supervisor.Start()
	}

	// Run stats endpoint (blocks)
	slog.Info("Starting Formsense web server...", slog.String("Port", addr))
	if err := view.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Could not start web server", slog.Any("Error", err))
		return err
	}

	return nil
}
