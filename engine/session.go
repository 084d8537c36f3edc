package formsense

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	Fp "github.com/maroda/formsense/plugin"
	Ft "github.com/maroda/formsense/types"
)

// TimelineSize is the width of the session's rune timeline.
const TimelineSize = 60

// StatsRecorder receives pipeline counters. The obvy package
// provides the Prometheus implementation; a nil recorder is valid
// and means "not collected".
type StatsRecorder interface {
	RecFrame(latencyMS float64)
	RecDropped(n int)
	RecRep(quality string)
	RecViolation(vtype, severity string)
}

// CycleResult is everything one frame produced, for display and
// the data server.
type CycleResult struct {
	Angles     *Ft.ExerciseAngles
	State      Ft.ExerciseState
	View       Ft.ViewType
	Transition *Ft.StateTransition
	Analysis   AnalysisResult
	Rep        Ft.RepCountResult
	Feedback   Ft.FeedbackResponse
}

// Snapshot is the JSON view of the live session for /api/session
// and the websocket stream.
type Snapshot struct {
	SessionID string                `json:"sessionId"`
	Exercise  string                `json:"exercise"`
	Mode      string                `json:"mode"`
	State     string                `json:"state"`
	View      string                `json:"view"`
	RepCount  int                   `json:"repCount"`
	KneeAngle float64               `json:"kneeAngle"`
	FormScore int                   `json:"formScore"`
	Risk      string                `json:"risk"`
	Timeline  string                `json:"timeline"`
	Feedback  Ft.FeedbackResponse   `json:"feedback"`
	Metrics   Ft.PerformanceMetrics `json:"metrics"`
}

// Session wires the whole per-user pipeline together: extraction,
// state tracking, analysis, counting, feedback and monitoring. One
// Session serves one subject; nothing in it is shared across
// sessions except the types.
//
// Worker, Output and Stats are optional and wired by the caller
// after construction.
type Session struct {
	MU sync.Mutex
	ID uuid.UUID

	Config   *ModeConfigService
	Machine  *StateMachine
	Counter  *RepCounter
	Analyzer *FormAnalyzer
	Feedback *FeedbackEngine
	Monitor  *PerformanceMonitor

	Worker *AngleWorker
	Output Fp.OutputAdapter
	Stats  StatsRecorder

	Timeline *Ft.Timeseries

	lastCycle   CycleResult
	lastDropped int
}

// NewSession builds the pipeline for a mode and exercise, using the
// weighted moving-average smoother from the plugin registry. The
// state machine and feedback engine register for mode changes.
func NewSession(mode Ft.ExerciseMode, exercise Ft.ExerciseType) (*Session, error) {
	cfg := NewModeConfigService(mode, exercise)
	return newSessionWith(cfg)
}

// NewSessionFromConfig builds the pipeline from an on-disk config.
func NewSessionFromConfig(cf *ConfigFile) (*Session, error) {
	cfg, err := NewServiceFromConfig(cf)
	if err != nil {
		return nil, err
	}
	return newSessionWith(cfg)
}

func newSessionWith(cfg *ModeConfigService) (*Session, error) {
	smoother, err := Fp.SmootherLookup("weighted_ma")
	if err != nil {
		return nil, err
	}

	s := &Session{
		ID:       uuid.New(),
		Config:   cfg,
		Machine:  NewStateMachine(cfg, smoother),
		Counter:  NewRepCounter(),
		Analyzer: NewFormAnalyzer(),
		Feedback: NewFeedbackEngine(cfg),
		Monitor:  NewPerformanceMonitor(),
		Timeline: NewTimeseries(TimelineSize),
	}
	cfg.AddModeChangeListener("state-machine", s.Machine)

	active := cfg.Active()
	slog.Info("Session created",
		slog.String("id", s.ID.String()),
		slog.String("mode", active.Mode.String()),
		slog.String("exercise", active.Exercise.String()))

	return s, nil
}

// ProcessFrame runs one landmark frame through the full pipeline
// and returns the cycle result. It never fails the caller: a frame
// that cannot be analyzed still produces positioning feedback.
func (s *Session) ProcessFrame(frame *Ft.Frame) CycleResult {
	s.Monitor.StartFrame()

	at := frame.Timestamp
	if at.IsZero() {
		at = time.Now()
	}

	angles := s.extractAngles(frame)
	view := EstimateView(frame)
	cfg := s.Config.Active()

	res := CycleResult{Angles: angles, View: view}

	if angles == nil || view != Ft.ViewSide {
		// Not analyzable: gate straight to repositioning feedback.
		res.State = s.Machine.CurrentState()
		res.Feedback = s.Feedback.Generate(FeedbackInput{
			State:    res.State,
			View:     badView(angles, view),
			RepCount: s.Counter.Count(),
		}, at)
		s.finishCycle(frame, res, at)
		return res
	}

	res.Transition = s.Machine.Update(*angles, at)
	res.State = s.Machine.CurrentState()

	res.Analysis = s.Analyzer.Analyze(frame, angles, res.State, cfg)

	res.Rep = s.Counter.Observe(s.Machine, angles, res.Analysis.Violations, at, cfg)

	res.Feedback = s.Feedback.Generate(FeedbackInput{
		Violations: res.Analysis.Violations,
		State:      res.State,
		Angles:     angles,
		View:       view,
		Rep:        res.Rep,
		RepCount:   s.Counter.Count(),
	}, at)

	if res.Rep.RepCompleted {
		s.recordRep(res, angles, cfg)
	}

	s.recordStats(res)
	s.finishCycle(frame, res, at)
	return res
}

// extractAngles prefers the offload worker and falls back to the
// inline extractor on timeout or shutdown.
func (s *Session) extractAngles(frame *Ft.Frame) *Ft.ExerciseAngles {
	if s.Worker == nil {
		return ExtractAngles(frame)
	}
	angles, err := s.Worker.Submit(frame, 0)
	if err != nil {
		if !errors.Is(err, ErrOffloadTimeout) && !errors.Is(err, ErrWorkerClosed) {
			slog.Error("Angle offload failed", slog.Any("Error", err))
		}
		return ExtractAngles(frame)
	}
	return angles
}

// badView picks the view to report on the unanalyzable path:
// missing angles with a side view still reads as unknown.
func badView(angles *Ft.ExerciseAngles, view Ft.ViewType) Ft.ViewType {
	if view == Ft.ViewSide && angles == nil {
		return Ft.ViewUnknown
	}
	return view
}

// recordRep persists the completed rep through the output adapter.
// Persistence failure is logged, never surfaced to the frame loop.
func (s *Session) recordRep(res CycleResult, angles *Ft.ExerciseAngles, cfg ActiveConfig) {
	if s.Output == nil {
		return
	}

	ev := &Ft.RepEvent{
		SessionID:  s.ID.String(),
		Exercise:   cfg.Exercise,
		Mode:       cfg.Mode,
		Quality:    res.Rep.Quality,
		DepthAngle: angles.Knee,
		Violations: len(res.Analysis.Violations),
		StartTime:  res.Rep.StartTime,
		Duration:   res.Rep.Duration,
	}
	if err := s.Output.WriteRep(ev); err != nil {
		slog.Error("Failed to persist rep event",
			slog.Any("Error", err),
			slog.String("output", s.Output.Type()))
	}
}

func (s *Session) recordStats(res CycleResult) {
	if s.Stats == nil {
		return
	}
	if res.Rep.RepCompleted {
		s.Stats.RecRep(res.Rep.Quality.String())
	}
	for _, v := range res.Analysis.Violations {
		s.Stats.RecViolation(v.Type.String(), v.Severity.String())
	}
}

func (s *Session) finishCycle(frame *Ft.Frame, res CycleResult, at time.Time) {
	conf := LandmarkConfidence(frame)
	s.Monitor.EndFrameWithConfidence(conf)

	s.MU.Lock()
	s.lastCycle = res
	if res.Angles != nil {
		AddRune(s.Timeline, angleRune(res.Angles.Knee))
	} else {
		AddRune(s.Timeline, '·')
	}
	s.MU.Unlock()

	if s.Stats != nil {
		m := s.Monitor.Metrics()
		s.Stats.RecFrame(m.ProcessingLatency)

		s.MU.Lock()
		delta := m.DroppedFrames - s.lastDropped
		s.lastDropped = m.DroppedFrames
		s.MU.Unlock()
		if delta > 0 {
			s.Stats.RecDropped(delta)
		}
	}
}

// LastCycle returns the most recent cycle result.
func (s *Session) LastCycle() CycleResult {
	s.MU.Lock()
	defer s.MU.Unlock()
	return s.lastCycle
}

// Snapshot assembles the JSON view of the live session.
func (s *Session) Snapshot() Snapshot {
	cfg := s.Config.Active()
	cycle := s.LastCycle()
	m := s.Monitor.Metrics()

	var knee float64
	if cycle.Angles != nil {
		knee = cycle.Angles.Knee
	}

	s.MU.Lock()
	timeline := string(s.Timeline.Runes)
	s.MU.Unlock()

	return Snapshot{
		SessionID: s.ID.String(),
		Exercise:  cfg.Exercise.String(),
		Mode:      cfg.Mode.String(),
		State:     cycle.State.String(),
		View:      cycle.View.String(),
		RepCount:  s.Counter.Count(),
		KneeAngle: FloatPrecise(knee, 1),
		FormScore: cycle.Analysis.FormScore,
		Risk:      cycle.Analysis.Risk.String(),
		Timeline:  timeline,
		Feedback:  cycle.Feedback,
		Metrics:   m,
	}
}

// Close releases the worker and flushes the output adapter.
func (s *Session) Close() error {
	if s.Worker != nil {
		s.Worker.Close()
	}
	if s.Output != nil {
		return s.Output.Close()
	}
	return nil
}

// NewTimeseries builds a fixed-size rune timeline seeded with
// blanks so the display is stable from the first frame.
func NewTimeseries(size int) *Ft.Timeseries {
	runes := make([]rune, size)
	for i := range runes {
		runes[i] = ' '
	}
	return &Ft.Timeseries{Runes: runes, MaxSize: size}
}

// AddRune pushes one rune into the timeline ring.
func AddRune(ts *Ft.Timeseries, r rune) {
	if ts.Current < ts.MaxSize {
		ts.Runes[ts.Current] = r
		ts.Current++
		return
	}
	copy(ts.Runes, ts.Runes[1:])
	ts.Runes[ts.MaxSize-1] = r
}

// angleRune maps a knee angle onto a display glyph, deeper is
// taller.
func angleRune(knee float64) rune {
	switch {
	case knee >= 170:
		return '▁'
	case knee >= 150:
		return '▂'
	case knee >= 130:
		return '▃'
	case knee >= 110:
		return '▄'
	case knee >= 90:
		return '▅'
	case knee >= 75:
		return '▆'
	default:
		return '█'
	}
}
