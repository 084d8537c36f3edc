package formsense

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	Ft "github.com/maroda/formsense/types"
)

// ModeChangeHistoryCap bounds the configuration change-event log.
// Oldest entries are silently dropped beyond this.
const ModeChangeHistoryCap = 50

// AngleThresholds are the per-angle phase cutoffs for one mode.
// S1 bounds the standing phase, S3 bounds the deep phase, and
// S2Range is the expected transition corridor between them.
type AngleThresholds struct {
	S1Threshold      float64    `json:"s1Threshold"`
	S2Range          [2]float64 `json:"s2Range"`
	S3Threshold      float64    `json:"s3Threshold"`
	WarningTolerance float64    `json:"warningTolerance"`
}

// ModeThresholds is the full threshold table for one
// (mode, exercise) pair.
type ModeThresholds struct {
	Knee                AngleThresholds `json:"knee"`
	Hip                 AngleThresholds `json:"hip"`
	Offset              AngleThresholds `json:"offset"`
	FeedbackSensitivity float64         `json:"feedbackSensitivity"` // [0,1]
	InactivityTimeout   float64         `json:"inactivityTimeout"`   // seconds, >= 5
}

// FeedbackSettings are derived from the active mode.
// Pro mode speaks less often but reacts to lower-grade issues
// only above a stricter priority floor.
type FeedbackSettings struct {
	Frequency     time.Duration
	PriorityFloor Ft.FeedbackPriority
}

// AnalysisSettings are derived from the active mode.
// Pro mode trades leniency for responsiveness: a shorter dwell
// time and tighter depth bands.
type AnalysisSettings struct {
	MinStateDuration  time.Duration
	OptimalDepth      float64 // knee angle target at the deep phase
	InsufficientDepth float64 // above this at depth = too shallow
	ExcessiveDepth    float64 // below this at depth = too deep
}

// ActiveConfig is the complete live configuration. It is replaced
// as a whole on every change so readers never observe a partially
// updated threshold table.
type ActiveConfig struct {
	Mode       Ft.ExerciseMode
	Exercise   Ft.ExerciseType
	Thresholds ModeThresholds
	Feedback   FeedbackSettings
	Analysis   AnalysisSettings
}

// ModeChangeListener receives every configuration change,
// synchronously, during the call that triggered it.
type ModeChangeListener interface {
	OnModeChange(ev Ft.ModeChangeEvent)
}

// ModeChangeFunc adapts a plain function into a listener.
type ModeChangeFunc func(ev Ft.ModeChangeEvent)

func (f ModeChangeFunc) OnModeChange(ev Ft.ModeChangeEvent) { f(ev) }

// ModeConfigService owns the active exercise type, skill mode and
// the threshold tables they imply. All mutation goes through its
// methods; reads get a copy of the whole active config.
type ModeConfigService struct {
	MU        sync.RWMutex
	active    *ActiveConfig
	tables    map[Ft.ExerciseMode]map[Ft.ExerciseType]ModeThresholds
	listeners map[string]ModeChangeListener
	order     []string
	history   []Ft.ModeChangeEvent
	Clock     func() time.Time
}

// NewModeConfigService starts with the built-in tables for the
// given mode and exercise.
func NewModeConfigService(mode Ft.ExerciseMode, exercise Ft.ExerciseType) *ModeConfigService {
	s := &ModeConfigService{
		tables:    builtinThresholds(),
		listeners: make(map[string]ModeChangeListener),
		Clock:     time.Now,
	}
	s.active = s.derive(mode, exercise)
	return s
}

// builtinThresholds holds the two shipped skill variants for every
// supported exercise. The numeric values are domain-tuned and kept
// for compatibility; pro is never more forgiving than beginner.
func builtinThresholds() map[Ft.ExerciseMode]map[Ft.ExerciseType]ModeThresholds {
	beginner := map[Ft.ExerciseType]ModeThresholds{
		Ft.Squat: {
			Knee:                AngleThresholds{S1Threshold: 150, S2Range: [2]float64{90, 130}, S3Threshold: 75, WarningTolerance: 15},
			Hip:                 AngleThresholds{S1Threshold: 140, S2Range: [2]float64{80, 120}, S3Threshold: 70, WarningTolerance: 15},
			Offset:              AngleThresholds{S1Threshold: 25, S2Range: [2]float64{10, 20}, S3Threshold: 8, WarningTolerance: 10},
			FeedbackSensitivity: 0.5,
			InactivityTimeout:   30,
		},
		Ft.Pushup: {
			Knee:                AngleThresholds{S1Threshold: 160, S2Range: [2]float64{100, 145}, S3Threshold: 90, WarningTolerance: 15},
			Hip:                 AngleThresholds{S1Threshold: 170, S2Range: [2]float64{150, 165}, S3Threshold: 145, WarningTolerance: 15},
			Offset:              AngleThresholds{S1Threshold: 25, S2Range: [2]float64{10, 20}, S3Threshold: 8, WarningTolerance: 10},
			FeedbackSensitivity: 0.5,
			InactivityTimeout:   30,
		},
		Ft.Plank: {
			Knee:                AngleThresholds{S1Threshold: 172, S2Range: [2]float64{155, 168}, S3Threshold: 150, WarningTolerance: 15},
			Hip:                 AngleThresholds{S1Threshold: 172, S2Range: [2]float64{155, 168}, S3Threshold: 150, WarningTolerance: 15},
			Offset:              AngleThresholds{S1Threshold: 25, S2Range: [2]float64{10, 20}, S3Threshold: 8, WarningTolerance: 10},
			FeedbackSensitivity: 0.5,
			InactivityTimeout:   30,
		},
		Ft.Deadlift: {
			Knee:                AngleThresholds{S1Threshold: 165, S2Range: [2]float64{100, 140}, S3Threshold: 90, WarningTolerance: 15},
			Hip:                 AngleThresholds{S1Threshold: 160, S2Range: [2]float64{70, 130}, S3Threshold: 60, WarningTolerance: 15},
			Offset:              AngleThresholds{S1Threshold: 25, S2Range: [2]float64{10, 20}, S3Threshold: 8, WarningTolerance: 10},
			FeedbackSensitivity: 0.5,
			InactivityTimeout:   30,
		},
		Ft.BicepCurl: {
			Knee:                AngleThresholds{S1Threshold: 160, S2Range: [2]float64{70, 140}, S3Threshold: 50, WarningTolerance: 15},
			Hip:                 AngleThresholds{S1Threshold: 170, S2Range: [2]float64{150, 165}, S3Threshold: 145, WarningTolerance: 15},
			Offset:              AngleThresholds{S1Threshold: 25, S2Range: [2]float64{10, 20}, S3Threshold: 8, WarningTolerance: 10},
			FeedbackSensitivity: 0.5,
			InactivityTimeout:   30,
		},
	}

	pro := map[Ft.ExerciseType]ModeThresholds{}
	for ex, mt := range beginner {
		p := mt
		p.Knee = tighten(mt.Knee)
		p.Hip = tighten(mt.Hip)
		p.Offset = tighten(mt.Offset)
		p.FeedbackSensitivity = 0.8
		p.InactivityTimeout = 15
		pro[ex] = p
	}

	// Squat pro has its own tuned table rather than the derived one.
	pro[Ft.Squat] = ModeThresholds{
		Knee:                AngleThresholds{S1Threshold: 160, S2Range: [2]float64{85, 120}, S3Threshold: 70, WarningTolerance: 8},
		Hip:                 AngleThresholds{S1Threshold: 150, S2Range: [2]float64{75, 110}, S3Threshold: 65, WarningTolerance: 8},
		Offset:              AngleThresholds{S1Threshold: 20, S2Range: [2]float64{8, 15}, S3Threshold: 5, WarningTolerance: 6},
		FeedbackSensitivity: 0.8,
		InactivityTimeout:   15,
	}

	return map[Ft.ExerciseMode]map[Ft.ExerciseType]ModeThresholds{
		Ft.Beginner: beginner,
		Ft.Pro:      pro,
	}
}

// tighten derives a strict variant from a lenient one.
// Every field moves in the strict direction.
func tighten(a AngleThresholds) AngleThresholds {
	return AngleThresholds{
		S1Threshold:      a.S1Threshold + 5,
		S2Range:          [2]float64{a.S2Range[0] - 5, a.S2Range[1] - 5},
		S3Threshold:      a.S3Threshold - 5,
		WarningTolerance: a.WarningTolerance / 2,
	}
}

// derive builds a whole ActiveConfig for a (mode, exercise) pair.
func (s *ModeConfigService) derive(mode Ft.ExerciseMode, exercise Ft.ExerciseType) *ActiveConfig {
	th := s.tables[mode][exercise]

	fb := FeedbackSettings{
		Frequency:     2000 * time.Millisecond,
		PriorityFloor: Ft.PriorityLow,
	}
	an := AnalysisSettings{
		MinStateDuration:  200 * time.Millisecond,
		OptimalDepth:      80,
		InsufficientDepth: 100,
		ExcessiveDepth:    50,
	}
	if mode == Ft.Pro {
		fb.Frequency = 3000 * time.Millisecond
		fb.PriorityFloor = Ft.PriorityMedium
		an.MinStateDuration = 150 * time.Millisecond
		an.OptimalDepth = 75
		an.InsufficientDepth = 90
		an.ExcessiveDepth = 60
	}

	return &ActiveConfig{
		Mode:       mode,
		Exercise:   exercise,
		Thresholds: th,
		Feedback:   fb,
		Analysis:   an,
	}
}

// Active returns a copy of the live configuration.
func (s *ModeConfigService) Active() ActiveConfig {
	s.MU.RLock()
	defer s.MU.RUnlock()
	return *s.active
}

// SwitchMode atomically replaces the whole configuration for a new
// skill mode and synchronously notifies every listener before
// returning. Switching to the current mode is a no-op event with
// every change flag false; listeners still fire.
func (s *ModeConfigService) SwitchMode(mode Ft.ExerciseMode) Ft.ModeChangeEvent {
	s.MU.Lock()

	ev := Ft.ModeChangeEvent{
		PreviousMode: s.active.Mode,
		NewMode:      mode,
		PreviousType: s.active.Exercise,
		NewType:      s.active.Exercise,
		Timestamp:    s.Clock(),
	}

	if mode != s.active.Mode {
		s.active = s.derive(mode, s.active.Exercise)
		ev.Changes = Ft.ConfigChanges{
			Thresholds:        true,
			FeedbackFrequency: true,
			MinStateDuration:  true,
			PriorityFloor:     true,
		}
	}

	s.appendHistory(ev)
	s.MU.Unlock()

	s.notify(ev)
	return ev
}

// SwitchExerciseType replaces the configuration for a new exercise,
// preserving the mode. Same delivery contract as SwitchMode.
func (s *ModeConfigService) SwitchExerciseType(exercise Ft.ExerciseType) Ft.ModeChangeEvent {
	s.MU.Lock()

	ev := Ft.ModeChangeEvent{
		PreviousMode: s.active.Mode,
		NewMode:      s.active.Mode,
		PreviousType: s.active.Exercise,
		NewType:      exercise,
		Timestamp:    s.Clock(),
	}

	if exercise != s.active.Exercise {
		s.active = s.derive(s.active.Mode, exercise)
		ev.Changes = Ft.ConfigChanges{Thresholds: true}
	}

	s.appendHistory(ev)
	s.MU.Unlock()

	s.notify(ev)
	return ev
}

// AngleThresholdPatch carries optional per-angle overrides.
type AngleThresholdPatch struct {
	S1Threshold      *float64    `json:"s1Threshold,omitempty"`
	S2Range          *[2]float64 `json:"s2Range,omitempty"`
	S3Threshold      *float64    `json:"s3Threshold,omitempty"`
	WarningTolerance *float64    `json:"warningTolerance,omitempty"`
}

// ThresholdPatch carries optional overrides for one mode's table.
type ThresholdPatch struct {
	Knee                *AngleThresholdPatch `json:"knee,omitempty"`
	Hip                 *AngleThresholdPatch `json:"hip,omitempty"`
	Offset              *AngleThresholdPatch `json:"offset,omitempty"`
	FeedbackSensitivity *float64             `json:"feedbackSensitivity,omitempty"`
	InactivityTimeout   *float64             `json:"inactivityTimeout,omitempty"`
}

func applyAnglePatch(t AngleThresholds, p *AngleThresholdPatch) AngleThresholds {
	if p == nil {
		return t
	}
	if p.S1Threshold != nil {
		t.S1Threshold = *p.S1Threshold
	}
	if p.S2Range != nil {
		t.S2Range = *p.S2Range
	}
	if p.S3Threshold != nil {
		t.S3Threshold = *p.S3Threshold
	}
	if p.WarningTolerance != nil {
		t.WarningTolerance = *p.WarningTolerance
	}
	return t
}

// UpdateThresholds merges the patch into the given mode's table for
// the active exercise. Invalid overrides are rejected with an error
// listing every violated invariant; the previously active table
// stays in effect. If the patched mode is live, the derived fields
// cascade immediately and a change event fires.
func (s *ModeConfigService) UpdateThresholds(mode Ft.ExerciseMode, patch ThresholdPatch) error {
	s.MU.Lock()

	exercise := s.active.Exercise
	merged := s.tables[mode][exercise]
	merged.Knee = applyAnglePatch(merged.Knee, patch.Knee)
	merged.Hip = applyAnglePatch(merged.Hip, patch.Hip)
	merged.Offset = applyAnglePatch(merged.Offset, patch.Offset)
	if patch.FeedbackSensitivity != nil {
		merged.FeedbackSensitivity = *patch.FeedbackSensitivity
	}
	if patch.InactivityTimeout != nil {
		merged.InactivityTimeout = *patch.InactivityTimeout
	}

	if vr := ValidateThresholds(merged); !vr.Valid {
		s.MU.Unlock()
		return fmt.Errorf("threshold update rejected: %w", errors.Join(vr.Errs()...))
	}

	s.tables[mode][exercise] = merged

	if mode != s.active.Mode {
		s.MU.Unlock()
		return nil
	}

	s.active = s.derive(mode, exercise)
	ev := Ft.ModeChangeEvent{
		PreviousMode: mode,
		NewMode:      mode,
		PreviousType: exercise,
		NewType:      exercise,
		Timestamp:    s.Clock(),
		Changes:      Ft.ConfigChanges{Thresholds: true},
	}
	s.appendHistory(ev)
	s.MU.Unlock()

	s.notify(ev)
	return nil
}

// AddModeChangeListener registers a listener under an ID.
// Delivery order follows registration order.
func (s *ModeConfigService) AddModeChangeListener(id string, l ModeChangeListener) {
	s.MU.Lock()
	defer s.MU.Unlock()
	if _, exists := s.listeners[id]; !exists {
		s.order = append(s.order, id)
	}
	s.listeners[id] = l
}

// RemoveModeChangeListener unregisters a listener by ID.
func (s *ModeConfigService) RemoveModeChangeListener(id string) {
	s.MU.Lock()
	defer s.MU.Unlock()
	delete(s.listeners, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// notify delivers the event to every registered listener in turn.
// A panicking listener is caught and logged; it never blocks
// delivery to the others and never propagates to the caller.
func (s *ModeConfigService) notify(ev Ft.ModeChangeEvent) {
	s.MU.RLock()
	ids := make([]string, len(s.order))
	copy(ids, s.order)
	listeners := make(map[string]ModeChangeListener, len(s.listeners))
	for k, v := range s.listeners {
		listeners[k] = v
	}
	s.MU.RUnlock()

	for _, id := range ids {
		l, ok := listeners[id]
		if !ok {
			continue
		}
		func() {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("Mode change listener failed",
						slog.String("listener", id),
						slog.Any("Error", r))
				}
			}()
			l.OnModeChange(ev)
		}()
	}
}

func (s *ModeConfigService) appendHistory(ev Ft.ModeChangeEvent) {
	s.history = append(s.history, ev)
	if len(s.history) > ModeChangeHistoryCap {
		s.history = s.history[len(s.history)-ModeChangeHistoryCap:]
	}
}

// ModeChangeHistory returns the bounded change-event log,
// oldest first.
func (s *ModeConfigService) ModeChangeHistory() []Ft.ModeChangeEvent {
	s.MU.RLock()
	defer s.MU.RUnlock()
	out := make([]Ft.ModeChangeEvent, len(s.history))
	copy(out, s.history)
	return out
}

// IsModeMoreStrict is a total order over modes: pro > beginner.
// Reflexive comparisons are false.
func (s *ModeConfigService) IsModeMoreStrict(a, b Ft.ExerciseMode) bool {
	return a == Ft.Pro && b == Ft.Beginner
}

// ValidationResult reports every violated invariant, not just
// the first.
type ValidationResult struct {
	Valid  bool
	Errors []string
}

// Errs converts the string list into error values for joining.
func (vr ValidationResult) Errs() []error {
	errs := make([]error, len(vr.Errors))
	for i, e := range vr.Errors {
		errs[i] = errors.New(e)
	}
	return errs
}

// ValidateThresholds checks every ModeThresholds invariant.
func ValidateThresholds(mt ModeThresholds) ValidationResult {
	var errs []string

	check := func(name string, a AngleThresholds) {
		if a.S1Threshold <= a.S3Threshold {
			errs = append(errs, fmt.Sprintf(
				"%s: s1Threshold (%.1f) must exceed s3Threshold (%.1f)",
				name, a.S1Threshold, a.S3Threshold))
		}
		if a.S2Range[0] >= a.S2Range[1] {
			errs = append(errs, fmt.Sprintf(
				"%s: s2Range lower bound (%.1f) must be below upper bound (%.1f)",
				name, a.S2Range[0], a.S2Range[1]))
		}
		if a.WarningTolerance < 0 {
			errs = append(errs, fmt.Sprintf(
				"%s: warningTolerance (%.1f) must not be negative",
				name, a.WarningTolerance))
		}
	}
	check("knee", mt.Knee)
	check("hip", mt.Hip)
	check("offset", mt.Offset)

	if mt.FeedbackSensitivity < 0 || mt.FeedbackSensitivity > 1 {
		errs = append(errs, fmt.Sprintf(
			"feedbackSensitivity (%.2f) must be within [0,1]", mt.FeedbackSensitivity))
	}
	if mt.InactivityTimeout < 5 {
		errs = append(errs, fmt.Sprintf(
			"inactivityTimeout (%.1f) must be at least 5 seconds", mt.InactivityTimeout))
	}

	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

// ParseMode maps a config string onto the mode enum.
func ParseMode(s string) (Ft.ExerciseMode, error) {
	switch s {
	case "beginner":
		return Ft.Beginner, nil
	case "pro":
		return Ft.Pro, nil
	default:
		return Ft.Beginner, fmt.Errorf("unknown exercise mode: %s", s)
	}
}

// ParseExercise maps a config string onto the exercise enum.
func ParseExercise(s string) (Ft.ExerciseType, error) {
	switch s {
	case "squat":
		return Ft.Squat, nil
	case "pushup":
		return Ft.Pushup, nil
	case "plank":
		return Ft.Plank, nil
	case "deadlift":
		return Ft.Deadlift, nil
	case "bicep-curl":
		return Ft.BicepCurl, nil
	default:
		return Ft.Squat, fmt.Errorf("unknown exercise type: %s", s)
	}
}

// ConfigFile is the on-disk session configuration: the starting
// mode and exercise, plus optional threshold overrides that are
// validated before acceptance.
type ConfigFile struct {
	Mode       string          `json:"mode"`
	Exercise   string          `json:"exercise"`
	Thresholds *ThresholdPatch `json:"thresholds,omitempty"`
}

// LoadConfigFileName pulls a given filename config off local disk
// Validation is performed on the file before opening
func LoadConfigFileName(filename string) (*ConfigFile, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	// validation
	if err := validateLoad(file); err != nil {
		slog.Error("Validation failed", slog.Any("Error", err))
		return nil, err
	}

	return LoadConfig(file)
}

func validateLoad(file *os.File) error {
	// validate file
	info, err := file.Stat()
	if err != nil {
		slog.Error("could not stat file")
		return err
	}

	// validate size
	if info.Size() == 0 {
		slog.Error("file is empty")
		return errors.New("file is empty")
	}

	return nil
}

func LoadConfig(file *os.File) (*ConfigFile, error) {
	// open file
	cf, err := os.Open(file.Name())
	if err != nil {
		slog.Error("could not open file")
		return nil, err
	}
	defer cf.Close()

	// decode json
	var config ConfigFile
	decoder := json.NewDecoder(cf)
	if err := decoder.Decode(&config); err != nil {
		slog.Error("could not decode file")
		return nil, err
	}

	return &config, nil
}

// NewServiceFromConfig builds a configuration service from an
// on-disk config, applying any threshold overrides after the
// built-in tables are loaded.
func NewServiceFromConfig(cf *ConfigFile) (*ModeConfigService, error) {
	mode, err := ParseMode(cf.Mode)
	if err != nil {
		return nil, err
	}
	exercise, err := ParseExercise(cf.Exercise)
	if err != nil {
		return nil, err
	}

	svc := NewModeConfigService(mode, exercise)
	if cf.Thresholds != nil {
		if err := svc.UpdateThresholds(mode, *cf.Thresholds); err != nil {
			return nil, err
		}
	}
	return svc, nil
}
