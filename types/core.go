package types

/*

	These are the "immutable" core types of Formsense,
	provided for cross-package use (e.g. Plugins, Display) and testing.

	There are no functions defined here beyond String methods.
	Struct constructors are housed in their own packages.
	Methods taking these types should create local aliases,
	for example: type Violations []Ft.FormViolation

*/

import "time"

// Landmark indices follow the MediaPipe Pose convention (33 points).
// Only the joints the pipeline reads are named here.
const (
	Nose           = 0
	LeftShoulder   = 11
	RightShoulder  = 12
	LeftElbow      = 13
	RightElbow     = 14
	LeftWrist      = 15
	RightWrist     = 16
	LeftHip        = 23
	RightHip       = 24
	LeftKnee       = 25
	RightKnee      = 26
	LeftAnkle      = 27
	RightAnkle     = 28
	LeftHeel       = 29
	RightHeel      = 30
	LeftFootIndex  = 31
	RightFootIndex = 32
	NumLandmarks   = 33
)

// Landmark is one detected body joint.
// Coordinates are normalized to the camera frame,
// Visibility is the detector confidence in [0,1].
type Landmark struct {
	X          float64
	Y          float64
	Z          float64
	Visibility float64
}

// Frame is one complete set of landmarks for one time instant.
// It is produced by the external pose detector and never mutated
// by the pipeline.
type Frame struct {
	Points    [NumLandmarks]Landmark
	Timestamp time.Time
}

// ExerciseAngles are the biomechanical angles derived per frame.
// Values are in degrees.
type ExerciseAngles struct {
	Knee   float64
	Hip    float64
	Ankle  float64
	Offset float64 // shoulder line deviation from horizontal
}

// ExerciseState is the discrete phase of a repetition.
type ExerciseState int

const (
	Standing ExerciseState = iota
	Transition
	DeepSquat
)

func (s ExerciseState) String() string {
	switch s {
	case Standing:
		return "STANDING"
	case Transition:
		return "TRANSITION"
	case DeepSquat:
		return "DEEP_SQUAT"
	default:
		return "UNKNOWN"
	}
}

// ExerciseMode is the skill mode that selects a threshold table.
type ExerciseMode int

const (
	Beginner ExerciseMode = iota
	Pro
)

func (m ExerciseMode) String() string {
	switch m {
	case Beginner:
		return "beginner"
	case Pro:
		return "pro"
	default:
		return "unknown"
	}
}

// ExerciseType is the movement being analyzed.
type ExerciseType int

const (
	Squat ExerciseType = iota
	Pushup
	Plank
	Deadlift
	BicepCurl
)

func (e ExerciseType) String() string {
	switch e {
	case Squat:
		return "squat"
	case Pushup:
		return "pushup"
	case Plank:
		return "plank"
	case Deadlift:
		return "deadlift"
	case BicepCurl:
		return "bicep-curl"
	default:
		return "unknown"
	}
}

// Severity grades a single form violation.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "LOW"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityHigh:
		return "HIGH"
	default:
		return "UNKNOWN"
	}
}

// RiskLevel is the aggregate injury-risk classification.
// Within one analysis call it only ever escalates.
type RiskLevel int

const (
	RiskSafe RiskLevel = iota
	RiskCaution
	RiskWarning
	RiskDanger
)

func (r RiskLevel) String() string {
	switch r {
	case RiskSafe:
		return "SAFE"
	case RiskCaution:
		return "CAUTION"
	case RiskWarning:
		return "WARNING"
	case RiskDanger:
		return "DANGER"
	default:
		return "UNKNOWN"
	}
}

// ViolationType is the closed set of detectable form deviations.
type ViolationType int

const (
	ViolationAlignment ViolationType = iota
	ViolationRangeOfMotion
	ViolationPosture
	ViolationKneeOverToe
	ViolationInsufficientDepth
	ViolationExcessiveDepth
	ViolationForwardLean
	ViolationBackwardLean
	ViolationKneeValgus
	ViolationInternal // synthetic, produced when analysis itself fails
)

func (v ViolationType) String() string {
	switch v {
	case ViolationAlignment:
		return "alignment"
	case ViolationRangeOfMotion:
		return "range_of_motion"
	case ViolationPosture:
		return "posture"
	case ViolationKneeOverToe:
		return "knee_over_toe"
	case ViolationInsufficientDepth:
		return "insufficient_depth"
	case ViolationExcessiveDepth:
		return "excessive_depth"
	case ViolationForwardLean:
		return "forward_lean"
	case ViolationBackwardLean:
		return "backward_lean"
	case ViolationKneeValgus:
		return "knee_valgus"
	case ViolationInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// FormViolation is one detected deviation from correct/safe form.
// Produced fresh on each analysis call, never persisted by the core.
type FormViolation struct {
	Type           ViolationType
	Severity       Severity
	Description    string
	CorrectionHint string
}

// RepQuality grades one completed repetition.
type RepQuality int

const (
	RepExcellent RepQuality = iota
	RepGood
	RepNeedsImprovement
	RepPoor
)

func (q RepQuality) String() string {
	switch q {
	case RepExcellent:
		return "EXCELLENT"
	case RepGood:
		return "GOOD"
	case RepNeedsImprovement:
		return "NEEDS_IMPROVEMENT"
	case RepPoor:
		return "POOR"
	default:
		return "UNKNOWN"
	}
}

// RepCountResult is emitted each time a full phase cycle closes.
// StartTime and Duration span the rep window the counter observed.
type RepCountResult struct {
	RepCompleted bool
	Quality      RepQuality
	Feedback     string
	ShouldReset  bool
	StartTime    time.Time
	Duration     time.Duration
}

// FeedbackPriority orders feedback delivery.
type FeedbackPriority int

const (
	PriorityLow FeedbackPriority = iota
	PriorityMedium
	PriorityHigh
	PriorityCritical
)

func (p FeedbackPriority) String() string {
	switch p {
	case PriorityLow:
		return "LOW"
	case PriorityMedium:
		return "MEDIUM"
	case PriorityHigh:
		return "HIGH"
	case PriorityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// ViewType classifies the camera angle on the subject.
// Side views are analyzable, frontal/unknown are not.
type ViewType int

const (
	ViewSide ViewType = iota
	ViewFrontal
	ViewUnknown
)

func (v ViewType) String() string {
	switch v {
	case ViewSide:
		return "side"
	case ViewFrontal:
		return "frontal"
	default:
		return "unknown"
	}
}

// CueType identifies a visual overlay element.
type CueType int

const (
	CueRepCounter CueType = iota
	CueAngleReadout
	CueWarningMarker
	CuePositioningGuide
	CueStateBadge
)

func (c CueType) String() string {
	switch c {
	case CueRepCounter:
		return "rep_counter"
	case CueAngleReadout:
		return "angle_readout"
	case CueWarningMarker:
		return "warning_marker"
	case CuePositioningGuide:
		return "positioning_guide"
	case CueStateBadge:
		return "state_badge"
	default:
		return "unknown"
	}
}

// CuePosition is a screen location in percent of screen space (0-100).
type CuePosition struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// VisualCue is one on-screen overlay instruction.
// Color is a 6-hex-digit string, Duration is milliseconds.
// This contract must hold for any replacement renderer.
type VisualCue struct {
	Type     CueType     `json:"type"`
	Position CuePosition `json:"position"`
	Color    string      `json:"color"`
	Message  string      `json:"message"`
	Duration int         `json:"duration"`
}

// FeedbackResponse is the per-cycle output to the UI/audio sink.
// Audio is throttled, visual cues are not.
type FeedbackResponse struct {
	AudioMessages []string         `json:"audioMessages"`
	VisualCues    []VisualCue      `json:"visualCues"`
	Priority      FeedbackPriority `json:"priority"`
	ShouldSpeak   bool             `json:"shouldSpeak"`
}

// StateTransition is one accepted phase change, kept in the
// state machine's bounded history ring.
type StateTransition struct {
	Previous      ExerciseState
	Current       ExerciseState
	Timestamp     time.Time
	TriggerAngles ExerciseAngles
}

// ConfigChanges flags which derived settings a mode change touched.
// A redundant switch returns all flags false.
type ConfigChanges struct {
	Thresholds        bool
	FeedbackFrequency bool
	MinStateDuration  bool
	PriorityFloor     bool
}

// ModeChangeEvent is the record of one configuration switch,
// delivered synchronously to every registered listener.
type ModeChangeEvent struct {
	PreviousMode ExerciseMode
	NewMode      ExerciseMode
	PreviousType ExerciseType
	NewType      ExerciseType
	Timestamp    time.Time
	Changes      ConfigChanges
}

// PerformanceMetrics is recomputed on demand from the monitor's
// bounded sliding windows.
type PerformanceMetrics struct {
	FrameRate          float64 `json:"frameRate"`
	ProcessingLatency  float64 `json:"processingLatency"`  // ms
	MemoryUsage        float64 `json:"memoryUsage"`        // MB
	LandmarkConfidence float64 `json:"landmarkConfidence"` // [0,1]
	AnalysisAccuracy   float64 `json:"analysisAccuracy"`   // %
	DroppedFrames      int     `json:"droppedFrames"`
	TotalFrames        int     `json:"totalFrames"`
}

// RepEvent is the telemetry record an output adapter may persist.
// The core itself performs no I/O.
type RepEvent struct {
	SessionID  string
	Exercise   ExerciseType
	Mode       ExerciseMode
	Quality    RepQuality
	DepthAngle float64
	Violations int
	StartTime  time.Time
	Duration   time.Duration
}

// Timeseries is a generic fixed-size rune timeline for display.
type Timeseries struct {
	Runes   []rune
	MaxSize int
	Current int
}
