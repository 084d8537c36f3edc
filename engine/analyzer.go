package formsense

import (
	"fmt"
	"log/slog"
	"math"

	Ft "github.com/maroda/formsense/types"
)

// Safety-tier escalation constants. These are domain-tuned values
// kept for compatibility, recorded here as a parameter table.
const (
	KneeOverToeWarn    = 0.08 // normalized horizontal displacement
	KneeOverToeDanger  = 0.15
	ForwardLeanWarn    = 45.0 // degrees from vertical
	ForwardLeanDanger  = 60.0
	BackwardLeanWarn   = 20.0 // backward tolerated less than forward
	BackwardLeanDanger = 30.0
	ValgusCollapse     = 0.7 // knee-width / ankle-width
	ValgusDanger       = 0.55
)

// Correctness-score multipliers per violation category.
// Repeated violations in one category compound but the score is
// clamped so it never goes negative.
const (
	scoreAlignment = 0.80
	scoreROM       = 0.85
	scorePosture   = 0.75
)

// AnalysisResult is the complete, always-well-formed output of one
// analysis call.
type AnalysisResult struct {
	Violations       []Ft.FormViolation
	Risk             Ft.RiskLevel
	CorrectnessScore float64 // [0,1]
	FormScore        int     // 0-100, for UI display
	Recommendations  []string
}

// EscalateRisk is the max-escalation reducer: the aggregate level
// never downgrades within one analysis call, and feeding the same
// levels in any order yields the same maximum.
func EscalateRisk(current, candidate Ft.RiskLevel) Ft.RiskLevel {
	if candidate > current {
		return candidate
	}
	return current
}

// Relation is the expected geometric relationship between two
// joints in an alignment rule.
type Relation int

const (
	RelVertical   Relation = iota // joints share an X coordinate
	RelHorizontal                 // joints share a Y coordinate
)

// AlignmentRule declares an expected joint relationship with a
// numeric tolerance in normalized coordinates.
type AlignmentRule struct {
	Name      string
	A, B      int // landmark indices
	Relation  Relation
	Tolerance float64
	Severity  Ft.Severity
	Hint      string
}

// AngleKind selects which extracted angle a range-of-motion rule reads.
type AngleKind int

const (
	AngleKnee AngleKind = iota
	AngleHip
	AngleAnkle
	AngleOffset
)

// ROMRule declares a min/max angle band for one phase.
type ROMRule struct {
	Name     string
	Angle    AngleKind
	Phase    Ft.ExerciseState
	Min, Max float64
	Severity Ft.Severity
	Hint     string
}

// PostureRule is an exercise-specific boolean predicate.
type PostureRule struct {
	Name     string
	Check    func(f *Ft.Frame, angles Ft.ExerciseAngles) bool
	Severity Ft.Severity
	Desc     string
	Hint     string
}

// RuleSet is the declarative rule table for one exercise.
type RuleSet struct {
	Alignment []AlignmentRule
	ROM       []ROMRule
	Posture   []PostureRule
}

// hipsNotSagging holds for pushups and planks when the body line
// stays straight through the hips.
func hipsNotSagging(f *Ft.Frame, angles Ft.ExerciseAngles) bool {
	return angles.Hip >= 150
}

// backNotRounded is a coarse deadlift/squat check on the hip hinge.
func backNotRounded(f *Ft.Frame, angles Ft.ExerciseAngles) bool {
	return angles.Hip >= 30
}

// ruleSets is the per-exercise declarative table the generic tier
// evaluates. Squat additionally runs the biomechanical safety tier.
var ruleSets = map[Ft.ExerciseType]RuleSet{
	Ft.Squat: {
		Alignment: []AlignmentRule{
			{Name: "shoulders level", A: Ft.LeftShoulder, B: Ft.RightShoulder, Relation: RelHorizontal, Tolerance: 0.05, Severity: Ft.SeverityLow, Hint: "Level your shoulders"},
			{Name: "hips level", A: Ft.LeftHip, B: Ft.RightHip, Relation: RelHorizontal, Tolerance: 0.05, Severity: Ft.SeverityLow, Hint: "Keep your hips square"},
		},
		ROM: []ROMRule{
			{Name: "knee depth band", Angle: AngleKnee, Phase: Ft.DeepSquat, Min: 45, Max: 110, Severity: Ft.SeverityMedium, Hint: "Hit depth with control, thighs parallel to the floor"},
		},
		Posture: []PostureRule{
			{Name: "hip hinge", Check: backNotRounded, Severity: Ft.SeverityMedium, Desc: "Back rounding under load", Hint: "Brace your core and keep your chest up"},
		},
	},
	Ft.Pushup: {
		Alignment: []AlignmentRule{
			{Name: "shoulders level", A: Ft.LeftShoulder, B: Ft.RightShoulder, Relation: RelHorizontal, Tolerance: 0.05, Severity: Ft.SeverityLow, Hint: "Level your shoulders"},
		},
		Posture: []PostureRule{
			{Name: "body line", Check: hipsNotSagging, Severity: Ft.SeverityHigh, Desc: "Hips sagging out of the body line", Hint: "Squeeze your glutes and hold a straight line"},
		},
	},
	Ft.Plank: {
		Posture: []PostureRule{
			{Name: "body line", Check: hipsNotSagging, Severity: Ft.SeverityHigh, Desc: "Hips sagging out of the body line", Hint: "Lift your hips back into line"},
		},
	},
	Ft.Deadlift: {
		Posture: []PostureRule{
			{Name: "hip hinge", Check: backNotRounded, Severity: Ft.SeverityHigh, Desc: "Back rounding under load", Hint: "Set your back flat before the pull"},
		},
	},
	Ft.BicepCurl: {
		Alignment: []AlignmentRule{
			{Name: "elbow pinned", A: Ft.LeftShoulder, B: Ft.LeftElbow, Relation: RelVertical, Tolerance: 0.08, Severity: Ft.SeverityMedium, Hint: "Pin your elbow to your side"},
		},
	},
}

// FormAnalyzer evaluates a frame against the generic rule engine
// and the biomechanical safety tier. Both tiers are deterministic
// and side-effect-free.
type FormAnalyzer struct{}

func NewFormAnalyzer() *FormAnalyzer {
	return &FormAnalyzer{}
}

// Analyze produces the violation set, the aggregate injury-risk
// level and a correctness score for one frame. An unexpected
// internal failure is converted into a single synthetic
// HIGH-severity violation with a WARNING risk level, so the caller
// always receives a well-formed result.
func (fa *FormAnalyzer) Analyze(frame *Ft.Frame, angles *Ft.ExerciseAngles, state Ft.ExerciseState, cfg ActiveConfig) (res AnalysisResult) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Form analysis failed", slog.Any("Error", r))
			res = AnalysisResult{
				Violations: []Ft.FormViolation{{
					Type:           Ft.ViolationInternal,
					Severity:       Ft.SeverityHigh,
					Description:    "Form analysis could not complete",
					CorrectionHint: "Check camera position and lighting",
				}},
				Risk:            Ft.RiskWarning,
				FormScore:       0,
				Recommendations: []string{"Check camera position and lighting"},
			}
		}
	}()

	res.Risk = Ft.RiskSafe

	rules := ruleSets[cfg.Exercise]

	for _, r := range rules.Alignment {
		if !Visible(frame, VisibilityAlignment, r.A, r.B) {
			continue // abstain rather than guess
		}
		a, b := frame.Points[r.A], frame.Points[r.B]
		var dev float64
		switch r.Relation {
		case RelVertical:
			dev = math.Abs(a.X - b.X)
		case RelHorizontal:
			dev = math.Abs(a.Y - b.Y)
		}
		if dev > r.Tolerance {
			res.Violations = append(res.Violations, Ft.FormViolation{
				Type:           Ft.ViolationAlignment,
				Severity:       r.Severity,
				Description:    fmt.Sprintf("Alignment off: %s (%.2f past tolerance)", r.Name, dev-r.Tolerance),
				CorrectionHint: r.Hint,
			})
			res.Risk = EscalateRisk(res.Risk, Ft.RiskCaution)
		}
	}

	if angles != nil {
		for _, r := range rules.ROM {
			if state != r.Phase {
				continue
			}
			v := angleFor(r.Angle, *angles)
			if v < r.Min || v > r.Max {
				res.Violations = append(res.Violations, Ft.FormViolation{
					Type:           Ft.ViolationRangeOfMotion,
					Severity:       r.Severity,
					Description:    fmt.Sprintf("Range of motion out of band: %s at %.1f°", r.Name, v),
					CorrectionHint: r.Hint,
				})
				res.Risk = EscalateRisk(res.Risk, Ft.RiskCaution)
			}
		}

		for _, r := range rules.Posture {
			if !r.Check(frame, *angles) {
				res.Violations = append(res.Violations, Ft.FormViolation{
					Type:           Ft.ViolationPosture,
					Severity:       r.Severity,
					Description:    r.Desc,
					CorrectionHint: r.Hint,
				})
				res.Risk = EscalateRisk(res.Risk, Ft.RiskCaution)
			}
		}
	}

	if cfg.Exercise == Ft.Squat {
		fa.squatSafety(frame, angles, state, cfg, &res)
	}

	score := 1.0
	for _, v := range res.Violations {
		score *= scoreMultiplier(v.Type)
	}
	res.CorrectnessScore = Clamp01(score)
	res.FormScore = int(math.Round(res.CorrectnessScore * 100))
	res.Recommendations = recommendations(res.Violations, cfg.Mode)

	return res
}

// scoreMultiplier maps a violation onto its category penalty.
// Depth faults count as range-of-motion, the joint-safety faults
// count as posture.
func scoreMultiplier(t Ft.ViolationType) float64 {
	switch t {
	case Ft.ViolationAlignment:
		return scoreAlignment
	case Ft.ViolationRangeOfMotion, Ft.ViolationInsufficientDepth, Ft.ViolationExcessiveDepth:
		return scoreROM
	default:
		return scorePosture
	}
}

func angleFor(k AngleKind, a Ft.ExerciseAngles) float64 {
	switch k {
	case AngleKnee:
		return a.Knee
	case AngleHip:
		return a.Hip
	case AngleAnkle:
		return a.Ankle
	default:
		return a.Offset
	}
}

// squatSafety is the biomechanical tier. Every check abstains when
// its landmarks fall below the injury-risk visibility floor, and
// each independently escalates the running risk level.
func (fa *FormAnalyzer) squatSafety(frame *Ft.Frame, angles *Ft.ExerciseAngles, state Ft.ExerciseState, cfg ActiveConfig, res *AnalysisResult) {
	side := SideFor(frame)

	// Knee-over-toe: horizontal knee displacement beyond the ankle.
	if Visible(frame, VisibilityInjury, side.Knee, side.Ankle) {
		disp := math.Abs(frame.Points[side.Knee].X - frame.Points[side.Ankle].X)
		switch {
		case disp > KneeOverToeDanger:
			res.Violations = append(res.Violations, Ft.FormViolation{
				Type:           Ft.ViolationKneeOverToe,
				Severity:       Ft.SeverityHigh,
				Description:    fmt.Sprintf("Knee far past the toes (%.2f)", disp),
				CorrectionHint: "Sit back into your hips, keep knees over ankles",
			})
			res.Risk = EscalateRisk(res.Risk, Ft.RiskDanger)
		case disp > KneeOverToeWarn:
			res.Violations = append(res.Violations, Ft.FormViolation{
				Type:           Ft.ViolationKneeOverToe,
				Severity:       Ft.SeverityMedium,
				Description:    fmt.Sprintf("Knee drifting past the toes (%.2f)", disp),
				CorrectionHint: "Shift your weight toward your heels",
			})
			res.Risk = EscalateRisk(res.Risk, Ft.RiskWarning)
		}
	}

	// Depth bands only apply in the deep phase. Pro requires deeper
	// depth but flags excessive depth at a shallower cutoff.
	if angles != nil && state == Ft.DeepSquat {
		switch {
		case angles.Knee > cfg.Analysis.InsufficientDepth:
			res.Violations = append(res.Violations, Ft.FormViolation{
				Type:           Ft.ViolationInsufficientDepth,
				Severity:       Ft.SeverityMedium,
				Description:    fmt.Sprintf("Squat too shallow (knee %.1f°)", angles.Knee),
				CorrectionHint: "Sink lower, aim for thighs parallel",
			})
			res.Risk = EscalateRisk(res.Risk, Ft.RiskCaution)
		case angles.Knee < cfg.Analysis.ExcessiveDepth:
			res.Violations = append(res.Violations, Ft.FormViolation{
				Type:           Ft.ViolationExcessiveDepth,
				Severity:       Ft.SeverityMedium,
				Description:    fmt.Sprintf("Squat collapsing too deep (knee %.1f°)", angles.Knee),
				CorrectionHint: "Stop at parallel, keep tension at the bottom",
			})
			res.Risk = EscalateRisk(res.Risk, Ft.RiskWarning)
		}
	}

	// Torso lean from the shoulder-center-to-hip-center line.
	// Forward lean is tolerated more than backward lean.
	if Visible(frame, VisibilityInjury, Ft.LeftShoulder, Ft.RightShoulder, Ft.LeftHip, Ft.RightHip) {
		scx := (frame.Points[Ft.LeftShoulder].X + frame.Points[Ft.RightShoulder].X) / 2
		scy := (frame.Points[Ft.LeftShoulder].Y + frame.Points[Ft.RightShoulder].Y) / 2
		hcx := (frame.Points[Ft.LeftHip].X + frame.Points[Ft.RightHip].X) / 2
		hcy := (frame.Points[Ft.LeftHip].Y + frame.Points[Ft.RightHip].Y) / 2

		// Positive lean is forward, image Y grows downward.
		lean := math.Atan2(scx-hcx, hcy-scy) * 180 / math.Pi
		switch {
		case lean > ForwardLeanDanger:
			res.Violations = append(res.Violations, Ft.FormViolation{
				Type:           Ft.ViolationForwardLean,
				Severity:       Ft.SeverityHigh,
				Description:    fmt.Sprintf("Severe forward lean (%.1f°)", lean),
				CorrectionHint: "Lift your chest, keep the bar path vertical",
			})
			res.Risk = EscalateRisk(res.Risk, Ft.RiskDanger)
		case lean > ForwardLeanWarn:
			res.Violations = append(res.Violations, Ft.FormViolation{
				Type:           Ft.ViolationForwardLean,
				Severity:       Ft.SeverityMedium,
				Description:    fmt.Sprintf("Leaning forward (%.1f°)", lean),
				CorrectionHint: "Keep your torso more upright",
			})
			res.Risk = EscalateRisk(res.Risk, Ft.RiskWarning)
		case lean < -BackwardLeanDanger:
			res.Violations = append(res.Violations, Ft.FormViolation{
				Type:           Ft.ViolationBackwardLean,
				Severity:       Ft.SeverityHigh,
				Description:    fmt.Sprintf("Severe backward lean (%.1f°)", -lean),
				CorrectionHint: "Bring your weight off your heels",
			})
			res.Risk = EscalateRisk(res.Risk, Ft.RiskDanger)
		case lean < -BackwardLeanWarn:
			res.Violations = append(res.Violations, Ft.FormViolation{
				Type:           Ft.ViolationBackwardLean,
				Severity:       Ft.SeverityMedium,
				Description:    fmt.Sprintf("Leaning backward (%.1f°)", -lean),
				CorrectionHint: "Center your balance over mid-foot",
			})
			res.Risk = EscalateRisk(res.Risk, Ft.RiskWarning)
		}
	}

	// Valgus: knee width collapsing inside ankle width.
	if Visible(frame, VisibilityInjury, Ft.LeftKnee, Ft.RightKnee, Ft.LeftAnkle, Ft.RightAnkle) {
		kneeW := math.Abs(frame.Points[Ft.LeftKnee].X - frame.Points[Ft.RightKnee].X)
		ankleW := math.Abs(frame.Points[Ft.LeftAnkle].X - frame.Points[Ft.RightAnkle].X)
		if ankleW > 0 {
			ratio := kneeW / ankleW
			if ratio < ValgusCollapse {
				res.Violations = append(res.Violations, Ft.FormViolation{
					Type:           Ft.ViolationKneeValgus,
					Severity:       Ft.SeverityHigh,
					Description:    fmt.Sprintf("Knees caving inward (ratio %.2f)", ratio),
					CorrectionHint: "Push your knees out over your toes",
				})
				if ratio < ValgusDanger {
					res.Risk = EscalateRisk(res.Risk, Ft.RiskDanger)
				} else {
					res.Risk = EscalateRisk(res.Risk, Ft.RiskWarning)
				}
			}
		}
	}
}

// adviceByType maps each violation type to mode-framed advice:
// beginners get encouragement, pros get precision cues.
var adviceByType = map[Ft.ViolationType][2]string{
	Ft.ViolationAlignment:         {"Square up to the camera and keep both sides even — you've got this!", "Symmetry drift detected, re-square shoulders and hips."},
	Ft.ViolationRangeOfMotion:     {"Work the full movement at your own pace, a little deeper each time!", "Range of motion outside the target band, control the end ranges."},
	Ft.ViolationPosture:           {"Keep your core tight and posture tall — small fixes make big gains!", "Posture fault, reset your brace before the next rep."},
	Ft.ViolationKneeOverToe:       {"Try sitting back into your hips, like reaching for a chair behind you!", "Knee tracking past the toe, load the posterior chain."},
	Ft.ViolationInsufficientDepth: {"Nice work! Sink a touch lower when you're ready!", "Depth short of the standard, break parallel."},
	Ft.ViolationExcessiveDepth:    {"Great depth! Stop just at parallel to stay strong and safe!", "Depth past the useful range, cut the bounce at the bottom."},
	Ft.ViolationForwardLean:       {"Lift your chest proud — imagine a logo on your shirt facing forward!", "Torso angle excessive, keep the hip-shoulder line tighter."},
	Ft.ViolationBackwardLean:      {"Center your balance over the middle of your feet!", "Backward lean detected, redistribute over mid-foot."},
	Ft.ViolationKneeValgus:        {"Push those knees out gently as you move — you're doing great!", "Valgus collapse, drive the knees out hard."},
	Ft.ViolationInternal:          {"Check camera position and lighting", "Check camera position and lighting"},
}

// recommendations derives advice from the set of violation types
// present, not per violation: ten valgus hits still read as one
// line. Iteration follows enum order so output is deterministic.
func recommendations(violations []Ft.FormViolation, mode Ft.ExerciseMode) []string {
	present := make(map[Ft.ViolationType]bool)
	for _, v := range violations {
		present[v.Type] = true
	}

	idx := 0
	if mode == Ft.Pro {
		idx = 1
	}

	var out []string
	for t := Ft.ViolationAlignment; t <= Ft.ViolationInternal; t++ {
		if present[t] {
			out = append(out, adviceByType[t][idx])
		}
	}
	return out
}
