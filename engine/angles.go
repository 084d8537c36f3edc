package formsense

import (
	"math"

	Ft "github.com/maroda/formsense/types"
	"gonum.org/v1/gonum/floats"
)

// Visibility floors for landmark use.
// Alignment checks accept lower-confidence joints than
// injury-risk checks, which must not guess.
const (
	VisibilityAlignment = 0.5
	VisibilityInjury    = 0.7
)

// CalcJointAngle returns the angle at vertex /b/ formed by the
// segments b->a and b->c, in degrees. Degenerate geometry
// (a zero-length segment) yields 0, never NaN.
func CalcJointAngle(a, b, c Ft.Landmark) float64 {
	v1 := []float64{a.X - b.X, a.Y - b.Y}
	v2 := []float64{c.X - b.X, c.Y - b.Y}

	m1 := floats.Norm(v1, 2)
	m2 := floats.Norm(v2, 2)
	if m1 == 0 || m2 == 0 {
		return 0
	}

	cos := floats.Dot(v1, v2) / (m1 * m2)
	cos = math.Max(-1, math.Min(1, cos))
	return math.Acos(cos) * 180 / math.Pi
}

// BodySide selects the left or right landmark column,
// whichever the detector sees more confidently.
type BodySide struct {
	Shoulder  int
	Hip       int
	Knee      int
	Ankle     int
	Heel      int
	FootIndex int
}

var (
	leftSide = BodySide{
		Shoulder:  Ft.LeftShoulder,
		Hip:       Ft.LeftHip,
		Knee:      Ft.LeftKnee,
		Ankle:     Ft.LeftAnkle,
		Heel:      Ft.LeftHeel,
		FootIndex: Ft.LeftFootIndex,
	}
	rightSide = BodySide{
		Shoulder:  Ft.RightShoulder,
		Hip:       Ft.RightHip,
		Knee:      Ft.RightKnee,
		Ankle:     Ft.RightAnkle,
		Heel:      Ft.RightHeel,
		FootIndex: Ft.RightFootIndex,
	}
)

// SideFor returns the body side with the higher mean visibility
// across the four joints the pipeline depends on.
func SideFor(f *Ft.Frame) BodySide {
	score := func(s BodySide) float64 {
		sum := 0.0
		for _, i := range []int{s.Shoulder, s.Hip, s.Knee, s.Ankle} {
			sum += f.Points[i].Visibility
		}
		return sum
	}
	if score(rightSide) > score(leftSide) {
		return rightSide
	}
	return leftSide
}

// Visible reports whether every given landmark index meets the
// visibility floor.
func Visible(f *Ft.Frame, floor float64, idx ...int) bool {
	for _, i := range idx {
		if f.Points[i].Visibility < floor {
			return false
		}
	}
	return true
}

// ExtractAngles derives the biomechanical angles for one frame.
// It is pure and side-effect-free, so it may be offloaded to a
// worker (see AngleWorker) without changing semantics.
// Returns nil when the required landmarks are missing or below
// the alignment visibility floor.
func ExtractAngles(f *Ft.Frame) *Ft.ExerciseAngles {
	if f == nil {
		return nil
	}

	side := SideFor(f)
	if !Visible(f, VisibilityAlignment, side.Shoulder, side.Hip, side.Knee, side.Ankle) {
		return nil
	}

	shoulder := f.Points[side.Shoulder]
	hip := f.Points[side.Hip]
	knee := f.Points[side.Knee]
	ankle := f.Points[side.Ankle]

	angles := Ft.ExerciseAngles{
		Knee: CalcJointAngle(hip, knee, ankle),
		Hip:  CalcJointAngle(shoulder, hip, knee),
	}

	// The ankle angle needs the foot, which the detector often
	// loses. Missing foot landmarks degrade to 0 rather than
	// failing the whole extraction.
	if Visible(f, VisibilityAlignment, side.FootIndex) {
		angles.Ankle = CalcJointAngle(knee, ankle, f.Points[side.FootIndex])
	}

	// Offset is the shoulder line's deviation from horizontal,
	// a cheap proxy for the subject being square to the camera.
	if Visible(f, VisibilityAlignment, Ft.LeftShoulder, Ft.RightShoulder) {
		ls := f.Points[Ft.LeftShoulder]
		rs := f.Points[Ft.RightShoulder]
		dx := math.Abs(ls.X - rs.X)
		dy := math.Abs(ls.Y - rs.Y)
		angles.Offset = math.Atan2(dy, dx) * 180 / math.Pi
	}

	return &angles
}

// EstimateView classifies the camera angle from shoulder and hip
// separation. A subject seen from the side presents almost no
// horizontal distance between paired joints.
func EstimateView(f *Ft.Frame) Ft.ViewType {
	if f == nil {
		return Ft.ViewUnknown
	}
	if !Visible(f, VisibilityAlignment, Ft.LeftShoulder, Ft.RightShoulder, Ft.LeftHip, Ft.RightHip) {
		return Ft.ViewUnknown
	}

	shoulderSep := math.Abs(f.Points[Ft.LeftShoulder].X - f.Points[Ft.RightShoulder].X)
	hipSep := math.Abs(f.Points[Ft.LeftHip].X - f.Points[Ft.RightHip].X)

	if shoulderSep > 0.18 || hipSep > 0.15 {
		return Ft.ViewFrontal
	}
	return Ft.ViewSide
}

// LandmarkConfidence is the mean visibility over the joints the
// pipeline reads, fed to the performance monitor per frame.
func LandmarkConfidence(f *Ft.Frame) float64 {
	joints := []int{
		Ft.LeftShoulder, Ft.RightShoulder,
		Ft.LeftHip, Ft.RightHip,
		Ft.LeftKnee, Ft.RightKnee,
		Ft.LeftAnkle, Ft.RightAnkle,
	}
	sum := 0.0
	for _, i := range joints {
		sum += f.Points[i].Visibility
	}
	return sum / float64(len(joints))
}
