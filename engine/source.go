package formsense

import (
	"math"
	"sync"
	"time"

	Ft "github.com/maroda/formsense/types"
)

// FrameSource produces landmark frames for the pipeline. The real
// deployment decodes them off the ingest websocket; the demo source
// synthesizes them.
type FrameSource interface {
	Next() (*Ft.Frame, error)
	Type() string
}

// DemoSource synthesizes a side-view squat: the knee angle sweeps
// a cosine between full extension and below-parallel depth, and the
// leg geometry is solved back from the angle so the extractor sees
// a consistent body.
type DemoSource struct {
	MU     sync.Mutex
	Clock  func() time.Time
	Period time.Duration // one full rep
	start  time.Time
}

func NewDemoSource(period time.Duration) *DemoSource {
	if period <= 0 {
		period = 4 * time.Second
	}
	return &DemoSource{
		Clock:  time.Now,
		Period: period,
	}
}

func (ds *DemoSource) Type() string { return "demo" }

// Next returns the frame for the current instant. It never fails.
func (ds *DemoSource) Next() (*Ft.Frame, error) {
	ds.MU.Lock()
	defer ds.MU.Unlock()

	now := ds.Clock()
	if ds.start.IsZero() {
		ds.start = now
	}
	t := now.Sub(ds.start).Seconds() / ds.Period.Seconds()

	// Knee angle sweeps [65, 170]: above the standing threshold at
	// the top, below the deep threshold at the bottom.
	knee := 117.5 + 52.5*math.Cos(2*math.Pi*t)
	return ds.FrameAt(knee, now), nil
}

// FrameAt builds a full landmark frame for a given knee angle.
// The ankle is pinned, the hip placed so the hip-knee-ankle angle
// equals the requested knee angle, and the shoulder rides above
// the hip for a mild constant forward lean.
func (ds *DemoSource) FrameAt(knee float64, at time.Time) *Ft.Frame {
	const (
		ankleX, ankleY = 0.55, 0.90
		kneeX, kneeY   = 0.55, 0.75
		legLen         = 0.18
	)

	// Interior angle at the knee between the shank (straight down
	// to the ankle) and the thigh. phi is the thigh's deviation
	// from vertical-up.
	phi := (180 - knee) * math.Pi / 180
	hipX := kneeX + legLen*math.Sin(phi)
	hipY := kneeY - legLen*math.Cos(phi)

	shoulderX := hipX + 0.02
	shoulderY := hipY - 0.25

	f := &Ft.Frame{Timestamp: at}

	set := func(idx int, x, y float64) {
		f.Points[idx] = Ft.Landmark{X: x, Y: y, Visibility: 0.95}
	}

	set(Ft.LeftShoulder, shoulderX, shoulderY)
	set(Ft.LeftHip, hipX, hipY)
	set(Ft.LeftKnee, kneeX, kneeY)
	set(Ft.LeftAnkle, ankleX, ankleY)
	set(Ft.LeftHeel, ankleX-0.02, ankleY+0.02)
	set(Ft.LeftFootIndex, ankleX+0.08, ankleY+0.02)

	// Right side sits slightly behind in a side view.
	set(Ft.RightShoulder, shoulderX+0.02, shoulderY)
	set(Ft.RightHip, hipX+0.02, hipY)
	set(Ft.RightKnee, kneeX+0.02, kneeY)
	set(Ft.RightAnkle, ankleX+0.02, ankleY)
	set(Ft.RightHeel, ankleX, ankleY+0.02)
	set(Ft.RightFootIndex, ankleX+0.10, ankleY+0.02)

	set(Ft.Nose, shoulderX+0.03, shoulderY-0.08)

	return f
}

// Reset restarts the demo cycle.
func (ds *DemoSource) Reset() {
	ds.MU.Lock()
	defer ds.MU.Unlock()
	ds.start = time.Time{}
}
