package formsense

import (
	"math"
	"runtime"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"

	Ft "github.com/maroda/formsense/types"
)

// Default performance targets for real-time analysis.
const (
	DefaultTargetFPS    = 30.0
	DefaultMaxLatencyMS = 50.0
	DefaultMaxMemoryMB  = 500.0
	SampleWindow        = 30
)

// Acceptability is the per-target verdict set. Each flag is judged
// independently so one failing target never masks another.
type Acceptability struct {
	Acceptable   bool `json:"acceptable"`
	LowFrameRate bool `json:"lowFrameRate"`
	HighLatency  bool `json:"highLatency"`
	HighMemory   bool `json:"highMemory"`
	HighDropRate bool `json:"highDropRate"`
}

// PerformanceMonitor tracks pipeline health over bounded sliding
// windows. It measures, it never throttles or drops work itself.
type PerformanceMonitor struct {
	MU    sync.Mutex
	Clock func() time.Time

	TargetFPS    float64
	MaxLatencyMS float64
	MaxMemoryMB  float64

	frameTimes  []time.Time
	latencies   []float64
	confidences []float64

	totalFrames   int
	droppedFrames int
	lastFrame     time.Time
	frameStart    time.Time
}

func NewPerformanceMonitor() *PerformanceMonitor {
	return &PerformanceMonitor{
		Clock:        time.Now,
		TargetFPS:    DefaultTargetFPS,
		MaxLatencyMS: DefaultMaxLatencyMS,
		MaxMemoryMB:  DefaultMaxMemoryMB,
	}
}

// StartFrame marks the beginning of one pipeline cycle. A gap of
// more than 1.5x the expected frame interval since the previous
// frame counts the missing time as dropped frames.
func (pm *PerformanceMonitor) StartFrame() {
	pm.MU.Lock()
	defer pm.MU.Unlock()

	now := pm.Clock()
	pm.totalFrames++

	if !pm.lastFrame.IsZero() {
		expected := time.Duration(float64(time.Second) / pm.TargetFPS)
		gap := now.Sub(pm.lastFrame)
		if gap > expected*3/2 {
			missed := int(gap/expected) - 1
			if missed < 1 {
				missed = 1
			}
			pm.droppedFrames += missed
		}
	}
	pm.lastFrame = now
	pm.frameStart = now

	pm.frameTimes = append(pm.frameTimes, now)
	if len(pm.frameTimes) > SampleWindow {
		pm.frameTimes = pm.frameTimes[len(pm.frameTimes)-SampleWindow:]
	}
}

// EndFrame closes the cycle opened by StartFrame.
func (pm *PerformanceMonitor) EndFrame() {
	pm.EndFrameWithConfidence(-1)
}

// EndFrameWithConfidence closes the cycle and records the frame's
// landmark confidence. A negative confidence means "not measured"
// and is skipped.
func (pm *PerformanceMonitor) EndFrameWithConfidence(confidence float64) {
	pm.MU.Lock()
	defer pm.MU.Unlock()

	if !pm.frameStart.IsZero() {
		ms := float64(pm.Clock().Sub(pm.frameStart)) / float64(time.Millisecond)
		pm.latencies = append(pm.latencies, ms)
		if len(pm.latencies) > SampleWindow {
			pm.latencies = pm.latencies[len(pm.latencies)-SampleWindow:]
		}
	}

	if confidence >= 0 {
		pm.confidences = append(pm.confidences, confidence)
		if len(pm.confidences) > SampleWindow {
			pm.confidences = pm.confidences[len(pm.confidences)-SampleWindow:]
		}
	}
}

// Metrics recomputes the full metric set from the current windows.
// Analysis accuracy is an estimate blending landmark confidence
// (70%) with frame-rate health (30%), capped at 100.
func (pm *PerformanceMonitor) Metrics() Ft.PerformanceMetrics {
	pm.MU.Lock()
	defer pm.MU.Unlock()

	m := Ft.PerformanceMetrics{
		TotalFrames:   pm.totalFrames,
		DroppedFrames: pm.droppedFrames,
	}

	if n := len(pm.frameTimes); n > 1 {
		span := pm.frameTimes[n-1].Sub(pm.frameTimes[0])
		if span > 0 {
			m.FrameRate = float64(n-1) / span.Seconds()
		}
	}

	if len(pm.latencies) > 0 {
		m.ProcessingLatency = stat.Mean(pm.latencies, nil)
	}
	if len(pm.confidences) > 0 {
		m.LandmarkConfidence = stat.Mean(pm.confidences, nil)
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	m.MemoryUsage = float64(ms.HeapAlloc) / (1024 * 1024)

	frHealth := m.FrameRate / pm.TargetFPS
	if frHealth > 1 {
		frHealth = 1
	}
	m.AnalysisAccuracy = math.Min(100, m.LandmarkConfidence*70+frHealth*30)

	return m
}

// CheckAcceptability judges the current metrics against every
// target independently.
func (pm *PerformanceMonitor) CheckAcceptability() Acceptability {
	m := pm.Metrics()

	pm.MU.Lock()
	target := pm.TargetFPS
	maxLat := pm.MaxLatencyMS
	maxMem := pm.MaxMemoryMB
	pm.MU.Unlock()

	a := Acceptability{
		LowFrameRate: m.FrameRate > 0 && m.FrameRate < target/2,
		HighLatency:  m.ProcessingLatency > maxLat,
		HighMemory:   m.MemoryUsage > maxMem,
	}
	if m.TotalFrames > 0 {
		dropRate := float64(m.DroppedFrames) / float64(m.TotalFrames+m.DroppedFrames)
		a.HighDropRate = dropRate > 0.10
	}
	a.Acceptable = !a.LowFrameRate && !a.HighLatency && !a.HighMemory && !a.HighDropRate
	return a
}

// Recommendations produces remediation advice for every failing
// target, plus a lighting hint when landmark confidence runs low.
func (pm *PerformanceMonitor) Recommendations() []string {
	a := pm.CheckAcceptability()
	m := pm.Metrics()

	var recs []string
	if a.LowFrameRate {
		recs = append(recs, "Frame rate is low: reduce camera resolution or close other applications")
	}
	if a.HighLatency {
		recs = append(recs, "Processing latency is high: disable angle smoothing or lower the analysis rate")
	}
	if a.HighMemory {
		recs = append(recs, "Memory usage is high: restart the session to release buffers")
	}
	if a.HighDropRate {
		recs = append(recs, "Many frames are being dropped: check camera connection and system load")
	}
	if len(pm.confSnapshot()) > 0 && m.LandmarkConfidence < 0.5 {
		recs = append(recs, "Landmark confidence is low: improve lighting and keep your full body in frame")
	}
	return recs
}

func (pm *PerformanceMonitor) confSnapshot() []float64 {
	pm.MU.Lock()
	defer pm.MU.Unlock()
	out := make([]float64, len(pm.confidences))
	copy(out, pm.confidences)
	return out
}

// Reset zeros every window and counter, dropped frames included.
func (pm *PerformanceMonitor) Reset() {
	pm.MU.Lock()
	defer pm.MU.Unlock()
	pm.frameTimes = nil
	pm.latencies = nil
	pm.confidences = nil
	pm.totalFrames = 0
	pm.droppedFrames = 0
	pm.lastFrame = time.Time{}
	pm.frameStart = time.Time{}
}
