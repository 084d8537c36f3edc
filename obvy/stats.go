package formsense

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StatsInternal carries the Prometheus registry and every collector
// the pipeline feeds. One instance per process, attached to the
// /metrics endpoint by the data server.
type StatsInternal struct {
	Registry *prometheus.Registry

	FramesTotal    prometheus.Counter
	FramesDropped  prometheus.Counter
	FrameLatencyMS prometheus.Histogram
	RepsTotal      *prometheus.CounterVec
	Violations     *prometheus.CounterVec
	HTTPRequests   *prometheus.CounterVec
}

// NewStatsInternal creates an attached prometheus registry
// with all pipeline collectors registered.
func NewStatsInternal() *StatsInternal {
	reg := prometheus.NewRegistry()

	s := &StatsInternal{
		Registry: reg,
		FramesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "formsense_frames_total",
			Help: "Landmark frames processed by the pipeline",
		}),
		FramesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "formsense_frames_dropped_total",
			Help: "Frames the pipeline missed against its target rate",
		}),
		FrameLatencyMS: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "formsense_frame_latency_ms",
			Help:    "Per-frame processing latency in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		}),
		RepsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "formsense_reps_total",
			Help: "Completed repetitions by quality grade",
		}, []string{"quality"}),
		Violations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "formsense_violations_total",
			Help: "Form violations by type and severity",
		}, []string{"type", "severity"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "formsense_http_requests_total",
			Help: "HTTP requests by status code and method",
		}, []string{"code", "method"}),
	}

	reg.MustRegister(
		s.FramesTotal,
		s.FramesDropped,
		s.FrameLatencyMS,
		s.RepsTotal,
		s.Violations,
		s.HTTPRequests,
	)

	return s
}

// Handler serves the registry for the /metrics endpoint.
func (s *StatsInternal) Handler() http.Handler {
	return promhttp.HandlerFor(s.Registry, promhttp.HandlerOpts{})
}

// RecWWW records one HTTP request.
func (s *StatsInternal) RecWWW(code, method string) {
	s.HTTPRequests.WithLabelValues(code, method).Inc()
}

// RecFrame records one processed frame and its latency.
func (s *StatsInternal) RecFrame(latencyMS float64) {
	s.FramesTotal.Inc()
	s.FrameLatencyMS.Observe(latencyMS)
}

// RecDropped records missed frames.
func (s *StatsInternal) RecDropped(n int) {
	s.FramesDropped.Add(float64(n))
}

// RecRep records one completed repetition.
func (s *StatsInternal) RecRep(quality string) {
	s.RepsTotal.WithLabelValues(quality).Inc()
}

// RecViolation records one detected form violation.
func (s *StatsInternal) RecViolation(vtype, severity string) {
	s.Violations.WithLabelValues(vtype, severity).Inc()
}
