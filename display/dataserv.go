package formsense

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// SetupMux handles all data serving:
// - Prometheus metric endpoint
// - Websocket feedback stream for the web UI
// - Websocket landmark ingest from the pose detector
// - Version for programmatic use
// - Session and performance data for UI feedback
func (v *View) SetupMux() *mux.Router {
	r := mux.NewRouter()

	r.Handle("/metrics", v.Stats.Handler())
	r.HandleFunc("/ws", v.WebsocketHandler)
	r.HandleFunc("/ws/ingest", v.IngestHandler)

	// API routes go through the subrouter so the stats middleware
	// counts every request.
	api := r.PathPrefix("/api").Subrouter()
	api.Use(v.StatsMiddleware)
	api.Handle("/version", otelhttp.NewHandler(http.HandlerFunc(v.VersionHandler), "version"))
	api.Handle("/session", otelhttp.NewHandler(http.HandlerFunc(v.SessionHandler), "session"))
	api.Handle("/performance", otelhttp.NewHandler(http.HandlerFunc(v.PerformanceHandler), "performance"))

	// Static files for the web frontend
	r.PathPrefix("/").Handler(http.FileServer(http.Dir("./web/")))

	return r
}

var Version = "dev"

func (v *View) VersionHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"version": Version})
}

// SessionHandler serves the live session snapshot.
func (v *View) SessionHandler(w http.ResponseWriter, r *http.Request) {
	if v.Session == nil {
		http.Error(w, "no active session", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v.Session.Snapshot())
}

// PerformanceHandler serves the monitor's current metric set plus
// its acceptability verdict and remediation advice.
func (v *View) PerformanceHandler(w http.ResponseWriter, r *http.Request) {
	if v.Session == nil {
		http.Error(w, "no active session", http.StatusServiceUnavailable)
		return
	}

	type perfData struct {
		Metrics         any      `json:"metrics"`
		Acceptability   any      `json:"acceptability"`
		Recommendations []string `json:"recommendations"`
	}

	pm := v.Session.Monitor
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(perfData{
		Metrics:         pm.Metrics(),
		Acceptability:   pm.CheckAcceptability(),
		Recommendations: pm.Recommendations(),
	})
}

// RespWriter is a wrapper with StatsMiddleware, used for Prometheus
type RespWriter struct {
	http.ResponseWriter
	Status int
}

// WriteHeader is a helper for StatsMiddleware, used for Prometheus
func (w *RespWriter) WriteHeader(status int) {
	w.Status = status
	w.ResponseWriter.WriteHeader(status)
}

// Write is a helper for StatsMiddleware, used for Prometheus
func (w *RespWriter) Write(b []byte) (int, error) {
	return w.ResponseWriter.Write(b)
}

func (v *View) StatsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wrapped := &RespWriter{
			ResponseWriter: w,
			Status:         200,
		}
		next.ServeHTTP(wrapped, r)

		v.Stats.RecWWW(strconv.Itoa(wrapped.Status), r.Method)
	})
}
