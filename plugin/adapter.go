package plugin

/*

	The Adapter sits aside /formsense/
	Contains core interfaces for Plugin

*/

import (
	"time"

	Ft "github.com/maroda/formsense/types"
)

// AngleSmoother filters the raw per-frame angle samples before the
// state machine classifies them. The window holds the most recent
// samples, oldest first.
// WindowReq is the number of past samples the filter needs,
// for instance a weighted moving average needs 3,
// a passthrough needs 1.
type AngleSmoother interface {
	Smooth(window []float64) float64
	WindowReq() int // Required past samples needed for the filter
	Type() string   // Unique ID for the smoother
}

// FrameDecoder turns an external detector's wire payload into a
// Frame the pipeline can consume.
type FrameDecoder interface {
	DecodeFrame(payload []byte) (*Ft.Frame, error)
	Type() string
}

// OutputAdapter can be used to define a place for session telemetry
// to go, rep-by-rep or in batches if supported by the output type.
type OutputAdapter interface {
	WriteRep(rep *Ft.RepEvent) error                          // Write singleton rep data
	WriteBatch(reps []*Ft.RepEvent) error                     // Write batches of reps
	QueryRange(start, end time.Time) ([]*Ft.RepEvent, error) // Time range query tool
	Flush() error                                             // Flush any buffered data
	Close() error                                             // Close the adapter and release resources
	Type() string                                             // ID for output adapter
}
