package plugin

/*
	JSONFrame

	This plugin allows external pose detectors to push frames
	as JSON over any byte transport.

	Expects an object with an optional unix-millisecond timestamp
	and exactly one landmark entry per pose point.
*/

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	Ft "github.com/maroda/formsense/types"
)

type JSONFramePlugin struct{}

// NewJSONFrameDecoder returns a decoder for the detector wire format
func NewJSONFrameDecoder() *JSONFramePlugin {
	return &JSONFramePlugin{}
}

type wireLandmark struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z"`
	Visibility float64 `json:"visibility"`
}

type wireFrame struct {
	TimestampMS int64          `json:"timestamp"`
	Landmarks   []wireLandmark `json:"landmarks"`
}

// DecodeFrame unmarshals one detector payload into a Frame.
// A payload with the wrong landmark count is rejected, the
// index→joint mapping is positional.
func (jf *JSONFramePlugin) DecodeFrame(payload []byte) (*Ft.Frame, error) {
	var wf wireFrame
	if err := json.Unmarshal(payload, &wf); err != nil {
		slog.Error("Error unmarshalling frame json", slog.Any("error", err))
		return nil, fmt.Errorf("error unmarshalling frame json: %w", err)
	}

	if len(wf.Landmarks) != Ft.NumLandmarks {
		return nil, fmt.Errorf("expected %d landmarks, got %d",
			Ft.NumLandmarks, len(wf.Landmarks))
	}

	frame := &Ft.Frame{}
	for i, lm := range wf.Landmarks {
		frame.Points[i] = Ft.Landmark{
			X:          lm.X,
			Y:          lm.Y,
			Z:          lm.Z,
			Visibility: lm.Visibility,
		}
	}

	if wf.TimestampMS > 0 {
		frame.Timestamp = time.UnixMilli(wf.TimestampMS)
	} else {
		frame.Timestamp = time.Now()
	}

	return frame, nil
}

func (jf *JSONFramePlugin) Type() string { return "json_frame" }
