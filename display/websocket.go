package formsense

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebsocketHandler streams the live session snapshot to the web UI.
func (v *View) WebsocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	// Send session data periodically
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for range ticker.C {
		if v.Session == nil {
			continue
		}
		snap := v.Session.Snapshot()
		if err := conn.WriteJSON(snap); err != nil {
			return // Connection closed
		}
	}
}

// IngestHandler accepts landmark frames from an external pose
// detector over a websocket, decodes each payload through the
// configured frame decoder, and runs it through the pipeline.
// A payload that fails to decode is logged and skipped, the
// connection stays up.
func (v *View) IngestHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	if v.Session == nil || v.Decoder == nil {
		slog.Error("Ingest rejected, no session or decoder wired")
		return
	}

	slog.Info("Landmark ingest connected", slog.String("remote", r.RemoteAddr))

	for {
		mt, payload, err := conn.ReadMessage()
		if err != nil {
			slog.Info("Landmark ingest disconnected", slog.String("remote", r.RemoteAddr))
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}

		frame, err := v.Decoder.DecodeFrame(payload)
		if err != nil {
			slog.Error("Could not decode landmark frame",
				slog.Any("Error", err),
				slog.String("decoder", v.Decoder.Type()))
			continue
		}

		cycle := v.Session.ProcessFrame(frame)

		// Immediate per-frame reply so the detector side can drive
		// audio without polling.
		if err := conn.WriteJSON(cycle.Feedback); err != nil {
			return
		}
	}
}
