package formsense

import (
	"log/slog"
	"sync"
	"time"

	Fe "github.com/maroda/formsense/engine"
)

// FrameInterval paces the feed loop at the pipeline's target rate.
const FrameInterval = 33 * time.Millisecond

// FeedSupervisor drives a FrameSource through the session pipeline.
// It is strongly coupled to the View, one knows about the other.
type FeedSupervisor struct {
	View     *View
	Ticker   *time.Ticker
	StopChan chan struct{}
	WG       sync.WaitGroup
}

// NewFeedSupervisor wraps the View with a managed feed goroutine.
func (v *View) NewFeedSupervisor() *FeedSupervisor {
	fs := &FeedSupervisor{
		View: v,
	}
	v.Supervisor = fs
	return fs
}

// SwitchSource swaps the frame source under a stopped feed.
func (v *View) SwitchSource(src Fe.FrameSource) {
	v.Supervisor.Stop()

	v.MU.Lock()
	v.Source = src
	v.MU.Unlock()

	v.Supervisor.Start()
}

// Start the FeedSupervisor
func (fs *FeedSupervisor) Start() {
	fs.StopChan = make(chan struct{})
	fs.Ticker = time.NewTicker(FrameInterval)

	fs.WG.Add(1)
	go func() {
		defer fs.WG.Done()
		defer fs.Ticker.Stop()

		for {
			select {
			case <-fs.Ticker.C:
				fs.View.FeedOne()
			case <-fs.StopChan:
				return
			}
		}
	}()
}

// Stop the FeedSupervisor
func (fs *FeedSupervisor) Stop() {
	if fs.StopChan != nil {
		close(fs.StopChan)
		fs.WG.Wait()
	}
}

// Restart the FeedSupervisor
func (fs *FeedSupervisor) Restart() {
	fs.Stop()
	fs.Start()
}

// FeedOne pulls one frame from the source and runs it through the
// pipeline. Source failure is logged, the loop keeps ticking.
func (v *View) FeedOne() {
	v.MU.Lock()
	src := v.Source
	v.MU.Unlock()

	if src == nil || v.Session == nil {
		return
	}

	frame, err := src.Next()
	if err != nil {
		slog.Error("Frame source failed",
			slog.Any("Error", err),
			slog.String("source", src.Type()))
		return
	}

	v.Session.ProcessFrame(frame)
}
