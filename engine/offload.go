package formsense

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	Ft "github.com/maroda/formsense/types"
)

// OffloadTimeout bounds how long a caller waits on the worker
// before falling back to synchronous extraction.
const OffloadTimeout = 5 * time.Second

var (
	ErrOffloadTimeout = errors.New("angle extraction timed out")
	ErrWorkerClosed   = errors.New("angle worker is closed")
)

type angleJob struct {
	id    uuid.UUID
	frame *Ft.Frame
}

// AngleWorker offloads angle extraction to a background goroutine
// so the frame loop never blocks on geometry. Each request carries
// a correlation ID, replies are matched back through a pending map
// and delivered on buffered channels so a timed-out caller never
// wedges the worker.
type AngleWorker struct {
	MU      sync.Mutex
	extract func(*Ft.Frame) *Ft.ExerciseAngles
	jobs    chan angleJob
	pending map[uuid.UUID]chan *Ft.ExerciseAngles
	quit    chan struct{}
	closed  bool
}

// NewAngleWorker starts a worker backed by ExtractAngles.
func NewAngleWorker(depth int) *AngleWorker {
	return NewAngleWorkerFunc(depth, ExtractAngles)
}

// NewAngleWorkerFunc starts a worker with an injected extraction
// function.
func NewAngleWorkerFunc(depth int, extract func(*Ft.Frame) *Ft.ExerciseAngles) *AngleWorker {
	if depth < 1 {
		depth = 1
	}
	w := &AngleWorker{
		extract: extract,
		jobs:    make(chan angleJob, depth),
		pending: make(map[uuid.UUID]chan *Ft.ExerciseAngles),
		quit:    make(chan struct{}),
	}
	go w.run()
	return w
}

func (w *AngleWorker) run() {
	for {
		select {
		case job := <-w.jobs:
			angles := w.extract(job.frame)

			w.MU.Lock()
			ch, ok := w.pending[job.id]
			delete(w.pending, job.id)
			w.MU.Unlock()

			if ok {
				ch <- angles // buffered, never blocks
			}
		case <-w.quit:
			return
		}
	}
}

// Submit sends one frame for extraction and blocks until the reply,
// the timeout, or worker shutdown. A zero timeout uses
// OffloadTimeout. On any error the caller should fall back to
// calling ExtractAngles inline.
func (w *AngleWorker) Submit(frame *Ft.Frame, timeout time.Duration) (*Ft.ExerciseAngles, error) {
	if timeout <= 0 {
		timeout = OffloadTimeout
	}

	id := uuid.New()
	reply := make(chan *Ft.ExerciseAngles, 1)

	w.MU.Lock()
	if w.closed {
		w.MU.Unlock()
		return nil, ErrWorkerClosed
	}
	w.pending[id] = reply
	w.MU.Unlock()

	select {
	case w.jobs <- angleJob{id: id, frame: frame}:
	case <-w.quit:
		w.drop(id)
		return nil, ErrWorkerClosed
	default:
		// queue full counts as a timeout-class failure
		w.drop(id)
		return nil, ErrOffloadTimeout
	}

	select {
	case res, ok := <-reply:
		if !ok {
			return nil, ErrWorkerClosed
		}
		return res, nil
	case <-time.After(timeout):
		w.drop(id)
		slog.Warn("Angle extraction offload timed out, caller falling back",
			slog.Duration("timeout", timeout))
		return nil, ErrOffloadTimeout
	case <-w.quit:
		w.drop(id)
		return nil, ErrWorkerClosed
	}
}

func (w *AngleWorker) drop(id uuid.UUID) {
	w.MU.Lock()
	delete(w.pending, id)
	w.MU.Unlock()
}

// Close stops the worker and fails every waiting caller.
func (w *AngleWorker) Close() {
	w.MU.Lock()
	if w.closed {
		w.MU.Unlock()
		return
	}
	w.closed = true
	for id, ch := range w.pending {
		close(ch)
		delete(w.pending, id)
	}
	w.MU.Unlock()

	close(w.quit)
}
