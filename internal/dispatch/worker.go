package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/udisondev/starnav/internal/navigation"
)

var (
	ErrWorkerBusy    = errors.New("worker queue is full")
	ErrWorkerStopped = errors.New("worker is not running")
)

// Worker executes requests out of band. Submit must not block for long;
// answers arrive on Responses in any order.
type Worker interface {
	Submit(ctx context.Context, req Request) error
	Responses() <-chan Response
}

// LocalWorker is a Worker backed by a goroutine that owns its own Engine,
// rebuilt from a snapshot so it shares no state with the caller.
type LocalWorker struct {
	snapshot  navigation.Snapshot
	requests  chan Request
	responses chan Response

	stopOnce sync.Once
	stopped  chan struct{}
}

// NewLocalWorker creates a worker that will rebuild its engine from snap when
// Run starts. queueSize bounds the number of waiting requests.
func NewLocalWorker(snap navigation.Snapshot, queueSize int) *LocalWorker {
	if queueSize < 1 {
		queueSize = 1
	}
	return &LocalWorker{
		snapshot:  snap,
		requests:  make(chan Request, queueSize),
		responses: make(chan Response, queueSize*2),
		stopped:   make(chan struct{}),
	}
}

// Submit enqueues req without waiting for queue space.
func (w *LocalWorker) Submit(ctx context.Context, req Request) error {
	select {
	case <-w.stopped:
		return ErrWorkerStopped
	default:
	}
	select {
	case w.requests <- req:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrWorkerBusy
	}
}

// Responses is the worker's single outgoing stream.
func (w *LocalWorker) Responses() <-chan Response {
	return w.responses
}

// Run rebuilds the engine and serves requests one at a time until ctx is
// done. If the rebuild fails the worker keeps running and answers every
// request with a Failure, so callers fall back instead of waiting.
func (w *LocalWorker) Run(ctx context.Context) error {
	defer w.stopOnce.Do(func() { close(w.stopped) })

	engine, err := navigation.NewEngineFromSnapshot(w.snapshot)
	if err != nil {
		slog.Error("worker engine rebuild failed", "error", err)
	} else {
		slog.Info("route worker ready", "stars", engine.Set().Len())
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case req := <-w.requests:
			var resp Response
			if engine == nil {
				resp = Response{ID: req.ID, Failure: fmt.Sprintf("engine unavailable: %v", err)}
			} else {
				resp = w.handle(ctx, engine, req)
			}
			if !w.send(ctx, resp) {
				return nil
			}
		}
	}
}

func (w *LocalWorker) handle(ctx context.Context, engine *navigation.Engine, req Request) (resp Response) {
	resp.ID = req.ID
	defer func() {
		if r := recover(); r != nil {
			slog.Error("route worker panic", "id", req.ID, "panic", r)
			resp = Response{ID: req.ID, Failure: fmt.Sprintf("panic: %v", r)}
		}
	}()

	lim := req.limits()
	if req.WantProgress {
		lim.Progress = func(p navigation.Progress) {
			// Progress is best effort; drop it rather than stall the search.
			select {
			case w.responses <- Response{ID: req.ID, Progress: &p}:
			default:
			}
		}
	}

	res, err := engine.FindPath(ctx, req.From, req.To, req.MaxJump, lim)
	if err != nil {
		var nerr *navigation.Error
		if errors.As(err, &nerr) && nerr.Reason != navigation.ReasonCanceled {
			resp.Err = nerr
		} else {
			resp.Failure = err.Error()
		}
		return resp
	}
	resp.Result = res
	return resp
}

func (w *LocalWorker) send(ctx context.Context, resp Response) bool {
	select {
	case w.responses <- resp:
		return true
	case <-ctx.Done():
		return false
	}
}
