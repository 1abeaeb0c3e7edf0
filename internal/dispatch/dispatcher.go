package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/udisondev/starnav/internal/navigation"
)

const (
	DefaultWorkerTimeout = 30 * time.Second
	DefaultCallerTimeout = 35 * time.Second
)

// Config holds dispatcher timeouts. The caller timeout bounds the whole
// request including any inline fallback.
type Config struct {
	WorkerTimeout time.Duration
	CallerTimeout time.Duration
}

// DefaultConfig returns the standard 30 s worker and 35 s caller timeouts.
func DefaultConfig() Config {
	return Config{WorkerTimeout: DefaultWorkerTimeout, CallerTimeout: DefaultCallerTimeout}
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c clock.Clock) Option {
	return func(d *Dispatcher) { d.clock = c }
}

// WithWorker sets the background worker. Without one every request runs inline.
func WithWorker(w Worker) Option {
	return func(d *Dispatcher) { d.worker = w }
}

type pending struct {
	done     chan Response
	progress func(navigation.Progress)
}

// Dispatcher routes route searches to a Worker and resolves each request
// exactly once: with the worker's answer, with an inline fallback, or with a
// timeout failure.
type Dispatcher struct {
	engine *navigation.Engine
	worker Worker
	clock  clock.Clock
	cfg    Config

	mu      sync.Mutex
	pending map[uuid.UUID]*pending

	dispatched     atomic.Int64
	workerResolved atomic.Int64
	fallbacks      atomic.Int64
	workerTimeouts atomic.Int64
	callerTimeouts atomic.Int64
	lateDropped    atomic.Int64
}

// New creates a dispatcher that falls back to engine.
func New(engine *navigation.Engine, cfg Config, opts ...Option) *Dispatcher {
	if cfg.WorkerTimeout <= 0 {
		cfg.WorkerTimeout = DefaultWorkerTimeout
	}
	if cfg.CallerTimeout <= 0 {
		cfg.CallerTimeout = DefaultCallerTimeout
	}
	d := &Dispatcher{
		engine:  engine,
		clock:   clock.New(),
		cfg:     cfg,
		pending: make(map[uuid.UUID]*pending),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run routes worker responses to waiting requests until ctx is done. Responses
// for unknown ids (late, or already resolved) are dropped.
func (d *Dispatcher) Run(ctx context.Context) error {
	if d.worker == nil {
		<-ctx.Done()
		return nil
	}
	responses := d.worker.Responses()
	for {
		select {
		case <-ctx.Done():
			return nil
		case resp, ok := <-responses:
			if !ok {
				return errors.New("worker response stream closed")
			}
			d.route(resp)
		}
	}
}

func (d *Dispatcher) route(resp Response) {
	d.mu.Lock()
	p, ok := d.pending[resp.ID]
	if ok && resp.Final() {
		delete(d.pending, resp.ID)
	}
	d.mu.Unlock()

	if !ok {
		if resp.Final() {
			d.lateDropped.Add(1)
			slog.Debug("dropping response for unknown request", "id", resp.ID)
		}
		return
	}
	if !resp.Final() {
		if p.progress != nil {
			p.progress(*resp.Progress)
		}
		return
	}
	p.done <- resp
}

func (d *Dispatcher) register(id uuid.UUID, p *pending) {
	d.mu.Lock()
	d.pending[id] = p
	d.mu.Unlock()
}

func (d *Dispatcher) forget(id uuid.UUID) {
	d.mu.Lock()
	delete(d.pending, id)
	d.mu.Unlock()
}

// FindPath plans a route on the worker, falling back to the inline engine at
// most once if the worker fails or does not answer within the worker timeout.
// Planner errors returned by the worker are final and do not trigger a fallback.
func (d *Dispatcher) FindPath(ctx context.Context, from, to string, maxJump float64, lim navigation.Limits) (*navigation.Result, error) {
	d.dispatched.Add(1)
	if d.worker == nil {
		return d.engine.FindPath(ctx, from, to, maxJump, lim)
	}

	callerTimer := d.clock.Timer(d.cfg.CallerTimeout)
	defer callerTimer.Stop()
	workerTimer := d.clock.Timer(d.cfg.WorkerTimeout)
	defer workerTimer.Stop()

	req := Request{
		ID:            uuid.New(),
		From:          from,
		To:            to,
		MaxJump:       maxJump,
		MaxIterations: lim.MaxIterations,
		TimeLimit:     lim.TimeLimit,
		WantProgress:  lim.Progress != nil,
	}
	if req.TimeLimit <= 0 {
		req.TimeLimit = navigation.WorkerTimeLimit
	}
	p := &pending{done: make(chan Response, 1), progress: lim.Progress}
	d.register(req.ID, p)

	if err := d.worker.Submit(ctx, req); err != nil {
		d.forget(req.ID)
		slog.Warn("worker submit failed, calculating inline", "id", req.ID, "error", err)
		return d.fallback(ctx, callerTimer, from, to, maxJump, lim)
	}

	select {
	case resp := <-p.done:
		return d.resolve(ctx, callerTimer, req, resp, lim)

	case <-workerTimer.C:
		d.forget(req.ID)
		// An answer that landed together with the timer still counts.
		select {
		case resp := <-p.done:
			return d.resolve(ctx, callerTimer, req, resp, lim)
		default:
		}
		d.workerTimeouts.Add(1)
		slog.Warn("worker timed out, calculating inline", "id", req.ID, "timeout", d.cfg.WorkerTimeout)
		return d.fallback(ctx, callerTimer, from, to, maxJump, lim)

	case <-callerTimer.C:
		d.forget(req.ID)
		return nil, d.callerTimeout()

	case <-ctx.Done():
		d.forget(req.ID)
		return nil, contextError(ctx)
	}
}

// resolve turns a worker response into the caller's answer, falling back to
// an inline run when the worker reported a failure.
func (d *Dispatcher) resolve(ctx context.Context, callerTimer *clock.Timer, req Request, resp Response, lim navigation.Limits) (*navigation.Result, error) {
	if resp.Failure != "" {
		slog.Warn("worker failed, calculating inline", "id", req.ID, "failure", resp.Failure)
		return d.fallback(ctx, callerTimer, req.From, req.To, req.MaxJump, lim)
	}
	d.workerResolved.Add(1)
	if resp.Err != nil {
		return nil, resp.Err
	}
	return resp.Result, nil
}

// fallback runs the search inline, still bounded by the caller timer.
func (d *Dispatcher) fallback(ctx context.Context, callerTimer *clock.Timer, from, to string, maxJump float64, lim navigation.Limits) (*navigation.Result, error) {
	d.fallbacks.Add(1)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type outcome struct {
		res *navigation.Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := d.engine.FindPath(ctx, from, to, maxJump, lim)
		done <- outcome{res, err}
	}()

	select {
	case o := <-done:
		return o.res, o.err
	case <-callerTimer.C:
		return nil, d.callerTimeout()
	}
}

func (d *Dispatcher) callerTimeout() error {
	d.callerTimeouts.Add(1)
	return &navigation.Error{
		Op:     "find path",
		Reason: navigation.ReasonTimeLimit,
		Detail: "no answer within " + d.cfg.CallerTimeout.String(),
	}
}

func contextError(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &navigation.Error{Op: "find path", Reason: navigation.ReasonTimeLimit, Detail: "context deadline exceeded"}
	}
	return &navigation.Error{Op: "find path", Reason: navigation.ReasonCanceled, Detail: ctx.Err().Error()}
}

// FindMinimumRange runs the range search through the dispatcher.
func (d *Dispatcher) FindMinimumRange(ctx context.Context, from, to string, upper float64, opts navigation.RangeOptions) (*navigation.RangeResult, error) {
	return navigation.MinimumRange(ctx, d, from, to, upper, opts)
}

// Pending reports how many requests are waiting for the worker.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Stats counts how requests were resolved.
type Stats struct {
	Dispatched     int64 `json:"dispatched"`
	WorkerResolved int64 `json:"worker_resolved"`
	Fallbacks      int64 `json:"fallbacks"`
	WorkerTimeouts int64 `json:"worker_timeouts"`
	CallerTimeouts int64 `json:"caller_timeouts"`
	LateDropped    int64 `json:"late_dropped"`
}

// Stats returns the current counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Dispatched:     d.dispatched.Load(),
		WorkerResolved: d.workerResolved.Load(),
		Fallbacks:      d.fallbacks.Load(),
		WorkerTimeouts: d.workerTimeouts.Load(),
		CallerTimeouts: d.callerTimeouts.Load(),
		LateDropped:    d.lateDropped.Load(),
	}
}
