package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/starnav/internal/catalog"
	"github.com/udisondev/starnav/internal/geom"
	"github.com/udisondev/starnav/internal/navigation"
)

type stubWorker struct {
	submitted chan Request
	responses chan Response
	submitErr error
	reply     func(Request) (Response, bool)
}

func newStubWorker() *stubWorker {
	return &stubWorker{
		submitted: make(chan Request, 16),
		responses: make(chan Response, 16),
	}
}

func (w *stubWorker) Submit(_ context.Context, req Request) error {
	if w.submitErr != nil {
		return w.submitErr
	}
	w.submitted <- req
	if w.reply != nil {
		if resp, ok := w.reply(req); ok {
			w.responses <- resp
		}
	}
	return nil
}

func (w *stubWorker) Responses() <-chan Response {
	return w.responses
}

func lineEngine(t testing.TB, n int) *navigation.Engine {
	t.Helper()
	stars := make([]catalog.Star, n)
	for i := range stars {
		stars[i] = catalog.Star{Name: fmt.Sprintf("S%04d", i), Pos: geom.Vec3{X: float64(i) * 2}}
	}
	stars = append(stars, catalog.Star{Name: "Far", Pos: geom.Vec3{X: 1000, Y: 1000}})
	set, err := catalog.NewSet(stars)
	require.NoError(t, err)
	e, err := navigation.NewEngine(set, 4)
	require.NoError(t, err)
	return e
}

func runDispatcher(t *testing.T, d *Dispatcher) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func runWorker(t *testing.T, w *LocalWorker) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestDispatcher_FailingWorkerMatchesInline(t *testing.T) {
	e := lineEngine(t, 50)
	ctx := context.Background()

	w := newStubWorker()
	w.submitErr = errors.New("worker unavailable")
	d := New(e, DefaultConfig(), WithWorker(w))
	runDispatcher(t, d)

	queries := []struct {
		from, to string
		jump     float64
	}{
		{"S0000", "S0049", 2},
		{"S0000", "S0049", 5},
		{"S0010", "Far", 3},
	}
	for _, q := range queries {
		want, wantErr := e.FindPath(ctx, q.from, q.to, q.jump, navigation.DefaultLimits())
		got, gotErr := d.FindPath(ctx, q.from, q.to, q.jump, navigation.DefaultLimits())
		require.Equal(t, wantErr, gotErr)
		assert.Equal(t, want.Indices, got.Indices)
		assert.Equal(t, want.Stranded, got.Stranded)
		assert.InDelta(t, want.Distance, got.Distance, 1e-9)
	}

	st := d.Stats()
	assert.Equal(t, int64(3), st.Dispatched)
	assert.Equal(t, int64(3), st.Fallbacks)
	assert.Zero(t, st.WorkerResolved)
}

func TestDispatcher_WorkerFailureResponseFallsBack(t *testing.T) {
	e := lineEngine(t, 20)
	w := newStubWorker()
	w.reply = func(req Request) (Response, bool) {
		return Response{ID: req.ID, Failure: "engine unavailable"}, true
	}
	d := New(e, DefaultConfig(), WithWorker(w))
	runDispatcher(t, d)

	res, err := d.FindPath(context.Background(), "S0000", "S0019", 2, navigation.DefaultLimits())
	require.NoError(t, err)
	assert.False(t, res.Stranded)
	assert.Len(t, res.Stars, 20)
	assert.Equal(t, int64(1), d.Stats().Fallbacks)
	assert.Zero(t, d.Pending())
}

func TestDispatcher_PlannerErrorIsFinal(t *testing.T) {
	e := lineEngine(t, 20)
	w := newStubWorker()
	w.reply = func(req Request) (Response, bool) {
		return Response{ID: req.ID, Err: &navigation.Error{Op: "find path", Reason: navigation.ReasonNoPath}}, true
	}
	d := New(e, DefaultConfig(), WithWorker(w))
	runDispatcher(t, d)

	_, err := d.FindPath(context.Background(), "S0000", "S0019", 2, navigation.DefaultLimits())
	require.ErrorIs(t, err, navigation.ErrNoPath)

	st := d.Stats()
	assert.Zero(t, st.Fallbacks)
	assert.Equal(t, int64(1), st.WorkerResolved)
}

func TestDispatcher_LocalWorkerMatchesInline(t *testing.T) {
	e := lineEngine(t, 100)
	ctx := context.Background()

	w := NewLocalWorker(e.Snapshot(), 4)
	runWorker(t, w)
	d := New(e, DefaultConfig(), WithWorker(w))
	runDispatcher(t, d)

	want, err := e.FindPath(ctx, "S0000", "S0099", 4, navigation.DefaultLimits())
	require.NoError(t, err)
	got, err := d.FindPath(ctx, "S0000", "S0099", 4, navigation.DefaultLimits())
	require.NoError(t, err)

	assert.Equal(t, want.Indices, got.Indices)
	assert.Equal(t, want.Stars, got.Stars)
	assert.InDelta(t, want.Distance, got.Distance, 1e-9)

	_, err = d.FindPath(ctx, "S0000", "Nowhere", 4, navigation.DefaultLimits())
	require.ErrorIs(t, err, navigation.ErrNodeNotFound)

	st := d.Stats()
	assert.Equal(t, int64(2), st.WorkerResolved)
	assert.Zero(t, st.Fallbacks)
}

func TestDispatcher_LocalWorkerBadSnapshotFallsBack(t *testing.T) {
	e := lineEngine(t, 30)
	snap := e.Snapshot()
	snap.Fingerprint = "00"

	w := NewLocalWorker(snap, 1)
	runWorker(t, w)
	d := New(e, DefaultConfig(), WithWorker(w))
	runDispatcher(t, d)

	res, err := d.FindPath(context.Background(), "S0000", "S0029", 2, navigation.DefaultLimits())
	require.NoError(t, err)
	assert.Len(t, res.Stars, 30)
	assert.Equal(t, int64(1), d.Stats().Fallbacks)
}

func TestDispatcher_ProgressForwarded(t *testing.T) {
	e := lineEngine(t, 2500)
	w := NewLocalWorker(e.Snapshot(), 4)
	runWorker(t, w)
	d := New(e, DefaultConfig(), WithWorker(w))
	runDispatcher(t, d)

	var reports atomic.Int32
	lim := navigation.DefaultLimits()
	lim.Progress = func(navigation.Progress) { reports.Add(1) }

	res, err := d.FindPath(context.Background(), "S0000", "S2499", 2, lim)
	require.NoError(t, err)
	assert.False(t, res.Stranded)
	assert.Positive(t, reports.Load())
}

func TestDispatcher_WorkerTimeoutFallsBackAndDropsLateReply(t *testing.T) {
	e := lineEngine(t, 20)
	mock := clock.NewMock()
	w := newStubWorker()
	d := New(e, Config{WorkerTimeout: 30 * time.Second, CallerTimeout: 35 * time.Second},
		WithWorker(w), WithClock(mock))
	runDispatcher(t, d)

	type outcome struct {
		res *navigation.Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := d.FindPath(context.Background(), "S0000", "S0019", 2, navigation.DefaultLimits())
		done <- outcome{res, err}
	}()

	req := <-w.submitted
	mock.Add(30 * time.Second)

	o := <-done
	require.NoError(t, o.err)
	assert.Len(t, o.res.Stars, 20)

	w.responses <- Response{ID: req.ID, Result: &navigation.Result{}}
	require.Eventually(t, func() bool {
		return d.Stats().LateDropped == 1
	}, time.Second, 5*time.Millisecond)

	st := d.Stats()
	assert.Equal(t, int64(1), st.WorkerTimeouts)
	assert.Equal(t, int64(1), st.Fallbacks)
	assert.Zero(t, d.Pending())
}

func TestDispatcher_ReplyRacingWorkerTimeoutIsKept(t *testing.T) {
	e := lineEngine(t, 20)
	mock := clock.NewMock()
	cfg := Config{WorkerTimeout: 30 * time.Second, CallerTimeout: time.Minute}
	w := newStubWorker()
	d := New(e, cfg, WithWorker(w), WithClock(mock))
	runDispatcher(t, d)

	answer := &navigation.Result{Jumps: 42}
	// The reply is routed and the worker timer fires before FindPath starts
	// waiting, so both are ready at once.
	w.reply = func(req Request) (Response, bool) {
		w.responses <- Response{ID: req.ID, Result: answer}
		for d.Pending() != 0 {
			time.Sleep(time.Millisecond)
		}
		mock.Add(cfg.WorkerTimeout)
		return Response{}, false
	}

	const rounds = 20
	for range rounds {
		res, err := d.FindPath(context.Background(), "S0000", "S0019", 2, navigation.DefaultLimits())
		require.NoError(t, err)
		require.Same(t, answer, res)
		<-w.submitted
	}

	st := d.Stats()
	assert.Equal(t, int64(rounds), st.WorkerResolved)
	assert.Zero(t, st.Fallbacks)
	assert.Zero(t, st.WorkerTimeouts)
	assert.Zero(t, st.LateDropped)
}

func TestDispatcher_CallerTimeoutResolves(t *testing.T) {
	e := lineEngine(t, 20)
	mock := clock.NewMock()
	w := newStubWorker()
	d := New(e, Config{WorkerTimeout: time.Minute, CallerTimeout: 35 * time.Second},
		WithWorker(w), WithClock(mock))
	runDispatcher(t, d)

	done := make(chan error, 1)
	go func() {
		_, err := d.FindPath(context.Background(), "S0000", "S0019", 2, navigation.DefaultLimits())
		done <- err
	}()

	<-w.submitted
	mock.Add(35 * time.Second)

	err := <-done
	require.ErrorIs(t, err, navigation.ErrTimeLimit)
	assert.Equal(t, int64(1), d.Stats().CallerTimeouts)
	assert.Zero(t, d.Pending())
}

func TestDispatcher_CallerCanceled(t *testing.T) {
	e := lineEngine(t, 20)
	w := newStubWorker()
	d := New(e, DefaultConfig(), WithWorker(w))
	runDispatcher(t, d)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := d.FindPath(ctx, "S0000", "S0019", 2, navigation.DefaultLimits())
		done <- err
	}()

	<-w.submitted
	cancel()
	require.ErrorIs(t, <-done, navigation.ErrCanceled)
	assert.Zero(t, d.Pending())
}

func TestDispatcher_NoWorkerRunsInline(t *testing.T) {
	e := lineEngine(t, 10)
	d := New(e, Config{})

	res, err := d.FindPath(context.Background(), "S0000", "S0009", 2, navigation.DefaultLimits())
	require.NoError(t, err)
	assert.Len(t, res.Stars, 10)
	assert.Equal(t, int64(1), d.Stats().Dispatched)
}

func TestDispatcher_MinimumRange(t *testing.T) {
	e := lineEngine(t, 10)
	w := NewLocalWorker(e.Snapshot(), 2)
	runWorker(t, w)
	d := New(e, DefaultConfig(), WithWorker(w))
	runDispatcher(t, d)

	rr, err := d.FindMinimumRange(context.Background(), "S0000", "S0009", 50, navigation.RangeOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2.0, rr.Range)
}

func TestLocalWorker_SubmitAfterStop(t *testing.T) {
	e := lineEngine(t, 5)
	w := NewLocalWorker(e.Snapshot(), 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, w.Run(ctx))

	err := w.Submit(context.Background(), Request{})
	require.ErrorIs(t, err, ErrWorkerStopped)
}
