package navigation

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/udisondev/starnav/internal/catalog"
	"github.com/udisondev/starnav/internal/octree"
)

// Engine answers route queries over an immutable star set and its spatial
// index. It is safe for concurrent use; each search keeps its own state.
type Engine struct {
	set   *catalog.Set
	index *octree.Octree

	calculations atomic.Int64
	totalNanos   atomic.Int64
	lastNanos    atomic.Int64
}

// NewEngine builds the spatial index for set. capacity <= 0 selects
// octree.DefaultCapacity.
func NewEngine(set *catalog.Set, capacity int) (*Engine, error) {
	if capacity <= 0 {
		capacity = octree.DefaultCapacity
	}
	started := time.Now()
	index, err := octree.Build(set.Positions(), capacity)
	if err != nil {
		return nil, fmt.Errorf("building spatial index: %w", err)
	}

	st := index.Stats()
	slog.Info("spatial index built",
		"stars", set.Len(),
		"nodes", st.Nodes,
		"depth", st.Depth,
		"capacity", capacity,
		"elapsed", time.Since(started))

	return &Engine{set: set, index: index}, nil
}

// Set returns the star set the engine was built over.
func (e *Engine) Set() *catalog.Set {
	return e.set
}

// Index returns the engine's spatial index.
func (e *Engine) Index() *octree.Octree {
	return e.index
}

// FindPath plans a route from one named star to another where every hop is at
// most maxJump parsecs.
//
// A route that reaches the goal is returned as a non-stranded Result. When the
// goal is unreachable, or the budget in lim runs out, the route to the reached
// star closest to the goal is returned as a stranded Result instead, provided
// that star is not the start itself. Otherwise an *Error is returned.
func (e *Engine) FindPath(ctx context.Context, from, to string, maxJump float64, lim Limits) (*Result, error) {
	started := time.Now()
	defer e.record(started)

	if math.IsNaN(maxJump) || math.IsInf(maxJump, 0) || maxJump <= 0 {
		return nil, newError(opFindPath, ReasonInvalidRange, "jump range %v is not a positive number", maxJump)
	}
	start, ok := e.set.Lookup(from)
	if !ok {
		return nil, newError(opFindPath, ReasonNodeNotFound, "start star %q is not in the catalogue", from)
	}
	goal, ok := e.set.Lookup(to)
	if !ok {
		return nil, newError(opFindPath, ReasonNodeNotFound, "end star %q is not in the catalogue", to)
	}

	res, err := e.search(ctx, start, goal, maxJump, lim.withDefaults())
	if err != nil {
		slog.Debug("route search failed", "from", from, "to", to, "max_jump", maxJump, "error", err)
		return nil, err
	}
	res.Elapsed = time.Since(started)

	slog.Debug("route search finished",
		"from", from,
		"to", to,
		"max_jump", maxJump,
		"jumps", res.Jumps,
		"stranded", res.Stranded,
		"iterations", res.Iterations,
		"elapsed", res.Elapsed)
	return res, nil
}

func (e *Engine) record(started time.Time) {
	d := int64(time.Since(started))
	e.calculations.Add(1)
	e.totalNanos.Add(d)
	e.lastNanos.Store(d)
}

// Stats is a snapshot of the engine's performance counters.
type Stats struct {
	Calculations int64         `json:"calculations"`
	TotalTime    time.Duration `json:"total_time"`
	AverageTime  time.Duration `json:"average_time"`
	LastTime     time.Duration `json:"last_time"`
}

// Stats reports how many searches ran and how long they took.
func (e *Engine) Stats() Stats {
	n := e.calculations.Load()
	total := time.Duration(e.totalNanos.Load())
	st := Stats{
		Calculations: n,
		TotalTime:    total,
		LastTime:     time.Duration(e.lastNanos.Load()),
	}
	if n > 0 {
		st.AverageTime = total / time.Duration(n)
	}
	return st
}

// ResetStats zeroes the performance counters.
func (e *Engine) ResetStats() {
	e.calculations.Store(0)
	e.totalNanos.Store(0)
	e.lastNanos.Store(0)
}
