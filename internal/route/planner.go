// Package route keeps the user's planned routes: three independent slots,
// each with a start, an end and the last calculated route, plus a cursor for
// stepping through the active route one jump at a time.
package route

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/udisondev/starnav/internal/catalog"
	"github.com/udisondev/starnav/internal/navigation"
)

// SlotCount is the number of route slots.
const SlotCount = 3

// DefaultRangeUpper is the upper bound used for minimum range searches.
const DefaultRangeUpper = 100.0

var (
	ErrBadSlot       = errors.New("route slot out of range")
	ErrUnknownStar   = errors.New("star is not in the catalogue")
	ErrIncomplete    = errors.New("select a start and end star for the route")
	ErrNotCalculated = errors.New("route has not been calculated")
)

// Slot is one planned route.
type Slot struct {
	Start string
	End   string
	Route *navigation.Result
}

// Ready reports whether both endpoints are set.
func (s Slot) Ready() bool {
	return s.Start != "" && s.End != ""
}

// Options tunes route calculation.
type Options struct {
	Limits     navigation.Limits
	RangeUpper float64
	Resolution float64
}

// Planner owns the route slots. It is safe for concurrent use; searches run
// without holding the lock.
type Planner struct {
	set    *catalog.Set
	finder navigation.Finder
	opts   Options

	mu     sync.Mutex
	slots  [SlotCount]Slot
	active int
	cursor int
}

// NewPlanner creates a planner over set that plans with finder.
func NewPlanner(set *catalog.Set, finder navigation.Finder, opts Options) *Planner {
	if opts.RangeUpper <= 0 {
		opts.RangeUpper = DefaultRangeUpper
	}
	return &Planner{set: set, finder: finder, opts: opts}
}

// Active returns the active slot index.
func (p *Planner) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// SetActive switches the active slot and rewinds the jump cursor.
func (p *Planner) SetActive(i int) error {
	if i < 0 || i >= SlotCount {
		return fmt.Errorf("%w: %d", ErrBadSlot, i)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active = i
	p.cursor = 0
	return nil
}

// Slot returns a copy of slot i.
func (p *Planner) Slot(i int) (Slot, error) {
	if i < 0 || i >= SlotCount {
		return Slot{}, fmt.Errorf("%w: %d", ErrBadSlot, i)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.slots[i], nil
}

// ActiveSlot returns a copy of the active slot.
func (p *Planner) ActiveSlot() Slot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.slots[p.active]
}

// SetStart sets the start star of the active slot. Changing it discards the
// slot's stored route.
func (p *Planner) SetStart(name string) error {
	return p.setEndpoint(name, func(s *Slot) *string { return &s.Start })
}

// SetEnd sets the end star of the active slot. Changing it discards the
// slot's stored route.
func (p *Planner) SetEnd(name string) error {
	return p.setEndpoint(name, func(s *Slot) *string { return &s.End })
}

func (p *Planner) setEndpoint(name string, field func(*Slot) *string) error {
	if _, ok := p.set.Lookup(name); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownStar, name)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	slot := &p.slots[p.active]
	end := field(slot)
	if *end == name {
		return nil
	}
	*end = name
	slot.Route = nil
	p.cursor = 0
	return nil
}

// Calculate plans the active slot's route and stores it in the slot. A
// stranded route is stored too; the warning names the last reachable star.
func (p *Planner) Calculate(ctx context.Context, maxJump float64) (*navigation.Result, error) {
	p.mu.Lock()
	idx := p.active
	slot := p.slots[idx]
	p.mu.Unlock()

	if !slot.Ready() {
		return nil, ErrIncomplete
	}

	slog.Info("calculating route", "slot", idx, "from", slot.Start, "to", slot.End, "max_jump", maxJump)
	res, err := p.finder.FindPath(ctx, slot.Start, slot.End, maxJump, p.opts.Limits)
	if err != nil {
		logFailure("route calculation failed", err)
		return nil, err
	}

	if res.Stranded {
		slog.Warn("route partially calculated",
			"slot", idx,
			"reached", res.Last().Name,
			"remaining", res.ClosestDistance,
			"cutoff", res.Cutoff)
	} else {
		slog.Info("route found", "slot", idx, "jumps", res.Jumps, "distance", res.Distance)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	cur := &p.slots[idx]
	if cur.Start != slot.Start || cur.End != slot.End {
		// Endpoints changed while we were searching; the result is stale.
		return res, nil
	}
	cur.Route = res
	if idx == p.active {
		p.cursor = 0
	}
	return res, nil
}

// MinimumRange finds the smallest jump range that connects the active slot's
// endpoints. The slot's stored route is left untouched.
func (p *Planner) MinimumRange(ctx context.Context) (*navigation.RangeResult, error) {
	slot := p.ActiveSlot()
	if !slot.Ready() {
		return nil, ErrIncomplete
	}

	slog.Info("finding minimum jump range", "from", slot.Start, "to", slot.End)
	rr, err := navigation.MinimumRange(ctx, p.finder, slot.Start, slot.End, p.opts.RangeUpper,
		navigation.RangeOptions{Resolution: p.opts.Resolution, Limits: p.opts.Limits})
	if err != nil {
		logFailure("no route possible between these stars", err)
		return nil, err
	}
	slog.Info("minimum jump range found", "range", rr.Range, "probes", rr.Probes)
	return rr, nil
}

func logFailure(msg string, err error) {
	var nerr *navigation.Error
	if errors.As(err, &nerr) {
		slog.Warn(msg, "reason", nerr.Reason, "remedy", nerr.Remedy(), "error", err)
		return
	}
	slog.Error(msg, "error", err)
}

// Clear resets slot i.
func (p *Planner) Clear(i int) error {
	if i < 0 || i >= SlotCount {
		return fmt.Errorf("%w: %d", ErrBadSlot, i)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.slots[i] = Slot{}
	if i == p.active {
		p.cursor = 0
	}
	return nil
}

// ClearAll resets every slot and the cursor.
func (p *Planner) ClearAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.slots = [SlotCount]Slot{}
	p.cursor = 0
}

// Current returns the star under the jump cursor of the active route.
func (p *Planner) Current() (catalog.Star, int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r := p.slots[p.active].Route
	if r == nil {
		return catalog.Star{}, 0, ErrNotCalculated
	}
	return r.Stars[p.cursor], p.cursor, nil
}

// NextJump advances the cursor one jump. At the last star it stays put and
// reports false.
func (p *Planner) NextJump() (catalog.Star, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r := p.slots[p.active].Route
	if r == nil {
		return catalog.Star{}, false, ErrNotCalculated
	}
	if p.cursor >= len(r.Stars)-1 {
		return r.Stars[p.cursor], false, nil
	}
	p.cursor++
	return r.Stars[p.cursor], true, nil
}

// JumpToStart moves the cursor to the first star of the active route.
func (p *Planner) JumpToStart() (catalog.Star, error) {
	return p.jumpTo(func(*navigation.Result) int { return 0 })
}

// JumpToEnd moves the cursor to the last star of the active route.
func (p *Planner) JumpToEnd() (catalog.Star, error) {
	return p.jumpTo(func(r *navigation.Result) int { return len(r.Stars) - 1 })
}

func (p *Planner) jumpTo(pick func(*navigation.Result) int) (catalog.Star, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r := p.slots[p.active].Route
	if r == nil {
		return catalog.Star{}, ErrNotCalculated
	}
	p.cursor = pick(r)
	return r.Stars[p.cursor], nil
}
