package navigation

import (
	"context"
	"errors"
	"math"
)

// DefaultResolution is the bisection stopping width in parsecs.
const DefaultResolution = 0.1

// Finder plans a single route. Both Engine and the worker dispatcher satisfy it.
type Finder interface {
	FindPath(ctx context.Context, from, to string, maxJump float64, lim Limits) (*Result, error)
}

// RangeOptions tunes MinimumRange.
type RangeOptions struct {
	Resolution float64
	Limits     Limits
}

// RangeResult is the smallest jump range found and the route that achieves it.
type RangeResult struct {
	Range  float64 `json:"range"`
	Result *Result `json:"result"`
	Probes int     `json:"probes"`
}

// MinimumRange finds, to within opts.Resolution, the smallest jump range for
// which a complete route from one star to another exists, searching [0, upper].
//
// Range is the longest hop of the best route found, so it is always achievable
// and is exact when it coincides with an inter-star distance.
func MinimumRange(ctx context.Context, f Finder, from, to string, upper float64, opts RangeOptions) (*RangeResult, error) {
	if math.IsNaN(upper) || math.IsInf(upper, 0) || upper <= 0 {
		return nil, newError(opMinimumRange, ReasonInvalidRange, "upper bound %v is not a positive number", upper)
	}
	resolution := opts.Resolution
	if !(resolution > 0) {
		resolution = DefaultResolution
	}

	best, err := f.FindPath(ctx, from, to, upper, opts.Limits)
	probes := 1
	if err != nil {
		var nerr *Error
		if errors.As(err, &nerr) {
			return nil, &Error{Op: opMinimumRange, Reason: nerr.Reason, Detail: nerr.Detail}
		}
		return nil, err
	}
	if best.Stranded {
		reason := best.Cutoff
		if reason == "" {
			reason = ReasonNoPath
		}
		return nil, newError(opMinimumRange, reason,
			"no complete route at %g pc; closest reachable star is %s", upper, best.Last().Name)
	}
	if best.Jumps == 0 {
		return &RangeResult{Range: 0, Result: best, Probes: probes}, nil
	}

	low, high := 0.0, best.MaxHop
	for high-low > resolution {
		if ctx.Err() != nil {
			return nil, newError(opMinimumRange, ReasonCanceled, "canceled after %d probes", probes)
		}
		mid := (low + high) / 2
		res, err := f.FindPath(ctx, from, to, mid, opts.Limits)
		probes++
		switch {
		case err == nil && !res.Stranded:
			best = res
			high = res.MaxHop
		case ReasonOf(err) == ReasonCanceled:
			return nil, &Error{Op: opMinimumRange, Reason: ReasonCanceled, Detail: err.Error()}
		default:
			low = mid
		}
	}

	return &RangeResult{Range: best.MaxHop, Result: best, Probes: probes}, nil
}

// FindMinimumRange runs MinimumRange against the engine itself.
func (e *Engine) FindMinimumRange(ctx context.Context, from, to string, upper float64, opts RangeOptions) (*RangeResult, error) {
	return MinimumRange(ctx, e, from, to, upper, opts)
}
