package navigation

import (
	"time"

	"github.com/udisondev/starnav/internal/catalog"
)

const (
	// DefaultMaxIterations bounds node expansions per search.
	DefaultMaxIterations = 50_000
	// DefaultTimeLimit is the wall-clock budget for a search on the caller's goroutine.
	DefaultTimeLimit = 10 * time.Second
	// WorkerTimeLimit is the budget for a search run by a background worker.
	WorkerTimeLimit = 30 * time.Second
	// ProgressInterval is how many iterations pass between progress callbacks.
	ProgressInterval = 1000
)

// Limits bounds a single search.
type Limits struct {
	MaxIterations int
	TimeLimit     time.Duration
	// Progress, if set, is called from the searching goroutine every
	// ProgressInterval iterations. It is informational only.
	Progress func(Progress)
}

// DefaultLimits returns the budget for inline searches.
func DefaultLimits() Limits {
	return Limits{MaxIterations: DefaultMaxIterations, TimeLimit: DefaultTimeLimit}
}

// WorkerLimits returns the budget for worker-dispatched searches.
func WorkerLimits() Limits {
	return Limits{MaxIterations: DefaultMaxIterations, TimeLimit: WorkerTimeLimit}
}

func (l Limits) withDefaults() Limits {
	if l.MaxIterations <= 0 {
		l.MaxIterations = DefaultMaxIterations
	}
	if l.TimeLimit <= 0 {
		l.TimeLimit = DefaultTimeLimit
	}
	return l
}

// Progress is a best-effort snapshot of a running search.
type Progress struct {
	Iterations int           `json:"iterations"`
	OpenSet    int           `json:"open_set"`
	Visited    int           `json:"visited"`
	Elapsed    time.Duration `json:"elapsed"`
}

// Result is an ordered route from the start star.
//
// When Stranded is false the route ends at the requested goal and every hop is
// within the jump range. When Stranded is true it ends at the reached star
// closest to the goal; Cutoff says whether the search ran out of budget
// (IterationLimitExceeded, TimeLimitExceeded) or exhausted the reachable stars ("").
type Result struct {
	Stars           []catalog.Star `json:"stars"`
	Indices         []int32        `json:"indices"`
	Stranded        bool           `json:"stranded"`
	Distance        float64        `json:"distance"`
	Jumps           int            `json:"jumps"`
	MaxHop          float64        `json:"max_hop"`
	ClosestDistance float64        `json:"closest_distance"`
	Iterations      int            `json:"iterations"`
	Cutoff          Reason         `json:"cutoff,omitempty"`
	Elapsed         time.Duration  `json:"elapsed"`
}

// Names returns the star names along the route.
func (r *Result) Names() []string {
	names := make([]string, len(r.Stars))
	for i, s := range r.Stars {
		names[i] = s.Name
	}
	return names
}

// Last returns the final star of the route.
func (r *Result) Last() catalog.Star {
	return r.Stars[len(r.Stars)-1]
}
