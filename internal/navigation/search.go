package navigation

import (
	"context"
	"errors"
	"time"

	"github.com/udisondev/starnav/internal/catalog"
	"github.com/udisondev/starnav/internal/geom"
	"github.com/udisondev/starnav/internal/pqueue"
)

// budgetCheckMask sets how often the clock and context are consulted.
const budgetCheckMask = 63

// search is A* over the implicit graph where two stars are adjacent iff their
// distance is at most maxJump. The heuristic is straight-line distance to the
// goal, which never overestimates, so the first time the goal is popped its
// route is shortest.
func (e *Engine) search(ctx context.Context, start, goal int32, maxJump float64, lim Limits) (*Result, error) {
	positions := e.set.Positions()
	goalPos := positions[goal]

	gScore := map[int32]float64{start: 0}
	cameFrom := make(map[int32]int32)
	closed := make(map[int32]struct{})

	open := pqueue.New[int32](64)
	open.Push(start, positions[start].Dist(goalPos))

	began := time.Now()
	deadline := began.Add(lim.TimeLimit)
	neighbours := make([]int32, 0, 64)

	var (
		iterations int
		cutoff     Reason
	)

	for open.Len() > 0 {
		if iterations >= lim.MaxIterations {
			cutoff = ReasonIterationLimit
			break
		}
		if iterations&budgetCheckMask == 0 {
			if err := ctx.Err(); err != nil {
				if !errors.Is(err, context.DeadlineExceeded) {
					return nil, newError(opFindPath, ReasonCanceled, "search canceled after %d iterations", iterations)
				}
				cutoff = ReasonTimeLimit
				break
			}
			if time.Now().After(deadline) {
				cutoff = ReasonTimeLimit
				break
			}
		}

		iterations++
		if lim.Progress != nil && iterations%ProgressInterval == 0 {
			lim.Progress(Progress{
				Iterations: iterations,
				OpenSet:    open.Len(),
				Visited:    len(closed),
				Elapsed:    time.Since(began),
			})
		}

		cur, _, _ := open.PopMin()
		if cur == goal {
			return e.result(reconstruct(cameFrom, start, goal), goal, false, iterations, ""), nil
		}
		closed[cur] = struct{}{}

		curPos := positions[cur]
		g := gScore[cur]
		neighbours = e.index.Query(curPos, maxJump, neighbours[:0])
		for _, nb := range neighbours {
			if nb == cur {
				continue
			}
			if _, done := closed[nb]; done {
				continue
			}
			tentative := g + curPos.Dist(positions[nb])
			if old, seen := gScore[nb]; seen && tentative >= old {
				continue
			}
			gScore[nb] = tentative
			cameFrom[nb] = cur
			open.Push(nb, tentative+positions[nb].Dist(goalPos))
		}
	}

	closest := closestReached(gScore, positions, start, goalPos)
	if closest == start {
		reason := cutoff
		if reason == "" {
			reason = ReasonNoPath
		}
		return nil, newError(opFindPath, reason,
			"no star within %g pc of %s gets closer to %s (%d iterations)",
			maxJump, e.set.Name(start), e.set.Name(goal), iterations)
	}

	return e.result(reconstruct(cameFrom, start, closest), goal, true, iterations, cutoff), nil
}

// closestReached picks the reached star nearest the goal. A star must be
// strictly closer than the start to be chosen; remaining ties go to the lower
// index so the answer does not depend on map order.
func closestReached(reached map[int32]float64, positions []geom.Vec3, start int32, goalPos geom.Vec3) int32 {
	best := start
	bestDist := positions[start].Dist(goalPos)
	for idx := range reached {
		if idx == start {
			continue
		}
		d := positions[idx].Dist(goalPos)
		if d < bestDist || (d == bestDist && best != start && idx < best) {
			best, bestDist = idx, d
		}
	}
	return best
}

func reconstruct(cameFrom map[int32]int32, start, end int32) []int32 {
	path := []int32{end}
	for cur := end; cur != start; {
		cur = cameFrom[cur]
		path = append(path, cur)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

func (e *Engine) result(path []int32, goal int32, stranded bool, iterations int, cutoff Reason) *Result {
	res := &Result{
		Stars:      make([]catalog.Star, len(path)),
		Indices:    path,
		Stranded:   stranded,
		Jumps:      len(path) - 1,
		Iterations: iterations,
		Cutoff:     cutoff,
	}
	for i, idx := range path {
		res.Stars[i] = e.set.Star(idx)
		if i > 0 {
			hop := e.set.Position(path[i-1]).Dist(e.set.Position(idx))
			res.Distance += hop
			res.MaxHop = max(res.MaxHop, hop)
		}
	}
	res.ClosestDistance = e.set.Position(path[len(path)-1]).Dist(e.set.Position(goal))
	return res
}
