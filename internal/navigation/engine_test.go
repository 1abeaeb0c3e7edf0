package navigation

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/starnav/internal/catalog"
	"github.com/udisondev/starnav/internal/geom"
)

func star(name string, x, y, z float64) catalog.Star {
	return catalog.Star{Name: name, Pos: geom.Vec3{X: x, Y: y, Z: z}}
}

func newTestEngine(t testing.TB, stars ...catalog.Star) *Engine {
	t.Helper()
	set, err := catalog.NewSet(stars)
	require.NoError(t, err)
	e, err := NewEngine(set, 2)
	require.NoError(t, err)
	return e
}

func scenarioEngine(t testing.TB) *Engine {
	return newTestEngine(t,
		star("A", 0, 0, 0),
		star("B", 5, 0, 0),
		star("C", 10, 0, 0),
		star("Isolated", 100, 100, 100),
	)
}

func TestFindPath_Scenario(t *testing.T) {
	e := scenarioEngine(t)
	ctx := context.Background()

	t.Run("complete route", func(t *testing.T) {
		res, err := e.FindPath(ctx, "A", "C", 6, DefaultLimits())
		require.NoError(t, err)
		assert.Equal(t, []string{"A", "B", "C"}, res.Names())
		assert.False(t, res.Stranded)
		assert.InDelta(t, 10.0, res.Distance, 1e-9)
		assert.Equal(t, 2, res.Jumps)
		assert.InDelta(t, 5.0, res.MaxHop, 1e-9)
		assert.Zero(t, res.ClosestDistance)
		assert.Empty(t, res.Cutoff)
	})

	t.Run("stranded at closest reachable star", func(t *testing.T) {
		res, err := e.FindPath(ctx, "A", "Isolated", 5, DefaultLimits())
		require.NoError(t, err)
		assert.True(t, res.Stranded)
		assert.Equal(t, []string{"A", "B", "C"}, res.Names())
		assert.Empty(t, res.Cutoff)
		assert.InDelta(t, math.Sqrt(90*90+100*100+100*100), res.ClosestDistance, 1e-9)
	})

	t.Run("nothing reachable", func(t *testing.T) {
		_, err := e.FindPath(ctx, "Isolated", "A", 5, DefaultLimits())
		require.ErrorIs(t, err, ErrNoPath)
		assert.Equal(t, ReasonNoPath, ReasonOf(err))
	})

	t.Run("direct hop", func(t *testing.T) {
		res, err := e.FindPath(ctx, "A", "C", 10, DefaultLimits())
		require.NoError(t, err)
		assert.Equal(t, []string{"A", "C"}, res.Names())
	})
}

func TestFindPath_SelfPath(t *testing.T) {
	e := scenarioEngine(t)

	res, err := e.FindPath(context.Background(), "B", "B", 1, DefaultLimits())
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, res.Names())
	assert.False(t, res.Stranded)
	assert.Zero(t, res.Distance)
	assert.Zero(t, res.Jumps)
}

func TestFindPath_Errors(t *testing.T) {
	e := scenarioEngine(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		from    string
		to      string
		maxJump float64
		want    error
	}{
		{"unknown start", "Nowhere", "A", 5, ErrNodeNotFound},
		{"unknown end", "A", "Nowhere", 5, ErrNodeNotFound},
		{"zero range", "A", "C", 0, ErrInvalidRange},
		{"negative range", "A", "C", -1, ErrInvalidRange},
		{"NaN range", "A", "C", math.NaN(), ErrInvalidRange},
		{"infinite range", "A", "C", math.Inf(1), ErrInvalidRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := e.FindPath(ctx, tt.from, tt.to, tt.maxJump, DefaultLimits())
			require.ErrorIs(t, err, tt.want)
			assert.Nil(t, res)

			var nerr *Error
			require.ErrorAs(t, err, &nerr)
			assert.Equal(t, opFindPath, nerr.Op)
			assert.NotEmpty(t, nerr.Remedy())
		})
	}
}

func TestFindPath_HopsWithinRange(t *testing.T) {
	e := randomEngine(t, 1500, 7)
	ctx := context.Background()
	set := e.Set()

	for i := range 30 {
		from := set.Name(int32(i))
		to := set.Name(int32(set.Len() - 1 - i))
		res, err := e.FindPath(ctx, from, to, 12, DefaultLimits())
		if err != nil {
			require.ErrorIs(t, err, ErrNoPath)
			continue
		}
		assert.Equal(t, from, res.Stars[0].Name)
		if !res.Stranded {
			assert.Equal(t, to, res.Last().Name)
		}
		for j := 1; j < len(res.Stars); j++ {
			hop := res.Stars[j-1].Pos.Dist(res.Stars[j].Pos)
			assert.LessOrEqual(t, hop, 12.0)
		}
	}
}

func TestFindPath_MatchesDijkstra(t *testing.T) {
	const maxJump = 15.0
	e := randomEngine(t, 400, 11)
	ctx := context.Background()
	set := e.Set()

	for i := range 20 {
		from, to := int32(i), int32(set.Len()-1-i)
		want, reachable := dijkstra(set.Positions(), from, to, maxJump)

		res, err := e.FindPath(ctx, set.Name(from), set.Name(to), maxJump, DefaultLimits())
		if err != nil {
			require.ErrorIs(t, err, ErrNoPath)
			assert.False(t, reachable)
			continue
		}
		if !reachable {
			assert.True(t, res.Stranded)
			continue
		}
		require.False(t, res.Stranded)
		assert.InDelta(t, want, res.Distance, 1e-6)
	}
}

func TestFindPath_IterationCutoff(t *testing.T) {
	stars := make([]catalog.Star, 0, 200)
	for i := range 200 {
		stars = append(stars, star(fmt.Sprintf("S%03d", i), float64(i), 0, 0))
	}
	e := newTestEngine(t, stars...)
	ctx := context.Background()

	res, err := e.FindPath(ctx, "S000", "S199", 1, Limits{MaxIterations: 10})
	require.NoError(t, err)
	assert.True(t, res.Stranded)
	assert.Equal(t, ReasonIterationLimit, res.Cutoff)
	assert.Equal(t, 10, res.Iterations)
	assert.Equal(t, "S010", res.Last().Name)

	_, err = e.FindPath(ctx, "S000", "S199", 1, Limits{MaxIterations: 1})
	require.NoError(t, err, "one expansion still reaches S001")

	full, err := e.FindPath(ctx, "S000", "S199", 1, DefaultLimits())
	require.NoError(t, err)
	assert.False(t, full.Stranded)
	assert.Len(t, full.Stars, 200)
}

func TestFindPath_StrandedNeverFartherWithMoreBudget(t *testing.T) {
	e := randomEngine(t, 800, 3)
	ctx := context.Background()
	set := e.Set()
	from, to := set.Name(0), set.Name(int32(set.Len()-1))

	prev := math.Inf(1)
	for _, budget := range []int{5, 20, 80, 320, 1280} {
		res, err := e.FindPath(ctx, from, to, 10, Limits{MaxIterations: budget})
		if err != nil {
			continue
		}
		assert.LessOrEqual(t, res.ClosestDistance, prev+1e-9, "budget %d", budget)
		prev = res.ClosestDistance
	}
}

func TestFindPath_CompleteStaysCompleteWithLongerRange(t *testing.T) {
	e := randomEngine(t, 500, 17)
	ctx := context.Background()
	set := e.Set()

	for i := range 10 {
		from, to := set.Name(int32(i)), set.Name(int32(set.Len()-1-i))
		complete := false
		for r := 4.0; r <= 40; r += 2 {
			res, err := e.FindPath(ctx, from, to, r, DefaultLimits())
			ok := err == nil && !res.Stranded
			if complete {
				assert.True(t, ok, "%s -> %s regressed at range %v", from, to, r)
			}
			complete = complete || ok
		}
	}
}

func TestFindPath_Canceled(t *testing.T) {
	e := randomEngine(t, 200, 5)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.FindPath(ctx, e.Set().Name(0), e.Set().Name(1), 10, DefaultLimits())
	require.ErrorIs(t, err, ErrCanceled)
}

func TestFindPath_ContextDeadlineIsTimeLimit(t *testing.T) {
	e := scenarioEngine(t)
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	_, err := e.FindPath(ctx, "A", "C", 6, DefaultLimits())
	require.ErrorIs(t, err, ErrTimeLimit)
}

func TestFindPath_Progress(t *testing.T) {
	stars := make([]catalog.Star, 0, 2500)
	for i := range 2500 {
		stars = append(stars, star(fmt.Sprintf("S%04d", i), float64(i), 0, 0))
	}
	e := newTestEngine(t, stars...)

	var reports []Progress
	lim := DefaultLimits()
	lim.Progress = func(p Progress) { reports = append(reports, p) }

	res, err := e.FindPath(context.Background(), "S0000", "S2499", 1, lim)
	require.NoError(t, err)
	require.False(t, res.Stranded)
	require.Len(t, reports, 2)
	assert.Equal(t, ProgressInterval, reports[0].Iterations)
	assert.Equal(t, 2*ProgressInterval, reports[1].Iterations)
}

func TestEngine_Stats(t *testing.T) {
	e := scenarioEngine(t)
	ctx := context.Background()

	_, _ = e.FindPath(ctx, "A", "C", 6, DefaultLimits())
	_, _ = e.FindPath(ctx, "A", "Nowhere", 6, DefaultLimits())

	st := e.Stats()
	assert.Equal(t, int64(2), st.Calculations)
	assert.GreaterOrEqual(t, st.TotalTime, st.LastTime)
	assert.Equal(t, st.TotalTime/2, st.AverageTime)

	e.ResetStats()
	assert.Zero(t, e.Stats())
}

func TestFindPath_Concurrent(t *testing.T) {
	e := randomEngine(t, 1000, 9)
	set := e.Set()
	ctx := context.Background()

	want, err := e.FindPath(ctx, set.Name(0), set.Name(999), 12, DefaultLimits())
	require.NoError(t, err)

	errs := make(chan error, 8)
	for range 8 {
		go func() {
			got, err := e.FindPath(ctx, set.Name(0), set.Name(999), 12, DefaultLimits())
			if err == nil && !assert.ObjectsAreEqual(want.Indices, got.Indices) {
				err = fmt.Errorf("concurrent result differs: %v vs %v", got.Indices, want.Indices)
			}
			errs <- err
		}()
	}
	for range 8 {
		require.NoError(t, <-errs)
	}
}

func randomEngine(t testing.TB, n int, seed uint64) *Engine {
	t.Helper()
	rng := rand.New(rand.NewPCG(seed, seed*31+1))
	stars := make([]catalog.Star, n)
	for i := range stars {
		stars[i] = star(fmt.Sprintf("R%05d", i),
			rng.Float64()*100-50, rng.Float64()*100-50, rng.Float64()*100-50)
	}
	return newTestEngine(t, stars...)
}

// dijkstra is a quadratic reference implementation over the full jump graph.
func dijkstra(pos []geom.Vec3, from, to int32, maxJump float64) (float64, bool) {
	dist := make([]float64, len(pos))
	done := make([]bool, len(pos))
	for i := range dist {
		dist[i] = math.Inf(1)
	}
	dist[from] = 0
	for {
		u := -1
		for i := range dist {
			if !done[i] && !math.IsInf(dist[i], 1) && (u < 0 || dist[i] < dist[u]) {
				u = i
			}
		}
		if u < 0 {
			return 0, false
		}
		if int32(u) == to {
			return dist[u], true
		}
		done[u] = true
		for v := range pos {
			if done[v] {
				continue
			}
			if d := pos[u].Dist(pos[v]); d <= maxJump && dist[u]+d < dist[v] {
				dist[v] = dist[u] + d
			}
		}
	}
}
