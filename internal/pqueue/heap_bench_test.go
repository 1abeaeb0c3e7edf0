package pqueue

import (
	"math/rand/v2"
	"testing"
)

// BenchmarkPushPop measures a fill-and-drain cycle of 10k entries.
func BenchmarkPushPop(b *testing.B) {
	rng := rand.New(rand.NewPCG(1, 2))
	prios := make([]float64, 10_000)
	for i := range prios {
		prios[i] = rng.Float64() * 1000
	}
	h := New[int32](len(prios))

	b.ReportAllocs()
	for range b.N {
		for i, p := range prios {
			h.Push(int32(i), p)
		}
		for h.Len() > 0 {
			h.PopMin()
		}
	}
}
