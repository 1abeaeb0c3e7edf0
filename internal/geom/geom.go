// Package geom holds the 3D primitives shared by the spatial index and the planner.
package geom

import "math"

// Vec3 is a position in catalogue space (parsecs).
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Sub returns v - o.
func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z}
}

// DistSq returns the squared Euclidean distance between v and o.
func (v Vec3) DistSq(o Vec3) float64 {
	dx := v.X - o.X
	dy := v.Y - o.Y
	dz := v.Z - o.Z
	return dx*dx + dy*dy + dz*dz
}

// Dist returns the Euclidean distance between v and o.
func (v Vec3) Dist(o Vec3) float64 {
	return math.Sqrt(v.DistSq(o))
}

// WithinRadius reports whether a point at squared distance d2 lies within r.
// It agrees with Dist, so WithinRadius(a.DistSq(b), a.Dist(b)) holds even when
// squaring the distance rounds below d2.
func WithinRadius(d2, r float64) bool {
	if r < 0 {
		return false
	}
	return d2 <= r*r || math.Sqrt(d2) <= r
}

// IsFinite reports whether no component is NaN or infinite.
func (v Vec3) IsFinite() bool {
	return isFinite(v.X) && isFinite(v.Y) && isFinite(v.Z)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
