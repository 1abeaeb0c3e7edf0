// Package octree implements a build-once spatial index over a static point table.
//
// Nodes live in a flat arena; an internal node stores the arena index of its
// first child and the eight children are contiguous. Leaves store indices into
// the caller's point table, never copies of the points. The tree is never
// mutated after Build returns, so any number of goroutines may query it.
package octree

import (
	"errors"
	"fmt"
	"math"

	"github.com/udisondev/starnav/internal/geom"
)

const (
	// DefaultCapacity is the number of points a leaf holds before it splits.
	DefaultCapacity = 8

	// MaxDepth stops subdivision. Leaves at this depth keep every point they
	// receive, which bounds the tree when more than capacity points coincide.
	MaxDepth = 24

	leaf int32 = -1
)

var (
	ErrNoPoints    = errors.New("octree: no points")
	ErrBadCapacity = errors.New("octree: capacity must be at least 1")
	ErrBadBounds   = errors.New("octree: bounds are not finite or inverted")
	ErrOutOfBounds = errors.New("octree: point outside bounds")
	ErrUnplaced    = errors.New("octree: no child accepted point")
)

type node struct {
	box    geom.Box
	child  int32
	depth  uint8
	points []int32
}

// Octree is an immutable octree over a point table.
type Octree struct {
	nodes    []node
	points   []geom.Vec3
	capacity int
}

// Build indexes points inside their minimal bounding box.
func Build(points []geom.Vec3, capacity int) (*Octree, error) {
	if len(points) == 0 {
		return nil, ErrNoPoints
	}
	return BuildInBounds(points, geom.BoundsOf(points), capacity)
}

// BuildInBounds indexes points inside the given root box. Every point must lie
// within bounds; a point that cannot be placed fails the build.
//
// The tree keeps a reference to points; the caller must not modify the slice
// afterwards.
func BuildInBounds(points []geom.Vec3, bounds geom.Box, capacity int) (*Octree, error) {
	if len(points) == 0 {
		return nil, ErrNoPoints
	}
	if capacity < 1 {
		return nil, fmt.Errorf("%w (got %d)", ErrBadCapacity, capacity)
	}
	if !bounds.Valid() {
		return nil, fmt.Errorf("%w: %+v", ErrBadBounds, bounds)
	}
	if len(points) > math.MaxInt32 {
		return nil, fmt.Errorf("octree: %d points exceeds index range", len(points))
	}

	t := &Octree{
		nodes:    make([]node, 1, 1+len(points)/capacity*2),
		points:   points,
		capacity: capacity,
	}
	t.nodes[0] = node{box: bounds, child: leaf}

	for i, p := range points {
		if !bounds.Contains(p) {
			return nil, fmt.Errorf("%w: point %d at %+v", ErrOutOfBounds, i, p)
		}
		if !t.insert(0, int32(i)) {
			return nil, fmt.Errorf("%w: point %d at %+v", ErrUnplaced, i, p)
		}
	}
	return t, nil
}

// insert places point i under node n. It returns false when p is outside the
// node's box or no descendant accepts it.
func (t *Octree) insert(n int32, i int32) bool {
	p := t.points[i]
	if !t.nodes[n].box.Contains(p) {
		return false
	}

	if t.nodes[n].child == leaf {
		if len(t.nodes[n].points) < t.capacity || t.nodes[n].depth >= MaxDepth {
			t.nodes[n].points = append(t.nodes[n].points, i)
			return true
		}
		if !t.subdivide(n) {
			return false
		}
	}

	first := t.nodes[n].child
	preferred := t.nodes[n].box.OctantOf(p)
	if t.insert(first+int32(preferred), i) {
		return true
	}
	for c := range 8 {
		if c != preferred && t.insert(first+int32(c), i) {
			return true
		}
	}
	return false
}

// subdivide turns leaf n into an internal node and pushes its points down.
func (t *Octree) subdivide(n int32) bool {
	parent := t.nodes[n]
	first := int32(len(t.nodes))
	for c := range 8 {
		t.nodes = append(t.nodes, node{
			box:   parent.box.Octant(c),
			child: leaf,
			depth: parent.depth + 1,
		})
	}
	t.nodes[n].child = first
	t.nodes[n].points = nil

	for _, i := range parent.points {
		if !t.insert(n, i) {
			return false
		}
	}
	return true
}

// Query appends to dst the index of every point within radius of center
// (inclusive) and returns the extended slice. Subtrees whose box misses the
// sphere are skipped. A negative or NaN radius matches nothing; a zero radius
// matches points coincident with center.
func (t *Octree) Query(center geom.Vec3, radius float64, dst []int32) []int32 {
	if radius < 0 || math.IsNaN(radius) {
		return dst
	}

	var buf [64]int32
	stack := append(buf[:0], 0)
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		nd := &t.nodes[n]
		if !nd.box.IntersectsSphere(center, radius) {
			continue
		}
		if nd.child == leaf {
			for _, i := range nd.points {
				if geom.WithinRadius(t.points[i].DistSq(center), radius) {
					dst = append(dst, i)
				}
			}
			continue
		}
		for c := int32(7); c >= 0; c-- {
			stack = append(stack, nd.child+c)
		}
	}
	return dst
}

// Bounds returns the root box.
func (t *Octree) Bounds() geom.Box {
	return t.nodes[0].box
}

// Capacity returns the leaf capacity the tree was built with.
func (t *Octree) Capacity() int {
	return t.capacity
}

// Len returns the number of indexed points.
func (t *Octree) Len() int {
	return len(t.points)
}

// Stats describes the shape of a built tree.
type Stats struct {
	Nodes       int
	Leaves      int
	Depth       int
	Points      int
	LargestLeaf int
}

// Stats walks the arena and reports its shape.
func (t *Octree) Stats() Stats {
	s := Stats{Nodes: len(t.nodes), Points: len(t.points)}
	for _, nd := range t.nodes {
		if nd.child != leaf {
			continue
		}
		s.Leaves++
		s.Depth = max(s.Depth, int(nd.depth))
		s.LargestLeaf = max(s.LargestLeaf, len(nd.points))
	}
	return s
}
