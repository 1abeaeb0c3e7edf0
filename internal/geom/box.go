package geom

// Box is an axis-aligned bounding box given by its min and max corners.
// Containment is closed on every face.
type Box struct {
	Min Vec3 `json:"min"`
	Max Vec3 `json:"max"`
}

// BoundsOf returns the minimal box containing every point.
// An empty slice yields the zero Box.
func BoundsOf(points []Vec3) Box {
	if len(points) == 0 {
		return Box{}
	}
	b := Box{Min: points[0], Max: points[0]}
	for _, p := range points[1:] {
		b.Min.X = min(b.Min.X, p.X)
		b.Min.Y = min(b.Min.Y, p.Y)
		b.Min.Z = min(b.Min.Z, p.Z)
		b.Max.X = max(b.Max.X, p.X)
		b.Max.Y = max(b.Max.Y, p.Y)
		b.Max.Z = max(b.Max.Z, p.Z)
	}
	return b
}

// Valid reports whether the corners are finite and not inverted.
// Degenerate (zero-extent) boxes are valid.
func (b Box) Valid() bool {
	return b.Min.IsFinite() && b.Max.IsFinite() &&
		b.Min.X <= b.Max.X && b.Min.Y <= b.Max.Y && b.Min.Z <= b.Max.Z
}

// Center returns the midpoint of the box.
func (b Box) Center() Vec3 {
	return Vec3{
		X: (b.Min.X + b.Max.X) / 2,
		Y: (b.Min.Y + b.Max.Y) / 2,
		Z: (b.Min.Z + b.Max.Z) / 2,
	}
}

// HalfExtents returns the half sizes along each axis.
func (b Box) HalfExtents() Vec3 {
	return Vec3{
		X: (b.Max.X - b.Min.X) / 2,
		Y: (b.Max.Y - b.Min.Y) / 2,
		Z: (b.Max.Z - b.Min.Z) / 2,
	}
}

// Contains reports whether p lies inside or on the box.
func (b Box) Contains(p Vec3) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

// IntersectsSphere reports whether the sphere (c, r) touches the box.
// The sphere centre is clamped into the box per axis and the distance to the
// clamped point is compared with r using WithinRadius.
func (b Box) IntersectsSphere(c Vec3, r float64) bool {
	nearest := Vec3{
		X: clamp(c.X, b.Min.X, b.Max.X),
		Y: clamp(c.Y, b.Min.Y, b.Max.Y),
		Z: clamp(c.Z, b.Min.Z, b.Max.Z),
	}
	return WithinRadius(c.DistSq(nearest), r)
}

// Octant returns child i (0..7) of the split at the centre. Bit 0 selects the
// upper X half, bit 1 the upper Y half, bit 2 the upper Z half. Child corners are
// taken from {Min, Center, Max} directly, so the eight octants cover the parent
// with shared faces and no rounding gaps.
func (b Box) Octant(i int) Box {
	c := b.Center()
	var o Box
	o.Min.X, o.Max.X = split(b.Min.X, c.X, b.Max.X, i&1 != 0)
	o.Min.Y, o.Max.Y = split(b.Min.Y, c.Y, b.Max.Y, i&2 != 0)
	o.Min.Z, o.Max.Z = split(b.Min.Z, c.Z, b.Max.Z, i&4 != 0)
	return o
}

// OctantOf returns the index of the octant that p falls into when the box is
// split at its centre. Points on the centre plane go to the lower half.
func (b Box) OctantOf(p Vec3) int {
	c := b.Center()
	i := 0
	if p.X > c.X {
		i |= 1
	}
	if p.Y > c.Y {
		i |= 2
	}
	if p.Z > c.Z {
		i |= 4
	}
	return i
}

func split(lo, mid, hi float64, upper bool) (float64, float64) {
	if upper {
		return mid, hi
	}
	return lo, mid
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
