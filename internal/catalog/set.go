// Package catalog holds the immutable star catalogue the navigation engine is built on.
package catalog

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"golang.org/x/crypto/blake2b"

	"github.com/udisondev/starnav/internal/geom"
)

var (
	ErrEmptySet      = errors.New("catalog is empty")
	ErrEmptyName     = errors.New("star has empty name")
	ErrDuplicateName = errors.New("duplicate star name")
	ErrBadPosition   = errors.New("star position is not finite")
)

// Info carries presentation attributes. The engine never reads them; they are
// returned unchanged alongside path results.
type Info struct {
	Proper string  `json:"proper,omitempty"`
	Dist   float64 `json:"dist"`
	Mag    float64 `json:"mag"`
	Spect  string  `json:"spect,omitempty"`
	CI     float64 `json:"ci"`
}

// Star is one catalogue entry.
type Star struct {
	Name string    `json:"name"`
	Pos  geom.Vec3 `json:"pos"`
	Info Info      `json:"info"`
}

// Set is an immutable collection of uniquely named stars.
// Positions and names are the algorithmic data; Info lives in a side table
// indexed the same way. Safe for concurrent use.
type Set struct {
	names     []string
	positions []geom.Vec3
	info      []Info
	byName    map[string]int32
}

// NewSet validates stars and builds a Set. The input slice is copied.
func NewSet(stars []Star) (*Set, error) {
	if len(stars) == 0 {
		return nil, ErrEmptySet
	}
	if len(stars) > math.MaxInt32 {
		return nil, fmt.Errorf("catalog has %d stars, limit is %d", len(stars), math.MaxInt32)
	}

	s := &Set{
		names:     make([]string, len(stars)),
		positions: make([]geom.Vec3, len(stars)),
		info:      make([]Info, len(stars)),
		byName:    make(map[string]int32, len(stars)),
	}
	for i, st := range stars {
		if st.Name == "" {
			return nil, fmt.Errorf("star #%d: %w", i, ErrEmptyName)
		}
		if !st.Pos.IsFinite() {
			return nil, fmt.Errorf("star %q: %w", st.Name, ErrBadPosition)
		}
		if _, dup := s.byName[st.Name]; dup {
			return nil, fmt.Errorf("star %q: %w", st.Name, ErrDuplicateName)
		}
		s.byName[st.Name] = int32(i)
		s.names[i] = st.Name
		s.positions[i] = st.Pos
		s.info[i] = st.Info
	}
	return s, nil
}

// Len returns the number of stars.
func (s *Set) Len() int {
	return len(s.names)
}

// Lookup returns the index of the named star.
func (s *Set) Lookup(name string) (int32, bool) {
	i, ok := s.byName[name]
	return i, ok
}

// Name returns the name of star i.
func (s *Set) Name(i int32) string {
	return s.names[i]
}

// Position returns the position of star i.
func (s *Set) Position(i int32) geom.Vec3 {
	return s.positions[i]
}

// Positions returns the position table. Callers must not modify it.
func (s *Set) Positions() []geom.Vec3 {
	return s.positions
}

// Star assembles the full entry for index i.
func (s *Set) Star(i int32) Star {
	return Star{Name: s.names[i], Pos: s.positions[i], Info: s.info[i]}
}

// Stars returns a copy of every entry in index order.
func (s *Set) Stars() []Star {
	out := make([]Star, len(s.names))
	for i := range s.names {
		out[i] = s.Star(int32(i))
	}
	return out
}

// Fingerprint returns a BLAKE2b-256 digest over names and positions in index
// order. Two sets with equal fingerprints index identically.
func (s *Set) Fingerprint() [32]byte {
	h, _ := blake2b.New256(nil) // nil key never fails
	var buf [8]byte
	for i, name := range s.names {
		binary.LittleEndian.PutUint64(buf[:], uint64(len(name)))
		h.Write(buf[:])
		h.Write([]byte(name))
		p := s.positions[i]
		for _, f := range [3]float64{p.X, p.Y, p.Z} {
			binary.LittleEndian.PutUint64(buf[:], math.Float64bits(f))
			h.Write(buf[:])
		}
	}
	var sum [32]byte
	copy(sum[:], h.Sum(nil))
	return sum
}
