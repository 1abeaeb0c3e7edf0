package navigation

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"github.com/udisondev/starnav/internal/catalog"
	"github.com/udisondev/starnav/internal/geom"
	"github.com/udisondev/starnav/internal/octree"
)

// ErrSnapshotMismatch is returned when a snapshot's star data does not hash to
// its recorded fingerprint.
var ErrSnapshotMismatch = errors.New("snapshot fingerprint mismatch")

// Snapshot is everything a worker needs to rebuild an Engine equivalent to the
// one that produced it: the stars in index order, the root bounds and the leaf
// capacity.
type Snapshot struct {
	Stars       []catalog.Star `json:"stars"`
	Bounds      geom.Box       `json:"bounds"`
	Capacity    int            `json:"capacity"`
	Fingerprint string         `json:"fingerprint"`
}

// Snapshot captures the engine's data for transfer to a worker.
func (e *Engine) Snapshot() Snapshot {
	fp := e.set.Fingerprint()
	return Snapshot{
		Stars:       e.set.Stars(),
		Bounds:      e.index.Bounds(),
		Capacity:    e.index.Capacity(),
		Fingerprint: hex.EncodeToString(fp[:]),
	}
}

// NewEngineFromSnapshot rebuilds an engine from s. The index is built over the
// recorded bounds, so queries behave exactly as on the source engine. An empty
// Fingerprint skips verification.
func NewEngineFromSnapshot(s Snapshot) (*Engine, error) {
	set, err := catalog.NewSet(s.Stars)
	if err != nil {
		return nil, fmt.Errorf("rebuilding star set: %w", err)
	}
	if s.Fingerprint != "" {
		fp := set.Fingerprint()
		if got := hex.EncodeToString(fp[:]); got != s.Fingerprint {
			return nil, fmt.Errorf("%w: have %s, want %s", ErrSnapshotMismatch, got, s.Fingerprint)
		}
	}

	index, err := octree.BuildInBounds(set.Positions(), s.Bounds, s.Capacity)
	if err != nil {
		return nil, fmt.Errorf("rebuilding spatial index: %w", err)
	}

	slog.Debug("engine rebuilt from snapshot", "stars", set.Len(), "capacity", s.Capacity)
	return &Engine{set: set, index: index}, nil
}
