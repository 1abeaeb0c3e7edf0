package db

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/udisondev/starnav/internal/catalog"
)

var starColumns = []string{"seq", "name", "proper", "dist", "mag", "spect", "ci", "x", "y", "z"}

// StarRepository stores the star catalogue. The catalogue is only a data
// source; the spatial index is always rebuilt in memory.
type StarRepository struct {
	pool *pgxpool.Pool
}

// NewStarRepository creates a repository on pool.
func NewStarRepository(pool *pgxpool.Pool) *StarRepository {
	return &StarRepository{pool: pool}
}

// LoadAll returns every star in import order.
func (r *StarRepository) LoadAll(ctx context.Context) ([]catalog.Star, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT name, proper, dist, mag, spect, ci, x, y, z FROM stars ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("querying stars: %w", err)
	}
	defer rows.Close()

	var stars []catalog.Star
	for rows.Next() {
		var s catalog.Star
		if err := rows.Scan(
			&s.Name, &s.Info.Proper, &s.Info.Dist, &s.Info.Mag, &s.Info.Spect, &s.Info.CI,
			&s.Pos.X, &s.Pos.Y, &s.Pos.Z,
		); err != nil {
			return nil, fmt.Errorf("scanning star: %w", err)
		}
		stars = append(stars, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating stars: %w", err)
	}
	return stars, nil
}

// Import replaces the catalogue with stars in one transaction and records
// the import. It returns the number of rows written.
func (r *StarRepository) Import(ctx context.Context, source string, stars []catalog.Star) (int64, error) {
	set, err := catalog.NewSet(stars)
	if err != nil {
		return 0, fmt.Errorf("validating catalogue: %w", err)
	}

	started := time.Now()
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("beginning import: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if _, err := tx.Exec(ctx, `TRUNCATE stars`); err != nil {
		return 0, fmt.Errorf("truncating stars: %w", err)
	}

	n, err := tx.CopyFrom(ctx, pgx.Identifier{"stars"}, starColumns,
		pgx.CopyFromSlice(len(stars), func(i int) ([]any, error) {
			s := stars[i]
			return []any{i, s.Name, s.Info.Proper, s.Info.Dist, s.Info.Mag, s.Info.Spect, s.Info.CI, s.Pos.X, s.Pos.Y, s.Pos.Z}, nil
		}))
	if err != nil {
		return 0, fmt.Errorf("copying stars: %w", err)
	}

	fp := set.Fingerprint()
	if _, err := tx.Exec(ctx,
		`INSERT INTO catalog_imports (source, star_count, fingerprint) VALUES ($1, $2, $3)`,
		source, n, hex.EncodeToString(fp[:]),
	); err != nil {
		return 0, fmt.Errorf("recording import: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing import: %w", err)
	}

	slog.Info("catalogue imported", "source", source, "stars", n, "elapsed", time.Since(started))
	return n, nil
}

// Count returns the number of stored stars.
func (r *StarRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM stars`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting stars: %w", err)
	}
	return n, nil
}

// Import is one recorded catalogue import.
type Import struct {
	Source      string
	StarCount   int
	Fingerprint string
	ImportedAt  time.Time
}

// LastImport returns the most recent import, or nil when none was recorded.
func (r *StarRepository) LastImport(ctx context.Context) (*Import, error) {
	var imp Import
	err := r.pool.QueryRow(ctx,
		`SELECT source, star_count, fingerprint, imported_at
		 FROM catalog_imports ORDER BY id DESC LIMIT 1`,
	).Scan(&imp.Source, &imp.StarCount, &imp.Fingerprint, &imp.ImportedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying last import: %w", err)
	}
	return &imp, nil
}
