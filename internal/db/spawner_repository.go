package db

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/udisondev/spawnkeep/internal/spawn"
)

// SpawnerRepository implements spawn.Store backed by PostgreSQL.
type SpawnerRepository struct {
	pool *pgxpool.Pool
}

// Compile-time check.
var _ spawn.Store = (*SpawnerRepository)(nil)

// NewSpawnerRepository creates a new spawner repository.
func NewSpawnerRepository(pool *pgxpool.Pool) *SpawnerRepository {
	return &SpawnerRepository{pool: pool}
}

var spawnerColumns = []string{
	"key", "data", "visible", "display_mode",
	"group_name", "display_name", "time_window", "weather",
	"radius_x", "radius_y", "radius_z", "capacity", "detection_radius",
}

// LoadAll loads every spawner record from the database.
func (r *SpawnerRepository) LoadAll(ctx context.Context) ([]spawn.Record, error) {
	query := `
		SELECT key, data, visible, display_mode,
		       group_name, display_name, time_window, weather,
		       radius_x, radius_y, radius_z, capacity, detection_radius
		FROM spawners
		ORDER BY key
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("loading all spawners: %w", err)
	}
	defer rows.Close()

	recs := make([]spawn.Record, 0, 64)
	for rows.Next() {
		var rec spawn.Record
		if err := rows.Scan(
			&rec.Key, &rec.Data, &rec.Visible, &rec.DisplayMode,
			&rec.Properties.Group, &rec.Properties.DisplayName,
			&rec.Properties.TimeWindow, &rec.Properties.Weather,
			&rec.Properties.RadiusX, &rec.Properties.RadiusY, &rec.Properties.RadiusZ,
			&rec.Properties.Capacity, &rec.Properties.DetectionRadius,
		); err != nil {
			return nil, fmt.Errorf("scanning spawner row: %w", err)
		}
		recs = append(recs, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating spawner rows: %w", err)
	}

	return recs, nil
}

// Save inserts or updates a single spawner record.
func (r *SpawnerRepository) Save(ctx context.Context, rec spawn.Record) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO spawners (key, data, visible, display_mode,
		                       group_name, display_name, time_window, weather,
		                       radius_x, radius_y, radius_z, capacity, detection_radius)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 ON CONFLICT (key) DO UPDATE SET
		   data             = EXCLUDED.data,
		   visible          = EXCLUDED.visible,
		   display_mode     = EXCLUDED.display_mode,
		   group_name       = EXCLUDED.group_name,
		   display_name     = EXCLUDED.display_name,
		   time_window      = EXCLUDED.time_window,
		   weather          = EXCLUDED.weather,
		   radius_x         = EXCLUDED.radius_x,
		   radius_y         = EXCLUDED.radius_y,
		   radius_z         = EXCLUDED.radius_z,
		   capacity         = EXCLUDED.capacity,
		   detection_radius = EXCLUDED.detection_radius,
		   updated_at       = now()`,
		rec.Key, rec.Data, rec.Visible, rec.DisplayMode,
		rec.Properties.Group, rec.Properties.DisplayName,
		rec.Properties.TimeWindow, rec.Properties.Weather,
		rec.Properties.RadiusX, rec.Properties.RadiusY, rec.Properties.RadiusZ,
		rec.Properties.Capacity, rec.Properties.DetectionRadius)
	if err != nil {
		return fmt.Errorf("upsert spawner %q: %w", rec.Key, err)
	}
	return nil
}

// SaveAll replaces the full snapshot with the given records.
// Performs full replace: deletes all existing rows, then inserts new ones via COPY.
func (r *SpawnerRepository) SaveAll(ctx context.Context, recs []spawn.Record) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && err.Error() != "tx is closed" {
			slog.Error("rollback failed", "error", err)
		}
	}()

	if _, err := tx.Exec(ctx, `DELETE FROM spawners`); err != nil {
		return fmt.Errorf("deleting old spawner rows: %w", err)
	}

	if len(recs) > 0 {
		rows := make([][]any, 0, len(recs))
		for _, rec := range recs {
			rows = append(rows, []any{
				rec.Key, rec.Data, rec.Visible, rec.DisplayMode,
				rec.Properties.Group, rec.Properties.DisplayName,
				rec.Properties.TimeWindow, rec.Properties.Weather,
				rec.Properties.RadiusX, rec.Properties.RadiusY, rec.Properties.RadiusZ,
				rec.Properties.Capacity, rec.Properties.DetectionRadius,
			})
		}

		if _, err := tx.CopyFrom(ctx,
			pgx.Identifier{"spawners"},
			spawnerColumns,
			pgx.CopyFromRows(rows),
		); err != nil {
			return fmt.Errorf("inserting spawner rows: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	slog.Debug("saved spawner snapshot", "count", len(recs))

	return nil
}

// Delete removes the record for key. Missing keys are not an error.
func (r *SpawnerRepository) Delete(ctx context.Context, key string) error {
	if _, err := r.pool.Exec(ctx,
		`DELETE FROM spawners WHERE key = $1`, key); err != nil {
		return fmt.Errorf("delete spawner %q: %w", key, err)
	}
	return nil
}
