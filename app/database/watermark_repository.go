package database

import (
	"database/sql"
	"fmt"
)

var _ WatermarkRepository = (*watermarkRepository)(nil)

// watermarkRepository handles database operations for ingestion watermarks
type watermarkRepository struct {
	db Querier
}

// NewWatermarkRepository creates a watermark repository bound to db, which
// may be the shared pool or an open transaction.
func NewWatermarkRepository(db Querier) WatermarkRepository {
	return &watermarkRepository{db: db}
}

// GetWatermark retrieves the watermark for a source, or nil when none exists
func (r *watermarkRepository) GetWatermark(source string) (*Watermark, error) {
	var wm Watermark
	err := r.db.QueryRow(`
		SELECT source, last_seen, updated_at
		FROM ingestion_watermarks
		WHERE source = $1
	`, source).Scan(&wm.Source, &wm.LastSeen, &wm.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get watermark: %w", err)
	}

	return &wm, nil
}

// GetAllWatermarks returns every recorded watermark ordered by source
func (r *watermarkRepository) GetAllWatermarks() ([]Watermark, error) {
	rows, err := r.db.Query(`
		SELECT source, last_seen, updated_at
		FROM ingestion_watermarks
		ORDER BY source
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get watermarks: %w", err)
	}
	defer rows.Close()

	var watermarks []Watermark
	for rows.Next() {
		var wm Watermark
		if err := rows.Scan(&wm.Source, &wm.LastSeen, &wm.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan watermark row: %w", err)
		}
		watermarks = append(watermarks, wm)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating watermark rows: %w", err)
	}

	return watermarks, nil
}

// TouchWatermark upserts a watermark, keeping the stored last_seen when
// lastSeen is nil so a touch never erases the marker
func (r *watermarkRepository) TouchWatermark(source string, lastSeen *string) error {
	_, err := r.db.Exec(`
		INSERT INTO ingestion_watermarks (source, last_seen, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (source) DO UPDATE
		SET last_seen  = COALESCE(EXCLUDED.last_seen, ingestion_watermarks.last_seen),
		    updated_at = now()
	`, source, lastSeen)

	if err != nil {
		return fmt.Errorf("failed to touch watermark: %w", err)
	}

	return nil
}

// SetWatermark upserts a watermark, overwriting last_seen unconditionally
func (r *watermarkRepository) SetWatermark(source, lastSeen string) error {
	_, err := r.db.Exec(`
		INSERT INTO ingestion_watermarks (source, last_seen, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (source) DO UPDATE
		SET last_seen = EXCLUDED.last_seen, updated_at = now()
	`, source, lastSeen)

	if err != nil {
		return fmt.Errorf("failed to set watermark: %w", err)
	}

	return nil
}
