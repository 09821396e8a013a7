package database

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/mlesyk/gradpipe/app/metrics"
	"github.com/mlesyk/gradpipe/app/normalize"
)

// Insert in batches of 500 so one bad row only costs that batch a retry,
// not the entire dataset.
const seedBatchSize = 500

// Seeder populates the main table from a JSON dump when it is empty,
// typically on the first startup against a fresh database. It bypasses the
// task queue and commits per batch.
type Seeder struct {
	db            *DB
	watermarkRepo WatermarkRepository
	table         string
	idKey         string
	insertSQL     string
}

// NewSeeder creates a seed loader writing to table, deduplicating by idKey.
func NewSeeder(db *DB, watermarkRepo WatermarkRepository, table, idKey string) *Seeder {
	return &Seeder{
		db:            db,
		watermarkRepo: watermarkRepo,
		table:         table,
		idKey:         idKey,
		insertSQL:     insertAdmissionSQL(table),
	}
}

// Run loads the seed file at path. A missing file or an already populated
// table skips the load so the worker can start without a seed volume mounted.
func (s *Seeder) Run(path string) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		slog.Info("Seed file not readable, skipping", "path", path, "error", err)
		return nil
	}

	count, err := s.tableCount()
	if err != nil {
		return fmt.Errorf("failed to count existing rows: %w", err)
	}
	if count > 0 {
		slog.Info("Table already populated, skipping seed", "table", s.table, "rows", count)
		return s.ensureWatermark(path)
	}

	records := parseSeedRecords(data)
	if len(records) == 0 {
		slog.Warn("No records parsed from seed file", "path", path)
		return nil
	}

	existing, err := s.existingIDs()
	if err != nil {
		return fmt.Errorf("failed to get existing ids: %w", err)
	}

	var fresh []normalize.RawRecord
	for _, raw := range records {
		id := seedID(raw, s.idKey)
		if id == "" {
			continue
		}
		if _, ok := existing[id]; ok {
			continue
		}
		fresh = append(fresh, raw)
	}
	if len(fresh) == 0 {
		slog.Info("All seed records already present, skipping", "path", path)
		return nil
	}

	var rows []normalize.Record
	for _, raw := range fresh {
		rec, err := normalize.Normalize(raw)
		if err != nil {
			slog.Warn("Skipping seed record", "error", err)
			continue
		}
		rows = append(rows, *rec)
	}

	inserted := 0
	for start := 0; start < len(rows); start += seedBatchSize {
		end := start + seedBatchSize
		if end > len(rows) {
			end = len(rows)
		}
		batch := rows[start:end]

		n, err := s.insertBatch(batch)
		if err != nil {
			slog.Warn("Seed batch failed, retrying row by row", "start", start, "end", end, "error", err)
			n = s.insertRows(batch)
		}
		inserted += n
	}

	metrics.RowsInserted.WithLabelValues("seed").Add(float64(inserted))
	slog.Info("Seed complete", "inserted", inserted, "total", len(rows), "path", path)

	if err := s.watermarkRepo.SetWatermark(SourceSeed, path); err != nil {
		return fmt.Errorf("failed to set seed watermark: %w", err)
	}

	return nil
}

func (s *Seeder) tableCount() (int, error) {
	var count int
	err := s.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", s.table)).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// ensureWatermark records a seed watermark for data loaded before the
// watermark table existed, so the status surface shows a timestamp.
func (s *Seeder) ensureWatermark(path string) error {
	wm, err := s.watermarkRepo.GetWatermark(SourceSeed)
	if err != nil {
		return fmt.Errorf("failed to check seed watermark: %w", err)
	}
	if wm != nil {
		return nil
	}

	slog.Info("Recording watermark for pre-existing seed data", "path", path)
	return s.watermarkRepo.SetWatermark(SourceSeed, path)
}

func (s *Seeder) existingIDs() (map[string]struct{}, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s IS NOT NULL", s.idKey, s.table, s.idKey)
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = struct{}{}
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return ids, nil
}

// insertBatch stores one batch in a single transaction. On failure the whole
// batch rolls back and the caller falls through to insertRows.
func (s *Seeder) insertBatch(batch []normalize.Record) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}

	for _, rec := range batch {
		if _, err := tx.Exec(s.insertSQL, recordArgs(rec)...); err != nil {
			tx.Rollback()
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit batch: %w", err)
	}

	return len(batch), nil
}

// insertRows stores records one transaction each, skipping failures.
func (s *Seeder) insertRows(batch []normalize.Record) int {
	inserted := 0
	for _, rec := range batch {
		tx, err := s.db.Begin()
		if err != nil {
			slog.Warn("Skipping seed row", "error", err)
			continue
		}

		if _, err := tx.Exec(s.insertSQL, recordArgs(rec)...); err != nil {
			tx.Rollback()
			slog.Warn("Skipping seed row", "error", err)
			continue
		}

		if err := tx.Commit(); err != nil {
			slog.Warn("Skipping seed row", "error", err)
			continue
		}
		inserted++
	}

	return inserted
}

// parseSeedRecords decodes a JSON array, a single JSON object, or
// newline-delimited JSON with unparseable lines skipped.
func parseSeedRecords(data []byte) []normalize.RawRecord {
	trimmed := bytes.TrimSpace(data)

	var records []normalize.RawRecord
	if err := json.Unmarshal(trimmed, &records); err == nil {
		return records
	}

	var single normalize.RawRecord
	if err := json.Unmarshal(trimmed, &single); err == nil {
		return []normalize.RawRecord{single}
	}

	var out []normalize.RawRecord
	for _, line := range strings.Split(string(trimmed), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var rec normalize.RawRecord
		if err := json.Unmarshal([]byte(line), &rec); err == nil {
			out = append(out, rec)
		}
	}

	return out
}

// seedID extracts the natural key from a raw record, trying the configured
// key in lower, Capitalized and UPPER casings since historical dumps disagree
// on key case.
func seedID(raw normalize.RawRecord, idKey string) string {
	for _, key := range []string{idKey, capitalize(idKey), strings.ToUpper(idKey)} {
		if v, ok := raw[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
