package database

import (
	"database/sql"
	"fmt"

	"github.com/mlesyk/gradpipe/app/normalize"
)

var _ AdmissionRepository = (*admissionRepository)(nil)

// admissionRepository handles database operations for admission records
type admissionRepository struct {
	db Querier
}

// NewAdmissionRepository creates an admission repository bound to db, which
// may be the shared pool or an open transaction.
func NewAdmissionRepository(db Querier) AdmissionRepository {
	return &admissionRepository{db: db}
}

// insertAdmissionSQL builds the admission insert statement for a table. The
// seed loader reuses it with a configurable target table.
func insertAdmissionSQL(table string) string {
	return fmt.Sprintf(`
		INSERT INTO %s (
			program, comments, date_added, url, status, term, us_or_international,
			gpa, gre, gre_v, gre_aw, degree, llm_generated_program,
			llm_generated_university, raw_data
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT DO NOTHING
	`, table)
}

var insertGradcafeSQL = insertAdmissionSQL("gradcafe_main")

// recordArgs flattens a normalized record into insert parameters. The raw
// JSON backup is passed as text so it casts to the JSONB column.
func recordArgs(rec normalize.Record) []any {
	var raw any
	if len(rec.RawData) > 0 {
		raw = string(rec.RawData)
	}

	return []any{
		rec.Program, rec.Comments, rec.DateAdded, rec.URL, rec.Status, rec.Term,
		rec.USOrInternational, rec.GPA, rec.GRE, rec.GREVerbal, rec.GREWriting,
		rec.Degree, rec.LLMProgram, rec.LLMUniversity, raw,
	}
}

// GetExistingURLs returns the set of result URLs already stored
func (r *admissionRepository) GetExistingURLs() (map[string]struct{}, error) {
	rows, err := r.db.Query("SELECT url FROM gradcafe_main WHERE url IS NOT NULL")
	if err != nil {
		return nil, fmt.Errorf("failed to get existing URLs: %w", err)
	}
	defer rows.Close()

	urls := make(map[string]struct{})
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, fmt.Errorf("failed to scan URL row: %w", err)
		}
		urls[url] = struct{}{}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating URL rows: %w", err)
	}

	return urls, nil
}

// GetRecordCount returns the total number of stored records
func (r *admissionRepository) GetRecordCount() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM gradcafe_main").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get record count: %w", err)
	}
	return count, nil
}

// GetMaxDateAdded returns the newest date_added among rows with a URL, as
// text, or nil when the table holds no such rows
func (r *admissionRepository) GetMaxDateAdded() (*string, error) {
	var maxDate sql.NullString
	err := r.db.QueryRow("SELECT MAX(date_added::text) FROM gradcafe_main WHERE url IS NOT NULL").Scan(&maxDate)
	if err != nil {
		return nil, fmt.Errorf("failed to get max date added: %w", err)
	}

	if !maxDate.Valid {
		return nil, nil
	}
	return &maxDate.String, nil
}

// InsertRecords stores normalized records. Callers pre-filter against
// GetExistingURLs; the ON CONFLICT guard only backstops races.
func (r *admissionRepository) InsertRecords(records []normalize.Record) error {
	for _, rec := range records {
		if _, err := r.db.Exec(insertGradcafeSQL, recordArgs(rec)...); err != nil {
			return fmt.Errorf("failed to insert record: %w", err)
		}
	}
	return nil
}

// Analyze refreshes planner statistics for the main table
func (r *admissionRepository) Analyze() error {
	if _, err := r.db.Exec("ANALYZE gradcafe_main"); err != nil {
		return fmt.Errorf("failed to analyze table: %w", err)
	}
	return nil
}
