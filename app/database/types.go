package database

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"

	"github.com/mlesyk/gradpipe/app/cfg"
)

// DB wraps the shared connection pool so repositories, migrations and the
// seed loader operate on a single handle.
type DB struct {
	*sql.DB
}

// Querier is the subset of database/sql operations shared by *sql.DB and
// *sql.Tx, allowing repositories to run standalone or inside a transaction.
type Querier interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

var _ Querier = (*sql.DB)(nil)
var _ Querier = (*sql.Tx)(nil)

// NewConnection opens a PostgreSQL connection pool and verifies it with a ping
func NewConnection() (*DB, error) {
	db, err := sql.Open("postgres", buildDSN(cfg.Get()))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &DB{db}, nil
}

// buildDSN assembles a lib/pq connection string, preferring DATABASE_URL over
// the individual DB_* settings.
func buildDSN(c *cfg.Cfg) string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}

	params := []string{
		"host=" + c.DBHost,
		"port=" + c.DBPort,
		"user=" + c.DBUser,
		"dbname=" + c.DBName,
		"sslmode=disable",
	}
	if c.DBPassword != "" {
		params = append(params, "password="+c.DBPassword)
	}

	return strings.Join(params, " ")
}
