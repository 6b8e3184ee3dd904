// Package history records run summaries in a SQL database so results can be
// compared across runs. Postgres, MySQL and SQL Server are supported.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	_ "github.com/denisenkom/go-mssqldb" // for sqlserver
	_ "github.com/go-sql-driver/mysql"   // for mysql
	_ "github.com/lib/pq"                // for postgres
)

// DBConfig holds database connection configuration
type DBConfig struct {
	Type     string
	Host     string
	Port     int
	Database string
	User     string
	Password string
	Table    string
}

// Record is the summary of one run
type Record struct {
	RunID        string
	StartedAt    time.Time
	Duration     time.Duration
	BaseURL      string
	Successful   int
	Failed       int
	Incomplete   int
	Duplicates   int
	CatalogCount int
	LedgerCount  int
	Regressions  int
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var columns = []string{
	"run_id", "started_at", "duration_ms", "base_url",
	"successful", "failed", "incomplete", "duplicates",
	"catalog_count", "ledger_count", "regressions",
}

// Store reads and writes run records
type Store struct {
	db    *sql.DB
	kind  string
	table string
}

// DSN builds the driver connection string for cfg
func DSN(cfg DBConfig) (string, error) {
	switch cfg.Type {
	case "postgres":
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database), nil
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
			cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database), nil
	case "sqlserver":
		return fmt.Sprintf("server=%s;port=%d;user id=%s;password=%s;database=%s",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database), nil
	default:
		return "", fmt.Errorf("unsupported database type: %s", cfg.Type)
	}
}

// Open connects to the configured database, checks the connection and
// creates the table if needed
func Open(ctx context.Context, cfg DBConfig) (*Store, error) {
	dsn, err := DSN(cfg)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(cfg.Type, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to history database: %w", err)
	}

	store, err := NewStore(db, cfg.Type, cfg.Table)
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := store.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewStore wraps an open database. kind selects the SQL dialect.
func NewStore(db *sql.DB, kind, table string) (*Store, error) {
	switch kind {
	case "postgres", "mysql", "sqlserver":
	default:
		return nil, fmt.Errorf("unsupported database type: %s", kind)
	}
	if !identifierPattern.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Store{db: db, kind: kind, table: table}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createTableSQL() string {
	var timeType, textType string
	switch s.kind {
	case "postgres":
		timeType, textType = "TIMESTAMPTZ", "TEXT"
	case "mysql":
		timeType, textType = "DATETIME(6)", "VARCHAR(2048)"
	case "sqlserver":
		timeType, textType = "DATETIME2", "NVARCHAR(2048)"
	}
	body := fmt.Sprintf(`%s (
	run_id VARCHAR(36) PRIMARY KEY,
	started_at %s NOT NULL,
	duration_ms BIGINT NOT NULL,
	base_url %s NOT NULL,
	successful INT NOT NULL,
	failed INT NOT NULL,
	incomplete INT NOT NULL,
	duplicates INT NOT NULL,
	catalog_count INT NOT NULL,
	ledger_count INT NOT NULL,
	regressions INT NOT NULL
)`, s.table, timeType, textType)

	if s.kind == "sqlserver" {
		return fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NULL CREATE TABLE %s", s.table, body)
	}
	return "CREATE TABLE IF NOT EXISTS " + body
}

// EnsureSchema creates the history table if it does not exist
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.createTableSQL()); err != nil {
		return fmt.Errorf("failed to create history table: %w", err)
	}
	return nil
}

func (s *Store) bind(n int) string {
	switch s.kind {
	case "postgres":
		return fmt.Sprintf("$%d", n)
	case "sqlserver":
		return fmt.Sprintf("@p%d", n)
	default:
		return "?"
	}
}

func (s *Store) insertSQL() string {
	binds := make([]string, len(columns))
	for i := range columns {
		binds[i] = s.bind(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		s.table, strings.Join(columns, ", "), strings.Join(binds, ", "))
}

func (s *Store) recentSQL() string {
	cols := strings.Join(columns, ", ")
	if s.kind == "sqlserver" {
		return fmt.Sprintf("SELECT TOP (%s) %s FROM %s ORDER BY started_at DESC", s.bind(1), cols, s.table)
	}
	return fmt.Sprintf("SELECT %s FROM %s ORDER BY started_at DESC LIMIT %s", cols, s.table, s.bind(1))
}

// Save inserts a run record
func (s *Store) Save(ctx context.Context, r Record) error {
	_, err := s.db.ExecContext(ctx, s.insertSQL(),
		r.RunID, r.StartedAt.UTC(), r.Duration.Milliseconds(), r.BaseURL,
		r.Successful, r.Failed, r.Incomplete, r.Duplicates,
		r.CatalogCount, r.LedgerCount, r.Regressions,
	)
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", r.RunID, err)
	}
	return nil
}

// Recent returns up to limit records, newest first
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, s.recentSQL(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		var durationMS int64
		if err := rows.Scan(
			&r.RunID, &r.StartedAt, &durationMS, &r.BaseURL,
			&r.Successful, &r.Failed, &r.Incomplete, &r.Duplicates,
			&r.CatalogCount, &r.LedgerCount, &r.Regressions,
		); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		r.Duration = time.Duration(durationMS) * time.Millisecond
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	return records, nil
}
