// Package database provides the SQLite execution engine, schema
// introspection, migrations, and demo data seeding.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	apperrors "github.com/querypilot/querypilot/internal/errors"
	"github.com/querypilot/querypilot/internal/observability"
)

// Guard validates SQL before the engine will run it.
// The engine re-checks every statement even when callers validated already.
type Guard interface {
	Validate(sql string) error
}

// ResultSet is a fully materialized query result with column order preserved
type ResultSet struct {
	Columns   []string        `json:"columns"`
	Rows      [][]interface{} `json:"rows"`
	RowCount  int             `json:"row_count"`
	Truncated bool            `json:"truncated,omitempty"`
}

// Engine runs read-only queries against the SQLite sales database
type Engine struct {
	db      *sql.DB
	guard   Guard
	maxRows int
	logger  *observability.Logger
}

// EngineConfig holds engine construction options
type EngineConfig struct {
	Path         string
	MaxOpenConns int
	BusyTimeout  time.Duration
	MaxRows      int
}

// NewEngine opens the SQLite database and configures the connection pool
func NewEngine(cfg EngineConfig, guard Guard) (*Engine, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)", cfg.Path, cfg.BusyTimeout.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, apperrors.NewDatabaseConnectionError(err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	maxRows := cfg.MaxRows
	if maxRows <= 0 {
		maxRows = 1000
	}

	return &Engine{
		db:      db,
		guard:   guard,
		maxRows: maxRows,
		logger:  observability.NewLogger("database"),
	}, nil
}

// DB exposes the underlying pool for migrations and seeding
func (e *Engine) DB() *sql.DB {
	return e.db
}

// Ping verifies database connectivity
func (e *Engine) Ping(ctx context.Context) error {
	if err := e.db.PingContext(ctx); err != nil {
		return apperrors.NewDatabaseConnectionError(err)
	}
	return nil
}

// Close closes the connection pool
func (e *Engine) Close() error {
	return e.db.Close()
}

// RunQuery executes a SELECT statement and materializes the full result.
// The statement is validated again here regardless of what callers did.
func (e *Engine) RunQuery(ctx context.Context, sqlText string) (*ResultSet, error) {
	start := time.Now()

	if e.guard != nil {
		if err := e.guard.Validate(sqlText); err != nil {
			return nil, err
		}
	}

	// Trailing semicolons are legal but kept out of the driver call
	sqlToRun := strings.TrimSuffix(strings.TrimSpace(sqlText), ";")
	if sqlToRun == "" {
		return nil, apperrors.NewUnsafeSQLError("empty SQL statement")
	}

	// Each query runs on its own connection, released on every path
	conn, err := e.db.Conn(ctx)
	if err != nil {
		return nil, apperrors.NewDatabaseConnectionError(err)
	}
	defer conn.Close()

	rows, err := conn.QueryContext(ctx, sqlToRun)
	if err != nil {
		observability.RecordDBMetrics("query", time.Since(start), 0, err)
		return nil, apperrors.NewQueryExecutionError(err, sqlText)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, apperrors.NewQueryExecutionError(err, sqlText)
	}

	result := &ResultSet{
		Columns: columns,
		Rows:    make([][]interface{}, 0),
	}

	for rows.Next() {
		if len(result.Rows) >= e.maxRows {
			result.Truncated = true
			break
		}

		values := make([]interface{}, len(columns))
		pointers := make([]interface{}, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}

		if err := rows.Scan(pointers...); err != nil {
			return nil, apperrors.NewQueryExecutionError(err, sqlText)
		}

		row := make([]interface{}, len(columns))
		for i, v := range values {
			// SQLite TEXT columns come back as []byte from the driver
			if b, ok := v.([]byte); ok {
				row[i] = string(b)
			} else {
				row[i] = v
			}
		}
		result.Rows = append(result.Rows, row)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.NewQueryExecutionError(err, sqlText)
	}

	result.RowCount = len(result.Rows)

	duration := time.Since(start)
	observability.RecordDBMetrics("query", duration, result.RowCount, nil)
	e.logger.Debug(ctx, "Query executed", map[string]interface{}{
		"rows":        result.RowCount,
		"truncated":   result.Truncated,
		"duration_ms": duration.Milliseconds(),
	})

	return result, nil
}
