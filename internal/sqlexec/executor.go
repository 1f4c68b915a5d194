// Package sqlexec runs read-only work against PostgreSQL over a pgx connection pool.
// It supplies the execution plans the SQL optimizer relies on, executes final queries
// inside read-only transactions, times queries for benchmarking, and describes the
// database schema for query generation.
//
// Key features include:
//   - EXPLAIN (FORMAT JSON) plans without executing the statement
//   - Read-only transactions for every statement, always rolled back
//   - JSON result formatting with proper type handling
//   - Support for PostgreSQL-specific data types (UUIDs, byte arrays, etc.)
package sqlexec

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pterm/pterm"
)

// Result represents a normalized SQL result for JSON marshaling.
type Result struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
	Error   string   `json:"error,omitempty"`
}

// MarshalJSON implements custom JSON marshaling for Result to handle pgx types properly.
func (r Result) MarshalJSON() ([]byte, error) {
	type Alias Result
	a := Alias(r)

	if len(r.Rows) > 0 {
		serializableRows := make([][]any, len(r.Rows))
		for i, row := range r.Rows {
			serializableRows[i] = make([]any, len(row))
			for j, val := range row {
				serializableRows[i][j] = jsonValue(val)
			}
		}
		a.Rows = serializableRows
	}
	return json.Marshal(a)
}

// jsonValue converts pgx values that encoding/json renders poorly.
func jsonValue(val any) any {
	switch v := val.(type) {
	case []byte:
		if len(v) == 16 {
			return formatUUID(v)
		}
		return fmt.Sprintf("\\x%x", v)
	case [16]byte:
		return formatUUID(v[:])
	default:
		return v
	}
}

func formatUUID(v []byte) string {
	return fmt.Sprintf("%x-%x-%x-%x-%x", v[0:4], v[4:6], v[6:8], v[8:10], v[10:16])
}

// Executor runs statements using a connection pool. Every statement runs inside a
// read-only transaction that is rolled back afterwards.
type Executor struct {
	// Pool is the PostgreSQL connection pool
	Pool   *pgxpool.Pool
	logger *pterm.Logger
}

// New creates an Executor from an existing pgx pool.
func New(pool *pgxpool.Pool, logger *pterm.Logger) *Executor {
	if logger == nil {
		logger = pterm.DefaultLogger.WithLevel(pterm.LogLevelDisabled)
	}
	return &Executor{Pool: pool, logger: logger}
}

// readOnly runs fn in a read-only transaction and always rolls it back.
func (e *Executor) readOnly(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := e.Pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return fmt.Errorf("begin read-only transaction: %w", err)
	}
	defer tx.Rollback(ctx)
	return fn(tx)
}

// Plan returns the EXPLAIN (FORMAT JSON) output for sql. The statement is planned,
// not executed.
func (e *Executor) Plan(ctx context.Context, sql string) (string, error) {
	var plan string
	err := e.readOnly(ctx, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, "EXPLAIN (FORMAT JSON) "+sql).Scan(&plan)
	})
	if err != nil {
		return "", fmt.Errorf("explain: %w", err)
	}
	e.logger.Debug("execution plan", e.logger.Args("bytes", len(plan)))
	return plan, nil
}

// Query runs sql read-only and collects at most limit rows (0 means no limit).
func (e *Executor) Query(ctx context.Context, sql string, limit int) (Result, error) {
	res := Result{Columns: []string{}, Rows: [][]any{}}
	err := e.readOnly(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, sql)
		if err != nil {
			return err
		}
		defer rows.Close()

		for _, fd := range rows.FieldDescriptions() {
			res.Columns = append(res.Columns, fd.Name)
		}
		for rows.Next() {
			if limit > 0 && len(res.Rows) >= limit {
				break
			}
			vals, err := rows.Values()
			if err != nil {
				return err
			}
			res.Rows = append(res.Rows, vals)
		}
		return rows.Err()
	})
	if err != nil {
		res.Error = err.Error()
		return res, fmt.Errorf("query: %w", err)
	}
	e.logger.Debug("query executed", e.logger.Args("columns", len(res.Columns), "rows", len(res.Rows)))
	return res, nil
}
