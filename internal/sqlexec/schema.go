// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package sqlexec

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Column describes one table column.
type Column struct {
	Name     string
	DataType string
	Nullable bool
	// EnumValues lists the allowed values extracted from a CHECK constraint, if any.
	EnumValues []string
}

// TableInfo holds the columns of one table in ordinal order.
type TableInfo struct {
	Schema  string
	Name    string
	Columns []Column
}

// SchemaInspector provides database schema inspection and caching capabilities.
// It queries information_schema and caches results per schema name, so a schema is
// read from the database at most once per process.
type SchemaInspector struct {
	// pool is the connection pool for executing schema queries
	pool *pgxpool.Pool
	// cache stores table information keyed by schema name
	cache map[string][]TableInfo
	// mu protects concurrent access to the cache
	mu sync.RWMutex
}

// NewSchemaInspector creates a new SchemaInspector with the given connection pool.
func NewSchemaInspector(pool *pgxpool.Pool) *SchemaInspector {
	return &SchemaInspector{
		pool:  pool,
		cache: make(map[string][]TableInfo),
	}
}

// Tables retrieves or caches the tables of a schema. An empty schema means "public".
func (si *SchemaInspector) Tables(ctx context.Context, schema string) ([]TableInfo, error) {
	if schema == "" {
		schema = "public"
	}

	si.mu.RLock()
	if tables, ok := si.cache[schema]; ok {
		si.mu.RUnlock()
		return tables, nil
	}
	si.mu.RUnlock()

	conn, err := si.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	tables, err := loadColumns(ctx, conn, schema)
	if err != nil {
		return nil, err
	}

	// Non-fatal: enum annotations are a hint for generation only.
	if enums, err := loadCheckConstraints(ctx, conn, schema); err == nil {
		applyEnums(tables, enums)
	}

	si.mu.Lock()
	si.cache[schema] = tables
	si.mu.Unlock()
	return tables, nil
}

// Describe renders a schema as text suitable for a generation prompt.
func (si *SchemaInspector) Describe(ctx context.Context, schema string) (string, error) {
	tables, err := si.Tables(ctx, schema)
	if err != nil {
		return "", err
	}
	if len(tables) == 0 {
		return "", fmt.Errorf("schema %q has no tables", schema)
	}
	return FormatTables(tables), nil
}

// ClearCache clears all cached schema information.
func (si *SchemaInspector) ClearCache() {
	si.mu.Lock()
	defer si.mu.Unlock()
	si.cache = make(map[string][]TableInfo)
}

// FormatTables renders one line per table: name(column type, ...).
func FormatTables(tables []TableInfo) string {
	var b strings.Builder
	for i, t := range tables {
		if i > 0 {
			b.WriteByte('\n')
		}
		name := t.Name
		if t.Schema != "" && t.Schema != "public" {
			name = t.Schema + "." + t.Name
		}
		b.WriteString(name)
		b.WriteByte('(')
		for j, c := range t.Columns {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteString(c.Name)
			b.WriteByte(' ')
			b.WriteString(c.DataType)
			if !c.Nullable {
				b.WriteString(" not null")
			}
			if len(c.EnumValues) > 0 {
				b.WriteString(" one of ")
				b.WriteString(strings.Join(c.EnumValues, "|"))
			}
		}
		b.WriteByte(')')
	}
	return b.String()
}

func loadColumns(ctx context.Context, conn *pgxpool.Conn, schema string) ([]TableInfo, error) {
	rows, err := conn.Query(ctx, `
		SELECT c.table_name, c.column_name, c.data_type, c.is_nullable = 'YES'
		FROM information_schema.columns c
		JOIN information_schema.tables t
		  ON t.table_schema = c.table_schema AND t.table_name = c.table_name
		WHERE c.table_schema = $1 AND t.table_type IN ('BASE TABLE', 'VIEW')
		ORDER BY c.table_name, c.ordinal_position`, schema)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []TableInfo
	for rows.Next() {
		var table string
		var col Column
		if err := rows.Scan(&table, &col.Name, &col.DataType, &col.Nullable); err != nil {
			return nil, err
		}
		if n := len(tables); n == 0 || tables[n-1].Name != table {
			tables = append(tables, TableInfo{Schema: schema, Name: table})
		}
		last := &tables[len(tables)-1]
		last.Columns = append(last.Columns, col)
	}
	return tables, rows.Err()
}

// loadCheckConstraints returns "table.column" -> check clause for single-column CHECK constraints.
func loadCheckConstraints(ctx context.Context, conn *pgxpool.Conn, schema string) (map[string]string, error) {
	rows, err := conn.Query(ctx, `
		SELECT ccu.table_name, ccu.column_name, cc.check_clause
		FROM information_schema.check_constraints cc
		JOIN information_schema.constraint_column_usage ccu
		  ON ccu.constraint_schema = cc.constraint_schema AND ccu.constraint_name = cc.constraint_name
		WHERE cc.constraint_schema = $1`, schema)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var table, column, clause string
		if err := rows.Scan(&table, &column, &clause); err == nil {
			out[table+"."+column] = clause
		}
	}
	return out, rows.Err()
}

func applyEnums(tables []TableInfo, clauses map[string]string) {
	for i := range tables {
		for j := range tables[i].Columns {
			c := &tables[i].Columns[j]
			if clause, ok := clauses[tables[i].Name+"."+c.Name]; ok {
				c.EnumValues = extractEnumValues(clause)
			}
		}
	}
}

var (
	inListRe   = regexp.MustCompile(`(?i)IN\s*\(\s*([^)]+)\)`)
	anyArrayRe = regexp.MustCompile(`(?i)=\s*ANY\s*\(\s*\(?\s*ARRAY\s*\[([^\]]+)\]`)
)

// extractEnumValues extracts enum values from a check constraint clause.
// It supports patterns like:
//   - "status IN ('queued','running','done','failed')"
//   - "status = ANY (ARRAY['queued'::text, 'running'::text, ...])"
func extractEnumValues(checkClause string) []string {
	if match := inListRe.FindStringSubmatch(checkClause); len(match) > 1 {
		return parseEnumValueList(match[1])
	}
	if match := anyArrayRe.FindStringSubmatch(checkClause); len(match) > 1 {
		return parseEnumValueList(match[1])
	}
	return nil
}

// parseEnumValueList parses a comma-separated list of enum values.
// It handles both single and double quotes and trims whitespace.
func parseEnumValueList(valueList string) []string {
	var result []string
	for _, val := range strings.Split(valueList, ",") {
		val = strings.TrimSpace(val)
		// Remove type casts like ::text
		if idx := strings.Index(val, "::"); idx >= 0 {
			val = val[:idx]
		}
		val = strings.Trim(strings.TrimSpace(val), "'\"()")
		if val != "" {
			result = append(result, val)
		}
	}
	return result
}
