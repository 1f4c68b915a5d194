// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package dsn resolves and normalizes the PostgreSQL connection string querygate
// uses for execution plans, read-only execution and schema introspection.
package dsn

import (
	"fmt"
	"strings"
)

// DBType is the database family named by a DSN scheme.
type DBType string

const (
	DBTypePostgreSQL DBType = "postgresql"
	DBTypeMySQL      DBType = "mysql"
	DBTypeOracle     DBType = "oracle"
	DBTypeUnknown    DBType = "unknown"
)

// DetectDBType detects the database type from a DSN's scheme.
func DetectDBType(dsn string) DBType {
	scheme, _, ok := strings.Cut(strings.ToLower(strings.TrimSpace(dsn)), "://")
	if !ok {
		return DBTypeUnknown
	}
	switch scheme {
	case "postgres", "postgresql":
		return DBTypePostgreSQL
	case "mysql":
		return DBTypeMySQL
	case "oracle":
		return DBTypeOracle
	}
	return DBTypeUnknown
}

// Info is a parsed PostgreSQL DSN. Password is kept as given, unescaped.
type Info struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	Params   map[string]string
}

// ParseError represents an error that occurred during DSN parsing.
// It never includes the DSN itself, which may carry a password.
type ParseError struct {
	Reason string
	Hint   string
}

func (e *ParseError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("invalid DSN format: %s\nHint: %s", e.Reason, e.Hint)
	}
	return fmt.Sprintf("invalid DSN format: %s", e.Reason)
}

func parseError(reason, hint string) *ParseError {
	return &ParseError{Reason: reason, Hint: hint}
}
