// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package bundle loads the routing description and per-language schemas that
// classification and generation are grounded on.
package bundle

import (
	"strings"

	"seedfast/querygate/internal/query"
)

// File is the on-disk bundle descriptor. Paths are relative to the descriptor.
type File struct {
	Version int    `yaml:"version"`
	Routing string `yaml:"routing"`
	Schemas struct {
		SQL     string `yaml:"sql"`
		Metrics string `yaml:"metrics"`
		Ticket  string `yaml:"ticket"`
	} `yaml:"schemas"`
}

// Bundle is the loaded, read-only content of a bundle file.
type Bundle struct {
	// Routing describes which backend covers which kind of question.
	Routing string
	schemas map[query.Type]string
	// derived marks Routing as generated from the schemas present.
	derived bool
}

// New builds a Bundle from in-memory content. Empty schemas are treated as absent.
// An empty routing is replaced by DefaultRouting over the types that have a schema.
func New(routing string, schemas map[query.Type]string) *Bundle {
	b := &Bundle{Routing: routing, schemas: make(map[query.Type]string, len(schemas))}
	for t, s := range schemas {
		if s != "" {
			b.schemas[t] = s
		}
	}
	if strings.TrimSpace(routing) == "" {
		b.Routing = DefaultRouting(b.Types()...)
		b.derived = true
	}
	return b
}

// Schema returns the schema text for t.
func (b *Bundle) Schema(t query.Type) (string, bool) {
	if b == nil {
		return "", false
	}
	s, ok := b.schemas[t]
	return s, ok
}

// WithSchema returns a copy of b with the schema for t replaced.
func (b *Bundle) WithSchema(t query.Type, schema string) *Bundle {
	schemas := make(map[query.Type]string, len(b.schemas)+1)
	for k, v := range b.schemas {
		schemas[k] = v
	}
	schemas[t] = schema
	routing := b.Routing
	if b.derived {
		routing = ""
	}
	return New(routing, schemas)
}

// WithRouting returns a copy of b with routing replaced.
func (b *Bundle) WithRouting(routing string) *Bundle {
	return New(routing, b.schemas)
}

// Types lists the query types that have a schema, in canonical order.
func (b *Bundle) Types() []query.Type {
	var out []query.Type
	for _, t := range query.Types {
		if _, ok := b.Schema(t); ok {
			out = append(out, t)
		}
	}
	return out
}

var defaultRoutes = map[query.Type]string{
	query.SQL:     "sql: the relational application database (customers, accounts, orders, usage and billing records).",
	query.Metrics: "metrics: Prometheus time series about services and infrastructure (request rates, latencies, errors, resource usage).",
	query.Ticket:  "ticket: the Jira issue tracker (bugs, incidents, tasks, their assignees, status and projects).",
}

// DefaultRouting describes the given types, for bundles that name no routing file.
func DefaultRouting(types ...query.Type) string {
	var lines []string
	for _, t := range query.Types {
		for _, want := range types {
			if t == want {
				lines = append(lines, defaultRoutes[t])
				break
			}
		}
	}
	if len(lines) == 0 {
		return "No data sources are configured."
	}
	return strings.Join(lines, "\n")
}
