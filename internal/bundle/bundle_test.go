// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package bundle

import (
	"os"
	"strings"
	"path/filepath"
	"testing"

	"seedfast/querygate/internal/query"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeBundle(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
	}
	return filepath.Join(dir, "bundle.yaml")
}

func TestLoad(t *testing.T) {
	path := writeBundle(t, map[string]string{
		"bundle.yaml": "version: 1\nrouting: routing.txt\nschemas:\n  sql: schema.sql\n  ticket: jira.txt\n",
		"routing.txt": "sql: customers\n",
		"schema.sql":  "customers(id integer, name text, storage bigint)\n",
		"jira.txt":    "fields: project, status, assignee",
	})

	b, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sql: customers", b.Routing)

	s, ok := b.Schema(query.SQL)
	assert.True(t, ok)
	assert.Equal(t, "customers(id integer, name text, storage bigint)", s)

	_, ok = b.Schema(query.Metrics)
	assert.False(t, ok)
	assert.Equal(t, []query.Type{query.SQL, query.Ticket}, b.Types())
}

func TestLoad_DefaultRouting(t *testing.T) {
	path := writeBundle(t, map[string]string{
		"bundle.yaml": "schemas:\n  metrics: prom.txt\n",
		"prom.txt":    "http_requests_total{job,status}",
	})
	b, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultRouting(query.Metrics), b.Routing)
	assert.Contains(t, b.Routing, "metrics:")
	assert.NotContains(t, b.Routing, "sql:")
	assert.NotContains(t, b.Routing, "ticket:")
}

func TestDefaultRouting(t *testing.T) {
	all := DefaultRouting(query.Ticket, query.SQL, query.Metrics)
	lines := strings.Split(all, "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "sql:"))
	assert.True(t, strings.HasPrefix(lines[2], "ticket:"))

	assert.Equal(t, "No data sources are configured.", DefaultRouting())
}

func TestDerivedRoutingFollowsSchemas(t *testing.T) {
	b := New("", nil)
	assert.Equal(t, DefaultRouting(), b.Routing)

	c := b.WithSchema(query.SQL, "t(a int)")
	assert.Equal(t, DefaultRouting(query.SQL), c.Routing)

	d := c.WithRouting("sql: only the warehouse")
	assert.Equal(t, "sql: only the warehouse", d.Routing)
	assert.Equal(t, "sql: only the warehouse", d.WithSchema(query.Ticket, "jql").Routing)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
	}{
		{name: "missing descriptor", files: map[string]string{}},
		{name: "missing schema file", files: map[string]string{"bundle.yaml": "schemas:\n  sql: nope.sql\n"}},
		{name: "empty schema file", files: map[string]string{"bundle.yaml": "schemas:\n  sql: s.sql\n", "s.sql": "  \n"}},
		{name: "future version", files: map[string]string{"bundle.yaml": "version: 2\n"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeBundle(t, tt.files))
			assert.Error(t, err)
		})
	}
}

func TestGet_LoadsOnce(t *testing.T) {
	reset()
	t.Cleanup(reset)

	first := writeBundle(t, map[string]string{"bundle.yaml": "schemas:\n  sql: a.sql\n", "a.sql": "a(x int)"})
	second := writeBundle(t, map[string]string{"bundle.yaml": "schemas:\n  sql: b.sql\n", "b.sql": "b(y int)"})

	b1, err := Get(first)
	require.NoError(t, err)
	b2, err := Get(second)
	require.NoError(t, err)

	assert.Same(t, b1, b2)
	assert.Equal(t, first, LoadedFrom())
}

func TestNilBundleHasNoSchema(t *testing.T) {
	var b *Bundle
	_, ok := b.Schema(query.SQL)
	assert.False(t, ok)
}

func TestWithSchema(t *testing.T) {
	b := New("r", map[query.Type]string{query.Ticket: "jql"})
	c := b.WithSchema(query.SQL, "t(a int)")

	_, ok := b.Schema(query.SQL)
	assert.False(t, ok)
	s, ok := c.Schema(query.SQL)
	assert.True(t, ok)
	assert.Equal(t, "t(a int)", s)
	assert.Equal(t, "r", c.Routing)
}
