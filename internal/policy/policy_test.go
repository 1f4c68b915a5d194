// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package policy

import (
	"strings"
	"testing"

	errs "seedfast/querygate/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// alternateCase upper-cases every other rune so casing variants are exercised
// deterministically.
func alternateCase(s string, startUpper bool) string {
	var b strings.Builder
	upper := startUpper
	for _, r := range s {
		if upper {
			b.WriteString(strings.ToUpper(string(r)))
		} else {
			b.WriteString(strings.ToLower(string(r)))
		}
		upper = !upper
	}
	return b.String()
}

func TestValidate_BannedConstructAnyCasingAnyLevel(t *testing.T) {
	p := New()
	for _, phrase := range p.Banned() {
		for _, variant := range []string{
			phrase,
			strings.ToUpper(phrase),
			alternateCase(phrase, true),
			alternateCase(phrase, false),
		} {
			q := "SELECT name FROM customers WHERE note = '" + variant + "'"
			for lvl := Public; lvl <= Critical+1; lvl++ {
				v := p.Validate(q, lvl)
				require.False(t, v.Allowed, "query %q at level %s", q, lvl)
				require.Equal(t, errs.BannedConstruct, v.Reason, "query %q", q)
			}
		}
	}
}

func TestValidate_Scenarios(t *testing.T) {
	p := New()

	tests := []struct {
		name    string
		query   string
		caller  Level
		allowed bool
		reason  errs.Kind
	}{
		{
			name:    "public fields only",
			query:   "SELECT company, storage_gb FROM usage ORDER BY storage_gb DESC LIMIT 2",
			caller:  Public,
			allowed: true,
		},
		{
			name:   "drop table",
			query:  "DROP TABLE Users",
			caller: Critical,
			reason: errs.BannedConstruct,
		},
		{
			name:   "password below clearance",
			query:  "SELECT username, password FROM Users WHERE 1 = 1",
			caller: Restricted,
			reason: errs.InsufficientClearance,
		},
		{
			name:    "password with critical clearance",
			query:   "SELECT username, password FROM Users WHERE 1 = 1",
			caller:  Critical,
			allowed: true,
		},
		{
			name:   "column alias does not hide the underlying column",
			query:  "SELECT c.email AS contact FROM customers c",
			caller: Internal,
			reason: errs.InsufficientClearance,
		},
		{
			name:   "star projection covers sensitive columns",
			query:  "SELECT * FROM users",
			caller: Public,
			reason: errs.InsufficientClearance,
		},
		{
			name:    "count star is not a projection",
			query:   "SELECT count(*) FROM users",
			caller:  Public,
			allowed: true,
		},
		{
			name:   "whole-row alias reference",
			query:  "SELECT u FROM users u",
			caller: Public,
			reason: errs.InsufficientClearance,
		},
		{
			name:   "whole-row table reference",
			query:  "SELECT users FROM users",
			caller: Public,
			reason: errs.InsufficientClearance,
		},
		{
			name:   "whole row passed to a function",
			query:  "SELECT row_to_json(u) FROM users u",
			caller: Restricted,
			reason: errs.InsufficientClearance,
		},
		{
			name:    "whole row with critical clearance",
			query:   "SELECT row_to_json(u) FROM users u",
			caller:  Critical,
			allowed: true,
		},
		{
			name:   "unparseable query",
			query:  "SELEC name FRM customers",
			caller: Critical,
			reason: errs.MalformedQuery,
		},
		{
			name:   "union injection with extra whitespace",
			query:  "SELECT name FROM customers UNION   SELECT password FROM users",
			caller: Critical,
			reason: errs.BannedConstruct,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := p.Validate(tt.query, tt.caller)
			assert.Equal(t, tt.allowed, v.Allowed, v.Detail)
			assert.Equal(t, tt.reason, v.Reason)
		})
	}
}

func TestValidate_AllowsWhenEveryFieldWithinClearance(t *testing.T) {
	p := New()
	queries := map[string]Level{
		"SELECT company FROM usage":                                  Public,
		"SELECT ticket FROM errors":                                  Internal,
		"SELECT u.username, u.email FROM users u":                    Restricted,
		"SELECT username, password FROM users WHERE username = 'ab'": Critical,
	}
	for q, required := range queries {
		for caller := required; caller <= Critical+2; caller++ {
			v := p.Validate(q, caller)
			assert.True(t, v.Allowed, "query %q at %s: %s", q, caller, v.Detail)
			assert.Equal(t, required, v.Required)
		}
	}
}

func TestAuthorize_Deterministic(t *testing.T) {
	p := New(WithSensitivity(map[string]Level{"orders.total": Internal}))
	fields, err := ExtractFields("SELECT o.total, c.email, * FROM orders o JOIN customers c ON o.customer_id = c.id")
	require.NoError(t, err)

	first := p.Authorize(fields, Internal)
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, p.Authorize(fields, Internal))
	}
	assert.False(t, first.Allowed)
}

func TestAuthorize_TableQualifiedEntries(t *testing.T) {
	p := New(WithSensitivity(map[string]Level{"Customers.Notes": Restricted}))
	assert.Equal(t, Restricted, p.RequiredLevel("customers.notes"))
	assert.Equal(t, Public, p.RequiredLevel("notes"))

	v := p.Validate("SELECT t.notes FROM customers t", Internal)
	assert.False(t, v.Allowed)
	assert.Equal(t, errs.InsufficientClearance, v.Reason)
	assert.Contains(t, v.Detail, "customers.notes")

	v = p.Validate("SELECT notes FROM customers", Internal)
	assert.False(t, v.Allowed, "unqualified column resolves to the only table in scope")

	v = p.Validate("SELECT notes FROM orders", Public)
	assert.True(t, v.Allowed, v.Detail)
}

func TestAuthorize_AliasReusedInSubquery(t *testing.T) {
	p := New(WithSensitivity(map[string]Level{"users.salary": Critical}))
	q := "SELECT a.salary FROM users a WHERE EXISTS (SELECT 1 FROM logs a)"

	fields, err := ExtractFields(q)
	require.NoError(t, err)
	assert.Equal(t, []FieldRef{{Table: "logs", Column: "salary"}, {Table: "users", Column: "salary"}}, fields.Refs)

	v := p.Validate(q, Public)
	assert.False(t, v.Allowed)
	assert.Equal(t, errs.InsufficientClearance, v.Reason)
	assert.Contains(t, v.Detail, "users.salary")
}

func TestExtractFields_WholeRow(t *testing.T) {
	fields, err := ExtractFields("SELECT row_to_json(u), name FROM users u")
	require.NoError(t, err)
	assert.Equal(t, []FieldRef{{Table: "users", Star: true}, {Column: "name"}}, fields.Refs)
}

func TestRequiredLevel_UnknownFieldIsPublic(t *testing.T) {
	p := New()
	assert.Equal(t, Public, p.RequiredLevel("storage_gb"))
	assert.Equal(t, Critical, p.RequiredLevel(" PASSWORD "))
}

func TestWithBanned(t *testing.T) {
	p := New(WithBanned("  PG_SLEEP ", ""))
	v := p.Validate("SELECT pg_sleep(10)", Critical)
	assert.Equal(t, errs.BannedConstruct, v.Reason)
	assert.Len(t, p.Banned(), len(DefaultBanned)+1)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{in: "public", want: Public},
		{in: "Restricted", want: Restricted},
		{in: "critical", want: Critical},
		{in: "5", want: Level(5)},
		{in: "-1", wantErr: true},
		{in: "secret", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
