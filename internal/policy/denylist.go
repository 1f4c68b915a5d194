// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package policy

import "strings"

// DefaultBanned is the built-in banned-construct list. Matching is a case-insensitive
// substring test, so "update" also rejects an "updated_at" column. That is accepted:
// a false deny costs a regeneration, a false allow costs data.
var DefaultBanned = []string{
	// schema mutation
	"drop",
	"alter",
	"update",
	"delete",
	"insert",
	"create",
	"truncate",
	"replace",
	"rename",

	// privileges and execution
	"grant",
	"revoke",
	"execute",
	"exec",
	"call",

	// injection markers
	"union select",
	"sleep",
	"benchmark",
	"--",
	"#",
	"/*",
	"*/",
	";",

	// file and server access
	"into outfile",
	"into dumpfile",
	"load_file",
	"pg_read_file",
	"pg_ls_dir",
	"copy ",

	// transaction control
	"begin",
	"commit",
	"rollback",
}

// scanBanned returns the first banned construct found in q, or "".
// Whitespace runs are collapsed first so "UNION   SELECT" still matches.
func scanBanned(q string, banned []string) string {
	lower := strings.ToLower(strings.Join(strings.Fields(q), " "))
	for _, phrase := range banned {
		if strings.Contains(lower, phrase) {
			return phrase
		}
	}
	return ""
}
