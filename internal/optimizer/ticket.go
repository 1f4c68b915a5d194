// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package optimizer

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"seedfast/querygate/internal/query"
)

var (
	quotedRe     = regexp.MustCompile(`"(?:[^"\\]|\\.)*"|'(?:[^'\\]|\\.)*'`)
	projectRe    = regexp.MustCompile(`(?i)\bproject\b`)
	slowFieldRe  = regexp.MustCompile(`(?i)\b(labels|description|comment|text)\b`)
	slowFuncRe   = regexp.MustCompile(`(?i)\b(portfolioChildIssuesOf|issueFunction)\b`)
	broadFieldRe = regexp.MustCompile(`(?i)\b(assignee|reporter|status)\b`)
	connectiveRe = regexp.MustCompile(`(?i)\b(and|or)\b`)
)

const maxClauses = 3

// TicketSuggestions applies static cost heuristics to a JQL query. Quoted literals
// are ignored so that a search term never triggers a field or keyword rule.
func TicketSuggestions(jql string) []string {
	bare := quotedRe.ReplaceAllString(jql, `""`)
	var out []string

	scoped := projectRe.MatchString(bare)
	if !scoped {
		out = append(out, "Add `project = X` or `project in (...)` to reduce the search scope.")
	}

	for _, f := range distinctLower(slowFieldRe.FindAllString(bare, -1)) {
		out = append(out, fmt.Sprintf("Field `%s` is expensive to search; avoid or replace it if possible.", f))
	}
	for _, f := range distinctLower(slowFuncRe.FindAllString(bare, -1)) {
		out = append(out, fmt.Sprintf("Function `%s` is expensive; consider alternatives to recursive structures.", f))
	}

	and, or := topLevelConnectives(bare)
	if and > 0 && or > 0 {
		out = append(out, "AND and OR are mixed at the top level; use OR at the top level and group AND clauses in parentheses.")
	}

	if !scoped {
		for _, f := range distinctLower(broadFieldRe.FindAllString(bare, -1)) {
			out = append(out, fmt.Sprintf("Filtering by %s without a project scope may be slow.", f))
		}
	}

	if clauses := len(connectiveRe.FindAllString(bare, -1)) + 1; clauses > maxClauses {
		out = append(out, fmt.Sprintf("The query has %d clauses; build it clause by clause to find the slow part.", clauses))
	}
	return out
}

// topLevelConnectives counts AND and OR keywords outside any parentheses.
func topLevelConnectives(s string) (and, or int) {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
			continue
		case ')':
			if depth > 0 {
				depth--
			}
			continue
		}
		if depth > 0 || (i > 0 && isWordByte(s[i-1])) {
			continue
		}
		switch {
		case hasWordAt(s, i, "and"):
			and++
		case hasWordAt(s, i, "or"):
			or++
		}
	}
	return and, or
}

func hasWordAt(s string, i int, word string) bool {
	end := i + len(word)
	if end > len(s) || !strings.EqualFold(s[i:end], word) {
		return false
	}
	return end == len(s) || !isWordByte(s[end])
}

func isWordByte(b byte) bool {
	return b == '_' || b >= '0' && b <= '9' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z'
}

func distinctLower(in []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, s := range in {
		s = strings.ToLower(s)
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func (d *Dispatcher) optimizeTicket(ctx context.Context, q string) Result {
	suggestions := TicketSuggestions(q)
	advice := "No issues found."
	if len(suggestions) > 0 {
		advice = strings.Join(suggestions, "\n")
	}
	rewritten, err := d.rewrite(ctx, query.Ticket, rewritePrompt(query.Ticket, q, "Optimization suggestions", advice))
	if err != nil {
		return failed(query.Ticket, suggestions, StageGeneration, err)
	}
	return Result{Type: query.Ticket, Query: rewritten, Advisory: suggestions}
}
