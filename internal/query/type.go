// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package query defines the closed set of query languages a question can be routed to.
package query

import "strings"

// Type enumerates the supported query languages. Unroutable is the sentinel for
// questions no backend can answer.
type Type string

const (
	Unroutable Type = ""
	SQL        Type = "sql"
	Metrics    Type = "metrics"
	Ticket     Type = "ticket"
)

// Types lists every routable type in a stable order.
var Types = []Type{SQL, Metrics, Ticket}

// aliases maps the tags a classifier may emit onto a Type.
var aliases = map[string]Type{
	"sql":     SQL,
	"promql":  Metrics,
	"pql":     Metrics,
	"metrics": Metrics,
	"jql":     Ticket,
	"jiraql":  Ticket,
	"ticket":  Ticket,
}

// Parse maps a tag onto a Type. Tags are matched case-insensitively after trimming
// whitespace, quotes and trailing punctuation. Anything unknown yields Unroutable.
func Parse(tag string) Type {
	tag = strings.ToLower(strings.TrimSpace(tag))
	tag = strings.Trim(tag, "\"'`.!:; ")
	if t, ok := aliases[tag]; ok {
		return t
	}
	return Unroutable
}

// Valid reports whether t is a routable type.
func (t Type) Valid() bool {
	switch t {
	case SQL, Metrics, Ticket:
		return true
	}
	return false
}

// Language returns the name of the concrete language a backend speaks.
func (t Type) Language() string {
	switch t {
	case SQL:
		return "SQL (PostgreSQL dialect)"
	case Metrics:
		return "PromQL"
	case Ticket:
		return "JQL"
	}
	return "unroutable"
}

func (t Type) String() string {
	if t == Unroutable {
		return "unroutable"
	}
	return string(t)
}

// Normalize trims surrounding whitespace from generated text. For SQL it also drops
// a single trailing statement terminator, which the validator would otherwise reject.
func Normalize(t Type, text string) string {
	text = strings.TrimSpace(text)
	if t == SQL {
		text = strings.TrimSpace(strings.TrimSuffix(text, ";"))
	}
	return text
}
