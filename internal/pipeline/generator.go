// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package pipeline

import (
	"context"
	"fmt"
	"strings"

	errs "seedfast/querygate/internal/errors"
	"seedfast/querygate/internal/llm"
	"seedfast/querygate/internal/policy"
	"seedfast/querygate/internal/query"
)

// Generated is the output of Generator.Generate. Refused means the collaborator
// emitted the abort token and Query is empty.
type Generated struct {
	Query   string
	Refused bool
}

// Generator writes a query for a classified question.
type Generator struct {
	gen llm.Generator
}

// NewGenerator creates a Generator backed by gen.
func NewGenerator(gen llm.Generator) *Generator {
	return &Generator{gen: gen}
}

func generateSystem(t query.Type) string {
	rules := ""
	if t == query.SQL {
		rules = "Write exactly one read-only SELECT statement without comments or a trailing semicolon. Select only the columns the question needs.\n"
	}
	return fmt.Sprintf(`You are a query generator for %s.
Respond ONLY with the query. %sRespond with %q if the question cannot be answered from the schema or should not be answered.

%s`, t.Language(), rules, llm.AbortToken, policy.SensitivityTemplate)
}

// Generate produces a query of type t for question. A missing schema or an
// unroutable type is a caller contract violation.
func (g *Generator) Generate(ctx context.Context, question string, t query.Type, schema string) (Generated, error) {
	if !t.Valid() {
		return Generated{}, errs.New(errs.CallerContractViolation, fmt.Sprintf("cannot generate a query of type %q", t.String()))
	}
	if strings.TrimSpace(schema) == "" {
		return Generated{}, errs.New(errs.CallerContractViolation, fmt.Sprintf("no schema for query type %s", t))
	}

	reply, err := g.gen.Complete(ctx, llm.Prompt{
		Task:        "generate-" + string(t),
		System:      generateSystem(t),
		Instruction: "Generate the query that answers the question.",
		Context: []llm.Field{
			{Name: "Question", Value: question},
			{Name: "Schema", Value: schema},
			{Name: "Query type", Value: t.Language()},
		},
	})
	if err != nil {
		return Generated{}, err
	}
	if reply.Refused {
		return Generated{Refused: true}, nil
	}

	q := query.Normalize(t, reply.Text)
	if q == "" {
		return Generated{}, errs.New(errs.MalformedQuery, "collaborator returned an empty query")
	}
	return Generated{Query: q}, nil
}
