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

// Classifier routes a question to a query type.
type Classifier struct {
	gen llm.Generator
}

// NewClassifier creates a Classifier backed by gen.
func NewClassifier(gen llm.Generator) *Classifier {
	return &Classifier{gen: gen}
}

var classifySystem = fmt.Sprintf(`You are a query classifier. Given a question and routing details, decide which data source answers it.
Respond ONLY with one of: SQL, PromQL, JQL. Respond with %q if the question is unrelated to every data source.

%s`, llm.AbortToken, policy.SensitivityTemplate)

// Classify returns the type for question, or query.Unroutable when the collaborator
// refuses or answers with an unknown tag. An empty question is a caller contract
// violation; collaborator failures are returned with their error kind.
func (c *Classifier) Classify(ctx context.Context, question, routing string) (query.Type, error) {
	if strings.TrimSpace(question) == "" {
		return query.Unroutable, errs.New(errs.CallerContractViolation, "question must not be empty")
	}

	reply, err := c.gen.Complete(ctx, llm.Prompt{
		Task:        "classify",
		System:      classifySystem,
		Instruction: "Classify the data source of this question.",
		Context: []llm.Field{
			{Name: "Question", Value: question},
			{Name: "Routing details", Value: routing},
		},
	})
	if err != nil {
		return query.Unroutable, err
	}
	if reply.Refused {
		return query.Unroutable, nil
	}
	return query.Parse(firstLine(reply.Text)), nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
