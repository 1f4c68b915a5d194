// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package optimizer

import (
	errs "seedfast/querygate/internal/errors"
	"seedfast/querygate/internal/query"
)

// Stage names the step of a strategy that failed.
type Stage string

const (
	StageAdvisory     Stage = "advisory-retrieval"
	StageGeneration   Stage = "generation"
	StageRevalidation Stage = "re-validation"
)

// Failure describes why a strategy did not produce a query.
type Failure struct {
	Stage  Stage
	Reason errs.Kind
	Detail string
}

// Result is the outcome of one optimization. Failed is nil on success, in which
// case Query holds the rewritten query.
type Result struct {
	Type  query.Type
	Query string
	// Advisory is the data the rewrite was informed by: the plan JSON for SQL,
	// the suggestions for metrics and ticket queries.
	Advisory []string
	Failed   *Failure
}

// Succeeded reports whether the strategy produced a query.
func (r Result) Succeeded() bool { return r.Failed == nil }

func failed(t query.Type, advisory []string, stage Stage, err error) Result {
	reason := errs.KindOf(err)
	if reason == "" {
		reason = errs.CollaboratorUnavailable
	}
	return Result{Type: t, Advisory: advisory, Failed: &Failure{Stage: stage, Reason: reason, Detail: err.Error()}}
}
