// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package optimizer

import (
	"context"

	errs "seedfast/querygate/internal/errors"
	"seedfast/querygate/internal/policy"
	"seedfast/querygate/internal/query"
)

func (d *Dispatcher) optimizeSQL(ctx context.Context, q string, caller policy.Level) Result {
	if d.planner == nil {
		return failed(query.SQL, nil, StageAdvisory, errs.New(errs.CollaboratorUnavailable, "no database configured for execution plans"))
	}

	planCtx, cancel := context.WithTimeout(ctx, d.timeouts.Plan)
	plan, err := d.planner.Plan(planCtx, q)
	cancel()
	if err != nil {
		return failed(query.SQL, nil, StageAdvisory, errs.FromCall(ctx, "explain", err))
	}
	advisory := []string{plan}

	rewritten, err := d.rewrite(ctx, query.SQL, rewritePrompt(query.SQL, q, "Execution plan", plan))
	if err != nil {
		return failed(query.SQL, advisory, StageGeneration, err)
	}

	if v := d.validator.Validate(rewritten, caller); !v.Allowed {
		d.logger.Warn("optimizer rewrite rejected", d.logger.Args("reason", string(v.Reason), "detail", v.Detail))
		return Result{
			Type:     query.SQL,
			Query:    rewritten,
			Advisory: advisory,
			Failed: &Failure{
				Stage:  StageRevalidation,
				Reason: errs.UnsafeOptimizationResult,
				Detail: string(v.Reason) + ": " + v.Detail,
			},
		}
	}
	return Result{Type: query.SQL, Query: rewritten, Advisory: advisory}
}
