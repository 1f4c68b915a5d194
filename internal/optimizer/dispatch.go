// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package optimizer rewrites a validated query using backend advisory data.
//
// There is one strategy per query type. The SQL strategy asks the database for a
// plan and re-validates the rewrite; the metrics strategy samples series and sample
// counts from Prometheus; the ticket strategy applies static heuristics. Each one
// hands its advisory data to the text-generation collaborator for the rewrite.
//
// Only the SQL rewrite is re-gated through the validator. Metrics and ticket
// rewrites are returned as produced.
package optimizer

import (
	"context"
	"fmt"
	"time"

	errs "seedfast/querygate/internal/errors"
	"seedfast/querygate/internal/llm"
	"seedfast/querygate/internal/policy"
	"seedfast/querygate/internal/query"

	"github.com/pterm/pterm"
)

// Planner returns an execution plan for a SQL query.
type Planner interface {
	Plan(ctx context.Context, sql string) (string, error)
}

// Aggregation selects which statistic TimeSeries computes for a metric window.
type Aggregation int

const (
	// SeriesCount is count(last_over_time(m[w])): matched series.
	SeriesCount Aggregation = iota
	// SampleCount is sum(count_over_time(m[w])): raw samples scanned.
	SampleCount
)

// Expr renders the aggregation for metric over window.
func (a Aggregation) Expr(metric, window string) string {
	switch a {
	case SampleCount:
		return fmt.Sprintf("sum(count_over_time(%s[%s]))", metric, window)
	default:
		return fmt.Sprintf("count(last_over_time(%s[%s]))", metric, window)
	}
}

// TimeSeries evaluates advisory statistics against a metrics backend.
type TimeSeries interface {
	Aggregate(ctx context.Context, metric, window string, agg Aggregation) (float64, error)
}

// Validator re-gates rewritten SQL.
type Validator interface {
	Validate(q string, caller policy.Level) policy.Verdict
}

// Timeouts bound advisory calls. Zero values fall back to 30 seconds.
type Timeouts struct {
	Plan    time.Duration
	Metrics time.Duration
}

// Dispatcher selects and runs the strategy for a query type.
type Dispatcher struct {
	gen       llm.Generator
	planner   Planner
	series    TimeSeries
	validator Validator
	timeouts  Timeouts
	logger    *pterm.Logger
}

// Config wires a Dispatcher. Planner and Series may be nil when the matching
// backend is not configured; a run that needs one then fails at advisory retrieval.
type Config struct {
	Generator llm.Generator
	Planner   Planner
	Series    TimeSeries
	Validator Validator
	Timeouts  Timeouts
	Logger    *pterm.Logger
}

// New creates a Dispatcher.
func New(cfg Config) *Dispatcher {
	if cfg.Timeouts.Plan <= 0 {
		cfg.Timeouts.Plan = 30 * time.Second
	}
	if cfg.Timeouts.Metrics <= 0 {
		cfg.Timeouts.Metrics = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = pterm.DefaultLogger.WithLevel(pterm.LogLevelDisabled)
	}
	return &Dispatcher{
		gen:       cfg.Generator,
		planner:   cfg.Planner,
		series:    cfg.Series,
		validator: cfg.Validator,
		timeouts:  cfg.Timeouts,
		logger:    cfg.Logger,
	}
}

// Optimize runs the strategy for t. The returned error is reserved for caller
// contract violations; every business failure is reported through Result.Failed.
func (d *Dispatcher) Optimize(ctx context.Context, t query.Type, q string, caller policy.Level) (Result, error) {
	switch t {
	case query.SQL:
		return d.optimizeSQL(ctx, q, caller), nil
	case query.Metrics:
		return d.optimizeMetrics(ctx, q), nil
	case query.Ticket:
		return d.optimizeTicket(ctx, q), nil
	case query.Unroutable:
		return Result{}, errs.New(errs.CallerContractViolation, "optimize called for an unroutable question")
	default:
		return Result{}, errs.New(errs.CallerContractViolation, fmt.Sprintf("no optimizer for query type %q", string(t)))
	}
}

// rewrite asks the collaborator for an optimized query. A refusal is a generation failure.
func (d *Dispatcher) rewrite(ctx context.Context, t query.Type, p llm.Prompt) (string, error) {
	reply, err := d.gen.Complete(ctx, p)
	if err != nil {
		return "", err
	}
	if reply.Refused {
		return "", errs.New(errs.CollaboratorRefused, "optimizer declined to rewrite the query")
	}
	out := query.Normalize(t, reply.Text)
	if out == "" {
		return "", errs.New(errs.MalformedQuery, "optimizer returned an empty query")
	}
	return out, nil
}

func rewritePrompt(t query.Type, q, adviceName, advice string) llm.Prompt {
	return llm.Prompt{
		Task: "optimize-" + string(t),
		System: fmt.Sprintf("You optimize %s queries. Respond ONLY with the optimized query, or the original "+
			"query if it is already optimal. Never add statements that modify data. If you cannot help, respond with %q.",
			t.Language(), llm.AbortToken),
		Instruction: fmt.Sprintf("Optimize the following %s query.", t.Language()),
		Context: []llm.Field{
			{Name: "Query", Value: q},
			{Name: adviceName, Value: advice},
		},
	}
}
