// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package pipeline turns a natural-language question into a safe, optimized query.
//
// A run moves through a fixed sequence of states:
//
//	start → classified → generated → validated → optimized → done
//
// Every arrow is exactly one component call. Any failure, refusal or denial
// moves the run to aborted and no further component is invoked. The caller always
// receives an Outcome that is either done or aborted; Run returns an error only for
// caller contract violations such as an empty question or a missing schema.
//
// Only SQL queries are validated. For metrics and ticket queries the validated
// state is a logged pass-through, and their optimizer rewrites are not re-gated.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"seedfast/querygate/internal/bundle"
	errs "seedfast/querygate/internal/errors"
	"seedfast/querygate/internal/llm"
	"seedfast/querygate/internal/optimizer"
	"seedfast/querygate/internal/policy"
	"seedfast/querygate/internal/query"

	"github.com/google/uuid"
	"github.com/pterm/pterm"
)

// State is a pipeline state.
type State string

const (
	StateStart      State = "start"
	StateClassified State = "classified"
	StateGenerated  State = "generated"
	StateValidated  State = "validated"
	StateOptimized  State = "optimized"
	StateDone       State = "done"
	StateAborted    State = "aborted"
)

// Transition records one state change of a run.
type Transition struct {
	From State     `json:"from" yaml:"from"`
	To   State     `json:"to" yaml:"to"`
	At   time.Time `json:"at" yaml:"at"`
}

// Optimizer rewrites a validated query.
type Optimizer interface {
	Optimize(ctx context.Context, t query.Type, q string, caller policy.Level) (optimizer.Result, error)
}

// Request is one question asked under a caller clearance.
type Request struct {
	Question string
	Level    policy.Level
}

// Outcome is the terminal result of a run. State is StateDone or StateAborted.
// When aborted, Stage is the state the run failed to reach.
type Outcome struct {
	RunID string     `json:"run_id" yaml:"run_id"`
	State State      `json:"state" yaml:"state"`
	Type  query.Type `json:"query_type,omitempty" yaml:"query_type,omitempty"`
	// Query is the optimized query when done.
	Query string `json:"query,omitempty" yaml:"query,omitempty"`
	// Generated is the query as generated, before optimization.
	Generated string   `json:"generated,omitempty" yaml:"generated,omitempty"`
	Advisory  []string `json:"advisory,omitempty" yaml:"advisory,omitempty"`

	Stage  State     `json:"stage,omitempty" yaml:"stage,omitempty"`
	Reason errs.Kind `json:"reason,omitempty" yaml:"reason,omitempty"`
	// Step names the optimizer step that failed when Stage is StateOptimized.
	Step   optimizer.Stage `json:"step,omitempty" yaml:"step,omitempty"`
	Detail string          `json:"detail,omitempty" yaml:"detail,omitempty"`

	Trace   []Transition  `json:"trace" yaml:"trace"`
	Elapsed time.Duration `json:"elapsed" yaml:"elapsed"`
}

// Done reports whether the run produced a query.
func (o Outcome) Done() bool { return o.State == StateDone }

// Config wires a Coordinator.
type Config struct {
	Generator llm.Generator
	Validator optimizer.Validator
	Optimizer Optimizer
	Bundle    *bundle.Bundle
	Logger    *pterm.Logger
	// Metrics is optional.
	Metrics *Metrics
}

// Coordinator runs the pipeline. It holds only read-only collaborators and is
// safe for concurrent runs.
type Coordinator struct {
	classifier *Classifier
	generator  *Generator
	validator  optimizer.Validator
	optimizer  Optimizer
	bundle     *bundle.Bundle
	logger     *pterm.Logger
	metrics    *Metrics
}

// New creates a Coordinator.
func New(cfg Config) *Coordinator {
	logger := cfg.Logger
	if logger == nil {
		logger = pterm.DefaultLogger.WithLevel(pterm.LogLevelDisabled)
	}
	return &Coordinator{
		classifier: NewClassifier(cfg.Generator),
		generator:  NewGenerator(cfg.Generator),
		validator:  cfg.Validator,
		optimizer:  cfg.Optimizer,
		bundle:     cfg.Bundle,
		logger:     logger,
		metrics:    cfg.Metrics,
	}
}

// run is the accumulator owned by a single Run call. Once terminal is set no
// other field is written.
type run struct {
	id       string
	question string
	level    policy.Level
	started  time.Time
	state    State
	trace    []Transition
	logger   *pterm.Logger

	qtype     query.Type
	generated string
	advisory  []string
	optimized string

	terminal bool
	stage    State
	reason   errs.Kind
	step     optimizer.Stage
	detail   string
}

func (r *run) advance(to State) {
	if r.terminal {
		return
	}
	r.trace = append(r.trace, Transition{From: r.state, To: to, At: time.Now()})
	r.logger.Debug("stage transition",
		r.logger.Args("run_id", r.id, "from", string(r.state), "to", string(to), "query_type", r.qtype.String()))
	r.state = to
}

func (r *run) abort(stage State, reason errs.Kind, detail string) {
	if r.terminal {
		return
	}
	r.advance(StateAborted)
	r.terminal = true
	r.stage, r.reason, r.detail = stage, reason, detail
	r.logger.Info("run aborted",
		r.logger.Args("run_id", r.id, "stage", string(stage), "reason", string(reason), "query_type", r.qtype.String()))
}

// abortErr aborts with the kind carried by err. Errors without a kind come from
// a collaborator that failed in an unclassified way.
func (r *run) abortErr(stage State, err error) {
	kind := errs.KindOf(err)
	if kind == "" {
		kind = errs.CollaboratorUnavailable
	}
	r.abort(stage, kind, err.Error())
}

// cancelled aborts the run if ctx is done. It is checked before every stage.
func (r *run) cancelled(ctx context.Context, next State) bool {
	if err := ctx.Err(); err != nil {
		r.abort(next, errs.Cancelled, err.Error())
		return true
	}
	return false
}

func (r *run) outcome() Outcome {
	o := Outcome{
		RunID:     r.id,
		State:     r.state,
		Type:      r.qtype,
		Generated: r.generated,
		Advisory:  r.advisory,
		Trace:     r.trace,
		Elapsed:   time.Since(r.started),
	}
	if r.terminal {
		o.Stage, o.Reason, o.Step, o.Detail = r.stage, r.reason, r.step, r.detail
	} else {
		o.Query = r.optimized
	}
	return o
}

// Run executes one pipeline run.
func (c *Coordinator) Run(ctx context.Context, req Request) (Outcome, error) {
	r := &run{
		id:       uuid.NewString(),
		question: req.Question,
		level:    req.Level,
		started:  time.Now(),
		state:    StateStart,
		logger:   c.logger,
	}
	err := c.execute(ctx, r)
	if err != nil {
		c.logger.Error("caller contract violation", c.logger.Args("run_id", r.id, "error", err.Error()))
		return Outcome{}, err
	}
	out := r.outcome()
	if c.metrics != nil {
		c.metrics.observe(out)
	}
	return out, nil
}

// execute drives r to a terminal state. Only contract violations are returned.
func (c *Coordinator) execute(ctx context.Context, r *run) error {
	if c.bundle == nil {
		return errs.New(errs.CallerContractViolation, "no bundle configured")
	}

	// start → classified
	if r.cancelled(ctx, StateClassified) {
		return nil
	}
	t, err := c.classifier.Classify(ctx, r.question, c.bundle.Routing)
	if err != nil {
		if errs.Is(err, errs.CallerContractViolation) {
			return err
		}
		r.abortErr(StateClassified, err)
		return nil
	}
	if t == query.Unroutable {
		r.abort(StateClassified, errs.UnroutableQuestion, "question does not map to sql, metrics or ticket")
		return nil
	}
	r.qtype = t
	schema, ok := c.bundle.Schema(t)
	if !ok {
		r.abort(StateClassified, errs.UnroutableQuestion, fmt.Sprintf("question maps to %s, which has no schema configured", t))
		return nil
	}
	r.advance(StateClassified)

	// classified → generated
	if r.cancelled(ctx, StateGenerated) {
		return nil
	}
	gen, err := c.generator.Generate(ctx, r.question, t, schema)
	if err != nil {
		if errs.Is(err, errs.CallerContractViolation) {
			return err
		}
		r.abortErr(StateGenerated, err)
		return nil
	}
	if gen.Refused {
		r.abort(StateGenerated, errs.CollaboratorRefused, "generation declined")
		return nil
	}
	r.generated = gen.Query
	r.advance(StateGenerated)

	// generated → validated
	if r.cancelled(ctx, StateValidated) {
		return nil
	}
	switch t {
	case query.SQL:
		if v := c.validator.Validate(r.generated, r.level); !v.Allowed {
			r.abort(StateValidated, v.Reason, v.Detail)
			return nil
		}
	case query.Metrics, query.Ticket:
		c.logger.Debug("validation pass-through", c.logger.Args("run_id", r.id, "query_type", t.String()))
	default:
		return errs.New(errs.CallerContractViolation, fmt.Sprintf("no validation scope for query type %q", string(t)))
	}
	r.advance(StateValidated)

	// validated → optimized
	if r.cancelled(ctx, StateOptimized) {
		return nil
	}
	res, err := c.optimizer.Optimize(ctx, t, r.generated, r.level)
	if err != nil {
		return err
	}
	r.advisory = res.Advisory
	if !res.Succeeded() {
		r.step = res.Failed.Stage
		r.abort(StateOptimized, res.Failed.Reason, fmt.Sprintf("%s: %s", res.Failed.Stage, res.Failed.Detail))
		return nil
	}
	r.optimized = res.Query
	r.advance(StateOptimized)

	// optimized → done
	r.advance(StateDone)
	r.logger.Info("run done", r.logger.Args("run_id", r.id, "query_type", t.String(), "elapsed", time.Since(r.started).Round(time.Millisecond)))
	return nil
}
