// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"seedfast/querygate/internal/audit"
	"seedfast/querygate/internal/bundle"
	"seedfast/querygate/internal/config"
	"seedfast/querygate/internal/dsn"
	"seedfast/querygate/internal/keychain"
	"seedfast/querygate/internal/llm"
	"seedfast/querygate/internal/logging"
	"seedfast/querygate/internal/optimizer"
	"seedfast/querygate/internal/pipeline"
	"seedfast/querygate/internal/policy"
	"seedfast/querygate/internal/promclient"
	"seedfast/querygate/internal/query"
	"seedfast/querygate/internal/sqlexec"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/pterm/pterm"
)

// apiKeyEnv lists the environment variables consulted per provider before the keychain.
var apiKeyEnv = map[string][]string{
	"anthropic": {"ANTHROPIC_API_KEY"},
	"gemini":    {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
}

// app holds everything a command needs for one process. Fields that depend on an
// unconfigured backend are nil.
type app struct {
	cfg    config.Config
	logger *pterm.Logger
	policy *policy.Policy

	pool     *pgxpool.Pool
	executor *sqlexec.Executor

	gen         llm.Generator
	optimizer   *optimizer.Dispatcher
	metrics     *pipeline.Metrics
	bundle      *bundle.Bundle
	coordinator *pipeline.Coordinator
	audit       *audit.Store
}

// appOptions selects which parts of the app a command needs.
type appOptions struct {
	// pipeline builds the language-model client and the coordinator.
	pipeline bool
	// database connects to PostgreSQL. With required set, a missing DSN is an error.
	database         bool
	databaseRequired bool
	audit            bool
	// registry receives pipeline metrics when non-nil.
	registry prometheus.Registerer
}

// loadConfig reads the config file and applies the persistent flag overrides.
func loadConfig() (config.Config, error) {
	var (
		cfg config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return cfg, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if logFormat != "" {
		cfg.LogFormat = logFormat
	}
	return cfg, nil
}

// updateConfig applies change to the file-backed config, without flag overrides,
// and writes it back.
func updateConfig(change func(*config.Config)) error {
	p := configPath
	if p == "" {
		var err error
		if p, err = config.Path(); err != nil {
			return err
		}
	}
	cfg, err := config.LoadFile(p)
	if err != nil {
		return err
	}
	change(&cfg)
	return config.SaveFile(p, cfg)
}

func openApp(ctx context.Context, opts appOptions) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}
	policyOpts, err := cfg.PolicyOptions()
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger, policy: policy.New(policyOpts...)}

	if opts.database {
		if err := a.connect(ctx, opts.databaseRequired); err != nil {
			a.Close()
			return nil, err
		}
	}
	if opts.pipeline {
		if err := a.buildPipeline(ctx, opts.registry); err != nil {
			a.Close()
			return nil, err
		}
	}
	if opts.audit && cfg.Audit.Enabled {
		p, err := cfg.AuditPath()
		if err == nil {
			a.audit, err = audit.Open(p)
		}
		if err != nil {
			// A broken audit trail never blocks queries.
			logger.Warn("audit trail disabled", logger.Args("error", logging.Mask(err.Error())))
		}
	}
	return a, nil
}

// connect opens the pgx pool from the resolved DSN and verifies it.
func (a *app) connect(ctx context.Context, required bool) error {
	var secrets dsn.SecretLoader
	if km, err := keychain.GetManager(); err == nil {
		secrets = km
	}
	conn, origin, err := dsn.Resolve(os.Getenv, secrets)
	if err != nil {
		if errors.Is(err, dsn.ErrNoDSN) && !required {
			a.logger.Debug("no database configured; SQL optimization will be unavailable")
			return nil
		}
		return err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	pool, err := pgxpool.New(pingCtx, conn)
	if err != nil {
		return fmt.Errorf("failed to create database pool: %s", logging.Mask(err.Error()))
	}
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		if !required {
			a.logger.Warn("database unreachable; SQL optimization will be unavailable",
				a.logger.Args("error", logging.Mask(err.Error())))
			return nil
		}
		return fmt.Errorf("failed to connect to database: %s", logging.Mask(err.Error()))
	}
	a.logger.Debug("database connected", a.logger.Args("dsn_source", string(origin)))
	a.pool = pool
	a.executor = sqlexec.New(pool, a.logger)
	return nil
}

func (a *app) buildPipeline(ctx context.Context, reg prometheus.Registerer) error {
	provider, err := a.provider(ctx)
	if err != nil {
		return err
	}
	a.gen = llm.NewClient(provider, a.cfg.Timeouts.LLM, a.logger)

	b, err := a.loadBundle(ctx)
	if err != nil {
		return err
	}
	a.bundle = b

	optCfg := optimizer.Config{
		Generator: a.gen,
		Validator: a.policy,
		Timeouts:  optimizer.Timeouts{Plan: a.cfg.Timeouts.Plan, Metrics: a.cfg.Timeouts.Metrics},
		Logger:    a.logger,
	}
	if a.executor != nil {
		optCfg.Planner = a.executor
	}
	if a.cfg.Prometheus.URL != "" {
		pc, err := promclient.New(a.cfg.Prometheus.URL, a.logger)
		if err != nil {
			a.logger.Warn("metrics advisory disabled", a.logger.Args("error", err.Error()))
		} else {
			optCfg.Series = pc
		}
	}

	a.optimizer = optimizer.New(optCfg)
	if reg != nil {
		a.metrics = pipeline.NewMetrics(reg)
	}
	a.coordinator = a.coordinatorFor(b)
	return nil
}

// coordinatorFor builds a coordinator over b sharing the app's collaborators.
func (a *app) coordinatorFor(b *bundle.Bundle) *pipeline.Coordinator {
	return pipeline.New(pipeline.Config{
		Generator: a.gen,
		Validator: a.policy,
		Optimizer: a.optimizer,
		Bundle:    b,
		Logger:    a.logger,
		Metrics:   a.metrics,
	})
}

// provider builds the configured language-model provider.
func (a *app) provider(ctx context.Context) (llm.Provider, error) {
	name := a.cfg.LLM.Provider
	key, err := resolveAPIKey(name)
	if err != nil {
		return nil, err
	}
	switch name {
	case "anthropic":
		return llm.NewAnthropicProvider(key, a.cfg.LLM.Model, a.cfg.LLM.MaxTokens), nil
	case "gemini":
		return llm.NewGeminiProvider(ctx, key, a.cfg.LLM.Model, a.cfg.LLM.MaxTokens)
	}
	return nil, fmt.Errorf("unknown llm provider %q", name)
}

// resolveAPIKey returns the provider key from the environment, then the keychain.
func resolveAPIKey(provider string) (string, error) {
	for _, name := range apiKeyEnv[provider] {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			return v, nil
		}
	}
	if km, err := keychain.GetManager(); err == nil {
		if v, err := km.LoadAPIKey(provider); err == nil {
			return v, nil
		}
	}
	return "", fmt.Errorf("no API key for %s; run 'querygate login' or set %s", provider, strings.Join(apiKeyEnv[provider], " or "))
}

// loadBundle loads the configured bundle. Without a SQL schema file the schema is
// introspected from the connected database. Without a routing file the routing
// only describes the types that ended up with a schema.
func (a *app) loadBundle(ctx context.Context) (*bundle.Bundle, error) {
	b := bundle.New("", nil)
	if a.cfg.Bundle != "" {
		loaded, err := bundle.Get(a.cfg.Bundle)
		if err != nil {
			return nil, err
		}
		b = loaded
	}
	if _, ok := b.Schema(query.SQL); !ok && a.pool != nil {
		desc, err := sqlexec.NewSchemaInspector(a.pool).Describe(ctx, a.cfg.DB.Schema)
		if err != nil {
			a.logger.Warn("schema introspection failed", a.logger.Args("schema", a.cfg.DB.Schema, "error", logging.Mask(err.Error())))
		} else {
			b = b.WithSchema(query.SQL, desc)
		}
	}
	a.logger.Debug("bundle ready", a.logger.Args("path", bundle.LoadedFrom(), "types", fmt.Sprint(b.Types())))
	return b, nil
}

// callerLevel parses flag, falling back to the configured caller level.
func (a *app) callerLevel(flag string) (policy.Level, error) {
	if strings.TrimSpace(flag) == "" {
		flag = a.cfg.CallerLevel
	}
	return policy.ParseLevel(flag)
}

// record appends a finished run to the audit trail, if enabled.
func (a *app) record(ctx context.Context, question string, level policy.Level, out pipeline.Outcome) {
	if a.audit == nil {
		return
	}
	r := audit.Record{
		RunID:    out.RunID,
		At:       time.Now(),
		Question: question,
		Level:    level.String(),
		Type:     out.Type.String(),
		State:    string(out.State),
		Stage:    string(out.Stage),
		Reason:   string(out.Reason),
		Query:    out.Query,
		Duration: out.Elapsed,
	}
	if err := a.audit.Append(ctx, r); err != nil {
		a.logger.Warn("failed to write audit record", a.logger.Args("run_id", out.RunID, "error", err.Error()))
	}
}

// Close releases the database pool and audit store.
func (a *app) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
	if a.audit != nil {
		_ = a.audit.Close()
	}
}
