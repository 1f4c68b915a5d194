// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package promclient evaluates advisory statistics against a Prometheus-compatible
// HTTP API (Prometheus, VictoriaMetrics, Thanos).
package promclient

import (
	"context"
	"fmt"
	"time"

	"seedfast/querygate/internal/optimizer"

	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
	"github.com/pterm/pterm"
)

// Client implements optimizer.TimeSeries.
type Client struct {
	api    v1.API
	logger *pterm.Logger
}

// New creates a client for the API at address, e.g. http://localhost:9090.
func New(address string, logger *pterm.Logger) (*Client, error) {
	if address == "" {
		return nil, fmt.Errorf("prometheus address is required")
	}
	c, err := api.NewClient(api.Config{Address: address})
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus client: %w", err)
	}
	if logger == nil {
		logger = pterm.DefaultLogger.WithLevel(pterm.LogLevelDisabled)
	}
	return &Client{api: v1.NewAPI(c), logger: logger}, nil
}

// Aggregate runs the instant query for agg over metric[window] and returns its value.
// An empty result counts as zero.
func (c *Client) Aggregate(ctx context.Context, metric, window string, agg optimizer.Aggregation) (float64, error) {
	expr := agg.Expr(metric, window)
	c.logger.Debug("prometheus query", c.logger.Args("expr", expr))

	val, warnings, err := c.api.Query(ctx, expr, time.Now())
	if err != nil {
		return 0, fmt.Errorf("query %s: %w", expr, err)
	}
	for _, w := range warnings {
		c.logger.Warn("prometheus warning", c.logger.Args("expr", expr, "warning", w))
	}
	return scalarOf(val)
}

func scalarOf(val model.Value) (float64, error) {
	switch v := val.(type) {
	case model.Vector:
		if len(v) == 0 {
			return 0, nil
		}
		return float64(v[0].Value), nil
	case *model.Scalar:
		return float64(v.Value), nil
	case nil:
		return 0, nil
	default:
		return 0, fmt.Errorf("unexpected result type %s", val.Type())
	}
}
