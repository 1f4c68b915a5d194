// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package optimizer

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	errs "seedfast/querygate/internal/errors"
	"seedfast/querygate/internal/query"
)

const (
	maxSeries  = 10000
	maxSamples = 1e8
)

var rangeSelectorRe = regexp.MustCompile(`(\w+)\[(\d+[smhdw])\]`)

// MetricWindow is a metric name with the range it is selected over.
type MetricWindow struct {
	Metric string
	Window string
}

// ExtractMetricWindows returns the distinct range selectors of a PromQL query in
// the order they first appear.
func ExtractMetricWindows(q string) []MetricWindow {
	var out []MetricWindow
	seen := make(map[MetricWindow]bool)
	for _, m := range rangeSelectorRe.FindAllStringSubmatch(q, -1) {
		mw := MetricWindow{Metric: m[1], Window: m[2]}
		if seen[mw] {
			continue
		}
		seen[mw] = true
		out = append(out, mw)
	}
	return out
}

// MetricSuggestions evaluates the advisory statistics for every range selector
// in q. Each statistic is bounded by perCall (no bound when zero). The first
// failing statistic aborts the whole evaluation.
func MetricSuggestions(ctx context.Context, ts TimeSeries, q string, perCall time.Duration) ([]string, error) {
	aggregate := func(mw MetricWindow, agg Aggregation) (float64, error) {
		if perCall <= 0 {
			return ts.Aggregate(ctx, mw.Metric, mw.Window, agg)
		}
		callCtx, cancel := context.WithTimeout(ctx, perCall)
		defer cancel()
		return ts.Aggregate(callCtx, mw.Metric, mw.Window, agg)
	}

	var suggestions []string
	for _, mw := range ExtractMetricWindows(q) {
		series, err := aggregate(mw, SeriesCount)
		if err != nil {
			return nil, err
		}
		samples, err := aggregate(mw, SampleCount)
		if err != nil {
			return nil, err
		}

		s := fmt.Sprintf("%s[%s]: about %d series matched, %d raw samples scanned.",
			mw.Metric, mw.Window, int64(series), int64(samples))
		if series > maxSeries {
			s += " Too many time series; narrow the selector with label filters."
		}
		if samples > maxSamples {
			s += " Too many samples; reduce the window or increase the query resolution."
		}
		suggestions = append(suggestions, s)
	}
	return suggestions, nil
}

func (d *Dispatcher) optimizeMetrics(ctx context.Context, q string) Result {
	if d.series == nil {
		return failed(query.Metrics, nil, StageAdvisory, errs.New(errs.CollaboratorUnavailable, "no metrics backend configured"))
	}

	suggestions, err := MetricSuggestions(ctx, d.series, q, d.timeouts.Metrics)
	if err != nil {
		return failed(query.Metrics, nil, StageAdvisory, errs.FromCall(ctx, "metrics advisory", err))
	}
	d.logger.Debug("metrics advisory", d.logger.Args("selectors", len(suggestions)))

	advice := "No range selectors found."
	if len(suggestions) > 0 {
		advice = strings.Join(suggestions, "\n")
	}
	rewritten, err := d.rewrite(ctx, query.Metrics, rewritePrompt(query.Metrics, q, "Optimization suggestions", advice))
	if err != nil {
		return failed(query.Metrics, suggestions, StageGeneration, err)
	}
	return Result{Type: query.Metrics, Query: rewritten, Advisory: suggestions}
}
