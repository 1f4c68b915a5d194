// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package sqlexec

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// Timing summarizes repeated runs of one query. The first run warms caches and is
// excluded from Mean, Min and Max.
type Timing struct {
	Query string
	Runs  int
	First time.Duration
	Mean  time.Duration
	Min   time.Duration
	Max   time.Duration
}

// Benchmark runs sql repeats times (at least two) read-only and reports timings.
func (e *Executor) Benchmark(ctx context.Context, sql string, repeats int) (Timing, error) {
	if repeats < 2 {
		repeats = 2
	}
	durations := make([]time.Duration, 0, repeats)
	for i := 0; i < repeats; i++ {
		start := time.Now()
		err := e.readOnly(ctx, func(tx pgx.Tx) error {
			rows, err := tx.Query(ctx, sql)
			if err != nil {
				return err
			}
			for rows.Next() {
			}
			rows.Close()
			return rows.Err()
		})
		if err != nil {
			return Timing{}, fmt.Errorf("benchmark run %d: %w", i+1, err)
		}
		durations = append(durations, time.Since(start))
	}
	return summarize(sql, durations), nil
}

func summarize(sql string, durations []time.Duration) Timing {
	t := Timing{Query: sql, Runs: len(durations)}
	if len(durations) == 0 {
		return t
	}
	t.First = durations[0]
	measured := durations[1:]
	if len(measured) == 0 {
		t.Mean, t.Min, t.Max = t.First, t.First, t.First
		return t
	}

	var total time.Duration
	t.Min, t.Max = measured[0], measured[0]
	for _, d := range measured {
		total += d
		if d < t.Min {
			t.Min = d
		}
		if d > t.Max {
			t.Max = d
		}
	}
	t.Mean = total / time.Duration(len(measured))
	return t
}
