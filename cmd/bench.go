// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"seedfast/querygate/internal/logging"
	"seedfast/querygate/internal/query"
	"seedfast/querygate/internal/sqlexec"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var (
	benchRepeats  int
	benchFile     string
	benchOptimize bool
	benchLevel    string
)

// benchQuery is one entry of a --file benchmark list.
type benchQuery struct {
	Name  string `json:"name"`
	Query string `json:"query"`
}

// benchCmd times queries against the configured database.
var benchCmd = &cobra.Command{
	Use:   "bench [sql...]",
	Short: "Time SQL queries against the database",
	Long: `The bench command runs each query several times inside read-only transactions and
reports the mean time. The first run warms caches and is not counted.

Queries come from the arguments or from a JSON file of {"name", "query"} objects.
With --optimize, each query is also passed through the SQL optimizer and the
rewrite is timed next to the original.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		queries, err := benchInputs(args, benchFile)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		a, err := openApp(ctx, appOptions{database: true, databaseRequired: true, pipeline: benchOptimize})
		if err != nil {
			return err
		}
		defer a.Close()

		level, err := a.callerLevel(benchLevel)
		if err != nil {
			return err
		}

		data := pterm.TableData{{"Name", "Variant", "Mean", "Min", "Max", "First"}}
		for _, bq := range queries {
			q := query.Normalize(query.SQL, bq.Query)
			if v := a.policy.Validate(q, level); !v.Allowed {
				pterm.Warning.Printf("%s skipped: %s\n", bq.Name, logging.Mask(v.Detail))
				continue
			}

			stop := startInlineSpinner(os.Stdout, "Timing "+bq.Name, spinnerFrames, 120*time.Millisecond)
			orig, err := a.executor.Benchmark(ctx, q, benchRepeats)
			stop()
			if err != nil {
				return logging.MaskedError(bq.Name, err)
			}
			data = append(data, timingRow(bq.Name, "original", orig))

			if !benchOptimize {
				continue
			}
			res, err := a.optimizer.Optimize(ctx, query.SQL, q, level)
			if err != nil {
				return err
			}
			if !res.Succeeded() {
				pterm.Warning.Printf("%s not optimized: %s (%s)\n", bq.Name, res.Failed.Reason, res.Failed.Stage)
				continue
			}
			stop = startInlineSpinner(os.Stdout, "Timing optimized "+bq.Name, spinnerFrames, 120*time.Millisecond)
			opt, err := a.executor.Benchmark(ctx, res.Query, benchRepeats)
			stop()
			if err != nil {
				return logging.MaskedError(bq.Name+" (optimized)", err)
			}
			data = append(data, timingRow("", "optimized "+speedup(orig.Mean, opt.Mean), opt))
			pterm.Println(pterm.Gray(bq.Name + ": " + res.Query))
		}
		return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	},
}

func init() {
	rootCmd.AddCommand(benchCmd)
	benchCmd.Flags().IntVarP(&benchRepeats, "repeats", "n", 5, "Runs per query, including the discarded warm-up run")
	benchCmd.Flags().StringVarP(&benchFile, "file", "f", "", "JSON file with a list of {\"name\", \"query\"} objects")
	benchCmd.Flags().BoolVar(&benchOptimize, "optimize", false, "Also optimize each query and time the rewrite")
	benchCmd.Flags().StringVarP(&benchLevel, "level", "l", "", "Caller clearance (default from config)")
}

// benchInputs merges positional queries with the entries of file.
func benchInputs(args []string, file string) ([]benchQuery, error) {
	var out []benchQuery
	if file != "" {
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(b, &out); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", file, err)
		}
		for i := range out {
			if out[i].Name == "" {
				out[i].Name = "query " + strconv.Itoa(i+1)
			}
		}
	}
	for _, a := range args {
		if strings.TrimSpace(a) != "" {
			out = append(out, benchQuery{Name: "query " + strconv.Itoa(len(out)+1), Query: a})
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no queries given; pass SQL arguments or --file")
	}
	return out, nil
}

func timingRow(name, variant string, t sqlexec.Timing) []string {
	return []string{name, variant, fmtDur(t.Mean), fmtDur(t.Min), fmtDur(t.Max), fmtDur(t.First)}
}

func fmtDur(d time.Duration) string {
	return d.Round(10 * time.Microsecond).String()
}

// speedup renders how much faster b is than a, e.g. "(2.1x)".
func speedup(a, b time.Duration) string {
	if b <= 0 {
		return ""
	}
	return fmt.Sprintf("(%.1fx)", float64(a)/float64(b))
}
