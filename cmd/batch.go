// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"seedfast/querygate/internal/pipeline"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	batchLevel       string
	batchOutput      string
	batchConcurrency int
	batchAudit       bool
)

type batchItem struct {
	Question string           `json:"question" yaml:"question"`
	Outcome  pipeline.Outcome `json:"outcome" yaml:"outcome"`
}

// batchCmd runs many questions through the pipeline concurrently.
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Run one question per line through the pipeline concurrently",
	Long: `The batch command reads questions from a file (or "-" for stdin), one per line,
and runs each through the pipeline. Blank lines and lines starting with # are
skipped. At most 'concurrency' runs are in flight at once; every run is
independent and an abort in one does not affect the others.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := validOutput(batchOutput); err != nil {
			return err
		}
		var r io.Reader = os.Stdin
		if args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			r = f
		}
		questions, err := readQuestions(r)
		if err != nil {
			return err
		}
		if len(questions) == 0 {
			return fmt.Errorf("no questions in %s", args[0])
		}

		ctx := cmd.Context()
		a, err := openApp(ctx, appOptions{pipeline: true, database: true, audit: batchAudit})
		if err != nil {
			return err
		}
		defer a.Close()

		level, err := a.callerLevel(batchLevel)
		if err != nil {
			return err
		}
		limit := a.cfg.Concurrency
		if batchConcurrency > 0 {
			limit = batchConcurrency
		}

		stop := func() {}
		if batchOutput == "text" {
			stop = startInlineSpinner(os.Stdout, fmt.Sprintf("Running %d questions", len(questions)), spinnerFrames, 120*time.Millisecond)
		}
		items := make([]batchItem, len(questions))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(limit)
		for i, q := range questions {
			g.Go(func() error {
				out, err := a.coordinator.Run(gctx, pipeline.Request{Question: q, Level: level})
				if err != nil {
					return fmt.Errorf("question %d: %w", i+1, err)
				}
				a.record(gctx, q, level, out)
				items[i] = batchItem{Question: q, Outcome: out}
				return nil
			})
		}
		err = g.Wait()
		stop()
		if err != nil {
			return err
		}

		if batchOutput != "text" {
			if err := writeStructured(cmd.OutOrStdout(), batchOutput, items); err != nil {
				return err
			}
		} else {
			presentBatch(items)
		}
		for _, it := range items {
			if !it.Outcome.Done() {
				return exitAborted
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(batchCmd)
	batchCmd.Flags().StringVarP(&batchLevel, "level", "l", "", "Caller clearance for every question (default from config)")
	batchCmd.Flags().StringVarP(&batchOutput, "output", "o", "text", "Output format: text, json or yaml")
	batchCmd.Flags().IntVarP(&batchConcurrency, "concurrency", "c", 0, "Maximum concurrent runs (default from config)")
	batchCmd.Flags().BoolVar(&batchAudit, "audit", true, "Record every run in the local audit trail")
}

// readQuestions returns the non-empty, non-comment lines of r.
func readQuestions(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out, sc.Err()
}

func presentBatch(items []batchItem) {
	data := pterm.TableData{{"#", "Question", "Type", "Result"}}
	done := 0
	for i, it := range items {
		o := it.Outcome
		result := o.Query
		if o.Done() {
			done++
		} else {
			result = pterm.Red(fmt.Sprintf("aborted at %s: %s", o.Stage, o.Reason))
		}
		data = append(data, []string{strconv.Itoa(i + 1), truncate(it.Question, 48), o.Type.String(), result})
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	pterm.Printf("%d of %d questions produced a query\n", done, len(items))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
