// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"seedfast/querygate/internal/logging"
	"seedfast/querygate/internal/pipeline"
	"seedfast/querygate/internal/policy"
	"seedfast/querygate/internal/query"
	"seedfast/querygate/internal/sqlexec"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var (
	askLevel    string
	askRouting  string
	askOutput   string
	askExecute  bool
	askRowLimit int
	askAudit    bool
)

// askResult is the structured output of ask.
type askResult struct {
	pipeline.Outcome `yaml:",inline"`
	Result           *sqlexec.Result `json:"result,omitempty" yaml:"result,omitempty"`
}

// askCmd runs the pipeline once for a question.
var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Turn a question into a validated, optimized query",
	Long: `The ask command classifies the question, generates a SQL, PromQL or JQL query,
validates it against the banned-construct list and your clearance level, and
optimizes it using the target backend's advisory data.

If any stage fails or declines, the run is aborted and no query is printed.

With --execute, a final SQL query is run read-only against the configured database.`,
	Example: `  querygate ask "Who are the top 2 customers by storage?"
  querygate ask --level restricted --output json "Which users signed up today?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := validOutput(askOutput); err != nil {
			return err
		}
		ctx := cmd.Context()
		question := strings.Join(args, " ")

		a, err := openApp(ctx, appOptions{pipeline: true, database: true, audit: askAudit})
		if err != nil {
			return err
		}
		defer a.Close()

		level, err := a.callerLevel(askLevel)
		if err != nil {
			return err
		}
		coordinator := a.coordinator
		if askRouting != "" {
			routing, err := os.ReadFile(askRouting)
			if err != nil {
				return fmt.Errorf("failed to read routing file: %w", err)
			}
			coordinator, err = a.withRouting(string(routing))
			if err != nil {
				return err
			}
		}

		stop := func() {}
		if askOutput == "text" {
			stop = startInlineSpinner(os.Stdout, "Working on it", spinnerFrames, 120*time.Millisecond)
		}
		out, err := coordinator.Run(ctx, pipeline.Request{Question: question, Level: level})
		stop()
		if err != nil {
			return err
		}
		a.record(ctx, question, level, out)

		res := askResult{Outcome: out}
		if askExecute && out.Done() {
			r, err := executeFinal(ctx, a, out)
			if err != nil {
				return err
			}
			res.Result = r
		}

		if askOutput != "text" {
			if err := writeStructured(cmd.OutOrStdout(), askOutput, res); err != nil {
				return err
			}
		} else {
			presentOutcome(out, level)
			if res.Result != nil {
				presentRows(*res.Result)
			}
		}
		if !out.Done() {
			return exitAborted
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().StringVarP(&askLevel, "level", "l", "", "Caller clearance: public, internal, restricted, critical (default from config)")
	askCmd.Flags().StringVar(&askRouting, "routing", "", "File with routing details, overriding the bundle's")
	askCmd.Flags().StringVarP(&askOutput, "output", "o", "text", "Output format: text, json or yaml")
	askCmd.Flags().BoolVar(&askExecute, "execute", false, "Run the final SQL query read-only and print the rows")
	askCmd.Flags().IntVar(&askRowLimit, "limit", 50, "Maximum rows printed with --execute (0 for all)")
	askCmd.Flags().BoolVar(&askAudit, "audit", true, "Record the run in the local audit trail")
}

// withRouting returns a coordinator over a copy of the app's bundle with routing replaced.
func (a *app) withRouting(routing string) (*pipeline.Coordinator, error) {
	if strings.TrimSpace(routing) == "" {
		return nil, fmt.Errorf("routing file is empty")
	}
	return a.coordinatorFor(a.bundle.WithRouting(routing)), nil
}

// executeFinal runs a done SQL outcome read-only.
func executeFinal(ctx context.Context, a *app, out pipeline.Outcome) (*sqlexec.Result, error) {
	if out.Type != query.SQL {
		return nil, fmt.Errorf("--execute only applies to SQL queries; this question produced %s", out.Type.Language())
	}
	if a.executor == nil {
		return nil, fmt.Errorf("no database configured; run 'querygate connect'")
	}
	r, err := a.executor.Query(ctx, out.Query, askRowLimit)
	if err != nil {
		return nil, logging.MaskedError("query execution failed", err)
	}
	return &r, nil
}

// presentOutcome prints a run for humans.
func presentOutcome(out pipeline.Outcome, level policy.Level) {
	if !out.Done() {
		stage := string(out.Stage)
		if out.Step != "" {
			stage += "/" + string(out.Step)
		}
		logging.PresentAbort(stage, out.Reason, out.Detail)
		return
	}

	pterm.DefaultBox.
		WithTitle(pterm.NewStyle(pterm.FgCyan, pterm.Bold).Sprint(out.Type.Language())).
		WithPadding(1).
		Println(out.Query)

	if out.Generated != out.Query {
		pterm.Println(pterm.Gray("Generated before optimization:"))
		pterm.Println(pterm.Gray("  " + out.Generated))
	}
	if out.Type != query.SQL {
		for _, a := range out.Advisory {
			for _, line := range strings.Split(a, "\n") {
				if strings.TrimSpace(line) != "" {
					pterm.Println(pterm.Gray("  • " + line))
				}
			}
		}
	}
	pterm.Println(pterm.Gray(fmt.Sprintf("clearance %s · run %s · %s", level, out.RunID, out.Elapsed.Round(time.Millisecond))))
}

// presentRows prints an executed result as a table.
func presentRows(r sqlexec.Result) {
	if len(r.Columns) == 0 {
		return
	}
	data := pterm.TableData{r.Columns}
	for _, row := range r.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = fmt.Sprint(v)
		}
		data = append(data, cells)
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	pterm.Println(pterm.Gray(fmt.Sprintf("%d row(s)", len(r.Rows))))
}
