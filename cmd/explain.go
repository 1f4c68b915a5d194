// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"seedfast/querygate/internal/logging"
	"seedfast/querygate/internal/query"

	"github.com/spf13/cobra"
)

var explainLevel string

// explainCmd prints the execution plan the SQL optimizer would be given.
var explainCmd = &cobra.Command{
	Use:   "explain <sql>",
	Short: "Print the PostgreSQL execution plan for a query",
	Long: `The explain command validates the query for your clearance level and then asks
PostgreSQL for its plan with EXPLAIN (FORMAT JSON), inside a read-only
transaction. The query itself is not executed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx, appOptions{database: true, databaseRequired: true})
		if err != nil {
			return err
		}
		defer a.Close()

		level, err := a.callerLevel(explainLevel)
		if err != nil {
			return err
		}
		q := query.Normalize(query.SQL, strings.Join(args, " "))
		if v := a.policy.Validate(q, level); !v.Allowed {
			logging.PresentAbort("validated", v.Reason, v.Detail)
			return exitAborted
		}

		plan, err := a.executor.Plan(ctx, q)
		if err != nil {
			return logging.MaskedError("explain failed", err)
		}
		var out bytes.Buffer
		if err := json.Indent(&out, []byte(plan), "", "  "); err != nil {
			out.Reset()
			out.WriteString(plan)
		}
		fmt.Fprintln(cmd.OutOrStdout(), out.String())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(explainCmd)
	explainCmd.Flags().StringVarP(&explainLevel, "level", "l", "", "Caller clearance (default from config)")
}
