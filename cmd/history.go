// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"fmt"
	"time"

	"seedfast/querygate/internal/audit"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var (
	historyLimit  int
	historyOutput string
)

// historyCmd lists recent audited runs.
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent runs from the local audit trail",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := validOutput(historyOutput); err != nil {
			return err
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		p, err := cfg.AuditPath()
		if err != nil {
			return err
		}
		store, err := audit.Open(p)
		if err != nil {
			return err
		}
		defer store.Close()

		records, err := store.Recent(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}
		if historyOutput != "text" {
			return writeStructured(cmd.OutOrStdout(), historyOutput, records)
		}
		if len(records) == 0 {
			pterm.Println("No runs recorded yet.")
			return nil
		}

		data := pterm.TableData{{"When", "Level", "Type", "Result", "Question"}}
		for _, r := range records {
			result := pterm.Green("done")
			if r.State != "done" {
				result = pterm.Red(fmt.Sprintf("%s at %s", r.Reason, r.Stage))
			}
			data = append(data, []string{
				r.At.Local().Format(time.DateTime),
				r.Level,
				r.Type,
				result,
				truncate(r.Question, 60),
			})
		}
		return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of runs to show")
	historyCmd.Flags().StringVarP(&historyOutput, "output", "o", "text", "Output format: text, json or yaml")
}
