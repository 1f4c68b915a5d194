// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package cmd provides the command-line interface for querygate.
// It turns natural-language questions into validated, optimized SQL, PromQL or JQL
// queries, and offers the supporting commands for credentials, validation,
// benchmarking and serving the pipeline over HTTP, using the Cobra CLI framework.
package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	showVersion bool
	configPath  string
	logLevel    string
	logFormat   string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "querygate",
	Short: "Turn questions into safe, optimized database, metrics and ticket queries",
	Long: `querygate routes a natural-language question to SQL, PromQL or JQL, generates the
query with a language model, checks it against banned constructs and field
sensitivity, and optimizes it with advisory data from the target backend.

Any failure or refusal along the way stops the run; no partial query is returned.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if showVersion {
			fmt.Printf("querygate %s\n", Version)
			return nil
		}
		return cmd.Help()
	},
}

// exitCode ends the process with a status without printing anything further.
// Commands return it after they have already presented the outcome.
type exitCode int

func (e exitCode) Error() string { return fmt.Sprintf("exit status %d", int(e)) }

const (
	// exitAborted is used when a run or check ended without an allowed query.
	exitAborted exitCode = 2
)

// Execute runs the CLI application.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		var code exitCode
		if errors.As(err, &code) {
			os.Exit(int(code))
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolVar(&showVersion, "version", false, "Show version information")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default $XDG_CONFIG_HOME/querygate/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: trace, debug, info, warn, error, off (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: text or json (overrides config)")
}
