// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"fmt"
	"strings"

	errs "seedfast/querygate/internal/errors"
	"seedfast/querygate/internal/logging"
	"seedfast/querygate/internal/policy"
	"seedfast/querygate/internal/query"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var (
	validateLevel      string
	validateOutput     string
	validateListBanned bool
)

type validateReport struct {
	Query    string   `json:"query" yaml:"query"`
	Level    string   `json:"caller_level" yaml:"caller_level"`
	Allowed  bool     `json:"allowed" yaml:"allowed"`
	Reason   string   `json:"reason,omitempty" yaml:"reason,omitempty"`
	Detail   string   `json:"detail,omitempty" yaml:"detail,omitempty"`
	Required string   `json:"required_level" yaml:"required_level"`
	Fields   []string `json:"fields,omitempty" yaml:"fields,omitempty"`
}

// validateCmd runs the query validator alone.
var validateCmd = &cobra.Command{
	Use:   "validate <sql>",
	Short: "Check a SQL query against the banned-construct list and field sensitivity",
	Long: `The validate command runs the same gate the pipeline applies to generated SQL:
a case-insensitive banned-construct scan, then a parse of the query and a check
that every referenced field is at or below the caller's clearance.

No language model or database is contacted.`,
	Example: `  querygate validate "SELECT name FROM customers"
  querygate validate --level restricted "SELECT email FROM users"
  querygate validate --list-banned`,
	Args: func(cmd *cobra.Command, args []string) error {
		if validateListBanned {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.MinimumNArgs(1)(cmd, args)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := validOutput(validateOutput); err != nil {
			return err
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		opts, err := cfg.PolicyOptions()
		if err != nil {
			return err
		}
		p := policy.New(opts...)

		if validateListBanned {
			if validateOutput != "text" {
				return writeStructured(cmd.OutOrStdout(), validateOutput, p.Banned())
			}
			for _, phrase := range p.Banned() {
				fmt.Fprintf(cmd.OutOrStdout(), "%q\n", phrase)
			}
			return nil
		}
		if validateLevel == "" {
			validateLevel = cfg.CallerLevel
		}
		level, err := policy.ParseLevel(validateLevel)
		if err != nil {
			return err
		}

		q := query.Normalize(query.SQL, strings.Join(args, " "))
		report := checkQuery(p, q, level)

		if validateOutput != "text" {
			if err := writeStructured(cmd.OutOrStdout(), validateOutput, report); err != nil {
				return err
			}
		} else {
			presentValidation(report)
		}
		if !report.Allowed {
			return exitAborted
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().StringVarP(&validateLevel, "level", "l", "", "Caller clearance (default from config)")
	validateCmd.Flags().StringVarP(&validateOutput, "output", "o", "text", "Output format: text, json or yaml")
	validateCmd.Flags().BoolVar(&validateListBanned, "list-banned", false, "Print the banned-construct list and exit")
}

// checkQuery validates q and collects the referenced fields when it parses.
func checkQuery(p *policy.Policy, q string, level policy.Level) validateReport {
	v := p.Validate(q, level)
	r := validateReport{
		Query:    q,
		Level:    level.String(),
		Allowed:  v.Allowed,
		Reason:   string(v.Reason),
		Detail:   v.Detail,
		Required: v.Required.String(),
	}
	if fields, err := policy.ExtractFields(q); err == nil {
		for _, f := range fields.Refs {
			r.Fields = append(r.Fields, f.String())
		}
	}
	return r
}

func presentValidation(r validateReport) {
	if r.Allowed {
		pterm.Success.Printf("Allowed for %s clearance (query requires %s)\n", r.Level, r.Required)
	} else {
		logging.PresentAbort("validated", errs.Kind(r.Reason), r.Detail)
	}
	if len(r.Fields) > 0 {
		pterm.Println(pterm.Gray(fmt.Sprintf("Fields: %s", strings.Join(r.Fields, ", "))))
	}
}
