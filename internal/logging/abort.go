// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package logging

import (
	"fmt"
	"strings"

	errs "seedfast/querygate/internal/errors"

	"github.com/pterm/pterm"
)

// abortTitle returns the one-line headline for an abort reason.
func abortTitle(reason errs.Kind) string {
	switch reason {
	case errs.UnroutableQuestion, errs.CollaboratorRefused:
		return "Question Not Answerable"
	case errs.BannedConstruct, errs.InsufficientClearance, errs.UnsafeOptimizationResult, errs.MalformedQuery:
		return "Query Rejected"
	case errs.CollaboratorUnavailable, errs.CollaboratorTimeout:
		return "Backend Unreachable"
	case errs.Cancelled:
		return "Cancelled"
	}
	return "Run Aborted"
}

// FormatAbort explains a halted run in a user-friendly way: which stage stopped
// it, why, and what to try next.
func FormatAbort(stage string, reason errs.Kind, detail string) string {
	var builder strings.Builder

	builder.WriteString(pterm.NewStyle(pterm.FgRed, pterm.Bold).Sprint(abortTitle(reason)))
	builder.WriteString(pterm.NewStyle(pterm.FgGray).Sprintf("  (stage: %s, reason: %s)", stage, reason))
	builder.WriteString("\n\n")

	switch reason {
	case errs.UnroutableQuestion:
		builder.WriteString("The question does not map to any configured data source.\n")
		builder.WriteString("  • Rephrase it around customers, service metrics or tickets\n")
		builder.WriteString("  • Check the routing description in your bundle\n")

	case errs.CollaboratorRefused:
		builder.WriteString("The language model declined to produce a query for this question.\n")

	case errs.BannedConstruct:
		builder.WriteString("The generated query contains a forbidden construct.\n")
		builder.WriteString("Only single read-only SELECT statements are allowed.\n")

	case errs.InsufficientClearance:
		builder.WriteString("The generated query reads fields above your clearance level.\n")
		builder.WriteString("  • Ask for less sensitive columns\n")
		builder.WriteString("  • Or run with a higher --level if you are entitled to it\n")

	case errs.MalformedQuery:
		builder.WriteString("The generated query could not be parsed, so it was not checked or run.\n")

	case errs.UnsafeOptimizationResult:
		builder.WriteString("The optimized query failed the safety check and was discarded.\n")
		builder.WriteString("No query is returned for this run.\n")

	case errs.CollaboratorUnavailable:
		builder.WriteString("A backend needed for this stage could not be reached.\n")
		builder.WriteString("  • Check the database DSN ('querygate dbinfo')\n")
		builder.WriteString("  • Check your API key ('querygate login') and network\n")
		builder.WriteString("  • Check prometheus.url in the config file\n")

	case errs.CollaboratorTimeout:
		builder.WriteString("A backend did not answer in time.\n")
		builder.WriteString("Raise the matching value under 'timeouts' in the config file if this repeats.\n")

	case errs.Cancelled:
		builder.WriteString("The run was cancelled before it finished.\n")

	default:
		builder.WriteString("The pipeline stopped before producing a query.\n")
	}

	if d := strings.TrimSpace(detail); d != "" {
		builder.WriteString("\n")
		builder.WriteString(pterm.NewStyle(pterm.FgGray).Sprint("Details: " + Mask(d)))
	}
	return builder.String()
}

// PresentAbort prints FormatAbort surrounded by blank lines.
func PresentAbort(stage string, reason errs.Kind, detail string) {
	fmt.Println()
	fmt.Println(FormatAbort(stage, reason, detail))
	fmt.Println()
}

// MaskedError prefixes err with what failed and masks any credentials in its
// message. It returns nil for a nil err.
func MaskedError(what string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %s", what, Mask(err.Error()))
}
