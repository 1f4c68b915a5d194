// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package policy implements the authorization gate applied to generated queries:
// a banned-construct denylist composed with a field sensitivity table.
//
// A Policy is built once at startup and is read-only afterwards, so a single value
// can be shared by any number of concurrent pipeline runs.
package policy

import (
	"fmt"
	"strconv"
	"strings"
)

// Level is an ordered sensitivity or clearance level. Higher is more restricted
// for fields and more privileged for callers.
type Level int

const (
	Public Level = iota
	Internal
	Restricted
	Critical
)

func (l Level) String() string {
	switch l {
	case Public:
		return "public"
	case Internal:
		return "internal"
	case Restricted:
		return "restricted"
	case Critical:
		return "critical"
	}
	return strconv.Itoa(int(l))
}

// ParseLevel accepts a level name ("public", "internal", "restricted", "critical")
// or a non-negative integer.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "public", "low":
		return Public, nil
	case "internal", "medium":
		return Internal, nil
	case "restricted", "high":
		return Restricted, nil
	case "critical":
		return Critical, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return Public, fmt.Errorf("invalid sensitivity level %q", s)
	}
	return Level(n), nil
}

// DefaultSensitivity is the built-in field table. Keys are lower-case column names,
// optionally qualified with a table name ("users.email").
var DefaultSensitivity = map[string]Level{
	"password":      Critical,
	"password_hash": Critical,
	"api_key":       Critical,
	"secret":        Critical,
	"ssn":           Critical,
	"credit_card":   Critical,
	"username":      Restricted,
	"email":         Restricted,
	"phone":         Restricted,
	"address":       Restricted,
	"token":         Restricted,
	"ticket":        Internal,
	"error_log":     Internal,
}

// SensitivityTemplate describes the level scale to the language model so that
// routing and generation prompts share the vocabulary the gate enforces.
const SensitivityTemplate = `Sensitivity levels (log and audit each query with the caller's clearance):
  - public: e.g. simple server uptime, pod status, ticket count
  - internal: e.g. service error logs, internal performance metrics
  - restricted: e.g. user data, credentials, security incidents, secrets
  - critical: e.g. root-level server access, direct data modification queries`
