// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package dsn

import (
	"errors"
	"os"
	"strings"
)

// Environment variables consulted for the DSN, in order.
var EnvVars = []string{"QUERYGATE_DSN", "DATABASE_URL"}

// ErrNoDSN is returned when no source provides a DSN.
var ErrNoDSN = errors.New("no database DSN configured; run 'querygate connect' or set QUERYGATE_DSN")

// SecretLoader loads a stored DSN, typically from the OS keychain.
type SecretLoader interface {
	LoadDBDSN() (string, error)
}

// Origin names where a resolved DSN came from.
type Origin string

const (
	OriginEnv      Origin = "env"
	OriginKeychain Origin = "keychain"
)

// Resolve returns the normalized DSN from the environment or, failing that, from
// secrets. lookup defaults to os.Getenv; secrets may be nil.
func Resolve(lookup func(string) string, secrets SecretLoader) (string, Origin, error) {
	if lookup == nil {
		lookup = os.Getenv
	}
	for _, name := range EnvVars {
		if v := strings.TrimSpace(lookup(name)); v != "" {
			normalized, err := Parse(v)
			return normalized, OriginEnv, err
		}
	}
	if secrets != nil {
		if v, err := secrets.LoadDBDSN(); err == nil && strings.TrimSpace(v) != "" {
			normalized, err := Parse(strings.TrimSpace(v))
			return normalized, OriginKeychain, err
		}
	}
	return "", "", ErrNoDSN
}
