// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package dsn

import (
	"errors"
	"testing"
)

type stubSecrets struct {
	dsn string
	err error
}

func (s stubSecrets) LoadDBDSN() (string, error) { return s.dsn, s.err }

func TestResolve(t *testing.T) {
	env := func(m map[string]string) func(string) string {
		return func(k string) string { return m[k] }
	}

	tests := []struct {
		name       string
		env        map[string]string
		secrets    SecretLoader
		wantOrigin Origin
		wantErr    error
	}{
		{
			name:       "querygate env wins",
			env:        map[string]string{"QUERYGATE_DSN": "postgres://a:b@h/db1", "DATABASE_URL": "postgres://c:d@h/db2"},
			secrets:    stubSecrets{dsn: "postgres://e:f@h/db3"},
			wantOrigin: OriginEnv,
		},
		{
			name:       "database url fallback",
			env:        map[string]string{"DATABASE_URL": "postgres://c:d@h/db2"},
			wantOrigin: OriginEnv,
		},
		{
			name:       "keychain",
			env:        map[string]string{},
			secrets:    stubSecrets{dsn: "postgres://e:f@h/db3"},
			wantOrigin: OriginKeychain,
		},
		{
			name:    "keychain error means nothing configured",
			env:     map[string]string{},
			secrets: stubSecrets{err: errors.New("locked")},
			wantErr: ErrNoDSN,
		},
		{
			name:    "nothing",
			env:     map[string]string{},
			wantErr: ErrNoDSN,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, origin, err := Resolve(env(tt.env), tt.secrets)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Resolve() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve() unexpected error: %v", err)
			}
			if origin != tt.wantOrigin {
				t.Errorf("origin = %v, want %v", origin, tt.wantOrigin)
			}
			if got == "" {
				t.Error("resolved DSN is empty")
			}
		})
	}
}

func TestResolve_InvalidEnvDSN(t *testing.T) {
	_, _, err := Resolve(func(k string) string {
		if k == "QUERYGATE_DSN" {
			return "mysql://u:p@h/db"
		}
		return ""
	}, nil)
	if err == nil {
		t.Fatal("expected error for unsupported DSN")
	}
}
