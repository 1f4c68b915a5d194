// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package httperrors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Cause
	}{
		{name: "nil", err: nil, want: ""},
		{name: "context deadline", err: fmt.Errorf("ping: %w", context.DeadlineExceeded), want: CauseTimeout},
		{name: "dns", err: &net.DNSError{Err: "no such host", Name: "db.internal"}, want: CauseDNS},
		{name: "refused op error", err: &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}, want: CauseRefused},
		{name: "refused text", err: errors.New("dial tcp 127.0.0.1:5432: connect: connection refused"), want: CauseRefused},
		{name: "tls", err: errors.New("x509: certificate signed by unknown authority"), want: CauseTLS},
		{name: "postgres auth", err: errors.New(`FATAL: password authentication failed for user "app" (SQLSTATE 28P01)`), want: CauseAuth},
		{name: "api key", err: errors.New(`401 Unauthorized {"type":"authentication_error","message":"invalid x-api-key"}`), want: CauseAuth},
		{name: "server", err: errors.New("529 overloaded_error"), want: CauseServer},
		{name: "other", err: errors.New("unexpected EOF"), want: CauseOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestDescribeAndHints(t *testing.T) {
	for _, c := range []Cause{CauseTimeout, CauseDNS, CauseRefused, CauseTLS, CauseAuth, CauseServer, CauseOther} {
		assert.Contains(t, Describe(c, "the database", "verifying the connection"), "verifying the connection")
		assert.NotEmpty(t, Hints(c))
	}
	assert.Contains(t, Describe(CauseRefused, "the database", "x"), "The database refused")
}

func TestFormatNetworkError_Wraps(t *testing.T) {
	base := errors.New("connection refused")
	err := FormatNetworkError(base, "the database", "verifying the connection")
	assert.ErrorIs(t, err, base)
	assert.NoError(t, FormatNetworkError(nil, "x", "y"))
}
