// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "nil", err: nil, want: ""},
		{name: "plain error", err: stderrors.New("boom"), want: ""},
		{name: "direct", err: New(BannedConstruct, "drop"), want: BannedConstruct},
		{name: "wrapped by fmt", err: fmt.Errorf("stage: %w", New(MalformedQuery, "x")), want: MalformedQuery},
		{name: "wrapping context error", err: Wrap(CollaboratorTimeout, "plan", context.DeadlineExceeded), want: CollaboratorTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestE_UnwrapKeepsCause(t *testing.T) {
	err := Wrap(CollaboratorTimeout, "llm call", context.DeadlineExceeded)

	assert.True(t, stderrors.Is(err, context.DeadlineExceeded))
	assert.True(t, Is(err, CollaboratorTimeout))
	assert.False(t, Is(err, CollaboratorUnavailable))
	assert.Equal(t, "collaborator-timeout: llm call: context deadline exceeded", err.Error())
}

func TestFromCall(t *testing.T) {
	live := context.Background()

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	expired, cancelExpired := context.WithTimeout(context.Background(), 0)
	defer cancelExpired()
	<-expired.Done()

	tests := []struct {
		name   string
		parent context.Context
		err    error
		want   Kind
	}{
		{name: "call deadline with live parent", parent: live, err: context.DeadlineExceeded, want: CollaboratorTimeout},
		{name: "wrapped call deadline", parent: live, err: fmt.Errorf("post: %w", context.DeadlineExceeded), want: CollaboratorTimeout},
		{name: "transport failure", parent: live, err: stderrors.New("connection refused"), want: CollaboratorUnavailable},
		{name: "parent cancelled", parent: cancelled, err: context.Canceled, want: Cancelled},
		{name: "parent deadline", parent: expired, err: context.DeadlineExceeded, want: CollaboratorTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(FromCall(tt.parent, "call", tt.err)))
		})
	}

	assert.NoError(t, FromCall(live, "call", nil))
}
