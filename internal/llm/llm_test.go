// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package llm

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	errs "seedfast/querygate/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	out    Completion
	err    error
	block  bool
	system string
	user   string
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Generate(ctx context.Context, system, user string) (Completion, error) {
	f.system, f.user = system, user
	if f.block {
		<-ctx.Done()
		return Completion{}, ctx.Err()
	}
	return f.out, f.err
}

func TestStripFencing(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "SELECT 1", want: "SELECT 1"},
		{in: "```sql\nSELECT 1\n```", want: "SELECT 1"},
		{in: "```SQL\nSELECT 1\n```\n", want: "SELECT 1"},
		{in: "```\nrate(x[5m])\n```", want: "rate(x[5m])"},
		{in: "  `project = OPS`  ", want: "project = OPS"},
		{in: "```promql rate(x[5m])```", want: "rate(x[5m])"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StripFencing(tt.in), tt.in)
	}
}

func TestIsAbort(t *testing.T) {
	for _, s := range []string{"abort", "ABORT", " Abort\n", "'abort'", "abort."} {
		assert.True(t, IsAbort(s), s)
	}
	for _, s := range []string{"", "aborted", "SELECT abort FROM t", "sql"} {
		assert.False(t, IsAbort(s), s)
	}
}

func TestPromptRender(t *testing.T) {
	p := Prompt{
		Instruction: "Write a query.",
		Context: []Field{
			{Name: "Question", Value: "top customers"},
			{Name: "Schema", Value: "customers(id, name)"},
		},
	}
	assert.Equal(t, "Write a query.\n\nQuestion:\ntop customers\n\nSchema:\ncustomers(id, name)", p.Render())
}

func TestClientComplete(t *testing.T) {
	t.Run("normalizes text", func(t *testing.T) {
		fp := &fakeProvider{out: Completion{Text: "```sql\nSELECT 1\n```"}}
		reply, err := NewClient(fp, time.Second, nil).Complete(context.Background(), Prompt{System: "sys", Instruction: "go"})
		require.NoError(t, err)
		assert.Equal(t, Reply{Text: "SELECT 1"}, reply)
		assert.Equal(t, "sys", fp.system)
		assert.Equal(t, "go", fp.user)
	})

	t.Run("abort token is a refusal", func(t *testing.T) {
		fp := &fakeProvider{out: Completion{Text: "ABORT"}}
		reply, err := NewClient(fp, time.Second, nil).Complete(context.Background(), Prompt{})
		require.NoError(t, err)
		assert.True(t, reply.Refused)
		assert.Empty(t, reply.Text)
	})

	t.Run("provider refusal", func(t *testing.T) {
		fp := &fakeProvider{out: Completion{Text: "I can't help", Refused: true}}
		reply, err := NewClient(fp, time.Second, nil).Complete(context.Background(), Prompt{})
		require.NoError(t, err)
		assert.True(t, reply.Refused)
	})

	t.Run("transport error is unavailable", func(t *testing.T) {
		fp := &fakeProvider{err: stderrors.New("connection refused")}
		_, err := NewClient(fp, time.Second, nil).Complete(context.Background(), Prompt{Task: "classify"})
		assert.Equal(t, errs.CollaboratorUnavailable, errs.KindOf(err))
	})

	t.Run("slow provider times out", func(t *testing.T) {
		fp := &fakeProvider{block: true}
		_, err := NewClient(fp, 20*time.Millisecond, nil).Complete(context.Background(), Prompt{})
		assert.Equal(t, errs.CollaboratorTimeout, errs.KindOf(err))
	})

	t.Run("caller cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		fp := &fakeProvider{block: true}
		_, err := NewClient(fp, time.Second, nil).Complete(ctx, Prompt{})
		assert.Equal(t, errs.Cancelled, errs.KindOf(err))
	})
}
