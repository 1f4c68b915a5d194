// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package audit

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_AppendAndRecent(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "nested", "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	base := time.UnixMilli(1_700_000_000_000)
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Append(ctx, Record{
			RunID:    fmt.Sprintf("run-%d", i),
			At:       base.Add(time.Duration(i) * time.Minute),
			Question: "q",
			Level:    "public",
			Type:     "sql",
			State:    "done",
			Query:    "SELECT 1",
			Duration: 1500 * time.Millisecond,
		}))
	}

	got, err := s.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "run-2", got[0].RunID)
	assert.Equal(t, "run-1", got[1].RunID)
	assert.True(t, got[0].At.Equal(base.Add(2*time.Minute)))
	assert.Equal(t, 1500*time.Millisecond, got[0].Duration)
	assert.Equal(t, "SELECT 1", got[0].Query)
}

func TestStore_DuplicateRunID(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	r := Record{RunID: "same", At: time.Now(), State: "aborted", Stage: "validated", Reason: "banned-construct"}
	require.NoError(t, s.Append(context.Background(), r))
	assert.Error(t, s.Append(context.Background(), r))
}

func TestStore_ReopenKeepsRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Append(context.Background(), Record{RunID: "a", At: time.Now(), State: "done"}))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	got, err := s.Recent(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
