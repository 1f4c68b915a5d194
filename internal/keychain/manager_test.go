// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package keychain

import (
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_DSN(t *testing.T) {
	m := NewWithRing(keyring.NewArrayKeyring(nil))

	_, err := m.LoadDBDSN()
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, m.SaveDBDSN("postgres://u:p@localhost/app"))
	got, err := m.LoadDBDSN()
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@localhost/app", got)

	require.NoError(t, m.ClearDB())
	_, err = m.LoadDBDSN()
	assert.ErrorIs(t, err, ErrNotFound)

	// Clearing twice is fine.
	assert.NoError(t, m.ClearDB())
}

func TestManager_APIKeysArePerProvider(t *testing.T) {
	m := NewWithRing(keyring.NewArrayKeyring(nil))

	require.NoError(t, m.SaveAPIKey("anthropic", "sk-ant-1"))
	require.NoError(t, m.SaveAPIKey("gemini", "AIza-2"))

	got, err := m.LoadAPIKey("anthropic")
	require.NoError(t, err)
	assert.Equal(t, "sk-ant-1", got)

	require.NoError(t, m.ClearAll("anthropic"))
	_, err = m.LoadAPIKey("anthropic")
	assert.ErrorIs(t, err, ErrNotFound)

	got, err = m.LoadAPIKey("gemini")
	require.NoError(t, err)
	assert.Equal(t, "AIza-2", got)

	assert.Error(t, m.SaveAPIKey("gemini", ""))
}
