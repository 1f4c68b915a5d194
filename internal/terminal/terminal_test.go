// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package terminal

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadLine(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "newline terminated", in: "  sk-ant-abc \nrest\n", want: "sk-ant-abc"},
		{name: "no newline", in: "postgres://u@h/db", want: "postgres://u@h/db"},
		{name: "empty", in: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReadLine(strings.NewReader(tt.in))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClearPreviousLines(t *testing.T) {
	var b strings.Builder
	ClearPreviousLines(&b, 10)

	// Non-terminal width is 80: one text line plus the line after Enter.
	assert.Equal(t, "\r\x1b[2K\x1b[1A\r\x1b[2K", b.String())
}
