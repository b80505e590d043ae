package main

import (
	"os"
	"path/filepath"
	"testing"

	"facepilot/pkg/history"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebugLogger_MirrorsToTerminal(t *testing.T) {
	buf := history.NewBuffer(10)
	dl := NewDebugLogger(false, false, "", buf)
	defer dl.Close()

	dl.Msg("LINK", "serial link started")
	dl.Verbose("AUTOPILOT", "hidden")

	lines := buf.Recent(0)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "[LINK] serial link started")
}

func TestDebugLogger_VerboseEnabled(t *testing.T) {
	buf := history.NewBuffer(10)
	dl := NewDebugLogger(false, true, "", buf)
	defer dl.Close()

	dl.Verbose("AUTOPILOT", "step")
	assert.Equal(t, 1, buf.Len())
}

func TestDebugLogger_SessionFiles(t *testing.T) {
	dir := t.TempDir()
	dl := NewDebugLogger(true, false, dir, nil)

	dl.Msg("SESSION", "started", "abc")
	dl.Msg("AUTOPILOT", "tracking", "abc")
	dl.Msg("LINK", "no session")
	dl.Close()
	dl.Close()

	data, err := os.ReadFile(filepath.Join(dir, "abc.txt"))
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "=== AUTONOMY SESSION: abc ===")
	assert.Contains(t, content, "[SESSION] started")
	assert.Contains(t, content, "[AUTOPILOT] tracking")
	assert.NotContains(t, content, "no session")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	assert.NotPanics(t, func() { dl.Msg("SESSION", "after close", "abc") })
}
