// File: internal/screenshot/screenshot_test.go
package screenshot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestSaveAndClear(t *testing.T) {
	dir := t.TempDir()
	saver, err := NewSaver(dir, zaptest.NewLogger(t))
	require.NoError(t, err)

	path, err := saver.Save("user@example.com", []byte("not-a-real-png"))
	require.NoError(t, err)
	assert.FileExists(t, path)
	assert.Contains(t, filepath.Base(path), "user_example_com")

	require.NoError(t, saver.Clear())
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestClearLeavesNonCaptures(t *testing.T) {
	dir := t.TempDir()
	saver, err := NewSaver(dir, zaptest.NewLogger(t))
	require.NoError(t, err)

	keep := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(keep, []byte("keep me"), 0o644))
	_, err = saver.Save("x@y.z", []byte("png"))
	require.NoError(t, err)

	require.NoError(t, saver.Clear())
	assert.FileExists(t, keep)
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "a_b_example_com", sanitize("a+b@example.com"))
	assert.Equal(t, "plain-name_1", sanitize("plain-name_1"))
}
