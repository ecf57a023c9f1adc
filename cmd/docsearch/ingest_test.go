package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectPaths(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.pdf", "a.docx", "notes.txt", "setup.exe"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.pdf"), 0o755))

	explicit := filepath.Join(dir, "b.pdf")
	got, err := collectPaths([]string{explicit}, dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		explicit,
		filepath.Join(dir, "a.docx"),
		filepath.Join(dir, "notes.txt"),
	}, got)
}

func TestCollectPathsMissingDir(t *testing.T) {
	_, err := collectPaths(nil, filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
