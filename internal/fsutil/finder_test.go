package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindFilesByExtension(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".hidden"), 0o755))

	for _, name := range []string{"b.hcl", "a.hcl", "notes.txt", "sub/c.hcl", ".hidden/d.hcl", ".skip.hcl"} {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte("x"), 0o644))
	}

	files, err := FindFilesByExtension(root, ".hcl")
	require.NoError(t, err)

	want := []string{
		filepath.Join(root, "a.hcl"),
		filepath.Join(root, "b.hcl"),
		filepath.Join(root, "sub", "c.hcl"),
	}
	assert.Equal(t, want, files)
}

func TestFindFilesByExtensionMissingRoot(t *testing.T) {
	_, err := FindFilesByExtension(filepath.Join(t.TempDir(), "nope"), ".hcl")
	assert.Error(t, err)
}

func TestFindFilesByExtensionEmptyExtensionPanics(t *testing.T) {
	assert.Panics(t, func() {
		_, _ = FindFilesByExtension(t.TempDir(), "")
	})
}
