package project

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindRoot(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(tmpDir, ".git"), 0o755))
	nested := filepath.Join(tmpDir, "skills", "deploy")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	root, err := FindRoot(nested)
	require.NoError(t, err)
	assert.Equal(t, tmpDir, root)
}

func TestFindRootWorkspaceMarkers(t *testing.T) {
	for _, marker := range []string{"go.mod", "package.json", ".skillpack"} {
		t.Run(marker, func(t *testing.T) {
			tmpDir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(tmpDir, marker), []byte("{}"), 0o644))
			nested := filepath.Join(tmpDir, "docs")
			require.NoError(t, os.MkdirAll(nested, 0o755))

			root, err := FindRoot(nested)
			require.NoError(t, err)
			assert.Equal(t, tmpDir, root)
		})
	}
}

func TestFindRootNotFound(t *testing.T) {
	tmpDir := t.TempDir()

	root, err := FindRoot(tmpDir)
	if err == nil {
		// An ancestor of the temp dir may legitimately carry a marker.
		assert.NotEqual(t, tmpDir, root)
		return
	}
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFindRootNearestWins(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(tmpDir, ".git"), 0o755))
	inner := filepath.Join(tmpDir, "sub")
	require.NoError(t, os.MkdirAll(inner, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(inner, "go.mod"), []byte("module x\n"), 0o644))

	root, err := FindRoot(filepath.Join(inner))
	require.NoError(t, err)
	assert.Equal(t, inner, root)
}
