package skills

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, ManifestFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadManifest(t *testing.T) {
	tmpDir := t.TempDir()
	path := writeManifest(t, tmpDir, `---
name: deploy-helper
description: Helps with deployments
version: 2.0.1
license: Apache-2.0
---

# Deploy Helper

Instructions here.
`)

	manifest, err := LoadManifest(path)
	require.NoError(t, err)

	assert.Equal(t, "deploy-helper", manifest.Metadata.Name)
	assert.Equal(t, "Helps with deployments", manifest.Metadata.Description)
	assert.Equal(t, "2.0.1", manifest.Metadata.Version)
	assert.Equal(t, "Apache-2.0", manifest.Metadata.License)
	assert.Equal(t, path, manifest.Path)
	assert.Equal(t, tmpDir, manifest.Directory)
	assert.Contains(t, manifest.Content, "# Deploy Helper")
	assert.NotContains(t, manifest.Content, "name: deploy-helper")
}

func TestLoadManifestFromDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	writeManifest(t, tmpDir, `---
name: from-dir
description: loaded via directory
---

Body.
`)

	manifest, err := LoadManifest(tmpDir)
	require.NoError(t, err)
	assert.Equal(t, "from-dir", manifest.Metadata.Name)
}

func TestLoadManifestDefaultVersion(t *testing.T) {
	tmpDir := t.TempDir()
	path := writeManifest(t, tmpDir, `---
name: no-version
description: has no version
---

Body.
`)

	manifest, err := LoadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultVersion, manifest.Metadata.Version)
}

func TestLoadManifestValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing frontmatter", "# No frontmatter\n"},
		{"missing name", "---\ndescription: only description\n---\n\nBody.\n"},
		{"missing description", "---\nname: only-name\n---\n\nBody.\n"},
		{"invalid yaml", "---\nname: [unclosed\n---\n\nBody.\n"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			path := writeManifest(t, tmpDir, tc.content)
			_, err := LoadManifest(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadManifestMissingFile(t *testing.T) {
	_, err := LoadManifest(filepath.Join(t.TempDir(), "SKILL.md"))
	assert.Error(t, err)
}

func TestSplitFrontmatter(t *testing.T) {
	fm, body, ok := splitFrontmatter("---\nname: x\n---\n\nBody text.\n")
	require.True(t, ok)
	assert.Equal(t, "name: x", fm)
	assert.Equal(t, "Body text.\n", body)

	_, body, ok = splitFrontmatter("plain body\n")
	assert.False(t, ok)
	assert.Equal(t, "plain body\n", body)
}
