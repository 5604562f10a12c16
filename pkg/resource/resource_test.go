package resource

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/skillpack/pkg/markdown"
)

func writeFile(t *testing.T, dir, rel, content string) string {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCrawl(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, tmpDir, "SKILL.md", "# Root\n\n[guide](docs/guide.md)\n")
	writeFile(t, tmpDir, "docs/guide.md", "# Guide\n")
	writeFile(t, tmpDir, "docs/data.json", "{}\n")

	index, err := Crawl(context.Background(), tmpDir, nil)
	require.NoError(t, err)

	// Default globs match markdown only.
	assert.Equal(t, 2, index.Len())
	assert.Equal(t, []string{"SKILL.md", "docs/guide.md"}, index.IDs())

	root, ok := index.ByID("SKILL.md")
	require.True(t, ok)
	assert.True(t, root.IsMarkdown)
	assert.NotEmpty(t, root.ContentHash)
	require.Len(t, root.Links, 1)
	assert.Equal(t, "docs/guide.md", root.Links[0].Href)

	byPath, ok := index.ByPath(filepath.Join(tmpDir, "docs", "guide.md"))
	require.True(t, ok)
	assert.Equal(t, "docs/guide.md", byPath.ID)
}

func TestCrawlCustomGlobs(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, tmpDir, "SKILL.md", "# Root\n")
	writeFile(t, tmpDir, "notes.txt", "plain\n")

	index, err := Crawl(context.Background(), tmpDir, []string{"**/*.md", "**/*.txt"})
	require.NoError(t, err)
	assert.Equal(t, 2, index.Len())

	txt, ok := index.ByID("notes.txt")
	require.True(t, ok)
	assert.False(t, txt.IsMarkdown)
	assert.Empty(t, txt.Links)
}

func TestCrawlMissingBaseDir(t *testing.T) {
	_, err := Crawl(context.Background(), "/nonexistent/skillpack-test", nil)
	assert.Error(t, err)
}

func TestContentHashStable(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, tmpDir, "a.md", "same content\n")
	writeFile(t, tmpDir, "b.md", "same content\n")
	writeFile(t, tmpDir, "c.md", "different content\n")

	index, err := Crawl(context.Background(), tmpDir, nil)
	require.NoError(t, err)

	a, _ := index.ByID("a.md")
	b, _ := index.ByID("b.md")
	c, _ := index.ByID("c.md")
	assert.Equal(t, a.ContentHash, b.ContentHash)
	assert.NotEqual(t, a.ContentHash, c.ContentHash)
}

func TestResolveLinks(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, tmpDir, "SKILL.md", `# Root

[guide](docs/guide.md#setup)
[missing](docs/missing.md)
[external](https://example.com)
`)
	writeFile(t, tmpDir, "docs/guide.md", "# Guide\n\n[back](../SKILL.md)\n")

	index, err := Crawl(context.Background(), tmpDir, nil)
	require.NoError(t, err)
	index.ResolveLinks()

	root, _ := index.ByID("SKILL.md")
	// External links are not resolved; the missing target still is.
	require.Len(t, root.Resolved, 2)

	guide := root.Resolved[0]
	assert.Equal(t, "SKILL.md", guide.SourceID)
	assert.Equal(t, filepath.Join(tmpDir, "docs", "guide.md"), guide.TargetPath)
	assert.Equal(t, "docs/guide.md", guide.TargetID)
	assert.Equal(t, "setup", guide.Fragment)

	missing := root.Resolved[1]
	assert.Equal(t, filepath.Join(tmpDir, "docs", "missing.md"), missing.TargetPath)
	assert.Empty(t, missing.TargetID)

	// Relative ".." resolution back to the root.
	guideRes, _ := index.ByID("docs/guide.md")
	require.Len(t, guideRes.Resolved, 1)
	assert.Equal(t, "SKILL.md", guideRes.Resolved[0].TargetID)
}

func TestIDForPath(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, tmpDir, "SKILL.md", "# Root\n")

	index, err := Crawl(context.Background(), tmpDir, nil)
	require.NoError(t, err)

	assert.Equal(t, "docs/pic.png", index.IDForPath(filepath.Join(tmpDir, "docs", "pic.png")))
}

func TestIsMarkdownPath(t *testing.T) {
	assert.True(t, IsMarkdownPath("a.md"))
	assert.True(t, IsMarkdownPath("a.MD"))
	assert.True(t, IsMarkdownPath("a.markdown"))
	assert.False(t, IsMarkdownPath("a.png"))
	assert.False(t, IsMarkdownPath("md"))
}

func TestSplitFragment(t *testing.T) {
	href, frag := SplitFragment("docs/a.md#setup")
	assert.Equal(t, "docs/a.md", href)
	assert.Equal(t, "setup", frag)

	href, frag = SplitFragment("docs/a.md")
	assert.Equal(t, "docs/a.md", href)
	assert.Empty(t, frag)
}

func TestCrawlRecordsLinkTypes(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, tmpDir, "SKILL.md", "[x](a.md) [y](#top) [z](mailto:a@b.c)\n")
	writeFile(t, tmpDir, "a.md", "# A\n")

	index, err := Crawl(context.Background(), tmpDir, nil)
	require.NoError(t, err)

	root, _ := index.ByID("SKILL.md")
	require.Len(t, root.Links, 3)
	assert.Equal(t, markdown.LinkTypeLocalFile, root.Links[0].Type)
	assert.Equal(t, markdown.LinkTypeAnchor, root.Links[1].Type)
	assert.Equal(t, markdown.LinkTypeEmail, root.Links[2].Type)
}
