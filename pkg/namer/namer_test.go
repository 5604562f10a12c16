package namer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/skillpack/pkg/resource"
	"github.com/jingkaihe/skillpack/pkg/walker"
)

func writeFile(t *testing.T, dir, rel, content string) string {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func walkFixture(t *testing.T, tmpDir string) (*resource.Index, *walker.Result) {
	t.Helper()
	index, err := resource.Crawl(context.Background(), tmpDir, []string{"**/*.md", "**/*.png"})
	require.NoError(t, err)
	index.ResolveLinks()

	result, err := walker.Walk(context.Background(), "SKILL.md", index, walker.Options{MaxDepth: walker.FullDepth})
	require.NoError(t, err)
	return index, result
}

func TestAssignNamesBasename(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, tmpDir, "SKILL.md", "[a](kb/section/topic.md)\n![p](images/pic.png)\n")
	writeFile(t, tmpDir, "kb/section/topic.md", "# Topic\n")
	writeFile(t, tmpDir, "images/pic.png", "png")

	index, result := walkFixture(t, tmpDir)
	plan, err := AssignNames(index, result, "SKILL.md", tmpDir, StrategyBasename, "")
	require.NoError(t, err)

	out, ok := plan.OutputFor("kb/section/topic.md")
	require.True(t, ok)
	assert.Equal(t, "topic.md", out)

	out, ok = plan.OutputFor("images/pic.png")
	require.True(t, ok)
	assert.Equal(t, "pic.png", out)

	// The manifest itself is never part of the plan.
	_, ok = plan.OutputFor("SKILL.md")
	assert.False(t, ok)
}

func TestAssignNamesBasenameCollision(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, tmpDir, "SKILL.md", "[a](alpha/notes.md)\n[b](beta/notes.md)\n")
	writeFile(t, tmpDir, "alpha/notes.md", "# Alpha\n")
	writeFile(t, tmpDir, "beta/notes.md", "# Beta\n")

	index, result := walkFixture(t, tmpDir)
	_, err := AssignNames(index, result, "SKILL.md", tmpDir, StrategyBasename, "")
	require.Error(t, err)

	var collision *CollisionError
	require.ErrorAs(t, err, &collision)
	assert.Equal(t, "notes.md", collision.OutputPath)
	assert.Contains(t, collision.Error(), filepath.Join("alpha", "notes.md"))
	assert.Contains(t, collision.Error(), filepath.Join("beta", "notes.md"))
}

func TestAssignNamesResourceID(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, tmpDir, "SKILL.md", "[t](kb/section/topic.md)\n")
	writeFile(t, tmpDir, "kb/section/topic.md", "# Topic\n")

	index, result := walkFixture(t, tmpDir)
	plan, err := AssignNames(index, result, "SKILL.md", tmpDir, StrategyResourceID, "kb")
	require.NoError(t, err)

	out, ok := plan.OutputFor("kb/section/topic.md")
	require.True(t, ok)
	assert.Equal(t, "section-topic.md", out)
}

func TestAssignNamesResourceIDNoPrefix(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, tmpDir, "SKILL.md", "[t](kb/section/topic.md)\n")
	writeFile(t, tmpDir, "kb/section/topic.md", "# Topic\n")

	index, result := walkFixture(t, tmpDir)
	plan, err := AssignNames(index, result, "SKILL.md", tmpDir, StrategyResourceID, "")
	require.NoError(t, err)

	out, _ := plan.OutputFor("kb/section/topic.md")
	assert.Equal(t, "kb-section-topic.md", out)
}

func TestAssignNamesPreservePath(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, tmpDir, "SKILL.md", "[t](kb/section/topic.md)\n[n](kb/notes.md)\n")
	writeFile(t, tmpDir, "kb/section/topic.md", "# Topic\n")
	writeFile(t, tmpDir, "kb/notes.md", "# Notes\n")

	index, result := walkFixture(t, tmpDir)
	plan, err := AssignNames(index, result, "SKILL.md", tmpDir, StrategyPreservePath, "")
	require.NoError(t, err)

	out, _ := plan.OutputFor("kb/section/topic.md")
	assert.Equal(t, "kb/section/topic.md", out)

	out, _ = plan.OutputFor("kb/notes.md")
	assert.Equal(t, "kb/notes.md", out)
}

func TestAssignNamesPreservePathStripPrefixCollision(t *testing.T) {
	// Stripping "a" collapses a/x.md onto the existing x.md.
	tmpDir := t.TempDir()
	writeFile(t, tmpDir, "SKILL.md", "[one](a/x.md)\n[two](x.md)\n")
	writeFile(t, tmpDir, "a/x.md", "# One\n")
	writeFile(t, tmpDir, "x.md", "# Two\n")

	index, result := walkFixture(t, tmpDir)
	_, err := AssignNames(index, result, "SKILL.md", tmpDir, StrategyPreservePath, "a")
	require.Error(t, err)

	var collision *CollisionError
	assert.ErrorAs(t, err, &collision)
}

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		in      string
		want    Strategy
		wantErr bool
	}{
		{"", StrategyBasename, false},
		{"basename", StrategyBasename, false},
		{"resource-id", StrategyResourceID, false},
		{"preserve-path", StrategyPreservePath, false},
		{"bogus", "", true},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseStrategy(tc.in)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestApplyStripPrefix(t *testing.T) {
	assert.Equal(t, "section/topic.md", applyStripPrefix("kb/section/topic.md", "kb"))
	assert.Equal(t, "section/topic.md", applyStripPrefix("kb/section/topic.md", "/kb/"))
	assert.Equal(t, "other/topic.md", applyStripPrefix("other/topic.md", "kb"))
	assert.Equal(t, "x.md", applyStripPrefix("x.md", ""))
}
