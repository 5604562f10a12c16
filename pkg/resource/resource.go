// Package resource builds the in-memory index a bundling run operates
// on: every file discovered under a base directory, parsed once, with
// its outbound links resolved against the discovered set. The index is
// scoped to a single packaging run and passed explicitly to the walker
// and writer; there is no process-wide registry.
package resource

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/jingkaihe/skillpack/pkg/logger"
	"github.com/jingkaihe/skillpack/pkg/markdown"
)

// DefaultIncludeGlobs matches the markdown files indexed when the
// caller does not supply its own globs.
var DefaultIncludeGlobs = []string{"**/*.md", "**/*.markdown"}

// Resource is one discovered file. Immutable once the crawl finishes.
type Resource struct {
	// ID is the slash-normalized path relative to the index base
	// directory; stable across runs for the same tree.
	ID          string
	FilePath    string
	ContentHash string
	IsMarkdown  bool
	Links       []markdown.Link
	Headings    []markdown.Heading

	// Resolved holds the local-file links after ResolveLinks. Links of
	// other types (external, anchor, email) are not resolved.
	Resolved []ResolvedLink
}

// ResolvedLink is an outbound local-file reference resolved against the
// source file's directory.
type ResolvedLink struct {
	Link     markdown.Link
	SourceID string
	// TargetPath is the absolute cleaned path, anchor stripped.
	TargetPath string
	// TargetID is set only when the target was discovered by the crawl.
	TargetID string
	// Fragment is the stripped "#anchor" part, empty if none.
	Fragment string
}

// Index is the resource lookup for one packaging run.
type Index struct {
	baseDir  string
	byID     map[string]*Resource
	byPath   map[string]*Resource
	order    []string
	crawlErr *multierror.Error
}

// Crawl discovers every file matching includeGlobs under baseDir and
// parses markdown files once. Unreadable or unparseable files are
// recorded with an empty link set and the failure is aggregated into
// CrawlErrors; a single corrupt file never aborts the crawl.
func Crawl(ctx context.Context, baseDir string, includeGlobs []string) (*Index, error) {
	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve base directory %s", baseDir)
	}
	if info, err := os.Stat(absBase); err != nil || !info.IsDir() {
		return nil, errors.Errorf("base directory %s does not exist or is not a directory", baseDir)
	}

	if len(includeGlobs) == 0 {
		includeGlobs = DefaultIncludeGlobs
	}

	ix := &Index{
		baseDir: absBase,
		byID:    make(map[string]*Resource),
		byPath:  make(map[string]*Resource),
	}

	fsys := os.DirFS(absBase)
	seen := make(map[string]bool)
	var matches []string
	for _, pattern := range includeGlobs {
		found, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, errors.Wrapf(err, "invalid include glob %q", pattern)
		}
		for _, rel := range found {
			if !seen[rel] {
				seen[rel] = true
				matches = append(matches, rel)
			}
		}
	}
	sort.Strings(matches)

	log := logger.G(ctx)
	for _, rel := range matches {
		res := ix.load(filepath.Join(absBase, filepath.FromSlash(rel)), rel)
		ix.byID[res.ID] = res
		ix.byPath[res.FilePath] = res
		ix.order = append(ix.order, res.ID)
	}
	log.WithFields(map[string]interface{}{
		"baseDir": absBase,
		"files":   len(ix.order),
	}).Debug("crawl complete")

	return ix, nil
}

func (ix *Index) load(absPath, rel string) *Resource {
	res := &Resource{
		ID:         filepath.ToSlash(rel),
		FilePath:   absPath,
		IsMarkdown: IsMarkdownPath(absPath),
	}

	content, err := os.ReadFile(absPath)
	if err != nil {
		ix.crawlErr = multierror.Append(ix.crawlErr, errors.Wrapf(err, "failed to read %s", absPath))
		return res
	}

	sum := sha256.Sum256(content)
	res.ContentHash = hex.EncodeToString(sum[:])

	if !res.IsMarkdown {
		return res
	}

	doc, err := markdown.ParseBytes(absPath, content)
	if err != nil {
		ix.crawlErr = multierror.Append(ix.crawlErr, errors.Wrapf(err, "failed to parse %s", absPath))
		return res
	}
	res.Links = doc.Links
	res.Headings = doc.Headings
	return res
}

// ResolveLinks resolves every local-file link of every resource against
// the source file's directory. Targets that were not discovered by the
// crawl keep an empty TargetID; existence checks are the walker's job.
func (ix *Index) ResolveLinks() {
	for _, id := range ix.order {
		res := ix.byID[id]
		res.Resolved = res.Resolved[:0]
		for _, link := range res.Links {
			if link.Type != markdown.LinkTypeLocalFile {
				continue
			}
			rl, ok := ix.resolveLink(res, link)
			if ok {
				res.Resolved = append(res.Resolved, rl)
			}
		}
	}
}

func (ix *Index) resolveLink(res *Resource, link markdown.Link) (ResolvedLink, bool) {
	href, fragment := SplitFragment(link.Href)
	if href == "" {
		return ResolvedLink{}, false
	}
	if decoded, err := url.PathUnescape(href); err == nil {
		href = decoded
	}

	target := filepath.FromSlash(href)
	if !filepath.IsAbs(target) {
		target = filepath.Join(filepath.Dir(res.FilePath), target)
	}
	target = filepath.Clean(target)

	rl := ResolvedLink{
		Link:       link,
		SourceID:   res.ID,
		TargetPath: target,
		Fragment:   fragment,
	}
	if hit, ok := ix.byPath[target]; ok {
		rl.TargetID = hit.ID
	}
	return rl, true
}

// ByID returns the resource with the given id.
func (ix *Index) ByID(id string) (*Resource, bool) {
	res, ok := ix.byID[id]
	return res, ok
}

// ByPath returns the resource with the given absolute path.
func (ix *Index) ByPath(path string) (*Resource, bool) {
	res, ok := ix.byPath[path]
	return res, ok
}

// BaseDir returns the absolute base directory of the crawl.
func (ix *Index) BaseDir() string {
	return ix.baseDir
}

// IDs returns the resource ids in deterministic (sorted) order.
func (ix *Index) IDs() []string {
	out := make([]string, len(ix.order))
	copy(out, ix.order)
	return out
}

// Len returns the number of indexed resources.
func (ix *Index) Len() int {
	return len(ix.order)
}

// IDForPath derives the stable id an absolute path would have in this
// index, whether or not the path was crawled.
func (ix *Index) IDForPath(path string) string {
	rel, err := filepath.Rel(ix.baseDir, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

// CrawlErrors returns the aggregated non-fatal crawl failures, or nil.
func (ix *Index) CrawlErrors() error {
	return ix.crawlErr.ErrorOrNil()
}

// IsMarkdownPath reports whether the path has a markdown extension.
func IsMarkdownPath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return true
	}
	return false
}

// SplitFragment splits an href into its path part and anchor fragment.
func SplitFragment(href string) (string, string) {
	if idx := strings.Index(href, "#"); idx >= 0 {
		return href[:idx], href[idx+1:]
	}
	return href, ""
}
