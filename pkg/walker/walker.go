// Package walker performs the breadth-first traversal of a resolved
// link graph that decides, reference by reference, what goes into a
// bundle. Every discovered edge is classified exactly once: the target
// is either bundled or excluded with a specific reason, never both, and
// a visited-set keyed by stable resource identity guarantees
// termination on cyclic graphs.
package walker

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/gobwas/glob"
	"github.com/pkg/errors"

	"github.com/jingkaihe/skillpack/pkg/logger"
	"github.com/jingkaihe/skillpack/pkg/resource"
)

// ExcludeReason says why a discovered reference was left out of a bundle.
type ExcludeReason string

const (
	// ReasonDepthExceeded marks a target beyond the follow-depth limit
	ReasonDepthExceeded ExcludeReason = "depth-exceeded"
	// ReasonPatternMatched marks a target matched by a user exclusion rule
	ReasonPatternMatched ExcludeReason = "pattern-matched"
	// ReasonNavigationFile marks a README/index style browsing file
	ReasonNavigationFile ExcludeReason = "navigation-file"
	// ReasonDirectoryTarget marks an href that resolves to a directory
	ReasonDirectoryTarget ExcludeReason = "directory-target"
	// ReasonOutsideProject marks a target beyond the project boundary
	ReasonOutsideProject ExcludeReason = "outside-project"
)

// Overridable reports whether the exclusion is a user preference rather
// than a structural safety boundary. outside-project and
// directory-target are never overridable; the validator layer treats
// them as errors.
func (r ExcludeReason) Overridable() bool {
	return r != ReasonOutsideProject && r != ReasonDirectoryTarget
}

// ExcludeHandling selects how the rewriter renders an excluded link.
type ExcludeHandling string

const (
	// HandlingStrip replaces the link with its own anchor text
	HandlingStrip ExcludeHandling = "strip-to-text"
	// HandlingTemplate replaces the link with a rendered template
	HandlingTemplate ExcludeHandling = "template"
)

// ExcludeRule is one user-configured exclusion. Rules are evaluated in
// declaration order and the first match wins.
type ExcludeRule struct {
	Patterns []string        `yaml:"patterns" mapstructure:"patterns"`
	Handling ExcludeHandling `yaml:"handling" mapstructure:"handling"`
	Template string          `yaml:"template,omitempty" mapstructure:"template"`
}

// Matches reports whether the rule matches the given href or the
// target's project-relative path.
func (r *ExcludeRule) Matches(href, relPath string) bool {
	for _, pattern := range r.Patterns {
		if ok, err := doublestar.Match(pattern, href); err == nil && ok {
			return true
		}
		if relPath != "" {
			if ok, err := doublestar.Match(pattern, relPath); err == nil && ok {
				return true
			}
		}
	}
	return false
}

// ExcludedReference records one reference left out of the bundle.
type ExcludedReference struct {
	// Path is the absolute target path of the excluded reference.
	Path string
	// Href is the raw link text that produced it, from the first
	// discovering edge.
	Href string
	// SourceID identifies the resource whose link was excluded first.
	SourceID string
	Reason   ExcludeReason
	// Rule is set only for pattern-matched exclusions.
	Rule *ExcludeRule
}

// Asset is a bundled non-markdown file. Assets are renamed and copied
// byte-for-byte but never traversed.
type Asset struct {
	ID   string
	Path string
}

// Decision is the classification of one traversal target.
type Decision struct {
	Bundled bool
	// ID is set for bundled targets (markdown resources and assets).
	ID     string
	Reason ExcludeReason
	Rule   *ExcludeRule
}

// FullDepth disables the depth limit; traversal is still bounded by the
// finite crawled resource set.
const FullDepth = -1

// DefaultNavigationPatterns are the basename patterns treated as
// navigation files when ExcludeNavigationFiles is enabled.
var DefaultNavigationPatterns = []string{"README.md", "readme.md", "index.md", "INDEX.md"}

// Options configures a walk.
type Options struct {
	// MaxDepth is the largest depth (root = 0) at which references are
	// still followed; FullDepth means unbounded.
	MaxDepth int
	// ExcludeRules are user exclusions, evaluated in order.
	ExcludeRules []ExcludeRule
	// ProjectRoot is the boundary no bundled file may escape.
	ProjectRoot string
	// ExcludeNavigationFiles drops README/index style files.
	ExcludeNavigationFiles bool
	// NavigationPatterns overrides DefaultNavigationPatterns.
	NavigationPatterns []string
}

// Result is the output of one walk.
type Result struct {
	// BundledResources are markdown resource ids in BFS discovery order,
	// root first.
	BundledResources []string
	// BundledAssets are non-markdown files in discovery order.
	BundledAssets []Asset
	// ExcludedReferences lists every excluded reference with its reason,
	// in discovery order.
	ExcludedReferences []ExcludedReference
	// MaxBundledDepth is the greatest depth at which a resource or asset
	// was bundled.
	MaxBundledDepth int

	depths    map[string]int
	decisions map[string]*Decision
}

// Decision returns the classification recorded for an absolute target
// path, if the walk reached it.
func (r *Result) Decision(path string) (*Decision, bool) {
	d, ok := r.decisions[path]
	return d, ok
}

// Depth returns the BFS depth a bundled resource was discovered at.
func (r *Result) Depth(id string) (int, bool) {
	d, ok := r.depths[id]
	return d, ok
}

type queueItem struct {
	id    string
	depth int
}

// Walk traverses the resolved link graph from rootID breadth-first,
// classifying every discovered reference. The root itself is always
// bundled and exempt from exclusion rules.
func Walk(ctx context.Context, rootID string, index *resource.Index, opts Options) (*Result, error) {
	root, ok := index.ByID(rootID)
	if !ok {
		return nil, errors.Errorf("root resource %q not found in index", rootID)
	}
	if opts.ProjectRoot == "" {
		opts.ProjectRoot = index.BaseDir()
	}
	projectRoot, err := filepath.Abs(opts.ProjectRoot)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve project root %s", opts.ProjectRoot)
	}

	navGlobs, err := compileNavigationPatterns(opts)
	if err != nil {
		return nil, err
	}

	w := &walk{
		index:       index,
		opts:        opts,
		projectRoot: projectRoot,
		navGlobs:    navGlobs,
		result: &Result{
			depths:    make(map[string]int),
			decisions: make(map[string]*Decision),
		},
		visited: make(map[string]bool),
	}

	log := logger.G(ctx)
	w.bundleResource(root, 0)

	for len(w.queue) > 0 {
		item := w.queue[0]
		w.queue = w.queue[1:]

		res, ok := index.ByID(item.id)
		if !ok {
			continue
		}
		for i := range res.Resolved {
			w.classify(&res.Resolved[i], item.depth)
		}
	}

	log.WithFields(map[string]interface{}{
		"root":     rootID,
		"bundled":  len(w.result.BundledResources),
		"assets":   len(w.result.BundledAssets),
		"excluded": len(w.result.ExcludedReferences),
		"maxDepth": w.result.MaxBundledDepth,
	}).Debug("walk complete")

	return w.result, nil
}

type walk struct {
	index       *resource.Index
	opts        Options
	projectRoot string
	navGlobs    []glob.Glob
	result      *Result
	visited     map[string]bool
	queue       []queueItem
}

// classify applies the fixed priority order to one resolved edge:
// outside-project, directory-target, navigation-file, pattern-matched,
// depth-exceeded, bundled. The first matching rule wins, and a target
// already visited is never re-classified, so BFS order makes the first
// (shortest-path) discovery authoritative.
func (w *walk) classify(rl *resource.ResolvedLink, depth int) {
	target := rl.TargetPath
	if w.visited[target] {
		return
	}
	w.visited[target] = true

	relPath := w.projectRelative(target)

	if outside(w.projectRoot, target) {
		w.exclude(rl, ReasonOutsideProject, nil)
		return
	}

	info, err := os.Stat(target)
	if err != nil {
		// Broken link: not bundlable, reported by validation, not here.
		return
	}
	if info.IsDir() {
		w.exclude(rl, ReasonDirectoryTarget, nil)
		return
	}

	if w.opts.ExcludeNavigationFiles && w.isNavigationFile(target) {
		w.exclude(rl, ReasonNavigationFile, nil)
		return
	}

	href, _ := resource.SplitFragment(rl.Link.Href)
	for i := range w.opts.ExcludeRules {
		rule := &w.opts.ExcludeRules[i]
		if rule.Matches(filepath.ToSlash(href), relPath) {
			w.exclude(rl, ReasonPatternMatched, rule)
			return
		}
	}

	if w.opts.MaxDepth != FullDepth && depth+1 > w.opts.MaxDepth {
		w.exclude(rl, ReasonDepthExceeded, nil)
		return
	}

	if res, ok := w.index.ByPath(target); ok && res.IsMarkdown {
		w.bundleResource(res, depth+1)
		return
	}
	w.bundleAsset(target, depth+1)
}

func (w *walk) bundleResource(res *resource.Resource, depth int) {
	w.visited[res.FilePath] = true
	w.result.BundledResources = append(w.result.BundledResources, res.ID)
	w.result.depths[res.ID] = depth
	w.result.decisions[res.FilePath] = &Decision{Bundled: true, ID: res.ID}
	if depth > w.result.MaxBundledDepth {
		w.result.MaxBundledDepth = depth
	}
	w.queue = append(w.queue, queueItem{id: res.ID, depth: depth})
}

func (w *walk) bundleAsset(path string, depth int) {
	id := w.index.IDForPath(path)
	w.result.BundledAssets = append(w.result.BundledAssets, Asset{ID: id, Path: path})
	w.result.depths[id] = depth
	w.result.decisions[path] = &Decision{Bundled: true, ID: id}
	if depth > w.result.MaxBundledDepth {
		w.result.MaxBundledDepth = depth
	}
}

func (w *walk) exclude(rl *resource.ResolvedLink, reason ExcludeReason, rule *ExcludeRule) {
	w.result.ExcludedReferences = append(w.result.ExcludedReferences, ExcludedReference{
		Path:     rl.TargetPath,
		Href:     rl.Link.Href,
		SourceID: rl.SourceID,
		Reason:   reason,
		Rule:     rule,
	})
	w.result.decisions[rl.TargetPath] = &Decision{Reason: reason, Rule: rule}
}

func (w *walk) isNavigationFile(path string) bool {
	base := strings.ToLower(filepath.Base(path))
	for _, g := range w.navGlobs {
		if g.Match(base) {
			return true
		}
	}
	return false
}

func (w *walk) projectRelative(path string) string {
	rel, err := filepath.Rel(w.projectRoot, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return ""
	}
	return filepath.ToSlash(rel)
}

func compileNavigationPatterns(opts Options) ([]glob.Glob, error) {
	if !opts.ExcludeNavigationFiles {
		return nil, nil
	}
	patterns := opts.NavigationPatterns
	if len(patterns) == 0 {
		patterns = DefaultNavigationPatterns
	}
	globs := make([]glob.Glob, 0, len(patterns))
	for _, pattern := range patterns {
		g, err := glob.Compile(strings.ToLower(pattern))
		if err != nil {
			return nil, errors.Wrapf(err, "invalid navigation pattern %q", pattern)
		}
		globs = append(globs, g)
	}
	return globs, nil
}

// outside reports whether path falls outside root.
func outside(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return true
	}
	return rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
