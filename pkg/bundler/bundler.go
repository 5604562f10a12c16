// Package bundler orchestrates packaging a skill into a self-contained
// distributable directory: crawl the enclosing project, walk the link
// graph from the skill manifest, assign output names, rewrite content
// and write the bundle, plus optional zip/npm/marketplace artifacts.
package bundler

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/jingkaihe/skillpack/pkg/logger"
	"github.com/jingkaihe/skillpack/pkg/namer"
	"github.com/jingkaihe/skillpack/pkg/project"
	"github.com/jingkaihe/skillpack/pkg/resource"
	"github.com/jingkaihe/skillpack/pkg/rewriter"
	"github.com/jingkaihe/skillpack/pkg/skills"
	"github.com/jingkaihe/skillpack/pkg/walker"
)

// ErrPackageRootNotFound is returned when no output path was given and
// no enclosing project boundary could be located to derive one from.
var ErrPackageRootNotFound = errors.New("package root not found: specify an output path or run inside a project")

// resourcesDir is the subdirectory bundled files are written under.
const resourcesDir = "resources"

// ExcludeConfig is the user-facing exclusion configuration. Rules are
// evaluated in order with first match winning; the default handling is
// the trailing catch-all applied to excluded links no rule matched.
type ExcludeConfig struct {
	Rules           []walker.ExcludeRule   `yaml:"rules" mapstructure:"rules"`
	DefaultHandling walker.ExcludeHandling `yaml:"default,omitempty" mapstructure:"default"`
	DefaultTemplate string                 `yaml:"defaultTemplate,omitempty" mapstructure:"defaultTemplate"`
}

// defaultRule builds the catch-all rule for links excluded without a
// matching user rule.
func (c ExcludeConfig) defaultRule() walker.ExcludeRule {
	handling := c.DefaultHandling
	if handling == "" {
		handling = walker.HandlingStrip
	}
	return walker.ExcludeRule{Handling: handling, Template: c.DefaultTemplate}
}

// Options configures one PackageSkill invocation.
type Options struct {
	// OutputPath overrides the derived <projectRoot>/dist/skills/<name>.
	OutputPath string
	// Formats selects secondary artifacts; the directory itself is
	// always produced.
	Formats []Format
	// LinkFollowDepth bounds traversal; walker.FullDepth is unbounded.
	LinkFollowDepth int
	// ResourceNaming picks the output naming strategy.
	ResourceNaming namer.Strategy
	// StripPrefix is removed from relative paths by the resource-id and
	// preserve-path strategies.
	StripPrefix string
	// Exclude holds the user exclusion rules.
	Exclude ExcludeConfig
	// ExcludeNavigationFiles drops README/index style files.
	ExcludeNavigationFiles bool
	// NavigationPatterns overrides the default navigation basenames.
	NavigationPatterns []string
	// IncludeGlobs overrides the markdown include globs of the crawl.
	IncludeGlobs []string
	// ProjectRoot overrides project discovery.
	ProjectRoot string
	// Index reuses an existing crawl; lifecycle stays with the caller.
	Index *resource.Index
}

// DefaultOptions returns the options PackageSkill applies when the
// caller does not override them.
func DefaultOptions() Options {
	return Options{
		Formats:                []Format{FormatDirectory},
		LinkFollowDepth:        walker.FullDepth,
		ResourceNaming:         namer.StrategyBasename,
		ExcludeNavigationFiles: true,
	}
}

// BuildResult summarizes one completed build.
type BuildResult struct {
	SkillName  string
	Version    string
	OutputPath string
	// Artifacts are the paths of all written secondary artifacts.
	Artifacts []string

	BundledResourceCount   int
	BundledAssetCount      int
	ExcludedReferenceCount int
	ExcludedReferences     []walker.ExcludedReference
	MaxBundledDepth        int

	// CrawlErrors aggregates non-fatal per-file failures from the
	// crawl; never aborts the build.
	CrawlErrors error
}

// PackageSkill bundles the skill rooted at manifestPath (a SKILL.md
// file or a skill directory) into a clean output directory.
func PackageSkill(ctx context.Context, manifestPath string, opts Options) (*BuildResult, error) {
	log := logger.G(ctx)

	manifest, err := skills.LoadManifest(manifestPath)
	if err != nil {
		return nil, err
	}
	log.WithField("skill", manifest.Metadata.Name).Debug("loaded skill manifest")

	projectRoot, err := resolveProjectRoot(manifest, opts)
	if err != nil {
		return nil, err
	}

	outputPath := opts.OutputPath
	if outputPath == "" {
		outputPath = filepath.Join(projectRoot, "dist", "skills", manifest.Metadata.Name)
	}
	outputPath, err = filepath.Abs(outputPath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve output path %s", opts.OutputPath)
	}

	index := opts.Index
	if index == nil {
		index, err = resource.Crawl(ctx, projectRoot, opts.IncludeGlobs)
		if err != nil {
			return nil, err
		}
	}
	index.ResolveLinks()

	rootID := index.IDForPath(manifest.Path)
	if _, ok := index.ByID(rootID); !ok {
		return nil, errors.Errorf("skill manifest %s was not matched by the include globs", manifest.Path)
	}

	walkResult, err := walker.Walk(ctx, rootID, index, walker.Options{
		MaxDepth:               opts.LinkFollowDepth,
		ExcludeRules:           opts.Exclude.Rules,
		ProjectRoot:            projectRoot,
		ExcludeNavigationFiles: opts.ExcludeNavigationFiles,
		NavigationPatterns:     opts.NavigationPatterns,
	})
	if err != nil {
		return nil, err
	}

	plan, err := namer.AssignNames(index, walkResult, rootID, manifest.Directory, opts.ResourceNaming, opts.StripPrefix)
	if err != nil {
		return nil, err
	}

	if err := prepareOutputDir(outputPath, manifest.Path); err != nil {
		return nil, err
	}

	if err := writeBundle(index, walkResult, plan, rootID, manifest, outputPath, opts); err != nil {
		return nil, err
	}

	result := &BuildResult{
		SkillName:              manifest.Metadata.Name,
		Version:                manifest.Metadata.Version,
		OutputPath:             outputPath,
		BundledResourceCount:   len(walkResult.BundledResources),
		BundledAssetCount:      len(walkResult.BundledAssets),
		ExcludedReferenceCount: len(walkResult.ExcludedReferences),
		ExcludedReferences:     walkResult.ExcludedReferences,
		MaxBundledDepth:        walkResult.MaxBundledDepth,
		CrawlErrors:            index.CrawlErrors(),
	}

	artifacts, err := writeArtifacts(ctx, manifest, outputPath, opts.Formats)
	if err != nil {
		return nil, err
	}
	result.Artifacts = artifacts

	log.WithFields(map[string]interface{}{
		"skill":    manifest.Metadata.Name,
		"output":   outputPath,
		"bundled":  result.BundledResourceCount,
		"assets":   result.BundledAssetCount,
		"excluded": result.ExcludedReferenceCount,
	}).Info("skill packaged")

	return result, nil
}

func resolveProjectRoot(manifest *skills.Manifest, opts Options) (string, error) {
	if opts.ProjectRoot != "" {
		return filepath.Abs(opts.ProjectRoot)
	}

	root, err := project.FindRoot(manifest.Directory)
	if err == nil {
		return root, nil
	}
	if !errors.Is(err, project.ErrNotFound) {
		return "", err
	}
	if opts.OutputPath == "" {
		return "", errors.Wrapf(ErrPackageRootNotFound, "no project marker above %s", manifest.Directory)
	}
	// Explicit output given: the skill directory itself is the boundary.
	return manifest.Directory, nil
}

// prepareOutputDir guarantees a clean rebuild. An existing output
// directory is removed entirely unless the manifest itself lives inside
// it, in which case only the files of the current build are overwritten
// so the source is never deleted.
func prepareOutputDir(outputPath, manifestPath string) error {
	if _, err := os.Stat(outputPath); err == nil {
		if !isWithin(outputPath, manifestPath) {
			if err := os.RemoveAll(outputPath); err != nil {
				return errors.Wrapf(err, "failed to clean output directory %s", outputPath)
			}
		}
	}
	if err := os.MkdirAll(outputPath, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create output directory %s", outputPath)
	}
	return nil
}

// isWithin reports whether path is inside (or equal to) dir.
func isWithin(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

func writeBundle(index *resource.Index, walkResult *walker.Result, plan *namer.Plan, rootID string, manifest *skills.Manifest, outputPath string, opts Options) error {
	defaultRule := opts.Exclude.defaultRule()

	for _, id := range walkResult.BundledResources {
		res, ok := index.ByID(id)
		if !ok {
			return errors.Errorf("bundled resource %q missing from index", id)
		}

		content, err := os.ReadFile(res.FilePath)
		if err != nil {
			return errors.Wrapf(err, "failed to read bundled resource %s", res.FilePath)
		}

		rewritten := rewriter.Rewrite(rewriter.Input{
			Resource:    res,
			Content:     content,
			Result:      walkResult,
			Plan:        plan,
			RootID:      rootID,
			SkillName:   manifest.Metadata.Name,
			DefaultRule: defaultRule,
		})

		dest := filepath.Join(outputPath, skills.ManifestFileName)
		if id != rootID {
			out, ok := plan.OutputFor(id)
			if !ok {
				return errors.Errorf("no output name planned for resource %q", id)
			}
			dest = filepath.Join(outputPath, resourcesDir, filepath.FromSlash(out))
		}

		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return errors.Wrapf(err, "failed to create directory for %s", dest)
		}
		if err := os.WriteFile(dest, rewritten, 0o644); err != nil {
			return errors.Wrapf(err, "failed to write %s", dest)
		}
	}

	for _, asset := range walkResult.BundledAssets {
		out, ok := plan.OutputFor(asset.ID)
		if !ok {
			return errors.Errorf("no output name planned for asset %q", asset.ID)
		}
		dest := filepath.Join(outputPath, resourcesDir, filepath.FromSlash(out))
		if err := copyFile(asset.Path, dest); err != nil {
			return errors.Wrapf(err, "failed to copy asset %s", asset.Path)
		}
	}

	return nil
}

// copyFile copies bytes without text processing; assets may be binary.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
