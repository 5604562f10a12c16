package main

import (
	"fmt"
	"os"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jingkaihe/skillpack/pkg/presenter"
	"github.com/jingkaihe/skillpack/pkg/project"
	"github.com/jingkaihe/skillpack/pkg/resource"
	"github.com/jingkaihe/skillpack/pkg/skills"
	"github.com/jingkaihe/skillpack/pkg/walker"
)

var validateCmd = &cobra.Command{
	Use:   "validate <SKILL.md|skill-dir>",
	Short: "Validate a skill's link graph without writing a bundle",
	Long: `Validate a skill's link graph without writing a bundle.

Walks the references reachable from the skill manifest and reports
broken links and unsafe targets (directories, files outside the
project) as errors. Depth, pattern and navigation exclusions are
reported as notes. Exits nonzero when errors are found.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runValidate(cmd, args[0])
	},
}

func runValidate(cmd *cobra.Command, manifestPath string) {
	ctx := cmd.Context()

	manifest, err := skills.LoadManifest(manifestPath)
	if err != nil {
		presenter.Error(err, "Invalid skill manifest")
		os.Exit(1)
	}

	projectRoot, err := project.FindRoot(manifest.Directory)
	if err != nil {
		// Without a project boundary the skill directory is validated
		// in isolation.
		projectRoot = manifest.Directory
	}

	index, err := resource.Crawl(ctx, projectRoot, viper.GetStringSlice("include_globs"))
	if err != nil {
		presenter.Error(err, "Failed to crawl project")
		os.Exit(1)
	}
	index.ResolveLinks()

	rootID := index.IDForPath(manifest.Path)
	result, err := walker.Walk(ctx, rootID, index, walker.Options{
		MaxDepth:               walker.FullDepth,
		ProjectRoot:            projectRoot,
		ExcludeNavigationFiles: false,
	})
	if err != nil {
		presenter.Error(err, "Failed to walk link graph")
		os.Exit(1)
	}

	var validationErrs *multierror.Error

	for _, ref := range result.ExcludedReferences {
		if ref.Reason.Overridable() {
			presenter.Info(fmt.Sprintf("note: %s excluded (%s)", ref.Href, ref.Reason))
			continue
		}
		validationErrs = multierror.Append(validationErrs,
			errors.Errorf("%s: link %q is %s", ref.SourceID, ref.Href, ref.Reason))
	}

	for _, brokenLink := range brokenLinks(index, result) {
		validationErrs = multierror.Append(validationErrs, brokenLink)
	}

	if crawlErr := index.CrawlErrors(); crawlErr != nil {
		presenter.Warning(fmt.Sprintf("Some files could not be indexed: %v", crawlErr))
	}

	if err := validationErrs.ErrorOrNil(); err != nil {
		presenter.Error(err, fmt.Sprintf("Skill '%s' has invalid references", manifest.Metadata.Name))
		os.Exit(1)
	}

	presenter.Success(fmt.Sprintf("Skill '%s' is valid: %d resource(s), %d asset(s) reachable",
		manifest.Metadata.Name, len(result.BundledResources), len(result.BundledAssets)))
}

// brokenLinks reports local links of bundled resources whose target
// neither exists on disk nor was classified by the walk.
func brokenLinks(index *resource.Index, result *walker.Result) []error {
	var out []error
	for _, id := range result.BundledResources {
		res, ok := index.ByID(id)
		if !ok {
			continue
		}
		for _, rl := range res.Resolved {
			if _, classified := result.Decision(rl.TargetPath); classified {
				continue
			}
			if _, err := os.Stat(rl.TargetPath); os.IsNotExist(err) {
				out = append(out, errors.Errorf("%s: broken link %q", rl.SourceID, rl.Link.Href))
			}
		}
	}
	return out
}
