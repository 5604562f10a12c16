package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jingkaihe/skillpack/pkg/bundler"
	"github.com/jingkaihe/skillpack/pkg/namer"
	"github.com/jingkaihe/skillpack/pkg/presenter"
	"github.com/jingkaihe/skillpack/pkg/walker"
)

// BundleConfig carries the bundle command's flag values.
type BundleConfig struct {
	Output            string
	Formats           []string
	Depth             string
	Naming            string
	StripPrefix       string
	IncludeNavigation bool
}

func NewBundleConfig() *BundleConfig {
	return &BundleConfig{
		Formats: []string{"directory"},
		Depth:   "full",
		Naming:  string(namer.StrategyBasename),
	}
}

var bundleCmd = &cobra.Command{
	Use:   "bundle <SKILL.md|skill-dir>",
	Short: "Package a skill into a self-contained bundle",
	Long: `Package a skill into a self-contained bundle.

Crawls the enclosing project, follows the links reachable from the
skill's SKILL.md manifest, and writes the manifest plus every bundled
file into a clean output directory. Exclusion rules, link follow depth
and the output naming strategy are configurable.

Examples:
  skillpack bundle ./skills/deploy/SKILL.md
  skillpack bundle ./skills/deploy --output ./dist/deploy --formats zip,marketplace
  skillpack bundle ./skills/deploy --depth 2 --naming preserve-path`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		config := getBundleConfigFromFlags(cmd)
		runBundle(cmd, args[0], config)
	},
}

func init() {
	defaults := NewBundleConfig()
	bundleCmd.Flags().StringP("output", "o", defaults.Output, "Output directory (default <projectRoot>/dist/skills/<name>)")
	bundleCmd.Flags().StringSlice("formats", defaults.Formats, "Artifacts to produce (directory, zip, npm, marketplace)")
	bundleCmd.Flags().String("depth", defaults.Depth, "Link follow depth ('full' or a non-negative integer)")
	bundleCmd.Flags().String("naming", defaults.Naming, "Resource naming strategy (basename, resource-id, preserve-path)")
	bundleCmd.Flags().String("strip-prefix", defaults.StripPrefix, "Path prefix stripped by resource-id and preserve-path naming")
	bundleCmd.Flags().Bool("include-navigation", defaults.IncludeNavigation, "Bundle navigation files (README.md, index.md) instead of excluding them")
}

func getBundleConfigFromFlags(cmd *cobra.Command) *BundleConfig {
	config := NewBundleConfig()
	if output, err := cmd.Flags().GetString("output"); err == nil {
		config.Output = output
	}
	if formats, err := cmd.Flags().GetStringSlice("formats"); err == nil {
		config.Formats = formats
	}
	if depth, err := cmd.Flags().GetString("depth"); err == nil {
		config.Depth = depth
	}
	if naming, err := cmd.Flags().GetString("naming"); err == nil {
		config.Naming = naming
	}
	if stripPrefix, err := cmd.Flags().GetString("strip-prefix"); err == nil {
		config.StripPrefix = stripPrefix
	}
	if includeNav, err := cmd.Flags().GetBool("include-navigation"); err == nil {
		config.IncludeNavigation = includeNav
	}
	return config
}

func buildOptions(config *BundleConfig) (bundler.Options, error) {
	opts := bundler.DefaultOptions()
	opts.OutputPath = config.Output
	opts.StripPrefix = config.StripPrefix
	opts.ExcludeNavigationFiles = !config.IncludeNavigation

	formats, err := bundler.ParseFormats(config.Formats)
	if err != nil {
		return opts, err
	}
	opts.Formats = formats

	depth, err := parseDepth(config.Depth)
	if err != nil {
		return opts, err
	}
	opts.LinkFollowDepth = depth

	strategy, err := namer.ParseStrategy(config.Naming)
	if err != nil {
		return opts, err
	}
	opts.ResourceNaming = strategy

	// Exclusion rules and include globs are structured config, not flags.
	if err := viper.UnmarshalKey("exclude", &opts.Exclude); err != nil {
		return opts, errors.Wrap(err, "invalid exclude configuration")
	}
	opts.IncludeGlobs = viper.GetStringSlice("include_globs")
	opts.NavigationPatterns = viper.GetStringSlice("navigation_patterns")

	return opts, nil
}

func parseDepth(s string) (int, error) {
	if strings.EqualFold(strings.TrimSpace(s), "full") {
		return walker.FullDepth, nil
	}
	depth, err := strconv.Atoi(s)
	if err != nil || depth < 0 {
		return 0, errors.Errorf("invalid depth %q (want 'full' or a non-negative integer)", s)
	}
	return depth, nil
}

func runBundle(cmd *cobra.Command, manifestPath string, config *BundleConfig) {
	opts, err := buildOptions(config)
	if err != nil {
		presenter.Error(err, "Invalid bundle configuration")
		os.Exit(1)
	}

	result, err := bundler.PackageSkill(cmd.Context(), manifestPath, opts)
	if err != nil {
		presenter.Error(err, "Failed to package skill")
		os.Exit(1)
	}

	presenter.Success(fmt.Sprintf("Packaged skill '%s' to %s", result.SkillName, result.OutputPath))
	presenter.Info(fmt.Sprintf("Bundled %d resource(s) and %d asset(s), max depth %d",
		result.BundledResourceCount, result.BundledAssetCount, result.MaxBundledDepth))

	if result.ExcludedReferenceCount > 0 {
		presenter.Info(fmt.Sprintf("Excluded %d reference(s):", result.ExcludedReferenceCount))
		for _, ref := range result.ExcludedReferences {
			presenter.Info(fmt.Sprintf("  %s (%s)", ref.Href, ref.Reason))
		}
	}

	for _, artifact := range result.Artifacts {
		presenter.Info(fmt.Sprintf("Wrote %s", artifact))
	}

	if result.CrawlErrors != nil {
		presenter.Warning(fmt.Sprintf("Some files could not be indexed: %v", result.CrawlErrors))
	}
}
