// Package namer assigns each bundled file a unique relative output path
// under the bundle's resources/ directory. All strategies are
// deterministic; a mapping that would write two distinct source files
// to the same output path is rejected with a CollisionError before
// anything touches disk.
package namer

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/jingkaihe/skillpack/pkg/resource"
	"github.com/jingkaihe/skillpack/pkg/walker"
)

// Strategy selects how bundled source paths map to output paths.
type Strategy string

const (
	// StrategyBasename keeps only the file's basename; directory
	// structure is discarded, so equal basenames in different source
	// directories collide.
	StrategyBasename Strategy = "basename"
	// StrategyResourceID collapses the prefix-stripped relative path
	// into a single kebab token ("kb/section/topic.md" with prefix "kb"
	// becomes "section-topic.md").
	StrategyResourceID Strategy = "resource-id"
	// StrategyPreservePath keeps the prefix-stripped relative path as
	// nested directories.
	StrategyPreservePath Strategy = "preserve-path"
)

// ParseStrategy validates a strategy name from configuration.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyBasename, StrategyResourceID, StrategyPreservePath:
		return Strategy(s), nil
	case "":
		return StrategyBasename, nil
	}
	return "", errors.Errorf("unknown naming strategy %q (want basename, resource-id or preserve-path)", s)
}

// CollisionError reports two distinct source files mapping to the same
// output path. Fatal: the build aborts before any file is written.
type CollisionError struct {
	OutputPath   string
	FirstSource  string
	SecondSource string
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("naming collision: %s and %s both map to output path %q",
		e.FirstSource, e.SecondSource, e.OutputPath)
}

// Plan maps resource ids to output paths relative to resources/.
// Injective by construction: AssignNames fails rather than produce a
// plan with duplicate output paths.
type Plan struct {
	paths   map[string]string
	sources map[string]string
}

// OutputFor returns the planned relative output path for a resource id.
func (p *Plan) OutputFor(id string) (string, bool) {
	out, ok := p.paths[id]
	return out, ok
}

// Len returns the number of planned entries.
func (p *Plan) Len() int {
	return len(p.paths)
}

// AssignNames computes the output path for every bundled resource and
// asset. The root manifest is not part of the plan; it is always
// written as SKILL.md at the bundle root. skillRoot anchors the
// relative paths the resource-id and preserve-path strategies operate
// on.
func AssignNames(index *resource.Index, result *walker.Result, rootID, skillRoot string, strategy Strategy, stripPrefix string) (*Plan, error) {
	plan := &Plan{
		paths:   make(map[string]string),
		sources: make(map[string]string),
	}

	add := func(id, sourcePath string) error {
		out, err := outputName(sourcePath, skillRoot, strategy, stripPrefix)
		if err != nil {
			return err
		}
		if prev, dup := plan.sources[out]; dup && prev != sourcePath {
			return &CollisionError{OutputPath: out, FirstSource: prev, SecondSource: sourcePath}
		}
		plan.paths[id] = out
		plan.sources[out] = sourcePath
		return nil
	}

	for _, id := range result.BundledResources {
		if id == rootID {
			continue
		}
		res, ok := index.ByID(id)
		if !ok {
			return nil, errors.Errorf("bundled resource %q missing from index", id)
		}
		if err := add(id, res.FilePath); err != nil {
			return nil, err
		}
	}
	for _, asset := range result.BundledAssets {
		if err := add(asset.ID, asset.Path); err != nil {
			return nil, err
		}
	}

	return plan, nil
}

func outputName(sourcePath, skillRoot string, strategy Strategy, stripPrefix string) (string, error) {
	switch strategy {
	case StrategyBasename, "":
		return filepath.Base(sourcePath), nil
	case StrategyResourceID:
		rel := relativeToRoot(sourcePath, skillRoot)
		rel = applyStripPrefix(rel, stripPrefix)
		return strings.Join(strings.Split(rel, "/"), "-"), nil
	case StrategyPreservePath:
		rel := relativeToRoot(sourcePath, skillRoot)
		return applyStripPrefix(rel, stripPrefix), nil
	}
	return "", errors.Errorf("unknown naming strategy %q", strategy)
}

// relativeToRoot returns the slash-normalized path of sourcePath
// relative to skillRoot with any leading "../" escapes dropped, so the
// result always nests under resources/.
func relativeToRoot(sourcePath, skillRoot string) string {
	rel, err := filepath.Rel(skillRoot, sourcePath)
	if err != nil {
		return filepath.Base(sourcePath)
	}
	slashed := filepath.ToSlash(rel)
	for strings.HasPrefix(slashed, "../") {
		slashed = strings.TrimPrefix(slashed, "../")
	}
	return path.Clean(slashed)
}

// applyStripPrefix removes a leading path prefix (slash-normalized,
// surrounding slashes ignored) from rel.
func applyStripPrefix(rel, stripPrefix string) string {
	prefix := strings.Trim(filepath.ToSlash(stripPrefix), "/")
	if prefix == "" {
		return rel
	}
	if rel == prefix {
		return path.Base(rel)
	}
	if strings.HasPrefix(rel, prefix+"/") {
		return strings.TrimPrefix(rel, prefix+"/")
	}
	return rel
}
