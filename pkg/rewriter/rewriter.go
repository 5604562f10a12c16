// Package rewriter rewrites the links inside a bundled markdown file.
// Included links are re-pointed at their renamed output location;
// excluded links are stripped to their anchor text or replaced with a
// rendered template. Rewriting splices the parser's recorded byte spans
// rather than searching raw text, so link text containing markdown
// syntax survives intact.
package rewriter

import (
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jingkaihe/skillpack/pkg/markdown"
	"github.com/jingkaihe/skillpack/pkg/namer"
	"github.com/jingkaihe/skillpack/pkg/resource"
	"github.com/jingkaihe/skillpack/pkg/walker"
)

// resourcesDir is the directory bundled, renamed files live under
// inside the output tree.
const resourcesDir = "resources"

// Input carries everything a single file rewrite needs.
type Input struct {
	Resource *resource.Resource
	Content  []byte
	Result   *walker.Result
	Plan     *namer.Plan
	// RootID marks the manifest resource, written to SKILL.md at the
	// bundle root rather than under resources/.
	RootID string
	// SkillName feeds the {{skill.name}} template key.
	SkillName string
	// DefaultRule handles excluded links that no user rule matched
	// (depth-exceeded, navigation, structural exclusions).
	DefaultRule walker.ExcludeRule
}

type edit struct {
	start int
	end   int
	text  string
}

// Rewrite returns the content of one bundled file with every resolved
// local link rewritten according to the walk result and naming plan.
// Links whose source span could not be recovered are left untouched.
func Rewrite(in Input) []byte {
	var edits []edit

	fromDir := outputDir(in.Resource.ID, in.RootID, in.Plan)

	for i := range in.Resource.Resolved {
		rl := &in.Resource.Resolved[i]
		link := rl.Link
		if link.Start < 0 {
			continue
		}

		decision, ok := in.Result.Decision(rl.TargetPath)
		if !ok {
			// Broken link: validation reports it, content keeps it.
			continue
		}

		if decision.Bundled {
			href, ok := bundledHref(decision.ID, rl.Fragment, fromDir, in)
			if !ok {
				continue
			}
			edits = append(edits, edit{start: link.DestStart, end: link.DestEnd, text: href})
			continue
		}

		edits = append(edits, edit{
			start: link.Start,
			end:   link.End,
			text:  renderExcluded(link, rl.TargetPath, decision.Rule, in),
		})
	}

	return applyEdits(in.Content, edits)
}

// bundledHref computes the rewritten href for an included link: the
// relative path from the rewriting file's output location to the
// target's planned location, fragment preserved.
func bundledHref(targetID, fragment, fromDir string, in Input) (string, bool) {
	var target string
	if targetID == in.RootID {
		target = "SKILL.md"
	} else {
		out, ok := in.Plan.OutputFor(targetID)
		if !ok {
			return "", false
		}
		target = path.Join(resourcesDir, out)
	}

	href := relHref(fromDir, target)
	if fragment != "" {
		href += "#" + fragment
	}
	return href, true
}

// outputDir returns the bundle-relative directory the given resource is
// written into.
func outputDir(id, rootID string, plan *namer.Plan) string {
	if id == rootID {
		return "."
	}
	if out, ok := plan.OutputFor(id); ok {
		return path.Join(resourcesDir, path.Dir(out))
	}
	return "."
}

// relHref computes the href that reaches target from a file living in
// fromDir, both bundle-root-relative slash paths.
func relHref(fromDir, target string) string {
	if fromDir == "." || fromDir == "" {
		return target
	}
	from := strings.Split(fromDir, "/")
	to := strings.Split(target, "/")
	i := 0
	for i < len(from) && i < len(to)-1 && from[i] == to[i] {
		i++
	}
	return strings.Repeat("../", len(from)-i) + strings.Join(to[i:], "/")
}

// renderExcluded produces the replacement text for an excluded link.
// Template handling substitutes the fixed key set {{link.text}},
// {{link.href}}, {{link.resource.fileName}} and {{skill.name}}; any
// other handling (or a rule without a template) strips the link to its
// anchor text.
func renderExcluded(link markdown.Link, targetPath string, rule *walker.ExcludeRule, in Input) string {
	if rule == nil {
		rule = &in.DefaultRule
	}
	if rule.Handling != walker.HandlingTemplate || rule.Template == "" {
		return link.Text
	}

	replacer := strings.NewReplacer(
		"{{link.text}}", link.Text,
		"{{link.href}}", link.Href,
		"{{link.resource.fileName}}", path.Base(filepath.ToSlash(targetPath)),
		"{{skill.name}}", in.SkillName,
	)
	return replacer.Replace(rule.Template)
}

// applyEdits splices the edits into content back-to-front so earlier
// offsets stay valid. Edits are non-overlapping because each link span
// is distinct.
func applyEdits(content []byte, edits []edit) []byte {
	if len(edits) == 0 {
		return content
	}
	sort.Slice(edits, func(i, j int) bool { return edits[i].start > edits[j].start })

	out := make([]byte, len(content))
	copy(out, content)
	for _, e := range edits {
		if e.start < 0 || e.end > len(out) || e.start > e.end {
			continue
		}
		var b []byte
		b = append(b, out[:e.start]...)
		b = append(b, e.text...)
		b = append(b, out[e.end:]...)
		out = b
	}
	return out
}
