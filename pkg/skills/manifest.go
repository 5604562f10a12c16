package skills

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// DefaultVersion is used for artifact generation when the manifest
// declares no version.
const DefaultVersion = "0.0.0"

// LoadManifest reads and validates the SKILL.md at path. The path may
// also be a skill directory, in which case the SKILL.md inside it is
// loaded.
func LoadManifest(path string) (*Manifest, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve %s", path)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to stat %s", path)
	}
	if info.IsDir() {
		abs = filepath.Join(abs, ManifestFileName)
	}

	content, err := os.ReadFile(abs)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read skill manifest")
	}

	frontmatter, body, ok := splitFrontmatter(string(content))
	if !ok {
		return nil, errors.Errorf("%s is missing frontmatter", abs)
	}

	var meta Metadata
	if err := yaml.Unmarshal([]byte(frontmatter), &meta); err != nil {
		return nil, errors.Wrapf(err, "%s has invalid frontmatter", abs)
	}

	if meta.Name == "" {
		return nil, errors.Errorf("%s: skill name is required in frontmatter", abs)
	}
	if meta.Description == "" {
		return nil, errors.Errorf("%s: skill description is required in frontmatter", abs)
	}
	if meta.Version == "" {
		meta.Version = DefaultVersion
	}

	return &Manifest{
		Metadata:  meta,
		Path:      abs,
		Directory: filepath.Dir(abs),
		Content:   body,
	}, nil
}

// splitFrontmatter separates the leading YAML frontmatter block from
// the markdown body.
func splitFrontmatter(content string) (frontmatter, body string, ok bool) {
	if !strings.HasPrefix(content, "---") {
		return "", content, false
	}

	lines := strings.Split(content, "\n")
	end := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			end = i
			break
		}
	}
	if end == -1 {
		return "", content, false
	}

	frontmatter = strings.Join(lines[1:end], "\n")
	body = strings.TrimLeft(strings.Join(lines[end+1:], "\n"), "\n")
	return frontmatter, body, true
}
