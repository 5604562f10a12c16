// Package skills loads skill manifests. A skill is a directory rooted
// at a SKILL.md file whose YAML frontmatter describes the capability;
// the manifest's metadata feeds generated artifacts (package.json,
// marketplace manifest) and its links seed the bundle traversal.
package skills

// ManifestFileName is the well-known manifest basename a skill is
// rooted at.
const ManifestFileName = "SKILL.md"

// Manifest is a loaded SKILL.md.
type Manifest struct {
	Metadata Metadata
	// Path is the absolute path of the SKILL.md file.
	Path string
	// Directory is the skill root, the directory containing SKILL.md.
	Directory string
	// Content is the manifest body without frontmatter.
	Content string
}

// Metadata is the YAML frontmatter of a SKILL.md file.
type Metadata struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Version     string `yaml:"version,omitempty"`
	License     string `yaml:"license,omitempty"`
}
