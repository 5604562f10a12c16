package bundler

import (
	"archive/zip"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/jingkaihe/skillpack/pkg/logger"
	"github.com/jingkaihe/skillpack/pkg/skills"
)

// Format is a secondary artifact derived from the written bundle
// directory. Artifacts are produced from the directory contents, never
// from a second walk.
type Format string

const (
	// FormatDirectory is the bundle directory itself, always produced
	FormatDirectory Format = "directory"
	// FormatZip writes a zip archive next to the bundle directory
	FormatZip Format = "zip"
	// FormatNPM adds an npm-style package.json from manifest metadata
	FormatNPM Format = "npm"
	// FormatMarketplace adds a marketplace manifest JSON
	FormatMarketplace Format = "marketplace"
)

// ParseFormats validates a list of format names from configuration.
func ParseFormats(names []string) ([]Format, error) {
	if len(names) == 0 {
		return []Format{FormatDirectory}, nil
	}
	out := make([]Format, 0, len(names))
	for _, name := range names {
		switch f := Format(strings.TrimSpace(name)); f {
		case FormatDirectory, FormatZip, FormatNPM, FormatMarketplace:
			out = append(out, f)
		default:
			return nil, errors.Errorf("unknown format %q (want directory, zip, npm or marketplace)", name)
		}
	}
	return out, nil
}

// marketplaceManifest is the JSON shape marketplace listings consume.
type marketplaceManifest struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Entrypoint string `json:"entrypoint"`
	Version    string `json:"version"`
}

// npmPackage is the package.json generated for the npm format.
type npmPackage struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Description string   `json:"description,omitempty"`
	License     string   `json:"license,omitempty"`
	Files       []string `json:"files"`
}

func writeArtifacts(ctx context.Context, manifest *skills.Manifest, outputPath string, formats []Format) ([]string, error) {
	log := logger.G(ctx)
	var artifacts []string

	for _, format := range formats {
		switch format {
		case FormatDirectory:
			// Already written.
		case FormatNPM:
			dest := filepath.Join(outputPath, "package.json")
			pkg := npmPackage{
				Name:        manifest.Metadata.Name,
				Version:     manifest.Metadata.Version,
				Description: manifest.Metadata.Description,
				License:     manifest.Metadata.License,
				Files:       []string{skills.ManifestFileName, resourcesDir},
			}
			if err := writeJSON(dest, pkg); err != nil {
				return nil, errors.Wrap(err, "failed to write package.json")
			}
			artifacts = append(artifacts, dest)
		case FormatMarketplace:
			dest := filepath.Join(outputPath, "marketplace.json")
			mm := marketplaceManifest{
				Name:       manifest.Metadata.Name,
				Type:       "skill",
				Entrypoint: skills.ManifestFileName,
				Version:    manifest.Metadata.Version,
			}
			if err := writeJSON(dest, mm); err != nil {
				return nil, errors.Wrap(err, "failed to write marketplace manifest")
			}
			artifacts = append(artifacts, dest)
		case FormatZip:
			dest := filepath.Join(filepath.Dir(outputPath), manifest.Metadata.Name+".zip")
			if err := writeZip(outputPath, dest); err != nil {
				return nil, errors.Wrap(err, "failed to write zip archive")
			}
			artifacts = append(artifacts, dest)
		}
		log.WithField("format", string(format)).Debug("artifact written")
	}

	return artifacts, nil
}

func writeJSON(dest string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(dest, append(data, '\n'), 0o644)
}

// writeZip archives the bundle directory. Entries are sorted and
// timestamps zeroed so identical inputs produce identical archives.
func writeZip(srcDir, dest string) error {
	var files []string
	err := filepath.Walk(srcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return err
	}
	sort.Strings(files)

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	for _, file := range files {
		rel, err := filepath.Rel(srcDir, file)
		if err != nil {
			return err
		}

		header := &zip.FileHeader{
			Name:   filepath.ToSlash(rel),
			Method: zip.Deflate,
		}
		w, err := zw.CreateHeader(header)
		if err != nil {
			return err
		}

		in, err := os.Open(file)
		if err != nil {
			return err
		}
		_, err = io.Copy(w, in)
		in.Close()
		if err != nil {
			return err
		}
	}

	return zw.Close()
}
