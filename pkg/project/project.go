// Package project locates the project a skill belongs to. The project
// root is the boundary the walker refuses to bundle across and the
// anchor for derived output paths.
package project

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// ErrNotFound is returned when no ancestor of the starting directory
// carries a recognized project marker.
var ErrNotFound = errors.New("no project root found")

// rootMarkers identify a project root, checked in order at each level.
var rootMarkers = []string{
	".git",
	".skillpack",
	"go.mod",
	"package.json",
}

// FindRoot walks up from startDir and returns the nearest ancestor
// containing a version-control or workspace marker. Returns ErrNotFound
// when the filesystem root is reached without a match.
func FindRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", errors.Wrapf(err, "failed to resolve %s", startDir)
	}

	for {
		for _, marker := range rootMarkers {
			if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
				return dir, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrNotFound
		}
		dir = parent
	}
}
