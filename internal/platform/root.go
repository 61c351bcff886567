package platform

import (
	"fmt"
	"os"
	"path/filepath"
)

// ProjectMarker identifies a project directory.
const ProjectMarker = "project.json"

// FindProjectRoot walks up from startDir looking for a directory holding
// project.json and returns its absolute path.
func FindProjectRoot(startDir string) (string, error) {
	abs, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	dir := abs
	for {
		if hasFile(dir, ProjectMarker) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("no %s found above %s", ProjectMarker, abs)
}

func hasFile(dir, name string) bool {
	info, err := os.Stat(filepath.Join(dir, name))
	return err == nil && !info.IsDir()
}
