package plugin

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/bmatcuk/doublestar/v4"

	"github.com/aretw0/cosmarium/pkg/core"
)

// ManifestName is the file describing an external plugin.
const ManifestName = "plugin.toml"

// ReadManifest decodes a plugin.toml file.
func ReadManifest(path string) (Info, error) {
	var info Info
	f, err := os.Open(path)
	if err != nil {
		return info, core.Wrap(core.KindIO, "failed to open manifest", err)
	}
	defer f.Close()

	md, err := toml.NewDecoder(f).Decode(&info)
	if err != nil {
		return info, core.Wrap(core.KindTOML, "failed to parse manifest "+path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return info, core.Errorf(core.KindPlugin, "manifest %s has unknown keys %v", path, undecoded)
	}
	if info.Name == "" {
		return info, core.Validation("name", "manifest "+path+" has no plugin name")
	}
	return info, nil
}

// Discover scans dirs for plugin manifests at any depth. Missing
// directories are skipped; unreadable manifests are reported but do not
// stop the scan.
func Discover(dirs []string) ([]Entry, error) {
	var (
		found []Entry
		errs  []error
	)
	for _, dir := range dirs {
		if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		matches, err := doublestar.Glob(os.DirFS(dir), "**/"+ManifestName)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to scan %s: %w", dir, err))
			continue
		}
		for _, m := range matches {
			path := filepath.Join(dir, filepath.FromSlash(m))
			info, err := ReadManifest(path)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			found = append(found, Entry{Info: info, Source: path})
		}
	}
	return found, errors.Join(errs...)
}
