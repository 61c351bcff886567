package project

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"slices"

	"github.com/aretw0/cosmarium/pkg/adapters/fs"
	"github.com/aretw0/cosmarium/pkg/core"
)

// RecentFile is the recent-projects cache inside the state directory.
const RecentFile = "recent_projects.json"

// pushRecent moves path to the front of list, dropping duplicates and
// anything past max. A max of 0 keeps nothing.
func pushRecent(list []string, path string, max int) []string {
	out := make([]string, 0, len(list)+1)
	out = append(out, path)
	for _, p := range list {
		if p != path {
			out = append(out, p)
		}
	}
	if max >= 0 && len(out) > max {
		out = out[:max]
	}
	return out
}

func loadRecent(stateDir string) ([]string, error) {
	data, err := os.ReadFile(filepath.Join(stateDir, RecentFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, core.Wrap(core.KindIO, "failed to read recent projects", err)
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, core.Wrap(core.KindJSON, "failed to parse recent projects", err)
	}
	// entries whose directory has gone away are dropped
	return slices.DeleteFunc(list, func(p string) bool {
		_, err := os.Stat(p)
		return err != nil
	}), nil
}

func saveRecent(stateDir string, list []string) error {
	if list == nil {
		list = []string{}
	}
	if err := fs.WriteJSON(filepath.Join(stateDir, RecentFile), list); err != nil {
		return core.Wrap(core.KindIO, "failed to save recent projects", err)
	}
	return nil
}
