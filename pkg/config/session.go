package config

import (
	"encoding/json"
	"errors"
	"log/slog"
	"os"

	"github.com/aretw0/cosmarium/internal/platform"
	"github.com/aretw0/cosmarium/pkg/adapters/fs"
	"github.com/aretw0/cosmarium/pkg/core"
)

// Session is user state kept apart from the configuration.
type Session struct {
	RecentProjects    []string `json:"recent_projects"`
	LastOpenedProject string   `json:"last_opened_project,omitempty"`

	path string
}

// DefaultSessionPath is <data dir>/cosmarium/session.json.
func DefaultSessionPath() string { return platform.DefaultDirs().SessionFile() }

// LoadSession reads the session at path. A missing or unreadable file
// yields an empty session; the latter is logged.
func LoadSession(path string) *Session {
	s := &Session{RecentProjects: []string{}, path: path}
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.Warn("failed to read session, using an empty one", "path", path, "error", err)
		}
		return s
	}
	if err := json.Unmarshal(data, s); err != nil {
		slog.Warn("failed to parse session, using an empty one", "path", path, "error", err)
		return &Session{RecentProjects: []string{}, path: path}
	}
	if s.RecentProjects == nil {
		s.RecentProjects = []string{}
	}
	return s
}

// Path is where Save writes the session.
func (s *Session) Path() string { return s.path }

// AddRecentProject moves path to the front of the recent list, marks it
// as last opened and trims the list to max entries.
func (s *Session) AddRecentProject(path string, max int) {
	out := []string{path}
	for _, p := range s.RecentProjects {
		if p != path {
			out = append(out, p)
		}
	}
	if max >= 0 && len(out) > max {
		out = out[:max]
	}
	s.RecentProjects = out
	s.LastOpenedProject = path
}

// Save writes the session as JSON.
func (s *Session) Save() error {
	if s.path == "" {
		return core.Errorf(core.KindConfig, "session has no path")
	}
	if err := fs.WriteJSON(s.path, s); err != nil {
		return core.Wrap(core.KindConfig, "failed to write session", err)
	}
	return nil
}
