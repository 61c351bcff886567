package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/cosmarium/pkg/app"
	"github.com/aretw0/cosmarium/pkg/core"
)

func resetFlags() {
	verbose, configPath, stateDir = false, "", ""
	initName, initTemplate = "", ""
	infoJSON = false
	docProject, docFormat = "", "markdown"
	statsJSON, statsTop = false, 5
	configForce = false
	runFrames, runTick, runProject, runEvents = 0, 16*time.Millisecond, "", false
}

// execute runs the CLI in process with an isolated config and state dir.
func execute(t *testing.T, home string, args ...string) (string, error) {
	t.Helper()
	resetFlags()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{
		"--config", filepath.Join(home, "config.toml"),
		"--state-dir", filepath.Join(home, "state"),
	}, args...))
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, t.TempDir(), "version")
	require.NoError(t, err)
	assert.Equal(t, "cosmarium version "+app.Version+"\n", out)
}

func TestProjectWorkflow(t *testing.T) {
	home := t.TempDir()
	projectDir := filepath.Join(t.TempDir(), "novel")

	out, err := execute(t, home, "init", projectDir, "--name", "My Novel", "--template", "short-story")
	require.NoError(t, err)
	assert.Contains(t, out, `Initialized project "My Novel"`)
	assert.FileExists(t, filepath.Join(projectDir, "project.json"))

	out, err = execute(t, home, "init", projectDir)
	assert.ErrorIs(t, err, core.ErrAlreadyExists, out)

	out, err = execute(t, home, "doc", "new", "Chapter One", "--project", projectDir)
	require.NoError(t, err)
	assert.Contains(t, out, `Created "Chapter One"`)
	matches, err := filepath.Glob(filepath.Join(projectDir, "content", "doc_*.md"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)

	out, err = execute(t, home, "info", filepath.Join(projectDir, "content"), "--json")
	require.NoError(t, err)
	var info projectInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, "My Novel", info.Name)
	assert.Equal(t, "short-story", info.Template)
	assert.Equal(t, 1, info.Documents)

	out, err = execute(t, home, "info", projectDir)
	require.NoError(t, err)
	assert.Contains(t, out, "Documents:  1")

	_, err = execute(t, home, "info", t.TempDir())
	assert.Error(t, err, "no project above an empty directory")
}

func TestDocNewRejectsUnknownFormat(t *testing.T) {
	home := t.TempDir()
	projectDir := filepath.Join(t.TempDir(), "p")
	_, err := execute(t, home, "init", projectDir)
	require.NoError(t, err)

	_, err = execute(t, home, "doc", "new", "x", "--project", projectDir, "--format", "docx")
	assert.Error(t, err)
}

func TestStats(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chapter.md")
	text := "# Storm\n\nThe storm rose. The storm broke!\n\n## After\n\nSilence.\n"
	require.NoError(t, os.WriteFile(path, []byte(text), 0644))

	out, err := execute(t, t.TempDir(), "stats", path, "--json", "--top", "1")
	require.NoError(t, err)
	var report statsReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "chapter", report.Title)
	assert.Equal(t, 3, report.Sentences)
	require.Len(t, report.TopWords, 1)
	assert.Equal(t, "storm", report.TopWords[0].Word)
	require.Len(t, report.Outline, 2)
	assert.Equal(t, "After", report.Outline[1].Text)

	out, err = execute(t, t.TempDir(), "stats", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Outline:")
	assert.Contains(t, out, "    After (line 5)")
}

func TestConfigCommands(t *testing.T) {
	home := t.TempDir()

	out, err := execute(t, home, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "[editor]")
	assert.NoFileExists(t, filepath.Join(home, "config.toml"), "show does not write")

	_, err = execute(t, home, "config", "init")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(home, "config.toml"))

	_, err = execute(t, home, "config", "init")
	assert.ErrorIs(t, err, core.ErrAlreadyExists)
	_, err = execute(t, home, "config", "init", "--force")
	assert.NoError(t, err)

	out, err = execute(t, home, "config", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "is valid")

	bad := filepath.Join(home, "bad.toml")
	require.NoError(t, os.WriteFile(bad, []byte("[editor]\ntab_size = 0\n"), 0644))
	_, err = execute(t, home, "config", "validate", bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "editor.tab_size")
}

func TestPluginsList(t *testing.T) {
	out, err := execute(t, t.TempDir(), "plugins", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "markdown-editor")
	assert.Contains(t, out, "outline")
	assert.Contains(t, out, "atmosphere")
	assert.Contains(t, out, "loaded")
}

func TestRunFrames(t *testing.T) {
	home := t.TempDir()
	out, err := execute(t, home, "run", "--frames", "3", "--tick", "1ms")
	require.NoError(t, err)
	assert.Contains(t, out, "Ran 3 frames")
	assert.FileExists(t, filepath.Join(home, "state", "layouts", "default.json"))

	out, err = execute(t, home, "run", "--frames", "2", "--tick", "1ms", "--events")
	require.NoError(t, err)
	assert.Contains(t, out, "Ran 2 frames")

	_, err = execute(t, home, "run", "--tick", "0s")
	assert.Error(t, err)
}
