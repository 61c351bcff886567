package platform

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindProjectRoot(t *testing.T) {
	// base/
	//   novel/ (project.json)
	//     content/
	//       drafts/
	//   empty/
	baseDir := t.TempDir()
	projectDir := filepath.Join(baseDir, "novel")
	contentDir := filepath.Join(projectDir, "content")
	nestedDir := filepath.Join(contentDir, "drafts")
	emptyDir := filepath.Join(baseDir, "empty")

	require.NoError(t, os.MkdirAll(nestedDir, 0755))
	require.NoError(t, os.MkdirAll(emptyDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(projectDir, ProjectMarker), []byte("{}"), 0644))

	tests := []struct {
		name      string
		startPath string
		wantRoot  string
		wantErr   bool
	}{
		{name: "start at root", startPath: projectDir, wantRoot: projectDir},
		{name: "start in content", startPath: contentDir, wantRoot: projectDir},
		{name: "start nested deeply", startPath: nestedDir, wantRoot: projectDir},
		{name: "no project", startPath: emptyDir, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FindProjectRoot(tt.startPath)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, filepath.Clean(tt.wantRoot), filepath.Clean(got))
		})
	}
}

func TestMarkerDirectoryIsIgnored(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, ProjectMarker), 0755))
	_, err := FindProjectRoot(dir)
	assert.Error(t, err)
}
