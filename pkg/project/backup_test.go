package project

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/cosmarium/pkg/core"
)

func TestBackupRoundTrip(t *testing.T) {
	for _, compressed := range []bool{false, true} {
		name := "plain"
		if compressed {
			name = "zstd"
		}
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			data := []byte(`{"metadata":{"name":"Backup me"}}` + "\n")

			b, err := WriteBackup(dir, data, compressed, 5, time.Unix(0, 42))
			require.NoError(t, err)
			assert.Equal(t, compressed, strings.HasSuffix(b.Name, ".zst"))
			assert.True(t, strings.HasPrefix(b.Name, "project-42-"))

			back, err := ReadBackup(dir, b.Name)
			require.NoError(t, err)
			assert.Equal(t, data, back)
		})
	}
}

func TestBackupsArePruned(t *testing.T) {
	dir := t.TempDir()
	base := time.Now()
	for i := 0; i < 6; i++ {
		_, err := WriteBackup(dir, []byte{byte('a' + i)}, i%2 == 0, 3, base.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
	}

	backups, err := ListBackups(dir)
	require.NoError(t, err)
	require.Len(t, backups, 3)
	assert.True(t, backups[0].CreatedAt.After(backups[1].CreatedAt), "newest first")

	data, err := ReadBackup(dir, backups[0].Name)
	require.NoError(t, err)
	assert.Equal(t, []byte("f"), data)
}

func TestCorruptBackupIsRejected(t *testing.T) {
	dir := t.TempDir()
	b, err := WriteBackup(dir, []byte("original"), false, 5, time.Now())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, BackupDirName, b.Name), []byte("tampered"), 0644))

	_, err = ReadBackup(dir, b.Name)
	assert.Equal(t, core.KindArchive, core.KindOf(err))

	_, err = ReadBackup(dir, "../project.json")
	assert.Error(t, err)
}

func TestListBackupsWithoutDirectory(t *testing.T) {
	backups, err := ListBackups(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, backups)
}

func TestManagerBackupsAndRestore(t *testing.T) {
	ctx := context.Background()
	settings := DefaultSettings()
	settings.BackupCount = 2
	settings.UseCompressedFormat = true
	m, rec, _ := newTestManager(t, WithDefaultSettings(settings))
	path := filepath.Join(t.TempDir(), "saga")
	require.NoError(t, m.Create(ctx, "Saga", path, "novel"))

	for _, author := range []string{"one", "two", "three"} {
		require.NoError(t, m.Edit(func(p *Project) {
			p.Metadata.Author = author
			p.MarkDirty()
		}))
		require.NoError(t, m.Save(ctx))
	}

	backups, err := m.ListBackups()
	require.NoError(t, err)
	require.Len(t, backups, 2)
	assert.True(t, backups[0].Compressed)

	// newest backup holds the state before the last save
	require.NoError(t, m.RestoreBackup(ctx, backups[0].Name))
	p, ok := m.Current()
	require.True(t, ok)
	assert.Equal(t, "two", p.Metadata.Author)
	assert.False(t, p.Dirty())

	onDisk, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "two", onDisk.Metadata.Author)

	last := rec.events[len(rec.events)-1]
	assert.Equal(t, core.ProjectOpened, last.Type)
	restored, _ := last.GetMetadata(MetadataRestored)
	assert.Equal(t, backups[0].Name, restored)
}
