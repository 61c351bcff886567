package project

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"

	"github.com/aretw0/cosmarium/pkg/adapters/fs"
	"github.com/aretw0/cosmarium/pkg/core"
)

const (
	// BackupDirName is the backup folder inside a project.
	BackupDirName = ".backups"

	backupPrefix   = "project-"
	backupExt      = ".json"
	compressedExt  = ".zst"
	backupPattern  = "project-*.{json,json.zst}"
	digestPrefixSz = 8
)

// Backup is a previous revision of project.json. Its name carries the
// creation time and a blake3 digest prefix of the uncompressed bytes.
type Backup struct {
	Name       string    `json:"name"`
	CreatedAt  time.Time `json:"created_at"`
	Compressed bool      `json:"compressed"`
	Digest     string    `json:"digest"`
	Size       int64     `json:"size"`
}

func backupDir(projectPath string) string { return filepath.Join(projectPath, BackupDirName) }

func parseBackupName(name string) (Backup, bool) {
	if !strings.HasPrefix(name, backupPrefix) {
		return Backup{}, false
	}
	b := Backup{Name: name}
	rest := strings.TrimPrefix(name, backupPrefix)
	if strings.HasSuffix(rest, backupExt+compressedExt) {
		b.Compressed = true
		rest = strings.TrimSuffix(rest, backupExt+compressedExt)
	} else if strings.HasSuffix(rest, backupExt) {
		rest = strings.TrimSuffix(rest, backupExt)
	} else {
		return Backup{}, false
	}

	stamp, digest, ok := strings.Cut(rest, "-")
	if !ok || len(digest) != 2*digestPrefixSz {
		return Backup{}, false
	}
	nanos, err := strconv.ParseInt(stamp, 10, 64)
	if err != nil {
		return Backup{}, false
	}
	if _, err := hex.DecodeString(digest); err != nil {
		return Backup{}, false
	}
	b.CreatedAt = time.Unix(0, nanos)
	b.Digest = digest
	return b, true
}

func digestOf(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:digestPrefixSz])
}

// WriteBackup stores data as a new backup of the project and prunes the
// oldest ones so at most keep remain.
func WriteBackup(projectPath string, data []byte, compressed bool, keep int, now time.Time) (Backup, error) {
	b := Backup{
		CreatedAt:  now,
		Compressed: compressed,
		Digest:     digestOf(data),
	}
	b.Name = fmt.Sprintf("%s%d-%s%s", backupPrefix, now.UnixNano(), b.Digest, backupExt)

	payload := data
	if compressed {
		b.Name += compressedExt
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return Backup{}, core.Wrap(core.KindArchive, "failed to create compressor", err)
		}
		payload = enc.EncodeAll(data, nil)
		if err := enc.Close(); err != nil {
			return Backup{}, core.Wrap(core.KindArchive, "failed to compress backup", err)
		}
	}
	b.Size = int64(len(payload))

	if err := fs.WriteFileAtomic(filepath.Join(backupDir(projectPath), b.Name), payload, 0644); err != nil {
		return Backup{}, core.Wrap(core.KindIO, "failed to write backup", err)
	}
	if err := PruneBackups(projectPath, keep); err != nil {
		return b, err
	}
	return b, nil
}

// ListBackups returns the backups of a project, newest first.
func ListBackups(projectPath string) ([]Backup, error) {
	dir := backupDir(projectPath)
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	matches, err := doublestar.Glob(os.DirFS(dir), backupPattern)
	if err != nil {
		return nil, core.Wrap(core.KindIO, "failed to list backups", err)
	}

	var out []Backup
	for _, name := range matches {
		b, ok := parseBackupName(name)
		if !ok {
			continue
		}
		if info, err := os.Stat(filepath.Join(dir, name)); err == nil {
			b.Size = info.Size()
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// PruneBackups deletes all but the keep newest backups.
func PruneBackups(projectPath string, keep int) error {
	backups, err := ListBackups(projectPath)
	if err != nil {
		return err
	}
	if keep < 0 {
		keep = 0
	}
	var errs []error
	for i := keep; i < len(backups); i++ {
		if err := os.Remove(filepath.Join(backupDir(projectPath), backups[i].Name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return core.Wrap(core.KindIO, "failed to prune backups", err)
	}
	return nil
}

// ReadBackup returns the uncompressed content of a backup after checking
// it against the digest in its name.
func ReadBackup(projectPath, name string) ([]byte, error) {
	b, ok := parseBackupName(filepath.Base(name))
	if !ok || filepath.Base(name) != name {
		return nil, core.Errorf(core.KindArchive, "invalid backup name %q", name)
	}
	raw, err := os.ReadFile(filepath.Join(backupDir(projectPath), name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, core.Errorf(core.KindNotFound, "backup %s: %w", name, core.ErrNotFound)
		}
		return nil, core.Wrap(core.KindIO, "failed to read backup", err)
	}

	data := raw
	if b.Compressed {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, core.Wrap(core.KindArchive, "failed to create decompressor", err)
		}
		defer dec.Close()
		data, err = dec.DecodeAll(raw, nil)
		if err != nil {
			return nil, core.Wrap(core.KindArchive, fmt.Sprintf("failed to decompress %s", name), err)
		}
	}
	if digestOf(data) != b.Digest {
		return nil, core.Errorf(core.KindArchive, "backup %s is corrupt: digest mismatch", name)
	}
	return data, nil
}
