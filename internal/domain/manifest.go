package domain

import (
	"fmt"
	"strings"
	"time"
)

// ArchiveFileName is the name of the compressed archive inside a backup
// directory.
const ArchiveFileName = "files.tar.gz"

// ManifestEntry records one file captured in a backup. Immutable once
// written.
type ManifestEntry struct {
	// OriginalPath is the absolute path the file was read from.
	OriginalPath string `json:"original_path"`

	// BackupPath locates the file inside the backup, formatted as
	// "files.tar.gz:<member>".
	BackupPath string `json:"backup_path"`

	// Size is the file size in bytes at backup time.
	Size int64 `json:"size"`

	// Checksum is the content hash, formatted as "sha256:<hex>".
	Checksum string `json:"checksum"`
}

// Member returns the archive member name encoded in BackupPath.
func (e ManifestEntry) Member() string {
	if i := strings.IndexByte(e.BackupPath, ':'); i >= 0 {
		return e.BackupPath[i+1:]
	}
	return e.BackupPath
}

// NewManifestEntry builds an entry for the given member name.
func NewManifestEntry(originalPath, member string, size int64, checksum string) ManifestEntry {
	return ManifestEntry{
		OriginalPath: originalPath,
		BackupPath:   fmt.Sprintf("%s:%s", ArchiveFileName, member),
		Size:         size,
		Checksum:     checksum,
	}
}

// Manifest is the JSON record listing every file captured in one backup.
// Invariants: TotalFiles == len(Files), TotalSize == sum of entry sizes, and
// the member names are in bijection with the members of the archive.
type Manifest struct {
	BackupID   string          `json:"backup_id"`
	Timestamp  time.Time       `json:"timestamp"`
	Files      []ManifestEntry `json:"files"`
	TotalSize  int64           `json:"total_size"`
	TotalFiles int             `json:"total_files"`
	BasePath   string          `json:"base_path"`
}

// RestoreResult reports the outcome of restoring a backup. Per-entry failures
// accumulate; Success is true only when no entry failed.
type RestoreResult struct {
	Success       bool
	FilesRestored int
	FilesFailed   int
	Errors        []string
}
