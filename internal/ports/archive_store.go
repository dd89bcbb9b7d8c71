package ports

import (
	"context"

	"github.com/fieldline/sweeper/internal/domain"
)

// ArchiveStore makes a set of files recoverable before they are touched
// destructively. Implementations own the on-disk backup directory tree
// exclusively.
type ArchiveStore interface {
	// Create snapshots the given files into a new backup and returns its
	// manifest. Nonexistent paths are skipped with a warning. Either the
	// archive and manifest are both written consistently, or the call fails
	// with domain.ErrBackupCreation and no partial backup remains on disk.
	Create(ctx context.Context, paths []string, basePath string) (domain.Manifest, error)

	// Restore extracts every entry of the backup to its original path, or
	// re-rooted under targetDir when targetDir is non-empty. Per-entry
	// failures accumulate in the result; a missing or corrupted backup id
	// fails with domain.ErrBackupNotFound.
	Restore(ctx context.Context, backupID, targetDir string) (domain.RestoreResult, error)

	// List returns manifests for all backups, newest first.
	List(ctx context.Context) ([]domain.Manifest, error)

	// Info returns the manifest for one backup, or domain.ErrBackupNotFound.
	Info(ctx context.Context, backupID string) (domain.Manifest, error)

	// Delete removes a backup. Returns false, not an error, when the id is
	// absent.
	Delete(ctx context.Context, backupID string) (bool, error)
}
