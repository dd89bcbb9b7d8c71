package cleanup

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fieldline/sweeper/internal/domain"
	"github.com/fieldline/sweeper/pkg/log"
)

// sentinelNames are placeholder files that do not count toward a directory
// being non-empty.
var sentinelNames = map[string]struct{}{
	".DS_Store": {},
	".gitkeep":  {},
}

// RemoveMany deletes each item, recursing for directories. Already-absent
// items are skipped with a warning, not an error. Per-item failures are
// collected; the loop never stops early. Freed bytes accumulate only for
// successful removals.
func RemoveMany(items []domain.FileInfo, logger log.Logger) (removed int, freed int64, errs []string) {
	for _, item := range items {
		info, err := os.Lstat(item.Path)
		if err != nil {
			if os.IsNotExist(err) {
				logger.Warn("already absent, skipping", log.String("path", item.Path))
				continue
			}
			errs = append(errs, fmt.Sprintf("stat %s: %v", item.Path, err))
			continue
		}

		if info.IsDir() {
			err = os.RemoveAll(item.Path)
		} else {
			err = os.Remove(item.Path)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("remove %s: %v", item.Path, err))
			logger.Error("failed to remove", log.String("path", item.Path), log.Err(err))
			continue
		}

		removed++
		freed += item.Size
		logger.Debug("removed", log.String("path", item.Path))
	}
	return removed, freed, errs
}

// ArchiveMany moves each item into archiveRoot, mirroring its structure
// relative to sourceRoot. Items outside sourceRoot are skipped with a
// warning. Moves fall back to copy+remove when rename fails (cross-device).
func ArchiveMany(items []domain.FileInfo, sourceRoot, archiveRoot string, logger log.Logger) (archived int, errs []string) {
	if err := os.MkdirAll(archiveRoot, 0o755); err != nil {
		return 0, []string{fmt.Sprintf("create archive root: %v", err)}
	}

	for _, item := range items {
		rel, err := filepath.Rel(sourceRoot, item.Path)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			logger.Warn("not under source root, skipping", log.String("path", item.Path))
			continue
		}
		if _, err := os.Lstat(item.Path); err != nil {
			if os.IsNotExist(err) {
				logger.Warn("already absent, skipping", log.String("path", item.Path))
				continue
			}
			errs = append(errs, fmt.Sprintf("stat %s: %v", item.Path, err))
			continue
		}

		dest := filepath.Join(archiveRoot, rel)
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			errs = append(errs, fmt.Sprintf("archive %s: %v", item.Path, err))
			continue
		}
		if err := moveFile(item.Path, dest); err != nil {
			errs = append(errs, fmt.Sprintf("archive %s: %v", item.Path, err))
			logger.Error("failed to archive", log.String("path", item.Path), log.Err(err))
			continue
		}

		archived++
		logger.Debug("archived", log.String("path", item.Path), log.String("dest", dest))
	}
	return archived, errs
}

// moveFile renames src to dest, copying and deleting when rename is not
// possible.
func moveFile(src, dest string) error {
	if err := os.Rename(src, dest); err == nil {
		return nil
	}
	return copyFile(src, dest)
}

// copyFile copies src to dest keeping the source's permission bits, then
// removes src.
func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	if err := os.Chmod(dest, info.Mode().Perm()); err != nil {
		return err
	}
	return os.Remove(src)
}

// PruneEmpty removes empty directories under root, deepest first so that
// pruning a child can make its parent prunable in the same pass. A directory
// counts as empty when it holds nothing but sentinel placeholder files.
// Directories whose name is in excluded, and root itself, are never removed.
func PruneEmpty(root string, excluded map[string]struct{}, logger log.Logger) (pruned int) {
	var dirs []string
	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() && path != root {
			dirs = append(dirs, path)
		}
		return nil
	})

	// Reverse-lexicographic order visits children before their parents.
	sort.Sort(sort.Reverse(sort.StringSlice(dirs)))

	for _, dir := range dirs {
		if _, ok := excluded[filepath.Base(dir)]; ok {
			continue
		}
		if !dirIsPrunable(dir) {
			continue
		}
		if err := os.RemoveAll(dir); err != nil {
			logger.Warn("failed to prune directory", log.String("path", dir), log.Err(err))
			continue
		}
		pruned++
		logger.Debug("pruned empty directory", log.String("path", dir))
	}
	return pruned
}

func dirIsPrunable(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if _, ok := sentinelNames[e.Name()]; !ok {
			return false
		}
	}
	return true
}
