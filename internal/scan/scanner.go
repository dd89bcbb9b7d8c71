package scan

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fieldline/sweeper/internal/domain"
	"github.com/fieldline/sweeper/pkg/log"
)

// Scanner walks a project tree and collects file metadata. Directories whose
// name is in skipDirs (plus any absolute paths in skipRoots, such as the
// backup root) are not descended into.
type Scanner struct {
	skipDirs  map[string]struct{}
	skipRoots map[string]struct{}
	logger    log.Logger
}

// NewScanner creates a Scanner. skipDirs are directory names to skip anywhere
// in the tree; skipRoots are absolute directory paths to skip.
func NewScanner(skipDirs, skipRoots []string, logger log.Logger) *Scanner {
	byName := make(map[string]struct{}, len(skipDirs))
	for _, d := range skipDirs {
		byName[d] = struct{}{}
	}
	byPath := make(map[string]struct{}, len(skipRoots))
	for _, p := range skipRoots {
		if abs, err := filepath.Abs(p); err == nil {
			byPath[abs] = struct{}{}
		}
	}
	return &Scanner{skipDirs: byName, skipRoots: byPath, logger: logger}
}

// Scan walks root and returns metadata for every regular file found.
// Unreadable entries are skipped with a warning.
func (s *Scanner) Scan(root string) ([]domain.FileInfo, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(absRoot); err != nil {
		return nil, err
	}

	var files []domain.FileInfo
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			s.logger.Warn("cannot access, skipping", log.String("path", path), log.Err(err))
			return nil
		}
		if d.IsDir() {
			if path == absRoot {
				return nil
			}
			if _, ok := s.skipRoots[path]; ok {
				return filepath.SkipDir
			}
			if _, ok := s.skipDirs[d.Name()]; ok {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			s.logger.Warn("cannot stat, skipping", log.String("path", path), log.Err(err))
			return nil
		}
		files = append(files, domain.FileInfo{
			Path:         path,
			Size:         info.Size(),
			ModifiedTime: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("scan complete", log.String("root", absRoot), log.Int("files", len(files)))
	return files, nil
}
