package archive

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/disk"

	"github.com/fieldline/sweeper/internal/domain"
	"github.com/fieldline/sweeper/pkg/log"
)

const (
	manifestFileName = "manifest.json"
	metadataFileName = "metadata.json"
)

// TarStore implements ports.ArchiveStore with tar.gz archives on the local
// filesystem. Each backup lives under its own directory:
//
//	<root>/<backup_id>/files.tar.gz
//	<root>/<backup_id>/manifest.json
//	<root>/<backup_id>/metadata.json
//
// The store exclusively owns everything under root.
type TarStore struct {
	root   string
	logger log.Logger
}

// NewTarStore creates a TarStore rooted at dir, creating dir if needed.
func NewTarStore(dir string, logger log.Logger) (*TarStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create backup root: %w", err)
	}
	return &TarStore{root: dir, logger: logger}, nil
}

// Root returns the backup root directory.
func (s *TarStore) Root() string {
	return s.root
}

type candidate struct {
	path string
	size int64
	mode os.FileMode
}

// Create snapshots the given files into a new backup. Nonexistent paths and
// non-regular files are skipped with a warning. On any write failure the
// partial backup directory is deleted so a half-written backup is never
// discoverable.
func (s *TarStore) Create(ctx context.Context, paths []string, basePath string) (domain.Manifest, error) {
	base, err := filepath.Abs(basePath)
	if err != nil {
		return domain.Manifest{}, fmt.Errorf("%w: resolve base path: %v", domain.ErrBackupCreation, err)
	}

	candidates, estimated := s.collectCandidates(paths)
	if skipped := len(paths) - len(candidates); skipped > 0 {
		s.logger.Warn("skipping paths that do not exist or are not regular files",
			log.Int("skipped", skipped))
	}

	if err := s.checkFreeSpace(estimated); err != nil {
		return domain.Manifest{}, err
	}

	now := time.Now()
	backupID := fmt.Sprintf("backup_%s_%06d", now.Format("20060102_150405"), now.Nanosecond()/1000)
	backupDir := filepath.Join(s.root, backupID)
	if err := os.MkdirAll(backupDir, 0o755); err != nil {
		return domain.Manifest{}, fmt.Errorf("%w: %v", domain.ErrBackupCreation, err)
	}

	s.logger.Info("creating backup",
		log.String("backup_id", backupID),
		log.Int("files", len(candidates)))

	entries, totalSize, err := s.writeArchive(ctx, filepath.Join(backupDir, domain.ArchiveFileName), candidates, base)
	if err != nil {
		s.discardPartial(backupDir)
		return domain.Manifest{}, fmt.Errorf("%w: %v", domain.ErrBackupCreation, err)
	}

	manifest := domain.Manifest{
		BackupID:   backupID,
		Timestamp:  now,
		Files:      entries,
		TotalSize:  totalSize,
		TotalFiles: len(entries),
		BasePath:   base,
	}

	if err := writeJSONAtomic(filepath.Join(backupDir, manifestFileName), manifest); err != nil {
		s.discardPartial(backupDir)
		return domain.Manifest{}, fmt.Errorf("%w: write manifest: %v", domain.ErrBackupCreation, err)
	}

	metadata := map[string]interface{}{
		"backup_id":  backupID,
		"timestamp":  now.Format(time.RFC3339Nano),
		"file_count": len(entries),
		"total_size": totalSize,
	}
	if err := writeJSONAtomic(filepath.Join(backupDir, metadataFileName), metadata); err != nil {
		// Metadata is informational; the manifest is authoritative.
		s.logger.Warn("failed to write backup metadata", log.Err(err))
	}

	s.logger.Info("backup completed",
		log.String("backup_id", backupID),
		log.Int("files", len(entries)),
		log.Int64("bytes", totalSize))

	return manifest, nil
}

// collectCandidates stats each path and keeps existing regular files.
func (s *TarStore) collectCandidates(paths []string) ([]candidate, int64) {
	var out []candidate
	var total int64
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			s.logger.Warn("skipping unresolvable path", log.String("path", p), log.Err(err))
			continue
		}
		info, err := os.Lstat(abs)
		if err != nil {
			s.logger.Warn("skipping missing file", log.String("path", abs))
			continue
		}
		if !info.Mode().IsRegular() {
			s.logger.Warn("skipping non-regular file", log.String("path", abs))
			continue
		}
		out = append(out, candidate{path: abs, size: info.Size(), mode: info.Mode()})
		total += info.Size()
	}
	return out, total
}

// checkFreeSpace aborts creation when the backup filesystem cannot hold the
// estimated payload. Compression shrinks the real footprint, so the check is
// conservative in the safe direction. Measurement failures are not fatal.
func (s *TarStore) checkFreeSpace(estimated int64) error {
	usage, err := disk.Usage(s.root)
	if err != nil {
		s.logger.Warn("cannot determine free disk space", log.Err(err))
		return nil
	}
	if usage.Free < uint64(estimated) {
		return fmt.Errorf("%w: insufficient disk space: need %d bytes, %d free",
			domain.ErrBackupCreation, estimated, usage.Free)
	}
	return nil
}

func (s *TarStore) writeArchive(ctx context.Context, archivePath string, candidates []candidate, base string) ([]domain.ManifestEntry, int64, error) {
	f, err := os.Create(archivePath)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)

	entries := make([]domain.ManifestEntry, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))
	var totalSize int64

	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}

		member := memberName(c.path, base)
		// Basename fallbacks for out-of-base paths can collide; a numeric
		// suffix keeps the manifest and the archive members in bijection.
		if _, dup := seen[member]; dup {
			for i := 1; ; i++ {
				alt := fmt.Sprintf("%s.%d", member, i)
				if _, dup := seen[alt]; !dup {
					member = alt
					break
				}
			}
		}
		seen[member] = struct{}{}

		checksum, err := addFile(tw, c, member)
		if err != nil {
			return nil, 0, fmt.Errorf("archive %s: %w", c.path, err)
		}

		entries = append(entries, domain.NewManifestEntry(c.path, member, c.size, checksum))
		totalSize += c.size
		s.logger.Debug("added to backup", log.String("path", c.path), log.String("member", member))
	}

	if err := tw.Close(); err != nil {
		return nil, 0, err
	}
	if err := gz.Close(); err != nil {
		return nil, 0, err
	}
	if err := f.Close(); err != nil {
		return nil, 0, err
	}
	return entries, totalSize, nil
}

// addFile streams one file into the tar writer, hashing the content as it is
// written. Returns the "sha256:<hex>" checksum.
func addFile(tw *tar.Writer, c candidate, member string) (string, error) {
	src, err := os.Open(c.path)
	if err != nil {
		return "", err
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return "", err
	}
	hdr := &tar.Header{
		Name:    member,
		Mode:    int64(c.mode.Perm()),
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return "", err
	}

	h := sha256.New()
	if _, err := io.Copy(io.MultiWriter(tw, h), src); err != nil {
		return "", err
	}
	return "sha256:" + hex.EncodeToString(h.Sum(nil)), nil
}

// memberName computes the archive member name for a file: relative to base
// when the file lives under it, basename otherwise.
func memberName(path, base string) string {
	rel, err := filepath.Rel(base, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.Base(path)
	}
	return filepath.ToSlash(rel)
}

func (s *TarStore) discardPartial(backupDir string) {
	if err := os.RemoveAll(backupDir); err != nil {
		s.logger.Error("failed to remove partial backup", log.String("dir", backupDir), log.Err(err))
	}
}

// Restore extracts every manifest entry to its original path, or re-rooted
// under targetDir when targetDir is non-empty. A checksum mismatch after
// extraction fails the entry. Per-entry failures accumulate; the restore
// keeps going.
func (s *TarStore) Restore(ctx context.Context, backupID, targetDir string) (domain.RestoreResult, error) {
	manifest, err := s.readManifest(backupID)
	if err != nil {
		return domain.RestoreResult{}, err
	}

	archivePath := filepath.Join(s.root, backupID, domain.ArchiveFileName)
	f, err := os.Open(archivePath)
	if err != nil {
		return domain.RestoreResult{}, fmt.Errorf("%w: %s: archive missing", domain.ErrBackupNotFound, backupID)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return domain.RestoreResult{}, fmt.Errorf("%w: %s: corrupt archive: %v", domain.ErrBackupNotFound, backupID, err)
	}
	defer gz.Close()

	s.logger.Info("restoring backup",
		log.String("backup_id", backupID),
		log.Int("files", manifest.TotalFiles))

	byMember := make(map[string]domain.ManifestEntry, len(manifest.Files))
	for _, e := range manifest.Files {
		byMember[e.Member()] = e
	}
	restored := make(map[string]bool, len(byMember))

	var result domain.RestoreResult
	tr := tar.NewReader(gz)
	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return result, fmt.Errorf("%w: %s: corrupt archive: %v", domain.ErrBackupNotFound, backupID, err)
		}

		entry, ok := byMember[hdr.Name]
		if !ok {
			s.logger.Warn("archive member not in manifest", log.String("member", hdr.Name))
			continue
		}
		restored[hdr.Name] = true

		dest := restorePath(entry, manifest.BasePath, targetDir)
		if err := extractEntry(tr, entry, dest); err != nil {
			result.FilesFailed++
			result.Errors = append(result.Errors, fmt.Sprintf("restore %s: %v", entry.OriginalPath, err))
			s.logger.Error("failed to restore file", log.String("path", entry.OriginalPath), log.Err(err))
			continue
		}
		result.FilesRestored++
		s.logger.Debug("restored", log.String("path", dest))
	}

	for member, entry := range byMember {
		if !restored[member] {
			result.FilesFailed++
			result.Errors = append(result.Errors, fmt.Sprintf("member not found in archive: %s", entry.OriginalPath))
		}
	}

	result.Success = result.FilesFailed == 0
	if result.Success {
		s.logger.Info("restore completed", log.Int("files", result.FilesRestored))
	} else {
		s.logger.Warn("restore completed with failures",
			log.Int("restored", result.FilesRestored),
			log.Int("failed", result.FilesFailed))
	}
	return result, nil
}

// restorePath decides where an entry lands: its original path by default, or
// re-rooted under targetDir using the path relative to the manifest base.
func restorePath(entry domain.ManifestEntry, basePath, targetDir string) string {
	if targetDir == "" {
		return entry.OriginalPath
	}
	rel, err := filepath.Rel(basePath, entry.OriginalPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.Join(targetDir, filepath.Base(entry.OriginalPath))
	}
	return filepath.Join(targetDir, rel)
}

// extractEntry writes one archive member to dest and verifies its checksum
// against the manifest. A mismatch is a restore failure for the entry.
func extractEntry(tr io.Reader, entry domain.ManifestEntry, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dest)
	if err != nil {
		return err
	}

	h := sha256.New()
	_, copyErr := io.Copy(io.MultiWriter(out, h), tr)
	closeErr := out.Close()
	if copyErr != nil {
		return copyErr
	}
	if closeErr != nil {
		return closeErr
	}

	if entry.Checksum != "" {
		actual := "sha256:" + hex.EncodeToString(h.Sum(nil))
		if actual != entry.Checksum {
			return fmt.Errorf("checksum mismatch: want %s, got %s", entry.Checksum, actual)
		}
	}
	return nil
}

// List returns manifests for all backups under the root, newest first.
// Directories without a readable manifest are skipped with a warning.
func (s *TarStore) List(ctx context.Context) ([]domain.Manifest, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var manifests []domain.Manifest
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		m, err := s.readManifest(e.Name())
		if err != nil {
			s.logger.Warn("skipping unreadable backup", log.String("backup_id", e.Name()), log.Err(err))
			continue
		}
		manifests = append(manifests, m)
	}

	sort.Slice(manifests, func(i, j int) bool {
		return manifests[i].Timestamp.After(manifests[j].Timestamp)
	})
	return manifests, nil
}

// Info returns the manifest for one backup.
func (s *TarStore) Info(ctx context.Context, backupID string) (domain.Manifest, error) {
	return s.readManifest(backupID)
}

// Delete removes a backup directory. Idempotent: an absent id returns false
// with no error.
func (s *TarStore) Delete(ctx context.Context, backupID string) (bool, error) {
	backupDir := filepath.Join(s.root, backupID)
	if _, err := os.Stat(backupDir); err != nil {
		if os.IsNotExist(err) {
			s.logger.Warn("backup does not exist", log.String("backup_id", backupID))
			return false, nil
		}
		return false, err
	}
	if err := os.RemoveAll(backupDir); err != nil {
		return false, err
	}
	s.logger.Info("deleted backup", log.String("backup_id", backupID))
	return true, nil
}

func (s *TarStore) readManifest(backupID string) (domain.Manifest, error) {
	data, err := os.ReadFile(filepath.Join(s.root, backupID, manifestFileName))
	if err != nil {
		return domain.Manifest{}, fmt.Errorf("%w: %s", domain.ErrBackupNotFound, backupID)
	}
	var m domain.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return domain.Manifest{}, fmt.Errorf("%w: %s: corrupt manifest: %v", domain.ErrBackupNotFound, backupID, err)
	}
	return m, nil
}

// writeJSONAtomic writes v as indented JSON via a temp file and rename, so a
// crash never leaves a torn manifest.
func writeJSONAtomic(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
