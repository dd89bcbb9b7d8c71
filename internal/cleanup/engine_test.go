package cleanup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fieldline/sweeper/internal/adapters/archive"
	"github.com/fieldline/sweeper/internal/domain"
	"github.com/fieldline/sweeper/internal/ports"
	"github.com/fieldline/sweeper/pkg/log"
)

// stubValidator returns a fixed verdict.
type stubValidator struct {
	report domain.ValidationReport
	err    error
}

func (v stubValidator) Validate(ctx context.Context) (domain.ValidationReport, error) {
	return v.report, v.err
}

// stubConsolidator reports success without touching any manifest.
type stubConsolidator struct {
	result domain.ConsolidationResult
	err    error
}

func (c stubConsolidator) Consolidate(ctx context.Context, files []domain.FileInfo) (domain.ConsolidationResult, error) {
	return c.result, c.err
}

// untouchableStore fails the test on any call. Used to prove dry runs never
// reach the archive store.
type untouchableStore struct{ t *testing.T }

var _ ports.ArchiveStore = untouchableStore{}

func (s untouchableStore) Create(ctx context.Context, paths []string, basePath string) (domain.Manifest, error) {
	s.t.Fatal("dry run called ArchiveStore.Create")
	return domain.Manifest{}, nil
}

func (s untouchableStore) Restore(ctx context.Context, backupID, targetDir string) (domain.RestoreResult, error) {
	s.t.Fatal("dry run called ArchiveStore.Restore")
	return domain.RestoreResult{}, nil
}

func (s untouchableStore) List(ctx context.Context) ([]domain.Manifest, error) {
	s.t.Fatal("dry run called ArchiveStore.List")
	return nil, nil
}

func (s untouchableStore) Info(ctx context.Context, backupID string) (domain.Manifest, error) {
	s.t.Fatal("dry run called ArchiveStore.Info")
	return domain.Manifest{}, nil
}

func (s untouchableStore) Delete(ctx context.Context, backupID string) (bool, error) {
	s.t.Fatal("dry run called ArchiveStore.Delete")
	return false, nil
}

// failingStore always fails snapshot creation.
type failingStore struct{ untouchableStore }

func (s failingStore) Create(ctx context.Context, paths []string, basePath string) (domain.Manifest, error) {
	return domain.Manifest{}, domain.ErrBackupCreation
}

// brokenRestoreStore snapshots fine but cannot restore.
type brokenRestoreStore struct{ untouchableStore }

func (s brokenRestoreStore) Create(ctx context.Context, paths []string, basePath string) (domain.Manifest, error) {
	return domain.Manifest{BackupID: "backup_20260830_120000_000001", TotalFiles: len(paths)}, nil
}

func (s brokenRestoreStore) Restore(ctx context.Context, backupID, targetDir string) (domain.RestoreResult, error) {
	return domain.RestoreResult{}, errors.New("disk detached")
}

func newRealStore(t *testing.T, dir string) *archive.TarStore {
	t.Helper()
	store, err := archive.NewTarStore(dir, log.NoopLogger{})
	if err != nil {
		t.Fatal(err)
	}
	return store
}

func passingValidator() stubValidator {
	return stubValidator{report: domain.ValidationReport{
		Passed: true, ImportCheck: true, CLICheck: true, BuildCheck: true, TestCheck: true,
	}}
}

func failingValidator() stubValidator {
	return stubValidator{report: domain.ValidationReport{
		Passed: false, Errors: []string{"import check failed"},
	}}
}

// treeDigest maps every regular file under root to its content hash. Two equal
// digests mean the trees are byte-identical.
func treeDigest(t *testing.T, root string) map[string]string {
	t.Helper()
	digest := map[string]string{}
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		sum := sha256.Sum256(data)
		rel, _ := filepath.Rel(root, path)
		digest[rel] = hex.EncodeToString(sum[:])
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	return digest
}

func digestsEqual(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

func seedProject(t *testing.T, root string) domain.Plan {
	t.Helper()

	junkA := filepath.Join(root, "a.pyc")
	junkB := filepath.Join(root, ".DS_Store")
	junkC := filepath.Join(root, "build", "out.tmp")
	reqs := filepath.Join(root, "requirements.txt")
	kept := filepath.Join(root, "main.py")

	writeFile(t, junkA, string(make([]byte, 100)))
	writeFile(t, junkB, "")
	writeFile(t, junkC, string(make([]byte, 257)))
	writeFile(t, reqs, "requests>=2.0\n")
	writeFile(t, kept, "print('hi')\n")

	return domain.Plan{
		Keep: []domain.FileInfo{{Path: kept, Size: 12, Category: domain.CategoryKeep}},
		Remove: []domain.FileInfo{
			{Path: junkA, Size: 100, Category: domain.CategoryRemove},
			{Path: junkB, Size: 0, Category: domain.CategoryRemove},
			{Path: junkC, Size: 257, Category: domain.CategoryRemove},
		},
		Consolidate: []domain.FileInfo{
			{Path: reqs, Size: 14, Category: domain.CategoryConsolidate},
		},
	}
}

func TestRun_DryRunTouchesNothing(t *testing.T) {
	tmp := t.TempDir()
	root := filepath.Join(tmp, "project")
	plan := seedProject(t, root)

	before := treeDigest(t, root)

	coord := NewCoordinator(root, filepath.Join(tmp, "archive"), nil,
		untouchableStore{t: t}, failingValidator(), stubConsolidator{}, log.NoopLogger{})
	outcome := coord.Run(context.Background(), plan, Options{DryRun: true})

	if !outcome.Success {
		t.Fatal("dry run must succeed")
	}
	if outcome.BackupID != domain.DryRunBackupID {
		t.Fatalf("expected backup id %q, got %q", domain.DryRunBackupID, outcome.BackupID)
	}
	if outcome.FilesRemoved != 4 {
		t.Fatalf("expected 4 projected removals, got %d", outcome.FilesRemoved)
	}
	if outcome.SizeFreed != 371 {
		t.Fatalf("expected 371 projected bytes, got %d", outcome.SizeFreed)
	}

	after := treeDigest(t, root)
	if !digestsEqual(before, after) {
		t.Fatal("dry run modified the project tree")
	}
}

func TestRun_FullPipelineAccounting(t *testing.T) {
	tmp := t.TempDir()
	root := filepath.Join(tmp, "project")
	plan := seedProject(t, root)
	store := newRealStore(t, filepath.Join(tmp, "backups"))

	coord := NewCoordinator(root, filepath.Join(tmp, "archive"), nil,
		store, passingValidator(),
		stubConsolidator{result: domain.ConsolidationResult{Success: true, Merged: 1}},
		log.NoopLogger{})
	outcome := coord.Run(context.Background(), plan, Options{})

	if !outcome.Success {
		t.Fatalf("expected success, errors: %v", outcome.Errors)
	}
	// Three removals plus the consolidated requirements file.
	if outcome.FilesRemoved != 4 {
		t.Fatalf("expected files_removed == 4, got %d", outcome.FilesRemoved)
	}
	if outcome.SizeFreed != 100+0+257+14 {
		t.Fatalf("expected size_freed == 371, got %d", outcome.SizeFreed)
	}
	if outcome.BackupID == "" {
		t.Fatal("expected a backup id")
	}
	if outcome.Validation == nil || !outcome.Validation.Passed {
		t.Fatal("expected a passed validation report")
	}

	// The backup survives a committed run.
	if _, err := store.Info(context.Background(), outcome.BackupID); err != nil {
		t.Fatalf("backup should still exist after commit: %v", err)
	}

	// Kept file untouched, everything else gone.
	if _, err := os.Stat(filepath.Join(root, "main.py")); err != nil {
		t.Fatal("kept file must survive")
	}
	for _, p := range []string{"a.pyc", ".DS_Store", "requirements.txt"} {
		if _, err := os.Stat(filepath.Join(root, p)); !os.IsNotExist(err) {
			t.Fatalf("expected %s to be removed", p)
		}
	}
	// The emptied build dir is pruned.
	if _, err := os.Stat(filepath.Join(root, "build")); !os.IsNotExist(err) {
		t.Fatal("expected emptied build directory to be pruned")
	}
}

func TestRun_SecondRunIsIdempotent(t *testing.T) {
	tmp := t.TempDir()
	root := filepath.Join(tmp, "project")
	plan := seedProject(t, root)
	store := newRealStore(t, filepath.Join(tmp, "backups"))

	coord := NewCoordinator(root, filepath.Join(tmp, "archive"), nil,
		store, passingValidator(),
		stubConsolidator{result: domain.ConsolidationResult{Success: true}},
		log.NoopLogger{})

	first := coord.Run(context.Background(), plan, Options{})
	if !first.Success {
		t.Fatalf("first run failed: %v", first.Errors)
	}

	// Re-running the same plan finds everything already gone.
	second := coord.Run(context.Background(), plan, Options{})
	if !second.Success {
		t.Fatalf("second run failed: %v", second.Errors)
	}
	if second.FilesRemoved != 0 {
		t.Fatalf("expected 0 removals on second run, got %d", second.FilesRemoved)
	}
	if second.SizeFreed != 0 {
		t.Fatalf("expected 0 bytes freed on second run, got %d", second.SizeFreed)
	}
}

func TestRun_ValidationFailureRollsBack(t *testing.T) {
	tmp := t.TempDir()
	root := filepath.Join(tmp, "project")
	plan := seedProject(t, root)
	store := newRealStore(t, filepath.Join(tmp, "backups"))

	before := treeDigest(t, root)

	coord := NewCoordinator(root, filepath.Join(tmp, "archive"), nil,
		store, failingValidator(),
		stubConsolidator{result: domain.ConsolidationResult{Success: true}},
		log.NoopLogger{})
	outcome := coord.Run(context.Background(), plan, Options{})

	if outcome.Success {
		t.Fatal("expected run to fail when validation fails")
	}
	if outcome.Validation == nil || outcome.Validation.Passed {
		t.Fatal("expected a failed validation report")
	}

	// Everything removed or consolidated must be back, byte for byte. The
	// archived and pruned sets are not part of the snapshot contract, so only
	// the snapshot-covered files are compared.
	after := treeDigest(t, root)
	for _, f := range append(plan.Remove, plan.Consolidate...) {
		rel, _ := filepath.Rel(root, f.Path)
		if after[rel] != before[rel] {
			t.Fatalf("expected %s restored to original content", rel)
		}
	}
}

func TestRun_FailedRollbackIsEscalated(t *testing.T) {
	tmp := t.TempDir()
	root := filepath.Join(tmp, "project")
	plan := seedProject(t, root)

	coord := NewCoordinator(root, filepath.Join(tmp, "archive"), nil,
		brokenRestoreStore{untouchableStore{t: t}}, failingValidator(),
		stubConsolidator{result: domain.ConsolidationResult{Success: true}},
		log.NoopLogger{})
	outcome := coord.Run(context.Background(), plan, Options{})

	if outcome.Success {
		t.Fatal("expected failure when rollback fails")
	}

	// A failed rollback must surface as the distinguished unrecoverable
	// error, never disappear into the ordinary error list.
	found := false
	for _, e := range outcome.Errors {
		if strings.Contains(e, domain.ErrRollbackFailed.Error()) {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected %q in outcome errors, got %v", domain.ErrRollbackFailed, outcome.Errors)
	}
}

func TestRun_OracleExecutionErrorDoesNotRollBack(t *testing.T) {
	tmp := t.TempDir()
	root := filepath.Join(tmp, "project")
	plan := seedProject(t, root)
	store := newRealStore(t, filepath.Join(tmp, "backups"))

	coord := NewCoordinator(root, filepath.Join(tmp, "archive"), nil,
		store, stubValidator{err: errors.New("sh not found")},
		stubConsolidator{result: domain.ConsolidationResult{Success: true}},
		log.NoopLogger{})
	outcome := coord.Run(context.Background(), plan, Options{})

	if outcome.Success {
		t.Fatal("expected failure when the oracle cannot run")
	}
	if outcome.Validation != nil {
		t.Fatal("expected no validation report when the oracle errored")
	}
	// The mutations stand: nothing was restored.
	if _, err := os.Stat(filepath.Join(root, "a.pyc")); !os.IsNotExist(err) {
		t.Fatal("expected mutations to stand when oracle errored")
	}
}

func TestRun_SnapshotFailureAbortsBeforeMutation(t *testing.T) {
	tmp := t.TempDir()
	root := filepath.Join(tmp, "project")
	plan := seedProject(t, root)

	before := treeDigest(t, root)

	coord := NewCoordinator(root, filepath.Join(tmp, "archive"), nil,
		failingStore{untouchableStore{t: t}}, passingValidator(), stubConsolidator{}, log.NoopLogger{})
	outcome := coord.Run(context.Background(), plan, Options{})

	if outcome.Success {
		t.Fatal("expected failure when backup creation fails")
	}
	if outcome.FilesRemoved != 0 {
		t.Fatalf("expected 0 removals after aborted run, got %d", outcome.FilesRemoved)
	}

	after := treeDigest(t, root)
	if !digestsEqual(before, after) {
		t.Fatal("aborted run must not modify the tree")
	}
}

func TestRun_SkipValidationCommitsUnconditionally(t *testing.T) {
	tmp := t.TempDir()
	root := filepath.Join(tmp, "project")
	plan := seedProject(t, root)
	store := newRealStore(t, filepath.Join(tmp, "backups"))

	coord := NewCoordinator(root, filepath.Join(tmp, "archive"), nil,
		store, failingValidator(),
		stubConsolidator{result: domain.ConsolidationResult{Success: true}},
		log.NoopLogger{})
	outcome := coord.Run(context.Background(), plan, Options{SkipValidation: true})

	if !outcome.Success {
		t.Fatalf("expected success with validation skipped, errors: %v", outcome.Errors)
	}
	if outcome.Validation != nil {
		t.Fatal("expected no validation report when skipped")
	}
	if _, err := os.Stat(filepath.Join(root, "a.pyc")); !os.IsNotExist(err) {
		t.Fatal("expected removals to be committed")
	}
}
