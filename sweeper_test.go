package sweeper

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fieldline/sweeper/pkg/log"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func testConfig(t *testing.T) Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Root = t.TempDir()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate config: %v", err)
	}
	return cfg
}

func TestAudit_ExcludesBackupAndArchiveDirs(t *testing.T) {
	cfg := testConfig(t)

	writeFile(t, filepath.Join(cfg.Root, "main.py"), "print()")
	writeFile(t, filepath.Join(cfg.Root, "junk.pyc"), "x")
	writeFile(t, filepath.Join(cfg.BackupDir, "b1", "manifest.json"), "{}")
	writeFile(t, filepath.Join(cfg.ArchiveDir, "old.pyc"), "x")

	plan, err := Audit(context.Background(), cfg, log.NoopLogger{})
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	if plan.TotalFiles() != 2 {
		t.Fatalf("expected 2 files (backup and archive dirs excluded), got %d", plan.TotalFiles())
	}
	if len(plan.Remove) != 1 || len(plan.Keep) != 1 {
		t.Fatalf("unexpected partition: keep=%d remove=%d", len(plan.Keep), len(plan.Remove))
	}
}

func TestCleanup_EndToEnd(t *testing.T) {
	cfg := testConfig(t)
	// Empty check commands pass vacuously, so the run commits.

	writeFile(t, filepath.Join(cfg.Root, "pyproject.toml"), "[project]\nname = \"demo\"\n")
	writeFile(t, filepath.Join(cfg.Root, "main.py"), "print()")
	writeFile(t, filepath.Join(cfg.Root, "junk.pyc"), "xxxx")
	writeFile(t, filepath.Join(cfg.Root, "requirements.txt"), "requests>=2.0\n")

	outcome, err := Cleanup(context.Background(), cfg, Options{}, log.NoopLogger{})
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if !outcome.Success {
		t.Fatalf("expected success, errors: %v", outcome.Errors)
	}
	if outcome.FilesRemoved != 2 {
		t.Fatalf("expected 2 removals (junk + consolidated requirements), got %d", outcome.FilesRemoved)
	}
	if outcome.BackupID == "" {
		t.Fatal("expected a backup id")
	}

	// Sources removed, manifest gained the dependency.
	if _, err := os.Stat(filepath.Join(cfg.Root, "junk.pyc")); !os.IsNotExist(err) {
		t.Fatal("expected junk file removed")
	}
	if _, err := os.Stat(filepath.Join(cfg.Root, "requirements.txt")); !os.IsNotExist(err) {
		t.Fatal("expected requirements file consolidated away")
	}
	data, err := os.ReadFile(cfg.ManifestPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "requests>=2.0") {
		t.Fatalf("expected dependency merged into manifest, got:\n%s", data)
	}

	// The backup is discoverable through the store API.
	store, err := OpenStore(cfg, log.NoopLogger{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.Info(context.Background(), outcome.BackupID); err != nil {
		t.Fatalf("backup should be retained: %v", err)
	}
}

func TestCleanup_DryRunCreatesNoBackupDir(t *testing.T) {
	cfg := testConfig(t)
	writeFile(t, filepath.Join(cfg.Root, "junk.pyc"), "xxxx")

	outcome, err := Cleanup(context.Background(), cfg, Options{DryRun: true}, log.NoopLogger{})
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if !outcome.Success {
		t.Fatalf("dry run must succeed, errors: %v", outcome.Errors)
	}

	if _, err := os.Stat(filepath.Join(cfg.Root, "junk.pyc")); err != nil {
		t.Fatal("dry run must not remove files")
	}
	if _, err := os.Stat(cfg.BackupDir); !os.IsNotExist(err) {
		t.Fatal("dry run must not create the backup directory")
	}
}
