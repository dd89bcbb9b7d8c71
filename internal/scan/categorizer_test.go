package scan

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/fieldline/sweeper/internal/domain"
	"github.com/fieldline/sweeper/pkg/log"
)

func newTestCategorizer(root string) *Categorizer {
	c := NewCategorizer(root, []string{"docs", "scripts"}, DefaultCacheAge, log.NoopLogger{})
	c.now = func() time.Time { return time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC) }
	return c
}

func TestClassify_RuleTable(t *testing.T) {
	root := "/proj"
	c := newTestCategorizer(root)
	now := c.now()

	cases := []struct {
		name     string
		file     domain.FileInfo
		want     domain.Category
		critical bool
	}{
		{
			name: "root pyproject is critical",
			file: domain.FileInfo{Path: filepath.Join(root, "pyproject.toml")},
			want: domain.CategoryKeep, critical: true,
		},
		{
			name: "non-root README is not critical",
			file: domain.FileInfo{Path: filepath.Join(root, "vendor", "README.md")},
			want: domain.CategoryKeep,
		},
		{
			name: "critical path prefix",
			file: domain.FileInfo{Path: filepath.Join(root, "docs", "guide.md")},
			want: domain.CategoryKeep, critical: true,
		},
		{
			name: "requirements file consolidates",
			file: domain.FileInfo{Path: filepath.Join(root, "requirements-dev.txt")},
			want: domain.CategoryConsolidate,
		},
		{
			name: "fresh cache file removed",
			file: domain.FileInfo{
				Path:         filepath.Join(root, "src", "__pycache__", "mod.cpython-311.pyc"),
				ModifiedTime: now.Add(-24 * time.Hour),
			},
			want: domain.CategoryRemove,
		},
		{
			name: "stale cache file archived",
			file: domain.FileInfo{
				Path:         filepath.Join(root, ".pytest_cache", "v", "cache", "lastfailed"),
				ModifiedTime: now.Add(-60 * 24 * time.Hour),
			},
			want: domain.CategoryArchive,
		},
		{
			name: "pyc outside cache dir is junk",
			file: domain.FileInfo{Path: filepath.Join(root, "src", "old.pyc"), ModifiedTime: now},
			want: domain.CategoryRemove,
		},
		{
			name: "DS_Store is junk",
			file: domain.FileInfo{Path: filepath.Join(root, "assets", ".DS_Store")},
			want: domain.CategoryRemove,
		},
		{
			name: "editor swap file is junk",
			file: domain.FileInfo{Path: filepath.Join(root, "src", ".main.py.swp")},
			want: domain.CategoryRemove,
		},
		{
			name: "source file kept by default",
			file: domain.FileInfo{Path: filepath.Join(root, "src", "main.py")},
			want: domain.CategoryKeep,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, critical, reason := c.classify(tc.file)
			if got != tc.want {
				t.Fatalf("got category %v (%s), want %v", got, reason, tc.want)
			}
			if critical != tc.critical {
				t.Fatalf("got critical=%v, want %v", critical, tc.critical)
			}
		})
	}
}

func TestClassify_CriticalBeatsJunkPattern(t *testing.T) {
	root := "/proj"
	c := newTestCategorizer(root)

	// A junk-suffixed file under a critical path must still be kept.
	got, critical, _ := c.classify(domain.FileInfo{
		Path: filepath.Join(root, "scripts", "backup.tmp"),
	})
	if got != domain.CategoryKeep || !critical {
		t.Fatalf("expected critical keep, got %v critical=%v", got, critical)
	}
}

func TestCategorize_PartitionsEveryFileExactlyOnce(t *testing.T) {
	root := "/proj"
	c := newTestCategorizer(root)
	now := c.now()

	files := []domain.FileInfo{
		{Path: filepath.Join(root, "main.py")},
		{Path: filepath.Join(root, "junk.pyc"), ModifiedTime: now},
		{Path: filepath.Join(root, "requirements.txt")},
		{Path: filepath.Join(root, "__pycache__", "x.pyc"), ModifiedTime: now.Add(-90 * 24 * time.Hour)},
	}

	plan := c.Categorize(files)
	if plan.TotalFiles() != len(files) {
		t.Fatalf("expected %d files across all sets, got %d", len(files), plan.TotalFiles())
	}
	if len(plan.Keep) != 1 || len(plan.Remove) != 1 || len(plan.Consolidate) != 1 || len(plan.Archive) != 1 {
		t.Fatalf("unexpected partition: keep=%d remove=%d consolidate=%d archive=%d",
			len(plan.Keep), len(plan.Remove), len(plan.Consolidate), len(plan.Archive))
	}
}

func TestCriticalEmptyDirs_ReturnsCopy(t *testing.T) {
	c := newTestCategorizer("/proj")
	dirs := c.CriticalEmptyDirs()
	if len(dirs) == 0 {
		t.Fatal("expected non-empty exclusion list")
	}
	dirs[0] = "mutated"
	if c.CriticalEmptyDirs()[0] == "mutated" {
		t.Fatal("expected a defensive copy")
	}
}
