package scan

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/fieldline/sweeper/internal/domain"
	"github.com/fieldline/sweeper/pkg/log"
)

// DefaultCacheAge is how old a cache file must be before it is archived
// instead of removed outright.
const DefaultCacheAge = 30 * 24 * time.Hour

// criticalRootFiles are root-level configuration files that are always kept.
var criticalRootFiles = map[string]struct{}{
	"pyproject.toml":     {},
	"package.json":       {},
	"go.mod":             {},
	"go.sum":             {},
	"Makefile":           {},
	"Dockerfile":         {},
	"docker-compose.yml": {},
	".gitignore":         {},
	"README.md":          {},
	"LICENSE":            {},
}

// cacheDirNames are directory names treated as tool caches.
var cacheDirNames = map[string]struct{}{
	"__pycache__":   {},
	".pytest_cache": {},
	".mypy_cache":   {},
	".ruff_cache":   {},
	".hypothesis":   {},
	".brain":        {},
}

// removeSuffixes are file patterns that are junk wherever they appear.
var removeSuffixes = []string{".pyc", ".pyo", ".swp", ".swo", ".tmp", "~"}

// removeNames are exact junk file names.
var removeNames = map[string]struct{}{
	".DS_Store": {},
	"Thumbs.db": {},
}

// criticalEmptyDirs are directory names the empty-directory prune must
// preserve even when empty.
var criticalEmptyDirs = []string{"logs", "states", "data", ".brain", ".git"}

// Categorizer assigns each scanned file to exactly one cleanup category
// based on fixed rule tables, checked in priority order: critical paths,
// requirements files, cache files (archive when old, remove when fresh),
// junk patterns, keep by default.
type Categorizer struct {
	root          string
	criticalPaths []string
	cacheAge      time.Duration
	now           func() time.Time
	logger        log.Logger
}

// NewCategorizer creates a Categorizer for the given project root.
// criticalPaths are root-relative directory prefixes whose files are always
// kept.
func NewCategorizer(root string, criticalPaths []string, cacheAge time.Duration, logger log.Logger) *Categorizer {
	if cacheAge <= 0 {
		cacheAge = DefaultCacheAge
	}
	return &Categorizer{
		root:          root,
		criticalPaths: criticalPaths,
		cacheAge:      cacheAge,
		now:           time.Now,
		logger:        logger,
	}
}

// CriticalEmptyDirs returns the directory names the prune step must exclude.
func (c *Categorizer) CriticalEmptyDirs() []string {
	out := make([]string, len(criticalEmptyDirs))
	copy(out, criticalEmptyDirs)
	return out
}

// Categorize partitions the scanned files into a plan. Every file lands in
// exactly one of the four sets.
func (c *Categorizer) Categorize(files []domain.FileInfo) domain.Plan {
	var plan domain.Plan
	for _, f := range files {
		f.Category, f.Critical, f.Reason = c.classify(f)
		switch f.Category {
		case domain.CategoryRemove:
			plan.Remove = append(plan.Remove, f)
		case domain.CategoryConsolidate:
			plan.Consolidate = append(plan.Consolidate, f)
		case domain.CategoryArchive:
			plan.Archive = append(plan.Archive, f)
		default:
			plan.Keep = append(plan.Keep, f)
		}
	}
	c.logger.Info("categorized files",
		log.Int("keep", len(plan.Keep)),
		log.Int("remove", len(plan.Remove)),
		log.Int("consolidate", len(plan.Consolidate)),
		log.Int("archive", len(plan.Archive)))
	return plan
}

func (c *Categorizer) classify(f domain.FileInfo) (domain.Category, bool, string) {
	rel, err := filepath.Rel(c.root, f.Path)
	if err != nil {
		return domain.CategoryKeep, false, "outside project root"
	}
	rel = filepath.ToSlash(rel)
	name := filepath.Base(f.Path)

	if c.isCritical(rel, name) {
		return domain.CategoryKeep, true, "critical component"
	}
	if isRequirementsFile(name) {
		return domain.CategoryConsolidate, false, "requirements file, consolidate into manifest"
	}
	if inCacheDir(rel) {
		if c.now().Sub(f.ModifiedTime) > c.cacheAge {
			return domain.CategoryArchive, false, "stale cache file, archive"
		}
		return domain.CategoryRemove, false, "cache file"
	}
	if matchesRemovePattern(name) {
		return domain.CategoryRemove, false, "junk file pattern"
	}
	return domain.CategoryKeep, false, "no removal rule matched"
}

func (c *Categorizer) isCritical(rel, name string) bool {
	if _, ok := criticalRootFiles[name]; ok && !strings.Contains(rel, "/") {
		return true
	}
	for _, prefix := range c.criticalPaths {
		if rel == prefix || strings.HasPrefix(rel, prefix+"/") {
			return true
		}
	}
	return false
}

func isRequirementsFile(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasPrefix(lower, "requirements") && strings.HasSuffix(lower, ".txt")
}

func inCacheDir(rel string) bool {
	for _, part := range strings.Split(rel, "/") {
		if _, ok := cacheDirNames[part]; ok {
			return true
		}
	}
	return false
}

func matchesRemovePattern(name string) bool {
	if _, ok := removeNames[name]; ok {
		return true
	}
	for _, suffix := range removeSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}
