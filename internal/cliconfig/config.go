package cliconfig

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/fieldline/sweeper/internal/domain"
)

// DefaultBackupDirName is the backup root created under the project root.
const DefaultBackupDirName = ".sweeper_backup"

// DefaultArchiveDirName is where stale cache files are moved, under the
// project root.
const DefaultArchiveDirName = ".archive"

// Config holds CLI configuration for sweeper.
type Config struct {
	// Root is the project root directory to audit and clean.
	Root string

	// BackupDir is the backup root. Derived from Root when empty.
	BackupDir string

	// ArchiveDir is the archive subtree for stale cache files. Derived from
	// Root when empty.
	ArchiveDir string

	// ManifestPath is the TOML manifest dependencies are consolidated into.
	// Derived from Root when empty.
	ManifestPath string

	// CriticalPaths are root-relative directory prefixes whose files are
	// always kept.
	CriticalPaths []string

	// CacheAge is how old a cache file must be to be archived rather than
	// removed.
	CacheAge time.Duration

	// Validation commands; empty commands pass vacuously.
	ImportCheckCmd string
	CLICheckCmd    string
	BuildCheckCmd  string
	TestCheckCmd   string

	Verbose bool
}

// DefaultConfig returns a Config with default values. Root is filled in by
// the CLI (flag or working directory).
func DefaultConfig() Config {
	return Config{
		CacheAge:      30 * 24 * time.Hour,
		CriticalPaths: []string{"docs", "tests", "bin", "scripts"},
	}
}

// Validate checks the configuration and sets derived defaults.
func (c *Config) Validate() error {
	if c.Root == "" {
		return fmt.Errorf("%w: project root is required", domain.ErrInvalidConfig)
	}
	abs, err := filepath.Abs(c.Root)
	if err != nil {
		return fmt.Errorf("%w: resolve project root: %v", domain.ErrInvalidConfig, err)
	}
	c.Root = abs

	if c.BackupDir == "" {
		c.BackupDir = filepath.Join(c.Root, DefaultBackupDirName)
	}
	if c.ArchiveDir == "" {
		c.ArchiveDir = filepath.Join(c.Root, DefaultArchiveDirName)
	}
	if c.ManifestPath == "" {
		c.ManifestPath = filepath.Join(c.Root, "pyproject.toml")
	}
	if c.CacheAge <= 0 {
		return fmt.Errorf("%w: cache age must be positive", domain.ErrInvalidConfig)
	}
	return nil
}

// configSetter helps apply configuration values while respecting flag
// precedence. It only applies values if the corresponding flag hasn't been
// explicitly set.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setStrings sets a string slice if non-empty and flag not changed.
func (s *configSetter) setStrings(flag string, value []string, dst *[]string) {
	if len(value) == 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not
// changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBoolFromString parses a string to bool and sets the destination.
// Used for environment variables that come as strings.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	if b, err := strconv.ParseBool(value); err == nil {
		*dst = b
	}
}
