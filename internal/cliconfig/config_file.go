package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// fileConfig mirrors Config but uses strings for durations to make TOML
// friendly.
type fileConfig struct {
	Root           string   `toml:"root"`
	BackupDir      string   `toml:"backup_dir"`
	ArchiveDir     string   `toml:"archive_dir"`
	ManifestPath   string   `toml:"manifest_path"`
	CriticalPaths  []string `toml:"critical_paths"`
	CacheAge       string   `toml:"cache_age"`
	ImportCheckCmd string   `toml:"import_check_cmd"`
	CLICheckCmd    string   `toml:"cli_check_cmd"`
	BuildCheckCmd  string   `toml:"build_check_cmd"`
	TestCheckCmd   string   `toml:"test_check_cmd"`
	Verbose        *bool    `toml:"verbose"`
}

// LoadFileConfig reads and parses a TOML config file.
func LoadFileConfig(path string) (fileConfig, error) {
	var fc fileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns ~/.sweeper/config.toml if the user home
// directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".sweeper", "config.toml")
	}
	return ""
}

// FileExists reports whether path exists and is a regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc fileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("project-root", fc.Root, &cfg.Root)
	s.setString("backup-dir", fc.BackupDir, &cfg.BackupDir)
	s.setString("archive-dir", fc.ArchiveDir, &cfg.ArchiveDir)
	s.setString("manifest", fc.ManifestPath, &cfg.ManifestPath)
	s.setStrings("critical-path", fc.CriticalPaths, &cfg.CriticalPaths)
	s.setString("import-check", fc.ImportCheckCmd, &cfg.ImportCheckCmd)
	s.setString("cli-check", fc.CLICheckCmd, &cfg.CLICheckCmd)
	s.setString("build-check", fc.BuildCheckCmd, &cfg.BuildCheckCmd)
	s.setString("test-check", fc.TestCheckCmd, &cfg.TestCheckCmd)

	if err := s.setDuration("cache-age", fc.CacheAge, &cfg.CacheAge); err != nil {
		return err
	}

	if fc.Verbose != nil && !changed["verbose"] {
		cfg.Verbose = *fc.Verbose
	}
	return nil
}
