package cliconfig

import "os"

// ApplyEnvConfig applies configuration from environment variables
// (SWEEPER_*). It respects flags that have been explicitly set (changed
// map). Returns an error if any variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("project-root", os.Getenv("SWEEPER_ROOT"), &cfg.Root)
	s.setString("backup-dir", os.Getenv("SWEEPER_BACKUP_DIR"), &cfg.BackupDir)
	s.setString("archive-dir", os.Getenv("SWEEPER_ARCHIVE_DIR"), &cfg.ArchiveDir)
	s.setString("manifest", os.Getenv("SWEEPER_MANIFEST"), &cfg.ManifestPath)
	s.setString("import-check", os.Getenv("SWEEPER_IMPORT_CHECK"), &cfg.ImportCheckCmd)
	s.setString("cli-check", os.Getenv("SWEEPER_CLI_CHECK"), &cfg.CLICheckCmd)
	s.setString("build-check", os.Getenv("SWEEPER_BUILD_CHECK"), &cfg.BuildCheckCmd)
	s.setString("test-check", os.Getenv("SWEEPER_TEST_CHECK"), &cfg.TestCheckCmd)

	if err := s.setDuration("cache-age", os.Getenv("SWEEPER_CACHE_AGE"), &cfg.CacheAge); err != nil {
		return err
	}

	s.setBoolFromString("verbose", os.Getenv("SWEEPER_VERBOSE"), &cfg.Verbose)
	return nil
}
