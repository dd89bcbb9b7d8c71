// Package sweeper audits a project tree, classifies files for cleanup, and
// performs destructive cleanup safely: everything slated for removal is
// snapshotted into a checksummed tar.gz backup first, an external validation
// gate decides commit vs. rollback, and a failed validation restores the
// snapshot.
//
// Example usage:
//
//	cfg := sweeper.DefaultConfig()
//	cfg.Root = "/path/to/project"
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
//	outcome, err := sweeper.Cleanup(ctx, cfg, sweeper.Options{}, logger)
package sweeper

import (
	"context"

	"github.com/fieldline/sweeper/internal/adapters/archive"
	"github.com/fieldline/sweeper/internal/adapters/execval"
	"github.com/fieldline/sweeper/internal/cleanup"
	"github.com/fieldline/sweeper/internal/cliconfig"
	"github.com/fieldline/sweeper/internal/consolidate"
	"github.com/fieldline/sweeper/internal/domain"
	"github.com/fieldline/sweeper/internal/ports"
	"github.com/fieldline/sweeper/internal/scan"
	"github.com/fieldline/sweeper/pkg/log"
)

// Config holds the configuration for a sweeper run.
// Use DefaultConfig() to get a Config with sensible defaults.
type Config = cliconfig.Config

// Options controls a single cleanup run.
type Options = cleanup.Options

// Plan is the partition of scanned files into keep/remove/consolidate/
// archive sets.
type Plan = domain.Plan

// Outcome is the immutable result of one cleanup run.
type Outcome = domain.Outcome

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return cliconfig.DefaultConfig()
}

// Audit scans and categorizes the project tree without mutating anything.
func Audit(ctx context.Context, cfg Config, logger log.Logger) (Plan, error) {
	scanner := scan.NewScanner(
		[]string{".git"},
		[]string{cfg.BackupDir, cfg.ArchiveDir},
		logger,
	)
	files, err := scanner.Scan(cfg.Root)
	if err != nil {
		return Plan{}, err
	}
	categorizer := scan.NewCategorizer(cfg.Root, cfg.CriticalPaths, cfg.CacheAge, logger)
	return categorizer.Categorize(files), nil
}

// Cleanup audits the tree and applies the resulting plan through the
// transaction coordinator.
func Cleanup(ctx context.Context, cfg Config, opts Options, logger log.Logger) (Outcome, error) {
	plan, err := Audit(ctx, cfg, logger)
	if err != nil {
		return Outcome{}, err
	}
	return Apply(ctx, cfg, plan, opts, logger)
}

// Apply runs the transaction coordinator over an already-computed plan.
// Dry runs never open the backup store, so not even its root directory is
// created.
func Apply(ctx context.Context, cfg Config, plan Plan, opts Options, logger log.Logger) (Outcome, error) {
	var store ports.ArchiveStore
	if !opts.DryRun {
		ts, err := OpenStore(cfg, logger)
		if err != nil {
			return Outcome{}, err
		}
		store = ts
	}

	validator := execval.NewCommandValidator(cfg.Root, execval.Checks{
		Import: cfg.ImportCheckCmd,
		CLI:    cfg.CLICheckCmd,
		Build:  cfg.BuildCheckCmd,
		Test:   cfg.TestCheckCmd,
	}, logger)
	merger := consolidate.NewMerger(cfg.ManifestPath, logger)
	categorizer := scan.NewCategorizer(cfg.Root, cfg.CriticalPaths, cfg.CacheAge, logger)

	coordinator := cleanup.NewCoordinator(
		cfg.Root,
		cfg.ArchiveDir,
		categorizer.CriticalEmptyDirs(),
		store,
		validator,
		merger,
		logger,
	)
	return coordinator.Run(ctx, plan, opts), nil
}

// OpenStore opens the backup store for the configured backup directory.
// Used by the rollback and list-backups commands.
func OpenStore(cfg Config, logger log.Logger) (*archive.TarStore, error) {
	return archive.NewTarStore(cfg.BackupDir, logger)
}
