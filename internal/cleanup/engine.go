package cleanup

import (
	"context"
	"fmt"
	"os"

	"github.com/fieldline/sweeper/internal/domain"
	"github.com/fieldline/sweeper/internal/ports"
	"github.com/fieldline/sweeper/pkg/log"
)

// Options controls a single cleanup run.
type Options struct {
	// DryRun reports projected statistics without touching the filesystem
	// or the archive store at all.
	DryRun bool

	// SkipValidation bypasses the validator entirely. The run commits
	// unconditionally; the backup is still created and retained.
	SkipValidation bool
}

// Coordinator applies an operation plan destructively but reversibly:
// it snapshots everything slated for removal, applies the mutations in a
// fixed order, consults the validator, and rolls back from the snapshot when
// validation fails.
//
// The pipeline is strictly sequential:
//
//	snapshot -> remove -> archive cache -> consolidate -> prune -> validate -> commit|rollback
//
// The coordinator holds no state across runs; everything durable lives in
// the archive store. Concurrent runs against the same root are not supported.
type Coordinator struct {
	root         string
	archiveRoot  string
	excludedDirs map[string]struct{}
	store        ports.ArchiveStore
	validator    ports.Validator
	consolidator ports.Consolidator
	logger       log.Logger
}

// NewCoordinator creates a Coordinator for the given project root.
// archiveRoot is where stale cache files are moved; excludedDirs are
// directory names the empty-directory prune must leave alone.
func NewCoordinator(
	root, archiveRoot string,
	excludedDirs []string,
	store ports.ArchiveStore,
	validator ports.Validator,
	consolidator ports.Consolidator,
	logger log.Logger,
) *Coordinator {
	excluded := make(map[string]struct{}, len(excludedDirs))
	for _, name := range excludedDirs {
		excluded[name] = struct{}{}
	}
	return &Coordinator{
		root:         root,
		archiveRoot:  archiveRoot,
		excludedDirs: excluded,
		store:        store,
		validator:    validator,
		consolidator: consolidator,
		logger:       logger,
	}
}

// Run executes the full cleanup pipeline for one plan and returns the
// outcome. The outcome always carries files_removed, size_freed, backup_id
// and the complete error list, so a failed run is still auditable.
func (c *Coordinator) Run(ctx context.Context, plan domain.Plan, opts Options) domain.Outcome {
	c.logger.Info("starting cleanup",
		log.Int("remove", len(plan.Remove)),
		log.Int("consolidate", len(plan.Consolidate)),
		log.Int("archive", len(plan.Archive)),
		log.Bool("dry_run", opts.DryRun))

	if opts.DryRun {
		return c.dryRun(plan)
	}

	var (
		errs         []string
		filesRemoved int
		sizeFreed    int64
	)

	// Snapshot. A failure here aborts before anything was mutated; there is
	// nothing to roll back.
	backupID, err := c.snapshot(ctx, plan)
	if err != nil {
		c.logger.Error("backup creation failed, aborting", log.Err(err))
		return domain.Outcome{
			Success: false,
			Errors:  []string{err.Error()},
		}
	}

	// Remove.
	if len(plan.Remove) > 0 {
		removed, freed, removeErrs := RemoveMany(plan.Remove, c.logger)
		filesRemoved += removed
		sizeFreed += freed
		errs = append(errs, removeErrs...)
	}

	// Archive stale cache files.
	if len(plan.Archive) > 0 {
		archived, archiveErrs := ArchiveMany(plan.Archive, c.root, c.archiveRoot, c.logger)
		errs = append(errs, archiveErrs...)
		c.logger.Info("archived cache files", log.Int("files", archived))
	}

	// Consolidate dependencies, then drop the now-redundant sources.
	if len(plan.Consolidate) > 0 && c.consolidator != nil {
		removed, freed, consErrs := c.consolidate(ctx, plan.Consolidate)
		filesRemoved += removed
		sizeFreed += freed
		errs = append(errs, consErrs...)
	}

	// Prune empty directories, deepest first.
	pruned := PruneEmpty(c.root, c.excludedDirs, c.logger)
	c.logger.Info("pruned empty directories", log.Int("dirs", pruned))

	// Validate and commit, or roll back.
	success := true
	var validation *domain.ValidationReport
	if opts.SkipValidation {
		c.logger.Info("validation skipped")
	} else {
		report, rollbackErrs, ok := c.validateAndMaybeRollback(ctx, backupID)
		validation = report
		errs = append(errs, rollbackErrs...)
		success = ok
	}

	c.logger.Info("cleanup finished",
		log.Bool("success", success),
		log.Int("files_removed", filesRemoved),
		log.Int64("size_freed", sizeFreed),
		log.String("backup_id", backupID))

	return domain.Outcome{
		Success:      success,
		BackupID:     backupID,
		FilesRemoved: filesRemoved,
		SizeFreed:    sizeFreed,
		Errors:       errs,
		Validation:   validation,
	}
}

// dryRun computes projected statistics from the plan alone. It must be a
// strict no-op: no filesystem access, no archive store calls.
func (c *Coordinator) dryRun(plan domain.Plan) domain.Outcome {
	return domain.Outcome{
		Success:      true,
		BackupID:     domain.DryRunBackupID,
		FilesRemoved: plan.ProjectedRemovals(),
		SizeFreed:    plan.ProjectedBytes(),
	}
}

// snapshot backs up the union of the remove and consolidate sets. An empty
// union means no backup and an empty id.
func (c *Coordinator) snapshot(ctx context.Context, plan domain.Plan) (string, error) {
	paths := plan.BackupPaths()
	if len(paths) == 0 {
		c.logger.Info("nothing to back up")
		return "", nil
	}
	manifest, err := c.store.Create(ctx, paths, c.root)
	if err != nil {
		return "", err
	}
	return manifest.BackupID, nil
}

// consolidate delegates the merge to the collaborator and removes the source
// files once the merge succeeded.
func (c *Coordinator) consolidate(ctx context.Context, files []domain.FileInfo) (removed int, freed int64, errs []string) {
	result, err := c.consolidator.Consolidate(ctx, files)
	if err != nil {
		return 0, 0, []string{fmt.Sprintf("dependency consolidation: %v", err)}
	}
	if !result.Success {
		return 0, 0, result.Errors
	}

	c.logger.Info("consolidated dependencies",
		log.Int("merged", result.Merged),
		log.Int("duplicates", result.DuplicatesFound))

	for _, f := range files {
		if err := os.Remove(f.Path); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			errs = append(errs, fmt.Sprintf("remove %s: %v", f.Path, err))
			continue
		}
		removed++
		freed += f.Size
		c.logger.Debug("removed consolidated source", log.String("path", f.Path))
	}
	return removed, freed, errs
}

// validateAndMaybeRollback runs the oracle once. A failed report triggers a
// restore from the run's own snapshot; a restore failure is escalated as
// unrecoverable, never swallowed. An oracle execution error fails the run but
// does not trigger rollback, since the oracle reported nothing.
func (c *Coordinator) validateAndMaybeRollback(ctx context.Context, backupID string) (*domain.ValidationReport, []string, bool) {
	report, err := c.validator.Validate(ctx)
	if err != nil {
		c.logger.Error("validation oracle failed to run", log.Err(err))
		return nil, []string{fmt.Sprintf("validation error: %v", err)}, false
	}
	if report.Passed {
		c.logger.Info("validation passed")
		return &report, nil, true
	}

	c.logger.Error("validation failed, rolling back", log.String("backup_id", backupID))
	errs := append([]string{"validation failed after cleanup"}, report.Errors...)

	if backupID == "" {
		errs = append(errs, "no backup was created; nothing to roll back")
		return &report, errs, false
	}

	restore, rerr := c.store.Restore(ctx, backupID, "")
	switch {
	case rerr != nil:
		c.logger.Error("rollback failed", log.Err(rerr))
		errs = append(errs, fmt.Sprintf("%v: %v", domain.ErrRollbackFailed, rerr))
	case !restore.Success:
		c.logger.Error("rollback incomplete",
			log.Int("restored", restore.FilesRestored),
			log.Int("failed", restore.FilesFailed))
		errs = append(errs, fmt.Sprintf("%v: %d files failed to restore", domain.ErrRollbackFailed, restore.FilesFailed))
		errs = append(errs, restore.Errors...)
	default:
		c.logger.Info("rollback completed", log.Int("restored", restore.FilesRestored))
		errs = append(errs, "cleanup rolled back due to validation failure")
	}
	return &report, errs, false
}
