package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	sweeper "github.com/fieldline/sweeper"
	"github.com/fieldline/sweeper/internal/cli"
	"github.com/fieldline/sweeper/internal/cliconfig"
	"github.com/fieldline/sweeper/internal/domain"
	"github.com/fieldline/sweeper/internal/ports"
	"github.com/fieldline/sweeper/pkg/log"
)

const longHelp = `sweeper audits a project tree, classifies files for cleanup, and performs
destructive cleanup safely.

Every file slated for removal is snapshotted into a checksummed tar.gz backup
before anything is touched. After the mutations, configured validation
commands gate the result: a failed validation automatically restores the
snapshot. Backups are retained after successful runs and can be listed and
rolled back explicitly.`

var exampleUsage = strings.TrimSpace(`
  sweeper --project-root . --dry-run
  sweeper audit
  sweeper list-backups
  sweeper rollback backup_20260830_143022_001234
`)

// exitCodeInterrupted is the conventional exit code for SIGINT.
const exitCodeInterrupted = 130

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := newRootCommand()
	err := root.ExecuteContext(ctx)

	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "\noperation cancelled by user")
		os.Exit(exitCodeInterrupted)
	}
	if err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cfg := cliconfig.DefaultConfig()
	var (
		cfgPath        string
		dryRun         bool
		skipValidation bool
	)

	root := &cobra.Command{
		Use:           "sweeper",
		Short:         "Audit and safely clean up a project tree",
		Long:          longHelp,
		Example:       exampleUsage,
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := loadConfig(cmd, &cfg, cfgPath)
			if err != nil {
				return err
			}
			return runCleanup(cmd.Context(), cfg, sweeper.Options{
				DryRun:         dryRun,
				SkipValidation: skipValidation || dryRun,
			}, logger)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&cfgPath, "config", "", "path to TOML config file (default ~/.sweeper/config.toml)")
	pf.StringVar(&cfg.Root, "project-root", "", "project root directory (default: working directory)")
	pf.StringVar(&cfg.BackupDir, "backup-dir", "", "backup directory (default: <root>/"+cliconfig.DefaultBackupDirName+")")
	pf.StringVar(&cfg.ArchiveDir, "archive-dir", "", "archive directory for stale cache files (default: <root>/"+cliconfig.DefaultArchiveDirName+")")
	pf.StringVar(&cfg.ManifestPath, "manifest", "", "TOML manifest to consolidate dependencies into (default: <root>/pyproject.toml)")
	pf.StringSliceVar(&cfg.CriticalPaths, "critical-path", cfg.CriticalPaths, "root-relative path prefixes that are always kept")
	pf.DurationVar(&cfg.CacheAge, "cache-age", cfg.CacheAge, "age at which cache files are archived instead of removed")
	pf.StringVar(&cfg.ImportCheckCmd, "import-check", "", "shell command for the import validation check")
	pf.StringVar(&cfg.CLICheckCmd, "cli-check", "", "shell command for the CLI validation check")
	pf.StringVar(&cfg.BuildCheckCmd, "build-check", "", "shell command for the build validation check")
	pf.StringVar(&cfg.TestCheckCmd, "test-check", "", "shell command for the test-suite validation check")
	pf.BoolVarP(&cfg.Verbose, "verbose", "v", false, "enable verbose logging")

	root.Flags().BoolVar(&dryRun, "dry-run", false, "report what would be done without executing changes")
	root.Flags().BoolVar(&skipValidation, "skip-validation", false, "skip post-cleanup validation (commits unconditionally)")

	root.AddCommand(newAuditCommand(&cfg, &cfgPath))
	root.AddCommand(newRollbackCommand(&cfg, &cfgPath))
	root.AddCommand(newListBackupsCommand(&cfg, &cfgPath))
	return root
}

// loadConfig resolves configuration with flag > env > file > default
// precedence and returns the run logger.
func loadConfig(cmd *cobra.Command, cfg *cliconfig.Config, cfgPath string) (log.Logger, error) {
	changed := map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

	cfgFile := cfgPath
	if cfgFile == "" {
		cfgFile = cliconfig.DefaultConfigPath()
	}
	if cfgFile != "" && cliconfig.FileExists(cfgFile) {
		fc, err := cliconfig.LoadFileConfig(cfgFile)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		if err := cliconfig.ApplyFileConfig(cfg, fc, changed); err != nil {
			return nil, err
		}
	}

	if err := cliconfig.ApplyEnvConfig(cfg, changed); err != nil {
		return nil, err
	}

	if cfg.Root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		cfg.Root = wd
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return log.NewZerologAdapter(cfg.Verbose), nil
}

func runCleanup(ctx context.Context, cfg cliconfig.Config, opts sweeper.Options, logger log.Logger) error {
	outcome, err := sweeper.Cleanup(ctx, cfg, opts, logger)
	if err != nil {
		return err
	}

	if opts.DryRun {
		cli.PrintSection("DRY RUN RESULTS")
		cli.PrintWarning("no changes were made")
		cli.PrintLabelValue("Would remove", fmt.Sprintf("%d files", outcome.FilesRemoved))
		cli.PrintLabelValue("Would free", cli.FormatBytes(outcome.SizeFreed))
		return nil
	}

	cli.PrintSection("CLEANUP RESULTS")
	if outcome.Success {
		cli.PrintSuccess("cleanup completed")
	} else {
		cli.PrintError("cleanup failed")
	}
	cli.PrintLabelValue("Files removed", fmt.Sprintf("%d", outcome.FilesRemoved))
	cli.PrintLabelValue("Size freed", cli.FormatBytes(outcome.SizeFreed))
	if outcome.BackupID != "" {
		cli.PrintLabelValue("Backup ID", outcome.BackupID)
	}
	if v := outcome.Validation; v != nil {
		cli.PrintLabelValue("Import check", passFail(v.ImportCheck))
		cli.PrintLabelValue("CLI check", passFail(v.CLICheck))
		cli.PrintLabelValue("Build check", passFail(v.BuildCheck))
		cli.PrintLabelValue("Test check", passFail(v.TestCheck))
	}
	for _, e := range outcome.Errors {
		cli.PrintWarning(e)
	}

	if !outcome.Success {
		return errors.New("cleanup failed")
	}
	return nil
}

func passFail(ok bool) string {
	if ok {
		return "PASS"
	}
	return "FAIL"
}

func newAuditCommand(cfg *cliconfig.Config, cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "audit",
		Short: "Categorize files without performing cleanup",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := loadConfig(cmd, cfg, *cfgPath)
			if err != nil {
				return err
			}
			plan, err := sweeper.Audit(cmd.Context(), *cfg, logger)
			if err != nil {
				return err
			}

			cli.PrintSection("AUDIT SUMMARY")
			cli.PrintLabelValue("Total files", fmt.Sprintf("%d", plan.TotalFiles()))
			cli.PrintLabelValue("Keep", fmt.Sprintf("%d", len(plan.Keep)))
			cli.PrintLabelValue("Remove", fmt.Sprintf("%d", len(plan.Remove)))
			cli.PrintLabelValue("Consolidate", fmt.Sprintf("%d", len(plan.Consolidate)))
			cli.PrintLabelValue("Archive", fmt.Sprintf("%d", len(plan.Archive)))
			cli.PrintLabelValue("Projected reduction", cli.FormatBytes(plan.ProjectedBytes()))
			return nil
		},
	}
}

func newRollbackCommand(cfg *cliconfig.Config, cfgPath *string) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "rollback <backup-id>",
		Short: "Restore files from a specific backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := loadConfig(cmd, cfg, *cfgPath)
			if err != nil {
				return err
			}
			store, err := sweeper.OpenStore(*cfg, logger)
			if err != nil {
				return err
			}

			backupID := args[0]
			manifest, err := store.Info(cmd.Context(), backupID)
			if errors.Is(err, domain.ErrBackupNotFound) {
				cli.PrintError(fmt.Sprintf("backup %q does not exist", backupID))
				fmt.Println("\nAvailable backups:")
				if listErr := printBackups(cmd.Context(), store); listErr != nil {
					return listErr
				}
				return err
			}
			if err != nil {
				return err
			}

			cli.PrintLabelValue("Backup", manifest.BackupID)
			cli.PrintLabelValue("Created", manifest.Timestamp.Format(time.RFC3339))
			cli.PrintLabelValue("Files", fmt.Sprintf("%d", manifest.TotalFiles))
			cli.PrintLabelValue("Size", cli.FormatBytes(manifest.TotalSize))

			if !yes && !confirm("Restore this backup? This will overwrite existing files.") {
				fmt.Println("rollback cancelled")
				return nil
			}

			result, err := store.Restore(cmd.Context(), backupID, "")
			if err != nil {
				return err
			}

			cli.PrintSection("ROLLBACK RESULTS")
			if result.Success {
				cli.PrintSuccess(fmt.Sprintf("restored %d files", result.FilesRestored))
				return nil
			}
			cli.PrintError(fmt.Sprintf("restored %d files, %d failed", result.FilesRestored, result.FilesFailed))
			for _, e := range result.Errors {
				cli.PrintWarning(e)
			}
			return errors.New("rollback incomplete")
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func newListBackupsCommand(cfg *cliconfig.Config, cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list-backups",
		Short: "List all available backups, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := loadConfig(cmd, cfg, *cfgPath)
			if err != nil {
				return err
			}
			store, err := sweeper.OpenStore(*cfg, logger)
			if err != nil {
				return err
			}
			return printBackups(cmd.Context(), store)
		},
	}
}

func printBackups(ctx context.Context, store ports.ArchiveStore) error {
	backups, err := store.List(ctx)
	if err != nil {
		return err
	}
	if len(backups) == 0 {
		fmt.Println("no backups found")
		return nil
	}
	for _, b := range backups {
		cli.PrintLabelValue("ID", b.BackupID)
		cli.PrintLabelValue("  Created", b.Timestamp.Format(time.RFC3339))
		cli.PrintLabelValue("  Files", fmt.Sprintf("%d", b.TotalFiles))
		cli.PrintLabelValue("  Size", cli.FormatBytes(b.TotalSize))
	}
	return nil
}

func confirm(prompt string) bool {
	fmt.Printf("%s (yes/no): ", prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "yes" || answer == "y"
}
