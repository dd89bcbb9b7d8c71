// Package execval implements the validation oracle by running configured
// shell commands. What the commands actually check (imports, CLI entry
// points, builds, test suites) is entirely up to the caller's configuration;
// this adapter only supplies the pass/fail contract the coordinator consumes.
package execval

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/fieldline/sweeper/internal/domain"
	"github.com/fieldline/sweeper/pkg/log"
)

// Default per-check timeouts. Light checks get tens of seconds; test and
// build runs can legitimately take minutes.
const (
	DefaultCheckTimeout = 30 * time.Second
	DefaultSuiteTimeout = 5 * time.Minute
)

// Checks holds the shell commands to run for each sub-check. An empty
// command passes vacuously.
type Checks struct {
	Import string
	CLI    string
	Build  string
	Test   string
}

// CommandValidator runs the configured checks sequentially in the project
// root. Each subprocess blocks the caller to completion or its timeout, at
// which point it is killed; there is no graceful mid-check cancellation.
type CommandValidator struct {
	root         string
	checks       Checks
	checkTimeout time.Duration
	suiteTimeout time.Duration
	logger       log.Logger
}

// NewCommandValidator creates a validator for the given project root.
func NewCommandValidator(root string, checks Checks, logger log.Logger) *CommandValidator {
	return &CommandValidator{
		root:         root,
		checks:       checks,
		checkTimeout: DefaultCheckTimeout,
		suiteTimeout: DefaultSuiteTimeout,
		logger:       logger,
	}
}

// Validate runs all four checks and aggregates the report. The report's
// Passed flag is the conjunction of the sub-checks.
func (v *CommandValidator) Validate(ctx context.Context) (domain.ValidationReport, error) {
	report := domain.ValidationReport{}

	report.ImportCheck = v.run(ctx, "import", v.checks.Import, v.checkTimeout, &report)
	report.CLICheck = v.run(ctx, "cli", v.checks.CLI, v.checkTimeout, &report)
	report.BuildCheck = v.run(ctx, "build", v.checks.Build, v.suiteTimeout, &report)
	report.TestCheck = v.run(ctx, "test", v.checks.Test, v.suiteTimeout, &report)

	report.Passed = report.ImportCheck && report.CLICheck && report.BuildCheck && report.TestCheck
	return report, ctx.Err()
}

func (v *CommandValidator) run(ctx context.Context, name, command string, timeout time.Duration, report *domain.ValidationReport) bool {
	if command == "" {
		return true
	}
	if ctx.Err() != nil {
		return false
	}

	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	v.logger.Debug("running validation check",
		log.String("check", name),
		log.String("command", command))

	cmd := exec.CommandContext(cctx, "sh", "-c", command)
	cmd.Dir = v.root
	output, err := cmd.CombinedOutput()
	if err != nil {
		msg := fmt.Sprintf("%s check failed: %v", name, err)
		if cctx.Err() == context.DeadlineExceeded {
			msg = fmt.Sprintf("%s check timed out after %s", name, timeout)
		}
		report.Errors = append(report.Errors, msg)
		v.logger.Warn("validation check failed",
			log.String("check", name),
			log.String("output", truncate(string(output), 512)),
			log.Err(err))
		return false
	}

	v.logger.Debug("validation check passed", log.String("check", name))
	return true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
