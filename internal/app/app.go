package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/gl-mr/gl-mr/internal/git"
	"github.com/gl-mr/gl-mr/internal/orchestrator"
)

// Runner glues together the orchestrator and supporting services to split the
// current branch into merge requests.
type Runner struct {
	cfg Config
	log *slog.Logger
	out io.Writer
	git git.Runner // only set for testing via NewRunnerWithDeps
}

// NewRunner constructs a Runner with the supplied configuration. Logs go to
// errOut; dry-run commands and the run summary go to out.
func NewRunner(cfg Config, out, errOut io.Writer) (*Runner, error) {
	logger, err := NewLogger(errOut, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	if out == nil {
		out = os.Stdout
	}

	return &Runner{cfg: cfg, log: logger, out: out}, nil
}

// NewRunnerWithDeps constructs a Runner with injected dependencies for testing.
func NewRunnerWithDeps(cfg Config, log *slog.Logger, out io.Writer, runner git.Runner) *Runner {
	return &Runner{cfg: cfg, log: log, out: out, git: runner}
}

// Run executes the split using the provided context. The summary is written
// even when the run fails part way.
func (r *Runner) Run(ctx context.Context) (orchestrator.Result, error) {
	if r.log != nil {
		r.log.Info("starting gl-mr run", "path", r.cfg.Path, "dependent", r.cfg.Dependent, "dry_run", r.cfg.DryRun, "reset", r.cfg.Reset)
	}

	runner := r.git
	if runner == nil {
		shell := git.NewShellRunner(r.cfg.Git, r.cfg.Path)
		shell.Logger = r.log
		runner = shell
	}

	var workspace git.Workspace
	if r.cfg.DryRun {
		workspace = git.NewDryRunWorkspace(r.out, r.cfg.Git)
	} else {
		workspace = git.NewShellWorkspace(runner)
	}

	orchCfg := orchestrator.Config{
		Dependent:   r.cfg.Dependent,
		Reset:       r.cfg.Reset,
		DryRun:      r.cfg.DryRun,
		DraftPrefix: r.cfg.MergeRequest.DraftPrefix,
		Naming:      r.cfg.Naming(),
	}

	orch := orchestrator.New(orchCfg, git.NewReader(runner), workspace, r.log)

	result, runErr := orch.Run(ctx)

	if r.log != nil {
		for _, b := range result.Branches {
			r.log.Debug("branch outcome", "branch", b.Branch, "commit", b.Commit.ShortSHA(), "status", b.Status)
		}
	}

	if err := r.writeSummaryFile(result, runErr); err != nil && r.log != nil {
		r.log.Warn("failed to write summary file", "path", r.cfg.SummaryFile, "error", err)
	}

	if err := r.printSummary(result, runErr); err != nil && r.log != nil {
		r.log.Warn("failed to print summary", "error", err)
	}

	if runErr != nil {
		return result, fmt.Errorf("%s: %w", failedStage(result), runErr)
	}

	if r.log != nil {
		r.log.Info("finished gl-mr run", "branches", len(result.Branches), "reset", result.Reset)
	}

	return result, nil
}

func failedStage(result orchestrator.Result) string {
	if result.FailedStage != "" {
		return string(result.FailedStage)
	}
	if result.Stage != "" {
		return string(result.Stage)
	}
	return "run"
}
