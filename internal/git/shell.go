package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
)

// ShellRunner shells out to the system git binary inside a single working
// directory. Calls block until the subprocess exits; no timeout is applied
// beyond the supplied context.
type ShellRunner struct {
	// Git is the git binary to execute. Defaults to "git" when empty.
	Git string

	// Dir is the repository working directory. When empty, commands run in the
	// current process working directory.
	Dir string

	// Logger receives a debug record per invocation when set.
	Logger *slog.Logger
}

// NewShellRunner returns a Runner bound to dir using the given git binary.
func NewShellRunner(gitBinary, dir string) *ShellRunner {
	return &ShellRunner{Git: gitBinary, Dir: dir}
}

func (r *ShellRunner) gitBinary() string {
	if r.Git == "" {
		return "git"
	}
	return r.Git
}

// Run executes git with args and returns its standard output.
func (r *ShellRunner) Run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, r.gitBinary(), args...)
	if r.Dir != "" {
		cmd.Dir = r.Dir
	}
	// Output is matched against git's English messages.
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0", "LC_ALL=C", "LANGUAGE=")
	setProcessGroup(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if r.Logger != nil {
		r.Logger.Debug("running git", "args", args, "dir", r.Dir)
	}

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		if errors.Is(err, exec.ErrNotFound) {
			return "", fmt.Errorf("%w: %s: %w", ErrGitNotFound, r.gitBinary(), err)
		}
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		output := stderr.String()
		if strings.TrimSpace(output) == "" {
			output = stdout.String()
		}
		return "", &GitError{Args: args, Output: output, ExitCode: exitCode, Err: err}
	}

	return stdout.String(), nil
}

// NewShellWorkspace returns a Workspace executing every operation through runner.
func NewShellWorkspace(runner Runner) Workspace {
	return &shellWorkspace{runner: runner}
}

type shellWorkspace struct {
	runner Runner
}

func (w *shellWorkspace) CreateBranchFrom(ctx context.Context, branch, from string) error {
	if _, err := w.runner.Run(ctx, createBranchArgs(branch, from)...); err != nil {
		if outputContains(err, "already exists") {
			return fmt.Errorf("git branch %s from %s: %w: %w", branch, from, ErrBranchExists, err)
		}
		return fmt.Errorf("git branch %s from %s: %w", branch, from, err)
	}
	return nil
}

func (w *shellWorkspace) Switch(ctx context.Context, branch string) error {
	if _, err := w.runner.Run(ctx, switchArgs(branch)...); err != nil {
		return fmt.Errorf("git switch %s: %w", branch, err)
	}
	return nil
}

func (w *shellWorkspace) Rebase(ctx context.Context, commit, branch string) error {
	if _, err := w.runner.Run(ctx, rebaseArgs(commit, branch)...); err != nil {
		return fmt.Errorf("git rebase %s %s: %w", commit, branch, err)
	}
	return nil
}

func (w *shellWorkspace) CherryPick(ctx context.Context, commit string) error {
	if _, err := w.runner.Run(ctx, cherryPickArgs(commit)...); err != nil {
		return fmt.Errorf("git cherry-pick %s: %w", commit, err)
	}
	return nil
}

func (w *shellWorkspace) Push(ctx context.Context, remote, branch string, options []string) error {
	if _, err := w.runner.Run(ctx, pushArgs(remote, branch, options)...); err != nil {
		if outputContains(err, "[rejected]", "[remote rejected]") {
			return fmt.Errorf("git push %s: %w: %w", branch, ErrRemoteRejected, err)
		}
		return fmt.Errorf("git push %s: %w", branch, err)
	}
	return nil
}

func (w *shellWorkspace) ResetHard(ctx context.Context, ref string) error {
	if _, err := w.runner.Run(ctx, resetHardArgs(ref)...); err != nil {
		return fmt.Errorf("git reset --hard %s: %w", ref, err)
	}
	return nil
}
