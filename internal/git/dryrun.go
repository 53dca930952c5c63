package git

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// NewDryRunWorkspace returns a Workspace that performs no git operations.
// Every call prints the equivalent command line to out and succeeds.
func NewDryRunWorkspace(out io.Writer, gitBinary string) Workspace {
	if gitBinary == "" {
		gitBinary = "git"
	}
	return &dryRunWorkspace{out: out, git: gitBinary}
}

type dryRunWorkspace struct {
	out io.Writer
	git string
}

func (w *dryRunWorkspace) CreateBranchFrom(ctx context.Context, branch, from string) error {
	return w.echo(createBranchArgs(branch, from))
}

func (w *dryRunWorkspace) Switch(ctx context.Context, branch string) error {
	return w.echo(switchArgs(branch))
}

func (w *dryRunWorkspace) Rebase(ctx context.Context, commit, branch string) error {
	return w.echo(rebaseArgs(commit, branch))
}

func (w *dryRunWorkspace) CherryPick(ctx context.Context, commit string) error {
	return w.echo(cherryPickArgs(commit))
}

func (w *dryRunWorkspace) Push(ctx context.Context, remote, branch string, options []string) error {
	return w.echo(pushArgs(remote, branch, options))
}

func (w *dryRunWorkspace) ResetHard(ctx context.Context, ref string) error {
	return w.echo(resetHardArgs(ref))
}

// echo never fails the run: a dry run reports success for every step.
func (w *dryRunWorkspace) echo(args []string) error {
	if w.out == nil {
		return nil
	}
	_, _ = fmt.Fprintln(w.out, FormatCommand(w.git, args))
	return nil
}

// FormatCommand renders a git invocation as a single readable command line.
func FormatCommand(gitBinary string, args []string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, quoteArg(gitBinary))
	for _, arg := range args {
		parts = append(parts, quoteArg(arg))
	}
	return strings.Join(parts, " ")
}

func quoteArg(arg string) string {
	if arg == "" || strings.ContainsAny(arg, " \t\n'\"\\$`*?") {
		return strconv.Quote(arg)
	}
	return arg
}
