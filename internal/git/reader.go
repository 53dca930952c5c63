package git

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
)

var headBranchPattern = regexp.MustCompile(`HEAD branch:\s*(\S+)`)

// Reader answers the read-only questions a run asks about the repository:
// whether it is valid, which branches are involved and which commits are
// ahead of the base. It never mutates the repository, so it is safe to use in
// dry-run mode.
type Reader struct {
	runner Runner

	// Remote overrides the remote name. Empty means DefaultRemote; remote
	// selection is not exposed to users yet.
	Remote string
}

// NewReader returns a Reader issuing queries through runner.
func NewReader(runner Runner) *Reader {
	return &Reader{runner: runner}
}

// CheckValid verifies the working directory belongs to a git repository.
func (r *Reader) CheckValid(ctx context.Context) error {
	if _, err := r.runner.Run(ctx, "rev-parse", "--git-dir"); err != nil {
		if errors.Is(err, ErrGitNotFound) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrNotRepository, err)
	}
	return nil
}

// RemoteName returns the remote used for comparison and pushes.
func (r *Reader) RemoteName() string {
	if r.Remote == "" {
		return DefaultRemote
	}
	return r.Remote
}

// DefaultBranch inspects remote and returns the branch its HEAD points at.
func (r *Reader) DefaultBranch(ctx context.Context, remote string) (string, error) {
	out, err := r.runner.Run(ctx, "remote", "show", remote)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrNoRemote, remote, err)
	}
	return parseHeadBranch(out)
}

func parseHeadBranch(output string) (string, error) {
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		match := headBranchPattern.FindStringSubmatch(scanner.Text())
		if match == nil {
			continue
		}
		if match[1] == "(unknown)" {
			return "", &ParseError{Input: output, Reason: "remote HEAD is unknown", Err: ErrUnparsableRemote}
		}
		return match[1], nil
	}
	if err := scanner.Err(); err != nil {
		return "", &ParseError{Input: output, Reason: err.Error(), Err: ErrUnparsableRemote}
	}
	return "", &ParseError{Input: output, Reason: "no HEAD branch line", Err: ErrUnparsableRemote}
}

// CurrentBranch returns the branch currently checked out.
func (r *Reader) CurrentBranch(ctx context.Context) (string, error) {
	out, err := r.runner.Run(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", fmt.Errorf("resolve current branch: %w", err)
	}
	branch := strings.TrimSpace(out)
	if branch == "" || branch == "HEAD" {
		return "", ErrDetachedHead
	}
	return branch, nil
}

// Resolve gathers the RepositoryContext for a run.
func (r *Reader) Resolve(ctx context.Context) (RepositoryContext, error) {
	remote := r.RemoteName()

	defaultBranch, err := r.DefaultBranch(ctx, remote)
	if err != nil {
		return RepositoryContext{}, err
	}

	current, err := r.CurrentBranch(ctx)
	if err != nil {
		return RepositoryContext{}, err
	}

	return RepositoryContext{
		DefaultBranch: defaultBranch,
		CurrentBranch: current,
		RemoteName:    remote,
		Upstream:      r.Upstream(ctx),
	}, nil
}

// Upstream returns the remote-tracking ref the current branch is configured to
// track, or "" when it tracks nothing.
func (r *Reader) Upstream(ctx context.Context) string {
	out, err := r.runner.Run(ctx, "rev-parse", "--abbrev-ref", "--symbolic-full-name", "@{upstream}")
	if err != nil {
		return ""
	}
	return strings.TrimSpace(out)
}

// ListCommits returns the non-merge commits reachable from from but not from
// to, oldest first.
func (r *Reader) ListCommits(ctx context.Context, from, to string) ([]CommitRecord, error) {
	out, err := r.runner.Run(ctx, "rev-list", "--no-merges", commitFormat, fmt.Sprintf("%s..%s", to, from))
	if err != nil {
		return nil, fmt.Errorf("list commits %s..%s: %w", to, from, err)
	}

	commits, err := DecodeCommits(out)
	if err != nil {
		return nil, err
	}

	// rev-list lists newest first; branches must be stacked oldest first.
	slices.Reverse(commits)
	return commits, nil
}
