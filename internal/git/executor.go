package git

import "context"

// DefaultRemote is the remote every run pushes to and compares against.
const DefaultRemote = "origin"

// Runner executes the git binary with the given arguments in a fixed working
// directory and returns its standard output. A non-zero exit status is reported
// as a *GitError.
type Runner interface {
	Run(ctx context.Context, args ...string) (string, error)
}

// Workspace exposes the mutating git primitives required by the orchestrator.
// Implementations either shell out to git or only report what they would do.
type Workspace interface {
	CreateBranchFrom(ctx context.Context, branch, from string) error
	Switch(ctx context.Context, branch string) error
	Rebase(ctx context.Context, commit, branch string) error
	CherryPick(ctx context.Context, commit string) error
	Push(ctx context.Context, remote, branch string, options []string) error
	ResetHard(ctx context.Context, ref string) error
}

// RepositoryContext is resolved once per run and is read-only afterwards.
type RepositoryContext struct {
	DefaultBranch string
	CurrentBranch string
	RemoteName    string

	// Upstream is the configured upstream of CurrentBranch, e.g.
	// "origin/feature". Empty when the branch tracks nothing.
	Upstream string
}

// BaseRef returns the remote-tracking ref of the default branch, which is both
// the comparison point for commit listing and the start point of new branches.
func (c RepositoryContext) BaseRef() string {
	return c.RemoteName + "/" + c.DefaultBranch
}

// UpstreamRef returns the upstream of the branch the run started on, or ""
// when it has none.
func (c RepositoryContext) UpstreamRef() string {
	return c.Upstream
}

func createBranchArgs(branch, from string) []string {
	return []string{"branch", branch, from}
}

func switchArgs(branch string) []string {
	return []string{"switch", branch}
}

func rebaseArgs(commit, branch string) []string {
	return []string{"rebase", commit, branch}
}

func cherryPickArgs(commit string) []string {
	return []string{"cherry-pick", commit}
}

func resetHardArgs(ref string) []string {
	return []string{"reset", "--hard", ref}
}

func pushArgs(remote, branch string, options []string) []string {
	args := make([]string, 0, 4+2*len(options))
	args = append(args, "push")
	for _, option := range options {
		args = append(args, "-o", option)
	}
	return append(args, "-u", remote, branch)
}
