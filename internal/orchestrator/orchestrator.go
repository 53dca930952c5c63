package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gl-mr/gl-mr/internal/branch"
	"github.com/gl-mr/gl-mr/internal/git"
	"github.com/gl-mr/gl-mr/internal/mergerequest"
)

// Reader answers the read-only repository queries of a run.
type Reader interface {
	CheckValid(ctx context.Context) error
	Resolve(ctx context.Context) (git.RepositoryContext, error)
	ListCommits(ctx context.Context, from, to string) ([]git.CommitRecord, error)
}

// Orchestrator turns the commits ahead of the default branch into one pushed
// branch per commit.
type Orchestrator struct {
	cfg    Config
	reader Reader
	git    git.Workspace
	log    *slog.Logger
}

// Stage names a step of a run.
type Stage string

const (
	StageResolving        Stage = "resolving"
	StageEnumerating      Stage = "enumerating"
	StageCreatingBranches Stage = "creating_branches"
	StageApplyingCommits  Stage = "applying_commits"
	StagePushingBranches  Stage = "pushing_branches"
	StageRestoring        Stage = "restoring"
	StageResetting        Stage = "resetting"
	StageDone             Stage = "done"
)

// BranchStatus describes how far a branch got.
type BranchStatus string

const (
	BranchStatusPending BranchStatus = "pending"
	BranchStatusCreated BranchStatus = "created"
	BranchStatusApplied BranchStatus = "applied"
	BranchStatusPushed  BranchStatus = "pushed"
	BranchStatusDryRun  BranchStatus = "dry_run"
)

// BranchResult captures per-commit outcomes.
type BranchResult struct {
	Commit  git.CommitRecord
	Branch  string
	Options []string
	Status  BranchStatus
}

// Result captures the outcome of a single run.
type Result struct {
	Context   git.RepositoryContext
	Branches  []BranchResult
	Dependent bool
	DryRun    bool

	// Stage is the last stage reached; FailedStage is set when it failed.
	Stage       Stage
	FailedStage Stage

	// Checkout is the branch checked out when the run ended, as far as the
	// run itself moved it.
	Checkout string
	Reset    bool
}

// New returns a configured Orchestrator instance.
func New(cfg Config, reader Reader, workspace git.Workspace, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{cfg: cfg, reader: reader, git: workspace, log: logger}
}

// Run executes resolve, enumerate, create, apply, push, restore and the
// optional reset in order. The first failure aborts the run; once branches
// start being created the original branch is checked out again before
// returning, even on failure. The returned Result is populated as far as the
// run got.
func (o *Orchestrator) Run(ctx context.Context) (Result, error) {
	res := Result{Dependent: o.cfg.Dependent, DryRun: o.cfg.DryRun}

	if o.reader == nil {
		return res, fmt.Errorf("repository reader is required")
	}
	if o.git == nil {
		return res, fmt.Errorf("git workspace is required")
	}

	res.Stage = StageResolving
	if err := o.reader.CheckValid(ctx); err != nil {
		return res.fail(err)
	}
	repo, err := o.reader.Resolve(ctx)
	if err != nil {
		return res.fail(fmt.Errorf("resolve repository state: %w", err))
	}
	res.Context = repo
	res.Checkout = repo.CurrentBranch

	if o.log != nil {
		o.log.Info("resolved repository state", "default_branch", repo.DefaultBranch, "current_branch", repo.CurrentBranch, "remote", repo.RemoteName, "upstream", repo.Upstream)
	}

	res.Stage = StageEnumerating
	commits, err := o.reader.ListCommits(ctx, repo.CurrentBranch, repo.BaseRef())
	if err != nil {
		return res.fail(fmt.Errorf("enumerate commits: %w", err))
	}

	if len(commits) == 0 {
		if o.log != nil {
			o.log.Info("no commits ahead of base branch", "base", repo.BaseRef())
		}
		res.Stage = StageDone
		return res, nil
	}

	if o.cfg.Reset && repo.UpstreamRef() == "" {
		return res.fail(fmt.Errorf("reset %s: %w", repo.CurrentBranch, git.ErrNoUpstream))
	}

	names, err := branch.Names(commits, o.cfg.Naming)
	if err != nil {
		return res.fail(err)
	}

	policy := mergerequest.Policy{Dependent: o.cfg.Dependent, DraftPrefix: o.cfg.DraftPrefix}
	res.Branches = make([]BranchResult, len(commits))
	for i, commit := range commits {
		opts := policy.ForCommit(repo.DefaultBranch, commit, i, len(commits))
		res.Branches[i] = BranchResult{
			Commit:  commit,
			Branch:  names[i],
			Options: mergerequest.Build(opts),
			Status:  BranchStatusPending,
		}
	}

	if o.log != nil {
		o.log.Info("enumerated commits", "count", len(commits), "dependent", o.cfg.Dependent, "dry_run", o.cfg.DryRun)
	}

	runErr := o.publish(ctx, &res)

	restoreErr := o.restore(ctx, &res)
	if runErr != nil {
		return res, errors.Join(runErr, restoreErr)
	}
	if restoreErr != nil {
		return res, restoreErr
	}

	if o.cfg.Reset {
		res.Stage = StageResetting
		ref := repo.UpstreamRef()
		if err := o.git.ResetHard(ctx, ref); err != nil {
			return res.fail(fmt.Errorf("reset %s to %s: %w", repo.CurrentBranch, ref, err))
		}
		res.Reset = true
		if o.log != nil {
			o.log.Info("reset original branch", "branch", repo.CurrentBranch, "ref", ref)
		}
	}

	res.Stage = StageDone
	return res, nil
}

// publish runs the mutating stages: create every branch, apply the commits,
// push every branch.
func (o *Orchestrator) publish(ctx context.Context, res *Result) error {
	repo := res.Context

	res.Stage = StageCreatingBranches
	for i := range res.Branches {
		b := &res.Branches[i]
		if err := o.git.CreateBranchFrom(ctx, b.Branch, repo.BaseRef()); err != nil {
			res.FailedStage = res.Stage
			return fmt.Errorf("create branch %s: %w", b.Branch, err)
		}
		b.Status = BranchStatusCreated
		if o.log != nil {
			o.log.Debug("created branch", "branch", b.Branch, "from", repo.BaseRef())
		}
	}

	res.Stage = StageApplyingCommits
	var err error
	if o.cfg.Dependent {
		err = o.applyDependent(ctx, res)
	} else {
		err = o.applyIndependent(ctx, res)
	}
	if err != nil {
		res.FailedStage = res.Stage
		return err
	}

	res.Stage = StagePushingBranches
	for i := range res.Branches {
		b := &res.Branches[i]
		if err := o.git.Push(ctx, repo.RemoteName, b.Branch, b.Options); err != nil {
			res.FailedStage = res.Stage
			return fmt.Errorf("push branch %s: %w", b.Branch, err)
		}
		b.Status = BranchStatusPushed
		if o.cfg.DryRun {
			b.Status = BranchStatusDryRun
		}
		if o.log != nil {
			o.log.Info("pushed branch", "branch", b.Branch, "commit", b.Commit.ShortSHA(), "target", repo.DefaultBranch, "dry_run", o.cfg.DryRun)
		}
	}

	return nil
}

// applyDependent rebases each branch onto its own commit. All branches start
// at the base, so branch k ends up holding commits 1..k.
func (o *Orchestrator) applyDependent(ctx context.Context, res *Result) error {
	for i := range res.Branches {
		b := &res.Branches[i]
		err := o.git.Rebase(ctx, b.Commit.SHA, b.Branch)
		// rebase checks the branch out, whether or not it succeeds
		res.Checkout = b.Branch
		if err != nil {
			return fmt.Errorf("rebase %s onto %s: %w", b.Branch, b.Commit.ShortSHA(), err)
		}
		b.Status = BranchStatusApplied
	}
	return nil
}

// applyIndependent cherry-picks each commit onto its own branch and returns
// to the original branch before the next one.
func (o *Orchestrator) applyIndependent(ctx context.Context, res *Result) error {
	home := res.Context.CurrentBranch
	for i := range res.Branches {
		b := &res.Branches[i]
		if err := o.git.Switch(ctx, b.Branch); err != nil {
			return fmt.Errorf("switch to %s: %w", b.Branch, err)
		}
		res.Checkout = b.Branch

		if err := o.git.CherryPick(ctx, b.Commit.SHA); err != nil {
			return fmt.Errorf("cherry-pick %s onto %s: %w", b.Commit.ShortSHA(), b.Branch, err)
		}
		b.Status = BranchStatusApplied

		if err := o.git.Switch(ctx, home); err != nil {
			return fmt.Errorf("switch back to %s: %w", home, err)
		}
		res.Checkout = home
	}
	return nil
}

// restore checks out the branch the run started on.
func (o *Orchestrator) restore(ctx context.Context, res *Result) error {
	failed := res.FailedStage
	if failed == "" {
		res.Stage = StageRestoring
	}

	home := res.Context.CurrentBranch
	if err := o.git.Switch(ctx, home); err != nil {
		if failed == "" {
			res.FailedStage = StageRestoring
		}
		if o.log != nil {
			o.log.Warn("failed to restore original branch", "branch", home, "checkout", res.Checkout, "error", err)
		}
		return fmt.Errorf("restore %s: %w", home, err)
	}
	res.Checkout = home
	return nil
}

func (r Result) fail(err error) (Result, error) {
	r.FailedStage = r.Stage
	return r, err
}
