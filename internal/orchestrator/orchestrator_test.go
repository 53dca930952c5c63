package orchestrator_test

import (
	"bytes"
	"context"
	"errors"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/gl-mr/gl-mr/internal/branch"
	"github.com/gl-mr/gl-mr/internal/git"
	"github.com/gl-mr/gl-mr/internal/orchestrator"
)

type fakeReader struct {
	validErr   error
	repo       git.RepositoryContext
	resolveErr error
	commits    []git.CommitRecord
	listErr    error

	listFrom string
	listTo   string
}

func (f *fakeReader) CheckValid(context.Context) error {
	return f.validErr
}

func (f *fakeReader) Resolve(context.Context) (git.RepositoryContext, error) {
	if f.resolveErr != nil {
		return git.RepositoryContext{}, f.resolveErr
	}
	return f.repo, nil
}

func (f *fakeReader) ListCommits(_ context.Context, from, to string) ([]git.CommitRecord, error) {
	f.listFrom = from
	f.listTo = to
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.commits, nil
}

// fakeWorkspace records every call as the git command line it stands for.
type fakeWorkspace struct {
	calls  []string
	pushes []pushCall

	createBranchErr error
	switchErr       map[string]error
	rebaseErr       error
	cherryPickErr   error
	pushErr         error
	resetErr        error
}

type pushCall struct {
	remote  string
	branch  string
	options []string
}

func (w *fakeWorkspace) CreateBranchFrom(_ context.Context, branch, from string) error {
	w.calls = append(w.calls, "branch "+branch+" "+from)
	return w.createBranchErr
}

func (w *fakeWorkspace) Switch(_ context.Context, branch string) error {
	w.calls = append(w.calls, "switch "+branch)
	return w.switchErr[branch]
}

func (w *fakeWorkspace) Rebase(_ context.Context, commit, branch string) error {
	w.calls = append(w.calls, "rebase "+commit+" "+branch)
	return w.rebaseErr
}

func (w *fakeWorkspace) CherryPick(_ context.Context, commit string) error {
	w.calls = append(w.calls, "cherry-pick "+commit)
	return w.cherryPickErr
}

func (w *fakeWorkspace) Push(_ context.Context, remote, branch string, options []string) error {
	w.calls = append(w.calls, "push "+remote+" "+branch)
	w.pushes = append(w.pushes, pushCall{remote: remote, branch: branch, options: options})
	return w.pushErr
}

func (w *fakeWorkspace) ResetHard(_ context.Context, ref string) error {
	w.calls = append(w.calls, "reset --hard "+ref)
	return w.resetErr
}

func (w *fakeWorkspace) callsWithPrefix(prefix string) []string {
	var out []string
	for _, c := range w.calls {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out
}

var _ = Describe("Orchestrator", func() {
	var (
		ctx       context.Context
		cfg       orchestrator.Config
		reader    *fakeReader
		workspace *fakeWorkspace
	)

	BeforeEach(func() {
		ctx = context.Background()
		cfg = orchestrator.Config{}
		reader = &fakeReader{
			repo: git.RepositoryContext{DefaultBranch: "main", CurrentBranch: "feature", RemoteName: "origin", Upstream: "origin/feature"},
			commits: []git.CommitRecord{
				{SHA: "c1", Subject: "Add auth", Description: "Adds login.", Condensed: "Add-auth"},
				{SHA: "c2", Subject: "Fix typo", Condensed: "Fix-typo"},
				{SHA: "c3", Subject: "Add tests", Description: "Covers login.", Condensed: "Add-tests"},
			},
		}
		workspace = &fakeWorkspace{}
	})

	It("stacks branches with rebase in dependent mode", func() {
		cfg.Dependent = true
		orch := orchestrator.New(cfg, reader, workspace, nil)

		result, err := orch.Run(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(reader.listFrom).To(Equal("feature"))
		Expect(reader.listTo).To(Equal("origin/main"))

		Expect(workspace.calls).To(Equal([]string{
			"branch add-auth origin/main",
			"branch fix-typo origin/main",
			"branch add-tests origin/main",
			"rebase c1 add-auth",
			"rebase c2 fix-typo",
			"rebase c3 add-tests",
			"push origin add-auth",
			"push origin fix-typo",
			"push origin add-tests",
			"switch feature",
		}))

		Expect(workspace.pushes[0].options).To(Equal([]string{
			"merge_request.create",
			"merge_request.remove_source_branch",
			"merge_request.target=main",
			"merge_request.title=Draft: Add auth",
			"merge_request.description=Adds login.",
		}))
		Expect(workspace.pushes[1].options).To(ContainElement("merge_request.title=Draft: Fix typo"))
		Expect(workspace.pushes[2].options).To(ContainElement("merge_request.title=Add tests"))
		Expect(workspace.pushes[2].options).To(ContainElement("merge_request.description=Covers login."))

		Expect(result.Stage).To(Equal(orchestrator.StageDone))
		Expect(result.FailedStage).To(BeEmpty())
		Expect(result.Checkout).To(Equal("feature"))
		Expect(result.Dependent).To(BeTrue())
		Expect(result.Branches).To(HaveLen(3))
		for _, b := range result.Branches {
			Expect(b.Status).To(Equal(orchestrator.BranchStatusPushed))
		}
	})

	It("cherry-picks each commit onto its own branch in independent mode", func() {
		orch := orchestrator.New(cfg, reader, workspace, nil)

		result, err := orch.Run(ctx)
		Expect(err).NotTo(HaveOccurred())

		Expect(workspace.calls).To(Equal([]string{
			"branch add-auth origin/main",
			"branch fix-typo origin/main",
			"branch add-tests origin/main",
			"switch add-auth",
			"cherry-pick c1",
			"switch feature",
			"switch fix-typo",
			"cherry-pick c2",
			"switch feature",
			"switch add-tests",
			"cherry-pick c3",
			"switch feature",
			"push origin add-auth",
			"push origin fix-typo",
			"push origin add-tests",
			"switch feature",
		}))

		Expect(workspace.pushes[0].options).To(Equal([]string{
			"merge_request.create",
			"merge_request.remove_source_branch",
			"merge_request.target=main",
			"merge_request.title=Add auth",
		}))
		for _, p := range workspace.pushes {
			for _, o := range p.options {
				Expect(o).NotTo(HavePrefix("merge_request.description"))
				Expect(o).NotTo(ContainSubstring("Draft: "))
			}
		}
		Expect(result.Checkout).To(Equal("feature"))
	})

	It("does nothing when no commits are ahead", func() {
		reader.commits = nil
		orch := orchestrator.New(cfg, reader, workspace, nil)

		result, err := orch.Run(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(workspace.calls).To(BeEmpty())
		Expect(result.Branches).To(BeEmpty())
		Expect(result.Stage).To(Equal(orchestrator.StageDone))
	})

	It("does not reset when nothing was pushed", func() {
		reader.commits = nil
		cfg.Reset = true
		orch := orchestrator.New(cfg, reader, workspace, nil)

		result, err := orch.Run(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Reset).To(BeFalse())
		Expect(workspace.callsWithPrefix("reset")).To(BeEmpty())
	})

	It("resets the original branch after every push when requested", func() {
		cfg.Dependent = true
		cfg.Reset = true
		orch := orchestrator.New(cfg, reader, workspace, nil)

		result, err := orch.Run(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Reset).To(BeTrue())
		Expect(workspace.calls[len(workspace.calls)-2:]).To(Equal([]string{
			"switch feature",
			"reset --hard origin/feature",
		}))
	})

	It("resets to the configured upstream rather than a same-named remote branch", func() {
		cfg.Reset = true
		reader.repo.Upstream = "origin/topic"
		orch := orchestrator.New(cfg, reader, workspace, nil)

		_, err := orch.Run(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(workspace.callsWithPrefix("reset")).To(Equal([]string{"reset --hard origin/topic"}))
	})

	It("refuses a reset without an upstream before touching the repository", func() {
		cfg.Reset = true
		reader.repo.Upstream = ""
		orch := orchestrator.New(cfg, reader, workspace, nil)

		result, err := orch.Run(ctx)
		Expect(errors.Is(err, git.ErrNoUpstream)).To(BeTrue())
		Expect(result.FailedStage).To(Equal(orchestrator.StageEnumerating))
		Expect(result.Branches).To(BeEmpty())
		Expect(workspace.calls).To(BeEmpty())
	})

	It("reports the reset stage when the reset fails", func() {
		cfg.Reset = true
		workspace.resetErr = errors.New("no upstream")
		orch := orchestrator.New(cfg, reader, workspace, nil)

		result, err := orch.Run(ctx)
		Expect(err).To(MatchError(ContainSubstring("no upstream")))
		Expect(result.FailedStage).To(Equal(orchestrator.StageResetting))
		Expect(result.Reset).To(BeFalse())
	})

	It("marks branches as dry run", func() {
		cfg.DryRun = true
		orch := orchestrator.New(cfg, reader, workspace, nil)

		result, err := orch.Run(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.DryRun).To(BeTrue())
		for _, b := range result.Branches {
			Expect(b.Status).To(Equal(orchestrator.BranchStatusDryRun))
		}
	})

	It("applies the naming prefix and custom draft prefix", func() {
		cfg.Dependent = true
		cfg.DraftPrefix = "WIP: "
		cfg.Naming = branch.NamingOptions{Prefix: "mr"}
		orch := orchestrator.New(cfg, reader, workspace, nil)

		result, err := orch.Run(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Branches[0].Branch).To(Equal("mr/add-auth"))
		Expect(workspace.pushes[0].options).To(ContainElement("merge_request.title=WIP: Add auth"))
	})

	It("stops on invalid repositories before touching anything", func() {
		reader.validErr = git.ErrNotRepository
		orch := orchestrator.New(cfg, reader, workspace, nil)

		result, err := orch.Run(ctx)
		Expect(errors.Is(err, git.ErrNotRepository)).To(BeTrue())
		Expect(result.FailedStage).To(Equal(orchestrator.StageResolving))
		Expect(workspace.calls).To(BeEmpty())
	})

	It("fails when the default branch cannot be resolved", func() {
		reader.resolveErr = git.ErrNoRemote
		orch := orchestrator.New(cfg, reader, workspace, nil)

		_, err := orch.Run(ctx)
		Expect(errors.Is(err, git.ErrNoRemote)).To(BeTrue())
		Expect(workspace.calls).To(BeEmpty())
	})

	It("fails during enumeration without mutating", func() {
		reader.listErr = errors.New("bad revision")
		orch := orchestrator.New(cfg, reader, workspace, nil)

		result, err := orch.Run(ctx)
		Expect(err).To(MatchError(ContainSubstring("enumerate commits")))
		Expect(result.FailedStage).To(Equal(orchestrator.StageEnumerating))
		Expect(workspace.calls).To(BeEmpty())
	})

	It("rejects duplicate branch names before any mutation", func() {
		reader.commits = append(reader.commits, git.CommitRecord{SHA: "c4", Subject: "Fix typo", Condensed: "Fix-typo"})
		orch := orchestrator.New(cfg, reader, workspace, nil)

		_, err := orch.Run(ctx)
		Expect(errors.Is(err, branch.ErrDuplicate)).To(BeTrue())
		Expect(workspace.calls).To(BeEmpty())
	})

	It("stops creating branches on the first failure and restores the original branch", func() {
		workspace.createBranchErr = git.ErrBranchExists
		orch := orchestrator.New(cfg, reader, workspace, nil)

		result, err := orch.Run(ctx)
		Expect(errors.Is(err, git.ErrBranchExists)).To(BeTrue())
		Expect(result.FailedStage).To(Equal(orchestrator.StageCreatingBranches))
		Expect(workspace.calls).To(Equal([]string{
			"branch add-auth origin/main",
			"switch feature",
		}))
		Expect(result.Branches[0].Status).To(Equal(orchestrator.BranchStatusPending))
	})

	It("restores the original branch after a failed rebase", func() {
		cfg.Dependent = true
		workspace.rebaseErr = errors.New("conflict")
		orch := orchestrator.New(cfg, reader, workspace, nil)

		result, err := orch.Run(ctx)
		Expect(err).To(MatchError(ContainSubstring("conflict")))
		Expect(result.FailedStage).To(Equal(orchestrator.StageApplyingCommits))
		Expect(workspace.callsWithPrefix("rebase")).To(HaveLen(1))
		Expect(workspace.callsWithPrefix("push")).To(BeEmpty())
		Expect(workspace.calls[len(workspace.calls)-1]).To(Equal("switch feature"))
		Expect(result.Checkout).To(Equal("feature"))
	})

	It("restores the original branch after a failed cherry-pick", func() {
		workspace.cherryPickErr = errors.New("conflict")
		orch := orchestrator.New(cfg, reader, workspace, nil)

		result, err := orch.Run(ctx)
		Expect(err).To(MatchError(ContainSubstring("cherry-pick")))
		Expect(result.Branches[0].Status).To(Equal(orchestrator.BranchStatusCreated))
		Expect(workspace.calls[len(workspace.calls)-2:]).To(Equal([]string{
			"cherry-pick c1",
			"switch feature",
		}))
	})

	It("stops pushing after a rejected push and never resets", func() {
		cfg.Reset = true
		workspace.pushErr = git.ErrRemoteRejected
		orch := orchestrator.New(cfg, reader, workspace, nil)

		result, err := orch.Run(ctx)
		Expect(errors.Is(err, git.ErrRemoteRejected)).To(BeTrue())
		Expect(result.FailedStage).To(Equal(orchestrator.StagePushingBranches))
		Expect(workspace.pushes).To(HaveLen(1))
		Expect(workspace.callsWithPrefix("reset")).To(BeEmpty())
		Expect(result.Reset).To(BeFalse())
		Expect(result.Branches[0].Status).To(Equal(orchestrator.BranchStatusApplied))
	})

	It("joins the restore failure with the original error", func() {
		cfg.Dependent = true
		workspace.rebaseErr = errors.New("conflict")
		workspace.switchErr = map[string]error{"feature": errors.New("checkout blocked")}
		orch := orchestrator.New(cfg, reader, workspace, nil)

		result, err := orch.Run(ctx)
		Expect(err).To(MatchError(ContainSubstring("conflict")))
		Expect(err).To(MatchError(ContainSubstring("checkout blocked")))
		Expect(result.FailedStage).To(Equal(orchestrator.StageApplyingCommits))
		Expect(result.Checkout).To(Equal("add-auth"))
	})

	It("reports a restore failure after a successful push", func() {
		workspace.switchErr = map[string]error{"feature": errors.New("checkout blocked")}
		reader.commits = reader.commits[:1]
		cfg.Dependent = true
		orch := orchestrator.New(cfg, reader, workspace, nil)

		result, err := orch.Run(ctx)
		Expect(err).To(MatchError(ContainSubstring("restore feature")))
		Expect(result.FailedStage).To(Equal(orchestrator.StageRestoring))
		Expect(result.Branches[0].Status).To(Equal(orchestrator.BranchStatusPushed))
	})

	It("produces the dry-run command sequence with the echo workspace", func() {
		var out bytes.Buffer
		cfg.Dependent = true
		cfg.DryRun = true
		orch := orchestrator.New(cfg, reader, git.NewDryRunWorkspace(&out, "git"), nil)

		_, err := orch.Run(ctx)
		Expect(err).NotTo(HaveOccurred())

		lines := strings.Split(strings.TrimSpace(out.String()), "\n")
		Expect(lines).To(HaveLen(10))
		Expect(lines[0]).To(Equal("git branch add-auth origin/main"))
		Expect(lines[3]).To(Equal("git rebase c1 add-auth"))
		Expect(lines[6]).To(ContainSubstring(`"merge_request.title=Draft: Add auth"`))
		Expect(lines[9]).To(Equal("git switch feature"))
	})

	It("requires a reader and a workspace", func() {
		_, err := orchestrator.New(cfg, nil, workspace, nil).Run(ctx)
		Expect(err).To(MatchError(ContainSubstring("reader")))

		_, err = orchestrator.New(cfg, reader, nil, nil).Run(ctx)
		Expect(err).To(MatchError(ContainSubstring("workspace")))
	})
})
