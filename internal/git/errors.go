package git

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrGitNotFound is returned when the git binary cannot be executed.
	ErrGitNotFound = errors.New("git executable not found")

	// ErrNotRepository is returned when the working directory is not inside a git repository.
	ErrNotRepository = errors.New("not a git repository")

	// ErrNoRemote is returned when the remote cannot be inspected.
	ErrNoRemote = errors.New("no remote configured")

	// ErrUnparsableRemote is returned when remote inspection output lacks a HEAD branch.
	ErrUnparsableRemote = errors.New("unable to determine default branch from remote")

	// ErrNoUpstream is returned when a reset is requested for a branch without
	// a configured upstream.
	ErrNoUpstream = errors.New("branch has no upstream")

	// ErrDetachedHead is returned when HEAD does not point at a branch.
	ErrDetachedHead = errors.New("HEAD is detached")

	// ErrMalformedCommit is returned when a commit listing record has an unexpected shape.
	ErrMalformedCommit = errors.New("malformed commit record")

	// ErrBranchExists is returned when a branch to create is already present.
	ErrBranchExists = errors.New("branch already exists")

	// ErrRemoteRejected is returned when the remote refuses a push.
	ErrRemoteRejected = errors.New("remote rejected push")
)

// GitError wraps failures when invoking the git binary.
type GitError struct {
	Args     []string
	Output   string
	ExitCode int
	Err      error
}

func (e *GitError) Error() string {
	if e == nil {
		return ""
	}
	msg := fmt.Sprintf("git %s: %v", strings.Join(e.Args, " "), e.Err)
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += "\n" + out
	}
	return msg
}

func (e *GitError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ParseError reports git output that could not be decoded. Input holds the
// offending text so callers can surface it.
type ParseError struct {
	Input  string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%v: %s (input %q)", e.Err, e.Reason, e.Input)
}

func (e *ParseError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func outputContains(err error, needles ...string) bool {
	var gitErr *GitError
	if !errors.As(err, &gitErr) {
		return false
	}
	out := strings.ToLower(gitErr.Output)
	for _, needle := range needles {
		if strings.Contains(out, needle) {
			return true
		}
	}
	return false
}
