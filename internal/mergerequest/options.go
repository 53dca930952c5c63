// Package mergerequest builds the GitLab push options that ask the server to
// open a merge request for a pushed branch. The options are interpreted by the
// remote; nothing here talks to an API.
package mergerequest

import (
	"strings"

	"github.com/gl-mr/gl-mr/internal/git"
)

// Push option keys understood by GitLab.
const (
	OptionCreate             = "merge_request.create"
	OptionRemoveSourceBranch = "merge_request.remove_source_branch"
	OptionTarget             = "merge_request.target"
	OptionTitle              = "merge_request.title"
	OptionDescription        = "merge_request.description"
)

// DefaultDraftPrefix marks merge requests that are not ready to merge.
const DefaultDraftPrefix = "Draft: "

// Options is the metadata attached to a single push.
type Options struct {
	Target      string
	Title       string
	Description string
}

// Build returns the ordered push options for opts. Create, remove-source-branch
// and target are always present; title and description only when non-empty.
func Build(opts Options) []string {
	options := []string{
		OptionCreate,
		OptionRemoveSourceBranch,
		OptionTarget + "=" + opts.Target,
	}
	if opts.Title != "" {
		options = append(options, OptionTitle+"="+singleLine(opts.Title, " "))
	}
	if opts.Description != "" {
		options = append(options, OptionDescription+"="+singleLine(opts.Description, "<br>"))
	}
	return options
}

// Policy decides how commit metadata maps onto merge request metadata.
type Policy struct {
	// Dependent marks every merge request but the last of the stack as draft
	// and carries the commit body as description.
	Dependent   bool
	DraftPrefix string
}

// ForCommit returns the options for the commit at index of a batch of total
// commits targeting target.
func (p Policy) ForCommit(target string, commit git.CommitRecord, index, total int) Options {
	opts := Options{Target: target, Title: commit.Subject}
	if !p.Dependent {
		return opts
	}

	if index < total-1 && opts.Title != "" {
		opts.Title = p.draftPrefix() + opts.Title
	}
	opts.Description = commit.Description
	return opts
}

func (p Policy) draftPrefix() string {
	if p.DraftPrefix == "" {
		return DefaultDraftPrefix
	}
	return p.DraftPrefix
}

// Push options may not contain line breaks.
func singleLine(value, sep string) string {
	lines := strings.FieldsFunc(value, func(r rune) bool {
		return r == '\n' || r == '\r'
	})
	return strings.Join(lines, sep)
}
