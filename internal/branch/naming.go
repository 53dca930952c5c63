package branch

import (
	"errors"
	"fmt"
	"hash/fnv"
	"regexp"
	"strings"

	"github.com/gl-mr/gl-mr/internal/git"
)

var disallowedBranchChars = regexp.MustCompile(`[^a-zA-Z0-9._/-]+`)

// ErrDuplicate is returned when two commits of a batch map to the same branch name.
var ErrDuplicate = errors.New("duplicate branch name")

// NamingOptions controls how commit subjects become branch names.
type NamingOptions struct {
	// Prefix is prepended as "<prefix>/<slug>" when set.
	Prefix            string
	MaxLength         int
	HashLength        int
	SanitizeEmptyWith string
}

// DefaultNaming holds the options used when none are supplied.
var DefaultNaming = NamingOptions{
	MaxLength:         100,
	HashLength:        8,
	SanitizeEmptyWith: "commit",
}

func (o NamingOptions) withDefaults() NamingOptions {
	config := DefaultNaming
	config.Prefix = o.Prefix
	if o.MaxLength > 0 {
		config.MaxLength = o.MaxLength
	}
	if o.HashLength > 0 {
		config.HashLength = o.HashLength
	}
	if o.SanitizeEmptyWith != "" {
		config.SanitizeEmptyWith = o.SanitizeEmptyWith
	}
	return config
}

// NameForCommit derives the branch name for a commit from its condensed
// subject. The result is lowercase, only contains characters valid in a ref
// and is length-limited with a stable hash suffix.
func NameForCommit(commit git.CommitRecord, opts ...NamingOptions) string {
	var config NamingOptions
	if len(opts) > 0 {
		config = opts[0]
	}
	config = config.withDefaults()

	source := commit.Condensed
	if strings.TrimSpace(source) == "" {
		source = commit.Subject
	}

	slug := sanitizeSegment(source)
	if slug == "" {
		slug = strings.ToLower(fmt.Sprintf("%s-%s", config.SanitizeEmptyWith, commit.ShortSHA()))
		slug = strings.Trim(slug, "-")
	}

	prefix := sanitizeSegment(config.Prefix)
	name := slug
	if prefix != "" {
		name = prefix + "/" + slug
	}

	if config.MaxLength <= 0 || len(name) <= config.MaxLength {
		return name
	}

	available := config.MaxLength
	if prefix != "" {
		available -= len(prefix) + 1
	}
	if available < 1 {
		available = 1
	}

	shortened := shortenSegment(slug, available, config)
	if prefix == "" {
		return shortened
	}
	return prefix + "/" + shortened
}

// Names derives one branch name per commit, preserving order. A collision
// between two commits is reported as ErrDuplicate.
func Names(commits []git.CommitRecord, opts ...NamingOptions) ([]string, error) {
	names := make([]string, 0, len(commits))
	seen := make(map[string]git.CommitRecord, len(commits))

	for _, commit := range commits {
		name := NameForCommit(commit, opts...)
		if previous, ok := seen[name]; ok {
			return nil, fmt.Errorf("%w: %q derived from both %s and %s", ErrDuplicate, name, previous.ShortSHA(), commit.ShortSHA())
		}
		seen[name] = commit
		names = append(names, name)
	}

	return names, nil
}

func sanitizeSegment(segment string) string {
	segment = strings.TrimSpace(segment)
	segment = strings.ReplaceAll(segment, " ", "-")
	segment = disallowedBranchChars.ReplaceAllString(segment, "-")
	segment = strings.Trim(segment, "-/.")

	segment = strings.ToLower(segment)
	segment = strings.ReplaceAll(segment, "-/-", "/")
	for strings.Contains(segment, "//") {
		segment = strings.ReplaceAll(segment, "//", "/")
	}
	for strings.Contains(segment, "--") {
		segment = strings.ReplaceAll(segment, "--", "-")
	}
	for strings.Contains(segment, "..") {
		segment = strings.ReplaceAll(segment, "..", ".")
	}
	segment = strings.TrimSuffix(segment, ".lock")

	return strings.Trim(segment, "-/.")
}

func shortenSegment(segment string, available int, config NamingOptions) string {
	if len(segment) <= available {
		return segment
	}

	hashLen := config.HashLength
	if hashLen <= 0 {
		hashLen = 8
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(segment))
	hex := fmt.Sprintf("%0*x", hashLen, h.Sum32())
	suffix := "-" + hex

	if len(suffix) > available {
		if len(hex) >= available {
			return hex[:available]
		}
		return hex
	}

	baseLen := available - len(suffix)
	if baseLen <= 0 {
		return suffix[len(suffix)-available:]
	}

	base := strings.TrimRight(segment[:baseLen], "-./")
	if base == "" {
		return hex
	}

	return base + suffix
}
