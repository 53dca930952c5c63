package git

import (
	"fmt"
	"strings"
)

const (
	fieldSeparator  = "\x1f"
	recordSeparator = "\x1e"

	// commitFormat asks rev-list for sha, subject, body and condensed subject
	// separated by ASCII unit separators, each record closed by a record
	// separator. Neither control character occurs in ordinary commit messages.
	commitFormat = "--format=%H%x1f%s%x1f%b%x1f%f%x1e"

	headerPrefix = "commit "
)

// CommitRecord describes one commit ahead of the base branch.
type CommitRecord struct {
	SHA         string
	Subject     string
	Description string

	// Condensed is git's filename-safe form of the subject, the raw material
	// for the branch name.
	Condensed string
}

// ShortSHA returns the first eight characters of the commit id.
func (c CommitRecord) ShortSHA() string {
	if len(c.SHA) <= 8 {
		return c.SHA
	}
	return c.SHA[:8]
}

func (c CommitRecord) String() string {
	return fmt.Sprintf("%s %s", c.ShortSHA(), c.Subject)
}

// DecodeCommits parses rev-list output produced with commitFormat. Records
// are returned in listing order. Header lines emitted by rev-list
// ("commit <sha>") are dropped. Both the short shape (sha, subject,
// condensed) and the full shape (sha, subject, body, condensed) are accepted;
// the last field is always the condensed subject.
func DecodeCommits(output string) ([]CommitRecord, error) {
	var commits []CommitRecord
	for _, raw := range strings.Split(output, recordSeparator) {
		record := stripHeader(raw)
		if strings.TrimSpace(record) == "" {
			continue
		}

		commit, err := decodeRecord(record)
		if err != nil {
			return nil, err
		}
		commits = append(commits, commit)
	}
	return commits, nil
}

func stripHeader(raw string) string {
	record := strings.TrimLeft(raw, "\r\n")
	for strings.HasPrefix(record, headerPrefix) {
		idx := strings.IndexByte(record, '\n')
		if idx < 0 {
			return ""
		}
		record = strings.TrimLeft(record[idx+1:], "\r\n")
	}
	return record
}

func decodeRecord(record string) (CommitRecord, error) {
	fields := strings.Split(record, fieldSeparator)

	var commit CommitRecord
	switch len(fields) {
	case 3:
		commit = CommitRecord{
			SHA:       fields[0],
			Subject:   fields[1],
			Condensed: fields[2],
		}
	case 4:
		commit = CommitRecord{
			SHA:         fields[0],
			Subject:     fields[1],
			Description: fields[2],
			Condensed:   fields[3],
		}
	default:
		return CommitRecord{}, &ParseError{
			Input:  record,
			Reason: fmt.Sprintf("expected 3 or 4 fields, got %d", len(fields)),
			Err:    ErrMalformedCommit,
		}
	}

	commit.SHA = strings.TrimSpace(commit.SHA)
	commit.Subject = strings.TrimSpace(commit.Subject)
	commit.Description = strings.TrimSpace(commit.Description)
	commit.Condensed = strings.TrimSpace(commit.Condensed)

	if commit.SHA == "" {
		return CommitRecord{}, &ParseError{Input: record, Reason: "missing commit sha", Err: ErrMalformedCommit}
	}
	return commit, nil
}
