package app

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/gl-mr/gl-mr/internal/mergerequest"
	"github.com/gl-mr/gl-mr/internal/orchestrator"
)

var (
	colorGreen = lipgloss.Color("#00FF00")
	colorCyan  = lipgloss.Color("#00FFFF")
	colorRed   = lipgloss.Color("#FF0000")
	colorGray  = lipgloss.Color("8")
)

func (r *Runner) writeSummaryFile(result orchestrator.Result, runErr error) error {
	path := r.cfg.SummaryFile
	if path == "" {
		return nil
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create summary directory: %w", err)
		}
	}

	var builder strings.Builder
	builder.WriteString("## gl-mr summary\n\n")
	builder.WriteString(renderResultDetails(result, runErr))

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open summary file: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil && r.log != nil {
			r.log.Warn("failed to close summary file", "error", closeErr)
		}
	}()

	if _, err := file.WriteString(builder.String()); err != nil {
		return fmt.Errorf("write summary file: %w", err)
	}

	return nil
}

func renderResultDetails(result orchestrator.Result, runErr error) string {
	var builder strings.Builder

	repo := result.Context
	if repo.CurrentBranch != "" {
		mode := "independent"
		if result.Dependent {
			mode = "dependent"
		}
		builder.WriteString(fmt.Sprintf("Source `%s` onto `%s` (%s", repo.CurrentBranch, repo.BaseRef(), mode))
		if result.DryRun {
			builder.WriteString(", dry run")
		}
		builder.WriteString(")\n\n")
	}

	if len(result.Branches) == 0 {
		if runErr == nil {
			builder.WriteString("No commits ahead of the default branch.\n")
		}
	} else {
		builder.WriteString("| Branch | Commit | Title | Status |\n")
		builder.WriteString("| --- | --- | --- | --- |\n")
		for _, b := range result.Branches {
			builder.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n",
				sanitizeMarkdownCell(b.Branch),
				sanitizeMarkdownCell(b.Commit.ShortSHA()),
				sanitizeMarkdownCell(titleOption(b.Options)),
				sanitizeMarkdownCell(string(b.Status)),
			))
		}
	}

	if result.Reset {
		builder.WriteString(fmt.Sprintf("\nReset `%s` to `%s`.\n", repo.CurrentBranch, repo.UpstreamRef()))
	}

	if runErr != nil {
		builder.WriteString(fmt.Sprintf("\nFailed during `%s`: %s\n", failedStage(result), sanitizeMarkdownCell(runErr.Error())))
	}

	return builder.String()
}

func (r *Runner) printSummary(result orchestrator.Result, runErr error) error {
	if r.out == nil {
		return nil
	}
	renderer := newRenderer(r.out, r.cfg.Output.NoColor)
	_, err := io.WriteString(r.out, renderTerminalSummary(renderer, result, runErr))
	return err
}

func newRenderer(w io.Writer, noColor bool) *lipgloss.Renderer {
	renderer := lipgloss.NewRenderer(w)
	if noColor || os.Getenv("NO_COLOR") != "" {
		renderer.SetColorProfile(termenv.Ascii)
	}
	return renderer
}

func renderTerminalSummary(renderer *lipgloss.Renderer, result orchestrator.Result, runErr error) string {
	header := renderer.NewStyle().Bold(true)
	dim := renderer.NewStyle().Foreground(colorGray)
	failure := renderer.NewStyle().Foreground(colorRed).Bold(true)

	var builder strings.Builder
	repo := result.Context

	switch {
	case len(result.Branches) == 0 && runErr == nil:
		builder.WriteString(dim.Render(fmt.Sprintf("Nothing to split: %s has no commits ahead of %s", repo.CurrentBranch, repo.BaseRef())))
		builder.WriteString("\n")
		return builder.String()
	case len(result.Branches) > 0:
		mode := "independent"
		if result.Dependent {
			mode = "dependent"
		}
		builder.WriteString(header.Render(fmt.Sprintf("%d merge request(s) from %s into %s (%s)", len(result.Branches), repo.CurrentBranch, repo.DefaultBranch, mode)))
		builder.WriteString("\n")
	}

	branchWidth := 0
	statusWidth := 0
	for _, b := range result.Branches {
		branchWidth = max(branchWidth, len(b.Branch))
		statusWidth = max(statusWidth, len(b.Status))
	}

	for _, b := range result.Branches {
		status := renderer.NewStyle().Foreground(statusColor(b.Status)).Width(statusWidth).Render(string(b.Status))
		name := renderer.NewStyle().Width(branchWidth).Render(b.Branch)
		builder.WriteString(fmt.Sprintf("  %s  %s  %s %s\n", status, name, dim.Render(b.Commit.ShortSHA()), titleOption(b.Options)))
	}

	if result.Reset {
		builder.WriteString(dim.Render(fmt.Sprintf("Reset %s to %s", repo.CurrentBranch, repo.UpstreamRef())))
		builder.WriteString("\n")
	}

	if runErr != nil {
		builder.WriteString(failure.Render(fmt.Sprintf("Failed during %s: %v", failedStage(result), runErr)))
		builder.WriteString("\n")
	}

	return builder.String()
}

func statusColor(status orchestrator.BranchStatus) lipgloss.Color {
	switch status {
	case orchestrator.BranchStatusPushed:
		return colorGreen
	case orchestrator.BranchStatusDryRun:
		return colorCyan
	default:
		return colorGray
	}
}

func titleOption(options []string) string {
	prefix := mergerequest.OptionTitle + "="
	for _, option := range options {
		if title, ok := strings.CutPrefix(option, prefix); ok {
			return title
		}
	}
	return ""
}

func sanitizeMarkdownCell(value string) string {
	value = strings.ReplaceAll(value, "|", "\\|")
	value = strings.ReplaceAll(value, "\n", "<br>")
	value = strings.TrimSpace(value)
	if value == "" {
		return "-"
	}
	return value
}
