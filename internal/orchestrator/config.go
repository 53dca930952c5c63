package orchestrator

import "github.com/gl-mr/gl-mr/internal/branch"

// Config captures the runtime controls the orchestrator needs.
type Config struct {
	// Dependent stacks the branches (branch k holds commits 1..k) instead of
	// cherry-picking each commit onto its own branch.
	Dependent bool

	// Reset hard-resets the original branch to its configured upstream after
	// every push succeeded. A branch without an upstream fails before any
	// branch is created.
	Reset       bool
	DryRun      bool
	DraftPrefix string
	Naming      branch.NamingOptions
}
