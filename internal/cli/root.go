package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gl-mr/gl-mr/internal/app"
	"github.com/gl-mr/gl-mr/internal/mergerequest"
)

// flagKeys maps command line flags onto configuration keys.
var flagKeys = map[string]string{
	"path":          "path",
	"git":           "git",
	"dry-run":       "dry_run",
	"dependent":     "dependent",
	"reset":         "reset",
	"summary-file":  "summary_file",
	"branch-prefix": "branch.prefix",
	"draft-prefix":  "merge_request.draft_prefix",
	"log-level":     "log.level",
	"log-format":    "log.format",
	"no-color":      "output.no_color",
}

// Execute runs the root command against the process streams.
func Execute(ctx context.Context) error {
	return NewRootCommand(os.Stdout, os.Stderr).ExecuteContext(ctx)
}

// NewRootCommand builds the gl-mr command tree writing to out and errOut.
func NewRootCommand(out, errOut io.Writer) *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "gl-mr",
		Short: "Open one GitLab merge request per commit",
		Long: `gl-mr splits the commits of the current branch that are ahead of the
remote default branch into one branch per commit and pushes each of them
with GitLab push options, so that the server opens a merge request for
every commit.

In dependent mode the branches are stacked: each one holds its commit and
all earlier ones, and every merge request but the last is marked as draft.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig(cmd, configFile)
			if err != nil {
				return err
			}

			runner, err := app.NewRunner(cfg, cmd.OutOrStdout(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			_, err = runner.Run(cmd.Context())
			return err
		},
	}
	cmd.SetOut(out)
	cmd.SetErr(errOut)

	defaults := app.Default()
	flags := cmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "config file (default is $XDG_CONFIG_HOME/gl-mr/config.yaml)")
	flags.StringP("path", "C", defaults.Path, "repository to operate on")
	flags.String("git", defaults.Git, "git binary to execute")
	flags.BoolP("dry-run", "n", false, "print the mutating git commands instead of running them")
	flags.BoolP("dependent", "d", false, "stack the branches so that each merge request builds on the previous one")
	flags.Bool("reset", false, "hard reset the current branch to its configured upstream after every push succeeded")
	flags.String("summary-file", "", "append a markdown summary of the run to this file")
	flags.String("branch-prefix", "", "prefix branch names as <prefix>/<name>")
	flags.String("draft-prefix", mergerequest.DefaultDraftPrefix, "title prefix of draft merge requests in dependent mode")
	flags.String("log-level", defaults.Log.Level, "log level (debug, info, warn, error)")
	flags.String("log-format", defaults.Log.Format, "log format (text, json)")
	flags.Bool("no-color", false, "disable colored output")

	cmd.AddCommand(newConfigCommand(&configFile))

	return cmd
}

// loadConfig layers the bound flags over the environment, the config file
// and the defaults.
func loadConfig(cmd *cobra.Command, configFile string) (app.Config, *viper.Viper, error) {
	v, err := app.NewViper(configFile)
	if err != nil {
		return app.Config{}, nil, err
	}

	for flag, key := range flagKeys {
		f := cmd.Flags().Lookup(flag)
		if f == nil {
			return app.Config{}, nil, fmt.Errorf("flag --%s is not defined", flag)
		}
		if err := v.BindPFlag(key, f); err != nil {
			return app.Config{}, nil, fmt.Errorf("bind flag --%s: %w", flag, err)
		}
	}

	cfg, err := app.Load(v)
	if err != nil {
		return app.Config{}, nil, err
	}
	return cfg, v, nil
}
