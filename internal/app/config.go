package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"

	"github.com/gl-mr/gl-mr/internal/branch"
	"github.com/gl-mr/gl-mr/internal/mergerequest"
)

const (
	appName = "gl-mr"

	// EnvPrefix prefixes every environment override, e.g. GLMR_GIT or
	// GLMR_BRANCH_PREFIX.
	EnvPrefix = "GLMR"

	defaultGit       = "git"
	defaultPath      = "."
	defaultLogLevel  = "info"
	defaultLogFormat = "text"
)

// ErrInvalidPath is returned when the repository path is missing or not a directory.
var ErrInvalidPath = errors.New("invalid repository path")

// Config captures runtime options layered from defaults, the config file,
// GLMR_* environment variables and command line flags.
type Config struct {
	Path         string             `mapstructure:"path" yaml:"path"`
	Git          string             `mapstructure:"git" yaml:"git"`
	DryRun       bool               `mapstructure:"dry_run" yaml:"dry_run"`
	Dependent    bool               `mapstructure:"dependent" yaml:"dependent"`
	Reset        bool               `mapstructure:"reset" yaml:"reset"`
	SummaryFile  string             `mapstructure:"summary_file" yaml:"summary_file"`
	Branch       BranchConfig       `mapstructure:"branch" yaml:"branch"`
	MergeRequest MergeRequestConfig `mapstructure:"merge_request" yaml:"merge_request"`
	Log          LogConfig          `mapstructure:"log" yaml:"log"`
	Output       OutputConfig       `mapstructure:"output" yaml:"output"`
}

// BranchConfig controls how branch names are derived from commits.
type BranchConfig struct {
	Prefix    string `mapstructure:"prefix" yaml:"prefix"`
	MaxLength int    `mapstructure:"max_length" yaml:"max_length"`
}

// MergeRequestConfig controls the merge request metadata sent as push options.
type MergeRequestConfig struct {
	DraftPrefix string `mapstructure:"draft_prefix" yaml:"draft_prefix"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

type OutputConfig struct {
	NoColor bool `mapstructure:"no_color" yaml:"no_color"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Path: defaultPath,
		Git:  defaultGit,
		Branch: BranchConfig{
			MaxLength: branch.DefaultNaming.MaxLength,
		},
		MergeRequest: MergeRequestConfig{
			DraftPrefix: mergerequest.DefaultDraftPrefix,
		},
		Log: LogConfig{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}
}

// SetDefaults registers every key with its default so that environment
// variables are picked up on Unmarshal.
func SetDefaults(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("path", defaults.Path)
	v.SetDefault("git", defaults.Git)
	v.SetDefault("dry_run", defaults.DryRun)
	v.SetDefault("dependent", defaults.Dependent)
	v.SetDefault("reset", defaults.Reset)
	v.SetDefault("summary_file", defaults.SummaryFile)

	v.SetDefault("branch.prefix", defaults.Branch.Prefix)
	v.SetDefault("branch.max_length", defaults.Branch.MaxLength)

	v.SetDefault("merge_request.draft_prefix", defaults.MergeRequest.DraftPrefix)

	v.SetDefault("log.level", defaults.Log.Level)
	v.SetDefault("log.format", defaults.Log.Format)

	v.SetDefault("output.no_color", defaults.Output.NoColor)
}

// NewViper returns a viper instance with defaults, environment overrides and
// the config file loaded. An explicit configFile must exist; the default
// location is optional.
func NewViper(configFile string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	// GLMR_MERGE_REQUEST_DRAFT_PREFIX for merge_request.draft_prefix
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile == "" {
		configFile = ConfigFile()
		if _, err := os.Stat(configFile); err != nil {
			return v, nil
		}
	}

	v.SetConfigFile(configFile)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", configFile, err)
	}

	return v, nil
}

// Load unmarshals v into a Config and validates it.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c *Config) normalize() {
	c.Path = strings.TrimSpace(c.Path)
	if c.Path == "" {
		c.Path = defaultPath
	}
	c.Git = strings.TrimSpace(c.Git)
	if c.Git == "" {
		c.Git = defaultGit
	}
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
	c.SummaryFile = strings.TrimSpace(c.SummaryFile)
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error

	info, err := os.Stat(c.Path)
	switch {
	case err != nil:
		errs = append(errs, fmt.Errorf("%w: %s: %w", ErrInvalidPath, c.Path, err))
	case !info.IsDir():
		errs = append(errs, fmt.Errorf("%w: %s is not a directory", ErrInvalidPath, c.Path))
	}

	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}

	switch c.Log.Format {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unsupported log format %q", c.Log.Format))
	}

	if c.Branch.MaxLength < 0 {
		errs = append(errs, fmt.Errorf("branch.max_length must not be negative, got %d", c.Branch.MaxLength))
	}

	if c.MergeRequest.DraftPrefix != "" && strings.ContainsAny(c.MergeRequest.DraftPrefix, "\r\n") {
		errs = append(errs, fmt.Errorf("merge_request.draft_prefix must be a single line"))
	}

	return errors.Join(errs...)
}

// Naming converts the branch settings into naming options.
func (c Config) Naming() branch.NamingOptions {
	return branch.NamingOptions{
		Prefix:    c.Branch.Prefix,
		MaxLength: c.Branch.MaxLength,
	}
}

// ConfigDir returns the per-user configuration directory.
func ConfigDir() string {
	return filepath.Join(xdg.ConfigHome, appName)
}

// ConfigFile returns the default config file location.
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
