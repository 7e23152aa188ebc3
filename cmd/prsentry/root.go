package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	clog "github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/drewdunne/prsentry/internal/config"
	"github.com/drewdunne/prsentry/internal/github"
	"github.com/drewdunne/prsentry/internal/ratelimit"
)

// version is set at build time via ldflags.
var version = "0.1.0"

var (
	configPath string
	envFile    string
)

var rootCmd = &cobra.Command{
	Use:          "prsentry",
	Short:        "Commit status checks for GitHub pull requests",
	Long:         `prsentry receives GitHub pull request webhooks and reports a commit status based on the files each pull request changes.`,
	Version:      version,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		loadEnv()
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Path to .env file (optional)")
}

// loadEnv loads the .env file if specified or one of the default locations.
func loadEnv() {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			clog.Warn("Could not load env file", "path", envFile, "error", err)
		}
		return
	}
	godotenv.Load(".env")
	godotenv.Load("/etc/prsentry/prsentry.env")
}

// loadConfig reads the config file. When the default file is absent the
// defaults are used, with the token taken from GITHUB_TOKEN.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("config") {
		cfg = config.DefaultConfig()
		cfg.GitHub.Token = os.Getenv("GITHUB_TOKEN")
		err = nil
	}
	if err != nil {
		return nil, err
	}

	level, err := cfg.LogLevel()
	if err != nil {
		return nil, err
	}
	clog.SetLevel(level)
	return cfg, nil
}

// newClient builds the GitHub client described by cfg.
func newClient(cfg *config.Config, tracker *ratelimit.Tracker) (*github.Client, error) {
	opts := []github.Option{
		github.WithTracker(tracker),
		github.WithLogger(clog.Default().WithPrefix("github")),
	}
	if cfg.GitHub.APIURL != "" {
		opts = append(opts, github.WithBaseURL(cfg.GitHub.APIURL))
	}
	if cfg.GitHub.GraphQLURL != "" {
		opts = append(opts, github.WithGraphQLURL(cfg.GitHub.GraphQLURL))
	}
	return github.New(cfg.GitHub.Token, opts...)
}

// clientFromFlags loads the config and returns a client for one-off commands.
func clientFromFlags(cmd *cobra.Command) (*github.Client, func(), error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	tracker := ratelimit.NewTracker(ratelimit.WithLogger(clog.Default().WithPrefix("ratelimit")))
	client, err := newClient(cfg, tracker)
	if err != nil {
		tracker.Stop()
		return nil, nil, err
	}
	return client, tracker.Stop, nil
}

// splitRepo parses an OWNER/REPO argument.
func splitRepo(arg string) (owner, repo string, err error) {
	owner, repo, ok := strings.Cut(arg, "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return "", "", fmt.Errorf("invalid repository %q, want OWNER/REPO", arg)
	}
	return owner, repo, nil
}
