package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	clog "github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"
)

// DefaultStatusContext is the commit status context prsentry reports under.
const DefaultStatusContext = "prsentry"

// ErrMissingToken indicates no GitHub token was configured.
var ErrMissingToken = errors.New("github.token is required")

// Config represents the server configuration.
type Config struct {
	Server  ServerConfig       `yaml:"server"`
	Logging LoggingConfig      `yaml:"logging"`
	GitHub  GitHubConfig       `yaml:"github"`
	Events  ServerEventsConfig `yaml:"events"`
	Checks  ChecksConfig       `yaml:"checks"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr returns the host:port the server listens on.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoggingConfig holds logging settings. An empty Dir disables per-check logs.
type LoggingConfig struct {
	Level         string `yaml:"level"`
	Dir           string `yaml:"dir"`
	RetentionDays int    `yaml:"retention_days"`
}

// GitHubConfig holds GitHub API settings. Empty URLs select github.com.
type GitHubConfig struct {
	Token         string `yaml:"token"`
	WebhookSecret string `yaml:"webhook_secret"`
	APIURL        string `yaml:"api_url"`
	GraphQLURL    string `yaml:"graphql_url"`
	StatusContext string `yaml:"status_context"`
}

// ServerEventsConfig controls which pull request actions trigger a check.
type ServerEventsConfig struct {
	PullRequestOpened      bool `yaml:"pull_request_opened"`
	PullRequestSynchronize bool `yaml:"pull_request_synchronize"`
	PullRequestReopened    bool `yaml:"pull_request_reopened"`
	DebounceSeconds        int  `yaml:"debounce_seconds"`
}

// ChecksConfig holds server-wide defaults for the file check.
type ChecksConfig struct {
	// MaxFiles fails a pull request touching more files. Zero means no limit.
	MaxFiles int `yaml:"max_files"`
}

// envVarPattern matches ${VAR_NAME} patterns.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 7000,
		},
		Logging: LoggingConfig{
			Level:         "info",
			RetentionDays: 30,
		},
		GitHub: GitHubConfig{
			StatusContext: DefaultStatusContext,
		},
		Events: ServerEventsConfig{
			PullRequestOpened:      true,
			PullRequestSynchronize: true,
			PullRequestReopened:    true,
			DebounceSeconds:        10,
		},
	}
}

// Load reads and parses the config file at the given path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Substitute environment variables
	data = envVarPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		varName := envVarPattern.FindSubmatch(match)[1]
		return []byte(os.Getenv(string(varName)))
	})

	// Start with defaults
	cfg := DefaultConfig()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return cfg, nil
}

// Validate reports the first setting the server cannot run with.
func (c *Config) Validate() error {
	if c.GitHub.Token == "" {
		return ErrMissingToken
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Events.DebounceSeconds < 0 {
		return fmt.Errorf("events.debounce_seconds must not be negative")
	}
	if c.Logging.Dir != "" && c.Logging.RetentionDays <= 0 {
		return fmt.Errorf("logging.retention_days must be positive")
	}
	if c.Checks.MaxFiles < 0 {
		return fmt.Errorf("checks.max_files must not be negative")
	}
	return nil
}

// LogLevel parses logging.level. An empty level is info.
func (c *Config) LogLevel() (clog.Level, error) {
	if c.Logging.Level == "" {
		return clog.InfoLevel, nil
	}
	level, err := clog.ParseLevel(c.Logging.Level)
	if err != nil {
		return 0, fmt.Errorf("logging.level: %w", err)
	}
	return level, nil
}
