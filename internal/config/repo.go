package config

import (
	"context"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// RepoConfigPath is where a repository keeps its prsentry overrides.
const RepoConfigPath = ".prsentry.yaml"

// ErrConfigNotFound indicates the repo config file doesn't exist.
var ErrConfigNotFound = errors.New("config not found")

// RepoConfig represents repository-level configuration.
type RepoConfig struct {
	Disabled bool `yaml:"disabled"`
	// MaxFiles overrides checks.max_files when non-zero.
	MaxFiles int `yaml:"max_files"`
	// Ignore lists path patterns (path.Match syntax) left out of the check.
	Ignore []string `yaml:"ignore"`
}

// FileReader reads files from a repository.
type FileReader interface {
	ReadFile(ctx context.Context, owner, repo, path, ref string) ([]byte, error)
}

// LoadRepoConfig loads the repo config from .prsentry.yaml at ref.
func LoadRepoConfig(ctx context.Context, reader FileReader, owner, repo, ref string) (*RepoConfig, error) {
	data, err := reader.ReadFile(ctx, owner, repo, RepoConfigPath, ref)
	if errors.Is(err, ErrConfigNotFound) {
		return &RepoConfig{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading repo config: %w", err)
	}

	var cfg RepoConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing repo config: %w", err)
	}
	if cfg.MaxFiles < 0 {
		return nil, fmt.Errorf("parsing repo config: max_files must not be negative")
	}

	return &cfg, nil
}
