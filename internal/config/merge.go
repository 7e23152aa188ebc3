package config

// MergedConfig is the check configuration in effect for one repository.
type MergedConfig struct {
	Enabled  bool
	MaxFiles int
	Ignore   []string
}

// MergeConfigs merges server config with repo config.
// Repo config values take precedence over server defaults.
func MergeConfigs(server *Config, repo *RepoConfig) *MergedConfig {
	merged := &MergedConfig{
		Enabled:  !repo.Disabled,
		MaxFiles: server.Checks.MaxFiles,
	}

	if repo.MaxFiles > 0 {
		merged.MaxFiles = repo.MaxFiles
	}
	merged.Ignore = append(merged.Ignore, repo.Ignore...)

	return merged
}
