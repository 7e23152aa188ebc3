package config

import (
	"context"
	"errors"
	"testing"
)

type mockFileReader struct {
	content string
	err     error
	path    string
	ref     string
}

func (m *mockFileReader) ReadFile(ctx context.Context, owner, repo, path, ref string) ([]byte, error) {
	m.path, m.ref = path, ref
	if m.err != nil {
		return nil, m.err
	}
	return []byte(m.content), nil
}

func TestLoadRepoConfig(t *testing.T) {
	reader := &mockFileReader{
		content: `
max_files: 50
ignore:
  - "vendor/*"
  - "*.lock"
`,
	}

	cfg, err := LoadRepoConfig(context.Background(), reader, "owner", "repo", "abc123")
	if err != nil {
		t.Fatalf("LoadRepoConfig() error = %v", err)
	}

	if reader.path != RepoConfigPath || reader.ref != "abc123" {
		t.Errorf("read %q at %q, want %q at %q", reader.path, reader.ref, RepoConfigPath, "abc123")
	}
	if cfg.Disabled {
		t.Error("Disabled should be false")
	}
	if cfg.MaxFiles != 50 {
		t.Errorf("MaxFiles = %d, want %d", cfg.MaxFiles, 50)
	}
	if len(cfg.Ignore) != 2 || cfg.Ignore[1] != "*.lock" {
		t.Errorf("Ignore = %v", cfg.Ignore)
	}
}

func TestLoadRepoConfig_NotFound(t *testing.T) {
	reader := &mockFileReader{
		err: ErrConfigNotFound,
	}

	cfg, err := LoadRepoConfig(context.Background(), reader, "owner", "repo", "main")
	if err != nil {
		t.Fatalf("LoadRepoConfig() should not error for missing config, got: %v", err)
	}

	// Should return empty config
	if cfg == nil {
		t.Error("Should return empty config, not nil")
	}
}

func TestLoadRepoConfig_ReadError(t *testing.T) {
	boom := errors.New("boom")
	_, err := LoadRepoConfig(context.Background(), &mockFileReader{err: boom}, "owner", "repo", "main")
	if !errors.Is(err, boom) {
		t.Errorf("LoadRepoConfig() error = %v, want %v", err, boom)
	}
}

func TestLoadRepoConfig_Invalid(t *testing.T) {
	for _, content := range []string{"max_files: [1", "max_files: -3"} {
		_, err := LoadRepoConfig(context.Background(), &mockFileReader{content: content}, "owner", "repo", "main")
		if err == nil {
			t.Errorf("LoadRepoConfig(%q) expected error, got nil", content)
		}
	}
}
