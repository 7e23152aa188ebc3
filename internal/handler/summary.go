package handler

import (
	"context"
	"fmt"
	"path"

	"github.com/drewdunne/prsentry/internal/config"
	"github.com/drewdunne/prsentry/internal/event"
	"github.com/drewdunne/prsentry/internal/github"
	"github.com/drewdunne/prsentry/internal/lca"
)

// SummaryChecker passes pull requests that change at least one file and no
// more than the configured limit. Files matching an ignore pattern, or any of
// its parent directories, are not counted. A passing description names the
// directory the counted files share.
type SummaryChecker struct{}

// Check implements Checker.
func (SummaryChecker) Check(_ context.Context, _ *event.Event, files []string, cfg *config.MergedConfig) (Verdict, error) {
	var kept []string
	for _, f := range files {
		ignored, err := matchesAny(f, cfg.Ignore)
		if err != nil {
			return Verdict{}, err
		}
		if !ignored {
			kept = append(kept, f)
		}
	}
	counted := len(kept)

	switch {
	case counted == 0:
		return Verdict{State: github.StatusFailure, Description: "No changed files to check"}, nil
	case cfg.MaxFiles > 0 && counted > cfg.MaxFiles:
		return Verdict{
			State:       github.StatusFailure,
			Description: fmt.Sprintf("%d files changed, limit is %d", counted, cfg.MaxFiles),
		}, nil
	default:
		desc := fmt.Sprintf("%d files changed", counted)
		if dir := lca.CommonDir(kept); dir != "." {
			desc += " in " + dir
		}
		return Verdict{State: github.StatusSuccess, Description: desc}, nil
	}
}

func matchesAny(file string, patterns []string) (bool, error) {
	for _, pattern := range patterns {
		for p := file; p != "." && p != "/"; p = path.Dir(p) {
			ok, err := path.Match(pattern, p)
			if err != nil {
				return false, fmt.Errorf("ignore pattern %q: %w", pattern, err)
			}
			if ok {
				return true, nil
			}
		}
	}
	return false, nil
}
