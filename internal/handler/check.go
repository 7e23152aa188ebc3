// Package handler turns pull request events into commit statuses.
package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	clog "github.com/charmbracelet/log"
	gh "github.com/google/go-github/v60/github"

	"github.com/drewdunne/prsentry/internal/config"
	"github.com/drewdunne/prsentry/internal/event"
	"github.com/drewdunne/prsentry/internal/github"
	"github.com/drewdunne/prsentry/internal/logging"
	"github.com/drewdunne/prsentry/internal/metrics"
	"github.com/drewdunne/prsentry/internal/registry"
)

// GitHub is the part of the access layer a check uses.
type GitHub interface {
	GetPullRequest(ctx context.Context, owner, repo string, number int) (*gh.PullRequest, error)
	SetCommitStatus(ctx context.Context, owner, repo, ref string, status github.Status) error
	SearchPullRequestsWithFiles(ctx context.Context, owner, repo, sha string) ([]github.PullRequestFiles, error)
	PaginatePullRequestFiles(ctx context.Context, owner, repo string, prs []github.FilesCursor) (map[int][]string, error)
	ReadFile(ctx context.Context, owner, repo, path, ref string) ([]byte, error)
}

// Verdict is the outcome of a check.
type Verdict struct {
	State       github.StatusState
	Description string
}

// Checker decides the status of a pull request from its changed files.
type Checker interface {
	Check(ctx context.Context, evt *event.Event, files []string, cfg *config.MergedConfig) (Verdict, error)
}

// CheckHandler reports a commit status for every routed pull request event.
type CheckHandler struct {
	gh            GitHub
	checker       Checker
	serverCfg     *config.Config
	statusContext string
	active        *registry.Registry
	checkLogs     *logging.Writer
	log           *clog.Logger
}

// Option configures a CheckHandler.
type Option func(*CheckHandler)

// WithRegistry tracks running checks in reg. A check whose key is already
// running is skipped.
func WithRegistry(reg *registry.Registry) Option {
	return func(h *CheckHandler) {
		h.active = reg
	}
}

// WithCheckLogs records every check in its own log file under w.
func WithCheckLogs(w *logging.Writer) Option {
	return func(h *CheckHandler) {
		h.checkLogs = w
	}
}

// NewCheckHandler creates a new check handler.
func NewCheckHandler(client GitHub, checker Checker, serverCfg *config.Config, opts ...Option) *CheckHandler {
	statusContext := serverCfg.GitHub.StatusContext
	if statusContext == "" {
		statusContext = config.DefaultStatusContext
	}
	h := &CheckHandler{
		gh:            client,
		checker:       checker,
		serverCfg:     serverCfg,
		statusContext: statusContext,
		log:           clog.Default().WithPrefix("handler"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle checks the pull request of evt and reports the verdict on its head
// commit. Events for a head that has since moved on are dropped.
func (h *CheckHandler) Handle(ctx context.Context, evt *event.Event) error {
	log := h.log.With("repo", evt.RepoOwner+"/"+evt.RepoName, "pr", evt.PRNumber, "sha", evt.HeadSHA)

	if h.active != nil {
		done, ok := h.active.Begin(evt.Key(), evt.DeliveryID)
		if !ok {
			log.Info("Skipping check, already running")
			return nil
		}
		defer done()
	}

	checkLog, closeLog := h.openCheckLog(evt)
	defer closeLog()
	checkLog.Info("Check started", "event", evt.Type, "actor", evt.Actor)

	pr, err := h.gh.GetPullRequest(ctx, evt.RepoOwner, evt.RepoName, evt.PRNumber)
	if err != nil {
		checkLog.Error("Fetching pull request failed", "error", err)
		return err
	}
	if head := pr.GetHead().GetSHA(); head != evt.HeadSHA {
		log.Info("Skipping check, pull request head moved", "head", head)
		checkLog.Info("Skipped, head moved", "head", head)
		return nil
	}

	repoCfg, err := config.LoadRepoConfig(ctx, repoFiles{h.gh}, evt.RepoOwner, evt.RepoName, evt.HeadSHA)
	if err != nil {
		checkLog.Error("Loading repository config failed", "error", err)
		return err
	}
	merged := config.MergeConfigs(h.serverCfg, repoCfg)
	if !merged.Enabled {
		log.Info("Checks disabled by repository config")
		checkLog.Info("Skipped, disabled by repository config")
		return nil
	}

	if err := h.setStatus(ctx, evt, github.StatusPending, "Checking changed files"); err != nil {
		checkLog.Error("Setting pending status failed", "error", err)
		return err
	}

	files, stale, err := h.changedFiles(ctx, evt)
	if err != nil {
		return h.fail(ctx, evt, checkLog, err)
	}
	if stale {
		log.Info("Skipping check, pull request moved past commit")
		checkLog.Info("Skipped, pull request moved past commit")
		return nil
	}
	checkLog.Debug("Changed files", "count", len(files), "files", files)

	verdict, err := h.checker.Check(ctx, evt, files, merged)
	if err != nil {
		return h.fail(ctx, evt, checkLog, err)
	}

	if err := h.setStatus(ctx, evt, verdict.State, verdict.Description); err != nil {
		metrics.CheckFailed()
		checkLog.Error("Setting final status failed", "error", err)
		return err
	}
	metrics.CheckCompleted()
	log.Info("Check completed", "state", verdict.State, "files", len(files))
	checkLog.Info("Check completed", "state", verdict.State, "description", verdict.Description)
	return nil
}

// openCheckLog returns the log recording this check. Without a writer, or
// when the file cannot be created, the log is discarded.
func (h *CheckHandler) openCheckLog(evt *event.Event) (*clog.Logger, func()) {
	if h.checkLogs == nil {
		return clog.New(io.Discard), func() {}
	}
	ts := evt.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	logger, closer, err := h.checkLogs.Open(logging.CheckEntry{
		RepoOwner:  evt.RepoOwner,
		RepoName:   evt.RepoName,
		PRNumber:   evt.PRNumber,
		HeadSHA:    evt.HeadSHA,
		EventType:  string(evt.Type),
		DeliveryID: evt.DeliveryID,
		Timestamp:  ts,
	})
	if err != nil {
		h.log.Warn("Failed to open check log", "error", err)
		return clog.New(io.Discard), func() {}
	}
	return logger, func() { closer.Close() }
}

// changedFiles finds the files of the event's pull request through the commit
// search. The search index lags behind pushes, so a pull request missing from
// the results has its files paginated directly from the first page.
func (h *CheckHandler) changedFiles(ctx context.Context, evt *event.Event) (files []string, stale bool, err error) {
	results, err := h.gh.SearchPullRequestsWithFiles(ctx, evt.RepoOwner, evt.RepoName, evt.HeadSHA)
	if err != nil {
		return nil, false, err
	}
	for _, pr := range results {
		if pr.Number != evt.PRNumber {
			continue
		}
		return pr.Files, pr.Stale(), nil
	}

	h.log.Debug("Pull request not indexed yet, paginating files", "pr", evt.PRNumber, "sha", evt.HeadSHA)
	byNumber, err := h.gh.PaginatePullRequestFiles(ctx, evt.RepoOwner, evt.RepoName, []github.FilesCursor{
		{Number: evt.PRNumber, HasNextPage: true},
	})
	if err != nil {
		return nil, false, err
	}
	files = byNumber[evt.PRNumber]
	if files == nil {
		files = []string{}
	}
	return files, false, nil
}

func (h *CheckHandler) fail(ctx context.Context, evt *event.Event, checkLog *clog.Logger, cause error) error {
	metrics.CheckFailed()
	checkLog.Error("Check failed", "error", cause)
	if err := h.setStatus(ctx, evt, github.StatusError, "Check could not complete"); err != nil {
		h.log.Error("Failed to report check error", "pr", evt.PRNumber, "error", err)
	}
	return cause
}

func (h *CheckHandler) setStatus(ctx context.Context, evt *event.Event, state github.StatusState, description string) error {
	return h.gh.SetCommitStatus(ctx, evt.RepoOwner, evt.RepoName, evt.HeadSHA, github.Status{
		State:       state,
		Context:     h.statusContext,
		Description: description,
	})
}

// repoFiles reads repository config files through the access layer.
type repoFiles struct {
	gh GitHub
}

func (r repoFiles) ReadFile(ctx context.Context, owner, repo, path, ref string) ([]byte, error) {
	data, err := r.gh.ReadFile(ctx, owner, repo, path, ref)
	if errors.Is(err, github.ErrFileNotFound) {
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, path)
	}
	return data, err
}
