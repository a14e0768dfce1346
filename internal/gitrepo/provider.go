// Package gitrepo wraps the version-controlled mirror of the configuration
// source repository: clone-if-absent, fetch plus hard reset otherwise,
// bounded retry on transient network failure, offline fallback to the
// last-known-good local copy, and auth-failure classification.
package gitrepo

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/confsync/confsync/internal/events"
	"github.com/confsync/confsync/internal/logging"
)

// PullOptions pins the pull to a branch, tag or commit. Tag and commit are
// checked out after the branch sync.
type PullOptions struct {
	Branch string
	Tag    string
	Commit string
}

// PullResult describes the outcome of one pull.
type PullResult struct {
	// Commit is the mirror head after the pull.
	Commit string
	// Updated is true iff the head hash changed.
	Updated bool
	// FromCache is true when the network was unreachable and the stale
	// mirror is being served instead.
	FromCache bool
	// ChangedFiles lists paths changed between the old and new head, for
	// observability only. Every sync re-evaluates the full file set.
	ChangedFiles []string
}

// RepoStatus is a snapshot of the local mirror.
type RepoStatus struct {
	Exists bool
	Commit string
	Branch string
}

// Provider manages the local mirror of one repository.
type Provider struct {
	url       string
	branch    string
	localPath string
	retry     RetryPolicy
	bus       *events.Bus
	runner    Runner
}

// New creates a provider for url mirrored at localPath. A nil runner uses
// the git binary.
func New(url, branch, localPath string, retry RetryPolicy, bus *events.Bus, runner Runner) *Provider {
	if branch == "" {
		branch = "main"
	}
	return &Provider{
		url:       url,
		branch:    branch,
		localPath: localPath,
		retry:     retry,
		bus:       bus,
		runner:    runner,
	}
}

// LocalPath returns the mirror directory.
func (p *Provider) LocalPath() string {
	return p.localPath
}

// Pull brings the mirror up to date. Network failures are retried with
// exponential backoff; on exhaustion the provider emits a git:offline event
// and returns the last known local commit with FromCache set, so sync can
// continue against the stale mirror. Auth failures surface as *AuthError
// and are never retried.
func (p *Provider) Pull(ctx context.Context, opts PullOptions) (*PullResult, error) {
	defer logging.Timer("git-pull")()

	branch := opts.Branch
	if branch == "" {
		branch = p.branch
	}

	before, _ := p.head(ctx)

	p.publish(events.GitPullStart, map[string]any{
		"url":    p.url,
		"branch": branch,
	})

	if err := p.syncWithRetry(ctx, branch); err != nil {
		if Classify(err) == ClassNetwork {
			if before == "" {
				// No mirror to fall back to.
				return nil, fmt.Errorf("repository unreachable and no local mirror exists: %w", err)
			}
			logging.Warn("network unreachable, continuing from stale mirror",
				logging.Repo(p.url),
				logging.Err(err),
			)
			p.publish(events.GitOffline, map[string]any{
				"url":    p.url,
				"commit": before,
			})
			return &PullResult{Commit: before, FromCache: true}, nil
		}
		return nil, err
	}

	// Tag or commit pins are applied after the branch sync, so the local
	// branch still tracks the remote tip for the next invocation.
	if ref := pinnedRef(opts); ref != "" {
		if _, err := p.runner.Run(ctx, p.localPath, "checkout", "-f", ref); err != nil {
			return nil, fmt.Errorf("failed to checkout %q: %w", ref, err)
		}
	}

	after, err := p.head(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read mirror head: %w", err)
	}

	result := &PullResult{
		Commit:  after,
		Updated: before != after,
	}
	if result.Updated && before != "" {
		result.ChangedFiles = p.changedFiles(ctx, before, after)
	}

	p.publish(events.GitPullComplete, map[string]any{
		"commit":  after,
		"updated": result.Updated,
	})
	return result, nil
}

// Status reports the current mirror state without touching the network.
func (p *Provider) Status(ctx context.Context) (*RepoStatus, error) {
	if !p.mirrorExists() {
		return &RepoStatus{}, nil
	}

	commit, err := p.head(ctx)
	if err != nil {
		return nil, err
	}
	branchOut, err := p.runner.Run(ctx, p.localPath, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return nil, fmt.Errorf("failed to read mirror branch: %w", err)
	}

	return &RepoStatus{
		Exists: true,
		Commit: commit,
		Branch: strings.TrimSpace(branchOut),
	}, nil
}

// CheckConnectivity reports whether the remote is currently reachable.
func (p *Provider) CheckConnectivity(ctx context.Context) bool {
	_, err := p.runner.Run(ctx, "", "ls-remote", "--heads", p.url)
	return err == nil
}

// syncWithRetry runs the network portion of the pull, retrying only
// network-classified failures.
func (p *Provider) syncWithRetry(ctx context.Context, branch string) error {
	var lastErr error
	for attempt := 0; ; attempt++ {
		lastErr = p.syncBranch(ctx, branch)
		if lastErr == nil {
			return nil
		}

		switch Classify(lastErr) {
		case ClassAuth:
			return &AuthError{URL: p.url, Err: lastErr}
		case ClassNetwork:
			if attempt >= p.retry.MaxRetries {
				return lastErr
			}
			delay := p.retry.Delay(attempt)
			logging.Warn("network failure, retrying",
				logging.Repo(p.url),
				logging.Count(attempt+1),
				logging.Err(lastErr),
			)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		default:
			return lastErr
		}
	}
}

// syncBranch clones the mirror if absent; otherwise fetches the target
// branch and forces the local branch onto the remote tip. The forced
// checkout guarantees the mirror never diverges from upstream regardless of
// prior detached-HEAD states left by tag or commit pins.
func (p *Provider) syncBranch(ctx context.Context, branch string) error {
	if !p.mirrorExists() {
		if err := os.MkdirAll(filepath.Dir(p.localPath), 0o750); err != nil {
			return fmt.Errorf("failed to create mirror parent directory: %w", err)
		}
		_, err := p.runner.Run(ctx, "",
			"clone", "--branch", branch, "--single-branch", p.url, p.localPath)
		return err
	}

	if _, err := p.runner.Run(ctx, p.localPath, "fetch", "origin", branch); err != nil {
		return err
	}
	if _, err := p.runner.Run(ctx, p.localPath, "checkout", "-B", branch, "origin/"+branch); err != nil {
		return err
	}
	if _, err := p.runner.Run(ctx, p.localPath, "reset", "--hard", "origin/"+branch); err != nil {
		return err
	}
	return nil
}

func (p *Provider) head(ctx context.Context) (string, error) {
	if !p.mirrorExists() {
		return "", nil
	}
	out, err := p.runner.Run(ctx, p.localPath, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// changedFiles produces the diff summary between two heads. Failures are
// logged and swallowed: the list is observability only.
func (p *Provider) changedFiles(ctx context.Context, before, after string) []string {
	out, err := p.runner.Run(ctx, p.localPath, "diff", "--name-only", before, after)
	if err != nil {
		logging.Debug("failed to compute changed files", logging.Err(err))
		return nil
	}

	var files []string
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			files = append(files, line)
		}
	}
	return files
}

func (p *Provider) mirrorExists() bool {
	_, err := os.Stat(filepath.Join(p.localPath, ".git"))
	return err == nil
}

func (p *Provider) publish(t events.Type, data map[string]any) {
	if p.bus != nil {
		p.bus.Publish(t, data)
	}
}

func pinnedRef(opts PullOptions) string {
	if opts.Commit != "" {
		return opts.Commit
	}
	return opts.Tag
}
