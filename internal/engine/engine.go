// Package engine implements the sync orchestrator: it composes the config
// resolver, source repository provider, adapter registry, cross-process
// lock, atomic writer and state store into the sync, preview, status,
// detect, diff and validate operations.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/confsync/confsync/internal/adapter"
	"github.com/confsync/confsync/internal/config"
	"github.com/confsync/confsync/internal/events"
	"github.com/confsync/confsync/internal/fsutil"
	"github.com/confsync/confsync/internal/gitrepo"
	"github.com/confsync/confsync/internal/lockfile"
	"github.com/confsync/confsync/internal/logging"
	"github.com/confsync/confsync/internal/state"
	"github.com/confsync/confsync/internal/util"
)

// ErrNoRepository is the fatal precondition error returned when no
// repository URL is configured. It is surfaced before any lock or network
// activity.
var ErrNoRepository = errors.New("repository URL is not configured; set repository.url in settings or CONFSYNC_REPO_URL")

// DefaultLockTimeout bounds how long a sync waits for the cross-process
// lock before failing with a retryable error.
const DefaultLockTimeout = 30 * time.Second

// SourceProvider is the repository contract the engine pulls from. The git
// implementation lives in internal/gitrepo; tests substitute fakes.
type SourceProvider interface {
	Pull(ctx context.Context, opts gitrepo.PullOptions) (*gitrepo.PullResult, error)
	Status(ctx context.Context) (*gitrepo.RepoStatus, error)
	CheckConnectivity(ctx context.Context) bool
	LocalPath() string
}

// ProviderFactory builds a provider for a resolved configuration. The
// factory runs on every operation so repository or mirror changes from a
// config reload take effect immediately.
type ProviderFactory func(cfg *config.Resolved, bus *events.Bus) SourceProvider

// Config wires an Engine's collaborators. Zero fields get production
// defaults.
type Config struct {
	Resolver    *config.Resolver
	Registry    *adapter.Registry
	Bus         *events.Bus
	LockPath    string
	StatePath   string
	LockTimeout time.Duration
	Provider    ProviderFactory
}

// Engine is the sync orchestrator. It owns one SyncReport for the duration
// of each call; all operations are sequential per tool and per scope so
// error aggregation and event ordering are deterministic.
type Engine struct {
	resolver    *config.Resolver
	registry    *adapter.Registry
	bus         *events.Bus
	lock        *lockfile.Lock
	writer      *fsutil.AtomicWriter
	store       *state.Store
	providerFor ProviderFactory
	lockTimeout time.Duration

	cfg *config.Resolved
}

// New creates an engine.
func New(c Config) *Engine {
	if c.Resolver == nil {
		c.Resolver = config.NewResolver("")
	}
	if c.Registry == nil {
		c.Registry = adapter.NewRegistry()
		adapter.RegisterBuiltins(c.Registry)
	}
	if c.Bus == nil {
		c.Bus = events.NewBus()
	}
	if c.LockPath == "" {
		c.LockPath = util.LockPath()
	}
	if c.StatePath == "" {
		c.StatePath = util.StatePath()
	}
	if c.LockTimeout <= 0 {
		c.LockTimeout = DefaultLockTimeout
	}
	if c.Provider == nil {
		c.Provider = defaultProvider
	}

	return &Engine{
		resolver:    c.Resolver,
		registry:    c.Registry,
		bus:         c.Bus,
		lock:        lockfile.New(c.LockPath, 0),
		writer:      fsutil.NewAtomicWriter(),
		store:       state.NewStore(c.StatePath),
		providerFor: c.Provider,
		lockTimeout: c.LockTimeout,
	}
}

// defaultProvider builds the subprocess git provider.
func defaultProvider(cfg *config.Resolved, bus *events.Bus) SourceProvider {
	repo := cfg.Settings.Repository
	runner := gitrepo.NewShellRunner(repo.URL, repo.Auth, 0)
	return gitrepo.New(repo.URL, repo.Branch, cfg.RepoLocalPath, gitrepo.DefaultRetryPolicy(), bus, runner)
}

// Bus exposes the event stream for presentation layers.
func (e *Engine) Bus() *events.Bus {
	return e.bus
}

// RegisterAdapter adds or replaces a tool adapter.
func (e *Engine) RegisterAdapter(a adapter.Adapter) {
	e.registry.Register(a)
}

// ReloadConfig re-resolves configuration after external settings edits and
// replaces the engine's view wholesale.
func (e *Engine) ReloadConfig() error {
	projectPath := ""
	if e.cfg != nil {
		projectPath = e.cfg.ProjectPath
	}
	cfg, err := e.resolver.Resolve(projectPath)
	if err != nil {
		return err
	}
	e.cfg = cfg
	return nil
}

// ApplySettings persists a partial settings update and reloads.
func (e *Engine) ApplySettings(patch *config.Patch) error {
	if err := e.resolver.UpdateSettings(patch); err != nil {
		return err
	}
	return e.ReloadConfig()
}

// Sync pulls the source repository and deploys mapped files for every
// effective tool. Recoverable failures are accumulated into the report;
// only precondition, lock and repository-fatal failures return an error.
func (e *Engine) Sync(ctx context.Context, opts Options) (*SyncReport, error) {
	defer logging.Timer("sync")()

	cfg, err := e.resolveFor(opts)
	if err != nil {
		return nil, err
	}
	if cfg.Settings.Repository.URL == "" {
		return nil, ErrNoRepository
	}

	tools := e.effectiveTools(cfg, opts.Tools)

	report := NewSyncReport(opts.DryRun)
	e.bus.Publish(events.SyncStart, map[string]any{
		"repo":    cfg.Settings.Repository.URL,
		"dry_run": opts.DryRun,
		"tools":   len(tools),
	})

	if err := e.lock.Acquire(e.lockTimeout); err != nil {
		e.bus.Publish(events.SyncError, map[string]any{"error": err.Error()})
		return nil, err
	}
	defer func() {
		e.lock.Release()
		e.bus.Publish(events.LockReleased, nil)
	}()
	e.bus.Publish(events.LockAcquired, map[string]any{"path": e.lock.Path()})

	provider := e.providerFor(cfg, e.bus)
	pull, err := provider.Pull(ctx, gitrepo.PullOptions{
		Branch: opts.Branch,
		Tag:    opts.Tag,
		Commit: opts.Commit,
	})
	if err != nil {
		e.bus.Publish(events.SyncError, map[string]any{"error": err.Error()})
		return nil, err
	}
	report.Commit = pull.Commit
	report.FromCache = pull.FromCache

	dctx := e.deployContext(cfg, provider.LocalPath(), opts)
	synced := make(map[string]time.Time)

	for _, toolID := range tools {
		a, ok := e.registry.Get(toolID)
		if !ok {
			report.AddError(SyncError{Tool: toolID, Err: fmt.Errorf("unknown tool %q", toolID)})
			report.Results = append(report.Results, ToolSyncResult{
				Tool:   toolID,
				Status: StatusFailed,
				Reason: "unknown tool",
			})
			continue
		}

		result := e.syncTool(a, dctx, opts, report)
		report.Results = append(report.Results, result)
		if result.Status == StatusSuccess && result.FilesDeployed > 0 {
			synced[toolID] = time.Now()
		}
	}

	report.Finalize()

	// State persistence is reporting-only and must never fail the sync.
	if !opts.DryRun {
		globalSync := time.Time{}
		if report.Success {
			globalSync = time.Now()
		}
		if err := e.store.Record(synced, globalSync); err != nil {
			logging.Warn("failed to persist sync state", logging.Err(err))
		}
	}

	e.bus.Publish(events.SyncComplete, map[string]any{
		"success":     report.Success,
		"total_files": report.TotalFiles,
		"errors":      len(report.Errors),
	})
	return report, nil
}

// syncTool runs detect, map, validate and deploy for one tool, aggregating
// counts and error presence into the final per-tool status.
func (e *Engine) syncTool(a adapter.Adapter, dctx adapter.DeployContext, opts Options, report *SyncReport) ToolSyncResult {
	toolID := a.ID()
	e.bus.Publish(events.ToolDeployStart, map[string]any{"tool": toolID})

	det := safeDetect(a)
	if !det.Installed {
		e.bus.Publish(events.ToolDeploySkip, map[string]any{
			"tool":   toolID,
			"reason": det.Reason,
		})
		return ToolSyncResult{Tool: toolID, Status: StatusSkipped, Reason: det.Reason}
	}

	var deployed, skipped, toolErrors int
	hadMappings := false

	for _, scope := range opts.Scope.scopes() {
		mappings, err := a.PathMappings(scope, dctx)
		if err != nil {
			toolErrors++
			report.AddError(SyncError{Tool: toolID, Recoverable: true, Err: err})
			e.bus.Publish(events.ToolDeployError, map[string]any{
				"tool":  toolID,
				"scope": string(scope),
				"error": err.Error(),
			})
			continue
		}
		if len(mappings) == 0 {
			continue
		}
		hadMappings = true

		mappings, invalid := e.validateMappings(a, mappings)
		toolErrors += len(invalid)
		for _, inv := range invalid {
			report.AddError(SyncError{
				Tool:        toolID,
				Path:        inv.Path,
				Recoverable: true,
				Err:         errors.New(inv.Reason),
			})
		}

		// Files preserved by the skip policy are conflicts, not errors.
		for _, m := range mappings {
			if m.Action == adapter.ActionSkip {
				e.bus.Publish(events.ConflictDetected, map[string]any{
					"tool":   toolID,
					"path":   m.TargetPath,
					"source": m.SourcePath,
				})
			}
		}

		if opts.DryRun {
			for _, m := range mappings {
				if m.Action == adapter.ActionSkip {
					skipped++
				} else {
					deployed++
				}
			}
			continue
		}

		res := a.Deploy(mappings, e.writer)
		deployed += res.Deployed
		skipped += res.Skipped
		toolErrors += len(res.Errors)
		for _, fe := range res.Errors {
			report.AddError(SyncError{Tool: toolID, Path: fe.Path, Recoverable: true, Err: fe.Err})
			e.bus.Publish(events.ToolDeployError, map[string]any{
				"tool":  toolID,
				"path":  fe.Path,
				"error": fe.Err.Error(),
			})
		}
	}

	if !hadMappings && toolErrors == 0 {
		reason := "no files mapped for the requested scope"
		e.bus.Publish(events.ToolDeploySkip, map[string]any{
			"tool":   toolID,
			"reason": reason,
		})
		return ToolSyncResult{Tool: toolID, Status: StatusSkipped, Reason: reason}
	}

	result := ToolSyncResult{
		Tool:          toolID,
		Status:        toolStatus(deployed, toolErrors),
		FilesDeployed: deployed,
		FilesSkipped:  skipped,
	}
	e.bus.Publish(events.ToolDeployComplete, map[string]any{
		"tool":     toolID,
		"status":   string(result.Status),
		"deployed": deployed,
		"skipped":  skipped,
	})
	return result
}

// validateMappings strips sources that fail adapter validation, emitting a
// validation event per rejected file.
func (e *Engine) validateMappings(a adapter.Adapter, mappings []adapter.PathMapping) ([]adapter.PathMapping, []adapter.InvalidFile) {
	sources := make([]string, 0, len(mappings))
	for _, m := range mappings {
		sources = append(sources, m.SourcePath)
	}

	vr := a.Validate(sources)
	if len(vr.Invalid) == 0 {
		return mappings, nil
	}

	rejected := make(map[string]bool, len(vr.Invalid))
	for _, inv := range vr.Invalid {
		rejected[inv.Path] = true
		e.bus.Publish(events.ToolValidateError, map[string]any{
			"tool":   a.ID(),
			"path":   inv.Path,
			"reason": inv.Reason,
		})
	}

	kept := mappings[:0]
	for _, m := range mappings {
		if !rejected[m.SourcePath] {
			kept = append(kept, m)
		}
	}
	return kept, vr.Invalid
}

// Preview computes the planned operations for every effective tool without
// pulling or writing anything.
func (e *Engine) Preview(ctx context.Context, opts Options) ([]ToolPreview, error) {
	cfg, err := e.resolveFor(opts)
	if err != nil {
		return nil, err
	}

	provider := e.providerFor(cfg, e.bus)
	dctx := e.deployContext(cfg, provider.LocalPath(), opts)

	var previews []ToolPreview
	for _, toolID := range e.effectiveTools(cfg, opts.Tools) {
		a, ok := e.registry.Get(toolID)
		if !ok {
			continue
		}
		det := safeDetect(a)
		preview := ToolPreview{Tool: toolID, Installed: det.Installed, Reason: det.Reason}
		if det.Installed {
			for _, scope := range opts.Scope.scopes() {
				mappings, err := a.PathMappings(scope, dctx)
				if err != nil {
					return nil, fmt.Errorf("failed to map %s: %w", toolID, err)
				}
				preview.Items = append(preview.Items, a.Preview(mappings)...)
			}
		}
		previews = append(previews, preview)
	}
	return previews, nil
}

// DetectTools probes installation for every registered tool. A probe
// failure becomes a non-installed entry rather than aborting the report.
func (e *Engine) DetectTools() []ToolDetection {
	detections := make([]ToolDetection, 0, e.registry.Len())
	for _, a := range e.registry.All() {
		det := safeDetect(a)
		detections = append(detections, ToolDetection{
			Tool:   a.ID(),
			Name:   a.Name(),
			Result: det,
		})
	}
	return detections
}

// Status combines repository state, per-tool detection and last-sync times.
func (e *Engine) Status(ctx context.Context, opts Options) (*StatusReport, error) {
	cfg, err := e.resolveFor(opts)
	if err != nil {
		return nil, err
	}

	report := &StatusReport{
		RepositoryURL:  cfg.Settings.Repository.URL,
		LastGlobalSync: e.store.Load().LastGlobalSync,
	}
	if cfg.Profile != nil {
		report.Profile = cfg.Profile.Profile
	}

	if cfg.Settings.Repository.URL != "" {
		provider := e.providerFor(cfg, e.bus)
		repoStatus, err := provider.Status(ctx)
		if err != nil {
			logging.Warn("failed to read mirror status", logging.Err(err))
		} else {
			report.Repo = repoStatus
		}
	}

	for _, det := range e.DetectTools() {
		report.Tools = append(report.Tools, ToolStatusEntry{
			ToolDetection: det,
			LastSync:      e.store.LastSync(det.Tool),
		})
	}
	return report, nil
}

// Validate runs adapter validation over every mapped source file without
// deploying anything.
func (e *Engine) Validate(ctx context.Context, opts Options) ([]ToolValidation, error) {
	cfg, err := e.resolveFor(opts)
	if err != nil {
		return nil, err
	}

	provider := e.providerFor(cfg, e.bus)
	dctx := e.deployContext(cfg, provider.LocalPath(), opts)

	var validations []ToolValidation
	for _, toolID := range e.effectiveTools(cfg, opts.Tools) {
		a, ok := e.registry.Get(toolID)
		if !ok {
			continue
		}
		var sources []string
		for _, scope := range opts.Scope.scopes() {
			mappings, err := a.PathMappings(scope, dctx)
			if err != nil {
				return nil, fmt.Errorf("failed to map %s: %w", toolID, err)
			}
			for _, m := range mappings {
				sources = append(sources, m.SourcePath)
			}
		}
		validations = append(validations, ToolValidation{
			Tool:   toolID,
			Result: a.Validate(sources),
		})
	}
	return validations, nil
}

// resolveFor resolves the effective configuration for one operation and
// replaces the engine's cached view wholesale.
func (e *Engine) resolveFor(opts Options) (*config.Resolved, error) {
	projectPath := opts.ProjectPath
	if projectPath == "" {
		if cwd, err := os.Getwd(); err == nil {
			projectPath = cwd
		}
	}
	cfg, err := e.resolver.Resolve(projectPath)
	if err != nil {
		return nil, err
	}
	e.cfg = cfg
	return cfg, nil
}

// effectiveTools resolves the tool list: explicit request, then configured
// effective tools, then every registered adapter.
func (e *Engine) effectiveTools(cfg *config.Resolved, requested []string) []string {
	if len(requested) > 0 {
		return requested
	}
	if len(cfg.EffectiveTools) > 0 {
		return cfg.EffectiveTools
	}
	return e.registry.IDs()
}

// deployContext builds the per-call deployment context. Force promotes the
// effective override mode to overwrite regardless of policy.
func (e *Engine) deployContext(cfg *config.Resolved, sourceRoot string, opts Options) adapter.DeployContext {
	projectPath := opts.ProjectPath
	if projectPath == "" {
		projectPath = cfg.ProjectPath
	}

	var overrides map[string]string
	if cfg.Profile != nil {
		overrides = cfg.Profile.Overrides
	}

	return adapter.DeployContext{
		SourceRoot:   sourceRoot,
		UserHome:     util.HomeDir(),
		ProjectPath:  projectPath,
		Platform:     runtime.GOOS,
		OverrideMode: cfg.Settings.Sync.OverrideMode,
		Force:        opts.Force,
		Overrides:    overrides,
	}
}

// safeDetect converts adapter detection errors and panics into a
// non-installed result so one broken probe never aborts a whole report.
func safeDetect(a adapter.Adapter) (result adapter.DetectResult) {
	defer func() {
		if r := recover(); r != nil {
			result = adapter.DetectResult{
				Installed: false,
				Reason:    fmt.Sprintf("Detection failed: %v", r),
			}
		}
	}()

	det, err := a.Detect()
	if err != nil {
		return adapter.DetectResult{
			Installed: false,
			Reason:    fmt.Sprintf("Detection failed: %v", err),
		}
	}
	return det
}

// ToolPreview is one tool's read-only deployment plan.
type ToolPreview struct {
	Tool      string
	Installed bool
	Reason    string
	Items     []adapter.PreviewItem
}

// ToolDetection is one tool's detection outcome.
type ToolDetection struct {
	Tool   string
	Name   string
	Result adapter.DetectResult
}

// ToolStatusEntry combines detection with the last recorded sync time.
type ToolStatusEntry struct {
	ToolDetection
	LastSync time.Time
}

// StatusReport is the status operation's outcome.
type StatusReport struct {
	RepositoryURL  string
	Profile        string
	Repo           *gitrepo.RepoStatus
	LastGlobalSync time.Time
	Tools          []ToolStatusEntry
}

// ToolValidation is one tool's validation outcome.
type ToolValidation struct {
	Tool   string
	Result adapter.ValidationResult
}
