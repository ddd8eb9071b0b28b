package manager

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	enhance "github.com/goliatone/go-enhance"
	"github.com/goliatone/go-enhance/pkg/activity"
	"github.com/goliatone/go-enhance/pkg/engine"
	"github.com/goliatone/go-enhance/pkg/fetch"
	"github.com/goliatone/go-enhance/pkg/profile"
	"github.com/goliatone/go-enhance/pkg/settings"
	"github.com/goliatone/go-enhance/pkg/state"
	"github.com/goliatone/go-enhance/pkg/store"
)

const (
	settingsDomain = "settings"
	runtimeDomain  = "runtime"

	// RuntimeFile is the rendered document the engine reads directly.
	RuntimeFile = "runtime.yaml"
	checkFile   = "check.yaml"

	shutdownTimeout = 3 * time.Second
	refreshTimeout  = 30 * time.Second
)

// ErrSuperseded reports a rebuild that was overtaken by a newer request
// before it reached the engine. Its draft is discarded; only the latest
// requested configuration matters.
var ErrSuperseded = errors.New("manager: rebuild superseded")

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the operational logger.
func WithLogger(log *slog.Logger) Option {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

// WithController sets the engine-control collaborator. Without one,
// commits skip the push stage and New builds an API controller from the
// resolved settings when they name a control address.
func WithController(controller engine.Controller) Option {
	return func(m *Manager) {
		m.controller = controller
	}
}

// WithFetcher overrides the remote profile fetcher.
func WithFetcher(fetcher *fetch.Fetcher) Option {
	return func(m *Manager) {
		if fetcher != nil {
			m.fetcher = fetcher
		}
	}
}

// WithHooks attaches notification hooks for configuration events.
func WithHooks(hooks activity.Hooks) Option {
	return func(m *Manager) {
		m.hooks = hooks
	}
}

// WithRunners overrides the script engines available to pipeline builds.
func WithRunners(runners *enhance.RunnerRegistry) Option {
	return func(m *Manager) {
		if runners != nil {
			m.runners = runners
		}
	}
}

// WithSchema overrides the descriptor schema applied to rendered
// documents during commit validation.
func WithSchema(schema *enhance.Schema) Option {
	return func(m *Manager) {
		m.schema = schema
	}
}

// WithRuleSet adds an expression rule set to commit validation.
func WithRuleSet(rules *enhance.RuleSet) Option {
	return func(m *Manager) {
		m.rules = rules
	}
}

// WithBinaryChecker overrides the engine binary check run during commit
// validation. Without one, New builds a checker when the resolved
// settings name an engine binary.
func WithBinaryChecker(checker *engine.BinaryChecker) Option {
	return func(m *Manager) {
		m.checker = checker
	}
}

// WithFinalPatch merges extra keys into the final-adjustment layer, after
// the settings-derived adjustments.
func WithFinalPatch(patch enhance.Document) Option {
	return func(m *Manager) {
		m.finalPatch = enhance.CloneDocument(patch)
	}
}

// WithSettingsLayers adds settings layers, such as flag or environment
// overrides, resolved above the built-in defaults and settings.yaml.
func WithSettingsLayers(layers ...settings.Layer) Option {
	return func(m *Manager) {
		m.extraLayers = append(m.extraLayers, layers...)
	}
}

// Manager owns the configuration domains and the serialized rebuild lane.
type Manager struct {
	dir         string
	runtimePath string
	log         *slog.Logger
	hooks       activity.Hooks
	emitter     *activity.Emitter

	controller engine.Controller
	fetcher    *fetch.Fetcher
	checker    *engine.BinaryChecker
	runners    *enhance.RunnerRegistry
	schema     *enhance.Schema
	rules      *enhance.RuleSet
	finalPatch enhance.Document

	extraLayers []settings.Layer

	catalog *profile.Store
	regMu   sync.RWMutex
	reg     *profile.Registry

	pipeline     *enhance.Pipeline
	settingsCell *store.Cell[settings.Settings]
	runtimeCell  *store.Cell[enhance.Document]

	resultMu   sync.Mutex
	lastResult enhance.Result

	gen      atomic.Uint64
	triggers chan struct{}

	refresh *refresher
}

// New opens the data directory, resolves settings, loads the catalog, and
// wires the configuration cells. It does not touch the engine; the first
// push happens on the first rebuild.
func New(dir string, opts ...Option) (*Manager, error) {
	if dir == "" {
		return nil, fmt.Errorf("manager: data directory is required")
	}

	m := &Manager{
		dir:         dir,
		runtimePath: filepath.Join(dir, RuntimeFile),
		log:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		triggers:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	m.emitter = activity.NewEmitter(m.hooks, activity.Config{
		Enabled: true,
		Channel: "config",
	})

	settingsStore, err := state.NewFileStore[settings.Settings](dir)
	if err != nil {
		return nil, err
	}
	resolved, err := m.resolveSettings(settingsStore)
	if err != nil {
		return nil, err
	}

	m.settingsCell = store.NewCell(settingsDomain, resolved,
		store.WithClone(settings.Settings.Clone),
		store.WithValidator(func(_ context.Context, s settings.Settings) error {
			return s.Validate()
		}),
		store.WithPersist(func(ctx context.Context, s settings.Settings) error {
			_, err := settingsStore.Save(ctx, state.Ref{Domain: settingsDomain}, s, state.Meta{})
			return err
		}),
	)

	if m.controller == nil {
		if addr := resolved.ControllerAddress(); addr != "" {
			m.controller = engine.NewAPIController("http://"+addr,
				engine.WithSecret(resolved.ControllerSecret()))
		}
	}
	if m.fetcher == nil {
		m.fetcher = fetch.New(
			fetch.WithUserAgent(resolved.FetchUserAgent()),
			fetch.WithProxyURL(resolved.FetchProxyURL()),
			fetch.WithHeaders(resolved.Fetch.Headers),
		)
	}
	if m.checker == nil {
		if binary := resolved.EngineBinary(); binary != "" {
			m.checker = engine.NewBinaryChecker(binary, dir)
		}
	}
	if m.runners == nil {
		m.runners = defaultRunners(resolved.ScriptTimeout())
	}
	if m.schema == nil {
		m.schema = enhance.DefaultSchema()
	}

	m.catalog, err = profile.NewStore(dir)
	if err != nil {
		return nil, err
	}
	registry, err := m.catalog.LoadAll(context.Background())
	if err != nil {
		return nil, err
	}
	m.reg = registry

	m.pipeline = enhance.NewPipeline(
		enhance.WithRunners(m.runners),
		enhance.WithActivityHooks(m.hooks),
		enhance.WithRunnerLogger(enhance.RunnerLoggerFunc(func(event enhance.RunnerLogEvent) {
			if event.Err != nil {
				m.log.Warn("script run failed",
					"engine", event.Engine,
					"layer", event.Script,
					"elapsed", event.Duration,
					"error", event.Err)
				return
			}
			m.log.Debug("script run",
				"engine", event.Engine,
				"layer", event.Script,
				"elapsed", event.Duration)
		})),
	)

	m.runtimeCell = store.NewCell(runtimeDomain, enhance.Document{},
		store.WithClone(enhance.CloneDocument),
		store.WithValidator(m.validateRuntime),
		store.WithPersist(m.persistRuntime),
		store.WithPush(m.pushRuntime),
	)

	m.refresh = newRefresher(m.runRefresh)
	return m, nil
}

// resolveSettings layers the built-in defaults, settings.yaml, and any
// configured override layers into the effective settings.
func (m *Manager) resolveSettings(files *state.FileStore[settings.Settings]) (settings.Settings, error) {
	layers := []settings.Layer{settings.DefaultLayer()}

	fromFile, _, ok, err := files.Load(context.Background(), state.Ref{Domain: settingsDomain})
	if err != nil {
		return settings.Settings{}, fmt.Errorf("manager: load settings: %w", err)
	}
	if ok {
		if err := fromFile.Validate(); err != nil {
			return settings.Settings{}, fmt.Errorf("manager: settings.yaml: %w", err)
		}
		layers = append(layers, settings.Layer{
			Source: settings.Source{Name: "settings.yaml", Level: settings.LevelFile},
			Value:  fromFile,
		})
	}
	layers = append(layers, m.extraLayers...)

	resolved, chain := settings.Resolve(layers...)
	m.log.Debug("settings resolved", "strongest", chain.Strongest().Identifier())
	return resolved, nil
}

func defaultRunners(timeout time.Duration) *enhance.RunnerRegistry {
	registry := enhance.NewRunnerRegistry()
	cache := enhance.NewMemoryProgramCache()
	_ = registry.Register(enhance.NewJSRunner(
		enhance.JSWithTimeout(timeout),
		enhance.JSWithProgramCache(cache),
	))
	_ = registry.Register(enhance.NewLuaRunner(
		enhance.LuaWithTimeout(timeout),
	))
	return registry
}

// Dir returns the manager's data directory.
func (m *Manager) Dir() string {
	return m.dir
}

// RuntimePath returns the path of the rendered document the engine reads.
func (m *Manager) RuntimePath() string {
	return m.runtimePath
}

// Settings returns a copy of the committed application settings.
func (m *Manager) Settings() settings.Settings {
	return m.settingsCell.Latest()
}

// UpdateSettings edits the settings domain through a draft and commits the
// result, then requests a rebuild so dependent adjustments take effect.
func (m *Manager) UpdateSettings(ctx context.Context, fn func(*settings.Settings) error) error {
	draft, err := m.settingsCell.Draft()
	if err != nil {
		return err
	}
	if err := draft.Patch(fn); err != nil {
		draft.Discard()
		return err
	}
	if err := draft.Commit(ctx); err != nil {
		draft.Discard()
		return err
	}
	m.requestRebuild()
	return nil
}

// Runtime returns a copy of the committed engine-facing document.
func (m *Manager) Runtime() enhance.Document {
	return m.runtimeCell.Latest()
}

// LastResult returns the diagnostics of the most recent pipeline build,
// including builds whose commit was rejected.
func (m *Manager) LastResult() enhance.Result {
	m.resultMu.Lock()
	defer m.resultMu.Unlock()
	return enhance.Result{
		Document: enhance.CloneDocument(m.lastResult.Document),
		Reports:  append([]enhance.LayerReport(nil), m.lastResult.Reports...),
	}
}

func (m *Manager) setResult(result enhance.Result) {
	m.resultMu.Lock()
	m.lastResult = result
	m.resultMu.Unlock()
}

func (m *Manager) registry() *profile.Registry {
	m.regMu.RLock()
	defer m.regMu.RUnlock()
	return m.reg
}

func (m *Manager) swapRegistry(registry *profile.Registry) {
	m.regMu.Lock()
	m.reg = registry
	m.regMu.Unlock()
}

// requestRebuild bumps the generation and nudges the rebuild lane. The
// trigger channel holds one pending request; further requests coalesce
// into it.
func (m *Manager) requestRebuild() {
	m.gen.Add(1)
	select {
	case m.triggers <- struct{}{}:
	default:
	}
}

// Run owns the rebuild lane until ctx is cancelled: it performs an initial
// rebuild, watches the catalog directory, runs refresh timers, and drains
// rebuild requests one at a time.
func (m *Manager) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	m.log.Info("manager starting", "dir", m.dir)

	stopWatch, err := m.startWatcher()
	if err != nil {
		m.log.Warn("catalog watcher unavailable", "error", err)
	} else {
		defer stopWatch()
	}

	if m.Settings().RefreshEnabled() {
		m.refresh.sync(m.registry().Items())
	}
	defer m.refresh.stop()

	if m.controller != nil {
		if err := m.controller.Healthcheck(ctx); err != nil {
			m.log.Warn("engine unreachable", "error", err)
		}
	}

	if _, err := m.Rebuild(ctx); err != nil && !errors.Is(err, profile.ErrNoActiveProfile) {
		m.log.Error("initial rebuild failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			m.shutdown()
			return nil
		case <-m.triggers:
			gen := m.gen.Load()
			if _, err := m.buildAndCommit(ctx, gen); err != nil {
				switch {
				case errors.Is(err, ErrSuperseded):
					m.log.Debug("rebuild superseded")
				case errors.Is(err, profile.ErrNoActiveProfile):
					m.log.Debug("rebuild skipped", "reason", "no active profile")
				default:
					m.log.Error("rebuild failed", "error", err)
				}
			}
		}
	}
}

// shutdown drops the engine's tunnel interface so the host is not left
// routing through a manager that is no longer supervising it.
func (m *Manager) shutdown() {
	m.log.Info("manager stopping")
	if m.controller == nil || !m.Settings().DisableTunOnStop() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	patch := enhance.Document{"tun": map[string]any{"enable": false}}
	if err := m.controller.Patch(ctx, patch); err != nil {
		m.log.Warn("disable tun on stop", "error", err)
	}
}
