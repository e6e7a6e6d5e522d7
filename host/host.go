// Package host owns the state every tenant of a process shares: one search
// path, one resolver, one resource factory and one model cache.
package host

import (
	"context"
	stderrors "errors"
	"net/http"
	"path/filepath"
	"sort"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/leeforge/tenantkit/appcontext"
	"github.com/leeforge/tenantkit/cache"
	"github.com/leeforge/tenantkit/classloader"
	"github.com/leeforge/tenantkit/config"
	"github.com/leeforge/tenantkit/dbo"
	"github.com/leeforge/tenantkit/errors"
	"github.com/leeforge/tenantkit/logging"
	"github.com/leeforge/tenantkit/metrics"
	"github.com/leeforge/tenantkit/resource"
	"github.com/leeforge/tenantkit/template"
	"github.com/leeforge/tenantkit/utils"
)

const loadConcurrency = 4

// Option configures a Host.
type Option func(*Host)

// WithLogger replaces the logger built from the host configuration.
func WithLogger(logger logging.Logger) Option {
	return func(h *Host) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithMetrics records loads, constructions and requests in collector.
func WithMetrics(collector *metrics.Collector) Option {
	return func(h *Host) {
		if collector != nil {
			h.metrics = collector
		}
	}
}

// WithUnits lets the application define its units, such as controllers,
// in the host catalog.
func WithUnits(define func(*classloader.Catalog)) Option {
	return func(h *Host) {
		if define != nil {
			h.units = append(h.units, define)
		}
	}
}

// WithSafeMode overrides how the host decides whether it runs in safe mode.
func WithSafeMode(safe func() bool) Option {
	return func(h *Host) {
		h.safeMode = safe
	}
}

// WithExtensions overrides which database ext/driver pairs count as
// available.
func WithExtensions(available func(ext, driver string) bool) Option {
	return func(h *Host) {
		h.extensions = available
	}
}

// Host serves any number of tenants. It is safe for concurrent use.
type Host struct {
	cfg        config.HostConfig
	logger     logging.Logger
	loggers    *logging.Factory
	metrics    *metrics.Collector
	units      []func(*classloader.Catalog)
	safeMode   func() bool
	extensions func(ext, driver string) bool

	env        *appcontext.Environment
	factory    *resource.Factory
	backend    cache.Backend
	closeCache func() error

	mu      sync.Mutex
	tenants map[string]*Tenant
}

// Tenant is one constructed tenant context and its loaded model.
type Tenant struct {
	name string
	once sync.Once
	ctx  *appcontext.Context
	err  error
}

// Name returns the tenant name.
func (t *Tenant) Name() string { return t.name }

// Context returns the tenant's configuration context.
func (t *Tenant) Context() *appcontext.Context { return t.ctx }

// Model returns the loaded model.
func (t *Tenant) Model() *appcontext.Model { return t.ctx.Model() }

// New builds a host from cfg. Nothing is loaded until a tenant is asked for.
func New(ctx context.Context, cfg config.HostConfig, opts ...Option) (*Host, error) {
	h := &Host{
		cfg:     cfg,
		metrics: metrics.NewCollector(),
		tenants: make(map[string]*Tenant),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = logging.NewLogger(cfg.Logging)
	}
	h.loggers = logging.NewFactoryFrom(h.logger, countEntries(h.metrics))
	h.logger = h.loggers.Root()

	dirs := cfg.SearchPath
	if cfg.FrameworkRoot != "" {
		dirs = append([]string{cfg.FrameworkRoot}, dirs...)
	}
	sp := classloader.NewSearchPath(dirs...)

	catalog := classloader.NewCatalog(sp)
	dbo.Register(catalog)
	template.Register(catalog)
	for _, define := range h.units {
		define(catalog)
	}
	resolver := classloader.NewResolver(catalog,
		classloader.WithLogger(h.loggers.Zap("resolver")),
		classloader.WithMemoSize(cfg.ResolverMemo))

	h.env = &appcontext.Environment{
		SearchPath:    sp,
		Resolver:      resolver,
		DocumentRoot:  cfg.DocumentRoot,
		FrameworkRoot: cfg.FrameworkRoot,
		SafeMode:      h.safeMode,
		Extensions:    h.extensions,
	}
	h.env.SetDefaults()

	backend, closeCache, err := cache.Open(ctx, cfg.Cache, h.loggers.Zap("cache"))
	if err != nil {
		return nil, errors.WrapWithType(err, errors.ErrorTypeConfiguration, "open model cache")
	}
	h.backend, h.closeCache = backend, closeCache

	h.factory = resource.New(resolver,
		resource.WithLogger(h.loggers.Zap("factory")),
		resource.WithMetrics(h.metrics))

	if cfg.InstallSchema {
		if err := h.installSchema(); err != nil {
			_ = closeCache()
			return nil, err
		}
	}
	return h, nil
}

// installSchema writes the bundled schema under the document root unless
// one can already be located.
func (h *Host) installSchema() error {
	if _, ok := h.env.SearchPath.Find(appcontext.SchemaFile); ok {
		return nil
	}
	if utils.FileExists(filepath.Join(h.cfg.DocumentRoot, appcontext.SchemaFile)) {
		return nil
	}
	path, err := appcontext.WriteSchema(h.cfg.DocumentRoot)
	if err != nil {
		return errors.NewConfiguration(errors.CodeMissingSchema, "install schema").WithInnerError(err)
	}
	h.logger.Info("installed context schema", zap.String("path", path))
	return nil
}

// Config returns the configuration the host was built from.
func (h *Host) Config() config.HostConfig { return h.cfg }

// Environment returns the environment every tenant context extends.
func (h *Host) Environment() *appcontext.Environment { return h.env }

// Resolver returns the shared resolver.
func (h *Host) Resolver() *classloader.Resolver { return h.env.Resolver }

// Factory returns the shared resource factory.
func (h *Host) Factory() *resource.Factory { return h.factory }

// Metrics returns the host collector.
func (h *Host) Metrics() *metrics.Collector { return h.metrics }

// Logger returns the host logger.
func (h *Host) Logger() logging.Logger { return h.logger }

// MetricsHandler serves the host collector as JSON.
func (h *Host) MetricsHandler() http.Handler { return metrics.NewMetricsHandler(h.metrics) }

// countEntries counts warnings and errors logged by the host, per level and
// logger name.
func countEntries(collector *metrics.Collector) logging.Hook {
	return func(entry zapcore.Entry) error {
		if entry.Level < zapcore.WarnLevel {
			return nil
		}
		collector.IncCounter("log_entries_total", map[string]string{
			"level":  entry.Level.String(),
			"logger": entry.LoggerName,
		})
		return nil
	}
}

// Tenant returns the tenant called name, constructing and loading it on
// first use. A configuration error is remembered and returned by every later
// call until Reload.
func (h *Host) Tenant(name string) (*Tenant, error) {
	h.mu.Lock()
	t, ok := h.tenants[name]
	if !ok {
		t = &Tenant{name: name}
		h.tenants[name] = t
	}
	h.mu.Unlock()

	t.once.Do(func() { t.err = h.open(t) })
	if t.err != nil {
		if !errors.IsType(t.err, errors.ErrorTypeConfiguration) {
			h.forget(name, t)
		}
		return nil, t.err
	}
	return t, nil
}

func (h *Host) open(t *Tenant) error {
	ctx, err := appcontext.New(t.name, h.env,
		appcontext.WithLogger(h.loggers.Zap("context")),
		appcontext.WithCache(h.backend),
		appcontext.WithMetrics(h.metrics))
	if err != nil {
		return err
	}
	key := appcontext.StrategyKey(t.name)
	h.mu.Lock()
	t.ctx = ctx
	// A reload may have replaced t while ctx registered itself. The strategy
	// must belong to the tenant the map holds.
	if cur, ok := h.tenants[t.name]; !ok {
		h.env.Resolver.UnregisterStrategy(key, ctx)
	} else if cur.ctx != nil {
		h.env.Resolver.Register(key, cur.ctx)
	}
	h.mu.Unlock()

	if _, err := ctx.Load(h.cfg.FreshnessCheck); err != nil {
		h.env.Resolver.UnregisterStrategy(key, ctx)
		h.logger.Warn("tenant load failed", zap.String("tenant", t.name), zap.Error(err))
		return err
	}
	h.logger.Debug("tenant loaded",
		zap.String("tenant", t.name),
		zap.String("document", ctx.Document()))
	return nil
}

func (h *Host) forget(name string, t *Tenant) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.tenants[name] == t {
		delete(h.tenants, name)
	}
}

// Reload drops the tenant's cached model and resources and loads it again.
func (h *Host) Reload(name string) (*Tenant, error) {
	h.mu.Lock()
	var old *appcontext.Context
	if t, ok := h.tenants[name]; ok {
		old = t.ctx
		// Unregister before the tenant can be constructed again, so the
		// next context's strategy survives.
		h.env.Resolver.Unregister(appcontext.StrategyKey(name))
		delete(h.tenants, name)
	}
	h.mu.Unlock()

	if old != nil {
		if err := old.Invalidate(); err != nil {
			h.logger.Warn("invalidate model cache", zap.String("tenant", name), zap.Error(err))
		}
		appName := name
		if m := old.Model(); m != nil {
			appName = m.AppName
		}
		if err := h.factory.ClearTenant(appName); err != nil {
			h.logger.Warn("release tenant resources", zap.String("tenant", name), zap.Error(err))
		}
	}
	return h.Tenant(name)
}

// LoadTenants loads every configured tenant, a few at a time, and joins
// their errors in configuration order.
func (h *Host) LoadTenants() error {
	errs := make([]error, len(h.cfg.Tenants))
	var g errgroup.Group
	g.SetLimit(loadConcurrency)
	for i, name := range h.cfg.Tenants {
		g.Go(func() error {
			_, errs[i] = h.Tenant(name)
			return nil
		})
	}
	_ = g.Wait()
	return stderrors.Join(errs...)
}

// Tenants returns the names of the tenants constructed so far, sorted.
func (h *Host) Tenants() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	names := make([]string, 0, len(h.tenants))
	for name := range h.tenants {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// documents maps the located document of every constructed tenant to its
// name, including tenants whose load failed.
func (h *Host) documents() map[string]string {
	h.mu.Lock()
	defer h.mu.Unlock()
	docs := make(map[string]string, len(h.tenants))
	for name, t := range h.tenants {
		if t.ctx != nil {
			docs[filepath.Clean(t.ctx.Document())] = name
		}
	}
	return docs
}

// Close releases every cached resource and the model cache.
func (h *Host) Close() error {
	_ = h.logger.Sync()
	return stderrors.Join(h.factory.ClearCache(), h.closeCache())
}
