// Package appcontext loads and caches the configuration of a tenant and
// resolves the symbols that belong to it.
package appcontext

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/leeforge/tenantkit/cache"
	"github.com/leeforge/tenantkit/classloader"
	"github.com/leeforge/tenantkit/errors"
	"github.com/leeforge/tenantkit/json"
	"github.com/leeforge/tenantkit/metrics"
	"github.com/leeforge/tenantkit/template"
	"github.com/leeforge/tenantkit/utils"
)

// Framework is the namespace of the framework's own symbols.
const Framework = "Tenantkit"

const (
	// DocumentName is the file a tenant's configuration lives in.
	DocumentName = "context.xml"
	// SchemaFile is located through the search path, then the document root.
	SchemaFile = "conf/context.schema.json"

	cachePrefix = "context_"
)

// Option configures a Context.
type Option func(*Context)

// WithLogger sets the logger used for cache and load diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Context) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithCache selects where serialized models are stored.
func WithCache(backend cache.Backend) Option {
	return func(c *Context) {
		if backend != nil {
			c.backend = backend
		}
	}
}

// WithMetrics records parses and cache hits in collector.
func WithMetrics(collector *metrics.Collector) Option {
	return func(c *Context) {
		c.metrics = collector
	}
}

// Context is the configuration of one tenant. It is safe for concurrent use.
type Context struct {
	tenant   string
	env      *Environment
	document string
	backend  cache.Backend
	cache    cache.BlobCache
	logger   *zap.Logger
	metrics  *metrics.Collector

	loads  singleflight.Group
	parses atomic.Int64

	mu    sync.RWMutex
	model *Model
}

// StrategyKey returns the resolver key a tenant's context registers under.
func StrategyKey(tenant string) string {
	return Framework + "/" + tenant
}

// New locates the tenant's document and registers the context as a
// resolver strategy. The document is not read until Load.
func New(tenant string, env *Environment, opts ...Option) (*Context, error) {
	if tenant == "" {
		return nil, errors.NewConfiguration(errors.CodeMissingConfigFile, "tenant name is empty")
	}
	if env == nil {
		env = &Environment{}
	}
	env.SetDefaults()

	c := &Context{
		tenant:  tenant,
		env:     env,
		backend: cache.FileBackend(cache.DefaultLifetime),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(zap.String("tenant", tenant))

	path, err := Locate(env, tenant)
	if err != nil {
		return nil, err
	}
	c.document = path
	c.cache = c.backend(path)

	env.Resolver.Register(StrategyKey(tenant), c)
	return c, nil
}

// Locate returns the path of tenant's context document: the first search
// path directory holding conf/<tenant>/context.xml, else the same path
// under the document root.
func Locate(env *Environment, tenant string) (string, error) {
	rel := filepath.Join("conf", tenant, DocumentName)
	if env.SearchPath != nil {
		if path, ok := env.SearchPath.Find(rel); ok {
			return path, nil
		}
	}
	if env.DocumentRoot != "" {
		path := filepath.Join(env.DocumentRoot, rel)
		if utils.FileExists(path) {
			return path, nil
		}
	}
	return "", errors.NewConfiguration(errors.CodeMissingConfigFile,
		"context file for "+tenant+" is in neither the search path nor the document root").
		WithDetail("tenant", tenant)
}

// Tenant returns the tenant name.
func (c *Context) Tenant() string {
	return c.tenant
}

// Document returns the located context document.
func (c *Context) Document() string {
	return c.document
}

// Environment returns the environment the context extends.
func (c *Context) Environment() *Environment {
	return c.env
}

// Model returns the last loaded model, or nil before the first Load.
func (c *Context) Model() *Model {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.model
}

// Parses returns how many times the document has been parsed.
func (c *Context) Parses() int64 {
	return c.parses.Load()
}

// Load returns the tenant's model. A cached model is reused when present;
// with forceFreshnessCheck it is reused only if the document has not been
// modified since it was stored. Concurrent loads share one parse.
func (c *Context) Load(forceFreshnessCheck bool) (*Model, error) {
	v, err, _ := c.loads.Do(strconv.FormatBool(forceFreshnessCheck), func() (any, error) {
		return c.load(forceFreshnessCheck)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Model), nil
}

func (c *Context) load(fresh bool) (*Model, error) {
	ctx := context.Background()

	model, ok := c.cached(ctx, fresh)
	c.recordCacheHit(ok)
	if !ok {
		var err error
		if model, err = c.parse(); err != nil {
			return nil, err
		}
		blob, err := json.Marshal(*model)
		if err == nil {
			err = c.cache.Set(ctx, c.cacheKey(), blob)
		}
		if err != nil {
			c.logger.Warn("store context model", zap.Error(err))
		}
	}

	if err := c.apply(model); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.model = model
	c.mu.Unlock()
	return model, nil
}

func (c *Context) cached(ctx context.Context, fresh bool) (*Model, bool) {
	entry, ok, err := c.cache.Get(ctx, c.cacheKey())
	if err != nil {
		c.logger.Warn("read context cache", zap.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}
	if fresh {
		info, err := os.Stat(c.document)
		if err != nil || info.ModTime().After(entry.ModTime) {
			return nil, false
		}
	}

	var model Model
	if err := json.Unmarshal(entry.Data, &model); err != nil {
		c.logger.Warn("decode cached context model", zap.Error(err))
		return nil, false
	}
	return &model, true
}

func (c *Context) parse() (*Model, error) {
	start := time.Now()
	c.parses.Add(1)
	if c.metrics != nil {
		c.metrics.IncCounter("context_parses_total", map[string]string{"tenant": c.tenant})
	}

	data, err := os.ReadFile(c.document)
	if err != nil {
		return nil, errors.NewConfiguration(errors.CodeMissingConfigFile, "read context file").
			WithDetail("file", c.document).
			WithInnerError(err)
	}

	schemaPath, ok := c.locateSchema()
	if !ok {
		return nil, errors.NewConfiguration(errors.CodeMissingSchema, "unable to locate schema "+SchemaFile).
			WithDetail("file", c.document)
	}
	schemaData, err := os.ReadFile(schemaPath)
	if err != nil {
		return nil, errors.NewConfiguration(errors.CodeMissingSchema, "read schema").
			WithDetail("schema", schemaPath).
			WithInnerError(err)
	}
	schema, err := compileSchema(schemaPath, schemaData)
	if err != nil {
		return nil, errors.NewConfiguration(errors.CodeMissingSchema, "compile schema").
			WithDetail("schema", schemaPath).
			WithInnerError(err)
	}

	doc, err := decodeDocument(data)
	if err != nil {
		return nil, errors.NewConfiguration(errors.CodeInvalidConfigFile, "unable to parse context file").
			WithDetail("file", c.document).
			WithInnerError(err)
	}
	inst, err := doc.instance()
	if err == nil {
		err = schema.Validate(inst)
	}
	if err != nil {
		return nil, errors.NewConfiguration(errors.CodeInvalidConfigFile, "unable to validate context file").
			WithDetail("file", c.document).
			WithInnerError(err)
	}

	b := &builder{env: c.env, base: c.env.BaseSearchPath, file: c.document, log: c.logger}
	model, err := b.build(doc)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("parsed context file",
		zap.String("file", c.document),
		zap.Duration("took", time.Since(start)))
	return model, nil
}

func (c *Context) locateSchema() (string, bool) {
	if path, ok := c.env.SearchPath.Find(SchemaFile); ok {
		return path, true
	}
	if c.env.DocumentRoot != "" {
		path := filepath.Join(c.env.DocumentRoot, SchemaFile)
		if utils.FileExists(path) {
			return path, true
		}
	}
	return "", false
}

// apply extends the search path and sets the reporting level. Production
// models require safe mode.
func (c *Context) apply(m *Model) error {
	c.env.SearchPath.Append(m.SearchPath...)

	if m.Debug {
		c.env.Reporting.SetLevel(zap.DebugLevel)
		return nil
	}
	c.env.Reporting.SetLevel(zap.WarnLevel)
	if !c.env.SafeMode() {
		return errors.NewConfiguration(errors.CodeSafeModeOff,
			"an application in production mode requires safe mode").
			WithDetail("tenant", c.tenant)
	}
	return nil
}

// Invalidate drops the cached model so the next Load parses the document.
func (c *Context) Invalidate() error {
	return c.cache.Delete(context.Background(), c.cacheKey())
}

func (c *Context) cacheKey() string {
	return cachePrefix + c.tenant
}

func (c *Context) recordCacheHit(hit bool) {
	if c.metrics != nil {
		c.metrics.RecordCacheHit("context", hit)
	}
}

// CanResolve claims framework symbols, symbols of the loaded tenant and
// template family symbols.
func (c *Context) CanResolve(symbol string) bool {
	_, ok := c.family(symbol)
	return ok
}

// LocateSource maps a claimed symbol onto its source. It panics for a
// symbol CanResolve does not claim.
func (c *Context) LocateSource(symbol string) string {
	kind, ok := c.family(symbol)
	if !ok {
		panic(errors.NewConfiguration(errors.CodeInvalidResolver,
			"unknown symbol "+symbol+" requested from the "+c.tenant+" context").
			WithDetail("symbol", symbol))
	}

	switch kind {
	case familyFramework:
		return filepath.Join(c.env.FrameworkRoot, filepath.FromSlash(classloader.NamespacePath(symbol)))
	case familyTenant:
		return c.Model().AppRoot + filepath.FromSlash(classloader.NamespacePath(symbol))
	default:
		return template.FamilySource(classloader.Namespace(symbol))
	}
}

type family int

const (
	familyFramework family = iota
	familyTenant
	familyTemplate
)

func (c *Context) family(symbol string) (family, bool) {
	ns := classloader.Namespace(symbol)
	if ns == Framework {
		return familyFramework, true
	}
	if m := c.Model(); m != nil && ns == m.AppName {
		return familyTenant, true
	}
	for _, f := range template.Families {
		if ns == f {
			return familyTemplate, true
		}
	}
	return 0, false
}
