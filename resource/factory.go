// Package resource builds and caches the resources a tenant model describes.
package resource

import (
	"io"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/leeforge/tenantkit/appcontext"
	"github.com/leeforge/tenantkit/classloader"
	"github.com/leeforge/tenantkit/metrics"
)

// Kinds of cached resources.
const (
	KindLogger   = "logger"
	KindTemplate = "template"
	KindSession  = "session"
)

// Option configures a Factory.
type Option func(*Factory)

// WithLogger sets the logger used for construction diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(f *Factory) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithMetrics records constructions in collector.
func WithMetrics(collector *metrics.Collector) Option {
	return func(f *Factory) {
		f.metrics = collector
	}
}

// Factory constructs resources on first demand and keeps one instance per
// tenant and kind. Models in debug mode are never served from the cache.
// Failed constructions are not cached.
type Factory struct {
	resolver *classloader.Resolver
	cells    sync.Map
	logger   *zap.Logger
	metrics  *metrics.Collector
}

// cell holds one cached resource. done is set after value is stored so
// readers of a built cell never take the lock.
type cell struct {
	mu    sync.Mutex
	done  atomic.Bool
	value any
}

// New creates a factory resolving units through resolver.
func New(resolver *classloader.Resolver, opts ...Option) *Factory {
	f := &Factory{
		resolver: resolver,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Resolver returns the resolver units are looked up with.
func (f *Factory) Resolver() *classloader.Resolver {
	return f.resolver
}

func cacheKey(m *appcontext.Model, kind string) string {
	return m.AppName + "/" + kind
}

// get returns the cached value of kind or builds it once. A cell dropped by
// a clear while get waited for it is abandoned and get starts over.
func (f *Factory) get(m *appcontext.Model, kind string, build func() (any, error)) (any, error) {
	if m.Debug {
		return f.construct(m, kind, build)
	}

	key := cacheKey(m, kind)
	for {
		v, _ := f.cells.LoadOrStore(key, &cell{})
		c := v.(*cell)
		if c.done.Load() {
			return c.value, nil
		}
		if value, ok, err := f.fill(c, key, m, kind, build); ok {
			return value, err
		}
	}
}

// fill builds the value of c under its lock. It reports false when c is no
// longer the cell stored under key.
func (f *Factory) fill(c *cell, key string, m *appcontext.Model, kind string, build func() (any, error)) (any, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cur, ok := f.cells.Load(key); !ok || cur != c {
		return nil, false, nil
	}
	if c.done.Load() {
		return c.value, true, nil
	}

	value, err := f.construct(m, kind, build)
	if err != nil {
		return nil, true, err
	}
	c.value = value
	c.done.Store(true)
	return value, true, nil
}

func (f *Factory) construct(m *appcontext.Model, kind string, build func() (any, error)) (any, error) {
	start := time.Now()
	value, err := build()
	if f.metrics != nil {
		f.metrics.RecordConstruction(m.AppName, kind, time.Since(start), err)
	}
	if err != nil {
		f.logger.Warn("construct resource",
			zap.String("tenant", m.AppName),
			zap.String("kind", kind),
			zap.Error(err))
		return nil, err
	}
	f.logger.Debug("constructed resource",
		zap.String("tenant", m.AppName),
		zap.String("kind", kind),
		zap.Duration("took", time.Since(start)))
	return value, nil
}

// Cached reports whether kind is cached for the model's tenant.
func (f *Factory) Cached(m *appcontext.Model, kind string) bool {
	v, ok := f.cells.Load(cacheKey(m, kind))
	return ok && v.(*cell).done.Load()
}

// ClearCache drops every cached resource, closing those that can be closed.
// A construction in progress finishes before its cell is dropped.
func (f *Factory) ClearCache() error {
	return f.clear(func(string) bool { return true })
}

// ClearTenant drops the cached resources of one tenant.
func (f *Factory) ClearTenant(appName string) error {
	prefix := appName + "/"
	return f.clear(func(key string) bool {
		return len(key) > len(prefix) && key[:len(prefix)] == prefix
	})
}

func (f *Factory) clear(match func(key string) bool) error {
	var lastErr error
	f.cells.Range(func(k, v any) bool {
		key := k.(string)
		if !match(key) {
			return true
		}
		c := v.(*cell)
		c.mu.Lock()
		f.cells.Delete(key)
		if c.done.Load() {
			if err := closeValue(c.value); err != nil {
				f.logger.Warn("close cached resource", zap.String("key", key), zap.Error(err))
				lastErr = err
			}
		}
		c.mu.Unlock()
		return true
	})
	return lastErr
}

func closeValue(v any) error {
	if closer, ok := v.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
