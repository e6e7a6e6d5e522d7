package classloader

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/leeforge/tenantkit/errors"
)

const defaultMemoSize = 1024

// Resolver maps symbols to units through an ordered chain of strategies and
// falls back to the naming convention when no strategy succeeds.
type Resolver struct {
	mu         sync.RWMutex
	keys       []string
	strategies map[string]Strategy
	catalog    *Catalog
	memo       *lru.Cache[string, string]
	logger     *zap.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger used for resolution traces.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMemoSize bounds the number of remembered resolutions.
func WithMemoSize(size int) Option {
	return func(r *Resolver) {
		if size <= 0 {
			return
		}
		if memo, err := lru.New[string, string](size); err == nil {
			r.memo = memo
		}
	}
}

// NewResolver creates a resolver loading units from catalog.
func NewResolver(catalog *Catalog, opts ...Option) *Resolver {
	if catalog == nil {
		catalog = NewCatalog(nil)
	}
	memo, _ := lru.New[string, string](defaultMemoSize)
	r := &Resolver{
		strategies: make(map[string]Strategy),
		catalog:    catalog,
		memo:       memo,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Catalog returns the unit table the resolver loads from.
func (r *Resolver) Catalog() *Catalog {
	return r.catalog
}

// Register adds strategy under key. Replacing an existing key keeps its
// position in the chain. Nil strategies are ignored.
func (r *Resolver) Register(key string, strategy Strategy) {
	if strategy == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.strategies[key]; !exists {
		r.keys = append(r.keys, key)
	}
	r.strategies[key] = strategy
	r.memo.Purge()
}

// Unregister removes the strategy under key and reports whether it existed.
func (r *Resolver) Unregister(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.strategies[key]; !exists {
		return false
	}
	r.unregisterLocked(key)
	return true
}

// UnregisterStrategy removes the strategy under key only while it is still
// strategy, which must be of a comparable type such as a pointer.
func (r *Resolver) UnregisterStrategy(key string, strategy Strategy) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, exists := r.strategies[key]; !exists || current != strategy {
		return false
	}
	r.unregisterLocked(key)
	return true
}

func (r *Resolver) unregisterLocked(key string) {
	delete(r.strategies, key)
	for i, k := range r.keys {
		if k == key {
			r.keys = append(r.keys[:i], r.keys[i+1:]...)
			break
		}
	}
	r.memo.Purge()
}

// Keys returns strategy keys in resolution order.
func (r *Resolver) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.keys...)
}

// Strategy returns the strategy registered under key.
func (r *Resolver) Strategy(key string) (Strategy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.strategies[key]
	return s, ok
}

// Resolve loads the unit for symbol and reports whether it is now defined.
// Capable strategies are tried in registration order. A source that loads
// but does not define the unit is skipped. Exhaustion is not an error.
// Resolve panics on an empty symbol.
func (r *Resolver) Resolve(symbol string) bool {
	mustSymbol(symbol)

	if _, ok := r.memo.Get(symbol); ok {
		return true
	}

	for _, s := range r.chain() {
		if !s.CanResolve(symbol) {
			continue
		}
		source := s.LocateSource(symbol)
		r.catalog.Load(source)
		if r.catalog.Defined(symbol) {
			r.memo.Add(symbol, source)
			return true
		}
		r.logger.Debug("source did not define unit",
			zap.String("symbol", symbol),
			zap.String("source", source))
	}

	return r.ResolveByConvention(symbol)
}

// ResolveByConvention loads the source the naming convention derives for
// symbol and reports whether it defined the expected unit.
func (r *Resolver) ResolveByConvention(symbol string) bool {
	unit, source := Convention(symbol)
	r.catalog.Load(source)
	if !r.catalog.Defined(unit) {
		r.logger.Debug("unresolved symbol",
			zap.String("symbol", symbol),
			zap.String("source", source))
		return false
	}
	r.memo.Add(symbol, source)
	return true
}

// Source returns the source a previous successful resolution loaded.
func (r *Resolver) Source(symbol string) (string, bool) {
	return r.memo.Peek(symbol)
}

func (r *Resolver) chain() []Strategy {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Strategy, 0, len(r.keys))
	for _, k := range r.keys {
		out = append(out, r.strategies[k])
	}
	return out
}

// Lookup resolves symbol and returns its unit's constructor as T.
func Lookup[T any](r *Resolver, symbol string) (T, error) {
	var zero T
	if !r.Resolve(symbol) {
		return zero, errors.NewResolution(symbol)
	}

	u, ok := r.catalog.Unit(symbol)
	if !ok {
		u, ok = r.catalog.Unit(UnitName(symbol))
	}
	if !ok {
		return zero, errors.NewResolution(symbol)
	}
	ctor, ok := u.Constructor.(T)
	if !ok {
		return zero, errors.NewResolution(symbol).
			WithCode(errors.CodeUnitTypeMismatch).
			WithMessage(fmt.Sprintf("unit %s is %T, want %T", symbol, u.Constructor, zero))
	}
	return ctor, nil
}
