package classloader

import (
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"sync"
)

// Unit is a named constructor registered at a source path.
type Unit struct {
	Name        string
	Source      string
	Constructor any
}

// Catalog is the table of loadable units keyed by source path. Defining a
// unit does not make it visible: a unit counts as defined only once its
// source path has been loaded, the same way a source file has to be
// included before the types in it exist.
type Catalog struct {
	mu         sync.RWMutex
	sources    map[string]map[string]Unit
	included   map[string]struct{}
	defined    map[string]Unit
	searchPath *SearchPath
}

// NewCatalog creates an empty catalog. Absolute source paths passed to Load
// are made relative against sp.
func NewCatalog(sp *SearchPath) *Catalog {
	if sp == nil {
		sp = NewSearchPath()
	}
	return &Catalog{
		sources:    make(map[string]map[string]Unit),
		included:   make(map[string]struct{}),
		defined:    make(map[string]Unit),
		searchPath: sp,
	}
}

// SearchPath returns the search path the catalog resolves against.
func (c *Catalog) SearchPath() *SearchPath {
	return c.searchPath
}

// Define registers ctor as unit at source. Redefining a unit at the same
// source replaces it.
func Define[T any](c *Catalog, source, unit string, ctor T) {
	c.define(source, unit, ctor)
}

func (c *Catalog) define(source, unit string, ctor any) {
	mustSymbol(unit)
	source = cleanSource(source)

	c.mu.Lock()
	defer c.mu.Unlock()

	units, ok := c.sources[source]
	if !ok {
		units = make(map[string]Unit)
		c.sources[source] = units
	}
	u := Unit{Name: unit, Source: source, Constructor: ctor}
	units[unit] = u

	if _, loaded := c.included[source]; loaded {
		c.defineLocked(u)
	}
}

// DefineConvention registers ctor under symbol at the source path the naming
// convention derives for it.
func DefineConvention[T any](c *Catalog, symbol string, ctor T) {
	unit, source := Convention(symbol)
	c.define(source, unit, ctor)
}

// Load includes source once and reports whether the catalog knows it.
// Absolute paths are tried relative to each search path directory.
func (c *Catalog) Load(source string) bool {
	if source == "" {
		return false
	}

	candidates := []string{cleanSource(source)}
	if filepath.IsAbs(source) {
		candidates = append(candidates, c.searchPath.Relative(source)...)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, candidate := range candidates {
		units, ok := c.sources[candidate]
		if !ok {
			continue
		}
		if _, loaded := c.included[candidate]; loaded {
			return true
		}
		c.included[candidate] = struct{}{}
		names := make([]string, 0, len(units))
		for name := range units {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			c.defineLocked(units[name])
		}
		return true
	}
	return false
}

// Defined reports whether unit is visible.
func (c *Catalog) Defined(unit string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.defined[unit]
	return ok
}

// Unit returns a visible unit.
func (c *Catalog) Unit(name string) (Unit, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	u, ok := c.defined[name]
	return u, ok
}

// Included reports whether source has been loaded.
func (c *Catalog) Included(source string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.included[cleanSource(source)]
	return ok
}

// Sources returns every registered source path, sorted.
func (c *Catalog) Sources() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]string, 0, len(c.sources))
	for s := range c.sources {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// defineLocked keeps the first definition of a unit name.
func (c *Catalog) defineLocked(u Unit) {
	if prev, exists := c.defined[u.Name]; exists && prev.Source != u.Source {
		return
	}
	c.defined[u.Name] = u
}

func cleanSource(source string) string {
	return path.Clean(filepath.ToSlash(source))
}

func (u Unit) String() string {
	return fmt.Sprintf("%s (%s)", u.Name, u.Source)
}
