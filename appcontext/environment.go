package appcontext

import (
	"runtime"
	"strings"

	"go.uber.org/zap"

	"github.com/leeforge/tenantkit/classloader"
	"github.com/leeforge/tenantkit/dbo"
	"github.com/leeforge/tenantkit/env_mode"
)

// Environment is the process state tenant contexts read and extend. One
// Environment is shared by every tenant of a host.
type Environment struct {
	// SearchPath locates context documents and schemas and is extended with
	// each loaded tenant's search path.
	SearchPath *classloader.SearchPath
	// BaseSearchPath is the search path before any tenant extended it. Each
	// model's search path starts from it. SetDefaults records it.
	BaseSearchPath []string
	// Resolver receives one strategy per tenant context.
	Resolver *classloader.Resolver
	// DocumentRoot is the fallback location of conf/<tenant>/context.xml.
	DocumentRoot string
	// FrameworkRoot roots the sources of Tenantkit_ symbols.
	FrameworkRoot string
	// Reporting is set to Debug or Warn by each load.
	Reporting *zap.AtomicLevel
	// SafeMode reports whether the process runs in safe mode.
	SafeMode func() bool
	// Extensions reports whether a database ext/driver pair can be opened.
	Extensions func(ext, driver string) bool
	// RuntimeVersion is compared against a tenant's runtime_version.
	RuntimeVersion string
}

// SetDefaults fills every unset field. Contexts call it on construction.
func (e *Environment) SetDefaults() {
	if e.SearchPath == nil {
		e.SearchPath = classloader.NewSearchPath()
	}
	if e.BaseSearchPath == nil {
		e.BaseSearchPath = append([]string{}, e.SearchPath.Dirs()...)
	}
	if e.Resolver == nil {
		e.Resolver = classloader.NewResolver(classloader.NewCatalog(e.SearchPath))
	}
	if e.Reporting == nil {
		level := zap.NewAtomicLevelAt(zap.WarnLevel)
		e.Reporting = &level
	}
	if e.SafeMode == nil {
		e.SafeMode = env_mode.SafeMode
	}
	if e.Extensions == nil {
		e.Extensions = dbo.Available
	}
	if e.RuntimeVersion == "" {
		e.RuntimeVersion = strings.TrimPrefix(runtime.Version(), "go")
	}
}
