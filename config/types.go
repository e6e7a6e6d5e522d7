package config

import (
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/leeforge/tenantkit/cache"
	"github.com/leeforge/tenantkit/logging"
)

type Validator interface {
	Validate() error
}

type Config struct {
	instance   *viper.Viper
	opts       ConfigOptions
	watchOnce  sync.Once
	watchMutex sync.RWMutex
}

type ConfigOptions struct {
	BasePath  string
	FileName  string
	FileType  string
	EnvPrefix string
	WatchAble bool
	OnChange  func(e fsnotify.Event)
}

// HostConfig describes one tenantkit host process.
type HostConfig struct {
	// SearchPath is the initial search path. Tenants extend it as they load.
	SearchPath []string `mapstructure:"search-path" json:"searchPath" yaml:"search-path" validate:"dive,required"`
	// DocumentRoot is the fallback location of conf/<tenant>/context.xml.
	DocumentRoot string `mapstructure:"document-root" json:"documentRoot" yaml:"document-root" default:"."`
	// FrameworkRoot roots the sources of framework symbols. It is searched
	// before SearchPath.
	FrameworkRoot string `mapstructure:"framework-root" json:"frameworkRoot" yaml:"framework-root"`
	// FreshnessCheck reuses a cached model only when the document is older
	// than it.
	FreshnessCheck bool `mapstructure:"freshness-check" json:"freshnessCheck" yaml:"freshness-check"`
	// InstallSchema writes the bundled schema under DocumentRoot when none
	// can be located.
	InstallSchema bool `mapstructure:"install-schema" json:"installSchema" yaml:"install-schema"`
	// ResolverMemo bounds the number of resolutions the resolver remembers.
	ResolverMemo int `mapstructure:"resolver-memo" json:"resolverMemo" yaml:"resolver-memo" default:"1024" validate:"gte=0"`
	// Tenants are loaded when the host starts.
	Tenants []string       `mapstructure:"tenants" json:"tenants" yaml:"tenants" validate:"dive,required,excludesall=/"`
	Cache   cache.Config   `mapstructure:"cache" json:"cache" yaml:"cache"`
	Logging logging.Config `mapstructure:"logging" json:"logging" yaml:"logging"`
}
