package config

import (
	"fmt"
	"path/filepath"

	"github.com/leeforge/tenantkit/logging"
	"github.com/leeforge/tenantkit/utils"
)

// LoadHost reads the host configuration from the layered files described by
// opts, applies defaults and validates it.
func LoadHost(optsArr ...ConfigOptions) (*Config, *HostConfig, error) {
	c, err := NewConfig(optsArr...)
	if err != nil {
		return nil, nil, err
	}

	host := &HostConfig{Logging: logging.DefaultConfig()}
	if err := c.BindWithDefaults(host); err != nil {
		return nil, nil, err
	}
	host.normalize(c.opts.BasePath)

	if err := c.Validate(host); err != nil {
		return nil, nil, err
	}
	return c, host, nil
}

// normalize splits list-valued environment overrides and anchors relative
// directories at base.
func (h *HostConfig) normalize(base string) {
	var dirs []string
	for _, entry := range h.SearchPath {
		for _, dir := range utils.SplitList(entry) {
			dirs = append(dirs, anchor(base, dir))
		}
	}
	h.SearchPath = dirs
	h.DocumentRoot = anchor(base, h.DocumentRoot)
	if h.FrameworkRoot != "" {
		h.FrameworkRoot = anchor(base, h.FrameworkRoot)
	}
}

func anchor(base, dir string) string {
	if filepath.IsAbs(dir) {
		return filepath.Clean(dir)
	}
	return filepath.Join(base, dir)
}

func (h *HostConfig) Validate() error {
	seen := make(map[string]struct{}, len(h.Tenants))
	for _, tenant := range h.Tenants {
		if _, dup := seen[tenant]; dup {
			return fmt.Errorf("tenant %q is listed twice", tenant)
		}
		seen[tenant] = struct{}{}
	}
	if h.Cache.Lifetime < 0 {
		return fmt.Errorf("cache lifetime %s is negative", h.Cache.Lifetime)
	}
	return nil
}
