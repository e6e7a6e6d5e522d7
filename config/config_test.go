package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func testOptions(dir string) ConfigOptions {
	opts := DefaultConfigOptions()
	opts.BasePath = dir
	return opts
}

func TestLoadHostAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "config.yaml", `
search-path:
  - /srv/lib
  - vendor
tenants: [acme, globex]
`)

	_, host, err := LoadHost(testOptions(dir))
	require.NoError(t, err)

	assert.Equal(t, []string{"/srv/lib", filepath.Join(dir, "vendor")}, host.SearchPath)
	assert.Equal(t, dir, host.DocumentRoot)
	assert.Equal(t, []string{"acme", "globex"}, host.Tenants)
	assert.Equal(t, "file", host.Cache.Backend)
	assert.Equal(t, 2*time.Hour, host.Cache.Lifetime)
	assert.Equal(t, "127.0.0.1", host.Cache.Redis.Host)
	assert.Equal(t, "info", host.Logging.Level)
	assert.False(t, host.FreshnessCheck)
}

func TestLoadHostLayersLocalFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "config.yaml", `
document-root: /var/www
cache:
  backend: file
  lifetime: 30m
`)
	writeFile(t, dir, "config.local.yaml", `
freshness-check: true
cache:
  backend: memory
`)

	c, host, err := LoadHost(testOptions(dir))
	require.NoError(t, err)

	assert.Equal(t, "/var/www", host.DocumentRoot)
	assert.True(t, host.FreshnessCheck)
	assert.Equal(t, "memory", host.Cache.Backend)
	assert.Equal(t, 30*time.Minute, host.Cache.Lifetime)
	assert.Len(t, c.Files(), 2)
}

func TestLoadHostEnvironmentOverrides(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "config.yaml", `
document-root: /var/www
search-path: [/srv/lib]
cache:
  redis:
    key-prefix: "tk:"
`)
	t.Setenv("TENANTKIT_DOCUMENT_ROOT", "/srv/www")
	t.Setenv("TENANTKIT_SEARCH_PATH", "/a:/b")
	t.Setenv("TENANTKIT_CACHE_REDIS_KEY_PREFIX", "other:")

	_, host, err := LoadHost(testOptions(dir))
	require.NoError(t, err)

	assert.Equal(t, "/srv/www", host.DocumentRoot)
	assert.Equal(t, []string{"/a", "/b"}, host.SearchPath)
	assert.Equal(t, "other:", host.Cache.Redis.KeyPrefix)
}

func TestLoadHostRejectsInvalidConfig(t *testing.T) {
	cases := map[string]string{
		"unknown backend":   "cache:\n  backend: memcached\n",
		"duplicate tenant":  "tenants: [acme, acme]\n",
		"tenant with path":  "tenants: [../acme]\n",
		"negative lifetime": "cache:\n  lifetime: -1m\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, dir, "config.yaml", content)

			_, _, err := LoadHost(testOptions(dir))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "validation failed")
		})
	}
}

func TestNewConfigWithoutFiles(t *testing.T) {
	_, err := NewConfig(testOptions(t.TempDir()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No valid configuration files")
}

func TestBindRejectsNil(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "config.yaml", "tenants: [acme]\n")
	c, err := NewConfig(testOptions(dir))
	require.NoError(t, err)

	require.Error(t, c.Bind(nil))

	var nilConfig *Config
	require.Error(t, nilConfig.Bind(&HostConfig{}))
}

func TestGetAndSet(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "config.yaml", "document-root: /var/www\n")
	c, err := NewConfig(testOptions(dir))
	require.NoError(t, err)

	assert.Equal(t, "/var/www", c.Get("document-root"))
	c.Set("document-root", "/tmp/www")
	assert.Equal(t, "/tmp/www", c.Get("document-root"))
}
