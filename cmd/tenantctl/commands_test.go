package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leeforge/tenantkit/appcontext"
	"github.com/leeforge/tenantkit/json"
	tktesting "github.com/leeforge/tenantkit/testing"
)

// hostDir writes a host configuration serving the fixture's tenants from a
// memory cache and returns its directory.
func hostDir(t *testing.T, f *tktesting.Fixture, tenants ...string) string {
	t.Helper()
	dir := t.TempDir()
	content := "search-path: [" + f.Root + "]\n" +
		"document-root: " + f.Root + "\n" +
		"cache:\n  backend: memory\n"
	if len(tenants) > 0 {
		content += "tenants:\n"
		for _, name := range tenants {
			content += "  - " + name + "\n"
		}
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644))
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"check", "locate", "resolve", "routes", "schema"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, sub.Name())
	}

	format := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, format)
	assert.Equal(t, "text", format.DefValue)
}

func TestInvalidFormat(t *testing.T) {
	_, err := run(t, "schema", t.TempDir(), "--format", "yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestCheckReportsEveryConfiguredTenant(t *testing.T) {
	f := tktesting.NewFixture(t)
	f.Write(tktesting.NewTenantDoc("acme", f.Path("apps")+"/").WithController("Home", "/home"))
	dir := hostDir(t, f, "acme", "ghost")

	out, err := run(t, "check", "--config", dir, "--format", "json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 tenants failed")

	var summaries []TenantSummary
	require.NoError(t, json.Unmarshal([]byte(out), &summaries))
	require.Len(t, summaries, 2)

	assert.True(t, summaries[0].OK)
	assert.Equal(t, "acme", summaries[0].Tenant)
	assert.Equal(t, f.Path("conf", "acme", appcontext.DocumentName), summaries[0].Document)
	assert.Equal(t, []string{"/home -> Home"}, summaries[0].Controllers)
	assert.Equal(t, "file/permissive", summaries[0].Session)

	assert.False(t, summaries[1].OK)
	assert.Equal(t, "MISSING_CONFIG_FILE", summaries[1].ErrorCode)
	assert.Equal(t, "configuration", summaries[1].ErrorType)
}

func TestCheckTextOutput(t *testing.T) {
	f := tktesting.NewFixture(t)
	f.Write(tktesting.NewTenantDoc("acme", f.Path("apps")+"/"))

	out, err := run(t, "check", "acme", "--config", hostDir(t, f))
	require.NoError(t, err)
	assert.Contains(t, out, "acme: ok")
	assert.Contains(t, out, "debug:       true")
}

func TestLocateAndResolve(t *testing.T) {
	f := tktesting.NewFixture(t)
	path := f.Write(tktesting.NewTenantDoc("acme", f.Path("apps")+"/"))
	dir := hostDir(t, f)

	out, err := run(t, "locate", "acme", "--config", dir)
	require.NoError(t, err)
	assert.Equal(t, path+"\n", out)

	out, err = run(t, "resolve", "Tenantkit_DO_PDO", "--tenant", "acme", "--config", dir, "--format", "json")
	require.NoError(t, err)
	var resolved map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &resolved))
	assert.Equal(t, "Tenantkit/DO/PDO.go", resolved["source"])

	_, err = run(t, "resolve", "acme_Controller_Nothing", "--config", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unable to resolve")
}

func TestRoutes(t *testing.T) {
	f := tktesting.NewFixture(t)
	f.Write(tktesting.NewTenantDoc("acme", f.Path("apps")+"/").WithController("Feed", "/feed.xml"))

	out, err := run(t, "routes", "acme", "--config", hostDir(t, f))
	require.NoError(t, err)
	assert.Contains(t, out, "GET    /feed.xml")
}

func TestSchemaCommand(t *testing.T) {
	root := t.TempDir()
	out, err := run(t, "schema", root)
	require.NoError(t, err)

	path := filepath.Join(root, "conf", "context.schema.json")
	assert.Equal(t, path+"\n", out)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, appcontext.Schema, data)
}
