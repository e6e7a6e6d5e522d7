package utils

import (
	"bytes"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	chi "github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExists(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "context.xml")
	require.NoError(t, os.WriteFile(file, []byte("<application/>"), 0o644))

	isDir, exists, err := Exists(dir)
	require.NoError(t, err)
	assert.True(t, isDir)
	assert.True(t, exists)

	assert.True(t, FileExists(file))
	assert.False(t, FileExists(dir))
	assert.False(t, FileExists(filepath.Join(dir, "missing")))
}

func TestWithTrailingSlash(t *testing.T) {
	assert.Equal(t, "/srv/app/", WithTrailingSlash("/srv/app"))
	assert.Equal(t, "/srv/app/", WithTrailingSlash("/srv/app//"))
	assert.Equal(t, "", WithTrailingSlash(""))
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"/a", "/b"}, SplitList("/a::/b: "))
	assert.Nil(t, SplitList(""))
}

func TestCasing(t *testing.T) {
	assert.Equal(t, "Mysql", UpperFirst("mysql"))
	assert.Equal(t, "Pgsql", UpperFirst("PGSQL"))
}

func TestPrintRoutes(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/acme/home", func(http.ResponseWriter, *http.Request) {})

	var buf bytes.Buffer
	require.NoError(t, PrintRoutes(&buf, r))
	assert.Contains(t, buf.String(), "GET    /acme/home")
}

func TestPrintJson(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintJson(&buf, map[string]int{"a": 1}))
	assert.Equal(t, "{\n  \"a\": 1\n}\n", buf.String())
}
