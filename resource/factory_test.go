package resource

import (
	"database/sql"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leeforge/tenantkit/appcontext"
	"github.com/leeforge/tenantkit/classloader"
	"github.com/leeforge/tenantkit/dbo"
	"github.com/leeforge/tenantkit/errors"
	"github.com/leeforge/tenantkit/logging"
	"github.com/leeforge/tenantkit/metrics"
	"github.com/leeforge/tenantkit/session"
	"github.com/leeforge/tenantkit/template"
)

type fakeHandle struct {
	dsn      dbo.DSN
	user     string
	password string
	closed   atomic.Bool
}

func (h *fakeHandle) Driver() string { return h.dsn.Driver }
func (h *fakeHandle) User() string   { return h.user }
func (h *fakeHandle) DSN() dbo.DSN   { return h.dsn }
func (h *fakeHandle) DB() *sql.DB    { return nil }
func (h *fakeHandle) Close() error {
	h.closed.Store(true)
	return nil
}

// fakeDatabases defines the portable unit with a constructor that records
// every handle it opens.
type fakeDatabases struct {
	mu     sync.Mutex
	opened []*fakeHandle
	fail   atomic.Bool
}

func (d *fakeDatabases) open(dsn dbo.DSN, user, password string) (dbo.Handle, error) {
	if d.fail.Load() {
		return nil, sql.ErrConnDone
	}
	h := &fakeHandle{dsn: dsn, user: user, password: password}
	d.mu.Lock()
	d.opened = append(d.opened, h)
	d.mu.Unlock()
	return h, nil
}

func (d *fakeDatabases) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.opened)
}

func newFactory(t *testing.T, opts ...Option) (*Factory, *classloader.Catalog, *fakeDatabases) {
	t.Helper()
	catalog := classloader.NewCatalog(nil)
	template.Register(catalog)
	dbs := &fakeDatabases{}
	classloader.DefineConvention(catalog, dbo.UnitPortable, dbo.Constructor(dbs.open))
	return New(classloader.NewResolver(catalog), opts...), catalog, dbs
}

func testModel(debug bool) *appcontext.Model {
	return &appcontext.Model{
		AppName: "acme",
		Debug:   debug,
		AppRoot: "/srv/acme/",
		Database: appcontext.Database{
			Ext: "pdo", Driver: "mysql", Host: "db:3306", Schema: "acme",
			QueryUser: "reader", QueryPassword: "r-pw",
			UpdateUser: "writer", UpdatePassword: "w-pw",
		},
		Session: appcontext.Session{
			Handler: session.HandlerDB, Security: session.SecurityStrict, Timeout: 60,
			Ext: "pdo", Driver: "mysql", Host: "db:3306", Schema: "acme",
			User: "sess", Password: "s-pw",
		},
	}
}

func TestGetDatabaseRoles(t *testing.T) {
	f, _, _ := newFactory(t)
	m := testModel(false)

	for role, user := range map[Role]string{RoleQuery: "reader", RoleUpdate: "writer", RoleSession: "sess"} {
		h, err := f.GetDatabase(m, role)
		require.NoError(t, err, role)
		assert.Equal(t, user, h.User(), role)
		assert.Equal(t, "mysql:host=db:3306;dbname=acme", h.DSN().String(), role)
		assert.True(t, f.Cached(m, string(role)), role)
	}

	_, err := f.GetDatabase(m, Role("adminDB"))
	require.Error(t, err)
	assert.Equal(t, errors.CodeUnknownRole, errors.CodeOf(err))
	assert.True(t, errors.IsType(err, errors.ErrorTypeResource))

	m.Session.Handler = session.HandlerFile
	m.AppName = "other"
	_, err = f.GetDatabase(m, RoleSession)
	assert.Equal(t, errors.CodeUnknownRole, errors.CodeOf(err))
}

func TestDebugBypassesCache(t *testing.T) {
	f, _, dbs := newFactory(t)

	prod := testModel(false)
	a, err := f.GetDatabase(prod, RoleQuery)
	require.NoError(t, err)
	b, err := f.GetDatabase(prod, RoleQuery)
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, 1, dbs.count())

	debug := testModel(true)
	debug.AppName = "debugapp"
	c, err := f.GetDatabase(debug, RoleQuery)
	require.NoError(t, err)
	d, err := f.GetDatabase(debug, RoleQuery)
	require.NoError(t, err)
	assert.NotSame(t, c, d)
	assert.False(t, f.Cached(debug, string(RoleQuery)))
	assert.Equal(t, 3, dbs.count())
}

func TestFailureIsNotCached(t *testing.T) {
	collector := metrics.NewCollector()
	f, _, dbs := newFactory(t, WithMetrics(collector))
	m := testModel(false)

	dbs.fail.Store(true)
	_, err := f.GetDatabase(m, RoleUpdate)
	require.Error(t, err)
	assert.Equal(t, errors.CodeConnectFailed, errors.CodeOf(err))
	assert.ErrorIs(t, err, sql.ErrConnDone)
	assert.False(t, f.Cached(m, string(RoleUpdate)))

	dbs.fail.Store(false)
	h, err := f.GetDatabase(m, RoleUpdate)
	require.NoError(t, err)
	assert.Equal(t, "writer", h.User())

	failed, ok := collector.GetMetric("resource_constructions_total",
		map[string]string{"tenant": "acme", "kind": "updateDB", "result": "error"})
	require.True(t, ok)
	assert.EqualValues(t, 1, failed.Value)
}

func TestUnresolvedDatabaseUnit(t *testing.T) {
	f, _, _ := newFactory(t)
	m := testModel(false)
	m.Database.Ext = dbo.ExtNative

	_, err := f.GetDatabase(m, RoleQuery)
	require.Error(t, err)
	assert.Equal(t, errors.CodeUnresolvedSymbol, errors.CodeOf(err))
	assert.Equal(t, "Tenantkit_DO_Mysql", DatabaseUnit(dbo.ExtNative, "mysql"))
	assert.Equal(t, dbo.UnitPortable, DatabaseUnit(dbo.ExtPortable, "pgsql"))
}

func TestNativeSqliteDatabase(t *testing.T) {
	catalog := classloader.NewCatalog(nil)
	dbo.Register(catalog)
	f := New(classloader.NewResolver(catalog))

	m := testModel(false)
	m.Database = appcontext.Database{
		Ext: dbo.ExtNative, Driver: "sqlite", Schema: filepath.Join(t.TempDir(), "acme.db"),
		QueryUser: "reader", UpdateUser: "writer",
	}
	h, err := f.GetDatabase(m, RoleQuery)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", h.Driver())
	require.NoError(t, h.DB().Ping())

	require.NoError(t, f.ClearCache())
	assert.Error(t, h.DB().Ping(), "cleared handles are closed")
}

func TestClearCacheClosesResources(t *testing.T) {
	f, _, dbs := newFactory(t)
	m := testModel(false)

	_, err := f.GetDatabase(m, RoleQuery)
	require.NoError(t, err)
	require.NoError(t, f.ClearCache())
	assert.False(t, f.Cached(m, string(RoleQuery)))
	assert.True(t, dbs.opened[0].closed.Load())

	_, err = f.GetDatabase(m, RoleQuery)
	require.NoError(t, err)
	assert.Equal(t, 2, dbs.count())
}

func TestGetSkipsCellDroppedWhileWaiting(t *testing.T) {
	f, _, dbs := newFactory(t)
	m := testModel(false)
	key := cacheKey(m, string(RoleQuery))

	dropped := &cell{}
	f.cells.Store(key, dropped)
	dropped.mu.Lock()

	done := make(chan dbo.Handle, 1)
	go func() {
		h, err := f.GetDatabase(m, RoleQuery)
		assert.NoError(t, err)
		done <- h
	}()
	time.Sleep(20 * time.Millisecond)
	f.cells.Delete(key)
	dropped.mu.Unlock()

	h := <-done
	require.NotNil(t, h)
	assert.False(t, dropped.done.Load(), "nothing is built into a dropped cell")
	assert.True(t, f.Cached(m, string(RoleQuery)))

	again, err := f.GetDatabase(m, RoleQuery)
	require.NoError(t, err)
	assert.Same(t, h, again)
	assert.Equal(t, 1, dbs.count())
}

func TestClearTenant(t *testing.T) {
	f, _, _ := newFactory(t)
	acme := testModel(false)
	other := testModel(false)
	other.AppName = "acmeplus"

	_, err := f.GetDatabase(acme, RoleQuery)
	require.NoError(t, err)
	_, err = f.GetDatabase(other, RoleQuery)
	require.NoError(t, err)

	require.NoError(t, f.ClearTenant("acme"))
	assert.False(t, f.Cached(acme, string(RoleQuery)))
	assert.True(t, f.Cached(other, string(RoleQuery)))
}

func TestGetLoggerConstructsOnce(t *testing.T) {
	collector := metrics.NewCollector()
	f, _, _ := newFactory(t, WithMetrics(collector))
	m := testModel(false)
	m.Logger.File = &logging.FileSinkConfig{Filename: filepath.Join(t.TempDir(), "acme", "app.log"), Append: true}

	const n = 32
	loggers := make([]logging.Logger, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			l, err := f.GetLogger(m)
			assert.NoError(t, err)
			loggers[i] = l
		}(i)
	}
	wg.Wait()

	for _, l := range loggers[1:] {
		assert.Same(t, loggers[0], l)
	}
	built, ok := collector.GetMetric("resource_constructions_total",
		map[string]string{"tenant": "acme", "kind": KindLogger, "result": "ok"})
	require.True(t, ok)
	assert.EqualValues(t, 1, built.Value)
	require.NoError(t, f.ClearCache())
}

func TestGetTemplate(t *testing.T) {
	f, catalog, _ := newFactory(t)
	root := t.TempDir()
	dirs := template.Dirs{Templates: filepath.Join(root, "tpl"), Cache: filepath.Join(root, "cache")}

	m := testModel(false)
	_, err := f.GetTemplate(m, "home.html")
	assert.Equal(t, errors.CodeMissingTemplate, errors.CodeOf(err))

	m.Template = &appcontext.Template{Kind: template.KindNative, Dirs: dirs}
	a, err := f.GetTemplate(m, "home.html")
	require.NoError(t, err)
	b, err := f.GetTemplate(m, "home.html")
	require.NoError(t, err)
	assert.NotSame(t, a, b)
	assert.False(t, f.Cached(m, KindTemplate))

	m.Template.Kind = "smarty"
	_, err = f.GetTemplate(m, "")
	assert.Equal(t, errors.CodeUnknownTemplate, errors.CodeOf(err))

	m.Template.Kind = template.KindSprig
	_, err = f.GetTemplate(m, "")
	assert.Equal(t, errors.CodeUnresolvedSymbol, errors.CodeOf(err))

	require.True(t, catalog.Load(template.FamilySource("Sprig")))
	c, err := f.GetTemplate(m, "")
	require.NoError(t, err)
	d, err := f.GetTemplate(m, "")
	require.NoError(t, err)
	assert.Same(t, c, d)
	assert.IsType(t, &template.Sprig{}, c)
}

type pageController struct {
	page string
}

func (c *pageController) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte(c.page))
}

func TestGetController(t *testing.T) {
	f, catalog, _ := newFactory(t)
	classloader.DefineConvention(catalog, ControllerSymbol("acme", "Home"),
		ControllerConstructor(func(m *appcontext.Model, _ *Factory) (Controller, error) {
			return &pageController{page: m.AppName + " home"}, nil
		}))
	m := testModel(false)

	a, err := f.GetController(m, "Home")
	require.NoError(t, err)
	b, err := f.GetController(m, "Home")
	require.NoError(t, err)
	assert.NotSame(t, a, b)

	rec := httptest.NewRecorder()
	a.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "acme home", rec.Body.String())

	_, err = f.GetController(m, "Missing")
	require.Error(t, err)
	assert.Equal(t, errors.CodeUnknownController, errors.CodeOf(err))
}

func TestGetSessionStore(t *testing.T) {
	catalog := classloader.NewCatalog(nil)
	dbo.Register(catalog)
	f := New(classloader.NewResolver(catalog))

	file := testModel(false)
	file.AppName = "filesess"
	file.Session = appcontext.Session{
		Handler: session.HandlerFile, Security: session.SecurityPermissive,
		Directory: t.TempDir(), Filename: "sess_filesess",
	}
	store, err := f.GetSessionStore(file)
	require.NoError(t, err)
	assert.IsType(t, &session.FileStore{}, store)

	strict := testModel(false)
	schema := filepath.Join(t.TempDir(), "sess.db")
	strict.Session.Ext, strict.Session.Driver, strict.Session.Schema = dbo.ExtPortable, "sqlite", schema
	store, err = f.GetSessionStore(strict)
	require.NoError(t, err)
	guard, ok := store.(*session.Guard)
	require.True(t, ok)
	assert.IsType(t, &session.DBStore{}, guard.Unwrap())
	assert.True(t, f.Cached(strict, string(RoleSession)))
	require.NoError(t, f.ClearCache())
}

func TestDebugSessionStoreOwnsItsHandle(t *testing.T) {
	catalog := classloader.NewCatalog(nil)
	dbo.Register(catalog)
	f := New(classloader.NewResolver(catalog))

	m := testModel(true)
	m.Session.Ext, m.Session.Driver = dbo.ExtPortable, "sqlite"
	m.Session.Schema = filepath.Join(t.TempDir(), "sess.db")

	var dbs []*sql.DB
	for range 3 {
		store, err := f.GetSessionStore(m)
		require.NoError(t, err)
		inner := store.(*session.Guard).Unwrap().(*session.DBStore)
		dbs = append(dbs, inner.DB())
		require.NoError(t, store.(io.Closer).Close())
	}
	assert.NotSame(t, dbs[0], dbs[1])
	for _, db := range dbs {
		assert.Error(t, db.Ping(), "closing a debug store closes its pool")
	}
}

func TestCachedSessionStoreSharesSessionHandle(t *testing.T) {
	catalog := classloader.NewCatalog(nil)
	dbo.Register(catalog)
	f := New(classloader.NewResolver(catalog))

	m := testModel(false)
	m.Session.Ext, m.Session.Driver = dbo.ExtPortable, "sqlite"
	m.Session.Schema = filepath.Join(t.TempDir(), "sess.db")

	store, err := f.GetSessionStore(m)
	require.NoError(t, err)
	require.NoError(t, store.(io.Closer).Close())

	h, err := f.GetDatabase(m, RoleSession)
	require.NoError(t, err)
	require.NoError(t, h.DB().Ping(), "the cached session handle outlives the store")

	require.NoError(t, f.ClearCache())
	assert.Error(t, h.DB().Ping())
}
