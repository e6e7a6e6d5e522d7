package host

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/leeforge/tenantkit/appcontext"
	"github.com/leeforge/tenantkit/cache"
	"github.com/leeforge/tenantkit/classloader"
	"github.com/leeforge/tenantkit/config"
	"github.com/leeforge/tenantkit/dbo"
	"github.com/leeforge/tenantkit/errors"
	"github.com/leeforge/tenantkit/json"
	"github.com/leeforge/tenantkit/logging"
	"github.com/leeforge/tenantkit/resource"
	"github.com/leeforge/tenantkit/session"
	tktesting "github.com/leeforge/tenantkit/testing"
	"github.com/leeforge/tenantkit/utils"
)

type fakeHandle struct {
	dsn  dbo.DSN
	user string
}

func (h *fakeHandle) Driver() string { return h.dsn.Driver }
func (h *fakeHandle) User() string   { return h.user }
func (h *fakeHandle) DSN() dbo.DSN   { return h.dsn }
func (h *fakeHandle) DB() *sql.DB    { return nil }
func (h *fakeHandle) Close() error   { return nil }

// recorder is an application: a portable database unit that never dials
// and a Home controller that reports what it saw.
type recorder struct {
	mu        sync.Mutex
	passwords map[string]string
	built     atomic.Int64
	lastIP    atomic.Value
	lastPage  atomic.Value
}

func (a *recorder) units(c *classloader.Catalog) {
	classloader.DefineConvention(c, dbo.UnitPortable, dbo.Constructor(a.open))
	classloader.DefineConvention(c, resource.ControllerSymbol("acme", "Home"), resource.ControllerConstructor(a.home))
}

func (a *recorder) open(dsn dbo.DSN, user, password string) (dbo.Handle, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.passwords == nil {
		a.passwords = make(map[string]string)
	}
	a.passwords[user] = password
	return &fakeHandle{dsn: dsn, user: user}, nil
}

func (a *recorder) home(m *appcontext.Model, _ *resource.Factory) (resource.Controller, error) {
	a.built.Add(1)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a.lastIP.Store(session.ClientIP(r.Context()))
		if c, ok := ControllerFromContext(r); ok {
			a.lastPage.Store(c.Name)
		}
		fmt.Fprintf(w, "home of %s", m.AppName)
	}), nil
}

func newHost(t *testing.T, f *tktesting.Fixture, app *recorder, mutate func(*config.HostConfig), opts ...Option) *Host {
	t.Helper()
	cfg := config.HostConfig{
		SearchPath:   []string{f.Root},
		DocumentRoot: f.Root,
		Cache:        cache.Config{Backend: cache.BackendMemory, Lifetime: time.Hour},
	}
	if mutate != nil {
		mutate(&cfg)
	}
	opts = append([]Option{
		WithLogger(logging.NewNop()),
		WithUnits(app.units),
		WithSafeMode(func() bool { return true }),
		WithExtensions(func(string, string) bool { return true }),
	}, opts...)
	h, err := New(context.Background(), cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func acmeDoc(f *tktesting.Fixture) *tktesting.TenantDoc {
	return tktesting.NewTenantDoc("acme", f.Path("apps")+"/")
}

func TestTenantIsLoadedOnce(t *testing.T) {
	f := tktesting.NewFixture(t)
	f.Write(acmeDoc(f))
	h := newHost(t, f, &recorder{}, nil)

	a, err := h.Tenant("acme")
	require.NoError(t, err)
	b, err := h.Tenant("acme")
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.Equal(t, "acme", a.Name())
	assert.Equal(t, int64(1), a.Context().Parses())
	assert.Equal(t, []string{"acme"}, h.Tenants())
	assert.Contains(t, h.Resolver().Keys(), appcontext.StrategyKey("acme"))
}

func TestConfigurationErrorIsSticky(t *testing.T) {
	f := tktesting.NewFixture(t)
	doc := acmeDoc(f)
	doc.RuntimeVersion = "999.0"
	f.Write(doc)
	h := newHost(t, f, &recorder{}, nil)

	_, err := h.Tenant("acme")
	require.Error(t, err)
	assert.Equal(t, errors.CodeInvalidRuntimeVersion, errors.CodeOf(err))

	doc.RuntimeVersion = "1.0"
	f.Write(doc)
	_, again := h.Tenant("acme")
	assert.Same(t, err, again)
	assert.NotContains(t, h.Resolver().Keys(), appcontext.StrategyKey("acme"))

	tenant, err := h.Reload("acme")
	require.NoError(t, err)
	assert.Equal(t, "acme", tenant.Model().AppName)

	_, err = h.Tenant("ghost")
	assert.Equal(t, errors.CodeMissingConfigFile, errors.CodeOf(err))
}

func TestReloadReleasesResources(t *testing.T) {
	f := tktesting.NewFixture(t)
	doc := acmeDoc(f).Production()
	f.Write(doc)
	h := newHost(t, f, &recorder{}, nil)

	tenant, err := h.Tenant("acme")
	require.NoError(t, err)
	m := tenant.Model()
	_, err = h.Factory().GetLogger(m)
	require.NoError(t, err)
	require.True(t, h.Factory().Cached(m, resource.KindLogger))

	doc.WebRoot = "http://localhost/acme-v2"
	f.Write(doc)
	reloaded, err := h.Reload("acme")
	require.NoError(t, err)

	assert.NotSame(t, tenant, reloaded)
	assert.Equal(t, "http://localhost/acme-v2", reloaded.Model().WebRoot)
	assert.False(t, h.Factory().Cached(m, resource.KindLogger))
}

func TestConcurrentReloadKeepsCurrentStrategy(t *testing.T) {
	f := tktesting.NewFixture(t)
	f.Write(acmeDoc(f))
	h := newHost(t, f, &recorder{}, nil)
	_, err := h.Tenant("acme")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := h.Reload("acme")
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := h.Tenant("acme")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	tenant, err := h.Tenant("acme")
	require.NoError(t, err)
	s, ok := h.Resolver().Strategy(appcontext.StrategyKey("acme"))
	require.True(t, ok, "the reloaded tenant keeps a strategy")
	assert.Same(t, tenant.Context(), s)
}

func TestSessionDatabaseUsesSessionCredentials(t *testing.T) {
	f := tktesting.NewFixture(t)
	f.Write(acmeDoc(f).
		WithDatabase("pdo", "mysql", "db.example:3306", "acme").
		WithSession("db", "strict", "60").
		WithSessionUser("sess", "s-pw"))
	app := &recorder{}
	h := newHost(t, f, app, nil)

	tenant, err := h.Tenant("acme")
	require.NoError(t, err)
	m := tenant.Model()
	assert.Equal(t, session.SecurityStrict, m.Session.Security)
	assert.Equal(t, 60, m.Session.Timeout)

	db, err := h.Factory().GetDatabase(m, resource.RoleSession)
	require.NoError(t, err)
	assert.Equal(t, "sess", db.User())
	assert.Equal(t, "mysql:host=db.example:3306;dbname=acme", db.DSN().String())

	query, err := h.Factory().GetDatabase(m, resource.RoleQuery)
	require.NoError(t, err)
	assert.Equal(t, "query", query.User())

	app.mu.Lock()
	assert.Equal(t, "s-pw", app.passwords["sess"])
	app.mu.Unlock()

	source, ok := h.Resolver().Source(dbo.UnitPortable)
	require.True(t, ok)
	assert.Equal(t, "Tenantkit/DO/PDO.go", source)
}

func serve(t *testing.T, r http.Handler, path, accept string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = "192.0.2.7:4711"
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestRouterServesControllers(t *testing.T) {
	f := tktesting.NewFixture(t)
	f.Write(acmeDoc(f).
		WithController("Home", "/home", "text/html").
		WithController("Missing", "/missing"))
	app := &recorder{}
	h := newHost(t, f, app, nil)

	r, err := h.Router("acme")
	require.NoError(t, err)

	rec := serve(t, r, "/home", "text/html")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "home of acme", rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(TraceIDHeader))
	assert.Equal(t, "192.0.2.7", app.lastIP.Load())
	assert.Equal(t, "Home", app.lastPage.Load())

	for _, accept := range []string{"", "text/*", "application/json, */*;q=0.8"} {
		assert.Equal(t, http.StatusOK, serve(t, r, "/home", accept).Code, accept)
	}
	assert.Equal(t, int64(4), app.built.Load())

	rec = serve(t, r, "/home", "application/json")
	assert.Equal(t, http.StatusNotAcceptable, rec.Code)
	var body errors.AppError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, errors.CodeNotAcceptable, body.Code)

	rec = serve(t, r, "/missing", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, errors.CodeUnknownController, body.Code)

	assert.Equal(t, http.StatusNotFound, serve(t, r, "/elsewhere", "").Code)

	ok, found := h.Metrics().GetMetric("http_requests_total", map[string]string{"tenant": "acme", "status": "200"})
	require.True(t, found)
	assert.Equal(t, float64(4), ok.Value)
}

func TestRouterOverHTTP(t *testing.T) {
	f := tktesting.NewFixture(t)
	f.Write(acmeDoc(f).WithController("Home", "/home", "text/html"))
	logger, logs := tktesting.NewObservedLogger(zapcore.InfoLevel)
	app := &recorder{}
	h := newHost(t, f, app, nil, WithLogger(logger))

	r, err := h.Router("acme")
	require.NoError(t, err)
	client := tktesting.NewHTTPTestClient(t, r)

	resp, body, err := client.Get("/home", map[string]string{"Accept": "text/html", TraceIDHeader: "trace-1"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "home of acme", body)
	assert.Equal(t, "trace-1", resp.Header.Get(TraceIDHeader))
	assert.NotEmpty(t, app.lastIP.Load())

	entries := logs.FilterMessage("http.request.complete").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "acme", fields["tenant"])
	assert.Equal(t, int64(http.StatusOK), fields["status"])
}

func TestHandlerMountsTenantsAndMetrics(t *testing.T) {
	f := tktesting.NewFixture(t)
	f.Write(acmeDoc(f).WithController("Home", "/home", "text/html"))
	logger, _ := tktesting.NewObservedLogger(zapcore.InfoLevel)
	h := newHost(t, f, &recorder{}, func(c *config.HostConfig) {
		c.Tenants = []string{"acme", "ghost"}
	}, WithLogger(logger))

	handler, err := h.Handler()
	require.Error(t, err)
	assert.Equal(t, errors.CodeMissingConfigFile, errors.CodeOf(err))

	rec := serve(t, handler, "/acme/home", "text/html")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "home of acme", rec.Body.String())
	assert.Equal(t, http.StatusNotFound, serve(t, handler, "/ghost/home", "").Code)

	warned, found := h.Metrics().GetMetric("log_entries_total", map[string]string{"level": "warn", "logger": ""})
	require.True(t, found, "the failed load of ghost is counted")
	assert.Equal(t, float64(1), warned.Value)

	rec = serve(t, handler, MetricsPath, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	var snapshot map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshot))
	assert.NotEmpty(t, snapshot)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
	assert.Contains(t, rec.Body.String(), "log_entries_total")
}

func TestRouterReadsReloadedModel(t *testing.T) {
	f := tktesting.NewFixture(t)
	doc := acmeDoc(f).WithController("Home", "/home", "text/html")
	f.Write(doc)
	h := newHost(t, f, &recorder{}, nil)

	r, err := h.Router("acme")
	require.NoError(t, err)
	require.Equal(t, http.StatusNotAcceptable, serve(t, r, "/home", "application/json").Code)

	doc.Controllers[0].MimeTypes = []string{"application/json"}
	f.Write(doc)
	_, err = h.Reload("acme")
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, serve(t, r, "/home", "application/json").Code)
}

func TestRouterListsRoutes(t *testing.T) {
	f := tktesting.NewFixture(t)
	f.Write(acmeDoc(f).WithController("Home", "/home").WithController("Feed", "/feed.xml"))
	h := newHost(t, f, &recorder{}, nil)

	r, err := h.Router("acme")
	require.NoError(t, err)

	var out strings.Builder
	require.NoError(t, utils.PrintRoutes(&out, r))
	assert.Contains(t, out.String(), "/home")
	assert.Contains(t, out.String(), "/feed.xml")

	_, err = h.Router("ghost")
	assert.Equal(t, errors.CodeMissingConfigFile, errors.CodeOf(err))
}

func TestLoadTenantsJoinsErrors(t *testing.T) {
	f := tktesting.NewFixture(t)
	f.Write(acmeDoc(f))
	h := newHost(t, f, &recorder{}, func(c *config.HostConfig) {
		c.Tenants = []string{"acme", "ghost"}
	})

	err := h.LoadTenants()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")
	assert.Equal(t, errors.CodeMissingConfigFile, errors.CodeOf(err))
	assert.Equal(t, []string{"acme", "ghost"}, h.Tenants())
}

func TestInstallSchema(t *testing.T) {
	f := tktesting.NewFixture(t)
	f.RemoveSchema()
	f.Write(acmeDoc(f))
	h := newHost(t, f, &recorder{}, func(c *config.HostConfig) {
		c.InstallSchema = true
	})

	assert.True(t, utils.FileExists(f.Path("conf", "context.schema.json")))
	_, err := h.Tenant("acme")
	require.NoError(t, err)
}

func TestWatchReloadsChangedDocument(t *testing.T) {
	f := tktesting.NewFixture(t)
	doc := acmeDoc(f)
	f.Write(doc)
	logger, logs := tktesting.NewObservedLogger(zapcore.InfoLevel)
	h := newHost(t, f, &recorder{}, nil, WithLogger(logger))

	first, err := h.Tenant("acme")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Watch(ctx) }()

	doc.WebRoot = "http://localhost/acme-watched"
	require.Eventually(t, func() bool {
		f.Write(doc)
		current, err := h.Tenant("acme")
		return err == nil && current != first && current.Model().WebRoot == doc.WebRoot
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.NotZero(t, logs.FilterMessage("tenant reloaded").Len())
}
