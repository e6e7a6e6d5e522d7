package dbo

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leeforge/tenantkit/classloader"
)

func TestDSNString(t *testing.T) {
	dsn := DSN{Driver: "mysql", Host: "db.internal", Schema: "acme"}
	assert.Equal(t, "mysql:host=db.internal;dbname=acme", dsn.String())
}

func TestNativeUnit(t *testing.T) {
	assert.Equal(t, "Tenantkit_DO_Mysql", NativeUnit("mysql"))
	assert.Equal(t, "Tenantkit_DO_Pgsql", NativeUnit("postgres"))
	assert.Equal(t, "Tenantkit_DO_Sqlite", NativeUnit("SQLITE3"))
}

func TestAvailable(t *testing.T) {
	assert.True(t, Available(ExtPortable, "mysql"))
	assert.True(t, Available(ExtPortable, "pgsql"))
	assert.True(t, Available(ExtPortable, "sqlite"))
	assert.True(t, Available(ExtNative, "pgsql"))
	assert.False(t, Available(ExtPortable, "oci8"))
	assert.False(t, Available(ExtNative, "mssql"))
	assert.False(t, Available("odbc", "mysql"))
}

func TestPortableSources(t *testing.T) {
	name, src, err := portableSource(DSN{Driver: "mysql", Host: "db:3306", Schema: "shop"}, "reader", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "mysql", name)
	assert.Contains(t, src, "reader:s3cret@tcp(db:3306)/shop")

	name, src, err = portableSource(DSN{Driver: "pgsql", Host: "db:5432", Schema: "shop"}, "reader", "p@ss")
	require.NoError(t, err)
	assert.Equal(t, "postgres", name)
	assert.Equal(t, "postgres://reader:p%40ss@db:5432/shop", src)

	_, _, err = portableSource(DSN{Driver: "oci8"}, "", "")
	assert.Error(t, err)
}

func TestPgxConfig(t *testing.T) {
	cfg, err := pgxConfig(DSN{Driver: "pgsql", Host: "db:5433", Schema: "shop"}, "writer", "pw")
	require.NoError(t, err)
	assert.Equal(t, "db", cfg.Host)
	assert.Equal(t, uint16(5433), cfg.Port)
	assert.Equal(t, "shop", cfg.Database)
	assert.Equal(t, "writer", cfg.User)
	assert.Equal(t, "pw", cfg.Password)
}

func TestOpenSqlite(t *testing.T) {
	dsn := DSN{Driver: "sqlite", Schema: filepath.Join(t.TempDir(), "acme.db")}

	for name, open := range map[string]Constructor{"portable": OpenPortable, "native": OpenSqlite} {
		t.Run(name, func(t *testing.T) {
			h, err := open(dsn, "query", "")
			require.NoError(t, err)
			defer h.Close()

			assert.Equal(t, "sqlite", h.Driver())
			assert.Equal(t, "query", h.User())
			assert.Equal(t, dsn, h.DSN())

			_, err = h.DB().Exec(`CREATE TABLE IF NOT EXISTS t (id INTEGER)`)
			require.NoError(t, err)
		})
	}
}

func TestOpenFailureIsReported(t *testing.T) {
	_, err := OpenPortable(DSN{Driver: "sqlite", Schema: filepath.Join(t.TempDir(), "missing", "dir", "x.db")}, "q", "")
	require.Error(t, err)
}

// deadlineConnector records whether a connection attempt carried a deadline.
type deadlineConnector struct {
	dials       atomic.Int32
	hadDeadline atomic.Bool
}

func (c *deadlineConnector) Connect(ctx context.Context) (driver.Conn, error) {
	c.dials.Add(1)
	_, ok := ctx.Deadline()
	c.hadDeadline.Store(ok)
	return nopConn{}, nil
}

func (c *deadlineConnector) Driver() driver.Driver { return nil }

type nopConn struct{}

func (nopConn) Prepare(string) (driver.Stmt, error) { return nil, errors.ErrUnsupported }
func (nopConn) Close() error                        { return nil }
func (nopConn) Begin() (driver.Tx, error)           { return nil, errors.ErrUnsupported }

func TestPingLeavesTimeoutsToDriver(t *testing.T) {
	connector := &deadlineConnector{}
	h, err := ping(sql.OpenDB(connector), DSN{Driver: "mysql", Host: "db:3306", Schema: "acme"}, "q")
	require.NoError(t, err)
	defer h.Close()

	assert.EqualValues(t, 1, connector.dials.Load())
	assert.False(t, connector.hadDeadline.Load(), "the connection attempt has no deadline of its own")
	assert.Zero(t, mysqlConfig(DSN{Host: "db:3306"}, "q", "").Timeout)
}

func TestRegisterDefinesUnits(t *testing.T) {
	catalog := classloader.NewCatalog(nil)
	Register(catalog)
	r := classloader.NewResolver(catalog)

	open, err := classloader.Lookup[Constructor](r, UnitPortable)
	require.NoError(t, err)
	assert.NotNil(t, open)

	for _, driver := range []string{"mysql", "pgsql", "sqlite"} {
		_, err := classloader.Lookup[Constructor](r, NativeUnit(driver))
		require.NoError(t, err, driver)
	}
	assert.True(t, catalog.Included("Tenantkit/DO/PDO.go"))
}
