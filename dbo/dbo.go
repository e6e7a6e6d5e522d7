// Package dbo opens the database handles tenants are configured with.
//
// Two families of units exist. The portable unit (Tenantkit_DO_PDO) opens
// any driver registered with database/sql. Native units
// (Tenantkit_DO_<Driver>) build the connection with the driver's own
// configuration API.
package dbo

import (
	"database/sql"
	"fmt"
	"strings"
)

// Extension kinds.
const (
	ExtPortable = "pdo"
	ExtNative   = "native"
)

// Unit symbols registered by Register.
const (
	UnitPortable = "Tenantkit_DO_PDO"
	unitNative   = "Tenantkit_DO_"
)

// DSN identifies a database independent of the credentials used to reach it.
type DSN struct {
	Driver string `json:"driver"`
	Host   string `json:"host"`
	Schema string `json:"schema"`
}

// String renders driver:host=H;dbname=S.
func (d DSN) String() string {
	return fmt.Sprintf("%s:host=%s;dbname=%s", d.Driver, d.Host, d.Schema)
}

// Handle is an open, pinged database connection pool.
type Handle interface {
	Driver() string
	User() string
	DSN() DSN
	DB() *sql.DB
	Close() error
}

// Constructor opens a handle for dsn with the given credentials.
type Constructor func(dsn DSN, user, password string) (Handle, error)

// NativeUnit returns the unit symbol of the native implementation for driver.
func NativeUnit(driver string) string {
	return unitNative + nativeName(driver)
}

type handle struct {
	driver string
	user   string
	dsn    DSN
	db     *sql.DB
}

func (h *handle) Driver() string { return h.driver }
func (h *handle) User() string   { return h.user }
func (h *handle) DSN() DSN       { return h.dsn }
func (h *handle) DB() *sql.DB    { return h.db }
func (h *handle) Close() error   { return h.db.Close() }

// ping verifies the pool and closes it on failure. Dial and read timeouts
// are whatever the driver configuration sets.
func ping(db *sql.DB, dsn DSN, user string) (Handle, error) {
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect %s as %s: %w", dsn, user, err)
	}
	return &handle{driver: canonical(dsn.Driver), user: user, dsn: dsn, db: db}, nil
}

// canonical folds driver aliases onto mysql, pgsql and sqlite.
func canonical(driver string) string {
	switch d := strings.ToLower(strings.TrimSpace(driver)); d {
	case "postgres", "postgresql", "pgx":
		return "pgsql"
	case "sqlite3":
		return "sqlite"
	default:
		return d
	}
}
