package dbo

import (
	"database/sql"
	"fmt"
	"net/url"
	"slices"

	"github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// portableDrivers maps canonical driver names onto database/sql driver names.
var portableDrivers = map[string]string{
	"mysql":  "mysql",
	"pgsql":  "postgres",
	"sqlite": "sqlite3",
}

// OpenPortable opens dsn through database/sql.
func OpenPortable(dsn DSN, user, password string) (Handle, error) {
	name, source, err := portableSource(dsn, user, password)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(name, source)
	if err != nil {
		return nil, err
	}
	if name == "sqlite3" {
		db.SetMaxOpenConns(1)
	}
	return ping(db, dsn, user)
}

func portableSource(dsn DSN, user, password string) (string, string, error) {
	driver := canonical(dsn.Driver)
	name, ok := portableDrivers[driver]
	if !ok {
		return "", "", fmt.Errorf("no portable driver for %q", dsn.Driver)
	}

	switch driver {
	case "mysql":
		return name, mysqlConfig(dsn, user, password).FormatDSN(), nil
	case "pgsql":
		return name, postgresURL(dsn, user, password), nil
	default:
		return name, sqliteSource(dsn), nil
	}
}

func mysqlConfig(dsn DSN, user, password string) *mysql.Config {
	cfg := mysql.NewConfig()
	cfg.User = user
	cfg.Passwd = password
	cfg.Net = "tcp"
	cfg.Addr = dsn.Host
	cfg.DBName = dsn.Schema
	cfg.ParseTime = true
	return cfg
}

func postgresURL(dsn DSN, user, password string) string {
	u := url.URL{
		Scheme: "postgres",
		Host:   dsn.Host,
		Path:   "/" + dsn.Schema,
	}
	if user != "" {
		u.User = url.UserPassword(user, password)
	}
	return u.String()
}

// sqliteSource uses the schema as the database file.
func sqliteSource(dsn DSN) string {
	return "file:" + dsn.Schema + "?_busy_timeout=5000"
}

// Available reports whether a database of the given extension kind and
// driver can be opened by this process.
func Available(ext, driver string) bool {
	d := canonical(driver)
	switch ext {
	case ExtPortable:
		name, ok := portableDrivers[d]
		return ok && slices.Contains(sql.Drivers(), name)
	case ExtNative:
		_, ok := nativeOpeners[d]
		return ok
	default:
		return false
	}
}
