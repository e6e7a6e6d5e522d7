package dbo

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/leeforge/tenantkit/classloader"
	"github.com/leeforge/tenantkit/utils"
)

var nativeOpeners = map[string]Constructor{
	"mysql":  OpenMysql,
	"pgsql":  OpenPgsql,
	"sqlite": OpenSqlite,
}

// OpenMysql opens dsn with the mysql driver's connector.
func OpenMysql(dsn DSN, user, password string) (Handle, error) {
	connector, err := mysql.NewConnector(mysqlConfig(dsn, user, password))
	if err != nil {
		return nil, err
	}
	return ping(sql.OpenDB(connector), dsn, user)
}

// OpenPgsql opens dsn through pgx.
func OpenPgsql(dsn DSN, user, password string) (Handle, error) {
	cfg, err := pgxConfig(dsn, user, password)
	if err != nil {
		return nil, err
	}
	return ping(stdlib.OpenDB(*cfg), dsn, user)
}

func pgxConfig(dsn DSN, user, password string) (*pgx.ConnConfig, error) {
	cfg, err := pgx.ParseConfig(postgresURL(dsn, user, password))
	if err != nil {
		return nil, fmt.Errorf("parse pgsql dsn %s: %w", dsn, err)
	}
	return cfg, nil
}

// OpenSqlite opens dsn through the sqlite3 driver directly.
func OpenSqlite(dsn DSN, user, _ string) (Handle, error) {
	db := sql.OpenDB(sqliteConnector{source: sqliteSource(dsn), driver: &sqlite3.SQLiteDriver{}})
	db.SetMaxOpenConns(1)
	return ping(db, dsn, user)
}

type sqliteConnector struct {
	source string
	driver *sqlite3.SQLiteDriver
}

func (c sqliteConnector) Connect(context.Context) (driver.Conn, error) {
	return c.driver.Open(c.source)
}

func (c sqliteConnector) Driver() driver.Driver {
	return c.driver
}

// Register defines the portable unit and one native unit per driver.
func Register(catalog *classloader.Catalog) {
	classloader.DefineConvention(catalog, UnitPortable, Constructor(OpenPortable))
	for name, open := range nativeOpeners {
		classloader.DefineConvention(catalog, NativeUnit(name), open)
	}
}

func nativeName(driver string) string {
	return utils.UpperFirst(canonical(driver))
}
