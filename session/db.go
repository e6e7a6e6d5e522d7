package session

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/leeforge/tenantkit/errors"
)

// Table is the session table used by DBStore.
const Table = "sessions"

// DBStore keeps sessions in a table of a tenant database.
type DBStore struct {
	db     *sql.DB
	driver string
	owner  io.Closer
	now    func() time.Time
}

// NewDBStore wraps db. driver is the canonical driver name (mysql, pgsql or
// sqlite) and picks placeholder and column types.
func NewDBStore(db *sql.DB, driver string) *DBStore {
	return &DBStore{db: db, driver: driver, now: time.Now}
}

// Owning makes Close release owner, the handle db belongs to. A store that
// shares a handle with other users is left without an owner.
func (s *DBStore) Owning(owner io.Closer) *DBStore {
	s.owner = owner
	return s
}

// DB returns the database sessions are kept in.
func (s *DBStore) DB() *sql.DB {
	return s.db
}

// Close releases the owning handle, if any.
func (s *DBStore) Close() error {
	if s.owner == nil {
		return nil
	}
	return s.owner.Close()
}

// EnsureSchema creates the session table if it does not exist.
func (s *DBStore) EnsureSchema(ctx context.Context) error {
	blob := "BLOB"
	if s.driver == "pgsql" {
		blob = "BYTEA"
	}
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (id VARCHAR(64) PRIMARY KEY, data %s, updated_at BIGINT NOT NULL)`,
		Table, blob))
	return err
}

func (s *DBStore) Read(ctx context.Context, id string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, s.query(`SELECT data FROM sessions WHERE id = ?`), id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return data, err
}

func (s *DBStore) Write(ctx context.Context, id string, data []byte) error {
	if !ValidID(id) {
		return errInvalidID(id)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := s.now().Unix()
	res, err := tx.ExecContext(ctx, s.query(`UPDATE sessions SET data = ?, updated_at = ? WHERE id = ?`), data, now, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		if _, err := tx.ExecContext(ctx, s.query(`INSERT INTO sessions (id, data, updated_at) VALUES (?, ?, ?)`), id, data, now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *DBStore) Destroy(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, s.query(`DELETE FROM sessions WHERE id = ?`), id)
	return err
}

func (s *DBStore) GC(ctx context.Context, maxLifetime time.Duration) (int, error) {
	cutoff := s.now().Add(-maxLifetime).Unix()
	res, err := s.db.ExecContext(ctx, s.query(`DELETE FROM sessions WHERE updated_at < ?`), cutoff)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// query rewrites ? placeholders to $n for pgsql.
func (s *DBStore) query(q string) string {
	if s.driver != "pgsql" {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func errInvalidID(id string) error {
	return errors.NewValidation("invalid session id").WithDetail("id", id)
}
