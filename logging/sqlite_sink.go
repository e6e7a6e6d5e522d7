package logging

import (
	"database/sql"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap/zapcore"
)

const logTableSchema = `
CREATE TABLE IF NOT EXISTS log_table (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	logtime  TEXT    NOT NULL,
	ident    TEXT    NOT NULL,
	priority INTEGER NOT NULL,
	message  TEXT    NOT NULL
);`

// SQLiteSink writes entries into the log_table of a sqlite database.
// A persistent sink keeps its connection open; otherwise every entry opens
// and closes the database.
type SQLiteSink struct {
	mu       sync.Mutex
	filename string
	ident    string
	db       *sql.DB
}

// NewSQLiteSink prepares the database described by cfg. When Append is false
// existing rows are removed.
func NewSQLiteSink(cfg SQLiteSinkConfig, ident string) (*SQLiteSink, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Filename), 0o755); err != nil {
		return nil, err
	}
	s := &SQLiteSink{filename: cfg.Filename, ident: ident}

	db, err := s.open()
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(logTableSchema); err != nil {
		db.Close()
		return nil, err
	}
	if !cfg.Append {
		if _, err := db.Exec(`DELETE FROM log_table`); err != nil {
			db.Close()
			return nil, err
		}
	}

	if cfg.Persistent {
		s.db = db
	} else if err := db.Close(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteSink) open() (*sql.DB, error) {
	db, err := sql.Open("sqlite3", "file:"+s.filename+"?_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func (s *SQLiteSink) writeEntry(ent zapcore.Entry, fields string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	db := s.db
	if db == nil {
		var err error
		if db, err = s.open(); err != nil {
			return err
		}
		defer db.Close()
	}
	_, err := db.Exec(
		`INSERT INTO log_table (logtime, ident, priority, message) VALUES (?, ?, ?, ?)`,
		ent.Time.Format("2006-01-02 15:04:05"), s.ident, Priority(ent.Level), withFields(ent.Message, fields),
	)
	return err
}

func (s *SQLiteSink) Sync() error { return nil }

func (s *SQLiteSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Priority maps a zap level onto syslog priorities (0 emergency .. 7 debug).
func Priority(level zapcore.Level) int {
	switch level {
	case zapcore.DebugLevel:
		return 7
	case zapcore.InfoLevel:
		return 6
	case zapcore.WarnLevel:
		return 4
	case zapcore.ErrorLevel:
		return 3
	case zapcore.DPanicLevel, zapcore.PanicLevel:
		return 2
	default:
		return 0
	}
}
