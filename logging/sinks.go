package logging

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// FileSinkConfig configures a plain log file.
type FileSinkConfig struct {
	Filename   string      `json:"filename" validate:"required"`
	Append     bool        `json:"append" default:"true"`
	Mode       os.FileMode `json:"mode" default:"0644"`
	LineFormat string      `json:"lineFormat,omitempty"`
	TimeFormat string      `json:"timeFormat,omitempty"`
}

// SQLiteSinkConfig configures an embedded sqlite log table.
type SQLiteSinkConfig struct {
	Filename   string `json:"filename" validate:"required"`
	Append     bool   `json:"append" default:"true"`
	Persistent bool   `json:"persistent"`
}

// WindowSinkConfig configures a colored console window.
type WindowSinkConfig struct {
	Title  string   `json:"title"`
	Colors []string `json:"colors,omitempty"`
}

// SinkSet is the set of sinks one tenant logs to. Nil entries are absent.
type SinkSet struct {
	File   *FileSinkConfig   `json:"file,omitempty"`
	SQLite *SQLiteSinkConfig `json:"sqlite,omitempty"`
	Window *WindowSinkConfig `json:"window,omitempty"`
}

// Empty reports whether no sink is configured.
func (s SinkSet) Empty() bool {
	return s.File == nil && s.SQLite == nil && s.Window == nil
}

// entryWriter persists one rendered entry.
type entryWriter interface {
	writeEntry(ent zapcore.Entry, fields string) error
	Sync() error
	io.Closer
}

// sinkCore adapts an entryWriter to zapcore.Core.
type sinkCore struct {
	zapcore.LevelEnabler
	out    entryWriter
	fields []zapcore.Field
}

func newSinkCore(level zapcore.LevelEnabler, out entryWriter) *sinkCore {
	return &sinkCore{LevelEnabler: level, out: out}
}

func (c *sinkCore) With(fields []zapcore.Field) zapcore.Core {
	all := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	all = append(all, c.fields...)
	all = append(all, fields...)
	return &sinkCore{LevelEnabler: c.LevelEnabler, out: c.out, fields: all}
}

func (c *sinkCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *sinkCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	all := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	all = append(all, c.fields...)
	all = append(all, fields...)
	return c.out.writeEntry(ent, renderFields(all))
}

func (c *sinkCore) Sync() error {
	return c.out.Sync()
}

// renderFields renders fields as space separated key=value pairs sorted by key.
func renderFields(fields []zapcore.Field) string {
	if len(fields) == 0 {
		return ""
	}
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range fields {
		f.AddTo(enc)
	}
	keys := make([]string, 0, len(enc.Fields))
	for k := range enc.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, enc.Fields[k]))
	}
	return strings.Join(parts, " ")
}

// withFields appends rendered fields to msg.
func withFields(msg, fields string) string {
	if fields == "" {
		return msg
	}
	return msg + " " + fields
}

// SinkLogger is a tenant logger fanning out to its configured sinks.
type SinkLogger struct {
	Logger
	closers []io.Closer
}

// NewSinkLogger builds a logger writing to every sink in set. ident is
// stamped on every entry; level masks what reaches the sinks. An empty set
// yields a logger that discards everything.
func NewSinkLogger(set SinkSet, ident string, level zapcore.LevelEnabler) (*SinkLogger, error) {
	var (
		cores   []zapcore.Core
		closers []io.Closer
	)
	fail := func(err error) (*SinkLogger, error) {
		for _, c := range closers {
			_ = c.Close()
		}
		return nil, err
	}

	if set.File != nil {
		s, err := NewFileSink(*set.File, ident)
		if err != nil {
			return fail(fmt.Errorf("file sink: %w", err))
		}
		cores, closers = append(cores, newSinkCore(level, s)), append(closers, s)
	}
	if set.SQLite != nil {
		s, err := NewSQLiteSink(*set.SQLite, ident)
		if err != nil {
			return fail(fmt.Errorf("sqlite sink: %w", err))
		}
		cores, closers = append(cores, newSinkCore(level, s)), append(closers, s)
	}
	if set.Window != nil {
		s := NewWindowSink(*set.Window, ident, os.Stderr)
		cores, closers = append(cores, newSinkCore(level, s)), append(closers, s)
	}

	return &SinkLogger{
		Logger:  newZapLogger(zap.New(zapcore.NewTee(cores...))),
		closers: closers,
	}, nil
}

// Close flushes and closes every sink.
func (l *SinkLogger) Close() error {
	_ = l.Sync()
	var lastErr error
	for _, c := range l.closers {
		if err := c.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}
