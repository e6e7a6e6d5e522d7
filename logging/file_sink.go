package logging

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/valyala/fasttemplate"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	// DefaultLineFormat places time, ident, level and message.
	DefaultLineFormat = "{time} {ident} [{level}] {message}"
	// DefaultSinkTimeFormat is the time layout used when none is configured.
	DefaultSinkTimeFormat = "Jan 02 15:04:05"
)

// FileSink appends formatted lines to a rotated log file.
type FileSink struct {
	mu         sync.Mutex
	out        *lumberjack.Logger
	line       *fasttemplate.Template
	timeFormat string
	ident      string
}

// NewFileSink opens the file described by cfg. When Append is false the
// file is truncated first.
func NewFileSink(cfg FileSinkConfig, ident string) (*FileSink, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Filename), 0o755); err != nil {
		return nil, err
	}
	mode := cfg.Mode
	if mode == 0 {
		mode = 0o644
	}
	flags := os.O_CREATE | os.O_WRONLY
	if !cfg.Append {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(cfg.Filename, flags, mode)
	if err != nil {
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, err
	}
	if err := os.Chmod(cfg.Filename, mode); err != nil {
		return nil, err
	}

	lineFormat := cfg.LineFormat
	if lineFormat == "" {
		lineFormat = DefaultLineFormat
	}
	line, err := fasttemplate.NewTemplate(lineFormat, "{", "}")
	if err != nil {
		return nil, err
	}
	timeFormat := cfg.TimeFormat
	if timeFormat == "" {
		timeFormat = DefaultSinkTimeFormat
	}

	return &FileSink{
		out:        &lumberjack.Logger{Filename: cfg.Filename, LocalTime: true},
		line:       line,
		timeFormat: timeFormat,
		ident:      ident,
	}, nil
}

func (s *FileSink) writeEntry(ent zapcore.Entry, fields string) error {
	line := s.line.ExecuteString(map[string]any{
		"time":    ent.Time.Format(s.timeFormat),
		"ident":   s.ident,
		"level":   ent.Level.String(),
		"message": withFields(ent.Message, fields),
		"logger":  ent.LoggerName,
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.out.Write([]byte(line + "\n"))
	return err
}

func (s *FileSink) Sync() error { return nil }

func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.out.Close()
}
