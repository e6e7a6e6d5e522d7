package logging

import (
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap/zapcore"
)

// WindowSink writes colored entries to a console, preceded by a title banner
// on first use.
type WindowSink struct {
	mu     sync.Mutex
	out    io.Writer
	title  string
	ident  string
	colors LevelColors
	opened bool
}

// NewWindowSink creates a window sink writing to out.
func NewWindowSink(cfg WindowSinkConfig, ident string, out io.Writer) *WindowSink {
	return &WindowSink{
		out:    out,
		title:  cfg.Title,
		ident:  ident,
		colors: ParseLevelColors(cfg.Colors),
	}
}

func (s *WindowSink) writeEntry(ent zapcore.Entry, fields string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.opened && s.title != "" {
		if _, err := fmt.Fprintf(s.out, "=== %s ===\n", s.title); err != nil {
			return err
		}
	}
	s.opened = true

	level := Colorize(s.colors.LevelColor(ent.Level), fmt.Sprintf("%-5s", ent.Level.CapitalString()))
	_, err := fmt.Fprintf(s.out, "%s %s%s %s\n",
		ent.Time.Format(DefaultSinkTimeFormat), s.ident, level, withFields(ent.Message, fields))
	return err
}

func (s *WindowSink) Sync() error { return nil }

func (s *WindowSink) Close() error { return nil }
