package logging

import "go.uber.org/zap/zapcore"

// LevelColors maps log levels to colors for the window sink.
// Zero values fall back to the defaults.
type LevelColors struct {
	Debug Color
	Info  Color
	Warn  Color
	Error Color
	Fatal Color
}

// DefaultLevelColors returns the default level colors.
func DefaultLevelColors() LevelColors {
	return LevelColors{
		Debug: Gray,
		Info:  Green,
		Warn:  Yellow,
		Error: Red,
		Fatal: Combine(BoldWhite, BgRed),
	}
}

// ParseLevelColors builds level colors from names listed in level order
// (debug info warn error fatal). Unknown names keep the default.
func ParseLevelColors(names []string) LevelColors {
	lc := DefaultLevelColors()
	slots := []*Color{&lc.Debug, &lc.Info, &lc.Warn, &lc.Error, &lc.Fatal}
	for i, name := range names {
		if i >= len(slots) {
			break
		}
		if c, ok := ColorByName(name); ok {
			*slots[i] = c
		}
	}
	return lc
}

// LevelColor returns the color for a log level.
func (lc LevelColors) LevelColor(level zapcore.Level) Color {
	switch {
	case level <= zapcore.DebugLevel:
		return lc.Debug
	case level == zapcore.InfoLevel:
		return lc.Info
	case level == zapcore.WarnLevel:
		return lc.Warn
	case level == zapcore.ErrorLevel:
		return lc.Error
	default:
		return lc.Fatal
	}
}
