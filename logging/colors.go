package logging

import "strings"

// Color represents a terminal ANSI color escape code.
type Color = string

// Reset code
const (
	Reset Color = "\033[0m"
)

// Foreground colors
const (
	Black   Color = "\033[30m"
	Red     Color = "\033[31m"
	Green   Color = "\033[32m"
	Yellow  Color = "\033[33m"
	Blue    Color = "\033[34m"
	Purple  Color = "\033[35m"
	Cyan    Color = "\033[36m"
	White   Color = "\033[37m"
	Gray    Color = "\033[90m"
	Default Color = "\033[39m"
)

// Bold foreground colors
const (
	BoldRed   Color = "\033[1;31m"
	BoldWhite Color = "\033[1;37m"
)

// Background colors
const (
	BgRed Color = "\033[41m"
)

var colorNames = map[string]Color{
	"black":   Black,
	"red":     Red,
	"green":   Green,
	"yellow":  Yellow,
	"blue":    Blue,
	"purple":  Purple,
	"magenta": Purple,
	"cyan":    Cyan,
	"white":   White,
	"gray":    Gray,
	"grey":    Gray,
}

// ColorByName returns the color for a plain color name such as "red".
func ColorByName(name string) (Color, bool) {
	c, ok := colorNames[strings.ToLower(strings.TrimSpace(name))]
	return c, ok
}

// Colorize wraps text with the given color and reset code.
func Colorize(color Color, text string) string {
	return color + text + Reset
}

// Combine combines multiple colors/styles into one.
// Example: Combine(BoldWhite, BgRed) for bold white text on red background.
func Combine(colors ...Color) Color {
	var result Color
	for _, c := range colors {
		result += c
	}
	return result
}
