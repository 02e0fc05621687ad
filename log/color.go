package log

import "github.com/fatih/color"

var levelColors = map[LogLevel]*color.Color{
	Debug: color.New(color.FgBlue),
	Info:  color.New(color.FgGreen),
	Warn:  color.New(color.FgYellow),
	Error: color.New(color.FgRed),
	Fatal: color.New(color.FgMagenta, color.Bold),
}

// Colorize wraps the message in the terminal colour assigned to the level.
// Colour output is forced on, since the logger decides itself whether the
// writer is a terminal.
func Colorize(l LogLevel, msg string) string {
	c, ok := levelColors[l]
	if !ok {
		return msg
	}

	c.EnableColor()
	return c.Sprint(msg)
}
