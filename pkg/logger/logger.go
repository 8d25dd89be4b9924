// Package logger provides opinionated slog construction for botstream.
//
// Interactive commands log through the pretty handler on stderr. Long running
// ones, like the bot simulator, can switch to JSON. Libraries accept a
// *slog.Logger and fall back to Nop.
package logger

import (
	"io"
	"log/slog"
	"os"

	charmlog "github.com/charmbracelet/log"
)

// config is the resolved set of Options for New.
type config struct {
	level     slog.Level
	pretty    bool
	json      bool
	source    bool
	component string
	writer    io.Writer
}

// New builds a *slog.Logger. Without options it logs text at Info level to
// os.Stdout.
func New(opts ...Option) *slog.Logger {
	c := &config{
		level:  slog.LevelInfo,
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.writer == nil {
		c.writer = os.Stdout
	}

	l := slog.New(newHandler(c))
	if c.component != "" {
		l = l.With("component", c.component)
	}
	return l
}

func newHandler(c *config) slog.Handler {
	switch {
	case c.json:
		return slog.NewJSONHandler(c.writer, &slog.HandlerOptions{
			Level:     c.level,
			AddSource: c.source,
		})
	case c.pretty:
		return charmlog.NewWithOptions(c.writer, charmlog.Options{
			Level:           charmlog.Level(c.level),
			ReportTimestamp: true,
			ReportCaller:    c.source,
		})
	default:
		return slog.NewTextHandler(c.writer, &slog.HandlerOptions{
			Level:     c.level,
			AddSource: c.source,
		})
	}
}

// Nop returns a logger that discards everything.
func Nop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
