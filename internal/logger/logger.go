// Package logger wraps zerolog.Logger with the constructors and context
// helpers used by the card-catalog commands and services.
//
// Logger embeds zerolog.Logger, so the full zerolog API (Debug, Info, Warn,
// Error, With, ...) is available directly on *Logger.
package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// Output formats accepted by New.
const (
	FormatAuto    = "auto"
	FormatJSON    = "json"
	FormatConsole = "console"
)

// Logger is a thin wrapper around zerolog.Logger.
type Logger struct {
	zerolog.Logger
}

// Options configures New. Zero values mean info level, auto format, stderr.
type Options struct {
	Level  string
	Format string
	Output io.Writer
}

// New constructs a *Logger tagged with the given component name
// (e.g. "build", "serve").
//
// With FormatAuto the logger writes human-readable console output when the
// destination is a terminal and JSON otherwise.
func New(component string, opts Options) *Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(opts.Level)))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	if useConsole(opts.Format, out) {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}

	l := zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Str("component", component).
		Logger()

	return &Logger{l}
}

func useConsole(format string, out io.Writer) bool {
	switch strings.ToLower(format) {
	case FormatConsole:
		return true
	case FormatJSON:
		return false
	}
	f, ok := out.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Nop returns a *Logger that discards all log output.
func Nop() *Logger {
	return &Logger{zerolog.Nop()}
}

// WithField returns a child logger carrying an extra string field.
func (l *Logger) WithField(key, value string) *Logger {
	return &Logger{l.With().Str(key, value).Logger()}
}

// WithContext attaches l to ctx so that FromContext can retrieve it.
func (l *Logger) WithContext(ctx context.Context) context.Context {
	return l.Logger.WithContext(ctx)
}

// FromContext returns the logger stored in ctx by WithContext. When none has
// been attached a disabled logger is returned, so the result is never nil.
func FromContext(ctx context.Context) *Logger {
	zl := zerolog.Ctx(ctx)
	if zl == nil || zl == zerolog.DefaultContextLogger {
		return Nop()
	}
	return &Logger{*zl}
}
