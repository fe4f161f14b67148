// Package clog threads a charmbracelet/log logger through
// context.Context, the same pattern matzehuels-stacktower's
// internal/cli/log.go uses for its parse/render commands.
package clog

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"
)

type ctxKey int

const loggerKey ctxKey = 0

// New creates a logger writing to w at level, timestamped the way the
// CLI's --verbose output is formatted.
func New(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// WithLogger attaches l to ctx.
func WithLogger(ctx context.Context, l *log.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext returns the logger attached to ctx, or log.Default() if
// none was attached.
func FromContext(ctx context.Context) *log.Logger {
	if l, ok := ctx.Value(loggerKey).(*log.Logger); ok {
		return l
	}
	return log.Default()
}

// Progress tracks an operation's start time and logs its completion
// with elapsed duration, the way an apply run reports "applied 12
// items (1.3s)".
type Progress struct {
	logger *log.Logger
	start  time.Time
}

// NewProgress starts a progress tracker against l.
func NewProgress(l *log.Logger) *Progress {
	return &Progress{logger: l, start: time.Now()}
}

// Done logs msg with the elapsed time since the tracker started.
func (p *Progress) Done(msg string) {
	p.logger.Infof("%s (%s)", msg, time.Since(p.start).Round(time.Millisecond))
}

// LevelForVerbosity maps a -v/--verbose count to a log level: 0 is
// info, 1 or more is debug.
func LevelForVerbosity(count int) log.Level {
	if count > 0 {
		return log.DebugLevel
	}
	return log.InfoLevel
}
