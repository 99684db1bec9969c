// Package logx is a thin level-gated wrapper over the standard library's
// log package: plain Printf-style output rather than a structured logging
// library.
package logx

import (
	"log"
	"os"
)

// Level gates which calls reach the underlying logger.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// Logger wraps a *log.Logger with a minimum level.
type Logger struct {
	min Level
	out *log.Logger
}

// New returns a Logger writing to stderr with the given minimum level.
func New(min Level) *Logger {
	return &Logger{min: min, out: log.New(os.Stderr, "", log.LstdFlags)}
}

// Default is the package-level logger other packages fall back to when no
// explicit Logger is wired in, defaulted to Warn so routine bus-miss/DMA
// chatter is silent unless a caller opts into debug logging via SetLevel.
var Default = New(LevelWarn)

// SetLevel adjusts Default's minimum level.
func SetLevel(l Level) { Default.min = l }

func (l *Logger) log(level Level, prefix, format string, args ...any) {
	if level < l.min {
		return
	}
	l.out.Printf(prefix+format, args...)
}

func (l *Logger) Debugf(format string, args ...any) { l.log(LevelDebug, "debug: ", format, args...) }
func (l *Logger) Infof(format string, args ...any)   { l.log(LevelInfo, "", format, args...) }
func (l *Logger) Warnf(format string, args ...any)   { l.log(LevelWarn, "warning: ", format, args...) }
func (l *Logger) Errorf(format string, args ...any)  { l.log(LevelError, "error: ", format, args...) }

func Debugf(format string, args ...any) { Default.Debugf(format, args...) }
func Warnf(format string, args ...any)  { Default.Warnf(format, args...) }
