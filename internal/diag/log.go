package diag

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
)

// LogLevel orders the verbosity levels honored by LLHD_LOG.
type LogLevel int

const (
	LogTrace LogLevel = iota
	LogDebug
	LogInfo
	LogWarn
	LogError
	logOff
)

func parseLogLevel(s string) LogLevel {
	switch strings.ToLower(s) {
	case "trace":
		return LogTrace
	case "debug":
		return LogDebug
	case "info":
		return LogInfo
	case "warn", "warning":
		return LogWarn
	case "error":
		return LogError
	default:
		return logOff
	}
}

// Logger is a minimal leveled logger for one subsystem, gated by the
// LLHD_LOG environment variable (spec.md §6). Each subsystem
// (parser, verify, opt, sim) constructs its own Logger rather than
// sharing one mutable global.
type Logger struct {
	subsystem string
	threshold LogLevel
}

// NewLogger builds a logger for subsystem, reading LLHD_LOG once at
// construction time.
func NewLogger(subsystem string) *Logger {
	return &Logger{subsystem: subsystem, threshold: parseLogLevel(os.Getenv("LLHD_LOG"))}
}

func (l *Logger) log(level LogLevel, tag string, colorFn func(a ...interface{}) string, format string, args ...interface{}) {
	if level < l.threshold {
		return
	}
	fmt.Fprintf(os.Stderr, "%s [%s] %s\n", colorFn(tag), l.subsystem, fmt.Sprintf(format, args...))
}

func (l *Logger) Trace(format string, args ...interface{}) {
	l.log(LogTrace, "trace", color.New(color.Faint).SprintFunc(), format, args...)
}
func (l *Logger) Debug(format string, args ...interface{}) {
	l.log(LogDebug, "debug", color.New(color.FgBlue).SprintFunc(), format, args...)
}
func (l *Logger) Info(format string, args ...interface{}) {
	l.log(LogInfo, "info", color.New(color.FgGreen).SprintFunc(), format, args...)
}
func (l *Logger) Warn(format string, args ...interface{}) {
	l.log(LogWarn, "warn", color.New(color.FgYellow, color.Bold).SprintFunc(), format, args...)
}
func (l *Logger) Error(format string, args ...interface{}) {
	l.log(LogError, "error", color.New(color.FgRed, color.Bold).SprintFunc(), format, args...)
}
