// Package logger provides the leveled, timestamped console logger used by the
// runner. Lines look like
//
//	[2025-01-02T03:04:05.678Z INFO  ] Uploading test binary...
//
// A line can be re-emitted under an explicit timestamp (see Logger.At), which
// is how remote log entries keep their original creation time.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Level is a log level. It extends zap's levels with OutputLevel.
type Level = zapcore.Level

const (
	LevelDebug = zapcore.DebugLevel
	LevelInfo  = zapcore.InfoLevel
	LevelWarn  = zapcore.WarnLevel
	LevelError = zapcore.ErrorLevel
	LevelFatal = zapcore.FatalLevel

	// OutputLevel carries raw script output. It is never filtered by the
	// configured minimum level.
	OutputLevel = zapcore.DebugLevel - 1
)

// Config holds logger configuration.
type Config struct {
	Level      string // debug, info, warn, error
	Format     string // console, json
	Output     string // stderr, stdout, file, both
	Color      string // auto, always, never
	FilePath   string
	MaxSize    int // MB
	MaxBackups int
	MaxAge     int // days
}

// DefaultConfig returns the console configuration used when Init is never called.
func DefaultConfig() *Config {
	return &Config{
		Level:  "info",
		Format: "console",
		Output: "stderr",
		Color:  "auto",
	}
}

// Logger writes leveled lines through a zap core.
type Logger struct {
	core  zapcore.Core
	level zap.AtomicLevel
	color bool
	now   func() time.Time
}

// New builds a Logger from cfg. Console lines go to stderr unless cfg.Output
// says otherwise.
func New(cfg *Config) *Logger {
	return newLogger(cfg, nil)
}

// NewWithWriter builds a Logger whose console sink is w. Used by tests and by
// callers that capture output.
func NewWithWriter(cfg *Config, w io.Writer) *Logger {
	return newLogger(cfg, w)
}

func newLogger(cfg *Config, w io.Writer) *Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	cfg = normalize(cfg)

	l := &Logger{
		level: zap.NewAtomicLevelAt(parseLevel(cfg.Level)),
		now:   time.Now,
	}

	var console zapcore.WriteSyncer
	var tty *os.File
	switch {
	case w != nil:
		console = zapcore.AddSync(w)
	case cfg.Output == "stdout":
		tty = os.Stdout
		console = zapcore.Lock(os.Stdout)
	default:
		tty = os.Stderr
		console = zapcore.Lock(os.Stderr)
	}
	l.color = useColor(cfg.Color, tty)

	enab := levelEnabler{min: l.level}

	var cores []zapcore.Core
	if cfg.Output != "file" {
		var enc zapcore.Encoder
		if cfg.Format == "json" {
			enc = zapcore.NewJSONEncoder(jsonEncoderConfig())
		} else {
			enc = zapcore.NewConsoleEncoder(consoleEncoderConfig(l.color))
		}
		cores = append(cores, zapcore.NewCore(enc, console, enab))
	}
	if (cfg.Output == "file" || cfg.Output == "both") && cfg.FilePath != "" {
		writer := &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(jsonEncoderConfig()), zapcore.AddSync(writer), enab))
	}

	l.core = zapcore.NewTee(cores...)
	return l
}

// normalize returns a copy of cfg with its mode strings lowercased.
func normalize(cfg *Config) *Config {
	c := *cfg
	c.Format = strings.ToLower(c.Format)
	c.Output = strings.ToLower(c.Output)
	c.Color = strings.ToLower(c.Color)
	return &c
}

// levelEnabler lets OutputLevel through regardless of the minimum level.
type levelEnabler struct {
	min zap.AtomicLevel
}

func (e levelEnabler) Enabled(lvl zapcore.Level) bool {
	return lvl == OutputLevel || e.min.Enabled(lvl)
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// SetLevel sets the minimum level.
func (l *Logger) SetLevel(level Level) {
	l.level.SetLevel(level)
}

// Enabled reports whether lines at level would be written.
func (l *Logger) Enabled(level Level) bool {
	return levelEnabler{min: l.level}.Enabled(level)
}

// Colored reports whether the console sink uses ANSI colours.
func (l *Logger) Colored() bool {
	return l.color
}

func (l *Logger) write(level Level, at time.Time, format string, args ...any) {
	if !l.Enabled(level) {
		return
	}
	if at.IsZero() {
		at = l.now()
	}
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	ent := zapcore.Entry{Level: level, Time: at, Message: msg}
	if ce := l.core.Check(ent, nil); ce != nil {
		ce.Write()
	}
}

func (l *Logger) Debug(format string, args ...any)  { l.write(LevelDebug, time.Time{}, format, args...) }
func (l *Logger) Info(format string, args ...any)   { l.write(LevelInfo, time.Time{}, format, args...) }
func (l *Logger) Warn(format string, args ...any)   { l.write(LevelWarn, time.Time{}, format, args...) }
func (l *Logger) Error(format string, args ...any)  { l.write(LevelError, time.Time{}, format, args...) }
func (l *Logger) Output(format string, args ...any) { l.write(OutputLevel, time.Time{}, format, args...) }

// Fatal writes a FATAL line. It does not exit; the caller decides the
// process status.
func (l *Logger) Fatal(format string, args ...any) { l.write(LevelFatal, time.Time{}, format, args...) }

// At returns an Emitter that stamps every line with t instead of the wall
// clock. A zero t falls back to the wall clock.
func (l *Logger) At(t time.Time) Emitter {
	return Emitter{l: l, at: t}
}

// Sync flushes buffered output.
func (l *Logger) Sync() error {
	return l.core.Sync()
}

// Emitter writes lines under a fixed timestamp.
type Emitter struct {
	l  *Logger
	at time.Time
}

func (e Emitter) Debug(format string, args ...any)  { e.l.write(LevelDebug, e.at, format, args...) }
func (e Emitter) Info(format string, args ...any)   { e.l.write(LevelInfo, e.at, format, args...) }
func (e Emitter) Warn(format string, args ...any)   { e.l.write(LevelWarn, e.at, format, args...) }
func (e Emitter) Error(format string, args ...any)  { e.l.write(LevelError, e.at, format, args...) }
func (e Emitter) Output(format string, args ...any) { e.l.write(OutputLevel, e.at, format, args...) }
func (e Emitter) Fatal(format string, args ...any)  { e.l.write(LevelFatal, e.at, format, args...) }

var (
	std  *Logger
	once sync.Once
	mu   sync.RWMutex
)

// Init installs the process-wide logger. Only the first call has an effect.
func Init(cfg *Config) {
	once.Do(func() {
		mu.Lock()
		std = New(cfg)
		mu.Unlock()
	})
}

// L returns the process-wide logger, initialising it with defaults if needed.
func L() *Logger {
	mu.RLock()
	l := std
	mu.RUnlock()
	if l == nil {
		Init(nil)
		mu.RLock()
		l = std
		mu.RUnlock()
	}
	return l
}

// Replace swaps the process-wide logger and returns a func restoring the
// previous one.
func Replace(l *Logger) func() {
	L()
	mu.Lock()
	prev := std
	std = l
	mu.Unlock()
	return func() {
		mu.Lock()
		std = prev
		mu.Unlock()
	}
}

// SetLevelFromString sets the process-wide minimum level.
func SetLevelFromString(level string) {
	L().SetLevel(parseLevel(level))
}

// EnableDebug enables debug lines.
func EnableDebug() {
	L().SetLevel(LevelDebug)
}

// IsDebugEnabled reports whether debug lines are written.
func IsDebugEnabled() bool {
	return L().Enabled(LevelDebug)
}

func Debug(format string, args ...any)  { L().Debug(format, args...) }
func Info(format string, args ...any)   { L().Info(format, args...) }
func Warn(format string, args ...any)   { L().Warn(format, args...) }
func Error(format string, args ...any)  { L().Error(format, args...) }
func Output(format string, args ...any) { L().Output(format, args...) }
func Fatal(format string, args ...any)  { L().Fatal(format, args...) }

// Sync flushes the process-wide logger.
func Sync() {
	_ = L().Sync()
}

// TimedSink writes whole messages under a per-call timestamp.
type TimedSink struct {
	l *Logger
}

// Sink returns a TimedSink writing through l.
func (l *Logger) Sink() TimedSink {
	return TimedSink{l: l}
}

func (s TimedSink) Error(at time.Time, msg string)  { s.l.At(at).Error("%s", msg) }
func (s TimedSink) Warn(at time.Time, msg string)   { s.l.At(at).Warn("%s", msg) }
func (s TimedSink) Info(at time.Time, msg string)   { s.l.At(at).Info("%s", msg) }
func (s TimedSink) Output(at time.Time, msg string) { s.l.At(at).Output("%s", msg) }
