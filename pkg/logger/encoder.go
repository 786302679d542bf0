package logger

import (
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap/zapcore"
)

const timeLayout = "2006-01-02T15:04:05.000Z07:00"

const (
	ansiReset   = "\x1b[0m"
	ansiBold    = "\x1b[1m"
	ansiReverse = "\x1b[7m"
	ansiRed     = "\x1b[31m"
	ansiGreen   = "\x1b[32m"
	ansiYellow  = "\x1b[33m"
	ansiMagenta = "\x1b[35m"
	ansiCyan    = "\x1b[36m"
	ansiWhite   = "\x1b[37m"
)

// levelLabel returns the fixed-width label printed for level.
func levelLabel(level zapcore.Level) string {
	switch level {
	case OutputLevel:
		return "OUTPUT"
	case zapcore.DebugLevel:
		return "DEBUG "
	case zapcore.InfoLevel:
		return "INFO  "
	case zapcore.WarnLevel:
		return "WARN  "
	case zapcore.ErrorLevel:
		return "ERROR "
	default:
		return "FATAL!"
	}
}

func levelColor(level zapcore.Level) string {
	switch level {
	case OutputLevel:
		return ansiBold + ansiWhite
	case zapcore.DebugLevel:
		return ansiBold + ansiMagenta
	case zapcore.InfoLevel:
		return ansiBold + ansiCyan
	case zapcore.WarnLevel:
		return ansiBold + ansiYellow
	case zapcore.ErrorLevel:
		return ansiBold + ansiRed
	default:
		return ansiBold + ansiRed + ansiReverse
	}
}

func bracketTimeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString("[" + t.UTC().Format(timeLayout))
}

func labelLevelEncoder(color bool) zapcore.LevelEncoder {
	return func(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
		label := levelLabel(l)
		if color {
			label = levelColor(l) + label + ansiReset
		}
		enc.AppendString(label + "]")
	}
}

func jsonLevelEncoder(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	if l == OutputLevel {
		enc.AppendString("output")
		return
	}
	enc.AppendString(l.String())
}

func consoleEncoderConfig(color bool) zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:          "time",
		LevelKey:         "level",
		MessageKey:       "msg",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeLevel:      labelLevelEncoder(color),
		EncodeTime:       bracketTimeEncoder,
		EncodeDuration:   zapcore.StringDurationEncoder,
		ConsoleSeparator: " ",
	}
}

func jsonEncoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		MessageKey:     "msg",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    jsonLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
	}
}

// useColor resolves a colour mode. "auto" enables colour only for a terminal
// and only when NO_COLOR is unset.
func useColor(mode string, f *os.File) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	}
	if f == nil || os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func paint(on bool, code, s string) string {
	if !on {
		return s
	}
	return code + s + ansiReset
}

// Bold renders s in bold when l writes colour.
func (l *Logger) Bold(s string) string { return paint(l.color, ansiBold, s) }

// Green renders s in bold green when l writes colour.
func (l *Logger) Green(s string) string { return paint(l.color, ansiBold+ansiGreen, s) }

func (l *Logger) Yellow(s string) string { return paint(l.color, ansiBold+ansiYellow, s) }

func (l *Logger) Red(s string) string { return paint(l.color, ansiBold+ansiRed, s) }

// Bold renders s in bold when the process-wide logger uses colour.
func Bold(s string) string { return L().Bold(s) }

func Green(s string) string { return L().Green(s) }

func Yellow(s string) string { return L().Yellow(s) }

func Red(s string) string { return L().Red(s) }
