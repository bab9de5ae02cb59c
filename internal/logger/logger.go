// Package logger is the process-wide leveled logger for the poll loop.
// Output is one line per event: JSON lines for log collection, or a
// prefixed text format with source locations for interactive runs. The
// format and level are fixed once at startup from configuration.
package logger

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"time"
)

// Level represents a logging level.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "debug"
	case InfoLevel:
		return "info"
	case WarnLevel:
		return "warn"
	case ErrorLevel:
		return "error"
	default:
		return "fatal"
	}
}

// Logger provides leveled logging in one of two line formats.
type Logger struct {
	level    Level
	jsonMode bool
	out      *log.Logger
}

var defaultLogger *Logger

// Init initializes the default logger. Unknown levels fall back to info;
// any format other than "text" emits JSON lines.
func Init(level string, format string) {
	var l Level
	switch strings.ToLower(level) {
	case "debug":
		l = DebugLevel
	case "info":
		l = InfoLevel
	case "warn":
		l = WarnLevel
	case "error":
		l = ErrorLevel
	default:
		l = InfoLevel
	}

	jsonMode := strings.ToLower(format) != "text"
	flags := 0
	if !jsonMode {
		flags = log.LstdFlags | log.Lmicroseconds | log.Lshortfile
	}

	defaultLogger = &Logger{
		level:    l,
		jsonMode: jsonMode,
		out:      log.New(os.Stderr, "", flags),
	}
}

func emit(level Level, format string, args ...interface{}) {
	if defaultLogger == nil || defaultLogger.level > level {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if defaultLogger.jsonMode {
		line, err := json.Marshal(map[string]string{
			"ts":    time.Now().UTC().Format(time.RFC3339Nano),
			"level": level.String(),
			"msg":   msg,
		})
		if err != nil {
			line = []byte(fmt.Sprintf(`{"level":%q,"msg":%q}`, level.String(), msg))
		}
		_ = defaultLogger.out.Output(3, string(line))
		return
	}
	_ = defaultLogger.out.Output(3, "["+strings.ToUpper(level.String())+"] "+msg)
}

func Debug(format string, args ...interface{}) {
	emit(DebugLevel, format, args...)
}

func Info(format string, args ...interface{}) {
	emit(InfoLevel, format, args...)
}

func Warn(format string, args ...interface{}) {
	emit(WarnLevel, format, args...)
}

func Error(format string, args ...interface{}) {
	emit(ErrorLevel, format, args...)
}

// Fatal logs regardless of the configured level and exits.
func Fatal(format string, args ...interface{}) {
	emit(FatalLevel, format, args...)
	os.Exit(1)
}
