package logger

import (
	"bytes"
	"encoding/json"
	"log"
	"strings"
	"testing"
)

func captureLogger(level Level, jsonMode bool, buf *bytes.Buffer) func() {
	prev := defaultLogger
	defaultLogger = &Logger{level: level, jsonMode: jsonMode, out: log.New(buf, "", 0)}
	return func() { defaultLogger = prev }
}

func TestJSONLineOutput(t *testing.T) {
	var buf bytes.Buffer
	defer captureLogger(InfoLevel, true, &buf)()

	Info("net edge %.4f on %s", 0.0524, "mkt-1")

	var line struct {
		TS    string `json:"ts"`
		Level string `json:"level"`
		Msg   string `json:"msg"`
	}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("output is not a JSON line: %v (%q)", err, buf.String())
	}
	if line.Level != "info" {
		t.Errorf("level = %q, want info", line.Level)
	}
	if line.Msg != "net edge 0.0524 on mkt-1" {
		t.Errorf("msg = %q", line.Msg)
	}
	if line.TS == "" {
		t.Error("timestamp missing")
	}
}

func TestTextFormatPrefix(t *testing.T) {
	var buf bytes.Buffer
	defer captureLogger(DebugLevel, false, &buf)()

	Warn("chunk failed")
	if got := buf.String(); !strings.HasPrefix(got, "[WARN] chunk failed") {
		t.Errorf("unexpected text line: %q", got)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	defer captureLogger(WarnLevel, true, &buf)()

	Debug("hidden")
	Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("below-level output emitted: %q", buf.String())
	}
	Error("shown")
	if buf.Len() == 0 {
		t.Error("error output suppressed")
	}
}

func TestUnknownLevelFallsBackToInfo(t *testing.T) {
	Init("verbose", "json")
	if defaultLogger.level != InfoLevel {
		t.Errorf("level = %v, want info", defaultLogger.level)
	}
	if !defaultLogger.jsonMode {
		t.Error("expected json mode by default")
	}
}
