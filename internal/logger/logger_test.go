// Package logger tests verify the [Handler] line format, value quoting,
// level filtering and naming, attribute grouping, and [New] file/console
// output.
package logger

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func lastLine(buf *bytes.Buffer) string {
	return strings.TrimRight(buf.String(), "\r\n")
}

// ///////////////////////////////////////////////
// Handler Output Format
// ///////////////////////////////////////////////

func TestHandler_Format(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, LevelInfo))

	logger.Info("style created", "style", "Brand/Primary")

	line := lastLine(&buf)
	if !strings.Contains(line, "[INFO] style created") {
		t.Errorf("expected level and message, got %q", line)
	}
	if !strings.Contains(line, "| style=Brand/Primary") {
		t.Errorf("expected attr, got %q", line)
	}
	if !strings.HasSuffix(strings.Split(line, " [")[0], "Z") {
		t.Errorf("expected UTC timestamp, got %q", line)
	}
}

func TestHandler_NoAttrs(t *testing.T) {
	var buf bytes.Buffer
	slog.New(NewHandler(&buf, LevelInfo)).Info("no attrs")
	if strings.Contains(lastLine(&buf), "|") {
		t.Errorf("expected no separator, got %q", lastLine(&buf))
	}
}

func TestHandler_QuotesValues(t *testing.T) {
	var buf bytes.Buffer
	slog.New(NewHandler(&buf, LevelInfo)).Info("entry", "name", "Sky Blue", "value", "rgb(1, 2, 3)", "n", 3)

	line := lastLine(&buf)
	for _, want := range []string{`name="Sky Blue"`, `value="rgb(1, 2, 3)"`, "n=3"} {
		if !strings.Contains(line, want) {
			t.Errorf("expected %s in %q", want, line)
		}
	}
}

// ///////////////////////////////////////////////
// Levels
// ///////////////////////////////////////////////

func TestHandler_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, LevelWarn))

	logger.Info("filtered")
	logger.Warn("kept")

	out := buf.String()
	if strings.Contains(out, "filtered") {
		t.Error("info record should be filtered at warn level")
	}
	if !strings.Contains(out, "kept") {
		t.Error("warn record should be written")
	}
}

func TestHandler_CustomLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, LevelTrace))

	Trace(context.Background(), logger, "trace msg")
	Fail(context.Background(), logger, "fail msg")

	out := buf.String()
	if !strings.Contains(out, "[TRACE] trace msg") || !strings.Contains(out, "[FAIL] fail msg") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestLevelNames(t *testing.T) {
	tests := []struct {
		level slog.Level
		want  string
	}{
		{LevelTrace, "TRACE"},
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{LevelFail, "FAIL"},
	}
	for _, tt := range tests {
		if got := levelName(tt.level); got != tt.want {
			t.Errorf("levelName(%d) = %q, want %q", tt.level, got, tt.want)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"trace", LevelTrace},
		{"TRACE", LevelTrace},
		{"debug", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"error", LevelError},
		{"fail", LevelFail},
		{"bogus", LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.want {
			t.Errorf("ParseLevel(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

// ///////////////////////////////////////////////
// WithAttrs / WithGroup
// ///////////////////////////////////////////////

func TestHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	h := NewHandler(&buf, LevelInfo).WithAttrs([]slog.Attr{slog.String("palette", "Brand")})
	slog.New(h).Info("entry", "color", "Primary")

	if !strings.Contains(lastLine(&buf), "palette=Brand, color=Primary") {
		t.Errorf("expected pre-applied attr first, got %q", lastLine(&buf))
	}
}

func TestHandler_WithGroup(t *testing.T) {
	var buf bytes.Buffer
	h := NewHandler(&buf, LevelInfo).WithGroup("fetch").WithGroup("http")
	slog.New(h).Info("request", "status", 200)

	if !strings.Contains(lastLine(&buf), "fetch.http.status=200") {
		t.Errorf("expected nested group prefix, got %q", lastLine(&buf))
	}
}

func TestHandler_WithGroupEmpty(t *testing.T) {
	h := NewHandler(&bytes.Buffer{}, LevelInfo)
	if h.WithGroup("") != h {
		t.Error("WithGroup(\"\") should return the same handler")
	}
}

func TestHandler_SharedMutex(t *testing.T) {
	var buf bytes.Buffer
	h := NewHandler(&buf, LevelInfo)
	h2 := h.WithAttrs([]slog.Attr{slog.String("k", "v")}).(*Handler)
	if h.mu != h2.mu {
		t.Fatal("derived handler should share the mutex")
	}

	l1, l2 := slog.New(h), slog.New(h2)
	var wg sync.WaitGroup
	for range 25 {
		wg.Add(2)
		go func() { defer wg.Done(); l1.Info("one") }()
		go func() { defer wg.Done(); l2.Info("two") }()
	}
	wg.Wait()

	lines := strings.Split(strings.TrimRight(buf.String(), "\r\n"), "\n")
	if len(lines) != 50 {
		t.Errorf("expected 50 lines, got %d", len(lines))
	}
}

// ///////////////////////////////////////////////
// New
// ///////////////////////////////////////////////

func TestNewWritesFileAndConsole(t *testing.T) {
	path := filepath.Join(t.TempDir(), "swatchbook.log")
	var console bytes.Buffer

	logger, closer := New(Options{Path: path, Level: LevelInfo, MaxSizeMB: 1, Console: &console})
	logger.Info("palette applied", "palette", "Brand")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), "palette applied") {
		t.Errorf("file output missing record: %q", data)
	}
	if !strings.Contains(console.String(), "palette applied") {
		t.Errorf("console output missing record: %q", console.String())
	}
}

func TestNewWithoutOutputs(t *testing.T) {
	logger, closer := New(Options{Level: LevelInfo})
	logger.Info("discarded")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
