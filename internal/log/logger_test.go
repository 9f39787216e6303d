package log

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewAppLoggerWithConfig(t *testing.T) {
	var buf bytes.Buffer
	logger := NewAppLoggerWithConfig(&buf, true)
	if logger == nil {
		t.Fatal("logger should not be nil")
	}
	if logger.level != DEBUG {
		t.Errorf("debug mode should set DEBUG level, got %d", logger.level)
	}
	if logger.fileHandle != nil {
		t.Error("writer-backed logger should not hold a file handle")
	}
}

func TestAppLogger_Debug(t *testing.T) {
	tests := []struct {
		name      string
		debugMode bool
		message   string
		expectLog bool
	}{
		{"debug mode prints", true, "debug message", true},
		{"release mode hides debug", false, "should not appear", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewAppLoggerWithConfig(&buf, tt.debugMode)
			logger.Debug(tt.message)
			output := buf.String()
			if strings.Contains(output, tt.message) != tt.expectLog {
				t.Errorf("expected log output=%v, got %q", tt.expectLog, output)
			}
			if tt.expectLog && !strings.Contains(output, "[DEBUG]") {
				t.Error("debug line should carry [DEBUG] prefix")
			}
		})
	}
}

func TestAppLogger_LevelPrefixes(t *testing.T) {
	tests := []struct {
		name   string
		log    func(l *AppLogger)
		prefix string
		text   string
	}{
		{"info", func(l *AppLogger) { l.Info("battle %s started", "b-1") }, "[INFO]", "battle b-1 started"},
		{"warn", func(l *AppLogger) { l.Warn("fallback after %d errors", 3) }, "[WARN]", "fallback after 3 errors"},
		{"error", func(l *AppLogger) { l.Error("save failed: %v", "boom") }, "[ERROR]", "save failed: boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.log(NewAppLoggerWithConfig(&buf, false))
			output := buf.String()
			if !strings.Contains(output, tt.prefix) {
				t.Errorf("expected prefix %s in %q", tt.prefix, output)
			}
			if !strings.Contains(output, tt.text) {
				t.Errorf("expected formatted text %q in %q", tt.text, output)
			}
		})
	}
}

func TestAppLogger_Named(t *testing.T) {
	var buf bytes.Buffer
	root := NewAppLoggerWithConfig(&buf, false)
	root.Named("arena").Named("store").Info("hello")
	if !strings.Contains(buf.String(), "[INFO] [arena.store] hello") {
		t.Errorf("component tag missing: %q", buf.String())
	}

	buf.Reset()
	root.Info("plain")
	if strings.Contains(buf.String(), "[arena") {
		t.Errorf("parent logger must not inherit child component: %q", buf.String())
	}
}

func TestAppLogger_LevelThreshold(t *testing.T) {
	var buf bytes.Buffer
	logger := NewAppLoggerWithConfig(&buf, false)
	logger.level = WARN
	logger.Info("hidden")
	logger.Warn("shown")
	output := buf.String()
	if strings.Contains(output, "hidden") {
		t.Error("INFO should be filtered at WARN level")
	}
	if !strings.Contains(output, "shown") {
		t.Error("WARN should pass at WARN level")
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"debug":   DEBUG,
		"INFO":    INFO,
		"warning": WARN,
		" error ": ERROR,
		"":        INFO,
		"verbose": INFO,
	}
	for input, want := range tests {
		if got := ParseLevel(input); got != want {
			t.Errorf("ParseLevel(%q) = %d, want %d", input, got, want)
		}
	}
}

func TestAppLogger_NilSafety(t *testing.T) {
	var logger *AppLogger
	logger.Debug("no panic")
	logger.Info("no panic")
	logger.Warn("no panic")
	logger.Error("no panic")
	if logger.Named("x") != nil {
		t.Error("Named on nil logger should return nil")
	}
	if err := logger.Close(); err != nil {
		t.Errorf("closing nil logger should not fail: %v", err)
	}
}

func TestContainsPathTraversal(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		expected bool
	}{
		{"normal path", "/var/log/app.log", false},
		{"parent segment", "/var/../etc/passwd", true},
		{"leading parent", "../secret.txt", true},
		{"current dir", "./local.log", false},
		{"windows parent", "..\\config.ini", true},
		{"empty", "", false},
		{"dotted file name", "/var/log/app.2024.log", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := containsPathTraversal(tt.path); got != tt.expected {
				t.Errorf("containsPathTraversal(%q) = %v, want %v", tt.path, got, tt.expected)
			}
		})
	}
}

func TestCreateLogger_DebugFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arena.log")
	t.Setenv("DEBUG_FILE", path)
	t.Setenv("GIN_MODE", "debug")

	logger := CreateLogger()
	logger.Debug("written to file")
	if err := logger.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "written to file") {
		t.Errorf("debug file missing line: %q", string(data))
	}
}

func TestIsDebug(t *testing.T) {
	tests := []struct {
		ginMode  string
		expected bool
	}{
		{"debug", true},
		{"release", false},
		{"test", false},
	}
	for _, tt := range tests {
		t.Run(tt.ginMode, func(t *testing.T) {
			t.Setenv("GIN_MODE", tt.ginMode)
			if got := IsDebug(); got != tt.expected {
				t.Errorf("IsDebug() = %v, want %v", got, tt.expected)
			}
		})
	}
}
