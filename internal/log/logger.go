package log

import (
	"io"
	"log"
	"os"
	"strings"
	"sync"

	"modelarena/internal/core"
)

// LogLevel defines the severity level for log messages.
type LogLevel int

// Log level constants.
const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

// bootstrapLogger reports problems found while the logger itself is being set up.
var bootstrapLogger = log.New(os.Stderr, "", log.LstdFlags)

// AppLogger is the application logger implementation.
type AppLogger struct {
	logger     *log.Logger
	level      LogLevel
	component  string
	fileHandle *os.File
	mu         *sync.Mutex
}

// NewAppLoggerWithConfig creates a logger instance with configuration.
func NewAppLoggerWithConfig(output io.Writer, debugMode bool) *AppLogger {
	level := INFO
	if debugMode {
		level = DEBUG
	}
	return &AppLogger{
		logger: log.New(output, "", log.LstdFlags),
		level:  level,
		mu:     &sync.Mutex{},
	}
}

// Named returns a logger that tags every line with the component name.
// The returned logger shares output and file handle with its parent.
func (l *AppLogger) Named(component string) *AppLogger {
	if l == nil {
		return nil
	}
	child := *l
	if l.component != "" {
		child.component = l.component + "." + component
	} else {
		child.component = component
	}
	return &child
}

func (l *AppLogger) printf(level LogLevel, tag, format string, args ...any) {
	if l == nil || level < l.level {
		return
	}
	prefix := tag + " "
	if l.component != "" {
		prefix += "[" + l.component + "] "
	}
	l.logger.Printf(prefix+format, args...)
}

// Debug logs a message at DEBUG level.
func (l *AppLogger) Debug(format string, args ...any) {
	l.printf(DEBUG, "[DEBUG]", format, args...)
}

// Info logs a message at INFO level.
func (l *AppLogger) Info(format string, args ...any) {
	l.printf(INFO, "[INFO]", format, args...)
}

// Warn logs a message at WARN level.
func (l *AppLogger) Warn(format string, args ...any) {
	l.printf(WARN, "[WARN]", format, args...)
}

// Error logs a message at ERROR level.
func (l *AppLogger) Error(format string, args ...any) {
	l.printf(ERROR, "[ERROR]", format, args...)
}

// Fatal logs a message at FATAL level and terminates the process.
func (l *AppLogger) Fatal(format string, args ...any) {
	if l != nil {
		l.logger.Fatalf("[FATAL] "+format, args...)
	} else {
		bootstrapLogger.Fatalf("[FATAL] "+format, args...)
	}
}

// Close safely closes log file handle.
func (l *AppLogger) Close() error {
	if l == nil || l.mu == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.fileHandle != nil {
		err := l.fileHandle.Close()
		l.fileHandle = nil
		return err
	}
	return nil
}

// ParseLevel maps a level name to a LogLevel. Unknown names map to INFO.
func ParseLevel(name string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return DEBUG
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	default:
		return INFO
	}
}

// containsPathTraversal checks if path contains parent-directory segments.
func containsPathTraversal(path string) bool {
	for _, pattern := range []string{"../", "..\\", "/..", "\\.."} {
		if strings.Contains(path, pattern) {
			return true
		}
	}
	return path == ".."
}

// createDebugFileOutput creates debug file output, falls back gracefully on failure.
func createDebugFileOutput() (io.Writer, *os.File) {
	debugFile := os.Getenv("DEBUG_FILE")
	if debugFile == "" {
		return os.Stdout, nil
	}

	if len(debugFile) > core.MaxDebugFilePathLength {
		bootstrapLogger.Printf("[WARN] DEBUG_FILE path too long, falling back to stdout")
		return os.Stdout, nil
	}

	if containsPathTraversal(debugFile) {
		bootstrapLogger.Printf("[WARN] DEBUG_FILE contains path traversal characters, falling back to stdout")
		return os.Stdout, nil
	}

	//nolint:gosec // G304: debugFile from env var, validated by containsPathTraversal
	file, err := os.OpenFile(debugFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, core.FilePermissionReadWrite)
	if err != nil {
		bootstrapLogger.Printf("[WARN] Failed to open DEBUG_FILE '%s': %v, falling back to stdout", debugFile, err)
		return os.Stdout, nil
	}

	return file, file
}

// IsDebug returns whether the app is running in debug mode.
func IsDebug() bool {
	return os.Getenv("GIN_MODE") == "debug"
}

// CreateLogger creates the process logger. GIN_MODE=debug forces DEBUG;
// otherwise LOG_LEVEL picks the threshold.
func CreateLogger() *AppLogger {
	level := ParseLevel(os.Getenv("LOG_LEVEL"))
	if IsDebug() {
		level = DEBUG
	}
	output, fileHandle := createDebugFileOutput()

	return &AppLogger{
		logger:     log.New(output, "", log.LstdFlags),
		level:      level,
		fileHandle: fileHandle,
		mu:         &sync.Mutex{},
	}
}

var _ core.Logger = (*AppLogger)(nil)
