package log

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Level represents logging verbosity
type Level int

const (
	ErrorLevel Level = iota
	InfoLevel
	DebugLevel
	TraceLevel
)

var levelNames = map[Level]string{
	ErrorLevel: "ERROR",
	InfoLevel:  "INFO",
	DebugLevel: "DEBUG",
	TraceLevel: "TRACE",
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return strings.ToLower(name)
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// Logger writes leveled messages to the console and, when a log directory
// is configured, to a timestamped file in that directory.
type Logger struct {
	level      Level
	logFile    *os.File
	mu         sync.Mutex
	stdout     io.Writer
	stderr     io.Writer
	fileLogger *log.Logger
}

// New creates a logger printing to os.Stdout and os.Stderr. An empty logDir
// disables the log file.
func New(level Level, logDir string) (*Logger, error) {
	l := &Logger{
		level:  level,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}

	if logDir != "" {
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}

		logPath := filepath.Join(logDir, fmt.Sprintf("coverage-report-%s.log", time.Now().Format("20060102-150405")))
		f, err := os.Create(logPath)
		if err != nil {
			return nil, fmt.Errorf("create log file: %w", err)
		}
		l.logFile = f
		l.fileLogger = log.New(f, "", log.LstdFlags)
	}

	return l, nil
}

// NewWriter creates a console-only logger writing to w for every level.
func NewWriter(level Level, w io.Writer) *Logger {
	return &Logger{level: level, stdout: w, stderr: w}
}

// Discard returns a logger that drops everything
func Discard() *Logger {
	return NewWriter(ErrorLevel, io.Discard)
}

// SetOutput redirects console output; the log file is unaffected.
func (l *Logger) SetOutput(stdout, stderr io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stdout = stdout
	l.stderr = stderr
}

// Path returns the log file path, or "" when logging to the console only.
func (l *Logger) Path() string {
	if l.logFile == nil {
		return ""
	}
	return l.logFile.Name()
}

// Close closes the log file
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.logFile != nil {
		err := l.logFile.Close()
		l.logFile = nil
		l.fileLogger = nil
		return err
	}
	return nil
}

func (l *Logger) log(level Level, format string, args ...interface{}) {
	if level > l.level {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	msg := fmt.Sprintf(format, args...)

	if l.fileLogger != nil {
		l.fileLogger.Printf("%s: %s", levelNames[level], msg)
	}

	if level == ErrorLevel {
		fmt.Fprintf(l.stderr, "❌ %s\n", msg)
	} else {
		fmt.Fprintf(l.stdout, "%s\n", msg)
	}
}

// always writes a message regardless of level, tagged in the log file.
func (l *Logger) always(tag, prefix, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	msg := fmt.Sprintf(format, args...)

	if l.fileLogger != nil {
		l.fileLogger.Printf("[%s] %s", tag, msg)
	}
	fmt.Fprintf(l.stdout, "%s %s\n", prefix, msg)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.log(ErrorLevel, format, args...)
}

// Info logs an info message
func (l *Logger) Info(format string, args ...interface{}) {
	l.log(InfoLevel, format, args...)
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	l.log(DebugLevel, format, args...)
}

// Trace logs a trace message
func (l *Logger) Trace(format string, args ...interface{}) {
	l.log(TraceLevel, format, args...)
}

// Progress logs a progress message (always shown)
func (l *Logger) Progress(format string, args ...interface{}) {
	l.always("PROGRESS", "⏳", format, args...)
}

// Success logs a success message (always shown)
func (l *Logger) Success(format string, args ...interface{}) {
	l.always("SUCCESS", "✅", format, args...)
}

// Warning logs a warning message (always shown)
func (l *Logger) Warning(format string, args ...interface{}) {
	l.always("WARNING", "⚠️ ", format, args...)
}

// ParseLevel parses a string into a log level
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "error":
		return ErrorLevel, nil
	case "info", "":
		return InfoLevel, nil
	case "debug":
		return DebugLevel, nil
	case "trace":
		return TraceLevel, nil
	default:
		return InfoLevel, fmt.Errorf("invalid log level: %s (valid: error, info, debug, trace)", s)
	}
}
