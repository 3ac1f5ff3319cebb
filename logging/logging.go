package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

// Logger provides structured logging capabilities
type Logger struct {
	mu         sync.Mutex
	level      LogLevel
	output     *log.Logger
	fileOutput *log.Logger
	runID      string
	input      string
}

// LogEntry represents a structured log entry
type LogEntry struct {
	Timestamp time.Time              `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	RunID     string                 `json:"run_id,omitempty"`
	Input     string                 `json:"input,omitempty"`
	Component string                 `json:"component,omitempty"`
	Duration  *time.Duration         `json:"duration,omitempty"`
	Error     string                 `json:"error,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

var (
	// Global logger instance
	globalLogger *Logger
	initOnce     sync.Once
)

// GetLogger returns the global logger instance
func GetLogger() *Logger {
	initOnce.Do(func() {
		globalLogger = NewLogger(INFO, "")
	})
	return globalLogger
}

// NewLogger creates a new logger instance writing to stderr
func NewLogger(level LogLevel, logFile string) *Logger {
	return NewLoggerWithOutput(level, os.Stderr, logFile)
}

// NewLoggerWithOutput creates a logger writing to w, and to logFile when set
func NewLoggerWithOutput(level LogLevel, w io.Writer, logFile string) *Logger {
	logger := &Logger{
		level:  level,
		output: log.New(w, "", 0),
	}

	if logFile != "" {
		if fileLogger, err := setupFileLogger(logFile); err == nil {
			logger.fileOutput = fileLogger
		} else {
			logger.output.Printf("Failed to setup file logging: %v", err)
		}
	}

	return logger
}

// setupFileLogger creates a file-based logger
func setupFileLogger(logFile string) (*log.Logger, error) {
	dir := filepath.Dir(logFile)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	return log.New(file, "", 0), nil
}

// WithRun returns a logger sharing l's outputs that tags every entry with
// the run ID and input path. Concurrent runs each get their own.
func (l *Logger) WithRun(runID, input string) *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	return &Logger{
		level:      l.level,
		output:     l.output,
		fileOutput: l.fileOutput,
		runID:      runID,
		input:      input,
	}
}

// Level returns the minimum level that is written
func (l *Logger) Level() LogLevel {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

// log formats and outputs a log message
func (l *Logger) log(level LogLevel, component, message string, metadata map[string]interface{}) {
	if level < l.level {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	_, file, line, ok := runtime.Caller(2)
	if ok {
		file = filepath.Base(file)
	}

	errText := ""
	if err, ok := metadata["error"]; ok {
		errText = fmt.Sprintf("%v", err)
	}

	var duration *time.Duration
	if d, ok := metadata["duration"].(time.Duration); ok {
		duration = &d
	}

	entry := LogEntry{
		Timestamp: time.Now(),
		Level:     level.String(),
		Message:   message,
		RunID:     l.runID,
		Input:     l.input,
		Component: component,
		Duration:  duration,
		Metadata:  metadata,
		Error:     errText,
	}

	logMessage := l.formatLogMessage(entry, level, file, line)

	l.output.Println(logMessage)

	if l.fileOutput != nil {
		l.fileOutput.Println(logMessage)
	}
}

// formatLogMessage formats a log entry into a string
func (l *Logger) formatLogMessage(entry LogEntry, level LogLevel, file string, line int) string {
	var sb strings.Builder

	sb.WriteString(entry.Timestamp.Format("2006-01-02 15:04:05.000"))
	sb.WriteString(" ")

	sb.WriteString(level.Color())
	sb.WriteString(fmt.Sprintf("%-5s", entry.Level))
	sb.WriteString("\033[0m")
	sb.WriteString(" ")

	if entry.RunID != "" {
		sb.WriteString(fmt.Sprintf("[%s]", entry.RunID))
	}
	if entry.Component != "" {
		sb.WriteString(fmt.Sprintf("[%s]", entry.Component))
	}
	if entry.RunID != "" || entry.Component != "" {
		sb.WriteString(" ")
	}

	sb.WriteString(entry.Message)

	if entry.Input != "" {
		sb.WriteString(fmt.Sprintf(" input=%s", entry.Input))
	}

	if file != "" && line > 0 {
		sb.WriteString(fmt.Sprintf(" (%s:%d)", file, line))
	}

	if entry.Duration != nil {
		sb.WriteString(fmt.Sprintf(" [duration: %v]", *entry.Duration))
	}

	if entry.Error != "" {
		sb.WriteString(fmt.Sprintf(" [error: %s]", entry.Error))
	}

	return sb.String()
}

// Debug logs a debug message
func (l *Logger) Debug(component, message string, metadata ...map[string]interface{}) {
	meta := mergeMetadata(metadata...)
	l.log(DEBUG, component, message, meta)
}

// Info logs an info message
func (l *Logger) Info(component, message string, metadata ...map[string]interface{}) {
	meta := mergeMetadata(metadata...)
	l.log(INFO, component, message, meta)
}

// Warn logs a warning message
func (l *Logger) Warn(component, message string, metadata ...map[string]interface{}) {
	meta := mergeMetadata(metadata...)
	l.log(WARN, component, message, meta)
}

// Error logs an error message
func (l *Logger) Error(component, message string, err error, metadata ...map[string]interface{}) {
	meta := mergeMetadata(metadata...)
	if err != nil {
		if meta == nil {
			meta = make(map[string]interface{})
		}
		meta["error"] = err.Error()
	}
	l.log(ERROR, component, message, meta)
}

// Fatal logs a fatal message and exits
func (l *Logger) Fatal(component, message string, err error, metadata ...map[string]interface{}) {
	meta := mergeMetadata(metadata...)
	if err != nil {
		if meta == nil {
			meta = make(map[string]interface{})
		}
		meta["error"] = err.Error()
	}
	l.log(FATAL, component, message, meta)
	os.Exit(1)
}

// Timer measures one operation and logs its duration when stopped
type Timer struct {
	logger    *Logger
	component string
	name      string
	startTime time.Time
}

// StartTimer starts timing an operation
func (l *Logger) StartTimer(component, name string) *Timer {
	return &Timer{
		logger:    l,
		component: component,
		name:      name,
		startTime: time.Now(),
	}
}

// Stop logs the elapsed time at debug level and returns it
func (t *Timer) Stop() time.Duration {
	duration := time.Since(t.startTime)
	t.logger.Debug(t.component, fmt.Sprintf("%s completed in %v", t.name, duration), map[string]interface{}{
		"operation": t.name,
		"duration":  duration,
	})
	return duration
}

// mergeMetadata merges multiple metadata maps
func mergeMetadata(maps ...map[string]interface{}) map[string]interface{} {
	if len(maps) == 0 {
		return nil
	}
	if len(maps) == 1 {
		return maps[0]
	}

	result := make(map[string]interface{})
	for _, m := range maps {
		for k, v := range m {
			result[k] = v
		}
	}
	return result
}

// ParseLevel converts a level name such as "warn" to a LogLevel
func ParseLevel(name string) (LogLevel, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBUG":
		return DEBUG, nil
	case "INFO", "":
		return INFO, nil
	case "WARN", "WARNING":
		return WARN, nil
	case "ERROR":
		return ERROR, nil
	case "FATAL":
		return FATAL, nil
	default:
		return INFO, fmt.Errorf("unknown log level %q", name)
	}
}

// String returns the string representation of a log level
func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// Color returns the ANSI color code for a log level
func (l LogLevel) Color() string {
	switch l {
	case DEBUG:
		return "\033[36m" // Cyan
	case INFO:
		return "\033[32m" // Green
	case WARN:
		return "\033[33m" // Yellow
	case ERROR:
		return "\033[31m" // Red
	case FATAL:
		return "\033[35m" // Magenta
	default:
		return "\033[0m" // Reset
	}
}

// Convenience functions for global logger
func Debug(component, message string, metadata ...map[string]interface{}) {
	GetLogger().Debug(component, message, metadata...)
}

func Info(component, message string, metadata ...map[string]interface{}) {
	GetLogger().Info(component, message, metadata...)
}

func Warn(component, message string, metadata ...map[string]interface{}) {
	GetLogger().Warn(component, message, metadata...)
}

func Error(component, message string, err error, metadata ...map[string]interface{}) {
	GetLogger().Error(component, message, err, metadata...)
}

func Fatal(component, message string, err error, metadata ...map[string]interface{}) {
	GetLogger().Fatal(component, message, err, metadata...)
}
