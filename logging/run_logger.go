package logging

import (
	"fmt"
	"sync/atomic"
	"time"
)

var runSeq atomic.Uint64

// RunLogger provides specialized logging for a single prettify run
type RunLogger struct {
	logger    *Logger
	runID     string
	input     string
	startTime time.Time
}

// NewRunLogger creates a run logger tagged with a fresh run ID
func NewRunLogger(logger *Logger, input string) *RunLogger {
	runID := GenerateRunID()
	return &RunLogger{
		logger:    logger.WithRun(runID, input),
		runID:     runID,
		input:     input,
		startTime: time.Now(),
	}
}

// RunID returns the identifier shared by every entry of this run
func (rl *RunLogger) RunID() string {
	return rl.runID
}

// Logger returns the run-tagged logger
func (rl *RunLogger) Logger() *Logger {
	return rl.logger
}

// LogRunStart logs the beginning of a run
func (rl *RunLogger) LogRunStart(output string) {
	rl.logger.Info("run", "Starting prettify run", map[string]interface{}{
		"output":    output,
		"timestamp": rl.startTime.Format(time.RFC3339),
	})
}

// LogRunEnd logs the completion of a run
func (rl *RunLogger) LogRunEnd(success bool, strategy string) {
	status := "completed"
	if !success {
		status = "failed"
	}

	rl.logger.Info("run", fmt.Sprintf("Prettify run %s", status), map[string]interface{}{
		"status":   status,
		"strategy": strategy,
		"duration": time.Since(rl.startTime),
	})
}

// LogCacheHit logs a result served from the cache
func (rl *RunLogger) LogCacheHit(strategy string) {
	rl.logger.Info("cache", "Using cached result", map[string]interface{}{
		"strategy": strategy,
	})
}

// LogCacheMiss logs a cache lookup that found nothing
func (rl *RunLogger) LogCacheMiss() {
	rl.logger.Debug("cache", "No cached result")
}

// StrategyStarted logs the start of one strategy attempt
func (rl *RunLogger) StrategyStarted(name string) {
	rl.logger.Debug("strategy", fmt.Sprintf("Trying %s", name), map[string]interface{}{
		"strategy": name,
	})
}

// StrategyFailed logs a strategy failure; the chain moves on
func (rl *RunLogger) StrategyFailed(name string, err error, duration time.Duration) {
	rl.logger.Warn("strategy", fmt.Sprintf("%s failed, trying fallback", name), map[string]interface{}{
		"strategy": name,
		"duration": duration,
		"error":    err,
	})
}

// StrategySucceeded logs the strategy whose output is used
func (rl *RunLogger) StrategySucceeded(name string, duration time.Duration, outputBytes int) {
	rl.logger.Info("strategy", fmt.Sprintf("Using %s", name), map[string]interface{}{
		"strategy":     name,
		"duration":     duration,
		"output_bytes": outputBytes,
	})
}

// LogOutputWritten logs the output file write
func (rl *RunLogger) LogOutputWritten(path string, size int) {
	rl.logger.Info("output", "Written output file", map[string]interface{}{
		"path":  path,
		"bytes": size,
	})
}

// LogValidation logs the advisory syntax check result
func (rl *RunLogger) LogValidation(err error) {
	if err == nil {
		rl.logger.Info("validate", "Syntax check passed")
		return
	}
	rl.logger.Warn("validate", "Syntax check failed (but file written)", map[string]interface{}{
		"error": err,
	})
}

// LogError logs an error that occurred during the run
func (rl *RunLogger) LogError(component, message string, err error, metadata map[string]interface{}) {
	rl.logger.Error(component, message, err, metadata)
}

// LogWarning logs a warning during the run
func (rl *RunLogger) LogWarning(component, message string, metadata map[string]interface{}) {
	rl.logger.Warn(component, message, metadata)
}

// GenerateRunID generates a run ID that stays unique across concurrent runs
func GenerateRunID() string {
	return fmt.Sprintf("R%d-%d", time.Now().Unix(), runSeq.Add(1))
}
