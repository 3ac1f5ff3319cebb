package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents different types of errors that can occur in jsprettify
type ErrorType int

const (
	// General errors
	ErrUnknown ErrorType = iota
	ErrInvalidInput
	ErrNotFound
	ErrPermissionDenied
	ErrTimeout

	// Configuration errors
	ErrInvalidConfig

	// Formatting errors
	ErrToolNotAvailable
	ErrStrategyFailed
	ErrAllStrategiesFailed
	ErrOutputWriteFailed

	// Database errors
	ErrDatabaseConnectionFailed
	ErrDatabaseOperationFailed

	// Docker errors
	ErrDockerNotAvailable
	ErrContainerExecutionFailed
)

// PrettifyError represents a jsprettify-specific error with additional context
type PrettifyError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *PrettifyError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the cause of the error
func (e *PrettifyError) Unwrap() error {
	return e.Cause
}

// Is checks if the error is of a specific type
func (e *PrettifyError) Is(target error) bool {
	targetErr, ok := target.(*PrettifyError)
	if !ok {
		return false
	}
	return e.Type == targetErr.Type
}

// WithContext adds context to the error
func (e *PrettifyError) WithContext(key string, value interface{}) *PrettifyError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// GetContext retrieves context value
func (e *PrettifyError) GetContext(key string) (interface{}, bool) {
	if e.Context == nil {
		return nil, false
	}
	val, ok := e.Context[key]
	return val, ok
}

// New creates a new PrettifyError
func New(errType ErrorType, message string) *PrettifyError {
	return &PrettifyError{
		Type:    errType,
		Message: message,
	}
}

// Newf creates a new PrettifyError with formatted message
func Newf(errType ErrorType, format string, args ...interface{}) *PrettifyError {
	return &PrettifyError{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an existing error with PrettifyError context
func Wrap(errType ErrorType, cause error, message string) *PrettifyError {
	return &PrettifyError{
		Type:    errType,
		Message: message,
		Cause:   cause,
	}
}

// Wrapf wraps an existing error with PrettifyError context and formatted message
func Wrapf(errType ErrorType, cause error, format string, args ...interface{}) *PrettifyError {
	return &PrettifyError{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// IsErrorType checks if an error is of a specific PrettifyError type
func IsErrorType(err error, errType ErrorType) bool {
	var prettifyErr *PrettifyError
	if errors.As(err, &prettifyErr) {
		return prettifyErr.Type == errType
	}
	return false
}

// GetErrorType extracts the error type from an error
func GetErrorType(err error) ErrorType {
	var prettifyErr *PrettifyError
	if errors.As(err, &prettifyErr) {
		return prettifyErr.Type
	}
	return ErrUnknown
}

// ExitCode returns the process exit code for an error. A missing input and
// an exhausted fallback chain both exit with 1.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}

	var prettifyErr *PrettifyError
	if errors.As(err, &prettifyErr) {
		switch prettifyErr.Type {
		case ErrInvalidInput, ErrNotFound, ErrAllStrategiesFailed:
			return 1
		case ErrInvalidConfig:
			return 2
		case ErrOutputWriteFailed, ErrPermissionDenied:
			return 3
		case ErrDatabaseConnectionFailed, ErrDatabaseOperationFailed:
			return 4
		case ErrTimeout:
			return 5
		default:
			return 1
		}
	}

	return 1
}

// UserFriendlyMessage returns a user-friendly error message
func UserFriendlyMessage(err error) string {
	if err == nil {
		return ""
	}

	var prettifyErr *PrettifyError
	if errors.As(err, &prettifyErr) {
		switch prettifyErr.Type {
		case ErrInvalidInput:
			return "Invalid input provided. Please check your command and try again."
		case ErrNotFound:
			return prettifyErr.Message
		case ErrPermissionDenied:
			return "Permission denied. Please check your permissions and try again."
		case ErrTimeout:
			return "The operation timed out. Please try again."
		case ErrInvalidConfig:
			return fmt.Sprintf("Invalid configuration: %s", prettifyErr.Message)
		case ErrToolNotAvailable:
			return prettifyErr.Message
		case ErrAllStrategiesFailed:
			return "All formatting strategies failed."
		case ErrOutputWriteFailed:
			return "Failed to write the output file."
		case ErrDatabaseConnectionFailed:
			return "Failed to open the history database."
		case ErrDatabaseOperationFailed:
			return "History database operation failed."
		case ErrDockerNotAvailable:
			return "Docker is not available. Please install Docker and try again."
		case ErrContainerExecutionFailed:
			return "Formatter container failed. Please check container logs for more information."
		default:
			return prettifyErr.Message
		}
	}

	return err.Error()
}

// Suggestion returns a suggestion for resolving the error
func Suggestion(err error) string {
	if err == nil {
		return ""
	}

	var prettifyErr *PrettifyError
	if errors.As(err, &prettifyErr) {
		switch prettifyErr.Type {
		case ErrInvalidInput:
			return "Use 'jsprettify --help' to see available commands and options."
		case ErrNotFound:
			return "Check the input path and try again."
		case ErrInvalidConfig:
			return "Fix the configuration file or remove it to use the defaults."
		case ErrAllStrategiesFailed:
			if prettifyErr.Cause != nil {
				return fmt.Sprintf("Strategy errors: %v. Use 'jsprettify strategies' to see which strategies are available.", prettifyErr.Cause)
			}
			return "Use 'jsprettify strategies' to see which strategies are available."
		case ErrDockerNotAvailable:
			return "Install Docker from https://docs.docker.com/get-docker/"
		case ErrDatabaseConnectionFailed:
			return "Run with --no-cache or check the permissions of the cache directory."
		default:
			if prettifyErr.Cause != nil {
				return fmt.Sprintf("Underlying error: %v", prettifyErr.Cause)
			}
			return "Run with --verbose for more detailed information."
		}
	}

	return "Check the error message and logs for more information."
}

// Common error constructors

// NewInvalidInputError creates an error for invalid input
func NewInvalidInputError(message string) *PrettifyError {
	return New(ErrInvalidInput, message)
}

// NewInputNotFoundError creates an error for a missing input file
func NewInputNotFoundError(path string) *PrettifyError {
	return Newf(ErrNotFound, "File not found: %s", path).
		WithContext("path", path)
}

// NewInvalidConfigError creates an error for an unusable configuration
func NewInvalidConfigError(cause error, path string) *PrettifyError {
	return Wrapf(ErrInvalidConfig, cause, "config %s", path).
		WithContext("path", path)
}

// NewToolNotAvailableError creates an error for a missing external tool
func NewToolNotAvailableError(tool string, cause error) *PrettifyError {
	return Wrapf(ErrToolNotAvailable, cause, "%s is not available", tool).
		WithContext("tool", tool)
}

// NewAllStrategiesFailedError creates the error returned when the fallback chain is exhausted
func NewAllStrategiesFailedError(cause error) *PrettifyError {
	return Wrap(ErrAllStrategiesFailed, cause, "all formatting strategies failed")
}

// NewDockerNotAvailableError creates an error for Docker not being available
func NewDockerNotAvailableError(cause error) *PrettifyError {
	return Wrap(ErrDockerNotAvailable, cause, "Docker is not available")
}

// NewDatabaseConnectionError creates an error for database connection failures
func NewDatabaseConnectionError(cause error) *PrettifyError {
	return Wrap(ErrDatabaseConnectionFailed, cause, "Failed to connect to database")
}

// NewContainerExecutionError creates an error for container execution failures
func NewContainerExecutionError(cause error, containerID string) *PrettifyError {
	return Wrapf(ErrContainerExecutionFailed, cause, "Container %s execution failed", containerID).
		WithContext("container_id", containerID)
}
