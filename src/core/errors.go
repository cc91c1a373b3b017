package core

import (
	"context"
	"errors"
	"fmt"
)

// ErrConfiguration is the root of all configuration problems; a required path or setting is
// missing or invalid. These are detected before any subprocess is started.
var ErrConfiguration = errors.New("invalid configuration")

// A ConfigurationError describes a single configuration problem.
type ConfigurationError struct {
	Message string
}

// NewConfigurationError returns a new ConfigurationError with a formatted message.
func NewConfigurationError(format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{Message: fmt.Sprintf(format, args...)}
}

func (err *ConfigurationError) Error() string {
	return err.Message
}

// Is implements matching against ErrConfiguration.
func (err *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// An InvalidSourceFileError is returned when a requested source file doesn't exist or is a directory.
type InvalidSourceFileError struct {
	Path string
}

func (err *InvalidSourceFileError) Error() string {
	return fmt.Sprintf("Error while checking source file path %s: does not exist or is not a file", err.Path)
}

// Is implements matching against ErrConfiguration.
func (err *InvalidSourceFileError) Is(target error) bool {
	return target == ErrConfiguration
}

// A ToolExecutionError is returned when the checker exits abnormally without reporting anything
// that would explain it.
type ToolExecutionError struct {
	Executable string
	ExitCode   int
	Stderr     string
	Err        error
}

func (err *ToolExecutionError) Error() string {
	if err.Err != nil {
		return fmt.Sprintf("Error running %s: %s", err.Executable, err.Err)
	}
	return fmt.Sprintf("%s failed with code %d", err.Executable, err.ExitCode)
}

func (err *ToolExecutionError) Unwrap() error {
	return err.Err
}

// A ParseError is returned when a line of checker output looks like a diagnostic but can't be
// understood, which usually means the checker version speaks a different protocol.
type ParseError struct {
	Line       string
	LineNumber int
	Token      string
	Suggestion string
}

func (err *ParseError) Error() string {
	return fmt.Sprintf("Failed to parse line %d of checker output (unknown severity %q): %s%s", err.LineNumber, err.Token, err.Line, err.Suggestion)
}

// IsCancelled returns true if the given error results from the caller cancelling the operation,
// as opposed to anything failing.
func IsCancelled(err error) bool {
	return errors.Is(err, context.Canceled)
}
