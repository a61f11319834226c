package cli

import (
	"errors"
	"fmt"

	"mercator-hq/correlator/pkg/config"
)

// Exit codes returned by the correlator binary.
const (
	ExitOK     = 0
	ExitFailed = 1
	ExitConfig = 2
	ExitUsage  = 64
)

// ConfigError represents an error in configuration.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("config error: %s", e.Message)
	}
	return fmt.Sprintf("config error in %s: %s", e.Field, e.Message)
}

// CommandError represents an error from a command execution.
type CommandError struct {
	Command string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %s failed: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// UsageError is returned for invalid flags or arguments.
type UsageError struct {
	Message string
}

func (e *UsageError) Error() string {
	return e.Message
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{
		Field:   field,
		Message: message,
	}
}

// NewCommandError creates a new CommandError.
func NewCommandError(command string, err error) *CommandError {
	return &CommandError{
		Command: command,
		Err:     err,
	}
}

// NewUsageError creates a UsageError with a formatted message.
func NewUsageError(format string, args ...any) *UsageError {
	return &UsageError{Message: fmt.Sprintf(format, args...)}
}

// ConfigErrors flattens a configuration load error into one ConfigError per
// invalid field. Errors that are not validation failures yield a single
// ConfigError without a field.
func ConfigErrors(err error) []*ConfigError {
	if err == nil {
		return nil
	}
	var verr config.ValidationError
	if !errors.As(err, &verr) || len(verr.Errors) == 0 {
		return []*ConfigError{{Message: err.Error()}}
	}
	out := make([]*ConfigError, 0, len(verr.Errors))
	for _, fe := range verr.Errors {
		out = append(out, NewConfigError(fe.Field, fe.Message))
	}
	return out
}

// ExitCode maps err to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var (
		usage *UsageError
		cfg   *ConfigError
		verr  config.ValidationError
	)
	switch {
	case errors.As(err, &usage):
		return ExitUsage
	case errors.As(err, &cfg), errors.As(err, &verr):
		return ExitConfig
	default:
		return ExitFailed
	}
}
