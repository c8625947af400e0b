package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across packages.
var (
	ErrNotFound            = errors.New("not found")
	ErrUnsupportedProvider = errors.New("unsupported provider")
)

// ConfigError reports a missing or invalid provider configuration. It is
// always fatal to the whole dispatch and is raised before any send.
type ConfigError struct {
	Msg string
	Err error
}

// NewConfigError formats a ConfigError message.
func NewConfigError(format string, args ...any) *ConfigError {
	return &ConfigError{Msg: fmt.Sprintf(format, args...)}
}

func (e *ConfigError) Error() string {
	if e.Err != nil && e.Msg == "" {
		return "config: " + e.Err.Error()
	}
	return "config: " + e.Msg
}

func (e *ConfigError) Unwrap() error { return e.Err }

// AuthError reports that the mail server rejected the login.
type AuthError struct {
	Provider Provider
	Err      error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth %s: %v", e.Provider, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// ConnectError reports a dial, TLS or SMTP protocol failure.
type ConnectError struct {
	Provider Provider
	Addr     string
	Err      error
}

func (e *ConnectError) Error() string {
	if e.Addr == "" {
		return fmt.Sprintf("connect %s: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("connect %s (%s): %v", e.Provider, e.Addr, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// SendError reports that an established session failed to hand off one
// message (envelope rejected, DATA refused, connection dropped mid-send).
type SendError struct {
	Recipient string
	Err       error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send to %s: %v", e.Recipient, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// ValidationError rejects input at the API boundary. It never reaches the
// dispatcher.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return e.Field + ": " + e.Msg
}

// IsConfigError reports whether err is or wraps a *ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// IsValidationError reports whether err is or wraps a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
