// Package apperr defines the error taxonomy shared by every layer of tasks.
//
// Errors fall in two families: [UserError] for problems the person running the
// command can fix (configuration, expired sessions) and [SystemError] for
// problems that need developer or administrator attention. [ServiceError]
// carries the details of a failed OCI API call.
package apperr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrRepositoryNotFound indicates a repository alias is not in config.ini.
	ErrRepositoryNotFound = errors.New("repository not found in configuration")

	// ErrPullRequestNotFound indicates the pull request does not exist.
	ErrPullRequestNotFound = errors.New("pull request not found")

	// ErrNoPrincipal indicates devops.principal_id is not configured.
	ErrNoPrincipal = errors.New("no principal configured")
)

// AppError is the base of all application errors.
type AppError struct {
	Message string
	Err     error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// UserError is an error the end user can fix, such as updating configuration
// or refreshing a session token.
type UserError struct {
	AppError
	FixInstructions string
}

// NewUserError returns a [UserError] wrapping err.
func NewUserError(message, fix string, err error) *UserError {
	return &UserError{AppError: AppError{Message: message, Err: err}, FixInstructions: fix}
}

func (e *UserError) Error() string {
	msg := e.Message
	if e.FixInstructions != "" {
		msg += "\n\nTo fix this issue:\n" + e.FixInstructions
	}
	return msg
}

// SystemError is an error users cannot fix themselves.
type SystemError struct {
	AppError
	DebugInfo string
}

// NewSystemError returns a [SystemError] wrapping err.
func NewSystemError(message, debugInfo string, err error) *SystemError {
	return &SystemError{AppError: AppError{Message: message, Err: err}, DebugInfo: debugInfo}
}

func (e *SystemError) Error() string {
	msg := "SYSTEM ERROR: " + e.Message
	if e.DebugInfo != "" {
		msg += "\n\nDebug information: " + e.DebugInfo
	}
	return msg
}

// AuthenticationError is a [UserError] raised when OCI credentials are missing or expired.
type AuthenticationError struct {
	UserError
}

// NewAuthenticationError returns an [AuthenticationError] wrapping err.
func NewAuthenticationError(message, fix string, err error) *AuthenticationError {
	return &AuthenticationError{UserError: *NewUserError(message, fix, err)}
}

// ConfigurationError is a [UserError] raised for missing or invalid settings.
type ConfigurationError struct {
	UserError
}

// NewConfigurationError returns a [ConfigurationError] wrapping err.
func NewConfigurationError(message, fix string, err error) *ConfigurationError {
	return &ConfigurationError{UserError: *NewUserError(message, fix, err)}
}

// ServiceError wraps a failed OCI service call with the operation name and
// the scalar arguments it was called with.
type ServiceError struct {
	Operation    string
	Status       int
	Code         string
	OpcRequestID string
	Context      map[string]any
	Err          error
}

func (e *ServiceError) Error() string {
	msg := fmt.Sprintf("OCI operation '%s' failed: %v", e.Operation, e.Err)
	if len(e.Context) > 0 {
		msg += fmt.Sprintf(" (Context: %s)", formatContext(e.Context))
	}
	return msg
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// DebugInfo summarizes the HTTP level details of the failure.
func (e *ServiceError) DebugInfo() string {
	parts := []string{fmt.Sprintf("status=%d", e.Status)}
	if e.Code != "" {
		parts = append(parts, "code="+e.Code)
	}
	if e.OpcRequestID != "" {
		parts = append(parts, "opc-request-id="+e.OpcRequestID)
	}
	return strings.Join(parts, " ")
}

// ScalarContext keeps only string, integer, boolean and float values.
func ScalarContext(values map[string]any) map[string]any {
	out := make(map[string]any, len(values))
	for k, v := range values {
		switch v.(type) {
		case string, int, int32, int64, bool, float32, float64:
			out[k] = v
		}
	}
	return out
}

func formatContext(ctx map[string]any) string {
	keys := make([]string, 0, len(ctx))
	for k := range ctx {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, ctx[k]))
	}
	return strings.Join(parts, ", ")
}

// IsUserError reports whether err is, or wraps, a fixable user error.
func IsUserError(err error) bool {
	var ue *UserError
	var ae *AuthenticationError
	var ce *ConfigurationError
	return errors.As(err, &ue) || errors.As(err, &ae) || errors.As(err, &ce)
}

// AsUserError extracts the [UserError] carried by err, including the
// authentication and configuration kinds.
func AsUserError(err error) (*UserError, bool) {
	var ae *AuthenticationError
	if errors.As(err, &ae) {
		return &ae.UserError, true
	}
	var ce *ConfigurationError
	if errors.As(err, &ce) {
		return &ce.UserError, true
	}
	var ue *UserError
	if errors.As(err, &ue) {
		return ue, true
	}
	return nil, false
}
