// Package errors provides centralized error definitions and error handling
// utilities for the generation pipeline. It defines domain-specific errors,
// semantic error types, error constructors with context wrapping, and error
// classification helpers.
//
// # Error Types
//
// The package provides two categories of errors:
//
// Domain-specific errors represent errors from specific subsystems:
//   - GenerationError: errors while producing a scene payload
//   - RejectionError: a candidate failed validation with hard findings
//   - TerminalError: every retry budget for a scene is exhausted
//
// Semantic errors represent common error conditions:
//   - NotFoundError: resource not found
//   - ValidationError: invalid input or state
//
// # Usage
//
// Creating errors:
//
//	// Domain-specific error
//	err := errors.NewGenerationError("producer call failed", cause).WithRetryable(true)
//
//	// With context wrapping
//	err = err.WithIdentity("004B@AB").WithAttempt(2)
//
// Checking errors:
//
//	// Check for specific sentinel errors
//	if errors.Is(err, errors.ErrTerminal) { ... }
//
//	// Check for error types
//	var term *errors.TerminalError
//	if errors.As(err, &term) { ... }
//
//	// Use classification helpers
//	if errors.IsRetryable(err) { ... }
//	if errors.IsUserFacing(err) { ... }
//
// # Error Classification
//
// Errors can be classified by severity and behavior:
//   - Retryable: transient errors that may succeed on retry
//   - UserFacing: errors safe to display to users (vs internal errors)
//   - Severity: Debug, Info, Warning, Error, Critical
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Generation-related sentinel errors
var (
	// ErrTerminal indicates a scene whose retry budgets are all exhausted.
	ErrTerminal = New("generation terminally failed")
	// ErrProducerUnavailable indicates the producer transport is down or
	// shedding load.
	ErrProducerUnavailable = New("producer unavailable")
	// ErrEmptyPayload indicates the producer returned nothing usable.
	ErrEmptyPayload = New("producer returned an empty payload")
)

// Pipeline sentinel errors
var (
	// ErrBranchMismatch indicates a request whose branch key does not
	// follow from its decision history.
	ErrBranchMismatch = New("branch key does not match decision history")
	// ErrArtifactNotFound indicates no artifact exists for an identity.
	ErrArtifactNotFound = New("artifact not found")
)

// General sentinel errors
var (
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// LoomError is the base interface for all pipeline errors.
// It extends the standard error interface with additional methods for
// error handling and classification.
type LoomError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Is reports whether this error matches the target error.
	// This is used by errors.Is() for error comparison.
	Is(target error) bool

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if the error is transient and the operation
	// may succeed on retry.
	IsRetryable() bool

	// IsUserFacing returns true if the error message is safe to display
	// to end users.
	IsUserFacing() bool
}

// -----------------------------------------------------------------------------
// Base Error Implementation
// -----------------------------------------------------------------------------

// baseError provides common functionality for all error types.
type baseError struct {
	message    string
	cause      error
	severity   Severity
	retryable  bool
	userFacing bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsRetryable returns whether the error is retryable.
func (e *baseError) IsRetryable() bool {
	return e.retryable
}

// IsUserFacing returns whether the error is safe to show users.
func (e *baseError) IsUserFacing() bool {
	return e.userFacing
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// GenerationError represents a failure while producing a scene payload.
//
// Example:
//
//	err := errors.NewGenerationError("producer call failed", cause)
//	err = err.WithIdentity("004B@AB").WithAttempt(2).WithRetryable(true)
//	fmt.Println(err) // "generation error [identity=004B@AB, attempt=2]: producer call failed: ..."
type GenerationError struct {
	baseError
	Identity string
	Attempt  int
}

// NewGenerationError creates a new GenerationError.
func NewGenerationError(message string, cause error) *GenerationError {
	return &GenerationError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  false,
			userFacing: false,
		},
		Attempt: -1, // -1 indicates not set
	}
}

// WithIdentity adds the content identity to the error context.
func (e *GenerationError) WithIdentity(id string) *GenerationError {
	e.Identity = id
	return e
}

// WithAttempt adds the attempt number to the error context.
func (e *GenerationError) WithAttempt(n int) *GenerationError {
	e.Attempt = n
	return e
}

// WithSeverity sets the error severity.
func (e *GenerationError) WithSeverity(s Severity) *GenerationError {
	e.severity = s
	return e
}

// WithRetryable sets whether the error is retryable.
func (e *GenerationError) WithRetryable(r bool) *GenerationError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *GenerationError) Error() string {
	var parts []string
	if e.Identity != "" {
		parts = append(parts, fmt.Sprintf("identity=%s", e.Identity))
	}
	if e.Attempt >= 0 {
		parts = append(parts, fmt.Sprintf("attempt=%d", e.Attempt))
	}

	prefix := "generation error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("generation error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *GenerationError) Is(target error) bool {
	if _, ok := target.(*GenerationError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// RejectionError represents a candidate that failed validation with hard
// findings. The findings travel with the error so the next attempt can
// carry them back as corrective feedback.
//
// Example:
//
//	err := errors.NewRejectionError("candidate rejected", nil).
//		WithIdentity("004B@AB").
//		WithFindings([]string{"position-mismatch: ..."})
type RejectionError struct {
	baseError
	Identity string
	Findings []string
}

// NewRejectionError creates a new RejectionError.
func NewRejectionError(message string, cause error) *RejectionError {
	return &RejectionError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityWarning,
			retryable:  true,
			userFacing: false,
		},
	}
}

// WithIdentity adds the content identity to the error context.
func (e *RejectionError) WithIdentity(id string) *RejectionError {
	e.Identity = id
	return e
}

// WithFindings attaches the hard validation findings.
func (e *RejectionError) WithFindings(findings []string) *RejectionError {
	e.Findings = findings
	return e
}

// WithSeverity sets the error severity.
func (e *RejectionError) WithSeverity(s Severity) *RejectionError {
	e.severity = s
	return e
}

// Error returns the formatted error message.
func (e *RejectionError) Error() string {
	var parts []string
	if e.Identity != "" {
		parts = append(parts, fmt.Sprintf("identity=%s", e.Identity))
	}
	if len(e.Findings) > 0 {
		parts = append(parts, fmt.Sprintf("findings=%d", len(e.Findings)))
	}

	prefix := "rejection error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("rejection error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *RejectionError) Is(target error) bool {
	if _, ok := target.(*RejectionError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// TerminalError represents a scene whose transient and validation retry
// budgets are both exhausted. No placeholder content is substituted; the
// caller decides what the player sees.
//
// Example:
//
//	err := errors.NewTerminalError("budgets exhausted", lastCause).
//		WithIdentity("004B@AB").
//		WithCounts(3, 2)
type TerminalError struct {
	baseError
	Identity   string
	Transient  int
	Rejections int
}

// NewTerminalError creates a new TerminalError. It matches ErrTerminal
// under errors.Is regardless of its cause.
func NewTerminalError(message string, cause error) *TerminalError {
	return &TerminalError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityCritical,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithIdentity adds the content identity to the error context.
func (e *TerminalError) WithIdentity(id string) *TerminalError {
	e.Identity = id
	return e
}

// WithCounts records how each budget was spent.
func (e *TerminalError) WithCounts(transient, rejections int) *TerminalError {
	e.Transient = transient
	e.Rejections = rejections
	return e
}

// Error returns the formatted error message.
func (e *TerminalError) Error() string {
	var parts []string
	if e.Identity != "" {
		parts = append(parts, fmt.Sprintf("identity=%s", e.Identity))
	}
	parts = append(parts, fmt.Sprintf("transient=%d", e.Transient), fmt.Sprintf("rejections=%d", e.Rejections))

	prefix := fmt.Sprintf("terminal error [%s]", strings.Join(parts, ", "))
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *TerminalError) Is(target error) bool {
	if target == ErrTerminal {
		return true
	}
	if _, ok := target.(*TerminalError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// NotFoundError represents a resource that could not be found.
//
// Example:
//
//	err := errors.NewNotFoundError("artifact", "004B@AB")
//	fmt.Println(err) // "artifact not found: 004B@AB"
type NotFoundError struct {
	baseError
	Resource string
	ID       string
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{
		baseError: baseError{
			message:    fmt.Sprintf("%s not found", resource),
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
		Resource: resource,
		ID:       id,
	}
}

// Error returns the formatted error message.
func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

// Is checks if this error matches the target.
func (e *NotFoundError) Is(target error) bool {
	if target == ErrArtifactNotFound && e.Resource == "artifact" {
		return true
	}
	if _, ok := target.(*NotFoundError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ValidationError represents invalid input or state.
//
// Example:
//
//	err := errors.NewValidationError("scheduler.slots", "must be at least 1")
type ValidationError struct {
	baseError
	Field  string
	Reason string
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:    fmt.Sprintf("invalid %s: %s", field, reason),
			cause:      ErrInvalidInput,
			severity:   SeverityError,
			retryable:  false,
			userFacing: true,
		},
		Field:  field,
		Reason: reason,
	}
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Classification Helpers
// -----------------------------------------------------------------------------

// IsRetryable reports whether err, anywhere in its chain, is marked as a
// transient failure worth retrying.
func IsRetryable(err error) bool {
	var le LoomError
	if errors.As(err, &le) {
		return le.IsRetryable()
	}
	return false
}

// IsUserFacing reports whether err carries a message safe to display to
// end users. Unknown errors are treated as internal.
func IsUserFacing(err error) bool {
	var le LoomError
	if errors.As(err, &le) {
		return le.IsUserFacing()
	}
	return false
}

// SeverityOf returns the severity of err, or SeverityError when the
// error carries no explicit severity.
func SeverityOf(err error) Severity {
	var le LoomError
	if errors.As(err, &le) {
		return le.Severity()
	}
	return SeverityError
}
