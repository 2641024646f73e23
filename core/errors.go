package core

import (
	"errors"
	"fmt"
)

// ValidationError reports malformed input rejected before any side effect.
// Logic faults of this kind are never retried.
type ValidationError struct {
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Reason)
}

// NewValidationError constructs a ValidationError for a field.
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// NotFoundError reports an unknown conversation, agent, document or
// execution id.
type NotFoundError struct {
	Resource string
	ID       string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

// NewNotFoundError constructs a NotFoundError for a resource/id pair.
func NewNotFoundError(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// GatewayError reports a failed or timed-out embedding/completion call.
// The gateway call site retries with bounded backoff before surfacing it;
// callers degrade the affected invocation rather than failing the request.
type GatewayError struct {
	Op      string // "embed" or "complete"
	Timeout bool
	Err     error
}

// Error implements the error interface.
func (e *GatewayError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("gateway %s timed out: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("gateway %s failed: %v", e.Op, e.Err)
}

// Unwrap exposes the underlying cause.
func (e *GatewayError) Unwrap() error { return e.Err }

// AgentExecutionError reports the failure of a single delegated agent
// invocation. It never aborts sibling invocations or the overall request.
type AgentExecutionError struct {
	AgentName string
	Err       error
}

// Error implements the error interface.
func (e *AgentExecutionError) Error() string {
	return fmt.Sprintf("agent %s execution failed: %v", e.AgentName, e.Err)
}

// Unwrap exposes the underlying cause.
func (e *AgentExecutionError) Unwrap() error { return e.Err }

// StoreUnavailableError reports an unreachable persistence layer. It is
// fatal for the current request and surfaced to the caller unretried.
type StoreUnavailableError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("store unavailable during %s: %v", e.Op, e.Err)
}

// Unwrap exposes the underlying cause.
func (e *StoreUnavailableError) Unwrap() error { return e.Err }

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsGateway reports whether err is (or wraps) a GatewayError.
func IsGateway(err error) bool {
	var ge *GatewayError
	return errors.As(err, &ge)
}

// IsStoreUnavailable reports whether err is (or wraps) a StoreUnavailableError.
func IsStoreUnavailable(err error) bool {
	var se *StoreUnavailableError
	return errors.As(err, &se)
}
