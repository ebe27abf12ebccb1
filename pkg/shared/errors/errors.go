// Package errors provides the operator's shared error taxonomy: a
// single structured OperationError plus constructors for the recurring
// shapes (validation, configuration, timeout) that daemon and operator
// setup code raises.
package errors

import (
	"fmt"
	"strings"

	goerrors "github.com/go-faster/errors"
)

// OperationError describes a failed operation with enough structure
// for a log line to be useful without string-parsing: what was being
// done, which component/resource it concerned, and what caused it.
type OperationError struct {
	Operation string
	Component string
	Resource  string
	Cause     error
}

func (e *OperationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "failed to %s", e.Operation)
	if e.Component != "" {
		fmt.Fprintf(&b, ", component: %s", e.Component)
	}
	if e.Resource != "" {
		fmt.Fprintf(&b, ", resource: %s", e.Resource)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ", cause: %s", e.Cause)
	}
	return b.String()
}

func (e *OperationError) Unwrap() error { return e.Cause }

// FailedTo builds a minimal OperationError for action, wrapping cause.
func FailedTo(action string, cause error) error {
	return &OperationError{Operation: action, Cause: cause}
}

// FailedToWithDetails builds a fully-populated OperationError.
func FailedToWithDetails(action, component, resource string, cause error) error {
	return &OperationError{Operation: action, Component: component, Resource: resource, Cause: cause}
}

// Wrapf wraps err with an additional formatted message, returning nil
// for a nil err. It delegates to go-faster/errors so the result carries
// a stack trace.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return goerrors.Wrapf(err, format, args...)
}

// ValidationError reports a field that failed validation.
func ValidationError(field, reason string) error {
	return fmt.Errorf("validation failed for field %s: %s", field, reason)
}

// ConfigurationError reports an invalid configuration setting.
func ConfigurationError(setting, reason string) error {
	return fmt.Errorf("configuration error for setting %s: %s", setting, reason)
}

// TimeoutError reports an operation that exceeded its deadline.
func TimeoutError(operation, after string) error {
	return fmt.Errorf("timeout while %s after %s", operation, after)
}

// Chain joins multiple non-nil errors into one. It returns nil if every
// error is nil, the single error unwrapped if exactly one is non-nil,
// and a "multiple errors: ..." summary otherwise.
func Chain(errs ...error) error {
	var nonNil []error
	for _, err := range errs {
		if err != nil {
			nonNil = append(nonNil, err)
		}
	}
	switch len(nonNil) {
	case 0:
		return nil
	case 1:
		return nonNil[0]
	default:
		msgs := make([]string, len(nonNil))
		for i, err := range nonNil {
			msgs[i] = err.Error()
		}
		return fmt.Errorf("multiple errors: %s", strings.Join(msgs, "; "))
	}
}
