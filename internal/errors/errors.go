// Package errors provides the structured error types used by mlprep.
//
// Every failure a step can hit falls into one of four categories, each with a
// wrapped error type that carries the context needed to report it:
//
//   - ConfigurationError{Field, Err} - an argument is missing or out of its domain
//   - ResolutionError{Ref, Err} - an input artifact or sample file cannot be found
//   - SchemaError{Column, Artifact, Err} - a dataset lacks a required column
//   - RegistrationError{Name, Err} - the artifact store rejected a register call
//
// Base errors (sentinel errors) describe the underlying condition:
//   - ErrNotFound - resource not found
//   - ErrAlreadyExists - duplicate resource
//   - ErrInvalid - validation failed
//   - ErrIO - file I/O error
//   - ErrCanceled - operation canceled
//
// # Usage
//
//	return &errors.ConfigurationError{Field: "test_size", Err: errors.ErrInvalid}
//
//	if errors.IsNotFound(err) {
//	    // handle not found
//	}
//
//	os.Exit(errors.ExitCode(err))
package errors

import (
	"errors"
	"fmt"
)

// Base error types (sentinel errors).
var (
	// ErrNotFound indicates a resource was not found.
	ErrNotFound = baseError("not found")

	// ErrAlreadyExists indicates a duplicate resource.
	ErrAlreadyExists = baseError("already exists")

	// ErrInvalid indicates validation failed.
	ErrInvalid = baseError("invalid")

	// ErrIO indicates a file I/O error.
	ErrIO = baseError("I/O error")

	// ErrCanceled indicates the operation was canceled.
	ErrCanceled = baseError("canceled")
)

// Exit codes returned by the mlprep binary.
const (
	ExitSuccess       = 0 // Step completed and all outputs registered
	ExitGenericError  = 1 // Unclassified failure
	ExitConfiguration = 2 // ConfigurationError
	ExitResolution    = 3 // ResolutionError
	ExitSchema        = 4 // SchemaError
	ExitRegistration  = 5 // RegistrationError
)

// baseError is a string that implements error.
type baseError string

func (e baseError) Error() string { return string(e) }

// ConfigurationError reports a missing or out-of-domain argument.
type ConfigurationError struct {
	// Field is the offending parameter name (e.g., "test_size").
	Field string
	// Err is the underlying error.
	Err error
}

func (e *ConfigurationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("configuration %s: %s", e.Field, e.Err)
	}
	return fmt.Sprintf("configuration: %s", e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// ResolutionError reports an input that could not be fetched.
type ResolutionError struct {
	// Ref is the artifact reference or local path that failed to resolve.
	Ref string
	// Err is the underlying error.
	Err error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve %q: %s", e.Ref, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// SchemaError reports a dataset that lacks an expected column.
type SchemaError struct {
	// Column is the missing column name.
	Column string
	// Artifact is the artifact the dataset was loaded from (optional).
	Artifact string
	// Err is the underlying error.
	Err error
}

func (e *SchemaError) Error() string {
	if e.Artifact != "" {
		return fmt.Sprintf("schema %s: column %q: %s", e.Artifact, e.Column, e.Err)
	}
	return fmt.Sprintf("schema: column %q: %s", e.Column, e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// RegistrationError reports a failed artifact registration.
type RegistrationError struct {
	// Name is the artifact name being registered.
	Name string
	// Err is the underlying error.
	Err error
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("register %q: %s", e.Name, e.Err)
}

func (e *RegistrationError) Unwrap() error { return e.Err }

// Wrap adds context to an error by wrapping it with an operation name.
// The returned error implements Unwrap() allowing errors.Is and errors.As
// to work with the wrapped error.
func Wrap(err error, op string) error {
	return &wrappedError{op: op, err: err}
}

// wrappedError is an error with an operation context.
type wrappedError struct {
	op  string
	err error
}

func (e *wrappedError) Error() string { return fmt.Sprintf("%s: %s", e.op, e.err) }
func (e *wrappedError) Unwrap() error { return e.err }

// IsNotFound reports whether err is or wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists reports whether err is or wraps ErrAlreadyExists.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsInvalid reports whether err is or wraps ErrInvalid.
func IsInvalid(err error) bool {
	return errors.Is(err, ErrInvalid)
}

// IsIO reports whether err is or wraps ErrIO.
func IsIO(err error) bool {
	return errors.Is(err, ErrIO)
}

// IsCanceled reports whether err is or wraps ErrCanceled.
func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled)
}

// AsConfigurationError reports whether err can be typed as a *ConfigurationError.
func AsConfigurationError(err error) (*ConfigurationError, bool) {
	var ce *ConfigurationError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// AsResolutionError reports whether err can be typed as a *ResolutionError.
func AsResolutionError(err error) (*ResolutionError, bool) {
	var re *ResolutionError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

// AsSchemaError reports whether err can be typed as a *SchemaError.
func AsSchemaError(err error) (*SchemaError, bool) {
	var se *SchemaError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// AsRegistrationError reports whether err can be typed as a *RegistrationError.
func AsRegistrationError(err error) (*RegistrationError, bool) {
	var re *RegistrationError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

// ExitCode maps an error to the process exit status.
// The outermost categorized error wins when several are chained.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		switch e.(type) {
		case *ConfigurationError:
			return ExitConfiguration
		case *ResolutionError:
			return ExitResolution
		case *SchemaError:
			return ExitSchema
		case *RegistrationError:
			return ExitRegistration
		}
	}
	return ExitGenericError
}
