// Package domain defines the core types, capability interfaces, and errors
// shared by the sync engine and its catalog providers.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// NotFoundError indicates a catalog object or resource was not found.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// ConflictError indicates the object already exists.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// ValidationError indicates invalid input, such as a malformed identifier.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ConfigError indicates a configuration or lookup problem detected before
// any convergence work starts. It is never retried.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string { return e.Message }

// UnsupportedFormatError indicates a table format that has no sync path to
// the chosen target.
type UnsupportedFormatError struct {
	Name   string
	Format TableFormat
	Target string
}

func (e *UnsupportedFormatError) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("table %s: format %q is not supported by target %s", e.Name, e.Format, e.Target)
	}
	return fmt.Sprintf("table %s: format %q is not supported", e.Name, e.Format)
}

// CyclicDependencyError is returned when a view graph refers back to an
// object that is still being resolved.
type CyclicDependencyError struct {
	Path []string
}

func (e *CyclicDependencyError) Error() string {
	return "cyclic view dependency: " + strings.Join(e.Path, " -> ")
}

// DialectConversionError indicates a view body could not be converted into
// the target dialect.
type DialectConversionError struct {
	Name string
	From Dialect
	To   Dialect
	Err  error
}

func (e *DialectConversionError) Error() string {
	return fmt.Sprintf("convert view %s from %s to %s: %v", e.Name, e.From, e.To, e.Err)
}

func (e *DialectConversionError) Unwrap() error { return e.Err }

// StalePointerError indicates the target's identity token no longer matches
// the identity recorded in the source metadata. The target must be
// recreated before it can be refreshed.
type StalePointerError struct {
	Name    string
	Message string
}

func (e *StalePointerError) Error() string {
	return fmt.Sprintf("stale pointer for %s: %s", e.Name, e.Message)
}

// TimeoutError is returned when asynchronous projection metadata does not
// catch up to the primary format version within the configured bound.
type TimeoutError struct {
	Name                string
	TargetVersion       int64
	LastObservedVersion int64
	Elapsed             time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out after %s waiting for %s projection: want version %d, last observed %d",
		e.Elapsed.Round(time.Millisecond), e.Name, e.TargetVersion, e.LastObservedVersion)
}

// ErrNotFound creates a NotFoundError with a formatted message.
func ErrNotFound(format string, args ...interface{}) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// ErrConflict creates a ConflictError with a formatted message.
func ErrConflict(format string, args ...interface{}) *ConflictError {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

// ErrValidation creates a ValidationError with a formatted message.
func ErrValidation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ErrConfig creates a ConfigError with a formatted message.
func ErrConfig(format string, args ...interface{}) *ConfigError {
	return &ConfigError{Message: fmt.Sprintf(format, args...)}
}

// ErrStalePointer creates a StalePointerError for the named object.
func ErrStalePointer(name string, format string, args ...interface{}) *StalePointerError {
	return &StalePointerError{Name: name, Message: fmt.Sprintf(format, args...)}
}
