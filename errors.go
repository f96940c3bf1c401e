package docbase

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for common conditions
var (
	// Data errors
	ErrNotFound     = errors.New("entity not found")
	ErrDuplicateKey = errors.New("entity id already exists")
	ErrInvalidData  = errors.New("invalid entity data")

	// Constraint errors
	ErrUniqueConstraint = errors.New("unique constraint violated")
	ErrForeignKey       = errors.New("foreign key references missing entity")
	ErrOperation        = errors.New("operation not allowed")

	// Concurrency and lifecycle errors
	ErrConcurrency = errors.New("concurrent modification detected")
	ErrHookRejected = errors.New("operation rejected by hook")

	// Relationship errors
	ErrPopulation = errors.New("relationship resolution failed")

	// Transaction errors
	ErrTransaction = errors.New("transaction failed")

	// Persistence errors
	ErrStoreUnavailable = errors.New("snapshot store unavailable")

	// Configuration errors
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrUnknownCollection = errors.New("unknown collection")
	ErrUnknownOperator   = errors.New("unknown query operator")
)

// ErrorWithContext adds additional context to errors for better debugging and logging
type ErrorWithContext struct {
	Err     error
	Context map[string]interface{}
}

func (e *ErrorWithContext) Error() string {
	if len(e.Context) == 0 {
		return e.Err.Error()
	}
	return fmt.Sprintf("%v (context: %+v)", e.Err, e.Context)
}

func (e *ErrorWithContext) Unwrap() error {
	return e.Err
}

// WithContext adds context to an error
func WithContext(err error, context map[string]interface{}) error {
	if err == nil {
		return nil
	}
	return &ErrorWithContext{
		Err:     err,
		Context: context,
	}
}

// FieldIssue describes a single schema conformance problem.
type FieldIssue struct {
	Field   string
	Message string
}

// ValidationError carries per-field schema conformance failures.
type ValidationError struct {
	Issues []FieldIssue
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return "validation failed"
	}
	parts := make([]string, len(e.Issues))
	for i, issue := range e.Issues {
		parts[i] = fmt.Sprintf("%s: %s", issue.Field, issue.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Common error checking helpers

// IsNotFound checks if an error is a "not found" error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConstraintViolation checks if an error is a uniqueness or foreign-key violation
func IsConstraintViolation(err error) bool {
	return errors.Is(err, ErrUniqueConstraint) ||
		errors.Is(err, ErrForeignKey) ||
		errors.Is(err, ErrDuplicateKey)
}

// IsConflict checks if an error is a conflict/concurrent modification error
func IsConflict(err error) bool {
	return errors.Is(err, ErrConcurrency)
}

// IsValidation checks if an error is a schema validation failure
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
