package catalog

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
)

// Error kinds. Every error returned by the catalog services matches exactly
// one of these with errors.Is.
var (
	ErrValidation      = errors.New("validation error")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrPartialWrite    = errors.New("partial write failure")
	ErrUpstreamTimeout = errors.New("upstream timeout")
)

// ValidationError describes a single missing or malformed field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// ValidationErrors reports every invalid field of a request at once.
type ValidationErrors []*ValidationError

func (v ValidationErrors) Error() string {
	parts := make([]string, len(v))
	for i, e := range v {
		parts[i] = e.Error()
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

func (v ValidationErrors) Is(target error) bool { return target == ErrValidation }

// Err returns v as an error, or nil when there are no failures.
func (v ValidationErrors) Err() error {
	if len(v) == 0 {
		return nil
	}
	return v
}

// NotFoundError indicates an unknown entity id.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ConflictError indicates a duplicate category or brand name.
type ConflictError struct {
	Entity string
	Name   string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s named %q already exists", e.Entity, e.Name)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// PartialWriteError is returned when the first step of a two-step write
// persisted but the second did not. The store is left holding an orphaned
// variant (add) or an unreferenced one (remove) until repaired.
type PartialWriteError struct {
	Op        string
	ProductID string
	VariantID string
	Err       error
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("%s: variant %s and product %s left inconsistent: %v", e.Op, e.VariantID, e.ProductID, e.Err)
}

func (e *PartialWriteError) Unwrap() error { return e.Err }

func (e *PartialWriteError) Is(target error) bool { return target == ErrPartialWrite }

// UpstreamTimeoutError is returned when an external collaborator did not
// answer within its bound.
type UpstreamTimeoutError struct {
	Op      string
	Timeout time.Duration
	Err     error
}

func (e *UpstreamTimeoutError) Error() string {
	return fmt.Sprintf("%s: timed out after %s", e.Op, e.Timeout)
}

func (e *UpstreamTimeoutError) Unwrap() error { return e.Err }

func (e *UpstreamTimeoutError) Is(target error) bool { return target == ErrUpstreamTimeout }
