package rivet

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("rivet: record not found")

// NotFoundError represents an error when a record is not found.
type NotFoundError struct {
	label string
}

// Error returns the error string.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("rivet: %s not found", e.label)
}

// Is reports whether the target error matches NotFoundError.
// This allows errors.Is(notFoundErr, ErrNotFound) to return true.
func (e *NotFoundError) Is(err error) bool {
	return err == ErrNotFound
}

// Label returns the record type label.
func (e *NotFoundError) Label() string { return e.label }

// NewNotFoundError returns a new NotFoundError for the given type.
func NewNotFoundError(label string) *NotFoundError {
	return &NotFoundError{label: label}
}

// IsNotFound returns true if the error is a NotFoundError.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var e *NotFoundError
	return errors.As(err, &e) || errors.Is(err, ErrNotFound)
}

// NotLoadedError represents an error when accessing a relation that was
// not loaded.
type NotLoadedError struct {
	relation string
}

// Error returns the error string.
func (e *NotLoadedError) Error() string {
	return fmt.Sprintf("rivet: relation %q was not loaded", e.relation)
}

// Relation returns the relation name.
func (e *NotLoadedError) Relation() string { return e.relation }

// NewNotLoadedError returns a new NotLoadedError for the given relation.
func NewNotLoadedError(relation string) *NotLoadedError {
	return &NotLoadedError{relation: relation}
}

// IsNotLoaded returns true if the error is a NotLoadedError.
func IsNotLoaded(err error) bool {
	if err == nil {
		return false
	}
	var e *NotLoadedError
	return errors.As(err, &e)
}

// UndefinedRelationError represents a reference to a relation the type
// never declared.
type UndefinedRelationError struct {
	typeName string
	relation string
}

// Error returns the error string.
func (e *UndefinedRelationError) Error() string {
	return fmt.Sprintf("rivet: type %q has no relation %q", e.typeName, e.relation)
}

// Type returns the type name.
func (e *UndefinedRelationError) Type() string { return e.typeName }

// Relation returns the undefined relation name.
func (e *UndefinedRelationError) Relation() string { return e.relation }

// NewUndefinedRelationError returns a new UndefinedRelationError.
func NewUndefinedRelationError(typeName, relation string) *UndefinedRelationError {
	return &UndefinedRelationError{typeName: typeName, relation: relation}
}

// IsUndefinedRelation returns true if the error is an UndefinedRelationError.
func IsUndefinedRelation(err error) bool {
	if err == nil {
		return false
	}
	var e *UndefinedRelationError
	return errors.As(err, &e)
}

// ValueUndefinedError represents a record whose key attribute carries no
// value where one is required to constrain a relation query.
type ValueUndefinedError struct {
	typeName  string
	attribute string
}

// Error returns the error string.
func (e *ValueUndefinedError) Error() string {
	return fmt.Sprintf("rivet: attribute %q has no value on %q record", e.attribute, e.typeName)
}

// Type returns the record type name.
func (e *ValueUndefinedError) Type() string { return e.typeName }

// Attribute returns the attribute missing a value.
func (e *ValueUndefinedError) Attribute() string { return e.attribute }

// NewValueUndefinedError returns a new ValueUndefinedError.
func NewValueUndefinedError(typeName, attribute string) *ValueUndefinedError {
	return &ValueUndefinedError{typeName: typeName, attribute: attribute}
}

// IsValueUndefined returns true if the error is a ValueUndefinedError.
func IsValueUndefined(err error) bool {
	if err == nil {
		return false
	}
	var e *ValueUndefinedError
	return errors.As(err, &e)
}

// UnsupportedOperationError represents an operation a relation kind cannot
// perform.
type UnsupportedOperationError struct {
	relation string
	op       string
}

// Error returns the error string.
func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("rivet: relation %q does not support %s", e.relation, e.op)
}

// Relation returns the relation name.
func (e *UnsupportedOperationError) Relation() string { return e.relation }

// Op returns the unsupported operation.
func (e *UnsupportedOperationError) Op() string { return e.op }

// NewUnsupportedOperationError returns a new UnsupportedOperationError.
func NewUnsupportedOperationError(relation, op string) *UnsupportedOperationError {
	return &UnsupportedOperationError{relation: relation, op: op}
}

// IsUnsupportedOperation returns true if the error is an UnsupportedOperationError.
func IsUnsupportedOperation(err error) bool {
	if err == nil {
		return false
	}
	var e *UnsupportedOperationError
	return errors.As(err, &e)
}

// PaginationNotAllowedError represents pagination requested inside an
// eager-load constraint, where one query serves many parents.
type PaginationNotAllowedError struct {
	relation string
}

// Error returns the error string.
func (e *PaginationNotAllowedError) Error() string {
	return fmt.Sprintf("rivet: cannot paginate relation %q inside an eager load", e.relation)
}

// Relation returns the relation name.
func (e *PaginationNotAllowedError) Relation() string { return e.relation }

// NewPaginationNotAllowedError returns a new PaginationNotAllowedError.
func NewPaginationNotAllowedError(relation string) *PaginationNotAllowedError {
	return &PaginationNotAllowedError{relation: relation}
}

// IsPaginationNotAllowed returns true if the error is a PaginationNotAllowedError.
func IsPaginationNotAllowed(err error) bool {
	if err == nil {
		return false
	}
	var e *PaginationNotAllowedError
	return errors.As(err, &e)
}

// ConstraintError represents a database constraint violation.
type ConstraintError struct {
	msg  string
	wrap error
}

// Error returns the error string.
func (e ConstraintError) Error() string {
	return fmt.Sprintf("rivet: constraint failed: %s", e.msg)
}

// Unwrap returns the underlying error.
func (e ConstraintError) Unwrap() error { return e.wrap }

// NewConstraintError returns a new ConstraintError with the given message.
func NewConstraintError(msg string, wrap error) error {
	return ConstraintError{msg: msg, wrap: wrap}
}

// IsConstraintError returns true if the error is a ConstraintError.
func IsConstraintError(err error) bool {
	if err == nil {
		return false
	}
	var e ConstraintError
	return errors.As(err, &e)
}
