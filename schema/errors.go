package schema

import (
	"errors"
	"fmt"
)

// MissingAttributeError is returned when key resolution expects an attribute
// that the type does not declare.
type MissingAttributeError struct {
	relation  string
	typeName  string
	attribute string
}

// Error returns the error string.
func (e *MissingAttributeError) Error() string {
	return fmt.Sprintf("rivet: relation %q: type %q has no attribute %q", e.relation, e.typeName, e.attribute)
}

// Relation returns the relation whose keys failed to resolve.
func (e *MissingAttributeError) Relation() string { return e.relation }

// Type returns the type missing the attribute.
func (e *MissingAttributeError) Type() string { return e.typeName }

// Attribute returns the expected attribute name.
func (e *MissingAttributeError) Attribute() string { return e.attribute }

// NewMissingAttributeError returns a new MissingAttributeError.
func NewMissingAttributeError(relation, typeName, attribute string) *MissingAttributeError {
	return &MissingAttributeError{relation: relation, typeName: typeName, attribute: attribute}
}

// IsMissingAttribute returns true if the error is a MissingAttributeError.
func IsMissingAttribute(err error) bool {
	if err == nil {
		return false
	}
	var e *MissingAttributeError
	return errors.As(err, &e)
}

// NotBootedError is returned when relation keys are read before Boot.
type NotBootedError struct {
	relation string
}

// Error returns the error string.
func (e *NotBootedError) Error() string {
	return fmt.Sprintf("rivet: relation %q was not booted", e.relation)
}

// Relation returns the unbooted relation name.
func (e *NotBootedError) Relation() string { return e.relation }

// NewNotBootedError returns a new NotBootedError for the given relation.
func NewNotBootedError(relation string) *NotBootedError {
	return &NotBootedError{relation: relation}
}

// IsNotBooted returns true if the error is a NotBootedError.
func IsNotBooted(err error) bool {
	if err == nil {
		return false
	}
	var e *NotBootedError
	return errors.As(err, &e)
}

// UndefinedTypeError is returned when a relation references a type that was
// never registered.
type UndefinedTypeError struct {
	typeName string
}

// Error returns the error string.
func (e *UndefinedTypeError) Error() string {
	return fmt.Sprintf("rivet: type %q is not registered", e.typeName)
}

// Type returns the missing type name.
func (e *UndefinedTypeError) Type() string { return e.typeName }

// NewUndefinedTypeError returns a new UndefinedTypeError.
func NewUndefinedTypeError(typeName string) *UndefinedTypeError {
	return &UndefinedTypeError{typeName: typeName}
}

// IsUndefinedType returns true if the error is an UndefinedTypeError.
func IsUndefinedType(err error) bool {
	if err == nil {
		return false
	}
	var e *UndefinedTypeError
	return errors.As(err, &e)
}
