package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies failures surfaced by the domain and persistence layers.
type ErrorKind string

// Failure kinds. Validation and not-found failures are recoverable at the call
// site; cannot-delete reports a referential guard; storage wraps engine errors.
const (
	KindValidation   ErrorKind = "validation"
	KindNotFound     ErrorKind = "not_found"
	KindCannotDelete ErrorKind = "cannot_delete"
	KindStorage      ErrorKind = "storage"
)

var (
	// ErrPersistenceDisabled is wrapped by every storage error raised on a
	// platform without durable local storage.
	ErrPersistenceDisabled = errors.New("persistence disabled on this platform")
	// ErrStoreClosed is wrapped by storage errors raised after Close.
	ErrStoreClosed = errors.New("store closed")
)

// genericStorageMessage is shown instead of the underlying cause.
const genericStorageMessage = "Saving or loading data failed. Please try again."

// Error is the tagged failure type shared by all layers. Only the fields
// relevant to Kind are populated.
type Error struct {
	Kind     ErrorKind
	Field    string
	Entity   EntityType
	EntityID string
	Op       string
	Message  string
	Cause    error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Op != "" {
		b.WriteString(" [")
		b.WriteString(e.Op)
		b.WriteString("]")
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Cause }

// NewValidationError reports an invalid field value.
func NewValidationError(field, message string) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: message}
}

// NewNotFoundError reports a missing record.
func NewNotFoundError(entity EntityType, id string) *Error {
	return &Error{
		Kind:     KindNotFound,
		Entity:   entity,
		EntityID: id,
		Message:  fmt.Sprintf("%s %q not found", entity, id),
	}
}

// NewCannotDeleteError reports a delete rejected by a referential guard.
func NewCannotDeleteError(entity EntityType, id, message string) *Error {
	return &Error{Kind: KindCannotDelete, Entity: entity, EntityID: id, Message: message}
}

// NewStorageError wraps an engine failure raised while running op. Errors that
// are already classified pass through unchanged.
func NewStorageError(op string, cause error) *Error {
	var de *Error
	if errors.As(cause, &de) {
		if de.Kind != KindStorage || de.Op != "" {
			return de
		}
		return &Error{Kind: KindStorage, Op: op, Message: de.Message, Cause: de.Cause}
	}
	return &Error{Kind: KindStorage, Op: op, Message: "storage operation failed", Cause: cause}
}

// KindOf returns the kind of err, or "" when err is nil or unclassified.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool { return KindOf(err) == KindValidation }

// IsNotFound reports whether err is a not-found failure.
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

// IsCannotDelete reports whether err is a referential-guard rejection.
func IsCannotDelete(err error) bool { return KindOf(err) == KindCannotDelete }

// IsStorage reports whether err is a storage failure.
func IsStorage(err error) bool { return KindOf(err) == KindStorage }

// FieldOf returns the offending field of a validation failure.
func FieldOf(err error) string {
	var de *Error
	if errors.As(err, &de) && de.Kind == KindValidation {
		return de.Field
	}
	return ""
}

// UserMessage maps err to text suitable for end users. Storage causes are
// never exposed.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var de *Error
	if !errors.As(err, &de) {
		return genericStorageMessage
	}
	switch de.Kind {
	case KindValidation:
		if de.Field != "" {
			return fmt.Sprintf("%s: %s", de.Field, de.Message)
		}
		return de.Message
	case KindNotFound:
		return fmt.Sprintf("The requested %s no longer exists.", strings.ReplaceAll(string(de.Entity), "_", " "))
	case KindCannotDelete:
		return de.Message
	case KindStorage:
		if errors.Is(de, ErrPersistenceDisabled) {
			return "Data cannot be saved on this platform."
		}
		return genericStorageMessage
	}
	return genericStorageMessage
}
