package apperror

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so transports can map it to a status code.
type Kind string

const (
	KindNotFound            Kind = "NOT_FOUND"
	KindAlreadyExists       Kind = "ALREADY_EXISTS"
	KindProtected           Kind = "PROTECTED"
	KindNoCharacterSelected Kind = "NO_CHARACTER_SELECTED"
	KindInvalidInput        Kind = "INVALID_INPUT"
	KindUpstreamFailure     Kind = "UPSTREAM_FAILURE"
	KindConflict            Kind = "CONFLICT"
	KindInternal            Kind = "INTERNAL"
)

// Error is the typed error returned by every component of the service.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by kind, so errors.Is(err, apperror.ErrConflict) works.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Message == "" && t.Kind == e.Kind
}

// Kind sentinels for errors.Is.
var (
	ErrNotFound            = &Error{Kind: KindNotFound}
	ErrAlreadyExists       = &Error{Kind: KindAlreadyExists}
	ErrProtected           = &Error{Kind: KindProtected}
	ErrNoCharacterSelected = &Error{Kind: KindNoCharacterSelected}
	ErrInvalidInput        = &Error{Kind: KindInvalidInput}
	ErrUpstreamFailure     = &Error{Kind: KindUpstreamFailure}
	ErrConflict            = &Error{Kind: KindConflict}
)

func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func NotFound(format string, args ...interface{}) *Error {
	return New(KindNotFound, format, args...)
}

func AlreadyExists(format string, args ...interface{}) *Error {
	return New(KindAlreadyExists, format, args...)
}

func Protected(format string, args ...interface{}) *Error {
	return New(KindProtected, format, args...)
}

func NoCharacterSelected() *Error {
	return New(KindNoCharacterSelected, "No character selected")
}

func InvalidInput(format string, args ...interface{}) *Error {
	return New(KindInvalidInput, format, args...)
}

func Conflict(format string, args ...interface{}) *Error {
	return New(KindConflict, format, args...)
}

func Upstream(err error, format string, args ...interface{}) *Error {
	return Wrap(KindUpstreamFailure, err, format, args...)
}

// KindOf returns the kind of the first *Error in the chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// MessageOf returns the human readable part of a typed error.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Error()
	}
	return err.Error()
}
