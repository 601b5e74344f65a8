package core

import (
	"errors"
	"fmt"
)

// Error kinds. Callers match them with errors.Is.
var (
	ErrValidation           = errors.New("validation error")
	ErrNotFound             = errors.New("not found")
	ErrGeneration           = errors.New("generation error")
	ErrGenerationValidation = errors.New("generated content invalid")
	ErrPersistence          = errors.New("persistence error")
)

// Error carries a kind sentinel, a short client-safe message and an optional cause.
type Error struct {
	Kind error
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

// Message returns the client-safe part of the error.
func (e *Error) Message() string { return e.Msg }

func Validationf(format string, args ...any) error {
	return &Error{Kind: ErrValidation, Msg: fmt.Sprintf(format, args...)}
}

func NotFoundf(format string, args ...any) error {
	return &Error{Kind: ErrNotFound, Msg: fmt.Sprintf(format, args...)}
}

func GenerationError(msg string, err error) error {
	return &Error{Kind: ErrGeneration, Msg: msg, Err: err}
}

func GenerationValidationf(format string, args ...any) error {
	return &Error{Kind: ErrGenerationValidation, Msg: fmt.Sprintf(format, args...)}
}

func PersistenceError(msg string, err error) error {
	return &Error{Kind: ErrPersistence, Msg: msg, Err: err}
}

// PublicMessage returns the short message of a domain error, or a generic fallback.
func PublicMessage(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Msg
	}
	return "internal error"
}
