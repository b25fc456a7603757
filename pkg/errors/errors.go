package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation        Code = "VALIDATION_ERROR"
	CodeUnauthorized      Code = "UNAUTHORIZED"
	CodeForbidden         Code = "FORBIDDEN"
	CodeNotFound          Code = "NOT_FOUND"
	CodeConflict          Code = "CONFLICT"
	CodeStateConflict     Code = "STATE_CONFLICT"
	CodeInsufficientStock Code = "INSUFFICIENT_STOCK"
	CodeIdempotency       Code = "IDEMPOTENCY_KEY_REUSED"
	CodeInternal          Code = "INTERNAL_ERROR"
	CodeDependency        Code = "DEPENDENCY_ERROR"
)

// Metadata is how a code surfaces over HTTP. EchoMessage codes return the
// caller-facing message they were built with; the rest use PublicMessage.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
	EchoMessage    bool
}

// State and stock failures are business-rule rejections and map to 400,
// leaving 409 for key and uniqueness conflicts.
var metadataByCode = map[Code]Metadata{
	CodeValidation:        {http.StatusBadRequest, false, "validation failed", true, true},
	CodeUnauthorized:      {http.StatusUnauthorized, false, "authentication required", false, true},
	CodeForbidden:         {http.StatusForbidden, false, "access denied", false, true},
	CodeNotFound:          {http.StatusNotFound, false, "resource not found", false, true},
	CodeConflict:          {http.StatusConflict, false, "conflict detected", false, true},
	CodeStateConflict:     {http.StatusBadRequest, false, "state transition disallowed", true, true},
	CodeInsufficientStock: {http.StatusBadRequest, false, "insufficient stock", true, true},
	CodeIdempotency:       {http.StatusConflict, false, "idempotency key reused", true, true},
	CodeInternal:          {http.StatusInternalServerError, true, "internal server error", false, false},
	CodeDependency:        {http.StatusServiceUnavailable, true, "dependency unavailable", true, false},
}

func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

// PublicError is the part of an error that may leave the process.
type PublicError struct {
	Status  int
	Code    Code
	Message string
	Details any
}

// Public renders err for a client. Untyped errors become CodeInternal.
func Public(err error) PublicError {
	typed := As(err)
	if typed == nil {
		typed = New(CodeInternal, "")
	}
	meta := MetadataFor(typed.code)
	out := PublicError{Status: meta.HTTPStatus, Code: typed.code, Message: meta.PublicMessage}
	if meta.EchoMessage && typed.message != "" {
		out.Message = typed.message
	}
	if meta.DetailsAllowed {
		out.Details = typed.details
	}
	return out
}

// Error is a coded error. The message is meant for API callers; the cause
// chain is for logs only.
type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

// WithDetails sets details in place and returns e for chaining.
func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

func (e *Error) Error() string {
	switch {
	case e == nil:
		return ""
	case e.cause == nil:
		return string(e.code) + ": " + e.message
	default:
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As returns the outermost *Error in err's chain.
func As(err error) *Error {
	var typed *Error
	if err != nil && stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// CodeOf returns the typed code carried by err, or CodeInternal.
func CodeOf(err error) Code {
	return As(err).Code()
}

func IsCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.code == code
}
