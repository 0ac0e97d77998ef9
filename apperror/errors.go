package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type AppError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Cause }

// Is matches on code, so errors.Is(err, apperror.ErrNotFound) holds for any NOT_FOUND error.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code && (t.Message == "" || t.Message == e.Message)
}

// Constructors
func New(code Code, message string) error {
	return &AppError{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) error {
	return &AppError{Code: code, Message: message, Cause: cause}
}

func InvalidArg(msg string) error {
	return New(CodeInvalidArgument, msg)
}

func NotFound(msg string) error {
	return New(CodeNotFound, msg)
}

func AlreadyExists(msg string) error {
	return New(CodeAlreadyExists, msg)
}

func Unauthorized(msg string) error {
	return New(CodeUnauthenticated, msg)
}

func Forbidden(msg string) error {
	return New(CodePermissionDenied, msg)
}

func Internal(msg string, cause error) error {
	return Wrap(CodeInternal, msg, cause)
}

func DispatchFailed(cause error) error {
	return Wrap(CodeDispatchFailed, "push dispatch failed", cause)
}

// Sentinels for errors.Is checks. Message is empty so they match any error of the code.
var (
	ErrInvalidArgument = &AppError{Code: CodeInvalidArgument}
	ErrNotFound        = &AppError{Code: CodeNotFound}
	ErrAlreadyExists   = &AppError{Code: CodeAlreadyExists}
	ErrForbidden       = &AppError{Code: CodePermissionDenied}
	ErrUnauthorized    = &AppError{Code: CodeUnauthenticated}
	ErrDispatchFailed  = &AppError{Code: CodeDispatchFailed}
)

func CodeOf(err error) Code {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}

// HTTPStatus maps an error to the status the handlers answer with. Anything that is not a
// caller error is a 500.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeInvalidArgument:
		return http.StatusBadRequest
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodePermissionDenied:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeAlreadyExists:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func IsCode(err error, code Code) bool {
	return CodeOf(err) == code
}
