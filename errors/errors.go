package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// AppError is the error type surfaced to HTTP clients. Code is the response
// status, Op names the operation that failed.
type AppError struct {
	Code    int    `json:"-"`
	Message string `json:"error"`
	Op      string `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func E(op string, err error, message string, code int) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Op:      op,
		Err:     err,
	}
}

func InvalidInput(op string, err error, message string) *AppError {
	return E(op, err, message, http.StatusBadRequest)
}

func TooLarge(op string, err error, message string) *AppError {
	return E(op, err, message, http.StatusRequestEntityTooLarge)
}

func Internal(op string, err error, message string) *AppError {
	return E(op, err, message, http.StatusInternalServerError)
}

func RequestTimeout(op string, err error, message string) *AppError {
	return E(op, err, message, http.StatusRequestTimeout)
}

// StatusCode returns the HTTP status carried by the first AppError in err's
// chain, or 500.
func StatusCode(err error) int {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return http.StatusInternalServerError
}

// IsClientError reports whether err maps to a 4xx status.
func IsClientError(err error) bool {
	code := StatusCode(err)
	return code >= 400 && code < 500
}
