// Package api holds the typed errors raised by services and the JSON envelope
// every endpoint answers with.
package api

import (
	"errors"
	"net/http"
)

// Error codes shared by the front end translation files.
const (
	CodeInvalidParams   = "errors.invalidParams"
	CodeBusinessRules   = "errors.businessRules"
	CodeNotFound        = "errors.notFound"
	CodeUnauthorized    = "errors.unauthorizedUser"
	CodeForbidden       = "errors.forbidden"
	CodeUnexpected      = "errors.unexpectedError"
	CodeInvalidRecord   = "errors.invalidRecord"
	CodeRateLimited     = "errors.rateLimited"
	CodeInvalidSchema   = "errors.invalidSchema"
	CodeDuplicateRecord = "errors.duplicateRecord"
)

// ValidationError is a business or input rule violation. Status defaults to 400.
type ValidationError struct {
	Message string
	Code    string
	Status  int
}

func (e *ValidationError) Error() string { return e.Message }

// NewValidationError builds a ValidationError; a zero status means 400.
func NewValidationError(message, code string, status int) *ValidationError {
	if status == 0 {
		status = http.StatusBadRequest
	}
	return &ValidationError{Message: message, Code: code, Status: status}
}

// InvalidParams is the common 400 for malformed input.
func InvalidParams(message string) *ValidationError {
	return NewValidationError(message, CodeInvalidParams, http.StatusBadRequest)
}

// BusinessRule is a 400 for requests that are well formed but not allowed.
func BusinessRule(message string) *ValidationError {
	return NewValidationError(message, CodeBusinessRules, http.StatusBadRequest)
}

// NotFound is a 404 ValidationError.
func NotFound(message string) *ValidationError {
	return NewValidationError(message, CodeNotFound, http.StatusNotFound)
}

// AuthorizationError means the caller is not allowed to do what it asked.
type AuthorizationError struct {
	Message string
	Status  int
}

func (e *AuthorizationError) Error() string { return e.Message }

// Unauthorized is a 401 for missing or invalid credentials.
func Unauthorized(message string) *AuthorizationError {
	return &AuthorizationError{Message: message, Status: http.StatusUnauthorized}
}

// Forbidden is a 403 for authenticated users lacking a permission.
func Forbidden(message string) *AuthorizationError {
	return &AuthorizationError{Message: message, Status: http.StatusForbidden}
}

// IsNotFound reports whether err is a 404 ValidationError.
func IsNotFound(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve) && ve.Status == http.StatusNotFound
}
