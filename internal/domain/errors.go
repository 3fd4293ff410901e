package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is a structured application error with HTTP status code.
type AppError struct {
	Code    int    `json:"code"`
	Message string `json:"error"`
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

// Common error constructors.

func ErrNotFound(msg string) *AppError {
	return &AppError{Code: http.StatusNotFound, Message: msg}
}

func ErrUnauthorized(msg string) *AppError {
	return &AppError{Code: http.StatusUnauthorized, Message: msg}
}

func ErrForbidden(msg string) *AppError {
	return &AppError{Code: http.StatusForbidden, Message: msg}
}

func ErrBadRequest(msg string) *AppError {
	return &AppError{Code: http.StatusBadRequest, Message: msg}
}

func ErrValidation(msg string) *AppError {
	return &AppError{Code: http.StatusUnprocessableEntity, Message: msg}
}

func ErrInternal(msg string, err error) *AppError {
	return &AppError{Code: http.StatusInternalServerError, Message: msg, Err: err}
}

func ErrUpstream(msg string, err error) *AppError {
	return &AppError{Code: http.StatusBadGateway, Message: msg, Err: err}
}

// AsAppError attempts to extract an AppError from an error chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Reconciliation failures. They are scoped to a single webhook delivery.
var (
	// ErrMissingUserID means the subscription snapshot carries no userId metadata.
	ErrMissingUserID = errors.New("subscription metadata has no userId")
	// ErrUnknownUser means the owning user has no local row yet.
	ErrUnknownUser = errors.New("subscription references an unknown user")
	// ErrUnknownProduct means a price arrived before its product.
	ErrUnknownProduct = errors.New("price references an unknown product")
	// ErrCustomerNotFound means the user has never been through checkout.
	ErrCustomerNotFound = errors.New("billing customer not found")
)

// ErrConfirmationRejected means the identity provider refused an email
// confirmation token as invalid or expired.
var ErrConfirmationRejected = errors.New("confirmation token rejected")
