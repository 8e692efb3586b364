// Package errors defines the storefront's error vocabulary: sentinels for
// each failure class and AppError, which carries a stable code and an HTTP
// status alongside a client-safe message.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors, one per failure class.
var (
	ErrNotFound         = errors.New("resource not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrConflict         = errors.New("conflict")
	ErrUnprocessable    = errors.New("unprocessable")
	ErrCheckoutRejected = errors.New("checkout rejected")
	ErrServiceUnavail   = errors.New("service unavailable")
)

type class struct {
	sentinel error
	status   int
	code     string
}

var classes = []class{
	{ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
	{ErrInvalidInput, http.StatusBadRequest, "INVALID_INPUT"},
	{ErrConflict, http.StatusConflict, "CONFLICT"},
	{ErrUnprocessable, http.StatusUnprocessableEntity, "UNPROCESSABLE"},
	{ErrCheckoutRejected, http.StatusBadGateway, "CHECKOUT_REJECTED"},
	{ErrServiceUnavail, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"},
}

func classOf(err error) (class, bool) {
	for _, c := range classes {
		if errors.Is(err, c.sentinel) {
			return c, true
		}
	}
	return class{}, false
}

// AppError is an error with a stable code, an HTTP status and a message that
// is safe to show to clients.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates an AppError with its own code whose status follows from
// sentinel. An unknown sentinel yields a 500.
func New(code string, sentinel error, message string) *AppError {
	status := http.StatusInternalServerError
	if c, ok := classOf(sentinel); ok {
		status = c.status
	}
	return &AppError{Code: code, Message: message, Status: status, Err: sentinel}
}

func newClass(sentinel error, message string) *AppError {
	c, _ := classOf(sentinel)
	return &AppError{Code: c.code, Message: message, Status: c.status, Err: sentinel}
}

// NotFound creates a 404 error.
func NotFound(resource, id string) *AppError {
	return newClass(ErrNotFound, fmt.Sprintf("%s with id %s not found", resource, id))
}

// InvalidInput creates a 400 error.
func InvalidInput(message string) *AppError {
	return newClass(ErrInvalidInput, message)
}

// Conflict creates a 409 error.
func Conflict(message string) *AppError {
	return newClass(ErrConflict, message)
}

// CheckoutRejected creates a 502 error carrying the message the checkout
// backend returned.
func CheckoutRejected(message string) *AppError {
	return newClass(ErrCheckoutRejected, message)
}

// ServiceUnavailable creates a 503 error.
func ServiceUnavailable(message string) *AppError {
	return newClass(ErrServiceUnavail, message)
}

// HTTPStatus returns the HTTP status for err: an AppError's own status, the
// status of the sentinel it wraps, or 500.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}
	if c, ok := classOf(err); ok {
		return c.status
	}
	return http.StatusInternalServerError
}

// Code returns the error code for err, following the same rules as
// HTTPStatus. Unclassified errors are INTERNAL_ERROR.
func Code(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	if c, ok := classOf(err); ok {
		return c.code
	}
	return "INTERNAL_ERROR"
}
