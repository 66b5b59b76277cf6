package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Error is a failure that carries the HTTP status to answer with. Handlers
// return it to choose the response; anything else maps through StatusOf.
type Error struct {
	Status  int
	Message string
	Err     error
}

// NewError builds an Error with a client-facing message.
func NewError(status int, message string) *Error {
	return &Error{Status: status, Message: message}
}

// Wrap builds an Error around err.
func Wrap(status int, message string, err error) *Error {
	return &Error{Status: status, Message: message, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%d %s: %v", e.Status, e.Message, e.Err)
	}
	return fmt.Sprintf("%d %s", e.Status, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// StatusOf returns the response status for err: the status of an *Error,
// 503 for cancelled or expired requests and 500 otherwise.
func StatusOf(err error) int {
	if he, ok := asHTTPError(err); ok {
		return he.Status
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func asHTTPError(err error) (*Error, bool) {
	var he *Error
	if errors.As(err, &he) {
		return he, true
	}
	return nil, false
}
