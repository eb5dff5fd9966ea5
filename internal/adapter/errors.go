package adapter

import (
	"errors"
	"fmt"
)

var (
	ErrBadRequest          = errors.New("bad request")
	ErrUnauthorized        = errors.New("client unauthorized")
	ErrForbidden           = errors.New("forbidden")
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflict")
	ErrUnprocessable       = errors.New("unprocessable content")
	ErrTooManyRequests     = errors.New("too many requests")
	ErrInternalServerError = errors.New("internal server error")
	ErrBadGateway          = errors.New("bad gateway")
	ErrServiceUnavailable  = errors.New("service unavailable")
	ErrTimeout             = errors.New("request timed out")
	ErrNetwork             = errors.New("network error")
	ErrTokenExpired        = errors.New("bearer token expired")
	ErrUnsupportedKind     = errors.New("unsupported operation kind")
	ErrMissingPublicID     = errors.New("operation requires a public id")
	ErrDecodingResponse    = errors.New("error decoding response")
)

// ErrorClass tells the sync processor how to treat a failed dispatch.
type ErrorClass int

const (
	// ClassPermanent failures are never retried.
	ClassPermanent ErrorClass = iota
	// ClassTransient failures may succeed when retried later.
	ClassTransient
)

func (c ErrorClass) String() string {
	if c == ClassTransient {
		return "transient"
	}
	return "permanent"
}

// RemoteError is the error type returned by every [Transport] failure.
type RemoteError struct {
	Class ErrorClass
	// StatusCode is the HTTP status of the response, 0 when no response was
	// received.
	StatusCode int
	Err        error
}

func (e *RemoteError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s remote failure (http %d): %v", e.Class, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s remote failure: %v", e.Class, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

func transient(status int, err error) *RemoteError {
	return &RemoteError{Class: ClassTransient, StatusCode: status, Err: err}
}

func permanent(status int, err error) *RemoteError {
	return &RemoteError{Class: ClassPermanent, StatusCode: status, Err: err}
}

// IsTransient reports whether err is a [*RemoteError] of class transient.
func IsTransient(err error) bool {
	var re *RemoteError
	return errors.As(err, &re) && re.Class == ClassTransient
}

// IsPermanent reports whether err is a [*RemoteError] of class permanent.
func IsPermanent(err error) bool {
	var re *RemoteError
	return errors.As(err, &re) && re.Class == ClassPermanent
}
