package domain

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
)

type ErrorKind int

const (
	KindUnexpectedResponse ErrorKind = iota
	KindConnectionFailed
	KindTimeout
	KindInvalidConfig
)

func (k ErrorKind) String() string {
	switch k {
	case KindConnectionFailed:
		return "connection failed"
	case KindTimeout:
		return "timeout"
	case KindInvalidConfig:
		return "invalid config"
	default:
		return "unexpected response"
	}
}

// Status is the one place error kinds map to check statuses.
func (k ErrorKind) Status() Status {
	switch k {
	case KindConnectionFailed, KindTimeout:
		return StatusCritical
	default:
		return StatusUnknown
	}
}

type Error struct {
	Kind ErrorKind
	Op   string
	Err  error

	override *Status
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// WithStatus overrides the kind's status for this error only.
func (e *Error) WithStatus(status Status) *Error {
	e.override = &status
	return e
}

func (e *Error) Status() Status {
	if e.override != nil {
		return *e.override
	}
	return e.Kind.Status()
}

func newError(kind ErrorKind, op string, err error) *Error {
	if err == nil {
		err = errors.New(kind.String())
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

func ConnectionFailed(op string, err error) *Error {
	return newError(KindConnectionFailed, op, err)
}

func Timeout(op string, err error) *Error {
	return newError(KindTimeout, op, err)
}

func UnexpectedResponse(op string, err error) *Error {
	return newError(KindUnexpectedResponse, op, err)
}

func InvalidConfig(format string, args ...interface{}) *Error {
	return newError(KindInvalidConfig, "", fmt.Errorf(format, args...))
}

// Classify wraps err with the kind KindOf infers, leaving *Error values untouched.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) {
		return err
	}
	return newError(KindOf(err), op, err)
}

// KindOf inspects an error chain and returns its kind.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return KindTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return KindConnectionFailed
	}

	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EHOSTUNREACH) || errors.Is(err, syscall.ENETUNREACH) {
		return KindConnectionFailed
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return KindConnectionFailed
	}

	return KindUnexpectedResponse
}

// StatusOf returns the status a failed plugin run reports for err.
func StatusOf(err error) Status {
	var de *Error
	if errors.As(err, &de) {
		return de.Status()
	}
	return KindOf(err).Status()
}
