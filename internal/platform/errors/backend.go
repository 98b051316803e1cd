package errors

import (
	"context"
	stderrs "errors"
	"net"
	"syscall"
)

// Store-level error classification. Every storage backend funnels its driver
// errors through BackendErr so nothing store-specific leaks past the
// executor boundary.

// BackendErr wraps a driver error with Backend code plus target and op labels
// nil in, nil out
func BackendErr(err error, target, op string) error {
	if err == nil {
		return nil
	}
	code := ErrorCodeBackend
	if isTransient(err) {
		code = ErrorCodeUnavailable
	}
	e := &Error{code: code, msg: target + " " + op + " failed", orig: err, target: target, op: op}
	return e
}

// isTransient reports whether err looks like a connectivity blip
// rather than a store-side rejection
func isTransient(err error) bool {
	if stderrs.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if stderrs.As(err, &ne) && ne.Timeout() {
		return true
	}
	return stderrs.Is(err, syscall.ECONNREFUSED) || stderrs.Is(err, syscall.ECONNRESET)
}

// Retryable reports whether the error is worth retrying upstream
// The core never retries; the HTTP/CLI layer may consult this
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if IsCode(err, ErrorCodeUnavailable) || IsCode(err, ErrorCodeTooManyRequests) {
		return true
	}
	return isTransient(Root(err))
}
