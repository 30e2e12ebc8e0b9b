// Package apperr defines the failure taxonomy shared by the credential proxy, the
// session controller and the webhook client.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for status reporting and retry decisions.
type Kind string

const (
	KindConfiguration Kind = "configuration"
	KindUpstream      Kind = "upstream"
	KindInternal      Kind = "internal"
	KindTimeout       Kind = "timeout"
	KindTransport     Kind = "transport"
)

// Error is a classified failure. Status and Detail are set for upstream rejections.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Status  int
	Detail  []byte
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	switch {
	case e.Op != "" && e.Status != 0:
		return fmt.Sprintf("%s %s (status %d): %s", e.Op, e.Kind, e.Status, msg)
	case e.Op != "":
		return fmt.Sprintf("%s %s: %s", e.Op, e.Kind, msg)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, msg)
	}
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Retryable reports whether a user-initiated retry can succeed. Configuration errors are
// fatal until the deployment is fixed.
func (e *Error) Retryable() bool {
	return e != nil && e.Kind != KindConfiguration
}

// Configuration reports a missing or invalid server-side setting.
func Configuration(op, message string) *Error {
	return &Error{Kind: KindConfiguration, Op: op, Message: message}
}

// Upstream reports a non-2xx answer from a provider.
func Upstream(op string, status int, detail []byte, message string) *Error {
	return &Error{Kind: KindUpstream, Op: op, Status: status, Detail: detail, Message: message}
}

// Internal wraps network and serialization failures.
func Internal(op string, err error) *Error {
	return &Error{Kind: KindInternal, Op: op, Err: err}
}

// Timeout reports an operation that exceeded its deadline.
func Timeout(op string, err error) *Error {
	return &Error{Kind: KindTimeout, Op: op, Message: "operation timed out", Err: err}
}

// Transport reports a stream-level failure.
func Transport(op string, err error) *Error {
	return &Error{Kind: KindTransport, Op: op, Err: err}
}

// KindOf returns the kind of a classified error, or KindInternal for anything else.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
