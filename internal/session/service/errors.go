package service

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the services wraps exactly one of these; handlers map them
// to status codes with errors.Is.
var (
	ErrValidation       = errors.New("validation error")
	ErrNotFound         = errors.New("not found")
	ErrExpired          = errors.New("expired")
	ErrAlreadyActivated = errors.New("already activated")
	ErrOriginMismatch   = errors.New("origin mismatch")
	ErrSecretMismatch   = errors.New("secret mismatch")
	ErrCrypto           = errors.New("crypto error")
	ErrUpstream         = errors.New("upstream error")
)

// MessageUnknown is the client-facing message for upstream failures.
const MessageUnknown = "Unknown error"

// Error is a classified service failure. Message is stable and safe to show to clients; Cause is for logs only.
type Error struct {
	Kind    error
	Message string
	Cause   error
}

func newError(kind error, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func upstream(op string, cause error) *Error {
	return newError(ErrUpstream, MessageUnknown, fmt.Errorf("%s: %w", op, cause))
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Kind, e.Cause}
	}
	return []error{e.Kind}
}

// Message returns the client-facing message of err, or MessageUnknown when err is not a service Error.
func Message(err error) string {
	var se *Error
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}
	return MessageUnknown
}

var kindLabels = []struct {
	kind  error
	label string
}{
	{ErrValidation, "validation"},
	{ErrNotFound, "not_found"},
	{ErrExpired, "expired"},
	{ErrAlreadyActivated, "already_activated"},
	{ErrOriginMismatch, "origin_mismatch"},
	{ErrSecretMismatch, "secret_mismatch"},
	{ErrCrypto, "crypto"},
	{ErrUpstream, "upstream"},
}

// Reason returns a short label for err's kind ("ok" for nil), used as metric label and log reason.
func Reason(err error) string {
	if err == nil {
		return "ok"
	}
	for _, kl := range kindLabels {
		if errors.Is(err, kl.kind) {
			return kl.label
		}
	}
	return "internal"
}
