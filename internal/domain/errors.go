package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures surfaced to the consumer.
type ErrorKind string

const (
	KindConfiguration  ErrorKind = "ConfigurationError"
	KindAuthentication ErrorKind = "AuthenticationFailure"
	KindNetwork        ErrorKind = "NetworkFailure"
	KindNotConnected   ErrorKind = "NotConnected"
	KindSend           ErrorKind = "SendFailure"
	KindEmptyNote      ErrorKind = "EmptyNote"
)

// Error is a classified failure. Err, when set, is the underlying cause.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Err != nil:
		return e.Err.Error()
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by kind, so errors.Is(err, ErrNotConnected) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Err == nil && t.Kind == e.Kind
}

// Sentinel errors for each kind.
var (
	ErrConfiguration  = &Error{Kind: KindConfiguration}
	ErrAuthentication = &Error{Kind: KindAuthentication}
	ErrNetwork        = &Error{Kind: KindNetwork}
	ErrNotConnected   = &Error{Kind: KindNotConnected}
	ErrSend           = &Error{Kind: KindSend}
	ErrEmptyNote      = &Error{Kind: KindEmptyNote}
)

// Wrap classifies err under kind. Errors that already carry a kind are kept as is.
func Wrap(kind ErrorKind, op string, err error) error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) {
		return err
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of err, defaulting to KindNetwork for unclassified errors.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindNetwork
}
