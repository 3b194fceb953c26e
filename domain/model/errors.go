package model

import (
	"errors"
	"fmt"
)

var (
	ErrUnreachable       = errors.New("remote catalog unreachable")
	ErrRejected          = errors.New("remote catalog rejected the request")
	ErrNotFound          = errors.New("not found")
	ErrDraftNotFound     = fmt.Errorf("draft %w", ErrNotFound)
	ErrDrainInProgress   = errors.New("republish cycle already in progress")
	ErrInvalidSubmission = errors.New("invalid submission")
)

type GatewayErrorKind string

const (
	GatewayUnreachable GatewayErrorKind = "unreachable"
	GatewayRejected    GatewayErrorKind = "rejected"
	GatewayNotFound    GatewayErrorKind = "not_found"
)

// GatewayError is returned by every remote catalog call that did not succeed.
type GatewayError struct {
	Kind       GatewayErrorKind
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *GatewayError) Error() string {
	msg := fmt.Sprintf("catalog %s: %s", e.Op, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *GatewayError) Unwrap() error { return e.Err }

func (e *GatewayError) Is(target error) bool {
	switch target {
	case ErrUnreachable:
		return e.Kind == GatewayUnreachable
	case ErrRejected:
		return e.Kind == GatewayRejected
	case ErrNotFound:
		return e.Kind == GatewayNotFound
	}
	return false
}

func Unreachable(op string, err error) *GatewayError {
	return &GatewayError{Kind: GatewayUnreachable, Op: op, Err: err}
}

// EncodingError means no media source could be turned into a durable payload.
type EncodingError struct {
	Reason string
	Err    error
}

func (e *EncodingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("media encoding failed: %s: %v", e.Reason, e.Err)
	}
	return "media encoding failed: " + e.Reason
}

func (e *EncodingError) Unwrap() error { return e.Err }

// IsRetryable reports whether a failed publish should leave a draft behind.
func IsRetryable(err error) bool {
	var encErr *EncodingError
	return errors.Is(err, ErrUnreachable) || errors.As(err, &encErr)
}
