// Package apperr separates transient failures, which a user may retry
// explicitly, from business-rule failures, which are terminal for the action.
package apperr

import (
	"context"
	"errors"
	"net"
)

type Class int

const (
	ClassTerminal Class = iota
	ClassTransient
)

type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// Transient marks err as retryable by explicit user action.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

func Classify(err error) Class {
	if err == nil {
		return ClassTerminal
	}
	var te *transientError
	if errors.As(err, &te) {
		return ClassTransient
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ClassTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return ClassTransient
	}
	return ClassTerminal
}

func IsTransient(err error) bool {
	return Classify(err) == ClassTransient
}
