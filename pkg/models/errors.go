package models

import (
	"errors"
	"fmt"
)

// Error kinds shared by the routing engine and every broker adapter. Match
// with errors.Is; adapter errors additionally carry the offending broker
// identity via BrokerError.
var (
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrConnection           = errors.New("connection error")
	ErrRateLimited          = errors.New("rate limited")
	ErrInvalidOrder         = errors.New("invalid order")
	ErrNoCapableBroker      = errors.New("no capable broker")
	ErrNoBrokerAvailable    = errors.New("no broker available")
	ErrUnknown              = errors.New("unknown error")
)

// BrokerError wraps a failure with the broker it came from and its kind.
type BrokerError struct {
	Broker  BrokerID
	Kind    error
	Message string
	Err     error
}

// NewBrokerError builds a BrokerError of the given kind.
func NewBrokerError(broker BrokerID, kind error, message string, err error) *BrokerError {
	return &BrokerError{Broker: broker, Kind: kind, Message: message, Err: err}
}

// Error implements the error interface.
func (e *BrokerError) Error() string {
	msg := e.Message
	if msg == "" && e.Kind != nil {
		msg = e.Kind.Error()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Broker, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Broker, msg)
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *BrokerError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// ErrorKind extracts the taxonomy sentinel an error matches, defaulting to
// ErrUnknown.
func ErrorKind(err error) error {
	switch {
	case errors.Is(err, ErrAuthenticationFailed):
		return ErrAuthenticationFailed
	case errors.Is(err, ErrConnection):
		return ErrConnection
	case errors.Is(err, ErrRateLimited):
		return ErrRateLimited
	case errors.Is(err, ErrInvalidOrder):
		return ErrInvalidOrder
	case errors.Is(err, ErrNoCapableBroker):
		return ErrNoCapableBroker
	case errors.Is(err, ErrNoBrokerAvailable):
		return ErrNoBrokerAvailable
	default:
		return ErrUnknown
	}
}

// IsRetryable reports whether a failed placement may be retried against an
// alternative broker. Invalid orders, rejected credentials and throttling
// are never retried; connection-level and uncategorized failures are.
func IsRetryable(err error) bool {
	switch ErrorKind(err) {
	case ErrConnection, ErrUnknown:
		return true
	default:
		return false
	}
}

// ErrorBroker returns the broker identity attached to an error chain, if any.
func ErrorBroker(err error) (BrokerID, bool) {
	var be *BrokerError
	if errors.As(err, &be) {
		return be.Broker, true
	}
	return "", false
}
