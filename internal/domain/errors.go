package domain

import (
	"errors"
	"strings"
)

var (
	// ErrConfigurationUnavailable is returned when trading metadata for a
	// market is missing or lacks sizing fields. Not retriable.
	ErrConfigurationUnavailable = errors.New("market configuration unavailable")

	// ErrQuoteUnavailable is returned when no live quote (or no price on the
	// requested side) is cached for a market. The strategy never falls back
	// to a REST price.
	ErrQuoteUnavailable = errors.New("real-time quote unavailable")

	// ErrInvalidSide is returned for a side outside the recognized aliases.
	ErrInvalidSide = errors.New("invalid order side")

	// ErrBelowMinimumSize is returned when the computed quantity is under
	// the venue minimum. Hard reject, never rounded up.
	ErrBelowMinimumSize = errors.New("quantity below minimum order size")

	// ErrStreamClosed marks an orderly connection close on the push feed.
	// The supervisor treats it as a normal reconnect trigger.
	ErrStreamClosed = errors.New("stream closed")
)

// RetriableError defines an interface for errors that can be retried
type RetriableError interface {
	error
	IsRetriable() bool
}

// IsRetriable checks if an error is retriable
func IsRetriable(err error) bool {
	var re RetriableError
	if errors.As(err, &re) {
		return re.IsRetriable()
	}
	return false
}

// NetworkError represents a network-related error that may be retriable
type NetworkError struct {
	Op        string // Operation that failed (e.g., "dial", "read", "request")
	Err       error  // Underlying error
	Retriable bool
}

func (e *NetworkError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *NetworkError) IsRetriable() bool {
	return e.Retriable
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// NewNetworkError creates a new retriable network error
func NewNetworkError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Err: err, Retriable: true}
}

// ExecutionKind classifies a rejected order placement.
type ExecutionKind int

const (
	ExecutionUnclassified ExecutionKind = iota
	ExecutionInsufficientBalance
	ExecutionPrecision
)

// String returns the user-facing name of the failure kind.
func (k ExecutionKind) String() string {
	switch k {
	case ExecutionInsufficientBalance:
		return "INSUFFICIENT_BALANCE"
	case ExecutionPrecision:
		return "PRECISION_ERROR"
	default:
		return "EXECUTION_FAILED"
	}
}

// ExecutionError is a classified order-placement rejection. It is terminal
// for the invocation that produced it; no retry is attempted.
type ExecutionError struct {
	Kind   ExecutionKind
	Market string
	Err    error
}

func (e *ExecutionError) Error() string {
	return e.Kind.String() + " [" + e.Market + "]: " + e.Err.Error()
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// IsRetriable always reports false: a rejected placement is never retried.
func (e *ExecutionError) IsRetriable() bool {
	return false
}

// Venue rejection phrases used for classification. These are the literal
// messages the exchange returns.
const (
	msgInsufficientBalance = "New order cost exceeds available balance"
	msgInvalidPrecision    = "Invalid quantity precision"
)

// ClassifyExecution wraps a placement failure into an ExecutionError,
// inspecting the venue's rejection message for the known distinct kinds.
func ClassifyExecution(market string, err error) *ExecutionError {
	kind := ExecutionUnclassified
	msg := err.Error()
	switch {
	case strings.Contains(msg, msgInsufficientBalance):
		kind = ExecutionInsufficientBalance
	case strings.Contains(msg, msgInvalidPrecision):
		kind = ExecutionPrecision
	}
	return &ExecutionError{Kind: kind, Market: market, Err: err}
}
