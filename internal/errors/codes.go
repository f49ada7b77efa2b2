package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents internal error codes for ring operations
type ErrorCode int

const (
	// Success
	ErrCodeOK ErrorCode = 0

	// Caller errors
	ErrCodeInvalidArgument ErrorCode = 1000
	ErrCodeNotFound        ErrorCode = 1001
	ErrCodeAlreadyExists   ErrorCode = 1002
	ErrCodeEmptyRing       ErrorCode = 1003

	// Ring errors
	ErrCodeInternal      ErrorCode = 2000
	ErrCodeHashCollision ErrorCode = 2001
)

// String returns a short name for the code, used as a metrics label.
func (c ErrorCode) String() string {
	switch c {
	case ErrCodeOK:
		return "ok"
	case ErrCodeInvalidArgument:
		return "invalid_argument"
	case ErrCodeNotFound:
		return "not_found"
	case ErrCodeAlreadyExists:
		return "already_exists"
	case ErrCodeEmptyRing:
		return "empty_ring"
	case ErrCodeHashCollision:
		return "hash_collision"
	default:
		return "internal"
	}
}

// Sentinels for errors.Is matching. A RingError matches the sentinel of its code.
var (
	ErrInvalidArgument = &RingError{Code: ErrCodeInvalidArgument, Message: "invalid argument"}
	ErrNotFound        = &RingError{Code: ErrCodeNotFound, Message: "not found"}
	ErrAlreadyExists   = &RingError{Code: ErrCodeAlreadyExists, Message: "already exists"}
	ErrEmptyRing       = &RingError{Code: ErrCodeEmptyRing, Message: "ring has no virtual nodes"}
	ErrHashCollision   = &RingError{Code: ErrCodeHashCollision, Message: "hash collision"}
)

// RingError represents a structured error with code and context
type RingError struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Cause   error
}

// Error implements the error interface
func (e *RingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error
func (e *RingError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a RingError carrying the same code.
// An empty-ring error is also a not-found error.
func (e *RingError) Is(target error) bool {
	t, ok := target.(*RingError)
	if !ok {
		return false
	}
	if t.Code == e.Code {
		return true
	}
	return e.Code == ErrCodeEmptyRing && t.Code == ErrCodeNotFound
}

// NewRingError creates a new RingError
func NewRingError(code ErrorCode, message string, cause error) *RingError {
	return &RingError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Cause:   cause,
	}
}

// WithDetail adds a detail to the error
func (e *RingError) WithDetail(key string, value interface{}) *RingError {
	e.Details[key] = value
	return e
}

// Convenience constructors for common errors

func InvalidArgument(message string, cause error) *RingError {
	return NewRingError(ErrCodeInvalidArgument, message, cause)
}

func NodeNotFound(address string) *RingError {
	return NewRingError(ErrCodeNotFound, fmt.Sprintf("physical node not found: %s", address), nil).
		WithDetail("address", address)
}

func NodeAlreadyExists(address string) *RingError {
	return NewRingError(ErrCodeAlreadyExists, fmt.Sprintf("physical node already installed: %s", address), nil).
		WithDetail("address", address)
}

func EmptyRing(key uint32) *RingError {
	return NewRingError(ErrCodeEmptyRing, fmt.Sprintf("no virtual node can own hash %d: ring is empty", key), nil).
		WithDetail("hash", key)
}

func HashCollision(replica string, key uint32, owner string) *RingError {
	return NewRingError(ErrCodeHashCollision, fmt.Sprintf("replica %s collides at %d with %s", replica, key, owner), nil).
		WithDetail("replica", replica).
		WithDetail("hash", key).
		WithDetail("owner", owner)
}

func InternalError(message string, cause error) *RingError {
	return NewRingError(ErrCodeInternal, message, cause)
}

// IsRingError checks if an error is a RingError
func IsRingError(err error) bool {
	var re *RingError
	return stderrors.As(err, &re)
}

// GetCode extracts the error code from an error
func GetCode(err error) ErrorCode {
	if err == nil {
		return ErrCodeOK
	}
	var re *RingError
	if stderrors.As(err, &re) {
		return re.Code
	}
	return ErrCodeInternal
}
