package encoder

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for classifying encode failures. All of them are
// recoverable per payload; use errors.Is to test for them.
var (
	// ErrInvalidPayload is returned for an empty payload.
	ErrInvalidPayload = errors.New("invalid payload")

	// ErrInvalidOption is returned when an Options field is out of range or
	// malformed.
	ErrInvalidOption = errors.New("invalid option")

	// ErrCapacityExceeded is returned when the payload does not fit the
	// largest QR symbol at the requested error-correction level.
	ErrCapacityExceeded = errors.New("capacity exceeded")
)

// OptionError describes which option was rejected and why. It unwraps to
// ErrInvalidOption.
type OptionError struct {
	Field  string
	Value  any
	Reason string
}

func (e *OptionError) Error() string {
	return fmt.Sprintf("invalid option %s=%v: %s", e.Field, e.Value, e.Reason)
}

func (e *OptionError) Unwrap() error {
	return ErrInvalidOption
}

// CapacityError reports a payload that is too long for the chosen level.
// It unwraps to ErrCapacityExceeded.
type CapacityError struct {
	Level  Level
	Mode   string // numeric, alphanumeric or byte
	Length int    // payload length in bytes
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("capacity exceeded: %d-byte %s payload does not fit a version 40 symbol at level %s",
		e.Length, e.Mode, e.Level)
}

func (e *CapacityError) Unwrap() error {
	return ErrCapacityExceeded
}

// Kind returns a short machine-readable name for the class of err:
// "invalid_payload", "invalid_option", "capacity_exceeded", "canceled" or
// "internal".
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidPayload):
		return "invalid_payload"
	case errors.Is(err, ErrInvalidOption):
		return "invalid_option"
	case errors.Is(err, ErrCapacityExceeded):
		return "capacity_exceeded"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "internal"
	}
}
