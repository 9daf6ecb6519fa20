package lockin

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyActive is returned when starting or reconfiguring a running session
	ErrAlreadyActive = errors.New("lockin is running")

	// ErrNotActive is returned when an operation requires a running session
	ErrNotActive = errors.New("lockin is not running")

	// ErrInvalidConfig is returned when a configuration value is out of range
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrFormatUnsupported is returned when the negotiated format fails the acceptance predicate
	ErrFormatUnsupported = errors.New("format not supported")

	// ErrNoData is returned when a cycle finds no complete sample pair in the buffer
	ErrNoData = errors.New("nothing new")

	// ErrPriming is returned while the integration window holds fewer samples than its capacity
	ErrPriming = errors.New("integration window not full")

	// ErrNoLock is returned when the integration window holds no valid sample
	ErrNoLock = errors.New("no reference lock")
)

// FormatError describes a rejected sample format
type FormatError struct {
	Format Format
	Reason string
}

func newFormatError(f Format, reason string) *FormatError {
	return &FormatError{Format: f, Reason: reason}
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%s: %s (%s)", ErrFormatUnsupported, e.Reason, e.Format)
}

func (e *FormatError) Unwrap() error {
	return ErrFormatUnsupported
}
