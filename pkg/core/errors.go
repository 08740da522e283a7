package core

import (
	"errors"
	"fmt"
)

// UnknownElement is the symbol reported for a mass/charge value that has no
// reference isotope within tolerance.
const UnknownElement = "unknown"

var (
	// ErrNotFound is returned when a source file does not exist.
	ErrNotFound = errors.New("file not found")

	// ErrDecode is matched by every DecodeError via errors.Is.
	ErrDecode = errors.New("decode error")
)

// DecodeError reports a POS stream that cannot be interpreted as ion records.
type DecodeError struct {
	Path string // Source path, empty for in-memory streams
	Size int64  // Byte length seen, -1 if unknown
	Err  error
}

func (e *DecodeError) Error() string {
	msg := "decode error"
	if e.Path != "" {
		msg = fmt.Sprintf("decode error in %s", e.Path)
	}
	if e.Size >= 0 {
		msg = fmt.Sprintf("%s (%d bytes)", msg, e.Size)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrDecode) true for any DecodeError.
func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

// NotFound wraps ErrNotFound with the offending path.
func NotFound(path string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, path)
}

// ValidationError represents an error found while validating a value.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", e.Field, e.Message)
}
