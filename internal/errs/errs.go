// Package errs defines the error taxonomy shared across the core:
// transient conditions that are logged and retried or dropped,
// configuration errors that abort startup, and fatal conditions that
// ask the outer runner to reset the firmware.
package errs

import "errors"

// Sentinel errors. Wrap with fmt.Errorf("...: %w", Err...) to add context.
var (
	// ErrTransient marks a condition worth logging and continuing past:
	// a full channel, a busy storage backend.
	ErrTransient = errors.New("transient error")

	// ErrConfiguration marks a condition that must abort initialization:
	// an invalid layer count, a malformed keymap.
	ErrConfiguration = errors.New("configuration error")

	// ErrFatal marks a condition that cannot be recovered from in place:
	// a corrupted internal invariant, a wedged scanner.
	ErrFatal = errors.New("fatal error")
)

// IsConfiguration reports whether err (or any error it wraps) is a
// configuration error.
func IsConfiguration(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

// IsFatal reports whether err (or any error it wraps) is a fatal error.
func IsFatal(err error) bool {
	return errors.Is(err, ErrFatal)
}

// IsTransient reports whether err (or any error it wraps) is a transient
// error.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}
