// Package errx builds errors that carry a package-level sentinel alongside
// their cause, so callers can branch with errors.Is on either.
package errx

import "fmt"

// Wrap returns an error matching both sentinel and err.
// A nil err yields the bare sentinel.
func Wrap(sentinel, err error) error {
	if err == nil {
		return sentinel
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}

// With returns an error matching sentinel whose message is the sentinel's
// followed by the formatted suffix. The format usually starts with ": " or
// a space.
func With(sentinel error, format string, args ...any) error {
	return fmt.Errorf("%w"+format, append([]any{sentinel}, args...)...)
}
