package helpers

import "fmt"

// WrapError prefixes err with message using %w. Returns nil for a nil err.
//
// Example:
//
//	return helpers.WrapError(err, "failed to open sqlite database")
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// WrapErrorf is WrapError with a formatted message.
func WrapErrorf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
