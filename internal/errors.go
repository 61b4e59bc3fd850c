package internal

import "fmt"

// ValidationError is returned when an operation is given input it cannot act
// on, such as an unsupported target or an empty set of SBOMs to merge.
type ValidationError string

func (e ValidationError) Error() string {
	return string(e)
}

// NewValidationError formats a ValidationError.
func NewValidationError(format string, args ...interface{}) ValidationError {
	return ValidationError(fmt.Sprintf(format, args...))
}

// MissingDependencyError is returned when a required external tool cannot be
// found.
type MissingDependencyError string

func (e MissingDependencyError) Error() string {
	return fmt.Sprintf("required tool %q is not installed or not on the $PATH", string(e))
}
