package taskboard

import (
	"errors"
	"fmt"
	"strings"
)

// error taxonomy for the mutation surface:
// - `*ValidationError` means the caller input is malformed and can be corrected and resent
// - `ErrNotFound` means the referenced identity does not exist
// - `ErrConflict` means a uniqueness constraint was violated
// - `ErrUnavailable` means the backing store could not be reached in time.
//   retry, if any, is the caller's responsibility
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrUnavailable = errors.New("store unavailable")
)

// caller input malformed. carries enough detail to correct the input.
type ValidationError struct {
	Causes []string
}

func NewValidationError(causes ...string) *ValidationError {
	return &ValidationError{
		Causes: causes,
	}
}

func (self *ValidationError) Error() string {
	if len(self.Causes) == 0 {
		return "invalid input"
	}
	return fmt.Sprintf("invalid input: %s", strings.Join(self.Causes, "; "))
}

func IsValidationError(err error) bool {
	var validationErr *ValidationError
	return errors.As(err, &validationErr)
}
