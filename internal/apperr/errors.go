// Package apperr defines the error taxonomy shared by the store, the dialogue
// machine and the outer surfaces.
package apperr

import "errors"

var (
	ErrValidation     = errors.New("validation failed")
	ErrNotFound       = errors.New("not found")
	ErrNoContext      = errors.New("no note selected")
	ErrUnknownCommand = errors.New("unknown command")
	ErrAIDelegation   = errors.New("ai delegation failed")
	// ErrConflict marks a broken store guarantee (e.g. id collision). It is a
	// bug, never a user mistake.
	ErrConflict = errors.New("conflict")
)

// Validation wraps ErrValidation with a human-readable reason.
func Validation(reason string) error {
	return &reasonError{kind: ErrValidation, reason: reason}
}

// NotFound wraps ErrNotFound with a human-readable reason.
func NotFound(reason string) error {
	return &reasonError{kind: ErrNotFound, reason: reason}
}

type reasonError struct {
	kind   error
	reason string
}

func (e *reasonError) Error() string { return e.kind.Error() + ": " + e.reason }
func (e *reasonError) Unwrap() error { return e.kind }

// Reason returns the human-readable reason carried by err, or "" if none.
func Reason(err error) string {
	var re *reasonError
	if errors.As(err, &re) {
		return re.reason
	}
	return ""
}
