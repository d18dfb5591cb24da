// Package errors defines the stable error kinds the engine surfaces to
// calling layers. Handlers map codes to actionable messages instead of
// leaking raw database or driver errors.
package errors

import "errors"

// DomainError carries a stable machine-readable code alongside a
// human-readable message.
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *DomainError) Unwrap() error { return e.Err }

// Is matches two DomainErrors by code, so wrapped instances still compare
// equal to their sentinel.
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// Wrap returns a copy of the sentinel carrying the underlying cause.
func Wrap(sentinel *DomainError, err error) *DomainError {
	return &DomainError{Code: sentinel.Code, Message: sentinel.Message, Err: err}
}
