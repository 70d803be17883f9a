package types

import (
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("requested item not found")
var ErrConflict = errors.New("item already exists or conflict")
var ErrUnauthenticated = errors.New("authentication required or invalid credentials")
var ErrForbidden = errors.New("action forbidden")
var ErrValidation = errors.New("invalid input")
var ErrPasswordMismatch = errors.New("passwords do not match")
var ErrInvalidOTP = errors.New("invalid or expired one-time code")
var ErrAccountLocked = errors.New("account temporarily locked")

// AccountLockedError carries the remaining lockout duration so callers can
// surface a Retry-After to the client. errors.Is(err, ErrAccountLocked) holds.
type AccountLockedError struct {
	RetryAfter int // seconds until the lockout window elapses
}

func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("account temporarily locked, retry after %d seconds", e.RetryAfter)
}

func (e *AccountLockedError) Unwrap() error {
	return ErrAccountLocked
}
