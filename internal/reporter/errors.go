package reporter

import (
	"errors"
	"fmt"
)

// Sentinel errors for account and submission calls.
var (
	ErrEmptyUsername = errors.New("enter username first")
	ErrUserNotFound  = errors.New("user not found, please register first")
	ErrLoginFailed   = errors.New("login failed")
)

// ServiceError is a non-2xx answer from the scoring service. Message is the
// server's own message when it sent one.
type ServiceError struct {
	Status  int
	Message string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s (status %d)", e.Message, e.Status)
}
