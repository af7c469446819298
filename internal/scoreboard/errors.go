package scoreboard

import "errors"

// Sentinel errors for scoreboard operations.
var (
	ErrEmptyUsername = errors.New("username is required")
	ErrInvalidTime   = errors.New("reactionTime must be a positive number")
	ErrUserExists    = errors.New("username already exists")
	ErrUserNotFound  = errors.New("user not found")
)
