package workflow

import "errors"

// Expected business outcomes. Handlers map these to HTTP responses; they are
// never wrapped in raw infrastructure error text.
var (
	ErrNotFound          = errors.New("rfi not found")
	ErrExpired           = errors.New("link has expired")
	ErrAlreadyResponded  = errors.New("rfi has already been responded to")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrConflict          = errors.New("rfi was modified concurrently")
	ErrInvalidState      = errors.New("operation not allowed in the current state")
)
