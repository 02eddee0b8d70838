package errs

import "errors"

var (
	ErrRecordNotFound = errors.New("record not found")

	// ErrUnroutable is returned by the orchestrator when no handler is
	// registered for a (source, event) pair. The worker treats it as
	// terminal on first attempt.
	ErrUnroutable = errors.New("no handler for source/event pair")

	// ErrLocked is returned when an action lock is already held and still
	// inside its timeout window. Callers treat it as "ignored, already in
	// progress", not as failure.
	ErrLocked = errors.New("action already in progress")

	ErrInvalidTransition = errors.New("invalid attempt state transition")
	ErrInvalidSignature  = errors.New("invalid authentication")
)
