package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by the usecase, service and api layers.
// Match them with errors.Is; validation failures wrap ErrValidation.
var (
	// ErrPermissionDenied is returned when a non-operator calls an operator-only action
	ErrPermissionDenied = errors.New("permission denied")

	// ErrNotFound is returned when a session is missing or has no items
	ErrNotFound = errors.New("not found")

	// ErrValidation is the parent of all input validation errors
	ErrValidation = errors.New("validation error")

	ErrInvalidProtect = fmt.Errorf("%w: protect must be on or off", ErrValidation)
	ErrInvalidTimer   = fmt.Errorf("%w: timer must be whole minutes from %d to %d", ErrValidation, MinTimerMinutes, MaxTimerMinutes)
	ErrEmptyText      = fmt.Errorf("%w: text is empty", ErrValidation)

	// ErrUnknownMessageName is returned for canned message names outside {start, help}
	ErrUnknownMessageName = errors.New("unknown message name")

	// ErrNoDraft is returned when authoring input arrives without an active draft
	ErrNoDraft = errors.New("no upload in progress")

	// ErrOutOfStep is returned when authoring input does not fit the current step
	ErrOutOfStep = errors.New("input not expected at this step")

	// ErrSessionIDConflict is returned by the store when a generated session id is already taken
	ErrSessionIDConflict = errors.New("session id already exists")
)
