package appointments

import "errors"

var (
	// ErrNotFound is returned when the appointment does not exist
	ErrNotFound = errors.New("appointment not found")

	// ErrForbidden is returned when the appointment belongs to another patient
	ErrForbidden = errors.New("appointment belongs to another patient")

	// ErrMissingParameter is returned when a required request field is absent
	ErrMissingParameter = errors.New("missing required parameter")

	// ErrConfirmationRequired is returned when a state-changing action lacks confirmed=true
	ErrConfirmationRequired = errors.New("confirmation required")

	// ErrUnknownAction is returned when the action is not executable
	ErrUnknownAction = errors.New("unknown action")

	// ErrAlreadyCancelled is returned when a reschedule targets a cancelled appointment
	ErrAlreadyCancelled = errors.New("appointment is cancelled")
)
