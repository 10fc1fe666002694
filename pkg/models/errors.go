package models

import "errors"

var (
	// ErrNoAvailableResponder is returned when the roster has no candidate for a lead.
	// No alert is created; the caller decides the fallback.
	ErrNoAvailableResponder = errors.New("no available responder")

	// ErrAlertNotFound is returned for unknown or expired alert IDs
	ErrAlertNotFound = errors.New("alert not found")

	// ErrStaleState is returned when a conditional update lost to another transition
	ErrStaleState = errors.New("alert state changed concurrently")

	// ErrInvalidTransition is returned when the stored status does not admit the transition
	ErrInvalidTransition = errors.New("invalid alert status transition")
)
