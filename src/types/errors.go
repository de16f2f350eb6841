package types

import "errors"

// Domain error taxonomy. Handlers map these onto HTTP statuses; the
// settlement workers use them to decide between retry, reconcile and stop.
var (
	ErrInvalidTransition = errors.New("status transition not allowed")
	ErrInvalidState      = errors.New("operation not valid in current state")

	ErrSlotsFull        = errors.New("all provider slots are filled")
	ErrAlreadyAssigned  = errors.New("provider is already assigned to this booking")
	ErrScheduleConflict = errors.New("provider has a conflicting booking in this window")

	ErrDuplicatePayout   = errors.New("a payout already exists for this booking")
	ErrAlreadyProcessing = errors.New("payout is already being processed")

	// ErrGatewayTimeout means the outcome of the outbound call is unknown.
	// Callers must reconcile with a status query, never retry blindly.
	ErrGatewayTimeout  = errors.New("gateway call timed out with unknown outcome")
	ErrGatewayRejected = errors.New("gateway rejected the request")
)
