package domain

import (
	"errors"
	"fmt"
)

// Housing request engine failures.
var (
	ErrActiveApplicationExists  = errors.New("applicant already has an active application")
	ErrDuplicateRequest         = errors.New("a request for this project already exists")
	ErrNoActiveApplication      = errors.New("applicant has no active application")
	ErrWithdrawalAlreadyPending = errors.New("withdrawal already requested")
	ErrCategoryUnavailable      = errors.New("no eligible unit category with remaining units")
	ErrProjectUnavailable       = errors.New("project is not open to this applicant")
	ErrNoUnitsRemaining         = errors.New("no units remaining for category")
	ErrNotBooked                = errors.New("request has no booked unit")
)

// Officer assignment engine failures.
var (
	ErrTimeConflict       = errors.New("project window overlaps an accepted assignment")
	ErrConflictOfInterest = errors.New("conflict of interest with project")
	ErrOfficerSlotsFull   = errors.New("project has no officer slots left")
	ErrInvalidWindow      = errors.New("project closes before it opens")
)

// Enquiry ticketing failures.
var (
	ErrTicketNotFound   = errors.New("enquiry not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrEmptyMessage     = errors.New("message text is empty")
	ErrInvalidSelection = errors.New("selection out of range")
)

// Shared and persistence boundary failures.
var (
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrInvalidEnumValue   = errors.New("invalid enum value")
	ErrMalformedRecord    = errors.New("malformed record")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// ErrNotFound is returned when a referenced entity does not exist.
type ErrNotFound struct {
	Entity EntityType
	ID     string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}
