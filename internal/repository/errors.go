// Package repository defines sentinel errors reused across repositories.
// Handlers use these values to distinguish failure scenarios: malformed
// input never reaches this layer, so everything here is either a state
// conflict the caller must resolve, a missing resource, or an ownership
// violation.  Storage errors pass through untouched and are treated as
// opaque by handlers.
package repository

import "errors"

// ErrForbidden is returned when the caller attempts an operation on a
// resource owned by someone else.  Handlers translate this into 403.
var ErrForbidden = errors.New("forbidden")

// ErrNoChange indicates an UPDATE attempted to set fields equal to the
// current values; no row was modified.
var ErrNoChange = errors.New("no change")

// Not-found sentinels, one per aggregate.
var (
	ErrVenueNotFound      = errors.New("venue not found")
	ErrEventNotFound      = errors.New("event not found")
	ErrSlotNotFound       = errors.New("slot not found")
	ErrAssignmentNotFound = errors.New("assignment not found")
)

// Slot state conflicts.  Each maps to a distinct precondition in the
// assignment and scheduling flows.
var (
	// ErrSlotConflict: the requested time range overlaps an active slot on
	// the same venue.
	ErrSlotConflict = errors.New("slot time overlaps an existing slot")
	// ErrSlotInUse: the slot cannot be deactivated while an active
	// assignment references it.
	ErrSlotInUse = errors.New("slot has an active assignment")
	// ErrSlotInactive: an inactive slot cannot be assigned.
	ErrSlotInactive = errors.New("slot is inactive")
	// ErrSlotAlreadyAssigned: another event already holds the slot.
	ErrSlotAlreadyAssigned = errors.New("slot is already assigned")
	// ErrSlotExpired: the slot start time is in the past; new assignments
	// are rejected.
	ErrSlotExpired = errors.New("slot start time is in the past")
	// ErrSlotEnded: the slot end time is in the past; past bindings are
	// immutable history and cannot be unassigned.
	ErrSlotEnded = errors.New("slot has already ended")
	// ErrDuplicateAssignment: this (event, slot) pair is already actively
	// bound.
	ErrDuplicateAssignment = errors.New("event is already assigned to this slot")
)

// Ticket state conflicts.
var (
	// ErrDuplicateLocation: an active ticket already occupies the location.
	ErrDuplicateLocation = errors.New("an active ticket already occupies this location")
	// ErrInactiveAtLocation: an inactive ticket blocks the location; it
	// should be reactivated via ticket update instead of duplicated.
	ErrInactiveAtLocation = errors.New("an inactive ticket occupies this location; reactivate it instead")
	// ErrCapacityExceeded: creating the ticket would push the active count
	// past the venue capacity.
	ErrCapacityExceeded = errors.New("venue capacity exceeded")
)

// ErrEmailExists is returned by user creation when the email is taken.
var ErrEmailExists = errors.New("email already exists")
