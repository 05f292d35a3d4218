// Package services defines the business logic for shift-change requests:
// extraction normalization, deterministic rule validation, the request
// lifecycle state machine, partner consent, admin approvals, and employee
// administration. This file centralizes common service-level error values so
// that they can be consistently returned by service methods and checked by
// callers.
//
// These errors are intended for internal use by the service layer; translation
// into user-facing messages or HTTP status codes is performed at the
// handler layer.
package services

import "errors"

// Request lifecycle errors.
var (
	// ErrRequestNotFound indicates the requested schedule request does not
	// exist.
	ErrRequestNotFound = errors.New("schedule request not found")

	// ErrNotPending is returned when a state transition is attempted on a
	// request whose status does not allow it (409 semantics). The stored
	// status is left untouched.
	ErrNotPending = errors.New("request is not pending this action")

	// ErrWrongActor is returned when the acting identity is not the party
	// the transition belongs to (e.g. a non-partner answering a swap consent).
	ErrWrongActor = errors.New("acting identity may not perform this action")

	// ErrNotAuthorized is returned when a non-admin submits a request on
	// behalf of someone else.
	ErrNotAuthorized = errors.New("cannot submit a request for another employee")
)

// Employee administration errors.
var (
	// ErrEmployeeNotFound indicates the referenced employee does not exist.
	ErrEmployeeNotFound = errors.New("employee not found")

	// ErrDuplicateEmployeeName is returned when creating or renaming an
	// employee would collide with an existing first/last name pair.
	ErrDuplicateEmployeeName = errors.New("an employee with this name already exists")
)

// Shift errors.
var (
	// ErrShiftNotFound indicates the referenced shift does not exist.
	ErrShiftNotFound = errors.New("shift not found")

	// ErrSlotTaken is returned when creating a shift for a (date, type) slot
	// that already has a row.
	ErrSlotTaken = errors.New("a shift already exists for this slot")
)
