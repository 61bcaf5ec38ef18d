package appointments

import "errors"

var (
	// ErrInvalidDate is returned when the appointment date does not parse
	ErrInvalidDate = errors.New("invalid appointment date")

	// ErrInvalidTimeSlot is returned when the time slot does not parse
	ErrInvalidTimeSlot = errors.New("invalid time slot")

	// ErrPastAppointment is returned when the requested date/time is not in the future
	ErrPastAppointment = errors.New("appointment must be in the future")

	// ErrAppointmentNotFound is returned when an appointment is not found
	ErrAppointmentNotFound = errors.New("appointment not found")

	// ErrSlotTaken is returned when an active appointment already occupies the slot
	ErrSlotTaken = errors.New("this time slot is already booked")

	// ErrNoDentistAvailable is returned when auto-assignment finds no free dentist
	ErrNoDentistAvailable = errors.New("no available dentist for this slot")

	// ErrAlreadyCancelled is returned when cancelling a cancelled appointment
	ErrAlreadyCancelled = errors.New("appointment is already cancelled")

	// ErrAlreadyCompleted is returned when cancelling a completed appointment
	ErrAlreadyCompleted = errors.New("cannot cancel a completed appointment")

	// ErrMeetingLinkSet is returned when a video chat link was already assigned
	ErrMeetingLinkSet = errors.New("meeting link already set")

	// ErrInvalidTransition is returned when a status change violates the transition table
	ErrInvalidTransition = errors.New("status transition not allowed")

	// ErrPermissionDenied is returned on role/ownership mismatch
	ErrPermissionDenied = errors.New("permission denied")
)
