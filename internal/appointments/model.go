package appointments

import (
	"time"

	"github.com/dentalink/clinic-platform/internal/dentists"
	"github.com/dentalink/clinic-platform/internal/patients"
)

// Status is the appointment lifecycle state.
type Status string

const (
	StatusScheduled Status = "SCHEDULED"
	StatusConfirmed Status = "CONFIRMED"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusConfirmed, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Active reports whether the appointment still occupies its slot.
func (s Status) Active() bool {
	return s == StatusScheduled || s == StatusConfirmed
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Appointment is a booked slot for a patient with a dentist.
type Appointment struct {
	ID                   string    `json:"id"`
	PatientID            string    `json:"patient_id"`
	DentistID            string    `json:"dentist_id"`
	AppointmentDate      time.Time `json:"appointment_date"`
	TimeSlot             string    `json:"time_slot"`
	Duration             int       `json:"duration"`
	AppointmentType      string    `json:"appointment_type,omitempty"`
	ConditionDescription string    `json:"condition_description,omitempty"`
	PatientAge           int       `json:"patient_age,omitempty"`
	ConditionDuration    string    `json:"condition_duration,omitempty"`
	Severity             string    `json:"severity,omitempty"`
	Notes                string    `json:"notes,omitempty"`
	Status               Status    `json:"status"`
	VideoChatLink        string    `json:"video_chat_link,omitempty"`
	MeetingPassword      string    `json:"meeting_password,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`

	// Joined for the caller's convenience; never persisted on this row.
	Patient *patients.Patient `json:"patient,omitempty"`
	Dentist *dentists.Dentist `json:"dentist,omitempty"`
}

// TransitionPolicy is the explicit status transition table:
// SCHEDULED -> CONFIRMED -> COMPLETED, and any non-terminal -> CANCELLED.
// Everything else, including backward moves and no-ops, is rejected.
type TransitionPolicy struct{}

// Allowed reports whether the move from one status to another is permitted.
func (TransitionPolicy) Allowed(from, to Status) bool {
	switch {
	case to == StatusCancelled:
		return from.Active()
	case from == StatusScheduled && to == StatusConfirmed:
		return true
	case from == StatusConfirmed && to == StatusCompleted:
		return true
	}
	return false
}
