package appointments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dentalink/clinic-platform/internal/dentists"
	"github.com/dentalink/clinic-platform/internal/identity"
	"github.com/dentalink/clinic-platform/internal/observability/metrics"
	"github.com/dentalink/clinic-platform/internal/patients"
	"github.com/dentalink/clinic-platform/pkg/logging"
)

// ConfirmationSender notifies a patient about a new booking. Delivery is
// best-effort; failures never fail the booking.
type ConfirmationSender interface {
	SendBookingConfirmation(ctx context.Context, appt *Appointment) error
}

// CreateAppointmentRequest is the booking request body. DentistID empty
// selects auto-assignment.
type CreateAppointmentRequest struct {
	DentistID            string `json:"dentistId,omitempty"`
	AppointmentDate      string `json:"appointmentDate"`
	TimeSlot             string `json:"timeSlot"`
	Duration             int    `json:"duration"`
	AppointmentType      string `json:"appointmentType,omitempty"`
	ConditionDescription string `json:"conditionDescription,omitempty"`
	PatientAge           int    `json:"patientAge,omitempty"`
	ConditionDuration    string `json:"conditionDuration,omitempty"`
	Severity             string `json:"severity,omitempty"`
	Notes                string `json:"notes,omitempty"`
}

// Scheduler validates booking requests, assigns dentists and drives the
// appointment lifecycle.
type Scheduler struct {
	repo     Repository
	dentists dentists.Repository
	patients patients.Repository
	policy   TransitionPolicy
	notifier ConfirmationSender
	metrics  *metrics.ClinicMetrics
	logger   *logging.Logger
	now      func() time.Time
}

func NewScheduler(repo Repository, dentistRepo dentists.Repository, patientRepo patients.Repository, notifier ConfirmationSender, m *metrics.ClinicMetrics, logger *logging.Logger) *Scheduler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Scheduler{
		repo:     repo,
		dentists: dentistRepo,
		patients: patientRepo,
		notifier: notifier,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock overrides the scheduler's clock, for tests.
func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

// CreateAppointment validates the request, resolves the patient, picks or
// verifies the dentist and persists the booking as SCHEDULED. The
// repository's uniqueness guarantee is the final conflict arbiter; the
// pre-checks here are early exits.
func (s *Scheduler) CreateAppointment(ctx context.Context, caller identity.Identity, req CreateAppointmentRequest) (*Appointment, error) {
	date, err := ParseDate(req.AppointmentDate)
	if err != nil {
		return nil, err
	}
	slotOffset, err := ParseSlot(req.TimeSlot)
	if err != nil {
		return nil, err
	}
	if !date.Add(slotOffset).After(s.now()) {
		return nil, ErrPastAppointment
	}

	patient, err := s.resolvePatient(ctx, caller)
	if err != nil {
		return nil, err
	}

	mode := "explicit"
	var dentist *dentists.Dentist
	if req.DentistID != "" {
		dentist, err = s.dentists.GetByID(ctx, req.DentistID)
		if err != nil {
			return nil, err
		}
		occupied, err := s.repo.HasActiveAt(ctx, dentist.ID, date, req.TimeSlot)
		if err != nil {
			return nil, err
		}
		if occupied {
			s.metrics.ObserveBooking(mode, "conflict")
			return nil, ErrSlotTaken
		}
	} else {
		mode = "auto"
		dentist, err = s.pickLeastLoaded(ctx, date, req.TimeSlot)
		if err != nil {
			if err == ErrNoDentistAvailable {
				s.metrics.ObserveBooking(mode, "conflict")
			}
			return nil, err
		}
	}

	appt := &Appointment{
		ID:                   uuid.NewString(),
		PatientID:            patient.ID,
		DentistID:            dentist.ID,
		AppointmentDate:      date,
		TimeSlot:             req.TimeSlot,
		Duration:             req.Duration,
		AppointmentType:      req.AppointmentType,
		ConditionDescription: req.ConditionDescription,
		PatientAge:           req.PatientAge,
		ConditionDuration:    req.ConditionDuration,
		Severity:             req.Severity,
		Notes:                req.Notes,
		Status:               StatusScheduled,
	}
	if err := s.repo.Create(ctx, appt); err != nil {
		if err == ErrSlotTaken {
			// Lost the race to a concurrent writer; the constraint is the truth.
			s.metrics.ObserveBooking(mode, "conflict")
			return nil, err
		}
		return nil, fmt.Errorf("scheduler: create appointment: %w", err)
	}
	s.metrics.ObserveBooking(mode, "created")

	appt.Patient = patient
	appt.Dentist = dentist

	if s.notifier != nil {
		if err := s.notifier.SendBookingConfirmation(ctx, appt); err != nil {
			s.logger.Warn("booking confirmation failed", "error", err, "appointment_id", appt.ID)
		}
	}
	return appt, nil
}

// pickLeastLoaded returns the dentist with the fewest active appointments
// among those free at the slot. Ties go to the first dentist in the
// repository's stable enumeration order; this is a greedy heuristic, not a
// global optimum.
func (s *Scheduler) pickLeastLoaded(ctx context.Context, date time.Time, slot string) (*dentists.Dentist, error) {
	all, err := s.dentists.List(ctx)
	if err != nil {
		return nil, err
	}
	counts, err := s.repo.ActiveCountsByDentist(ctx)
	if err != nil {
		return nil, err
	}

	var best *dentists.Dentist
	bestCount := 0
	for _, d := range all {
		occupied, err := s.repo.HasActiveAt(ctx, d.ID, date, slot)
		if err != nil {
			return nil, err
		}
		if occupied {
			continue
		}
		if best == nil || counts[d.ID] < bestCount {
			best = d
			bestCount = counts[d.ID]
		}
	}
	if best == nil {
		return nil, ErrNoDentistAvailable
	}
	return best, nil
}

// UpdateStatus applies a status change under the transition policy.
// Only dentists and admins may change status.
func (s *Scheduler) UpdateStatus(ctx context.Context, caller identity.Identity, apptID string, target Status, notes string) (*Appointment, error) {
	if caller.Role != identity.RoleDentist && caller.Role != identity.RoleAdmin {
		return nil, ErrPermissionDenied
	}
	if !target.Valid() {
		return nil, ErrInvalidTransition
	}
	appt, err := s.repo.GetByID(ctx, apptID)
	if err != nil {
		return nil, err
	}
	if !s.policy.Allowed(appt.Status, target) {
		return nil, ErrInvalidTransition
	}
	appt.Status = target
	if notes != "" {
		appt.Notes = notes
	}
	if err := s.repo.Update(ctx, appt); err != nil {
		return nil, err
	}
	return s.join(ctx, appt), nil
}

// Cancel sets an appointment CANCELLED. Patients may cancel only their
// own; dentists and admins may cancel any. The acting role is recorded in
// the notes.
func (s *Scheduler) Cancel(ctx context.Context, caller identity.Identity, apptID string) (*Appointment, error) {
	appt, err := s.repo.GetByID(ctx, apptID)
	if err != nil {
		return nil, err
	}

	if caller.Role == identity.RolePatient {
		patient, err := s.resolvePatient(ctx, caller)
		if err != nil {
			return nil, err
		}
		if appt.PatientID != patient.ID {
			return nil, ErrPermissionDenied
		}
	}

	switch appt.Status {
	case StatusCancelled:
		return nil, ErrAlreadyCancelled
	case StatusCompleted:
		return nil, ErrAlreadyCompleted
	}

	attribution := fmt.Sprintf("[Cancelled by %s]", caller.Role.Attribution())
	if appt.Notes != "" {
		appt.Notes = appt.Notes + "\n" + attribution
	} else {
		appt.Notes = attribution
	}
	appt.Status = StatusCancelled
	if err := s.repo.Update(ctx, appt); err != nil {
		return nil, err
	}
	return s.join(ctx, appt), nil
}

// SetMeeting assigns the video chat link, write-once. Allowed for admins
// and the assigned dentist. Assigning a link confirms a scheduled
// appointment in the same update.
func (s *Scheduler) SetMeeting(ctx context.Context, caller identity.Identity, apptID, link, password string) (*Appointment, error) {
	appt, err := s.repo.GetByID(ctx, apptID)
	if err != nil {
		return nil, err
	}

	switch caller.Role {
	case identity.RoleAdmin:
	case identity.RoleDentist:
		if caller.DentistID == "" || caller.DentistID != appt.DentistID {
			return nil, ErrPermissionDenied
		}
	default:
		return nil, ErrPermissionDenied
	}

	if appt.VideoChatLink != "" {
		return nil, ErrMeetingLinkSet
	}

	appt.VideoChatLink = link
	appt.MeetingPassword = password
	if appt.Status == StatusScheduled {
		appt.Status = StatusConfirmed
	}
	if err := s.repo.Update(ctx, appt); err != nil {
		return nil, err
	}
	return s.join(ctx, appt), nil
}

// ListForCaller returns the caller's appointments: a patient's own
// bookings or a dentist's schedule, date ascending.
func (s *Scheduler) ListForCaller(ctx context.Context, caller identity.Identity) ([]*Appointment, error) {
	switch caller.Role {
	case identity.RolePatient:
		patient, err := s.resolvePatient(ctx, caller)
		if err != nil {
			return nil, err
		}
		return s.repo.ListByPatient(ctx, patient.ID)
	case identity.RoleDentist:
		dentist, err := s.resolveDentist(ctx, caller)
		if err != nil {
			return nil, err
		}
		return s.repo.ListByDentist(ctx, dentist.ID)
	default:
		return nil, ErrPermissionDenied
	}
}

func (s *Scheduler) resolvePatient(ctx context.Context, caller identity.Identity) (*patients.Patient, error) {
	if caller.PatientID != "" {
		return s.patients.GetByID(ctx, caller.PatientID)
	}
	return s.patients.GetByUserID(ctx, caller.UserID)
}

func (s *Scheduler) resolveDentist(ctx context.Context, caller identity.Identity) (*dentists.Dentist, error) {
	if caller.DentistID != "" {
		return s.dentists.GetByID(ctx, caller.DentistID)
	}
	return s.dentists.GetByUserID(ctx, caller.UserID)
}

// join attaches patient and dentist identities for response bodies.
// Lookup failures leave the field nil rather than failing the call.
func (s *Scheduler) join(ctx context.Context, appt *Appointment) *Appointment {
	if p, err := s.patients.GetByID(ctx, appt.PatientID); err == nil {
		appt.Patient = p
	}
	if d, err := s.dentists.GetByID(ctx, appt.DentistID); err == nil {
		appt.Dentist = d
	}
	return appt
}
