package notify

import (
	"context"
	"fmt"

	"github.com/dentalink/clinic-platform/internal/appointments"
	"github.com/dentalink/clinic-platform/pkg/logging"
)

// BookingConfirmer emails patients when an appointment is created. It
// satisfies the scheduler's ConfirmationSender.
type BookingConfirmer struct {
	sender EmailSender
	logger *logging.Logger
}

func NewBookingConfirmer(sender EmailSender, logger *logging.Logger) *BookingConfirmer {
	if logger == nil {
		logger = logging.Default()
	}
	return &BookingConfirmer{sender: sender, logger: logger}
}

func (c *BookingConfirmer) SendBookingConfirmation(ctx context.Context, appt *appointments.Appointment) error {
	if c.sender == nil {
		return nil
	}
	if appt.Patient == nil || appt.Patient.Email == "" {
		c.logger.Debug("no patient email on appointment, skipping confirmation", "appointment_id", appt.ID)
		return nil
	}

	dentistName := "your dentist"
	if appt.Dentist != nil {
		dentistName = "Dr. " + appt.Dentist.FirstName + " " + appt.Dentist.LastName
	}
	date := appt.AppointmentDate.Format("Monday, 2 January 2006")

	msg := EmailMessage{
		To:      appt.Patient.Email,
		ToName:  appt.Patient.FirstName + " " + appt.Patient.LastName,
		Subject: "Your appointment is booked",
		Body: fmt.Sprintf(
			"Hello %s,\n\nYour appointment with %s is booked for %s at %s.\n\nIf you need to reschedule, please cancel the appointment and book a new slot.\n\nDentalink",
			appt.Patient.FirstName, dentistName, date, appt.TimeSlot,
		),
	}
	return c.sender.Send(ctx, msg)
}
