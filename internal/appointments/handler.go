package appointments

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dentalink/clinic-platform/internal/dentists"
	"github.com/dentalink/clinic-platform/internal/identity"
	"github.com/dentalink/clinic-platform/internal/patients"
	"github.com/dentalink/clinic-platform/pkg/logging"
)

// Handler exposes the scheduling API over HTTP.
type Handler struct {
	scheduler    *Scheduler
	availability *AvailabilityResolver
	logger       *logging.Logger
}

func NewHandler(scheduler *Scheduler, availability *AvailabilityResolver, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{scheduler: scheduler, availability: availability, logger: logger}
}

// Create handles POST /appointments requests
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing identity", nil)
		return
	}

	var req CreateAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	appt, err := h.scheduler.CreateAppointment(r.Context(), caller, req)
	if err != nil {
		h.logger.Error("failed to create appointment", "error", err, "user_id", caller.UserID)
		writeDomainError(w, "Error creating appointment", err)
		return
	}

	h.logger.Info("appointment created",
		"appointment_id", appt.ID,
		"dentist_id", appt.DentistID,
		"date", req.AppointmentDate,
		"slot", req.TimeSlot,
	)
	writeData(w, http.StatusCreated, "Appointment created successfully", appt)
}

// List handles GET /appointments requests
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing identity", nil)
		return
	}

	appts, err := h.scheduler.ListForCaller(r.Context(), caller)
	if err != nil {
		writeDomainError(w, "Error retrieving appointments", err)
		return
	}
	writeData(w, http.StatusOK, "Appointments retrieved successfully", appts)
}

// TimeSlots handles GET /appointments/slots?dentistId=...&date=... requests
func (h *Handler) TimeSlots(w http.ResponseWriter, r *http.Request) {
	dentistID := r.URL.Query().Get("dentistId")
	dateStr := r.URL.Query().Get("date")
	if dentistID == "" || dateStr == "" {
		writeError(w, http.StatusBadRequest, "dentistId and date are required", nil)
		return
	}
	date, err := ParseDate(dateStr)
	if err != nil {
		writeDomainError(w, "Error retrieving time slots", err)
		return
	}

	free, booked, err := h.availability.AvailableSlots(r.Context(), dentistID, date)
	if err != nil {
		writeDomainError(w, "Error retrieving time slots", err)
		return
	}
	if booked == nil {
		booked = []string{}
	}
	writeData(w, http.StatusOK, "Available time slots retrieved successfully", map[string]any{
		"date":           dateStr,
		"availableSlots": free,
		"bookedSlots":    booked,
	})
}

type statusUpdateRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes,omitempty"`
}

// UpdateStatus handles PATCH /appointments/{id}/status requests
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing identity", nil)
		return
	}
	var req statusUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	appt, err := h.scheduler.UpdateStatus(r.Context(), caller, chi.URLParam(r, "id"), Status(req.Status), req.Notes)
	if err != nil {
		writeDomainError(w, "Error updating appointment", err)
		return
	}
	writeData(w, http.StatusOK, "Appointment status updated successfully", appt)
}

// Cancel handles PATCH /appointments/{id}/cancel requests
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing identity", nil)
		return
	}

	appt, err := h.scheduler.Cancel(r.Context(), caller, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Error cancelling appointment", err)
		return
	}
	writeData(w, http.StatusOK, "Appointment cancelled successfully", appt)
}

type meetingRequest struct {
	VideoChatLink   string `json:"videoChatLink"`
	MeetingPassword string `json:"meetingPassword,omitempty"`
}

// SetMeeting handles PATCH /appointments/{id}/meeting requests
func (h *Handler) SetMeeting(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing identity", nil)
		return
	}
	var req meetingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.VideoChatLink == "" {
		writeError(w, http.StatusBadRequest, "videoChatLink is required", nil)
		return
	}

	appt, err := h.scheduler.SetMeeting(r.Context(), caller, chi.URLParam(r, "id"), req.VideoChatLink, req.MeetingPassword)
	if err != nil {
		writeDomainError(w, "Error updating appointment", err)
		return
	}
	writeData(w, http.StatusOK, "Meeting link assigned successfully", appt)
}

// writeDomainError maps scheduling errors onto the HTTP taxonomy.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrInvalidDate),
		errors.Is(err, ErrInvalidTimeSlot),
		errors.Is(err, ErrPastAppointment):
		status = http.StatusBadRequest
	case errors.Is(err, ErrSlotTaken),
		errors.Is(err, ErrNoDentistAvailable),
		errors.Is(err, ErrAlreadyCancelled),
		errors.Is(err, ErrAlreadyCompleted),
		errors.Is(err, ErrMeetingLinkSet),
		errors.Is(err, ErrInvalidTransition):
		status = http.StatusConflict
	case errors.Is(err, ErrPermissionDenied):
		status = http.StatusForbidden
	case errors.Is(err, ErrAppointmentNotFound),
		errors.Is(err, dentists.ErrDentistNotFound),
		errors.Is(err, patients.ErrPatientNotFound):
		status = http.StatusNotFound
	}
	writeError(w, status, message, err)
}

func writeData(w http.ResponseWriter, status int, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"message": message,
		"data":    data,
	})
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	body := map[string]any{"message": message}
	if err != nil {
		body["error"] = err.Error()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
