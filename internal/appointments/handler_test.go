package appointments

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dentalink/clinic-platform/internal/dentists"
	"github.com/dentalink/clinic-platform/internal/identity"
	"github.com/dentalink/clinic-platform/internal/patients"
	"github.com/dentalink/clinic-platform/pkg/logging"
)

func newTestHandler(t *testing.T) (*Handler, *schedulerFixture) {
	t.Helper()
	repo := NewInMemoryRepository()
	dentistRepo := dentists.NewInMemoryRepository()
	patientRepo := patients.NewInMemoryRepository()
	patientRepo.Add(&patients.Patient{ID: "p1", UserID: "u1"})
	dentistRepo.Add(&dentists.Dentist{ID: "d1"})

	scheduler := NewScheduler(repo, dentistRepo, patientRepo, nil, nil, logging.Default()).
		WithClock(func() time.Time {
			return time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
		})
	handler := NewHandler(scheduler, NewAvailabilityResolver(repo), logging.Default())
	return handler, &schedulerFixture{scheduler: scheduler, repo: repo, dentists: dentistRepo, patients: patientRepo}
}

func doCreate(handler *Handler, caller identity.Identity, req CreateAppointmentRequest) *httptest.ResponseRecorder {
	body, _ := json.Marshal(req)
	r := httptest.NewRequest(http.MethodPost, "/appointments", bytes.NewReader(body))
	r = r.WithContext(identity.WithIdentity(r.Context(), caller))
	w := httptest.NewRecorder()
	handler.Create(w, r)
	return w
}

func TestHandlerCreateReturns201(t *testing.T) {
	handler, _ := newTestHandler(t)
	w := doCreate(handler, patientCaller, bookingReq("d1", "2099-01-01", "09:00"))

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var body struct {
		Message string       `json:"message"`
		Data    *Appointment `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Data == nil || body.Data.Status != StatusScheduled {
		t.Errorf("unexpected body: %+v", body)
	}
}

func TestHandlerCreateConflictReturns409(t *testing.T) {
	handler, _ := newTestHandler(t)
	if w := doCreate(handler, patientCaller, bookingReq("d1", "2099-01-01", "09:00")); w.Code != http.StatusCreated {
		t.Fatalf("seed booking failed: %d", w.Code)
	}

	w := doCreate(handler, patientCaller, bookingReq("d1", "2099-01-01", "09:00"))
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", w.Code)
	}
}

func TestHandlerCreateValidationReturns400(t *testing.T) {
	handler, _ := newTestHandler(t)
	w := doCreate(handler, patientCaller, bookingReq("d1", "bad-date", "09:00"))
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestHandlerCreateUnknownDentistReturns404(t *testing.T) {
	handler, _ := newTestHandler(t)
	w := doCreate(handler, patientCaller, bookingReq("ghost", "2099-01-01", "09:00"))
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestHandlerCreateWithoutIdentityReturns401(t *testing.T) {
	handler, _ := newTestHandler(t)
	body, _ := json.Marshal(bookingReq("d1", "2099-01-01", "09:00"))
	r := httptest.NewRequest(http.MethodPost, "/appointments", bytes.NewReader(body))
	w := httptest.NewRecorder()
	handler.Create(w, r)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestHandlerTimeSlots(t *testing.T) {
	handler, _ := newTestHandler(t)
	if w := doCreate(handler, patientCaller, bookingReq("d1", "2099-01-01", "09:00")); w.Code != http.StatusCreated {
		t.Fatalf("seed booking failed: %d", w.Code)
	}

	r := httptest.NewRequest(http.MethodGet, "/appointments/slots?dentistId=d1&date=2099-01-01", nil)
	w := httptest.NewRecorder()
	handler.TimeSlots(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body struct {
		Data struct {
			AvailableSlots []string `json:"availableSlots"`
			BookedSlots    []string `json:"bookedSlots"`
		} `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Data.AvailableSlots) != 11 || len(body.Data.BookedSlots) != 1 {
		t.Errorf("unexpected slots: %+v", body.Data)
	}
}

func TestHandlerTimeSlotsRequiresParams(t *testing.T) {
	handler, _ := newTestHandler(t)
	r := httptest.NewRequest(http.MethodGet, "/appointments/slots", nil)
	w := httptest.NewRecorder()
	handler.TimeSlots(w, r)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestHandlerCancelRouteParam(t *testing.T) {
	handler, f := newTestHandler(t)
	w := doCreate(handler, patientCaller, bookingReq("d1", "2099-01-01", "09:00"))
	var created struct {
		Data *Appointment `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	router := chi.NewRouter()
	router.Patch("/appointments/{id}/cancel", handler.Cancel)

	r := httptest.NewRequest(http.MethodPatch, "/appointments/"+created.Data.ID+"/cancel", nil)
	r = r.WithContext(identity.WithIdentity(r.Context(), patientCaller))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, r)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	stored, err := f.repo.GetByID(r.Context(), created.Data.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Status != StatusCancelled {
		t.Errorf("expected CANCELLED, got %s", stored.Status)
	}
}
