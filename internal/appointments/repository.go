package appointments

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Repository persists appointments. Create must enforce that at most one
// active (SCHEDULED/CONFIRMED) appointment exists per
// (dentist, date, slot) and return ErrSlotTaken for the loser; the
// scheduler's pre-check is only an early exit.
type Repository interface {
	Create(ctx context.Context, appt *Appointment) error
	GetByID(ctx context.Context, id string) (*Appointment, error)
	Update(ctx context.Context, appt *Appointment) error
	BookedSlots(ctx context.Context, dentistID string, date time.Time) ([]string, error)
	HasActiveAt(ctx context.Context, dentistID string, date time.Time, slot string) (bool, error)
	ActiveCountsByDentist(ctx context.Context) (map[string]int, error)
	ListByPatient(ctx context.Context, patientID string) ([]*Appointment, error)
	ListByDentist(ctx context.Context, dentistID string) ([]*Appointment, error)
}

// InMemoryRepository is a Repository for tests and local development. The
// mutex makes check-and-insert atomic, standing in for the database's
// partial unique index.
type InMemoryRepository struct {
	mu   sync.Mutex
	byID map[string]*Appointment
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{byID: map[string]*Appointment{}}
}

func slotOccupied(appts map[string]*Appointment, dentistID string, date time.Time, slot string) bool {
	for _, a := range appts {
		if a.DentistID == dentistID && sameDate(a.AppointmentDate, date) && a.TimeSlot == slot && a.Status.Active() {
			return true
		}
	}
	return false
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func (r *InMemoryRepository) Create(_ context.Context, appt *Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if appt.Status.Active() && slotOccupied(r.byID, appt.DentistID, appt.AppointmentDate, appt.TimeSlot) {
		return ErrSlotTaken
	}
	now := time.Now().UTC()
	appt.CreatedAt = now
	appt.UpdatedAt = now
	copied := *appt
	r.byID[appt.ID] = &copied
	return nil
}

func (r *InMemoryRepository) GetByID(_ context.Context, id string) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	copied := *a
	return &copied, nil
}

func (r *InMemoryRepository) Update(_ context.Context, appt *Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[appt.ID]; !ok {
		return ErrAppointmentNotFound
	}
	appt.UpdatedAt = time.Now().UTC()
	copied := *appt
	r.byID[appt.ID] = &copied
	return nil
}

func (r *InMemoryRepository) BookedSlots(_ context.Context, dentistID string, date time.Time) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, a := range r.byID {
		if a.DentistID == dentistID && sameDate(a.AppointmentDate, date) && a.Status.Active() {
			out = append(out, a.TimeSlot)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (r *InMemoryRepository) HasActiveAt(_ context.Context, dentistID string, date time.Time, slot string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slotOccupied(r.byID, dentistID, date, slot), nil
}

func (r *InMemoryRepository) ActiveCountsByDentist(_ context.Context) (map[string]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := map[string]int{}
	for _, a := range r.byID {
		if a.Status.Active() {
			counts[a.DentistID]++
		}
	}
	return counts, nil
}

func (r *InMemoryRepository) ListByPatient(_ context.Context, patientID string) ([]*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Appointment
	for _, a := range r.byID {
		if a.PatientID == patientID {
			copied := *a
			out = append(out, &copied)
		}
	}
	sortByDate(out)
	return out, nil
}

func (r *InMemoryRepository) ListByDentist(_ context.Context, dentistID string) ([]*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Appointment
	for _, a := range r.byID {
		if a.DentistID == dentistID {
			copied := *a
			out = append(out, &copied)
		}
	}
	sortByDate(out)
	return out, nil
}

func sortByDate(appts []*Appointment) {
	sort.Slice(appts, func(i, j int) bool {
		if !appts[i].AppointmentDate.Equal(appts[j].AppointmentDate) {
			return appts[i].AppointmentDate.Before(appts[j].AppointmentDate)
		}
		return appts[i].TimeSlot < appts[j].TimeSlot
	})
}
