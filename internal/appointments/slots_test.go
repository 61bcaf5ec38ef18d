package appointments

import (
	"context"
	"testing"
	"time"
)

func TestAvailableSlotsAllFree(t *testing.T) {
	repo := NewInMemoryRepository()
	resolver := NewAvailabilityResolver(repo)

	free, booked, err := resolver.AvailableSlots(context.Background(), "d1", mustDate(t, "2099-01-01"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(free) != 12 {
		t.Errorf("expected 12 free slots, got %d", len(free))
	}
	if len(booked) != 0 {
		t.Errorf("expected no booked slots, got %v", booked)
	}
	if free[0] != "09:00" || free[11] != "16:30" {
		t.Errorf("template order not preserved: %v", free)
	}
}

func TestAvailableSlotsExcludesActiveBookings(t *testing.T) {
	repo := NewInMemoryRepository()
	date := mustDate(t, "2099-01-01")

	seed := []struct {
		id     string
		slot   string
		status Status
	}{
		{"a1", "09:00", StatusScheduled},
		{"a2", "10:00", StatusConfirmed},
		{"a3", "11:00", StatusCancelled},
		{"a4", "14:00", StatusCompleted},
	}
	for _, s := range seed {
		err := repo.Create(context.Background(), &Appointment{
			ID: s.id, DentistID: "d1", PatientID: "p1",
			AppointmentDate: date, TimeSlot: s.slot, Status: s.status,
		})
		if err != nil {
			t.Fatalf("seed %s: %v", s.id, err)
		}
	}

	resolver := NewAvailabilityResolver(repo)
	free, booked, err := resolver.AvailableSlots(context.Background(), "d1", date)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(booked) != 2 {
		t.Fatalf("expected 2 booked slots, got %v", booked)
	}
	for _, slot := range free {
		if slot == "09:00" || slot == "10:00" {
			t.Errorf("slot %s should be excluded", slot)
		}
	}
	// Cancelled and completed bookings release their slots.
	if !contains(free, "11:00") || !contains(free, "14:00") {
		t.Errorf("inactive slots should be free: %v", free)
	}
	if free[0] != "09:30" {
		t.Errorf("template order not preserved: %v", free)
	}
}

func TestAvailableSlotsIgnoresOtherDentists(t *testing.T) {
	repo := NewInMemoryRepository()
	date := mustDate(t, "2099-01-01")
	if err := repo.Create(context.Background(), &Appointment{
		ID: "a1", DentistID: "d2", PatientID: "p1",
		AppointmentDate: date, TimeSlot: "09:00", Status: StatusScheduled,
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	resolver := NewAvailabilityResolver(repo)
	free, _, err := resolver.AvailableSlots(context.Background(), "d1", date)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(free) != 12 {
		t.Errorf("other dentist's booking should not block d1: %v", free)
	}
}

func TestParseDate(t *testing.T) {
	if _, err := ParseDate("2099-01-01"); err != nil {
		t.Errorf("valid date rejected: %v", err)
	}
	for _, bad := range []string{"", "01-01-2099", "2099-13-01", "yesterday"} {
		if _, err := ParseDate(bad); err != ErrInvalidDate {
			t.Errorf("ParseDate(%q) = %v, want ErrInvalidDate", bad, err)
		}
	}
}

func TestParseSlot(t *testing.T) {
	off, err := ParseSlot("14:30")
	if err != nil {
		t.Fatalf("valid slot rejected: %v", err)
	}
	if off != 14*time.Hour+30*time.Minute {
		t.Errorf("unexpected offset: %v", off)
	}
	for _, bad := range []string{"", "25:00", "9am", "14:60"} {
		if _, err := ParseSlot(bad); err != ErrInvalidTimeSlot {
			t.Errorf("ParseSlot(%q) = %v, want ErrInvalidTimeSlot", bad, err)
		}
	}
}

func contains(slots []string, want string) bool {
	for _, s := range slots {
		if s == want {
			return true
		}
	}
	return false
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	date, err := ParseDate(s)
	if err != nil {
		t.Fatalf("parse date %s: %v", s, err)
	}
	return date
}
