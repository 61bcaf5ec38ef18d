package appointments

import (
	"context"
	"time"
)

// slotTemplate is the fixed daily schedule: half-hour slots in a morning
// and an afternoon shift.
var slotTemplate = []string{
	"09:00", "09:30", "10:00", "10:30", "11:00", "11:30",
	"14:00", "14:30", "15:00", "15:30", "16:00", "16:30",
}

// SlotTemplate returns a copy of the daily slot template in order.
func SlotTemplate() []string {
	out := make([]string, len(slotTemplate))
	copy(out, slotTemplate)
	return out
}

// AvailabilityResolver computes free and booked slots for a dentist/date.
type AvailabilityResolver struct {
	repo Repository
}

func NewAvailabilityResolver(repo Repository) *AvailabilityResolver {
	return &AvailabilityResolver{repo: repo}
}

// AvailableSlots returns the template slots not occupied by an active
// appointment, preserving template order, together with the booked set.
func (a *AvailabilityResolver) AvailableSlots(ctx context.Context, dentistID string, date time.Time) (free []string, booked []string, err error) {
	booked, err = a.repo.BookedSlots(ctx, dentistID, date)
	if err != nil {
		return nil, nil, err
	}
	taken := make(map[string]struct{}, len(booked))
	for _, slot := range booked {
		taken[slot] = struct{}{}
	}
	free = make([]string, 0, len(slotTemplate))
	for _, slot := range slotTemplate {
		if _, ok := taken[slot]; !ok {
			free = append(free, slot)
		}
	}
	return free, booked, nil
}

// ParseDate parses a calendar date in YYYY-MM-DD form.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return t, nil
}

// ParseSlot validates an HH:MM time-of-day string and returns its offset
// into the day.
func ParseSlot(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, ErrInvalidTimeSlot
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}
