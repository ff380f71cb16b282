package slots

import (
	"context"

	"rezervacia/internal/domain"
	"rezervacia/internal/models"

	"github.com/rs/zerolog"
)

// ReservationAwareProvider marks slots covered by stored bookings of the same
// staff member as unavailable. The slot sequence itself is unchanged.
type ReservationAwareProvider struct {
	next     domain.SlotAvailabilityProvider
	bookings domain.BookingLookup
	logger   *zerolog.Logger
}

func NewReservationAwareProvider(
	next domain.SlotAvailabilityProvider,
	bookings domain.BookingLookup,
	logger *zerolog.Logger,
) *ReservationAwareProvider {
	return &ReservationAwareProvider{next: next, bookings: bookings, logger: logger}
}

func (p *ReservationAwareProvider) GetSlots(ctx context.Context, date, staffID string) ([]models.TimeSlot, error) {
	slots, err := p.next.GetSlots(ctx, date, staffID)
	if err != nil || staffID == "" {
		return slots, err
	}

	booked, err := p.bookings.BookingsForStaffOnDate(ctx, staffID, date)
	if err != nil {
		// fall back to the plain rule without booking data
		p.logger.Warn().Err(err).Str("staff_id", staffID).Str("date", date).Msg("booked slots lookup failed")
		return slots, nil
	}

	for i := range slots {
		if !slots[i].Available {
			continue
		}
		start, err := ParseClock(slots[i].Time)
		if err != nil {
			continue
		}
		if overlapsAny(start, booked) {
			slots[i].Available = false
		}
	}
	return slots, nil
}

// overlapsAny reports whether minute m falls inside any booking's
// [start, start+duration) interval.
func overlapsAny(m int, bookings []models.Booking) bool {
	for _, b := range bookings {
		if b.Status == models.StatusCancelled {
			continue
		}
		start, err := ParseClock(b.Time())
		if err != nil {
			continue
		}
		duration := b.Duration
		if duration <= 0 {
			duration = models.DefaultSlotStepMinutes
		}
		if m >= start && m < start+duration {
			return true
		}
	}
	return false
}
