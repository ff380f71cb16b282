package domain

import (
	"context"
	"time"

	"rezervacia/internal/models"
	"rezervacia/internal/wizard"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type CatalogReader interface {
	ListServices(ctx context.Context) ([]models.Service, error)
	ListStaff(ctx context.Context) ([]models.StaffMember, error)
}

type SlotAvailabilityProvider interface {
	GetSlots(ctx context.Context, date, staffID string) ([]models.TimeSlot, error)
}

type BookingSink interface {
	CreateBooking(ctx context.Context, payload models.BookingPayload) (*models.Booking, error)
}

type BookingLookup interface {
	BookingsForStaffOnDate(ctx context.Context, staffID, date string) ([]models.Booking, error)
}

type BookingReader interface {
	ListBookings(ctx context.Context, filter models.BookingFilter) ([]models.Booking, error)
}

type RateLimiter interface {
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// SessionRepository stores wizard sessions. GetSession returns nil, nil for
// an unknown or expired session.
type SessionRepository interface {
	RateLimiter
	GetSession(ctx context.Context, sessionID string) (*wizard.Wizard, error)
	SaveSession(ctx context.Context, w *wizard.Wizard) error
	DeleteSession(ctx context.Context, sessionID string) error
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

type TimeProvider interface {
	Now() time.Time
}

type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}
