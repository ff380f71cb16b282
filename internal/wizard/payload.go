package wizard

import (
	"strings"

	"rezervacia/internal/models"
)

// ComposeDateTime joins a date and an HH:MM time into YYYY-MM-DDTHH:MM:SS.
func ComposeDateTime(date, clock string) string {
	return date + "T" + clock + ":00"
}

// BuildPayload assembles the sink payload from a complete draft.
func BuildPayload(draft models.BookingDraft, service models.Service) models.BookingPayload {
	return models.BookingPayload{
		ServiceID:   draft.ServiceID,
		StaffID:     draft.StaffID,
		ClientName:  strings.TrimSpace(draft.FirstName + " " + draft.LastName),
		ClientEmail: draft.Email,
		ClientPhone: draft.Phone,
		DateTime:    ComposeDateTime(draft.Date, draft.Time),
		Notes:       draft.Notes,
		Status:      models.InitialBookingStatus,
		Duration:    service.Duration,
	}
}

// NewConfirmation builds the record shown after a successful submission.
func NewConfirmation(
	bookingID int64,
	draft models.BookingDraft,
	service models.Service,
	staff models.StaffMember,
) (models.ConfirmationRecord, error) {
	formatted, err := FormatDateTimeSK(draft.Date, draft.Time)
	if err != nil {
		return models.ConfirmationRecord{}, err
	}

	return models.ConfirmationRecord{
		BookingID:         bookingID,
		ServiceID:         service.ID,
		ServiceName:       service.Name,
		StaffID:           staff.ID,
		StaffName:         staff.Name,
		ClientName:        strings.TrimSpace(draft.FirstName + " " + draft.LastName),
		Email:             draft.Email,
		Phone:             draft.Phone,
		Date:              draft.Date,
		Time:              draft.Time,
		DateTime:          ComposeDateTime(draft.Date, draft.Time),
		Duration:          service.Duration,
		FormattedDateTime: formatted,
	}, nil
}
