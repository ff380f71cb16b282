package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rezervacia/internal/models"

	sq "github.com/Masterminds/squirrel"
)

var ErrInvalidBooking = errors.New("invalid booking payload")

var bookingColumns = []string{
	"id", "service_id", "staff_id", "client_name", "client_email", "client_phone",
	"date_time", "notes", "status", "duration", "created_at",
}

// CreateBooking stores a wizard payload and returns the created booking.
func (db *DB) CreateBooking(ctx context.Context, payload models.BookingPayload) (*models.Booking, error) {
	when, err := time.Parse(models.DateTimeLayout, payload.DateTime)
	if err != nil {
		return nil, fmt.Errorf("%w: dateTime %q", ErrInvalidBooking, payload.DateTime)
	}
	if payload.ServiceID == "" || payload.StaffID == "" || payload.Duration <= 0 {
		return nil, fmt.Errorf("%w: service, staff and duration are required", ErrInvalidBooking)
	}
	status := payload.Status
	if status == "" {
		status = models.InitialBookingStatus
	}

	now := time.Now().UTC()
	query, args, err := db.builder.
		Insert("bookings").
		Columns(
			"service_id",
			"staff_id",
			"client_name",
			"client_email",
			"client_phone",
			"date_time",
			"date",
			"notes",
			"status",
			"duration",
			"created_at",
		).
		Values(
			payload.ServiceID,
			payload.StaffID,
			payload.ClientName,
			payload.ClientEmail,
			payload.ClientPhone,
			payload.DateTime,
			when.Format(models.DateLayout),
			payload.Notes,
			status,
			payload.Duration,
			now,
		).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert query: %w", err)
	}

	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to create booking: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}

	booking := &models.Booking{ID: id, BookingPayload: payload, CreatedAt: now}
	booking.Status = status

	db.logger.Info().
		Int64("booking_id", id).
		Str("service_id", payload.ServiceID).
		Str("staff_id", payload.StaffID).
		Str("date_time", payload.DateTime).
		Msg("booking created")
	return booking, nil
}

// ListBookings returns bookings matching the filter ordered by appointment time.
func (db *DB) ListBookings(ctx context.Context, filter models.BookingFilter) ([]models.Booking, error) {
	qb := db.builder.Select(bookingColumns...).From("bookings")

	if filter.From != "" {
		qb = qb.Where(sq.GtOrEq{"date": filter.From})
	}
	if filter.To != "" {
		qb = qb.Where(sq.LtOrEq{"date": filter.To})
	}
	if filter.StaffID != "" {
		qb = qb.Where(sq.Eq{"staff_id": filter.StaffID})
	}
	if filter.Status != "" {
		qb = qb.Where(sq.Eq{"status": filter.Status})
	}
	if filter.Limit > 0 {
		qb = qb.Limit(filter.Limit)
	}

	query, args, err := qb.OrderBy("date_time", "id").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build bookings query: %w", err)
	}
	return db.queryBookings(ctx, query, args...)
}

// BookingsForStaffOnDate returns the non-cancelled bookings of a staff
// member on a day.
func (db *DB) BookingsForStaffOnDate(ctx context.Context, staffID, date string) ([]models.Booking, error) {
	query, args, err := db.builder.
		Select(bookingColumns...).
		From("bookings").
		Where(sq.Eq{"staff_id": staffID, "date": date}).
		Where(sq.NotEq{"status": models.StatusCancelled}).
		OrderBy("date_time").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build staff bookings query: %w", err)
	}
	return db.queryBookings(ctx, query, args...)
}

func (db *DB) queryBookings(ctx context.Context, query string, args ...interface{}) ([]models.Booking, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer rows.Close()

	bookings := make([]models.Booking, 0)
	for rows.Next() {
		var b models.Booking
		if err := rows.Scan(
			&b.ID,
			&b.ServiceID,
			&b.StaffID,
			&b.ClientName,
			&b.ClientEmail,
			&b.ClientPhone,
			&b.DateTime,
			&b.Notes,
			&b.Status,
			&b.Duration,
			&b.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}
