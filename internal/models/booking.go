package models

import "time"

// BookingDraft holds the data collected across wizard steps.
type BookingDraft struct {
	ServiceID string `json:"serviceId,omitempty"`
	StaffID   string `json:"staffId,omitempty"`
	Date      string `json:"date,omitempty"` // YYYY-MM-DD
	Time      string `json:"time,omitempty"` // HH:MM
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Notes     string `json:"notes,omitempty"`
	Consent   bool   `json:"consent"`
}

// BookingPayload is what a BookingSink receives.
type BookingPayload struct {
	ServiceID   string `json:"serviceId"`
	StaffID     string `json:"staffId"`
	ClientName  string `json:"clientName"`
	ClientEmail string `json:"clientEmail"`
	ClientPhone string `json:"clientPhone"`
	DateTime    string `json:"dateTime"` // YYYY-MM-DDTHH:MM:SS
	Notes       string `json:"notes"`
	Status      string `json:"status"`
	Duration    int    `json:"duration"`
}

type Booking struct {
	ID int64 `json:"id"`
	BookingPayload
	CreatedAt time.Time `json:"createdAt"`
}

// Date returns the calendar date part of DateTime.
func (b Booking) Date() string {
	if len(b.DateTime) < len(DateLayout) {
		return ""
	}
	return b.DateTime[:len(DateLayout)]
}

// Time returns the HH:MM part of DateTime.
func (b Booking) Time() string {
	if len(b.DateTime) < len(DateLayout)+1+len(TimeLayout) {
		return ""
	}
	start := len(DateLayout) + 1
	return b.DateTime[start : start+len(TimeLayout)]
}

// BookingFilter narrows back-office listings. Empty fields are ignored.
type BookingFilter struct {
	From    string // YYYY-MM-DD, inclusive
	To      string // YYYY-MM-DD, inclusive
	StaffID string
	Status  string
	Limit   uint64
}

// ConfirmationRecord is built once after a successful submission.
type ConfirmationRecord struct {
	BookingID         int64  `json:"bookingId"`
	ServiceID         string `json:"serviceId"`
	ServiceName       string `json:"serviceName"`
	StaffID           string `json:"staffId"`
	StaffName         string `json:"staffName"`
	ClientName        string `json:"clientName"`
	Email             string `json:"email"`
	Phone             string `json:"phone"`
	Date              string `json:"date"`
	Time              string `json:"time"`
	DateTime          string `json:"dateTime"`
	Duration          int    `json:"duration"`
	FormattedDateTime string `json:"formattedDateTime"`
}
