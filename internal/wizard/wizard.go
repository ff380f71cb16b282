// Package wizard implements the four-step booking flow as a plain state
// machine. A Wizard value owns one booking attempt; it is serialized to the
// session store between requests and never shared between sessions.
package wizard

import (
	"errors"
	"fmt"
	"time"

	"rezervacia/internal/models"
)

type Step string

const (
	StepLoading           Step = "loading"
	StepSelectingService  Step = "selecting_service"
	StepSelectingDateTime Step = "selecting_datetime"
	StepEnteringContact   Step = "entering_contact"
	StepConfirmed         Step = "confirmed"
	StepErrored           Step = "errored"
)

var (
	ErrInvalidTransition = errors.New("invalid wizard transition")
	ErrStepIncomplete    = errors.New("step is incomplete")
	ErrUnknownService    = errors.New("unknown service")
	ErrUnknownStaff      = errors.New("unknown staff member")
	ErrInvalidDate       = errors.New("invalid date")
	ErrDateOutOfWindow   = errors.New("date is outside the booking window")
	ErrSlotUnavailable   = errors.New("time slot is not available")
	ErrSubmitInProgress  = errors.New("submission already in progress")
	ErrValidation        = errors.New("contact form is invalid")
)

// Wizard is the state of one booking attempt.
type Wizard struct {
	SessionID            string                     `json:"sessionId"`
	Step                 Step                       `json:"step"`
	PreselectedServiceID string                     `json:"preselectedServiceId,omitempty"`
	WindowDays           int                        `json:"windowDays"`
	Draft                models.BookingDraft        `json:"draft"`
	Services             []models.Service           `json:"services,omitempty"`
	Staff                []models.StaffMember       `json:"staff,omitempty"`
	Slots                []models.TimeSlot          `json:"slots,omitempty"`
	SlotRequestID        uint64                     `json:"slotRequestId"`
	SlotsLoading         bool                       `json:"slotsLoading"`
	Submitting           bool                       `json:"submitting"`
	LastError            string                     `json:"lastError,omitempty"`
	FieldErrors          map[string]string          `json:"fieldErrors,omitempty"`
	Confirmation         *models.ConfirmationRecord `json:"confirmation,omitempty"`
	CreatedAt            time.Time                  `json:"createdAt"`
	UpdatedAt            time.Time                  `json:"updatedAt"`
}

// New creates a wizard in the Loading step. preselectedServiceID is applied
// once the catalog arrives.
func New(sessionID, preselectedServiceID string, windowDays int, now time.Time) *Wizard {
	if windowDays <= 0 {
		windowDays = models.DefaultWindowDays
	}
	return &Wizard{
		SessionID:            sessionID,
		Step:                 StepLoading,
		PreselectedServiceID: preselectedServiceID,
		WindowDays:           windowDays,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

func transitionError(from Step, action string) error {
	return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, action, from)
}

// CatalogLoaded moves Loading -> SelectingService. A preselected service that
// exists in the catalog is picked right away.
func (w *Wizard) CatalogLoaded(services []models.Service, staff []models.StaffMember) error {
	if w.Step != StepLoading {
		return transitionError(w.Step, "catalog loaded")
	}
	w.Services = append([]models.Service(nil), services...)
	w.Staff = append([]models.StaffMember(nil), staff...)
	w.LastError = ""
	w.Step = StepSelectingService

	if w.PreselectedServiceID != "" {
		if _, ok := w.Service(w.PreselectedServiceID); ok {
			w.Draft.ServiceID = w.PreselectedServiceID
			w.Step = StepSelectingDateTime
		}
	}
	return nil
}

// CatalogFailed moves Loading -> Errored.
func (w *Wizard) CatalogFailed(message string) error {
	if w.Step != StepLoading {
		return transitionError(w.Step, "catalog failed")
	}
	w.Step = StepErrored
	w.LastError = message
	return nil
}

// Retry is a full reload: the draft and catalog are dropped and the wizard
// waits for the catalog again.
func (w *Wizard) Retry() error {
	if w.Step != StepErrored {
		return transitionError(w.Step, "retry")
	}
	*w = Wizard{
		SessionID:            w.SessionID,
		Step:                 StepLoading,
		PreselectedServiceID: w.PreselectedServiceID,
		WindowDays:           w.WindowDays,
		SlotRequestID:        w.SlotRequestID,
		CreatedAt:            w.CreatedAt,
		UpdatedAt:            w.UpdatedAt,
	}
	return nil
}

func (w *Wizard) SelectService(serviceID string) error {
	if w.Step != StepSelectingService {
		return transitionError(w.Step, "select service")
	}
	if _, ok := w.Service(serviceID); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownService, serviceID)
	}
	w.Draft.ServiceID = serviceID
	w.LastError = ""
	w.Step = StepSelectingDateTime
	return nil
}

// Back moves one step backwards. Draft fields are kept.
func (w *Wizard) Back() error {
	switch w.Step {
	case StepSelectingDateTime:
		w.Step = StepSelectingService
	case StepEnteringContact:
		if w.Submitting {
			return ErrSubmitInProgress
		}
		w.Step = StepSelectingDateTime
		w.SlotsLoading = false
	default:
		return transitionError(w.Step, "back")
	}
	w.LastError = ""
	w.FieldErrors = nil
	return nil
}

// PickStaff selects a staff member. A different choice invalidates the
// chosen time and the slot list.
func (w *Wizard) PickStaff(staffID string) error {
	if w.Step != StepSelectingDateTime {
		return transitionError(w.Step, "pick staff")
	}
	if _, ok := w.StaffMember(staffID); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownStaff, staffID)
	}
	if w.Draft.StaffID != staffID {
		w.Draft.StaffID = staffID
		w.resetSlots()
	}
	return nil
}

// PickDate selects a date from the booking window that starts at now.
func (w *Wizard) PickDate(date string, now time.Time) error {
	if w.Step != StepSelectingDateTime {
		return transitionError(w.Step, "pick date")
	}
	if _, err := time.ParseInLocation(models.DateLayout, date, now.Location()); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidDate, date)
	}
	if !InWindow(date, now, w.WindowDays) {
		return fmt.Errorf("%w: %s", ErrDateOutOfWindow, date)
	}
	if w.Draft.Date != date {
		w.Draft.Date = date
		w.resetSlots()
	}
	return nil
}

func (w *Wizard) resetSlots() {
	w.Draft.Time = ""
	w.Slots = nil
	w.SlotsLoading = false
}

// ReadyForSlots reports whether staff and date are both chosen.
func (w *Wizard) ReadyForSlots() bool {
	return w.Step == StepSelectingDateTime && w.Draft.StaffID != "" && w.Draft.Date != ""
}

// BeginSlotFetch starts a new slot request and returns its id. Only the
// response carrying the latest id is applied.
func (w *Wizard) BeginSlotFetch() (uint64, error) {
	if !w.ReadyForSlots() {
		return 0, fmt.Errorf("%w: staff and date are required", ErrStepIncomplete)
	}
	w.SlotRequestID++
	w.Slots = nil
	w.SlotsLoading = true
	return w.SlotRequestID, nil
}

// ApplySlots stores a slot response. It returns false when the response is
// stale and was dropped.
func (w *Wizard) ApplySlots(requestID uint64, slots []models.TimeSlot) bool {
	if requestID != w.SlotRequestID {
		return false
	}
	if w.Step != StepSelectingDateTime {
		w.SlotsLoading = false
		return false
	}
	w.Slots = append([]models.TimeSlot{}, slots...)
	w.SlotsLoading = false
	w.LastError = ""
	if w.Draft.Time != "" && !w.slotAvailable(w.Draft.Time) {
		w.Draft.Time = ""
	}
	return true
}

// SlotsFailed records a failed slot request. Stale failures are ignored.
func (w *Wizard) SlotsFailed(requestID uint64, message string) bool {
	if requestID != w.SlotRequestID {
		return false
	}
	if w.Step != StepSelectingDateTime {
		w.SlotsLoading = false
		return false
	}
	w.Slots = []models.TimeSlot{}
	w.SlotsLoading = false
	w.Draft.Time = ""
	w.LastError = message
	return true
}

func (w *Wizard) PickTime(t string) error {
	if w.Step != StepSelectingDateTime {
		return transitionError(w.Step, "pick time")
	}
	if !w.ReadyForSlots() || w.SlotsLoading {
		return fmt.Errorf("%w: slots are not loaded", ErrStepIncomplete)
	}
	if !w.slotAvailable(t) {
		return fmt.Errorf("%w: %s", ErrSlotUnavailable, t)
	}
	w.Draft.Time = t
	return nil
}

func (w *Wizard) slotAvailable(t string) bool {
	for _, s := range w.Slots {
		if s.Time == t {
			return s.Available
		}
	}
	return false
}

// CanContinue reports whether staff, date and time are all set and no slot
// request is in flight.
func (w *Wizard) CanContinue() bool {
	return w.Step == StepSelectingDateTime && !w.SlotsLoading &&
		w.Draft.StaffID != "" && w.Draft.Date != "" && w.Draft.Time != ""
}

func (w *Wizard) Continue() error {
	if w.Step != StepSelectingDateTime {
		return transitionError(w.Step, "continue")
	}
	if !w.CanContinue() {
		return fmt.Errorf("%w: staff, date and time are required", ErrStepIncomplete)
	}
	w.Step = StepEnteringContact
	w.LastError = ""
	return nil
}

// SubmitContact stores the form into the draft and validates it. On success
// the wizard is marked as submitting and the payload for the sink is returned.
// Invalid fields are reported in FieldErrors and ErrValidation is returned;
// the entered values are kept either way.
func (w *Wizard) SubmitContact(form ContactForm) (models.BookingPayload, error) {
	if w.Step != StepEnteringContact {
		return models.BookingPayload{}, transitionError(w.Step, "submit")
	}
	if w.Submitting {
		return models.BookingPayload{}, ErrSubmitInProgress
	}

	form = form.Normalize()
	w.Draft.FirstName = form.FirstName
	w.Draft.LastName = form.LastName
	w.Draft.Email = form.Email
	w.Draft.Phone = form.Phone
	w.Draft.Notes = form.Notes
	w.Draft.Consent = form.Consent

	if fieldErrors := form.Validate(); len(fieldErrors) > 0 {
		w.FieldErrors = fieldErrors
		return models.BookingPayload{}, ErrValidation
	}
	w.FieldErrors = nil

	service, ok := w.Service(w.Draft.ServiceID)
	if !ok {
		return models.BookingPayload{}, fmt.Errorf("%w: %s", ErrUnknownService, w.Draft.ServiceID)
	}

	w.Submitting = true
	w.LastError = ""
	return BuildPayload(w.Draft, service), nil
}

// SubmissionSucceeded finishes the flow. The draft is replaced by the
// confirmation record.
func (w *Wizard) SubmissionSucceeded(bookingID int64) error {
	if w.Step != StepEnteringContact || !w.Submitting {
		return transitionError(w.Step, "submission succeeded")
	}
	service, _ := w.Service(w.Draft.ServiceID)
	staff, _ := w.StaffMember(w.Draft.StaffID)

	record, err := NewConfirmation(bookingID, w.Draft, service, staff)
	if err != nil {
		return err
	}

	w.Confirmation = &record
	w.Draft = models.BookingDraft{}
	w.Slots = nil
	w.Submitting = false
	w.LastError = ""
	w.FieldErrors = nil
	w.Step = StepConfirmed
	return nil
}

// SubmissionFailed keeps the wizard on the contact step with a message.
func (w *Wizard) SubmissionFailed(message string) error {
	if w.Step != StepEnteringContact || !w.Submitting {
		return transitionError(w.Step, "submission failed")
	}
	w.Submitting = false
	w.LastError = message
	return nil
}

func (w *Wizard) Service(id string) (models.Service, bool) {
	for _, s := range w.Services {
		if s.ID == id {
			return s, true
		}
	}
	return models.Service{}, false
}

func (w *Wizard) StaffMember(id string) (models.StaffMember, bool) {
	for _, s := range w.Staff {
		if s.ID == id {
			return s, true
		}
	}
	return models.StaffMember{}, false
}
