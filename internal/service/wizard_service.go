package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rezervacia/internal/domain"
	"rezervacia/internal/events"
	"rezervacia/internal/metrics"
	"rezervacia/internal/models"
	"rezervacia/internal/wizard"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrSessionNotFound    = errors.New("wizard session not found")
	ErrSubmissionFailed   = errors.New("booking submission failed")
	ErrTooManySubmissions = errors.New("too many submissions")
)

// User-facing messages stored on the wizard.
const (
	MsgCatalogFailed = "Nepodarilo sa načítať služby. Skúste to znova."
	MsgSlotsFailed   = "Nepodarilo sa načítať voľné termíny. Skúste iný dátum."
	MsgSubmitFailed  = "Rezerváciu sa nepodarilo odoslať. Skúste to znova."
)

const (
	ChannelWeb      = "web"
	ChannelTelegram = "telegram"
)

type WizardConfig struct {
	WindowDays       int
	SubmitTimeout    time.Duration
	SubmitRateLimit  int
	SubmitRateWindow time.Duration
}

func (c WizardConfig) withDefaults() WizardConfig {
	if c.WindowDays <= 0 {
		c.WindowDays = models.DefaultWindowDays
	}
	if c.SubmitTimeout <= 0 {
		c.SubmitTimeout = models.DefaultSubmitTimeout * time.Second
	}
	if c.SubmitRateLimit <= 0 {
		c.SubmitRateLimit = models.DefaultSubmitRateLimit
	}
	if c.SubmitRateWindow <= 0 {
		c.SubmitRateWindow = models.DefaultSubmitRateWindow * time.Second
	}
	return c
}

// WizardService drives wizard sessions: it loads them from the session store,
// applies one transition under a per-session lock and saves them back.
// Catalog, slot and sink calls that may block run outside the lock.
type WizardService struct {
	catalog  domain.CatalogReader
	slots    domain.SlotAvailabilityProvider
	sink     domain.BookingSink
	sessions domain.SessionRepository
	events   domain.EventPublisher
	clock    domain.TimeProvider
	cfg      WizardConfig
	locks    *keyedMutex
	logger   *zerolog.Logger
}

func NewWizardService(
	catalog domain.CatalogReader,
	slots domain.SlotAvailabilityProvider,
	sink domain.BookingSink,
	sessions domain.SessionRepository,
	eventBus domain.EventPublisher,
	clock domain.TimeProvider,
	cfg WizardConfig,
	logger *zerolog.Logger,
) *WizardService {
	return &WizardService{
		catalog:  catalog,
		slots:    slots,
		sink:     sink,
		sessions: sessions,
		events:   eventBus,
		clock:    clock,
		cfg:      cfg.withDefaults(),
		locks:    newKeyedMutex(),
		logger:   logger,
	}
}

// Start opens a new wizard session and loads the catalog into it. An empty
// sessionID gets a generated one; an existing session with the same id is
// replaced.
func (s *WizardService) Start(ctx context.Context, sessionID, preselectedServiceID string) (*wizard.Wizard, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	unlock := s.locks.Lock(sessionID)
	defer unlock()

	w := wizard.New(sessionID, preselectedServiceID, s.cfg.WindowDays, s.clock.Now())
	s.loadCatalog(ctx, w)

	if err := s.sessions.SaveSession(ctx, w); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	metrics.IncTransition(string(w.Step))
	s.publish(events.EventWizardStarted, events.BookingEventPayload{
		SessionID: w.SessionID,
		ServiceID: w.Draft.ServiceID,
	})
	return w, nil
}

func (s *WizardService) loadCatalog(ctx context.Context, w *wizard.Wizard) {
	services, err := s.catalog.ListServices(ctx)
	if err == nil {
		var staff []models.StaffMember
		staff, err = s.catalog.ListStaff(ctx)
		if err == nil {
			_ = w.CatalogLoaded(services, staff)
			return
		}
	}

	s.logger.Error().Err(err).Str("session_id", w.SessionID).Msg("failed to load catalog")
	_ = w.CatalogFailed(MsgCatalogFailed)
}

func (s *WizardService) Get(ctx context.Context, sessionID string) (*wizard.Wizard, error) {
	return s.load(ctx, sessionID)
}

// Delete drops a session. Unknown ids are not an error.
func (s *WizardService) Delete(ctx context.Context, sessionID string) error {
	unlock := s.locks.Lock(sessionID)
	defer unlock()
	return s.sessions.DeleteSession(ctx, sessionID)
}

// Retry reloads the catalog of an errored session.
func (s *WizardService) Retry(ctx context.Context, sessionID string) (*wizard.Wizard, error) {
	return s.mutate(ctx, sessionID, func(w *wizard.Wizard) error {
		if err := w.Retry(); err != nil {
			return err
		}
		s.loadCatalog(ctx, w)
		return nil
	})
}

func (s *WizardService) SelectService(ctx context.Context, sessionID, serviceID string) (*wizard.Wizard, error) {
	return s.mutate(ctx, sessionID, func(w *wizard.Wizard) error {
		return w.SelectService(serviceID)
	})
}

func (s *WizardService) Back(ctx context.Context, sessionID string) (*wizard.Wizard, error) {
	return s.mutate(ctx, sessionID, (*wizard.Wizard).Back)
}

// PickStaff selects a staff member and, once a date is also chosen, fetches
// the slots for the pair.
func (s *WizardService) PickStaff(ctx context.Context, sessionID, staffID string) (*wizard.Wizard, error) {
	return s.selectAndFetch(ctx, sessionID, func(w *wizard.Wizard) error {
		return w.PickStaff(staffID)
	})
}

// PickDate selects a date and, once a staff member is also chosen, fetches
// the slots for the pair.
func (s *WizardService) PickDate(ctx context.Context, sessionID, date string) (*wizard.Wizard, error) {
	return s.selectAndFetch(ctx, sessionID, func(w *wizard.Wizard) error {
		return w.PickDate(date, s.clock.Now())
	})
}

// RefreshSlots refetches slots for the current staff and date.
func (s *WizardService) RefreshSlots(ctx context.Context, sessionID string) (*wizard.Wizard, error) {
	return s.selectAndFetch(ctx, sessionID, func(w *wizard.Wizard) error {
		if !w.ReadyForSlots() {
			return fmt.Errorf("%w: staff and date are required", wizard.ErrStepIncomplete)
		}
		return nil
	})
}

type slotRequest struct {
	id       uint64
	date     string
	staffID  string
	prevTime string
}

func (s *WizardService) selectAndFetch(ctx context.Context, sessionID string, fn func(w *wizard.Wizard) error) (*wizard.Wizard, error) {
	var req slotRequest
	w, err := s.mutate(ctx, sessionID, func(w *wizard.Wizard) error {
		if err := fn(w); err != nil {
			return err
		}
		if !w.ReadyForSlots() {
			return nil
		}
		req.prevTime = w.Draft.Time
		id, err := w.BeginSlotFetch()
		if err != nil {
			return err
		}
		req.id = id
		req.date = w.Draft.Date
		req.staffID = w.Draft.StaffID
		return nil
	})
	if err != nil || req.id == 0 {
		return w, err
	}

	return s.fetchSlots(ctx, sessionID, req)
}

func (s *WizardService) fetchSlots(ctx context.Context, sessionID string, req slotRequest) (*wizard.Wizard, error) {
	start := time.Now()
	slots, fetchErr := s.slots.GetSlots(ctx, req.date, req.staffID)
	metrics.ObserveSlotFetch(time.Since(start))

	// the session must leave the loading state even if the caller went away
	ctx = context.WithoutCancel(ctx)
	invalidated := false

	w, err := s.mutate(ctx, sessionID, func(w *wizard.Wizard) error {
		if fetchErr != nil {
			s.logger.Warn().Err(fetchErr).
				Str("session_id", sessionID).
				Str("date", req.date).
				Str("staff_id", req.staffID).
				Msg("failed to fetch slots")
			if !w.SlotsFailed(req.id, MsgSlotsFailed) {
				metrics.IncStaleSlots()
			}
			return nil
		}
		if !w.ApplySlots(req.id, slots) {
			metrics.IncStaleSlots()
			s.logger.Debug().Str("session_id", sessionID).Uint64("request_id", req.id).Msg("stale slot response dropped")
			return nil
		}
		invalidated = req.prevTime != "" && w.Draft.Time == ""
		return nil
	})
	if err != nil {
		return w, err
	}

	if invalidated {
		s.publish(events.EventSlotsInvalidated, events.BookingEventPayload{
			SessionID: sessionID,
			StaffID:   req.staffID,
			DateTime:  wizard.ComposeDateTime(req.date, req.prevTime),
		})
	}
	return w, nil
}

func (s *WizardService) PickTime(ctx context.Context, sessionID, t string) (*wizard.Wizard, error) {
	return s.mutate(ctx, sessionID, func(w *wizard.Wizard) error {
		return w.PickTime(t)
	})
}

func (s *WizardService) Continue(ctx context.Context, sessionID string) (*wizard.Wizard, error) {
	return s.mutate(ctx, sessionID, (*wizard.Wizard).Continue)
}

// Submit validates the contact form and sends the booking to the sink.
// Invalid forms return wizard.ErrValidation with the session's FieldErrors
// set. A sink failure keeps the session on the contact step and returns
// ErrSubmissionFailed.
func (s *WizardService) Submit(ctx context.Context, sessionID string, form wizard.ContactForm, channel string) (*wizard.Wizard, error) {
	var payload models.BookingPayload
	w, err := s.mutate(ctx, sessionID, func(w *wizard.Wizard) error {
		p, err := w.SubmitContact(form)
		if err != nil {
			return err
		}
		// only attempts that would reach the sink count against the limit
		if !s.allowSubmit(ctx, sessionID) {
			return ErrTooManySubmissions
		}
		payload = p
		return nil
	})
	if errors.Is(err, ErrTooManySubmissions) {
		return nil, err
	}
	if err != nil {
		return w, err
	}

	sinkCtx, cancel := context.WithTimeout(ctx, s.cfg.SubmitTimeout)
	booking, sinkErr := s.sink.CreateBooking(sinkCtx, payload)
	cancel()

	finCtx := context.WithoutCancel(ctx)
	if sinkErr != nil {
		s.logger.Error().Err(sinkErr).
			Str("session_id", sessionID).
			Str("service_id", payload.ServiceID).
			Str("date_time", payload.DateTime).
			Msg("booking submission failed")
		metrics.IncSubmissionFailed()

		w, err = s.mutate(finCtx, sessionID, func(w *wizard.Wizard) error {
			return w.SubmissionFailed(MsgSubmitFailed)
		})
		if err != nil {
			return w, err
		}
		s.publish(events.EventBookingFailed, events.BookingEventPayload{
			SessionID: sessionID,
			ServiceID: payload.ServiceID,
			StaffID:   payload.StaffID,
			DateTime:  payload.DateTime,
			Channel:   channel,
			Error:     sinkErr.Error(),
		})
		return w, fmt.Errorf("%w: %v", ErrSubmissionFailed, sinkErr)
	}

	w, err = s.mutate(finCtx, sessionID, func(w *wizard.Wizard) error {
		return w.SubmissionSucceeded(booking.ID)
	})
	if err != nil {
		return w, err
	}

	metrics.IncBookingCreated(payload.ServiceID, channel)
	s.logger.Info().
		Str("session_id", sessionID).
		Int64("booking_id", booking.ID).
		Str("date_time", payload.DateTime).
		Str("channel", channel).
		Msg("booking created")

	record := w.Confirmation
	s.publish(events.EventBookingCreated, events.BookingEventPayload{
		SessionID:   sessionID,
		BookingID:   booking.ID,
		ServiceID:   record.ServiceID,
		ServiceName: record.ServiceName,
		StaffID:     record.StaffID,
		StaffName:   record.StaffName,
		ClientName:  record.ClientName,
		DateTime:    record.DateTime,
		Duration:    record.Duration,
		Status:      booking.Status,
		Channel:     channel,
	})
	return w, nil
}

func (s *WizardService) allowSubmit(ctx context.Context, sessionID string) bool {
	allowed, err := s.sessions.CheckRateLimit(ctx, "submit:"+sessionID, s.cfg.SubmitRateLimit, s.cfg.SubmitRateWindow)
	if err != nil {
		s.logger.Warn().Err(err).Str("session_id", sessionID).Msg("submit rate limit check failed")
		return true
	}
	return allowed
}

func (s *WizardService) Services(ctx context.Context) ([]models.Service, error) {
	return s.catalog.ListServices(ctx)
}

func (s *WizardService) Staff(ctx context.Context) ([]models.StaffMember, error) {
	return s.catalog.ListStaff(ctx)
}

// Slots returns availability for a date and staff member outside any session.
func (s *WizardService) Slots(ctx context.Context, date, staffID string) ([]models.TimeSlot, error) {
	if !wizard.InWindow(date, s.clock.Now(), s.cfg.WindowDays) {
		return nil, fmt.Errorf("%w: %s", wizard.ErrDateOutOfWindow, date)
	}
	return s.slots.GetSlots(ctx, date, staffID)
}

// DateWindow returns the selectable dates starting today.
func (s *WizardService) DateWindow() []wizard.DateCell {
	return wizard.DateWindow(s.clock.Now(), s.cfg.WindowDays)
}

func (s *WizardService) load(ctx context.Context, sessionID string) (*wizard.Wizard, error) {
	w, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if w == nil {
		return nil, ErrSessionNotFound
	}
	return w, nil
}

// mutate applies fn to the stored session under the session lock and saves
// the result. A validation failure is saved too so the entered values and
// field errors survive.
func (s *WizardService) mutate(ctx context.Context, sessionID string, fn func(w *wizard.Wizard) error) (*wizard.Wizard, error) {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	w, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	before := w.Step
	fnErr := fn(w)
	if fnErr != nil && !errors.Is(fnErr, wizard.ErrValidation) {
		return w, fnErr
	}

	w.UpdatedAt = s.clock.Now()
	if err := s.sessions.SaveSession(ctx, w); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	if w.Step != before {
		metrics.IncTransition(string(w.Step))
	}
	return w, fnErr
}

func (s *WizardService) publish(eventType string, payload events.BookingEventPayload) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Str("session_id", payload.SessionID).Msg("publish event error")
	}
}
