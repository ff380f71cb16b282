package api

import (
	"time"

	"rezervacia/internal/models"
	"rezervacia/internal/wizard"
)

// WizardView is what the client renders for the current step. Only the
// fields of that step are filled.
type WizardView struct {
	SessionID   string              `json:"sessionId"`
	Step        wizard.Step         `json:"step"`
	StepNumber  int                 `json:"stepNumber"`
	Error       string              `json:"error,omitempty"`
	FieldErrors map[string]string   `json:"fieldErrors,omitempty"`
	Draft       models.BookingDraft `json:"draft"`

	Services []models.Service `json:"services,omitempty"`

	SelectedService *models.Service      `json:"selectedService,omitempty"`
	Staff           []models.StaffMember `json:"staff,omitempty"`
	Dates           []wizard.DateCell    `json:"dates,omitempty"`
	Slots           []models.TimeSlot    `json:"slots,omitempty"`
	SlotsLoading    bool                 `json:"slotsLoading,omitempty"`
	CanContinue     bool                 `json:"canContinue"`

	Summary    *SummaryView `json:"summary,omitempty"`
	Submitting bool         `json:"submitting,omitempty"`

	Confirmation *models.ConfirmationRecord `json:"confirmation,omitempty"`

	CanRetry bool `json:"canRetry,omitempty"`
}

// SummaryView recaps the booking on the contact step.
type SummaryView struct {
	ServiceName       string  `json:"serviceName"`
	StaffName         string  `json:"staffName"`
	FormattedDateTime string  `json:"formattedDateTime"`
	Duration          int     `json:"duration"`
	Price             float64 `json:"price"`
}

var stepNumbers = map[wizard.Step]int{
	wizard.StepSelectingService:  1,
	wizard.StepSelectingDateTime: 2,
	wizard.StepEnteringContact:   3,
	wizard.StepConfirmed:         4,
}

func newWizardView(w *wizard.Wizard, now time.Time) *WizardView {
	v := &WizardView{
		SessionID:   w.SessionID,
		Step:        w.Step,
		StepNumber:  stepNumbers[w.Step],
		Error:       w.LastError,
		FieldErrors: w.FieldErrors,
		Draft:       w.Draft,
		CanContinue: w.CanContinue(),
	}

	switch w.Step {
	case wizard.StepSelectingService:
		v.Services = w.Services
	case wizard.StepSelectingDateTime:
		if s, ok := w.Service(w.Draft.ServiceID); ok {
			v.SelectedService = &s
		}
		v.Staff = w.Staff
		v.Dates = wizard.DateWindow(now, w.WindowDays)
		v.Slots = w.Slots
		v.SlotsLoading = w.SlotsLoading
	case wizard.StepEnteringContact:
		v.Summary = newSummary(w)
		v.Submitting = w.Submitting
	case wizard.StepConfirmed:
		v.Confirmation = w.Confirmation
	case wizard.StepErrored:
		v.CanRetry = true
	}
	return v
}

func newSummary(w *wizard.Wizard) *SummaryView {
	service, _ := w.Service(w.Draft.ServiceID)
	staff, _ := w.StaffMember(w.Draft.StaffID)
	formatted, err := wizard.FormatDateTimeSK(w.Draft.Date, w.Draft.Time)
	if err != nil {
		formatted = w.Draft.Date + " " + w.Draft.Time
	}
	return &SummaryView{
		ServiceName:       service.Name,
		StaffName:         staff.Name,
		FormattedDateTime: formatted,
		Duration:          service.Duration,
		Price:             service.EffectivePrice(),
	}
}
