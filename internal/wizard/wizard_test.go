package wizard

import (
	"testing"
	"time"

	"rezervacia/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testZone = time.FixedZone("CEST", 2*60*60)

// Monday
var testNow = time.Date(2026, 10, 19, 8, 0, 0, 0, testZone)

func testCatalog() ([]models.Service, []models.StaffMember) {
	services := []models.Service{
		{ID: "1", Name: "Dámsky strih", Duration: 45, Price: 35},
		{ID: "3", Name: "Manikúra", Duration: 60, Price: 28},
	}
	staff := []models.StaffMember{
		{ID: "1", Name: "Petra Kováčová", Position: "Kaderníčka"},
		{ID: "2", Name: "Lucia Horváthová", Position: "Kozmetička"},
	}
	return services, staff
}

func weekdaySlots() []models.TimeSlot {
	return []models.TimeSlot{
		{Time: "09:00", Available: true},
		{Time: "09:30", Available: true},
		{Time: "10:00", Available: false},
	}
}

func validForm() ContactForm {
	return ContactForm{
		FirstName: "Jana",
		LastName:  "Nová",
		Email:     "jana@example.com",
		Phone:     "+421900000000",
		Consent:   true,
	}
}

func loadedWizard(t *testing.T) *Wizard {
	t.Helper()
	w := New("s1", "", 14, testNow)
	services, staff := testCatalog()
	require.NoError(t, w.CatalogLoaded(services, staff))
	return w
}

// atContact drives a wizard to the contact step with service 3, staff 2,
// 2026-10-20 09:00.
func atContact(t *testing.T) *Wizard {
	t.Helper()
	w := loadedWizard(t)
	require.NoError(t, w.SelectService("3"))
	require.NoError(t, w.PickStaff("2"))
	require.NoError(t, w.PickDate("2026-10-20", testNow))
	id, err := w.BeginSlotFetch()
	require.NoError(t, err)
	require.True(t, w.ApplySlots(id, weekdaySlots()))
	require.NoError(t, w.PickTime("09:00"))
	require.NoError(t, w.Continue())
	return w
}

func TestWizard_Loading(t *testing.T) {
	t.Run("CatalogLoaded", func(t *testing.T) {
		w := New("s1", "", 0, testNow)
		assert.Equal(t, StepLoading, w.Step)
		assert.Equal(t, models.DefaultWindowDays, w.WindowDays)

		services, staff := testCatalog()
		require.NoError(t, w.CatalogLoaded(services, staff))
		assert.Equal(t, StepSelectingService, w.Step)
		assert.Len(t, w.Services, 2)
		assert.Len(t, w.Staff, 2)
	})

	t.Run("PreselectedService", func(t *testing.T) {
		w := New("s1", "3", 14, testNow)
		services, staff := testCatalog()
		require.NoError(t, w.CatalogLoaded(services, staff))
		assert.Equal(t, StepSelectingDateTime, w.Step)
		assert.Equal(t, "3", w.Draft.ServiceID)
	})

	t.Run("UnknownPreselectedService", func(t *testing.T) {
		w := New("s1", "99", 14, testNow)
		services, staff := testCatalog()
		require.NoError(t, w.CatalogLoaded(services, staff))
		assert.Equal(t, StepSelectingService, w.Step)
		assert.Empty(t, w.Draft.ServiceID)
	})

	t.Run("FailureAndRetry", func(t *testing.T) {
		w := New("s1", "3", 14, testNow)
		require.NoError(t, w.CatalogFailed("chyba"))
		assert.Equal(t, StepErrored, w.Step)
		assert.Equal(t, "chyba", w.LastError)

		assert.ErrorIs(t, w.SelectService("1"), ErrInvalidTransition)

		require.NoError(t, w.Retry())
		assert.Equal(t, StepLoading, w.Step)
		assert.Empty(t, w.LastError)
		assert.Equal(t, "3", w.PreselectedServiceID)
		assert.Equal(t, "s1", w.SessionID)
	})

	t.Run("RetryOnlyFromErrored", func(t *testing.T) {
		w := loadedWizard(t)
		assert.ErrorIs(t, w.Retry(), ErrInvalidTransition)
	})
}

func TestWizard_SelectService(t *testing.T) {
	w := loadedWizard(t)

	err := w.SelectService("42")
	assert.ErrorIs(t, err, ErrUnknownService)
	assert.Equal(t, StepSelectingService, w.Step)

	require.NoError(t, w.SelectService("1"))
	assert.Equal(t, StepSelectingDateTime, w.Step)
	assert.Equal(t, "1", w.Draft.ServiceID)

	// no jump from step 2 straight to confirmation
	_, err = w.SubmitContact(validForm())
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestWizard_DateTimeStep(t *testing.T) {
	t.Run("ContinueRequiresAllFields", func(t *testing.T) {
		w := loadedWizard(t)
		require.NoError(t, w.SelectService("3"))

		assert.ErrorIs(t, w.Continue(), ErrStepIncomplete)
		require.NoError(t, w.PickStaff("2"))
		assert.ErrorIs(t, w.Continue(), ErrStepIncomplete)
		require.NoError(t, w.PickDate("2026-10-20", testNow))
		assert.ErrorIs(t, w.Continue(), ErrStepIncomplete)
		assert.False(t, w.CanContinue())

		id, err := w.BeginSlotFetch()
		require.NoError(t, err)
		w.ApplySlots(id, weekdaySlots())
		require.NoError(t, w.PickTime("09:30"))
		assert.True(t, w.CanContinue())
		require.NoError(t, w.Continue())
		assert.Equal(t, StepEnteringContact, w.Step)
	})

	t.Run("DateWindow", func(t *testing.T) {
		w := loadedWizard(t)
		require.NoError(t, w.SelectService("1"))

		assert.ErrorIs(t, w.PickDate("2026-10-18", testNow), ErrDateOutOfWindow)
		assert.ErrorIs(t, w.PickDate("2026-11-02", testNow), ErrDateOutOfWindow)
		assert.ErrorIs(t, w.PickDate("20.10.2026", testNow), ErrInvalidDate)
		assert.NoError(t, w.PickDate("2026-10-19", testNow))
		assert.NoError(t, w.PickDate("2026-11-01", testNow))
	})

	t.Run("UnknownStaff", func(t *testing.T) {
		w := loadedWizard(t)
		require.NoError(t, w.SelectService("1"))
		assert.ErrorIs(t, w.PickStaff("9"), ErrUnknownStaff)
	})

	t.Run("UnavailableSlot", func(t *testing.T) {
		w := loadedWizard(t)
		require.NoError(t, w.SelectService("1"))
		require.NoError(t, w.PickStaff("1"))
		require.NoError(t, w.PickDate("2026-10-20", testNow))

		assert.ErrorIs(t, w.PickTime("09:00"), ErrStepIncomplete)

		id, _ := w.BeginSlotFetch()
		w.ApplySlots(id, weekdaySlots())
		assert.ErrorIs(t, w.PickTime("10:00"), ErrSlotUnavailable)
		assert.ErrorIs(t, w.PickTime("23:00"), ErrSlotUnavailable)
	})

	t.Run("ChangingDateClearsTime", func(t *testing.T) {
		w := loadedWizard(t)
		require.NoError(t, w.SelectService("1"))
		require.NoError(t, w.PickStaff("1"))
		require.NoError(t, w.PickDate("2026-10-20", testNow))
		id, _ := w.BeginSlotFetch()
		w.ApplySlots(id, weekdaySlots())
		require.NoError(t, w.PickTime("09:00"))

		require.NoError(t, w.PickDate("2026-10-20", testNow))
		assert.Equal(t, "09:00", w.Draft.Time)

		require.NoError(t, w.PickDate("2026-10-21", testNow))
		assert.Empty(t, w.Draft.Time)
		assert.Nil(t, w.Slots)

		id, _ = w.BeginSlotFetch()
		w.ApplySlots(id, weekdaySlots())
		require.NoError(t, w.PickTime("09:00"))
		require.NoError(t, w.PickStaff("2"))
		assert.Empty(t, w.Draft.Time)
	})

	t.Run("StaleSlotResponseDropped", func(t *testing.T) {
		w := loadedWizard(t)
		require.NoError(t, w.SelectService("1"))
		require.NoError(t, w.PickStaff("1"))
		require.NoError(t, w.PickDate("2026-10-20", testNow))
		first, _ := w.BeginSlotFetch()

		require.NoError(t, w.PickDate("2026-10-24", testNow))
		second, _ := w.BeginSlotFetch()
		assert.Greater(t, second, first)

		weekend := []models.TimeSlot{{Time: "10:30", Available: true}}
		assert.True(t, w.ApplySlots(second, weekend))
		assert.False(t, w.ApplySlots(first, weekdaySlots()))
		assert.Equal(t, weekend, w.Slots)
		assert.False(t, w.SlotsFailed(first, "x"))
	})

	t.Run("RefreshDropsVanishedTime", func(t *testing.T) {
		w := loadedWizard(t)
		require.NoError(t, w.SelectService("1"))
		require.NoError(t, w.PickStaff("1"))
		require.NoError(t, w.PickDate("2026-10-20", testNow))
		id, _ := w.BeginSlotFetch()
		w.ApplySlots(id, weekdaySlots())
		require.NoError(t, w.PickTime("09:00"))

		id, _ = w.BeginSlotFetch()
		w.ApplySlots(id, []models.TimeSlot{{Time: "09:00", Available: false}})
		assert.Empty(t, w.Draft.Time)
	})

	t.Run("ContinueWaitsForSlotRefresh", func(t *testing.T) {
		w := loadedWizard(t)
		require.NoError(t, w.SelectService("1"))
		require.NoError(t, w.PickStaff("1"))
		require.NoError(t, w.PickDate("2026-10-20", testNow))
		id, _ := w.BeginSlotFetch()
		w.ApplySlots(id, weekdaySlots())
		require.NoError(t, w.PickTime("09:00"))

		refresh, err := w.BeginSlotFetch()
		require.NoError(t, err)
		assert.False(t, w.CanContinue())
		assert.ErrorIs(t, w.Continue(), ErrStepIncomplete)
		assert.Equal(t, StepSelectingDateTime, w.Step)

		assert.True(t, w.ApplySlots(refresh, weekdaySlots()))
		require.NoError(t, w.Continue())
		require.NoError(t, w.Back())
		require.NoError(t, w.PickTime("09:30"))
	})

	t.Run("LateResponseOffStepClearsLoading", func(t *testing.T) {
		w := atContact(t)
		w.SlotRequestID++
		w.SlotsLoading = true

		assert.False(t, w.ApplySlots(w.SlotRequestID, weekdaySlots()))
		assert.False(t, w.SlotsLoading)
		assert.Equal(t, "09:00", w.Draft.Time)

		w.SlotsLoading = true
		require.NoError(t, w.Back())
		assert.False(t, w.SlotsLoading)
		require.NoError(t, w.PickTime("09:30"))
	})

	t.Run("SlotsFailed", func(t *testing.T) {
		w := loadedWizard(t)
		require.NoError(t, w.SelectService("1"))
		require.NoError(t, w.PickStaff("1"))
		require.NoError(t, w.PickDate("2026-10-20", testNow))
		id, _ := w.BeginSlotFetch()

		assert.True(t, w.SlotsFailed(id, "sloty"))
		assert.Equal(t, "sloty", w.LastError)
		assert.False(t, w.SlotsLoading)
		assert.Empty(t, w.Slots)
	})

	t.Run("BeginSlotFetchRequiresStaffAndDate", func(t *testing.T) {
		w := loadedWizard(t)
		require.NoError(t, w.SelectService("1"))
		_, err := w.BeginSlotFetch()
		assert.ErrorIs(t, err, ErrStepIncomplete)
	})
}

func TestWizard_BackNavigation(t *testing.T) {
	w := atContact(t)

	_, err := w.SubmitContact(ContactForm{
		FirstName: "Jana",
		LastName:  "Nová",
		Email:     "jana@example.com",
		Phone:     "+421900000000",
		Notes:     "Prosím o ticho.",
		Consent:   false,
	})
	require.ErrorIs(t, err, ErrValidation)

	require.NoError(t, w.Back())
	assert.Equal(t, StepSelectingDateTime, w.Step)
	require.NoError(t, w.Back())
	assert.Equal(t, StepSelectingService, w.Step)
	assert.ErrorIs(t, w.Back(), ErrInvalidTransition)

	require.NoError(t, w.SelectService("3"))
	require.NoError(t, w.Continue())
	assert.Equal(t, StepEnteringContact, w.Step)

	assert.Equal(t, "3", w.Draft.ServiceID)
	assert.Equal(t, "2", w.Draft.StaffID)
	assert.Equal(t, "2026-10-20", w.Draft.Date)
	assert.Equal(t, "09:00", w.Draft.Time)
	assert.Equal(t, "Jana", w.Draft.FirstName)
	assert.Equal(t, "Nová", w.Draft.LastName)
	assert.Equal(t, "jana@example.com", w.Draft.Email)
	assert.Equal(t, "+421900000000", w.Draft.Phone)
	assert.Equal(t, "Prosím o ticho.", w.Draft.Notes)
}

func TestWizard_SubmitContact(t *testing.T) {
	t.Run("InvalidEmailThenCorrected", func(t *testing.T) {
		w := atContact(t)
		form := validForm()
		form.Email = "not-an-email"

		_, err := w.SubmitContact(form)
		require.ErrorIs(t, err, ErrValidation)
		assert.Contains(t, w.FieldErrors, "email")
		assert.Len(t, w.FieldErrors, 1)
		assert.False(t, w.Submitting)
		assert.Equal(t, "Jana", w.Draft.FirstName)

		form.Email = "jana@example.com"
		payload, err := w.SubmitContact(form)
		require.NoError(t, err)
		assert.Nil(t, w.FieldErrors)
		assert.True(t, w.Submitting)
		assert.Equal(t, "jana@example.com", payload.ClientEmail)
	})

	t.Run("FieldRules", func(t *testing.T) {
		errs := ContactForm{FirstName: "J", Phone: "12", Email: ""}.Validate()
		assert.Contains(t, errs, "firstName")
		assert.Contains(t, errs, "lastName")
		assert.Contains(t, errs, "email")
		assert.Contains(t, errs, "phone")
		assert.Contains(t, errs, "consent")
		assert.NotContains(t, errs, "notes")

		assert.Nil(t, validForm().Validate())

		spaced := validForm()
		spaced.Phone = "+421 900 000 000"
		assert.Nil(t, spaced.Validate())
	})

	t.Run("Payload", func(t *testing.T) {
		w := atContact(t)
		payload, err := w.SubmitContact(validForm())
		require.NoError(t, err)

		assert.Equal(t, models.BookingPayload{
			ServiceID:   "3",
			StaffID:     "2",
			ClientName:  "Jana Nová",
			ClientEmail: "jana@example.com",
			ClientPhone: "+421900000000",
			DateTime:    "2026-10-20T09:00:00",
			Status:      "confirmed",
			Duration:    60,
		}, payload)
	})

	t.Run("DoubleSubmit", func(t *testing.T) {
		w := atContact(t)
		_, err := w.SubmitContact(validForm())
		require.NoError(t, err)

		_, err = w.SubmitContact(validForm())
		assert.ErrorIs(t, err, ErrSubmitInProgress)
		assert.ErrorIs(t, w.Back(), ErrSubmitInProgress)
	})

	t.Run("FailureKeepsContactStep", func(t *testing.T) {
		w := atContact(t)
		_, err := w.SubmitContact(validForm())
		require.NoError(t, err)

		require.NoError(t, w.SubmissionFailed("nepodarilo sa"))
		assert.Equal(t, StepEnteringContact, w.Step)
		assert.False(t, w.Submitting)
		assert.Equal(t, "nepodarilo sa", w.LastError)
		assert.Equal(t, "Jana", w.Draft.FirstName)

		_, err = w.SubmitContact(validForm())
		assert.NoError(t, err)
	})

	t.Run("Success", func(t *testing.T) {
		w := atContact(t)
		_, err := w.SubmitContact(validForm())
		require.NoError(t, err)

		require.NoError(t, w.SubmissionSucceeded(17))
		assert.Equal(t, StepConfirmed, w.Step)
		assert.Equal(t, models.BookingDraft{}, w.Draft)
		require.NotNil(t, w.Confirmation)
		assert.Equal(t, int64(17), w.Confirmation.BookingID)
		assert.Equal(t, "Manikúra", w.Confirmation.ServiceName)
		assert.Equal(t, "Lucia Horváthová", w.Confirmation.StaffName)
		assert.Equal(t, "utorok 20. októbra 2026 o 09:00", w.Confirmation.FormattedDateTime)

		assert.ErrorIs(t, w.Back(), ErrInvalidTransition)
		assert.ErrorIs(t, w.SubmissionSucceeded(18), ErrInvalidTransition)
	})
}

func TestDateWindow(t *testing.T) {
	cells := DateWindow(testNow, 14)
	require.Len(t, cells, 14)
	assert.Equal(t, "2026-10-19", cells[0].Date)
	assert.True(t, cells[0].Today)
	assert.Equal(t, "Po", cells[0].Weekday)
	assert.Equal(t, "19.10.", cells[0].Label)
	assert.Equal(t, "2026-11-01", cells[13].Date)
	assert.True(t, cells[5].Weekend)
	assert.False(t, cells[4].Weekend)

	for _, c := range cells[1:] {
		assert.False(t, c.Today)
	}

	lateNight := time.Date(2026, 10, 19, 23, 59, 0, 0, testZone)
	assert.True(t, InWindow("2026-11-01", lateNight, 14))
	assert.False(t, InWindow("2026-11-02", lateNight, 14))
}

func TestFormatDateTimeSK(t *testing.T) {
	got, err := FormatDateTimeSK("2026-10-24", "14:30")
	require.NoError(t, err)
	assert.Equal(t, "sobota 24. októbra 2026 o 14:30", got)

	_, err = FormatDateTimeSK("bad", "14:30")
	assert.ErrorIs(t, err, ErrInvalidDate)

	_, err = FormatDateTimeSK("2026-10-24", "25:99")
	assert.Error(t, err)
}
