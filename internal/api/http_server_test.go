package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"rezervacia/internal/config"
	"rezervacia/internal/database"
	"rezervacia/internal/export"
	"rezervacia/internal/models"
	"rezervacia/internal/repository"
	"rezervacia/internal/service"
	"rezervacia/internal/slots"
	"rezervacia/internal/wizard"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

// Monday 2026-10-19 08:00
var monday = time.Date(2026, 10, 19, 8, 0, 0, 0, time.FixedZone("CEST", 2*60*60))

type testAPI struct {
	ts *httptest.Server
	db *database.DB
}

func newTestAPI(t *testing.T, cfg config.APIConfig) *testAPI {
	t.Helper()
	logger := zerolog.New(io.Discard)
	clock := fixedClock{now: monday}

	db, err := database.NewDB(filepath.Join(t.TempDir(), "api.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.SeedCatalog(context.Background(),
		[]models.Service{
			{ID: "1", Name: "Dámsky strih", Duration: 45, Price: 35},
			{ID: "3", Name: "Manikúra", Duration: 60, Price: 28},
		},
		[]models.StaffMember{
			{ID: "1", Name: "Petra Kováčová"},
			{ID: "2", Name: "Lucia Horváthová"},
		},
	))

	rule, err := slots.NewRuleProvider(slots.DefaultRuleConfig(), clock)
	require.NoError(t, err)
	provider := slots.NewReservationAwareProvider(rule, db, &logger)

	svc := service.NewWizardService(db, provider, db,
		repository.NewMemorySessionRepository(time.Hour), nil, clock,
		service.WizardConfig{}, &logger)
	exporter := export.NewExporter(db, db, t.TempDir(), &logger)

	srv := NewHTTPServer(cfg, svc, db, exporter, clock, &logger)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return &testAPI{ts: ts, db: db}
}

func (a *testAPI) do(t *testing.T, method, path string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, a.ts.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := a.ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func (a *testAPI) wizard(t *testing.T, method, path string, body any, wantStatus int) WizardView {
	t.Helper()
	resp, data := a.do(t, method, path, body, nil)
	require.Equal(t, wantStatus, resp.StatusCode, string(data))
	var view WizardView
	require.NoError(t, json.Unmarshal(data, &view))
	return view
}

func openAPI() config.APIConfig {
	return config.APIConfig{Enabled: true, HTTP: config.APIHTTPConfig{Enabled: true}}
}

func validContact() wizard.ContactForm {
	return wizard.ContactForm{
		FirstName: "Jana",
		LastName:  "Nová",
		Email:     "jana@example.com",
		Phone:     "+421900000000",
		Notes:     "prvá návšteva",
		Consent:   true,
	}
}

func TestWizardFlow(t *testing.T) {
	a := newTestAPI(t, openAPI())

	view := a.wizard(t, http.MethodPost, "/api/v1/wizard", nil, http.StatusCreated)
	require.NotEmpty(t, view.SessionID)
	assert.Equal(t, wizard.StepSelectingService, view.Step)
	assert.Equal(t, 1, view.StepNumber)
	assert.Len(t, view.Services, 2)
	base := "/api/v1/wizard/" + view.SessionID

	view = a.wizard(t, http.MethodPost, base+"/service", serviceRequest{ServiceID: "3"}, http.StatusOK)
	assert.Equal(t, 2, view.StepNumber)
	require.NotNil(t, view.SelectedService)
	assert.Equal(t, "Manikúra", view.SelectedService.Name)
	assert.Len(t, view.Dates, 14)
	assert.Len(t, view.Staff, 2)
	assert.False(t, view.CanContinue)

	a.wizard(t, http.MethodPost, base+"/staff", staffRequest{StaffID: "2"}, http.StatusOK)
	view = a.wizard(t, http.MethodPost, base+"/date", dateRequest{Date: "2026-10-20"}, http.StatusOK)
	require.Len(t, view.Slots, 18)

	view = a.wizard(t, http.MethodPost, base+"/time", timeRequest{Time: "09:00"}, http.StatusOK)
	assert.True(t, view.CanContinue)

	view = a.wizard(t, http.MethodPost, base+"/continue", nil, http.StatusOK)
	assert.Equal(t, 3, view.StepNumber)
	require.NotNil(t, view.Summary)
	assert.Equal(t, "utorok 20. októbra 2026 o 09:00", view.Summary.FormattedDateTime)
	assert.Equal(t, 60, view.Summary.Duration)

	view = a.wizard(t, http.MethodPost, base+"/contact", validContact(), http.StatusCreated)
	assert.Equal(t, wizard.StepConfirmed, view.Step)
	assert.Equal(t, 4, view.StepNumber)
	require.NotNil(t, view.Confirmation)
	assert.Equal(t, "Jana Nová", view.Confirmation.ClientName)

	bookings, err := a.db.ListBookings(context.Background(), models.BookingFilter{})
	require.NoError(t, err)
	require.Len(t, bookings, 1)
	assert.Equal(t, "2026-10-20T09:00:00", bookings[0].DateTime)
	assert.Equal(t, "prvá návšteva", bookings[0].Notes)
	assert.Equal(t, models.StatusConfirmed, bookings[0].Status)

	t.Run("BookedTimeBecomesUnavailable", func(t *testing.T) {
		resp, data := a.do(t, http.MethodGet, "/api/v1/slots?date=2026-10-20&staffId=2", nil, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var body struct {
			Slots []models.TimeSlot `json:"slots"`
		}
		require.NoError(t, json.Unmarshal(data, &body))
		require.Len(t, body.Slots, 18)
		assert.False(t, body.Slots[0].Available, "09:00 is booked")
		assert.False(t, body.Slots[1].Available, "09:30 overlaps the 60 minute booking")
		assert.True(t, body.Slots[3].Available, "10:30")
	})
}

func TestPreselectedService(t *testing.T) {
	a := newTestAPI(t, openAPI())

	view := a.wizard(t, http.MethodPost, "/api/v1/wizard?service=1", nil, http.StatusCreated)
	assert.Equal(t, wizard.StepSelectingDateTime, view.Step)
	assert.Equal(t, "1", view.Draft.ServiceID)

	view = a.wizard(t, http.MethodPost, "/api/v1/wizard/"+view.SessionID+"/back", nil, http.StatusOK)
	assert.Equal(t, wizard.StepSelectingService, view.Step)
	assert.Equal(t, "1", view.Draft.ServiceID)
}

func walkToContact(t *testing.T, a *testAPI) string {
	t.Helper()
	view := a.wizard(t, http.MethodPost, "/api/v1/wizard?service=3", nil, http.StatusCreated)
	base := "/api/v1/wizard/" + view.SessionID
	a.wizard(t, http.MethodPost, base+"/staff", staffRequest{StaffID: "1"}, http.StatusOK)
	a.wizard(t, http.MethodPost, base+"/date", dateRequest{Date: "2026-10-21"}, http.StatusOK)
	a.wizard(t, http.MethodPost, base+"/time", timeRequest{Time: "15:00"}, http.StatusOK)
	a.wizard(t, http.MethodPost, base+"/continue", nil, http.StatusOK)
	return base
}

func TestContactValidation(t *testing.T) {
	a := newTestAPI(t, openAPI())
	base := walkToContact(t, a)

	form := validContact()
	form.Email = "not-an-email"
	form.Consent = false
	resp, data := a.do(t, http.MethodPost, base+"/contact", form, nil)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	var body errorResponse
	require.NoError(t, json.Unmarshal(data, &body))
	assert.Equal(t, msgValidation, body.Error)
	assert.Contains(t, body.FieldErrors, "email")
	assert.Contains(t, body.FieldErrors, "consent")
	require.NotNil(t, body.Wizard)
	assert.Equal(t, "not-an-email", body.Wizard.Draft.Email)

	view := a.wizard(t, http.MethodPost, base+"/contact", validContact(), http.StatusCreated)
	assert.Equal(t, wizard.StepConfirmed, view.Step)
}

func TestWizardErrors(t *testing.T) {
	a := newTestAPI(t, openAPI())
	view := a.wizard(t, http.MethodPost, "/api/v1/wizard", nil, http.StatusCreated)
	base := "/api/v1/wizard/" + view.SessionID

	tests := []struct {
		name   string
		path   string
		body   any
		status int
		msg    string
	}{
		{"UnknownSession", "/api/v1/wizard/missing/back", nil, http.StatusNotFound, msgSessionNotFound},
		{"UnknownService", base + "/service", serviceRequest{ServiceID: "99"}, http.StatusBadRequest, msgUnknownService},
		{"WrongStep", base + "/staff", staffRequest{StaffID: "1"}, http.StatusConflict, msgInvalidTransition},
		{"ContinueTooEarly", base + "/continue", nil, http.StatusConflict, msgInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, data := a.do(t, http.MethodPost, tt.path, tt.body, nil)
			assert.Equal(t, tt.status, resp.StatusCode)
			var body errorResponse
			require.NoError(t, json.Unmarshal(data, &body))
			assert.Equal(t, tt.msg, body.Error)
		})
	}

	a.wizard(t, http.MethodPost, base+"/service", serviceRequest{ServiceID: "1"}, http.StatusOK)

	t.Run("DateOutsideWindow", func(t *testing.T) {
		resp, _ := a.do(t, http.MethodPost, base+"/date", dateRequest{Date: "2026-12-24"}, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("BlockedTime", func(t *testing.T) {
		a.wizard(t, http.MethodPost, base+"/staff", staffRequest{StaffID: "1"}, http.StatusOK)
		a.wizard(t, http.MethodPost, base+"/date", dateRequest{Date: "2026-10-20"}, http.StatusOK)
		resp, _ := a.do(t, http.MethodPost, base+"/time", timeRequest{Time: "10:00"}, nil)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("InvalidBody", func(t *testing.T) {
		resp, _ := a.do(t, http.MethodPost, base+"/time", map[string]string{"unknown": "x"}, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("Delete", func(t *testing.T) {
		resp, _ := a.do(t, http.MethodDelete, base, nil, nil)
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
		resp, _ = a.do(t, http.MethodGet, base, nil, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestCatalogEndpoints(t *testing.T) {
	a := newTestAPI(t, openAPI())

	resp, data := a.do(t, http.MethodGet, "/api/v1/catalog/services", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(data), "Manikúra")

	resp, data = a.do(t, http.MethodGet, "/api/v1/catalog/staff", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(data), "Petra Kováčová")

	resp, data = a.do(t, http.MethodGet, "/api/v1/catalog/dates", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var dates struct {
		Dates []wizard.DateCell `json:"dates"`
	}
	require.NoError(t, json.Unmarshal(data, &dates))
	require.Len(t, dates.Dates, 14)
	assert.True(t, dates.Dates[0].Today)

	resp, _ = a.do(t, http.MethodGet, "/api/v1/slots?date=2026-10-20", nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = a.do(t, http.MethodGet, "/api/v1/slots?date=20.10.2026&staffId=1", nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, data = a.do(t, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(data))
	assert.NotEmpty(t, resp.Header.Get(requestIDHeader))
}

func TestRequestIDPropagated(t *testing.T) {
	a := newTestAPI(t, openAPI())
	resp, _ := a.do(t, http.MethodGet, "/healthz", nil, map[string]string{requestIDHeader: "abc-123"})
	assert.Equal(t, "abc-123", resp.Header.Get(requestIDHeader))
}

func securedAPI() config.APIConfig {
	cfg := openAPI()
	cfg.Auth = config.APIAuthConfig{
		Enabled: true,
		APIKeys: []config.APIClientKey{
			{Key: "reader", Extra: "s1", Permissions: []string{permReadBookings}},
			{Key: "admin", Extra: "s2"},
		},
	}
	return cfg
}

func TestAdminAuth(t *testing.T) {
	a := newTestAPI(t, securedAPI())

	tests := []struct {
		name    string
		path    string
		headers map[string]string
		status  int
	}{
		{"MissingHeaders", "/api/v1/admin/bookings", nil, http.StatusUnauthorized},
		{"InvalidKey", "/api/v1/admin/bookings", map[string]string{"X-API-Key": "nope", "X-API-Extra": "s1"}, http.StatusUnauthorized},
		{"InvalidExtra", "/api/v1/admin/bookings", map[string]string{"X-API-Key": "reader", "X-API-Extra": "bad"}, http.StatusUnauthorized},
		{"Reader", "/api/v1/admin/bookings", map[string]string{"X-API-Key": "reader", "X-API-Extra": "s1"}, http.StatusOK},
		{"ReaderCannotExport", "/api/v1/admin/bookings/export.xlsx", map[string]string{"X-API-Key": "reader", "X-API-Extra": "s1"}, http.StatusForbidden},
		{"AdminAllowAll", "/api/v1/admin/bookings/export.xlsx", map[string]string{"X-API-Key": "admin", "X-API-Extra": "s2"}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := a.do(t, http.MethodGet, tt.path, nil, tt.headers)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}

	// public wizard routes need no key
	resp, _ := a.do(t, http.MethodPost, "/api/v1/wizard", nil, nil)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestAdminBookingsAndExport(t *testing.T) {
	a := newTestAPI(t, openAPI())
	base := walkToContact(t, a)
	a.wizard(t, http.MethodPost, base+"/contact", validContact(), http.StatusCreated)

	resp, data := a.do(t, http.MethodGet, "/api/v1/admin/bookings?from=2026-10-21&to=2026-10-21&staffId=1", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list struct {
		Bookings []models.Booking `json:"bookings"`
	}
	require.NoError(t, json.Unmarshal(data, &list))
	require.Len(t, list.Bookings, 1)
	assert.Equal(t, "2026-10-21T15:00:00", list.Bookings[0].DateTime)

	resp, data = a.do(t, http.MethodGet, "/api/v1/admin/bookings?from=2026-10-22", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"bookings":[]}`, string(data))

	resp, _ = a.do(t, http.MethodGet, "/api/v1/admin/bookings?from=yesterday", nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, data = a.do(t, http.MethodGet, "/api/v1/admin/bookings/export.xlsx?from=2026-10-19&to=2026-10-25", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, export.ContentType, resp.Header.Get("Content-Type"))
	assert.True(t, strings.Contains(resp.Header.Get("Content-Disposition"), "rezervacie_2026-10-19_2026-10-25.xlsx"))

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(export.BookingsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Petra Kováčová", rows[1][5])
}

func TestRateLimit(t *testing.T) {
	cfg := openAPI()
	cfg.RateLimit = config.APIRateLimitConfig{RPS: 0.001, Burst: 2}
	a := newTestAPI(t, cfg)

	for i := 0; i < 2; i++ {
		resp, _ := a.do(t, http.MethodGet, "/api/v1/catalog/staff", nil, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	resp, _ := a.do(t, http.MethodGet, "/api/v1/catalog/staff", nil, nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	// health is outside the limited subrouter
	resp, _ = a.do(t, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNotFoundAndMethod(t *testing.T) {
	a := newTestAPI(t, openAPI())

	resp, _ := a.do(t, http.MethodGet, "/nope", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = a.do(t, http.MethodPut, "/api/v1/wizard", nil, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestErrorStatusForSlotRuleDate(t *testing.T) {
	rule, err := slots.NewRuleProvider(slots.DefaultRuleConfig(), fixedClock{now: monday})
	require.NoError(t, err)

	_, err = rule.GetSlots(context.Background(), "20.10.2026", "1")
	require.Error(t, err)

	status, message := errorStatus(err)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, msgInvalidDate, message)
}
