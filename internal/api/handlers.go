package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"rezervacia/internal/export"
	"rezervacia/internal/logging"
	"rezervacia/internal/models"
	"rezervacia/internal/service"
	"rezervacia/internal/wizard"

	"github.com/gorilla/mux"
)

type serviceRequest struct {
	ServiceID string `json:"serviceId"`
}

type staffRequest struct {
	StaffID string `json:"staffId"`
}

type dateRequest struct {
	Date string `json:"date"`
}

type timeRequest struct {
	Time string `json:"time"`
}

func (s *HTTPServer) now() time.Time {
	return s.clock.Now()
}

// respondWizard writes the view of w, or the error mapped to its status.
// Errors that leave a valid session attach its view.
func (s *HTTPServer) respondWizard(w http.ResponseWriter, r *http.Request, wz *wizard.Wizard, err error, okStatus int) {
	if err == nil {
		writeJSON(w, okStatus, newWizardView(wz, s.now()))
		return
	}

	status, message := errorStatus(err)
	if status >= http.StatusInternalServerError && status != http.StatusBadGateway {
		logging.FromContext(r.Context(), s.logger).Error().Err(err).Msg("wizard request failed")
	}

	resp := errorResponse{Error: message}
	if wz != nil {
		resp.Wizard = newWizardView(wz, s.now())
		resp.FieldErrors = wz.FieldErrors
	}
	writeJSON(w, status, resp)
}

func sessionID(r *http.Request) string {
	return mux.Vars(r)["id"]
}

func (s *HTTPServer) handleStart(w http.ResponseWriter, r *http.Request) {
	preselected := strings.TrimSpace(r.URL.Query().Get("service"))
	wz, err := s.wizard.Start(r.Context(), "", preselected)
	s.respondWizard(w, r, wz, err, http.StatusCreated)
}

func (s *HTTPServer) handleGet(w http.ResponseWriter, r *http.Request) {
	wz, err := s.wizard.Get(r.Context(), sessionID(r))
	s.respondWizard(w, r, wz, err, http.StatusOK)
}

func (s *HTTPServer) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.wizard.Delete(r.Context(), sessionID(r)); err != nil {
		s.respondWizard(w, r, nil, err, http.StatusNoContent)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleRetry(w http.ResponseWriter, r *http.Request) {
	wz, err := s.wizard.Retry(r.Context(), sessionID(r))
	s.respondWizard(w, r, wz, err, http.StatusOK)
}

func (s *HTTPServer) handleSelectService(w http.ResponseWriter, r *http.Request) {
	var req serviceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}
	wz, err := s.wizard.SelectService(r.Context(), sessionID(r), strings.TrimSpace(req.ServiceID))
	s.respondWizard(w, r, wz, err, http.StatusOK)
}

func (s *HTTPServer) handleBack(w http.ResponseWriter, r *http.Request) {
	wz, err := s.wizard.Back(r.Context(), sessionID(r))
	s.respondWizard(w, r, wz, err, http.StatusOK)
}

func (s *HTTPServer) handlePickStaff(w http.ResponseWriter, r *http.Request) {
	var req staffRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}
	wz, err := s.wizard.PickStaff(r.Context(), sessionID(r), strings.TrimSpace(req.StaffID))
	s.respondWizard(w, r, wz, err, http.StatusOK)
}

func (s *HTTPServer) handlePickDate(w http.ResponseWriter, r *http.Request) {
	var req dateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}
	wz, err := s.wizard.PickDate(r.Context(), sessionID(r), strings.TrimSpace(req.Date))
	s.respondWizard(w, r, wz, err, http.StatusOK)
}

func (s *HTTPServer) handleRefreshSlots(w http.ResponseWriter, r *http.Request) {
	wz, err := s.wizard.RefreshSlots(r.Context(), sessionID(r))
	s.respondWizard(w, r, wz, err, http.StatusOK)
}

func (s *HTTPServer) handlePickTime(w http.ResponseWriter, r *http.Request) {
	var req timeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}
	wz, err := s.wizard.PickTime(r.Context(), sessionID(r), strings.TrimSpace(req.Time))
	s.respondWizard(w, r, wz, err, http.StatusOK)
}

func (s *HTTPServer) handleContinue(w http.ResponseWriter, r *http.Request) {
	wz, err := s.wizard.Continue(r.Context(), sessionID(r))
	s.respondWizard(w, r, wz, err, http.StatusOK)
}

func (s *HTTPServer) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var form wizard.ContactForm
	if err := decodeJSON(w, r, &form); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}
	wz, err := s.wizard.Submit(r.Context(), sessionID(r), form, service.ChannelWeb)
	s.respondWizard(w, r, wz, err, http.StatusCreated)
}

func (s *HTTPServer) handleServices(w http.ResponseWriter, r *http.Request) {
	services, err := s.wizard.Services(r.Context())
	if err != nil {
		logging.FromContext(r.Context(), s.logger).Error().Err(err).Msg("list services")
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"services": services})
}

func (s *HTTPServer) handleStaff(w http.ResponseWriter, r *http.Request) {
	staff, err := s.wizard.Staff(r.Context())
	if err != nil {
		logging.FromContext(r.Context(), s.logger).Error().Err(err).Msg("list staff")
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"staff": staff})
}

func (s *HTTPServer) handleDates(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"dates": s.wizard.DateWindow()})
}

func (s *HTTPServer) handleSlots(w http.ResponseWriter, r *http.Request) {
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	staffID := strings.TrimSpace(r.URL.Query().Get("staffId"))
	if date == "" || staffID == "" {
		writeError(w, http.StatusBadRequest, "date and staffId are required")
		return
	}
	if _, err := time.Parse(models.DateLayout, date); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidDate)
		return
	}

	slots, err := s.wizard.Slots(r.Context(), date, staffID)
	if err != nil {
		status, message := errorStatus(err)
		if status == http.StatusInternalServerError {
			logging.FromContext(r.Context(), s.logger).Error().Err(err).Msg("get slots")
		}
		writeError(w, status, message)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"date": date, "staffId": staffID, "slots": slots})
}

func parseBookingFilter(r *http.Request) (models.BookingFilter, error) {
	q := r.URL.Query()
	filter := models.BookingFilter{
		From:    strings.TrimSpace(q.Get("from")),
		To:      strings.TrimSpace(q.Get("to")),
		StaffID: strings.TrimSpace(q.Get("staffId")),
		Status:  strings.TrimSpace(q.Get("status")),
	}
	for _, d := range []string{filter.From, filter.To} {
		if d == "" {
			continue
		}
		if _, err := time.Parse(models.DateLayout, d); err != nil {
			return filter, err
		}
	}
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		limit, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return filter, err
		}
		filter.Limit = limit
	}
	return filter, nil
}

func (s *HTTPServer) handleListBookings(w http.ResponseWriter, r *http.Request) {
	filter, err := parseBookingFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid filter")
		return
	}

	bookings, err := s.bookings.ListBookings(r.Context(), filter)
	if err != nil {
		logging.FromContext(r.Context(), s.logger).Error().Err(err).Msg("list bookings")
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}
	if bookings == nil {
		bookings = []models.Booking{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings})
}

func (s *HTTPServer) handleExportBookings(w http.ResponseWriter, r *http.Request) {
	filter, err := parseBookingFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid filter")
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.FileName(filter)+`"`)
	if err := s.exporter.Write(r.Context(), filter, w); err != nil {
		logging.FromContext(r.Context(), s.logger).Error().Err(err).Msg("export bookings")
		w.Header().Del("Content-Disposition")
		writeError(w, http.StatusInternalServerError, msgInternal)
	}
}
