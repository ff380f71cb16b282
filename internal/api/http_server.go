package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"rezervacia/internal/config"
	"rezervacia/internal/domain"
	"rezervacia/internal/models"
	"rezervacia/internal/wizard"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// WizardService is the part of the wizard service the HTTP API drives.
type WizardService interface {
	Start(ctx context.Context, sessionID, preselectedServiceID string) (*wizard.Wizard, error)
	Get(ctx context.Context, sessionID string) (*wizard.Wizard, error)
	Delete(ctx context.Context, sessionID string) error
	Retry(ctx context.Context, sessionID string) (*wizard.Wizard, error)
	SelectService(ctx context.Context, sessionID, serviceID string) (*wizard.Wizard, error)
	Back(ctx context.Context, sessionID string) (*wizard.Wizard, error)
	PickStaff(ctx context.Context, sessionID, staffID string) (*wizard.Wizard, error)
	PickDate(ctx context.Context, sessionID, date string) (*wizard.Wizard, error)
	RefreshSlots(ctx context.Context, sessionID string) (*wizard.Wizard, error)
	PickTime(ctx context.Context, sessionID, t string) (*wizard.Wizard, error)
	Continue(ctx context.Context, sessionID string) (*wizard.Wizard, error)
	Submit(ctx context.Context, sessionID string, form wizard.ContactForm, channel string) (*wizard.Wizard, error)
	Services(ctx context.Context) ([]models.Service, error)
	Staff(ctx context.Context) ([]models.StaffMember, error)
	Slots(ctx context.Context, date, staffID string) ([]models.TimeSlot, error)
	DateWindow() []wizard.DateCell
}

// BookingExporter writes a bookings workbook.
type BookingExporter interface {
	Write(ctx context.Context, filter models.BookingFilter, w io.Writer) error
}

// HTTPServer exposes the booking wizard and the back-office endpoints.
type HTTPServer struct {
	cfg      config.APIConfig
	wizard   WizardService
	bookings domain.BookingReader
	exporter BookingExporter
	clock    domain.TimeProvider
	auth     *HTTPAuth
	limiter  *rateLimiter
	server   *http.Server
	logger   *zerolog.Logger
}

func NewHTTPServer(
	cfg config.APIConfig,
	wizardService WizardService,
	bookings domain.BookingReader,
	exporter BookingExporter,
	clock domain.TimeProvider,
	logger *zerolog.Logger,
) *HTTPServer {
	srv := &HTTPServer{
		cfg:      cfg,
		wizard:   wizardService,
		bookings: bookings,
		exporter: exporter,
		clock:    clock,
		auth:     NewHTTPAuth(cfg.Auth),
		limiter:  newRateLimiter(cfg.RateLimit),
		logger:   logger,
	}

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	return srv
}

// Router builds the route table.
func (s *HTTPServer) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(s.recoverMiddleware, s.loggingMiddleware)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(s.limiter.Middleware)

	api.HandleFunc("/wizard", s.handleStart).Methods(http.MethodPost)
	api.HandleFunc("/wizard/{id}", s.handleGet).Methods(http.MethodGet)
	api.HandleFunc("/wizard/{id}", s.handleDelete).Methods(http.MethodDelete)
	api.HandleFunc("/wizard/{id}/retry", s.handleRetry).Methods(http.MethodPost)
	api.HandleFunc("/wizard/{id}/service", s.handleSelectService).Methods(http.MethodPost)
	api.HandleFunc("/wizard/{id}/back", s.handleBack).Methods(http.MethodPost)
	api.HandleFunc("/wizard/{id}/staff", s.handlePickStaff).Methods(http.MethodPost)
	api.HandleFunc("/wizard/{id}/date", s.handlePickDate).Methods(http.MethodPost)
	api.HandleFunc("/wizard/{id}/slots/refresh", s.handleRefreshSlots).Methods(http.MethodPost)
	api.HandleFunc("/wizard/{id}/time", s.handlePickTime).Methods(http.MethodPost)
	api.HandleFunc("/wizard/{id}/continue", s.handleContinue).Methods(http.MethodPost)
	api.HandleFunc("/wizard/{id}/contact", s.handleSubmit).Methods(http.MethodPost)

	api.HandleFunc("/catalog/services", s.handleServices).Methods(http.MethodGet)
	api.HandleFunc("/catalog/staff", s.handleStaff).Methods(http.MethodGet)
	api.HandleFunc("/catalog/dates", s.handleDates).Methods(http.MethodGet)
	api.HandleFunc("/slots", s.handleSlots).Methods(http.MethodGet)

	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(s.auth.Middleware)
	admin.HandleFunc("/bookings", s.handleListBookings).Methods(http.MethodGet)
	admin.HandleFunc("/bookings/export.xlsx", s.handleExportBookings).Methods(http.MethodGet)

	return r
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return errors.New("http server is not initialized")
	}
	if !s.cfg.Auth.Enabled {
		s.logger.Warn().Msg("admin endpoints are not protected: api.auth.enabled is false")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
