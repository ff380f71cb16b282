package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"rezervacia/internal/service"
	"rezervacia/internal/wizard"
)

const maxBodyBytes = 64 << 10

// Messages shown to the client.
const (
	msgSessionNotFound   = "Rezervácia neexistuje alebo jej platnosť vypršala. Začnite znova."
	msgValidation        = "Skontrolujte zadané údaje."
	msgSubmitInProgress  = "Rezervácia sa práve odosiela."
	msgInvalidTransition = "Tento krok teraz nie je možný."
	msgStepIncomplete    = "Najprv dokončite aktuálny krok."
	msgUnknownService    = "Vybraná služba neexistuje."
	msgUnknownStaff      = "Vybraný zamestnanec neexistuje."
	msgInvalidDate       = "Neplatný dátum, očakáva sa YYYY-MM-DD."
	msgDateOutOfWindow   = "Tento dátum nie je možné rezervovať."
	msgSlotUnavailable   = "Tento čas už nie je voľný."
	msgTooManySubmits    = "Príliš veľa pokusov o odoslanie. Skúste to o chvíľu."
	msgRateLimited       = "Príliš veľa požiadaviek."
	msgInvalidBody       = "Neplatné telo požiadavky."
	msgInternal          = "Interná chyba servera."
)

type errorResponse struct {
	Error       string            `json:"error"`
	FieldErrors map[string]string `json:"fieldErrors,omitempty"`
	Wizard      *WizardView       `json:"wizard,omitempty"`
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, errorResponse{Error: message})
}

// errorStatus maps service and wizard errors to a status code and message.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		return http.StatusNotFound, msgSessionNotFound
	case errors.Is(err, wizard.ErrValidation):
		return http.StatusUnprocessableEntity, msgValidation
	case errors.Is(err, wizard.ErrSubmitInProgress):
		return http.StatusConflict, msgSubmitInProgress
	case errors.Is(err, wizard.ErrInvalidTransition):
		return http.StatusConflict, msgInvalidTransition
	case errors.Is(err, wizard.ErrStepIncomplete):
		return http.StatusBadRequest, msgStepIncomplete
	case errors.Is(err, wizard.ErrUnknownService):
		return http.StatusBadRequest, msgUnknownService
	case errors.Is(err, wizard.ErrUnknownStaff):
		return http.StatusBadRequest, msgUnknownStaff
	case errors.Is(err, wizard.ErrInvalidDate):
		return http.StatusBadRequest, msgInvalidDate
	case errors.Is(err, wizard.ErrDateOutOfWindow):
		return http.StatusBadRequest, msgDateOutOfWindow
	case errors.Is(err, wizard.ErrSlotUnavailable):
		return http.StatusConflict, msgSlotUnavailable
	case errors.Is(err, service.ErrTooManySubmissions):
		return http.StatusTooManyRequests, msgTooManySubmits
	case errors.Is(err, service.ErrSubmissionFailed):
		return http.StatusBadGateway, service.MsgSubmitFailed
	default:
		return http.StatusInternalServerError, msgInternal
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}
