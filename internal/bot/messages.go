package bot

import (
	"errors"

	"rezervacia/internal/service"
	"rezervacia/internal/wizard"
)

const (
	msgWelcome = "Dobrý deň! Vitajte v rezervačnom systéme salónu.\n" +
		"Novú rezerváciu začnete príkazom /book."
	msgHelp = "/book - nová rezervácia\n" +
		"/book &lt;id služby&gt; - rezervácia konkrétnej služby\n" +
		"/cancel - zrušiť rozpracovanú rezerváciu\n" +
		"/help - nápoveda"
	msgUnknownCommand = "Neznámy príkaz. Pozrite /help."
	msgNoSession      = "Rezervácia nebola nájdená. Začnite znova príkazom /book."
	msgCancelled      = "Rozpracovaná rezervácia bola zrušená."
	msgRateLimited    = "Posielate správy príliš často. Chvíľu počkajte."
	msgTooMany        = "Príliš veľa pokusov o odoslanie. Skúste to o chvíľu."
	msgUseButtons     = "Použite tlačidlá v správe vyššie alebo začnite znova príkazom /book."
	msgInternal       = "Nastala chyba. Skúste to znova."
	msgSlotTaken      = "Tento čas už nie je voľný."
	msgOutOfWindow    = "Tento dátum nie je možné rezervovať."
	msgStepIncomplete = "Najprv dokončite výber."
	msgSubmitting     = "Rezervácia sa práve odosiela."
)

// errorText maps a wizard service error to what the user sees.
func errorText(err error) string {
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		return msgNoSession
	case errors.Is(err, service.ErrTooManySubmissions):
		return msgTooMany
	case errors.Is(err, service.ErrSubmissionFailed):
		return service.MsgSubmitFailed
	case errors.Is(err, wizard.ErrSlotUnavailable):
		return msgSlotTaken
	case errors.Is(err, wizard.ErrDateOutOfWindow), errors.Is(err, wizard.ErrInvalidDate):
		return msgOutOfWindow
	case errors.Is(err, wizard.ErrStepIncomplete):
		return msgStepIncomplete
	case errors.Is(err, wizard.ErrSubmitInProgress):
		return msgSubmitting
	default:
		return msgInternal
	}
}
