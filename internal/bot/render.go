package bot

import (
	"fmt"
	"html"
	"strings"

	"rezervacia/internal/wizard"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// renderWizard builds the message text and keyboard for the wizard's step.
func renderWizard(w *wizard.Wizard, dates []wizard.DateCell) (string, *tgbotapi.InlineKeyboardMarkup) {
	var kb tgbotapi.InlineKeyboardMarkup

	switch w.Step {
	case wizard.StepLoading:
		return "Načítavam služby…", nil

	case wizard.StepErrored:
		kb = retryKeyboard()
		return html.EscapeString(w.LastError), &kb

	case wizard.StepSelectingService:
		kb = servicesKeyboard(w.Services)
		return "<b>Krok 1/4: Vyberte službu</b>", &kb

	case wizard.StepSelectingDateTime:
		kb = dateTimeKeyboard(w, dates)
		return dateTimeText(w), &kb

	case wizard.StepEnteringContact:
		kb = backKeyboard()
		return "<b>Krok 3/4: Kontaktné údaje</b>\n" + summary(w), &kb

	case wizard.StepConfirmed:
		kb = newBookingKeyboard()
		return confirmationText(w), &kb
	}
	return msgInternal, nil
}

func dateTimeText(w *wizard.Wizard) string {
	var sb strings.Builder
	sb.WriteString("<b>Krok 2/4: Termín</b>\n")
	if s, ok := w.Service(w.Draft.ServiceID); ok {
		fmt.Fprintf(&sb, "Služba: %s (%d min)\n", html.EscapeString(s.Name), s.Duration)
	}

	staff := "vyberte"
	if m, ok := w.StaffMember(w.Draft.StaffID); ok {
		staff = html.EscapeString(m.Name)
	}
	fmt.Fprintf(&sb, "Pracovníčka: %s\n", staff)

	date := "vyberte"
	if w.Draft.Date != "" {
		date = w.Draft.Date
	}
	fmt.Fprintf(&sb, "Dátum: %s\n", date)

	switch {
	case w.SlotsLoading:
		sb.WriteString("Načítavam voľné termíny…\n")
	case w.LastError != "":
		sb.WriteString(html.EscapeString(w.LastError) + "\n")
	case w.ReadyForSlots() && w.Draft.Time == "":
		sb.WriteString("Vyberte čas.\n")
	case w.Draft.Time != "":
		fmt.Fprintf(&sb, "Čas: %s\n", w.Draft.Time)
	}
	return sb.String()
}

func summary(w *wizard.Wizard) string {
	var sb strings.Builder
	if s, ok := w.Service(w.Draft.ServiceID); ok {
		fmt.Fprintf(&sb, "Služba: %s, %s\n", html.EscapeString(s.Name), formatPrice(s.EffectivePrice()))
	}
	if m, ok := w.StaffMember(w.Draft.StaffID); ok {
		fmt.Fprintf(&sb, "Pracovníčka: %s\n", html.EscapeString(m.Name))
	}
	if when, err := wizard.FormatDateTimeSK(w.Draft.Date, w.Draft.Time); err == nil {
		fmt.Fprintf(&sb, "Termín: %s\n", when)
	}
	return sb.String()
}

func confirmationText(w *wizard.Wizard) string {
	c := w.Confirmation
	if c == nil {
		return "<b>Rezervácia potvrdená!</b>"
	}
	return fmt.Sprintf(
		"<b>Rezervácia potvrdená!</b>\nČíslo rezervácie: %d\n%s u %s\n%s (%d min)\nTešíme sa na vás.",
		c.BookingID,
		html.EscapeString(c.ServiceName),
		html.EscapeString(c.StaffName),
		c.FormattedDateTime,
		c.Duration,
	)
}
