package bot

import (
	"fmt"
	"strings"

	"rezervacia/internal/models"
	"rezervacia/internal/wizard"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	cbService  = "svc:"
	cbStaff    = "staff:"
	cbDate     = "date:"
	cbTime     = "time:"
	cbBack     = "back"
	cbContinue = "continue"
	cbRetry    = "retry"
	cbConsent  = "consent"
	cbSubmit   = "submit"
	cbNew      = "new"
	cbNoop     = "noop"

	datesPerRow  = 7
	slotsPerRow  = 4
	selectedMark = "✓ "
)

func formatPrice(p float64) string {
	return strings.Replace(fmt.Sprintf("%.2f €", p), ".", ",", 1)
}

func servicesKeyboard(services []models.Service) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(services))
	for _, s := range services {
		label := fmt.Sprintf("%s · %d min · %s", s.Name, s.Duration, formatPrice(s.EffectivePrice()))
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, cbService+s.ID),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// dateTimeKeyboard shows staff, the date window and, once loaded, the slots.
func dateTimeKeyboard(w *wizard.Wizard, dates []wizard.DateCell) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton

	staffRow := make([]tgbotapi.InlineKeyboardButton, 0, len(w.Staff))
	for _, s := range w.Staff {
		label := s.Name
		if s.ID == w.Draft.StaffID {
			label = selectedMark + label
		}
		staffRow = append(staffRow, tgbotapi.NewInlineKeyboardButtonData(label, cbStaff+s.ID))
	}
	if len(staffRow) > 0 {
		rows = append(rows, staffRow)
	}

	rows = append(rows, chunk(dateButtons(dates, w.Draft.Date), datesPerRow)...)

	if w.ReadyForSlots() && !w.SlotsLoading {
		rows = append(rows, chunk(slotButtons(w.Slots, w.Draft.Time), slotsPerRow)...)
	}

	nav := []tgbotapi.InlineKeyboardButton{tgbotapi.NewInlineKeyboardButtonData("« Späť", cbBack)}
	if w.CanContinue() {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("Pokračovať »", cbContinue))
	}
	rows = append(rows, nav)

	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func dateButtons(dates []wizard.DateCell, selected string) []tgbotapi.InlineKeyboardButton {
	buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(dates))
	for _, d := range dates {
		label := d.Weekday + " " + d.Label
		if d.Date == selected {
			label = selectedMark + label
		}
		buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(label, cbDate+d.Date))
	}
	return buttons
}

// slotButtons marks unavailable times with a dot; pressing them does nothing.
func slotButtons(slots []models.TimeSlot, selected string) []tgbotapi.InlineKeyboardButton {
	buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(slots))
	for _, s := range slots {
		if !s.Available {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData("· "+s.Time, cbNoop))
			continue
		}
		label := s.Time
		if s.Time == selected {
			label = selectedMark + label
		}
		buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(label, cbTime+s.Time))
	}
	return buttons
}

func chunk(buttons []tgbotapi.InlineKeyboardButton, size int) [][]tgbotapi.InlineKeyboardButton {
	var rows [][]tgbotapi.InlineKeyboardButton
	for len(buttons) > 0 {
		n := size
		if len(buttons) < n {
			n = len(buttons)
		}
		rows = append(rows, buttons[:n])
		buttons = buttons[n:]
	}
	return rows
}

func backKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("« Späť", cbBack),
	))
}

func consentKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Súhlasím so spracovaním údajov a odosielam", cbConsent),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("« Späť", cbBack),
		),
	)
}

func resubmitKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("Skúsiť znova", cbSubmit),
		tgbotapi.NewInlineKeyboardButtonData("« Späť", cbBack),
	))
}

func retryKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("Skúsiť znova", cbRetry),
	))
}

func newBookingKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("Nová rezervácia", cbNew),
	))
}
