package wizard

import (
	"fmt"
	"time"

	"rezervacia/internal/models"
)

// DateCell is one selectable day of the booking window.
type DateCell struct {
	Date    string `json:"date"`
	Weekday string `json:"weekday"`
	Label   string `json:"label"`
	Today   bool   `json:"today"`
	Weekend bool   `json:"weekend"`
}

var weekdaysSK = [...]string{"nedeľa", "pondelok", "utorok", "streda", "štvrtok", "piatok", "sobota"}

var weekdaysShortSK = [...]string{"Ne", "Po", "Ut", "St", "Št", "Pi", "So"}

// genitive, as used after the day number
var monthsSK = [...]string{
	"januára", "februára", "marca", "apríla", "mája", "júna",
	"júla", "augusta", "septembra", "októbra", "novembra", "decembra",
}

// DateWindow returns days consecutive dates starting with the day of now,
// in now's location.
func DateWindow(now time.Time, days int) []DateCell {
	if days <= 0 {
		days = models.DefaultWindowDays
	}
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	cells := make([]DateCell, 0, days)
	for i := 0; i < days; i++ {
		d := start.AddDate(0, 0, i)
		cells = append(cells, DateCell{
			Date:    d.Format(models.DateLayout),
			Weekday: weekdaysShortSK[d.Weekday()],
			Label:   fmt.Sprintf("%d.%d.", d.Day(), int(d.Month())),
			Today:   i == 0,
			Weekend: IsWeekend(d),
		})
	}
	return cells
}

// InWindow reports whether date (YYYY-MM-DD) is one of the window days.
func InWindow(date string, now time.Time, days int) bool {
	for _, c := range DateWindow(now, days) {
		if c.Date == date {
			return true
		}
	}
	return false
}

func IsWeekend(d time.Time) bool {
	return d.Weekday() == time.Saturday || d.Weekday() == time.Sunday
}

// FormatDateTimeSK renders a date and time as "utorok 20. októbra 2026 o 09:00".
func FormatDateTimeSK(date, clock string) (string, error) {
	d, err := time.Parse(models.DateLayout, date)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidDate, date)
	}
	if _, err := time.Parse(models.TimeLayout, clock); err != nil {
		return "", fmt.Errorf("invalid time %q: %w", clock, err)
	}
	return fmt.Sprintf("%s %d. %s %d o %s",
		weekdaysSK[d.Weekday()], d.Day(), monthsSK[d.Month()-1], d.Year(), clock), nil
}
