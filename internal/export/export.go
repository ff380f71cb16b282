// Package export renders bookings as an XLSX workbook for the back office.
package export

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"rezervacia/internal/domain"
	"rezervacia/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

const (
	BookingsSheet = "Rezervácie"
	OverviewSheet = "Prehľad"

	// maxOverviewDays caps the date columns of the overview sheet.
	maxOverviewDays = 62

	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var bookingHeaders = []interface{}{
	"ID", "Dátum", "Čas", "Služba", "Trvanie (min)", "Zamestnanec",
	"Klient", "E-mail", "Telefón", "Poznámka", "Stav", "Vytvorené",
}

var statusLabels = map[string]string{
	models.StatusPending:   "Čaká",
	models.StatusConfirmed: "Potvrdená",
	models.StatusCancelled: "Zrušená",
}

type Exporter struct {
	bookings domain.BookingReader
	catalog  domain.CatalogReader
	dir      string
	logger   *zerolog.Logger
}

func NewExporter(bookings domain.BookingReader, catalog domain.CatalogReader, dir string, logger *zerolog.Logger) *Exporter {
	return &Exporter{
		bookings: bookings,
		catalog:  catalog,
		dir:      dir,
		logger:   logger,
	}
}

// Write streams the workbook for filter to w.
func (e *Exporter) Write(ctx context.Context, filter models.BookingFilter, w io.Writer) error {
	f, err := e.build(ctx, filter)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return fmt.Errorf("error writing workbook: %w", err)
	}
	return nil
}

// SaveFile writes the workbook into the export directory and returns its path.
func (e *Exporter) SaveFile(ctx context.Context, filter models.BookingFilter) (string, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}

	f, err := e.build(ctx, filter)
	if err != nil {
		return "", err
	}
	defer f.Close()

	filePath := filepath.Join(e.dir, FileName(filter))
	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("error saving file: %w", err)
	}

	e.logger.Info().Str("file_path", filePath).Msg("Excel file created")
	return filePath, nil
}

// FileName names an export after its date range.
func FileName(filter models.BookingFilter) string {
	from, to := filter.From, filter.To
	if from == "" {
		from = "start"
	}
	if to == "" {
		to = "end"
	}
	return fmt.Sprintf("rezervacie_%s_%s.xlsx", from, to)
}

func (e *Exporter) build(ctx context.Context, filter models.BookingFilter) (*excelize.File, error) {
	bookings, err := e.bookings.ListBookings(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("error getting bookings: %w", err)
	}
	services, err := e.catalog.ListServices(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting services: %w", err)
	}
	staff, err := e.catalog.ListStaff(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting staff: %w", err)
	}

	serviceNames := make(map[string]string, len(services))
	for _, s := range services {
		serviceNames[s.ID] = s.Name
	}
	staffNames := make(map[string]string, len(staff))
	for _, s := range staff {
		staffNames[s.ID] = s.Name
	}

	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", BookingsSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("error creating sheet: %w", err)
	}

	if err := writeBookings(f, bookings, serviceNames, staffNames); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeOverview(f, filter, bookings, staff); err != nil {
		f.Close()
		return nil, err
	}
	f.SetActiveSheet(0)
	return f, nil
}

func writeBookings(f *excelize.File, bookings []models.Booking, serviceNames, staffNames map[string]string) error {
	if err := f.SetSheetRow(BookingsSheet, "A1", &bookingHeaders); err != nil {
		return fmt.Errorf("error writing headers: %w", err)
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	lastCol, _ := excelize.ColumnNumberToName(len(bookingHeaders))
	_ = f.SetCellStyle(BookingsSheet, "A1", lastCol+"1", headerStyle)

	cancelledStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Color: "#999999", Strike: true},
	})

	for i, b := range bookings {
		row := i + 2
		cell, _ := excelize.CoordinatesToCellName(1, row)
		values := []interface{}{
			b.ID,
			displayDate(b.Date()),
			b.Time(),
			nameOr(serviceNames, b.ServiceID),
			b.Duration,
			nameOr(staffNames, b.StaffID),
			b.ClientName,
			b.ClientEmail,
			b.ClientPhone,
			b.Notes,
			nameOr(statusLabels, b.Status),
			b.CreatedAt.Format("02.01.2006 15:04"),
		}
		if err := f.SetSheetRow(BookingsSheet, cell, &values); err != nil {
			return fmt.Errorf("error writing booking %d: %w", b.ID, err)
		}
		if b.Status == models.StatusCancelled {
			end, _ := excelize.CoordinatesToCellName(len(values), row)
			_ = f.SetCellStyle(BookingsSheet, cell, end, cancelledStyle)
		}
	}

	_ = f.SetColWidth(BookingsSheet, "A", "C", 12)
	_ = f.SetColWidth(BookingsSheet, "D", lastCol, 22)
	_ = f.SetPanes(BookingsSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
	return nil
}

// writeOverview adds a staff x date grid with the number of active bookings.
func writeOverview(f *excelize.File, filter models.BookingFilter, bookings []models.Booking, staff []models.StaffMember) error {
	dates := overviewDates(filter, bookings)

	if _, err := f.NewSheet(OverviewSheet); err != nil {
		return fmt.Errorf("error creating sheet: %w", err)
	}

	title := "Obdobie: -"
	if len(dates) > 0 {
		title = fmt.Sprintf("Obdobie: %s - %s", displayDate(dates[0]), displayDate(dates[len(dates)-1]))
	}
	_ = f.SetCellValue(OverviewSheet, "A1", title)
	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(OverviewSheet, "A1", "A1", titleStyle)
	if len(dates) > 0 {
		lastCol, _ := excelize.ColumnNumberToName(len(dates) + 1)
		_ = f.MergeCell(OverviewSheet, "A1", lastCol+"1")
	}

	dateStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	staffStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E2EFDA"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	busyStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#FCE4D6"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})

	columns := make(map[string]int, len(dates))
	for i, d := range dates {
		col := i + 2
		columns[d] = col
		cell, _ := excelize.CoordinatesToCellName(col, 2)
		_ = f.SetCellValue(OverviewSheet, cell, displayDate(d)[:6])
		_ = f.SetCellStyle(OverviewSheet, cell, cell, dateStyle)
	}

	counts := make(map[string]map[string]int)
	for _, b := range bookings {
		if b.Status == models.StatusCancelled {
			continue
		}
		if counts[b.StaffID] == nil {
			counts[b.StaffID] = make(map[string]int)
		}
		counts[b.StaffID][b.Date()]++
	}

	for i, s := range staff {
		row := i + 3
		cell, _ := excelize.CoordinatesToCellName(1, row)
		_ = f.SetCellValue(OverviewSheet, cell, s.Name)
		_ = f.SetCellStyle(OverviewSheet, cell, cell, staffStyle)

		for date, n := range counts[s.ID] {
			col, ok := columns[date]
			if !ok {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(OverviewSheet, cell, n)
			_ = f.SetCellStyle(OverviewSheet, cell, cell, busyStyle)
		}
	}

	_ = f.SetColWidth(OverviewSheet, "A", "A", 25)
	return nil
}

// overviewDates lists the grid dates: the filter range when set, otherwise
// the span of the bookings.
func overviewDates(filter models.BookingFilter, bookings []models.Booking) []string {
	from, to := filter.From, filter.To
	if from == "" || to == "" {
		var seen []string
		for _, b := range bookings {
			seen = append(seen, b.Date())
		}
		sort.Strings(seen)
		if len(seen) == 0 {
			return nil
		}
		if from == "" {
			from = seen[0]
		}
		if to == "" {
			to = seen[len(seen)-1]
		}
	}

	start, err := time.Parse(models.DateLayout, from)
	if err != nil {
		return nil
	}
	end, err := time.Parse(models.DateLayout, to)
	if err != nil {
		return nil
	}

	var dates []string
	for d := start; !d.After(end) && len(dates) < maxOverviewDays; d = d.AddDate(0, 0, 1) {
		dates = append(dates, d.Format(models.DateLayout))
	}
	return dates
}

func displayDate(date string) string {
	d, err := time.Parse(models.DateLayout, date)
	if err != nil {
		return date
	}
	return d.Format("02.01.2006")
}

func nameOr(names map[string]string, key string) string {
	if name, ok := names[key]; ok {
		return name
	}
	return key
}
