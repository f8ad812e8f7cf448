package api

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"venuebook/internal/config"
	"venuebook/internal/domain"
	"venuebook/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

const exportSheet = "Бронирования"

var exportHeaders = []string{
	"ID", "Площадка", "Адрес", "Дата", "Начало", "Окончание", "Режим",
	"Заявитель", "Контакт", "Телефон", "Причина", "Статус", "Создано",
}

// Exporter writes bookings of a date range into an XLSX file.
type Exporter struct {
	dir      string
	bookings domain.BookingService
	logger   *zerolog.Logger
}

func NewExporter(cfg config.ExportConfig, bookings domain.BookingService, logger *zerolog.Logger) *Exporter {
	dir := cfg.Path
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "venuebook-exports")
	}
	return &Exporter{dir: dir, bookings: bookings, logger: logger}
}

// Export создает Excel файл с бронированиями за период и возвращает путь к нему
func (e *Exporter) Export(ctx context.Context, start, end string) (string, error) {
	bookings, err := e.bookings.GetBookingsByDateRange(ctx, start, end)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}

	f, err := buildWorkbook(bookings, start, end)
	if err != nil {
		return "", err
	}
	defer f.Close()

	fileName := fmt.Sprintf("bookings_%s_to_%s_%s.xlsx", start, end, time.Now().Format("150405.000"))
	filePath := filepath.Join(e.dir, fileName)
	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("error saving file: %w", err)
	}

	e.logger.Info().Str("file_path", filePath).Int("bookings", len(bookings)).Msg("Excel file created")
	return filePath, nil
}

func buildWorkbook(bookings []*models.Booking, start, end string) (*excelize.File, error) {
	f := excelize.NewFile()

	index, err := f.NewSheet(exportSheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	// Заголовок периода
	_ = f.SetCellValue(exportSheet, "A1", fmt.Sprintf("Период: %s - %s", start, end))
	lastCol, _ := excelize.ColumnNumberToName(len(exportHeaders))
	_ = f.MergeCell(exportSheet, "A1", lastCol+"1")
	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(exportSheet, "A1", "A1", titleStyle)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	for i, header := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		_ = f.SetCellValue(exportSheet, cell, header)
	}
	_ = f.SetCellStyle(exportSheet, "A2", lastCol+"2", headerStyle)

	styles, err := statusStyles(f)
	if err != nil {
		f.Close()
		return nil, err
	}

	for i, b := range bookings {
		row := i + 3
		values := []any{
			b.ID, b.VenueName, b.VenueLocation, b.Date, b.StartTime, b.EndTime, b.Mode(),
			b.RequesterID, b.ContactName, b.ContactPhone, b.Reason, b.Status,
			b.CreatedAt.Format("02.01.2006 15:04"),
		}
		first, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(exportSheet, first, &values); err != nil {
			f.Close()
			return nil, fmt.Errorf("error writing row %d: %w", row, err)
		}
		if style, ok := styles[b.Status]; ok {
			statusCell, _ := excelize.CoordinatesToCellName(len(exportHeaders)-1, row)
			_ = f.SetCellStyle(exportSheet, statusCell, statusCell, style)
		}
	}

	// Настраиваем ширину колонок
	_ = f.SetColWidth(exportSheet, "A", "A", 8)
	_ = f.SetColWidth(exportSheet, "B", "C", 25)
	_ = f.SetColWidth(exportSheet, "D", "G", 12)
	_ = f.SetColWidth(exportSheet, "H", "K", 20)
	_ = f.SetColWidth(exportSheet, "L", "M", 16)

	return f, nil
}

// statusStyles: зеленый для одобренных, желтый для ожидающих, красный для остальных
func statusStyles(f *excelize.File) (map[string]int, error) {
	colors := map[string]string{
		models.StatusApproved:  "#C6EFCE",
		models.StatusPending:   "#FFEB9C",
		models.StatusRejected:  "#FFC7CE",
		models.StatusCancelled: "#FFC7CE",
	}
	styles := make(map[string]int, len(colors))
	for status, color := range colors {
		id, err := f.NewStyle(&excelize.Style{
			Fill: excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
		})
		if err != nil {
			return nil, fmt.Errorf("error creating style: %w", err)
		}
		styles[status] = id
	}
	return styles, nil
}
