package events

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const sheetsTimeLayout = "2006-01-02 15:04:05"

// SheetsSink keeps one row per booking in a spreadsheet: the first event appends it,
// later events overwrite it in place.
type SheetsSink struct {
	service       *sheets.Service
	spreadsheetID string
	sheet         string
	now           func() time.Time

	rowCache map[int64]int
	cacheMu  sync.RWMutex
}

func NewSheetsSink(ctx context.Context, credentialsFile, spreadsheetID, sheet string) (*SheetsSink, error) {
	// Читаем файл учетных данных сервисного аккаунта
	credentialsJSON, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read credentials file: %w", err)
	}

	jwtConfig, err := google.JWTConfigFromJSON(credentialsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}

	srv, err := sheets.NewService(ctx, option.WithHTTPClient(jwtConfig.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return newSheetsSink(srv, spreadsheetID, sheet), nil
}

func newSheetsSink(srv *sheets.Service, spreadsheetID, sheet string) *SheetsSink {
	if sheet == "" {
		sheet = "Bookings"
	}
	return &SheetsSink{
		service:       srv,
		spreadsheetID: spreadsheetID,
		sheet:         sheet,
		now:           time.Now,
		rowCache:      make(map[int64]int),
	}
}

// TestConnection reads the header cell to check access to the spreadsheet.
func (s *SheetsSink) TestConnection(ctx context.Context) error {
	_, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, s.sheet+"!A1").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("sheets connection test: %w", err)
	}
	return nil
}

func (s *SheetsSink) Deliver(ctx context.Context, eventType string, payload []byte) error {
	var p BookingEventPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode %s payload: %w", eventType, err)
	}
	if p.BookingID == 0 {
		return fmt.Errorf("%s payload without booking id", eventType)
	}

	row, found, err := s.findBookingRow(ctx, p.BookingID)
	if err != nil {
		return fmt.Errorf("find booking row: %w", err)
	}

	values := &sheets.ValueRange{Values: [][]interface{}{s.rowValues(p)}}
	if !found {
		_, err = s.service.Spreadsheets.Values.Append(s.spreadsheetID, s.sheet+"!A:A", values).
			ValueInputOption("RAW").
			InsertDataOption("INSERT_ROWS").
			Context(ctx).
			Do()
		if err != nil {
			return fmt.Errorf("append booking %d: %w", p.BookingID, err)
		}
		return nil
	}

	rangeData := fmt.Sprintf("%s!A%d:K%d", s.sheet, row, row)
	_, err = s.service.Spreadsheets.Values.Update(s.spreadsheetID, rangeData, values).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("update booking %d: %w", p.BookingID, err)
	}
	return nil
}

// findBookingRow returns the 1-based row holding bookingID in column A.
func (s *SheetsSink) findBookingRow(ctx context.Context, bookingID int64) (int, bool, error) {
	if row, ok := s.cachedRow(bookingID); ok {
		return row, true, nil
	}

	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, s.sheet+"!A:A").Context(ctx).Do()
	if err != nil {
		return 0, false, err
	}

	for i, row := range resp.Values {
		if len(row) == 0 {
			continue
		}
		if cellID(row[0]) == bookingID {
			s.cacheRow(bookingID, i+1)
			return i + 1, true, nil
		}
	}
	return 0, false, nil
}

func cellID(v interface{}) int64 {
	switch id := v.(type) {
	case float64:
		return int64(id)
	case string:
		n, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return 0
		}
		return n
	}
	return 0
}

func (s *SheetsSink) cachedRow(id int64) (int, bool) {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	row, ok := s.rowCache[id]
	return row, ok
}

func (s *SheetsSink) cacheRow(id int64, row int) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache[id] = row
}

func (s *SheetsSink) rowValues(p BookingEventPayload) []interface{} {
	var slot interface{} = ""
	if p.SlotID != nil {
		slot = *p.SlotID
	}
	return []interface{}{
		p.BookingID,
		p.VenueID,
		slot,
		p.Mode,
		p.RequesterID,
		p.Date,
		p.StartTime + "-" + p.EndTime,
		p.Status,
		p.Version,
		p.ChangedBy,
		s.now().Format(sheetsTimeLayout),
	}
}
